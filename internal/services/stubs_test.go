package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/arbona-turismo/storefront/internal/domain"
	"github.com/arbona-turismo/storefront/internal/repositories"
)

type stubRepoError struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *stubRepoError) Error() string       { return "repo error" }
func (e *stubRepoError) IsNotFound() bool    { return e.notFound }
func (e *stubRepoError) IsConflict() bool    { return e.conflict }
func (e *stubRepoError) IsUnavailable() bool { return e.unavailable }

var errStubNotFound = &stubRepoError{notFound: true}

type stubCatalogRepository struct {
	products    map[string]domain.Product
	err         error
	decremented map[string]int64
}

func (s *stubCatalogRepository) FindByID(_ context.Context, productID string) (domain.Product, error) {
	if s.err != nil {
		return domain.Product{}, s.err
	}
	product, ok := s.products[productID]
	if !ok {
		return domain.Product{}, errStubNotFound
	}
	return product, nil
}

func (s *stubCatalogRepository) FindByIDs(_ context.Context, productIDs []string) (map[string]domain.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	found := make(map[string]domain.Product, len(productIDs))
	for _, id := range productIDs {
		if product, ok := s.products[id]; ok {
			found[id] = product
		}
	}
	return found, nil
}

func (s *stubCatalogRepository) List(context.Context, repositories.CatalogListFilter) ([]domain.Product, error) {
	return nil, errors.New("not implemented")
}

func (s *stubCatalogRepository) DecrementStock(_ context.Context, productID string, quantity int64) error {
	if s.err != nil {
		return s.err
	}
	if s.decremented == nil {
		s.decremented = map[string]int64{}
	}
	s.decremented[productID] += quantity
	return nil
}

type stubPromotionRepository struct {
	active      *domain.Promotion
	promotions  []domain.Promotion
	err         error
	inserted    []domain.Promotion
	updated     []domain.Promotion
	deleted     []string
	activated   []string
	deactivated []string
}

func (s *stubPromotionRepository) Insert(_ context.Context, promotion domain.Promotion) (domain.Promotion, error) {
	if s.err != nil {
		return domain.Promotion{}, s.err
	}
	s.inserted = append(s.inserted, promotion)
	return promotion, nil
}

func (s *stubPromotionRepository) Update(_ context.Context, promotion domain.Promotion) (domain.Promotion, error) {
	if s.err != nil {
		return domain.Promotion{}, s.err
	}
	s.updated = append(s.updated, promotion)
	return promotion, nil
}

func (s *stubPromotionRepository) Delete(_ context.Context, promotionID string) error {
	if s.err != nil {
		return s.err
	}
	s.deleted = append(s.deleted, promotionID)
	return nil
}

func (s *stubPromotionRepository) FindByID(_ context.Context, promotionID string) (domain.Promotion, error) {
	if s.err != nil {
		return domain.Promotion{}, s.err
	}
	for _, promotion := range s.promotions {
		if promotion.ID == promotionID {
			return promotion, nil
		}
	}
	return domain.Promotion{}, errStubNotFound
}

func (s *stubPromotionRepository) FindActive(context.Context) (domain.Promotion, error) {
	if s.err != nil {
		return domain.Promotion{}, s.err
	}
	if s.active == nil {
		return domain.Promotion{}, errStubNotFound
	}
	return *s.active, nil
}

func (s *stubPromotionRepository) List(context.Context) ([]domain.Promotion, error) {
	return s.promotions, s.err
}

func (s *stubPromotionRepository) Activate(_ context.Context, promotionID string, _ time.Time) (domain.Promotion, error) {
	if s.err != nil {
		return domain.Promotion{}, s.err
	}
	s.activated = append(s.activated, promotionID)
	return domain.Promotion{ID: promotionID, Active: true}, nil
}

func (s *stubPromotionRepository) Deactivate(_ context.Context, promotionID string, _ time.Time) (domain.Promotion, error) {
	if s.err != nil {
		return domain.Promotion{}, s.err
	}
	s.deactivated = append(s.deactivated, promotionID)
	return domain.Promotion{ID: promotionID}, nil
}

type stubCouponRepository struct {
	coupons   map[string]domain.Coupon
	err       error
	redeemErr error
	redeemed  []string
	lastCode  string
	inserted  []domain.Coupon
	updated   []domain.Coupon
	deleted   []string
}

func (s *stubCouponRepository) Insert(_ context.Context, coupon domain.Coupon) (domain.Coupon, error) {
	if s.err != nil {
		return domain.Coupon{}, s.err
	}
	s.inserted = append(s.inserted, coupon)
	return coupon, nil
}

func (s *stubCouponRepository) Update(_ context.Context, coupon domain.Coupon) (domain.Coupon, error) {
	if s.err != nil {
		return domain.Coupon{}, s.err
	}
	s.updated = append(s.updated, coupon)
	return coupon, nil
}

func (s *stubCouponRepository) Delete(_ context.Context, couponID string) error {
	if s.err != nil {
		return s.err
	}
	s.deleted = append(s.deleted, couponID)
	return nil
}

func (s *stubCouponRepository) FindByID(_ context.Context, couponID string) (domain.Coupon, error) {
	if s.err != nil {
		return domain.Coupon{}, s.err
	}
	for _, coupon := range s.coupons {
		if coupon.ID == couponID {
			return coupon, nil
		}
	}
	return domain.Coupon{}, errStubNotFound
}

func (s *stubCouponRepository) FindByCode(_ context.Context, code string) (domain.Coupon, error) {
	s.lastCode = code
	if s.err != nil {
		return domain.Coupon{}, s.err
	}
	coupon, ok := s.coupons[code]
	if !ok {
		return domain.Coupon{}, errStubNotFound
	}
	return coupon, nil
}

func (s *stubCouponRepository) List(context.Context) ([]domain.Coupon, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]domain.Coupon, 0, len(s.coupons))
	for _, coupon := range s.coupons {
		out = append(out, coupon)
	}
	return out, nil
}

func (s *stubCouponRepository) Redeem(_ context.Context, couponID string, _ time.Time) (domain.Coupon, error) {
	if s.redeemErr != nil {
		return domain.Coupon{}, s.redeemErr
	}
	s.redeemed = append(s.redeemed, couponID)
	return domain.Coupon{ID: couponID}, nil
}

type stubZoneRepository struct {
	zones    []domain.ShippingZone
	err      error
	inserted []domain.ShippingZone
	updated  []domain.ShippingZone
	deleted  []string
}

func (s *stubZoneRepository) Insert(_ context.Context, zone domain.ShippingZone) (domain.ShippingZone, error) {
	if s.err != nil {
		return domain.ShippingZone{}, s.err
	}
	s.inserted = append(s.inserted, zone)
	return zone, nil
}

func (s *stubZoneRepository) Update(_ context.Context, zone domain.ShippingZone) (domain.ShippingZone, error) {
	if s.err != nil {
		return domain.ShippingZone{}, s.err
	}
	s.updated = append(s.updated, zone)
	return zone, nil
}

func (s *stubZoneRepository) Delete(_ context.Context, zoneID string) error {
	if s.err != nil {
		return s.err
	}
	s.deleted = append(s.deleted, zoneID)
	return nil
}

func (s *stubZoneRepository) FindByID(_ context.Context, zoneID string) (domain.ShippingZone, error) {
	if s.err != nil {
		return domain.ShippingZone{}, s.err
	}
	for _, zone := range s.zones {
		if zone.ID == zoneID {
			return zone, nil
		}
	}
	return domain.ShippingZone{}, errStubNotFound
}

func (s *stubZoneRepository) List(context.Context) ([]domain.ShippingZone, error) {
	return s.zones, s.err
}

type stubOrderRepository struct {
	orders   []domain.Order
	err      error
	inserted []domain.Order
}

func (s *stubOrderRepository) Insert(_ context.Context, order domain.Order) (domain.Order, error) {
	if s.err != nil {
		return domain.Order{}, s.err
	}
	s.inserted = append(s.inserted, order)
	return order, nil
}

func (s *stubOrderRepository) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	if s.err != nil {
		return domain.Order{}, s.err
	}
	for _, order := range s.orders {
		if order.ID == orderID {
			return order, nil
		}
	}
	return domain.Order{}, errStubNotFound
}

func (s *stubOrderRepository) ListBetween(_ context.Context, from, to time.Time) ([]domain.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []domain.Order
	for _, order := range s.orders {
		if !order.CreatedAt.Before(from) && order.CreatedAt.Before(to) {
			out = append(out, order)
		}
	}
	return out, nil
}

type stubCounterRepository struct {
	value int64
	err   error
	calls []string
}

func (s *stubCounterRepository) Next(_ context.Context, counterID string, step int64) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.calls = append(s.calls, counterID)
	s.value += step
	return s.value, nil
}

func (s *stubCounterRepository) Configure(context.Context, string, repositories.CounterConfig) error {
	return nil
}

type stubHealthRepository struct {
	report domain.SystemHealthReport
	err    error
}

func (s *stubHealthRepository) Collect(context.Context) (domain.SystemHealthReport, error) {
	return s.report, s.err
}

// stubRegistry satisfies repositories.Registry; RunInTx simply runs fn so checkout
// sequencing can be asserted without a live Firestore.
type stubRegistry struct {
	catalog  *stubCatalogRepository
	promos   *stubPromotionRepository
	coupons  *stubCouponRepository
	zones    *stubZoneRepository
	orders   *stubOrderRepository
	counters *stubCounterRepository
	health   *stubHealthRepository
	txErr    error
	txCalls  int
}

func (s *stubRegistry) Close(context.Context) error { return nil }

func (s *stubRegistry) Catalog() repositories.CatalogRepository { return s.catalog }

func (s *stubRegistry) Promotions() repositories.PromotionRepository { return s.promos }

func (s *stubRegistry) Coupons() repositories.CouponRepository { return s.coupons }

func (s *stubRegistry) ShippingZones() repositories.ShippingZoneRepository { return s.zones }

func (s *stubRegistry) Orders() repositories.OrderRepository { return s.orders }

func (s *stubRegistry) Counters() repositories.CounterRepository { return s.counters }

func (s *stubRegistry) Health() repositories.HealthRepository { return s.health }

func (s *stubRegistry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txCalls++
	if s.txErr != nil {
		return s.txErr
	}
	return fn(ctx)
}

func newStubRegistry() *stubRegistry {
	return &stubRegistry{
		catalog:  &stubCatalogRepository{products: map[string]domain.Product{}},
		promos:   &stubPromotionRepository{},
		coupons:  &stubCouponRepository{coupons: map[string]domain.Coupon{}},
		zones:    &stubZoneRepository{},
		orders:   &stubOrderRepository{},
		counters: &stubCounterRepository{},
		health:   &stubHealthRepository{},
	}
}

type stubPublisher struct {
	messages []OrderCreatedMessage
	err      error
}

func (s *stubPublisher) PublishOrderCreated(_ context.Context, message OrderCreatedMessage) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.messages = append(s.messages, message)
	return fmt.Sprintf("msg-%d", len(s.messages)), nil
}

type stubObjectWriter struct {
	bucket      string
	object      string
	contentType string
	data        []byte
	err         error
}

func (s *stubObjectWriter) WriteObject(_ context.Context, bucket, object, contentType string, data []byte) error {
	if s.err != nil {
		return s.err
	}
	s.bucket, s.object, s.contentType, s.data = bucket, object, contentType, data
	return nil
}
