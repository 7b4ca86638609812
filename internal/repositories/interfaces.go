package repositories

import (
	"context"
	"time"

	domain "github.com/arbona-turismo/storefront/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Catalog() CatalogRepository
	Promotions() PromotionRepository
	Coupons() CouponRepository
	ShippingZones() ShippingZoneRepository
	Orders() OrderRepository
	Counters() CounterRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork groups repository operations in a single transactional boundary. Repository
// methods invoked with the context passed to fn participate in the same transaction.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CatalogRepository reads product data and adjusts stock levels.
type CatalogRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	FindByIDs(ctx context.Context, productIDs []string) (map[string]domain.Product, error)
	List(ctx context.Context, filter CatalogListFilter) ([]domain.Product, error)
	DecrementStock(ctx context.Context, productID string, quantity int64) error
}

// CatalogListFilter narrows catalog listings.
type CatalogListFilter struct {
	InStockOnly bool
	Limit       int
}

// PromotionRepository persists storewide promotions. At most one promotion is active at a time;
// Activate enforces that invariant transactionally.
type PromotionRepository interface {
	Insert(ctx context.Context, promotion domain.Promotion) (domain.Promotion, error)
	Update(ctx context.Context, promotion domain.Promotion) (domain.Promotion, error)
	Delete(ctx context.Context, promotionID string) error
	FindByID(ctx context.Context, promotionID string) (domain.Promotion, error)
	FindActive(ctx context.Context) (domain.Promotion, error)
	List(ctx context.Context) ([]domain.Promotion, error)
	Activate(ctx context.Context, promotionID string, now time.Time) (domain.Promotion, error)
	Deactivate(ctx context.Context, promotionID string, now time.Time) (domain.Promotion, error)
}

// CouponRepository persists coupon definitions and redemption counts.
type CouponRepository interface {
	Insert(ctx context.Context, coupon domain.Coupon) (domain.Coupon, error)
	Update(ctx context.Context, coupon domain.Coupon) (domain.Coupon, error)
	Delete(ctx context.Context, couponID string) error
	FindByID(ctx context.Context, couponID string) (domain.Coupon, error)
	FindByCode(ctx context.Context, code string) (domain.Coupon, error)
	List(ctx context.Context) ([]domain.Coupon, error)
	// Redeem increments the usage count of the coupon, failing with a CouponError of code
	// CouponErrorExhausted once the usage limit is reached.
	Redeem(ctx context.Context, couponID string, now time.Time) (domain.Coupon, error)
}

// ShippingZoneRepository persists shipping zone definitions.
type ShippingZoneRepository interface {
	Insert(ctx context.Context, zone domain.ShippingZone) (domain.ShippingZone, error)
	Update(ctx context.Context, zone domain.ShippingZone) (domain.ShippingZone, error)
	Delete(ctx context.Context, zoneID string) error
	FindByID(ctx context.Context, zoneID string) (domain.ShippingZone, error)
	List(ctx context.Context) ([]domain.ShippingZone, error)
}

// OrderRepository persists finalised orders.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]domain.Order, error)
}

// CounterRepository provides monotonically increasing sequence values.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// CounterConfig carries optional counter settings applied via Configure.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}

// HealthRepository aggregates dependency probes for readiness reporting.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
