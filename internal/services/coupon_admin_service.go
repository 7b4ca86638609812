package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/arbona-turismo/storefront/internal/domain"
	"github.com/arbona-turismo/storefront/internal/repositories"
)

// ErrCouponCodeTaken is returned when another coupon already owns the code.
var ErrCouponCodeTaken = errors.New("coupon: code already in use")

// CouponAdminServiceDeps bundles dependencies required to construct the coupon admin service.
type CouponAdminServiceDeps struct {
	Coupons repositories.CouponRepository
	Now     func() time.Time
	NewID   func() string
	Logger  func(context.Context, string, map[string]any)
}

type couponAdminService struct {
	coupons repositories.CouponRepository
	now     func() time.Time
	newID   func() string
	logger  func(context.Context, string, map[string]any)
}

var _ CouponAdminService = (*couponAdminService)(nil)

// NewCouponAdminService wires the coupon admin service.
func NewCouponAdminService(deps CouponAdminServiceDeps) (CouponAdminService, error) {
	if deps.Coupons == nil {
		return nil, errors.New("coupon admin service: coupon repository is required")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	newID := deps.NewID
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &couponAdminService{
		coupons: deps.Coupons,
		now: func() time.Time {
			return now().UTC()
		},
		newID:  newID,
		logger: logger,
	}, nil
}

func (s *couponAdminService) Create(ctx context.Context, cmd UpsertCouponCommand) (Coupon, error) {
	coupon, err := couponFromCommand(cmd)
	if err != nil {
		return Coupon{}, err
	}
	if err := s.ensureCodeFree(ctx, coupon.Code, ""); err != nil {
		return Coupon{}, err
	}

	if coupon.ID == "" {
		coupon.ID = s.newID()
	}
	coupon.CreatedAt = s.now()
	coupon.UpdatedAt = coupon.CreatedAt

	created, err := s.coupons.Insert(ctx, coupon)
	if err != nil {
		return Coupon{}, err
	}
	s.logger(ctx, "coupon.created", map[string]any{"couponId": created.ID, "code": created.Code})
	return created, nil
}

func (s *couponAdminService) Update(ctx context.Context, cmd UpsertCouponCommand) (Coupon, error) {
	if strings.TrimSpace(cmd.ID) == "" {
		return Coupon{}, fmt.Errorf("%w: coupon id is required", ErrCouponInvalidInput)
	}
	coupon, err := couponFromCommand(cmd)
	if err != nil {
		return Coupon{}, err
	}
	if err := s.ensureCodeFree(ctx, coupon.Code, coupon.ID); err != nil {
		return Coupon{}, err
	}
	coupon.UpdatedAt = s.now()

	updated, err := s.coupons.Update(ctx, coupon)
	if err != nil {
		return Coupon{}, s.mapRepoError(err)
	}
	s.logger(ctx, "coupon.updated", map[string]any{"couponId": updated.ID, "code": updated.Code})
	return updated, nil
}

func (s *couponAdminService) Delete(ctx context.Context, couponID string) error {
	if strings.TrimSpace(couponID) == "" {
		return fmt.Errorf("%w: coupon id is required", ErrCouponInvalidInput)
	}
	if err := s.coupons.Delete(ctx, couponID); err != nil {
		return s.mapRepoError(err)
	}
	s.logger(ctx, "coupon.deleted", map[string]any{"couponId": couponID})
	return nil
}

func (s *couponAdminService) Get(ctx context.Context, couponID string) (Coupon, error) {
	if strings.TrimSpace(couponID) == "" {
		return Coupon{}, fmt.Errorf("%w: coupon id is required", ErrCouponInvalidInput)
	}
	coupon, err := s.coupons.FindByID(ctx, couponID)
	if err != nil {
		return Coupon{}, s.mapRepoError(err)
	}
	return coupon, nil
}

func (s *couponAdminService) List(ctx context.Context) ([]Coupon, error) {
	return s.coupons.List(ctx)
}

// ensureCodeFree rejects codes already owned by a different coupon.
func (s *couponAdminService) ensureCodeFree(ctx context.Context, code, selfID string) error {
	existing, err := s.coupons.FindByCode(ctx, code)
	if err != nil {
		if repoErr, ok := err.(repositories.RepositoryError); ok && repoErr.IsNotFound() {
			return nil
		}
		return err
	}
	if existing.ID != selfID {
		return fmt.Errorf("%w: %s", ErrCouponCodeTaken, code)
	}
	return nil
}

func couponFromCommand(cmd UpsertCouponCommand) (Coupon, error) {
	code := domain.NormalizeCouponCode(cmd.Code)
	if code == "" {
		return Coupon{}, fmt.Errorf("%w: code is required", ErrCouponInvalidInput)
	}

	discountType := domain.DiscountType(strings.ToUpper(strings.TrimSpace(cmd.DiscountType)))
	switch discountType {
	case domain.DiscountPercent:
		if cmd.Value < 1 || cmd.Value > 100 {
			return Coupon{}, fmt.Errorf("%w: percent %d out of range 1..100", ErrCouponInvalidInput, cmd.Value)
		}
	case domain.DiscountFixed:
		if cmd.Value <= 0 {
			return Coupon{}, fmt.Errorf("%w: fixed value %d must be positive", ErrCouponInvalidInput, cmd.Value)
		}
	default:
		return Coupon{}, fmt.Errorf("%w: unknown discount type %q", ErrCouponInvalidInput, cmd.DiscountType)
	}

	// The window is inclusive on both ends, so endsAt == startsAt is legal.
	if cmd.StartsAt != nil && cmd.EndsAt != nil && cmd.EndsAt.Before(*cmd.StartsAt) {
		return Coupon{}, fmt.Errorf("%w: validity window ends before it starts", ErrCouponInvalidInput)
	}
	if cmd.MinAmount != nil && *cmd.MinAmount <= 0 {
		return Coupon{}, fmt.Errorf("%w: minimum amount must be positive", ErrCouponInvalidInput)
	}
	if cmd.UsageLimit != nil && *cmd.UsageLimit <= 0 {
		return Coupon{}, fmt.Errorf("%w: usage limit must be positive", ErrCouponInvalidInput)
	}

	return Coupon{
		ID:           strings.TrimSpace(cmd.ID),
		Code:         code,
		DiscountType: discountType,
		Value:        cmd.Value,
		Active:       cmd.Active,
		StartsAt:     normalizeUTC(cmd.StartsAt),
		EndsAt:       normalizeUTC(cmd.EndsAt),
		MinAmount:    cmd.MinAmount,
		UsageLimit:   cmd.UsageLimit,
	}, nil
}

func normalizeUTC(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}

func (s *couponAdminService) mapRepoError(err error) error {
	if repoErr, ok := err.(repositories.RepositoryError); ok && repoErr.IsNotFound() {
		return ErrCouponNotFound
	}
	return err
}
