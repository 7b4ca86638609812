package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/arbona-turismo/storefront/internal/domain"
	"github.com/arbona-turismo/storefront/internal/repositories"
)

var (
	// ErrCouponInvalidInput signals a missing or malformed coupon code.
	ErrCouponInvalidInput = errors.New("coupon: invalid input")
	// ErrCouponNotFound is returned when no coupon matches the supplied code.
	ErrCouponNotFound = errors.New("coupon: not found")
	// ErrCouponInactive is returned for coupons an admin has switched off.
	ErrCouponInactive = errors.New("coupon: inactive")
	// ErrCouponNotStarted is returned before a coupon's validity window opens.
	ErrCouponNotStarted = errors.New("coupon: not started")
	// ErrCouponExpired is returned after a coupon's validity window closes.
	ErrCouponExpired = errors.New("coupon: expired")
	// ErrCouponMinAmount is returned when the cart does not reach the coupon's minimum amount.
	ErrCouponMinAmount = errors.New("coupon: cart below minimum amount")
	// ErrCouponUsageLimit is returned when the coupon's usage limit is exhausted.
	ErrCouponUsageLimit = errors.New("coupon: usage limit reached")
)

// IsCouponRejection reports whether err is one of the coupon rule rejections,
// as opposed to an infrastructure failure.
func IsCouponRejection(err error) bool {
	for _, sentinel := range []error{
		ErrCouponInvalidInput,
		ErrCouponNotFound,
		ErrCouponInactive,
		ErrCouponNotStarted,
		ErrCouponExpired,
		ErrCouponMinAmount,
		ErrCouponUsageLimit,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// RuleCouponEngineDeps bundles dependencies required to construct the coupon engine.
type RuleCouponEngineDeps struct {
	Coupons repositories.CouponRepository
	Now     func() time.Time
	Logger  func(context.Context, string, map[string]any)
}

// RuleCouponEngine validates coupon codes against the stored rules and redeems usages.
type RuleCouponEngine struct {
	coupons repositories.CouponRepository
	now     func() time.Time
	logger  func(context.Context, string, map[string]any)
}

var _ CouponEngine = (*RuleCouponEngine)(nil)

// NewRuleCouponEngine wires the coupon engine.
func NewRuleCouponEngine(deps RuleCouponEngineDeps) (*RuleCouponEngine, error) {
	if deps.Coupons == nil {
		return nil, errors.New("coupon engine: coupon repository is required")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &RuleCouponEngine{
		coupons: deps.Coupons,
		now: func() time.Time {
			return now().UTC()
		},
		logger: logger,
	}, nil
}

// Validate checks every redemption rule in order and returns the coupon together
// with the discount it grants on cartAmount. The discount never exceeds cartAmount.
func (e *RuleCouponEngine) Validate(ctx context.Context, code string, cartAmount int64) (Coupon, int64, error) {
	normalized := domain.NormalizeCouponCode(code)
	if normalized == "" {
		return Coupon{}, 0, ErrCouponInvalidInput
	}

	coupon, err := e.coupons.FindByCode(ctx, normalized)
	if err != nil {
		if repoErr, ok := err.(repositories.RepositoryError); ok && repoErr.IsNotFound() {
			return Coupon{}, 0, ErrCouponNotFound
		}
		return Coupon{}, 0, err
	}

	now := e.now()
	switch {
	case !coupon.Active:
		return Coupon{}, 0, ErrCouponInactive
	case coupon.StartsAt != nil && now.Before(*coupon.StartsAt):
		return Coupon{}, 0, ErrCouponNotStarted
	case coupon.EndsAt != nil && now.After(*coupon.EndsAt):
		return Coupon{}, 0, ErrCouponExpired
	case coupon.MinAmount != nil && cartAmount < *coupon.MinAmount:
		return Coupon{}, 0, ErrCouponMinAmount
	case coupon.UsageLimit != nil && coupon.UsedCount >= *coupon.UsageLimit:
		return Coupon{}, 0, ErrCouponUsageLimit
	}

	reduced, err := domain.ApplyDiscount(cartAmount, coupon.Discount())
	if err != nil {
		return Coupon{}, 0, err
	}
	discount := cartAmount - reduced

	e.logger(ctx, "coupon.validated", map[string]any{
		"code":     coupon.Code,
		"discount": discount,
	})
	return coupon, discount, nil
}

// Redeem consumes one usage of the coupon, translating repository rejections into
// the validation sentinels so callers see a single error vocabulary.
func (e *RuleCouponEngine) Redeem(ctx context.Context, couponID string) error {
	if couponID == "" {
		return ErrCouponInvalidInput
	}
	if _, err := e.coupons.Redeem(ctx, couponID, e.now()); err != nil {
		var couponErr *repositories.CouponError
		if errors.As(err, &couponErr) {
			switch couponErr.Code {
			case repositories.CouponErrorExhausted:
				return ErrCouponUsageLimit
			case repositories.CouponErrorInactive:
				return ErrCouponInactive
			case repositories.CouponErrorInvalidInput:
				return ErrCouponInvalidInput
			}
		}
		if repoErr, ok := err.(repositories.RepositoryError); ok && repoErr.IsNotFound() {
			return ErrCouponNotFound
		}
		return err
	}
	e.logger(ctx, "coupon.redeemed", map[string]any{"couponId": couponID})
	return nil
}
