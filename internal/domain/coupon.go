package domain

import (
	"strings"
	"time"
)

// Coupon is a user-supplied discount code. Codes are stored upper-cased and
// looked up case-insensitively. UsedCount is only ever advanced by the
// conditional redeem operation; it must never exceed UsageLimit when a limit
// is set.
type Coupon struct {
	ID           string
	Code         string
	DiscountType DiscountType
	Value        int64
	Active       bool
	StartsAt     *time.Time
	EndsAt       *time.Time
	MinAmount    *int64
	UsageLimit   *int64
	UsedCount    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NormalizeCouponCode maps user input onto the stored code form.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Discount returns the coupon's reduction as a generic Discount.
func (c Coupon) Discount() Discount {
	return Discount{Type: c.DiscountType, Value: c.Value}
}
