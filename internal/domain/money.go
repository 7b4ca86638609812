package domain

import (
	"errors"
	"fmt"
)

// All monetary amounts in the engine are int64 minor currency units (euro cents).
// Rounding happens exactly once, at the final integer boundary of a computation:
// full-line amounts are rounded, never per-unit fractions, so quantities cannot
// accumulate drift.

// ErrInvalidDiscount signals a stored discount outside its legal range. The engine
// refuses to guess intent for corrupt data; range enforcement belongs to the admin
// write path.
var ErrInvalidDiscount = errors.New("pricing: invalid discount definition")

// DiscountType enumerates how a discount value is interpreted.
type DiscountType string

const (
	DiscountPercent DiscountType = "PERCENT"
	DiscountFixed   DiscountType = "FIXED"
)

// Discount is a percent-of-price or fixed-amount reduction.
type Discount struct {
	Type  DiscountType
	Value int64
}

// RoundHalfUpDiv divides numerator by denominator rounding half away from zero.
// Both operands must be non-negative; every caller works on clamped amounts.
func RoundHalfUpDiv(numerator, denominator int64) int64 {
	if denominator <= 0 {
		return 0
	}
	return (numerator + denominator/2) / denominator
}

// PercentOf computes percent of amount with half-up rounding applied once.
func PercentOf(amount int64, percent int64) int64 {
	if amount <= 0 || percent <= 0 {
		return 0
	}
	return RoundHalfUpDiv(amount*percent, 100)
}

// SplitGross decomposes a VAT-inclusive amount into its tax base and VAT portion:
// base = round_half_up(gross*100/(100+rate)), vat = gross - base. The two parts
// always reconcile to the gross amount to the cent.
func SplitGross(gross int64, vatPercent int64) (base int64, vat int64) {
	if gross <= 0 {
		return 0, 0
	}
	if vatPercent <= 0 {
		return gross, 0
	}
	base = RoundHalfUpDiv(gross*100, 100+vatPercent)
	return base, gross - base
}

// ApplyDiscount returns price reduced by d, clamped to zero. Percent values
// outside 0..100 and negative fixed values are data-integrity errors.
func ApplyDiscount(price int64, d Discount) (int64, error) {
	if price < 0 {
		return 0, fmt.Errorf("%w: negative price %d", ErrInvalidDiscount, price)
	}
	switch d.Type {
	case DiscountPercent:
		if d.Value < 0 || d.Value > 100 {
			return 0, fmt.Errorf("%w: percent %d out of range", ErrInvalidDiscount, d.Value)
		}
		return price - PercentOf(price, d.Value), nil
	case DiscountFixed:
		if d.Value < 0 {
			return 0, fmt.Errorf("%w: negative fixed value %d", ErrInvalidDiscount, d.Value)
		}
		reduced := price - d.Value
		if reduced < 0 {
			reduced = 0
		}
		return reduced, nil
	default:
		return 0, fmt.Errorf("%w: unknown discount type %q", ErrInvalidDiscount, d.Type)
	}
}
