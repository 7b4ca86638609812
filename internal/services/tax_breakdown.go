package services

import (
	"errors"
	"fmt"
	"sort"

	domain "github.com/arbona-turismo/storefront/internal/domain"
	"github.com/arbona-turismo/storefront/internal/platform/config"
)

// ErrTaxInvalidInput signals line amounts the tax engine cannot decompose.
var ErrTaxInvalidInput = errors.New("tax: invalid input")

// VATBreakdownEngineDeps bundles dependencies required to construct the tax engine.
type VATBreakdownEngineDeps struct {
	Pricing config.PricingConfig
}

// VATBreakdownEngine decomposes VAT-inclusive amounts into taxable base and VAT
// quota. Coupon discounts are allocated across lines proportionally to their gross
// amounts with largest-remainder rounding, so the allocated parts always sum to
// the discount exactly.
type VATBreakdownEngine struct {
	shippingVATPercent int64
}

var _ TaxBreakdownEngine = (*VATBreakdownEngine)(nil)

// NewVATBreakdownEngine wires the tax engine.
func NewVATBreakdownEngine(deps VATBreakdownEngineDeps) (*VATBreakdownEngine, error) {
	if deps.Pricing.ShippingVATPercent < 0 {
		return nil, fmt.Errorf("%w: negative shipping VAT percent %d", ErrTaxInvalidInput, deps.Pricing.ShippingVATPercent)
	}
	return &VATBreakdownEngine{shippingVATPercent: deps.Pricing.ShippingVATPercent}, nil
}

// BreakdownLines distributes couponDiscount across the lines and fills each line's
// gross, base, and VAT amounts. With vatExempt set the whole net amount is base.
func (e *VATBreakdownEngine) BreakdownLines(lines []OrderLine, couponDiscount int64, vatExempt bool) ([]OrderLine, int64, int64, error) {
	if couponDiscount < 0 {
		return nil, 0, 0, fmt.Errorf("%w: negative coupon discount %d", ErrTaxInvalidInput, couponDiscount)
	}

	var totalGross int64
	for _, line := range lines {
		if line.GrossAmount < 0 {
			return nil, 0, 0, fmt.Errorf("%w: negative gross amount on product %s", ErrTaxInvalidInput, line.ProductID)
		}
		totalGross += line.GrossAmount
	}
	if couponDiscount > totalGross {
		return nil, 0, 0, fmt.Errorf("%w: discount %d exceeds cart gross %d", ErrTaxInvalidInput, couponDiscount, totalGross)
	}

	shares := allocateProportionally(lines, couponDiscount, totalGross)

	out := make([]OrderLine, len(lines))
	var totalBase, totalVAT int64
	for i, line := range lines {
		net := line.GrossAmount - shares[i]
		line.GrossAmount = net
		line.VATExempt = vatExempt
		if vatExempt {
			line.BaseAmount, line.VATAmount = net, 0
		} else {
			line.BaseAmount, line.VATAmount = domain.SplitGross(net, line.VATPercent)
		}
		totalBase += line.BaseAmount
		totalVAT += line.VATAmount
		out[i] = line
	}
	return out, totalBase, totalVAT, nil
}

// ShippingTax splits a VAT-inclusive shipping cost into base and quota.
func (e *VATBreakdownEngine) ShippingTax(cost int64, vatExempt bool) (int64, int64) {
	if cost <= 0 {
		return 0, 0
	}
	if vatExempt {
		return cost, 0
	}
	return domain.SplitGross(cost, e.shippingVATPercent)
}

// allocateProportionally splits amount across the lines in proportion to their
// gross amounts. Each line gets the floor of its exact share; the leftover cents
// go to the lines with the largest fractional remainders, earlier lines first on
// ties, so the result is deterministic and sums to amount.
func allocateProportionally(lines []OrderLine, amount, totalGross int64) []int64 {
	shares := make([]int64, len(lines))
	if amount == 0 || totalGross <= 0 {
		return shares
	}

	type remainder struct {
		index int
		frac  int64
	}
	remainders := make([]remainder, 0, len(lines))

	var allocated int64
	for i, line := range lines {
		exact := line.GrossAmount * amount
		shares[i] = exact / totalGross
		allocated += shares[i]
		remainders = append(remainders, remainder{index: i, frac: exact % totalGross})
	}

	sort.SliceStable(remainders, func(a, b int) bool {
		return remainders[a].frac > remainders[b].frac
	})
	for i := int64(0); i < amount-allocated; i++ {
		shares[remainders[i].index]++
	}
	return shares
}
