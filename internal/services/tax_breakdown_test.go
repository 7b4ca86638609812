package services

import (
	"errors"
	"testing"

	domain "github.com/arbona-turismo/storefront/internal/domain"
)

func newTestTaxEngine(t *testing.T) *VATBreakdownEngine {
	t.Helper()
	engine, err := NewVATBreakdownEngine(VATBreakdownEngineDeps{Pricing: testPricingConfig()})
	if err != nil {
		t.Fatalf("NewVATBreakdownEngine: %v", err)
	}
	return engine
}

func TestBreakdownLinesReconcilesToTheCent(t *testing.T) {
	engine := newTestTaxEngine(t)
	lines := []OrderLine{
		{ProductID: "a", VATPercent: 21, GrossAmount: 3333},
		{ProductID: "b", VATPercent: 4, GrossAmount: 1667},
		{ProductID: "c", VATPercent: 21, GrossAmount: 999},
	}

	out, base, vat, err := engine.BreakdownLines(lines, 500, false)
	if err != nil {
		t.Fatalf("BreakdownLines: %v", err)
	}

	var gross, sumBase, sumVAT int64
	for _, line := range out {
		if line.GrossAmount != line.BaseAmount+line.VATAmount {
			t.Fatalf("line %s: %d != %d + %d", line.ProductID, line.GrossAmount, line.BaseAmount, line.VATAmount)
		}
		gross += line.GrossAmount
		sumBase += line.BaseAmount
		sumVAT += line.VATAmount
	}
	if gross != 3333+1667+999-500 {
		t.Fatalf("expected discounted gross %d got %d", 3333+1667+999-500, gross)
	}
	if base != sumBase || vat != sumVAT {
		t.Fatalf("totals do not match line sums")
	}
}

func TestBreakdownLinesAllocatesDiscountProportionally(t *testing.T) {
	engine := newTestTaxEngine(t)
	lines := []OrderLine{
		{ProductID: "big", VATPercent: 21, GrossAmount: 9000},
		{ProductID: "small", VATPercent: 21, GrossAmount: 1000},
	}

	out, _, _, err := engine.BreakdownLines(lines, 1000, false)
	if err != nil {
		t.Fatalf("BreakdownLines: %v", err)
	}
	if out[0].GrossAmount != 8100 {
		t.Fatalf("expected big line 8100 got %d", out[0].GrossAmount)
	}
	if out[1].GrossAmount != 900 {
		t.Fatalf("expected small line 900 got %d", out[1].GrossAmount)
	}
}

func TestBreakdownLinesRemainderCentsAreDeterministic(t *testing.T) {
	engine := newTestTaxEngine(t)
	// Three equal lines and a discount that does not divide evenly: the spare
	// cent goes to the first line.
	lines := []OrderLine{
		{ProductID: "a", VATPercent: 21, GrossAmount: 1000},
		{ProductID: "b", VATPercent: 21, GrossAmount: 1000},
		{ProductID: "c", VATPercent: 21, GrossAmount: 1000},
	}

	out, _, _, err := engine.BreakdownLines(lines, 100, false)
	if err != nil {
		t.Fatalf("BreakdownLines: %v", err)
	}
	if out[0].GrossAmount != 966 || out[1].GrossAmount != 967 || out[2].GrossAmount != 967 {
		t.Fatalf("unexpected allocation %d %d %d", out[0].GrossAmount, out[1].GrossAmount, out[2].GrossAmount)
	}
	var total int64
	for _, line := range out {
		total += line.GrossAmount
	}
	if total != 2900 {
		t.Fatalf("expected 2900 after discount got %d", total)
	}
}

func TestBreakdownLinesExempt(t *testing.T) {
	engine := newTestTaxEngine(t)
	lines := []OrderLine{{ProductID: "a", VATPercent: 21, GrossAmount: 1210}}

	out, base, vat, err := engine.BreakdownLines(lines, 0, true)
	if err != nil {
		t.Fatalf("BreakdownLines: %v", err)
	}
	if !out[0].VATExempt || out[0].VATAmount != 0 || out[0].BaseAmount != 1210 {
		t.Fatalf("expected exempt line, got %+v", out[0])
	}
	if base != 1210 || vat != 0 {
		t.Fatalf("expected totals 1210/0 got %d/%d", base, vat)
	}
}

func TestBreakdownLinesRejectsOversizedDiscount(t *testing.T) {
	engine := newTestTaxEngine(t)
	lines := []OrderLine{{ProductID: "a", VATPercent: 21, GrossAmount: 100}}

	if _, _, _, err := engine.BreakdownLines(lines, 101, false); !errors.Is(err, ErrTaxInvalidInput) {
		t.Fatalf("expected ErrTaxInvalidInput got %v", err)
	}
	if _, _, _, err := engine.BreakdownLines(lines, -1, false); !errors.Is(err, ErrTaxInvalidInput) {
		t.Fatalf("expected ErrTaxInvalidInput for negative discount got %v", err)
	}
}

func TestShippingTax(t *testing.T) {
	engine := newTestTaxEngine(t)

	base, vat := engine.ShippingTax(1210, false)
	if base != 1000 || vat != 210 {
		t.Fatalf("expected 1000/210 got %d/%d", base, vat)
	}
	if base+vat != 1210 {
		t.Fatalf("shipping split does not reconcile")
	}

	base, vat = engine.ShippingTax(1210, true)
	if base != 1210 || vat != 0 {
		t.Fatalf("expected exempt split got %d/%d", base, vat)
	}

	base, vat = engine.ShippingTax(0, false)
	if base != 0 || vat != 0 {
		t.Fatalf("expected zero split for free shipping got %d/%d", base, vat)
	}
}

func TestSplitGrossKnownValues(t *testing.T) {
	base, vat := domain.SplitGross(121, 21)
	if base != 100 || vat != 21 {
		t.Fatalf("expected 100/21 got %d/%d", base, vat)
	}
	base, vat = domain.SplitGross(104, 4)
	if base != 100 || vat != 4 {
		t.Fatalf("expected 100/4 got %d/%d", base, vat)
	}
}
