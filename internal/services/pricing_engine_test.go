package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/arbona-turismo/storefront/internal/domain"
	"github.com/arbona-turismo/storefront/internal/platform/config"
)

func testPricingConfig() config.PricingConfig {
	return config.PricingConfig{
		FreeShippingOver:   6000,
		ThresholdBasis:     config.ThresholdBasisPostDiscount,
		ShippingVATPercent: 21,
	}
}

func newTestPricingEngine(t *testing.T, catalog *stubCatalogRepository, promos *stubPromotionRepository, coupons *stubCouponRepository, zones *stubZoneRepository, pricing config.PricingConfig) *CartPricingEngine {
	t.Helper()

	couponEngine, err := NewRuleCouponEngine(RuleCouponEngineDeps{
		Coupons: coupons,
		Now:     func() time.Time { return time.Date(2025, time.July, 15, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewRuleCouponEngine: %v", err)
	}
	shipping, err := NewZoneShippingCalculator(ZoneShippingCalculatorDeps{Zones: zones, Pricing: pricing})
	if err != nil {
		t.Fatalf("NewZoneShippingCalculator: %v", err)
	}
	taxes, err := NewVATBreakdownEngine(VATBreakdownEngineDeps{Pricing: pricing})
	if err != nil {
		t.Fatalf("NewVATBreakdownEngine: %v", err)
	}
	engine, err := NewCartPricingEngine(CartPricingEngineDeps{
		Catalog:    catalog,
		Promotions: promos,
		Coupons:    couponEngine,
		Shipping:   shipping,
		Taxes:      taxes,
		Pricing:    pricing,
	})
	if err != nil {
		t.Fatalf("NewCartPricingEngine: %v", err)
	}
	return engine
}

func peninsulaZone() domain.ShippingZone {
	return domain.ShippingZone{
		ID:        "peninsula",
		Name:      "Península",
		IsDefault: true,
		FlatRate:  500,
		WeightTiers: []domain.WeightTier{
			{MaxWeightGrams: 2000, Surcharge: 200},
			{MaxWeightGrams: 5000, Surcharge: 400},
		},
	}
}

func TestResolveUnitPriceProductDiscountWins(t *testing.T) {
	engine := newTestPricingEngine(t, &stubCatalogRepository{}, &stubPromotionRepository{}, &stubCouponRepository{}, &stubZoneRepository{}, testPricingConfig())

	product := domain.Product{
		ID:          "queso",
		BasePrice:   1000,
		OwnDiscount: &domain.Discount{Type: domain.DiscountPercent, Value: 10},
	}
	promotion := &domain.Promotion{ID: "verano", Percent: 50, Active: true}

	price, source, err := engine.ResolveUnitPrice(context.Background(), product, promotion)
	if err != nil {
		t.Fatalf("ResolveUnitPrice: %v", err)
	}
	if price != 900 {
		t.Fatalf("expected 900 got %d", price)
	}
	if source != domain.DiscountSourceProduct {
		t.Fatalf("expected product source got %s", source)
	}
}

func TestResolveUnitPriceZeroEffectDiscountFallsToPromotion(t *testing.T) {
	engine := newTestPricingEngine(t, &stubCatalogRepository{}, &stubPromotionRepository{}, &stubCouponRepository{}, &stubZoneRepository{}, testPricingConfig())

	product := domain.Product{
		ID:          "miel",
		BasePrice:   2000,
		OwnDiscount: &domain.Discount{Type: domain.DiscountPercent, Value: 0},
	}
	promotion := &domain.Promotion{ID: "verano", Percent: 25, Active: true}

	price, source, err := engine.ResolveUnitPrice(context.Background(), product, promotion)
	if err != nil {
		t.Fatalf("ResolveUnitPrice: %v", err)
	}
	if price != 1500 {
		t.Fatalf("expected 1500 got %d", price)
	}
	if source != domain.DiscountSourceGlobal {
		t.Fatalf("expected global source got %s", source)
	}
}

func TestResolveUnitPriceNoDiscounts(t *testing.T) {
	engine := newTestPricingEngine(t, &stubCatalogRepository{}, &stubPromotionRepository{}, &stubCouponRepository{}, &stubZoneRepository{}, testPricingConfig())

	price, source, err := engine.ResolveUnitPrice(context.Background(), domain.Product{ID: "sal", BasePrice: 350}, nil)
	if err != nil {
		t.Fatalf("ResolveUnitPrice: %v", err)
	}
	if price != 350 || source != domain.DiscountSourceNone {
		t.Fatalf("expected base price without discount, got %d %s", price, source)
	}
}

func TestEvaluateCartUnknownProduct(t *testing.T) {
	engine := newTestPricingEngine(t, &stubCatalogRepository{products: map[string]domain.Product{}}, &stubPromotionRepository{}, &stubCouponRepository{}, &stubZoneRepository{}, testPricingConfig())

	_, err := engine.EvaluateCart(context.Background(), EvaluateCartCommand{
		Items: []CartItemInput{{ProductID: "ghost", Quantity: 1}},
	})
	if !errors.Is(err, ErrUnknownProduct) {
		t.Fatalf("expected ErrUnknownProduct got %v", err)
	}
}

func TestEvaluateCartInsufficientStock(t *testing.T) {
	catalog := &stubCatalogRepository{products: map[string]domain.Product{
		"vino": {ID: "vino", Name: "Vino", BasePrice: 1200, VATPercent: 21, StockQty: 2},
	}}
	engine := newTestPricingEngine(t, catalog, &stubPromotionRepository{}, &stubCouponRepository{}, &stubZoneRepository{zones: []domain.ShippingZone{peninsulaZone()}}, testPricingConfig())

	_, err := engine.EvaluateCart(context.Background(), EvaluateCartCommand{
		Items: []CartItemInput{{ProductID: "vino", Quantity: 3}},
	})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock got %v", err)
	}
}

func TestEvaluateCartMergesDuplicateLines(t *testing.T) {
	catalog := &stubCatalogRepository{products: map[string]domain.Product{
		"vino": {ID: "vino", Name: "Vino", BasePrice: 1200, VATPercent: 21, StockQty: 10, WeightGrams: 900},
	}}
	engine := newTestPricingEngine(t, catalog, &stubPromotionRepository{}, &stubCouponRepository{}, &stubZoneRepository{zones: []domain.ShippingZone{peninsulaZone()}}, testPricingConfig())

	evaluation, err := engine.EvaluateCart(context.Background(), EvaluateCartCommand{
		Items: []CartItemInput{
			{ProductID: "vino", Quantity: 1},
			{ProductID: "vino", Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("EvaluateCart: %v", err)
	}
	if len(evaluation.Lines) != 1 {
		t.Fatalf("expected merged single line got %d", len(evaluation.Lines))
	}
	if evaluation.Lines[0].Quantity != 3 {
		t.Fatalf("expected quantity 3 got %d", evaluation.Lines[0].Quantity)
	}
	if evaluation.Subtotal != 3600 {
		t.Fatalf("expected subtotal 3600 got %d", evaluation.Subtotal)
	}
}

func TestEvaluateCartInvalidInput(t *testing.T) {
	engine := newTestPricingEngine(t, &stubCatalogRepository{}, &stubPromotionRepository{}, &stubCouponRepository{}, &stubZoneRepository{}, testPricingConfig())

	if _, err := engine.EvaluateCart(context.Background(), EvaluateCartCommand{}); !errors.Is(err, ErrCartPricingInvalidInput) {
		t.Fatalf("expected ErrCartPricingInvalidInput for empty cart got %v", err)
	}
	_, err := engine.EvaluateCart(context.Background(), EvaluateCartCommand{
		Items: []CartItemInput{{ProductID: "vino", Quantity: 0}},
	})
	if !errors.Is(err, ErrCartPricingInvalidInput) {
		t.Fatalf("expected ErrCartPricingInvalidInput for zero quantity got %v", err)
	}
}

func TestEvaluateCartFullBreakdown(t *testing.T) {
	catalog := &stubCatalogRepository{products: map[string]domain.Product{
		"queso": {ID: "queso", Name: "Queso", BasePrice: 2000, VATPercent: 21, StockQty: 5, WeightGrams: 500},
		"pan":   {ID: "pan", Name: "Pan", BasePrice: 300, VATPercent: 4, StockQty: 20, WeightGrams: 400},
	}}
	coupons := &stubCouponRepository{coupons: map[string]domain.Coupon{
		"VERANO10": {ID: "c1", Code: "VERANO10", DiscountType: domain.DiscountPercent, Value: 10, Active: true},
	}}
	engine := newTestPricingEngine(t, catalog, &stubPromotionRepository{}, coupons, &stubZoneRepository{zones: []domain.ShippingZone{peninsulaZone()}}, testPricingConfig())

	evaluation, err := engine.EvaluateCart(context.Background(), EvaluateCartCommand{
		Items: []CartItemInput{
			{ProductID: "queso", Quantity: 2},
			{ProductID: "pan", Quantity: 3},
		},
		CouponCode: "verano10",
	})
	if err != nil {
		t.Fatalf("EvaluateCart: %v", err)
	}

	// 2*2000 + 3*300 = 4900; coupon 10% = 490; shipping flat 500 (weight 2200g adds the 2kg surcharge: +200).
	if evaluation.Subtotal != 4900 {
		t.Fatalf("expected subtotal 4900 got %d", evaluation.Subtotal)
	}
	if evaluation.CouponDiscount != 490 {
		t.Fatalf("expected coupon discount 490 got %d", evaluation.CouponDiscount)
	}
	if evaluation.Shipping.Cost != 700 {
		t.Fatalf("expected shipping 700 got %d", evaluation.Shipping.Cost)
	}
	expectedGrand := int64(4900 - 490 + 700)
	if evaluation.GrandTotal != expectedGrand {
		t.Fatalf("expected grand total %d got %d", expectedGrand, evaluation.GrandTotal)
	}
	if evaluation.TotalBase+evaluation.TotalVAT != evaluation.GrandTotal {
		t.Fatalf("base %d + vat %d does not reconcile to %d", evaluation.TotalBase, evaluation.TotalVAT, evaluation.GrandTotal)
	}
	if evaluation.ShippingVATPercent != 21 {
		t.Fatalf("expected shipping vat percent 21 got %d", evaluation.ShippingVATPercent)
	}

	var lineGross int64
	for _, line := range evaluation.Lines {
		lineGross += line.GrossAmount
		if line.GrossAmount != line.BaseAmount+line.VATAmount {
			t.Fatalf("line %s does not reconcile", line.ProductID)
		}
	}
	if lineGross != 4900-490 {
		t.Fatalf("expected discounted line gross %d got %d", 4900-490, lineGross)
	}
}

func TestEvaluateCartFreeShippingUsesPostDiscountBasis(t *testing.T) {
	catalog := &stubCatalogRepository{products: map[string]domain.Product{
		"lote": {ID: "lote", Name: "Lote", BasePrice: 6000, VATPercent: 21, StockQty: 5, WeightGrams: 100},
	}}
	coupons := &stubCouponRepository{coupons: map[string]domain.Coupon{
		"MENOS5": {ID: "c5", Code: "MENOS5", DiscountType: domain.DiscountFixed, Value: 500, Active: true},
	}}
	engine := newTestPricingEngine(t, catalog, &stubPromotionRepository{}, coupons, &stubZoneRepository{zones: []domain.ShippingZone{peninsulaZone()}}, testPricingConfig())

	// 6000 - 500 = 5500 < 6000 threshold, so shipping is charged under the post-discount basis.
	evaluation, err := engine.EvaluateCart(context.Background(), EvaluateCartCommand{
		Items:      []CartItemInput{{ProductID: "lote", Quantity: 1}},
		CouponCode: "MENOS5",
	})
	if err != nil {
		t.Fatalf("EvaluateCart: %v", err)
	}
	if evaluation.Shipping.IsFree {
		t.Fatalf("expected paid shipping under post-discount basis")
	}

	pre := testPricingConfig()
	pre.ThresholdBasis = config.ThresholdBasisPreDiscount
	engine = newTestPricingEngine(t, catalog, &stubPromotionRepository{}, coupons, &stubZoneRepository{zones: []domain.ShippingZone{peninsulaZone()}}, pre)

	evaluation, err = engine.EvaluateCart(context.Background(), EvaluateCartCommand{
		Items:      []CartItemInput{{ProductID: "lote", Quantity: 1}},
		CouponCode: "MENOS5",
	})
	if err != nil {
		t.Fatalf("EvaluateCart: %v", err)
	}
	if !evaluation.Shipping.IsFree {
		t.Fatalf("expected free shipping under pre-discount basis")
	}
	if evaluation.ShippingVATPercent != 0 {
		t.Fatalf("expected no shipping vat percent on free shipping got %d", evaluation.ShippingVATPercent)
	}
}

func TestEvaluateCartRejectedCouponStillPrices(t *testing.T) {
	expired := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	catalog := &stubCatalogRepository{products: map[string]domain.Product{
		"vino": {ID: "vino", Name: "Vino", BasePrice: 1200, VATPercent: 21, StockQty: 10, WeightGrams: 900},
	}}
	coupons := &stubCouponRepository{coupons: map[string]domain.Coupon{
		"CADUCADO": {ID: "c9", Code: "CADUCADO", DiscountType: domain.DiscountPercent, Value: 10, Active: true, EndsAt: &expired},
	}}
	engine := newTestPricingEngine(t, catalog, &stubPromotionRepository{}, coupons, &stubZoneRepository{zones: []domain.ShippingZone{peninsulaZone()}}, testPricingConfig())

	evaluation, err := engine.EvaluateCart(context.Background(), EvaluateCartCommand{
		Items:      []CartItemInput{{ProductID: "vino", Quantity: 1}},
		CouponCode: " caducado ",
	})
	if err != nil {
		t.Fatalf("EvaluateCart: %v", err)
	}
	if !errors.Is(evaluation.CouponError, ErrCouponExpired) {
		t.Fatalf("expected expired rejection carried, got %v", evaluation.CouponError)
	}
	if evaluation.CouponDiscount != 0 || evaluation.CouponID != "" {
		t.Fatalf("expected no discount applied, got %d %q", evaluation.CouponDiscount, evaluation.CouponID)
	}
	if evaluation.CouponCode != "CADUCADO" {
		t.Fatalf("expected normalized code carried, got %q", evaluation.CouponCode)
	}
	if evaluation.Shipping.Cost != 500 {
		t.Fatalf("expected shipping 500 got %d", evaluation.Shipping.Cost)
	}
	if evaluation.GrandTotal != 1700 {
		t.Fatalf("expected fully priced cart 1700 got %d", evaluation.GrandTotal)
	}
	if evaluation.TotalBase+evaluation.TotalVAT != evaluation.GrandTotal {
		t.Fatalf("base %d + vat %d does not reconcile to %d", evaluation.TotalBase, evaluation.TotalVAT, evaluation.GrandTotal)
	}
}

func TestEvaluateCartUnknownCouponStillPrices(t *testing.T) {
	catalog := &stubCatalogRepository{products: map[string]domain.Product{
		"vino": {ID: "vino", Name: "Vino", BasePrice: 1200, VATPercent: 21, StockQty: 10, WeightGrams: 900},
	}}
	engine := newTestPricingEngine(t, catalog, &stubPromotionRepository{}, &stubCouponRepository{coupons: map[string]domain.Coupon{}}, &stubZoneRepository{zones: []domain.ShippingZone{peninsulaZone()}}, testPricingConfig())

	evaluation, err := engine.EvaluateCart(context.Background(), EvaluateCartCommand{
		Items:      []CartItemInput{{ProductID: "vino", Quantity: 1}},
		CouponCode: "NOPE",
	})
	if err != nil {
		t.Fatalf("EvaluateCart: %v", err)
	}
	if !errors.Is(evaluation.CouponError, ErrCouponNotFound) {
		t.Fatalf("expected not-found rejection carried, got %v", evaluation.CouponError)
	}
	if evaluation.GrandTotal != 1700 {
		t.Fatalf("expected fully priced cart 1700 got %d", evaluation.GrandTotal)
	}
}

func TestEvaluateCartCouponStoreFailureIsFatal(t *testing.T) {
	catalog := &stubCatalogRepository{products: map[string]domain.Product{
		"vino": {ID: "vino", Name: "Vino", BasePrice: 1200, VATPercent: 21, StockQty: 10, WeightGrams: 900},
	}}
	coupons := &stubCouponRepository{err: &stubRepoError{unavailable: true}}
	engine := newTestPricingEngine(t, catalog, &stubPromotionRepository{}, coupons, &stubZoneRepository{zones: []domain.ShippingZone{peninsulaZone()}}, testPricingConfig())

	if _, err := engine.EvaluateCart(context.Background(), EvaluateCartCommand{
		Items:      []CartItemInput{{ProductID: "vino", Quantity: 1}},
		CouponCode: "VERANO10",
	}); err == nil {
		t.Fatalf("expected infrastructure failure to abort the evaluation")
	}
}

func TestEvaluateCartGlobalPromotionApplies(t *testing.T) {
	catalog := &stubCatalogRepository{products: map[string]domain.Product{
		"aceite": {ID: "aceite", Name: "Aceite", BasePrice: 1000, VATPercent: 21, StockQty: 4, WeightGrams: 100},
	}}
	promos := &stubPromotionRepository{active: &domain.Promotion{ID: "rebajas", Percent: 20, Active: true}}
	engine := newTestPricingEngine(t, catalog, promos, &stubCouponRepository{}, &stubZoneRepository{zones: []domain.ShippingZone{peninsulaZone()}}, testPricingConfig())

	evaluation, err := engine.EvaluateCart(context.Background(), EvaluateCartCommand{
		Items: []CartItemInput{{ProductID: "aceite", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("EvaluateCart: %v", err)
	}
	line := evaluation.Lines[0]
	if line.UnitEffectivePrice != 800 {
		t.Fatalf("expected promoted price 800 got %d", line.UnitEffectivePrice)
	}
	if line.DiscountSource != domain.DiscountSourceGlobal {
		t.Fatalf("expected global discount source got %s", line.DiscountSource)
	}
}
