package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/arbona-turismo/storefront/internal/domain"
	"github.com/arbona-turismo/storefront/internal/platform/config"
	"github.com/arbona-turismo/storefront/internal/repositories"
)

var (
	// ErrCartPricingInvalidInput signals bad request data such as missing cart items or non-positive quantities.
	ErrCartPricingInvalidInput = errors.New("cart pricing: invalid input")
	// ErrUnknownProduct is returned when a cart references a product that does not exist.
	ErrUnknownProduct = errors.New("cart pricing: unknown product")
	// ErrInsufficientStock is returned when a cart asks for more units than are available.
	ErrInsufficientStock = errors.New("cart pricing: insufficient stock")
)

// CartPricingEngineDeps bundles dependencies required to construct the cart pricing engine.
type CartPricingEngineDeps struct {
	Catalog    repositories.CatalogRepository
	Promotions repositories.PromotionRepository
	Coupons    CouponEngine
	Shipping   ShippingCalculator
	Taxes      TaxBreakdownEngine
	Pricing    config.PricingConfig
	Now        func() time.Time
	Logger     func(context.Context, string, map[string]any)
}

// CartPricingEngine prices carts: effective unit prices, coupon discount, shipping,
// and the VAT breakdown, all reconciling to the cent.
type CartPricingEngine struct {
	catalog    repositories.CatalogRepository
	promotions repositories.PromotionRepository
	coupons    CouponEngine
	shipping   ShippingCalculator
	taxes      TaxBreakdownEngine
	pricing    config.PricingConfig
	now        func() time.Time
	logger     func(context.Context, string, map[string]any)
}

var _ PricingEngine = (*CartPricingEngine)(nil)

// NewCartPricingEngine wires the pricing engine.
func NewCartPricingEngine(deps CartPricingEngineDeps) (*CartPricingEngine, error) {
	if deps.Catalog == nil {
		return nil, errors.New("cart pricing engine: catalog repository is required")
	}
	if deps.Promotions == nil {
		return nil, errors.New("cart pricing engine: promotion repository is required")
	}
	if deps.Coupons == nil {
		return nil, errors.New("cart pricing engine: coupon engine is required")
	}
	if deps.Shipping == nil {
		return nil, errors.New("cart pricing engine: shipping calculator is required")
	}
	if deps.Taxes == nil {
		return nil, errors.New("cart pricing engine: tax engine is required")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &CartPricingEngine{
		catalog:    deps.Catalog,
		promotions: deps.Promotions,
		coupons:    deps.Coupons,
		shipping:   deps.Shipping,
		taxes:      deps.Taxes,
		pricing:    deps.Pricing,
		now: func() time.Time {
			return now().UTC()
		},
		logger: logger,
	}, nil
}

// ResolveUnitPrice returns the effective unit price for a product under the given
// promotion. A product-level discount that actually lowers the price pre-empts the
// global promotion; the two never stack.
func (e *CartPricingEngine) ResolveUnitPrice(ctx context.Context, product Product, promotion *Promotion) (int64, DiscountSource, error) {
	hasOwn, err := product.HasOwnDiscount()
	if err != nil {
		return 0, domain.DiscountSourceNone, err
	}
	if hasOwn {
		price, err := domain.ApplyDiscount(product.BasePrice, *product.OwnDiscount)
		if err != nil {
			return 0, domain.DiscountSourceNone, err
		}
		return price, domain.DiscountSourceProduct, nil
	}
	if promotion != nil && promotion.Percent > 0 {
		price, err := domain.ApplyDiscount(product.BasePrice, domain.Discount{
			Type:  domain.DiscountPercent,
			Value: promotion.Percent,
		})
		if err != nil {
			return 0, domain.DiscountSourceNone, err
		}
		if price < product.BasePrice {
			return price, domain.DiscountSourceGlobal, nil
		}
	}
	return product.BasePrice, domain.DiscountSourceNone, nil
}

// EvaluateCart prices the whole cart. All repository reads happen before the caller
// performs any writes, so the evaluation can run inside a checkout transaction. A
// rejected coupon does not fail the evaluation: the cart is priced without the
// discount and the rejection is carried in CartEvaluation.CouponError.
func (e *CartPricingEngine) EvaluateCart(ctx context.Context, cmd EvaluateCartCommand) (CartEvaluation, error) {
	items, err := mergeCartItems(cmd.Items)
	if err != nil {
		return CartEvaluation{}, err
	}

	productIDs := make([]string, 0, len(items))
	for _, item := range items {
		productIDs = append(productIDs, item.ProductID)
	}
	products, err := e.catalog.FindByIDs(ctx, productIDs)
	if err != nil {
		return CartEvaluation{}, err
	}

	promotion, err := e.activePromotion(ctx)
	if err != nil {
		return CartEvaluation{}, err
	}

	lines := make([]OrderLine, 0, len(items))
	var subtotal, totalWeight int64
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			return CartEvaluation{}, fmt.Errorf("%w: %s", ErrUnknownProduct, item.ProductID)
		}
		if product.StockQty < item.Quantity {
			return CartEvaluation{}, fmt.Errorf("%w: %s has %d of %d units", ErrInsufficientStock, item.ProductID, product.StockQty, item.Quantity)
		}

		unitPrice, source, err := e.ResolveUnitPrice(ctx, product, promotion)
		if err != nil {
			return CartEvaluation{}, err
		}

		gross := unitPrice * item.Quantity
		lines = append(lines, OrderLine{
			ProductID:          product.ID,
			ProductName:        product.Name,
			Quantity:           item.Quantity,
			UnitBasePrice:      product.BasePrice,
			UnitEffectivePrice: unitPrice,
			DiscountSource:     source,
			VATPercent:         product.VATPercent,
			GrossAmount:        gross,
		})
		subtotal += gross
		totalWeight += product.WeightGrams * item.Quantity
	}

	evaluation := CartEvaluation{Subtotal: subtotal}

	if cmd.CouponCode != "" {
		coupon, discount, err := e.coupons.Validate(ctx, cmd.CouponCode, subtotal)
		switch {
		case err == nil:
			evaluation.CouponID = coupon.ID
			evaluation.CouponCode = coupon.Code
			evaluation.CouponDiscount = discount
		case IsCouponRejection(err):
			// A rejected code never blocks the quote: the cart is priced
			// without the discount and the rejection travels with the result.
			evaluation.CouponCode = domain.NormalizeCouponCode(cmd.CouponCode)
			evaluation.CouponError = err
			e.logger(ctx, "cart.coupon_rejected", map[string]any{
				"code":   evaluation.CouponCode,
				"reason": err.Error(),
			})
		default:
			return CartEvaluation{}, err
		}
	}

	threshold := subtotal
	if e.pricing.ThresholdBasis != config.ThresholdBasisPreDiscount {
		threshold = subtotal - evaluation.CouponDiscount
	}
	shipping, err := e.shipping.Calculate(ctx, cmd.Destination, totalWeight, threshold)
	if err != nil {
		return CartEvaluation{}, err
	}
	evaluation.Shipping = shipping

	lines, linesBase, linesVAT, err := e.taxes.BreakdownLines(lines, evaluation.CouponDiscount, shipping.VATExempt)
	if err != nil {
		return CartEvaluation{}, err
	}
	evaluation.Lines = lines
	evaluation.ShippingBase, evaluation.ShippingVAT = e.taxes.ShippingTax(shipping.Cost, shipping.VATExempt)
	if shipping.Cost > 0 && !shipping.VATExempt {
		evaluation.ShippingVATPercent = e.pricing.ShippingVATPercent
	}

	evaluation.TotalBase = linesBase + evaluation.ShippingBase
	evaluation.TotalVAT = linesVAT + evaluation.ShippingVAT
	evaluation.GrandTotal = subtotal - evaluation.CouponDiscount + shipping.Cost

	e.logger(ctx, "cart.evaluated", map[string]any{
		"lines":          len(lines),
		"subtotal":       subtotal,
		"couponDiscount": evaluation.CouponDiscount,
		"shippingCost":   shipping.Cost,
		"grandTotal":     evaluation.GrandTotal,
	})
	return evaluation, nil
}

// activePromotion loads the single active promotion, mapping absence to nil.
func (e *CartPricingEngine) activePromotion(ctx context.Context) (*Promotion, error) {
	promotion, err := e.promotions.FindActive(ctx)
	if err != nil {
		if repoErr, ok := err.(repositories.RepositoryError); ok && repoErr.IsNotFound() {
			return nil, nil
		}
		return nil, err
	}
	return &promotion, nil
}

// mergeCartItems validates the raw cart items and folds duplicate product lines together.
func mergeCartItems(items []CartItemInput) ([]CartItemInput, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", ErrCartPricingInvalidInput)
	}

	merged := make([]CartItemInput, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		if item.ProductID == "" {
			return nil, fmt.Errorf("%w: item without product id", ErrCartPricingInvalidInput)
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity %d for product %s", ErrCartPricingInvalidInput, item.Quantity, item.ProductID)
		}
		if at, ok := index[item.ProductID]; ok {
			merged[at].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged, nil
}
