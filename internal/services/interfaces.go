package services

import (
	"context"
	"time"

	domain "github.com/arbona-turismo/storefront/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Product                 = domain.Product
	Discount                = domain.Discount
	DiscountType            = domain.DiscountType
	DiscountSource          = domain.DiscountSource
	Promotion               = domain.Promotion
	Coupon                  = domain.Coupon
	ShippingZone            = domain.ShippingZone
	WeightTier              = domain.WeightTier
	Destination             = domain.Destination
	ShippingResult          = domain.ShippingResult
	Order                   = domain.Order
	OrderLine               = domain.OrderLine
	SalesReport             = domain.SalesReport
	SalesReportRow          = domain.SalesReportRow
	SalesReportTotals       = domain.SalesReportTotals
	SalesReportProductTotal = domain.SalesReportProductTotal
	SystemHealthReport      = domain.SystemHealthReport
)

// CartItemInput identifies a product and quantity requested by the storefront.
type CartItemInput struct {
	ProductID string
	Quantity  int64
}

// EvaluateCartCommand carries everything needed to price a cart.
type EvaluateCartCommand struct {
	Items       []CartItemInput
	CouponCode  string
	Destination Destination
}

// CartEvaluation is the fully priced view of a cart: effective line prices, the
// coupon discount, shipping, and the VAT breakdown. Amounts are euro cents.
type CartEvaluation struct {
	Lines              []OrderLine
	Subtotal           int64
	CouponID           string
	CouponCode         string
	CouponDiscount     int64
	Shipping           ShippingResult
	ShippingVATPercent int64
	ShippingBase       int64
	ShippingVAT        int64
	TotalBase          int64
	TotalVAT           int64
	GrandTotal         int64
	// CouponError carries the rejection when the submitted code could not be
	// applied; the cart is still fully priced with a zero coupon discount.
	CouponError error
}

// PricingEngine resolves effective prices and evaluates whole carts.
type PricingEngine interface {
	ResolveUnitPrice(ctx context.Context, product Product, promotion *Promotion) (int64, DiscountSource, error)
	EvaluateCart(ctx context.Context, cmd EvaluateCartCommand) (CartEvaluation, error)
}

// CouponEngine validates coupon codes against a cart amount and redeems usages.
type CouponEngine interface {
	// Validate resolves the coupon for code and returns the discount it grants on
	// cartAmount. Rejections surface as the ErrCoupon* sentinels.
	Validate(ctx context.Context, code string, cartAmount int64) (Coupon, int64, error)
	// Redeem consumes one usage of the coupon. Inside a unit-of-work transaction
	// the redemption commits atomically with the rest of the checkout.
	Redeem(ctx context.Context, couponID string) error
}

// ShippingCalculator resolves the shipping cost for a destination and cart weight.
// thresholdAmount is the cart amount compared against free-shipping thresholds.
type ShippingCalculator interface {
	Calculate(ctx context.Context, destination Destination, totalWeightGrams, thresholdAmount int64) (ShippingResult, error)
}

// TaxBreakdownEngine splits VAT-inclusive amounts into taxable base and VAT quota.
type TaxBreakdownEngine interface {
	// BreakdownLines distributes couponDiscount proportionally across the lines,
	// fills each line's gross/base/VAT amounts, and returns the base and VAT totals.
	BreakdownLines(lines []OrderLine, couponDiscount int64, vatExempt bool) ([]OrderLine, int64, int64, error)
	// ShippingTax splits a VAT-inclusive shipping cost into base and quota.
	ShippingTax(cost int64, vatExempt bool) (base int64, vat int64)
}

// CheckoutService turns a cart into a persisted order, redeeming the coupon and
// decrementing stock in the same transaction.
type CheckoutService interface {
	Checkout(ctx context.Context, cmd EvaluateCartCommand) (Order, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
}

// UpsertPromotionCommand carries admin input for creating or updating a promotion.
type UpsertPromotionCommand struct {
	ID          string
	Title       string
	Percent     int64
	Description string
}

// PromotionAdminService manages storewide promotions and the exclusive-activation rule.
type PromotionAdminService interface {
	Create(ctx context.Context, cmd UpsertPromotionCommand) (Promotion, error)
	Update(ctx context.Context, cmd UpsertPromotionCommand) (Promotion, error)
	Delete(ctx context.Context, promotionID string) error
	Get(ctx context.Context, promotionID string) (Promotion, error)
	List(ctx context.Context) ([]Promotion, error)
	Activate(ctx context.Context, promotionID string) (Promotion, error)
	Deactivate(ctx context.Context, promotionID string) (Promotion, error)
	Active(ctx context.Context) (*Promotion, error)
}

// UpsertCouponCommand carries admin input for creating or updating a coupon.
type UpsertCouponCommand struct {
	ID           string
	Code         string
	DiscountType string
	Value        int64
	Active       bool
	StartsAt     *time.Time
	EndsAt       *time.Time
	MinAmount    *int64
	UsageLimit   *int64
}

// CouponAdminService manages coupon definitions.
type CouponAdminService interface {
	Create(ctx context.Context, cmd UpsertCouponCommand) (Coupon, error)
	Update(ctx context.Context, cmd UpsertCouponCommand) (Coupon, error)
	Delete(ctx context.Context, couponID string) error
	Get(ctx context.Context, couponID string) (Coupon, error)
	List(ctx context.Context) ([]Coupon, error)
}

// ShippingZoneAdminService manages the shipping zone tariff table.
type ShippingZoneAdminService interface {
	Create(ctx context.Context, cmd UpsertShippingZoneCommand) (ShippingZone, error)
	Update(ctx context.Context, cmd UpsertShippingZoneCommand) (ShippingZone, error)
	Delete(ctx context.Context, zoneID string) error
	Get(ctx context.Context, zoneID string) (ShippingZone, error)
	List(ctx context.Context) ([]ShippingZone, error)
}

// UpsertShippingZoneCommand carries admin input for creating or updating a zone.
type UpsertShippingZoneCommand struct {
	ID             string
	Name           string
	PostalPrefixes []string
	Countries      []string
	FlatRate       int64
	WeightTiers    []WeightTier
	FreeOverAmount *int64
	VATExempt      bool
	IsDefault      bool
	Priority       int64
}

// ReportService aggregates orders into period sales reports and exports them.
type ReportService interface {
	SalesReport(ctx context.Context, from, to time.Time) (SalesReport, error)
	SalesReportCSV(ctx context.Context, from, to time.Time) ([]byte, error)
	// ExportSalesReport writes the CSV to the configured bucket and returns the object name.
	ExportSalesReport(ctx context.Context, from, to time.Time) (string, error)
}

// SystemService reports dependency health for readiness probes.
type SystemService interface {
	Health(ctx context.Context) (SystemHealthReport, error)
}

// OrderCreatedMessage is the payload published after a checkout commits.
type OrderCreatedMessage struct {
	OrderID        string    `json:"orderId"`
	OrderNumber    string    `json:"orderNumber"`
	GrandTotal     int64     `json:"grandTotal"`
	CouponCode     string    `json:"couponCode,omitempty"`
	ShippingZoneID string    `json:"shippingZoneId,omitempty"`
	LineCount      int       `json:"lineCount"`
	CreatedAt      time.Time `json:"createdAt"`
}

// OrderEventPublisher publishes order lifecycle events.
type OrderEventPublisher interface {
	PublishOrderCreated(ctx context.Context, message OrderCreatedMessage) (string, error)
}
