package domain

import "time"

// DiscountSource records which rule produced a line's effective unit price.
type DiscountSource string

const (
	DiscountSourceNone    DiscountSource = "NONE"
	DiscountSourceProduct DiscountSource = "PRODUCT"
	DiscountSourceGlobal  DiscountSource = "GLOBAL"
)

// OrderLine freezes everything needed to reproduce a line's price at the moment
// the order was placed. Catalog, promotion, and coupon edits after that moment
// never alter it.
type OrderLine struct {
	ProductID          string
	ProductName        string
	Quantity           int64
	UnitBasePrice      int64
	UnitEffectivePrice int64
	DiscountSource     DiscountSource
	VATPercent         int64
	VATExempt          bool
	GrossAmount        int64
	BaseAmount         int64
	VATAmount          int64
}

// Order is an immutable fact once created. Totals reconcile to the cent:
// GrandTotal == TotalBase + TotalVAT == sum of line gross amounts + ShippingCost.
type Order struct {
	ID                   string
	Number               int64
	Lines                []OrderLine
	CouponCode           string
	CouponDiscountAmount int64
	ShippingZoneID       string
	ShippingZoneName     string
	ShippingCost         int64
	ShippingVATPercent   int64
	ShippingBase         int64
	ShippingVAT          int64
	Destination          Destination
	Subtotal             int64
	TotalBase            int64
	TotalVAT             int64
	GrandTotal           int64
	CreatedAt            time.Time
}
