package domain

// Product is the read-only catalog view the pricing engine consumes. The catalog
// itself is owned by the CMS side of the storefront; this engine never writes it.
type Product struct {
	ID          string
	Name        string
	BasePrice   int64
	OwnDiscount *Discount
	VATPercent  int64
	WeightGrams int64
	StockQty    int64
}

// HasOwnDiscount reports whether the product carries a merchant-level discount
// that actually reduces the price. A zero-effect discount does not pre-empt a
// global promotion.
func (p Product) HasOwnDiscount() (bool, error) {
	if p.OwnDiscount == nil {
		return false, nil
	}
	discounted, err := ApplyDiscount(p.BasePrice, *p.OwnDiscount)
	if err != nil {
		return false, err
	}
	return discounted < p.BasePrice, nil
}
