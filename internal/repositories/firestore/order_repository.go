package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/arbona-turismo/storefront/internal/domain"
	pfirestore "github.com/arbona-turismo/storefront/internal/platform/firestore"
	"github.com/arbona-turismo/storefront/internal/repositories"
)

const ordersCollection = "orders"

type orderLineDocument struct {
	ProductID          string `firestore:"product_id"`
	ProductName        string `firestore:"product_name"`
	Quantity           int64  `firestore:"quantity"`
	UnitBasePrice      int64  `firestore:"unit_base_price"`
	UnitEffectivePrice int64  `firestore:"unit_effective_price"`
	DiscountSource     string `firestore:"discount_source"`
	VATPercent         int64  `firestore:"vat_percent"`
	VATExempt          bool   `firestore:"vat_exempt"`
	GrossAmount        int64  `firestore:"gross_amount"`
	BaseAmount         int64  `firestore:"base_amount"`
	VATAmount          int64  `firestore:"vat_amount"`
}

type orderDocument struct {
	Number               int64               `firestore:"number"`
	Lines                []orderLineDocument `firestore:"lines"`
	CouponCode           string              `firestore:"coupon_code"`
	CouponDiscountAmount int64               `firestore:"coupon_discount_amount"`
	ShippingZoneID       string              `firestore:"shipping_zone_id"`
	ShippingZoneName     string              `firestore:"shipping_zone_name"`
	ShippingCost         int64               `firestore:"shipping_cost"`
	ShippingVATPercent   int64               `firestore:"shipping_vat_percent"`
	ShippingBase         int64               `firestore:"shipping_base"`
	ShippingVAT          int64               `firestore:"shipping_vat"`
	PostalCode           string              `firestore:"postal_code"`
	Country              string              `firestore:"country"`
	Subtotal             int64               `firestore:"subtotal"`
	TotalBase            int64               `firestore:"total_base"`
	TotalVAT             int64               `firestore:"total_vat"`
	GrandTotal           int64               `firestore:"grand_total"`
	CreatedAt            time.Time           `firestore:"created_at"`
}

func orderToDocument(order domain.Order) orderDocument {
	lines := make([]orderLineDocument, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, orderLineDocument{
			ProductID:          line.ProductID,
			ProductName:        line.ProductName,
			Quantity:           line.Quantity,
			UnitBasePrice:      line.UnitBasePrice,
			UnitEffectivePrice: line.UnitEffectivePrice,
			DiscountSource:     string(line.DiscountSource),
			VATPercent:         line.VATPercent,
			VATExempt:          line.VATExempt,
			GrossAmount:        line.GrossAmount,
			BaseAmount:         line.BaseAmount,
			VATAmount:          line.VATAmount,
		})
	}
	return orderDocument{
		Number:               order.Number,
		Lines:                lines,
		CouponCode:           order.CouponCode,
		CouponDiscountAmount: order.CouponDiscountAmount,
		ShippingZoneID:       order.ShippingZoneID,
		ShippingZoneName:     order.ShippingZoneName,
		ShippingCost:         order.ShippingCost,
		ShippingVATPercent:   order.ShippingVATPercent,
		ShippingBase:         order.ShippingBase,
		ShippingVAT:          order.ShippingVAT,
		PostalCode:           order.Destination.PostalCode,
		Country:              order.Destination.Country,
		Subtotal:             order.Subtotal,
		TotalBase:            order.TotalBase,
		TotalVAT:             order.TotalVAT,
		GrandTotal:           order.GrandTotal,
		CreatedAt:            order.CreatedAt,
	}
}

func (d orderDocument) toDomain(id string) domain.Order {
	lines := make([]domain.OrderLine, 0, len(d.Lines))
	for _, line := range d.Lines {
		lines = append(lines, domain.OrderLine{
			ProductID:          line.ProductID,
			ProductName:        line.ProductName,
			Quantity:           line.Quantity,
			UnitBasePrice:      line.UnitBasePrice,
			UnitEffectivePrice: line.UnitEffectivePrice,
			DiscountSource:     domain.DiscountSource(line.DiscountSource),
			VATPercent:         line.VATPercent,
			VATExempt:          line.VATExempt,
			GrossAmount:        line.GrossAmount,
			BaseAmount:         line.BaseAmount,
			VATAmount:          line.VATAmount,
		})
	}
	return domain.Order{
		ID:                   id,
		Number:               d.Number,
		Lines:                lines,
		CouponCode:           d.CouponCode,
		CouponDiscountAmount: d.CouponDiscountAmount,
		ShippingZoneID:       d.ShippingZoneID,
		ShippingZoneName:     d.ShippingZoneName,
		ShippingCost:         d.ShippingCost,
		ShippingVATPercent:   d.ShippingVATPercent,
		ShippingBase:         d.ShippingBase,
		ShippingVAT:          d.ShippingVAT,
		Destination: domain.Destination{
			PostalCode: d.PostalCode,
			Country:    d.Country,
		},
		Subtotal:   d.Subtotal,
		TotalBase:  d.TotalBase,
		TotalVAT:   d.TotalVAT,
		GrandTotal: d.GrandTotal,
		CreatedAt:  d.CreatedAt,
	}
}

// OrderRepository implements repositories.OrderRepository backed by Firestore.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.BaseRepository[orderDocument]
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider: provider,
		orders:   pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil),
	}, nil
}

// Insert creates a new order document, joining an ambient transaction when present.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	ref, err := r.orders.DocumentRef(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}

	doc := orderToDocument(order)
	if tx, ok := pfirestore.TxFromContext(ctx); ok {
		if err := tx.Create(ref, doc); err != nil {
			return domain.Order{}, pfirestore.WrapError("orders.insert", err)
		}
		return order, nil
	}

	if _, err := ref.Create(ctx, doc); err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.insert", err)
	}
	return order, nil
}

// FindByID loads an order by ID.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.orders.Get(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// ListBetween returns orders created in the half-open interval [from, to), oldest first.
func (r *OrderRepository) ListBetween(ctx context.Context, from, to time.Time) ([]domain.Order, error) {
	docs, err := r.orders.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("created_at", ">=", from.UTC()).
			Where("created_at", "<", to.UTC()).
			OrderBy("created_at", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, doc.Data.toDomain(doc.ID))
	}
	return orders, nil
}
