package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/arbona-turismo/storefront/internal/repositories"
)

// orderNumberCounter is the sequence backing human-facing order numbers.
const orderNumberCounter = "orders:number"

// CheckoutServiceDeps bundles dependencies required to construct the checkout service.
type CheckoutServiceDeps struct {
	Registry  repositories.Registry
	Pricing   PricingEngine
	Coupons   CouponEngine
	Publisher OrderEventPublisher
	Now       func() time.Time
	NewID     func() string
	Logger    func(context.Context, string, map[string]any)
}

type checkoutService struct {
	registry  repositories.Registry
	pricing   PricingEngine
	coupons   CouponEngine
	publisher OrderEventPublisher
	now       func() time.Time
	newID     func() string
	logger    func(context.Context, string, map[string]any)
}

var _ CheckoutService = (*checkoutService)(nil)

// NewCheckoutService wires the checkout service.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Registry == nil {
		return nil, errors.New("checkout service: repository registry is required")
	}
	if deps.Pricing == nil {
		return nil, errors.New("checkout service: pricing engine is required")
	}
	if deps.Coupons == nil {
		return nil, errors.New("checkout service: coupon engine is required")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	newID := deps.NewID
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &checkoutService{
		registry:  deps.Registry,
		pricing:   deps.Pricing,
		coupons:   deps.Coupons,
		publisher: deps.Publisher,
		now: func() time.Time {
			return now().UTC()
		},
		newID:  newID,
		logger: logger,
	}, nil
}

// Checkout re-evaluates the cart and persists the order atomically: the cart is
// priced against transactional reads, then the coupon usage, stock decrements,
// and the order document commit together or not at all. The order number is
// drawn before the transaction, so aborted checkouts may leave gaps in the
// sequence; numbers stay unique and ascending regardless.
func (s *checkoutService) Checkout(ctx context.Context, cmd EvaluateCartCommand) (Order, error) {
	number, err := s.registry.Counters().Next(ctx, orderNumberCounter, 1)
	if err != nil {
		return Order{}, err
	}

	var order Order
	err = s.registry.RunInTx(ctx, func(txCtx context.Context) error {
		// Firestore requires every transactional read to happen before the first
		// write; EvaluateCart performs all reads and validates stock and coupon
		// state, so the writes below can be blind.
		evaluation, err := s.pricing.EvaluateCart(txCtx, cmd)
		if err != nil {
			return err
		}
		// Quoting tolerates a rejected coupon; placing an order does not.
		if evaluation.CouponError != nil {
			return evaluation.CouponError
		}

		if evaluation.CouponID != "" {
			if err := s.coupons.Redeem(txCtx, evaluation.CouponID); err != nil {
				return err
			}
		}
		for _, line := range evaluation.Lines {
			if err := s.registry.Catalog().DecrementStock(txCtx, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}

		order = s.buildOrder(number, cmd.Destination, evaluation)
		_, err = s.registry.Orders().Insert(txCtx, order)
		return err
	})
	if err != nil {
		return Order{}, err
	}

	s.logger(ctx, "order.created", map[string]any{
		"orderId":    order.ID,
		"number":     order.Number,
		"grandTotal": order.GrandTotal,
	})
	s.publishOrderCreated(ctx, order)
	return order, nil
}

// GetOrder loads a persisted order by ID.
func (s *checkoutService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	return s.registry.Orders().FindByID(ctx, orderID)
}

func (s *checkoutService) buildOrder(number int64, destination Destination, evaluation CartEvaluation) Order {
	return Order{
		ID:                   s.newID(),
		Number:               number,
		Lines:                evaluation.Lines,
		CouponCode:           evaluation.CouponCode,
		CouponDiscountAmount: evaluation.CouponDiscount,
		ShippingZoneID:       evaluation.Shipping.ZoneID,
		ShippingZoneName:     evaluation.Shipping.ZoneName,
		ShippingCost:         evaluation.Shipping.Cost,
		ShippingVATPercent:   evaluation.ShippingVATPercent,
		ShippingBase:         evaluation.ShippingBase,
		ShippingVAT:          evaluation.ShippingVAT,
		Destination:          destination,
		Subtotal:             evaluation.Subtotal,
		TotalBase:            evaluation.TotalBase,
		TotalVAT:             evaluation.TotalVAT,
		GrandTotal:           evaluation.GrandTotal,
		CreatedAt:            s.now(),
	}
}

// publishOrderCreated emits the order event best-effort; a publish failure never
// rolls back a committed order.
func (s *checkoutService) publishOrderCreated(ctx context.Context, order Order) {
	if s.publisher == nil {
		return
	}
	_, err := s.publisher.PublishOrderCreated(ctx, OrderCreatedMessage{
		OrderID:        order.ID,
		OrderNumber:    FormatOrderNumber(order.Number),
		GrandTotal:     order.GrandTotal,
		CouponCode:     order.CouponCode,
		ShippingZoneID: order.ShippingZoneID,
		LineCount:      len(order.Lines),
		CreatedAt:      order.CreatedAt,
	})
	if err != nil {
		s.logger(ctx, "order.event_publish_failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
	}
}

// FormatOrderNumber renders the human-facing order reference.
func FormatOrderNumber(number int64) string {
	return fmt.Sprintf("ORD-%06d", number)
}
