package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/arbona-turismo/storefront/internal/platform/httpx"
	"github.com/arbona-turismo/storefront/internal/repositories"
	"github.com/arbona-turismo/storefront/internal/services"
)

// OrderHandlers exposes checkout and order lookup. Authentication for the group
// is applied at router wiring time.
type OrderHandlers struct {
	checkout services.CheckoutService
}

// NewOrderHandlers constructs the order handlers.
func NewOrderHandlers(checkout services.CheckoutService) *OrderHandlers {
	return &OrderHandlers{checkout: checkout}
}

// Routes registers order endpoints under the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createOrder)
	r.Get("/{orderID}", h.getOrder)
}

type orderPayload struct {
	ID             string              `json:"id"`
	Reference      string              `json:"reference"`
	Lines          []cartLinePayload   `json:"lines"`
	Subtotal       int64               `json:"subtotal"`
	Coupon         *cartCouponPayload  `json:"coupon,omitempty"`
	Shipping       cartShippingPayload `json:"shipping"`
	DestinationZip string              `json:"destinationPostalCode"`
	Country        string              `json:"destinationCountry"`
	TotalBase      int64               `json:"totalBase"`
	TotalVAT       int64               `json:"totalVat"`
	GrandTotal     int64               `json:"grandTotal"`
	CreatedAt      string              `json:"createdAt"`
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return
	}

	cmd, ok := decodeCartCommand(ctx, w, r)
	if !ok {
		return
	}

	order, err := h.checkout.Checkout(ctx, cmd)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildOrderPayload(order))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.checkout.GetOrder(ctx, orderID)
	if err != nil {
		if repoErr, ok := err.(repositories.RepositoryError); ok && repoErr.IsNotFound() {
			httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
			return
		}
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func buildOrderPayload(order services.Order) orderPayload {
	lines := make([]cartLinePayload, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, cartLinePayload{
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

	payload := orderPayload{
		ID:        order.ID,
		Reference: services.FormatOrderNumber(order.Number),
		Lines:     lines,
		Subtotal:  order.Subtotal,
		Shipping: cartShippingPayload{
			Cost:       order.ShippingCost,
			Free:       order.ShippingCost == 0,
			ZoneID:     order.ShippingZoneID,
			ZoneName:   order.ShippingZoneName,
			VATExempt:  order.ShippingCost > 0 && order.ShippingVAT == 0,
			VATPercent: order.ShippingVATPercent,
			Base:       order.ShippingBase,
			VAT:        order.ShippingVAT,
		},
		DestinationZip: order.Destination.PostalCode,
		Country:        order.Destination.Country,
		TotalBase:      order.TotalBase,
		TotalVAT:       order.TotalVAT,
		GrandTotal:     order.GrandTotal,
		CreatedAt:      order.CreatedAt.UTC().Format(time.RFC3339),
	}
	if order.CouponCode != "" {
		payload.Coupon = &cartCouponPayload{
			Code:     order.CouponCode,
			Discount: order.CouponDiscountAmount,
		}
	}
	return payload
}
