package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/arbona-turismo/storefront/internal/domain"
	"github.com/arbona-turismo/storefront/internal/platform/httpx"
	"github.com/arbona-turismo/storefront/internal/repositories"
	"github.com/arbona-turismo/storefront/internal/services"
)

const maxCartRequestBody = 16 * 1024

// PricingHandlers exposes the public cart evaluation endpoint.
type PricingHandlers struct {
	pricing services.PricingEngine
	limiter requestLimiter
}

// PricingOption customises the pricing handlers.
type PricingOption func(*PricingHandlers)

// WithPricingRateLimit bounds evaluate-cart calls per client and window.
func WithPricingRateLimit(limit int, window time.Duration) PricingOption {
	return func(h *PricingHandlers) {
		h.limiter = newWindowLimiter(limit, window, nil)
	}
}

// NewPricingHandlers constructs the cart pricing handlers.
func NewPricingHandlers(pricing services.PricingEngine, opts ...PricingOption) *PricingHandlers {
	h := &PricingHandlers{pricing: pricing}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes registers pricing endpoints under the provided router.
func (h *PricingHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/evaluate-cart", h.evaluateCart)
}

type cartItemPayload struct {
	ProductID string `json:"productId"`
	Quantity  int64  `json:"quantity"`
}

type destinationPayload struct {
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type cartRequest struct {
	Items       []cartItemPayload  `json:"items"`
	CouponCode  string             `json:"couponCode"`
	Destination destinationPayload `json:"destination"`
}

type cartLinePayload struct {
	ProductID          string `json:"productId"`
	ProductName        string `json:"productName"`
	Quantity           int64  `json:"quantity"`
	UnitBasePrice      int64  `json:"unitBasePrice"`
	UnitEffectivePrice int64  `json:"unitEffectivePrice"`
	DiscountSource     string `json:"discountSource"`
	VATPercent         int64  `json:"vatPercent"`
	VATExempt          bool   `json:"vatExempt"`
	GrossAmount        int64  `json:"grossAmount"`
	BaseAmount         int64  `json:"baseAmount"`
	VATAmount          int64  `json:"vatAmount"`
}

type cartCouponPayload struct {
	Code     string `json:"code"`
	Discount int64  `json:"discount"`
	Rejected string `json:"rejected,omitempty"`
}

type cartShippingPayload struct {
	Cost       int64  `json:"cost"`
	Free       bool   `json:"free"`
	ZoneID     string `json:"zoneId"`
	ZoneName   string `json:"zoneName"`
	VATExempt  bool   `json:"vatExempt"`
	VATPercent int64  `json:"vatPercent"`
	Base       int64  `json:"base"`
	VAT        int64  `json:"vat"`
}

type cartEvaluationResponse struct {
	Lines      []cartLinePayload   `json:"lines"`
	Subtotal   int64               `json:"subtotal"`
	Coupon     *cartCouponPayload  `json:"coupon,omitempty"`
	Shipping   cartShippingPayload `json:"shipping"`
	TotalBase  int64               `json:"totalBase"`
	TotalVAT   int64               `json:"totalVat"`
	GrandTotal int64               `json:"grandTotal"`
}

func (h *PricingHandlers) evaluateCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.pricing == nil {
		httpx.WriteError(ctx, w, httpx.NewError("pricing_unavailable", "pricing engine unavailable", http.StatusServiceUnavailable))
		return
	}
	if h.limiter != nil && !h.limiter.Allow(clientKey(r)) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many pricing requests", http.StatusTooManyRequests))
		return
	}

	cmd, ok := decodeCartCommand(ctx, w, r)
	if !ok {
		return
	}

	evaluation, err := h.pricing.EvaluateCart(ctx, cmd)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartEvaluationResponse(evaluation))
}

func decodeCartCommand(ctx context.Context, w http.ResponseWriter, r *http.Request) (services.EvaluateCartCommand, bool) {
	body, err := readLimitedBody(r, maxCartRequestBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return services.EvaluateCartCommand{}, false
	}

	var req cartRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return services.EvaluateCartCommand{}, false
	}

	items := make([]services.CartItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, services.CartItemInput{
			ProductID: strings.TrimSpace(item.ProductID),
			Quantity:  item.Quantity,
		})
	}
	return services.EvaluateCartCommand{
		Items:      items,
		CouponCode: strings.TrimSpace(req.CouponCode),
		Destination: domain.Destination{
			PostalCode: strings.TrimSpace(req.Destination.PostalCode),
			Country:    strings.TrimSpace(req.Destination.Country),
		},
	}, true
}

func buildCartEvaluationResponse(evaluation services.CartEvaluation) cartEvaluationResponse {
	lines := make([]cartLinePayload, 0, len(evaluation.Lines))
	for _, line := range evaluation.Lines {
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

	response := cartEvaluationResponse{
		Lines:    lines,
		Subtotal: evaluation.Subtotal,
		Shipping: cartShippingPayload{
			Cost:       evaluation.Shipping.Cost,
			Free:       evaluation.Shipping.IsFree,
			ZoneID:     evaluation.Shipping.ZoneID,
			ZoneName:   evaluation.Shipping.ZoneName,
			VATExempt:  evaluation.Shipping.VATExempt,
			VATPercent: evaluation.ShippingVATPercent,
			Base:       evaluation.ShippingBase,
			VAT:        evaluation.ShippingVAT,
		},
		TotalBase:  evaluation.TotalBase,
		TotalVAT:   evaluation.TotalVAT,
		GrandTotal: evaluation.GrandTotal,
	}
	if evaluation.CouponCode != "" || evaluation.CouponError != nil {
		response.Coupon = &cartCouponPayload{
			Code:     evaluation.CouponCode,
			Discount: evaluation.CouponDiscount,
			Rejected: couponRejectionCode(evaluation.CouponError),
		}
	}
	return response
}

// couponRejectionCode names a coupon rejection for storefront display.
func couponRejectionCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, services.ErrCouponNotFound):
		return "not_found"
	case errors.Is(err, services.ErrCouponInactive):
		return "inactive"
	case errors.Is(err, services.ErrCouponNotStarted):
		return "not_started"
	case errors.Is(err, services.ErrCouponExpired):
		return "expired"
	case errors.Is(err, services.ErrCouponMinAmount):
		return "below_minimum"
	case errors.Is(err, services.ErrCouponUsageLimit):
		return "usage_limit"
	default:
		return "invalid"
	}
}

// writeCartError maps pricing and checkout failures onto the JSON error envelope.
func writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCartPricingInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_cart", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrUnknownProduct):
		httpx.WriteError(ctx, w, httpx.NewError("unknown_product", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrInsufficientStock):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrCouponNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrCouponInactive),
		errors.Is(err, services.ErrCouponNotStarted),
		errors.Is(err, services.ErrCouponExpired),
		errors.Is(err, services.ErrCouponMinAmount),
		errors.Is(err, services.ErrCouponUsageLimit),
		errors.Is(err, services.ErrCouponInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_rejected", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrNoShippingZone):
		httpx.WriteError(ctx, w, httpx.NewError("shipping_unavailable", err.Error(), http.StatusUnprocessableEntity))
	default:
		if repoErr, ok := err.(repositories.RepositoryError); ok && repoErr.IsUnavailable() {
			httpx.WriteError(ctx, w, httpx.NewError("dependency_unavailable", "storage unavailable", http.StatusServiceUnavailable))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error", http.StatusInternalServerError))
	}
}
