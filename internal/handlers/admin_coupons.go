package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/arbona-turismo/storefront/internal/platform/httpx"
	"github.com/arbona-turismo/storefront/internal/services"
)

// CouponAdminHandlers manages coupon definitions.
type CouponAdminHandlers struct {
	coupons services.CouponAdminService
}

// NewCouponAdminHandlers constructs the coupon admin handlers.
func NewCouponAdminHandlers(coupons services.CouponAdminService) *CouponAdminHandlers {
	return &CouponAdminHandlers{coupons: coupons}
}

// Routes registers coupon admin endpoints under the provided router.
func (h *CouponAdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/coupons", func(group chi.Router) {
		group.Get("/", h.list)
		group.Post("/", h.create)
		group.Get("/{couponID}", h.get)
		group.Put("/{couponID}", h.update)
		group.Delete("/{couponID}", h.delete)
	})
}

type couponRequest struct {
	Code         string     `json:"code"`
	DiscountType string     `json:"discountType"`
	Value        int64      `json:"value"`
	Active       bool       `json:"active"`
	StartsAt     *time.Time `json:"startsAt"`
	EndsAt       *time.Time `json:"endsAt"`
	MinAmount    *int64     `json:"minAmount"`
	UsageLimit   *int64     `json:"usageLimit"`
}

type couponPayload struct {
	ID           string `json:"id"`
	Code         string `json:"code"`
	DiscountType string `json:"discountType"`
	Value        int64  `json:"value"`
	Active       bool   `json:"active"`
	StartsAt     string `json:"startsAt,omitempty"`
	EndsAt       string `json:"endsAt,omitempty"`
	MinAmount    *int64 `json:"minAmount,omitempty"`
	UsageLimit   *int64 `json:"usageLimit,omitempty"`
	UsedCount    int64  `json:"usedCount"`
	CreatedAt    string `json:"createdAt,omitempty"`
	UpdatedAt    string `json:"updatedAt,omitempty"`
}

func buildCouponPayload(coupon services.Coupon) couponPayload {
	payload := couponPayload{
		ID:           coupon.ID,
		Code:         coupon.Code,
		DiscountType: string(coupon.DiscountType),
		Value:        coupon.Value,
		Active:       coupon.Active,
		MinAmount:    coupon.MinAmount,
		UsageLimit:   coupon.UsageLimit,
		UsedCount:    coupon.UsedCount,
		CreatedAt:    formatTime(coupon.CreatedAt),
		UpdatedAt:    formatTime(coupon.UpdatedAt),
	}
	if coupon.StartsAt != nil {
		payload.StartsAt = formatTime(*coupon.StartsAt)
	}
	if coupon.EndsAt != nil {
		payload.EndsAt = formatTime(*coupon.EndsAt)
	}
	return payload
}

func (h *CouponAdminHandlers) decode(ctx context.Context, w http.ResponseWriter, r *http.Request) (couponRequest, bool) {
	var req couponRequest
	body, err := readLimitedBody(r, maxAdminRequestBody)
	if err != nil {
		writeAdminBodyError(ctx, w, err)
		return req, false
	}
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return req, false
	}
	return req, true
}

func couponCommandFromRequest(id string, req couponRequest) services.UpsertCouponCommand {
	return services.UpsertCouponCommand{
		ID:           id,
		Code:         req.Code,
		DiscountType: req.DiscountType,
		Value:        req.Value,
		Active:       req.Active,
		StartsAt:     req.StartsAt,
		EndsAt:       req.EndsAt,
		MinAmount:    req.MinAmount,
		UsageLimit:   req.UsageLimit,
	}
}

func (h *CouponAdminHandlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := h.decode(ctx, w, r)
	if !ok {
		return
	}

	coupon, err := h.coupons.Create(ctx, couponCommandFromRequest("", req))
	if err != nil {
		writeCouponAdminError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildCouponPayload(coupon))
}

func (h *CouponAdminHandlers) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	couponID, ok := pathID(ctx, w, r, "couponID")
	if !ok {
		return
	}
	req, ok := h.decode(ctx, w, r)
	if !ok {
		return
	}

	coupon, err := h.coupons.Update(ctx, couponCommandFromRequest(couponID, req))
	if err != nil {
		writeCouponAdminError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCouponPayload(coupon))
}

func (h *CouponAdminHandlers) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	couponID, ok := pathID(ctx, w, r, "couponID")
	if !ok {
		return
	}
	if err := h.coupons.Delete(ctx, couponID); err != nil {
		writeCouponAdminError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CouponAdminHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	couponID, ok := pathID(ctx, w, r, "couponID")
	if !ok {
		return
	}
	coupon, err := h.coupons.Get(ctx, couponID)
	if err != nil {
		writeCouponAdminError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCouponPayload(coupon))
}

func (h *CouponAdminHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	coupons, err := h.coupons.List(ctx)
	if err != nil {
		writeCouponAdminError(ctx, w, err)
		return
	}
	payload := make([]couponPayload, 0, len(coupons))
	for _, coupon := range coupons {
		payload = append(payload, buildCouponPayload(coupon))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"coupons": payload})
}

func writeCouponAdminError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCouponInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_coupon", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCouponCodeTaken):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_code_taken", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrCouponNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_not_found", "coupon not found", http.StatusNotFound))
	default:
		writeAdminInternalError(ctx, w, err)
	}
}
