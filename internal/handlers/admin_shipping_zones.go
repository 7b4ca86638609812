package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/arbona-turismo/storefront/internal/domain"
	"github.com/arbona-turismo/storefront/internal/platform/httpx"
	"github.com/arbona-turismo/storefront/internal/services"
)

// ShippingZoneAdminHandlers manages the shipping zone tariff table.
type ShippingZoneAdminHandlers struct {
	zones services.ShippingZoneAdminService
}

// NewShippingZoneAdminHandlers constructs the shipping zone admin handlers.
func NewShippingZoneAdminHandlers(zones services.ShippingZoneAdminService) *ShippingZoneAdminHandlers {
	return &ShippingZoneAdminHandlers{zones: zones}
}

// Routes registers shipping zone admin endpoints under the provided router.
func (h *ShippingZoneAdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/shipping-zones", func(group chi.Router) {
		group.Get("/", h.list)
		group.Post("/", h.create)
		group.Get("/{zoneID}", h.get)
		group.Put("/{zoneID}", h.update)
		group.Delete("/{zoneID}", h.delete)
	})
}

type weightTierPayload struct {
	MaxWeightGrams int64 `json:"maxWeightGrams"`
	Surcharge      int64 `json:"surcharge"`
}

type shippingZoneRequest struct {
	Name           string              `json:"name"`
	PostalPrefixes []string            `json:"postalPrefixes"`
	Countries      []string            `json:"countries"`
	FlatRate       int64               `json:"flatRate"`
	WeightTiers    []weightTierPayload `json:"weightTiers"`
	FreeOverAmount *int64              `json:"freeOverAmount"`
	VATExempt      bool                `json:"vatExempt"`
	IsDefault      bool                `json:"isDefault"`
	Priority       int64               `json:"priority"`
}

type shippingZonePayload struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	PostalPrefixes []string            `json:"postalPrefixes,omitempty"`
	Countries      []string            `json:"countries,omitempty"`
	FlatRate       int64               `json:"flatRate"`
	WeightTiers    []weightTierPayload `json:"weightTiers,omitempty"`
	FreeOverAmount *int64              `json:"freeOverAmount,omitempty"`
	VATExempt      bool                `json:"vatExempt"`
	IsDefault      bool                `json:"isDefault"`
	Priority       int64               `json:"priority"`
}

func buildShippingZonePayload(zone services.ShippingZone) shippingZonePayload {
	tiers := make([]weightTierPayload, 0, len(zone.WeightTiers))
	for _, tier := range zone.WeightTiers {
		tiers = append(tiers, weightTierPayload{MaxWeightGrams: tier.MaxWeightGrams, Surcharge: tier.Surcharge})
	}
	return shippingZonePayload{
		ID:             zone.ID,
		Name:           zone.Name,
		PostalPrefixes: zone.PostalPrefixes,
		Countries:      zone.Countries,
		FlatRate:       zone.FlatRate,
		WeightTiers:    tiers,
		FreeOverAmount: zone.FreeOverAmount,
		VATExempt:      zone.VATExempt,
		IsDefault:      zone.IsDefault,
		Priority:       zone.Priority,
	}
}

func (h *ShippingZoneAdminHandlers) decode(ctx context.Context, w http.ResponseWriter, r *http.Request) (shippingZoneRequest, bool) {
	var req shippingZoneRequest
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

func zoneCommandFromRequest(id string, req shippingZoneRequest) services.UpsertShippingZoneCommand {
	tiers := make([]domain.WeightTier, 0, len(req.WeightTiers))
	for _, tier := range req.WeightTiers {
		tiers = append(tiers, domain.WeightTier{MaxWeightGrams: tier.MaxWeightGrams, Surcharge: tier.Surcharge})
	}
	return services.UpsertShippingZoneCommand{
		ID:             id,
		Name:           req.Name,
		PostalPrefixes: req.PostalPrefixes,
		Countries:      req.Countries,
		FlatRate:       req.FlatRate,
		WeightTiers:    tiers,
		FreeOverAmount: req.FreeOverAmount,
		VATExempt:      req.VATExempt,
		IsDefault:      req.IsDefault,
		Priority:       req.Priority,
	}
}

func (h *ShippingZoneAdminHandlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := h.decode(ctx, w, r)
	if !ok {
		return
	}

	zone, err := h.zones.Create(ctx, zoneCommandFromRequest("", req))
	if err != nil {
		writeShippingZoneError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildShippingZonePayload(zone))
}

func (h *ShippingZoneAdminHandlers) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	zoneID, ok := pathID(ctx, w, r, "zoneID")
	if !ok {
		return
	}
	req, ok := h.decode(ctx, w, r)
	if !ok {
		return
	}

	zone, err := h.zones.Update(ctx, zoneCommandFromRequest(zoneID, req))
	if err != nil {
		writeShippingZoneError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildShippingZonePayload(zone))
}

func (h *ShippingZoneAdminHandlers) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	zoneID, ok := pathID(ctx, w, r, "zoneID")
	if !ok {
		return
	}
	if err := h.zones.Delete(ctx, zoneID); err != nil {
		writeShippingZoneError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ShippingZoneAdminHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	zoneID, ok := pathID(ctx, w, r, "zoneID")
	if !ok {
		return
	}
	zone, err := h.zones.Get(ctx, zoneID)
	if err != nil {
		writeShippingZoneError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildShippingZonePayload(zone))
}

func (h *ShippingZoneAdminHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	zones, err := h.zones.List(ctx)
	if err != nil {
		writeShippingZoneError(ctx, w, err)
		return
	}
	payload := make([]shippingZonePayload, 0, len(zones))
	for _, zone := range zones {
		payload = append(payload, buildShippingZonePayload(zone))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"zones": payload})
}

func writeShippingZoneError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrShippingZoneInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_shipping_zone", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrShippingZoneNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("shipping_zone_not_found", "shipping zone not found", http.StatusNotFound))
	default:
		writeAdminInternalError(ctx, w, err)
	}
}
