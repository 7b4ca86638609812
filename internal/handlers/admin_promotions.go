package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/arbona-turismo/storefront/internal/platform/httpx"
	"github.com/arbona-turismo/storefront/internal/repositories"
	"github.com/arbona-turismo/storefront/internal/services"
)

const maxAdminRequestBody = 32 * 1024

// PromotionAdminHandlers manages storewide promotions, including the
// exclusive activation transition.
type PromotionAdminHandlers struct {
	promotions services.PromotionAdminService
}

// NewPromotionAdminHandlers constructs the promotion admin handlers.
func NewPromotionAdminHandlers(promotions services.PromotionAdminService) *PromotionAdminHandlers {
	return &PromotionAdminHandlers{promotions: promotions}
}

// Routes registers promotion admin endpoints under the provided router.
func (h *PromotionAdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/promotions", func(group chi.Router) {
		group.Get("/", h.list)
		group.Post("/", h.create)
		group.Get("/active", h.active)
		group.Get("/{promotionID}", h.get)
		group.Put("/{promotionID}", h.update)
		group.Delete("/{promotionID}", h.delete)
		group.Post("/{promotionID}/activate", h.activate)
		group.Post("/{promotionID}/deactivate", h.deactivate)
	})
}

type promotionRequest struct {
	Title       string `json:"title"`
	Percent     int64  `json:"percent"`
	Description string `json:"description"`
}

type promotionPayload struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Percent     int64  `json:"percent"`
	Description string `json:"description,omitempty"`
	Active      bool   `json:"active"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

func buildPromotionPayload(promotion services.Promotion) promotionPayload {
	return promotionPayload{
		ID:          promotion.ID,
		Title:       promotion.Title,
		Percent:     promotion.Percent,
		Description: promotion.Description,
		Active:      promotion.Active,
		CreatedAt:   formatTime(promotion.CreatedAt),
		UpdatedAt:   formatTime(promotion.UpdatedAt),
	}
}

func (h *PromotionAdminHandlers) decode(ctx context.Context, w http.ResponseWriter, r *http.Request) (promotionRequest, bool) {
	var req promotionRequest
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

func (h *PromotionAdminHandlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := h.decode(ctx, w, r)
	if !ok {
		return
	}

	promotion, err := h.promotions.Create(ctx, services.UpsertPromotionCommand{
		Title:       req.Title,
		Percent:     req.Percent,
		Description: req.Description,
	})
	if err != nil {
		writePromotionError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildPromotionPayload(promotion))
}

func (h *PromotionAdminHandlers) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	promotionID, ok := pathID(ctx, w, r, "promotionID")
	if !ok {
		return
	}
	req, ok := h.decode(ctx, w, r)
	if !ok {
		return
	}

	promotion, err := h.promotions.Update(ctx, services.UpsertPromotionCommand{
		ID:          promotionID,
		Title:       req.Title,
		Percent:     req.Percent,
		Description: req.Description,
	})
	if err != nil {
		writePromotionError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildPromotionPayload(promotion))
}

func (h *PromotionAdminHandlers) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	promotionID, ok := pathID(ctx, w, r, "promotionID")
	if !ok {
		return
	}
	if err := h.promotions.Delete(ctx, promotionID); err != nil {
		writePromotionError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PromotionAdminHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	promotionID, ok := pathID(ctx, w, r, "promotionID")
	if !ok {
		return
	}
	promotion, err := h.promotions.Get(ctx, promotionID)
	if err != nil {
		writePromotionError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildPromotionPayload(promotion))
}

func (h *PromotionAdminHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	promotions, err := h.promotions.List(ctx)
	if err != nil {
		writePromotionError(ctx, w, err)
		return
	}
	payload := make([]promotionPayload, 0, len(promotions))
	for _, promotion := range promotions {
		payload = append(payload, buildPromotionPayload(promotion))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"promotions": payload})
}

func (h *PromotionAdminHandlers) active(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	promotion, err := h.promotions.Active(ctx)
	if err != nil {
		writePromotionError(ctx, w, err)
		return
	}
	if promotion == nil {
		writeJSONResponse(w, http.StatusOK, map[string]any{"promotion": nil})
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"promotion": buildPromotionPayload(*promotion)})
}

func (h *PromotionAdminHandlers) activate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	promotionID, ok := pathID(ctx, w, r, "promotionID")
	if !ok {
		return
	}
	promotion, err := h.promotions.Activate(ctx, promotionID)
	if err != nil {
		writePromotionError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildPromotionPayload(promotion))
}

func (h *PromotionAdminHandlers) deactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	promotionID, ok := pathID(ctx, w, r, "promotionID")
	if !ok {
		return
	}
	promotion, err := h.promotions.Deactivate(ctx, promotionID)
	if err != nil {
		writePromotionError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildPromotionPayload(promotion))
}

func writePromotionError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrPromotionInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_promotion", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrPromotionNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("promotion_not_found", "promotion not found", http.StatusNotFound))
	default:
		writeAdminInternalError(ctx, w, err)
	}
}

func pathID(ctx context.Context, w http.ResponseWriter, r *http.Request, param string) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, param))
	if id == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", param+" is required", http.StatusBadRequest))
		return "", false
	}
	return id, true
}

func writeAdminBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, errBodyTooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
}

func writeAdminInternalError(ctx context.Context, w http.ResponseWriter, err error) {
	if repoErr, ok := err.(repositories.RepositoryError); ok && repoErr.IsUnavailable() {
		httpx.WriteError(ctx, w, httpx.NewError("dependency_unavailable", "storage unavailable", http.StatusServiceUnavailable))
		return
	}
	httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error", http.StatusInternalServerError))
}
