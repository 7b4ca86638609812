package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/arbona-turismo/storefront/internal/services"
)

type stubShippingZoneAdminService struct {
	createFunc func(ctx context.Context, cmd services.UpsertShippingZoneCommand) (services.ShippingZone, error)
	updateFunc func(ctx context.Context, cmd services.UpsertShippingZoneCommand) (services.ShippingZone, error)
	deleteFunc func(ctx context.Context, zoneID string) error
	getFunc    func(ctx context.Context, zoneID string) (services.ShippingZone, error)
	listFunc   func(ctx context.Context) ([]services.ShippingZone, error)
}

func (s *stubShippingZoneAdminService) Create(ctx context.Context, cmd services.UpsertShippingZoneCommand) (services.ShippingZone, error) {
	if s.createFunc != nil {
		return s.createFunc(ctx, cmd)
	}
	return services.ShippingZone{}, errors.New("not implemented")
}

func (s *stubShippingZoneAdminService) Update(ctx context.Context, cmd services.UpsertShippingZoneCommand) (services.ShippingZone, error) {
	if s.updateFunc != nil {
		return s.updateFunc(ctx, cmd)
	}
	return services.ShippingZone{}, errors.New("not implemented")
}

func (s *stubShippingZoneAdminService) Delete(ctx context.Context, zoneID string) error {
	if s.deleteFunc != nil {
		return s.deleteFunc(ctx, zoneID)
	}
	return errors.New("not implemented")
}

func (s *stubShippingZoneAdminService) Get(ctx context.Context, zoneID string) (services.ShippingZone, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, zoneID)
	}
	return services.ShippingZone{}, errors.New("not implemented")
}

func (s *stubShippingZoneAdminService) List(ctx context.Context) ([]services.ShippingZone, error) {
	if s.listFunc != nil {
		return s.listFunc(ctx)
	}
	return nil, errors.New("not implemented")
}

func TestShippingZoneAdminHandlersCreate(t *testing.T) {
	router := chi.NewRouter()
	handler := NewShippingZoneAdminHandlers(&stubShippingZoneAdminService{
		createFunc: func(ctx context.Context, cmd services.UpsertShippingZoneCommand) (services.ShippingZone, error) {
			if cmd.Name != "Baleares" {
				t.Fatalf("unexpected name %q", cmd.Name)
			}
			if len(cmd.WeightTiers) != 2 || cmd.WeightTiers[0].MaxWeightGrams != 2000 {
				t.Fatalf("expected weight tiers propagated, got %#v", cmd.WeightTiers)
			}
			if !cmd.VATExempt {
				t.Fatalf("expected vat exempt flag propagated")
			}
			return services.ShippingZone{
				ID:          "baleares",
				Name:        cmd.Name,
				FlatRate:    cmd.FlatRate,
				WeightTiers: cmd.WeightTiers,
				VATExempt:   cmd.VATExempt,
			}, nil
		},
	})
	handler.Routes(router)

	payload := `{"name":"Baleares","postalPrefixes":["07"],"flatRate":900,"weightTiers":[{"maxWeightGrams":2000,"surcharge":300},{"maxWeightGrams":5000,"surcharge":600}],"vatExempt":true}`
	req := httptest.NewRequest(http.MethodPost, "/shipping-zones/", bytes.NewBufferString(payload))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp shippingZonePayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != "baleares" || !resp.VATExempt {
		t.Fatalf("unexpected zone payload %#v", resp)
	}
	if len(resp.WeightTiers) != 2 || resp.WeightTiers[1].Surcharge != 600 {
		t.Fatalf("expected weight tiers in response, got %#v", resp.WeightTiers)
	}
}

func TestShippingZoneAdminHandlersCreateValidation(t *testing.T) {
	router := chi.NewRouter()
	handler := NewShippingZoneAdminHandlers(&stubShippingZoneAdminService{
		createFunc: func(context.Context, services.UpsertShippingZoneCommand) (services.ShippingZone, error) {
			return services.ShippingZone{}, services.ErrShippingZoneInvalidInput
		},
	})
	handler.Routes(router)

	req := httptest.NewRequest(http.MethodPost, "/shipping-zones/", bytes.NewBufferString(`{"name":""}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	var errResp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if errResp["error"] != "invalid_shipping_zone" {
		t.Fatalf("expected error code invalid_shipping_zone, got %#v", errResp["error"])
	}
}

func TestShippingZoneAdminHandlersGetNotFound(t *testing.T) {
	router := chi.NewRouter()
	handler := NewShippingZoneAdminHandlers(&stubShippingZoneAdminService{
		getFunc: func(context.Context, string) (services.ShippingZone, error) {
			return services.ShippingZone{}, services.ErrShippingZoneNotFound
		},
	})
	handler.Routes(router)

	req := httptest.NewRequest(http.MethodGet, "/shipping-zones/missing", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestShippingZoneAdminHandlersDelete(t *testing.T) {
	router := chi.NewRouter()
	deleted := ""
	handler := NewShippingZoneAdminHandlers(&stubShippingZoneAdminService{
		deleteFunc: func(ctx context.Context, zoneID string) error {
			deleted = zoneID
			return nil
		},
	})
	handler.Routes(router)

	req := httptest.NewRequest(http.MethodDelete, "/shipping-zones/baleares", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if deleted != "baleares" {
		t.Fatalf("expected delete of baleares, got %q", deleted)
	}
}
