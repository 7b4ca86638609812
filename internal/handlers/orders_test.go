package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/arbona-turismo/storefront/internal/domain"
	"github.com/arbona-turismo/storefront/internal/services"
)

type stubOrderCheckoutService struct {
	checkoutFunc func(ctx context.Context, cmd services.EvaluateCartCommand) (services.Order, error)
	getFunc      func(ctx context.Context, orderID string) (services.Order, error)
}

func (s *stubOrderCheckoutService) Checkout(ctx context.Context, cmd services.EvaluateCartCommand) (services.Order, error) {
	if s.checkoutFunc != nil {
		return s.checkoutFunc(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderCheckoutService) GetOrder(ctx context.Context, orderID string) (services.Order, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, orderID)
	}
	return services.Order{}, errors.New("not implemented")
}

type handlerRepoError struct {
	notFound    bool
	unavailable bool
}

func (e handlerRepoError) Error() string       { return "repository error" }
func (e handlerRepoError) IsNotFound() bool    { return e.notFound }
func (e handlerRepoError) IsConflict() bool    { return false }
func (e handlerRepoError) IsUnavailable() bool { return e.unavailable }

func sampleOrder() services.Order {
	return services.Order{
		ID:     "ord-1",
		Number: 42,
		Lines: []services.OrderLine{
			{
				ProductID:          "prod-1",
				ProductName:        "Queso curado",
				Quantity:           2,
				UnitBasePrice:      1500,
				UnitEffectivePrice: 1200,
				DiscountSource:     domain.DiscountSourceProduct,
				VATPercent:         21,
				GrossAmount:        2400,
				BaseAmount:         1983,
				VATAmount:          417,
			},
		},
		CouponCode:           "VERANO10",
		CouponDiscountAmount: 240,
		ShippingZoneID:       "peninsula",
		ShippingZoneName:     "Peninsula",
		ShippingCost:         500,
		ShippingVATPercent:   21,
		ShippingBase:         413,
		ShippingVAT:          87,
		Destination:          domain.Destination{PostalCode: "28013", Country: "ES"},
		Subtotal:             2400,
		TotalBase:            2198,
		TotalVAT:             462,
		GrandTotal:           2660,
		CreatedAt:            time.Date(2025, 7, 15, 10, 30, 0, 0, time.UTC),
	}
}

func TestOrderHandlersCreateOrderSuccess(t *testing.T) {
	router := chi.NewRouter()
	var captured services.EvaluateCartCommand
	handler := NewOrderHandlers(&stubOrderCheckoutService{
		checkoutFunc: func(ctx context.Context, cmd services.EvaluateCartCommand) (services.Order, error) {
			captured = cmd
			return sampleOrder(), nil
		},
	})
	handler.Routes(router)

	payload := `{"items":[{"productId":"prod-1","quantity":2}],"couponCode":"VERANO10","destination":{"postalCode":"28013","country":"ES"}}`
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(payload))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(captured.Items) != 1 || captured.Items[0].Quantity != 2 {
		t.Fatalf("expected command propagated, got %#v", captured.Items)
	}

	var resp orderPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Reference != "ORD-000042" {
		t.Fatalf("expected reference ORD-000042, got %s", resp.Reference)
	}
	if resp.GrandTotal != 2660 {
		t.Fatalf("expected grand total 2660, got %d", resp.GrandTotal)
	}
	if resp.Coupon == nil || resp.Coupon.Discount != 240 {
		t.Fatalf("expected coupon payload, got %#v", resp.Coupon)
	}
	if resp.CreatedAt != "2025-07-15T10:30:00Z" {
		t.Fatalf("unexpected createdAt %s", resp.CreatedAt)
	}
}

func TestOrderHandlersCreateOrderMapsCheckoutErrors(t *testing.T) {
	router := chi.NewRouter()
	handler := NewOrderHandlers(&stubOrderCheckoutService{
		checkoutFunc: func(context.Context, services.EvaluateCartCommand) (services.Order, error) {
			return services.Order{}, services.ErrInsufficientStock
		},
	})
	handler.Routes(router)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"items":[{"productId":"prod-1","quantity":99}]}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
	var errResp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if errResp["error"] != "insufficient_stock" {
		t.Fatalf("expected error code insufficient_stock, got %#v", errResp["error"])
	}
}

func TestOrderHandlersGetOrderSuccess(t *testing.T) {
	router := chi.NewRouter()
	handler := NewOrderHandlers(&stubOrderCheckoutService{
		getFunc: func(ctx context.Context, orderID string) (services.Order, error) {
			if orderID != "ord-1" {
				t.Fatalf("expected order id ord-1, got %s", orderID)
			}
			return sampleOrder(), nil
		},
	})
	handler.Routes(router)

	req := httptest.NewRequest(http.MethodGet, "/ord-1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp orderPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != "ord-1" || resp.Shipping.ZoneID != "peninsula" {
		t.Fatalf("unexpected order payload %#v", resp)
	}
}

func TestOrderHandlersGetOrderNotFound(t *testing.T) {
	router := chi.NewRouter()
	handler := NewOrderHandlers(&stubOrderCheckoutService{
		getFunc: func(context.Context, string) (services.Order, error) {
			return services.Order{}, handlerRepoError{notFound: true}
		},
	})
	handler.Routes(router)

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
	var errResp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if errResp["error"] != "order_not_found" {
		t.Fatalf("expected error code order_not_found, got %#v", errResp["error"])
	}
}

func TestOrderHandlersGetOrderUnavailableStorage(t *testing.T) {
	router := chi.NewRouter()
	handler := NewOrderHandlers(&stubOrderCheckoutService{
		getFunc: func(context.Context, string) (services.Order, error) {
			return services.Order{}, handlerRepoError{unavailable: true}
		},
	})
	handler.Routes(router)

	req := httptest.NewRequest(http.MethodGet, "/ord-1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}
