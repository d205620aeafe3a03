package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/tapforge/api/internal/services"
)

type stubCheckoutService struct {
	checkoutFunc func(ctx context.Context, cmd services.CheckoutCommand) (services.CheckoutResult, error)
}

func (s *stubCheckoutService) Checkout(ctx context.Context, cmd services.CheckoutCommand) (services.CheckoutResult, error) {
	if s.checkoutFunc != nil {
		return s.checkoutFunc(ctx, cmd)
	}
	return services.CheckoutResult{}, nil
}

const checkoutRequestBody = `{
	"design": {
		"templateId": "tpl_classic",
		"material": "metal",
		"chipType": "ntag216",
		"colors": {"primary": "#111111", "secondary": "#222222", "background": "#ffffff"}
	},
	"quantity": 500,
	"submittedTotal": 759600,
	"shipping": {
		"recipient": "Ada Example",
		"line1": "1 Main St",
		"city": "Berlin",
		"postalCode": "10115",
		"country": "DE"
	},
	"customerEmail": "ada@example.com",
	"provider": "stripe"
}`

func TestCheckoutHandlersCheckout(t *testing.T) {
	router := chi.NewRouter()
	service := &stubCheckoutService{
		checkoutFunc: func(ctx context.Context, cmd services.CheckoutCommand) (services.CheckoutResult, error) {
			if cmd.Order.UserID != "user-1" {
				t.Fatalf("expected user id user-1, got %s", cmd.Order.UserID)
			}
			if cmd.Order.Quantity != 500 {
				t.Fatalf("expected quantity 500, got %d", cmd.Order.Quantity)
			}
			if cmd.Order.SubmittedTotal != 759_600 {
				t.Fatalf("expected submitted total 759600, got %d", cmd.Order.SubmittedTotal)
			}
			if cmd.CustomerEmail != "ada@example.com" {
				t.Fatalf("expected customer email propagated, got %s", cmd.CustomerEmail)
			}
			return services.CheckoutResult{
				Order:        sampleOrder("ord_01"),
				PaymentRef:   "pi_123",
				ClientSecret: "pi_123_secret",
				Provider:     "stripe",
			}, nil
		},
	}
	NewCheckoutHandlers(nil, service).Routes(router)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(checkoutRequestBody))
	req = authenticated(req, "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp checkoutResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Order.ID != "ord_01" {
		t.Fatalf("expected order ord_01, got %s", resp.Order.ID)
	}
	if resp.Payment.PaymentRef != "pi_123" {
		t.Fatalf("expected payment ref pi_123, got %s", resp.Payment.PaymentRef)
	}
	if resp.Payment.ClientSecret != "pi_123_secret" {
		t.Fatalf("expected client secret returned")
	}
}

func TestCheckoutHandlersPaymentFailureKeepsOrder(t *testing.T) {
	router := chi.NewRouter()
	service := &stubCheckoutService{
		checkoutFunc: func(ctx context.Context, cmd services.CheckoutCommand) (services.CheckoutResult, error) {
			return services.CheckoutResult{Order: sampleOrder("ord_01")},
				fmt.Errorf("%w: provider unreachable", services.ErrCheckoutPaymentFailed)
		},
	}
	NewCheckoutHandlers(nil, service).Routes(router)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(checkoutRequestBody))
	req = authenticated(req, "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", rr.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["orderId"] != "ord_01" {
		t.Fatalf("expected order id in error payload, got %v", body["orderId"])
	}
}

func TestCheckoutHandlersValidationFailure(t *testing.T) {
	router := chi.NewRouter()
	service := &stubCheckoutService{
		checkoutFunc: func(ctx context.Context, cmd services.CheckoutCommand) (services.CheckoutResult, error) {
			validator, err := services.NewOrderValidator(services.OrderValidatorDeps{Pricing: mustPricingEngine(t)})
			if err != nil {
				t.Fatalf("failed to build validator: %v", err)
			}
			input := cmd.Order
			input.SubmittedTotal = 1
			_, verr := validator.Validate(input)
			return services.CheckoutResult{}, verr
		},
	}
	NewCheckoutHandlers(nil, service).Routes(router)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(checkoutRequestBody))
	req = authenticated(req, "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d: %s", rr.Code, rr.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["check"] != "pricing" {
		t.Fatalf("expected pricing check named, got %v", body["check"])
	}
}

func TestCheckoutHandlersUnauthenticated(t *testing.T) {
	router := chi.NewRouter()
	NewCheckoutHandlers(nil, &stubCheckoutService{}).Routes(router)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(checkoutRequestBody))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func mustPricingEngine(t *testing.T) services.PricingCalculator {
	t.Helper()
	engine, err := services.NewPricingEngine(services.PricingEngineDeps{})
	if err != nil {
		t.Fatalf("failed to build pricing engine: %v", err)
	}
	return engine
}
