package payments

import (
	"context"
	"errors"
	"testing"
)

type stubProvider struct {
	name    string
	intents int
	err     error
}

func (p *stubProvider) CreatePayment(ctx context.Context, req PaymentRequest) (PaymentIntent, error) {
	p.intents++
	if p.err != nil {
		return PaymentIntent{}, p.err
	}
	return PaymentIntent{IntentID: p.name + "_intent", Amount: req.Amount, Currency: req.Currency}, nil
}

func (p *stubProvider) LookupPayment(ctx context.Context, req LookupRequest) (PaymentDetails, error) {
	return PaymentDetails{Provider: p.name, IntentID: req.IntentID}, nil
}

func TestManagerPrefersExplicitProvider(t *testing.T) {
	stripe := &stubProvider{name: "stripe"}
	paypal := &stubProvider{name: "paypal"}
	manager, err := NewManager(map[string]Provider{"stripe": stripe, "paypal": paypal})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	intent, err := manager.CreatePayment(context.Background(), PaymentContext{PreferredProvider: "PayPal"}, PaymentRequest{Amount: 1000, Currency: "EUR"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.Provider != "paypal" || intent.IntentID != "paypal_intent" {
		t.Fatalf("expected paypal to handle payment, got %+v", intent)
	}
	if stripe.intents != 0 {
		t.Fatal("stripe must not be called")
	}
}

func TestManagerRoutesByCurrency(t *testing.T) {
	stripe := &stubProvider{name: "stripe"}
	paypal := &stubProvider{name: "paypal"}
	manager, err := NewManager(
		map[string]Provider{"stripe": stripe, "paypal": paypal},
		WithCurrencyRoutes(map[string]string{"usd": "paypal"}),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	intent, err := manager.CreatePayment(context.Background(), PaymentContext{Currency: "USD"}, PaymentRequest{Amount: 1000, Currency: "USD"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.Provider != "paypal" {
		t.Fatalf("expected currency route to paypal, got %q", intent.Provider)
	}
}

func TestManagerFallsBackToDefaultProvider(t *testing.T) {
	stripe := &stubProvider{name: "stripe"}
	paypal := &stubProvider{name: "paypal"}
	manager, err := NewManager(map[string]Provider{"stripe": stripe, "paypal": paypal})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Stripe is the implicit default when registered.
	intent, err := manager.CreatePayment(context.Background(), PaymentContext{PreferredProvider: "unknown"}, PaymentRequest{Amount: 1000, Currency: "EUR"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.Provider != "stripe" {
		t.Fatalf("expected stripe fallback, got %q", intent.Provider)
	}
}

func TestManagerSingleProviderNeedsNoHints(t *testing.T) {
	only := &stubProvider{name: "paypal"}
	manager, err := NewManager(map[string]Provider{"paypal": only})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	intent, err := manager.CreatePayment(context.Background(), PaymentContext{}, PaymentRequest{Amount: 500, Currency: "EUR"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.Provider != "paypal" {
		t.Fatalf("expected lone provider, got %q", intent.Provider)
	}
}

func TestManagerUnresolvableProvider(t *testing.T) {
	manager, err := NewManager(
		map[string]Provider{"paypal": &stubProvider{name: "paypal"}, "adyen": &stubProvider{name: "adyen"}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = manager.CreatePayment(context.Background(), PaymentContext{PreferredProvider: "unknown"}, PaymentRequest{Amount: 500, Currency: "EUR"})
	if !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected unsupported provider, got %v", err)
	}
}

func TestManagerPropagatesProviderErrors(t *testing.T) {
	failing := &stubProvider{name: "stripe", err: errors.New("rate limited")}
	manager, err := NewManager(map[string]Provider{"stripe": failing})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := manager.CreatePayment(context.Background(), PaymentContext{}, PaymentRequest{Amount: 500, Currency: "EUR"}); err == nil {
		t.Fatal("expected provider error to propagate")
	}
}

func TestNewManagerRejectsEmptyRegistrations(t *testing.T) {
	if _, err := NewManager(nil); err == nil {
		t.Fatal("expected error for empty provider map")
	}
	if _, err := NewManager(map[string]Provider{" ": &stubProvider{}}); err == nil {
		t.Fatal("expected error for blank provider key")
	}
	if _, err := NewManager(map[string]Provider{"stripe": nil}); err == nil {
		t.Fatal("expected error for nil provider")
	}
}
