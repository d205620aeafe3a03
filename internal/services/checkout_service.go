package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/tapforge/api/internal/payments"
)

var (
	// ErrCheckoutInvalidInput indicates the caller supplied invalid input parameters.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutPaymentFailed indicates the payment provider could not open a payment
	// for an already persisted order.
	ErrCheckoutPaymentFailed = errors.New("checkout: payment failed")
)

// checkoutPaymentManager abstracts payments.Manager for easier testing.
type checkoutPaymentManager interface {
	CreatePayment(ctx context.Context, paymentCtx payments.PaymentContext, req payments.PaymentRequest) (payments.PaymentIntent, error)
}

// CheckoutCommand submits a candidate order together with payment hints.
type CheckoutCommand struct {
	Order         CreateOrderInput
	CustomerEmail string
	Provider      string
}

// CheckoutResult pairs the placed order with the client-side payment handle.
type CheckoutResult struct {
	Order        Order
	PaymentRef   string
	ClientSecret string
	Provider     string
}

// CheckoutService runs order creation and opens the payment for the result.
type CheckoutService interface {
	Checkout(ctx context.Context, cmd CheckoutCommand) (CheckoutResult, error)
}

// CheckoutServiceDeps wires the dependencies required by the checkout service.
type CheckoutServiceDeps struct {
	Orders   OrderService
	Payments checkoutPaymentManager
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type checkoutService struct {
	orders   OrderService
	payments checkoutPaymentManager
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewCheckoutService constructs a CheckoutService validating required dependencies.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Orders == nil {
		return nil, errors.New("checkout service: order service is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("checkout service: payment manager is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &checkoutService{
		orders:   deps.Orders,
		payments: deps.Payments,
		logger:   logger,
	}, nil
}

// Checkout creates the order, then asks the payment provider for a payment
// intent over the persisted total. The provider only sees the order
// identifier, number, total, and currency. A provider failure does not undo
// the order; it stays pending and the caller is told payment could not start.
func (s *checkoutService) Checkout(ctx context.Context, cmd CheckoutCommand) (CheckoutResult, error) {
	order, err := s.orders.Create(ctx, cmd.Order)
	if err != nil {
		return CheckoutResult{}, err
	}

	intent, err := s.payments.CreatePayment(ctx, payments.PaymentContext{
		PreferredProvider: cmd.Provider,
		Currency:          order.Pricing.Currency,
	}, payments.PaymentRequest{
		OrderID:        order.ID,
		OrderNumber:    order.Number,
		Amount:         order.Pricing.Total,
		Currency:       order.Pricing.Currency,
		CustomerEmail:  strings.TrimSpace(cmd.CustomerEmail),
		Description:    fmt.Sprintf("TapForge order %s", order.Number),
		IdempotencyKey: paymentIdempotencyKey(order.ID),
	})
	if err != nil {
		s.logger(ctx, "checkout.payment.create_failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
		return CheckoutResult{Order: order}, fmt.Errorf("%w: %v", ErrCheckoutPaymentFailed, err)
	}

	return CheckoutResult{
		Order:        order,
		PaymentRef:   intent.IntentID,
		ClientSecret: intent.ClientSecret,
		Provider:     intent.Provider,
	}, nil
}

func paymentIdempotencyKey(orderID string) string {
	sum := sha256.Sum256([]byte("checkout:" + orderID))
	return hex.EncodeToString(sum[:])
}
