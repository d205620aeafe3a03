package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v78/webhook"

	domain "github.com/tapforge/api/internal/domain"
	"github.com/tapforge/api/internal/platform/httpx"
	"github.com/tapforge/api/internal/services"
)

const maxWebhookRequestBody = 64 * 1024

// WebhookHandlers receives payment provider callbacks and applies the
// resulting order status transitions.
type WebhookHandlers struct {
	orders       services.OrderService
	stripeSecret string
	verifyStripe func(payload []byte, header, secret string) (stripeWebhookEvent, error)
	logger       func(ctx context.Context, event string, fields map[string]any)
}

// stripeWebhookEvent is the slice of a Stripe event the handler acts on.
type stripeWebhookEvent struct {
	Type   string
	Object stripeEventObject
}

type stripeEventObject struct {
	ID               string            `json:"id"`
	Metadata         map[string]string `json:"metadata"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

// WebhookHandlerOption customises webhook handler construction.
type WebhookHandlerOption func(*WebhookHandlers)

// WithWebhookLogger wires a structured logging callback.
func WithWebhookLogger(logger func(ctx context.Context, event string, fields map[string]any)) WebhookHandlerOption {
	return func(h *WebhookHandlers) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewWebhookHandlers constructs webhook handlers. The Stripe endpoint refuses
// every request when the signing secret is empty.
func NewWebhookHandlers(orders services.OrderService, stripeSecret string, opts ...WebhookHandlerOption) *WebhookHandlers {
	h := &WebhookHandlers{
		orders:       orders,
		stripeSecret: strings.TrimSpace(stripeSecret),
		verifyStripe: verifyStripeEvent,
		logger:       func(context.Context, string, map[string]any) {},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers webhook endpoints under the provided router.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/stripe", h.stripeWebhook)
}

func (h *WebhookHandlers) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil || h.stripeSecret == "" {
		httpx.WriteError(ctx, w, httpx.NewError("webhook_unavailable", "webhook processing unavailable", http.StatusServiceUnavailable))
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookRequestBody+1))
	if err != nil || len(payload) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
		return
	}
	if len(payload) > maxWebhookRequestBody {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body too large", http.StatusRequestEntityTooLarge))
		return
	}

	event, err := h.verifyStripe(payload, r.Header.Get("Stripe-Signature"), h.stripeSecret)
	if err != nil {
		h.logger(ctx, "webhooks.stripe.signature_rejected", map[string]any{
			"error": err.Error(),
		})
		httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "webhook signature verification failed", http.StatusBadRequest))
		return
	}

	var target domain.OrderStatus
	switch event.Type {
	case "payment_intent.succeeded":
		target = domain.OrderStatusPaid
	case "payment_intent.payment_failed":
		target = domain.OrderStatusFailed
	default:
		// Unhandled event types are acknowledged so Stripe stops retrying.
		writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	orderID := strings.TrimSpace(event.Object.Metadata["orderId"])
	if orderID == "" {
		h.logger(ctx, "webhooks.stripe.missing_order_reference", map[string]any{
			"eventType":     event.Type,
			"paymentIntent": event.Object.ID,
		})
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "event carries no order reference", http.StatusBadRequest))
		return
	}

	cmd := services.OrderStatusTransitionCommand{
		OrderID:      orderID,
		TargetStatus: target,
		PaymentRef:   event.Object.ID,
	}
	if target == domain.OrderStatusFailed {
		cmd.Reason = "payment failed"
		if event.Object.LastPaymentError != nil && strings.TrimSpace(event.Object.LastPaymentError.Message) != "" {
			cmd.Reason = event.Object.LastPaymentError.Message
		}
	}

	order, err := h.orders.TransitionStatus(ctx, cmd)
	if err != nil {
		// A replayed event against an order that already moved on is not an
		// error worth a retry loop.
		if errors.Is(err, services.ErrOrderInvalidState) {
			writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}
		writeOrderError(ctx, w, err)
		return
	}

	h.logger(ctx, "webhooks.stripe.order_transitioned", map[string]any{
		"orderId":       order.ID,
		"status":        string(order.Status),
		"paymentIntent": event.Object.ID,
	})

	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "processed"})
}

func verifyStripeEvent(payload []byte, header, secret string) (stripeWebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, header, secret)
	if err != nil {
		return stripeWebhookEvent{}, err
	}
	var object stripeEventObject
	if err := json.Unmarshal(event.Data.Raw, &object); err != nil {
		return stripeWebhookEvent{}, err
	}
	return stripeWebhookEvent{
		Type:   string(event.Type),
		Object: object,
	}, nil
}
