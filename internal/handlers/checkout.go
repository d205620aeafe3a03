package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tapforge/api/internal/platform/auth"
	"github.com/tapforge/api/internal/platform/httpx"
	"github.com/tapforge/api/internal/services"
)

const maxCheckoutRequestBody = 64 * 1024

// CheckoutHandlers exposes the checkout endpoint for authenticated users.
type CheckoutHandlers struct {
	authn    *auth.Authenticator
	checkout services.CheckoutService
}

// NewCheckoutHandlers constructs checkout handlers guarded by Firebase authentication.
func NewCheckoutHandlers(authn *auth.Authenticator, checkout services.CheckoutService) *CheckoutHandlers {
	return &CheckoutHandlers{
		authn:    authn,
		checkout: checkout,
	}
}

// Routes registers checkout endpoints under the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	group := r
	if h.authn != nil {
		group = group.With(h.authn.RequireAuth())
	}
	group.Post("/", h.checkoutOrder)
}

type checkoutRequest struct {
	Design         designPayload   `json:"design"`
	Quantity       int             `json:"quantity"`
	SubmittedTotal int64           `json:"submittedTotal"`
	Shipping       shippingPayload `json:"shipping"`
	CustomerEmail  string          `json:"customerEmail"`
	Provider       string          `json:"provider"`
}

type checkoutResponse struct {
	Order   orderPayload           `json:"order"`
	Payment checkoutPaymentPayload `json:"payment"`
}

type checkoutPaymentPayload struct {
	Provider     string `json:"provider"`
	PaymentRef   string `json:"paymentRef"`
	ClientSecret string `json:"clientSecret,omitempty"`
}

func (h *CheckoutHandlers) checkoutOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	body, err := readLimitedBody(r, maxCheckoutRequestBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}

	var req checkoutRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	result, err := h.checkout.Checkout(ctx, services.CheckoutCommand{
		Order: services.CreateOrderInput{
			UserID:         identity.UID,
			Design:         req.Design.toDomain(),
			Quantity:       req.Quantity,
			SubmittedTotal: req.SubmittedTotal,
			Shipping:       req.Shipping.toDomain(),
		},
		CustomerEmail: req.CustomerEmail,
		Provider:      req.Provider,
	})
	if err != nil {
		writeCheckoutError(ctx, w, result, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, checkoutResponse{
		Order: toOrderPayload(result.Order),
		Payment: checkoutPaymentPayload{
			Provider:     result.Provider,
			PaymentRef:   result.PaymentRef,
			ClientSecret: result.ClientSecret,
		},
	})
}

// writeCheckoutError distinguishes orders that never came to be from orders
// that were placed but could not open a payment. The latter return the order
// identifier so the client can retry payment instead of resubmitting.
func writeCheckoutError(ctx context.Context, w http.ResponseWriter, result services.CheckoutResult, err error) {
	if errors.Is(err, services.ErrCheckoutPaymentFailed) {
		payload := httpx.NewError("payment_failed", "order placed but payment could not be started", http.StatusBadGateway)
		if result.Order.ID != "" {
			payload = payload.WithDetails(map[string]any{
				"orderId":     result.Order.ID,
				"orderNumber": result.Order.Number,
			})
		}
		httpx.WriteError(ctx, w, payload)
		return
	}
	if errors.Is(err, services.ErrCheckoutInvalidInput) {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	writeOrderError(ctx, w, err)
}
