package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/tapforge/api/internal/domain"
	"github.com/tapforge/api/internal/platform/auth"
	"github.com/tapforge/api/internal/platform/httpx"
	"github.com/tapforge/api/internal/services"
)

const maxDesignerRequestBody = 32 * 1024

// DesignerHandlers exposes the interactive designer session endpoints.
type DesignerHandlers struct {
	authn          *auth.Authenticator
	designer       services.DesignerService
	sessionLimiter rateLimiter
}

// DesignerHandlerOption customises designer handler construction.
type DesignerHandlerOption func(*DesignerHandlers)

// WithSessionLimiter caps how often a single user may open new sessions.
func WithSessionLimiter(limiter rateLimiter) DesignerHandlerOption {
	return func(h *DesignerHandlers) {
		h.sessionLimiter = limiter
	}
}

// WithSessionRateLimit caps new sessions per user to the given number per minute.
// Non-positive limits disable throttling.
func WithSessionRateLimit(perMinute int) DesignerHandlerOption {
	return func(h *DesignerHandlers) {
		if perMinute <= 0 {
			h.sessionLimiter = nil
			return
		}
		h.sessionLimiter = newSimpleRateLimiter(perMinute, time.Minute, nil)
	}
}

// NewDesignerHandlers constructs designer handlers guarded by Firebase authentication.
func NewDesignerHandlers(authn *auth.Authenticator, designer services.DesignerService, opts ...DesignerHandlerOption) *DesignerHandlers {
	h := &DesignerHandlers{
		authn:    authn,
		designer: designer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers designer session endpoints under the provided router.
func (h *DesignerHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	group := r
	if h.authn != nil {
		group = group.With(h.authn.RequireAuth())
	}
	group.Post("/sessions", h.startSession)
	group.Get("/sessions/{sessionID}", h.getSession)
	group.Delete("/sessions/{sessionID}", h.closeSession)
	group.Post("/sessions/{sessionID}/actions", h.dispatchAction)
}

type startSessionRequest struct {
	TemplateID string         `json:"templateId"`
	Seed       *designPayload `json:"seed"`
}

// designerActionRequest is the raw action envelope. Type selects the variant;
// the remaining fields are read per variant and ignored otherwise.
type designerActionRequest struct {
	Type       string            `json:"type"`
	TemplateID string            `json:"templateId"`
	ElementID  string            `json:"elementId"`
	Kind       string            `json:"kind"`
	Content    *string           `json:"content"`
	Position   *positionPayload  `json:"position"`
	Size       *sizePayload      `json:"size"`
	Style      map[string]string `json:"style"`
	Material   string            `json:"material"`
	ChipType   string            `json:"chipType"`
	Slot       string            `json:"slot"`
	Value      string            `json:"value"`
	Quantity   *int              `json:"quantity"`
	Tab        string            `json:"tab"`
	Dragging   *bool             `json:"dragging"`
}

func (h *DesignerHandlers) startSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	if h.sessionLimiter != nil && !h.sessionLimiter.Allow("designer:"+identity.UID) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many sessions opened, retry later", http.StatusTooManyRequests))
		return
	}

	var req startSessionRequest
	body, err := readLimitedBody(r, maxDesignerRequestBody)
	switch {
	case err == nil:
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
			return
		}
	case errors.Is(err, errEmptyBody):
		// A session can start from scratch with no request body.
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusRequestEntityTooLarge))
		return
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	cmd := services.StartSessionCommand{
		UserID:     identity.UID,
		TemplateID: strings.TrimSpace(req.TemplateID),
	}
	if req.Seed != nil {
		seed := req.Seed.toDomain()
		cmd.Seed = &seed
	}

	snapshot, err := h.designer.StartSession(ctx, cmd)
	if err != nil {
		writeDesignerError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, toDesignerSnapshotPayload(snapshot))
}

func (h *DesignerHandlers) getSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	snapshot, ok := h.ownedSession(ctx, w, identity, chi.URLParam(r, "sessionID"))
	if !ok {
		return
	}

	writeJSONResponse(w, http.StatusOK, toDesignerSnapshotPayload(snapshot))
}

func (h *DesignerHandlers) closeSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	snapshot, ok := h.ownedSession(ctx, w, identity, chi.URLParam(r, "sessionID"))
	if !ok {
		return
	}

	if err := h.designer.CloseSession(ctx, snapshot.SessionID); err != nil {
		writeDesignerError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *DesignerHandlers) dispatchAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	snapshot, ok := h.ownedSession(ctx, w, identity, chi.URLParam(r, "sessionID"))
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxDesignerRequestBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}

	var req designerActionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	action, err := req.toAction()
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_action", err.Error(), http.StatusBadRequest))
		return
	}

	updated, err := h.designer.Dispatch(ctx, snapshot.SessionID, action)
	if err != nil {
		writeDesignerError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toDesignerSnapshotPayload(updated))
}

func (h *DesignerHandlers) requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	if h.designer == nil {
		httpx.WriteError(ctx, w, httpx.NewError("designer_unavailable", "designer service unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

// ownedSession loads the session and hides other users' sessions behind the
// same not-found response an unknown identifier gets.
func (h *DesignerHandlers) ownedSession(ctx context.Context, w http.ResponseWriter, identity *auth.Identity, sessionID string) (services.DesignerSnapshot, bool) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "session id is required", http.StatusBadRequest))
		return services.DesignerSnapshot{}, false
	}

	snapshot, err := h.designer.GetSession(ctx, sessionID)
	if err != nil {
		writeDesignerError(ctx, w, err)
		return services.DesignerSnapshot{}, false
	}
	if snapshot.UserID != "" && snapshot.UserID != identity.UID {
		httpx.WriteError(ctx, w, httpx.NewError("session_not_found", fmt.Sprintf("session %s not found", sessionID), http.StatusNotFound))
		return services.DesignerSnapshot{}, false
	}
	return snapshot, true
}

func (r designerActionRequest) toAction() (services.Action, error) {
	switch strings.TrimSpace(r.Type) {
	case "select_template":
		return services.SelectTemplate{TemplateID: r.TemplateID}, nil
	case "add_element":
		action := services.AddElement{
			Kind:  domain.ElementKind(strings.TrimSpace(r.Kind)),
			Style: r.Style,
		}
		if r.Content != nil {
			action.Content = *r.Content
		}
		if r.Position != nil {
			action.Position = domain.Position{X: r.Position.X, Y: r.Position.Y}
		}
		if r.Size != nil {
			action.Size = domain.Size{Width: r.Size.Width, Height: r.Size.Height}
		}
		return action, nil
	case "update_element":
		action := services.UpdateElement{
			ElementID: strings.TrimSpace(r.ElementID),
			Content:   r.Content,
			Style:     r.Style,
		}
		if r.Position != nil {
			action.Position = &domain.Position{X: r.Position.X, Y: r.Position.Y}
		}
		if r.Size != nil {
			action.Size = &domain.Size{Width: r.Size.Width, Height: r.Size.Height}
		}
		return action, nil
	case "remove_element":
		return services.RemoveElement{ElementID: strings.TrimSpace(r.ElementID)}, nil
	case "set_material":
		return services.SetMaterial{Material: r.Material}, nil
	case "set_chip_type":
		return services.SetChipType{ChipType: r.ChipType}, nil
	case "set_color":
		return services.SetColor{Slot: r.Slot, Value: r.Value}, nil
	case "set_quantity":
		if r.Quantity == nil {
			return nil, errors.New("quantity is required for set_quantity")
		}
		return services.SetQuantity{Quantity: *r.Quantity}, nil
	case "select_element":
		return services.SelectElement{ElementID: strings.TrimSpace(r.ElementID)}, nil
	case "set_active_tab":
		return services.SetActiveTab{Tab: r.Tab}, nil
	case "set_dragging":
		if r.Dragging == nil {
			return nil, errors.New("dragging is required for set_dragging")
		}
		return services.SetDragging{Dragging: *r.Dragging}, nil
	case "":
		return nil, errors.New("action type is required")
	default:
		return nil, fmt.Errorf("unsupported action type %q", r.Type)
	}
}

func writeDesignerError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("session_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrElementNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("element_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrUnknownAction):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_action", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrInvalidQuantity):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_quantity", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrInvalidConfiguration):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_configuration", err.Error(), http.StatusUnprocessableEntity))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("designer_error", "designer request failed", http.StatusInternalServerError))
	}
}
