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

const maxDesignRequestBody = 32 * 1024

// DesignHandlers exposes saved design endpoints for authenticated users.
type DesignHandlers struct {
	authn   *auth.Authenticator
	designs services.DesignService
}

// NewDesignHandlers constructs design handlers guarded by Firebase authentication.
func NewDesignHandlers(authn *auth.Authenticator, designs services.DesignService) *DesignHandlers {
	return &DesignHandlers{
		authn:   authn,
		designs: designs,
	}
}

// Routes registers saved design endpoints under the provided router.
func (h *DesignHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	group := r
	if h.authn != nil {
		group = group.With(h.authn.RequireAuth())
	}
	group.Post("/", h.saveDesign)
	group.Get("/", h.listDesigns)
	group.Get("/{designID}", h.getDesign)
	group.Delete("/{designID}", h.deleteDesign)
}

type saveDesignRequest struct {
	Name   string        `json:"name"`
	Design designPayload `json:"design"`
}

type listDesignsResponse struct {
	Designs       []savedDesignPayload `json:"designs"`
	NextPageToken string               `json:"nextPageToken,omitempty"`
}

func (h *DesignHandlers) saveDesign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxDesignRequestBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}

	var req saveDesignRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	saved, err := h.designs.SaveDesign(ctx, services.SaveDesignCommand{
		UserID: identity.UID,
		Name:   req.Name,
		Design: req.Design.toDomain(),
	})
	if err != nil {
		writeDesignError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, toSavedDesignPayload(saved))
}

func (h *DesignHandlers) listDesigns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	paging, err := paginationFromQuery(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.designs.ListDesigns(ctx, services.DesignListFilter{
		UserID:     identity.UID,
		Pagination: paging,
	})
	if err != nil {
		writeDesignError(ctx, w, err)
		return
	}

	payload := listDesignsResponse{
		Designs:       make([]savedDesignPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, design := range page.Items {
		payload.Designs = append(payload.Designs, toSavedDesignPayload(design))
	}

	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *DesignHandlers) getDesign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	design, err := h.designs.GetDesign(ctx, identity.UID, chi.URLParam(r, "designID"))
	if err != nil {
		writeDesignError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toSavedDesignPayload(design))
}

func (h *DesignHandlers) deleteDesign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	if err := h.designs.DeleteDesign(ctx, identity.UID, chi.URLParam(r, "designID")); err != nil {
		writeDesignError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *DesignHandlers) requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	if h.designs == nil {
		httpx.WriteError(ctx, w, httpx.NewError("designs_unavailable", "design service unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func writeDesignError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrDesignInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrInvalidConfiguration):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_configuration", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrDesignNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("design_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrDesignConflict):
		httpx.WriteError(ctx, w, httpx.NewError("design_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrDesignStorage):
		httpx.WriteError(ctx, w, httpx.NewError("storage_unavailable", "design storage unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("design_error", "design request failed", http.StatusInternalServerError))
	}
}
