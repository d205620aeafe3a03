package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/tapforge/api/internal/domain"
	"github.com/tapforge/api/internal/platform/auth"
	"github.com/tapforge/api/internal/services"
)

type stubDesignerService struct {
	startFunc    func(ctx context.Context, cmd services.StartSessionCommand) (services.DesignerSnapshot, error)
	getFunc      func(ctx context.Context, sessionID string) (services.DesignerSnapshot, error)
	dispatchFunc func(ctx context.Context, sessionID string, action services.Action) (services.DesignerSnapshot, error)
	closeFunc    func(ctx context.Context, sessionID string) error
}

func (s *stubDesignerService) StartSession(ctx context.Context, cmd services.StartSessionCommand) (services.DesignerSnapshot, error) {
	if s.startFunc != nil {
		return s.startFunc(ctx, cmd)
	}
	return services.DesignerSnapshot{}, nil
}

func (s *stubDesignerService) GetSession(ctx context.Context, sessionID string) (services.DesignerSnapshot, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, sessionID)
	}
	return services.DesignerSnapshot{}, nil
}

func (s *stubDesignerService) Dispatch(ctx context.Context, sessionID string, action services.Action) (services.DesignerSnapshot, error) {
	if s.dispatchFunc != nil {
		return s.dispatchFunc(ctx, sessionID, action)
	}
	return services.DesignerSnapshot{}, nil
}

func (s *stubDesignerService) CloseSession(ctx context.Context, sessionID string) error {
	if s.closeFunc != nil {
		return s.closeFunc(ctx, sessionID)
	}
	return nil
}

func sampleSnapshot(sessionID, userID string) services.DesignerSnapshot {
	design := domain.NewDesign()
	design.TemplateID = "tpl_classic"
	return services.DesignerSnapshot{
		SessionID: sessionID,
		UserID:    userID,
		Design:    design,
		Quantity:  1,
		Pricing: domain.PricingDetails{
			BasePrice: 999,
			Quantity:  1,
			Subtotal:  999,
			Total:     999,
			Currency:  "EUR",
		},
	}
}

func authenticated(req *http.Request, uid string) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: uid}))
}

func TestDesignerHandlersStartSession(t *testing.T) {
	router := chi.NewRouter()
	service := &stubDesignerService{
		startFunc: func(ctx context.Context, cmd services.StartSessionCommand) (services.DesignerSnapshot, error) {
			if cmd.UserID != "user-1" {
				t.Fatalf("expected user id user-1, got %s", cmd.UserID)
			}
			if cmd.TemplateID != "tpl_classic" {
				t.Fatalf("expected template tpl_classic, got %s", cmd.TemplateID)
			}
			return sampleSnapshot("ses_123", "user-1"), nil
		},
	}
	NewDesignerHandlers(nil, service).Routes(router)

	req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewBufferString(`{"templateId":"tpl_classic"}`))
	req = authenticated(req, "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp designerSnapshotPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.SessionID != "ses_123" {
		t.Fatalf("expected session id ses_123, got %s", resp.SessionID)
	}
	if resp.Pricing.Total != 999 {
		t.Fatalf("expected total 999, got %d", resp.Pricing.Total)
	}
}

func TestDesignerHandlersStartSessionWithoutBody(t *testing.T) {
	router := chi.NewRouter()
	service := &stubDesignerService{
		startFunc: func(ctx context.Context, cmd services.StartSessionCommand) (services.DesignerSnapshot, error) {
			if cmd.TemplateID != "" || cmd.Seed != nil {
				t.Fatalf("expected empty command, got %+v", cmd)
			}
			return sampleSnapshot("ses_empty", "user-1"), nil
		},
	}
	NewDesignerHandlers(nil, service).Routes(router)

	req := authenticated(httptest.NewRequest(http.MethodPost, "/sessions", nil), "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}
}

func TestDesignerHandlersStartSessionUnauthenticated(t *testing.T) {
	router := chi.NewRouter()
	NewDesignerHandlers(nil, &stubDesignerService{}).Routes(router)

	req := httptest.NewRequest(http.MethodPost, "/sessions", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestDesignerHandlersStartSessionRateLimited(t *testing.T) {
	router := chi.NewRouter()
	service := &stubDesignerService{
		startFunc: func(ctx context.Context, cmd services.StartSessionCommand) (services.DesignerSnapshot, error) {
			return sampleSnapshot("ses_123", "user-1"), nil
		},
	}
	limiter := newSimpleRateLimiter(1, time.Minute, nil)
	NewDesignerHandlers(nil, service, WithSessionLimiter(limiter)).Routes(router)

	first := authenticated(httptest.NewRequest(http.MethodPost, "/sessions", nil), "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, first)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected first request to pass, got %d", rr.Code)
	}

	second := authenticated(httptest.NewRequest(http.MethodPost, "/sessions", nil), "user-1")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, second)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", rr.Code)
	}
}

func TestDesignerHandlersGetSessionHidesForeignSessions(t *testing.T) {
	router := chi.NewRouter()
	service := &stubDesignerService{
		getFunc: func(ctx context.Context, sessionID string) (services.DesignerSnapshot, error) {
			return sampleSnapshot(sessionID, "someone-else"), nil
		},
	}
	NewDesignerHandlers(nil, service).Routes(router)

	req := authenticated(httptest.NewRequest(http.MethodGet, "/sessions/ses_123", nil), "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestDesignerHandlersDispatchSetQuantity(t *testing.T) {
	router := chi.NewRouter()
	var dispatched services.Action
	service := &stubDesignerService{
		getFunc: func(ctx context.Context, sessionID string) (services.DesignerSnapshot, error) {
			return sampleSnapshot(sessionID, "user-1"), nil
		},
		dispatchFunc: func(ctx context.Context, sessionID string, action services.Action) (services.DesignerSnapshot, error) {
			dispatched = action
			snapshot := sampleSnapshot(sessionID, "user-1")
			snapshot.Quantity = 250
			return snapshot, nil
		},
	}
	NewDesignerHandlers(nil, service).Routes(router)

	req := httptest.NewRequest(http.MethodPost, "/sessions/ses_123/actions", bytes.NewBufferString(`{"type":"set_quantity","quantity":250}`))
	req = authenticated(req, "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	action, ok := dispatched.(services.SetQuantity)
	if !ok {
		t.Fatalf("expected SetQuantity action, got %T", dispatched)
	}
	if action.Quantity != 250 {
		t.Fatalf("expected quantity 250, got %d", action.Quantity)
	}
}

func TestDesignerHandlersDispatchUpdateElementPartialPatch(t *testing.T) {
	router := chi.NewRouter()
	var dispatched services.Action
	service := &stubDesignerService{
		getFunc: func(ctx context.Context, sessionID string) (services.DesignerSnapshot, error) {
			return sampleSnapshot(sessionID, "user-1"), nil
		},
		dispatchFunc: func(ctx context.Context, sessionID string, action services.Action) (services.DesignerSnapshot, error) {
			dispatched = action
			return sampleSnapshot(sessionID, "user-1"), nil
		},
	}
	NewDesignerHandlers(nil, service).Routes(router)

	payload := `{"type":"update_element","elementId":"el-1","position":{"x":10.5,"y":20}}`
	req := httptest.NewRequest(http.MethodPost, "/sessions/ses_123/actions", bytes.NewBufferString(payload))
	req = authenticated(req, "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	action, ok := dispatched.(services.UpdateElement)
	if !ok {
		t.Fatalf("expected UpdateElement action, got %T", dispatched)
	}
	if action.ElementID != "el-1" {
		t.Fatalf("expected element el-1, got %s", action.ElementID)
	}
	if action.Content != nil {
		t.Fatalf("expected content untouched, got %v", *action.Content)
	}
	if action.Position == nil || action.Position.X != 10.5 {
		t.Fatalf("expected position patch, got %#v", action.Position)
	}
	if action.Size != nil {
		t.Fatalf("expected size untouched")
	}
}

func TestDesignerHandlersDispatchRejectsUnknownType(t *testing.T) {
	router := chi.NewRouter()
	service := &stubDesignerService{
		getFunc: func(ctx context.Context, sessionID string) (services.DesignerSnapshot, error) {
			return sampleSnapshot(sessionID, "user-1"), nil
		},
	}
	NewDesignerHandlers(nil, service).Routes(router)

	req := httptest.NewRequest(http.MethodPost, "/sessions/ses_123/actions", bytes.NewBufferString(`{"type":"explode"}`))
	req = authenticated(req, "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestDesignerHandlersDispatchMapsConfigurationErrors(t *testing.T) {
	router := chi.NewRouter()
	service := &stubDesignerService{
		getFunc: func(ctx context.Context, sessionID string) (services.DesignerSnapshot, error) {
			return sampleSnapshot(sessionID, "user-1"), nil
		},
		dispatchFunc: func(ctx context.Context, sessionID string, action services.Action) (services.DesignerSnapshot, error) {
			return services.DesignerSnapshot{}, services.ErrInvalidConfiguration
		},
	}
	NewDesignerHandlers(nil, service).Routes(router)

	req := httptest.NewRequest(http.MethodPost, "/sessions/ses_123/actions", bytes.NewBufferString(`{"type":"set_material","material":"granite"}`))
	req = authenticated(req, "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rr.Code)
	}
}

func TestDesignerHandlersCloseSession(t *testing.T) {
	router := chi.NewRouter()
	closed := ""
	service := &stubDesignerService{
		getFunc: func(ctx context.Context, sessionID string) (services.DesignerSnapshot, error) {
			return sampleSnapshot(sessionID, "user-1"), nil
		},
		closeFunc: func(ctx context.Context, sessionID string) error {
			closed = sessionID
			return nil
		},
	}
	NewDesignerHandlers(nil, service).Routes(router)

	req := authenticated(httptest.NewRequest(http.MethodDelete, "/sessions/ses_123", nil), "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if closed != "ses_123" {
		t.Fatalf("expected close for ses_123, got %q", closed)
	}
}

func TestDesignerHandlersSessionNotFound(t *testing.T) {
	router := chi.NewRouter()
	service := &stubDesignerService{
		getFunc: func(ctx context.Context, sessionID string) (services.DesignerSnapshot, error) {
			return services.DesignerSnapshot{}, services.ErrSessionNotFound
		},
	}
	NewDesignerHandlers(nil, service).Routes(router)

	req := authenticated(httptest.NewRequest(http.MethodGet, "/sessions/ses_missing", nil), "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}
