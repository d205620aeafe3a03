package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/tapforge/api/internal/domain"
)

var (
	// ErrSessionNotFound is returned when the designer session does not exist or was closed.
	ErrSessionNotFound = errors.New("designer: session not found")
	// ErrElementNotFound is returned when an action references an element the design does not contain.
	ErrElementNotFound = errors.New("designer: element not found")
	// ErrUnknownAction is returned when Dispatch receives an action outside the supported set.
	ErrUnknownAction = errors.New("designer: unknown action")
)

const (
	sessionIDPrefix      = "ses_"
	maxElementsPerDesign = 50
	maxTextContentLength = 200
	maxTemplateIDLength  = 120
)

// Action is one designer mutation. The set of implementations in this file is
// closed; Dispatch rejects anything else.
type Action interface {
	actionName() string
}

// SelectTemplate switches the design to a different base template.
type SelectTemplate struct {
	TemplateID string
}

// AddElement appends a new element to the top of the stacking order.
type AddElement struct {
	Kind     ElementKind
	Content  string
	Position Position
	Size     Size
	Style    map[string]string
}

// UpdateElement patches an existing element in place. Nil fields are left
// untouched; the element keeps its identifier and stacking position.
type UpdateElement struct {
	ElementID string
	Content   *string
	Position  *Position
	Size      *Size
	Style     map[string]string
}

// RemoveElement deletes an element. Remaining elements keep their relative order.
type RemoveElement struct {
	ElementID string
}

// SetMaterial changes the card body material. Raw input is parsed against the
// closed material set.
type SetMaterial struct {
	Material string
}

// SetChipType changes the embedded NFC chip model.
type SetChipType struct {
	ChipType string
}

// SetColor assigns a hex color to one of the three color slots.
type SetColor struct {
	Slot  string
	Value string
}

// SetQuantity changes the order quantity used for pricing.
type SetQuantity struct {
	Quantity int
}

// SelectElement updates the UI selection. An empty ElementID clears it.
type SelectElement struct {
	ElementID string
}

// SetActiveTab switches the active designer panel tab.
type SetActiveTab struct {
	Tab string
}

// SetDragging toggles the drag-in-progress flag.
type SetDragging struct {
	Dragging bool
}

func (SelectTemplate) actionName() string { return "select_template" }
func (AddElement) actionName() string     { return "add_element" }
func (UpdateElement) actionName() string  { return "update_element" }
func (RemoveElement) actionName() string  { return "remove_element" }
func (SetMaterial) actionName() string    { return "set_material" }
func (SetChipType) actionName() string    { return "set_chip_type" }
func (SetColor) actionName() string       { return "set_color" }
func (SetQuantity) actionName() string    { return "set_quantity" }
func (SelectElement) actionName() string  { return "select_element" }
func (SetActiveTab) actionName() string   { return "set_active_tab" }
func (SetDragging) actionName() string    { return "set_dragging" }

type designerSession struct {
	mu       sync.Mutex
	id       string
	userID   string
	design   Design
	quantity int
	pricing  PricingDetails
	ui       UIState
	updated  time.Time
}

type designerService struct {
	pricing   PricingCalculator
	sanitizer *bluemonday.Policy

	sessionID func() string
	elementID func() string
	now       func() time.Time
	logger    func(context.Context, string, map[string]any)

	mu       sync.RWMutex
	sessions map[string]*designerSession
}

type DesignerServiceDeps struct {
	Pricing   PricingCalculator
	SessionID func() string
	ElementID func() string
	Now       func() time.Time
	Logger    func(context.Context, string, map[string]any)
}

func NewDesignerService(deps DesignerServiceDeps) (DesignerService, error) {
	if deps.Pricing == nil {
		return nil, errors.New("designer service: pricing calculator is required")
	}
	sessionID := deps.SessionID
	if sessionID == nil {
		sessionID = func() string { return sessionIDPrefix + ulid.Make().String() }
	}
	elementID := deps.ElementID
	if elementID == nil {
		elementID = uuid.NewString
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &designerService{
		pricing:   deps.Pricing,
		sanitizer: bluemonday.StrictPolicy(),
		sessionID: sessionID,
		elementID: elementID,
		now:       func() time.Time { return now().UTC() },
		logger:    logger,
		sessions:  make(map[string]*designerSession),
	}, nil
}

func (s *designerService) StartSession(ctx context.Context, cmd StartSessionCommand) (DesignerSnapshot, error) {
	design := domain.NewDesign()
	if cmd.Seed != nil {
		seed := cmd.Seed.Clone()
		if !seed.Material.Valid() || !seed.ChipType.Valid() {
			return DesignerSnapshot{}, fmt.Errorf("%w: seed design has unsupported material or chip type", ErrInvalidConfiguration)
		}
		if seed.Colors == (ColorScheme{}) {
			seed.Colors = domain.DefaultColorScheme()
		}
		design = seed
	}
	if template := strings.TrimSpace(cmd.TemplateID); template != "" {
		if len(template) > maxTemplateIDLength {
			return DesignerSnapshot{}, fmt.Errorf("%w: template id too long", ErrInvalidConfiguration)
		}
		design.TemplateID = template
	}

	quantity := 1
	pricing, err := s.pricing.Calculate(design, quantity)
	if err != nil {
		return DesignerSnapshot{}, err
	}

	session := &designerSession{
		id:       s.sessionID(),
		userID:   strings.TrimSpace(cmd.UserID),
		design:   design,
		quantity: quantity,
		pricing:  pricing,
		updated:  s.now(),
	}

	s.mu.Lock()
	s.sessions[session.id] = session
	s.mu.Unlock()

	s.logger(ctx, "designer.session_started", map[string]any{
		"sessionId": session.id,
		"userId":    session.userID,
	})

	return snapshotLocked(session), nil
}

func (s *designerService) GetSession(ctx context.Context, sessionID string) (DesignerSnapshot, error) {
	session, err := s.lookup(sessionID)
	if err != nil {
		return DesignerSnapshot{}, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	return snapshotLocked(session), nil
}

// Dispatch applies one action to the session. The mutation and any pricing
// recomputation happen under the session lock, so a snapshot never pairs a
// design with pricing computed for a different design or quantity. Failed
// actions leave the session exactly as it was.
func (s *designerService) Dispatch(ctx context.Context, sessionID string, action Action) (DesignerSnapshot, error) {
	session, err := s.lookup(sessionID)
	if err != nil {
		return DesignerSnapshot{}, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	prevDesign := session.design.Clone()
	prevQuantity := session.quantity
	prevUI := session.ui

	affectsPricing, err := s.apply(session, action)
	if err != nil {
		return DesignerSnapshot{}, err
	}
	if affectsPricing {
		pricing, err := s.pricing.Calculate(session.design, session.quantity)
		if err != nil {
			session.design = prevDesign
			session.quantity = prevQuantity
			session.ui = prevUI
			s.logger(ctx, "designer.recompute_failed", map[string]any{
				"sessionId": session.id,
				"action":    action.actionName(),
				"error":     err.Error(),
			})
			return DesignerSnapshot{}, err
		}
		session.pricing = pricing
	}
	session.updated = s.now()

	return snapshotLocked(session), nil
}

func (s *designerService) CloseSession(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	delete(s.sessions, sessionID)
	return nil
}

func (s *designerService) lookup(sessionID string) (*designerSession, error) {
	sessionID = strings.TrimSpace(sessionID)

	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return session, nil
}

// apply validates then mutates. Every early return happens before the first
// write to session state. The boolean reports whether the action changed the
// design or quantity and therefore requires a pricing recomputation.
func (s *designerService) apply(session *designerSession, action Action) (bool, error) {
	switch act := action.(type) {
	case SelectTemplate:
		template := strings.TrimSpace(act.TemplateID)
		if template == "" || len(template) > maxTemplateIDLength {
			return false, fmt.Errorf("%w: invalid template id", ErrInvalidConfiguration)
		}
		session.design.TemplateID = template
		return true, nil

	case AddElement:
		if !act.Kind.Valid() {
			return false, fmt.Errorf("%w: unknown element kind %q", ErrInvalidConfiguration, act.Kind)
		}
		if len(session.design.Elements) >= maxElementsPerDesign {
			return false, fmt.Errorf("%w: design already holds %d elements", ErrInvalidConfiguration, maxElementsPerDesign)
		}
		content, err := s.normalizeContent(act.Kind, act.Content)
		if err != nil {
			return false, err
		}
		element := DesignElement{
			ID:       s.elementID(),
			Kind:     act.Kind,
			Content:  content,
			Position: act.Position,
			Size:     act.Size,
		}
		if len(act.Style) > 0 {
			element.Style = make(map[string]string, len(act.Style))
			for k, v := range act.Style {
				element.Style[k] = v
			}
		}
		session.design.Elements = append(session.design.Elements, element)
		return true, nil

	case UpdateElement:
		idx := indexOfElement(session.design.Elements, act.ElementID)
		if idx < 0 {
			return false, fmt.Errorf("%w: %s", ErrElementNotFound, act.ElementID)
		}
		var content string
		if act.Content != nil {
			var err error
			content, err = s.normalizeContent(session.design.Elements[idx].Kind, *act.Content)
			if err != nil {
				return false, err
			}
		}
		element := &session.design.Elements[idx]
		if act.Content != nil {
			element.Content = content
		}
		if act.Position != nil {
			element.Position = *act.Position
		}
		if act.Size != nil {
			element.Size = *act.Size
		}
		if act.Style != nil {
			if element.Style == nil {
				element.Style = make(map[string]string, len(act.Style))
			}
			for k, v := range act.Style {
				element.Style[k] = v
			}
		}
		return true, nil

	case RemoveElement:
		idx := indexOfElement(session.design.Elements, act.ElementID)
		if idx < 0 {
			return false, fmt.Errorf("%w: %s", ErrElementNotFound, act.ElementID)
		}
		session.design.Elements = append(session.design.Elements[:idx], session.design.Elements[idx+1:]...)
		if session.ui.SelectedElementID == act.ElementID {
			session.ui.SelectedElementID = ""
		}
		return true, nil

	case SetMaterial:
		material, ok := domain.ParseMaterial(act.Material)
		if !ok {
			return false, fmt.Errorf("%w: unknown material %q", ErrInvalidConfiguration, act.Material)
		}
		session.design.Material = material
		return true, nil

	case SetChipType:
		chip, ok := domain.ParseChipType(act.ChipType)
		if !ok {
			return false, fmt.Errorf("%w: unknown chip type %q", ErrInvalidConfiguration, act.ChipType)
		}
		session.design.ChipType = chip
		return true, nil

	case SetColor:
		slot := ColorSlot(strings.ToLower(strings.TrimSpace(act.Slot)))
		if !slot.Valid() {
			return false, fmt.Errorf("%w: unknown color slot %q", ErrInvalidConfiguration, act.Slot)
		}
		value := strings.ToLower(strings.TrimSpace(act.Value))
		if !domain.ValidHexColor(value) {
			return false, fmt.Errorf("%w: invalid color value %q", ErrInvalidConfiguration, act.Value)
		}
		switch slot {
		case domain.ColorSlotPrimary:
			session.design.Colors.Primary = value
		case domain.ColorSlotSecondary:
			session.design.Colors.Secondary = value
		default:
			session.design.Colors.Background = value
		}
		return true, nil

	case SetQuantity:
		if act.Quantity <= 0 {
			return false, fmt.Errorf("%w: quantity %d must be positive", ErrInvalidQuantity, act.Quantity)
		}
		session.quantity = act.Quantity
		return true, nil

	case SelectElement:
		elementID := strings.TrimSpace(act.ElementID)
		if elementID != "" && indexOfElement(session.design.Elements, elementID) < 0 {
			return false, fmt.Errorf("%w: %s", ErrElementNotFound, elementID)
		}
		session.ui.SelectedElementID = elementID
		return false, nil

	case SetActiveTab:
		session.ui.ActiveTab = strings.TrimSpace(act.Tab)
		return false, nil

	case SetDragging:
		session.ui.Dragging = act.Dragging
		return false, nil

	default:
		return false, fmt.Errorf("%w: %T", ErrUnknownAction, action)
	}
}

func (s *designerService) normalizeContent(kind ElementKind, content string) (string, error) {
	content = strings.TrimSpace(content)
	if kind == domain.ElementKindText {
		content = strings.TrimSpace(s.sanitizer.Sanitize(content))
	}
	if len(content) > maxTextContentLength {
		return "", fmt.Errorf("%w: element content exceeds %d characters", ErrInvalidConfiguration, maxTextContentLength)
	}
	return content, nil
}

func indexOfElement(elements []DesignElement, elementID string) int {
	for i, element := range elements {
		if element.ID == elementID {
			return i
		}
	}
	return -1
}

func snapshotLocked(session *designerSession) DesignerSnapshot {
	return DesignerSnapshot{
		SessionID: session.id,
		UserID:    session.userID,
		Design:    session.design.Clone(),
		Quantity:  session.quantity,
		Pricing:   session.pricing,
		UI:        session.ui,
	}
}
