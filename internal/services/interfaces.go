package services

import (
	"context"

	domain "github.com/tapforge/api/internal/domain"
	"github.com/tapforge/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	SortOrder          = domain.SortOrder
	Material           = domain.Material
	ChipType           = domain.ChipType
	ElementKind        = domain.ElementKind
	Position           = domain.Position
	Size               = domain.Size
	DesignElement      = domain.DesignElement
	ColorScheme        = domain.ColorScheme
	ColorSlot          = domain.ColorSlot
	Design             = domain.Design
	UIState            = domain.UIState
	SavedDesign        = domain.SavedDesign
	PricingDetails     = domain.PricingDetails
	ShippingInfo       = domain.ShippingInfo
	Order              = domain.Order
	OrderStatus        = domain.OrderStatus
	SystemHealthReport = domain.SystemHealthReport
)

// DefaultCurrency mirrors the domain settlement currency for callers in this package.
const DefaultCurrency = domain.DefaultCurrency

// Enum constants re-exported for call sites inside this package.
const (
	MaterialPVC            = domain.MaterialPVC
	MaterialMetal          = domain.MaterialMetal
	MaterialWood           = domain.MaterialWood
	MaterialPremiumPlastic = domain.MaterialPremiumPlastic

	ChipNTAG213 = domain.ChipNTAG213
	ChipNTAG215 = domain.ChipNTAG215
	ChipNTAG216 = domain.ChipNTAG216

	OrderStatusPending   = domain.OrderStatusPending
	OrderStatusPaid      = domain.OrderStatusPaid
	OrderStatusFulfilled = domain.OrderStatusFulfilled
	OrderStatusFailed    = domain.OrderStatusFailed
)

// PricingCalculator derives an itemized price breakdown from a design and
// quantity. Implementations must be pure: identical inputs always yield
// identical PricingDetails.
type PricingCalculator interface {
	Calculate(design Design, quantity int) (PricingDetails, error)
	Currency() string
}

// DesignerService manages per-user designer sessions. All mutation flows
// through Dispatch; pricing in a returned snapshot is always consistent with
// the design and quantity beside it.
type DesignerService interface {
	StartSession(ctx context.Context, cmd StartSessionCommand) (DesignerSnapshot, error)
	GetSession(ctx context.Context, sessionID string) (DesignerSnapshot, error)
	Dispatch(ctx context.Context, sessionID string, action Action) (DesignerSnapshot, error)
	CloseSession(ctx context.Context, sessionID string) error
}

// DesignService persists designs users choose to keep beyond a session.
type DesignService interface {
	SaveDesign(ctx context.Context, cmd SaveDesignCommand) (SavedDesign, error)
	GetDesign(ctx context.Context, userID, designID string) (SavedDesign, error)
	ListDesigns(ctx context.Context, filter DesignListFilter) (domain.CursorPage[SavedDesign], error)
	DeleteDesign(ctx context.Context, userID, designID string) error
}

// OrderValidator gates candidate orders before the creation pipeline runs.
// Validation is a pure check with no side effects; a failed order can be
// corrected and resubmitted immediately.
type OrderValidator interface {
	Validate(input CreateOrderInput) (ValidatedOrder, error)
}

// OrderService runs the order creation pipeline and the order status machine.
type OrderService interface {
	Create(ctx context.Context, input CreateOrderInput) (Order, error)
	Get(ctx context.Context, userID, orderID string) (Order, error)
	ListByUser(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error)
}

// OrderEventPublisher hands order lifecycle events to downstream consumers
// (confirmation mail, fulfilment). Delivery failures never undo an order.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// SystemService aggregates utility endpoints (health checks).
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// Command and DTO definitions ------------------------------------------------

// StartSessionCommand opens a designer session, optionally seeded from a
// previously saved design.
type StartSessionCommand struct {
	UserID     string
	TemplateID string
	Seed       *Design
}

// DesignerSnapshot is a point-in-time read of one session's state. Design is
// a deep copy; mutating it never affects the session.
type DesignerSnapshot struct {
	SessionID string
	UserID    string
	Design    Design
	Quantity  int
	Pricing   PricingDetails
	UI        UIState
}

type SaveDesignCommand struct {
	UserID string
	Name   string
	Design Design
}

type DesignListFilter struct {
	UserID string
	Pagination
}

// CreateOrderInput is the candidate payload submitted at checkout.
// SubmittedTotal is the client-side total and is never trusted: the pipeline
// recomputes pricing and rejects mismatches.
type CreateOrderInput struct {
	UserID         string
	Design         Design
	Quantity       int
	SubmittedTotal int64
	Shipping       ShippingInfo
}

// ValidatedOrder is the immutable payload a successful validation yields.
// Pricing is the independently recomputed breakdown, not the submitted one.
type ValidatedOrder struct {
	UserID   string
	Design   Design
	Quantity int
	Pricing  PricingDetails
	Shipping ShippingInfo
}

type OrderListFilter = repositories.OrderListFilter

type OrderStatusTransitionCommand struct {
	OrderID      string
	TargetStatus OrderStatus
	Reason       string
	PaymentRef   string
}

// OrderEvent is the payload published after order lifecycle changes.
type OrderEvent struct {
	Type     string
	OrderID  string
	Number   string
	UserID   string
	Status   OrderStatus
	Total    int64
	Currency string
}

const (
	// OrderEventCreated is published once an order is persisted as pending.
	OrderEventCreated = "order.created"
	// OrderEventStatusChanged is published on every status transition.
	OrderEventStatusChanged = "order.status_changed"
)
