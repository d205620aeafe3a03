package domain

import (
	"regexp"
	"strings"
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// Material enumerates the card body materials offered by the shop.
type Material string

const (
	// MaterialPVC is the standard plastic card body.
	MaterialPVC Material = "pvc"
	// MaterialMetal is the brushed-metal card body.
	MaterialMetal Material = "metal"
	// MaterialWood is the veneer wood card body.
	MaterialWood Material = "wood"
	// MaterialPremiumPlastic is the matte premium plastic card body.
	MaterialPremiumPlastic Material = "premium_plastic"
)

// Materials lists every supported material in catalog order.
func Materials() []Material {
	return []Material{MaterialPVC, MaterialMetal, MaterialWood, MaterialPremiumPlastic}
}

// Valid reports whether the material is one of the supported values.
func (m Material) Valid() bool {
	switch m {
	case MaterialPVC, MaterialMetal, MaterialWood, MaterialPremiumPlastic:
		return true
	default:
		return false
	}
}

// ParseMaterial normalises raw input into a Material value.
func ParseMaterial(raw string) (Material, bool) {
	m := Material(strings.ToLower(strings.TrimSpace(raw)))
	if !m.Valid() {
		return "", false
	}
	return m, true
}

// ChipType enumerates the NFC chip models that can be embedded in a card.
type ChipType string

const (
	// ChipNTAG213 is the entry-level chip with 144 bytes of user memory.
	ChipNTAG213 ChipType = "ntag213"
	// ChipNTAG215 is the mid-tier chip with 504 bytes of user memory.
	ChipNTAG215 ChipType = "ntag215"
	// ChipNTAG216 is the large chip with 888 bytes of user memory.
	ChipNTAG216 ChipType = "ntag216"
)

// ChipTypes lists every supported chip model in catalog order.
func ChipTypes() []ChipType {
	return []ChipType{ChipNTAG213, ChipNTAG215, ChipNTAG216}
}

// Valid reports whether the chip type is one of the supported values.
func (c ChipType) Valid() bool {
	switch c {
	case ChipNTAG213, ChipNTAG215, ChipNTAG216:
		return true
	default:
		return false
	}
}

// ParseChipType normalises raw input into a ChipType value.
func ParseChipType(raw string) (ChipType, bool) {
	c := ChipType(strings.ToLower(strings.TrimSpace(raw)))
	if !c.Valid() {
		return "", false
	}
	return c, true
}

// ElementKind enumerates the kinds of items that can be placed on a card face.
type ElementKind string

const (
	// ElementKindText is a free-text label.
	ElementKindText ElementKind = "text"
	// ElementKindLogo is an uploaded logo image reference.
	ElementKindLogo ElementKind = "logo"
	// ElementKindIcon is a built-in icon reference.
	ElementKindIcon ElementKind = "icon"
)

// Valid reports whether the element kind is one of the supported values.
func (k ElementKind) Valid() bool {
	switch k {
	case ElementKindText, ElementKindLogo, ElementKindIcon:
		return true
	default:
		return false
	}
}

// Position locates an element on the card face in millimetres from the top-left corner.
type Position struct {
	X float64
	Y float64
}

// Size stores the rendered dimensions of an element in millimetres.
type Size struct {
	Width  float64
	Height float64
}

// DesignElement is one placed item on the card face. Slice order within a
// Design is the visual stacking order (later elements render on top).
type DesignElement struct {
	ID       string
	Kind     ElementKind
	Content  string
	Position Position
	Size     Size
	Style    map[string]string
}

// Clone returns a deep copy of the element.
func (e DesignElement) Clone() DesignElement {
	out := e
	if e.Style != nil {
		out.Style = make(map[string]string, len(e.Style))
		for k, v := range e.Style {
			out.Style[k] = v
		}
	}
	return out
}

var hexColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// ValidHexColor reports whether the value is a #RGB or #RRGGBB color literal.
func ValidHexColor(value string) bool {
	return hexColorPattern.MatchString(value)
}

// ColorScheme holds the three card colors. Fields are always populated; a
// fresh Design starts from DefaultColorScheme.
type ColorScheme struct {
	Primary    string
	Secondary  string
	Background string
}

// DefaultColorScheme returns the colors applied to a new design before the
// user picks their own.
func DefaultColorScheme() ColorScheme {
	return ColorScheme{
		Primary:    "#1a1a1a",
		Secondary:  "#6b7280",
		Background: "#ffffff",
	}
}

// ColorSlot names one of the three configurable design colors.
type ColorSlot string

const (
	// ColorSlotPrimary is the main foreground color.
	ColorSlotPrimary ColorSlot = "primary"
	// ColorSlotSecondary is the accent color.
	ColorSlotSecondary ColorSlot = "secondary"
	// ColorSlotBackground is the card background color.
	ColorSlotBackground ColorSlot = "background"
)

// Valid reports whether the slot is one of the supported values.
func (s ColorSlot) Valid() bool {
	switch s {
	case ColorSlotPrimary, ColorSlotSecondary, ColorSlotBackground:
		return true
	default:
		return false
	}
}

// Design is the in-progress configuration of a single card. Elements are
// owned by the design and mutated only through designer actions.
type Design struct {
	TemplateID string
	Elements   []DesignElement
	Material   Material
	ChipType   ChipType
	Colors     ColorScheme
}

// NewDesign returns an empty design with valid defaults for every
// configurable field.
func NewDesign() Design {
	return Design{
		Material: MaterialPVC,
		ChipType: ChipNTAG213,
		Colors:   DefaultColorScheme(),
	}
}

// Clone returns a deep copy of the design, detaching elements and styles.
func (d Design) Clone() Design {
	out := d
	if d.Elements != nil {
		out.Elements = make([]DesignElement, len(d.Elements))
		for i, el := range d.Elements {
			out.Elements[i] = el.Clone()
		}
	}
	return out
}

// UIState tracks transient designer UI state. It is never persisted with an
// order. SelectedElementID references an element by identifier only.
type UIState struct {
	SelectedElementID string
	ActiveTab         string
	Dragging          bool
}

// SavedDesign is a design a user stored for later reuse.
type SavedDesign struct {
	ID        string
	OwnerID   string
	Name      string
	Design    Design
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy of the saved design.
func (d SavedDesign) Clone() SavedDesign {
	out := d
	out.Design = d.Design.Clone()
	return out
}

// ShippingInfo stores the postal destination captured at checkout.
type ShippingInfo struct {
	Recipient  string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
	Phone      string
}

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusPending indicates the order is persisted and awaits payment.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusPaid indicates payment succeeded and production can begin.
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusFulfilled indicates the order has shipped. Terminal.
	OrderStatusFulfilled OrderStatus = "fulfilled"
	// OrderStatusFailed indicates payment failed or the order was canceled. Terminal.
	OrderStatusFailed OrderStatus = "failed"
)

// Valid reports whether the status is one of the supported values.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusFulfilled, OrderStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition may leave the status.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusFulfilled || s == OrderStatusFailed
}

// Order is an immutable, uniquely identified snapshot of a design and its
// pricing, submitted for payment and fulfilment. Design and Pricing are deep
// copies taken at creation time; later designer edits never touch them.
type Order struct {
	ID           string
	Number       string
	UserID       string
	Design       Design
	Quantity     int
	Pricing      PricingDetails
	Shipping     ShippingInfo
	Status       OrderStatus
	PaymentRef   string
	FailReason   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	PaidAt       *time.Time
	FulfilledAt  *time.Time
	FailedAt     *time.Time
}

// Clone returns a deep copy of the order.
func (o Order) Clone() Order {
	out := o
	out.Design = o.Design.Clone()
	out.PaidAt = cloneTime(o.PaidAt)
	out.FulfilledAt = cloneTime(o.FulfilledAt)
	out.FailedAt = cloneTime(o.FailedAt)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded but service remains running.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates the service or a critical dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}
