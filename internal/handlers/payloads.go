package handlers

import (
	domain "github.com/tapforge/api/internal/domain"
	"github.com/tapforge/api/internal/services"
)

// JSON shapes shared by the designer, design, order, and checkout endpoints.
// Designs travel in both directions: clients submit them at checkout and the
// API returns them inside sessions, saved designs, and orders.

type positionPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type sizePayload struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type elementPayload struct {
	ID       string            `json:"id,omitempty"`
	Kind     string            `json:"kind"`
	Content  string            `json:"content"`
	Position positionPayload   `json:"position"`
	Size     sizePayload       `json:"size"`
	Style    map[string]string `json:"style,omitempty"`
}

type colorSchemePayload struct {
	Primary    string `json:"primary"`
	Secondary  string `json:"secondary"`
	Background string `json:"background"`
}

type designPayload struct {
	TemplateID string             `json:"templateId"`
	Elements   []elementPayload   `json:"elements"`
	Material   string             `json:"material"`
	ChipType   string             `json:"chipType"`
	Colors     colorSchemePayload `json:"colors"`
}

type pricingPayload struct {
	BasePrice       int64  `json:"basePrice"`
	MaterialCost    int64  `json:"materialCost"`
	NFCCost         int64  `json:"nfcCost"`
	UnitPrice       int64  `json:"unitPrice"`
	Quantity        int    `json:"quantity"`
	Subtotal        int64  `json:"subtotal"`
	DiscountRateBps int64  `json:"discountRateBps"`
	DiscountAmount  int64  `json:"discountAmount"`
	Total           int64  `json:"total"`
	Currency        string `json:"currency"`
}

type shippingPayload struct {
	Recipient  string `json:"recipient"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

type orderPayload struct {
	ID          string          `json:"id"`
	Number      string          `json:"number"`
	Design      designPayload   `json:"design"`
	Quantity    int             `json:"quantity"`
	Pricing     pricingPayload  `json:"pricing"`
	Shipping    shippingPayload `json:"shipping"`
	Status      string          `json:"status"`
	PaymentRef  string          `json:"paymentRef,omitempty"`
	FailReason  string          `json:"failReason,omitempty"`
	CreatedAt   string          `json:"createdAt"`
	UpdatedAt   string          `json:"updatedAt"`
	PaidAt      string          `json:"paidAt,omitempty"`
	FulfilledAt string          `json:"fulfilledAt,omitempty"`
	FailedAt    string          `json:"failedAt,omitempty"`
}

type savedDesignPayload struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Design    designPayload `json:"design"`
	CreatedAt string        `json:"createdAt"`
	UpdatedAt string        `json:"updatedAt"`
}

func toDesignPayload(design domain.Design) designPayload {
	elements := make([]elementPayload, 0, len(design.Elements))
	for _, element := range design.Elements {
		elements = append(elements, elementPayload{
			ID:       element.ID,
			Kind:     string(element.Kind),
			Content:  element.Content,
			Position: positionPayload{X: element.Position.X, Y: element.Position.Y},
			Size:     sizePayload{Width: element.Size.Width, Height: element.Size.Height},
			Style:    element.Style,
		})
	}
	return designPayload{
		TemplateID: design.TemplateID,
		Elements:   elements,
		Material:   string(design.Material),
		ChipType:   string(design.ChipType),
		Colors: colorSchemePayload{
			Primary:    design.Colors.Primary,
			Secondary:  design.Colors.Secondary,
			Background: design.Colors.Background,
		},
	}
}

func (p designPayload) toDomain() domain.Design {
	elements := make([]domain.DesignElement, 0, len(p.Elements))
	for _, element := range p.Elements {
		elements = append(elements, domain.DesignElement{
			ID:       element.ID,
			Kind:     domain.ElementKind(element.Kind),
			Content:  element.Content,
			Position: domain.Position{X: element.Position.X, Y: element.Position.Y},
			Size:     domain.Size{Width: element.Size.Width, Height: element.Size.Height},
			Style:    element.Style,
		})
	}
	design := domain.Design{
		TemplateID: p.TemplateID,
		Material:   domain.Material(p.Material),
		ChipType:   domain.ChipType(p.ChipType),
		Colors: domain.ColorScheme{
			Primary:    p.Colors.Primary,
			Secondary:  p.Colors.Secondary,
			Background: p.Colors.Background,
		},
	}
	if len(elements) > 0 {
		design.Elements = elements
	}
	return design
}

func toPricingPayload(pricing domain.PricingDetails) pricingPayload {
	return pricingPayload{
		BasePrice:       pricing.BasePrice,
		MaterialCost:    pricing.MaterialCost,
		NFCCost:         pricing.NFCCost,
		UnitPrice:       pricing.UnitPrice(),
		Quantity:        pricing.Quantity,
		Subtotal:        pricing.Subtotal,
		DiscountRateBps: pricing.DiscountRateBps,
		DiscountAmount:  pricing.DiscountAmount,
		Total:           pricing.Total,
		Currency:        pricing.Currency,
	}
}

func toShippingPayload(shipping domain.ShippingInfo) shippingPayload {
	return shippingPayload{
		Recipient:  shipping.Recipient,
		Line1:      shipping.Line1,
		Line2:      shipping.Line2,
		City:       shipping.City,
		State:      shipping.State,
		PostalCode: shipping.PostalCode,
		Country:    shipping.Country,
		Phone:      shipping.Phone,
	}
}

func (p shippingPayload) toDomain() domain.ShippingInfo {
	return domain.ShippingInfo{
		Recipient:  p.Recipient,
		Line1:      p.Line1,
		Line2:      p.Line2,
		City:       p.City,
		State:      p.State,
		PostalCode: p.PostalCode,
		Country:    p.Country,
		Phone:      p.Phone,
	}
}

func toOrderPayload(order domain.Order) orderPayload {
	return orderPayload{
		ID:          order.ID,
		Number:      order.Number,
		Design:      toDesignPayload(order.Design),
		Quantity:    order.Quantity,
		Pricing:     toPricingPayload(order.Pricing),
		Shipping:    toShippingPayload(order.Shipping),
		Status:      string(order.Status),
		PaymentRef:  order.PaymentRef,
		FailReason:  order.FailReason,
		CreatedAt:   formatTime(order.CreatedAt),
		UpdatedAt:   formatTime(order.UpdatedAt),
		PaidAt:      formatOptionalTime(order.PaidAt),
		FulfilledAt: formatOptionalTime(order.FulfilledAt),
		FailedAt:    formatOptionalTime(order.FailedAt),
	}
}

func toSavedDesignPayload(design domain.SavedDesign) savedDesignPayload {
	return savedDesignPayload{
		ID:        design.ID,
		Name:      design.Name,
		Design:    toDesignPayload(design.Design),
		CreatedAt: formatTime(design.CreatedAt),
		UpdatedAt: formatTime(design.UpdatedAt),
	}
}

type designerSnapshotPayload struct {
	SessionID string         `json:"sessionId"`
	Design    designPayload  `json:"design"`
	Quantity  int            `json:"quantity"`
	Pricing   pricingPayload `json:"pricing"`
	UI        uiStatePayload `json:"ui"`
}

type uiStatePayload struct {
	SelectedElementID string `json:"selectedElementId,omitempty"`
	ActiveTab         string `json:"activeTab,omitempty"`
	Dragging          bool   `json:"dragging"`
}

func toDesignerSnapshotPayload(snapshot services.DesignerSnapshot) designerSnapshotPayload {
	return designerSnapshotPayload{
		SessionID: snapshot.SessionID,
		Design:    toDesignPayload(snapshot.Design),
		Quantity:  snapshot.Quantity,
		Pricing:   toPricingPayload(snapshot.Pricing),
		UI: uiStatePayload{
			SelectedElementID: snapshot.UI.SelectedElementID,
			ActiveTab:         snapshot.UI.ActiveTab,
			Dragging:          snapshot.UI.Dragging,
		},
	}
}
