package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/tapforge/api/internal/domain"
	pfirestore "github.com/tapforge/api/internal/platform/firestore"
	"github.com/tapforge/api/internal/platform/pagination"
	"github.com/tapforge/api/internal/repositories"
)

const ordersCollection = "orders"

// OrderRepository persists order snapshots in Firestore.
type OrderRepository struct {
	base *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil)
	return &OrderRepository{base: base}, nil
}

// Insert stores a new order. A second write with the same ID fails with a conflict.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return errors.New("order repository: order id is required")
	}
	if _, err := r.base.Create(ctx, orderID, encodeOrderDocument(order)); err != nil {
		return err
	}
	return nil
}

// Update replaces the persisted order with the provided snapshot.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return errors.New("order repository: order id is required")
	}
	if _, err := r.base.Set(ctx, orderID, encodeOrderDocument(order)); err != nil {
		return err
	}
	return nil
}

// FindByID fetches a single order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}
	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrderDocument(orderID, doc.Data, doc.CreateTime, doc.UpdateTime), nil
}

// List returns orders matching the filter ordered by most recent creation.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	limit := filter.Pagination.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	var startAfter []any
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("order repository: %w", err)
		}
		startAfter = []any{cursor.Anchor, cursor.DocID}
	}

	userID := strings.TrimSpace(filter.UserID)
	statusFilters := normaliseOrderStatuses(filter.Status)

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if userID != "" {
			q = q.Where("userId", "==", userID)
		}

		if len(statusFilters) == 1 {
			q = q.Where("status", "==", statusFilters[0])
		} else if len(statusFilters) > 1 {
			// Firestore in clause supports up to 10 values.
			if len(statusFilters) > 10 {
				statusFilters = statusFilters[:10]
			}
			q = q.Where("status", "in", statusFilters)
		}

		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	valueDocs := docs
	nextToken := ""
	if limit > 0 && len(valueDocs) == fetchLimit {
		last := valueDocs[len(valueDocs)-1]
		tokenTime := last.Data.CreatedAt
		if tokenTime.IsZero() {
			tokenTime = last.CreateTime
		}
		nextToken = pagination.EncodeCursor(pagination.Cursor{Anchor: tokenTime, DocID: last.ID})
		valueDocs = valueDocs[:len(valueDocs)-1]
	}

	items := make([]domain.Order, 0, len(valueDocs))
	for _, doc := range valueDocs {
		items = append(items, decodeOrderDocument(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime))
	}

	return domain.CursorPage[domain.Order]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

type orderDocument struct {
	Number      string                 `firestore:"number"`
	UserID      string                 `firestore:"userId"`
	Design      designSnapshotDocument `firestore:"design"`
	Quantity    int                    `firestore:"quantity"`
	Pricing     pricingDocument        `firestore:"pricing"`
	Shipping    shippingDocument       `firestore:"shipping"`
	Status      string                 `firestore:"status"`
	PaymentRef  string                 `firestore:"paymentRef,omitempty"`
	FailReason  string                 `firestore:"failReason,omitempty"`
	CreatedAt   time.Time              `firestore:"createdAt"`
	UpdatedAt   time.Time              `firestore:"updatedAt"`
	PaidAt      *time.Time             `firestore:"paidAt,omitempty"`
	FulfilledAt *time.Time             `firestore:"fulfilledAt,omitempty"`
	FailedAt    *time.Time             `firestore:"failedAt,omitempty"`
}

type designSnapshotDocument struct {
	TemplateID string            `firestore:"templateId"`
	Elements   []elementDocument `firestore:"elements"`
	Material   string            `firestore:"material"`
	ChipType   string            `firestore:"chipType"`
	Colors     colorsDocument    `firestore:"colors"`
}

type elementDocument struct {
	ID      string            `firestore:"id"`
	Kind    string            `firestore:"kind"`
	Content string            `firestore:"content"`
	X       float64           `firestore:"x"`
	Y       float64           `firestore:"y"`
	Width   float64           `firestore:"width"`
	Height  float64           `firestore:"height"`
	Style   map[string]string `firestore:"style,omitempty"`
}

type colorsDocument struct {
	Primary    string `firestore:"primary"`
	Secondary  string `firestore:"secondary"`
	Background string `firestore:"background"`
}

type pricingDocument struct {
	BasePrice       int64  `firestore:"basePrice"`
	MaterialCost    int64  `firestore:"materialCost"`
	NFCCost         int64  `firestore:"nfcCost"`
	Quantity        int    `firestore:"quantity"`
	DiscountRateBps int64  `firestore:"discountRateBps"`
	DiscountAmount  int64  `firestore:"discountAmount"`
	Subtotal        int64  `firestore:"subtotal"`
	Total           int64  `firestore:"total"`
	Currency        string `firestore:"currency"`
}

type shippingDocument struct {
	Recipient  string `firestore:"recipient"`
	Line1      string `firestore:"line1"`
	Line2      string `firestore:"line2,omitempty"`
	City       string `firestore:"city"`
	State      string `firestore:"state,omitempty"`
	PostalCode string `firestore:"postalCode"`
	Country    string `firestore:"country"`
	Phone      string `firestore:"phone,omitempty"`
}

func encodeOrderDocument(order domain.Order) orderDocument {
	return orderDocument{
		Number:      strings.TrimSpace(order.Number),
		UserID:      strings.TrimSpace(order.UserID),
		Design:      encodeDesignSnapshot(order.Design),
		Quantity:    order.Quantity,
		Pricing:     encodePricing(order.Pricing),
		Shipping:    encodeShipping(order.Shipping),
		Status:      string(order.Status),
		PaymentRef:  strings.TrimSpace(order.PaymentRef),
		FailReason:  strings.TrimSpace(order.FailReason),
		CreatedAt:   order.CreatedAt.UTC(),
		UpdatedAt:   order.UpdatedAt.UTC(),
		PaidAt:      normalizeTimePointer(order.PaidAt),
		FulfilledAt: normalizeTimePointer(order.FulfilledAt),
		FailedAt:    normalizeTimePointer(order.FailedAt),
	}
}

func decodeOrderDocument(id string, doc orderDocument, createdAt, updatedAt time.Time) domain.Order {
	return domain.Order{
		ID:          strings.TrimSpace(id),
		Number:      strings.TrimSpace(doc.Number),
		UserID:      strings.TrimSpace(doc.UserID),
		Design:      decodeDesignSnapshot(doc.Design),
		Quantity:    doc.Quantity,
		Pricing:     decodePricing(doc.Pricing),
		Shipping:    decodeShipping(doc.Shipping),
		Status:      domain.OrderStatus(strings.TrimSpace(doc.Status)),
		PaymentRef:  strings.TrimSpace(doc.PaymentRef),
		FailReason:  strings.TrimSpace(doc.FailReason),
		CreatedAt:   chooseTime(doc.CreatedAt, createdAt),
		UpdatedAt:   chooseTime(doc.UpdatedAt, updatedAt),
		PaidAt:      normalizeTimePointer(doc.PaidAt),
		FulfilledAt: normalizeTimePointer(doc.FulfilledAt),
		FailedAt:    normalizeTimePointer(doc.FailedAt),
	}
}

func encodeDesignSnapshot(design domain.Design) designSnapshotDocument {
	elements := make([]elementDocument, 0, len(design.Elements))
	for _, element := range design.Elements {
		elements = append(elements, elementDocument{
			ID:      element.ID,
			Kind:    string(element.Kind),
			Content: element.Content,
			X:       element.Position.X,
			Y:       element.Position.Y,
			Width:   element.Size.Width,
			Height:  element.Size.Height,
			Style:   cloneStyle(element.Style),
		})
	}
	return designSnapshotDocument{
		TemplateID: strings.TrimSpace(design.TemplateID),
		Elements:   elements,
		Material:   string(design.Material),
		ChipType:   string(design.ChipType),
		Colors: colorsDocument{
			Primary:    design.Colors.Primary,
			Secondary:  design.Colors.Secondary,
			Background: design.Colors.Background,
		},
	}
}

func decodeDesignSnapshot(doc designSnapshotDocument) domain.Design {
	elements := make([]domain.DesignElement, 0, len(doc.Elements))
	for _, element := range doc.Elements {
		elements = append(elements, domain.DesignElement{
			ID:      element.ID,
			Kind:    domain.ElementKind(element.Kind),
			Content: element.Content,
			Position: domain.Position{
				X: element.X,
				Y: element.Y,
			},
			Size: domain.Size{
				Width:  element.Width,
				Height: element.Height,
			},
			Style: cloneStyle(element.Style),
		})
	}
	return domain.Design{
		TemplateID: strings.TrimSpace(doc.TemplateID),
		Elements:   elements,
		Material:   domain.Material(doc.Material),
		ChipType:   domain.ChipType(doc.ChipType),
		Colors: domain.ColorScheme{
			Primary:    doc.Colors.Primary,
			Secondary:  doc.Colors.Secondary,
			Background: doc.Colors.Background,
		},
	}
}

func encodePricing(pricing domain.PricingDetails) pricingDocument {
	return pricingDocument{
		BasePrice:       pricing.BasePrice,
		MaterialCost:    pricing.MaterialCost,
		NFCCost:         pricing.NFCCost,
		Quantity:        pricing.Quantity,
		DiscountRateBps: pricing.DiscountRateBps,
		DiscountAmount:  pricing.DiscountAmount,
		Subtotal:        pricing.Subtotal,
		Total:           pricing.Total,
		Currency:        strings.TrimSpace(pricing.Currency),
	}
}

func decodePricing(doc pricingDocument) domain.PricingDetails {
	return domain.PricingDetails{
		BasePrice:       doc.BasePrice,
		MaterialCost:    doc.MaterialCost,
		NFCCost:         doc.NFCCost,
		Quantity:        doc.Quantity,
		DiscountRateBps: doc.DiscountRateBps,
		DiscountAmount:  doc.DiscountAmount,
		Subtotal:        doc.Subtotal,
		Total:           doc.Total,
		Currency:        strings.TrimSpace(doc.Currency),
	}
}

func encodeShipping(shipping domain.ShippingInfo) shippingDocument {
	return shippingDocument{
		Recipient:  strings.TrimSpace(shipping.Recipient),
		Line1:      strings.TrimSpace(shipping.Line1),
		Line2:      strings.TrimSpace(shipping.Line2),
		City:       strings.TrimSpace(shipping.City),
		State:      strings.TrimSpace(shipping.State),
		PostalCode: strings.TrimSpace(shipping.PostalCode),
		Country:    strings.TrimSpace(shipping.Country),
		Phone:      strings.TrimSpace(shipping.Phone),
	}
}

func decodeShipping(doc shippingDocument) domain.ShippingInfo {
	return domain.ShippingInfo{
		Recipient:  strings.TrimSpace(doc.Recipient),
		Line1:      strings.TrimSpace(doc.Line1),
		Line2:      strings.TrimSpace(doc.Line2),
		City:       strings.TrimSpace(doc.City),
		State:      strings.TrimSpace(doc.State),
		PostalCode: strings.TrimSpace(doc.PostalCode),
		Country:    strings.TrimSpace(doc.Country),
		Phone:      strings.TrimSpace(doc.Phone),
	}
}

func cloneStyle(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for key, value := range src {
		out[key] = value
	}
	return out
}

func normaliseOrderStatuses(statuses []domain.OrderStatus) []string {
	if len(statuses) == 0 {
		return nil
	}
	normalized := make([]string, 0, len(statuses))
	seen := make(map[string]struct{})
	for _, status := range statuses {
		trimmed := strings.ToLower(strings.TrimSpace(string(status)))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		normalized = append(normalized, trimmed)
	}
	return normalized
}

func chooseTime(primary time.Time, fallback time.Time) time.Time {
	if !primary.IsZero() {
		return primary.UTC()
	}
	if !fallback.IsZero() {
		return fallback.UTC()
	}
	return time.Time{}
}

func normalizeTimePointer(value *time.Time) *time.Time {
	if value == nil || value.IsZero() {
		return nil
	}
	ts := value.UTC()
	return &ts
}
