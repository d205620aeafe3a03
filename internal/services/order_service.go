package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/tapforge/api/internal/domain"
	"github.com/tapforge/api/internal/repositories"
)

const (
	orderIDPrefix       = "ord_"
	orderNumberCounter  = "orders"
	orderNumberTemplate = "TF-%04d-%06d"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState indicates an invalid status transition was attempted.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates a duplicate identifier or concurrent update.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderStorage indicates the persistence collaborator failed; the order was not placed.
	ErrOrderStorage = errors.New("order: storage unavailable")
)

// orderStateTransitions encodes the order lifecycle. Fulfilled and failed are
// terminal: no key, no way out.
var orderStateTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusPaid, OrderStatusFailed},
	OrderStatusPaid:    {OrderStatusFulfilled},
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Counters    repositories.CounterRepository
	Validator   OrderValidator
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Events      OrderEventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders     repositories.OrderRepository
	counters   repositories.CounterRepository
	validator  OrderValidator
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	newID      func() string
	events     OrderEventPublisher
	logger     func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}
	if deps.Validator == nil {
		return nil, errors.New("order service: order validator is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:     deps.Orders,
		counters:   deps.Counters,
		validator:  deps.Validator,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		events: deps.Events,
		logger: logger,
	}, nil
}

// Create runs the order creation pipeline: validate, assign identifiers,
// persist as pending, then notify. Validation failures propagate unchanged
// and cause no side effects. Persistence failure is fatal to the call; the
// confirmation event is best-effort once the order exists in storage.
func (s *orderService) Create(ctx context.Context, input CreateOrderInput) (Order, error) {
	validated, err := s.validator.Validate(input)
	if err != nil {
		return Order{}, err
	}

	now := s.now()
	order := Order{
		ID:        s.nextOrderID(),
		UserID:    validated.UserID,
		Design:    validated.Design,
		Quantity:  validated.Quantity,
		Pricing:   validated.Pricing,
		Shipping:  validated.Shipping,
		Status:    OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	number, err := s.generateOrderNumber(ctx, now)
	if err != nil {
		return Order{}, err
	}
	order.Number = number

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.orders.Insert(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:     OrderEventCreated,
		OrderID:  order.ID,
		Number:   order.Number,
		UserID:   order.UserID,
		Status:   order.Status,
		Total:    order.Pricing.Total,
		Currency: order.Pricing.Currency,
	})

	return order, nil
}

func (s *orderService) Get(ctx context.Context, userID, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if userID = strings.TrimSpace(userID); userID != "" && order.UserID != userID {
		// Do not leak whether someone else's order exists.
		return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return order, nil
}

func (s *orderService) ListByUser(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	if strings.TrimSpace(filter.UserID) == "" {
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if !cmd.TargetStatus.Valid() {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.TargetStatus)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	prev := order.Status
	if prev == cmd.TargetStatus {
		return order, nil
	}
	if !canTransition(prev, cmd.TargetStatus) {
		return Order{}, fmt.Errorf("%w: %s to %s", ErrOrderInvalidState, prev, cmd.TargetStatus)
	}

	now := s.now()
	order.Status = cmd.TargetStatus
	order.UpdatedAt = now
	switch cmd.TargetStatus {
	case OrderStatusPaid:
		order.PaidAt = &now
		if ref := strings.TrimSpace(cmd.PaymentRef); ref != "" {
			order.PaymentRef = ref
		}
	case OrderStatusFulfilled:
		order.FulfilledAt = &now
	case OrderStatusFailed:
		order.FailedAt = &now
		order.FailReason = strings.TrimSpace(cmd.Reason)
	}

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.logger(ctx, "order.status_changed", map[string]any{
		"orderId": order.ID,
		"from":    string(prev),
		"to":      string(order.Status),
	})

	s.publishEvent(ctx, OrderEvent{
		Type:     OrderEventStatusChanged,
		OrderID:  order.ID,
		Number:   order.Number,
		UserID:   order.UserID,
		Status:   order.Status,
		Total:    order.Pricing.Total,
		Currency: order.Pricing.Currency,
	})

	return order, nil
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrOrderStorage, err)
		}
	}

	return fmt.Errorf("%w: %v", ErrOrderStorage, err)
}

func (s *orderService) generateOrderNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, orderNumberCounter, 1)
	if err != nil {
		return "", s.mapRepositoryError(err)
	}
	return fmt.Sprintf(orderNumberTemplate, now.Year(), seq), nil
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) nextOrderID() string {
	return orderIDPrefix + s.newID()
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":  event.Type,
			"order": event.OrderID,
			"error": err.Error(),
		})
	}
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func canTransition(current, target OrderStatus) bool {
	if current == target {
		return true
	}
	for _, next := range orderStateTransitions[current] {
		if next == target {
			return true
		}
	}
	return false
}
