package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	domain "github.com/tapforge/api/internal/domain"
	"github.com/tapforge/api/internal/repositories"
)

type repoError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *repoError) Error() string       { return e.msg }
func (e *repoError) IsNotFound() bool    { return e.notFound }
func (e *repoError) IsConflict() bool    { return e.conflict }
func (e *repoError) IsUnavailable() bool { return e.unavailable }

var (
	errRepoNotFound    = &repoError{msg: "document missing", notFound: true}
	errRepoConflict    = &repoError{msg: "document already exists", conflict: true}
	errRepoUnavailable = &repoError{msg: "deadline exceeded", unavailable: true}
)

type memoryOrderRepository struct {
	mu      sync.Mutex
	orders  map[string]domain.Order
	failOps map[string]error
}

func newMemoryOrderRepository() *memoryOrderRepository {
	return &memoryOrderRepository{
		orders:  make(map[string]domain.Order),
		failOps: make(map[string]error),
	}
}

func (r *memoryOrderRepository) Insert(ctx context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failOps["insert"]; err != nil {
		return err
	}
	if _, exists := r.orders[order.ID]; exists {
		return errRepoConflict
	}
	r.orders[order.ID] = order.Clone()
	return nil
}

func (r *memoryOrderRepository) Update(ctx context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failOps["update"]; err != nil {
		return err
	}
	if _, exists := r.orders[order.ID]; !exists {
		return errRepoNotFound
	}
	r.orders[order.ID] = order.Clone()
	return nil
}

func (r *memoryOrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, errRepoNotFound
	}
	return order.Clone(), nil
}

func (r *memoryOrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	page := domain.CursorPage[domain.Order]{}
	for _, order := range r.orders {
		if filter.UserID != "" && order.UserID != filter.UserID {
			continue
		}
		page.Items = append(page.Items, order.Clone())
	}
	return page, nil
}

type memoryCounterRepository struct {
	mu   sync.Mutex
	next map[string]int64
	err  error
}

func newMemoryCounterRepository() *memoryCounterRepository {
	return &memoryCounterRepository{next: make(map[string]int64)}
}

func (r *memoryCounterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	if step <= 0 {
		step = 1
	}
	r.next[counterID] += step
	return r.next[counterID], nil
}

func (r *memoryCounterRepository) Configure(ctx context.Context, counterID string, cfg repositories.CounterConfig) error {
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []OrderEvent
	err    error
}

func (p *recordingPublisher) PublishOrderEvent(ctx context.Context, event OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) published() []OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]OrderEvent, len(p.events))
	copy(out, p.events)
	return out
}

type orderServiceFixture struct {
	service   OrderService
	orders    *memoryOrderRepository
	counters  *memoryCounterRepository
	publisher *recordingPublisher
}

func newOrderServiceFixture(t *testing.T, mutate func(*OrderServiceDeps)) orderServiceFixture {
	t.Helper()
	engine, err := NewPricingEngine(PricingEngineDeps{})
	if err != nil {
		t.Fatalf("failed to build pricing engine: %v", err)
	}
	validator, err := NewOrderValidator(OrderValidatorDeps{Pricing: engine})
	if err != nil {
		t.Fatalf("failed to build order validator: %v", err)
	}

	fixture := orderServiceFixture{
		orders:    newMemoryOrderRepository(),
		counters:  newMemoryCounterRepository(),
		publisher: &recordingPublisher{},
	}

	seq := 0
	deps := OrderServiceDeps{
		Orders:    fixture.orders,
		Counters:  fixture.counters,
		Validator: validator,
		Clock:     func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) },
		IDGenerator: func() string {
			seq++
			return fmt.Sprintf("01HZX%04d", seq)
		},
		Events: fixture.publisher,
	}
	if mutate != nil {
		mutate(&deps)
	}

	service, err := NewOrderService(deps)
	if err != nil {
		t.Fatalf("failed to build order service: %v", err)
	}
	fixture.service = service
	return fixture
}

func TestOrderServiceCreatePipeline(t *testing.T) {
	fixture := newOrderServiceFixture(t, nil)

	order, err := fixture.service.Create(context.Background(), validOrderInput(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if order.ID != "ord_01HZX0001" {
		t.Fatalf("unexpected order id %s", order.ID)
	}
	if order.Number != "TF-2026-000001" {
		t.Fatalf("unexpected order number %s", order.Number)
	}
	if order.Status != OrderStatusPending {
		t.Fatalf("expected pending status, got %s", order.Status)
	}
	if order.Pricing.Total != 759_600 {
		t.Fatalf("expected recomputed total 759600, got %d", order.Pricing.Total)
	}

	stored, err := fixture.orders.FindByID(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("expected order persisted: %v", err)
	}
	if stored.Number != order.Number {
		t.Fatalf("stored order diverges: %+v", stored)
	}

	events := fixture.publisher.published()
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	if events[0].Type != OrderEventCreated || events[0].OrderID != order.ID {
		t.Fatalf("unexpected event %+v", events[0])
	}
}

func TestOrderServiceCreateUniqueSequentialNumbers(t *testing.T) {
	fixture := newOrderServiceFixture(t, nil)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		order, err := fixture.service.Create(ctx, validOrderInput(t))
		if err != nil {
			t.Fatalf("create %d failed: %v", i, err)
		}
		if seen[order.Number] {
			t.Fatalf("duplicate order number %s", order.Number)
		}
		seen[order.Number] = true
		expected := fmt.Sprintf("TF-2026-%06d", i+1)
		if order.Number != expected {
			t.Fatalf("expected number %s, got %s", expected, order.Number)
		}
	}
}

func TestOrderServiceCreateValidationFailureHasNoSideEffects(t *testing.T) {
	fixture := newOrderServiceFixture(t, nil)

	input := validOrderInput(t)
	input.SubmittedTotal = 1

	_, err := fixture.service.Create(context.Background(), input)
	if !errors.Is(err, ErrPricingMismatch) {
		t.Fatalf("expected pricing mismatch, got %v", err)
	}
	if len(fixture.orders.orders) != 0 {
		t.Fatal("expected no order persisted")
	}
	if len(fixture.publisher.published()) != 0 {
		t.Fatal("expected no event published")
	}
}

func TestOrderServiceCreateDuplicateIDConflict(t *testing.T) {
	fixture := newOrderServiceFixture(t, func(deps *OrderServiceDeps) {
		deps.IDGenerator = func() string { return "01HZXSAME" }
	})
	ctx := context.Background()

	if _, err := fixture.service.Create(ctx, validOrderInput(t)); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	_, err := fixture.service.Create(ctx, validOrderInput(t))
	if !errors.Is(err, ErrOrderConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestOrderServiceCreateStorageFailure(t *testing.T) {
	fixture := newOrderServiceFixture(t, nil)
	fixture.orders.failOps["insert"] = errRepoUnavailable

	_, err := fixture.service.Create(context.Background(), validOrderInput(t))
	if !errors.Is(err, ErrOrderStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if len(fixture.publisher.published()) != 0 {
		t.Fatal("expected no event for failed order")
	}
}

func TestOrderServiceCreatePublishFailureIsNonFatal(t *testing.T) {
	fixture := newOrderServiceFixture(t, nil)
	fixture.publisher.err = errors.New("broker down")

	order, err := fixture.service.Create(context.Background(), validOrderInput(t))
	if err != nil {
		t.Fatalf("expected order to be placed despite publish failure, got %v", err)
	}
	if _, err := fixture.orders.FindByID(context.Background(), order.ID); err != nil {
		t.Fatalf("expected order persisted: %v", err)
	}
}

func TestOrderServiceGetScopedToUser(t *testing.T) {
	fixture := newOrderServiceFixture(t, nil)
	ctx := context.Background()

	order, err := fixture.service.Create(ctx, validOrderInput(t))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := fixture.service.Get(ctx, "user-1", order.ID); err != nil {
		t.Fatalf("owner lookup failed: %v", err)
	}
	if _, err := fixture.service.Get(ctx, "intruder", order.ID); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected not found for foreign user, got %v", err)
	}
}

func TestOrderServiceStatusMachine(t *testing.T) {
	fixture := newOrderServiceFixture(t, nil)
	ctx := context.Background()

	order, err := fixture.service.Create(ctx, validOrderInput(t))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// pending cannot jump straight to fulfilled.
	_, err = fixture.service.TransitionStatus(ctx, OrderStatusTransitionCommand{OrderID: order.ID, TargetStatus: OrderStatusFulfilled})
	if !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}

	paid, err := fixture.service.TransitionStatus(ctx, OrderStatusTransitionCommand{
		OrderID:      order.ID,
		TargetStatus: OrderStatusPaid,
		PaymentRef:   "pi_123",
	})
	if err != nil {
		t.Fatalf("transition to paid failed: %v", err)
	}
	if paid.Status != OrderStatusPaid || paid.PaidAt == nil {
		t.Fatalf("expected paid order with timestamp, got %+v", paid)
	}
	if paid.PaymentRef != "pi_123" {
		t.Fatalf("expected payment ref recorded, got %q", paid.PaymentRef)
	}

	fulfilled, err := fixture.service.TransitionStatus(ctx, OrderStatusTransitionCommand{OrderID: order.ID, TargetStatus: OrderStatusFulfilled})
	if err != nil {
		t.Fatalf("transition to fulfilled failed: %v", err)
	}
	if fulfilled.FulfilledAt == nil {
		t.Fatal("expected fulfilled timestamp")
	}

	// Terminal states absorb everything.
	for _, target := range []OrderStatus{OrderStatusPending, OrderStatusPaid, OrderStatusFailed} {
		if _, err := fixture.service.TransitionStatus(ctx, OrderStatusTransitionCommand{OrderID: order.ID, TargetStatus: target}); !errors.Is(err, ErrOrderInvalidState) {
			t.Fatalf("expected terminal state to reject %s, got %v", target, err)
		}
	}
}

func TestOrderServiceTransitionToFailedRecordsReason(t *testing.T) {
	fixture := newOrderServiceFixture(t, nil)
	ctx := context.Background()

	order, err := fixture.service.Create(ctx, validOrderInput(t))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	failed, err := fixture.service.TransitionStatus(ctx, OrderStatusTransitionCommand{
		OrderID:      order.ID,
		TargetStatus: OrderStatusFailed,
		Reason:       "card declined",
	})
	if err != nil {
		t.Fatalf("transition to failed failed: %v", err)
	}
	if failed.FailReason != "card declined" || failed.FailedAt == nil {
		t.Fatalf("expected failure metadata, got %+v", failed)
	}

	events := fixture.publisher.published()
	last := events[len(events)-1]
	if last.Type != OrderEventStatusChanged || last.Status != OrderStatusFailed {
		t.Fatalf("expected status change event, got %+v", last)
	}
}

func TestOrderServiceTransitionSameStatusIsIdempotent(t *testing.T) {
	fixture := newOrderServiceFixture(t, nil)
	ctx := context.Background()

	order, err := fixture.service.Create(ctx, validOrderInput(t))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	before := len(fixture.publisher.published())
	same, err := fixture.service.TransitionStatus(ctx, OrderStatusTransitionCommand{OrderID: order.ID, TargetStatus: OrderStatusPending})
	if err != nil {
		t.Fatalf("same-status transition failed: %v", err)
	}
	if same.Status != OrderStatusPending {
		t.Fatalf("expected pending, got %s", same.Status)
	}
	if len(fixture.publisher.published()) != before {
		t.Fatal("expected no event for no-op transition")
	}
}

func TestOrderServiceTransitionUnknownStatus(t *testing.T) {
	fixture := newOrderServiceFixture(t, nil)

	_, err := fixture.service.TransitionStatus(context.Background(), OrderStatusTransitionCommand{
		OrderID:      "ord_any",
		TargetStatus: OrderStatus("shipped"),
	})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestOrderServiceConcurrentCreatesYieldDistinctIdentifiers(t *testing.T) {
	engine, err := NewPricingEngine(PricingEngineDeps{})
	if err != nil {
		t.Fatalf("failed to build pricing engine: %v", err)
	}
	validator, err := NewOrderValidator(OrderValidatorDeps{Pricing: engine})
	if err != nil {
		t.Fatalf("failed to build order validator: %v", err)
	}

	orders := newMemoryOrderRepository()
	service, err := NewOrderService(OrderServiceDeps{
		Orders:    orders,
		Counters:  newMemoryCounterRepository(),
		Validator: validator,
	})
	if err != nil {
		t.Fatalf("failed to build order service: %v", err)
	}

	const workers = 16
	input := validOrderInput(t)
	var wg sync.WaitGroup
	results := make([]domain.Order, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			results[n], errs[n] = service.Create(context.Background(), input)
		}(i)
	}
	wg.Wait()

	ids := make(map[string]bool, workers)
	numbers := make(map[string]bool, workers)
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("create %d failed: %v", i, errs[i])
		}
		if ids[results[i].ID] {
			t.Fatalf("duplicate order id %s", results[i].ID)
		}
		if numbers[results[i].Number] {
			t.Fatalf("duplicate order number %s", results[i].Number)
		}
		ids[results[i].ID] = true
		numbers[results[i].Number] = true
	}
}
