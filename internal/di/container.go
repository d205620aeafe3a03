package di

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tapforge/api/internal/payments"
	"github.com/tapforge/api/internal/platform/config"
	"github.com/tapforge/api/internal/repositories"
	"github.com/tapforge/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Designer services.DesignerService
	Designs  services.DesignService
	Orders   services.OrderService
	Checkout services.CheckoutService
	System   services.SystemService
}

// Deps carries the infrastructure the caller assembles before building the
// service layer: persistence, the order event publisher, and the payment
// manager. Events may be nil when no broker is configured.
type Deps struct {
	Registry repositories.Registry
	Events   services.OrderEventPublisher
	Payments *payments.Manager
	Build    services.BuildInfo
	Logger   *zap.Logger
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring provides real
// implementations, while tests can supply in-memory registries.
func NewContainer(cfg config.Config, deps Deps) (*Container, error) {
	if deps.Registry == nil {
		return nil, errors.New("repositories registry is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("payment manager is required")
	}

	svc, err := buildServices(cfg, deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: deps.Registry,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(cfg config.Config, deps Deps) (Services, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	pricingEngine, err := services.NewPricingEngine(services.PricingEngineDeps{
		Currency: cfg.Pricing.Currency,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build pricing engine: %w", err)
	}

	validator, err := services.NewOrderValidator(services.OrderValidatorDeps{
		Pricing:     pricingEngine,
		MaxQuantity: cfg.Orders.MaxQuantity,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order validator: %w", err)
	}

	designerSvc, err := services.NewDesignerService(services.DesignerServiceDeps{
		Pricing: pricingEngine,
		Logger:  eventLogger(logger.Named("designer")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build designer service: %w", err)
	}

	designSvc, err := services.NewDesignService(services.DesignServiceDeps{
		Designs: deps.Registry.Designs(),
		Logger:  eventLogger(logger.Named("designs")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build design service: %w", err)
	}

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     deps.Registry.Orders(),
		Counters:   deps.Registry.Counters(),
		Validator:  validator,
		UnitOfWork: deps.Registry,
		Events:     deps.Events,
		Logger:     eventLogger(logger.Named("orders")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}

	checkoutSvc, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Orders:   orderSvc,
		Payments: deps.Payments,
		Logger:   eventLogger(logger.Named("checkout")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build checkout service: %w", err)
	}

	systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: deps.Registry.Health(),
		Build:            deps.Build,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build system service: %w", err)
	}

	return Services{
		Designer: designerSvc,
		Designs:  designSvc,
		Orders:   orderSvc,
		Checkout: checkoutSvc,
		System:   systemSvc,
	}, nil
}

func eventLogger(logger *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Debug(event, zFields...)
	}
}
