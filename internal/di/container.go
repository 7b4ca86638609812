package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arbona-turismo/storefront/internal/platform/config"
	"github.com/arbona-turismo/storefront/internal/repositories"
	"github.com/arbona-turismo/storefront/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete
// implementations are assembled via dependency injection in NewContainer.
type Services struct {
	Pricing        services.PricingEngine
	Coupons        services.CouponEngine
	Shipping       services.ShippingCalculator
	Taxes          services.TaxBreakdownEngine
	Checkout       services.CheckoutService
	PromotionAdmin services.PromotionAdminService
	CouponAdmin    services.CouponAdminService
	ZoneAdmin      services.ShippingZoneAdminService
	Reports        services.ReportService
	System         services.SystemService
}

// Deps carries the external infrastructure the container wires into services.
// Publisher and Exports are optional; the corresponding features degrade
// gracefully when absent.
type Deps struct {
	Publisher services.OrderEventPublisher
	Exports   services.ReportObjectWriter
	Logger    func(context.Context, string, map[string]any)
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring provides the
// Firestore-backed registry; tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, deps Deps) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(ctx, reg, cfg, deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
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

func buildServices(ctx context.Context, reg repositories.Registry, cfg config.Config, deps Deps) (Services, error) {
	var svc Services

	coupons, err := services.NewRuleCouponEngine(services.RuleCouponEngineDeps{
		Coupons: reg.Coupons(),
		Now:     time.Now,
		Logger:  deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build coupon engine: %w", err)
	}
	svc.Coupons = coupons

	shipping, err := services.NewZoneShippingCalculator(services.ZoneShippingCalculatorDeps{
		Zones:   reg.ShippingZones(),
		Pricing: cfg.Pricing,
		Logger:  deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build shipping calculator: %w", err)
	}
	svc.Shipping = shipping

	taxes, err := services.NewVATBreakdownEngine(services.VATBreakdownEngineDeps{
		Pricing: cfg.Pricing,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build tax breakdown engine: %w", err)
	}
	svc.Taxes = taxes

	pricing, err := services.NewCartPricingEngine(services.CartPricingEngineDeps{
		Catalog:    reg.Catalog(),
		Promotions: reg.Promotions(),
		Coupons:    coupons,
		Shipping:   shipping,
		Taxes:      taxes,
		Pricing:    cfg.Pricing,
		Now:        time.Now,
		Logger:     deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build pricing engine: %w", err)
	}
	svc.Pricing = pricing

	checkout, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Registry:  reg,
		Pricing:   pricing,
		Coupons:   coupons,
		Publisher: deps.Publisher,
		Now:       time.Now,
		Logger:    deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build checkout service: %w", err)
	}
	svc.Checkout = checkout

	promotionAdmin, err := services.NewPromotionAdminService(services.PromotionAdminServiceDeps{
		Promotions: reg.Promotions(),
		Now:        time.Now,
		Logger:     deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build promotion admin service: %w", err)
	}
	svc.PromotionAdmin = promotionAdmin

	couponAdmin, err := services.NewCouponAdminService(services.CouponAdminServiceDeps{
		Coupons: reg.Coupons(),
		Now:     time.Now,
		Logger:  deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build coupon admin service: %w", err)
	}
	svc.CouponAdmin = couponAdmin

	zoneAdmin, err := services.NewShippingZoneAdminService(services.ShippingZoneAdminServiceDeps{
		Zones:  reg.ShippingZones(),
		Logger: deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build shipping zone admin service: %w", err)
	}
	svc.ZoneAdmin = zoneAdmin

	reports, err := services.NewReportService(services.ReportServiceDeps{
		Orders:  reg.Orders(),
		Exports: deps.Exports,
		Reports: cfg.Reports,
		Logger:  deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build report service: %w", err)
	}
	svc.Reports = reports

	if healthRepo := reg.Health(); healthRepo != nil {
		system, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            time.Now,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = system
	}

	return svc, nil
}
