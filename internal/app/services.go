package app

import (
	"time"

	"github.com/noah-isme/vaxcart-api/internal/cart"
	"github.com/noah-isme/vaxcart-api/internal/catalog"
	"github.com/noah-isme/vaxcart-api/internal/checkout"
	"github.com/noah-isme/vaxcart-api/internal/config"
	"github.com/noah-isme/vaxcart-api/internal/events"
	"github.com/noah-isme/vaxcart-api/internal/lock"
	"github.com/noah-isme/vaxcart-api/internal/loyalty"
	"github.com/noah-isme/vaxcart-api/internal/order"
	"github.com/noah-isme/vaxcart-api/internal/pricing"
	"github.com/noah-isme/vaxcart-api/internal/promotion"
	"github.com/noah-isme/vaxcart-api/internal/tracking"
)

// Services is the domain graph built on top of Dependencies.
type Services struct {
	Bus      *events.Bus
	Catalog  *catalog.Service
	Carts    *cart.Service
	Loyalty  *loyalty.Service
	Checkout *checkout.Service
	Orders   *order.Service
	Tracking *tracking.Service
}

// Services wires the domain services. Both processes share the same graph so
// deliveries advance identically from webhooks and from polling.
func (d *Dependencies) Services() (*Services, error) {
	cfg := d.Config
	catalogSvc, err := catalog.NewService(catalog.ServiceConfig{
		Queries: d.Queries,
		Cache:   catalog.NewCache(d.Redis, cfg.Catalog.CacheTTL),
		Logger:  d.Logger.With().Str("component", "catalog").Logger(),
	})
	if err != nil {
		return nil, err
	}
	provider, err := CourierProvider(cfg.Courier, d.Logger)
	if err != nil {
		return nil, err
	}

	bus := &events.Bus{
		Store: d.Queries,
		Notifiers: []events.Notifier{
			events.LogNotifier{Logger: d.Logger.With().Str("component", "events").Logger()},
			events.MetricsNotifier{},
		},
	}
	carts := &cart.Service{
		Store:      &cart.Store{R: d.Redis, TTL: cfg.Cart.TTL, UndoTTL: cfg.Cart.UndoTTL},
		Locker:     lock.Locker{R: d.Redis, RetryBackoff: 25 * time.Millisecond, MaxWait: 2 * time.Second},
		Catalog:    catalogSvc,
		Promotions: promotion.Repository{Q: d.Queries},
		Policy:     PricingPolicy(cfg.Pricing),
		LockTTL:    cfg.Cart.LockTTL,
	}
	trackingSvc := &tracking.Service{
		Q:        d.Queries,
		Tx:       tracking.PgxTx{Pool: d.DB},
		Bus:      bus,
		Provider: provider,
		Queue:    d.TaskClient,
		Logger:   d.Logger.With().Str("component", "tracking").Logger(),
	}
	return &Services{
		Bus:     bus,
		Catalog: catalogSvc,
		Carts:   carts,
		Loyalty: &loyalty.Service{Q: d.Queries},
		Checkout: &checkout.Service{
			Carts:    carts,
			Catalog:  catalogSvc,
			Tx:       checkout.PgxTx{Pool: d.DB},
			Bus:      bus,
			Currency: cfg.Currency,
			Logger:   d.Logger.With().Str("component", "checkout").Logger(),
		},
		Orders:   &order.Service{Q: d.Queries, Deliveries: trackingSvc},
		Tracking: trackingSvc,
	}, nil
}

// PricingPolicy converts configured amounts into the pricing policy.
func PricingPolicy(cfg config.PricingConfig) pricing.Policy {
	return pricing.Policy{
		TaxBps:           cfg.TaxBps,
		FreeShippingOver: cfg.FreeShippingOver,
		ShippingFee:      cfg.ShippingFee,
		PointValue:       cfg.PointValue,
		PointsCapBps:     cfg.PointsCapBps,
	}
}
