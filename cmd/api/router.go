package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/vaxcart-api/internal/app"
	"github.com/noah-isme/vaxcart-api/internal/auth"
	"github.com/noah-isme/vaxcart-api/internal/cart"
	"github.com/noah-isme/vaxcart-api/internal/catalog"
	"github.com/noah-isme/vaxcart-api/internal/checkout"
	"github.com/noah-isme/vaxcart-api/internal/common"
	"github.com/noah-isme/vaxcart-api/internal/config"
	"github.com/noah-isme/vaxcart-api/internal/health"
	"github.com/noah-isme/vaxcart-api/internal/loyalty"
	"github.com/noah-isme/vaxcart-api/internal/obs"
	"github.com/noah-isme/vaxcart-api/internal/order"
	"github.com/noah-isme/vaxcart-api/internal/ratelimit"
	"github.com/noah-isme/vaxcart-api/internal/security"
	"github.com/noah-isme/vaxcart-api/internal/tracking"
)

func newRouter(cfg *config.Config, deps *app.Dependencies, svcs *app.Services, logger zerolog.Logger) (http.Handler, error) {
	verifier, err := auth.NewVerifier(cfg.Auth)
	if err != nil {
		return nil, err
	}
	authMW := auth.Middleware{Verifier: verifier, AdminRole: cfg.Auth.AdminRole}

	onLimitErr := func(err error) { logger.Warn().Err(err).Msg("rate limit store unavailable") }
	publicLimit, err := ratelimit.New(deps.LimiterStore, "public", cfg.Limits.Public, ratelimit.ByUserOrIP)
	if err != nil {
		return nil, err
	}
	publicLimit.OnError = onLimitErr
	checkoutLimit, err := ratelimit.New(deps.LimiterStore, "checkout", cfg.Limits.Checkout, ratelimit.ByUserOrIP)
	if err != nil {
		return nil, err
	}
	checkoutLimit.OnError = onLimitErr
	webhookLimit, err := ratelimit.New(deps.LimiterStore, "webhook", cfg.Limits.Webhook, ratelimit.ByIP)
	if err != nil {
		return nil, err
	}
	webhookLimit.OnError = onLimitErr

	idem := common.Idem{R: deps.Redis, TTL: cfg.Cart.IdempotencyTTL}
	bodyLimit := security.BodyLimit{Max: cfg.HTTP.BodyLimitBytes}

	catalogHandler := catalog.NewHandler(svcs.Catalog)
	cartHandler := &cart.Handler{Svc: svcs.Carts, Points: svcs.Loyalty, Currency: cfg.Currency}
	checkoutHandler := &checkout.Handler{Svc: svcs.Checkout}
	orderHandler := &order.Handler{Svc: svcs.Orders}
	orderAdmin := &order.AdminHandler{Svc: svcs.Orders}
	loyaltyHandler := &loyalty.Handler{Svc: svcs.Loyalty}
	deliveryAdmin := tracking.AdminHandler{Svc: svcs.Tracking}
	trackingWebhook := tracking.Webhook{
		Svc:       svcs.Tracking,
		Replay:    deps.Redis,
		ReplayTTL: cfg.Webhooks.ReplayTTL,
		Secret:    cfg.Webhooks.Secret,
	}
	healthHandler := health.Handler{Checker: deps.HealthClients()}
	httpMetrics := obs.NewHTTPMetrics(metricsNamespace, obs.ParseBucketsCSV(cfg.HTTP.MetricsBuckets), nil)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	r.Use(obs.TracingMiddleware)
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{HSTSMaxAge: cfg.HTTP.HSTSMaxAge}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders: []string{"X-Total-Count", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:         300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/debug/pprof", protectPprof(newPprofMux(), cfg.IsProduction(), logger))
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(bodyLimit.Middleware)

		v.Group(func(pub chi.Router) {
			pub.Use(authMW.Authenticate)
			pub.Use(publicLimit.Middleware)

			pub.Get("/vaccines", catalogHandler.Vaccines)
			pub.Get("/vaccines/{slug}", catalogHandler.Vaccine)

			pub.Route("/carts", func(c chi.Router) {
				c.Get("/{id}", cartHandler.Get)
				c.Group(func(g chi.Router) {
					g.Use(idem.Middleware)
					g.Post("/", cartHandler.Create)
					g.Delete("/{id}", cartHandler.Delete)
					g.Post("/{id}/items", cartHandler.AddItem)
					g.Patch("/{id}/items/{vaccineId}", cartHandler.SetQuantity)
					g.Post("/{id}/items/undo", cartHandler.Undo)
					g.Post("/{id}/promotion", cartHandler.ApplyPromotion)
					g.Delete("/{id}/promotion", cartHandler.ClearPromotion)
					g.Put("/{id}/redeem-points", cartHandler.SetRedeemPoints)
				})
			})

			pub.Group(func(a chi.Router) {
				a.Use(authMW.RequireAuth)
				a.Get("/orders", orderHandler.List)
				a.Get("/orders/{orderId}", orderHandler.Get)
				a.Get("/loyalty/me", loyaltyHandler.Me)
			})
		})

		v.Group(func(co chi.Router) {
			co.Use(authMW.Authenticate)
			co.Use(authMW.RequireAuth)
			co.Use(checkoutLimit.Middleware)
			co.Use(idem.Middleware)
			co.Post("/checkout", checkoutHandler.Checkout)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMW.Authenticate)
			admin.Use(authMW.RequireAdmin)
			admin.Get("/orders/{id}", orderAdmin.Get)
			admin.Post("/orders/{id}/delivery", deliveryAdmin.AssignCourier)
		})

		v.With(webhookLimit.Middleware).Post("/webhooks/tracking/{courier}", trackingWebhook.Handle)
	})

	return r, nil
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}
