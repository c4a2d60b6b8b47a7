package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kitea/hunt-backend/api/controllers"
	webhookcontrollers "github.com/kitea/hunt-backend/api/controllers/webhooks"
	"github.com/kitea/hunt-backend/api/middleware"
	checkoutsvc "github.com/kitea/hunt-backend/internal/checkout"
	"github.com/kitea/hunt-backend/internal/locations"
	"github.com/kitea/hunt-backend/internal/mints"
	"github.com/kitea/hunt-backend/internal/products"
	"github.com/kitea/hunt-backend/internal/profiles"
	"github.com/kitea/hunt-backend/internal/scans"
	"github.com/kitea/hunt-backend/internal/wallets"
	"github.com/kitea/hunt-backend/pkg/config"
	"github.com/kitea/hunt-backend/pkg/logger"
	"github.com/kitea/hunt-backend/pkg/redis"
)

type signingClient interface {
	SigningSecret() string
}

// Dependencies are the services and clients the API surface is built from.
type Dependencies struct {
	DB       controllers.Pinger
	Redis    *redis.Client
	Gatherer prometheus.Gatherer

	Scans     scans.Service
	Mints     mints.Service
	Wallets   wallets.Service
	Checkout  checkoutsvc.Service
	Profiles  profiles.Service
	Locations locations.Service
	Products  products.Service

	Stripe         signingClient
	StripeWebhooks webhookcontrollers.StripeWebhookService
	WebhookGuard   webhookcontrollers.StripeWebhookGuard
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.SiteURL),
	)

	scanPolicy := middleware.NewRateLimitPolicy(
		"scan",
		cfg.RateLimit.ScanWindow,
		cfg.RateLimit.ScanIPLimit,
		cfg.RateLimit.ScanUserLimit,
	)

	ready := map[string]controllers.Pinger{"db": deps.DB}
	if deps.Redis != nil {
		ready["redis"] = deps.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, ready))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/locations", controllers.Locations(deps.Locations, logg))
		r.Post("/webhooks/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhooks, deps.Stripe, deps.WebhookGuard, logg))
		r.With(middleware.InternalKey(cfg.Internal.APIKey, logg)).Post("/mint", controllers.Mint(deps.Mints, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.Identity, logg))
			scan := controllers.Scan(deps.Scans, logg)
			if deps.Redis != nil {
				r.Use(middleware.Idempotency(deps.Redis, logg))
				scan = middleware.RateLimit(scanPolicy, deps.Redis, logg)(scan).ServeHTTP
			}

			r.Post("/scan", scan)
			r.Post("/profile", controllers.Profile(deps.Profiles, logg))
			r.Post("/wallet", controllers.WalletConnect(deps.Wallets, logg))
			r.Post("/wallet/generate", controllers.WalletGenerate(deps.Wallets, logg))
			r.Post("/checkout", controllers.Checkout(deps.Checkout, logg))
			r.Get("/products", controllers.Products(deps.Products, logg))
			r.Get("/collection", controllers.Collection(deps.Mints, logg))
		})
	})

	return r
}
