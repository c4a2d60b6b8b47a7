package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kitea/hunt-backend/api/routes"
	"github.com/kitea/hunt-backend/internal/app"
	"github.com/kitea/hunt-backend/internal/checkout"
	"github.com/kitea/hunt-backend/internal/locations"
	"github.com/kitea/hunt-backend/internal/orders"
	"github.com/kitea/hunt-backend/internal/products"
	"github.com/kitea/hunt-backend/internal/profiles"
	"github.com/kitea/hunt-backend/internal/scans"
	"github.com/kitea/hunt-backend/internal/tags"
	stripewebhook "github.com/kitea/hunt-backend/internal/webhooks/stripe"
	"github.com/kitea/hunt-backend/pkg/config"
	"github.com/kitea/hunt-backend/pkg/db"
	"github.com/kitea/hunt-backend/pkg/instance"
	"github.com/kitea/hunt-backend/pkg/logger"
	"github.com/kitea/hunt-backend/pkg/migrate"
	"github.com/kitea/hunt-backend/pkg/redis"
	pkgstripe "github.com/kitea/hunt-backend/pkg/stripe"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	stack, err := app.NewMintStack(context.Background(), app.MintStackParams{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		Redis:      redisClient,
		Registerer: prometheus.DefaultRegisterer,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build mint stack", err)
		os.Exit(1)
	}
	defer stack.Close()

	tagsRepo := tags.NewRepository(dbClient.DB())
	scansRepo := scans.NewRepository(dbClient.DB())
	productsRepo := products.NewRepository(dbClient.DB())
	ordersRepo := orders.NewRepository(dbClient.DB())

	tagService, err := tags.NewService(tagsRepo, stack.Locations)
	requireService(logg, "tags", err)

	scanService, err := scans.NewService(scans.ServiceParams{
		Repo:      scansRepo,
		Locations: stack.Locations,
		Tags:      tagService,
		Unlocker:  productsRepo,
		Outbox:    stack.Outbox,
		Tx:        dbClient,
		Logger:    logg,
	})
	requireService(logg, "scans", err)

	locationService, err := locations.NewService(stack.Locations)
	requireService(logg, "locations", err)

	productService, err := products.NewService(productsRepo, scansRepo)
	requireService(logg, "products", err)

	profileService, err := profiles.NewService(profiles.ServiceParams{
		Repo:   stack.Profiles,
		Tx:     dbClient,
		Outbox: stack.Outbox,
		Logger: logg,
	})
	requireService(logg, "profiles", err)

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Products: productsRepo,
		Scans:    scansRepo,
		Orders:   ordersRepo,
		Sessions: checkout.NewStripeSessionClient(stripeClient),
		SiteURL:  cfg.App.SiteURL,
		Currency: cfg.Stripe.Currency,
		Logger:   logg,
	})
	requireService(logg, "checkout", err)

	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:     ordersRepo,
		Products: productsRepo,
		Outbox:   stack.Outbox,
		Tx:       dbClient,
		Logger:   logg,
	})
	requireService(logg, "orders", err)

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Orders: orderService,
		Logger: logg,
	})
	requireService(logg, "stripe webhooks", err)

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Eventing.WebhookIdempotencyTTL, "stripe-webhook")
	requireService(logg, "stripe webhook guard", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"instance": instance.GetID(),
		"addr":        addr,
		"serviceKind": cfg.Service.Kind,
	})

	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			DB:             dbClient,
			Redis:          redisClient,
			Gatherer:       prometheus.DefaultGatherer,
			Scans:          scanService,
			Mints:          stack.Mints,
			Wallets:        stack.Wallets,
			Checkout:       checkoutService,
			Profiles:       profileService,
			Locations:      locationService,
			Products:       productService,
			Stripe:         stripeClient,
			StripeWebhooks: webhookService,
			WebhookGuard:   webhookGuard,
		}),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
	}()

	logg.Info(ctx, "starting api server")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}

func requireService(logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+name+" service", err)
	os.Exit(1)
}
