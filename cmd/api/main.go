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
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/digitalrevolution/dr-backend/api/routes"
	"github.com/digitalrevolution/dr-backend/internal/cart"
	"github.com/digitalrevolution/dr-backend/internal/checkout"
	"github.com/digitalrevolution/dr-backend/internal/donations"
	"github.com/digitalrevolution/dr-backend/internal/fulfillment"
	"github.com/digitalrevolution/dr-backend/internal/notifications"
	"github.com/digitalrevolution/dr-backend/internal/orders"
	"github.com/digitalrevolution/dr-backend/internal/subscriptions"
	"github.com/digitalrevolution/dr-backend/internal/users"
	"github.com/digitalrevolution/dr-backend/internal/webhooks"
	printfulwebhook "github.com/digitalrevolution/dr-backend/internal/webhooks/printful"
	stripewebhook "github.com/digitalrevolution/dr-backend/internal/webhooks/stripe"
	"github.com/digitalrevolution/dr-backend/pkg/config"
	"github.com/digitalrevolution/dr-backend/pkg/db"
	"github.com/digitalrevolution/dr-backend/pkg/instance"
	"github.com/digitalrevolution/dr-backend/pkg/logger"
	"github.com/digitalrevolution/dr-backend/pkg/mailer"
	"github.com/digitalrevolution/dr-backend/pkg/metrics"
	"github.com/digitalrevolution/dr-backend/pkg/migrate"
	"github.com/digitalrevolution/dr-backend/pkg/printful"
	"github.com/digitalrevolution/dr-backend/pkg/redis"
	"github.com/digitalrevolution/dr-backend/pkg/stripe"
)

const shutdownTimeout = 20 * time.Second

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

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Env:         cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	requireResource(logg, "dev migrations", migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient))

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	requireResource(logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	requireResource(logg, "stripe client", err)

	printfulClient, err := printful.NewClient(cfg.Printful)
	requireResource(logg, "printful client", err)

	sender, err := mailer.New(cfg.Sendgrid, cfg.App.IsDev(), logg)
	requireResource(logg, "mailer", err)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	webhookMetrics := metrics.NewWebhookMetrics(registry)

	dispatcher, err := notifications.NewDispatcher(sender, logg, webhookMetrics)
	requireResource(logg, "notification dispatcher", err)

	conn := dbClient.DB()
	cartRepo := cart.NewRepository(conn)
	sessionRepo := checkout.NewRepository(conn)
	orderRepo := orders.NewRepository(conn)
	subscriptionRepo := subscriptions.NewRepository(conn)

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Carts:            cartRepo,
		Sessions:         sessionRepo,
		Stripe:           stripeClient,
		PublicBaseURL:    cfg.App.PublicBaseURL,
		AllowedCountries: cfg.Stripe.ShippingCountries,
		ShippingRates:    cfg.Stripe.ShippingRates,
	})
	requireResource(logg, "checkout service", err)

	subscriptionService, err := subscriptions.NewService(subscriptionRepo, stripeClient, logg)
	requireResource(logg, "subscription service", err)

	materializer, err := orders.NewMaterializer(orders.MaterializerParams{
		Tx:      dbClient,
		Orders:  orderRepo,
		Carts:   cartRepo,
		Numbers: orders.NewNumberGenerator(),
	})
	requireResource(logg, "order materializer", err)

	bridge, err := fulfillment.NewBridge(fulfillment.BridgeParams{
		Tx:       dbClient,
		Orders:   orderRepo,
		Printful: printfulClient,
		Logger:   logg,
		Metrics:  webhookMetrics,
	})
	requireResource(logg, "fulfillment bridge", err)

	cleaner, err := checkout.NewCleaner(dbClient, cartRepo, sessionRepo)
	requireResource(logg, "checkout cleaner", err)

	donationService, err := donations.NewService(dbClient, donations.NewRepository(conn))
	requireResource(logg, "donation service", err)

	reconciler, err := subscriptions.NewReconciler(subscriptions.ReconcilerParams{
		Subscriptions: subscriptionRepo,
		Users:         users.NewRepository(conn),
		Notifier:      dispatcher,
		Logger:        logg,
	})
	requireResource(logg, "subscription reconciler", err)

	stripeGuard, err := webhooks.NewIdempotencyGuard(redisClient, cfg.Webhooks.IdempotencyTTL, stripewebhook.Provider+"-webhook")
	requireResource(logg, "stripe idempotency guard", err)

	stripeWebhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Verifier:      stripeClient.Verifier(),
		Guard:         stripeGuard,
		Orders:        orderRepo,
		Materializer:  materializer,
		Fulfillment:   bridge,
		Cleaner:       cleaner,
		Donations:     donationService,
		Subscriptions: reconciler,
		Notifier:      dispatcher,
		Metrics:       webhookMetrics,
		Logger:        logg,
		ShippingRates: cfg.Stripe.ShippingRates,
	})
	requireResource(logg, "stripe webhook service", err)

	printfulGuard, err := webhooks.NewIdempotencyGuard(redisClient, cfg.Webhooks.IdempotencyTTL, printfulwebhook.Provider+"-webhook")
	requireResource(logg, "printful idempotency guard", err)

	printfulWebhookService, err := printfulwebhook.NewService(printfulwebhook.ServiceParams{
		Secret:   cfg.Printful.WebhookSecret,
		Guard:    printfulGuard,
		Orders:   orderRepo,
		Notifier: dispatcher,
		Metrics:  webhookMetrics,
		Logger:   logg,
	})
	requireResource(logg, "printful webhook service", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"addr":       addr,
		"instance":   instance.GetID(),
		"stripe_env": stripeClient.Environment(),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Dependencies{
			Config:          cfg,
			Logger:          logg,
			DB:              dbClient,
			Redis:           redisClient,
			Gatherer:        registry,
			Checkout:        checkoutService,
			Subscriptions:   subscriptionService,
			StripeWebhook:   stripeWebhookService,
			PrintfulWebhook: printfulWebhookService,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "api server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

func requireResource(logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to bootstrap "+resource, err)
	os.Exit(1)
}
