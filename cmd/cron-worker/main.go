package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/digitalrevolution/dr-backend/internal/cron"
	"github.com/digitalrevolution/dr-backend/internal/fulfillment"
	"github.com/digitalrevolution/dr-backend/internal/notifications"
	"github.com/digitalrevolution/dr-backend/internal/orders"
	"github.com/digitalrevolution/dr-backend/internal/subscriptions"
	"github.com/digitalrevolution/dr-backend/internal/users"
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

const lockName = "cron-worker"

func main() {
	once := flag.Bool("once", false, "run a single reconciliation cycle and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	webhookMetrics := metrics.NewWebhookMetrics(prometheus.DefaultRegisterer)
	jobMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	dispatcher, err := notifications.NewDispatcher(sender, logg, webhookMetrics)
	requireResource(logg, "notification dispatcher", err)

	conn := dbClient.DB()
	orderRepo := orders.NewRepository(conn)
	subscriptionRepo := subscriptions.NewRepository(conn)

	bridge, err := fulfillment.NewBridge(fulfillment.BridgeParams{
		Tx:       dbClient,
		Orders:   orderRepo,
		Printful: printfulClient,
		Logger:   logg,
		Metrics:  webhookMetrics,
	})
	requireResource(logg, "fulfillment bridge", err)

	reconciler, err := subscriptions.NewReconciler(subscriptions.ReconcilerParams{
		Subscriptions: subscriptionRepo,
		Users:         users.NewRepository(conn),
		Notifier:      dispatcher,
		Logger:        logg,
	})
	requireResource(logg, "subscription reconciler", err)

	retryJob, err := cron.NewFulfillmentRetryJob(cron.FulfillmentRetryJobParams{
		Logger:    logg,
		Orders:    orderRepo,
		Submitter: bridge,
		BatchSize: cfg.Cron.FulfillmentRetryBatch,
		MinAge:    cfg.Cron.FulfillmentRetryMinAge,
	})
	requireResource(logg, "fulfillment retry job", err)

	reconcileJob, err := cron.NewSubscriptionReconcileJob(cron.SubscriptionReconcileJobParams{
		Logger:        logg,
		Subscriptions: subscriptionRepo,
		Stripe:        stripeClient,
		Reconciler:    reconciler,
		PageSize:      cfg.Cron.SubscriptionBatch,
		Limit:         cfg.Cron.SubscriptionLimit,
	})
	requireResource(logg, "subscription reconcile job", err)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockKey(cfg.App.Env)), 0)
	requireResource(logg, "cron lock", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(retryJob, reconcileJob),
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Cron.Interval,
	})
	requireResource(logg, "cron service", err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"instance": instance.GetID(),
		"interval": cfg.Cron.Interval.String(),
		"once":     *once,
	})

	if *once {
		if err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "cron cycle failed", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("%s:%s", lockName, env)
}

func requireResource(logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to bootstrap "+resource, err)
	os.Exit(1)
}
