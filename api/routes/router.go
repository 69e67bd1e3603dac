package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/digitalrevolution/dr-backend/api/controllers"
	subscriptioncontrollers "github.com/digitalrevolution/dr-backend/api/controllers/subscriptions"
	webhookcontrollers "github.com/digitalrevolution/dr-backend/api/controllers/webhooks"
	"github.com/digitalrevolution/dr-backend/api/middleware"
	checkoutsvc "github.com/digitalrevolution/dr-backend/internal/checkout"
	subscriptionsvc "github.com/digitalrevolution/dr-backend/internal/subscriptions"
	"github.com/digitalrevolution/dr-backend/pkg/config"
	"github.com/digitalrevolution/dr-backend/pkg/db"
	"github.com/digitalrevolution/dr-backend/pkg/logger"
	"github.com/digitalrevolution/dr-backend/pkg/redis"
)

// Dependencies carries everything the HTTP surface calls into.
type Dependencies struct {
	Config          *config.Config
	Logger          *logger.Logger
	DB              db.Pinger
	Redis           redis.Pinger
	Gatherer        prometheus.Gatherer
	Checkout        checkoutsvc.Service
	Subscriptions   subscriptionsvc.Service
	StripeWebhook   webhookcontrollers.EventHandler
	PrintfulWebhook webhookcontrollers.EventHandler
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.DB, deps.Redis, logg))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhook, logg))
			r.Post("/printful", webhookcontrollers.PrintfulWebhook(deps.PrintfulWebhook, logg))
		})

		r.With(middleware.OptionalAuth(cfg.JWT, logg)).
			Post("/checkout", controllers.Checkout(deps.Checkout, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Post("/subscriptions/{subscriptionId}/cancel", subscriptioncontrollers.Cancel(deps.Subscriptions, logg))
		})
	})

	return r
}
