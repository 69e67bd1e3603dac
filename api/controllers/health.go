package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/digitalrevolution/dr-backend/api/responses"
	"github.com/digitalrevolution/dr-backend/pkg/config"
	"github.com/digitalrevolution/dr-backend/pkg/db"
	pkgerrors "github.com/digitalrevolution/dr-backend/pkg/errors"
	"github.com/digitalrevolution/dr-backend/pkg/logger"
	"github.com/digitalrevolution/dr-backend/pkg/redis"
)

const (
	envHeader    = "X-DR-Env"
	readyTimeout = 2 * time.Second
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when postgres and redis both answer.
func HealthReady(cfg *config.Config, dbPinger db.Pinger, redisPinger redis.Pinger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		if dbPinger == nil || redisPinger == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "dependencies not wired"))
			return
		}
		if err := dbPinger.Ping(ctx); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "postgres unavailable"))
			return
		}
		if err := redisPinger.Ping(ctx); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unavailable"))
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
