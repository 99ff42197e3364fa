package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/trolleylabs/trolley-backend/api/responses"
	"github.com/trolleylabs/trolley-backend/pkg/config"
	"github.com/trolleylabs/trolley-backend/pkg/logger"
	pkgredis "github.com/trolleylabs/trolley-backend/pkg/redis"
	"github.com/trolleylabs/trolley-backend/pkg/types"
)

const readinessTimeout = 2 * time.Second

type dbPinger interface {
	Ping(context.Context) error
}

// HealthLive reports process liveness.
func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Trolley-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady checks the backing stores and returns 503 when any is down.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP dbPinger, redisP pkgredis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Trolley-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]string{}
		healthy := true

		if dbP != nil {
			if err := dbP.Ping(ctx); err != nil {
				checks["database"] = "down"
				healthy = false
				if logg != nil {
					logg.Error(ctx, "readiness database check failed", err)
				}
			} else {
				checks["database"] = "up"
			}
		}

		if redisP != nil {
			if err := redisP.Ping(ctx); err != nil {
				checks["redis"] = "down"
				healthy = false
				if logg != nil {
					logg.Error(ctx, "readiness redis check failed", err)
				}
			} else {
				checks["redis"] = "up"
			}
		}

		if !healthy {
			writeUnready(w, checks)
			return
		}

		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}

func writeUnready(w http.ResponseWriter, checks map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)

	payload := types.ErrorEnvelope{
		Error: types.APIError{
			Code:    "NOT_READY",
			Message: "one or more dependencies are unavailable",
			Details: checks,
		},
	}
	_ = json.NewEncoder(w).Encode(payload)
}
