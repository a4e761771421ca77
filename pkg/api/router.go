package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/fileshare/internal/logger"
	"github.com/marmos91/fileshare/pkg/store"
)

// HealthChecker is the probe surface a backing store exposes.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ActivitySource serves the audit trail to the ops surface.
type ActivitySource interface {
	RecentActivity(ctx context.Context, limit int) ([]store.ActivityLog, error)
}

// NewRouter builds the ops router.
//
// Endpoints:
//   - GET /healthz        - liveness probe
//   - GET /healthz/ready  - readiness probe (checks backing stores)
//   - GET /metrics        - Prometheus metrics
//   - GET /activity       - recent audit entries (when a source is wired)
//
// All endpoints are unauthenticated; the ops port is expected to be bound
// to an internal interface.
func NewRouter(registry *prometheus.Registry, checks map[string]HealthChecker, audit ActivitySource) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", liveness)
	r.Get("/healthz/ready", readiness(checks))
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	if audit != nil {
		r.Get("/activity", activity(audit))
	}

	return r
}

func liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readiness runs every store probe and reports 503 if any fails.
func readiness(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results := make(map[string]string, len(checks))
		healthy := true

		for name, check := range checks {
			if err := check.HealthCheck(r.Context()); err != nil {
				logger.Warn("health check failed", "check", name, logger.Err(err))
				results[name] = err.Error()
				healthy = false
			} else {
				results[name] = "ok"
			}
		}

		status := http.StatusOK
		overall := "ok"
		if !healthy {
			status = http.StatusServiceUnavailable
			overall = "unavailable"
		}

		writeJSON(w, status, map[string]any{
			"status": overall,
			"checks": results,
		})
	}
}

// activityEntry is the wire shape of one audit record.
type activityEntry struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Action      string    `json:"action"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// activity serves the newest audit entries, most recent first. An optional
// limit query parameter caps the result; the source clamps it further.
func activity(audit ActivitySource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
				return
			}
			limit = n
		}

		entries, err := audit.RecentActivity(r.Context(), limit)
		if err != nil {
			logger.Warn("activity query failed", logger.Err(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "activity unavailable"})
			return
		}

		out := make([]activityEntry, 0, len(entries))
		for _, e := range entries {
			out = append(out, activityEntry{
				ID:          e.ID,
				UserID:      e.UserID,
				Action:      e.Action,
				Description: e.Description,
				CreatedAt:   e.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"count":   len(out),
			"entries": out,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to encode health response", logger.Err(err))
	}
}
