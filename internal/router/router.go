// Package router wires chi routes to handlers behind the shared
// middleware chain.
package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/connexus-ai/kenyalaw-rag/internal/handler"
	"github.com/connexus-ai/kenyalaw-rag/internal/middleware"
)

// Dependencies holds all injected services needed by the router.
type Dependencies struct {
	DB          handler.DBPinger
	FrontendURL string
	Version     string
	Metrics     *middleware.Metrics
	MetricsReg  *prometheus.Registry

	Orchestrator handler.Orchestrator
	StatusAPI    handler.StatusAPI
}

// New creates and configures the chi router with all routes.
func New(deps *Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(deps.FrontendURL))
	if deps.Metrics != nil {
		r.Use(middleware.Monitoring(deps.Metrics))
	}

	r.Get("/api/health", handler.Health(deps.DB, deps.Version))
	if deps.MetricsReg != nil {
		r.Handle("/metrics", middleware.MetricsHandler(deps.MetricsReg))
	}

	queryTimeout := middleware.Timeout(30 * time.Second)
	r.With(queryTimeout).Post("/api/query", handler.Query(deps.Orchestrator))

	r.Get("/api/models/status", handler.ModelStatus(deps.StatusAPI))
	r.Post("/api/models/{id}/reload", handler.ModelReload(deps.StatusAPI, chiURLParamID))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   "route not found",
		})
	})

	return r
}

func chiURLParamID(r *http.Request) string {
	return chi.URLParam(r, "id")
}
