// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/fencerpulse/pkg/metrics"
)

type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	deps ModelDependencies
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(deps ModelDependencies) *HealthHandler {
	return &HealthHandler{deps: deps}
}

// HandleHealth handles GET /healthz requests. The process is healthy without
// a model; status is "degraded" until one is loaded.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotFound(w, "api.healthz")
		return
	}
	loaded := h.deps.ModelInfo().Loaded
	status := "ok"
	if !loaded {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: status, ModelLoaded: loaded})
}

// MetricsHandler serves the custom Prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})
}
