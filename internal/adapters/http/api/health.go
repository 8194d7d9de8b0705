package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/epcforward/pkg/metrics"
)

// HealthHandler handles liveness requests.
type HealthHandler struct {
	started time.Time
	ready   func() bool
}

// NewHealthHandler creates a health handler; ready may be nil.
func NewHealthHandler(ready func() bool) *HealthHandler {
	if ready == nil {
		ready = func() bool { return true }
	}
	return &HealthHandler{started: time.Now(), ready: ready}
}

type healthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// HandleHealth handles GET /healthz requests.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if !h.ready() {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "starting", Uptime: time.Since(h.started).Round(time.Second).String()})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Uptime: time.Since(h.started).Round(time.Second).String()})
}

// HandleMetrics serves the Prometheus registry.
func (h *HealthHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}
