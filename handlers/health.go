package handlers

import (
	"net/http"
	"time"

	"relaywatch/pkg/metrics"
)

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	Version string
	// HeartbeatFresh reports whether the supervisor's own heartbeat file
	// was written recently enough to consider it alive.
	HeartbeatFresh func() bool
}

// NewHealthHandler builds a HealthHandler.
func NewHealthHandler(version string, heartbeatFresh func() bool) *HealthHandler {
	return &HealthHandler{Version: version, HeartbeatFresh: heartbeatFresh}
}

// Health handles GET /api/health: always 200 while the process is up.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	WriteSuccess(w, map[string]string{"status": "ok", "version": h.Version})
	metrics.RecordHealthCheck("liveness", time.Since(start), "healthy")
}

// Ready handles GET /api/ready: degraded if the supervisor's heartbeat
// has gone stale, since that means jobs are no longer being dispatched.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "healthy"
	if h.HeartbeatFresh != nil && !h.HeartbeatFresh() {
		status = "degraded"
	}
	metrics.RecordHealthCheck("readiness", time.Since(start), status)
	WriteSuccess(w, map[string]string{"status": status})
}
