package handlers

import (
	"net/http"
)

const (
	statusOK       = "ok"
	statusAlive    = "alive"
	statusReady    = "ready"
	statusNotReady = "not_ready"
	statusDraining = "draining"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// ReadinessResponse is the body of GET /readyz. Checks is only set when a
// check fails.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HealthCheck reports that the service is up and names it.
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, http.StatusOK, HealthResponse{
		Status:  statusOK,
		Service: h.serviceName,
	})
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": statusAlive,
		})
	}
}

// ReadinessCheck returns 200 only when scratch is writable, ffmpeg can be
// found and the server is not shutting down.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	checks := make(map[string]string)

	if h.draining.Load() {
		checks["server"] = statusDraining
	}
	if err := h.store.CheckWritable(); err != nil {
		checks["scratch"] = err.Error()
	}
	if err := h.transcoder.Ready(); err != nil {
		checks["ffmpeg"] = err.Error()
	}

	if len(checks) > 0 {
		writeJSONResponse(w, http.StatusServiceUnavailable, ReadinessResponse{
			Status: statusNotReady,
			Checks: checks,
		})
		return
	}

	writeJSONResponse(w, http.StatusOK, ReadinessResponse{Status: statusReady})
}
