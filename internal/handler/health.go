package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Checker reports whether one dependency is reachable.
type Checker func(ctx context.Context) error

// HealthHandler handles health check endpoints
type HealthHandler struct {
	checks map[string]Checker
	logger *zap.Logger
}

// NewHealthHandler creates a health handler. checks maps a dependency name
// to its check; a nil check reports "not configured".
func NewHealthHandler(checks map[string]Checker, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{checks: checks, logger: logger.With(zap.String("handler", "health"))}
}

// HealthResponse represents the health status response
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Health handles GET /healthz - Simple liveness check
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Ready handles GET /readyz. It answers 200 only when every configured
// dependency responds.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]string, len(names))
	ready := true
	fields := make([]zap.Field, 0, len(names))
	for _, name := range names {
		check := h.checks[name]
		switch {
		case check == nil:
			results[name] = "not configured"
		default:
			if err := check(ctx); err != nil {
				results[name] = "error: " + err.Error()
				ready = false
			} else {
				results[name] = "ok"
			}
		}
		fields = append(fields, zap.String(name, results[name]))
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
		h.logger.Warn("readiness check failed", fields...)
	}
	writeJSON(w, code, ReadinessResponse{Status: status, Checks: results})
}
