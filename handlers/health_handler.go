package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/carvis-cloud/lambda-auth/auth"
	"github.com/carvis-cloud/lambda-auth/utils"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// KeySetSource is satisfied by *auth.Authenticator.
type KeySetSource interface {
	KeySet(ctx context.Context) (*auth.KeySet, error)
}

// Pinger is an optional backing store pinged by the readiness check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	keys   KeySetSource
	cache  Pinger
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. cache may be nil.
func NewHealthHandler(keys KeySetSource, cache Pinger, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		keys:   keys,
		cache:  cache,
		logger: logger,
	}
}

// HandleHealth handles GET /healthz
// Basic health check - always returns 200 if service is running
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	_ = utils.WriteOK(w, response)
}

// HandleReadiness handles GET /readyz
// Readiness check - the trust authority's key set must be obtainable
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if n, err := h.checkKeySet(ctx); err != nil {
		h.logger.Warn("key set health check failed", zap.Error(err))
		checks["jwks"] = "unhealthy"
		allHealthy = false
	} else {
		checks["jwks"] = "healthy"
		checks["jwks_keys"] = strconv.Itoa(n)
	}

	// The shared cache is an optimisation; report it without failing readiness
	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			h.logger.Warn("redis health check failed", zap.Error(err))
			checks["redis"] = "unhealthy"
		} else {
			checks["redis"] = "healthy"
		}
	}

	if !allHealthy {
		details := make(map[string]interface{}, len(checks))
		for name, state := range checks {
			details[name] = state
		}
		if err := utils.WriteServiceUnavailable(w, "key set unavailable", details); err != nil {
			h.logger.Error("failed to write readiness response", zap.Error(err))
		}
		return
	}

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if err := utils.WriteOK(w, response); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

// checkKeySet fetches the key set and returns its size
func (h *HealthHandler) checkKeySet(ctx context.Context) (int, error) {
	if h.keys == nil {
		return 0, nil // No authenticator configured
	}

	set, err := h.keys.KeySet(ctx)
	if err != nil {
		return 0, err
	}
	return set.Len(), nil
}
