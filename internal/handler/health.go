package handler

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/arixa/arixa/internal/llm"
	"github.com/arixa/arixa/internal/models"
)

const version = "1.0.0"

// HealthChecker is implemented by dependencies that can report connectivity.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles GET /health. The backend probe may be a network
// call, so concurrent health requests share one probe.
type HealthHandler struct {
	backend  llm.Backend
	checkers map[string]HealthChecker
	sf       singleflight.Group
}

// NewHealthHandler creates a health handler. checkers are optional
// dependencies keyed by the name reported in the response.
func NewHealthHandler(backend llm.Backend, checkers map[string]HealthChecker) *HealthHandler {
	return &HealthHandler{backend: backend, checkers: checkers}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"server": "ok"}
	overallStatus := "healthy"

	// Use a short timeout for health checks so they don't block
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	v, _, _ := h.sf.Do("backend", func() (interface{}, error) {
		return h.backend.Available(ctx), nil
	})
	if ok, _ := v.(bool); ok {
		checks["ai_backend"] = h.backend.Name()
	} else {
		checks["ai_backend"] = "unavailable: " + h.backend.Name()
		overallStatus = "degraded"
	}

	for name, c := range h.checkers {
		if err := c.Ping(ctx); err != nil {
			checks[name] = "unavailable: " + err.Error()
			overallStatus = "degraded"
		} else {
			checks[name] = "ok"
		}
	}

	statusCode := http.StatusOK
	if overallStatus == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	models.WriteJSON(w, statusCode, models.HealthResponse{
		Status:  overallStatus,
		Version: version,
		Checks:  checks,
	})
}
