package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// checkTimeout bounds each dependency probe.
const checkTimeout = 2 * time.Second

// Check is a named dependency probe.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	version string
	started time.Time
	checks  []Check
}

// NewHealthHandler creates a HealthHandler probing the given dependencies.
func NewHealthHandler(version string, checks ...Check) *HealthHandler {
	return &HealthHandler{
		version: version,
		started: time.Now(),
		checks:  checks,
	}
}

// HealthCheck reports service health and per-dependency status. Any failing
// probe degrades the response to 503 so load balancers stop routing here.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	deps := make(map[string]string, len(h.checks))
	healthy := true

	for _, check := range h.checks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
		err := check.Probe(ctx)
		cancel()

		if err != nil {
			deps[check.Name] = err.Error()
			healthy = false
		} else {
			deps[check.Name] = "ok"
		}
	}

	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":       status,
		"version":      h.version,
		"uptime":       time.Since(h.started).Truncate(time.Second).String(),
		"dependencies": deps,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}
