package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Check is a named readiness probe.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// AppInfo is reported by /health/info.
type AppInfo struct {
	Name        string
	Version     string
	Environment string
	Backend     string
	Strategy    string
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	checks  []Check
	info    AppInfo
	stats   func() map[string]any
	timeout time.Duration
}

// NewHealthHandler creates a new health handler. stats may be nil.
func NewHealthHandler(info AppInfo, stats func() map[string]any, checks ...Check) *HealthHandler {
	return &HealthHandler{
		checks:  checks,
		info:    info,
		stats:   stats,
		timeout: 2 * time.Second,
	}
}

// Live handles liveness probe (is the process alive?).
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready handles readiness probe (is the service ready to accept traffic?).
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for _, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[check.Name] = "unhealthy: " + err.Error()
			continue
		}
		results[check.Name] = "healthy"
	}

	body := gin.H{"status": "ok", "checks": results}
	if status != http.StatusOK {
		body["status"] = "error"
	}
	c.JSON(status, body)
}

// Info returns application information.
// GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	body := gin.H{
		"app":     h.info.Name,
		"version": h.info.Version,
		"env":     h.info.Environment,
		"numerator": gin.H{
			"backend":  h.info.Backend,
			"strategy": h.info.Strategy,
		},
	}
	if h.stats != nil {
		body["database"] = h.stats()
	}
	c.JSON(http.StatusOK, body)
}
