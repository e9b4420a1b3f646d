package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"inspecta/pkg/logger"
)

// Logger middleware logs HTTP requests with timing and status.
// Probe and scrape traffic is logged at debug level.
func Logger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.Default()
	}
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		write := log.WithContext(c.Request.Context()).Infow
		if isProbe(path) && status < 500 {
			write = log.WithContext(c.Request.Context()).Debugw
		}
		write("http request",
			"method", c.Request.Method,
			"path", path,
			"query", query,
			"status", status,
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
			"error", c.Errors.ByType(gin.ErrorTypePrivate).String(),
		)
	}
}

func isProbe(path string) bool {
	return path == "/metrics" || strings.HasPrefix(path, "/health/")
}
