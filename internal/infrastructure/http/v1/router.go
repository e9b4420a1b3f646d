// Package v1 provides the operational HTTP surface: health probes,
// Prometheus metrics and read-only numbering state.
package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inspecta/internal/infrastructure/http/v1/handlers"
	"inspecta/internal/infrastructure/http/v1/middleware"
	"inspecta/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	Info handlers.AppInfo
	// Checks are run by /health/ready. Typically Postgres and, when enabled, Redis.
	Checks []handlers.Check
	// PoolStats feeds /health/info. Optional.
	PoolStats func() map[string]any

	// Counters backs the numbering endpoints. Nil disables them.
	Counters handlers.CounterReader
	PadWidth int
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Info, cfg.PoolStats, cfg.Checks...)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.Counters != nil {
		numbering := handlers.NewNumberingHandler(handlers.NewBaseHandler(), cfg.Counters, cfg.PadWidth)
		api := router.Group("/api/v1/numbering")
		api.GET("", numbering.Families)
		api.GET("/:prefix", numbering.Status)
	}

	return router
}
