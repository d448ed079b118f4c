package api

import (
	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/link-router/internal/handler"
	"github.com/jonesrussell/link-router/internal/metrics"
	"github.com/jonesrussell/link-router/internal/middleware"
)

// Deps are the handlers the router wires up.
type Deps struct {
	Redirect   *handler.RedirectHandler
	Health     *handler.HealthHandler
	CacheAdmin *handler.CacheAdminHandler
}

// SetupRoutes configures all routes. The catch-all redirect routes go last;
// static paths (health, metrics, pages) take precedence over the key match.
func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", deps.Health.HealthCheck)
	router.HEAD("/health", deps.Health.HealthCheck)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Invalidation hooks for the management plane; network-internal only.
	internal := router.Group("/internal")
	internal.DELETE("/cache/:domain", deps.CacheAdmin.InvalidateDomain)
	internal.DELETE("/cache/:domain/:key", deps.CacheAdmin.InvalidateKey)

	// Rewrite pages at their direct addresses.
	router.GET("/banned/:domain", deps.Redirect.Banned)
	router.GET("/expired/:domain/:key", deps.Redirect.Expired)
	router.GET("/password/:domain/:key", deps.Redirect.Password)
	router.GET("/inspect/:domain/:key", deps.Redirect.Inspect)
	router.GET("/proxy/:domain/:key", deps.Redirect.Proxy)

	// Short-link resolution with bot classification.
	redirect := router.Group("")
	redirect.Use(middleware.BotFilter())
	redirect.GET("/", deps.Redirect.Handle)
	redirect.GET("/:key", deps.Redirect.Handle)
}
