package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/link-router/internal/platform/logger"
)

// CacheInvalidator drops resolution cache entries.
type CacheInvalidator interface {
	DeleteKey(ctx context.Context, domainName, key string) error
	DeleteDomain(ctx context.Context, domainName string) error
}

// CacheAdminHandler exposes the invalidation hook the management plane calls
// after a link or domain edit. It lives under /internal and is expected to be
// reachable only from the private network.
type CacheAdminHandler struct {
	cache CacheInvalidator
	log   logger.Logger
}

// NewCacheAdminHandler creates a CacheAdminHandler.
func NewCacheAdminHandler(cache CacheInvalidator, log logger.Logger) *CacheAdminHandler {
	return &CacheAdminHandler{cache: cache, log: log}
}

// InvalidateDomain drops a domain's whole hash, metadata included.
func (h *CacheAdminHandler) InvalidateDomain(c *gin.Context) {
	domainName := strings.ToLower(c.Param("domain"))

	if err := h.cache.DeleteDomain(c.Request.Context(), domainName); err != nil {
		h.log.Error("Domain cache invalidation failed",
			logger.String("domain", domainName),
			logger.Error(err),
		)
		c.JSON(http.StatusBadGateway, gin.H{"error": "cache unavailable"})
		return
	}

	h.log.Info("Domain cache invalidated", logger.String("domain", domainName))
	c.Status(http.StatusNoContent)
}

// InvalidateKey drops a single link field from a domain's hash.
func (h *CacheAdminHandler) InvalidateKey(c *gin.Context) {
	domainName := strings.ToLower(c.Param("domain"))
	key := strings.ToLower(c.Param("key"))

	if err := h.cache.DeleteKey(c.Request.Context(), domainName, key); err != nil {
		h.log.Error("Link cache invalidation failed",
			logger.String("domain", domainName),
			logger.String("key", key),
			logger.Error(err),
		)
		c.JSON(http.StatusBadGateway, gin.H{"error": "cache unavailable"})
		return
	}

	h.log.Info("Link cache invalidated",
		logger.String("domain", domainName),
		logger.String("key", key),
	)
	c.Status(http.StatusNoContent)
}
