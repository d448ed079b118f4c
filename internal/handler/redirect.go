// Package handler contains the HTTP handlers for the redirect edge, the
// internal pages it rewrites to, cache invalidation, and health checks.
package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/link-router/internal/clicks"
	"github.com/jonesrussell/link-router/internal/domain"
	"github.com/jonesrussell/link-router/internal/linkkey"
	"github.com/jonesrussell/link-router/internal/metrics"
	"github.com/jonesrussell/link-router/internal/middleware"
	"github.com/jonesrussell/link-router/internal/platform/logger"
	"github.com/jonesrussell/link-router/internal/ratelimit"
	"github.com/jonesrussell/link-router/internal/resolver"
	"github.com/jonesrussell/link-router/internal/routing"
)

// Resolver resolves a canonical (domain, key) pair to a link record.
type Resolver interface {
	Resolve(ctx context.Context, domainName, key string) (resolver.Resolution, error)
}

// Recorder schedules a click for background recording.
type Recorder interface {
	Record(req clicks.Request) bool
}

// RedirectHandler serves short-link requests end to end: normalize, guard,
// resolve, decide, respond, and schedule click recording.
type RedirectHandler struct {
	resolver Resolver
	engine   *routing.Engine
	recorder Recorder
	guard    ratelimit.Limiter
	guarded  map[string]struct{}
	log      logger.Logger
}

// NewRedirectHandler creates a RedirectHandler. highValueKeys are the link
// keys subject to the abuse guard; all other keys bypass it.
func NewRedirectHandler(
	res Resolver,
	engine *routing.Engine,
	rec Recorder,
	guard ratelimit.Limiter,
	highValueKeys []string,
	log logger.Logger,
) *RedirectHandler {
	guarded := make(map[string]struct{}, len(highValueKeys))
	for _, key := range highValueKeys {
		guarded[key] = struct{}{}
	}

	return &RedirectHandler{
		resolver: res,
		engine:   engine,
		recorder: rec,
		guard:    guard,
		guarded:  guarded,
		log:      log,
	}
}

// Handle resolves the request path and responds with the routing decision.
func (h *RedirectHandler) Handle(c *gin.Context) {
	lk, err := linkkey.Normalize(c.Request.Host, c.Request.URL.Path)
	if err != nil {
		dec := h.engine.Decide(nil, nil, domain.RequestContext{}, time.Now())
		c.Redirect(http.StatusFound, dec.URL)
		return
	}

	reqCtx := h.requestContext(c, lk)

	if !h.allowGuarded(c, lk, reqCtx.IP) {
		return
	}

	res, err := h.resolver.Resolve(c.Request.Context(), lk.Domain, lk.Key)
	if err != nil {
		h.log.Error("Link resolution failed",
			logger.String("domain", lk.Domain),
			logger.String("key", lk.Key),
			logger.Error(err),
		)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "resolution unavailable"})
		return
	}

	dec := h.engine.Decide(res.Link, res.Meta, reqCtx, time.Now())
	metrics.Decisions.WithLabelValues(string(dec.Action)).Inc()

	if dec.RecordClick {
		h.recorder.Record(clicks.Request{
			Link:    res.Link,
			Domain:  lk.Domain,
			Key:     lk.Key,
			URL:     visitedURL(dec, res.Link),
			Context: reqCtx,
		})
	}

	h.respond(c, dec, res.Link)
}

// allowGuarded applies the abuse guard to high-value keys. A guard store
// failure fails open: slowing abusers is not worth failing legitimate clicks.
func (h *RedirectHandler) allowGuarded(c *gin.Context, lk linkkey.LinkKey, ip string) bool {
	if _, ok := h.guarded[lk.Key]; !ok {
		return true
	}

	res, err := h.guard.Allow(c.Request.Context(), ip+":"+lk.Domain+":"+lk.Key)
	if err != nil {
		h.log.Warn("Abuse guard unavailable, allowing request",
			logger.String("key", lk.Key),
			logger.Error(err),
		)
		return true
	}
	if res.Allowed {
		return true
	}

	metrics.RateLimited.Inc()
	retryAfter := int(time.Until(res.ResetAt).Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
	return false
}

// requestContext assembles the decision inputs from the HTTP request.
func (h *RedirectHandler) requestContext(c *gin.Context, lk linkkey.LinkKey) domain.RequestContext {
	rawUA := c.Request.UserAgent()

	isBot := false
	if flagged, exists := c.Get(middleware.IsBotKey); exists && flagged == true {
		isBot = true
	}

	return domain.RequestContext{
		IP:          c.ClientIP(),
		Country:     country(c),
		OS:          clicks.OSFamily(rawUA),
		UserAgent:   rawUA,
		Referer:     c.Request.Referer(),
		IsBot:       isBot,
		DoNotTrack:  doNotTrack(c),
		InspectMode: lk.Inspect,
		Password:    c.Query("pw"),
	}
}

// country reads the edge-provided geo headers, CDN first.
func country(c *gin.Context) string {
	if v := c.GetHeader("CF-IPCountry"); v != "" {
		return v
	}
	return c.GetHeader("X-Vercel-IP-Country")
}

// doNotTrack honors both the legacy DNT header and Global Privacy Control.
func doNotTrack(c *gin.Context) bool {
	return c.GetHeader("DNT") == "1" || c.GetHeader("Sec-GPC") == "1"
}

// visitedURL is the destination attached to the click event. Rewrite branches
// carry an internal path in the decision, so the stored target wins there.
func visitedURL(dec routing.Decision, link *domain.LinkRecord) string {
	if link != nil && link.URL != "" {
		return link.URL
	}
	return dec.URL
}

// respond turns a decision into an HTTP response. Rewrite actions render a
// page under the short domain; everything else is a temporary redirect so
// repeat clicks keep reaching the counters.
func (h *RedirectHandler) respond(c *gin.Context, dec routing.Decision, link *domain.LinkRecord) {
	switch dec.Action {
	case routing.ActionRewriteBanned:
		renderBanned(c)
	case routing.ActionRewriteExpired:
		renderExpired(c)
	case routing.ActionRewritePassword:
		renderPassword(c, link.Key)
	case routing.ActionRewriteInspect:
		renderInspect(c, link)
	case routing.ActionRewriteProxy:
		renderProxy(c, link)
	case routing.ActionRewriteTarget:
		renderFrame(c, dec.URL)
	default:
		c.Redirect(http.StatusFound, dec.URL)
	}
}
