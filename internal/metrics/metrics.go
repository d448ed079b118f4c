// Package metrics defines the service's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Resolutions counts link resolutions by source: cache, store, miss.
	Resolutions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "link_resolutions_total",
		Help: "Link resolutions by source.",
	}, []string{"source"})

	// CacheErrors counts resolution cache failures that fell through to the store.
	CacheErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "link_cache_errors_total",
		Help: "Resolution cache errors (degraded to direct store lookups).",
	})

	// Decisions counts routing decisions by action.
	Decisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "routing_decisions_total",
		Help: "Routing decisions by action.",
	}, []string{"action"})

	// ClicksEmitted counts click events sent to the analytics sink.
	ClicksEmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clicks_emitted_total",
		Help: "Click events emitted to the analytics sink.",
	})

	// ClicksDeduped counts clicks dropped by the dedup window.
	ClicksDeduped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clicks_deduped_total",
		Help: "Click events dropped by the dedup window.",
	})

	// ClicksDropped counts clicks dropped because the recorder buffer was full.
	ClicksDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clicks_dropped_total",
		Help: "Click events dropped due to a full recorder buffer.",
	})

	// SinkFailures counts failed emissions to the analytics sink.
	SinkFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analytics_sink_failures_total",
		Help: "Failed analytics sink emissions (accepted data loss).",
	})

	// RateLimited counts requests rejected by the abuse guard.
	RateLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rate_limited_requests_total",
		Help: "Requests rejected by the abuse guard.",
	})
)

func init() {
	prometheus.MustRegister(
		Resolutions, CacheErrors, Decisions,
		ClicksEmitted, ClicksDeduped, ClicksDropped,
		SinkFailures, RateLimited,
	)
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
