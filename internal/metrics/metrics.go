package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/uvsolutions/irrigation-advisor/internal/advisor"
	"github.com/uvsolutions/irrigation-advisor/internal/weather"
)

// Metrics collects the counters behind /metrics. A nil *Metrics is a
// valid no-op observer, so tests and tools can run without a registry.
type Metrics struct {
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	cacheFallbacks   *prometheus.CounterVec
	cacheFetchErrors *prometheus.CounterVec
	recommendations  *prometheus.CounterVec
	fetchSeconds     *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weather_cache_hits_total",
			Help: "Weather cache hits by fetch purpose.",
		}, []string{"purpose"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weather_cache_misses_total",
			Help: "Weather cache misses by fetch purpose.",
		}, []string{"purpose"}),
		cacheFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weather_fallbacks_total",
			Help: "Times the default snapshot stood in for a failed fetch.",
		}, []string{"purpose"}),
		cacheFetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weather_cache_fetch_errors_total",
			Help: "Cache lookups that failed upstream, by fetch purpose.",
		}, []string{"purpose"}),
		recommendations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recommendations_issued_total",
			Help: "Recommendations issued by priority tier.",
		}, []string{"tier"}),
		fetchSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "weather_fetch_duration_seconds",
			Help:    "Outbound forecast fetch duration by purpose and outcome.",
			Buckets: prometheus.DefBuckets,
		}, []string{"purpose", "outcome"}),
	}

	prometheus.MustRegister(
		m.cacheHits,
		m.cacheMisses,
		m.cacheFallbacks,
		m.cacheFetchErrors,
		m.recommendations,
		m.fetchSeconds,
	)
	return m
}

// WrapProvider instruments a weather provider with fetch timing. A nil
// receiver returns the provider unchanged.
func (m *Metrics) WrapProvider(next weather.Provider) weather.Provider {
	if m == nil {
		return next
	}
	return &timedProvider{next: next, m: m}
}

type timedProvider struct {
	next weather.Provider
	m    *Metrics
}

func (t *timedProvider) Name() string { return t.next.Name() }

func (t *timedProvider) Fetch(ctx context.Context, coord weather.Coordinate, purpose weather.Purpose) (weather.Report, error) {
	start := time.Now()
	report, err := t.next.Fetch(ctx, coord, purpose)

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	t.m.fetchSeconds.WithLabelValues(string(purpose), outcome).Observe(time.Since(start).Seconds())
	return report, err
}

// Handler serves the Prometheus scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

func (m *Metrics) CacheHit(p weather.Purpose) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(string(p)).Inc()
}

func (m *Metrics) CacheMiss(p weather.Purpose) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(string(p)).Inc()
}

func (m *Metrics) CacheFallback(p weather.Purpose) {
	if m == nil {
		return
	}
	m.cacheFallbacks.WithLabelValues(string(p)).Inc()
}

func (m *Metrics) CacheFetchError(p weather.Purpose) {
	if m == nil {
		return
	}
	m.cacheFetchErrors.WithLabelValues(string(p)).Inc()
}

func (m *Metrics) RecommendationIssued(tier advisor.Tier) {
	if m == nil {
		return
	}
	m.recommendations.WithLabelValues(string(tier)).Inc()
}
