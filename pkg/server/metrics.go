// pkg/server/metrics.go

package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"NJCrashes/pkg/chunk"
	"NJCrashes/pkg/njdot"
)

type metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func newMetrics(store *chunk.Store, cache *njdot.ResultCache) *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "njcrashes_requests_total",
			Help: "API requests by route and status.",
		}, []string{"route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "njcrashes_request_duration_seconds",
			Help:    "API request latency.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"route"}),
	}
	m.registry.MustRegister(m.requests, m.latency)
	if store != nil {
		m.registerStoreGauges(store)
	}
	if cache != nil {
		m.registerCacheGauges(cache)
	}
	return m
}

func (m *metrics) registerStoreGauges(store *chunk.Store) {
	gauge := func(name, help string, get func(chunk.Stats) int64) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, func() float64 {
			return float64(get(store.Stats()))
		})
	}
	m.registry.MustRegister(
		gauge("njcrashes_chunk_cache_hits", "Chunk reads served from cache.",
			func(s chunk.Stats) int64 { return s.CacheHits }),
		gauge("njcrashes_chunk_cache_misses", "Chunk reads that needed a fetch.",
			func(s chunk.Stats) int64 { return s.CacheMisses }),
		gauge("njcrashes_chunk_fetches", "Range fetches issued.",
			func(s chunk.Stats) int64 { return s.Fetches }),
		gauge("njcrashes_chunk_fetched_bytes", "Bytes fetched from the source.",
			func(s chunk.Stats) int64 { return s.FetchedBytes }),
		gauge("njcrashes_chunk_fetch_errors", "Range fetches that failed after retry.",
			func(s chunk.Stats) int64 { return s.FetchErrors }),
	)
}

func (m *metrics) registerCacheGauges(cache *njdot.ResultCache) {
	gauge := func(name, help string, get func(njdot.CacheStats) int64) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, func() float64 {
			return float64(get(cache.Stats()))
		})
	}
	m.registry.MustRegister(
		gauge("njcrashes_result_cache_hits", "Query results served from cache.",
			func(s njdot.CacheStats) int64 { return s.Hits }),
		gauge("njcrashes_result_cache_misses", "Query results that needed execution.",
			func(s njdot.CacheStats) int64 { return s.Misses }),
		gauge("njcrashes_result_cache_superseded", "Query results discarded as stale.",
			func(s njdot.CacheStats) int64 { return s.Superseded }),
	)
}

func (m *metrics) handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// observe is the per-request middleware feeding the counters.
func (m *metrics) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		m.latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
