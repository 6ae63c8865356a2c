// Package metrics exposes Prometheus counters for the cache layer and the
// background cleanup worker.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cache results recorded per operation.
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultError = "error"
	ResultOK    = "ok"
)

// Recorder is the subset of the collector used by instrumented components.
type Recorder interface {
	RecordCache(op, result string)
	RecordCleanup(result string)
}

// Collector records metrics into a Prometheus registry.
type Collector struct {
	cacheOps    *prometheus.CounterVec
	cleanupJobs *prometheus.CounterVec
}

// NewCollector builds a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shorts_cache_operations_total",
			Help: "Cache store operations by operation and result.",
		}, []string{"op", "result"}),
		cleanupJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shorts_cleanup_jobs_total",
			Help: "Background user cleanup jobs by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(c.cacheOps, c.cleanupJobs)

	return c
}

// RecordCache counts a cache operation outcome.
func (c *Collector) RecordCache(op, result string) {
	c.cacheOps.WithLabelValues(op, result).Inc()
}

// RecordCleanup counts a finished cleanup job.
func (c *Collector) RecordCleanup(result string) {
	c.cleanupJobs.WithLabelValues(result).Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Nop discards every measurement.
type Nop struct{}

// RecordCache implements Recorder.
func (Nop) RecordCache(string, string) {}

// RecordCleanup implements Recorder.
func (Nop) RecordCleanup(string) {}
