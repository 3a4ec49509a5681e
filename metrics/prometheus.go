// Package metrics exports resolver activity as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c0deZ3R0/go-sync-merge/synckit"
	"github.com/c0deZ3R0/go-sync-merge/version"
)

// Collector implements synckit.MetricsCollector on Prometheus vectors.
type Collector struct {
	resolutions *prometheus.CounterVec
	conflicts   *prometheus.CounterVec
	fallbacks   *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

var _ synckit.MetricsCollector = (*Collector)(nil)

// NewCollector creates the metric vectors under namespace. Nothing is
// registered until Register is called.
func NewCollector(namespace string) *Collector {
	return &Collector{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "resolutions_total",
			Help:      "Resolve calls by entity type and causal relation",
		}, []string{"entity_type", "relation"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "conflicts_total",
			Help:      "Concurrent versions settled by a strategy",
		}, []string{"entity_type", "strategy"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "fallbacks_total",
			Help:      "Conflicts that fell back to last writer wins",
		}, []string{"entity_type", "requested"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "resolution_duration_seconds",
			Help:      "Time spent in Resolve",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
		}, []string{"entity_type"}),
	}
}

// Register registers the collector's metrics on reg, or the default
// registerer if reg is nil. Metrics that are already registered are
// skipped.
func (c *Collector) Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, m := range []prometheus.Collector{c.resolutions, c.conflicts, c.fallbacks, c.duration} {
		if err := reg.Register(m); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}

func (c *Collector) RecordResolution(entityType string, relation version.CausalRelation, strategy synckit.Strategy, hadConflict bool, d time.Duration) {
	c.resolutions.WithLabelValues(entityType, relation.String()).Inc()
	if hadConflict {
		c.conflicts.WithLabelValues(entityType, strategy.String()).Inc()
	}
	c.duration.WithLabelValues(entityType).Observe(d.Seconds())
}

func (c *Collector) RecordFallback(entityType string, requested synckit.Strategy) {
	c.fallbacks.WithLabelValues(entityType, requested.String()).Inc()
}
