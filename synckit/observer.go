package synckit

import (
	"time"

	"github.com/c0deZ3R0/go-sync-merge/version"
)

// ConflictEvent is passed to Hooks for every concurrent pair the resolver
// sees.
type ConflictEvent struct {
	EntityType  string
	EntityID    string
	Relation    version.CausalRelation
	LocalClock  version.VectorClock
	RemoteClock version.VectorClock
	MergedClock version.VectorClock
	// Requested is the configured strategy, Strategy the one applied.
	Requested Strategy
	Strategy  Strategy
	FellBack  bool
	// Reason explains a fallback.
	Reason string
}

// Hooks provides callbacks for observing conflict resolution. Nil fields
// are skipped. Callbacks run synchronously on the resolving goroutine.
type Hooks struct {
	OnConflict func(ConflictEvent)
	OnResolved func(ConflictEvent)
	OnFallback func(ConflictEvent)
}

func (h Hooks) conflict(e ConflictEvent) {
	if h.OnConflict != nil {
		h.OnConflict(e)
	}
}

func (h Hooks) resolved(e ConflictEvent) {
	if h.OnResolved != nil {
		h.OnResolved(e)
	}
}

func (h Hooks) fallback(e ConflictEvent) {
	if h.OnFallback != nil {
		h.OnFallback(e)
	}
}

// MetricsCollector defines the interface for collecting resolver metrics.
type MetricsCollector interface {
	// RecordResolution records one Resolve call. strategy is meaningful only
	// when hadConflict is true.
	RecordResolution(entityType string, relation version.CausalRelation, strategy Strategy, hadConflict bool, duration time.Duration)

	// RecordFallback records a conflict that could not use its configured
	// strategy.
	RecordFallback(entityType string, requested Strategy)
}

// NoOpMetricsCollector is a no-op implementation of MetricsCollector
type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) RecordResolution(string, version.CausalRelation, Strategy, bool, time.Duration) {}

func (NoOpMetricsCollector) RecordFallback(string, Strategy) {}
