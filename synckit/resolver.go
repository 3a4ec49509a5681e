package synckit

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/c0deZ3R0/go-sync-merge/errors"
	"github.com/c0deZ3R0/go-sync-merge/logging"
	"github.com/c0deZ3R0/go-sync-merge/version"
)

// Resolver settles divergent versions of entities. Strategies are
// registered per entity type with Configure, ConfigureCustom and
// ConfigureFieldMerge, normally once at startup. Resolve may be called from
// any number of goroutines.
type Resolver struct {
	nodeID string

	mu    sync.RWMutex
	types map[string]typeConfig

	logger  *logging.Logger
	// unscoped logger, for components other than the resolver
	root    *logging.Logger
	hooks   Hooks
	metrics MetricsCollector
	strict  bool
	now     func() time.Time
}

type typeConfig struct {
	strategy Strategy
	// custom holds a func(*SyncConflict[T]) T
	custom any
	// merger holds a *FieldMerger[T]
	merger any
}

// Option configures a Resolver.
type Option interface {
	apply(*Resolver)
}

type optionFn func(*Resolver)

func (f optionFn) apply(r *Resolver) { f(r) }

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *logging.Logger) Option {
	return optionFn(func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	})
}

// WithHooks installs resolution callbacks.
func WithHooks(h Hooks) Option {
	return optionFn(func(r *Resolver) { r.hooks = h })
}

// WithMetrics sets the metrics collector.
func WithMetrics(m MetricsCollector) Option {
	return optionFn(func(r *Resolver) {
		if m != nil {
			r.metrics = m
		}
	})
}

// WithStrictMode makes Resolve return a configuration error where it would
// otherwise fall back to LastWriterWins.
func WithStrictMode() Option {
	return optionFn(func(r *Resolver) { r.strict = true })
}

// WithClock replaces time.Now for conflict detection timestamps.
func WithClock(now func() time.Time) Option {
	return optionFn(func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	})
}

// NewResolver creates a resolver for the node nodeID. The node id is the
// one incremented in every merged clock.
func NewResolver(nodeID string, opts ...Option) (*Resolver, error) {
	if nodeID == "" {
		return nil, errors.NewConfigurationError(errors.OpConfigure, fmt.Errorf("resolver node id must not be empty"))
	}
	r := &Resolver{
		nodeID:  nodeID,
		types:   make(map[string]typeConfig),
		logger:  logging.Discard(),
		metrics: NoOpMetricsCollector{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt.apply(r)
	}
	r.root = r.logger
	r.logger = r.logger.WithComponent(logging.ComponentResolver)
	return r, nil
}

// NodeID returns the id of the resolving node.
func (r *Resolver) NodeID() string { return r.nodeID }

// Strict reports whether fallbacks are turned into errors.
func (r *Resolver) Strict() bool { return r.strict }

// ConfigureType sets the strategy for an entity type by name. Functions
// registered earlier with ConfigureCustom or ConfigureFieldMerge are kept.
func (r *Resolver) ConfigureType(entityType string, s Strategy) error {
	if entityType == "" {
		return errors.NewConfigurationError(errors.OpConfigure, fmt.Errorf("entity type must not be empty"))
	}
	if _, ok := strategyNames[s]; !ok {
		return errors.NewConfigurationError(errors.OpConfigure, fmt.Errorf("%s: unknown strategy %s", entityType, s))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg := r.types[entityType]
	cfg.strategy = s
	r.types[entityType] = cfg
	return nil
}

// Configure sets the strategy used for conflicts on T.
func Configure[T any](r *Resolver, s Strategy) error {
	return r.ConfigureType(EntityTypeOf[T](), s)
}

// ConfigureCustom registers fn as the Custom strategy for T. Its return
// value becomes the result verbatim.
func ConfigureCustom[T any](r *Resolver, fn func(*SyncConflict[T]) T) error {
	if fn == nil {
		return errors.NewConfigurationError(errors.OpConfigure,
			fmt.Errorf("%s: custom resolver function is nil", EntityTypeOf[T]()))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := EntityTypeOf[T]()
	cfg := r.types[key]
	cfg.strategy = Custom
	cfg.custom = fn
	r.types[key] = cfg
	return nil
}

// ConfigureFieldMerge registers m as the FieldLevelMerge strategy for T.
func ConfigureFieldMerge[T any](r *Resolver, m *FieldMerger[T]) error {
	if err := m.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := EntityTypeOf[T]()
	cfg := r.types[key]
	cfg.strategy = FieldLevelMerge
	cfg.merger = m
	r.types[key] = cfg
	return nil
}

// StrategyFor returns the strategy configured for entityType.
func (r *Resolver) StrategyFor(entityType string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.types[entityType]
	return cfg.strategy, ok
}

// EntityTypes returns the configured entity type names in sorted order.
func (r *Resolver) EntityTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.types))
	for name := range r.types {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *Resolver) lookup(entityType string) (typeConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.types[entityType]
	return cfg, ok
}

// Resolve reconciles two versions of one entity. Causally ordered versions
// return the newer one without a conflict. Concurrent versions are settled
// by the strategy configured for T and get a merged clock that dominates
// both inputs.
func Resolve[T Identifiable](r *Resolver, local, remote T, localClock, remoteClock version.VectorClock, localTS, remoteTS time.Time) (ConflictResolutionResult[T], error) {
	start := time.Now()
	entityType := EntityTypeOf[T]()
	relation := localClock.CompareTo(remoteClock)
	log := r.logger.WithEntity(entityType, local.EntityID())

	var res ConflictResolutionResult[T]
	res.Relation = relation

	switch relation {
	case version.HappenedAfter:
		res.Result, res.MergedClock = local, localClock
		res.Resolution = "local version is causally newer"
	case version.HappenedBefore:
		res.Result, res.MergedClock = remote, remoteClock
		res.Resolution = "remote version is causally newer"
	case version.Equal:
		res.Result, res.MergedClock = local, localClock
		res.Resolution = "versions are causally identical"
	default:
		var err error
		res, err = resolveConcurrent(r, log, entityType, local, remote, localClock, remoteClock, localTS, remoteTS)
		if err != nil {
			return ConflictResolutionResult[T]{}, err
		}
	}

	if !res.HadConflict {
		log.Debug("no conflict", slog.String("relation", relation.String()))
	}
	r.metrics.RecordResolution(entityType, relation, res.Strategy, res.HadConflict, time.Since(start))
	return res, nil
}

func resolveConcurrent[T Identifiable](r *Resolver, log *logging.Logger, entityType string, local, remote T, localClock, remoteClock version.VectorClock, localTS, remoteTS time.Time) (ConflictResolutionResult[T], error) {
	merged := localClock.Merge(remoteClock).Increment(r.nodeID)
	cfg, configured := r.lookup(entityType)
	requested := cfg.strategy
	if !configured {
		requested = Unconfigured
	}

	event := ConflictEvent{
		EntityType:  entityType,
		EntityID:    local.EntityID(),
		Relation:    version.Concurrent,
		LocalClock:  localClock,
		RemoteClock: remoteClock,
		MergedClock: merged,
		Requested:   requested,
		Strategy:    cfg.strategy,
	}
	r.hooks.conflict(event)

	res := ConflictResolutionResult[T]{
		MergedClock:   merged,
		HadConflict:   true,
		Relation:      version.Concurrent,
		Strategy:      cfg.strategy,
		Resolution:    cfg.strategy.String(),
		LocalVersion:  &local,
		RemoteVersion: &remote,
	}

	var reason string
	switch {
	case !configured:
		reason = "no strategy configured"
	case cfg.strategy == LastWriterWins:
		res.Result = lastWriter(local, remote, localTS, remoteTS)
	case cfg.strategy == FirstWriterWins:
		res.Result = firstWriter(local, remote, localTS, remoteTS)
	case cfg.strategy == FieldLevelMerge:
		m, ok := cfg.merger.(*FieldMerger[T])
		if !ok {
			reason = "no field merger registered"
			break
		}
		res.Result, res.FieldSources = m.Merge(local, remote, localTS, remoteTS)
	case cfg.strategy == Custom:
		fn, ok := cfg.custom.(func(*SyncConflict[T]) T)
		if !ok {
			reason = "no custom resolver registered"
			break
		}
		c := NewSyncConflict(local.EntityID(), local, remote, localClock, remoteClock, localTS, remoteTS, r.now())
		res.Result = fn(c)
	default:
		reason = fmt.Sprintf("%s is not supported", cfg.strategy)
	}

	if reason != "" {
		if r.strict {
			err := errors.NewConfigurationError(errors.OpConflictResolve,
				fmt.Errorf("%s %q: %s", entityType, local.EntityID(), reason))
			log.LogError(context.Background(), err, "conflict left unresolved")
			return ConflictResolutionResult[T]{}, err
		}
		res.Result = lastWriter(local, remote, localTS, remoteTS)
		res.Strategy = LastWriterWins
		res.FellBack = true
		res.Resolution = fmt.Sprintf("LastWriterWins (fallback: %s)", reason)

		event.Strategy, event.FellBack, event.Reason = LastWriterWins, true, reason
		r.hooks.fallback(event)
		r.metrics.RecordFallback(entityType, requested)
		log.Warn("falling back to last writer wins",
			slog.String("requested", requested.String()),
			slog.String("reason", reason))
	}

	r.hooks.resolved(event)
	log.Info("conflict resolved",
		slog.String("strategy", res.Strategy.String()),
		slog.String("merged_clock", merged.String()))
	return res, nil
}

// lastWriter prefers the later timestamp, then the higher entity id.
func lastWriter[T Identifiable](local, remote T, localTS, remoteTS time.Time) T {
	switch remoteTS.Compare(localTS) {
	case 1:
		return remote
	case -1:
		return local
	}
	if remote.EntityID() > local.EntityID() {
		return remote
	}
	return local
}

// firstWriter prefers the earlier timestamp, then the lower entity id.
func firstWriter[T Identifiable](local, remote T, localTS, remoteTS time.Time) T {
	switch remoteTS.Compare(localTS) {
	case -1:
		return remote
	case 1:
		return local
	}
	if remote.EntityID() < local.EntityID() {
		return remote
	}
	return local
}

// ResolveEntities resolves two stored entities using the clocks and
// modification times they carry. A malformed stored clock is a format
// error.
func ResolveEntities[T SyncableEntity](r *Resolver, local, remote T) (ConflictResolutionResult[T], error) {
	localClock, err := local.VectorClock()
	if err != nil {
		return ConflictResolutionResult[T]{}, errors.WrapOpComponent(err, errors.OpConflictResolve, "synckit")
	}
	remoteClock, err := remote.VectorClock()
	if err != nil {
		return ConflictResolutionResult[T]{}, errors.WrapOpComponent(err, errors.OpConflictResolve, "synckit")
	}
	return Resolve(r, local, remote, localClock, remoteClock, local.LastModified(), remote.LastModified())
}
