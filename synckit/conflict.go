package synckit

import (
	"fmt"
	"time"

	"github.com/c0deZ3R0/go-sync-merge/errors"
	"github.com/c0deZ3R0/go-sync-merge/version"
)

// SyncConflict describes two concurrent versions of one entity. It is
// read-only apart from Resolve, which may be called once.
type SyncConflict[T any] struct {
	entityID    string
	entityType  string
	local       T
	remote      T
	localClock  version.VectorClock
	remoteClock version.VectorClock
	localTime   time.Time
	remoteTime  time.Time
	relation    version.CausalRelation
	detectedAt  time.Time

	resolved   bool
	resolution T
}

// NewSyncConflict records a conflict between local and remote. The causal
// relation is computed from the two clocks.
func NewSyncConflict[T any](entityID string, local, remote T, localClock, remoteClock version.VectorClock, localTime, remoteTime, detectedAt time.Time) *SyncConflict[T] {
	return &SyncConflict[T]{
		entityID:    entityID,
		entityType:  EntityTypeOf[T](),
		local:       local,
		remote:      remote,
		localClock:  localClock,
		remoteClock: remoteClock,
		localTime:   localTime,
		remoteTime:  remoteTime,
		relation:    localClock.CompareTo(remoteClock),
		detectedAt:  detectedAt,
	}
}

func (c *SyncConflict[T]) EntityID() string                 { return c.entityID }
func (c *SyncConflict[T]) EntityType() string               { return c.entityType }
func (c *SyncConflict[T]) Local() T                         { return c.local }
func (c *SyncConflict[T]) Remote() T                        { return c.remote }
func (c *SyncConflict[T]) LocalClock() version.VectorClock  { return c.localClock }
func (c *SyncConflict[T]) RemoteClock() version.VectorClock { return c.remoteClock }
func (c *SyncConflict[T]) LocalTimestamp() time.Time        { return c.localTime }
func (c *SyncConflict[T]) RemoteTimestamp() time.Time       { return c.remoteTime }
func (c *SyncConflict[T]) Relation() version.CausalRelation { return c.relation }
func (c *SyncConflict[T]) DetectedAt() time.Time            { return c.detectedAt }
func (c *SyncConflict[T]) IsResolved() bool                 { return c.resolved }

// Resolved returns the chosen value and whether Resolve has been called.
func (c *SyncConflict[T]) Resolved() (T, bool) {
	return c.resolution, c.resolved
}

// Resolve settles the conflict. A conflict can only be resolved once.
func (c *SyncConflict[T]) Resolve(value T) error {
	if c.resolved {
		return errors.NewInvalidStateError(errors.OpConflictResolve, "synckit",
			fmt.Errorf("conflict for %s %q is already resolved", c.entityType, c.entityID))
	}
	c.resolution = value
	c.resolved = true
	return nil
}

// Side identifies which input version a value came from.
type Side int

const (
	SideLocal Side = iota
	SideRemote
)

func (s Side) String() string {
	if s == SideRemote {
		return "remote"
	}
	return "local"
}

// ConflictResolutionResult is the outcome of Resolve. Callers persist
// Result together with MergedClock.
type ConflictResolutionResult[T any] struct {
	Result      T
	MergedClock version.VectorClock
	HadConflict bool
	// Resolution is a short human-readable rationale.
	Resolution string
	Relation   version.CausalRelation
	// Strategy is the strategy that produced Result. Only meaningful
	// when HadConflict is true.
	Strategy Strategy
	// FellBack is set when the configured strategy could not be applied
	// and LastWriterWins was used instead.
	FellBack bool

	// Both inputs, set only when HadConflict is true.
	LocalVersion  *T
	RemoteVersion *T

	// FieldSources maps each declared field to the side it was taken from.
	// Set only by FieldLevelMerge.
	FieldSources map[string]Side
}
