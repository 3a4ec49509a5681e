package synckit

import (
	"reflect"
	"time"

	"github.com/c0deZ3R0/go-sync-merge/version"
)

// Identifiable is implemented by every entity the resolver handles. The id
// breaks timestamp ties under LastWriterWins and FirstWriterWins.
type Identifiable interface {
	EntityID() string
}

// EntityTyper lets an entity override the name its strategy is registered
// under. Without it the Go type name is used.
type EntityTyper interface {
	EntityType() string
}

// EntityTypeOf returns the configuration key for T.
func EntityTypeOf[T any]() string {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if et, ok := reflect.New(rt).Interface().(EntityTyper); ok {
		return et.EntityType()
	}
	if rt.Name() != "" {
		return rt.Name()
	}
	return rt.String()
}

// SyncableEntity is the contract a persisted entity exposes so the sync
// engine can reconcile it.
type SyncableEntity interface {
	Identifiable
	// VectorClock decodes the entity's stored clock.
	VectorClock() (version.VectorClock, error)
	LastModified() time.Time
	LastModifiedBy() string
	InConflict() bool
	// ConflictingVersion is the serialized competing version kept for
	// manual review, or "" when there is none.
	ConflictingVersion() string
}

// SyncState carries the sync bookkeeping columns. Embed it in an entity
// struct to satisfy SyncableEntity.
type SyncState struct {
	SyncID                 string    `json:"sync_id" db:"sync_id"`
	VectorClockJSON        string    `json:"vector_clock" db:"vector_clock"`
	ModifiedAt             time.Time `json:"modified_at" db:"modified_at"`
	ModifiedByNodeID       string    `json:"modified_by_node_id" db:"modified_by_node_id"`
	HasConflict            bool      `json:"has_conflict" db:"has_conflict"`
	ConflictingVersionJSON string    `json:"conflicting_version,omitempty" db:"conflicting_version"`
}

func (s SyncState) EntityID() string { return s.SyncID }

func (s SyncState) VectorClock() (version.VectorClock, error) {
	return version.NewVectorClockFromString(s.VectorClockJSON)
}

func (s SyncState) LastModified() time.Time    { return s.ModifiedAt }
func (s SyncState) LastModifiedBy() string     { return s.ModifiedByNodeID }
func (s SyncState) InConflict() bool           { return s.HasConflict }
func (s SyncState) ConflictingVersion() string { return s.ConflictingVersionJSON }

// Stamp records a local write by nodeID: the clock is set, the modification
// time and author updated, and any conflict flag cleared.
func (s *SyncState) Stamp(clock version.VectorClock, nodeID string, at time.Time) {
	s.VectorClockJSON = clock.String()
	s.ModifiedAt = at
	s.ModifiedByNodeID = nodeID
	s.HasConflict = false
	s.ConflictingVersionJSON = ""
}

// MarkConflict flags the entity for manual review, keeping the serialized
// competing version alongside it.
func (s *SyncState) MarkConflict(conflicting string) {
	s.HasConflict = true
	s.ConflictingVersionJSON = conflicting
}
