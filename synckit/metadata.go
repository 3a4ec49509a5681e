package synckit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/c0deZ3R0/go-sync-merge/errors"
	"github.com/c0deZ3R0/go-sync-merge/synckit/codec"
	"github.com/c0deZ3R0/go-sync-merge/version"
)

// OperationKind is the kind of local write a SyncMetadata row tracks.
type OperationKind string

const (
	OperationCreate OperationKind = "create"
	OperationUpdate OperationKind = "update"
	OperationDelete OperationKind = "delete"
)

// Valid reports whether k is one of the known operation kinds.
func (k OperationKind) Valid() bool {
	switch k {
	case OperationCreate, OperationUpdate, OperationDelete:
		return true
	}
	return false
}

// SyncMetadata tracks the sync state of one entity: its latest clock, who
// wrote it, and whether that write has been shipped.
type SyncMetadata struct {
	ID               string        `json:"id"`
	EntityType       string        `json:"entity_type"`
	EntityID         string        `json:"entity_id"`
	VectorClock      string        `json:"vector_clock"`
	ModifiedByNodeID string        `json:"modified_by_node_id"`
	ModifiedAt       time.Time     `json:"modified_at"`
	Operation        OperationKind `json:"operation"`
	IsSynced         bool          `json:"is_synced"`
	SyncedAt         *time.Time    `json:"synced_at,omitempty"`
	RetryCount       int           `json:"retry_count"`
	LastError        string        `json:"last_error,omitempty"`
}

// NewSyncMetadata records a pending local write.
func NewSyncMetadata(entityType, entityID string, clock version.VectorClock, nodeID string, op OperationKind, at time.Time) *SyncMetadata {
	return &SyncMetadata{
		ID:               uuid.NewString(),
		EntityType:       entityType,
		EntityID:         entityID,
		VectorClock:      clock.String(),
		ModifiedByNodeID: nodeID,
		ModifiedAt:       at,
		Operation:        op,
	}
}

// Clock decodes the stored vector clock.
func (m *SyncMetadata) Clock() (version.VectorClock, error) {
	return version.NewVectorClockFromString(m.VectorClock)
}

// MarkSynced records a successful push and clears the failure bookkeeping.
func (m *SyncMetadata) MarkSynced(at time.Time) {
	m.IsSynced = true
	m.SyncedAt = &at
	m.RetryCount = 0
	m.LastError = ""
}

// RecordFailure counts a failed push attempt.
func (m *SyncMetadata) RecordFailure(err error) {
	m.IsSynced = false
	m.RetryCount++
	if err != nil {
		m.LastError = err.Error()
	}
}

// SyncConflictRecord is the persisted form of a conflict that needs manual
// review. Both versions are kept as raw JSON together with their clocks.
type SyncConflictRecord struct {
	ID          string          `json:"id"`
	EntityType  string          `json:"entity_type"`
	EntityID    string          `json:"entity_id"`
	LocalData   json.RawMessage `json:"local_data"`
	RemoteData  json.RawMessage `json:"remote_data"`
	LocalClock  string          `json:"local_clock"`
	RemoteClock string          `json:"remote_clock"`
	DetectedAt  time.Time       `json:"detected_at"`

	IsResolved         bool            `json:"is_resolved"`
	ResolvedAt         *time.Time      `json:"resolved_at,omitempty"`
	ResolvedByNodeID   string          `json:"resolved_by_node_id,omitempty"`
	ResolutionStrategy string          `json:"resolution_strategy,omitempty"`
	ResolvedData       json.RawMessage `json:"resolved_data,omitempty"`
}

// NewConflictRecord serializes c with the codec registered for its entity
// type. A nil registry means codec.DefaultRegistry.
func NewConflictRecord[T any](c *SyncConflict[T], reg *codec.Registry) (*SyncConflictRecord, error) {
	if reg == nil {
		reg = codec.DefaultRegistry
	}
	cd := reg.Lookup(c.EntityType())

	local, err := cd.Encode(c.Local())
	if err != nil {
		return nil, errors.NewFormatError(errors.OpEncode, "synckit", fmt.Errorf("encode local %s: %w", c.EntityType(), err))
	}
	remote, err := cd.Encode(c.Remote())
	if err != nil {
		return nil, errors.NewFormatError(errors.OpEncode, "synckit", fmt.Errorf("encode remote %s: %w", c.EntityType(), err))
	}

	return &SyncConflictRecord{
		ID:          uuid.NewString(),
		EntityType:  c.EntityType(),
		EntityID:    c.EntityID(),
		LocalData:   local,
		RemoteData:  remote,
		LocalClock:  c.LocalClock().String(),
		RemoteClock: c.RemoteClock().String(),
		DetectedAt:  c.DetectedAt(),
	}, nil
}

// MarkResolved closes the record. resolved is encoded with the codec
// registered for the record's entity type, the same one DecodeConflict
// reads it back with. A nil registry means codec.DefaultRegistry.
func (r *SyncConflictRecord) MarkResolved(nodeID, strategy string, resolved any, at time.Time, reg *codec.Registry) error {
	if r.IsResolved {
		return errors.NewInvalidStateError(errors.OpConflictResolve, "synckit",
			fmt.Errorf("conflict record %s is already resolved", r.ID))
	}
	if reg == nil {
		reg = codec.DefaultRegistry
	}
	data, err := reg.Lookup(r.EntityType).Encode(resolved)
	if err != nil {
		return errors.NewFormatError(errors.OpEncode, "synckit", fmt.Errorf("encode resolution for %s: %w", r.ID, err))
	}
	r.IsResolved = true
	r.ResolvedAt = &at
	r.ResolvedByNodeID = nodeID
	r.ResolutionStrategy = strategy
	r.ResolvedData = data
	return nil
}

// Clocks decodes both stored clocks.
func (r *SyncConflictRecord) Clocks() (local, remote version.VectorClock, err error) {
	if local, err = version.NewVectorClockFromString(r.LocalClock); err != nil {
		return
	}
	remote, err = version.NewVectorClockFromString(r.RemoteClock)
	return
}

// DecodeConflict rebuilds a SyncConflict from a stored record so it can be
// passed to a resolver or shown for review.
func DecodeConflict[T any](r *SyncConflictRecord, reg *codec.Registry) (*SyncConflict[T], error) {
	if reg == nil {
		reg = codec.DefaultRegistry
	}
	cd := reg.Lookup(r.EntityType)

	var local, remote T
	if err := cd.Decode(r.LocalData, &local); err != nil {
		return nil, errors.NewFormatError(errors.OpLoad, "synckit", fmt.Errorf("decode local %s: %w", r.EntityType, err))
	}
	if err := cd.Decode(r.RemoteData, &remote); err != nil {
		return nil, errors.NewFormatError(errors.OpLoad, "synckit", fmt.Errorf("decode remote %s: %w", r.EntityType, err))
	}
	lc, rc, err := r.Clocks()
	if err != nil {
		return nil, err
	}

	c := NewSyncConflict(r.EntityID, local, remote, lc, rc, time.Time{}, time.Time{}, r.DetectedAt)
	c.entityType = r.EntityType
	if r.IsResolved && len(r.ResolvedData) > 0 {
		var v T
		if err := cd.Decode(r.ResolvedData, &v); err != nil {
			return nil, errors.NewFormatError(errors.OpLoad, "synckit", fmt.Errorf("decode resolution %s: %w", r.ID, err))
		}
		c.resolution, c.resolved = v, true
	}
	return c, nil
}

// MetadataStore persists SyncMetadata and SyncConflictRecord rows.
type MetadataStore interface {
	// SaveMetadata inserts or replaces the row for (EntityType, EntityID).
	SaveMetadata(ctx context.Context, m *SyncMetadata) error
	// GetMetadata returns a KindNotFound error when no row exists.
	GetMetadata(ctx context.Context, entityType, entityID string) (*SyncMetadata, error)
	// PendingMetadata returns unsynced rows, oldest first. limit <= 0
	// means no limit.
	PendingMetadata(ctx context.Context, limit int) ([]*SyncMetadata, error)

	// SaveConflict inserts or replaces a conflict record by ID.
	SaveConflict(ctx context.Context, c *SyncConflictRecord) error
	// GetConflict returns a KindNotFound error when no record exists.
	GetConflict(ctx context.Context, id string) (*SyncConflictRecord, error)
	ConflictsForEntity(ctx context.Context, entityType, entityID string) ([]*SyncConflictRecord, error)
	// UnresolvedConflicts returns open conflicts, oldest first.
	UnresolvedConflicts(ctx context.Context) ([]*SyncConflictRecord, error)

	Close() error
}
