package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/c0deZ3R0/go-sync-merge/synckit"
)

// Times are stored as fixed-width UTC text so that ORDER BY on the column
// sorts chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored time %q: %w", s, err)
	}
	return t, nil
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMetadata(row scanner) (*synckit.SyncMetadata, error) {
	var (
		m          synckit.SyncMetadata
		op         string
		modifiedAt string
		syncedAt   sql.NullString
	)
	if err := row.Scan(&m.ID, &m.EntityType, &m.EntityID, &m.VectorClock, &m.ModifiedByNodeID, &modifiedAt,
		&op, &m.IsSynced, &syncedAt, &m.RetryCount, &m.LastError); err != nil {
		return nil, err
	}
	m.Operation = synckit.OperationKind(op)

	var err error
	if m.ModifiedAt, err = parseTime(modifiedAt); err != nil {
		return nil, err
	}
	if m.SyncedAt, err = parseTimePtr(syncedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func scanConflict(row scanner) (*synckit.SyncConflictRecord, error) {
	var (
		c            synckit.SyncConflictRecord
		local        string
		remote       string
		detectedAt   string
		resolvedAt   sql.NullString
		resolvedData sql.NullString
	)
	if err := row.Scan(&c.ID, &c.EntityType, &c.EntityID, &local, &remote, &c.LocalClock, &c.RemoteClock,
		&detectedAt, &c.IsResolved, &resolvedAt, &c.ResolvedByNodeID, &c.ResolutionStrategy, &resolvedData); err != nil {
		return nil, err
	}
	c.LocalData = json.RawMessage(local)
	c.RemoteData = json.RawMessage(remote)
	if resolvedData.Valid {
		c.ResolvedData = json.RawMessage(resolvedData.String)
	}

	var err error
	if c.DetectedAt, err = parseTime(detectedAt); err != nil {
		return nil, err
	}
	if c.ResolvedAt, err = parseTimePtr(resolvedAt); err != nil {
		return nil, err
	}
	return &c, nil
}
