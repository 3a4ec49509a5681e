// Package sqlite provides a SQLite implementation of synckit.MetadataStore.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	stdSync "sync"
	"time"

	syncErrors "github.com/c0deZ3R0/go-sync-merge/errors"
	"github.com/c0deZ3R0/go-sync-merge/logging"
	"github.com/c0deZ3R0/go-sync-merge/synckit"

	// Go SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

const component = "storage/sqlite"

// ErrStoreClosed is returned by every method after Close.
var ErrStoreClosed = errors.New("store is closed")

// Config holds configuration options for the Store.
//
// Production-ready defaults are applied by DefaultConfig() including:
//   - WAL mode enabled for better concurrency
//   - Connection pool with 25 max open, 5 max idle connections
//   - Connection lifetimes of 1 hour max, 5 minutes max idle
type Config struct {
	// DataSourceName is the connection string for the SQLite database.
	// Example: "file:sync.db"
	DataSourceName string

	// EnableWAL appends "?_journal_mode=WAL" to DataSourceName.
	EnableWAL bool

	// Logger receives store diagnostics. Defaults to the package-level
	// logger scoped to the sqlite component.
	Logger *logging.Logger

	// Table names. Default to "sync_metadata" and "sync_conflicts".
	MetadataTable string
	ConflictTable string

	// Connection pool settings.
	// Defaults: MaxOpen=25, MaxIdle=5, Lifetime=1h, IdleTime=5m
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// setDefaults applies default values to the config
func (c *Config) setDefaults() {
	if c.MetadataTable == "" {
		c.MetadataTable = "sync_metadata"
	}
	if c.ConflictTable == "" {
		c.ConflictTable = "sync_conflicts"
	}
	if c.Logger == nil {
		c.Logger = logging.WithComponent(logging.ComponentSQLite)
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 5
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = time.Hour
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = 5 * time.Minute
	}
	if c.EnableWAL && !strings.Contains(c.DataSourceName, "_journal_mode=") {
		sep := "?"
		if strings.Contains(c.DataSourceName, "?") {
			sep = "&"
		}
		c.DataSourceName += sep + "_journal_mode=WAL"
	}
}

// DefaultConfig returns a Config with WAL enabled and the default pool.
func DefaultConfig(dataSourceName string) *Config {
	config := &Config{
		DataSourceName: dataSourceName,
		EnableWAL:      true,
	}
	config.setDefaults()
	return config
}

// NewWithDataSource is a convenience constructor
func NewWithDataSource(dataSourceName string) (*Store, error) {
	return New(DefaultConfig(dataSourceName))
}

// Store persists sync metadata and conflict records in SQLite.
type Store struct {
	db            *sql.DB
	mu            stdSync.RWMutex
	closed        bool
	logger        *logging.Logger
	metadataTable string
	conflictTable string
}

var _ synckit.MetadataStore = (*Store)(nil)

// New opens the database, configures the pool and creates the schema.
func New(config *Config) (*Store, error) {
	if config == nil {
		return nil, syncErrors.WrapOpComponentKind(fmt.Errorf("config cannot be nil"), syncErrors.OpConfigure, component, syncErrors.KindConfiguration)
	}
	config.setDefaults()
	if config.DataSourceName == "" {
		return nil, syncErrors.WrapOpComponentKind(fmt.Errorf("DataSourceName is required"), syncErrors.OpConfigure, component, syncErrors.KindConfiguration)
	}

	logger := config.Logger
	logger.InfoContext(context.Background(), "Opening SQLite database",
		slog.String("data_source", config.DataSourceName),
		slog.Bool("wal_enabled", config.EnableWAL),
	)

	db, err := sql.Open("sqlite3", config.DataSourceName)
	if err != nil {
		return nil, syncErrors.NewStorageError(syncErrors.OpStore, component, fmt.Errorf("failed to open sqlite database: %w", err))
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, syncErrors.NewStorageError(syncErrors.OpStore, component, fmt.Errorf("failed to connect to sqlite database: %w", err))
	}

	store := &Store{
		db:            db,
		logger:        logger,
		metadataTable: config.MetadataTable,
		conflictTable: config.ConflictTable,
	}
	if err := store.setupSchema(); err != nil {
		db.Close()
		return nil, syncErrors.NewStorageError(syncErrors.OpStore, component, fmt.Errorf("failed to setup database schema: %w", err))
	}

	logger.InfoContext(context.Background(), "SQLite store initialized",
		slog.String("metadata_table", config.MetadataTable),
		slog.String("conflict_table", config.ConflictTable),
	)
	return store, nil
}

func (s *Store) setupSchema() error {
	query := fmt.Sprintf(`
    CREATE TABLE IF NOT EXISTS %[1]s (
        id                  TEXT PRIMARY KEY,
        entity_type         TEXT NOT NULL,
        entity_id           TEXT NOT NULL,
        vector_clock        TEXT NOT NULL,
        modified_by_node_id TEXT NOT NULL,
        modified_at         TEXT NOT NULL,
        operation           TEXT NOT NULL,
        is_synced           INTEGER NOT NULL DEFAULT 0,
        synced_at           TEXT,
        retry_count         INTEGER NOT NULL DEFAULT 0,
        last_error          TEXT NOT NULL DEFAULT '',
        UNIQUE (entity_type, entity_id)
    );
    CREATE INDEX IF NOT EXISTS idx_%[1]s_pending ON %[1]s (is_synced, modified_at);

    CREATE TABLE IF NOT EXISTS %[2]s (
        id                  TEXT PRIMARY KEY,
        entity_type         TEXT NOT NULL,
        entity_id           TEXT NOT NULL,
        local_data          TEXT NOT NULL,
        remote_data         TEXT NOT NULL,
        local_clock         TEXT NOT NULL,
        remote_clock        TEXT NOT NULL,
        detected_at         TEXT NOT NULL,
        is_resolved         INTEGER NOT NULL DEFAULT 0,
        resolved_at         TEXT,
        resolved_by_node_id TEXT NOT NULL DEFAULT '',
        resolution_strategy TEXT NOT NULL DEFAULT '',
        resolved_data       TEXT
    );
    CREATE INDEX IF NOT EXISTS idx_%[2]s_entity ON %[2]s (entity_type, entity_id);
    CREATE INDEX IF NOT EXISTS idx_%[2]s_unresolved ON %[2]s (is_resolved, detected_at);
    `, s.metadataTable, s.conflictTable)
	_, err := s.db.Exec(query)
	return err
}

func (s *Store) checkOpen(ctx context.Context, op syncErrors.Operation) error {
	if err := ctx.Err(); err != nil {
		return syncErrors.WrapOpComponent(err, op, component)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return syncErrors.NewInvalidStateError(op, component, ErrStoreClosed)
	}
	return nil
}

// SaveMetadata inserts m or replaces the row for the same entity. The
// original row id is kept on replace.
func (s *Store) SaveMetadata(ctx context.Context, m *synckit.SyncMetadata) error {
	if err := s.checkOpen(ctx, syncErrors.OpStore); err != nil {
		return err
	}
	query := fmt.Sprintf(`
    INSERT INTO %s (id, entity_type, entity_id, vector_clock, modified_by_node_id, modified_at,
                    operation, is_synced, synced_at, retry_count, last_error)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    ON CONFLICT (entity_type, entity_id) DO UPDATE SET
        vector_clock = excluded.vector_clock,
        modified_by_node_id = excluded.modified_by_node_id,
        modified_at = excluded.modified_at,
        operation = excluded.operation,
        is_synced = excluded.is_synced,
        synced_at = excluded.synced_at,
        retry_count = excluded.retry_count,
        last_error = excluded.last_error`, s.metadataTable)

	_, err := s.db.ExecContext(ctx, query,
		m.ID, m.EntityType, m.EntityID, m.VectorClock, m.ModifiedByNodeID, formatTime(m.ModifiedAt),
		string(m.Operation), m.IsSynced, formatTimePtr(m.SyncedAt), m.RetryCount, m.LastError)
	if err != nil {
		return syncErrors.WrapOpComponentKind(err, syncErrors.OpStore, component, syncErrors.KindStorage)
	}
	s.logger.DebugContext(ctx, "metadata saved",
		slog.String("entity_type", m.EntityType),
		slog.String("entity_id", m.EntityID),
		slog.Bool("synced", m.IsSynced))
	return nil
}

const metadataColumns = `id, entity_type, entity_id, vector_clock, modified_by_node_id, modified_at,
    operation, is_synced, synced_at, retry_count, last_error`

// GetMetadata loads the row for one entity.
func (s *Store) GetMetadata(ctx context.Context, entityType, entityID string) (*synckit.SyncMetadata, error) {
	if err := s.checkOpen(ctx, syncErrors.OpLoad); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE entity_type = ? AND entity_id = ?`, metadataColumns, s.metadataTable)
	m, err := scanMetadata(s.db.QueryRowContext(ctx, query, entityType, entityID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, syncErrors.NewNotFoundError(syncErrors.OpLoad, component,
			fmt.Errorf("no sync metadata for %s %q", entityType, entityID))
	}
	if err != nil {
		return nil, syncErrors.WrapOpComponentKind(err, syncErrors.OpLoad, component, syncErrors.KindStorage)
	}
	return m, nil
}

// PendingMetadata returns unsynced rows ordered by modification time.
func (s *Store) PendingMetadata(ctx context.Context, limit int) ([]*synckit.SyncMetadata, error) {
	if err := s.checkOpen(ctx, syncErrors.OpLoad); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE is_synced = 0 ORDER BY modified_at, id LIMIT ?`, metadataColumns, s.metadataTable)
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, syncErrors.WrapOpComponentKind(err, syncErrors.OpLoad, component, syncErrors.KindStorage)
	}
	defer rows.Close()

	var out []*synckit.SyncMetadata
	for rows.Next() {
		m, err := scanMetadata(rows)
		if err != nil {
			return nil, syncErrors.WrapOpComponentKind(err, syncErrors.OpLoad, component, syncErrors.KindStorage)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, syncErrors.WrapOpComponentKind(err, syncErrors.OpLoad, component, syncErrors.KindStorage)
	}
	return out, nil
}

// SaveConflict inserts c or replaces the record with the same id.
func (s *Store) SaveConflict(ctx context.Context, c *synckit.SyncConflictRecord) error {
	if err := s.checkOpen(ctx, syncErrors.OpStore); err != nil {
		return err
	}
	query := fmt.Sprintf(`
    INSERT INTO %s (id, entity_type, entity_id, local_data, remote_data, local_clock, remote_clock,
                    detected_at, is_resolved, resolved_at, resolved_by_node_id, resolution_strategy, resolved_data)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    ON CONFLICT (id) DO UPDATE SET
        local_data = excluded.local_data,
        remote_data = excluded.remote_data,
        local_clock = excluded.local_clock,
        remote_clock = excluded.remote_clock,
        is_resolved = excluded.is_resolved,
        resolved_at = excluded.resolved_at,
        resolved_by_node_id = excluded.resolved_by_node_id,
        resolution_strategy = excluded.resolution_strategy,
        resolved_data = excluded.resolved_data`, s.conflictTable)

	var resolved sql.NullString
	if len(c.ResolvedData) > 0 {
		resolved = sql.NullString{String: string(c.ResolvedData), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.EntityType, c.EntityID, string(c.LocalData), string(c.RemoteData), c.LocalClock, c.RemoteClock,
		formatTime(c.DetectedAt), c.IsResolved, formatTimePtr(c.ResolvedAt), c.ResolvedByNodeID, c.ResolutionStrategy, resolved)
	if err != nil {
		return syncErrors.WrapOpComponentKind(err, syncErrors.OpStore, component, syncErrors.KindStorage)
	}
	s.logger.DebugContext(ctx, "conflict saved",
		slog.String("conflict_id", c.ID),
		slog.String("entity_type", c.EntityType),
		slog.String("entity_id", c.EntityID),
		slog.Bool("resolved", c.IsResolved))
	return nil
}

const conflictColumns = `id, entity_type, entity_id, local_data, remote_data, local_clock, remote_clock,
    detected_at, is_resolved, resolved_at, resolved_by_node_id, resolution_strategy, resolved_data`

// GetConflict loads one conflict record.
func (s *Store) GetConflict(ctx context.Context, id string) (*synckit.SyncConflictRecord, error) {
	if err := s.checkOpen(ctx, syncErrors.OpLoad); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, conflictColumns, s.conflictTable)
	c, err := scanConflict(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, syncErrors.NewNotFoundError(syncErrors.OpLoad, component, fmt.Errorf("no conflict %q", id))
	}
	if err != nil {
		return nil, syncErrors.WrapOpComponentKind(err, syncErrors.OpLoad, component, syncErrors.KindStorage)
	}
	return c, nil
}

// ConflictsForEntity returns every conflict recorded for one entity,
// oldest first.
func (s *Store) ConflictsForEntity(ctx context.Context, entityType, entityID string) ([]*synckit.SyncConflictRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE entity_type = ? AND entity_id = ? ORDER BY detected_at, id`,
		conflictColumns, s.conflictTable)
	return s.queryConflicts(ctx, query, entityType, entityID)
}

// UnresolvedConflicts returns open conflicts, oldest first.
func (s *Store) UnresolvedConflicts(ctx context.Context) ([]*synckit.SyncConflictRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE is_resolved = 0 ORDER BY detected_at, id`, conflictColumns, s.conflictTable)
	return s.queryConflicts(ctx, query)
}

func (s *Store) queryConflicts(ctx context.Context, query string, args ...any) ([]*synckit.SyncConflictRecord, error) {
	if err := s.checkOpen(ctx, syncErrors.OpLoad); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, syncErrors.WrapOpComponentKind(err, syncErrors.OpLoad, component, syncErrors.KindStorage)
	}
	defer rows.Close()

	var out []*synckit.SyncConflictRecord
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, syncErrors.WrapOpComponentKind(err, syncErrors.OpLoad, component, syncErrors.KindStorage)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, syncErrors.WrapOpComponentKind(err, syncErrors.OpLoad, component, syncErrors.KindStorage)
	}
	return out, nil
}

// Close closes the database connection. Calling Close twice is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		return syncErrors.WrapOpComponentKind(err, syncErrors.OpClose, component, syncErrors.KindStorage)
	}
	return nil
}

// Stats returns database statistics for monitoring
func (s *Store) Stats() sql.DBStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return sql.DBStats{}
	}
	return s.db.Stats()
}
