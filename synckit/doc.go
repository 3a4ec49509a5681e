// Package synckit reconciles divergent copies of a replicated entity.
//
// A sync engine that holds a local and a remote version of the same record,
// together with their vector clocks and modification timestamps, calls
// Resolve. The resolver first classifies the pair by causality:
//
//   - local happened after remote: local wins, no conflict
//   - local happened before remote: remote wins, no conflict
//   - equal clocks: local is returned, no conflict
//   - concurrent: a real conflict, settled by the strategy configured for the
//     entity type, with a merged clock that dominates both inputs
//
// Strategies are registered once per entity type at startup:
//
//	r, _ := synckit.NewResolver("device-a")
//	_ = synckit.Configure[Order](r, synckit.LastWriterWins)
//	_ = synckit.ConfigureFieldMerge(r, orderFields)
//	_ = synckit.ConfigureCustom(r, func(c *synckit.SyncConflict[Invoice]) Invoice { ... })
//
// An entity type with no configuration, KeepBoth, or a strategy whose merge
// function was never registered falls back to LastWriterWins unless the
// resolver was built WithStrictMode, in which case Resolve returns a
// configuration error instead.
//
// The package also defines the records the persistence layer stores for
// every synced entity (SyncMetadata) and every unresolved conflict
// (SyncConflictRecord), and the MetadataStore interface the storage
// packages implement.
package synckit
