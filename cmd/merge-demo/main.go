// Command merge-demo walks through two devices editing the same records
// offline and reconciling them: field-level merge, last writer wins, a
// fallback that is queued for manual review, and the CRDT registers.
//
// Environment:
//
//	MERGE_CONFIG  resolver config file (YAML or JSON); built-in defaults otherwise
//	MERGE_DB      SQLite database path; a temporary file otherwise
//	LOG_LEVEL, LOG_FORMAT, ENVIRONMENT  see logging.GetConfigFromEnv
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/c0deZ3R0/go-sync-merge/crdt"
	"github.com/c0deZ3R0/go-sync-merge/logging"
	"github.com/c0deZ3R0/go-sync-merge/metrics"
	"github.com/c0deZ3R0/go-sync-merge/storage/sqlite"
	"github.com/c0deZ3R0/go-sync-merge/synckit"
	"github.com/c0deZ3R0/go-sync-merge/version"
)

type product struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	NameModifiedAt  time.Time `json:"name_modified_at"`
	Price           int       `json:"price"`
	PriceModifiedAt time.Time `json:"price_modified_at"`
	SKU             string    `json:"sku"`
}

func (p product) EntityID() string   { return p.ID }
func (p product) EntityType() string { return "product" }

type invoice struct {
	ID     string `json:"id"`
	Amount int    `json:"amount"`
}

func (i invoice) EntityID() string   { return i.ID }
func (i invoice) EntityType() string { return "invoice" }

func productFields() *synckit.FieldMerger[product] {
	m := synckit.NewFieldMerger[product]()
	synckit.Field(m, "name",
		func(p product) string { return p.Name },
		func(p *product, v string) { p.Name = v },
		synckit.WithModifiedAt(
			func(p product) time.Time { return p.NameModifiedAt },
			func(p *product, t time.Time) { p.NameModifiedAt = t }))
	synckit.Field(m, "price",
		func(p product) int { return p.Price },
		func(p *product, v int) { p.Price = v },
		synckit.WithModifiedAt(
			func(p product) time.Time { return p.PriceModifiedAt },
			func(p *product, t time.Time) { p.PriceModifiedAt = t }))
	synckit.Field(m, "sku",
		func(p product) string { return p.SKU },
		func(p *product, v string) { p.SKU = v },
		synckit.WithPolicy[product](synckit.FieldLocalOnly))
	return m
}

func loadConfig() (*synckit.ResolverConfig, error) {
	if path := os.Getenv("MERGE_CONFIG"); path != "" {
		return synckit.LoadConfig(path)
	}
	return &synckit.ResolverConfig{
		NodeID: "laptop",
		Entities: []synckit.EntityConfig{
			{Type: "product", Strategy: "field_level_merge"},
			{Type: "invoice", Strategy: "keep_both"},
		},
	}, nil
}

func main() {
	logging.Init(logging.GetConfigFromEnv())
	logger := logging.WithComponent(logging.Component("merge-demo"))
	ctx := context.Background()

	if err := run(ctx, logger); err != nil {
		logger.LogError(ctx, err, "demo failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *logging.Logger) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	collector := metrics.NewCollector("merge_demo")
	if err := collector.Register(nil); err != nil {
		return err
	}

	resolver, err := synckit.NewResolverFromConfig(cfg,
		synckit.WithLogger(logging.Default()),
		synckit.WithMetrics(collector),
		synckit.WithHooks(synckit.Hooks{
			OnFallback: func(e synckit.ConflictEvent) {
				logger.Warn("strategy unavailable", slog.String("entity_type", e.EntityType), slog.String("reason", e.Reason))
			},
		}))
	if err != nil {
		return err
	}
	if err := synckit.ConfigureFieldMerge(resolver, productFields()); err != nil {
		return err
	}

	dbPath := os.Getenv("MERGE_DB")
	if dbPath == "" {
		dir, err := os.MkdirTemp("", "merge-demo")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)
		dbPath = filepath.Join(dir, "sync.db")
	}
	store, err := sqlite.NewWithDataSource(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := productConflict(ctx, logger, resolver, store); err != nil {
		return err
	}
	if err := invoiceConflict(ctx, logger, resolver, store); err != nil {
		return err
	}
	registers(logger)
	return nil
}

// productConflict edits one product on two devices and merges field by field.
func productConflict(ctx context.Context, logger *logging.Logger, r *synckit.Resolver, store synckit.MetadataStore) error {
	start := time.Now().UTC().Truncate(time.Second)
	base := product{ID: "p-1", Name: "Desk", Price: 200, SKU: "DSK-1", NameModifiedAt: start, PriceModifiedAt: start}

	laptop := version.NewClockManager("laptop", version.NewVectorClock())
	phone := version.NewClockManager("phone", version.NewVectorClock())
	shared := laptop.Tick()
	phone.Observe(shared)

	local := base
	local.Name, local.NameModifiedAt = "Standing desk", start.Add(2*time.Minute)
	localClock := laptop.Tick()

	remote := base
	remote.Price, remote.PriceModifiedAt = 180, start.Add(time.Minute)
	remote.SKU = "DSK-1B"
	remoteClock := phone.Tick()

	res, err := synckit.Resolve(r, local, remote, localClock, remoteClock, local.NameModifiedAt, remote.PriceModifiedAt)
	if err != nil {
		return err
	}
	laptop.Observe(res.MergedClock)

	out, _ := json.Marshal(res.Result)
	logger.Info("product merged",
		slog.String("relation", res.Relation.String()),
		slog.String("strategy", res.Strategy.String()),
		slog.String("merged_clock", res.MergedClock.String()),
		slog.Any("field_sources", res.FieldSources),
		slog.String("result", string(out)))

	meta := synckit.NewSyncMetadata(base.EntityType(), base.ID, res.MergedClock, r.NodeID(), synckit.OperationUpdate, time.Now())
	return store.SaveMetadata(ctx, meta)
}

// invoiceConflict hits the KeepBoth fallback and queues the pair for review.
func invoiceConflict(ctx context.Context, logger *logging.Logger, r *synckit.Resolver, store synckit.MetadataStore) error {
	now := time.Now()
	local, remote := invoice{ID: "inv-7", Amount: 120}, invoice{ID: "inv-7", Amount: 95}
	lc := version.NewVectorClock().Increment("laptop")
	rc := version.NewVectorClock().Increment("phone")

	res, err := synckit.Resolve(r, local, remote, lc, rc, now, now.Add(-time.Minute))
	if err != nil {
		return err
	}
	if !res.FellBack {
		return nil
	}

	c := synckit.NewSyncConflict(local.ID, local, remote, lc, rc, now, now.Add(-time.Minute), now)
	rec, err := synckit.NewConflictRecord(c, nil)
	if err != nil {
		return err
	}
	if err := store.SaveConflict(ctx, rec); err != nil {
		return err
	}

	open, err := store.UnresolvedConflicts(ctx)
	if err != nil {
		return err
	}
	logger.Info("invoice queued for review",
		slog.String("provisional", fmt.Sprintf("%+v", res.Result)),
		slog.String("resolution", res.Resolution),
		slog.Int("open_conflicts", len(open)))
	return nil
}

// registers shows the CRDT containers converging regardless of merge order.
func registers(logger *logging.Logger) {
	now := time.Now()

	title := crdt.NewLWWRegister("draft", now, "laptop")
	other := crdt.NewLWWRegister("final", now, "phone")
	logger.Info("lww register", slog.String("value", title.Merge(other).Value()))

	a, b := crdt.NewLWWMap(), crdt.NewLWWMap()
	a.Set("title", "Q3 plan", now.Add(10*time.Second), "laptop")
	a.Set("owner", "dana", now.Add(5*time.Second), "laptop")
	b.Set("title", "Q3 plan (old)", now.Add(-10*time.Second), "phone")
	b.Set("owner", "sam", now.Add(20*time.Second), "phone")
	merged := a.Merge(b)
	logger.Info("lww map",
		slog.String("title", crdt.Get[string](merged, "title")),
		slog.String("owner", crdt.Get[string](merged, "owner")))

	mv := crdt.NewMVRegister[string]()
	mv.Set("blue", version.NewVectorClock().Increment("laptop"))
	mv.Set("green", version.NewVectorClock().Increment("phone"))
	logger.Info("mv register", slog.Any("values", mv.Values()), slog.Bool("conflict", mv.HasConflict()))

	mv.Resolve("teal", mv.Clock().Increment("laptop"))
	v, err := mv.SingleValue()
	if err != nil {
		logger.LogError(context.Background(), err, "mv register still in conflict")
		return
	}
	logger.Info("mv register resolved", slog.String("value", v))
}
