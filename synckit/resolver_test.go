package synckit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/go-sync-merge/errors"
	"github.com/c0deZ3R0/go-sync-merge/version"
)

type doc struct {
	ID              string
	Title           string
	TitleModifiedAt time.Time
	Body            string
	Tags            []string
	Owner           string
}

func (d doc) EntityID() string { return d.ID }

type order struct {
	ID    string
	Total int
}

func (o order) EntityID() string   { return o.ID }
func (o order) EntityType() string { return "orders" }

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func concurrentClocks() (version.VectorClock, version.VectorClock) {
	return version.NewVectorClock().Increment("A"), version.NewVectorClock().Increment("B")
}

func newTestResolver(t *testing.T, opts ...Option) *Resolver {
	t.Helper()
	r, err := NewResolver("resolver", opts...)
	require.NoError(t, err)
	return r
}

func TestNewResolver_RequiresNodeID(t *testing.T) {
	_, err := NewResolver("")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.KindConfiguration))
}

func TestEntityTypeOf(t *testing.T) {
	assert.Equal(t, "doc", EntityTypeOf[doc]())
	assert.Equal(t, "doc", EntityTypeOf[*doc]())
	assert.Equal(t, "orders", EntityTypeOf[order]())
	assert.Equal(t, "orders", EntityTypeOf[*order]())
}

func TestResolve_CausalFastPath(t *testing.T) {
	r := newTestResolver(t)
	require.NoError(t, Configure[doc](r, LastWriterWins))

	a1 := version.NewVectorClock().Increment("n")
	a2 := a1.Increment("n")
	local := doc{ID: "1", Title: "local"}
	remote := doc{ID: "1", Title: "remote"}

	t.Run("local newer", func(t *testing.T) {
		// remote timestamp is later but causality decides
		res, err := Resolve(r, local, remote, a2, a1, base, base.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, local, res.Result)
		assert.False(t, res.HadConflict)
		assert.True(t, res.MergedClock.Equal(a2))
		assert.Equal(t, version.HappenedAfter, res.Relation)
		assert.Nil(t, res.LocalVersion)
		assert.Nil(t, res.RemoteVersion)
	})

	t.Run("remote newer", func(t *testing.T) {
		res, err := Resolve(r, local, remote, a1, a2, base.Add(time.Hour), base)
		require.NoError(t, err)
		assert.Equal(t, remote, res.Result)
		assert.False(t, res.HadConflict)
		assert.True(t, res.MergedClock.Equal(a2))
	})

	t.Run("equal", func(t *testing.T) {
		res, err := Resolve(r, local, remote, a1, a1, base, base.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, local, res.Result)
		assert.False(t, res.HadConflict)
		assert.Equal(t, version.Equal, res.Relation)
	})
}

func TestResolve_ConcurrentLastWriterWins(t *testing.T) {
	r := newTestResolver(t)
	require.NoError(t, Configure[doc](r, LastWriterWins))
	lc, rc := concurrentClocks()

	local := doc{ID: "1", Title: "local"}
	remote := doc{ID: "1", Title: "remote"}

	res, err := Resolve(r, local, remote, lc, rc, base, base.Add(time.Minute))
	require.NoError(t, err)

	assert.Equal(t, remote, res.Result)
	assert.True(t, res.HadConflict)
	assert.Equal(t, LastWriterWins, res.Strategy)
	assert.Equal(t, "LastWriterWins", res.Resolution)
	assert.False(t, res.FellBack)
	assert.Equal(t, uint64(1), res.MergedClock.GetClock("resolver"))
	assert.Equal(t, version.HappenedAfter, res.MergedClock.CompareTo(lc))
	assert.Equal(t, version.HappenedAfter, res.MergedClock.CompareTo(rc))
	require.NotNil(t, res.LocalVersion)
	require.NotNil(t, res.RemoteVersion)
	assert.Equal(t, local, *res.LocalVersion)
	assert.Equal(t, remote, *res.RemoteVersion)

	res, err = Resolve(r, local, remote, lc, rc, base.Add(time.Minute), base)
	require.NoError(t, err)
	assert.Equal(t, local, res.Result)
}

func TestResolve_TimestampTies(t *testing.T) {
	lc, rc := concurrentClocks()
	low := doc{ID: "a", Title: "low"}
	high := doc{ID: "b", Title: "high"}

	tests := []struct {
		name     string
		strategy Strategy
		local    doc
		remote   doc
		want     doc
	}{
		{"lww remote id higher", LastWriterWins, low, high, high},
		{"lww local id higher", LastWriterWins, high, low, high},
		{"lww same id keeps local", LastWriterWins, doc{ID: "a", Title: "l"}, doc{ID: "a", Title: "r"}, doc{ID: "a", Title: "l"}},
		{"fww remote id lower", FirstWriterWins, high, low, low},
		{"fww local id lower", FirstWriterWins, low, high, low},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestResolver(t)
			require.NoError(t, Configure[doc](r, tt.strategy))
			res, err := Resolve(r, tt.local, tt.remote, lc, rc, base, base)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Result)
		})
	}
}

func TestResolve_FirstWriterWins(t *testing.T) {
	r := newTestResolver(t)
	require.NoError(t, Configure[doc](r, FirstWriterWins))
	lc, rc := concurrentClocks()

	local := doc{ID: "1", Title: "local"}
	remote := doc{ID: "1", Title: "remote"}

	res, err := Resolve(r, local, remote, lc, rc, base, base.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, local, res.Result)
	assert.Equal(t, FirstWriterWins, res.Strategy)

	res, err = Resolve(r, local, remote, lc, rc, base.Add(time.Minute), base)
	require.NoError(t, err)
	assert.Equal(t, remote, res.Result)
}

func TestResolve_Custom(t *testing.T) {
	r := newTestResolver(t, WithClock(func() time.Time { return base }))
	lc, rc := concurrentClocks()

	var seen *SyncConflict[order]
	require.NoError(t, ConfigureCustom(r, func(c *SyncConflict[order]) order {
		seen = c
		return order{ID: c.EntityID(), Total: c.Local().Total + c.Remote().Total}
	}))

	res, err := Resolve(r, order{ID: "o1", Total: 3}, order{ID: "o1", Total: 4}, lc, rc, base, base)
	require.NoError(t, err)
	assert.Equal(t, order{ID: "o1", Total: 7}, res.Result)
	assert.Equal(t, Custom, res.Strategy)
	assert.True(t, res.HadConflict)

	require.NotNil(t, seen)
	assert.Equal(t, "orders", seen.EntityType())
	assert.Equal(t, version.Concurrent, seen.Relation())
	assert.Equal(t, base, seen.DetectedAt())
	assert.True(t, seen.LocalClock().Equal(lc))
	assert.True(t, seen.RemoteClock().Equal(rc))
}

func TestResolve_FieldLevelMerge(t *testing.T) {
	r := newTestResolver(t)
	m := NewFieldMerger[doc]()
	Field(m, "title",
		func(d doc) string { return d.Title },
		func(d *doc, v string) { d.Title = v },
		WithModifiedAt(
			func(d doc) time.Time { return d.TitleModifiedAt },
			func(d *doc, t time.Time) { d.TitleModifiedAt = t }))
	Field(m, "body", func(d doc) string { return d.Body }, func(d *doc, v string) { d.Body = v })
	Field(m, "owner", func(d doc) string { return d.Owner }, func(d *doc, v string) { d.Owner = v },
		WithPolicy[doc](FieldLocalOnly))
	require.NoError(t, ConfigureFieldMerge(r, m))

	lc, rc := concurrentClocks()
	local := doc{ID: "1", Title: "local title", TitleModifiedAt: base.Add(time.Hour), Body: "local body", Owner: "alice"}
	remote := doc{ID: "1", Title: "remote title", TitleModifiedAt: base, Body: "remote body", Owner: "bob"}

	// remote record is newer overall, but local's title was edited later
	res, err := Resolve(r, local, remote, lc, rc, base, base.Add(time.Minute))
	require.NoError(t, err)

	assert.Equal(t, FieldLevelMerge, res.Strategy)
	assert.Equal(t, "local title", res.Result.Title)
	assert.Equal(t, base.Add(time.Hour), res.Result.TitleModifiedAt)
	assert.Equal(t, "remote body", res.Result.Body)
	assert.Equal(t, "alice", res.Result.Owner)
	assert.Equal(t, map[string]Side{"title": SideLocal, "body": SideRemote, "owner": SideLocal}, res.FieldSources)

	// inputs are untouched
	assert.Equal(t, "local body", local.Body)
}

func TestResolve_Fallback(t *testing.T) {
	lc, rc := concurrentClocks()
	local := doc{ID: "1", Title: "local"}
	remote := doc{ID: "1", Title: "remote"}

	tests := []struct {
		name      string
		configure func(r *Resolver) error
		requested Strategy
	}{
		{"unconfigured", func(*Resolver) error { return nil }, Unconfigured},
		{"keep both", func(r *Resolver) error { return Configure[doc](r, KeepBoth) }, KeepBoth},
		{"custom without function", func(r *Resolver) error { return Configure[doc](r, Custom) }, Custom},
		{"field merge without merger", func(r *Resolver) error { return Configure[doc](r, FieldLevelMerge) }, FieldLevelMerge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fallbacks []ConflictEvent
			r := newTestResolver(t, WithHooks(Hooks{OnFallback: func(e ConflictEvent) { fallbacks = append(fallbacks, e) }}))
			require.NoError(t, tt.configure(r))

			res, err := Resolve(r, local, remote, lc, rc, base, base.Add(time.Second))
			require.NoError(t, err)
			assert.Equal(t, remote, res.Result)
			assert.True(t, res.FellBack)
			assert.Equal(t, LastWriterWins, res.Strategy)
			assert.Contains(t, res.Resolution, "fallback")
			require.Len(t, fallbacks, 1)
			assert.NotEmpty(t, fallbacks[0].Reason)
			assert.Equal(t, tt.requested, fallbacks[0].Requested)
			assert.Equal(t, LastWriterWins, fallbacks[0].Strategy)

			strict := newTestResolver(t, WithStrictMode())
			require.NoError(t, tt.configure(strict))
			_, err = Resolve(strict, local, remote, lc, rc, base, base.Add(time.Second))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.KindConfiguration))
		})
	}
}

func TestResolve_HooksAndMetrics(t *testing.T) {
	metrics := &recordingMetrics{}
	var conflicts, resolved int
	r := newTestResolver(t,
		WithMetrics(metrics),
		WithHooks(Hooks{
			OnConflict: func(ConflictEvent) { conflicts++ },
			OnResolved: func(ConflictEvent) { resolved++ },
		}))
	require.NoError(t, Configure[doc](r, LastWriterWins))

	lc, rc := concurrentClocks()
	_, err := Resolve(r, doc{ID: "1"}, doc{ID: "1"}, lc, rc, base, base)
	require.NoError(t, err)
	_, err = Resolve(r, doc{ID: "1"}, doc{ID: "1"}, lc, lc, base, base)
	require.NoError(t, err)

	assert.Equal(t, 1, conflicts)
	assert.Equal(t, 1, resolved)
	assert.Equal(t, 2, metrics.resolutions)
	assert.Equal(t, 1, metrics.conflicts)
}

func TestResolve_ConcurrentCalls(t *testing.T) {
	r := newTestResolver(t)
	require.NoError(t, Configure[doc](r, LastWriterWins))
	lc, rc := concurrentClocks()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := Resolve(r, doc{ID: "1", Title: "l"}, doc{ID: "1", Title: "r"}, lc, rc, base, base.Add(time.Second))
			assert.NoError(t, err)
			assert.Equal(t, "r", res.Result.Title)
		}()
	}
	wg.Wait()
}

func TestResolveEntities(t *testing.T) {
	type note struct {
		SyncState
		Text string
	}

	r := newTestResolver(t)
	require.NoError(t, Configure[note](r, LastWriterWins))

	local := note{Text: "local"}
	local.SyncID = "n1"
	local.Stamp(version.NewVectorClock().Increment("A"), "A", base.Add(time.Hour))
	remote := note{Text: "remote"}
	remote.SyncID = "n1"
	remote.Stamp(version.NewVectorClock().Increment("B"), "B", base)

	res, err := ResolveEntities(r, local, remote)
	require.NoError(t, err)
	assert.True(t, res.HadConflict)
	assert.Equal(t, "local", res.Result.Text)

	remote.VectorClockJSON = "[1,2]"
	_, err = ResolveEntities(r, local, remote)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.KindFormat))
}

func TestConfigure_Errors(t *testing.T) {
	r := newTestResolver(t)

	err := Configure[doc](r, Strategy(42))
	assert.True(t, errors.Is(err, errors.KindConfiguration))

	err = ConfigureCustom[doc](r, nil)
	assert.True(t, errors.Is(err, errors.KindConfiguration))

	err = ConfigureFieldMerge(r, NewFieldMerger[doc]())
	assert.True(t, errors.Is(err, errors.KindConfiguration))

	assert.Empty(t, r.EntityTypes())
}

func TestConfigure_KeepsRegisteredFunctions(t *testing.T) {
	r := newTestResolver(t)
	lc, rc := concurrentClocks()

	require.NoError(t, ConfigureCustom(r, func(c *SyncConflict[order]) order {
		return order{ID: c.EntityID(), Total: -1}
	}))
	require.NoError(t, Configure[order](r, LastWriterWins))
	s, ok := r.StrategyFor("orders")
	require.True(t, ok)
	assert.Equal(t, LastWriterWins, s)

	require.NoError(t, Configure[order](r, Custom))
	res, err := Resolve(r, order{ID: "o"}, order{ID: "o"}, lc, rc, base, base)
	require.NoError(t, err)
	assert.Equal(t, -1, res.Result.Total)
}

type recordingMetrics struct {
	mu          sync.Mutex
	resolutions int
	conflicts   int
	fallbacks   int
}

func (m *recordingMetrics) RecordResolution(_ string, _ version.CausalRelation, _ Strategy, hadConflict bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolutions++
	if hadConflict {
		m.conflicts++
	}
}

func (m *recordingMetrics) RecordFallback(string, Strategy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbacks++
}
