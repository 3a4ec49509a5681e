package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/go-sync-merge/synckit"
	"github.com/c0deZ3R0/go-sync-merge/version"
)

type item struct {
	ID   string
	Name string
}

func (i item) EntityID() string { return i.ID }

func TestCollector_Register(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("test")
	require.NoError(t, c.Register(reg))
	// second registration is tolerated
	require.NoError(t, c.Register(reg))
}

func TestCollector_RecordsResolverActivity(t *testing.T) {
	c := NewCollector("test")
	require.NoError(t, c.Register(prometheus.NewRegistry()))

	r, err := synckit.NewResolver("node", synckit.WithMetrics(c))
	require.NoError(t, err)
	require.NoError(t, synckit.Configure[item](r, synckit.FirstWriterWins))

	now := time.Now()
	a := version.NewVectorClock().Increment("A")
	b := version.NewVectorClock().Increment("B")

	_, err = synckit.Resolve(r, item{ID: "1"}, item{ID: "1"}, a, b, now, now)
	require.NoError(t, err)
	_, err = synckit.Resolve(r, item{ID: "1"}, item{ID: "1"}, a.Increment("A"), a, now, now)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.resolutions.WithLabelValues("item", "Concurrent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.resolutions.WithLabelValues("item", "HappenedAfter")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.conflicts.WithLabelValues("item", "FirstWriterWins")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.duration))

	require.NoError(t, synckit.Configure[item](r, synckit.KeepBoth))
	_, err = synckit.Resolve(r, item{ID: "1"}, item{ID: "1"}, a, b, now, now)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.fallbacks.WithLabelValues("item", "KeepBoth")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.conflicts.WithLabelValues("item", "LastWriterWins")))
}

type other struct{ ID string }

func (o other) EntityID() string { return o.ID }

func TestCollector_UnconfiguredFallback(t *testing.T) {
	c := NewCollector("test")
	reg := prometheus.NewRegistry()
	require.NoError(t, c.Register(reg))

	r, err := synckit.NewResolver("node", synckit.WithMetrics(c))
	require.NoError(t, err)

	now := time.Now()
	a := version.NewVectorClock().Increment("A")
	b := version.NewVectorClock().Increment("B")
	_, err = synckit.Resolve(r, other{ID: "1"}, other{ID: "1"}, a, b, now, now)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.fallbacks.WithLabelValues("other", "unconfigured")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.fallbacks.WithLabelValues("other", "LastWriterWins")))

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "test_resolver_resolution_duration_seconds")
}
