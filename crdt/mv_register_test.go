package crdt

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/go-sync-merge/errors"
	"github.com/c0deZ3R0/go-sync-merge/version"
)

func clockOf(nodes ...string) version.VectorClock {
	vc := version.NewVectorClock()
	for _, n := range nodes {
		vc = vc.Increment(n)
	}
	return vc
}

func sortedValues(r *MVRegister[string]) []string {
	v := r.Values()
	sort.Strings(v)
	return v
}

func TestMVRegister_ConflictAccumulation(t *testing.T) {
	reg := NewMVRegister[string]()
	reg.Set("from-a", clockOf("A"))
	reg.Set("from-b", clockOf("B"))
	reg.Set("from-c", clockOf("C"))

	assert.Equal(t, 3, reg.Len())
	assert.True(t, reg.HasConflict())

	_, err := reg.SingleValue()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.KindInvalidState))

	dominating := version.MergeAll(reg.Clocks()...).Increment("A")
	reg.Resolve("merged", dominating)

	assert.Equal(t, 1, reg.Len())
	assert.False(t, reg.HasConflict())
	v, err := reg.SingleValue()
	require.NoError(t, err)
	assert.Equal(t, "merged", v)
}

func TestMVRegister_SetDiscardsDominated(t *testing.T) {
	reg := NewMVRegister[string]()
	first := clockOf("A")
	reg.Set("v1", first)

	second := first.Increment("A")
	reg.Set("v2", second)
	assert.Equal(t, []string{"v2"}, reg.Values(), "newer write replaces older")

	reg.Set("stale", first)
	assert.Equal(t, []string{"v2"}, reg.Values(), "obsolete write is dropped")

	reg.Set("replay", second)
	assert.Equal(t, []string{"v2"}, reg.Values(), "equal clock is not duplicated")

	concurrent := first.Increment("B")
	reg.Set("v3", concurrent)
	assert.Equal(t, []string{"v2", "v3"}, reg.Values())

	both := second.Merge(concurrent).Increment("C")
	reg.Set("v4", both)
	assert.Equal(t, []string{"v4"}, reg.Values(), "write dominating all values collapses the register")
}

func TestMVRegister_Merge(t *testing.T) {
	base := clockOf("A")

	left := NewMVRegister[string]()
	left.Set("left", base.Increment("L"))

	right := NewMVRegister[string]()
	right.Set("old", base)
	right.Set("right", base.Increment("R"))

	merged := left.Merge(right)
	assert.Equal(t, []string{"left", "right"}, sortedValues(merged))
	assert.Equal(t, []string{"left"}, left.Values(), "operands unchanged")

	assert.Equal(t, sortedValues(merged), sortedValues(right.Merge(left)), "commutative")
	assert.Equal(t, sortedValues(merged), sortedValues(merged.Merge(merged)), "idempotent")

	third := NewMVRegister[string]()
	third.Set("third", base.Increment("T"))
	assert.Equal(t,
		sortedValues(left.Merge(right).Merge(third)),
		sortedValues(left.Merge(right.Merge(third))),
		"associative")
}

func TestMVRegister_MergeDeduplicatesAndPrunes(t *testing.T) {
	c := clockOf("A", "B")

	x := NewMVRegister[string]()
	x.Set("same", c)
	y := NewMVRegister[string]()
	y.Set("same", c)

	merged := x.Merge(y)
	assert.Equal(t, []string{"same"}, merged.Values())

	newer := NewMVRegister[string]()
	newer.Set("newer", c.Increment("A"))
	assert.Equal(t, []string{"newer"}, x.Merge(newer).Values())
	assert.Equal(t, []string{"newer"}, newer.Merge(x).Values())
}

func TestMVRegister_ResolveSurvivesMerge(t *testing.T) {
	reg := NewMVRegister[string]()
	reg.Set("a", clockOf("A"))
	reg.Set("b", clockOf("B"))
	peer := reg.Merge(NewMVRegister[string]())

	reg.Resolve("ab", reg.Clock().Increment("A"))

	assert.Equal(t, []string{"ab"}, reg.Merge(peer).Values())
	assert.Equal(t, []string{"ab"}, peer.Merge(reg).Values())
}

func TestMVRegister_UnderDominatingResolveResurrects(t *testing.T) {
	reg := NewMVRegister[string]()
	reg.Set("a", clockOf("A"))
	reg.Set("b", clockOf("B"))
	peer := reg.Merge(nil)

	// Clock that only covers A leaves B's write concurrent.
	reg.Resolve("bad", clockOf("A").Increment("A"))

	assert.ElementsMatch(t, []string{"bad", "b"}, reg.Merge(peer).Values())
}

func TestMVRegister_Empty(t *testing.T) {
	reg := NewMVRegister[int]()
	assert.False(t, reg.HasConflict())
	assert.Empty(t, reg.Values())
	assert.True(t, reg.Clock().IsZero())

	_, err := reg.SingleValue()
	assert.Error(t, err)
}
