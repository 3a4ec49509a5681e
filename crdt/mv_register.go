package crdt

import (
	"fmt"

	"github.com/c0deZ3R0/go-sync-merge/errors"
	"github.com/c0deZ3R0/go-sync-merge/version"
)

// Versioned is a value paired with the clock of the write that produced it.
type Versioned[T any] struct {
	Value T
	Clock version.VectorClock
}

// MVRegister keeps every write that is not causally superseded by another.
// When more than one value remains the register is in conflict and a caller
// must pick or compute a replacement with Resolve.
type MVRegister[T any] struct {
	entries []Versioned[T]
}

// NewMVRegister creates an empty register.
func NewMVRegister[T any]() *MVRegister[T] {
	return &MVRegister[T]{}
}

// Set records a write. Existing values whose clock happened before clock are
// discarded. The new value is dropped if a remaining value already happened
// after it, or if a value with an equal clock is already present.
func (r *MVRegister[T]) Set(value T, clock version.VectorClock) {
	kept := r.entries[:0:0]
	obsolete := false
	for _, e := range r.entries {
		switch e.Clock.CompareTo(clock) {
		case version.HappenedBefore:
			continue
		case version.HappenedAfter, version.Equal:
			obsolete = true
		}
		kept = append(kept, e)
	}
	if !obsolete {
		kept = append(kept, Versioned[T]{Value: value, Clock: clock})
	}
	r.entries = kept
}

// Merge returns a new register holding the union of both registers minus
// every value dominated by another value's clock. Values with identical
// clocks appear once. Neither operand is modified.
func (r *MVRegister[T]) Merge(other *MVRegister[T]) *MVRegister[T] {
	var all []Versioned[T]
	if r != nil {
		all = append(all, r.entries...)
	}
	if other != nil {
		all = append(all, other.entries...)
	}

	merged := &MVRegister[T]{entries: make([]Versioned[T], 0, len(all))}
	for i, candidate := range all {
		if dominated(candidate, i, all) {
			continue
		}
		duplicate := false
		for _, kept := range merged.entries {
			if kept.Clock.Equal(candidate.Clock) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			merged.entries = append(merged.entries, candidate)
		}
	}
	return merged
}

func dominated[T any](candidate Versioned[T], index int, all []Versioned[T]) bool {
	for j, e := range all {
		if j != index && e.Clock.CompareTo(candidate.Clock) == version.HappenedAfter {
			return true
		}
	}
	return false
}

// Resolve replaces every value with a single value. mergedClock must
// dominate the clocks of all current values, normally
// version.MergeAll(r.Clocks()...).Increment(resolvingNode). The register does
// not check this; an under-dominating clock lets a later Merge resurrect the
// values it was meant to replace.
func (r *MVRegister[T]) Resolve(value T, mergedClock version.VectorClock) {
	r.entries = []Versioned[T]{{Value: value, Clock: mergedClock}}
}

// Values returns the current values in insertion order.
func (r *MVRegister[T]) Values() []T {
	values := make([]T, len(r.entries))
	for i, e := range r.entries {
		values[i] = e.Value
	}
	return values
}

// Entries returns a copy of the current values with their clocks.
func (r *MVRegister[T]) Entries() []Versioned[T] {
	out := make([]Versioned[T], len(r.entries))
	copy(out, r.entries)
	return out
}

// Clocks returns the clocks of the current values.
func (r *MVRegister[T]) Clocks() []version.VectorClock {
	clocks := make([]version.VectorClock, len(r.entries))
	for i, e := range r.entries {
		clocks[i] = e.Clock
	}
	return clocks
}

// Clock returns the merge of all current clocks.
func (r *MVRegister[T]) Clock() version.VectorClock {
	return version.MergeAll(r.Clocks()...)
}

// Len returns the number of concurrent values.
func (r *MVRegister[T]) Len() int {
	return len(r.entries)
}

// HasConflict reports whether more than one concurrent value remains.
func (r *MVRegister[T]) HasConflict() bool {
	return len(r.entries) > 1
}

// SingleValue returns the only value. It fails with a KindInvalidState error
// when the register is empty or in conflict; check HasConflict first.
func (r *MVRegister[T]) SingleValue() (T, error) {
	if len(r.entries) != 1 {
		var zero T
		return zero, errors.NewInvalidStateError(errors.OpSingleValue, "crdt",
			fmt.Errorf("register holds %d values, expected exactly 1", len(r.entries)))
	}
	return r.entries[0].Value, nil
}
