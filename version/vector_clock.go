package version

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/c0deZ3R0/go-sync-merge/errors"
	"github.com/c0deZ3R0/go-sync-merge/interfaces"
)

const component = "version"

// Limits enforced when a clock is parsed from its serialized form.
const (
	// MaxNodeIDLength is the maximum allowed length for a node ID.
	MaxNodeIDLength = 255

	// MaxNodes is the maximum number of nodes a parsed clock may track.
	MaxNodes = 1000
)

// CausalRelation is the outcome of comparing two vector clocks.
type CausalRelation int

const (
	// Equal means the clocks agree on every node.
	Equal CausalRelation = iota
	// HappenedBefore means the receiver is strictly dominated by the other clock.
	HappenedBefore
	// HappenedAfter means the receiver strictly dominates the other clock.
	HappenedAfter
	// Concurrent means neither clock dominates.
	Concurrent
)

func (r CausalRelation) String() string {
	switch r {
	case Equal:
		return "Equal"
	case HappenedBefore:
		return "HappenedBefore"
	case HappenedAfter:
		return "HappenedAfter"
	case Concurrent:
		return "Concurrent"
	default:
		return fmt.Sprintf("CausalRelation(%d)", int(r))
	}
}

// Inverse returns the relation seen from the other clock's side.
func (r CausalRelation) Inverse() CausalRelation {
	switch r {
	case HappenedBefore:
		return HappenedAfter
	case HappenedAfter:
		return HappenedBefore
	default:
		return r
	}
}

// VectorClock maps node ids to logical counters. The zero value is the empty
// clock. A VectorClock is never mutated after construction.
type VectorClock struct {
	clocks map[string]uint64
}

// Compile-time check to ensure VectorClock satisfies the Version interface
var _ interfaces.Version = VectorClock{}

// NewVectorClock creates an empty VectorClock.
func NewVectorClock() VectorClock {
	return VectorClock{}
}

// NewVectorClockFromMap creates a VectorClock from a map of node IDs to clock values.
// The input map is copied to prevent external mutations.
func NewVectorClockFromMap(clocks map[string]uint64) VectorClock {
	return VectorClock{clocks: copyClocks(clocks, 0)}
}

// NewVectorClockFromString deserializes the JSON object form of a clock,
// e.g. {"node-1": 5, "node-2": 3}. Empty input, "{}" and "null" yield the empty
// clock. Anything else that is not an object of non-negative integers fails
// with a KindFormat error, as do empty or over-long node ids and clocks with
// more than MaxNodes entries.
func NewVectorClockFromString(data string) (VectorClock, error) {
	var vc VectorClock
	if err := vc.UnmarshalJSON([]byte(data)); err != nil {
		return VectorClock{}, err
	}
	return vc, nil
}

// Increment returns a copy of the clock with nodeID's counter advanced by one.
func (vc VectorClock) Increment(nodeID string) VectorClock {
	next := copyClocks(vc.clocks, 1)
	next[nodeID]++
	return VectorClock{clocks: next}
}

// GetClock returns the counter for nodeID, or 0 if the node was never observed.
func (vc VectorClock) GetClock(nodeID string) uint64 {
	return vc.clocks[nodeID]
}

// Merge returns the component-wise maximum of both clocks. It is commutative,
// associative and idempotent.
func (vc VectorClock) Merge(other VectorClock) VectorClock {
	merged := copyClocks(vc.clocks, len(other.clocks))
	for nodeID, otherClock := range other.clocks {
		if current, exists := merged[nodeID]; !exists || otherClock > current {
			merged[nodeID] = otherClock
		}
	}
	return VectorClock{clocks: merged}
}

// MergeAll folds Merge over clocks, starting from the empty clock.
func MergeAll(clocks ...VectorClock) VectorClock {
	var out VectorClock
	for _, c := range clocks {
		out = out.Merge(c)
	}
	return out
}

// CompareTo determines the causal relationship of the receiver to other over
// the union of both node sets, treating absent nodes as zero.
func (vc VectorClock) CompareTo(other VectorClock) CausalRelation {
	thisGreater := false
	otherGreater := false

	for nodeID, thisClock := range vc.clocks {
		otherClock := other.clocks[nodeID]
		if thisClock > otherClock {
			thisGreater = true
		} else if thisClock < otherClock {
			otherGreater = true
		}
	}
	for nodeID, otherClock := range other.clocks {
		if _, seen := vc.clocks[nodeID]; seen {
			continue
		}
		if otherClock > 0 {
			otherGreater = true
		}
	}

	switch {
	case thisGreater && otherGreater:
		return Concurrent
	case thisGreater:
		return HappenedAfter
	case otherGreater:
		return HappenedBefore
	default:
		return Equal
	}
}

// Compare implements interfaces.Version. It returns -1 for HappenedBefore,
// 1 for HappenedAfter and 0 for both Equal and Concurrent, so it is not a
// total order and must not be used to sort clocks. Comparing against a
// Version that is not a VectorClock also returns 0.
func (vc VectorClock) Compare(other interfaces.Version) int {
	var otherVC VectorClock
	switch o := other.(type) {
	case VectorClock:
		otherVC = o
	case *VectorClock:
		if o != nil {
			otherVC = *o
		}
	case nil:
	default:
		return 0
	}

	switch vc.CompareTo(otherVC) {
	case HappenedBefore:
		return -1
	case HappenedAfter:
		return 1
	default:
		return 0
	}
}

// Equal reports whether the clocks are causally identical. Clocks with
// different node sets are equal when the differing entries are zero.
func (vc VectorClock) Equal(other VectorClock) bool {
	return vc.CompareTo(other) == Equal
}

// HappenedBefore returns true if this vector clock happened-before the other.
func (vc VectorClock) HappenedBefore(other VectorClock) bool {
	return vc.CompareTo(other) == HappenedBefore
}

// HappenedAfter returns true if this vector clock happened-after the other.
func (vc VectorClock) HappenedAfter(other VectorClock) bool {
	return vc.CompareTo(other) == HappenedAfter
}

// IsConcurrentWith returns true if neither clock dominates the other.
func (vc VectorClock) IsConcurrentWith(other VectorClock) bool {
	return vc.CompareTo(other) == Concurrent
}

// IsZero returns true if no node has a non-zero counter.
func (vc VectorClock) IsZero() bool {
	for _, c := range vc.clocks {
		if c > 0 {
			return false
		}
	}
	return true
}

// Size returns the number of nodes tracked by this vector clock.
func (vc VectorClock) Size() int {
	return len(vc.clocks)
}

// Nodes returns the tracked node ids in ascending order.
func (vc VectorClock) Nodes() []string {
	nodes := make([]string, 0, len(vc.clocks))
	for nodeID := range vc.clocks {
		nodes = append(nodes, nodeID)
	}
	sort.Strings(nodes)
	return nodes
}

// ToMap returns a copy of the internal clock map.
func (vc VectorClock) ToMap() map[string]uint64 {
	return copyClocks(vc.clocks, 0)
}

// String serializes the clock to its JSON form with keys in ascending order.
// The empty clock is "{}".
func (vc VectorClock) String() string {
	data, err := vc.MarshalJSON()
	if err != nil {
		// map[string]uint64 always marshals
		return "{}"
	}
	return string(data)
}

// MarshalJSON implements json.Marshaler.
func (vc VectorClock) MarshalJSON() ([]byte, error) {
	if len(vc.clocks) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(vc.clocks)
}

// UnmarshalJSON implements json.Unmarshaler.
func (vc *VectorClock) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*vc = VectorClock{}
		return nil
	}
	if trimmed[0] != '{' {
		return errors.NewFormatError(errors.OpParseClock, component,
			fmt.Errorf("vector clock must be a JSON object, got %q", truncate(string(trimmed))))
	}

	var clocks map[string]uint64
	if err := json.Unmarshal(trimmed, &clocks); err != nil {
		return errors.NewFormatError(errors.OpParseClock, component,
			fmt.Errorf("failed to unmarshal vector clock from %q: %w", truncate(string(trimmed)), err))
	}
	if err := validateNodes(clocks); err != nil {
		return errors.NewFormatError(errors.OpParseClock, component, err)
	}

	*vc = VectorClock{clocks: clocks}
	return nil
}

func validateNodes(clocks map[string]uint64) error {
	if len(clocks) > MaxNodes {
		return fmt.Errorf("vector clock tracks %d nodes, maximum is %d", len(clocks), MaxNodes)
	}
	for nodeID := range clocks {
		if nodeID == "" {
			return fmt.Errorf("node ID cannot be empty")
		}
		if len(nodeID) > MaxNodeIDLength {
			return fmt.Errorf("node ID %q exceeds maximum length of %d characters", truncate(nodeID), MaxNodeIDLength)
		}
	}
	return nil
}

func copyClocks(src map[string]uint64, extra int) map[string]uint64 {
	dst := make(map[string]uint64, len(src)+extra)
	for nodeID, c := range src {
		dst[nodeID] = c
	}
	return dst
}

func truncate(s string) string {
	const max = 64
	if len(s) <= max {
		return s
	}
	return strings.TrimSpace(s[:max]) + "..."
}
