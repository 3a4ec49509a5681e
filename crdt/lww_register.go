package crdt

import (
	"time"
)

// wins reports whether the write tagged (ts, nodeID) beats (curTs, curNode).
func wins(ts time.Time, nodeID string, curTs time.Time, curNode string) bool {
	switch ts.Compare(curTs) {
	case 1:
		return true
	case 0:
		return nodeID > curNode
	default:
		return false
	}
}

// LWWRegister holds a single value tagged with the timestamp and node id of
// the write that produced it.
type LWWRegister[T any] struct {
	value     T
	timestamp time.Time
	nodeID    string
}

// NewLWWRegister creates a register holding an initial write.
func NewLWWRegister[T any](value T, timestamp time.Time, nodeID string) *LWWRegister[T] {
	return &LWWRegister[T]{value: value, timestamp: timestamp, nodeID: nodeID}
}

// Value returns the winning value.
func (r *LWWRegister[T]) Value() T { return r.value }

// Timestamp returns the timestamp of the winning write.
func (r *LWWRegister[T]) Timestamp() time.Time { return r.timestamp }

// NodeID returns the node that performed the winning write.
func (r *LWWRegister[T]) NodeID() string { return r.nodeID }

// Update applies a write in place. It replaces the state and returns true
// only if (timestamp, nodeID) beats the current tag; otherwise the register
// is left unchanged and Update returns false.
func (r *LWWRegister[T]) Update(value T, timestamp time.Time, nodeID string) bool {
	if !wins(timestamp, nodeID, r.timestamp, r.nodeID) {
		return false
	}
	r.value = value
	r.timestamp = timestamp
	r.nodeID = nodeID
	return true
}

// Merge returns a new register holding whichever state wins. Neither
// operand is modified. A nil operand is treated as absent.
func (r *LWWRegister[T]) Merge(other *LWWRegister[T]) *LWWRegister[T] {
	switch {
	case r == nil && other == nil:
		return nil
	case r == nil:
		return other.clone()
	case other == nil:
		return r.clone()
	}
	if wins(other.timestamp, other.nodeID, r.timestamp, r.nodeID) {
		return other.clone()
	}
	return r.clone()
}

func (r *LWWRegister[T]) clone() *LWWRegister[T] {
	c := *r
	return &c
}
