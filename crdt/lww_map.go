package crdt

import (
	"sort"
	"time"
)

// Entry is one field of an LWWMap together with the tag of its winning write.
type Entry struct {
	Value     any
	Timestamp time.Time
	NodeID    string
}

// LWWMap is a map of independently merged last-writer-wins fields. Two fields
// of a merged map may come from different replicas.
type LWWMap struct {
	entries map[string]Entry
}

// NewLWWMap creates an empty map.
func NewLWWMap() *LWWMap {
	return &LWWMap{entries: make(map[string]Entry)}
}

// Set writes field in place using the LWWRegister update rule. A field that
// does not exist yet is created unconditionally. It reports whether the write
// was applied.
func (m *LWWMap) Set(field string, value any, timestamp time.Time, nodeID string) bool {
	if m.entries == nil {
		m.entries = make(map[string]Entry)
	}
	if cur, ok := m.entries[field]; ok && !wins(timestamp, nodeID, cur.Timestamp, cur.NodeID) {
		return false
	}
	m.entries[field] = Entry{Value: value, Timestamp: timestamp, NodeID: nodeID}
	return true
}

// Value returns the raw stored value of field.
func (m *LWWMap) Value(field string) (any, bool) {
	e, ok := m.entries[field]
	return e.Value, ok
}

// Entry returns the stored value of field with its tag.
func (m *LWWMap) Entry(field string) (Entry, bool) {
	e, ok := m.entries[field]
	return e, ok
}

// Has reports whether field was ever written.
func (m *LWWMap) Has(field string) bool {
	_, ok := m.entries[field]
	return ok
}

// Fields returns the field names in ascending order.
func (m *LWWMap) Fields() []string {
	fields := make([]string, 0, len(m.entries))
	for f := range m.entries {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Len returns the number of fields.
func (m *LWWMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Merge returns a new map where every field present in either operand holds
// the winning write for that field. Neither operand is modified.
func (m *LWWMap) Merge(other *LWWMap) *LWWMap {
	merged := &LWWMap{entries: make(map[string]Entry, m.Len())}
	if m != nil {
		for f, e := range m.entries {
			merged.entries[f] = e
		}
	}
	if other != nil {
		for f, e := range other.entries {
			cur, ok := merged.entries[f]
			if !ok || wins(e.Timestamp, e.NodeID, cur.Timestamp, cur.NodeID) {
				merged.entries[f] = e
			}
		}
	}
	return merged
}

// Get is a lenient typed read: it returns the value of field as T, or the zero
// value of T when the field is absent or holds a value of a different type.
// A type mismatch is not an error.
func Get[T any](m *LWWMap, field string) T {
	var zero T
	if m == nil {
		return zero
	}
	v, ok := m.entries[field]
	if !ok {
		return zero
	}
	typed, ok := v.Value.(T)
	if !ok {
		return zero
	}
	return typed
}
