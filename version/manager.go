package version

import (
	"fmt"
	"sync"

	"github.com/c0deZ3R0/go-sync-merge/errors"
	"github.com/c0deZ3R0/go-sync-merge/interfaces"
)

// ClockManager tracks the current vector clock of a single node. Unlike
// VectorClock it is mutable and safe for concurrent use.
type ClockManager struct {
	nodeID string
	mu     sync.RWMutex
	clock  VectorClock
}

// NewClockManager creates a manager for nodeID starting from initial.
func NewClockManager(nodeID string, initial VectorClock) *ClockManager {
	return &ClockManager{nodeID: nodeID, clock: initial}
}

// NewClockManagerFromVersion creates a manager from an existing version.
// A nil or zero version starts from the empty clock.
func NewClockManagerFromVersion(nodeID string, v interfaces.Version) (*ClockManager, error) {
	vc, err := asVectorClock(v)
	if err != nil {
		return nil, err
	}
	return NewClockManager(nodeID, vc), nil
}

// NodeID returns the node whose counter Tick advances.
func (m *ClockManager) NodeID() string {
	return m.nodeID
}

// Current returns the current clock.
func (m *ClockManager) Current() VectorClock {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.clock
}

// Tick advances this node's counter, for a local write, and returns the new clock.
func (m *ClockManager) Tick() VectorClock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = m.clock.Increment(m.nodeID)
	return m.clock
}

// Observe merges a clock received from another node and returns the result.
func (m *ClockManager) Observe(other VectorClock) VectorClock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = m.clock.Merge(other)
	return m.clock
}

// ObserveVersion is Observe for an interfaces.Version, which must be a VectorClock.
func (m *ClockManager) ObserveVersion(v interfaces.Version) error {
	vc, err := asVectorClock(v)
	if err != nil {
		return err
	}
	if !vc.IsZero() {
		m.Observe(vc)
	}
	return nil
}

func asVectorClock(v interfaces.Version) (VectorClock, error) {
	switch vc := v.(type) {
	case nil:
		return VectorClock{}, nil
	case VectorClock:
		return vc, nil
	case *VectorClock:
		if vc == nil {
			return VectorClock{}, nil
		}
		return *vc, nil
	default:
		return VectorClock{}, errors.NewFormatError(errors.OpParseClock, component,
			fmt.Errorf("version is not a VectorClock: %T", v))
	}
}
