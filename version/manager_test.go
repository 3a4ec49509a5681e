package version

import (
	"sync"
	"testing"

	"github.com/c0deZ3R0/go-sync-merge/errors"
	"github.com/c0deZ3R0/go-sync-merge/interfaces"
)

type sequenceVersion uint64

func (s sequenceVersion) Compare(other interfaces.Version) int { return 0 }
func (s sequenceVersion) String() string                        { return "seq" }
func (s sequenceVersion) IsZero() bool                          { return s == 0 }

func TestClockManager_TickAndObserve(t *testing.T) {
	m := NewClockManager("device-a", NewVectorClock())

	first := m.Tick()
	if first.GetClock("device-a") != 1 {
		t.Fatalf("expected device-a=1, got %s", first)
	}

	remote := NewVectorClock().Increment("device-b").Increment("device-b")
	observed := m.Observe(remote)
	if observed.GetClock("device-b") != 2 || observed.GetClock("device-a") != 1 {
		t.Fatalf("unexpected clock after observe: %s", observed)
	}

	second := m.Tick()
	if second.CompareTo(remote) != HappenedAfter {
		t.Errorf("local write after observe must dominate remote clock")
	}
	if first.GetClock("device-a") != 1 {
		t.Error("previously returned clock must not change")
	}
}

func TestClockManager_FromVersion(t *testing.T) {
	initial := NewVectorClock().Increment("x")

	m, err := NewClockManagerFromVersion("x", initial)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.Current().Equal(initial) {
		t.Errorf("expected %s, got %s", initial, m.Current())
	}

	var nilClock *VectorClock
	m, err = NewClockManagerFromVersion("x", nilClock)
	if err != nil {
		t.Fatalf("unexpected error for nil clock: %v", err)
	}
	if !m.Current().IsZero() {
		t.Error("nil clock should start empty")
	}

	if err := m.ObserveVersion(&initial); err != nil {
		t.Fatalf("ObserveVersion: %v", err)
	}
	if m.Current().GetClock("x") != 1 {
		t.Errorf("ObserveVersion did not merge: %s", m.Current())
	}

	if err := m.ObserveVersion(sequenceVersion(3)); !errors.Is(err, errors.KindFormat) {
		t.Errorf("expected format error for non vector clock version, got %v", err)
	}
	if _, err := NewClockManagerFromVersion("x", sequenceVersion(3)); err == nil {
		t.Error("expected error for non vector clock version")
	}
}

func TestClockManager_Concurrent(t *testing.T) {
	m := NewClockManager("n", NewVectorClock())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.Tick()
		}()
		go func() {
			defer wg.Done()
			m.Observe(NewVectorClock().Increment("peer"))
		}()
	}
	wg.Wait()

	if got := m.Current().GetClock("n"); got != 50 {
		t.Errorf("expected 50 ticks, got %d", got)
	}
	if got := m.Current().GetClock("peer"); got != 1 {
		t.Errorf("expected peer=1, got %d", got)
	}
}
