package pocket

import (
	"testing"
	"time"
)

func TestManualReachability_InitialState(t *testing.T) {
	m := NewManualReachability(true)
	if !m.Reachable() {
		t.Error("Reachable = false, want true")
	}

	m = NewManualReachability(false)
	if m.Reachable() {
		t.Error("Reachable = true, want false")
	}
}

func TestManualReachability_SetDeliversChange(t *testing.T) {
	m := NewManualReachability(false)

	m.Set(true)
	if !m.Reachable() {
		t.Error("Reachable = false after Set(true)")
	}

	select {
	case v := <-m.Changes():
		if !v {
			t.Error("change event = false, want true")
		}
	case <-time.After(time.Second):
		t.Fatal("no change event delivered")
	}
}

func TestManualReachability_SameStateIsNoop(t *testing.T) {
	m := NewManualReachability(false)

	m.Set(false)

	select {
	case v := <-m.Changes():
		t.Errorf("unexpected change event %v for same-state set", v)
	default:
	}
}

func TestManualReachability_CoalescesUndelivered(t *testing.T) {
	m := NewManualReachability(false)

	// Nobody is reading; only the latest state must survive.
	m.Set(true)
	m.Set(false)
	m.Set(true)

	select {
	case v := <-m.Changes():
		if !v {
			t.Errorf("coalesced event = %v, want true (latest state)", v)
		}
	case <-time.After(time.Second):
		t.Fatal("no change event delivered")
	}

	select {
	case v := <-m.Changes():
		t.Errorf("stale event %v left in channel", v)
	default:
	}
}
