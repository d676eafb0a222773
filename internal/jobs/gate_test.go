package jobs

import (
	"errors"
	"testing"
)

// TestGateLockUnlock verifies state changes are reported once each.
func TestGateLockUnlock(t *testing.T) {
	var changes []bool
	g := NewGate(func(locked bool) { changes = append(changes, locked) })

	if err := g.Lock(); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if !g.Locked() {
		t.Fatal("expected locked gate")
	}
	if err := g.Lock(); !errors.Is(err, ErrControlsLocked) {
		t.Fatalf("second lock error = %v, want %v", err, ErrControlsLocked)
	}

	g.Unlock()
	g.Unlock()
	if g.Locked() {
		t.Fatal("expected unlocked gate")
	}

	if len(changes) != 2 || !changes[0] || changes[1] {
		t.Fatalf("changes = %v, want [true false]", changes)
	}
}

// TestGateUnlocksAfterPanic checks a deferred unlock runs on panic.
func TestGateUnlocksAfterPanic(t *testing.T) {
	g := NewGate(nil)
	func() {
		defer func() { _ = recover() }()
		if err := g.Lock(); err != nil {
			t.Fatalf("lock: %v", err)
		}
		defer g.Unlock()
		panic("boom")
	}()

	if g.Locked() {
		t.Fatal("gate should be unlocked after panic")
	}
}
