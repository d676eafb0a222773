package jobs

import (
	"errors"
	"sync"
)

// ErrControlsLocked is returned when input controls are disabled by an active run.
var ErrControlsLocked = errors.New("controls are locked while a song is being generated")

// Gate disables the submit button, file picker and text field for the
// duration of a run.
type Gate struct {
	mu       sync.Mutex
	locked   bool
	onChange func(locked bool)
}

// NewGate creates an unlocked gate. onChange, when set, is called after each
// state change outside the gate's lock.
func NewGate(onChange func(locked bool)) *Gate {
	return &Gate{onChange: onChange}
}

// Lock disables controls. It fails if they are already disabled.
func (g *Gate) Lock() error {
	g.mu.Lock()
	if g.locked {
		g.mu.Unlock()
		return ErrControlsLocked
	}
	g.locked = true
	g.mu.Unlock()

	g.notify(true)
	return nil
}

// Unlock re-enables controls. Unlocking an open gate is a no-op.
func (g *Gate) Unlock() {
	g.mu.Lock()
	if !g.locked {
		g.mu.Unlock()
		return
	}
	g.locked = false
	g.mu.Unlock()

	g.notify(false)
}

// Locked reports whether controls are currently disabled.
func (g *Gate) Locked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.locked
}

func (g *Gate) notify(locked bool) {
	if g.onChange != nil {
		g.onChange(locked)
	}
}
