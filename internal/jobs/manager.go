package jobs

import (
	"errors"
	"fmt"
	"sync"

	"study-song/internal/domain"
)

// ErrRunInProgress is returned when starting a second active run.
var ErrRunInProgress = errors.New("a song is already being generated")

// Manager tracks the single allowed active run and its transitions.
type Manager struct {
	mu      sync.RWMutex
	current domain.Run
}

// NewManager creates a manager in idle state.
func NewManager() *Manager {
	return &Manager{
		current: domain.Run{
			State: domain.RunStateIdle,
		},
	}
}

// Start creates a new run and moves it to validating state.
func (m *Manager) Start(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if isActive(m.current.State) {
		return ErrRunInProgress
	}

	m.current = domain.Run{
		ID:    runID,
		State: domain.RunStateValidating,
	}
	return nil
}

// Transition validates and applies a state change for the current run.
// Re-entering the current state only updates the status line.
func (m *Manager) Transition(state domain.RunState, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.ID == "" && state != domain.RunStateIdle {
		return fmt.Errorf("cannot transition without an active run")
	}
	if state != m.current.State && !isValidTransition(m.current.State, state) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current.State, state)
	}

	m.current.State = state
	m.current.Status = status
	return nil
}

// Current returns a snapshot of the current run.
func (m *Manager) Current() domain.Run {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func isActive(state domain.RunState) bool {
	switch state {
	case domain.RunStateValidating, domain.RunStateExtracting, domain.RunStatePlanning, domain.RunStateComposing:
		return true
	default:
		return false
	}
}

// isValidTransition enforces the allowed run state machine edges.
func isValidTransition(from, to domain.RunState) bool {
	switch from {
	case domain.RunStateIdle:
		return to == domain.RunStateValidating
	case domain.RunStateValidating:
		return to == domain.RunStateExtracting || to == domain.RunStatePlanning || to == domain.RunStateFailed
	case domain.RunStateExtracting:
		return to == domain.RunStatePlanning || to == domain.RunStateFailed
	case domain.RunStatePlanning:
		return to == domain.RunStateComposing || to == domain.RunStateFailed
	case domain.RunStateComposing:
		return to == domain.RunStateSucceeded || to == domain.RunStateFailed
	case domain.RunStateSucceeded, domain.RunStateFailed:
		return to == domain.RunStateValidating || to == domain.RunStateIdle
	default:
		return false
	}
}
