package lifecycle

import (
	"github.com/clearlens/governance-backend/internal/platform/apierr"
)

// Machine is a reusable status state machine. Job and both assessment types
// each declare one from their own transition table instead of re-implementing
// ad-hoc status checks per entity.
type Machine[S ~string] struct {
	transitions map[S][]S
	terminal    map[S]bool
}

func New[S ~string](transitions map[S][]S, terminal []S) *Machine[S] {
	term := make(map[S]bool, len(terminal))
	for _, s := range terminal {
		term[s] = true
	}
	return &Machine[S]{transitions: transitions, terminal: term}
}

func (m *Machine[S]) CanTransition(from, to S) bool {
	for _, next := range m.transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates a status move and returns a validation-class error on
// an illegal one; it never mutates anything itself.
func (m *Machine[S]) Transition(from, to S) error {
	if m.CanTransition(from, to) {
		return nil
	}
	return apierr.Validation("invalid_status_transition", "cannot transition from %q to %q", string(from), string(to))
}

func (m *Machine[S]) IsTerminal(s S) bool {
	return m.terminal[s]
}

// Known reports whether the status appears anywhere in the table, either as a
// source or as a target.
func (m *Machine[S]) Known(s S) bool {
	if _, ok := m.transitions[s]; ok {
		return true
	}
	if m.terminal[s] {
		return true
	}
	for _, targets := range m.transitions {
		for _, t := range targets {
			if t == s {
				return true
			}
		}
	}
	return false
}
