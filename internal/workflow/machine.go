package workflow

import (
	"context"
	"fmt"

	"github.com/mediavault/mediavault-backend/internal/platform/logger"
)

// Subject is anything that carries a lifecycle marking.
type Subject interface {
	CurrentMarking() string
	SetMarking(string)
}

// Transition is one record of the explicit transition table. Guards are
// plain predicates evaluated against the subject; Async transitions are
// dispatched to the message transport instead of running inline.
type Transition struct {
	Name string
	From []string
	// To is the destination marking. Empty means a self-loop: the marking
	// stays unchanged but listeners still fire (used for observability
	// transitions like ai_task).
	To    string
	Guard func(Subject) bool
	Async bool
}

// Listener runs after a transition's marking change has been applied.
type Listener func(ctx context.Context, s Subject) error

// Machine is a guarded state machine over an explicit transition table.
type Machine struct {
	name        string
	log         *logger.Logger
	transitions map[string]Transition
	listeners   map[string][]Listener
}

func NewMachine(name string, log *logger.Logger, transitions []Transition) *Machine {
	m := &Machine{
		name:        name,
		log:         log.With("workflow", name),
		transitions: make(map[string]Transition, len(transitions)),
		listeners:   map[string][]Listener{},
	}
	for _, t := range transitions {
		m.transitions[t.Name] = t
	}
	return m
}

func (m *Machine) Name() string { return m.name }

// Transition returns the table record for a named transition.
func (m *Machine) Transition(name string) (Transition, bool) {
	t, ok := m.transitions[name]
	return t, ok
}

// Can reports whether the named transition is enabled for the subject:
// the current marking must be in the from set and the guard must pass.
func (m *Machine) Can(s Subject, name string) bool {
	t, ok := m.transitions[name]
	if !ok {
		return false
	}
	if !markingIn(s.CurrentMarking(), t.From) {
		return false
	}
	if t.Guard != nil && !t.Guard(s) {
		return false
	}
	return true
}

// Apply fires the named transition: it validates the from set and guard,
// moves the marking, and runs completion listeners in registration order.
// A listener error is returned but the marking change is not rolled back;
// the caller decides whether to route the subject to a failed state.
func (m *Machine) Apply(ctx context.Context, s Subject, name string) error {
	t, ok := m.transitions[name]
	if !ok {
		return fmt.Errorf("workflow %s: unknown transition %q", m.name, name)
	}
	if !markingIn(s.CurrentMarking(), t.From) {
		return fmt.Errorf("workflow %s: transition %q not enabled from %q", m.name, name, s.CurrentMarking())
	}
	if t.Guard != nil && !t.Guard(s) {
		return fmt.Errorf("workflow %s: guard blocked transition %q from %q", m.name, name, s.CurrentMarking())
	}

	if t.To != "" {
		s.SetMarking(t.To)
	}
	m.log.Debug("transition applied", "transition", name, "marking", s.CurrentMarking())

	for _, fn := range m.listeners[name] {
		if err := fn(ctx, s); err != nil {
			return fmt.Errorf("workflow %s: listener for %q: %w", m.name, name, err)
		}
	}
	return nil
}

// On registers a completion listener for a named transition.
func (m *Machine) On(transition string, fn Listener) {
	m.listeners[transition] = append(m.listeners[transition], fn)
}

func markingIn(marking string, from []string) bool {
	for _, f := range from {
		if f == marking {
			return true
		}
	}
	return false
}
