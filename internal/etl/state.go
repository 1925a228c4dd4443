package etl

import "fmt"

// State is the pipeline-level position of a run.
type State string

const (
	StateStart    State = "start"
	StateMerged   State = "merged"
	StateEnriched State = "enriched"
	StateIndexed  State = "indexed"
	StateLoaded   State = "loaded"
	StateFailed   State = "failed"
)

// IsTerminal reports whether no further transition is possible.
func IsTerminal(s State) bool {
	return s == StateLoaded || s == StateFailed
}

// next is the only forward successor of each non-terminal state.
var next = map[State]State{
	StateStart:    StateMerged,
	StateMerged:   StateEnriched,
	StateEnriched: StateIndexed,
	StateIndexed:  StateLoaded,
}

// Transition validates a move from one state to another. Transitions are
// strictly forward; failed is reachable from any non-terminal state.
func Transition(from, to State) error {
	if IsTerminal(from) {
		return fmt.Errorf("invalid transition: %s is terminal", from)
	}
	if to == StateFailed || next[from] == to {
		return nil
	}
	return fmt.Errorf("disallowed transition: %s -> %s", from, to)
}

// Machine tracks the state of a single run.
type Machine struct {
	state State
}

// NewMachine returns a machine in the start state.
func NewMachine() *Machine {
	return &Machine{state: StateStart}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Advance moves to `to` if the transition is allowed.
func (m *Machine) Advance(to State) error {
	if err := Transition(m.state, to); err != nil {
		return err
	}
	m.state = to
	return nil
}

// Fail moves to the failed state. Failing a terminal machine is a no-op.
func (m *Machine) Fail() {
	if !IsTerminal(m.state) {
		m.state = StateFailed
	}
}
