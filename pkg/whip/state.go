package whip

import "sync"

// State is the lifecycle phase of a publishing session.
type State int

const (
	StateNew State = iota
	StateAcquiringMedia
	StateNegotiating
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateAcquiringMedia:
		return "acquiring-media"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// stateMachine tracks the session lifecycle. Disconnected is absorbing:
// once reached, no transition out is ever permitted.
type stateMachine struct {
	mu       sync.Mutex
	current  State
	onChange func(State)
}

func newStateMachine(onChange func(State)) *stateMachine {
	return &stateMachine{current: StateNew, onChange: onChange}
}

func (m *stateMachine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// transition moves to the target state if the move is legal and reports
// whether it happened. The change callback runs outside the lock.
func (m *stateMachine) transition(to State) bool {
	m.mu.Lock()
	if !validTransition(m.current, to) {
		m.mu.Unlock()
		return false
	}
	m.current = to
	notify := m.onChange
	m.mu.Unlock()

	if notify != nil {
		notify(to)
	}
	return true
}

func validTransition(from, to State) bool {
	if from == StateDisconnected {
		return false
	}
	// Teardown is reachable from every live state.
	if to == StateDisconnected {
		return true
	}
	switch from {
	case StateNew:
		return to == StateAcquiringMedia
	case StateAcquiringMedia:
		return to == StateNegotiating
	case StateNegotiating:
		return to == StateConnected
	default:
		return false
	}
}
