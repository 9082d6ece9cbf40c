package pipeline

import "fmt"

// State of a run
type State int

const (
	Idle State = iota
	Loading
	Validating
	Enriching
	Banding
	Done
	Failed
)

var stateNames = map[State]string{
	Idle:       "idle",
	Loading:    "loading",
	Validating: "validating",
	Enriching:  "enriching",
	Banding:    "banding",
	Done:       "done",
	Failed:     "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Failed is only reachable from Validating: input errors are the only
// failures that end a run in a recorded state. Other errors abandon the run
// where it stands.
var transitions = map[State][]State{
	Idle:       {Loading},
	Loading:    {Validating},
	Validating: {Enriching, Failed},
	Enriching:  {Banding},
	Banding:    {Done},
}

// Machine tracks the state of one run
type Machine struct {
	state   State
	history []State
}

// NewMachine starts in Idle
func NewMachine() *Machine {
	return &Machine{state: Idle, history: []State{Idle}}
}

func (m *Machine) State() State {
	return m.state
}

// History returns every state entered, in order
func (m *Machine) History() []State {
	return append([]State(nil), m.history...)
}

// Transition moves to next, rejecting moves the state graph does not allow
func (m *Machine) Transition(next State) error {
	for _, allowed := range transitions[m.state] {
		if allowed == next {
			m.state = next
			m.history = append(m.history, next)
			return nil
		}
	}
	return fmt.Errorf("invalid transition from %s to %s", m.state, next)
}

// Advance moves forward through the run phases until next is reached
func (m *Machine) Advance(next State) error {
	for m.state < next {
		if err := m.Transition(m.state + 1); err != nil {
			return err
		}
	}
	if m.state != next {
		return fmt.Errorf("invalid transition from %s to %s", m.state, next)
	}
	return nil
}
