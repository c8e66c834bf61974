package dialog

import "fmt"

// State represents valid conversation states for a logging session.
type State string

const (
	StateAwaitingInput State = "awaiting_input"
	StateExtracting    State = "extracting"
	StateChecking      State = "checking"
	StateAsking        State = "asking"
	StateFinalized     State = "finalized"
)

// validTransitions defines the allowed state transitions for a session's
// dialog. Any transition not listed here is invalid and rejected.
var validTransitions = map[State]map[State]bool{
	StateAwaitingInput: {
		StateExtracting: true,
	},
	StateExtracting: {
		StateChecking: true,
	},
	StateChecking: {
		StateAsking:    true,
		StateFinalized: true,
	},
	StateAsking: {
		StateAwaitingInput: true,
	},
	// Finalized is terminal
	StateFinalized: {},
}

// Transition validates and performs a state transition. An invalid
// transition is a programming error surfaced as an error, never a panic.
func Transition(current, desired State) (State, error) {
	allowed, exists := validTransitions[current]
	if !exists || !allowed[desired] {
		return current, fmt.Errorf("invalid dialog transition: %s → %s", current, desired)
	}
	return desired, nil
}

// IsTerminal returns true if the state is final.
func IsTerminal(s State) bool {
	return s == StateFinalized
}
