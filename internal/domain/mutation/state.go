package mutation

// State represents a step in the lifecycle of one mutation instance
type State string

const (
	StateIdle              State = "IDLE"
	StateOptimisticApplied State = "OPTIMISTIC_APPLIED"
	StateCommitted         State = "COMMITTED"
	StateRolledBack        State = "ROLLED_BACK"
	StateFailed            State = "FAILED"
)

var validStates = map[State]bool{
	StateIdle:              true,
	StateOptimisticApplied: true,
	StateCommitted:         true,
	StateRolledBack:        true,
	StateFailed:            true,
}

var terminalStates = map[State]bool{
	StateCommitted:  true,
	StateRolledBack: true,
	StateFailed:     true,
}

// IsTerminal returns true if no further transitions are allowed
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known lifecycle state
func (s State) IsValid() bool {
	return validStates[s]
}
