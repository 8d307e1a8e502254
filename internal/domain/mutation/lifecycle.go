package mutation

import (
	"fmt"
	"time"
)

// transitions is the whole mutation lifecycle:
//
//	IDLE -> OPTIMISTIC_APPLIED -> COMMITTED | ROLLED_BACK
//	IDLE -> COMMITTED | FAILED   (mutations without an optimistic patch)
var transitions = map[State]map[Trigger]State{
	StateIdle: {
		TriggerApplyOptimistic: StateOptimisticApplied,
		TriggerCommit:          StateCommitted,
		TriggerFail:            StateFailed,
	},
	StateOptimisticApplied: {
		TriggerCommit:   StateCommitted,
		TriggerRollback: StateRolledBack,
	},
}

// Next returns the state trigger leads to from from
func Next(from State, trigger Trigger) (State, bool) {
	to, ok := transitions[from][trigger]
	return to, ok
}

// Transition records one fired trigger
type Transition struct {
	From    State     `json:"from"`
	To      State     `json:"to"`
	Trigger Trigger   `json:"trigger"`
	At      time.Time `json:"at"`
}

// Lifecycle tracks the state of one mutation. It is not safe for concurrent
// use; each execution owns its own.
type Lifecycle struct {
	current State
	history []Transition
	now     func() time.Time
}

// NewLifecycle starts a lifecycle in IDLE
func NewLifecycle() *Lifecycle {
	return &Lifecycle{current: StateIdle, now: time.Now}
}

// State returns the current state
func (l *Lifecycle) State() State {
	return l.current
}

// CanFire reports whether trigger is allowed from the current state
func (l *Lifecycle) CanFire(trigger Trigger) bool {
	_, ok := Next(l.current, trigger)
	return ok
}

// Fire moves to the state trigger leads to, or returns ErrInvalidTransition
// and stays put
func (l *Lifecycle) Fire(trigger Trigger) error {
	to, ok := Next(l.current, trigger)
	if !ok {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, l.current)
	}
	l.history = append(l.history, Transition{From: l.current, To: to, Trigger: trigger, At: l.now()})
	l.current = to
	return nil
}

// History returns the transitions taken so far
func (l *Lifecycle) History() []Transition {
	return append([]Transition(nil), l.history...)
}
