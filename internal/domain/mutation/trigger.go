package mutation

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerApplyOptimistic Trigger = "APPLY_OPTIMISTIC"
	TriggerCommit          Trigger = "COMMIT"
	TriggerRollback        Trigger = "ROLLBACK"
	TriggerFail            Trigger = "FAIL"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
