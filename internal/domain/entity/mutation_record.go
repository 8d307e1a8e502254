package entity

import "time"

// MutationRecord is the audit trail of one executed mutation
type MutationRecord struct {
	ID          int64     `json:"id"`
	MutationID  string    `json:"mutation_id"`
	Kind        string    `json:"kind"`
	ClientID    int64     `json:"client_id,omitempty"`
	State       string    `json:"state"`
	FailureKind string    `json:"failure_kind,omitempty"`
	Error       string    `json:"error,omitempty"`
	Payload     string    `json:"payload,omitempty"` // JSON of the submitted input
	ElapsedMS   int64     `json:"elapsed_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// Failed reports whether the mutation did not commit
func (r MutationRecord) Failed() bool {
	return r.FailureKind != ""
}
