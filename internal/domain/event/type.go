package event

// Type identifies the type of domain event
type Type string

const (
	TypeMutationValidationFailed Type = "mutation.validation_failed"
	TypeMutationOptimistic       Type = "mutation.optimistic_applied"
	TypeMutationCommitted        Type = "mutation.committed"
	TypeMutationRolledBack       Type = "mutation.rolled_back"
	TypeMutationFailed           Type = "mutation.failed"
	TypeQueriesInvalidated       Type = "query.invalidated"
	TypeQueryFetchFailed         Type = "query.fetch_failed"
)

// MutationSettledTypes are the types emitted once per executed mutation
var MutationSettledTypes = []Type{
	TypeMutationValidationFailed,
	TypeMutationCommitted,
	TypeMutationRolledBack,
	TypeMutationFailed,
}

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeMutationValidationFailed,
		TypeMutationOptimistic,
		TypeMutationCommitted,
		TypeMutationRolledBack,
		TypeMutationFailed,
		TypeQueriesInvalidated,
		TypeQueryFetchFailed:
		return true
	default:
		return false
	}
}
