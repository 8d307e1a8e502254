package event

import (
	"time"

	"github.com/google/uuid"
)

// Event is published by the executor while a mutation moves through its
// lifecycle, and by the cache when invalidated queries fail to reload.
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	MutationID string    `json:"mutation_id,omitempty"`
	Payload    Payload   `json:"payload"`
	Timestamp  time.Time `json:"timestamp"`
}

// Payload carries event details keyed by name
type Payload map[string]interface{}

// NewEvent creates an event with a generated ID stamped now
func NewEvent(eventType Type, mutationID string, payload Payload) *Event {
	if payload == nil {
		payload = Payload{}
	}
	return &Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		MutationID: mutationID,
		Payload:    payload,
		Timestamp:  time.Now(),
	}
}

// String returns the string stored under key, or ""
func (p Payload) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Int returns the integer stored under key. JSON decoded numbers arrive as
// float64 and are truncated.
func (p Payload) Int(key string) int64 {
	switch v := p[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// Strings returns the string slice stored under key
func (p Payload) Strings(key string) []string {
	switch v := p[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, s := range v {
			if str, ok := s.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// Settled reports whether the event closes a mutation
func (e *Event) Settled() bool {
	for _, t := range MutationSettledTypes {
		if e.Type == t {
			return true
		}
	}
	return false
}
