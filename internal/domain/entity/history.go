package entity

import "time"

// HistoryEntry is an append-only audit record of a client
type HistoryEntry struct {
	ID        int64       `json:"id"`
	ClientID  int64       `json:"client_id"`
	Timestamp time.Time   `json:"timestamp"`
	Type      HistoryType `json:"type"`
	Note      string      `json:"note,omitempty"`
}
