// Package activity provides the activity store interface and implementations
// for the per-session form event history.
package activity

import (
	"encoding/json"
	"time"
)

// Entry is one recorded form event.
type Entry struct {
	Seq        int64           `json:"seq"`
	EventID    string          `json:"event_id"`
	SessionID  string          `json:"session_id"`
	Form       string          `json:"form"`
	EventType  string          `json:"event_type"`
	Field      string          `json:"field,omitempty"`
	Version    uint64          `json:"version"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// QueryOptions controls filtering and pagination for session history queries.
type QueryOptions struct {
	Since  *time.Time
	Until  *time.Time
	Types  []string // filter to specific event types
	Field  string   // filter to one field
	Limit  int      // max results (default: 100, max: 500)
	Cursor string   // seq of the last entry of the previous page
}

// DefaultQueryOptions returns QueryOptions with sensible defaults.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{Limit: 100}
}

func (o QueryOptions) limit() int {
	if o.Limit <= 0 || o.Limit > 500 {
		return 100
	}
	return o.Limit
}
