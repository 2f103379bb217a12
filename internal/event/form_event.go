package event

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/matthewbaird/formengine/internal/form"
)

// FormEvent carries the canonical shape of every form state change as it
// leaves the engine: tagged with its session and given a stable ID.
type FormEvent struct {
	ID         string          `json:"id"`
	SessionID  string          `json:"session_id"`
	Form       string          `json:"form"`
	Type       string          `json:"type"`
	Field      string          `json:"field,omitempty"`
	Version    uint64          `json:"version"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

func newID() string { return uuid.New().String() }

// FromForm wraps an engine event for the given session.
func FromForm(sessionID string, evt form.Event) FormEvent {
	return FormEvent{
		ID:         newID(),
		SessionID:  sessionID,
		Form:       evt.Form,
		Type:       string(evt.Type),
		Field:      evt.Field,
		Version:    evt.Version,
		OccurredAt: time.Now(),
		Payload:    payload(evt.Value),
	}
}

// payload encodes v, mapping values JSON cannot carry (NaN, zero times) to
// null.
func payload(v any) json.RawMessage {
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return json.RawMessage("null")
		}
	case time.Time:
		if x.IsZero() {
			return json.RawMessage("null")
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return b
}
