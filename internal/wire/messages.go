// Package wire defines the WebSocket protocol for live form sessions.
package wire

import "encoding/json"

// ── Client → Server messages ────────────────────────────────────────────────

// ClientMessage is the envelope for all client-to-server WebSocket messages.
type ClientMessage struct {
	Type string          `json:"type"` // "set", "set_form", "set_active", "refresh", "get_form", "get_errors", "ping"
	ID   string          `json:"id"`   // Client-assigned request ID
	Data json.RawMessage `json:"data,omitempty"`
}

// SetData is the payload for "set" messages.
type SetData struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

// SetFormData is the payload for "set_form" messages.
type SetFormData struct {
	Values map[string]json.RawMessage `json:"values"`
}

// SetActiveData is the payload for "set_active" messages.
type SetActiveData struct {
	Active bool `json:"active"`
}

// ── Server → Client messages ────────────────────────────────────────────────

// ServerMessage is the envelope for all server-to-client WebSocket messages.
type ServerMessage struct {
	Type      string `json:"type"`                 // "session", "render", "form", "errors", "event", "error", "pong"
	RequestID string `json:"request_id,omitempty"` // Echoes client ID
	Data      any    `json:"data,omitempty"`
}

// SessionData carries session information.
type SessionData struct {
	SessionID string `json:"session_id"`
	Form      string `json:"form"`
}

// RenderData carries the rendered fields in declaration order.
type RenderData struct {
	Fields []FieldData `json:"fields"`
	Active bool        `json:"active"`
	Valid  bool        `json:"valid"`
}

// FieldData is one rendered field. Hidden fields carry no HTML.
type FieldData struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Hidden bool   `json:"hidden,omitempty"`
	HTML   string `json:"html,omitempty"`
}

// FormData carries the current field values.
type FormData struct {
	Values map[string]any `json:"values"`
}

// ErrorsData carries the current validation errors.
type ErrorsData struct {
	Errors []string `json:"errors"`
	Valid  bool     `json:"valid"`
}

// ErrorData carries an error message.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
