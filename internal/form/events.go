package form

import "sync"

// EventType identifies a state change reported to subscribers.
type EventType string

const (
	EventValueChanged     EventType = "value_changed"
	EventValidityResolved EventType = "validity_resolved"
	EventReadonlyResolved EventType = "readonly_resolved"
	EventHiddenResolved   EventType = "hidden_resolved"
	EventActiveChanged    EventType = "active_changed"
	EventRefreshed        EventType = "refreshed"
)

// Event describes one state change. Value carries the new field value, the
// merged rule result or the new active flag, depending on Type.
type Event struct {
	Form    string    `json:"form"`
	Type    EventType `json:"type"`
	Field   string    `json:"field,omitempty"`
	Version uint64    `json:"version"`
	Value   any       `json:"value,omitempty"`
}

// Listener receives events. It runs on the goroutine that caused the
// change and must not block.
type Listener func(Event)

type listeners struct {
	mu   sync.RWMutex
	next int
	byID map[int]Listener
}

func (l *listeners) add(fn Listener) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.byID == nil {
		l.byID = make(map[int]Listener)
	}
	id := l.next
	l.next++
	l.byID[id] = fn
	return func() {
		l.mu.Lock()
		delete(l.byID, id)
		l.mu.Unlock()
	}
}

func (l *listeners) emit(evt Event) {
	l.mu.RLock()
	fns := make([]Listener, 0, len(l.byID))
	for _, fn := range l.byID {
		fns = append(fns, fn)
	}
	l.mu.RUnlock()
	for _, fn := range fns {
		fn(evt)
	}
}
