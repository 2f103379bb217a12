// Package event provides form event recording for live sessions.
// Events are written as activity.Entry records via the activity.Store
// interface, then published to the in-process event bus for downstream
// consumers.
package event

import (
	"context"

	"github.com/matthewbaird/formengine/internal/activity"
)

// Recorder writes form events to the activity store.
type Recorder interface {
	Record(ctx context.Context, evt FormEvent) error
}

// Publisher sends form events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, evt FormEvent)
}

// ActivityRecorder implements Recorder by writing one activity.Entry per
// event. If a Publisher is set, the event is also published after the
// store write succeeds.
type ActivityRecorder struct {
	store activity.Store
	bus   Publisher
}

// NewActivityRecorder creates a new ActivityRecorder backed by the given store.
func NewActivityRecorder(store activity.Store) *ActivityRecorder {
	return &ActivityRecorder{store: store}
}

// SetPublisher attaches an event bus. Events are published after store writes.
func (r *ActivityRecorder) SetPublisher(p Publisher) {
	r.bus = p
}

// Record writes evt to the store and publishes it to the event bus.
func (r *ActivityRecorder) Record(ctx context.Context, evt FormEvent) error {
	entry := activity.Entry{
		EventID:    evt.ID,
		SessionID:  evt.SessionID,
		Form:       evt.Form,
		EventType:  evt.Type,
		Field:      evt.Field,
		Version:    evt.Version,
		OccurredAt: evt.OccurredAt,
		Payload:    evt.Payload,
	}
	if err := r.store.WriteEntries(ctx, []activity.Entry{entry}); err != nil {
		return err
	}

	if r.bus != nil {
		r.bus.Publish(ctx, evt)
	}
	return nil
}
