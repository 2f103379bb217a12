package eventbus

import (
	"context"
	"log"

	"github.com/matthewbaird/formengine/internal/event"
)

// LogConsumer logs all form events for observability.
type LogConsumer struct{}

func NewLogConsumer() *LogConsumer { return &LogConsumer{} }

func (c *LogConsumer) HandleEvent(_ context.Context, evt event.FormEvent) error {
	session := evt.SessionID
	if len(session) > 8 {
		session = session[:8]
	}
	if evt.Field != "" {
		log.Printf("event: %s [%s/%s] field=%s v%d payload=%s",
			evt.Type, evt.Form, session, evt.Field, evt.Version, evt.Payload)
		return nil
	}
	log.Printf("event: %s [%s/%s] v%d", evt.Type, evt.Form, session, evt.Version)
	return nil
}
