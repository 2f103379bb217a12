package wire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/matthewbaird/formengine/internal/event"
	"github.com/matthewbaird/formengine/internal/eventbus"
	"github.com/matthewbaird/formengine/internal/form"
	"github.com/matthewbaird/formengine/internal/inputs"
	"github.com/matthewbaird/formengine/internal/session"
)

const (
	// settleTimeout bounds how long a mutation waits for evaluations
	// before the render is sent anyway.
	settleTimeout = 5 * time.Second

	// eventBuffer is the per-connection backlog of pushed events.
	eventBuffer = 64
)

// FormFactory builds a fresh form instance and the props it renders with.
type FormFactory func() (*form.Form, form.FormProps, error)

// Handler manages WebSocket connections for live forms.
type Handler struct {
	sessions *session.Manager
	newForm  FormFactory
	bus      *eventbus.Bus
}

// NewHandler creates a WebSocket handler. bus may be nil, in which case no
// events are pushed to clients.
func NewHandler(sessions *session.Manager, newForm FormFactory, bus *eventbus.Bus) *Handler {
	return &Handler{
		sessions: sessions,
		newForm:  newForm,
		bus:      bus,
	}
}

// ServeHTTP upgrades to WebSocket and runs the message loop.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Printf("wire: websocket accept: %v", err)
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	f, props, err := h.newForm()
	if err != nil {
		h.sendError(ctx, conn, "", "form_error", err.Error())
		conn.Close(websocket.StatusInternalError, "form unavailable")
		return
	}
	sess, err := h.sessions.Create(f, props)
	if err != nil {
		f.Close()
		h.sendError(ctx, conn, "", "form_error", err.Error())
		conn.Close(websocket.StatusInternalError, "form unavailable")
		return
	}
	defer h.sessions.Remove(sess.ID)

	h.send(ctx, conn, ServerMessage{
		Type: "session",
		Data: SessionData{SessionID: sess.ID, Form: f.Name()},
	})
	h.sendRender(ctx, conn, sess, "")

	if h.bus != nil {
		stop := h.pushEvents(ctx, conn, sess.ID)
		defer stop()
	}

	// Message loop
	for {
		var msg ClientMessage
		err := wsjson.Read(ctx, conn, &msg)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				log.Printf("wire: connection closed: %v", websocket.CloseStatus(err))
			}
			return
		}
		sess.Touch()

		switch msg.Type {
		case "set":
			h.handleSet(ctx, conn, sess, msg)
		case "set_form":
			h.handleSetForm(ctx, conn, sess, msg)
		case "set_active":
			h.handleSetActive(ctx, conn, sess, msg)
		case "refresh":
			sess.Handle.Refresh()
			h.sendRender(ctx, conn, sess, msg.ID)
		case "get_form":
			h.send(ctx, conn, ServerMessage{
				Type:      "form",
				RequestID: msg.ID,
				Data:      FormData{Values: encodeValues(sess)},
			})
		case "get_errors":
			h.send(ctx, conn, ServerMessage{
				Type:      "errors",
				RequestID: msg.ID,
				Data:      errorsData(sess),
			})
		case "ping":
			h.send(ctx, conn, ServerMessage{Type: "pong", RequestID: msg.ID})
		default:
			h.sendError(ctx, conn, msg.ID, "unknown_type", fmt.Sprintf("unknown message type: %s", msg.Type))
		}
	}
}

func (h *Handler) handleSet(ctx context.Context, conn *websocket.Conn, sess *session.Session, msg ClientMessage) {
	var data SetData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		h.sendError(ctx, conn, msg.ID, "invalid_data", "invalid set data")
		return
	}
	cfg, ok := fieldConfig(sess, data.Field)
	if !ok {
		h.sendError(ctx, conn, msg.ID, "unknown_field", fmt.Sprintf("unknown field: %s", data.Field))
		return
	}
	v, err := inputs.Decode(cfg.Type, data.Value)
	if err != nil {
		h.sendError(ctx, conn, msg.ID, "invalid_value", err.Error())
		return
	}
	sess.Handle.SetForm(form.Data{data.Field: v})
	h.sendRender(ctx, conn, sess, msg.ID)
}

func (h *Handler) handleSetForm(ctx context.Context, conn *websocket.Conn, sess *session.Session, msg ClientMessage) {
	var data SetFormData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		h.sendError(ctx, conn, msg.ID, "invalid_data", "invalid set_form data")
		return
	}
	values := make(form.Data, len(data.Values))
	for name, raw := range data.Values {
		cfg, ok := fieldConfig(sess, name)
		if !ok {
			continue
		}
		v, err := inputs.Decode(cfg.Type, raw)
		if err != nil {
			h.sendError(ctx, conn, msg.ID, "invalid_value", fmt.Sprintf("%s: %v", name, err))
			return
		}
		values[name] = v
	}
	sess.Handle.SetForm(values)
	h.sendRender(ctx, conn, sess, msg.ID)
}

func (h *Handler) handleSetActive(ctx context.Context, conn *websocket.Conn, sess *session.Session, msg ClientMessage) {
	var data SetActiveData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		h.sendError(ctx, conn, msg.ID, "invalid_data", "invalid set_active data")
		return
	}
	sess.Handle.SetActive(data.Active)
	h.sendRender(ctx, conn, sess, msg.ID)
}

// sendRender waits for in-flight evaluations, then renders the session.
func (h *Handler) sendRender(ctx context.Context, conn *websocket.Conn, sess *session.Session, requestID string) {
	settleCtx, cancel := context.WithTimeout(ctx, settleTimeout)
	err := sess.Form.Engine().Wait(settleCtx)
	cancel()
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return
	}

	rendered, err := sess.Render()
	if err != nil {
		h.sendError(ctx, conn, requestID, "render_error", err.Error())
		return
	}
	h.send(ctx, conn, ServerMessage{
		Type:      "render",
		RequestID: requestID,
		Data:      RenderFields(sess.Form.Configs(), rendered, sess.Handle),
	})
}

// pushEvents forwards the session's bus events to the client until the
// returned stop func is called.
func (h *Handler) pushEvents(ctx context.Context, conn *websocket.Conn, sessionID string) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan event.FormEvent, eventBuffer)
	name := "ws:" + sessionID
	h.bus.Subscribe(name, eventbus.HandlerFunc(func(_ context.Context, evt event.FormEvent) error {
		if evt.SessionID != sessionID {
			return nil
		}
		select {
		case ch <- evt:
		default:
			log.Printf("wire: %s backlog full, dropping %s", sessionID[:8], evt.Type)
		}
		return nil
	}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case evt := <-ch:
				h.send(ctx, conn, ServerMessage{Type: "event", Data: evt})
			case <-ctx.Done():
				return
			}
		}
	}()
	return func() {
		h.bus.Unsubscribe(name)
		cancel()
		<-done
	}
}

// RenderFields pairs rendered output with the configs it came from.
func RenderFields(configs []form.FieldConfig, rendered []*form.Rendered, handle *form.Handle) RenderData {
	fields := make([]FieldData, len(configs))
	for i, c := range configs {
		fields[i] = FieldData{Name: c.Name, Type: string(c.Type)}
		if i >= len(rendered) || rendered[i] == nil {
			fields[i].Hidden = true
			continue
		}
		fields[i].HTML = string(rendered[i].HTML)
	}
	return RenderData{
		Fields: fields,
		Active: handle.GetActive(),
		Valid:  handle.IsFormValid(),
	}
}

func fieldConfig(sess *session.Session, name string) (form.FieldConfig, bool) {
	for _, c := range sess.Form.Configs() {
		if c.Name == name {
			return c, true
		}
	}
	return form.FieldConfig{}, false
}

func encodeValues(sess *session.Session) map[string]any {
	data := sess.Handle.GetForm()
	out := make(map[string]any, len(data))
	for _, c := range sess.Form.Configs() {
		out[c.Name] = inputs.Encode(c.Type, data[c.Name])
	}
	return out
}

func errorsData(sess *session.Session) ErrorsData {
	errs := sess.Handle.GetErrors()
	if errs == nil {
		errs = []string{}
	}
	return ErrorsData{Errors: errs, Valid: sess.Handle.IsFormValid()}
}

func (h *Handler) send(ctx context.Context, conn *websocket.Conn, msg ServerMessage) {
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		log.Printf("wire: write error: %v", err)
	}
}

func (h *Handler) sendError(ctx context.Context, conn *websocket.Conn, requestID, code, message string) {
	h.send(ctx, conn, ServerMessage{
		Type:      "error",
		RequestID: requestID,
		Data: ErrorData{
			Code:    code,
			Message: message,
		},
	})
}
