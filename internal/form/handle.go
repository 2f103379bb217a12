package form

import (
	"fmt"
	"sync"
)

// Handle is the caller's imperative view of a form. The caller owns the
// value and passes it in FormProps; every Render rebinds it, so methods
// always act on the form's current state. Methods on an unbound handle
// do nothing and return zero values.
type Handle struct {
	mu     sync.RWMutex
	engine *Engine
}

func (h *Handle) bind(e *Engine) {
	h.mu.Lock()
	h.engine = e
	h.mu.Unlock()
}

func (h *Handle) current() *Engine {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.engine
}

// Bound reports whether a form has rendered with this handle.
func (h *Handle) Bound() bool {
	return h.current() != nil
}

// GetForm returns a copy of the current values of every configured field.
func (h *Handle) GetForm() Data {
	e := h.current()
	if e == nil {
		return nil
	}
	data, _ := e.store.Snapshot()
	out := make(Data, len(e.names))
	for _, name := range e.names {
		out[name] = data[name]
	}
	return out
}

// SetForm applies every key of partial that names a configured field, in
// field order, exactly as if the user had edited it. Other keys are
// ignored.
func (h *Handle) SetForm(partial Data) {
	e := h.current()
	if e == nil {
		return
	}
	for _, name := range e.names {
		if v, ok := partial[name]; ok {
			e.SetValue(name, v)
		}
	}
}

// GetErrors returns the detail of every field whose validity is an error.
func (h *Handle) GetErrors() []string {
	e := h.current()
	if e == nil {
		return nil
	}
	details := e.store.errors(e.names)
	out := make([]string, 0, len(details))
	for _, d := range details {
		out = append(out, fmt.Sprint(d))
	}
	return out
}

// IsFormValid reports whether no field is in the error state. A form with
// no fields is valid.
func (h *Handle) IsFormValid() bool {
	e := h.current()
	if e == nil {
		return true
	}
	for _, name := range e.names {
		if !e.store.Valid(name).IsOK() {
			return false
		}
	}
	return true
}

// SetActive turns rule evaluation on or off.
func (h *Handle) SetActive(active bool) {
	if e := h.current(); e != nil {
		e.SetActive(active)
	}
}

// GetActive reports whether rule evaluation is on.
func (h *Handle) GetActive() bool {
	if e := h.current(); e != nil {
		return e.Active()
	}
	return false
}

// Refresh schedules a full re-evaluation.
func (h *Handle) Refresh() {
	if e := h.current(); e != nil {
		e.Refresh()
	}
}

// Subscribe registers fn for state-change events of the bound form.
func (h *Handle) Subscribe(fn Listener) (cancel func()) {
	if e := h.current(); e != nil {
		return e.Subscribe(fn)
	}
	return func() {}
}
