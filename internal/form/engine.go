package form

import (
	"context"
	"fmt"
	"sync"
)

// Engine runs rules against data snapshots and merges their results into
// a Store. Every predicate call happens on its own goroutine; results are
// merged against the latest store state, and a result computed from an
// older snapshot than the one already applied to that field is dropped.
type Engine struct {
	name    string
	configs []FieldConfig
	names   []string
	known   map[string]bool
	store   *Store

	ctx    context.Context
	cancel context.CancelFunc

	rulesMu sync.RWMutex
	idx     *indices

	// refresh coalescing: pending is set while a pass is scheduled but has
	// not yet taken its snapshot.
	passMu      sync.Mutex
	pending     bool
	pendingFull bool

	work tracker
	subs listeners
}

func newEngine(name string, configs []FieldConfig, active bool) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		name:    name,
		configs: configs,
		known:   make(map[string]bool, len(configs)),
		store:   newStore(initialData(configs), active),
		ctx:     ctx,
		cancel:  cancel,
		idx:     buildIndices(Rules{}),
	}
	for _, c := range configs {
		e.names = append(e.names, c.Name)
		e.known[c.Name] = true
	}
	return e
}

// Store exposes the field state for reading.
func (e *Engine) Store() *Store { return e.store }

// Subscribe registers fn for every subsequent event and returns a function
// that removes it.
func (e *Engine) Subscribe(fn Listener) (cancel func()) {
	return e.subs.add(fn)
}

func (e *Engine) emit(evt Event) {
	evt.Form = e.name
	e.subs.emit(evt)
}

func (e *Engine) current() *indices {
	e.rulesMu.RLock()
	defer e.rulesMu.RUnlock()
	return e.idx
}

// SetRules replaces all three rule families, rebuilds the trigger indices
// and schedules a full refresh. Results for fields that lost their rule
// fall back to the neutral default, and evaluations still running under
// the previous rules are discarded when they finish.
func (e *Engine) SetRules(r Rules) {
	e.rulesMu.Lock()
	idx := buildIndices(r)
	idx.gen = e.idx.gen + 1
	e.idx = idx
	e.store.swapRules(idx.gen, r)
	e.rulesMu.Unlock()

	e.Refresh()
}

// SetValue stores v for a configured field and re-runs the field's own
// rules followed by the rules of every field that lists it as a trigger.
// Unknown field names are ignored.
func (e *Engine) SetValue(name string, v any) {
	if !e.known[name] {
		return
	}
	data, version := e.store.set(name, v)
	e.emit(Event{Type: EventValueChanged, Field: name, Version: version, Value: v})

	idx := e.current()
	if !e.store.Active() {
		e.store.markStale(AxisValid, append([]string{name}, idx.valid.Dependents(name)...)...)
		e.store.markStale(AxisReadonly, append([]string{name}, idx.readonly.Dependents(name)...)...)
		e.store.markStale(AxisHidden, append([]string{name}, idx.hide.Dependents(name)...)...)
		return
	}

	e.runValidation(idx, name, data, version)
	e.runReadonly(idx, name, data, version)
	e.runHide(idx, name, data, version, false)
	for _, dep := range idx.valid.Dependents(name) {
		e.runValidation(idx, dep, data, version)
	}
	for _, dep := range idx.readonly.Dependents(name) {
		e.runReadonly(idx, dep, data, version)
	}
	for _, dep := range idx.hide.Dependents(name) {
		e.runHide(idx, dep, data, version, false)
	}
}

// Refresh schedules a pass that re-runs every rule of every field.
// Calls made before the pass takes its snapshot share that pass.
func (e *Engine) Refresh() {
	e.schedule(true)
}

// SetActive turns rule evaluation on or off. Turning it back on re-runs
// only the rules whose inputs changed while it was off, so earlier
// results surface again unchanged.
func (e *Engine) SetActive(active bool) {
	if e.store.setActive(active) {
		e.emit(Event{Type: EventActiveChanged, Value: active})
	}
	e.schedule(false)
}

// Active reports whether rule evaluation is on.
func (e *Engine) Active() bool { return e.store.Active() }

// Wait blocks until no evaluation or scheduled pass is outstanding.
func (e *Engine) Wait(ctx context.Context) error {
	return e.work.wait(ctx)
}

// Close cancels the context handed to in-flight predicates.
func (e *Engine) Close() {
	e.cancel()
}

func (e *Engine) schedule(full bool) {
	e.passMu.Lock()
	e.pendingFull = e.pendingFull || full
	if e.pending {
		e.passMu.Unlock()
		return
	}
	e.pending = true
	e.work.add()
	e.passMu.Unlock()

	go func() {
		defer e.work.done()
		e.pass()
	}()
}

func (e *Engine) pass() {
	data, version := e.store.Snapshot()

	e.passMu.Lock()
	full := e.pendingFull
	e.pending, e.pendingFull = false, false
	e.passMu.Unlock()

	if !e.store.Active() {
		if full {
			// Owed to the next activation.
			e.store.markAllStale(e.names)
		}
		return
	}
	idx := e.current()
	for _, name := range e.names {
		valid := full || e.store.isStale(AxisValid, name)
		readonly := full || e.store.isStale(AxisReadonly, name)
		hide := full || e.store.isStale(AxisHidden, name)
		if rule, ok := idx.rules.Hide[name]; ok && rule.Check != nil && hide {
			// Visibility first; a field that turns out hidden keeps its
			// other rules stale instead of running them.
			if valid {
				e.store.markStale(AxisValid, name)
			}
			if readonly {
				e.store.markStale(AxisReadonly, name)
			}
			e.runHide(idx, name, data, version, true)
			continue
		}
		if valid {
			e.runValidation(idx, name, data, version)
		}
		if readonly {
			e.runReadonly(idx, name, data, version)
		}
	}
	e.emit(Event{Type: EventRefreshed, Version: version})
}

func (e *Engine) runValidation(idx *indices, name string, data Data, version uint64) {
	rule, ok := idx.rules.Validation[name]
	if !ok || rule.Check == nil {
		return
	}
	if e.store.hiddenRaw(name) {
		e.store.markStale(AxisValid, name)
		return
	}
	e.store.launched(AxisValid, name)
	e.work.add()
	go func() {
		defer e.work.done()
		res, err := call(e.ctx, rule.Check, data)
		if err != nil {
			res = Fail(err.Error())
		}
		if e.store.resolveValid(name, idx.gen, version, res) {
			e.emit(Event{Type: EventValidityResolved, Field: name, Version: version, Value: res})
		}
	}()
}

func (e *Engine) runReadonly(idx *indices, name string, data Data, version uint64) {
	rule, ok := idx.rules.Readonly[name]
	if !ok || rule.Check == nil {
		return
	}
	if e.store.hiddenRaw(name) {
		e.store.markStale(AxisReadonly, name)
		return
	}
	e.store.launched(AxisReadonly, name)
	e.work.add()
	go func() {
		defer e.work.done()
		readonly, err := call(e.ctx, rule.Check, data)
		if err != nil {
			readonly = false
		}
		if e.store.resolveReadonly(name, idx.gen, version, readonly) {
			e.emit(Event{Type: EventReadonlyResolved, Field: name, Version: version, Value: readonly})
		}
	}()
}

// runHide evaluates the hide rule of name. When the field is revealed its
// validation and readonly rules run against the latest data; with follow
// set, whichever of them are still stale run once visibility is known.
func (e *Engine) runHide(idx *indices, name string, data Data, version uint64, follow bool) {
	rule, ok := idx.rules.Hide[name]
	if !ok || rule.Check == nil {
		return
	}
	e.store.launched(AxisHidden, name)
	e.work.add()
	go func() {
		defer e.work.done()
		hidden, err := call(e.ctx, rule.Check, data)
		if err != nil {
			hidden = false
		}
		applied, revealed := e.store.resolveHidden(name, idx.gen, version, hidden)
		if applied {
			e.emit(Event{Type: EventHiddenResolved, Field: name, Version: version, Value: hidden})
		}
		if !(revealed || follow) || !e.store.Active() {
			return
		}
		latest, v := e.store.Snapshot()
		cur := e.current()
		if revealed || e.store.isStale(AxisValid, name) {
			e.runValidation(cur, name, latest, v)
		}
		if revealed || e.store.isStale(AxisReadonly, name) {
			e.runReadonly(cur, name, latest, v)
		}
	}()
}

// tracker counts outstanding goroutines so Wait can block until the
// engine is idle.
type tracker struct {
	mu   sync.Mutex
	n    int
	idle chan struct{}
}

func (t *tracker) add() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.n == 0 {
		t.idle = make(chan struct{})
	}
	t.n++
}

func (t *tracker) done() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.n--
	if t.n < 0 {
		panic(fmt.Sprintf("form: tracker count below zero (%d)", t.n))
	}
	if t.n == 0 {
		close(t.idle)
	}
}

func (t *tracker) wait(ctx context.Context) error {
	for {
		t.mu.Lock()
		if t.n == 0 {
			t.mu.Unlock()
			return nil
		}
		idle := t.idle
		t.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
