package form

import (
	"sync"
)

// Axis names one of the three independent rule results a field carries.
type Axis int

const (
	AxisValid Axis = iota
	AxisReadonly
	AxisHidden
)

func (a Axis) String() string {
	switch a {
	case AxisValid:
		return "valid"
	case AxisReadonly:
		return "readonly"
	case AxisHidden:
		return "hidden"
	}
	return "unknown"
}

type axisKey struct {
	axis  Axis
	field string
}

// Store holds field values and rule results. Reads through the exported
// accessors never observe an unset result: while the form is inactive, or
// before a rule has resolved, they report ok, editable and visible.
type Store struct {
	mu       sync.RWMutex
	data     Data
	version  uint64
	active   bool
	valid    map[string]ValidationResult
	readonly map[string]bool
	hidden   map[string]bool

	// applied is the snapshot version of the last result merged per axis;
	// results from older snapshots are dropped.
	applied map[axisKey]uint64
	// stale marks results that must be recomputed the next time
	// evaluation is active.
	stale map[axisKey]bool
	// gen is the rule set generation; results computed under an earlier
	// rule set are dropped.
	gen uint64
}

func newStore(data Data, active bool) *Store {
	s := &Store{
		data:     data,
		active:   active,
		valid:    make(map[string]ValidationResult),
		readonly: make(map[string]bool),
		hidden:   make(map[string]bool),
		applied:  make(map[axisKey]uint64),
		stale:    make(map[axisKey]bool),
	}
	for name := range data {
		for _, a := range []Axis{AxisValid, AxisReadonly, AxisHidden} {
			s.stale[axisKey{a, name}] = true
		}
	}
	return s
}

// Value returns the current value of a field.
func (s *Store) Value(name string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data[name]
}

// Valid returns the validity of a field.
func (s *Store) Valid(name string) ValidationResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.valid[name]; ok && s.active {
		return r
	}
	return OK("")
}

// Readonly reports whether a field is readonly.
func (s *Store) Readonly(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active && s.readonly[name]
}

// Hidden reports whether a field is hidden.
func (s *Store) Hidden(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active && s.hidden[name]
}

// Active reports whether rule results are surfaced.
func (s *Store) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Snapshot returns the current data snapshot and its version. The map is
// shared and must not be modified.
func (s *Store) Snapshot() (Data, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data, s.version
}

// set publishes a new snapshot with name set to v.
func (s *Store) set(name string, v any) (Data, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = s.data.with(name, v)
	s.version++
	return s.data, s.version
}

// setActive flips the gate and reports whether it changed.
func (s *Store) setActive(active bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.active != active
	s.active = active
	return changed
}

// hiddenRaw reports the stored hidden flag regardless of the gate.
func (s *Store) hiddenRaw(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hidden[name]
}

func (s *Store) markStale(a Axis, names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		s.stale[axisKey{a, name}] = true
	}
}

func (s *Store) isStale(a Axis, name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stale[axisKey{a, name}]
}

// launched clears the stale mark once an evaluation is under way.
func (s *Store) launched(a Axis, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stale, axisKey{a, name})
}

// accept records version as applied for key unless the result belongs to
// a replaced rule set or a newer snapshot's result already landed.
// Callers hold s.mu.
func (s *Store) accept(key axisKey, gen, version uint64) bool {
	if gen != s.gen {
		return false
	}
	if last, ok := s.applied[key]; ok && version < last {
		return false
	}
	s.applied[key] = version
	return true
}

func (s *Store) resolveValid(name string, gen, version uint64, r ValidationResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.accept(axisKey{AxisValid, name}, gen, version) {
		return false
	}
	s.valid[name] = r
	return true
}

func (s *Store) resolveReadonly(name string, gen, version uint64, readonly bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.accept(axisKey{AxisReadonly, name}, gen, version) {
		return false
	}
	s.readonly[name] = readonly
	return true
}

// resolveHidden merges a hide result. revealed is true when the field went
// from hidden to visible.
func (s *Store) resolveHidden(name string, gen, version uint64, hidden bool) (applied, revealed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.accept(axisKey{AxisHidden, name}, gen, version) {
		return false, false
	}
	revealed = s.hidden[name] && !hidden
	s.hidden[name] = hidden
	return true, revealed
}

// swapRules adopts rule set generation gen and drops results for fields
// that no longer have a rule in a family.
func (s *Store) swapRules(gen uint64, r Rules) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen = gen
	for name := range s.valid {
		if _, ok := r.Validation[name]; !ok {
			delete(s.valid, name)
		}
	}
	for name := range s.readonly {
		if _, ok := r.Readonly[name]; !ok {
			delete(s.readonly, name)
		}
	}
	for name := range s.hidden {
		if _, ok := r.Hide[name]; !ok {
			delete(s.hidden, name)
		}
	}
}

// markAllStale flags every axis of names for recomputation.
func (s *Store) markAllStale(names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		for _, a := range []Axis{AxisValid, AxisReadonly, AxisHidden} {
			s.stale[axisKey{a, name}] = true
		}
	}
}

// errors returns the detail of every erroring field, in the given order.
func (s *Store) errors(names []string) []any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.active {
		return nil
	}
	var out []any
	for _, name := range names {
		if r, ok := s.valid[name]; ok && !r.IsOK() {
			out = append(out, r.Detail)
		}
	}
	return out
}
