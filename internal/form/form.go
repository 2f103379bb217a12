package form

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

var (
	ErrEmptyName      = errors.New("field name is empty")
	ErrDuplicateField = errors.New("duplicate field name")
	ErrMissingDefault = errors.New("custom field type requires an explicit default")
)

// Option configures a form at make time.
type Option func(*options)

type options struct {
	name        string
	startActive bool
}

// Named sets the form name used in accessibility labels. Default "form".
func Named(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// StartActive sets whether rule evaluation is on at mount. Default true.
func StartActive(active bool) Option {
	return func(o *options) {
		o.startActive = active
	}
}

// Maker builds a form from field configs.
type Maker func(configs []FieldConfig, opts ...Option) (*Form, error)

// Install fixes the set of input renderers and returns a Maker that
// builds forms against them.
func Install(inputs Inputs) Maker {
	reg := NewRegistry(inputs)
	return func(configs []FieldConfig, opts ...Option) (*Form, error) {
		return newForm(reg, configs, opts...)
	}
}

// FormProps is what the embedding caller supplies on each render.
// Swapping a rule map for a different map rebuilds the trigger indices and
// refreshes every field; passing the same map again does not.
type FormProps struct {
	Validation ValidationRules
	Readonly   ReadonlyRules
	Hide       HideRules
	Choices    map[string][]Choice
	Handle     *Handle
	Props      map[string]map[string]any // runtime extra props per field
}

// Form is one form instance.
type Form struct {
	name     string
	configs  []FieldConfig
	registry *Registry
	engine   *Engine

	mu      sync.Mutex
	mounted bool
	ruleIDs [3]uintptr
}

func newForm(reg *Registry, configs []FieldConfig, opts ...Option) (*Form, error) {
	o := options{name: "form", startActive: true}
	for _, opt := range opts {
		opt(&o)
	}

	seen := make(map[string]bool, len(configs))
	for _, c := range configs {
		if c.Name == "" {
			return nil, ErrEmptyName
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("field %q: %w", c.Name, ErrDuplicateField)
		}
		seen[c.Name] = true
		if !c.Type.BuiltIn() && c.Default == nil {
			return nil, fmt.Errorf("field %q of type %q: %w", c.Name, c.Type, ErrMissingDefault)
		}
	}

	cfgs := append([]FieldConfig(nil), configs...)
	return &Form{
		name:     o.name,
		configs:  cfgs,
		registry: reg,
		engine:   newEngine(o.name, cfgs, o.startActive),
	}, nil
}

// Name returns the form name.
func (f *Form) Name() string { return f.name }

// Configs returns the field configs in declaration order.
func (f *Form) Configs() []FieldConfig {
	return append([]FieldConfig(nil), f.configs...)
}

// Engine returns the form's evaluation engine.
func (f *Form) Engine() *Engine { return f.engine }

// Close stops the form's in-flight evaluations.
func (f *Form) Close() { f.engine.Close() }

// Render binds the handle, installs the rules, and renders every visible
// field. The first render mounts the form and evaluates every rule.
func (f *Form) Render(props FormProps) ([]*Rendered, error) {
	if props.Handle != nil {
		props.Handle.bind(f.engine)
	}

	ids := [3]uintptr{identity(props.Validation), identity(props.Readonly), identity(props.Hide)}
	f.mu.Lock()
	changed := !f.mounted || ids != f.ruleIDs
	f.mounted = true
	f.ruleIDs = ids
	f.mu.Unlock()

	if changed {
		f.engine.SetRules(Rules{
			Validation: props.Validation,
			Readonly:   props.Readonly,
			Hide:       props.Hide,
		})
	}
	return renderFields(f.name, f.configs, f.registry, f.engine, props)
}

// identity returns the address of a map's backing table, 0 for nil.
func identity[T any](m RuleMap[T]) uintptr {
	if m == nil {
		return 0
	}
	return reflect.ValueOf(m).Pointer()
}
