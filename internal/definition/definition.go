// Package definition loads form definitions from CUE, YAML or JSON files
// and turns them into field configs and compiled rules.
package definition

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/matthewbaird/formengine/internal/expr"
	"github.com/matthewbaird/formengine/internal/form"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"

	defaultMessage = "invalid"
)

// ErrUnknownField is returned when a rule or trigger names a field the
// definition does not declare.
var ErrUnknownField = errors.New("unknown field")

// Definition is a declarative form: fields, rule expressions and options.
type Definition struct {
	Name        string                   `json:"name" yaml:"name"`
	StartActive *bool                    `json:"start_active,omitempty" yaml:"start_active,omitempty"`
	Fields      []FieldDef               `json:"fields" yaml:"fields"`
	Rules       RuleDefs                 `json:"rules,omitempty" yaml:"rules,omitempty"`
	Choices     map[string][]form.Choice `json:"choices,omitempty" yaml:"choices,omitempty"`
}

// FieldDef is one field as written in a definition file.
type FieldDef struct {
	Name    string         `json:"name" yaml:"name"`
	Label   string         `json:"label,omitempty" yaml:"label,omitempty"`
	Type    string         `json:"type,omitempty" yaml:"type,omitempty"`
	Default any            `json:"default,omitempty" yaml:"default,omitempty"`
	Props   map[string]any `json:"props,omitempty" yaml:"props,omitempty"`
}

// RuleDefs groups rule expressions by family, keyed by field name.
type RuleDefs struct {
	Validation map[string]RuleDef `json:"validation,omitempty" yaml:"validation,omitempty"`
	Readonly   map[string]RuleDef `json:"readonly,omitempty" yaml:"readonly,omitempty"`
	Hide       map[string]RuleDef `json:"hide,omitempty" yaml:"hide,omitempty"`
}

// RuleDef is a CEL expression plus the fields that re-trigger it.
type RuleDef struct {
	Expr     string   `json:"expr" yaml:"expr"`
	Message  string   `json:"message,omitempty" yaml:"message,omitempty"`
	Triggers []string `json:"triggers,omitempty" yaml:"triggers,omitempty"`
}

// LoadFile reads a definition, choosing the format by extension.
func LoadFile(path string) (*Definition, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading definition: %w", err)
	}
	switch ext := filepath.Ext(path); ext {
	case ".cue":
		return LoadCUE(filepath.Base(path), src)
	case ".yaml", ".yml":
		return LoadYAML(src)
	case ".json":
		return LoadJSON(src)
	default:
		return nil, fmt.Errorf("unsupported definition format %q", ext)
	}
}

// LoadJSON decodes a JSON definition.
func LoadJSON(src []byte) (*Definition, error) {
	var d Definition
	if err := json.Unmarshal(src, &d); err != nil {
		return nil, fmt.Errorf("decoding json definition: %w", err)
	}
	return d.normalize()
}

// normalize fills defaults and checks cross references.
func (d *Definition) normalize() (*Definition, error) {
	if d.Name == "" {
		d.Name = "form"
	}
	known := make(map[string]bool, len(d.Fields))
	for i := range d.Fields {
		f := &d.Fields[i]
		if f.Name == "" {
			return nil, fmt.Errorf("field %d: %w", i, form.ErrEmptyName)
		}
		if f.Type == "" {
			f.Type = string(form.TypeText)
		}
		known[f.Name] = true
	}
	for family, rules := range map[string]map[string]RuleDef{
		"validation": d.Rules.Validation,
		"readonly":   d.Rules.Readonly,
		"hide":       d.Rules.Hide,
	} {
		for owner, r := range rules {
			if !known[owner] {
				return nil, fmt.Errorf("%s rule for %q: %w", family, owner, ErrUnknownField)
			}
			for _, trigger := range r.Triggers {
				if !known[trigger] {
					return nil, fmt.Errorf("%s rule for %q: trigger %q: %w", family, owner, trigger, ErrUnknownField)
				}
			}
		}
	}
	return d, nil
}

// Configs converts the field definitions, coercing each default to the
// Go type its field type expects.
func (d *Definition) Configs() ([]form.FieldConfig, error) {
	configs := make([]form.FieldConfig, 0, len(d.Fields))
	for _, f := range d.Fields {
		typ := form.FieldType(f.Type)
		def, err := coerce(typ, f.Default)
		if err != nil {
			return nil, fmt.Errorf("field %q default: %w", f.Name, err)
		}
		configs = append(configs, form.FieldConfig{
			Name:    f.Name,
			Label:   f.Label,
			Type:    typ,
			Default: def,
			Props:   f.Props,
		})
	}
	return configs, nil
}

// Options returns the make-time options the definition declares.
func (d *Definition) Options() []form.Option {
	opts := []form.Option{form.Named(d.Name)}
	if d.StartActive != nil {
		opts = append(opts, form.StartActive(*d.StartActive))
	}
	return opts
}

// Compile turns every rule expression into a predicate.
func (d *Definition) Compile(env *expr.Env) (form.Rules, error) {
	rules := form.Rules{
		Validation: make(form.ValidationRules, len(d.Rules.Validation)),
		Readonly:   make(form.ReadonlyRules, len(d.Rules.Readonly)),
		Hide:       make(form.HideRules, len(d.Rules.Hide)),
	}
	for name, r := range d.Rules.Validation {
		msg := r.Message
		if msg == "" {
			msg = defaultMessage
		}
		pred, err := env.Validation(r.Expr, msg)
		if err != nil {
			return form.Rules{}, fmt.Errorf("validation rule for %q: %w", name, err)
		}
		rules.Validation[name] = wrap(pred, r.Triggers)
	}
	for name, r := range d.Rules.Readonly {
		pred, err := env.Bool(r.Expr)
		if err != nil {
			return form.Rules{}, fmt.Errorf("readonly rule for %q: %w", name, err)
		}
		rules.Readonly[name] = wrap(pred, r.Triggers)
	}
	for name, r := range d.Rules.Hide {
		pred, err := env.Bool(r.Expr)
		if err != nil {
			return form.Rules{}, fmt.Errorf("hide rule for %q: %w", name, err)
		}
		rules.Hide[name] = wrap(pred, r.Triggers)
	}
	return rules, nil
}

func wrap[T any](pred form.Predicate[T], triggers []string) form.Rule[T] {
	if len(triggers) == 0 {
		return form.Simple(pred)
	}
	return form.WithTriggers(pred, triggers...)
}

// coerce converts a decoded default into the value type of t. A nil
// default stays nil so the form resolves the type's empty value.
func coerce(t form.FieldType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case form.TypeNumber:
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("%v is not a number", v)
		}
		return f, nil
	case form.TypeDate, form.TypeTime:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%v is not a string", v)
		}
		layout := dateLayout
		if t == form.TypeTime {
			layout = timeLayout
		}
		parsed, err := time.Parse(layout, s)
		if err != nil {
			return nil, err
		}
		return parsed, nil
	case form.TypeText, form.TypeMultiText, form.TypeChoice:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%v is not a string", v)
		}
		return s, nil
	}
	return v, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string, bool:
		return 0, false
	}
	// CUE decodes large or arbitrary-precision numbers into big types.
	f, err := strconv.ParseFloat(fmt.Sprint(v), 64)
	return f, err == nil
}
