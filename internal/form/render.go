package form

import (
	"fmt"
	"html/template"
	"maps"
)

// InputFunc renders one field.
type InputFunc func(p Props) (template.HTML, error)

// Inputs lists the renderers to install. Built-in slots left nil make
// fields of that type a configuration error; Custom serves every other
// type tag.
type Inputs struct {
	Text      InputFunc
	MultiText InputFunc
	Number    InputFunc
	Choice    InputFunc
	Date      InputFunc
	Time      InputFunc
	Custom    map[string]InputFunc
}

// Registry resolves type tags to renderers.
type Registry struct {
	builtin map[FieldType]InputFunc
	custom  map[string]InputFunc
}

// NewRegistry builds a registry from installed inputs.
func NewRegistry(in Inputs) *Registry {
	r := &Registry{
		builtin: map[FieldType]InputFunc{
			TypeText:      in.Text,
			TypeMultiText: in.MultiText,
			TypeNumber:    in.Number,
			TypeChoice:    in.Choice,
			TypeDate:      in.Date,
			TypeTime:      in.Time,
		},
		custom: make(map[string]InputFunc, len(in.Custom)),
	}
	maps.Copy(r.custom, in.Custom)
	return r
}

// Lookup returns the renderer for t. Built-in tags only consult their
// built-in slot.
func (r *Registry) Lookup(t FieldType) (InputFunc, bool) {
	if t.BuiltIn() {
		fn := r.builtin[t]
		return fn, fn != nil
	}
	fn, ok := r.custom[string(t)]
	return fn, ok && fn != nil
}

// Props is what every renderer receives.
type Props struct {
	Label              string
	Value              any
	OnChange           func(v any)
	Valid              ValidationResult
	Readonly           bool
	Key                string
	AccessibilityLabel string
	Choices            []Choice       // choice fields only
	Extra              map[string]any // config props overlaid by runtime props
}

// Rendered is the output for one visible field.
type Rendered struct {
	Name string        `json:"name"`
	Type FieldType     `json:"type"`
	HTML template.HTML `json:"html"`
}

// ConfigError reports a field whose type has no installed renderer. It is
// not recoverable: the form definition or the installed inputs are wrong.
type ConfigError struct {
	Field string
	Type  FieldType
}

func (e *ConfigError) Error() string {
	if e.Type.BuiltIn() {
		return fmt.Sprintf("could not make form input %q with type %q: no input was installed", e.Field, e.Type)
	}
	return fmt.Sprintf("unknown form input %q with type %q", e.Field, e.Type)
}

// renderFields produces one entry per config, nil for hidden fields.
func renderFields(formName string, configs []FieldConfig, reg *Registry, e *Engine, props FormProps) ([]*Rendered, error) {
	out := make([]*Rendered, 0, len(configs))
	for _, c := range configs {
		if e.store.Hidden(c.Name) {
			out = append(out, nil)
			continue
		}
		fn, ok := reg.Lookup(c.Type)
		if !ok {
			return nil, &ConfigError{Field: c.Name, Type: c.Type}
		}

		name := c.Name
		p := Props{
			Label:              c.Label,
			Value:              e.store.Value(name),
			OnChange:           func(v any) { e.SetValue(name, v) },
			Valid:              e.store.Valid(name),
			Readonly:           e.store.Readonly(name),
			Key:                name,
			AccessibilityLabel: formName + "-" + name,
			Extra:              make(map[string]any, len(c.Props)),
		}
		if c.Type == TypeChoice {
			p.Choices = props.Choices[name]
			if p.Choices == nil {
				p.Choices = []Choice{}
			}
		}
		maps.Copy(p.Extra, c.Props)
		maps.Copy(p.Extra, props.Props[name])

		html, err := fn(p)
		if err != nil {
			return nil, fmt.Errorf("rendering field %q: %w", name, err)
		}
		out = append(out, &Rendered{Name: name, Type: c.Type, HTML: html})
	}
	return out, nil
}
