package form

import "maps"

// FieldType tags the kind of input a field renders as. The six built-in
// tags are listed below; any other string names a caller-registered input.
type FieldType string

const (
	TypeText      FieldType = "text"
	TypeMultiText FieldType = "multi_text"
	TypeNumber    FieldType = "number"
	TypeChoice    FieldType = "choice"
	TypeDate      FieldType = "date"
	TypeTime      FieldType = "time"
)

// BuiltIn reports whether t is one of the built-in input types.
func (t FieldType) BuiltIn() bool {
	switch t {
	case TypeText, TypeMultiText, TypeNumber, TypeChoice, TypeDate, TypeTime:
		return true
	}
	return false
}

// FieldConfig describes one field. It is fixed once the form is made.
type FieldConfig struct {
	Name    string         `json:"name"`
	Label   string         `json:"label"`
	Type    FieldType      `json:"type"`
	Default any            `json:"default,omitempty"` // nil = use ResolveDefault
	Props   map[string]any `json:"props,omitempty"`   // extra props passed to the input
}

// Data maps field names to values. A Data handed to a predicate is a
// snapshot: the engine never writes to it after publishing it, and
// predicates must not write to it either.
type Data map[string]any

// with returns a copy of d with name set to v.
func (d Data) with(name string, v any) Data {
	next := make(Data, len(d)+1)
	maps.Copy(next, d)
	next[name] = v
	return next
}

// Clone returns a shallow copy of d.
func (d Data) Clone() Data {
	out := make(Data, len(d))
	maps.Copy(out, d)
	return out
}

// Choice is one option of a choice field.
type Choice struct {
	Label string `json:"label" yaml:"label"`
	Value string `json:"value" yaml:"value"`
	Key   string `json:"key,omitempty" yaml:"key,omitempty"`
}

// ResultKind discriminates a ValidationResult.
type ResultKind string

const (
	KindOK    ResultKind = "ok"
	KindError ResultKind = "error"
)

// ValidationResult is either ok (with an optional message) or an error
// carrying a detail payload.
type ValidationResult struct {
	Kind    ResultKind `json:"kind"`
	Message string     `json:"message,omitempty"`
	Detail  any        `json:"detail,omitempty"`
}

// OK returns an ok result.
func OK(message string) ValidationResult {
	return ValidationResult{Kind: KindOK, Message: message}
}

// Fail returns an error result carrying detail.
func Fail(detail any) ValidationResult {
	return ValidationResult{Kind: KindError, Detail: detail}
}

// IsOK reports whether r is the ok variant. The zero value counts as ok.
func (r ValidationResult) IsOK() bool {
	return r.Kind != KindError
}
