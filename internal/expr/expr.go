// Package expr compiles CEL expressions into form rule predicates. Each
// expression sees the form data as a single variable, data, of type
// map(string, dyn):
//
//	data.age >= 18
//	data.country == "US" && data.state == ""
package expr

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/matthewbaird/formengine/internal/form"
)

// interruptEvery bounds how many comprehension iterations run between
// context checks.
const interruptEvery = 100

// Env compiles expressions against the form data declaration.
type Env struct {
	env *cel.Env
}

// NewEnv creates a CEL environment with the data variable declared.
func NewEnv() (*Env, error) {
	env, err := cel.NewEnv(
		cel.Variable("data", cel.MapType(cel.StringType, cel.DynType)),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("creating cel env: %w", err)
	}
	return &Env{env: env}, nil
}

// Program is a compiled expression.
type Program struct {
	src string
	prg cel.Program
}

// Compile parses, type-checks and plans expr.
func (e *Env) Compile(expr string) (*Program, error) {
	parsed, iss := e.env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("parsing %q: %w", expr, iss.Err())
	}
	checked, iss := e.env.Check(parsed)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("checking %q: %w", expr, iss.Err())
	}
	prg, err := e.env.Program(checked, cel.InterruptCheckFrequency(interruptEvery))
	if err != nil {
		return nil, fmt.Errorf("generating program %q: %w", expr, err)
	}
	return &Program{src: expr, prg: prg}, nil
}

// Source returns the expression text.
func (p *Program) Source() string { return p.src }

// Eval runs the program against a data snapshot.
func (p *Program) Eval(ctx context.Context, data form.Data) (any, error) {
	out, _, err := p.prg.ContextEval(ctx, map[string]any{"data": map[string]any(data)})
	if err != nil {
		return nil, fmt.Errorf("evaluating %q: %w", p.src, err)
	}
	return out.Value(), nil
}

// Bool compiles expr into a readonly or hide predicate. The expression
// must produce a bool.
func (e *Env) Bool(expr string) (form.Predicate[bool], error) {
	p, err := e.Compile(expr)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, data form.Data) (bool, error) {
		v, err := p.Eval(ctx, data)
		if err != nil {
			return false, err
		}
		b, ok := v.(bool)
		if !ok {
			return false, fmt.Errorf("evaluating %q: got %T, want bool", p.src, v)
		}
		return b, nil
	}, nil
}

// Validation compiles expr into a validation predicate. A bool result
// passes when true and otherwise fails with message. A string result
// passes when empty and otherwise fails with the string itself.
func (e *Env) Validation(expr, message string) (form.Predicate[form.ValidationResult], error) {
	p, err := e.Compile(expr)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, data form.Data) (form.ValidationResult, error) {
		v, err := p.Eval(ctx, data)
		if err != nil {
			return form.ValidationResult{}, err
		}
		switch r := v.(type) {
		case bool:
			if r {
				return form.OK(""), nil
			}
			return form.Fail(message), nil
		case string:
			if r == "" {
				return form.OK(""), nil
			}
			return form.Fail(r), nil
		}
		return form.ValidationResult{}, fmt.Errorf("evaluating %q: got %T, want bool or string", p.src, v)
	}, nil
}
