package form

import (
	"context"
	"fmt"
	"html/template"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func stubInput(kind string) InputFunc {
	return func(p Props) (template.HTML, error) {
		return template.HTML(fmt.Sprintf("<%s %s=%v>", kind, p.AccessibilityLabel, p.Value)), nil
	}
}

func stubInputs() Inputs {
	return Inputs{
		Text:      stubInput("text"),
		MultiText: stubInput("textarea"),
		Number:    stubInput("number"),
		Choice:    stubInput("select"),
		Date:      stubInput("date"),
		Time:      stubInput("time"),
	}
}

func mustMake(t *testing.T, configs []FieldConfig, opts ...Option) *Form {
	t.Helper()
	f, err := Install(stubInputs())(configs, opts...)
	require.NoError(t, err)
	t.Cleanup(f.Close)
	return f
}

func settle(t *testing.T, f *Form) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.Engine().Wait(ctx))
}

// counted wraps a bool predicate and counts its invocations.
func counted(n *atomic.Int32, fn func(Data) bool) Predicate[bool] {
	return func(_ context.Context, d Data) (bool, error) {
		n.Add(1)
		return fn(d), nil
	}
}

func countedValidation(n *atomic.Int32, fn func(Data) ValidationResult) Predicate[ValidationResult] {
	return func(_ context.Context, d Data) (ValidationResult, error) {
		n.Add(1)
		return fn(d), nil
	}
}

func text(name string) FieldConfig {
	return FieldConfig{Name: name, Label: name, Type: TypeText}
}

const (
	timeout = 5 * time.Second
	tick    = 5 * time.Millisecond
)
