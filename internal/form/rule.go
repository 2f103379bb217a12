package form

import (
	"context"
	"fmt"
)

// Predicate computes one rule result from a data snapshot. It may block;
// the engine always calls it on its own goroutine.
type Predicate[T any] func(ctx context.Context, data Data) (T, error)

// RuleKind tells a bare predicate apart from one with trigger fields.
type RuleKind int

const (
	RuleSimple RuleKind = iota
	RuleWithTriggers
)

// Rule pairs a predicate with the fields whose changes should re-run it.
// A simple rule only runs when its own field changes or on refresh.
type Rule[T any] struct {
	Kind     RuleKind
	Check    Predicate[T]
	Triggers []string
}

// Simple wraps a bare predicate.
func Simple[T any](check Predicate[T]) Rule[T] {
	return Rule[T]{Kind: RuleSimple, Check: check}
}

// WithTriggers wraps a predicate that also re-runs when any trigger changes.
func WithTriggers[T any](check Predicate[T], triggers ...string) Rule[T] {
	return Rule[T]{Kind: RuleWithTriggers, Check: check, Triggers: triggers}
}

// RuleMap keys rules by the field they govern.
type RuleMap[T any] map[string]Rule[T]

type (
	ValidationRules = RuleMap[ValidationResult]
	ReadonlyRules   = RuleMap[bool]
	HideRules       = RuleMap[bool]
)

// Rules groups the three rule families.
type Rules struct {
	Validation ValidationRules
	Readonly   ReadonlyRules
	Hide       HideRules
}

// call runs p, turning a panic into an error.
func call[T any](ctx context.Context, p Predicate[T], data Data) (out T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("predicate panic: %v", r)
		}
	}()
	return p(ctx, data)
}
