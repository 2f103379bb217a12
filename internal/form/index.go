package form

import (
	"maps"
	"slices"
)

// Index maps a trigger field to the fields whose rule must re-run when the
// trigger changes.
type Index map[string][]string

// BuildIndex derives the trigger index of one rule family. Owners are
// visited in name order so dependent lists are stable; simple rules add no
// edges.
func BuildIndex[T any](rules RuleMap[T]) Index {
	idx := make(Index)
	for _, owner := range slices.Sorted(maps.Keys(rules)) {
		r := rules[owner]
		if r.Kind != RuleWithTriggers || r.Check == nil {
			continue
		}
		for _, trigger := range r.Triggers {
			idx[trigger] = append(idx[trigger], owner)
		}
	}
	return idx
}

// Dependents returns the fields that depend on trigger.
func (i Index) Dependents(trigger string) []string {
	return i[trigger]
}

// indices holds the compiled rules and their trigger indices. A value is
// never modified after it is built; SetRules swaps in a new one.
type indices struct {
	gen      uint64
	rules    Rules
	valid    Index
	readonly Index
	hide     Index
}

func buildIndices(r Rules) *indices {
	return &indices{
		rules:    r,
		valid:    BuildIndex(r.Validation),
		readonly: BuildIndex(r.Readonly),
		hide:     BuildIndex(r.Hide),
	}
}
