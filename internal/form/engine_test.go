package form

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ageRules() ValidationRules {
	return ValidationRules{
		"age": Simple(func(_ context.Context, d Data) (ValidationResult, error) {
			if d["age"].(float64) >= 0 {
				return OK(""), nil
			}
			return Fail("negative"), nil
		}),
	}
}

func TestEngine_AgeScenario(t *testing.T) {
	f := mustMake(t, []FieldConfig{{Name: "age", Type: TypeNumber, Default: 0.0}})
	h := &Handle{}
	props := FormProps{Validation: ageRules(), Handle: h}
	_, err := f.Render(props)
	require.NoError(t, err)
	settle(t, f)

	h.SetForm(Data{"age": -1.0})
	settle(t, f)
	assert.Equal(t, Fail("negative"), f.Engine().Store().Valid("age"))
	assert.False(t, h.IsFormValid())
	assert.Equal(t, []string{"negative"}, h.GetErrors())

	h.SetForm(Data{"age": 5.0})
	settle(t, f)
	assert.Equal(t, OK(""), f.Engine().Store().Valid("age"))
	assert.True(t, h.IsFormValid())
	assert.Empty(t, h.GetErrors())
}

func TestEngine_ReadonlyTriggerRunsOncePerChange(t *testing.T) {
	var calls atomic.Int32
	f := mustMake(t, []FieldConfig{text("a"), text("b"), text("c")})
	props := FormProps{
		Readonly: ReadonlyRules{
			"b": WithTriggers(counted(&calls, func(d Data) bool { return d["a"] == "lock" }), "a"),
		},
	}
	_, err := f.Render(props)
	require.NoError(t, err)
	settle(t, f)
	require.Equal(t, int32(1), calls.Load(), "mount evaluates once")

	f.Engine().SetValue("a", "lock")
	settle(t, f)
	assert.Equal(t, int32(2), calls.Load())
	assert.True(t, f.Engine().Store().Readonly("b"))

	// Re-rendering with the same rule map does not re-run anything.
	for range 3 {
		_, err = f.Render(props)
		require.NoError(t, err)
	}
	settle(t, f)
	assert.Equal(t, int32(2), calls.Load())

	f.Engine().SetValue("c", "unrelated")
	settle(t, f)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEngine_SetFormMatchesOnChange(t *testing.T) {
	configs := []FieldConfig{{Name: "age", Type: TypeNumber, Default: 0.0}, text("x")}

	viaHandle := mustMake(t, configs)
	h := &Handle{}
	_, err := viaHandle.Render(FormProps{Validation: ageRules(), Handle: h})
	require.NoError(t, err)
	settle(t, viaHandle)
	h.SetForm(Data{"age": -4.0, "unknown": "ignored"})
	settle(t, viaHandle)

	viaInput := mustMake(t, configs)
	_, err = viaInput.Render(FormProps{Validation: ageRules()})
	require.NoError(t, err)
	settle(t, viaInput)
	viaInput.Engine().SetValue("age", -4.0)
	settle(t, viaInput)

	a, _ := viaHandle.Engine().Store().Snapshot()
	b, _ := viaInput.Engine().Store().Snapshot()
	assert.Equal(t, b, a)
	assert.NotContains(t, a, "unknown")
	assert.Equal(t, viaInput.Engine().Store().Valid("age"), viaHandle.Engine().Store().Valid("age"))
}

func TestEngine_ActiveGate(t *testing.T) {
	var calls atomic.Int32
	f := mustMake(t, []FieldConfig{{Name: "age", Type: TypeNumber, Default: -1.0}, text("b")})
	h := &Handle{}
	_, err := f.Render(FormProps{
		Validation: ValidationRules{
			"age": Simple(countedValidation(&calls, func(Data) ValidationResult { return Fail("bad") })),
		},
		Readonly: ReadonlyRules{"b": Simple(alwaysTrue)},
		Hide:     HideRules{"b": Simple(alwaysTrue)},
		Handle:   h,
	})
	require.NoError(t, err)
	settle(t, f)
	st := f.Engine().Store()
	require.False(t, st.Valid("age").IsOK())
	require.True(t, st.Hidden("b"))
	before := calls.Load()

	h.SetActive(false)
	settle(t, f)
	assert.False(t, h.GetActive())
	assert.True(t, st.Valid("age").IsOK())
	assert.False(t, st.Readonly("b"))
	assert.False(t, st.Hidden("b"))
	assert.True(t, h.IsFormValid())

	h.SetActive(true)
	settle(t, f)
	assert.True(t, h.GetActive())
	assert.Equal(t, Fail("bad"), st.Valid("age"))
	assert.True(t, st.Hidden("b"))
	assert.Equal(t, before, calls.Load(), "results restored without re-running")
}

func TestEngine_StartInactiveSkipsEvaluation(t *testing.T) {
	var calls atomic.Int32
	f := mustMake(t, []FieldConfig{text("a")}, StartActive(false))
	h := &Handle{}
	_, err := f.Render(FormProps{
		Validation: ValidationRules{"a": Simple(countedValidation(&calls, func(Data) ValidationResult { return Fail("x") }))},
		Handle:     h,
	})
	require.NoError(t, err)
	settle(t, f)
	assert.Equal(t, int32(0), calls.Load())

	f.Engine().SetValue("a", "changed")
	settle(t, f)
	assert.Equal(t, int32(0), calls.Load())

	h.SetActive(true)
	settle(t, f)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, []string{"x"}, h.GetErrors())
}

func TestEngine_HiddenSuppressesEvaluation(t *testing.T) {
	var validCalls, readonlyCalls atomic.Int32
	f := mustMake(t, []FieldConfig{text("a"), text("b"), text("c")})
	_, err := f.Render(FormProps{
		Validation: ValidationRules{
			"b": WithTriggers(countedValidation(&validCalls, func(Data) ValidationResult { return OK("") }), "c"),
		},
		Readonly: ReadonlyRules{
			"b": WithTriggers(counted(&readonlyCalls, func(Data) bool { return false }), "c"),
		},
		Hide: HideRules{
			"b": WithTriggers(func(_ context.Context, d Data) (bool, error) { return d["a"] == "hide", nil }, "a"),
		},
	})
	require.NoError(t, err)
	settle(t, f)
	e := f.Engine()

	e.SetValue("a", "hide")
	settle(t, f)
	require.True(t, e.Store().Hidden("b"))
	v, r := validCalls.Load(), readonlyCalls.Load()

	e.SetValue("c", "unrelated")
	settle(t, f)
	assert.Equal(t, v, validCalls.Load())
	assert.Equal(t, r, readonlyCalls.Load())

	e.SetValue("a", "show")
	settle(t, f)
	assert.False(t, e.Store().Hidden("b"))
	assert.Equal(t, v+1, validCalls.Load())
	assert.Equal(t, r+1, readonlyCalls.Load())
}

func TestEngine_PredicateFailures(t *testing.T) {
	f := mustMake(t, []FieldConfig{text("a"), text("b")})
	_, err := f.Render(FormProps{
		Validation: ValidationRules{
			"a": Simple(func(context.Context, Data) (ValidationResult, error) { return OK(""), errors.New("boom") }),
			"b": Simple(func(context.Context, Data) (ValidationResult, error) { panic("kaput") }),
		},
		Readonly: ReadonlyRules{
			"a": Simple(func(context.Context, Data) (bool, error) { return true, errors.New("nope") }),
		},
		Hide: HideRules{
			"b": Simple(func(context.Context, Data) (bool, error) { return true, errors.New("nope") }),
		},
	})
	require.NoError(t, err)
	settle(t, f)
	st := f.Engine().Store()

	assert.Equal(t, Fail("boom"), st.Valid("a"))
	assert.Equal(t, Fail("predicate panic: kaput"), st.Valid("b"))
	assert.False(t, st.Readonly("a"))
	assert.False(t, st.Hidden("b"))
}

func TestEngine_StaleResultDiscarded(t *testing.T) {
	release := make(chan struct{})
	f := mustMake(t, []FieldConfig{{Name: "x", Type: TypeNumber, Default: 0.0}})
	_, err := f.Render(FormProps{
		Validation: ValidationRules{
			"x": Simple(func(_ context.Context, d Data) (ValidationResult, error) {
				if d["x"] == 1.0 {
					<-release
					return Fail("stale"), nil
				}
				return OK(fmt.Sprint(d["x"])), nil
			}),
		},
	})
	require.NoError(t, err)
	settle(t, f)
	e := f.Engine()

	e.SetValue("x", 1.0)
	e.SetValue("x", 2.0)
	require.Eventually(t, func() bool { return e.Store().Valid("x") == OK("2") }, timeout, tick)

	close(release)
	settle(t, f)
	assert.Equal(t, OK("2"), e.Store().Valid("x"))
}

func TestEngine_RefreshCoalesces(t *testing.T) {
	var calls atomic.Int32
	f := mustMake(t, []FieldConfig{text("a")})
	_, err := f.Render(FormProps{
		Validation: ValidationRules{"a": Simple(countedValidation(&calls, func(Data) ValidationResult { return OK("") }))},
	})
	require.NoError(t, err)
	settle(t, f)
	require.Equal(t, int32(1), calls.Load())

	e := f.Engine()
	// Hold the store so the scheduled pass cannot take its snapshot yet.
	e.store.mu.Lock()
	e.Refresh()
	e.Refresh()
	e.Refresh()
	e.store.mu.Unlock()
	settle(t, f)

	assert.Equal(t, int32(2), calls.Load())
}

func TestEngine_SwappingRulesRefreshes(t *testing.T) {
	var first, second atomic.Int32
	f := mustMake(t, []FieldConfig{text("a")})
	_, err := f.Render(FormProps{
		Validation: ValidationRules{"a": Simple(countedValidation(&first, func(Data) ValidationResult { return Fail("old") }))},
	})
	require.NoError(t, err)
	settle(t, f)
	require.Equal(t, Fail("old"), f.Engine().Store().Valid("a"))

	_, err = f.Render(FormProps{
		Validation: ValidationRules{"a": Simple(countedValidation(&second, func(Data) ValidationResult { return OK("new") }))},
	})
	require.NoError(t, err)
	settle(t, f)
	assert.Equal(t, int32(1), first.Load())
	assert.Equal(t, int32(1), second.Load())
	assert.Equal(t, OK("new"), f.Engine().Store().Valid("a"))

	_, err = f.Render(FormProps{})
	require.NoError(t, err)
	settle(t, f)
	assert.Equal(t, OK(""), f.Engine().Store().Valid("a"), "dropped rule falls back to neutral")
}

func TestEngine_RulesSwappedWhileInactiveApplyOnResume(t *testing.T) {
	f := mustMake(t, []FieldConfig{text("a")})
	h := &Handle{}
	_, err := f.Render(FormProps{
		Validation: ValidationRules{"a": Simple(func(context.Context, Data) (ValidationResult, error) { return Fail("old"), nil })},
		Handle:     h,
	})
	require.NoError(t, err)
	settle(t, f)
	require.Equal(t, []string{"old"}, h.GetErrors())

	h.SetActive(false)
	_, err = f.Render(FormProps{
		Validation: ValidationRules{"a": Simple(func(context.Context, Data) (ValidationResult, error) { return OK("new"), nil })},
		Handle:     h,
	})
	require.NoError(t, err)
	settle(t, f)

	h.SetActive(true)
	settle(t, f)
	assert.Equal(t, OK("new"), f.Engine().Store().Valid("a"))
	assert.True(t, h.IsFormValid())
	assert.Empty(t, h.GetErrors())
}

func TestEngine_RefreshWhileInactiveRunsOnResume(t *testing.T) {
	var calls atomic.Int32
	f := mustMake(t, []FieldConfig{text("a")})
	_, err := f.Render(FormProps{
		Validation: ValidationRules{"a": Simple(countedValidation(&calls, func(Data) ValidationResult { return OK("") }))},
	})
	require.NoError(t, err)
	settle(t, f)
	require.Equal(t, int32(1), calls.Load())

	e := f.Engine()
	e.SetActive(false)
	e.Refresh()
	settle(t, f)
	assert.Equal(t, int32(1), calls.Load())

	e.SetActive(true)
	settle(t, f)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEngine_DroppedRuleResultDiscarded(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	f := mustMake(t, []FieldConfig{text("a")})
	h := &Handle{}
	_, err := f.Render(FormProps{
		Validation: ValidationRules{"a": Simple(func(context.Context, Data) (ValidationResult, error) {
			started <- struct{}{}
			<-release
			return Fail("old"), nil
		})},
		Handle: h,
	})
	require.NoError(t, err)
	<-started

	_, err = f.Render(FormProps{Handle: h})
	require.NoError(t, err)
	close(release)
	settle(t, f)

	assert.Equal(t, OK(""), f.Engine().Store().Valid("a"))
	assert.True(t, h.IsFormValid())
	assert.Empty(t, h.GetErrors())
}

func TestEngine_ReplacedRuleResultDiscarded(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	f := mustMake(t, []FieldConfig{text("a")})
	_, err := f.Render(FormProps{
		Validation: ValidationRules{"a": Simple(func(context.Context, Data) (ValidationResult, error) {
			started <- struct{}{}
			<-release
			return Fail("old"), nil
		})},
	})
	require.NoError(t, err)
	<-started

	_, err = f.Render(FormProps{
		Validation: ValidationRules{"a": Simple(func(context.Context, Data) (ValidationResult, error) { return OK("new"), nil })},
	})
	require.NoError(t, err)
	st := f.Engine().Store()
	require.Eventually(t, func() bool { return st.Valid("a") == OK("new") }, timeout, tick)

	close(release)
	settle(t, f)
	assert.Equal(t, OK("new"), st.Valid("a"))
}

func TestEngine_InitiallyHiddenFieldSkipsRules(t *testing.T) {
	var validCalls, readonlyCalls atomic.Int32
	f := mustMake(t, []FieldConfig{text("a"), text("b")})
	h := &Handle{}
	_, err := f.Render(FormProps{
		Validation: ValidationRules{
			"b": Simple(countedValidation(&validCalls, func(Data) ValidationResult { return Fail("required") })),
		},
		Readonly: ReadonlyRules{
			"b": Simple(counted(&readonlyCalls, func(Data) bool { return true })),
		},
		Hide: HideRules{
			"b": WithTriggers(func(_ context.Context, d Data) (bool, error) { return d["a"] != "show", nil }, "a"),
		},
		Handle: h,
	})
	require.NoError(t, err)
	settle(t, f)
	st := f.Engine().Store()

	require.True(t, st.Hidden("b"))
	assert.Equal(t, int32(0), validCalls.Load())
	assert.Equal(t, int32(0), readonlyCalls.Load())
	assert.True(t, h.IsFormValid())

	f.Engine().SetValue("a", "show")
	settle(t, f)
	assert.False(t, st.Hidden("b"))
	assert.Equal(t, int32(1), validCalls.Load())
	assert.Equal(t, int32(1), readonlyCalls.Load())
	assert.Equal(t, []string{"required"}, h.GetErrors())
	assert.True(t, st.Readonly("b"))
}

func TestEngine_SubscribeReceivesEvents(t *testing.T) {
	f := mustMake(t, []FieldConfig{{Name: "age", Type: TypeNumber, Default: 0.0}}, Named("signup"))
	h := &Handle{}
	_, err := f.Render(FormProps{Validation: ageRules(), Handle: h})
	require.NoError(t, err)
	settle(t, f)

	events := make(chan Event, 16)
	cancel := h.Subscribe(func(evt Event) { events <- evt })
	h.SetForm(Data{"age": -2.0})
	settle(t, f)
	cancel()

	var types []EventType
	for len(events) > 0 {
		evt := <-events
		assert.Equal(t, "signup", evt.Form)
		types = append(types, evt.Type)
	}
	assert.Equal(t, []EventType{EventValueChanged, EventValidityResolved}, types)
}

func alwaysTrue(context.Context, Data) (bool, error) { return true, nil }
