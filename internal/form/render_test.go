package form

import (
	"context"
	"errors"
	"html/template"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_PropsAndOrder(t *testing.T) {
	var got []Props
	capture := func(p Props) (template.HTML, error) {
		got = append(got, p)
		return template.HTML(p.Key), nil
	}
	f, err := Install(Inputs{Text: capture, Choice: capture})([]FieldConfig{
		{Name: "name", Label: "Name", Type: TypeText, Props: map[string]any{"class": "wide", "size": 10}},
		{Name: "color", Label: "Color", Type: TypeChoice},
	}, Named("signup"))
	require.NoError(t, err)
	t.Cleanup(f.Close)

	out, err := f.Render(FormProps{
		Props: map[string]map[string]any{"name": {"class": "narrow"}},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "name", out[0].Name)
	assert.Equal(t, template.HTML("color"), out[1].HTML)

	require.Len(t, got, 2)
	name := got[0]
	assert.Equal(t, "Name", name.Label)
	assert.Equal(t, "", name.Value)
	assert.Equal(t, "name", name.Key)
	assert.Equal(t, "signup-name", name.AccessibilityLabel)
	assert.Equal(t, OK(""), name.Valid)
	assert.False(t, name.Readonly)
	assert.Equal(t, map[string]any{"class": "narrow", "size": 10}, name.Extra)
	assert.Nil(t, name.Choices)

	color := got[1]
	assert.NotNil(t, color.Choices)
	assert.Empty(t, color.Choices)
}

func TestRender_ChoicesSpliced(t *testing.T) {
	var choices []Choice
	f, err := Install(Inputs{Choice: func(p Props) (template.HTML, error) {
		choices = p.Choices
		return "", nil
	}})([]FieldConfig{{Name: "color", Type: TypeChoice}})
	require.NoError(t, err)
	t.Cleanup(f.Close)

	want := []Choice{{Label: "Red", Value: "red"}, {Label: "Blue", Value: "blue"}}
	_, err = f.Render(FormProps{Choices: map[string][]Choice{"color": want}})
	require.NoError(t, err)
	assert.Equal(t, want, choices)
}

func TestRender_HiddenFieldOmitted(t *testing.T) {
	f := mustMake(t, []FieldConfig{text("a"), text("b")})
	props := FormProps{Hide: HideRules{"b": Simple(alwaysTrue)}}
	_, err := f.Render(props)
	require.NoError(t, err)
	settle(t, f)

	out, err := f.Render(props)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.NotNil(t, out[0])
	assert.Nil(t, out[1])
}

func TestRender_OnChangeRoutesToSetValue(t *testing.T) {
	var onChange func(any)
	f, err := Install(Inputs{Text: func(p Props) (template.HTML, error) {
		onChange = p.OnChange
		return "", nil
	}})([]FieldConfig{text("a")})
	require.NoError(t, err)
	t.Cleanup(f.Close)

	h := &Handle{}
	_, err = f.Render(FormProps{Handle: h})
	require.NoError(t, err)
	onChange("typed")
	assert.Equal(t, Data{"a": "typed"}, h.GetForm())
}

func TestRender_CustomInput(t *testing.T) {
	f, err := Install(Inputs{Custom: map[string]InputFunc{
		"left_right": func(p Props) (template.HTML, error) { return template.HTML(p.Value.(string)), nil },
	}})([]FieldConfig{{Name: "side", Type: "left_right", Default: "left"}})
	require.NoError(t, err)
	t.Cleanup(f.Close)

	out, err := f.Render(FormProps{})
	require.NoError(t, err)
	assert.Equal(t, template.HTML("left"), out[0].HTML)
}

func TestRender_ConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		config FieldConfig
	}{
		{"builtin not installed", FieldConfig{Name: "n", Type: TypeNumber}},
		{"unknown custom", FieldConfig{Name: "s", Type: "slider", Default: 1.0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Install(Inputs{Text: stubInput("text")})([]FieldConfig{tt.config})
			require.NoError(t, err)
			t.Cleanup(f.Close)

			_, err = f.Render(FormProps{})
			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.config.Name, cfgErr.Field)
			assert.Equal(t, tt.config.Type, cfgErr.Type)
		})
	}
}

func TestRender_ReflectsRuleResults(t *testing.T) {
	var last Props
	f, err := Install(Inputs{Text: func(p Props) (template.HTML, error) {
		last = p
		return "", nil
	}})([]FieldConfig{text("a")})
	require.NoError(t, err)
	t.Cleanup(f.Close)

	props := FormProps{
		Validation: ValidationRules{"a": Simple(func(context.Context, Data) (ValidationResult, error) { return Fail("required"), nil })},
		Readonly:   ReadonlyRules{"a": Simple(alwaysTrue)},
	}
	_, err = f.Render(props)
	require.NoError(t, err)
	settle(t, f)
	_, err = f.Render(props)
	require.NoError(t, err)

	assert.Equal(t, Fail("required"), last.Valid)
	assert.True(t, last.Readonly)
}

func TestHandle_Unbound(t *testing.T) {
	h := &Handle{}
	assert.False(t, h.Bound())
	assert.Nil(t, h.GetForm())
	assert.True(t, h.IsFormValid())
	assert.False(t, h.GetActive())
	h.SetForm(Data{"a": 1})
	h.SetActive(true)
	h.Refresh()
	h.Subscribe(func(Event) {})()
}
