package definition

import (
	"context"
	"fmt"
	"html/template"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/formengine/internal/expr"
	"github.com/matthewbaird/formengine/internal/form"
)

func TestLoadFile_CUEAndYAMLAgree(t *testing.T) {
	fromCUE, err := LoadFile("testdata/signup.cue")
	require.NoError(t, err)
	fromYAML, err := LoadFile("testdata/signup.yaml")
	require.NoError(t, err)

	cueConfigs, err := fromCUE.Configs()
	require.NoError(t, err)
	yamlConfigs, err := fromYAML.Configs()
	require.NoError(t, err)

	require.Len(t, cueConfigs, 6)
	for i := range cueConfigs {
		assert.Equal(t, yamlConfigs[i].Name, cueConfigs[i].Name)
		assert.Equal(t, yamlConfigs[i].Type, cueConfigs[i].Type)
		assert.Equal(t, yamlConfigs[i].Default, cueConfigs[i].Default, cueConfigs[i].Name)
	}
	assert.Equal(t, fromYAML.Choices, fromCUE.Choices)
	assert.Equal(t, fromYAML.Rules.Readonly, fromCUE.Rules.Readonly)
	assert.Equal(t, "signup", fromCUE.Name)
}

func TestConfigs_Coercion(t *testing.T) {
	d, err := LoadFile("testdata/signup.cue")
	require.NoError(t, err)
	configs, err := d.Configs()
	require.NoError(t, err)

	byName := map[string]form.FieldConfig{}
	for _, c := range configs {
		byName[c.Name] = c
	}
	assert.Equal(t, form.TypeText, byName["name"].Type)
	assert.Nil(t, byName["name"].Default)
	assert.Equal(t, 0.0, byName["age"].Default)
	assert.Equal(t, time.Date(1990, 4, 1, 0, 0, 0, 0, time.UTC), byName["born"].Default)
	assert.Equal(t, "US", byName["country"].Default)
}

func TestLoadCUE_SchemaViolation(t *testing.T) {
	_, err := LoadCUE("bad.cue", []byte(`fields: [{label: "no name"}]`))
	assert.Error(t, err)
}

func TestLoadYAML_UnknownTrigger(t *testing.T) {
	_, err := LoadYAML([]byte(`
fields:
  - {name: a}
rules:
  hide:
    a: {expr: "true", triggers: [ghost]}
`))
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestLoadJSON(t *testing.T) {
	d, err := LoadJSON([]byte(`{"fields":[{"name":"n","type":"number","default":2}]}`))
	require.NoError(t, err)
	assert.Equal(t, "form", d.Name)
	configs, err := d.Configs()
	require.NoError(t, err)
	assert.Equal(t, 2.0, configs[0].Default)
}

func TestConfigs_BadDefault(t *testing.T) {
	d, err := LoadYAML([]byte(`fields: [{name: d, type: date, default: "April"}]`))
	require.NoError(t, err)
	_, err = d.Configs()
	assert.Error(t, err)
}

func TestCompile_DrivesForm(t *testing.T) {
	d, err := LoadFile("testdata/signup.yaml")
	require.NoError(t, err)
	env, err := expr.NewEnv()
	require.NoError(t, err)
	rules, err := d.Compile(env)
	require.NoError(t, err)
	configs, err := d.Configs()
	require.NoError(t, err)

	stub := func(p form.Props) (template.HTML, error) { return template.HTML(fmt.Sprint(p.Value)), nil }
	f, err := form.Install(form.Inputs{Text: stub, MultiText: stub, Number: stub, Choice: stub, Date: stub})(configs, d.Options()...)
	require.NoError(t, err)
	defer f.Close()

	h := &form.Handle{}
	props := form.FormProps{Validation: rules.Validation, Readonly: rules.Readonly, Hide: rules.Hide, Choices: d.Choices, Handle: h}
	_, err = f.Render(props)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.Engine().Wait(ctx))
	assert.Equal(t, []string{"name is required"}, h.GetErrors())

	h.SetForm(form.Data{"name": "locked", "age": -3.0})
	require.NoError(t, f.Engine().Wait(ctx))
	assert.Equal(t, []string{"negative"}, h.GetErrors())
	assert.True(t, f.Engine().Store().Readonly("state"))

	h.SetForm(form.Data{"country": "CA"})
	require.NoError(t, f.Engine().Wait(ctx))
	assert.True(t, f.Engine().Store().Hidden("state"))

	out, err := f.Render(props)
	require.NoError(t, err)
	assert.Nil(t, out[3])
}
