// Package inputs provides HTML renderers for the built-in field types and
// decodes values sent back by the browser into each type's Go value.
package inputs

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"math"
	"strconv"
	"time"

	"github.com/matthewbaird/formengine/internal/form"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// view is the template model shared by every input.
type view struct {
	ID          string
	Name        string
	Label       string
	InputType   string
	Value       string
	Readonly    bool
	Invalid     bool
	Error       string
	Class       string
	Placeholder string
	Rows        int
	Choices     []form.Choice
}

// Builtins returns renderers for all six built-in types plus the
// left_right custom input.
func Builtins() form.Inputs {
	return form.Inputs{
		Text:      Text,
		MultiText: MultiText,
		Number:    Number,
		Choice:    Choice,
		Date:      Date,
		Time:      Time,
		Custom: map[string]form.InputFunc{
			"left_right": LeftRight,
		},
	}
}

func Text(p form.Props) (template.HTML, error) {
	return render("input", newView(p, "text", format(p.Value)))
}

func MultiText(p form.Props) (template.HTML, error) {
	v := newView(p, "", format(p.Value))
	if v.Rows == 0 {
		v.Rows = 3
	}
	return render("textarea", v)
}

func Number(p form.Props) (template.HTML, error) {
	return render("input", newView(p, "number", format(p.Value)))
}

func Date(p form.Props) (template.HTML, error) {
	return render("input", newView(p, "date", formatTime(p.Value, DateLayout)))
}

func Time(p form.Props) (template.HTML, error) {
	return render("input", newView(p, "time", formatTime(p.Value, TimeLayout)))
}

func Choice(p form.Props) (template.HTML, error) {
	v := newView(p, "", format(p.Value))
	v.Choices = p.Choices
	return render("select", v)
}

// LeftRight is a two-button toggle whose value is "left" or "right".
func LeftRight(p form.Props) (template.HTML, error) {
	return render("left_right", newView(p, "", format(p.Value)))
}

func newView(p form.Props, inputType, value string) view {
	v := view{
		ID:        p.AccessibilityLabel,
		Name:      p.Key,
		Label:     p.Label,
		InputType: inputType,
		Value:     value,
		Readonly:  p.Readonly,
		Invalid:   !p.Valid.IsOK(),
	}
	if v.Invalid {
		v.Error = fmt.Sprint(p.Valid.Detail)
	}
	if s, ok := p.Extra["class"].(string); ok {
		v.Class = s
	}
	if s, ok := p.Extra["placeholder"].(string); ok {
		v.Placeholder = s
	}
	if n, ok := p.Extra["rows"]; ok {
		if f, err := strconv.ParseFloat(fmt.Sprint(n), 64); err == nil {
			v.Rows = int(f)
		}
	}
	return v
}

func render(name string, v view) (template.HTML, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, v); err != nil {
		return "", fmt.Errorf("executing %s template: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}

func format(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if math.IsNaN(x) {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func formatTime(v any, layout string) string {
	t, ok := v.(time.Time)
	if !ok || t.IsZero() {
		return ""
	}
	return t.Format(layout)
}
