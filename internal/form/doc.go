// Package form is a declarative form engine. Callers describe fields with
// FieldConfig values and attach asynchronous validation, readonly and hide
// rules; the engine keeps field values and rule results in a store, re-runs
// rules when a field or one of its declared triggers changes, and dispatches
// each visible field to a registered input renderer.
//
// The typical flow is:
//
//	makeForm := form.Install(inputs)
//	f, err := makeForm(configs, form.Named("signup"))
//	fields, err := f.Render(form.FormProps{Validation: rules, Handle: h})
//
// The Handle passed in FormProps is bound on every render and stays usable
// from outside the render loop: it reads and writes form data, toggles rule
// evaluation and lets the caller subscribe to state changes.
package form
