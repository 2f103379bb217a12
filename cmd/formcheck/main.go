// cmd/formcheck validates form definitions before they are served.
//
// For each definition it:
// - decodes the file (CUE, YAML or JSON) and checks rule references
// - compiles every rule expression
// - mounts the form against the built-in inputs and renders it once
// - prints the trigger index and the errors the form starts with
//
// With -values, the given JSON object is applied before reporting errors.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/matthewbaird/formengine/internal/definition"
	"github.com/matthewbaird/formengine/internal/expr"
	"github.com/matthewbaird/formengine/internal/form"
	"github.com/matthewbaird/formengine/internal/inputs"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("formcheck: ")

	valuesPath := flag.String("values", "", "JSON object of field values to apply before reporting errors")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: formcheck [-values values.json] definition.cue...")
		os.Exit(2)
	}

	var values map[string]json.RawMessage
	if *valuesPath != "" {
		src, err := os.ReadFile(*valuesPath)
		if err != nil {
			log.Fatalf("reading values: %v", err)
		}
		if err := json.Unmarshal(src, &values); err != nil {
			log.Fatalf("decoding values: %v", err)
		}
	}

	failed := 0
	for _, path := range flag.Args() {
		if err := check(os.Stdout, path, values); err != nil {
			log.Printf("%s: %v", path, err)
			failed++
		}
	}
	if failed > 0 {
		log.Fatalf("%d of %d definitions failed", failed, flag.NArg())
	}
	fmt.Println("\nformcheck: OK")
}

func check(w io.Writer, path string, values map[string]json.RawMessage) error {
	def, err := definition.LoadFile(path)
	if err != nil {
		return err
	}
	configs, err := def.Configs()
	if err != nil {
		return err
	}
	env, err := expr.NewEnv()
	if err != nil {
		return err
	}
	rules, err := def.Compile(env)
	if err != nil {
		return err
	}

	f, err := form.Install(inputs.Builtins())(configs, def.Options()...)
	if err != nil {
		return err
	}
	defer f.Close()

	handle := &form.Handle{}
	props := form.FormProps{
		Validation: rules.Validation,
		Readonly:   rules.Readonly,
		Hide:       rules.Hide,
		Choices:    def.Choices,
		Handle:     handle,
	}
	if _, err := f.Render(props); err != nil {
		return err
	}

	if len(values) > 0 {
		data := make(form.Data, len(values))
		for _, c := range configs {
			raw, ok := values[c.Name]
			if !ok {
				continue
			}
			v, err := inputs.Decode(c.Type, raw)
			if err != nil {
				return fmt.Errorf("value for %q: %w", c.Name, err)
			}
			data[c.Name] = v
		}
		handle.SetForm(data)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := f.Engine().Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rules: %w", err)
	}
	rendered, err := f.Render(props)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s: form %q, %d fields\n", path, f.Name(), len(configs))
	hidden := 0
	for _, r := range rendered {
		if r == nil {
			hidden++
		}
	}
	fmt.Fprintf(w, "  rendered %d, hidden %d\n", len(rendered)-hidden, hidden)
	printIndex(w, "validation", form.BuildIndex(rules.Validation))
	printIndex(w, "readonly", form.BuildIndex(rules.Readonly))
	printIndex(w, "hide", form.BuildIndex(rules.Hide))

	errs := handle.GetErrors()
	if len(errs) == 0 {
		fmt.Fprintln(w, "  valid")
		return nil
	}
	fmt.Fprintf(w, "  %d errors:\n", len(errs))
	for _, e := range errs {
		fmt.Fprintf(w, "    - %s\n", e)
	}
	return nil
}

func printIndex(w io.Writer, family string, idx form.Index) {
	if len(idx) == 0 {
		return
	}
	triggers := make([]string, 0, len(idx))
	for t := range idx {
		triggers = append(triggers, t)
	}
	sort.Strings(triggers)
	for _, t := range triggers {
		fmt.Fprintf(w, "  %s: %s -> %s\n", family, t, strings.Join(idx[t], ", "))
	}
}
