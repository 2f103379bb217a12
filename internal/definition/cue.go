package definition

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaSrc string

// LoadCUE compiles a CUE definition, unifies it with the #Definition
// schema and decodes the concrete result.
func LoadCUE(filename string, src []byte) (*Definition, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSrc, cue.Filename("schema.cue"))
	if schema.Err() != nil {
		return nil, fmt.Errorf("compile schema: %w", schema.Err())
	}
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if v.Err() != nil {
		return nil, fmt.Errorf("compile %s: %w", filename, v.Err())
	}

	unified := schema.LookupPath(cue.ParsePath("#Definition")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validate %s: %w", filename, err)
	}

	var d Definition
	if err := unified.Decode(&d); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filename, err)
	}
	return d.normalize()
}
