package manifest

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/BurntSushi/toml"
)

//go:embed schema.cue
var schemaSource string

var (
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	schemaDef  cue.Value
	schemaErr  error
)

func loadSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileString(schemaSource, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile manifest schema: %w", err)
			return
		}
		schemaDef = v.LookupPath(cue.ParsePath("#Manifest"))
		schemaErr = schemaDef.Err()
	})
	return schemaCtx, schemaDef, schemaErr
}

// Validate checks a raw pl0.toml document against the manifest schema.
func Validate(data []byte) error {
	var raw map[string]any
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return err
	}
	return validateRaw(raw)
}

func validateRaw(raw map[string]any) error {
	ctx, def, err := loadSchema()
	if err != nil {
		return err
	}
	if raw == nil {
		raw = map[string]any{}
	}
	doc := ctx.Encode(raw)
	if err := doc.Err(); err != nil {
		return err
	}
	if err := def.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}
	return nil
}
