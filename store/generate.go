package store

import (
	"context"
	"errors"

	"github.com/chazu/pl0c/compiler"
	"github.com/chazu/pl0c/compiler/hash"
	"github.com/chazu/pl0c/tac"
)

// Generate returns the code for a checked program, consulting the cache
// before running code generation and populating it afterwards. The boolean
// reports a cache hit. With a nil store it always generates. Cache failures
// are logged and never fail the compilation.
func Generate(ctx context.Context, s *Store, path string, prog *compiler.Program, table *compiler.SymbolTable, mainLabel string) (*tac.Code, bool, error) {
	if s == nil {
		code, err := compiler.NewGenerator(table).Generate(prog)
		return code, false, err
	}
	if mainLabel == "" {
		mainLabel = compiler.DefaultMainLabel
	}

	key := Key(hash.Key(prog, table), mainLabel)
	a, err := s.Get(ctx, key)
	switch {
	case err == nil:
		log.Debugf("%s: cache hit %s", path, key)
		return a.Code, true, nil
	case !errors.Is(err, ErrNotFound):
		log.Warningf("%s: cache lookup: %s", path, err)
	}

	code, err := compiler.NewGenerator(table).Generate(prog)
	if err != nil {
		return nil, false, err
	}
	if err := s.Put(ctx, &Artifact{Key: key, Path: path, Code: code}); err != nil {
		log.Warningf("%s: cache store: %s", path, err)
	}
	return code, false, nil
}
