package hash

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/chazu/pl0c/compiler"
)

// HashProgram computes the SHA-256 content hash of a checked program.
//
// The hash is computed over a deterministic serialization of the program's
// lowered AST. Source positions, spacing and comments do not contribute;
// declared names, constant values and the statement structure do, since
// they all reach the generated code.
func HashProgram(prog *compiler.Program, table *compiler.SymbolTable) [32]byte {
	return sha256.Sum256(Serialize(Lower(prog, table)))
}

// Key returns the hash as a lowercase hex string, the form used for
// artifact cache keys.
func Key(prog *compiler.Program, table *compiler.SymbolTable) string {
	h := HashProgram(prog, table)
	return hex.EncodeToString(h[:])
}
