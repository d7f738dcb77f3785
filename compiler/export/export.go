// Package export converts compiler artifacts into plain records that encode
// to JSON or canonical CBOR.
package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/chazu/pl0c/compiler"
	"github.com/chazu/pl0c/tac"
	"github.com/fxamacker/cbor/v2"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("export: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// ---------------------------------------------------------------------------
// Tokens
// ---------------------------------------------------------------------------

// Token is the exported form of a lexical token.
type Token struct {
	Kind    string `json:"kind" cbor:"kind"`
	Literal string `json:"literal,omitempty" cbor:"literal,omitempty"`
	Line    int    `json:"line" cbor:"line"`
	Column  int    `json:"column" cbor:"column"`
}

// Tokens exports a token stream. Only identifiers, numbers and error tokens
// carry a literal; the stream always ends in an EOF record.
func Tokens(tokens []compiler.Token) []Token {
	out := make([]Token, 0, len(tokens)+1)
	for _, tok := range tokens {
		rec := Token{Kind: tok.Type.String(), Line: tok.Pos.Line, Column: tok.Pos.Column}
		switch tok.Type {
		case compiler.TokenIdent, compiler.TokenNumber, compiler.TokenError:
			rec.Literal = tok.Literal
		}
		out = append(out, rec)
	}
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != compiler.TokenEOF {
		rec := Token{Kind: compiler.TokenEOF.String(), Line: 1, Column: 1}
		if len(tokens) > 0 {
			last := tokens[len(tokens)-1]
			rec.Line = last.Pos.Line
			rec.Column = last.Pos.Column + len([]rune(last.Literal))
		}
		out = append(out, rec)
	}
	return out
}

// ---------------------------------------------------------------------------
// Symbols
// ---------------------------------------------------------------------------

// Symbol is the exported form of a declared name.
type Symbol struct {
	Name    string `json:"name" cbor:"name"`
	Kind    string `json:"kind" cbor:"kind"`
	Value   *int64 `json:"value,omitempty" cbor:"value,omitempty"`
	Offset  int    `json:"offset" cbor:"offset"`
	Storage string `json:"storage,omitempty" cbor:"storage,omitempty"`
	Line    int    `json:"line" cbor:"line"`
	Column  int    `json:"column" cbor:"column"`
}

// Scope is the exported form of a scope and its nested scopes.
type Scope struct {
	Name     string   `json:"name" cbor:"name"`
	Depth    int      `json:"depth" cbor:"depth"`
	Symbols  []Symbol `json:"symbols" cbor:"symbols"`
	Children []*Scope `json:"children" cbor:"children"`
}

// Symbols exports the scope tree of table, entries in declaration order.
func Symbols(table *compiler.SymbolTable) *Scope {
	return exportScope(table.Root)
}

func exportScope(s *compiler.Scope) *Scope {
	out := &Scope{
		Name:     s.Path(),
		Depth:    s.Depth,
		Symbols:  []Symbol{},
		Children: []*Scope{},
	}
	for _, sym := range s.Symbols() {
		rec := Symbol{
			Name:    sym.Name,
			Kind:    sym.Kind.String(),
			Offset:  sym.Offset,
			Storage: sym.Storage,
			Line:    sym.Pos.Start.Line,
			Column:  sym.Pos.Start.Column,
		}
		if sym.Kind == compiler.Constant {
			v := sym.Value
			rec.Value = &v
		}
		out.Symbols = append(out.Symbols, rec)
	}
	for _, child := range s.Children {
		out.Children = append(out.Children, exportScope(child))
	}
	return out
}

// ---------------------------------------------------------------------------
// Three-address code
// ---------------------------------------------------------------------------

// Instr is the exported form of one instruction. Absent fields are null.
type Instr struct {
	Op     string  `json:"op" cbor:"op"`
	Arg1   *string `json:"arg1" cbor:"arg1"`
	Arg2   *string `json:"arg2" cbor:"arg2"`
	Result *string `json:"result" cbor:"result"`
}

// Records exports code as one record per instruction.
func Records(code *tac.Code) []Instr {
	out := make([]Instr, 0, code.Len())
	for _, in := range code.Instrs {
		out = append(out, Instr{
			Op:     string(in.Op),
			Arg1:   optional(in.Arg1),
			Arg2:   optional(in.Arg2),
			Result: optional(in.Result),
		})
	}
	return out
}

// Code converts exported records back into instructions.
func Code(records []Instr) (*tac.Code, error) {
	code := &tac.Code{}
	for i, rec := range records {
		op := tac.Op(rec.Op)
		if !op.Valid() {
			return nil, fmt.Errorf("record %d: unknown operation %q", i, rec.Op)
		}
		code.Emit(tac.Instr{Op: op, Arg1: deref(rec.Arg1), Arg2: deref(rec.Arg2), Result: deref(rec.Result)})
	}
	return code, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("export: encode json: %w", err)
	}
	return nil
}

// MarshalCBOR encodes v as canonical CBOR.
func MarshalCBOR(v any) ([]byte, error) {
	data, err := cborEncMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("export: marshal cbor: %w", err)
	}
	return data, nil
}

// MarshalCode encodes code as canonical CBOR records.
func MarshalCode(code *tac.Code) ([]byte, error) {
	return MarshalCBOR(Records(code))
}

// UnmarshalCode decodes CBOR records produced by MarshalCode.
func UnmarshalCode(data []byte) (*tac.Code, error) {
	var records []Instr
	if err := cbor.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("export: unmarshal code: %w", err)
	}
	return Code(records)
}
