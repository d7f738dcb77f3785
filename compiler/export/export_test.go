package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/chazu/pl0c/compiler"
)

func compile(t *testing.T, src string) *compiler.Result {
	t.Helper()
	res, err := compiler.Compile(src, compiler.Options{})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return res
}

func TestTokens(t *testing.T) {
	res := compile(t, "var x; x := 10.")
	got := Tokens(res.Tokens)

	want := []Token{
		{Kind: "var", Line: 1, Column: 1},
		{Kind: "IDENT", Literal: "x", Line: 1, Column: 5},
		{Kind: ";", Line: 1, Column: 6},
		{Kind: "IDENT", Literal: "x", Line: 1, Column: 8},
		{Kind: ":=", Line: 1, Column: 10},
		{Kind: "NUMBER", Literal: "10", Line: 1, Column: 13},
		{Kind: ".", Line: 1, Column: 15},
		{Kind: "EOF", Line: 1, Column: 16},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestTokensAppendsEOF(t *testing.T) {
	toks := []compiler.Token{{Type: compiler.TokenIdent, Literal: "abc", Pos: compiler.Position{Line: 2, Column: 3}}}
	got := Tokens(toks)
	if len(got) != 2 {
		t.Fatalf("got %d records", len(got))
	}
	if got[1] != (Token{Kind: "EOF", Line: 2, Column: 6}) {
		t.Errorf("EOF record = %+v", got[1])
	}
}

func TestTokenJSONOmitsLiteral(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, []Token{{Kind: ";", Line: 1, Column: 2}}); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "literal") {
		t.Errorf("punctuation record carries a literal: %s", buf.String())
	}
}

func TestTreeShape(t *testing.T) {
	tokens, err := compiler.Tokenize("1 + 2 * 3", compiler.LexOptions{})
	if err != nil {
		t.Fatal(err)
	}
	expr, err := compiler.ParseExpression(tokens)
	if err != nil {
		t.Fatal(err)
	}
	root := Tree(expr)

	if root.Type != "BinaryOp" || root.Value != "+" || len(root.Children) != 2 {
		t.Fatalf("root = %+v", root)
	}
	left, right := root.Children[0], root.Children[1]
	if left.Type != "Number" || left.Value != int64(1) {
		t.Errorf("left = %+v", left)
	}
	if right.Type != "BinaryOp" || right.Value != "*" {
		t.Fatalf("right = %+v", right)
	}
	if right.Children[0].Value != int64(2) || right.Children[1].Value != int64(3) {
		t.Errorf("right operands = %v, %v", right.Children[0].Value, right.Children[1].Value)
	}
}

func TestTreeProgram(t *testing.T) {
	res := compile(t, "const k = 2; var x; procedure p; x := k; call p.")
	root := Tree(res.Program)
	if root.Type != "Program" || len(root.Children) != 1 {
		t.Fatalf("root = %+v", root)
	}
	block := root.Children[0]
	var types []string
	for _, c := range block.Children {
		types = append(types, c.Type)
	}
	if got := strings.Join(types, " "); got != "ConstDecl VarDecl ProcDecl Call" {
		t.Errorf("block children = %s", got)
	}
	if block.Children[0].Value != "k" || block.Children[0].Children[0].Value != int64(2) {
		t.Errorf("const = %+v", block.Children[0])
	}
}

func TestTreeJSONChildrenAlwaysPresent(t *testing.T) {
	res := compile(t, "var x; x := 1.")
	var buf bytes.Buffer
	if err := WriteJSON(&buf, Tree(res.Program)); err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	var walk func(n map[string]any)
	walk = func(n map[string]any) {
		children, ok := n["children"].([]any)
		if !ok {
			t.Errorf("%v node without children array", n["type"])
			return
		}
		for _, c := range children {
			walk(c.(map[string]any))
		}
	}
	walk(decoded)
}

func TestSymbols(t *testing.T) {
	res := compile(t, "const k = 3; var x; procedure p; var y; y := x; call p.")
	root := Symbols(res.Symbols)

	if root.Depth != 0 || len(root.Symbols) != 3 {
		t.Fatalf("root = %+v", root)
	}
	k := root.Symbols[0]
	if k.Kind != "constant" || k.Value == nil || *k.Value != 3 {
		t.Errorf("k = %+v", k)
	}
	if x := root.Symbols[1]; x.Kind != "variable" || x.Value != nil || x.Storage != "x" {
		t.Errorf("x = %+v", x)
	}
	if len(root.Children) != 1 {
		t.Fatalf("children = %d", len(root.Children))
	}
	p := root.Children[0]
	if p.Name != "p" || p.Depth != 1 || len(p.Symbols) != 1 || p.Symbols[0].Storage != "p.y" {
		t.Errorf("p = %+v", p)
	}
}

func TestCodeCBOR(t *testing.T) {
	res := compile(t, "var x; begin x := 1; while (x < 4) do x := x * 2; ! x end.")

	data, err := MarshalCode(res.Code)
	if err != nil {
		t.Fatal(err)
	}
	again, err := MarshalCode(res.Code)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, again) {
		t.Error("CBOR encoding is not deterministic")
	}

	code, err := UnmarshalCode(data)
	if err != nil {
		t.Fatal(err)
	}
	if code.String() != res.Code.String() {
		t.Errorf("decoded listing differs:\n%s\nwant\n%s", code, res.Code)
	}
}

func TestCodeRejectsUnknownOp(t *testing.T) {
	if _, err := Code([]Instr{{Op: "JUMP"}}); err == nil {
		t.Error("expected error for unknown operation")
	}
}

func TestRecordsNulls(t *testing.T) {
	res := compile(t, "var x; x := 1.")
	var buf bytes.Buffer
	if err := WriteJSON(&buf, Records(res.Code)); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"arg2": null`) {
		t.Errorf("absent fields should encode as null:\n%s", buf.String())
	}
}
