package compiler

import (
	"errors"
	"strings"
	"testing"
)

func analyzeSource(t *testing.T, src string) (*Program, *SymbolTable) {
	t.Helper()
	prog := parseSource(t, src)
	table, err := Analyze(prog)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	return prog, table
}

func semanticErrors(t *testing.T, src string) []*SemanticError {
	t.Helper()
	prog := parseSource(t, src)
	_, err := Analyze(prog)
	if err == nil {
		t.Fatalf("Analyze(%q) succeeded, want error", src)
	}
	var out []*SemanticError
	var list ErrorList
	if errors.As(err, &list) {
		for _, e := range list {
			var serr *SemanticError
			if errors.As(e, &serr) {
				out = append(out, serr)
			}
		}
		return out
	}
	var serr *SemanticError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want *SemanticError", err)
	}
	return []*SemanticError{serr}
}

func TestSemanticScopes(t *testing.T) {
	_, table := analyzeSource(t, `
const c = 7;
var x, y;
procedure p;
  var x;
  procedure q;
    var z;
    z := x + y + c;
  x := 1;
y := c.`)

	root := table.Root
	if root.Depth != 0 || len(root.Children) != 1 {
		t.Fatalf("root depth %d with %d children", root.Depth, len(root.Children))
	}
	c, ok := root.Lookup("c")
	if !ok || c.Kind != Constant || c.Value != 7 || c.Offset != -1 {
		t.Errorf("c = %+v", c)
	}
	y, _ := root.Lookup("y")
	if y.Offset != 1 || y.Storage != "y" {
		t.Errorf("y offset %d storage %q, want 1 and y", y.Offset, y.Storage)
	}
	p, _ := root.Lookup("p")
	if p.Kind != Procedure || p.Offset != 0 || p.Body == nil {
		t.Fatalf("p = %+v", p)
	}

	pScope := p.Body
	if pScope.Depth != 1 || pScope.Path() != "p" {
		t.Errorf("p scope depth %d path %q", pScope.Depth, pScope.Path())
	}
	px, _ := pScope.Lookup("x")
	if px.Storage != "p.x" || px.Depth != 1 || px.Offset != 0 {
		t.Errorf("p.x = %+v", px)
	}

	q, _ := pScope.Lookup("q")
	if q.Storage != "p.q" {
		t.Errorf("q label = %q, want p.q", q.Storage)
	}
	z, _ := q.Body.Lookup("z")
	if z.Storage != "p.q.z" || z.Depth != 2 {
		t.Errorf("z = %+v", z)
	}

	// Inside q, x resolves to p's x (shadowing), y to the root's.
	if sym, _ := q.Body.Resolve("x"); sym != px {
		t.Errorf("x inside q resolved to %+v, want p.x", sym)
	}
	if sym, _ := q.Body.Resolve("y"); sym != y {
		t.Errorf("y inside q resolved to %+v, want root y", sym)
	}
	if _, ok := q.Body.Lookup("y"); ok {
		t.Errorf("Lookup must not search outer scopes")
	}
}

func TestSemanticScopingIndependence(t *testing.T) {
	// A name declared in one procedure is not visible in a sibling.
	errs := semanticErrors(t, `
procedure a;
  var local;
  local := 1;
procedure b;
  local := 2;
call a.`)

	if len(errs) != 1 || errs[0].Code != Undeclared || errs[0].Name != "local" {
		t.Fatalf("errors = %v", errs)
	}
	if errs[0].Span.Start.Line != 6 {
		t.Errorf("error line = %d, want 6", errs[0].Span.Start.Line)
	}
}

func TestSemanticUndeclaredAtDepth(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		line   int
		column int
	}{
		{"depth 0", "var x; x := y.", 1, 13},
		{"depth 1", "procedure p; x := 1; call p.", 1, 14},
		{"depth 2", "procedure p; procedure q; call r; call q; call p.", 1, 32},
		{"depth 3", "procedure a; procedure b; procedure c; ? w; call c; call b; call a.", 1, 42},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			errs := semanticErrors(t, tc.src)
			if len(errs) != 1 {
				t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
			}
			e := errs[0]
			if e.Code != Undeclared {
				t.Errorf("code = %v, want Undeclared", e.Code)
			}
			if e.Span.Start.Line != tc.line || e.Span.Start.Column != tc.column {
				t.Errorf("position = %v, want %d:%d", e.Span.Start, tc.line, tc.column)
			}
		})
	}
}

func TestSemanticDuplicateDeclaration(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"var twice", "var x, x; x := 1."},
		{"const and var", "const x = 1; var x; x := 1."},
		{"var and procedure", "var p; procedure p; p := 1; p := 1."},
		{"nested", "procedure p; var a, a; a := 1; call p."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			errs := semanticErrors(t, tc.src)
			found := false
			for _, e := range errs {
				if e.Code == DuplicateDeclaration {
					found = true
					if !strings.Contains(e.Message, "already declared") {
						t.Errorf("message = %q", e.Message)
					}
				}
			}
			if !found {
				t.Errorf("no DuplicateDeclaration in %v", errs)
			}
		})
	}
}

func TestSemanticShadowingAllowed(t *testing.T) {
	_, table := analyzeSource(t, "var x; procedure p; var x; x := 2; begin x := 1; call p end.")
	if len(table.Root.Children) != 1 {
		t.Fatalf("expected one procedure scope")
	}
}

func TestSemanticRecursionAndLaterSiblings(t *testing.T) {
	// p calls itself; q calls the earlier p.
	analyzeSource(t, `
var n;
procedure p;
  if (n > 0) then begin n := n - 1; call p end;
procedure q;
  call p;
call q.`)

	// A procedure cannot call a sibling declared after it.
	errs := semanticErrors(t, "procedure a; call b; procedure b; call a; call a.")
	if len(errs) != 1 || errs[0].Code != Undeclared || errs[0].Name != "b" {
		t.Errorf("errors = %v", errs)
	}
}

func TestSemanticKindMismatch(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"assign to constant", "const c = 1; c := 2."},
		{"assign to procedure", "procedure p; p := 2; p := 2."},
		{"call variable", "var x; call x."},
		{"read constant", "const c = 1; ? c."},
		{"procedure as value", "var x; procedure p; x := 1; x := p + 1."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			errs := semanticErrors(t, tc.src)
			for _, e := range errs {
				if e.Code == KindMismatch {
					return
				}
			}
			t.Errorf("errors = %v, want KindMismatch", errs)
		})
	}
}

func TestSemanticCollectsAllErrors(t *testing.T) {
	errs := semanticErrors(t, "var x; begin a := 1; b := 2; x := c end.")
	if len(errs) != 3 {
		t.Fatalf("got %d errors, want 3", len(errs))
	}
	for i, name := range []string{"a", "b", "c"} {
		if errs[i].Name != name {
			t.Errorf("error[%d] names %q, want %q", i, errs[i].Name, name)
		}
	}
}

func TestSemanticStorageCollisions(t *testing.T) {
	_, table := analyzeSource(t, "var t0, L3, main, NULL, total; begin t0 := 1; L3 := 2; main := 3; NULL := 4; total := 5 end.")
	want := map[string]string{"t0": ".t0", "L3": ".L3", "main": ".main", "NULL": ".NULL", "total": "total"}
	for name, storage := range want {
		sym, _ := table.Root.Lookup(name)
		if sym.Storage != storage {
			t.Errorf("%s storage = %q, want %q", name, sym.Storage, storage)
		}
	}
}

func TestSemanticUsesRecorded(t *testing.T) {
	prog, table := analyzeSource(t, "var a; a := a + 1.")
	assign := prog.Block.Body.(*Assignment)
	sym := table.Uses[assign.Target]
	if sym == nil || sym.Name != "a" {
		t.Fatalf("target use not recorded")
	}
	if table.Uses[assign.Value.(*BinaryOp).Left.(*Ident)] != sym {
		t.Errorf("operand use resolves to a different symbol")
	}
	if table.Decls[prog.Block.Vars[0]] != sym {
		t.Errorf("declaration node not recorded")
	}
}

func TestSymbolTableDump(t *testing.T) {
	_, table := analyzeSource(t, "const k = 3; var x; procedure p; var y; y := k; x := k.")
	dump := table.Dump()
	for _, want := range []string{"scope <root> (depth 0)", "const k = 3", "variable x [0] -> x", "scope p (depth 1)", "variable y [0] -> p.y"} {
		if !strings.Contains(dump, want) {
			t.Errorf("dump missing %q:\n%s", want, dump)
		}
	}
}

func TestScopeVisible(t *testing.T) {
	_, table := analyzeSource(t, "var x, y; procedure p; var x; x := y; x := 1.")
	p, _ := table.Root.Lookup("p")
	vis := p.Body.Visible()
	if len(vis) != 3 {
		t.Fatalf("visible = %d symbols, want 3 (p.x, y, p)", len(vis))
	}
	if vis[0].Storage != "p.x" {
		t.Errorf("innermost x should shadow the outer one, got %q", vis[0].Storage)
	}
}
