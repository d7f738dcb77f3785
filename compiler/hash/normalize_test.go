package hash

import (
	"testing"

	"github.com/chazu/pl0c/compiler"
)

func lower(t *testing.T, src string) *HProgram {
	t.Helper()
	prog, table, err := compiler.NewUnit("", src, compiler.Options{}).Check()
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	return Lower(prog, table)
}

func TestLower_RootVariable(t *testing.T) {
	hp := lower(t, "var x, y; y := x.")

	if got := hp.Block.Vars; len(got) != 2 || got[0] != "x" || got[1] != "y" {
		t.Fatalf("vars = %v", got)
	}
	as, ok := hp.Block.Body.(*HAssignment)
	if !ok {
		t.Fatalf("body: got %T, want *HAssignment", hp.Block.Body)
	}
	if *as.Target != (HVarRef{Up: 0, Slot: 1, Name: "y"}) {
		t.Errorf("target = %+v", *as.Target)
	}
	val, ok := as.Value.(*HVarRef)
	if !ok || *val != (HVarRef{Up: 0, Slot: 0, Name: "x"}) {
		t.Errorf("value = %#v", as.Value)
	}
}

func TestLower_ConstantFolded(t *testing.T) {
	hp := lower(t, "const k = 7; var x; x := k.")

	if len(hp.Block.Consts) != 1 || *hp.Block.Consts[0] != (HConstDecl{Name: "k", Value: 7}) {
		t.Fatalf("consts = %+v", hp.Block.Consts)
	}
	as := hp.Block.Body.(*HAssignment)
	ref, ok := as.Value.(*HConstRef)
	if !ok {
		t.Fatalf("value: got %T, want *HConstRef", as.Value)
	}
	if ref.Value != 7 || ref.Up != 0 || ref.Name != "k" {
		t.Errorf("const ref = %+v", *ref)
	}
}

func TestLower_ScopeDistance(t *testing.T) {
	hp := lower(t, `
var g;
procedure p;
  var l;
  procedure q;
    g := l;
  call q;
call p.`)

	p := hp.Block.Procs[0]
	if p.Name != "p" {
		t.Fatalf("proc name = %q", p.Name)
	}
	q := p.Block.Procs[0]
	as := q.Block.Body.(*HAssignment)
	if as.Target.Up != 2 || as.Target.Slot != 0 {
		t.Errorf("g from q: up %d slot %d, want 2 0", as.Target.Up, as.Target.Slot)
	}
	l := as.Value.(*HVarRef)
	if l.Up != 1 || l.Slot != 0 {
		t.Errorf("l from q: up %d slot %d, want 1 0", l.Up, l.Slot)
	}

	call := p.Block.Body.(*HCall)
	if call.Target.Up != 0 || call.Target.Slot != 0 || call.Target.Name != "q" {
		t.Errorf("call q from p = %+v", *call.Target)
	}
	root := hp.Block.Body.(*HCall)
	if root.Target.Up != 0 || root.Target.Name != "p" {
		t.Errorf("call p from root = %+v", *root.Target)
	}
}

func TestLower_Conditions(t *testing.T) {
	hp := lower(t, "var x; begin if odd x then x := 1; while (x < 3) do x := x + 1 end.")

	begin := hp.Block.Body.(*HBegin)
	if len(begin.Statements) != 2 {
		t.Fatalf("statements = %d", len(begin.Statements))
	}
	ifs := begin.Statements[0].(*HIf)
	if ifs.Cond.Op != "odd" || ifs.Cond.Right != nil {
		t.Errorf("if cond = %+v", *ifs.Cond)
	}
	wh := begin.Statements[1].(*HWhile)
	if wh.Cond.Op != "<" {
		t.Errorf("while op = %q", wh.Cond.Op)
	}
	body := wh.Body.(*HAssignment)
	bin := body.Value.(*HBinary)
	if bin.Op != "+" {
		t.Errorf("binary op = %q", bin.Op)
	}
}

func TestLower_NegateAndIO(t *testing.T) {
	hp := lower(t, "var x; begin ? x; ! -x end.")

	begin := hp.Block.Body.(*HBegin)
	rd := begin.Statements[0].(*HRead)
	if rd.Target.Name != "x" {
		t.Errorf("read target = %+v", *rd.Target)
	}
	wr := begin.Statements[1].(*HWrite)
	if _, ok := wr.Value.(*HNegate); !ok {
		t.Errorf("write value: got %T, want *HNegate", wr.Value)
	}
}

func TestLower_UnresolvedUse(t *testing.T) {
	tokens, err := compiler.Tokenize("var x; y := x.", compiler.LexOptions{})
	if err != nil {
		t.Fatal(err)
	}
	prog, err := compiler.Parse(tokens)
	if err != nil {
		t.Fatal(err)
	}
	hp := Lower(prog, compiler.NewSymbolTable())
	as := hp.Block.Body.(*HAssignment)
	if as.Target.Up != Unresolved || as.Target.Name != "y" {
		t.Errorf("target = %+v", *as.Target)
	}
}
