package compiler

import (
	"errors"
	"strings"
	"testing"

	"github.com/chazu/pl0c/tac"
)

func compileSource(t *testing.T, src string) *tac.Code {
	t.Helper()
	res, err := Compile(src, Options{})
	if err != nil {
		t.Fatalf("Compile(%q): %v", src, err)
	}
	return res.Code
}

func listing(code *tac.Code) []string {
	var out []string
	for _, in := range code.Instrs {
		out = append(out, in.String())
	}
	return out
}

func assertListing(t *testing.T, code *tac.Code, want []string) {
	t.Helper()
	got := listing(code)
	if len(got) != len(want) {
		t.Fatalf("got %d instructions, want %d:\n%s", len(got), len(want), strings.Join(got, "\n"))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("instr[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCompileExpressionPrecedence(t *testing.T) {
	code, result, err := CompileExpression("1 + 2 * 3")
	if err != nil {
		t.Fatalf("CompileExpression: %v", err)
	}
	assertListing(t, code, []string{
		"t0 = LOAD 2",
		"t1 = LOAD 3",
		"t2 = * t0 t1",
		"t3 = LOAD 1",
		"t4 = + t3 t2",
	})
	if result != "t4" {
		t.Errorf("result = %s, want t4", result)
	}
}

func TestCompileExpressionOrder(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"1 - 2", []string{"t0 = LOAD 1", "t1 = LOAD 2", "t2 = - t0 t1"}},
		{"a * b - c", []string{"t0 = LOAD a", "t1 = LOAD b", "t2 = * t0 t1", "t3 = LOAD c", "t4 = - t2 t3"}},
		{"-x", []string{"t0 = LOAD x", "t1 = NEG t0"}},
		{"(a + b) * (c + d)", []string{
			"t0 = LOAD a", "t1 = LOAD b", "t2 = + t0 t1",
			"t3 = LOAD c", "t4 = LOAD d", "t5 = + t3 t4",
			"t6 = * t2 t5",
		}},
	}

	for _, tc := range tests {
		code, _, err := CompileExpression(tc.input)
		if err != nil {
			t.Fatalf("CompileExpression(%q): %v", tc.input, err)
		}
		got := listing(code)
		if strings.Join(got, "; ") != strings.Join(tc.want, "; ") {
			t.Errorf("%q:\n got %v\nwant %v", tc.input, got, tc.want)
		}
	}
}

func TestCompileAssignmentAndConstants(t *testing.T) {
	code := compileSource(t, "const k = 5; var x; x := k + x.")
	assertListing(t, code, []string{
		"main:",
		"t0 = LOAD 5",
		"t1 = LOAD x",
		"t2 = + t0 t1",
		"x = t2",
		"HALT",
	})
}

func TestCompileWhile(t *testing.T) {
	code := compileSource(t, "var x; while (x < 10) do x := x + 1.")
	assertListing(t, code, []string{
		"main:",
		"L0:",
		"t0 = LOAD x",
		"t1 = LOAD 10",
		"t2 = < t0 t1",
		"IF_NOT t2 GOTO L1",
		"t3 = LOAD x",
		"t4 = LOAD 1",
		"t5 = + t3 t4",
		"x = t5",
		"GOTO L0",
		"L1:",
		"HALT",
	})
}

func TestCompileWhileControlFlowShape(t *testing.T) {
	code := compileSource(t, "var x; while (x < 10) do x := x + 1.")
	labels := code.Labels()

	var backward, forward int
	for i, in := range code.Instrs {
		switch in.Op {
		case tac.OpGoto:
			if labels[in.Arg1] < i {
				backward++
			}
		case tac.OpIfNot:
			if labels[in.Arg2] > i {
				forward++
			}
		}
	}
	if backward != 1 || forward != 1 {
		t.Errorf("backward GOTOs = %d, forward IF_NOTs = %d, want 1 and 1", backward, forward)
	}
}

func TestCompileIfAndOdd(t *testing.T) {
	code := compileSource(t, "var x; if odd x then x := 0.")
	assertListing(t, code, []string{
		"main:",
		"t0 = LOAD x",
		"t1 = ODD t0",
		"IF_NOT t1 GOTO L0",
		"t2 = LOAD 0",
		"x = t2",
		"L0:",
		"HALT",
	})
}

func TestCompileRelationalOps(t *testing.T) {
	tests := map[string]string{
		"=": "==", "#": "!=", "<": "<", "<=": "<=", ">": ">", ">=": ">=",
	}
	for src, op := range tests {
		code := compileSource(t, "var x; if (x "+src+" 1) then x := 1.")
		want := "t2 = " + op + " t0 t1"
		if got := code.Instrs[3].String(); got != want {
			t.Errorf("relop %s: instr = %q, want %q", src, got, want)
		}
	}
}

func TestCompileProcedures(t *testing.T) {
	code := compileSource(t, `
var x;
procedure p;
  var y;
  procedure q;
    y := x;
  begin y := 1; call q end;
procedure r;
  call p;
begin ? x; call r; ! x end.`)

	assertListing(t, code, []string{
		"main:",
		"READ x",
		"CALL r",
		"t0 = LOAD x",
		"WRITE t0",
		"HALT",
		"p:",
		"t1 = LOAD 1",
		"p.y = t1",
		"CALL p.q",
		"RETURN",
		"p.q:",
		"t2 = LOAD x",
		"p.y = t2",
		"RETURN",
		"r:",
		"CALL p",
		"RETURN",
	})
}

func TestCompileCustomMainLabel(t *testing.T) {
	res, err := Compile("var start; start := 1.", Options{MainLabel: "start"})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	got := listing(res.Code)
	if got[0] != "start:" || got[2] != ".start = t0" {
		t.Errorf("listing = %v", got)
	}
}

func TestCompileRejectsReservedMainLabel(t *testing.T) {
	src := "var x; while (x < 3) do x := x + 1."
	for _, label := range []string{"L0", "t3", "NULL", "a.b", "1st", "main label"} {
		t.Run(label, func(t *testing.T) {
			res, err := Compile(src, Options{MainLabel: label})
			if res != nil {
				t.Error("rejected options should yield no result")
			}
			var optErr *OptionError
			if !errors.As(err, &optErr) {
				t.Fatalf("err = %v, want *OptionError", err)
			}
			if optErr.Value != label {
				t.Errorf("Value = %q, want %q", optErr.Value, label)
			}
			if _, _, err := NewUnit("", src, Options{MainLabel: label}).Check(); !errors.As(err, &optErr) {
				t.Errorf("Check err = %v, want *OptionError", err)
			}
		})
	}

	for _, label := range []string{"Lx", "t", "L0a", "_start", "Null"} {
		if _, err := Compile(src, Options{MainLabel: label}); err != nil {
			t.Errorf("main label %q: %v", label, err)
		}
	}
}

func TestCompileUniqueTempsAndLabels(t *testing.T) {
	code := compileSource(t, `
var a, b;
procedure p;
  while (a > 0) do begin a := a - 1; if odd a then b := b + a end;
begin
  a := 10;
  while (b < 100) do begin b := b * 2 + 1; call p end;
  if (a = b) then ! a
end.`)

	temps := map[string]bool{}
	labels := map[string]bool{}
	for _, in := range code.Instrs {
		if in.Op == tac.OpLabel {
			if labels[in.Result] {
				t.Errorf("label %s defined twice", in.Result)
			}
			labels[in.Result] = true
			continue
		}
		if tac.IsTemp(in.Result) {
			if temps[in.Result] {
				t.Errorf("temp %s assigned twice", in.Result)
			}
			temps[in.Result] = true
		}
	}
	if err := tac.Verify(code, "main"); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestGeneratorRequiresTable(t *testing.T) {
	prog := parseSource(t, "var x; x := 1.")
	if _, err := NewGenerator(nil).Generate(prog); err == nil {
		t.Errorf("Generate without a symbol table should fail")
	}
}
