package vm

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// fidelityPrograms run identically on the machine and the tree walker.
var fidelityPrograms = map[string]string{
	"count": "var x; while (x < 10) do x := x + 1.",
	"gcd": `
var a, b;
begin
  a := 84; b := 36;
  while (a # b) do
  begin
    if (a > b) then a := a - b;
    if (b > a) then b := b - a
  end
end.`,
	"nested": `
const two = 2;
var x, y;
procedure outer;
  var x;
  procedure inner;
    x := y * two;
  begin x := -y; call inner; y := x + 1 end;
begin y := 5; call outer; call outer end.`,
	"primes": `
const max = 30;
var n, d, isprime, count;
procedure check;
  begin
    isprime := 1; d := 2;
    while (d * d <= n) do
    begin
      if (n / d * d = n) then isprime := 0;
      d := d + 1
    end
  end;
begin
  n := 2; count := 0;
  while (n <= max) do
  begin
    call check;
    if (isprime = 1) then begin count := count + 1; ! n end;
    n := n + 1
  end
end.`,
	"odd": "var i, s; while (i < 9) do begin i := i + 1; if odd i then s := s + i end.",
	"collide": "var t0, L0, main; begin t0 := 1; L0 := t0 + 1; main := L0 * 2 end.",
}

func TestControlFlowFidelity(t *testing.T) {
	for name, src := range fidelityPrograms {
		t.Run(name, func(t *testing.T) {
			res := mustCompile(t, src)

			var machineOut, evalOut strings.Builder
			m := New(WithOutput(&machineOut))
			if err := m.Run(context.Background(), res.Code); err != nil {
				t.Fatalf("Run: %v", err)
			}
			vars, err := Eval(context.Background(), res.Program, res.Symbols, WithOutput(&evalOut))
			if err != nil {
				t.Fatalf("Eval: %v", err)
			}

			got := m.Vars()
			for name, want := range vars {
				if got[name] != want {
					t.Errorf("%s: machine %d, tree walker %d", name, got[name], want)
				}
			}
			for name := range got {
				if _, ok := vars[name]; !ok && got[name] != 0 {
					t.Errorf("%s set only by the machine", name)
				}
			}
			if machineOut.String() != evalOut.String() {
				t.Errorf("output differs:\nmachine %q\neval    %q", machineOut.String(), evalOut.String())
			}
		})
	}
}

func TestEvalResults(t *testing.T) {
	res := mustCompile(t, fidelityPrograms["gcd"])
	vars, err := Eval(context.Background(), res.Program, res.Symbols)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if vars["a"] != 12 || vars["b"] != 12 {
		t.Errorf("gcd = %d/%d, want 12", vars["a"], vars["b"])
	}

	res = mustCompile(t, fidelityPrograms["nested"])
	vars, err = Eval(context.Background(), res.Program, res.Symbols)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	// First call: outer.x = -5, then 10, y = 11. Second: outer.x = -11 then 22, y = 23.
	if vars["y"] != 23 || vars["outer.x"] != 22 {
		t.Errorf("vars = %v", vars)
	}
}

func TestEvalPrimesOutput(t *testing.T) {
	res := mustCompile(t, fidelityPrograms["primes"])
	var out strings.Builder
	vars, err := Eval(context.Background(), res.Program, res.Symbols, WithOutput(&out))
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if vars["count"] != 10 {
		t.Errorf("count = %d, want 10", vars["count"])
	}
	if !strings.HasPrefix(out.String(), "2\n3\n5\n7\n11\n") {
		t.Errorf("output = %q", out.String())
	}
}

func TestEvalErrors(t *testing.T) {
	res := mustCompile(t, "var x; x := 5 / x.")
	_, err := Eval(context.Background(), res.Program, res.Symbols)
	if !errors.Is(err, ErrDivideByZero) {
		t.Errorf("err = %v, want division by zero", err)
	}

	res = mustCompile(t, "var x; while (x = 0) do x := 0.")
	_, err = Eval(context.Background(), res.Program, res.Symbols, WithStepLimit(100))
	if !errors.Is(err, ErrStepLimit) {
		t.Errorf("err = %v, want step limit", err)
	}
}
