package hash_test

import (
	"testing"

	"github.com/chazu/pl0c/compiler"
	"github.com/chazu/pl0c/compiler/hash"
)

func hashSource(t *testing.T, src string) [32]byte {
	t.Helper()
	prog, table, err := compiler.NewUnit("", src, compiler.Options{}).Check()
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	return hash.HashProgram(prog, table)
}

func TestHashProgram_NonZero(t *testing.T) {
	var zero [32]byte
	if hashSource(t, "var x; x := 1.") == zero {
		t.Error("hash should be non-zero for a valid program")
	}
}

func TestHashProgram_Deterministic(t *testing.T) {
	src := "var x, y; begin x := 1; y := x + 2 end."
	if hashSource(t, src) != hashSource(t, src) {
		t.Error("same source should produce identical hashes")
	}
}

func TestHashProgram_LayoutIndependent(t *testing.T) {
	a := hashSource(t, "var x,y;begin x:=1;y:=x+2 end.")
	b := hashSource(t, `
var x, y;
begin
    x := 1;
    y := x + 2
end.
`)
	if a != b {
		t.Error("spacing and newlines should not affect the hash")
	}
}

func TestHashProgram_RedundantParensIgnored(t *testing.T) {
	a := hashSource(t, "var x; x := 1 + 2 * 3.")
	b := hashSource(t, "var x; x := (1 + (2 * 3)).")
	if a != b {
		t.Error("redundant parentheses should not affect the hash")
	}
}

func TestHashProgram_DifferentBody(t *testing.T) {
	a := hashSource(t, "var x; x := x + 1.")
	b := hashSource(t, "var x; x := x - 1.")
	if a == b {
		t.Error("different bodies should produce different hashes")
	}
}

func TestHashProgram_DifferentNames(t *testing.T) {
	a := hashSource(t, "var x; x := 1.")
	b := hashSource(t, "var y; y := 1.")
	if a == b {
		t.Error("renamed variables change the generated code and the hash")
	}
}

func TestHashProgram_ConstantValue(t *testing.T) {
	a := hashSource(t, "const k = 1; var x; x := k.")
	b := hashSource(t, "const k = 2; var x; x := k.")
	if a == b {
		t.Error("constant values should contribute to the hash")
	}
}

func TestKey(t *testing.T) {
	prog, table, err := compiler.NewUnit("", "var x; x := 1.", compiler.Options{}).Check()
	if err != nil {
		t.Fatal(err)
	}
	key := hash.Key(prog, table)
	if len(key) != 64 {
		t.Errorf("key length = %d, want 64", len(key))
	}
}
