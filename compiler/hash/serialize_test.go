package hash

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestSerialize_Deterministic(t *testing.T) {
	node := &HProgram{Block: &HBlock{
		Vars: []string{"x"},
		Body: &HAssignment{
			Target: &HVarRef{Up: 0, Slot: 0, Name: "x"},
			Value: &HBinary{
				Op:    "+",
				Left:  &HVarRef{Up: 0, Slot: 0, Name: "x"},
				Right: &HIntLiteral{Value: 42},
			},
		},
	}}

	data1 := Serialize(node)
	data2 := Serialize(node)

	if !bytes.Equal(data1, data2) {
		t.Error("serialization is not deterministic")
	}
}

func TestSerialize_VersionPrefix(t *testing.T) {
	data := Serialize(&HIntLiteral{})
	if len(data) < 1 {
		t.Fatal("empty serialization")
	}
	if data[0] != HashVersion {
		t.Errorf("version prefix: got 0x%02X, want 0x%02X", data[0], HashVersion)
	}
}

func TestSerialize_IntLiteral(t *testing.T) {
	data := Serialize(&HIntLiteral{Value: 12345})

	// version(1) + tag(1) + int64(8) = 10
	if len(data) != 10 {
		t.Fatalf("length: got %d, want 10", len(data))
	}
	if data[1] != TagIntLiteral {
		t.Errorf("tag: got 0x%02X, want 0x%02X", data[1], TagIntLiteral)
	}
	if v := int64(binary.BigEndian.Uint64(data[2:10])); v != 12345 {
		t.Errorf("value: got %d, want 12345", v)
	}
}

func TestSerialize_NegativeInt(t *testing.T) {
	data := Serialize(&HIntLiteral{Value: -1})
	want := []byte{HashVersion, TagIntLiteral, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	if !bytes.Equal(data, want) {
		t.Errorf("got % X, want % X", data, want)
	}
}

func TestSerialize_VarRef(t *testing.T) {
	data := Serialize(&HVarRef{Up: 1, Slot: 2, Name: "ab"})
	want := []byte{
		HashVersion, TagVarRef,
		0x00, 0x01, // up
		0x00, 0x02, // slot
		0x00, 0x00, 0x00, 0x02, 'a', 'b',
	}
	if !bytes.Equal(data, want) {
		t.Errorf("got % X, want % X", data, want)
	}
}

func TestSerialize_OddCondition(t *testing.T) {
	data := Serialize(&HCondition{Op: "odd", Left: &HIntLiteral{Value: 3}})
	want := []byte{
		HashVersion, TagCondition,
		0x00, 0x00, 0x00, 0x03, 'o', 'd', 'd',
		TagIntLiteral, 0, 0, 0, 0, 0, 0, 0, 3,
		TagReservedZero, // no right operand
	}
	if !bytes.Equal(data, want) {
		t.Errorf("got % X, want % X", data, want)
	}
}

func TestSerialize_EmptyBlock(t *testing.T) {
	data := Serialize(&HBlock{})
	want := []byte{
		HashVersion, TagBlock,
		0, 0, 0, 0, // consts
		0, 0, 0, 0, // vars
		0, 0, 0, 0, // procs
		TagReservedZero,
	}
	if !bytes.Equal(data, want) {
		t.Errorf("got % X, want % X", data, want)
	}
}

func TestSerialize_OperatorDistinguishes(t *testing.T) {
	a := Serialize(&HBinary{Op: "+", Left: &HIntLiteral{Value: 1}, Right: &HIntLiteral{Value: 2}})
	b := Serialize(&HBinary{Op: "-", Left: &HIntLiteral{Value: 1}, Right: &HIntLiteral{Value: 2}})
	if bytes.Equal(a, b) {
		t.Error("different operators should serialize differently")
	}
}

func TestSerialize_StatementOrderMatters(t *testing.T) {
	w1 := &HWrite{Value: &HIntLiteral{Value: 1}}
	w2 := &HWrite{Value: &HIntLiteral{Value: 2}}
	a := Serialize(&HBegin{Statements: []HNode{w1, w2}})
	b := Serialize(&HBegin{Statements: []HNode{w2, w1}})
	if bytes.Equal(a, b) {
		t.Error("statement order should affect serialization")
	}
}
