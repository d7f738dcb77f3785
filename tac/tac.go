// Package tac defines the three-address code produced by the PL/0 compiler:
// the instruction set, its text formats, and a structural verifier.
package tac

import (
	"fmt"
	"strconv"
	"strings"
)

// Op is a TAC operation.
type Op string

const (
	OpLoad   Op = "LOAD"
	OpAdd    Op = "+"
	OpSub    Op = "-"
	OpMul    Op = "*"
	OpDiv    Op = "/"
	OpEq     Op = "=="
	OpNe     Op = "!="
	OpLt     Op = "<"
	OpLe     Op = "<="
	OpGt     Op = ">"
	OpGe     Op = ">="
	OpNeg    Op = "NEG"
	OpOdd    Op = "ODD"
	OpAssign Op = "="
	OpGoto   Op = "GOTO"
	OpIfNot  Op = "IF_NOT"
	OpLabel  Op = "LABEL"
	OpCall   Op = "CALL"
	OpReturn Op = "RETURN"
	OpRead   Op = "READ"
	OpWrite  Op = "WRITE"
	OpHalt   Op = "HALT"
)

var knownOps = map[Op]bool{
	OpLoad: true, OpAdd: true, OpSub: true, OpMul: true, OpDiv: true,
	OpEq: true, OpNe: true, OpLt: true, OpLe: true, OpGt: true, OpGe: true,
	OpNeg: true, OpOdd: true, OpAssign: true, OpGoto: true, OpIfNot: true,
	OpLabel: true, OpCall: true, OpReturn: true, OpRead: true, OpWrite: true,
	OpHalt: true,
}

// Valid reports whether op is part of the instruction set.
func (op Op) Valid() bool {
	return knownOps[op]
}

// IsBinary reports whether op takes two operands and writes a temporary.
func (op Op) IsBinary() bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv, OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// IsUnary reports whether op takes one operand and writes a temporary.
func (op Op) IsUnary() bool {
	return op == OpNeg || op == OpOdd
}

// Instr is a single instruction. An empty field is absent.
type Instr struct {
	Op     Op
	Arg1   string
	Arg2   string
	Result string
}

// String renders the instruction in listing form.
func (in Instr) String() string {
	switch {
	case in.Op == OpLabel:
		return in.Result + ":"
	case in.Op == OpLoad:
		return fmt.Sprintf("%s = LOAD %s", in.Result, in.Arg1)
	case in.Op.IsBinary():
		return fmt.Sprintf("%s = %s %s %s", in.Result, in.Op, in.Arg1, in.Arg2)
	case in.Op.IsUnary():
		return fmt.Sprintf("%s = %s %s", in.Result, in.Op, in.Arg1)
	case in.Op == OpAssign:
		return fmt.Sprintf("%s = %s", in.Result, in.Arg1)
	case in.Op == OpGoto:
		return "GOTO " + in.Arg1
	case in.Op == OpIfNot:
		return fmt.Sprintf("IF_NOT %s GOTO %s", in.Arg1, in.Arg2)
	case in.Op == OpCall:
		return "CALL " + in.Arg1
	case in.Op == OpRead:
		return "READ " + in.Result
	case in.Op == OpWrite:
		return "WRITE " + in.Arg1
	}
	return string(in.Op)
}

// Code is an ordered instruction sequence. It only grows.
type Code struct {
	Instrs []Instr
}

// Emit appends an instruction.
func (c *Code) Emit(in Instr) {
	c.Instrs = append(c.Instrs, in)
}

// Len returns the number of instructions.
func (c *Code) Len() int {
	return len(c.Instrs)
}

// Labels maps each label to the index of its LABEL instruction.
func (c *Code) Labels() map[string]int {
	labels := make(map[string]int)
	for i, in := range c.Instrs {
		if in.Op == OpLabel {
			if _, dup := labels[in.Result]; !dup {
				labels[in.Result] = i
			}
		}
	}
	return labels
}

// String returns the listing of the code.
func (c *Code) String() string {
	var sb strings.Builder
	_ = WriteListing(&sb, c)
	return sb.String()
}

// IsTemp reports whether name has the form of a generated temporary.
func IsTemp(name string) bool {
	return isCounterName(name, 't')
}

// IsLabel reports whether name has the form of a generated label.
func IsLabel(name string) bool {
	return isCounterName(name, 'L')
}

func isCounterName(name string, prefix byte) bool {
	if len(name) < 2 || name[0] != prefix {
		return false
	}
	_, err := strconv.ParseUint(name[1:], 10, 64)
	return err == nil
}

// IsLiteral reports whether operand is an integer literal.
func IsLiteral(operand string) bool {
	_, err := strconv.ParseInt(operand, 10, 64)
	return err == nil
}
