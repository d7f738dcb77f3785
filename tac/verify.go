package tac

import (
	"errors"
	"fmt"
)

// VerifyError describes one structural problem in a code sequence.
type VerifyError struct {
	Index int // instruction index, -1 for whole-program problems
	Instr Instr
	Msg   string
}

func (e *VerifyError) Error() string {
	if e.Index < 0 {
		return "tac: " + e.Msg
	}
	return fmt.Sprintf("tac: instruction %d (%s): %s", e.Index, e.Instr, e.Msg)
}

// Verify checks the structural invariants of code against the entry label
// main: labels are defined once, every jump and call target is defined,
// and every temporary is assigned exactly once before any use in
// instruction order. All problems are returned joined.
func Verify(code *Code, main string) error {
	var errs []error
	fail := func(i int, msg string, args ...interface{}) {
		var in Instr
		if i >= 0 {
			in = code.Instrs[i]
		}
		errs = append(errs, &VerifyError{Index: i, Instr: in, Msg: fmt.Sprintf(msg, args...)})
	}

	labels := make(map[string]bool)
	for i, in := range code.Instrs {
		if !in.Op.Valid() {
			fail(i, "unknown operation %q", in.Op)
			continue
		}
		if in.Op != OpLabel {
			continue
		}
		if in.Result == "" {
			fail(i, "label without a name")
			continue
		}
		if labels[in.Result] {
			fail(i, "label %s defined more than once", in.Result)
		}
		labels[in.Result] = true
	}
	if !labels[main] {
		fail(-1, "entry label %s is not defined", main)
	}

	assigned := make(map[string]bool)
	use := func(i int, operand string) {
		if IsTemp(operand) && !assigned[operand] {
			fail(i, "temporary %s used before assignment", operand)
		}
	}
	def := func(i int, temp string) {
		if !IsTemp(temp) {
			fail(i, "result %q is not a temporary", temp)
			return
		}
		if assigned[temp] {
			fail(i, "temporary %s assigned more than once", temp)
		}
		assigned[temp] = true
	}
	target := func(i int, label string) {
		if !labels[label] {
			fail(i, "undefined target %s", label)
		}
	}

	for i, in := range code.Instrs {
		switch {
		case in.Op == OpLoad:
			if in.Arg1 == "" {
				fail(i, "LOAD without operand")
			}
			def(i, in.Result)
		case in.Op.IsBinary():
			use(i, in.Arg1)
			use(i, in.Arg2)
			def(i, in.Result)
		case in.Op.IsUnary():
			use(i, in.Arg1)
			def(i, in.Result)
		case in.Op == OpAssign:
			use(i, in.Arg1)
			if in.Result == "" || IsTemp(in.Result) {
				fail(i, "assignment target %q is not a variable", in.Result)
			}
		case in.Op == OpGoto, in.Op == OpCall:
			target(i, in.Arg1)
		case in.Op == OpIfNot:
			use(i, in.Arg1)
			target(i, in.Arg2)
		case in.Op == OpWrite:
			use(i, in.Arg1)
		case in.Op == OpRead:
			if in.Result == "" {
				fail(i, "READ without target")
			}
		}
	}
	return errors.Join(errs...)
}
