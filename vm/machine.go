package vm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/chazu/pl0c/tac"
)

// ---------------------------------------------------------------------------
// Machine: TAC interpreter
// ---------------------------------------------------------------------------

// DefaultStepLimit bounds the number of executed instructions.
const DefaultStepLimit = 10_000_000

// maxCallDepth bounds the return stack.
const maxCallDepth = 100_000

// checkInterval is the number of steps between context checks.
const checkInterval = 1024

// Errors wrapped by RuntimeError.
var (
	ErrDivideByZero     = errors.New("division by zero")
	ErrStepLimit        = errors.New("step limit exceeded")
	ErrUnknownLabel     = errors.New("unknown label")
	ErrReturnEmptyStack = errors.New("return with empty call stack")
	ErrCallDepth        = errors.New("call stack overflow")
	ErrUndefinedTemp    = errors.New("undefined temporary")
	ErrBadInput         = errors.New("bad input")
)

// RuntimeError reports a failure while executing an instruction.
type RuntimeError struct {
	PC    int
	Instr tac.Instr
	Err   error
}

func (e *RuntimeError) Error() string {
	if e.PC < 0 {
		return fmt.Sprintf("runtime error: %v", e.Err)
	}
	return fmt.Sprintf("runtime error at %d (%s): %v", e.PC, e.Instr, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// Option configures a Machine or an evaluation.
type Option func(*config)

type config struct {
	in        io.Reader
	out       io.Writer
	stepLimit int
	entry     string
}

func newConfig(opts []Option) *config {
	cfg := &config{
		in:        os.Stdin,
		out:       os.Stdout,
		stepLimit: DefaultStepLimit,
		entry:     "main",
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithInput sets the reader consumed by READ.
func WithInput(r io.Reader) Option {
	return func(c *config) { c.in = r }
}

// WithOutput sets the writer used by WRITE.
func WithOutput(w io.Writer) Option {
	return func(c *config) { c.out = w }
}

// WithStepLimit bounds execution; n <= 0 disables the limit.
func WithStepLimit(n int) Option {
	return func(c *config) { c.stepLimit = n }
}

// WithEntry sets the label execution starts at.
func WithEntry(label string) Option {
	return func(c *config) { c.entry = label }
}

// Machine executes TAC. Named storage and temporaries live in flat maps;
// every symbol has exactly one cell.
type Machine struct {
	cfg   *config
	in    *bufio.Reader
	vars  map[string]int64
	temps map[string]int64
	stack []int
	steps int
}

// New creates a machine.
func New(opts ...Option) *Machine {
	cfg := newConfig(opts)
	return &Machine{
		cfg:   cfg,
		in:    bufio.NewReader(cfg.in),
		vars:  make(map[string]int64),
		temps: make(map[string]int64),
	}
}

// Vars returns a copy of the named storage cells.
func (m *Machine) Vars() map[string]int64 {
	out := make(map[string]int64, len(m.vars))
	for k, v := range m.vars {
		out[k] = v
	}
	return out
}

// Steps returns the number of instructions executed by the last Run.
func (m *Machine) Steps() int {
	return m.steps
}

// Run executes code from the entry label until HALT or the end of code.
func (m *Machine) Run(ctx context.Context, code *tac.Code) error {
	labels := code.Labels()
	pc, ok := labels[m.cfg.entry]
	if !ok {
		return &RuntimeError{PC: -1, Err: fmt.Errorf("%w: entry %s", ErrUnknownLabel, m.cfg.entry)}
	}
	m.stack = m.stack[:0]
	m.steps = 0

	fail := func(pc int, err error) error {
		return &RuntimeError{PC: pc, Instr: code.Instrs[pc], Err: err}
	}

	for pc < len(code.Instrs) {
		m.steps++
		if m.cfg.stepLimit > 0 && m.steps > m.cfg.stepLimit {
			return fail(pc, ErrStepLimit)
		}
		if m.steps%checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				return fail(pc, err)
			}
		}

		in := code.Instrs[pc]
		next := pc + 1

		switch {
		case in.Op == tac.OpLabel:
			// no-op

		case in.Op == tac.OpLoad:
			v, err := m.operand(in.Arg1)
			if err != nil {
				return fail(pc, err)
			}
			m.temps[in.Result] = v

		case in.Op.IsBinary():
			l, err := m.operand(in.Arg1)
			if err != nil {
				return fail(pc, err)
			}
			r, err := m.operand(in.Arg2)
			if err != nil {
				return fail(pc, err)
			}
			v, err := Apply(in.Op, l, r)
			if err != nil {
				return fail(pc, err)
			}
			m.temps[in.Result] = v

		case in.Op == tac.OpNeg:
			v, err := m.operand(in.Arg1)
			if err != nil {
				return fail(pc, err)
			}
			m.temps[in.Result] = -v

		case in.Op == tac.OpOdd:
			v, err := m.operand(in.Arg1)
			if err != nil {
				return fail(pc, err)
			}
			m.temps[in.Result] = boolInt(v%2 != 0)

		case in.Op == tac.OpAssign:
			v, err := m.operand(in.Arg1)
			if err != nil {
				return fail(pc, err)
			}
			m.vars[in.Result] = v

		case in.Op == tac.OpGoto:
			target, ok := labels[in.Arg1]
			if !ok {
				return fail(pc, fmt.Errorf("%w: %s", ErrUnknownLabel, in.Arg1))
			}
			next = target

		case in.Op == tac.OpIfNot:
			v, err := m.operand(in.Arg1)
			if err != nil {
				return fail(pc, err)
			}
			if v == 0 {
				target, ok := labels[in.Arg2]
				if !ok {
					return fail(pc, fmt.Errorf("%w: %s", ErrUnknownLabel, in.Arg2))
				}
				next = target
			}

		case in.Op == tac.OpCall:
			target, ok := labels[in.Arg1]
			if !ok {
				return fail(pc, fmt.Errorf("%w: %s", ErrUnknownLabel, in.Arg1))
			}
			if len(m.stack) >= maxCallDepth {
				return fail(pc, ErrCallDepth)
			}
			m.stack = append(m.stack, next)
			next = target

		case in.Op == tac.OpReturn:
			if len(m.stack) == 0 {
				return fail(pc, ErrReturnEmptyStack)
			}
			next = m.stack[len(m.stack)-1]
			m.stack = m.stack[:len(m.stack)-1]

		case in.Op == tac.OpRead:
			v, err := readInt(m.in)
			if err != nil {
				return fail(pc, err)
			}
			m.vars[in.Result] = v

		case in.Op == tac.OpWrite:
			v, err := m.operand(in.Arg1)
			if err != nil {
				return fail(pc, err)
			}
			if _, err := fmt.Fprintln(m.cfg.out, v); err != nil {
				return fail(pc, err)
			}

		case in.Op == tac.OpHalt:
			return nil

		default:
			return fail(pc, fmt.Errorf("unknown operation %q", in.Op))
		}

		pc = next
	}
	return nil
}

// operand evaluates a literal, a temporary or a named cell. Cells that were
// never assigned read as zero.
func (m *Machine) operand(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	if tac.IsTemp(s) {
		v, ok := m.temps[s]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrUndefinedTemp, s)
		}
		return v, nil
	}
	return m.vars[s], nil
}

// Apply evaluates a binary or relational operation. Comparisons yield 1 or
// 0; division truncates toward zero.
func Apply(op tac.Op, l, r int64) (int64, error) {
	switch op {
	case tac.OpAdd:
		return l + r, nil
	case tac.OpSub:
		return l - r, nil
	case tac.OpMul:
		return l * r, nil
	case tac.OpDiv:
		if r == 0 {
			return 0, ErrDivideByZero
		}
		return l / r, nil
	case tac.OpEq:
		return boolInt(l == r), nil
	case tac.OpNe:
		return boolInt(l != r), nil
	case tac.OpLt:
		return boolInt(l < r), nil
	case tac.OpLe:
		return boolInt(l <= r), nil
	case tac.OpGt:
		return boolInt(l > r), nil
	case tac.OpGe:
		return boolInt(l >= r), nil
	}
	return 0, fmt.Errorf("not a binary operation: %q", op)
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// readInt reads one whitespace-separated integer.
func readInt(r io.Reader) (int64, error) {
	var v int64
	if _, err := fmt.Fscan(r, &v); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadInput, err)
	}
	return v, nil
}

// FormatVars renders cells as sorted name=value lines.
func FormatVars(vars map[string]int64) string {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	var out []byte
	for _, name := range names {
		out = fmt.Appendf(out, "%s=%d\n", name, vars[name])
	}
	return string(out)
}
