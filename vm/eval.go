package vm

import (
	"bufio"
	"context"
	"fmt"

	"github.com/chazu/pl0c/compiler"
	"github.com/chazu/pl0c/tac"
)

// ---------------------------------------------------------------------------
// Eval: reference tree-walking interpreter
// ---------------------------------------------------------------------------

// evaluator walks a checked syntax tree. It uses the same storage names as
// the generated code so both interpreters can be compared cell by cell.
type evaluator struct {
	ctx   context.Context
	cfg   *config
	in    *bufio.Reader
	table *compiler.SymbolTable
	vars  map[string]int64
	procs map[*compiler.Symbol]*compiler.ProcDecl
	steps int
	depth int
}

// Eval runs prog directly and returns the final storage cells.
func Eval(ctx context.Context, prog *compiler.Program, table *compiler.SymbolTable, opts ...Option) (map[string]int64, error) {
	cfg := newConfig(opts)
	e := &evaluator{
		ctx:   ctx,
		cfg:   cfg,
		in:    bufio.NewReader(cfg.in),
		table: table,
		vars:  make(map[string]int64),
		procs: make(map[*compiler.Symbol]*compiler.ProcDecl),
	}
	compiler.Inspect(prog, func(n compiler.Node) bool {
		if p, ok := n.(*compiler.ProcDecl); ok {
			if sym := table.Decls[p]; sym != nil {
				e.procs[sym] = p
			}
		}
		return true
	})

	if err := e.stmt(prog.Block.Body); err != nil {
		return e.vars, err
	}
	return e.vars, nil
}

func (e *evaluator) fail(node compiler.Node, err error) error {
	pos := node.Span().Start
	return &RuntimeError{PC: -1, Err: fmt.Errorf("line %d, column %d: %w", pos.Line, pos.Column, err)}
}

func (e *evaluator) tick(node compiler.Node) error {
	e.steps++
	if e.cfg.stepLimit > 0 && e.steps > e.cfg.stepLimit {
		return e.fail(node, ErrStepLimit)
	}
	if e.steps%checkInterval == 0 {
		if err := e.ctx.Err(); err != nil {
			return e.fail(node, err)
		}
	}
	return nil
}

func (e *evaluator) symbol(id *compiler.Ident) (*compiler.Symbol, error) {
	sym, ok := e.table.Uses[id]
	if !ok {
		return nil, e.fail(id, fmt.Errorf("unresolved identifier %s", id.Name))
	}
	return sym, nil
}

func (e *evaluator) stmt(s compiler.Stmt) error {
	if err := e.tick(s); err != nil {
		return err
	}

	switch st := s.(type) {
	case *compiler.Assignment:
		v, err := e.expr(st.Value)
		if err != nil {
			return err
		}
		sym, err := e.symbol(st.Target)
		if err != nil {
			return err
		}
		e.vars[sym.Storage] = v

	case *compiler.Call:
		sym, err := e.symbol(st.Target)
		if err != nil {
			return err
		}
		proc, ok := e.procs[sym]
		if !ok {
			return e.fail(st, fmt.Errorf("%w: %s", ErrUnknownLabel, sym.Storage))
		}
		if e.depth >= maxCallDepth {
			return e.fail(st, ErrCallDepth)
		}
		e.depth++
		err = e.stmt(proc.Block.Body)
		e.depth--
		return err

	case *compiler.Read:
		sym, err := e.symbol(st.Target)
		if err != nil {
			return err
		}
		v, err := readInt(e.in)
		if err != nil {
			return e.fail(st, err)
		}
		e.vars[sym.Storage] = v

	case *compiler.Write:
		v, err := e.expr(st.Value)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(e.cfg.out, v); err != nil {
			return e.fail(st, err)
		}

	case *compiler.Begin:
		for _, inner := range st.Statements {
			if err := e.stmt(inner); err != nil {
				return err
			}
		}

	case *compiler.If:
		ok, err := e.cond(st.Cond)
		if err != nil {
			return err
		}
		if ok {
			return e.stmt(st.Then)
		}

	case *compiler.While:
		for {
			ok, err := e.cond(st.Cond)
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			if err := e.stmt(st.Body); err != nil {
				return err
			}
		}

	default:
		return e.fail(s, fmt.Errorf("unsupported statement %T", s))
	}
	return nil
}

var relToOp = map[compiler.RelOperator]tac.Op{
	compiler.RelEq: tac.OpEq,
	compiler.RelNe: tac.OpNe,
	compiler.RelLt: tac.OpLt,
	compiler.RelLe: tac.OpLe,
	compiler.RelGt: tac.OpGt,
	compiler.RelGe: tac.OpGe,
}

var binToOp = map[compiler.BinaryOperator]tac.Op{
	compiler.OpAdd: tac.OpAdd,
	compiler.OpSub: tac.OpSub,
	compiler.OpMul: tac.OpMul,
	compiler.OpDiv: tac.OpDiv,
}

func (e *evaluator) cond(c *compiler.Condition) (bool, error) {
	if err := e.tick(c); err != nil {
		return false, err
	}
	l, err := e.expr(c.Left)
	if err != nil {
		return false, err
	}
	if c.Op == compiler.RelOdd {
		return l%2 != 0, nil
	}
	r, err := e.expr(c.Right)
	if err != nil {
		return false, err
	}
	v, err := Apply(relToOp[c.Op], l, r)
	if err != nil {
		return false, e.fail(c, err)
	}
	return v != 0, nil
}

func (e *evaluator) expr(x compiler.Expr) (int64, error) {
	switch ex := x.(type) {
	case *compiler.NumberLit:
		return ex.Value, nil

	case *compiler.Ident:
		sym, err := e.symbol(ex)
		if err != nil {
			return 0, err
		}
		if sym.Kind == compiler.Constant {
			return sym.Value, nil
		}
		return e.vars[sym.Storage], nil

	case *compiler.UnaryOp:
		v, err := e.expr(ex.Operand)
		return -v, err

	case *compiler.BinaryOp:
		l, err := e.expr(ex.Left)
		if err != nil {
			return 0, err
		}
		r, err := e.expr(ex.Right)
		if err != nil {
			return 0, err
		}
		v, err := Apply(binToOp[ex.Op], l, r)
		if err != nil {
			return 0, e.fail(ex, err)
		}
		return v, nil
	}
	return 0, e.fail(x, fmt.Errorf("unsupported expression %T", x))
}
