package compiler

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/chazu/pl0c/tac"
)

// ---------------------------------------------------------------------------
// Codegen: Lower the AST to three-address code
// ---------------------------------------------------------------------------

// Generator lowers a checked program to TAC. Temporary and label counters
// belong to the generator and are never reset.
type Generator struct {
	table     *SymbolTable
	mainLabel string

	code   *tac.Code
	ntemp  int
	nlabel int
	errors []string
}

// NewGenerator creates a generator for a program analyzed into table. A nil
// table is allowed for standalone expressions.
func NewGenerator(table *SymbolTable) *Generator {
	g := &Generator{
		table:     table,
		mainLabel: DefaultMainLabel,
		code:      &tac.Code{},
	}
	if table != nil && table.mainLabel != "" {
		g.mainLabel = table.mainLabel
	}
	return g
}

// Code returns the instructions emitted so far.
func (g *Generator) Code() *tac.Code {
	return g.code
}

// errorf records a generation error.
func (g *Generator) errorf(format string, args ...interface{}) {
	g.errors = append(g.errors, fmt.Sprintf(format, args...))
}

func (g *Generator) emit(in tac.Instr) {
	g.code.Emit(in)
}

// newTemp returns the next temporary name.
func (g *Generator) newTemp() string {
	t := "t" + strconv.Itoa(g.ntemp)
	g.ntemp++
	return t
}

// newLabel returns the next label name.
func (g *Generator) newLabel() string {
	l := "L" + strconv.Itoa(g.nlabel)
	g.nlabel++
	return l
}

// Generate emits the whole program: the main body under the entry label,
// HALT, then every procedure depth-first in declaration order. The result is
// checked with tac.Verify.
func (g *Generator) Generate(prog *Program) (*tac.Code, error) {
	if g.table == nil {
		return nil, errors.New("codegen: program has no symbol table")
	}

	g.emit(tac.Instr{Op: tac.OpLabel, Result: g.mainLabel})
	g.genStmt(prog.Block.Body)
	g.emit(tac.Instr{Op: tac.OpHalt})
	g.genProcs(prog.Block)

	if len(g.errors) > 0 {
		return nil, fmt.Errorf("codegen: %v", g.errors)
	}
	if err := tac.Verify(g.code, g.mainLabel); err != nil {
		return nil, fmt.Errorf("codegen: generated invalid code: %w", err)
	}
	return g.code, nil
}

// genProcs emits the procedures declared in block.
func (g *Generator) genProcs(block *Block) {
	for _, p := range block.Procs {
		sym := g.table.Decls[p]
		if sym == nil {
			g.errorf("procedure %s was not analyzed", p.Name)
			continue
		}
		g.emit(tac.Instr{Op: tac.OpLabel, Result: sym.Storage})
		g.genStmt(p.Block.Body)
		g.emit(tac.Instr{Op: tac.OpReturn})
		g.genProcs(p.Block)
	}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// genStmt emits a statement.
func (g *Generator) genStmt(stmt Stmt) {
	switch s := stmt.(type) {
	case *Assignment:
		t := g.Expr(s.Value)
		g.emit(tac.Instr{Op: tac.OpAssign, Arg1: t, Result: g.storage(s.Target)})

	case *Call:
		g.emit(tac.Instr{Op: tac.OpCall, Arg1: g.storage(s.Target)})

	case *Read:
		g.emit(tac.Instr{Op: tac.OpRead, Result: g.storage(s.Target)})

	case *Write:
		t := g.Expr(s.Value)
		g.emit(tac.Instr{Op: tac.OpWrite, Arg1: t})

	case *Begin:
		for _, inner := range s.Statements {
			g.genStmt(inner)
		}

	case *If:
		cond := g.Cond(s.Cond)
		end := g.newLabel()
		g.emit(tac.Instr{Op: tac.OpIfNot, Arg1: cond, Arg2: end})
		g.genStmt(s.Then)
		g.emit(tac.Instr{Op: tac.OpLabel, Result: end})

	case *While:
		start := g.newLabel()
		end := g.newLabel()
		g.emit(tac.Instr{Op: tac.OpLabel, Result: start})
		cond := g.Cond(s.Cond)
		g.emit(tac.Instr{Op: tac.OpIfNot, Arg1: cond, Arg2: end})
		g.genStmt(s.Body)
		g.emit(tac.Instr{Op: tac.OpGoto, Arg1: start})
		g.emit(tac.Instr{Op: tac.OpLabel, Result: end})

	default:
		g.errorf("unsupported statement %T", stmt)
	}
}

// storage returns the TAC name of a resolved identifier. Unresolved names
// are emitted as written, which only happens for standalone expressions.
func (g *Generator) storage(id *Ident) string {
	if g.table != nil {
		if sym, ok := g.table.Uses[id]; ok {
			return sym.Storage
		}
		g.errorf("identifier %s at %s was not resolved", id.Name, id.Span().Start)
	}
	return id.Name
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

var binaryOps = map[BinaryOperator]tac.Op{
	OpAdd: tac.OpAdd,
	OpSub: tac.OpSub,
	OpMul: tac.OpMul,
	OpDiv: tac.OpDiv,
}

var relOps = map[RelOperator]tac.Op{
	RelEq: tac.OpEq,
	RelNe: tac.OpNe,
	RelLt: tac.OpLt,
	RelLe: tac.OpLe,
	RelGt: tac.OpGt,
	RelGe: tac.OpGe,
}

// Expr emits expr and returns the temporary holding its value.
func (g *Generator) Expr(expr Expr) string {
	switch e := expr.(type) {
	case *NumberLit:
		return g.load(strconv.FormatInt(e.Value, 10))

	case *Ident:
		if g.table != nil {
			if sym, ok := g.table.Uses[e]; ok && sym.Kind == Constant {
				return g.load(strconv.FormatInt(sym.Value, 10))
			}
		}
		return g.load(g.storage(e))

	case *UnaryOp:
		operand := g.Expr(e.Operand)
		t := g.newTemp()
		g.emit(tac.Instr{Op: tac.OpNeg, Arg1: operand, Result: t})
		return t

	case *BinaryOp:
		return g.binary(binaryOps[e.Op], e.Left, e.Right)
	}

	g.errorf("unsupported expression %T", expr)
	return g.load("0")
}

// Cond emits a condition and returns the temporary holding 1 or 0.
func (g *Generator) Cond(c *Condition) string {
	if c.Op == RelOdd {
		operand := g.Expr(c.Left)
		t := g.newTemp()
		g.emit(tac.Instr{Op: tac.OpOdd, Arg1: operand, Result: t})
		return t
	}
	return g.binary(relOps[c.Op], c.Left, c.Right)
}

// binary evaluates the operand with the larger register need first, the
// left one on ties, then combines them without swapping operand positions.
func (g *Generator) binary(op tac.Op, left, right Expr) string {
	var l, r string
	if need(right) > need(left) {
		r = g.Expr(right)
		l = g.Expr(left)
	} else {
		l = g.Expr(left)
		r = g.Expr(right)
	}
	t := g.newTemp()
	g.emit(tac.Instr{Op: op, Arg1: l, Arg2: r, Result: t})
	return t
}

func (g *Generator) load(operand string) string {
	t := g.newTemp()
	g.emit(tac.Instr{Op: tac.OpLoad, Arg1: operand, Result: t})
	return t
}

// need returns the Sethi-Ullman register need of an expression.
func need(expr Expr) int {
	switch e := expr.(type) {
	case *BinaryOp:
		l, r := need(e.Left), need(e.Right)
		if l == r {
			return l + 1
		}
		return max(l, r)
	case *UnaryOp:
		return need(e.Operand)
	}
	return 1
}
