package hash

import (
	"github.com/chazu/pl0c/compiler"
)

// ---------------------------------------------------------------------------
// Lowering: compiler AST → frozen hashing AST
//
// Walks a checked program and produces the frozen hashing AST. Name
// references are rewritten to (scope distance, slot) pairs using the
// resolutions recorded in the symbol table. Constant uses fold in their
// value so a change to a constant's definition changes every user's hash.
// ---------------------------------------------------------------------------

// Unresolved marks a reference the symbol table has no entry for.
const Unresolved = ^uint16(0)

// lowerer holds state for the lowering walk.
type lowerer struct {
	table *compiler.SymbolTable
	depth int // depth of the block being lowered
}

// Lower transforms a checked program into its hashing AST. table must be
// the table produced by semantic analysis of prog.
func Lower(prog *compiler.Program, table *compiler.SymbolTable) *HProgram {
	l := &lowerer{table: table}
	return &HProgram{Block: l.block(prog.Block)}
}

func (l *lowerer) block(b *compiler.Block) *HBlock {
	if b == nil {
		return &HBlock{}
	}
	hb := &HBlock{}
	for _, c := range b.Consts {
		hb.Consts = append(hb.Consts, &HConstDecl{Name: c.Name, Value: c.Value})
	}
	for _, v := range b.Vars {
		hb.Vars = append(hb.Vars, v.Name)
	}

	for _, p := range b.Procs {
		saved := l.depth
		if sc, ok := l.table.Scopes[p.Block]; ok {
			l.depth = sc.Depth
		} else {
			l.depth++
		}
		hb.Procs = append(hb.Procs, &HProcDecl{Name: p.Name, Block: l.block(p.Block)})
		l.depth = saved
	}

	hb.Body = l.stmt(b.Body)
	return hb
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (l *lowerer) stmt(s compiler.Stmt) HNode {
	switch st := s.(type) {
	case nil:
		return nil
	case *compiler.Assignment:
		return &HAssignment{Target: l.varRef(st.Target), Value: l.expr(st.Value)}
	case *compiler.Call:
		return &HCall{Target: l.procRef(st.Target)}
	case *compiler.Read:
		return &HRead{Target: l.varRef(st.Target)}
	case *compiler.Write:
		return &HWrite{Value: l.expr(st.Value)}
	case *compiler.Begin:
		hb := &HBegin{Statements: make([]HNode, 0, len(st.Statements))}
		for _, inner := range st.Statements {
			hb.Statements = append(hb.Statements, l.stmt(inner))
		}
		return hb
	case *compiler.If:
		return &HIf{Cond: l.cond(st.Cond), Then: l.stmt(st.Then)}
	case *compiler.While:
		return &HWhile{Cond: l.cond(st.Cond), Body: l.stmt(st.Body)}
	}
	return nil
}

func (l *lowerer) cond(c *compiler.Condition) *HCondition {
	hc := &HCondition{Op: c.Op.String(), Left: l.expr(c.Left)}
	if c.Right != nil {
		hc.Right = l.expr(c.Right)
	}
	return hc
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (l *lowerer) expr(e compiler.Expr) HNode {
	switch ex := e.(type) {
	case *compiler.NumberLit:
		return &HIntLiteral{Value: ex.Value}
	case *compiler.Ident:
		sym := l.table.Uses[ex]
		if sym != nil && sym.Kind == compiler.Constant {
			return &HConstRef{Up: l.up(sym), Name: sym.Name, Value: sym.Value}
		}
		return l.varRef(ex)
	case *compiler.UnaryOp:
		return &HNegate{Operand: l.expr(ex.Operand)}
	case *compiler.BinaryOp:
		return &HBinary{Op: ex.Op.String(), Left: l.expr(ex.Left), Right: l.expr(ex.Right)}
	}
	return nil
}

func (l *lowerer) varRef(id *compiler.Ident) *HVarRef {
	sym := l.table.Uses[id]
	if sym == nil {
		return &HVarRef{Up: Unresolved, Slot: Unresolved, Name: id.Name}
	}
	return &HVarRef{Up: l.up(sym), Slot: slot(sym), Name: sym.Name}
}

func (l *lowerer) procRef(id *compiler.Ident) *HProcRef {
	sym := l.table.Uses[id]
	if sym == nil {
		return &HProcRef{Up: Unresolved, Slot: Unresolved, Name: id.Name}
	}
	return &HProcRef{Up: l.up(sym), Slot: slot(sym), Name: sym.Name}
}

// up is the number of scopes between the current block and the declaring
// scope of sym.
func (l *lowerer) up(sym *compiler.Symbol) uint16 {
	if d := l.depth - sym.Depth; d >= 0 {
		return uint16(d)
	}
	return Unresolved
}

func slot(sym *compiler.Symbol) uint16 {
	if sym.Offset < 0 {
		return Unresolved
	}
	return uint16(sym.Offset)
}
