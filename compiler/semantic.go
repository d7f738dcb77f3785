package compiler

import (
	"fmt"
)

// ---------------------------------------------------------------------------
// Semantic Analyzer: scope construction and name resolution
// ---------------------------------------------------------------------------

// SemanticAnalyzer builds the symbol table for a program and checks that
// every name use resolves to a declaration of a suitable kind.
type SemanticAnalyzer struct {
	// MainLabel is the entry label reserved against root-scope names.
	MainLabel string

	table  *SymbolTable
	scope  *Scope // current scope
	errors ErrorList
}

// NewSemanticAnalyzer creates a new semantic analyzer.
func NewSemanticAnalyzer() *SemanticAnalyzer {
	return &SemanticAnalyzer{MainLabel: DefaultMainLabel}
}

// errorAt records an error with position information.
func (s *SemanticAnalyzer) errorAt(code SemanticCode, name string, span Span, format string, args ...interface{}) {
	s.errors = append(s.errors, &SemanticError{
		Code:    code,
		Name:    name,
		Span:    span,
		Message: fmt.Sprintf(format, args...),
	})
}

// Analyze runs the semantic pass with default settings.
func Analyze(prog *Program) (*SymbolTable, error) {
	return NewSemanticAnalyzer().Analyze(prog)
}

// Analyze walks prog and returns its symbol table. All semantic errors of
// the program are collected; a single error is returned as is, several as
// an ErrorList.
func (s *SemanticAnalyzer) Analyze(prog *Program) (*SymbolTable, error) {
	s.table = NewSymbolTable()
	if s.MainLabel != "" {
		s.table.mainLabel = s.MainLabel
	}
	s.scope = s.table.Root
	s.errors = nil

	s.analyzeBlock(prog.Block, s.table.Root)

	switch len(s.errors) {
	case 0:
		return s.table, nil
	case 1:
		return nil, s.errors[0]
	}
	return nil, s.errors
}

// Table returns the table built by the last Analyze call. After a failed
// analysis it holds every declaration and use resolved before the walk
// ended.
func (s *SemanticAnalyzer) Table() *SymbolTable {
	return s.table
}

// declare adds a symbol to the current scope and records its node.
func (s *SemanticAnalyzer) declare(node Node, name string, kind SymbolKind, value int64, span Span) *Symbol {
	sym, err := s.scope.Declare(name, kind, value, span)
	if err != nil {
		s.errors = append(s.errors, err)
		return nil
	}
	s.table.assignStorage(sym)
	s.table.Decls[node] = sym
	return sym
}

// analyzeBlock processes declarations in source order, then the body.
func (s *SemanticAnalyzer) analyzeBlock(block *Block, scope *Scope) {
	outer := s.scope
	s.scope = scope
	s.table.Scopes[block] = scope
	defer func() { s.scope = outer }()

	for _, c := range block.Consts {
		s.declare(c, c.Name, Constant, c.Value, c.Span())
	}
	for _, v := range block.Vars {
		s.declare(v, v.Name, Variable, 0, v.Span())
	}
	for _, p := range block.Procs {
		// The name is visible inside its own body and to later siblings.
		sym := s.declare(p, p.Name, Procedure, 0, p.NameSpan)
		body := newScope(scope, p.Name)
		if sym != nil {
			sym.Body = body
		}
		s.analyzeBlock(p.Block, body)
	}
	s.analyzeStmt(block.Body)
}

// analyzeStmt analyzes a single statement.
func (s *SemanticAnalyzer) analyzeStmt(stmt Stmt) {
	switch st := stmt.(type) {
	case *Assignment:
		s.resolveAs(st.Target, Variable, "assign to")
		s.analyzeExpr(st.Value)
	case *Call:
		s.resolveAs(st.Target, Procedure, "call")
	case *Read:
		s.resolveAs(st.Target, Variable, "read into")
	case *Write:
		s.analyzeExpr(st.Value)
	case *Begin:
		for _, inner := range st.Statements {
			s.analyzeStmt(inner)
		}
	case *If:
		s.analyzeCondition(st.Cond)
		s.analyzeStmt(st.Then)
	case *While:
		s.analyzeCondition(st.Cond)
		s.analyzeStmt(st.Body)
	}
}

func (s *SemanticAnalyzer) analyzeCondition(c *Condition) {
	s.analyzeExpr(c.Left)
	if c.Right != nil {
		s.analyzeExpr(c.Right)
	}
}

// analyzeExpr analyzes an expression.
func (s *SemanticAnalyzer) analyzeExpr(expr Expr) {
	switch e := expr.(type) {
	case *Ident:
		sym := s.resolve(e)
		if sym != nil && sym.Kind == Procedure {
			s.errorAt(KindMismatch, e.Name, e.Span(), "procedure %q used as a value", e.Name)
		}
	case *BinaryOp:
		s.analyzeExpr(e.Left)
		s.analyzeExpr(e.Right)
	case *UnaryOp:
		s.analyzeExpr(e.Operand)
	}
}

// resolve looks up an identifier use and records it.
func (s *SemanticAnalyzer) resolve(id *Ident) *Symbol {
	sym, ok := s.scope.Resolve(id.Name)
	if !ok {
		s.errorAt(Undeclared, id.Name, id.Span(), "undeclared identifier %q", id.Name)
		return nil
	}
	s.table.Uses[id] = sym
	return sym
}

// resolveAs resolves id and requires it to be of the given kind.
func (s *SemanticAnalyzer) resolveAs(id *Ident, want SymbolKind, verb string) {
	sym := s.resolve(id)
	if sym == nil || sym.Kind == want {
		return
	}
	s.errorAt(KindMismatch, id.Name, id.Span(), "cannot %s %s %q", verb, sym.Kind, id.Name)
}
