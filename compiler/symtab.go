package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/chazu/pl0c/tac"
)

// ---------------------------------------------------------------------------
// Symbol table: lexically nested scopes
// ---------------------------------------------------------------------------

// SymbolKind classifies a declared name.
type SymbolKind int

const (
	Constant SymbolKind = iota
	Variable
	Procedure
)

func (k SymbolKind) String() string {
	switch k {
	case Constant:
		return "constant"
	case Variable:
		return "variable"
	case Procedure:
		return "procedure"
	}
	return fmt.Sprintf("SymbolKind(%d)", int(k))
}

// Symbol is a declared name.
type Symbol struct {
	Name    string
	Kind    SymbolKind
	Value   int64 // constants only
	Depth   int   // depth of the declaring scope; the root is 0
	Offset  int   // per-scope slot for variables and procedures, -1 for constants
	Pos     Span  // span of the declaring name
	Storage string
	Scope   *Scope // declaring scope

	// Body is the scope opened for a procedure's block.
	Body *Scope
}

// Scope holds the names declared by one block.
type Scope struct {
	Parent   *Scope
	Name     string // procedure name; empty for the root
	Depth    int
	Children []*Scope

	entries map[string]*Symbol
	order   []*Symbol
	nvars   int
	nprocs  int
}

func newScope(parent *Scope, name string) *Scope {
	s := &Scope{
		Parent:  parent,
		Name:    name,
		entries: make(map[string]*Symbol),
	}
	if parent != nil {
		s.Depth = parent.Depth + 1
		parent.Children = append(parent.Children, s)
	}
	return s
}

// Path returns the dotted procedure path of the scope, e.g. "p.q". The root
// scope has an empty path.
func (s *Scope) Path() string {
	if s.Parent == nil {
		return ""
	}
	if pp := s.Parent.Path(); pp != "" {
		return pp + "." + s.Name
	}
	return s.Name
}

// Declare adds name to the scope. Redeclaring a name already present in the
// same scope is a DuplicateDeclaration error.
func (s *Scope) Declare(name string, kind SymbolKind, value int64, pos Span) (*Symbol, error) {
	if prev, ok := s.entries[name]; ok {
		return nil, &SemanticError{
			Code: DuplicateDeclaration,
			Name: name,
			Span: pos,
			Message: fmt.Sprintf("%q already declared as %s at line %d, column %d",
				name, prev.Kind, prev.Pos.Start.Line, prev.Pos.Start.Column),
		}
	}
	sym := &Symbol{
		Name:   name,
		Kind:   kind,
		Depth:  s.Depth,
		Offset: -1,
		Pos:    pos,
		Scope:  s,
	}
	switch kind {
	case Constant:
		sym.Value = value
	case Variable:
		sym.Offset = s.nvars
		s.nvars++
	case Procedure:
		sym.Offset = s.nprocs
		s.nprocs++
	}
	s.entries[name] = sym
	s.order = append(s.order, sym)
	return sym, nil
}

// Lookup finds name in this scope only.
func (s *Scope) Lookup(name string) (*Symbol, bool) {
	sym, ok := s.entries[name]
	return sym, ok
}

// Resolve finds name in this scope or the nearest enclosing one.
func (s *Scope) Resolve(name string) (*Symbol, bool) {
	for sc := s; sc != nil; sc = sc.Parent {
		if sym, ok := sc.entries[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

// Symbols returns the scope's symbols in declaration order.
func (s *Scope) Symbols() []*Symbol {
	out := make([]*Symbol, len(s.order))
	copy(out, s.order)
	return out
}

// Visible returns every symbol visible from s, innermost first. Shadowed
// outer names are omitted.
func (s *Scope) Visible() []*Symbol {
	seen := make(map[string]bool)
	var out []*Symbol
	for sc := s; sc != nil; sc = sc.Parent {
		for _, sym := range sc.order {
			if !seen[sym.Name] {
				seen[sym.Name] = true
				out = append(out, sym)
			}
		}
	}
	return out
}

// SymbolTable is the result of semantic analysis.
type SymbolTable struct {
	Root  *Scope
	Uses  map[*Ident]*Symbol // resolved identifier uses
	Decls map[Node]*Symbol   // declaration node to symbol
	// Scopes maps each block to the scope opened for it.
	Scopes map[*Block]*Scope

	mainLabel string
}

// NewSymbolTable returns a table holding an empty root scope.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		Root:      newScope(nil, ""),
		Uses:      make(map[*Ident]*Symbol),
		Decls:     make(map[Node]*Symbol),
		Scopes:    make(map[*Block]*Scope),
		mainLabel: DefaultMainLabel,
	}
}

// DefaultMainLabel is the label of the program entry point.
const DefaultMainLabel = "main"

var generatedName = regexp.MustCompile(`^[tL][0-9]+$`)

// assignStorage sets the TAC name of sym. Root names are bare unless they
// collide with a generated name, the entry label or the record null marker.
func (t *SymbolTable) assignStorage(sym *Symbol) {
	path := sym.Scope.Path()
	if path != "" {
		sym.Storage = path + "." + sym.Name
		return
	}
	if generatedName.MatchString(sym.Name) || sym.Name == t.mainLabel || sym.Name == tac.Null {
		sym.Storage = "." + sym.Name
		return
	}
	sym.Storage = sym.Name
}

// ScopeAt returns the innermost scope whose block contains offset.
func (t *SymbolTable) ScopeAt(offset int) *Scope {
	best := t.Root
	for blk, sc := range t.Scopes {
		if blk.Span().Contains(offset) && sc.Depth > best.Depth {
			best = sc
		}
	}
	return best
}

// Dump renders the scope tree, one symbol per line.
func (t *SymbolTable) Dump() string {
	var sb strings.Builder
	var walk func(s *Scope)
	walk = func(s *Scope) {
		indent := strings.Repeat("  ", s.Depth)
		name := s.Path()
		if name == "" {
			name = "<root>"
		}
		fmt.Fprintf(&sb, "%sscope %s (depth %d)\n", indent, name, s.Depth)
		for _, sym := range s.order {
			switch sym.Kind {
			case Constant:
				fmt.Fprintf(&sb, "%s  const %s = %d\n", indent, sym.Name, sym.Value)
			default:
				fmt.Fprintf(&sb, "%s  %s %s [%d] -> %s\n", indent, sym.Kind, sym.Name, sym.Offset, sym.Storage)
			}
		}
		for _, c := range s.Children {
			walk(c)
		}
	}
	walk(t.Root)
	return sb.String()
}
