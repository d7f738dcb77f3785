package compiler

import "fmt"

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for PL/0
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Span represents a range in source code. End is exclusive.
type Span struct {
	Start Position
	End   Position
}

// Contains reports whether the byte offset lies inside the span.
func (s Span) Contains(offset int) bool {
	return offset >= s.Start.Offset && offset < s.End.Offset
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

// BinaryOperator is an arithmetic operator.
type BinaryOperator int

const (
	OpAdd BinaryOperator = iota
	OpSub
	OpMul
	OpDiv
)

var binaryOpNames = [...]string{OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/"}

func (op BinaryOperator) String() string {
	if int(op) < len(binaryOpNames) {
		return binaryOpNames[op]
	}
	return fmt.Sprintf("BinaryOperator(%d)", int(op))
}

// UnaryOperator is a prefix operator.
type UnaryOperator int

const (
	OpNeg UnaryOperator = iota
)

func (op UnaryOperator) String() string {
	if op == OpNeg {
		return "-"
	}
	return fmt.Sprintf("UnaryOperator(%d)", int(op))
}

// RelOperator is the operator of a condition.
type RelOperator int

const (
	RelOdd RelOperator = iota
	RelEq
	RelNe
	RelLt
	RelLe
	RelGt
	RelGe
)

var relOpNames = [...]string{
	RelOdd: "odd",
	RelEq:  "=",
	RelNe:  "#",
	RelLt:  "<",
	RelLe:  "<=",
	RelGt:  ">",
	RelGe:  ">=",
}

func (op RelOperator) String() string {
	if int(op) < len(relOpNames) {
		return relOpNames[op]
	}
	return fmt.Sprintf("RelOperator(%d)", int(op))
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// NumberLit represents an integer literal.
type NumberLit struct {
	SpanVal Span
	Value   int64
}

func (n *NumberLit) Span() Span { return n.SpanVal }
func (n *NumberLit) node()      {}
func (n *NumberLit) expr()      {}

// Ident represents a use of a name: an operand, an assignment or read
// target, or a call target.
type Ident struct {
	SpanVal Span
	Name    string
}

func (n *Ident) Span() Span { return n.SpanVal }
func (n *Ident) node()      {}
func (n *Ident) expr()      {}

// BinaryOp represents left op right.
type BinaryOp struct {
	SpanVal Span
	Op      BinaryOperator
	Left    Expr
	Right   Expr
}

func (n *BinaryOp) Span() Span { return n.SpanVal }
func (n *BinaryOp) node()      {}
func (n *BinaryOp) expr()      {}

// UnaryOp represents a prefix operator applied to an operand.
type UnaryOp struct {
	SpanVal Span
	Op      UnaryOperator
	Operand Expr
}

func (n *UnaryOp) Span() Span { return n.SpanVal }
func (n *UnaryOp) node()      {}
func (n *UnaryOp) expr()      {}

// Condition is the test of an if or while. For RelOdd only Left is set.
type Condition struct {
	SpanVal Span
	Op      RelOperator
	Left    Expr
	Right   Expr
}

func (n *Condition) Span() Span { return n.SpanVal }
func (n *Condition) node()      {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// Assignment represents target := value.
type Assignment struct {
	SpanVal Span
	Target  *Ident
	Value   Expr
}

func (n *Assignment) Span() Span { return n.SpanVal }
func (n *Assignment) node()      {}
func (n *Assignment) stmt()      {}

// Call represents call target.
type Call struct {
	SpanVal Span
	Target  *Ident
}

func (n *Call) Span() Span { return n.SpanVal }
func (n *Call) node()      {}
func (n *Call) stmt()      {}

// Begin represents begin s1; s2; ... end.
type Begin struct {
	SpanVal    Span
	Statements []Stmt
}

func (n *Begin) Span() Span { return n.SpanVal }
func (n *Begin) node()      {}
func (n *Begin) stmt()      {}

// If represents if cond then stmt.
type If struct {
	SpanVal Span
	Cond    *Condition
	Then    Stmt
}

func (n *If) Span() Span { return n.SpanVal }
func (n *If) node()      {}
func (n *If) stmt()      {}

// While represents while cond do stmt.
type While struct {
	SpanVal Span
	Cond    *Condition
	Body    Stmt
}

func (n *While) Span() Span { return n.SpanVal }
func (n *While) node()      {}
func (n *While) stmt()      {}

// Read represents ? target.
type Read struct {
	SpanVal Span
	Target  *Ident
}

func (n *Read) Span() Span { return n.SpanVal }
func (n *Read) node()      {}
func (n *Read) stmt()      {}

// Write represents ! value.
type Write struct {
	SpanVal Span
	Value   Expr
}

func (n *Write) Span() Span { return n.SpanVal }
func (n *Write) node()      {}
func (n *Write) stmt()      {}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

// ConstDecl represents one name = number binding of a const section.
type ConstDecl struct {
	SpanVal Span
	Name    string
	Value   int64
}

func (n *ConstDecl) Span() Span { return n.SpanVal }
func (n *ConstDecl) node()      {}

// VarDecl represents one name of a var section.
type VarDecl struct {
	SpanVal Span
	Name    string
}

func (n *VarDecl) Span() Span { return n.SpanVal }
func (n *VarDecl) node()      {}

// ProcDecl represents procedure name; block.
type ProcDecl struct {
	SpanVal  Span
	NameSpan Span
	Name     string
	Block    *Block
}

func (n *ProcDecl) Span() Span { return n.SpanVal }
func (n *ProcDecl) node()      {}

// ---------------------------------------------------------------------------
// Top-level structure
// ---------------------------------------------------------------------------

// Block represents declarations followed by a single statement.
type Block struct {
	SpanVal Span
	Consts  []*ConstDecl
	Vars    []*VarDecl
	Procs   []*ProcDecl
	Body    Stmt
}

func (n *Block) Span() Span { return n.SpanVal }
func (n *Block) node()      {}

// Program represents a complete source file: block ".".
type Program struct {
	SpanVal Span
	Block   *Block
}

func (n *Program) Span() Span { return n.SpanVal }
func (n *Program) node()      {}

// ---------------------------------------------------------------------------
// Traversal
// ---------------------------------------------------------------------------

// Inspect traverses the tree rooted at node in depth-first, source order.
// It calls f(node); if f returns true, Inspect visits each child.
func Inspect(node Node, f func(Node) bool) {
	if node == nil || !f(node) {
		return
	}
	switch n := node.(type) {
	case *Program:
		Inspect(n.Block, f)
	case *Block:
		for _, c := range n.Consts {
			Inspect(c, f)
		}
		for _, v := range n.Vars {
			Inspect(v, f)
		}
		for _, p := range n.Procs {
			Inspect(p, f)
		}
		if n.Body != nil {
			Inspect(n.Body, f)
		}
	case *ProcDecl:
		Inspect(n.Block, f)
	case *Assignment:
		Inspect(n.Target, f)
		Inspect(n.Value, f)
	case *Call:
		Inspect(n.Target, f)
	case *Read:
		Inspect(n.Target, f)
	case *Write:
		Inspect(n.Value, f)
	case *Begin:
		for _, s := range n.Statements {
			Inspect(s, f)
		}
	case *If:
		Inspect(n.Cond, f)
		Inspect(n.Then, f)
	case *While:
		Inspect(n.Cond, f)
		Inspect(n.Body, f)
	case *Condition:
		Inspect(n.Left, f)
		if n.Right != nil {
			Inspect(n.Right, f)
		}
	case *BinaryOp:
		Inspect(n.Left, f)
		Inspect(n.Right, f)
	case *UnaryOp:
		Inspect(n.Operand, f)
	}
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// MakeSpan creates a span from start and end positions.
func MakeSpan(start, end Position) Span {
	return Span{Start: start, End: end}
}

// ZeroSpan returns an empty span.
func ZeroSpan() Span {
	return Span{}
}

// tokenSpan returns the span covered by tok. Tokens never contain newlines.
func tokenSpan(tok Token) Span {
	end := tok.Pos
	end.Offset += len(tok.Literal)
	end.Column += len([]rune(tok.Literal))
	return Span{Start: tok.Pos, End: end}
}
