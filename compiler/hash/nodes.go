package hash

// ---------------------------------------------------------------------------
// Frozen hashing AST types.
//
// These are stripped-down parallels of compiler/ast.go with no Span/position
// data. Name references carry the number of scopes between use and
// declaration plus the declared slot, so two programs that differ only in
// layout or spacing produce identical hashing ASTs.
// ---------------------------------------------------------------------------

// HNode is the interface implemented by all hashing AST nodes.
type HNode interface {
	hnode() // marker method
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

type HIntLiteral struct{ Value int64 }

// HVarRef references a variable. Up is the number of scopes between the
// use and the declaring scope; Slot is the variable's offset there.
type HVarRef struct {
	Up   uint16
	Slot uint16
	Name string
}

// HConstRef references a constant; its value is folded in.
type HConstRef struct {
	Up    uint16
	Name  string
	Value int64
}

// HProcRef references a procedure by scope distance and slot.
type HProcRef struct {
	Up   uint16
	Slot uint16
	Name string
}

// HBinary is an arithmetic operation. Op holds the operator spelling.
type HBinary struct {
	Op    string
	Left  HNode
	Right HNode
}

type HNegate struct{ Operand HNode }

// HCondition is a test. Right is nil for odd.
type HCondition struct {
	Op    string
	Left  HNode
	Right HNode
}

func (*HIntLiteral) hnode() {}
func (*HVarRef) hnode()     {}
func (*HConstRef) hnode()   {}
func (*HProcRef) hnode()    {}
func (*HBinary) hnode()     {}
func (*HNegate) hnode()     {}
func (*HCondition) hnode()  {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

type HAssignment struct {
	Target *HVarRef
	Value  HNode
}

type HCall struct{ Target *HProcRef }
type HRead struct{ Target *HVarRef }
type HWrite struct{ Value HNode }
type HBegin struct{ Statements []HNode }

type HIf struct {
	Cond *HCondition
	Then HNode
}

type HWhile struct {
	Cond *HCondition
	Body HNode
}

func (*HAssignment) hnode() {}
func (*HCall) hnode()       {}
func (*HRead) hnode()       {}
func (*HWrite) hnode()      {}
func (*HBegin) hnode()      {}
func (*HIf) hnode()         {}
func (*HWhile) hnode()      {}

// ---------------------------------------------------------------------------
// Structure nodes
// ---------------------------------------------------------------------------

type HConstDecl struct {
	Name  string
	Value int64
}

type HProcDecl struct {
	Name  string
	Block *HBlock
}

// HBlock is a block with its declarations in source order.
type HBlock struct {
	Consts []*HConstDecl
	Vars   []string
	Procs  []*HProcDecl
	Body   HNode
}

// HProgram is the top-level hashing node.
type HProgram struct {
	Block *HBlock
}

func (*HConstDecl) hnode() {}
func (*HProcDecl) hnode()  {}
func (*HBlock) hnode()     {}
func (*HProgram) hnode()   {}
