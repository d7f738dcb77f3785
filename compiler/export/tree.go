package export

import (
	"github.com/chazu/pl0c/compiler"
)

// Node is the exported form of a syntax tree node. Children keep source
// order.
type Node struct {
	Type     string  `json:"type" cbor:"type"`
	Value    any     `json:"value,omitempty" cbor:"value,omitempty"`
	Line     int     `json:"line" cbor:"line"`
	Column   int     `json:"column" cbor:"column"`
	Children []*Node `json:"children" cbor:"children"`
}

// Tree exports the syntax tree rooted at n.
func Tree(n compiler.Node) *Node {
	if n == nil {
		return nil
	}
	pos := n.Span().Start
	out := &Node{Line: pos.Line, Column: pos.Column, Children: []*Node{}}
	add := func(children ...compiler.Node) {
		for _, c := range children {
			if c != nil {
				out.Children = append(out.Children, Tree(c))
			}
		}
	}

	switch x := n.(type) {
	case *compiler.Program:
		out.Type = "Program"
		add(x.Block)
	case *compiler.Block:
		out.Type = "Block"
		for _, c := range x.Consts {
			add(c)
		}
		for _, v := range x.Vars {
			add(v)
		}
		for _, p := range x.Procs {
			add(p)
		}
		if x.Body != nil {
			add(x.Body)
		}
	case *compiler.ConstDecl:
		out.Type = "ConstDecl"
		out.Value = x.Name
		out.Children = append(out.Children, &Node{
			Type: "Number", Value: x.Value, Line: pos.Line, Column: pos.Column, Children: []*Node{},
		})
	case *compiler.VarDecl:
		out.Type = "VarDecl"
		out.Value = x.Name
	case *compiler.ProcDecl:
		out.Type = "ProcDecl"
		out.Value = x.Name
		add(x.Block)
	case *compiler.Assignment:
		out.Type = "Assignment"
		add(x.Target, x.Value)
	case *compiler.Call:
		out.Type = "Call"
		add(x.Target)
	case *compiler.Read:
		out.Type = "Read"
		add(x.Target)
	case *compiler.Write:
		out.Type = "Write"
		add(x.Value)
	case *compiler.Begin:
		out.Type = "Begin"
		for _, s := range x.Statements {
			add(s)
		}
	case *compiler.If:
		out.Type = "If"
		add(x.Cond, x.Then)
	case *compiler.While:
		out.Type = "While"
		add(x.Cond, x.Body)
	case *compiler.Condition:
		out.Type = "Condition"
		out.Value = x.Op.String()
		add(x.Left)
		if x.Right != nil {
			add(x.Right)
		}
	case *compiler.BinaryOp:
		out.Type = "BinaryOp"
		out.Value = x.Op.String()
		add(x.Left, x.Right)
	case *compiler.UnaryOp:
		out.Type = "UnaryOp"
		out.Value = x.Op.String()
		add(x.Operand)
	case *compiler.Ident:
		out.Type = "Identifier"
		out.Value = x.Name
	case *compiler.NumberLit:
		out.Type = "Number"
		out.Value = x.Value
	}
	return out
}
