package hash

import (
	"encoding/binary"
)

// ---------------------------------------------------------------------------
// Deterministic binary serialization of the frozen hashing AST.
//
// Encoding conventions:
//   - First byte: HashVersion (0x01)
//   - Integers: big-endian fixed-width (int64=8B, uint16=2B)
//   - Strings: uint32 big-endian length + UTF-8 bytes
//   - Absent optional children: single TagReservedZero byte
//   - Child nodes: serialized inline (flat)
// ---------------------------------------------------------------------------

// Serialize produces a deterministic byte serialization of an HNode tree.
// The returned bytes are suitable for hashing with SHA-256.
func Serialize(node HNode) []byte {
	s := &serializer{buf: make([]byte, 0, 256)}
	s.writeByte(HashVersion)
	s.serializeNode(node)
	return s.buf
}

type serializer struct {
	buf []byte
}

func (s *serializer) writeByte(b byte) {
	s.buf = append(s.buf, b)
}

func (s *serializer) writeUint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeInt64(v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeString(v string) {
	s.writeUint32(uint32(len(v)))
	s.buf = append(s.buf, v...)
}

func (s *serializer) writeCount(n int) {
	s.writeUint32(uint32(n))
}

func (s *serializer) serializeNode(node HNode) {
	switch n := node.(type) {
	case nil:
		s.writeByte(TagReservedZero)

	case *HIntLiteral:
		s.writeByte(TagIntLiteral)
		s.writeInt64(n.Value)

	case *HVarRef:
		if n == nil {
			s.writeByte(TagReservedZero)
			return
		}
		s.writeByte(TagVarRef)
		s.writeUint16(n.Up)
		s.writeUint16(n.Slot)
		s.writeString(n.Name)

	case *HConstRef:
		s.writeByte(TagConstRef)
		s.writeUint16(n.Up)
		s.writeString(n.Name)
		s.writeInt64(n.Value)

	case *HProcRef:
		if n == nil {
			s.writeByte(TagReservedZero)
			return
		}
		s.writeByte(TagProcRef)
		s.writeUint16(n.Up)
		s.writeUint16(n.Slot)
		s.writeString(n.Name)

	case *HBinary:
		s.writeByte(TagBinary)
		s.writeString(n.Op)
		s.serializeNode(n.Left)
		s.serializeNode(n.Right)

	case *HNegate:
		s.writeByte(TagNegate)
		s.serializeNode(n.Operand)

	case *HCondition:
		if n == nil {
			s.writeByte(TagReservedZero)
			return
		}
		s.writeByte(TagCondition)
		s.writeString(n.Op)
		s.serializeNode(n.Left)
		s.serializeNode(n.Right)

	case *HAssignment:
		s.writeByte(TagAssignment)
		s.serializeNode(n.Target)
		s.serializeNode(n.Value)

	case *HCall:
		s.writeByte(TagCall)
		s.serializeNode(n.Target)

	case *HRead:
		s.writeByte(TagRead)
		s.serializeNode(n.Target)

	case *HWrite:
		s.writeByte(TagWrite)
		s.serializeNode(n.Value)

	case *HBegin:
		s.writeByte(TagBegin)
		s.writeCount(len(n.Statements))
		for _, st := range n.Statements {
			s.serializeNode(st)
		}

	case *HIf:
		s.writeByte(TagIf)
		s.serializeNode(n.Cond)
		s.serializeNode(n.Then)

	case *HWhile:
		s.writeByte(TagWhile)
		s.serializeNode(n.Cond)
		s.serializeNode(n.Body)

	case *HConstDecl:
		s.writeByte(TagConstDecl)
		s.writeString(n.Name)
		s.writeInt64(n.Value)

	case *HProcDecl:
		s.writeByte(TagProcDecl)
		s.writeString(n.Name)
		s.serializeNode(n.Block)

	case *HBlock:
		if n == nil {
			s.writeByte(TagReservedZero)
			return
		}
		s.writeByte(TagBlock)
		s.writeCount(len(n.Consts))
		for _, c := range n.Consts {
			s.serializeNode(c)
		}
		s.writeCount(len(n.Vars))
		for _, v := range n.Vars {
			s.writeString(v)
		}
		s.writeCount(len(n.Procs))
		for _, p := range n.Procs {
			s.serializeNode(p)
		}
		s.serializeNode(n.Body)

	case *HProgram:
		s.writeByte(TagProgram)
		s.serializeNode(n.Block)
	}
}
