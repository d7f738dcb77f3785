package hash

// ---------------------------------------------------------------------------
// Frozen tag bytes for the hashing AST serialization format.
//
// IMPORTANT: These tags are FROZEN. Once assigned, a tag byte must never
// change meaning. Adding new tags is fine; changing existing ones breaks
// all previously computed content hashes and every cached artifact keyed
// by them.
// ---------------------------------------------------------------------------

// HashVersion is the version prefix for the serialization format.
// Bumping this invalidates all existing content hashes.
const HashVersion byte = 1

// AST node type tags. Each tag uniquely identifies a node kind in the
// serialized byte stream.
const (
	TagReservedZero byte = 0x00 // version prefix / reserved

	// Literal values
	TagIntLiteral byte = 0x01

	// Name references (scope-relative)
	TagVarRef   byte = 0x0B
	TagConstRef byte = 0x0C
	TagProcRef  byte = 0x0D

	// Reserved 0x0E-0x0F

	// Operators
	TagBinary    byte = 0x10
	TagNegate    byte = 0x11
	TagCondition byte = 0x12

	// Statements
	TagAssignment byte = 0x14
	TagCall       byte = 0x15
	TagRead       byte = 0x16
	TagWrite      byte = 0x17
	TagBegin      byte = 0x18
	TagIf         byte = 0x19
	TagWhile      byte = 0x1A

	// Structure
	TagBlock     byte = 0x20
	TagConstDecl byte = 0x21
	TagProcDecl  byte = 0x22
	TagProgram   byte = 0x23

	// Reserved 0xFE-0xFF
)

// allTags lists every defined tag for uniqueness verification in tests.
var allTags = []byte{
	TagReservedZero,
	TagIntLiteral,
	TagVarRef, TagConstRef, TagProcRef,
	TagBinary, TagNegate, TagCondition,
	TagAssignment, TagCall, TagRead, TagWrite, TagBegin, TagIf, TagWhile,
	TagBlock, TagConstDecl, TagProcDecl, TagProgram,
}
