package avm

import "github.com/offchainlabs/arb-avm-go/core/types"

// CodePoint is a single instruction in a code segment together with the
// hash of the code point that follows it, forming the hash-linked
// structure spec.md §4.1/§4.3 describes: "a code point's hash commits to
// its own opcode/immediate and to the hash of the next code point,
// transitively committing to the entire remaining program."
type CodePoint struct {
	PC           uint64
	Op           Opcode
	HasImmediate bool
	Immediate    Value
	NextHash     types.Hash
}

// NullCodePoint is the distinguished "no error handler installed" code
// point: opcode ERROR, no immediate, zero next-hash (spec.md §4.3 "errpc
// is the null code point"). It is also used as the stand-in for code[pc]
// when pc falls outside the code segment, e.g. computing hash() for an
// empty program before any step has run.
func NullCodePoint() CodePoint {
	return CodePoint{Op: ERROR}
}

// IsNull reports whether cp is the null code point.
func (cp CodePoint) IsNull() bool {
	return cp.Op == ERROR && !cp.HasImmediate && cp.NextHash.IsZero()
}

// CodeSegment is an immutable, hash-linked list of code points, built once
// at program load time and shared (via pointer) by every Machine derived
// from it. Index i holds the instruction at PC i; NextHash fields are
// computed by a single reverse pass over the raw operations so that each
// code point's hash is available before the one preceding it is built
// (spec.md §4.3, mirroring the original's reverse-linking loader pass).
type CodeSegment struct {
	points []CodePoint
}

// Operation is a raw (opcode, optional immediate) pair as decoded
// from a .ao file or constructed programmatically, before being linked
// into a CodeSegment.
type Operation struct {
	Op           Opcode
	HasImmediate bool
	Immediate    Value
}

// NewCodeSegment links a flat operation list into a CodeSegment by a
// single reverse pass: the last operation's NextHash is the zero hash
// (spec.md §4.3), and every other entry's NextHash is the hash of the
// entry that follows it.
func NewCodeSegment(ops []Operation) *CodeSegment {
	points := make([]CodePoint, len(ops))
	var next types.Hash
	for i := len(ops) - 1; i >= 0; i-- {
		points[i] = CodePoint{
			PC:           uint64(i),
			Op:           ops[i].Op,
			HasImmediate: ops[i].HasImmediate,
			Immediate:    ops[i].Immediate,
			NextHash:     next,
		}
		next = points[i].Hash()
	}
	return &CodeSegment{points: points}
}

// Len returns the number of code points in the segment.
func (c *CodeSegment) Len() int { return len(c.points) }

// At returns the code point at pc. ok is false if pc is out of range.
func (c *CodeSegment) At(pc uint64) (CodePoint, bool) {
	if pc >= uint64(len(c.points)) {
		return CodePoint{}, false
	}
	return c.points[pc], true
}

// Hash returns the hash of the code point at pc, or the null code point's
// hash if pc is out of range (e.g. an empty program's hash() before any
// step has run).
func (c *CodeSegment) Hash(pc uint64) types.Hash {
	if cp, ok := c.At(pc); ok {
		return cp.Hash()
	}
	return NullCodePoint().Hash()
}
