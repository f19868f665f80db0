package avm

import (
	"encoding/binary"

	"github.com/offchainlabs/arb-avm-go/core/types"
	"github.com/offchainlabs/arb-avm-go/crypto"
)

// Tag bytes mixed into a value's hash preimage. Code points use a fixed
// tag; a tuple's tag is 3+arity so that tuples of different arity never
// collide (spec.md §4.1). An integer's hash is its own 32-byte encoding,
// so tagInt never enters a preimage.
const (
	tagInt       = 0
	tagCodePoint = 1
	tagTupleBase = 3
)

var emptyTupleHash = crypto.Keccak256Hash([]byte{tagTupleBase})

// Hash computes the recursive Keccak-256 commitment of v per spec.md §4.1:
// an integer hashes as its own 32-byte big-endian encoding, a code point
// hashes as Keccak256(1 || opcode || immediate-field || next-hash), and a
// tuple of arity k hashes as Keccak256((3+k) || child-hash...). The empty
// tuple is the k=0 case of the same formula, cached in emptyTupleHash.
func (v Value) Hash() types.Hash {
	switch v.kind {
	case KindInt:
		var buf [32]byte
		v.big.FillBytes(buf[:])
		return types.BytesToHash(buf[:])
	case KindCodePoint:
		return v.cp.Hash()
	default:
		if len(v.tuple) == 0 {
			return emptyTupleHash
		}
		preimage := make([]byte, 0, 1+len(v.tuple)*32)
		preimage = append(preimage, byte(tagTupleBase+len(v.tuple)))
		for _, child := range v.tuple {
			h := child.Hash()
			preimage = append(preimage, h[:]...)
		}
		return crypto.Keccak256Hash(preimage)
	}
}

// Hash computes a CodePoint's commitment: Keccak256(1 || opcode ||
// immediate-field || next-hash), where immediate-field is the single byte
// 0 when no immediate is present, or 1 followed by hash(immediate) when
// one is (spec.md §4.1).
func (cp CodePoint) Hash() types.Hash {
	preimage := make([]byte, 0, 1+1+1+32+32)
	preimage = append(preimage, tagCodePoint)
	preimage = append(preimage, byte(cp.Op))
	if cp.HasImmediate {
		h := cp.Immediate.Hash()
		preimage = append(preimage, 1)
		preimage = append(preimage, h[:]...)
	} else {
		preimage = append(preimage, 0)
	}
	preimage = append(preimage, cp.NextHash[:]...)
	return crypto.Keccak256Hash(preimage)
}

// Equal reports whether two code points are structurally identical.
func (cp CodePoint) Equal(o CodePoint) bool {
	if cp.PC != o.PC || cp.Op != o.Op || cp.HasImmediate != o.HasImmediate || cp.NextHash != o.NextHash {
		return false
	}
	if cp.HasImmediate {
		return cp.Immediate.Equal(o.Immediate)
	}
	return true
}

// keccakHashConcat hashes the concatenation of each hash's raw bytes, in
// order. Used by Machine.Hash (spec.md §4.4's six-field root formula, via
// keccakRoot) and by the HASH opcode (opHash in ops.go).
func keccakHashConcat(hs ...types.Hash) types.Hash {
	parts := make([][]byte, len(hs))
	for i, h := range hs {
		parts[i] = h[:]
	}
	return crypto.Keccak256Hash(parts...)
}

// uint64be encodes n as 8 big-endian bytes, used by the canonical value
// codec (codec.go) for a code point's pc field.
func uint64be(n uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	return buf[:]
}
