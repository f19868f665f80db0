package avm

import (
	"testing"

	"github.com/offchainlabs/arb-avm-go/crypto"
)

func TestIntHashIsBigEndian32Bytes(t *testing.T) {
	v := NewIntU64(1)
	h := v.Hash()
	var want [32]byte
	want[31] = 1
	if h != want {
		t.Errorf("Hash() = %x, want %x", h, want)
	}
}

func TestEmptyTupleHash(t *testing.T) {
	want := crypto.Keccak256Hash([]byte{tagTupleBase})
	if EmptyTuple().Hash() != want {
		t.Errorf("EmptyTuple().Hash() = %x, want %x", EmptyTuple().Hash(), want)
	}
}

func TestTupleHashDependsOnArityTag(t *testing.T) {
	one, _ := NewTuple([]Value{NewIntU64(1)})
	two, _ := NewTuple([]Value{NewIntU64(1), NewIntU64(2)})
	if one.Hash() == two.Hash() {
		t.Error("tuples of different arity must not collide")
	}
}

func TestTupleHashIsDeterministic(t *testing.T) {
	a, _ := NewTuple([]Value{NewIntU64(1), NewIntU64(2)})
	b, _ := NewTuple([]Value{NewIntU64(1), NewIntU64(2)})
	if a.Hash() != b.Hash() {
		t.Error("structurally identical tuples must hash identically")
	}
}

func TestCodePointHashImmediateFieldWidth(t *testing.T) {
	// Absent immediate: the preimage carries a single 0 byte for
	// immediate_field, not a zero-filled 32-byte hash.
	noImm := CodePoint{Op: ADD, NextHash: types256Zero()}
	withImm := CodePoint{Op: ADD, HasImmediate: true, Immediate: NewIntU64(0), NextHash: types256Zero()}
	if noImm.Hash() == withImm.Hash() {
		t.Error("presence of an immediate must change the hash even when the immediate's own hash happens to be the zero-int hash")
	}
}

func TestCodePointHashPreimageShape(t *testing.T) {
	cp := CodePoint{Op: ADD, NextHash: types256Zero()}
	preimage := []byte{tagCodePoint, byte(ADD), 0}
	preimage = append(preimage, cp.NextHash[:]...)
	want := crypto.Keccak256Hash(preimage)
	if cp.Hash() != want {
		t.Errorf("Hash() = %x, want %x", cp.Hash(), want)
	}
}

func TestCodePointHashWithImmediatePreimageShape(t *testing.T) {
	imm := NewIntU64(7)
	cp := CodePoint{Op: ADD, HasImmediate: true, Immediate: imm, NextHash: types256Zero()}
	immHash := imm.Hash()
	preimage := []byte{tagCodePoint, byte(ADD), 1}
	preimage = append(preimage, immHash[:]...)
	preimage = append(preimage, cp.NextHash[:]...)
	want := crypto.Keccak256Hash(preimage)
	if cp.Hash() != want {
		t.Errorf("Hash() = %x, want %x", cp.Hash(), want)
	}
}

func TestCodePointEqual(t *testing.T) {
	a := CodePoint{Op: ADD, NextHash: types256Zero()}
	b := CodePoint{Op: ADD, NextHash: types256Zero()}
	c := CodePoint{Op: SUB, NextHash: types256Zero()}
	if !a.Equal(b) {
		t.Error("expected a.Equal(b)")
	}
	if a.Equal(c) {
		t.Error("expected !a.Equal(c)")
	}
}

func TestUint64be(t *testing.T) {
	b := uint64be(1)
	if len(b) != 8 {
		t.Fatalf("uint64be length = %d, want 8", len(b))
	}
	if b[7] != 1 {
		t.Errorf("uint64be(1)[7] = %d, want 1", b[7])
	}
}

// types256Zero returns the zero Hash, named for readability at call sites
// that want to make explicit they mean the literal zero next-hash.
func types256Zero() Hash256 {
	return Hash256{}
}
