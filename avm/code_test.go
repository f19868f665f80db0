package avm

import "testing"

func TestNullCodePointIsNull(t *testing.T) {
	if !NullCodePoint().IsNull() {
		t.Fatal("NullCodePoint() should report IsNull")
	}
	other := CodePoint{Op: ADD}
	if other.IsNull() {
		t.Fatal("an ADD code point should not be null")
	}
}

func TestNewCodeSegmentLastNextHashIsZero(t *testing.T) {
	seg := NewCodeSegment([]Operation{
		{Op: ADD}, {Op: SUB}, {Op: HALT},
	})
	last, ok := seg.At(2)
	if !ok {
		t.Fatal("expected code point at pc=2")
	}
	if !last.NextHash.IsZero() {
		t.Errorf("last code point's NextHash = %x, want zero", last.NextHash)
	}
}

func TestNewCodeSegmentChainsNextHash(t *testing.T) {
	seg := NewCodeSegment([]Operation{
		{Op: ADD}, {Op: SUB}, {Op: HALT},
	})
	for i := 0; i < seg.Len()-1; i++ {
		cp, _ := seg.At(uint64(i))
		next, _ := seg.At(uint64(i + 1))
		if cp.NextHash != next.Hash() {
			t.Errorf("code[%d].NextHash = %x, want hash(code[%d]) = %x", i, cp.NextHash, i+1, next.Hash())
		}
	}
}

func TestCodeSegmentAtOutOfRange(t *testing.T) {
	seg := NewCodeSegment([]Operation{{Op: HALT}})
	if _, ok := seg.At(5); ok {
		t.Fatal("expected ok=false for out-of-range pc")
	}
	if seg.Hash(5) != NullCodePoint().Hash() {
		t.Error("out-of-range Hash(pc) should equal the null code point's hash")
	}
}

func TestEmptyCodeSegmentHash(t *testing.T) {
	seg := NewCodeSegment(nil)
	if seg.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", seg.Len())
	}
	if seg.Hash(0) != NullCodePoint().Hash() {
		t.Error("empty program's Hash(0) should equal the null code point's hash")
	}
}
