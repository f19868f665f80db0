package avm

import (
	"math/big"
	"testing"
)

func TestNewIntKind(t *testing.T) {
	v := NewIntU64(42)
	if !v.IsInt() {
		t.Fatal("expected IsInt")
	}
	if v.Int().Int64() != 42 {
		t.Errorf("Int() = %d, want 42", v.Int().Int64())
	}
}

func TestNewTupleArity(t *testing.T) {
	items := make([]Value, MaxTupleArity)
	for i := range items {
		items[i] = NewIntU64(uint64(i))
	}
	if _, err := NewTuple(items); err != nil {
		t.Fatalf("arity %d should be allowed: %v", MaxTupleArity, err)
	}

	tooMany := append(items, NewIntU64(99))
	if _, err := NewTuple(tooMany); err != ErrTupleArity {
		t.Fatalf("expected ErrTupleArity for arity %d, got %v", len(tooMany), err)
	}
}

func TestEmptyTuple(t *testing.T) {
	e := EmptyTuple()
	if !e.IsTuple() {
		t.Fatal("expected IsTuple")
	}
	if e.TupleLen() != 0 {
		t.Errorf("TupleLen() = %d, want 0", e.TupleLen())
	}
}

func TestTupleGetSet(t *testing.T) {
	tup, err := NewTuple([]Value{NewIntU64(1), NewIntU64(2), NewIntU64(3)})
	if err != nil {
		t.Fatal(err)
	}
	got, err := tup.TupleGet(1)
	if err != nil {
		t.Fatal(err)
	}
	if got.Int().Int64() != 2 {
		t.Errorf("TupleGet(1) = %d, want 2", got.Int().Int64())
	}

	updated, err := tup.TupleSet(1, NewIntU64(99))
	if err != nil {
		t.Fatal(err)
	}
	got, _ = updated.TupleGet(1)
	if got.Int().Int64() != 99 {
		t.Errorf("after TupleSet, TupleGet(1) = %d, want 99", got.Int().Int64())
	}
	// original tuple must be unmodified (values are immutable).
	got, _ = tup.TupleGet(1)
	if got.Int().Int64() != 2 {
		t.Errorf("original tuple mutated: TupleGet(1) = %d, want 2", got.Int().Int64())
	}

	if _, err := tup.TupleGet(5); err != ErrTupleIndexRange {
		t.Fatalf("expected ErrTupleIndexRange, got %v", err)
	}
}

func TestValueEqual(t *testing.T) {
	a, _ := NewTuple([]Value{NewIntU64(1), NewIntU64(2)})
	b, _ := NewTuple([]Value{NewIntU64(1), NewIntU64(2)})
	c, _ := NewTuple([]Value{NewIntU64(1), NewIntU64(3)})

	if !a.Equal(b) {
		t.Error("expected structurally equal tuples to be Equal")
	}
	if a.Equal(c) {
		t.Error("expected differing tuples to not be Equal")
	}
	if NewIntU64(1).Equal(NewCodePointValue(NullCodePoint())) {
		t.Error("values of different kinds must not be Equal")
	}
}

func TestAsIntAsCodePointErrors(t *testing.T) {
	v := NewIntU64(1)
	if _, err := v.AsCodePoint(); err != ErrNotCodePoint {
		t.Fatalf("expected ErrNotCodePoint, got %v", err)
	}
	cpv := NewCodePointValue(NullCodePoint())
	if _, err := cpv.AsInt(); err != ErrNotInteger {
		t.Fatalf("expected ErrNotInteger, got %v", err)
	}
}

func TestMaxUint256Mask(t *testing.T) {
	want := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	if maxUint256Mask.Cmp(want) != 0 {
		t.Fatalf("maxUint256Mask = %s, want %s", maxUint256Mask, want)
	}
}
