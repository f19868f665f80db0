// Package avm implements the core of the AVM: the value universe, the two
// stacks, the message queues, the balance tracker, the code segment, the
// machine state and step engine, single-step proof marshalling, and the
// checkpoint codec. See SPEC_FULL.md for the full specification this
// package implements.
package avm

import (
	"math/big"

	"github.com/offchainlabs/arb-avm-go/core/types"
)

// MaxTupleArity is the maximum number of elements a tuple Value may hold
// (spec.md §3 "Value").
const MaxTupleArity = 8

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindInt Kind = iota
	KindCodePoint
	KindTuple
)

// Value is the tagged union of everything the AVM can hold on a stack, in
// a register, or inside a tuple: a 256-bit unsigned integer, a code point,
// or a tuple of 0..8 values. Values are logically immutable; constructing a
// new Value never mutates an existing one.
type Value struct {
	kind  Kind
	big   *big.Int   // KindInt
	cp    *CodePoint // KindCodePoint
	tuple []Value    // KindTuple, len 0..MaxTupleArity
}

// NewInt wraps n as an integer Value. n is reduced into [0, 2^256) by
// masking, matching the AVM's modular 256-bit integer semantics.
func NewInt(n *big.Int) Value {
	v := new(big.Int).Set(n)
	v.And(v, maxUint256Mask)
	return Value{kind: KindInt, big: v}
}

// NewIntU64 wraps a uint64 as an integer Value.
func NewIntU64(n uint64) Value {
	return NewInt(new(big.Int).SetUint64(n))
}

// NewCodePointValue wraps a CodePoint as a Value.
func NewCodePointValue(cp CodePoint) Value {
	return Value{kind: KindCodePoint, cp: &cp}
}

// NewTuple builds a tuple Value from items (0..MaxTupleArity elements).
// The slice is copied; callers may reuse or mutate items after the call.
func NewTuple(items []Value) (Value, error) {
	if len(items) > MaxTupleArity {
		return Value{}, ErrTupleArity
	}
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindTuple, tuple: cp}, nil
}

// EmptyTuple is the canonical empty-tuple sentinel used for an empty stack,
// an empty register, and the initial static value of a program with none.
func EmptyTuple() Value {
	return Value{kind: KindTuple, tuple: nil}
}

// Kind returns the value's tag.
func (v Value) Kind() Kind { return v.kind }

// IsInt, IsCodePoint, IsTuple report the value's variant.
func (v Value) IsInt() bool       { return v.kind == KindInt }
func (v Value) IsCodePoint() bool { return v.kind == KindCodePoint }
func (v Value) IsTuple() bool     { return v.kind == KindTuple }

// Int returns the wrapped integer. Callers must check IsInt first; Int
// panics on a non-integer value, matching the teacher's EVM stack
// convention of trusting the caller to have validated the stack shape via
// the opcode's pop signature before extracting operands.
func (v Value) Int() *big.Int {
	if v.kind != KindInt {
		panic("avm: Value.Int on non-integer value")
	}
	return v.big
}

// AsInt returns the wrapped integer with an explicit error instead of a
// panic, for call sites that must not trust the stack shape (TGET/TSET
// index operands, CJUMP condition).
func (v Value) AsInt() (*big.Int, error) {
	if v.kind != KindInt {
		return nil, ErrNotInteger
	}
	return v.big, nil
}

// CodePoint returns the wrapped code point, panicking on a non-code-point
// value. See Int for the panic-vs-error convention.
func (v Value) CodePoint() CodePoint {
	if v.kind != KindCodePoint {
		panic("avm: Value.CodePoint on non-code-point value")
	}
	return *v.cp
}

// AsCodePoint returns the wrapped code point with an explicit error.
func (v Value) AsCodePoint() (CodePoint, error) {
	if v.kind != KindCodePoint {
		return CodePoint{}, ErrNotCodePoint
	}
	return *v.cp, nil
}

// TupleLen returns the number of elements in a tuple value, or -1 if v is
// not a tuple.
func (v Value) TupleLen() int {
	if v.kind != KindTuple {
		return -1
	}
	return len(v.tuple)
}

// TupleGet returns the i-th element of a tuple value.
func (v Value) TupleGet(i int) (Value, error) {
	if v.kind != KindTuple {
		return Value{}, ErrNotTuple
	}
	if i < 0 || i >= len(v.tuple) {
		return Value{}, ErrTupleIndexRange
	}
	return v.tuple[i], nil
}

// TupleSet returns a new tuple with the i-th element replaced by val. The
// receiver is never mutated (values are immutable).
func (v Value) TupleSet(i int, val Value) (Value, error) {
	if v.kind != KindTuple {
		return Value{}, ErrNotTuple
	}
	if i < 0 || i >= len(v.tuple) {
		return Value{}, ErrTupleIndexRange
	}
	cp := make([]Value, len(v.tuple))
	copy(cp, v.tuple)
	cp[i] = val
	return Value{kind: KindTuple, tuple: cp}, nil
}

// TypeTag returns the integer type tag for TYPE opcode purposes: 0 for
// integers, 1 for code points, 2+arity-independent for tuples (the AVM
// type system does not distinguish tuple arities).
func (v Value) TypeTag() int64 {
	switch v.kind {
	case KindInt:
		return 0
	case KindCodePoint:
		return 1
	default:
		return 2
	}
}

// Equal reports structural equality. Per spec.md §3, equal values hash
// equal; Equal is defined independently of hashing, comparing structure
// directly without computing any hash.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInt:
		return v.big.Cmp(o.big) == 0
	case KindCodePoint:
		return v.cp.Equal(*o.cp)
	case KindTuple:
		if len(v.tuple) != len(o.tuple) {
			return false
		}
		for i := range v.tuple {
			if !v.tuple[i].Equal(o.tuple[i]) {
				return false
			}
		}
		return true
	}
	return false
}

var maxUint256Mask = func() *big.Int {
	one := big.NewInt(1)
	mask := new(big.Int).Lsh(one, 256)
	mask.Sub(mask, one)
	return mask
}()

// Hash256 is an alias kept for readability at call sites that deal purely
// with the machine's 32-byte digests.
type Hash256 = types.Hash
