package avm

import "github.com/offchainlabs/arb-avm-go/core/types"

// Stack is a view over a right-leaning chain of 2-tuples: S = (top, rest)
// down to the empty-tuple sentinel, exactly as spec.md §4.2 defines both
// the data stack and the aux stack. A Stack value is immutable; Push/Pop
// return a new Stack sharing structure with the old one.
type Stack struct {
	top Value // always EmptyTuple() or a 2-tuple (elem, rest)
}

// NewStack returns an empty stack.
func NewStack() Stack {
	return Stack{top: EmptyTuple()}
}

// StackFromValue wraps an existing chain value as a Stack, e.g. when
// restoring from a checkpoint. It does not validate the chain's shape;
// malformed input surfaces on first use, as ErrNotTuple from Pop or
// ErrStackUnderflow from Peek.
func StackFromValue(v Value) Stack {
	return Stack{top: v}
}

// Value returns the underlying chain value, e.g. for checkpointing or for
// embedding a stack inside another tuple.
func (s Stack) Value() Value { return s.top }

// IsEmpty reports whether the stack holds no elements.
func (s Stack) IsEmpty() bool {
	return s.top.IsTuple() && s.top.TupleLen() == 0
}

// Len walks the chain and counts elements. O(depth); spec.md does not
// require O(1) length, and the original machinestate.cpp does not cache
// one either.
func (s Stack) Len() int {
	n := 0
	cur := s.top
	for cur.IsTuple() && cur.TupleLen() == 2 {
		n++
		cur, _ = cur.TupleGet(1)
	}
	return n
}

// Push returns a new stack with v on top.
func (s Stack) Push(v Value) Stack {
	cell, _ := NewTuple([]Value{v, s.top})
	return Stack{top: cell}
}

// Pop returns the top element and the remaining stack, or
// ErrStackUnderflow if empty.
func (s Stack) Pop() (Value, Stack, error) {
	if s.IsEmpty() {
		return Value{}, Stack{}, ErrStackUnderflow
	}
	if s.top.TupleLen() != 2 {
		return Value{}, Stack{}, ErrNotTuple
	}
	elem, _ := s.top.TupleGet(0)
	rest, _ := s.top.TupleGet(1)
	return elem, Stack{top: rest}, nil
}

// Peek returns the i-th element from the top (0-indexed) without popping.
func (s Stack) Peek(i int) (Value, error) {
	cur := s.top
	for j := 0; j < i; j++ {
		if !cur.IsTuple() || cur.TupleLen() != 2 {
			return Value{}, ErrStackUnderflow
		}
		cur, _ = cur.TupleGet(1)
	}
	if !cur.IsTuple() || cur.TupleLen() != 2 {
		return Value{}, ErrStackUnderflow
	}
	elem, _ := cur.TupleGet(0)
	return elem, nil
}

// Hash returns the commitment of the stack's chain value: identical to
// Value().Hash(), exposed directly so call sites that only ever deal with
// stacks need not reach through Value().
func (s Stack) Hash() types.Hash {
	return s.top.Hash()
}

// MarshalProof pops len(pops) elements (every entry in pops is expected to
// be true; see opcodes.go) and returns the hash of the remaining stack
// together with the witness bytes for the popped elements, each encoded by
// the canonical value codec, in pop order (top-of-stack first) -- the
// layout spec.md §4.6 requires for the on-chain verifier to reconstruct
// just enough of the stack to check a single step.
func (s Stack) MarshalProof(pops []bool) (types.Hash, []byte, error) {
	cur := s
	var witness []byte
	for _, pop := range pops {
		if !pop {
			continue
		}
		elem, rest, err := cur.Pop()
		if err != nil {
			return types.Hash{}, nil, err
		}
		witness = append(witness, EncodeValue(elem)...)
		cur = rest
	}
	return cur.Hash(), witness, nil
}
