package avm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math/big"

	"github.com/offchainlabs/arb-avm-go/core/types"
)

// Canonical value codec: a self-contained, fully recursive binary
// encoding used wherever a Value must travel without access to a
// content-addressed store -- immediate operands and the trailing
// static_val in a .ao file (spec.md §4.3/§6), and popped-value witnesses
// in a single-step proof blob (§4.6, "each serialised by the canonical
// value codec"). This is distinct from the checkpoint store's shallow,
// hash-referencing encoding in checkpoint.go, which is allowed to lean on
// the store for child lookups.
const (
	codecTagInt       byte = 0
	codecTagCodePoint byte = 1
	codecTagTuple     byte = 2
)

// EncodeValue appends the canonical encoding of v to the returned byte
// slice.
func EncodeValue(v Value) []byte {
	var buf []byte
	switch v.kind {
	case KindInt:
		buf = append(buf, codecTagInt)
		var b [32]byte
		v.big.FillBytes(b[:])
		buf = append(buf, b[:]...)
	case KindCodePoint:
		cp := v.cp
		buf = append(buf, codecTagCodePoint)
		buf = append(buf, uint64be(cp.PC)...)
		buf = append(buf, byte(cp.Op))
		if cp.HasImmediate {
			buf = append(buf, 1)
			buf = append(buf, EncodeValue(cp.Immediate)...)
		} else {
			buf = append(buf, 0)
		}
		buf = append(buf, cp.NextHash[:]...)
	default:
		buf = append(buf, codecTagTuple, byte(len(v.tuple)))
		for _, child := range v.tuple {
			buf = append(buf, EncodeValue(child)...)
		}
	}
	return buf
}

// DecodeValue reads one canonically-encoded Value from r.
func DecodeValue(r *bytes.Reader) (Value, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return Value{}, fmt.Errorf("avm: decode value tag: %w", ErrMalformed)
	}
	switch tag {
	case codecTagInt:
		var b [32]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return Value{}, fmt.Errorf("avm: decode int: %w", ErrMalformed)
		}
		return NewInt(new(big.Int).SetBytes(b[:])), nil
	case codecTagCodePoint:
		var pcBuf [8]byte
		if _, err := io.ReadFull(r, pcBuf[:]); err != nil {
			return Value{}, fmt.Errorf("avm: decode codepoint pc: %w", ErrMalformed)
		}
		pc := binary.BigEndian.Uint64(pcBuf[:])
		opByte, err := r.ReadByte()
		if err != nil {
			return Value{}, fmt.Errorf("avm: decode codepoint op: %w", ErrMalformed)
		}
		hasImmByte, err := r.ReadByte()
		if err != nil {
			return Value{}, fmt.Errorf("avm: decode codepoint flag: %w", ErrMalformed)
		}
		var imm Value
		hasImm := hasImmByte != 0
		if hasImm {
			imm, err = DecodeValue(r)
			if err != nil {
				return Value{}, err
			}
		}
		var nextHash types.Hash
		if _, err := io.ReadFull(r, nextHash[:]); err != nil {
			return Value{}, fmt.Errorf("avm: decode codepoint next hash: %w", ErrMalformed)
		}
		return NewCodePointValue(CodePoint{
			PC:           pc,
			Op:           Opcode(opByte),
			HasImmediate: hasImm,
			Immediate:    imm,
			NextHash:     nextHash,
		}), nil
	case codecTagTuple:
		n, err := r.ReadByte()
		if err != nil {
			return Value{}, fmt.Errorf("avm: decode tuple arity: %w", ErrMalformed)
		}
		if int(n) > MaxTupleArity {
			return Value{}, ErrTupleArity
		}
		items := make([]Value, n)
		for i := range items {
			items[i], err = DecodeValue(r)
			if err != nil {
				return Value{}, err
			}
		}
		t, err := NewTuple(items)
		if err != nil {
			return Value{}, err
		}
		return t, nil
	default:
		return Value{}, fmt.Errorf("avm: unknown value tag %d: %w", tag, ErrMalformed)
	}
}
