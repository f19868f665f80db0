package avm

import (
	"bytes"
	"testing"
)

func TestMarshalProofLayoutNoImmediate(t *testing.T) {
	seg := NewCodeSegment([]Operation{{Op: ADD}, {Op: HALT}})
	m := NewMachine(seg, EmptyTuple())
	m.stack = m.stack.Push(NewIntU64(2)).Push(NewIntU64(3))

	proof, err := m.MarshalProof()
	if err != nil {
		t.Fatal(err)
	}
	if len(proof) < 6*32+2 {
		t.Fatalf("proof too short: %d bytes", len(proof))
	}
	cp := m.currentCodePoint()
	if !bytes.Equal(proof[:32], cp.NextHash[:]) {
		t.Error("proof[0:32] must be next_hash")
	}
	// serialized_current_op starts right after the six 32-byte fields.
	opOffset := 6 * 32
	if proof[opOffset] != 0 {
		t.Errorf("has_immediate byte = %d, want 0", proof[opOffset])
	}
	if Opcode(proof[opOffset+1]) != ADD {
		t.Errorf("opcode byte = %d, want ADD", proof[opOffset+1])
	}
	// ADD pops 2; with no immediate, both are witnessed. Each integer
	// witness is canonically encoded as a tag byte plus 32 bytes.
	witness := proof[opOffset+2:]
	if len(witness) != 2*33 {
		t.Errorf("witness length = %d, want 66 (two popped values)", len(witness))
	}
}

func TestMarshalProofImmediateElision(t *testing.T) {
	// ADD's first stack-pop slot is true; with an immediate present, that
	// slot is elided from the witness set since it's already inline in
	// serialized_current_op.
	seg := NewCodeSegment([]Operation{
		{Op: ADD, HasImmediate: true, Immediate: NewIntU64(3)},
		{Op: HALT},
	})
	m := NewMachine(seg, EmptyTuple())
	m.stack = m.stack.Push(NewIntU64(2))

	proof, err := m.MarshalProof()
	if err != nil {
		t.Fatal(err)
	}
	opOffset := 6 * 32
	if proof[opOffset] != 1 {
		t.Fatalf("has_immediate byte = %d, want 1", proof[opOffset])
	}
	// serialized_current_op = has_immediate(1) + opcode(1) + encoded immediate.
	encodedImm := EncodeValue(NewIntU64(3))
	opLen := 2 + len(encodedImm)
	witness := proof[opOffset+opLen:]
	// ADD normally pops 2; with the immediate slot elided, only 1 remains.
	if len(witness) != 33 {
		t.Errorf("witness length = %d, want 33 (only the non-immediate pop)", len(witness))
	}
}

func TestMarshalProofIncludesAuxWitness(t *testing.T) {
	seg := NewCodeSegment([]Operation{{Op: AUXPOP}, {Op: HALT}})
	m := NewMachine(seg, EmptyTuple())
	m.auxstack = m.auxstack.Push(NewIntU64(9))

	proof, err := m.MarshalProof()
	if err != nil {
		t.Fatal(err)
	}
	opOffset := 6 * 32
	opLen := 2 // AUXPOP carries no immediate
	witness := proof[opOffset+opLen:]
	if len(witness) != 33 {
		t.Errorf("witness length = %d, want 33 (one aux pop)", len(witness))
	}
}

func TestMarshalProofErrorsOnUnderflow(t *testing.T) {
	seg := NewCodeSegment([]Operation{{Op: ADD}, {Op: HALT}})
	m := NewMachine(seg, EmptyTuple())
	// stack is empty; ADD needs two values.
	if _, err := m.MarshalProof(); err == nil {
		t.Error("expected an error marshalling a proof for an underflowing op")
	}
}
