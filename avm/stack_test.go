package avm

import "testing"

func TestStackPushPop(t *testing.T) {
	s := NewStack()
	if !s.IsEmpty() {
		t.Fatal("new stack should be empty")
	}
	s = s.Push(NewIntU64(1)).Push(NewIntU64(2))
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}

	top, rest, err := s.Pop()
	if err != nil {
		t.Fatal(err)
	}
	if top.Int().Int64() != 2 {
		t.Errorf("top = %d, want 2", top.Int().Int64())
	}
	if rest.Len() != 1 {
		t.Errorf("rest.Len() = %d, want 1", rest.Len())
	}
}

func TestStackPopUnderflow(t *testing.T) {
	s := NewStack()
	if _, _, err := s.Pop(); err != ErrStackUnderflow {
		t.Fatalf("expected ErrStackUnderflow, got %v", err)
	}
}

func TestStackPeek(t *testing.T) {
	s := NewStack().Push(NewIntU64(10)).Push(NewIntU64(20)).Push(NewIntU64(30))
	v, err := s.Peek(1)
	if err != nil {
		t.Fatal(err)
	}
	if v.Int().Int64() != 20 {
		t.Errorf("Peek(1) = %d, want 20", v.Int().Int64())
	}
	if _, err := s.Peek(5); err != ErrStackUnderflow {
		t.Fatalf("expected ErrStackUnderflow for out-of-range peek, got %v", err)
	}
}

func TestStackHashMatchesValueHash(t *testing.T) {
	s := NewStack().Push(NewIntU64(1))
	if s.Hash() != s.Value().Hash() {
		t.Error("Stack.Hash() must equal Value().Hash()")
	}
}

func TestStackFromValueRoundTrip(t *testing.T) {
	s := NewStack().Push(NewIntU64(7)).Push(NewIntU64(8))
	rebuilt := StackFromValue(s.Value())
	if rebuilt.Hash() != s.Hash() {
		t.Error("StackFromValue(s.Value()) should hash identically to s")
	}
}

func TestStackMarshalProofPopsAndWitnesses(t *testing.T) {
	s := NewStack().Push(NewIntU64(1)).Push(NewIntU64(2)).Push(NewIntU64(3))
	postHash, witness, err := s.MarshalProof([]bool{true, true})
	if err != nil {
		t.Fatal(err)
	}

	// After popping 2 elements (3, 2), only 1 remains.
	remaining, _, _ := s.Pop()
	_ = remaining
	expected, rest, _ := s.Pop()
	_ = expected
	_, rest, _ = rest.Pop()
	if postHash != rest.Hash() {
		t.Error("post-pop hash mismatch")
	}

	wantWitness := append(EncodeValue(NewIntU64(3)), EncodeValue(NewIntU64(2))...)
	if string(witness) != string(wantWitness) {
		t.Error("witness bytes do not match expected pop-order encoding")
	}
}

func TestStackMarshalProofNoPops(t *testing.T) {
	s := NewStack().Push(NewIntU64(1))
	postHash, witness, err := s.MarshalProof(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(witness) != 0 {
		t.Errorf("expected empty witness, got %d bytes", len(witness))
	}
	if postHash != s.Hash() {
		t.Error("with no pops, post-pop hash should equal the original stack hash")
	}
}

func TestStackMarshalProofUnderflow(t *testing.T) {
	s := NewStack()
	if _, _, err := s.MarshalProof([]bool{true}); err != ErrStackUnderflow {
		t.Fatalf("expected ErrStackUnderflow, got %v", err)
	}
}
