package avm

// MarshalProof produces the single-step proof blob described in spec.md
// §4.6:
//
//	next_hash(32) || stack_hash_after_pops(32) || auxstack_hash_after_pops(32) ||
//	hash(register)(32) || hash(static_val)(32) || hash(errpc)(32) ||
//	serialized_current_op ||
//	witness_stack_values || witness_auxstack_values
//
// It is only meaningful while the machine is Extensive; callers must not
// call it after a terminal Halt/Error collapse, since there is no current
// instruction to prove.
func (m *Machine) MarshalProof() ([]byte, error) {
	cp := m.currentCodePoint()

	pops := stackPops[cp.Op]
	auxPops := auxStackPops[cp.Op]

	// The immediate-elision rule (spec.md §4.6): if the opcode's first
	// data-stack pop slot is true and the instruction carries an
	// immediate, that slot is elided from the witness set -- the
	// immediate was already pushed onto the stack by Step before
	// dispatch, and it is emitted inline in serialized_current_op
	// instead, so marshalling it again as a witness would be redundant.
	effectivePops := pops
	if cp.HasImmediate && len(pops) > 0 && pops[0] {
		effectivePops = pops[1:]
	}

	stackHash, stackWitness, err := m.stack.MarshalProof(effectivePops)
	if err != nil {
		return nil, err
	}
	auxHash, auxWitness, err := m.auxstack.MarshalProof(auxPops)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, 6*32+2+32+len(stackWitness)+len(auxWitness))
	out = append(out, cp.NextHash[:]...)
	out = append(out, stackHash[:]...)
	out = append(out, auxHash[:]...)
	regHash := m.register.Hash()
	out = append(out, regHash[:]...)
	staticHash := m.staticVal.Hash()
	out = append(out, staticHash[:]...)
	errpcHash := m.errpc.Hash()
	out = append(out, errpcHash[:]...)

	out = append(out, serializedOp(cp)...)

	out = append(out, stackWitness...)
	out = append(out, auxWitness...)
	return out, nil
}

// serializedOp encodes has_immediate(1) || opcode(1) || [immediate_value]?,
// the "serialized_current_op" field of the proof blob.
func serializedOp(cp CodePoint) []byte {
	out := make([]byte, 0, 2)
	if cp.HasImmediate {
		out = append(out, 1, byte(cp.Op))
		out = append(out, EncodeValue(cp.Immediate)...)
	} else {
		out = append(out, 0, byte(cp.Op))
	}
	return out
}
