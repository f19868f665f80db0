package avm

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// CurrentAOVersion is the only program binary version this loader accepts
// (spec.md §4.3).
const CurrentAOVersion uint32 = 1

// LoadProgram decodes a .ao binary into a CodeSegment and initial static
// value (spec.md §4.3, §6 "load"). The binary layout, big-endian
// throughout, is:
//
//	u32 version
//	extension table: u32 ids terminated by u32 0
//	u64 code_count
//	code_count serialized operations: u8 has_immediate, u8 opcode, [value]?
//	one serialized static_val
func LoadProgram(data []byte) (*CodeSegment, Value, error) {
	r := bytes.NewReader(data)

	var version uint32
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return nil, Value{}, fmt.Errorf("avm: read version: %w", ErrMalformed)
	}
	if version != CurrentAOVersion {
		return nil, Value{}, ErrBadVersion
	}

	for {
		var extID uint32
		if err := binary.Read(r, binary.BigEndian, &extID); err != nil {
			return nil, Value{}, fmt.Errorf("avm: read extension table: %w", ErrMalformed)
		}
		if extID == 0 {
			break
		}
		// Non-zero extension ids are read past but ignored in this
		// version (spec.md §4.3, §6: "forward-compatibility scaffolding").
	}

	var codeCount uint64
	if err := binary.Read(r, binary.BigEndian, &codeCount); err != nil {
		return nil, Value{}, fmt.Errorf("avm: read code_count: %w", ErrMalformed)
	}

	ops := make([]Operation, codeCount)
	for i := range ops {
		hasImmByte, err := r.ReadByte()
		if err != nil {
			return nil, Value{}, fmt.Errorf("avm: read has_immediate[%d]: %w", i, ErrMalformed)
		}
		opByte, err := r.ReadByte()
		if err != nil {
			return nil, Value{}, fmt.Errorf("avm: read opcode[%d]: %w", i, ErrMalformed)
		}
		op := Opcode(opByte)
		if !op.Valid() {
			return nil, Value{}, fmt.Errorf("avm: opcode[%d]=%d: %w", i, opByte, ErrMalformed)
		}
		hasImm := hasImmByte != 0
		var imm Value
		if hasImm {
			imm, err = DecodeValue(r)
			if err != nil {
				return nil, Value{}, err
			}
		}
		ops[i] = Operation{Op: op, HasImmediate: hasImm, Immediate: imm}
	}

	staticVal, err := DecodeValue(r)
	if err != nil {
		return nil, Value{}, err
	}

	return NewCodeSegment(ops), staticVal, nil
}

// LoadInto decodes program bytes and installs the result into m, matching
// the host driver API's load(program_bytes) -> Result<(), BadVersion|Malformed>
// (spec.md §6).
func (m *Machine) LoadInto(data []byte) error {
	code, staticVal, err := LoadProgram(data)
	if err != nil {
		return err
	}
	m.Load(code, staticVal)
	return nil
}
