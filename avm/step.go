package avm

import (
	"errors"
	"math/big"
)

// Step executes exactly one instruction and returns the resulting block
// reason (spec.md §4.5). If the machine is already in a terminal status,
// Step returns that status's block reason without touching any state.
func (m *Machine) Step() BlockReason {
	if m.status == Halted {
		m.blockReason = BlockReason{Kind: BlockHalt}
		return m.blockReason
	}
	if m.status == Error {
		m.blockReason = BlockReason{Kind: BlockError}
		return m.blockReason
	}

	cp, ok := m.code.At(m.pc)
	if !ok {
		m.transitionToError()
		return m.blockReason
	}

	m.reg.Counter("avm_steps_total").Inc()
	m.reg.Counter("avm_opcode_" + cp.Op.String()).Inc()

	if cp.HasImmediate {
		m.stack = m.stack.Push(cp.Immediate)
	}

	reason, err := m.dispatch(cp.Op)
	if err != nil {
		if errors.Is(err, ErrUnknownOpcode) {
			m.transitionToError()
			return m.blockReason
		}
		m.divertToErrorHandler(cp.Op, err)
		return m.blockReason
	}
	if reason.Kind != NotBlocked {
		m.blockReason = reason
		return reason
	}

	if m.jumped {
		m.jumped = false
	} else {
		m.pc++
	}
	m.blockReason = BlockReason{Kind: NotBlocked}
	return m.blockReason
}

// Run executes up to maxSteps instructions, stopping early the first time
// a step returns anything other than NotBlocked. It returns the final
// block reason and the number of steps actually taken.
func (m *Machine) Run(maxSteps uint64) (BlockReason, uint64) {
	var taken uint64
	for taken < maxSteps {
		reason := m.Step()
		taken++
		if reason.Kind != NotBlocked {
			return reason, taken
		}
	}
	return BlockReason{Kind: NotBlocked}, taken
}

// transitionToError sets status to Error directly, used for unknown
// opcodes and out-of-range pc (spec.md §4.5 step 4: "Unknown opcodes
// transition directly to Error").
func (m *Machine) transitionToError() {
	m.status = Error
	m.blockReason = BlockReason{Kind: BlockError}
}

// divertToErrorHandler implements spec.md §7 regime 1: if errpc is the
// null code point, status becomes Error; otherwise pc jumps to errpc.pc
// and execution continues from there on the next Step.
func (m *Machine) divertToErrorHandler(op Opcode, err error) {
	m.log.Debug("vm error", "op", op.String(), "err", err.Error(), "pc", m.pc)
	if m.errpc.IsNull() {
		m.transitionToError()
		return
	}
	m.pc = m.errpc.PC
	m.blockReason = BlockReason{Kind: NotBlocked}
}

// dispatch executes op's operation, returning a non-NotBlocked reason if
// it blocked (Breakpoint/InboxEmpty/Send) or a non-nil error if it failed
// with a VM-internal error (spec.md §4.5 groups, in order).
func (m *Machine) dispatch(op Opcode) (BlockReason, error) {
	nb := BlockReason{Kind: NotBlocked}
	switch op {

	// --- Arithmetic ---
	case ADD:
		return nb, m.binaryIntOp(addMod256)
	case MUL:
		return nb, m.binaryIntOp(mulMod256)
	case SUB:
		return nb, m.binaryIntOp(subMod256)
	case DIV:
		return nb, m.binaryIntOp(divMod256)
	case SDIV:
		return nb, m.binaryIntOp(sdiv256)
	case MOD:
		return nb, m.binaryIntOp(modMod256)
	case SMOD:
		return nb, m.binaryIntOp(smod256)
	case ADDMOD:
		return nb, m.ternaryIntOp(addModMod256)
	case MULMOD:
		return nb, m.ternaryIntOp(mulModMod256)
	case EXP:
		return nb, m.binaryIntOp(expMod256)

	// --- Comparison & bitwise ---
	case LT:
		return nb, m.binaryIntOpBool(func(a, b *big.Int) bool { return a.Cmp(b) < 0 })
	case GT:
		return nb, m.binaryIntOpBool(func(a, b *big.Int) bool { return a.Cmp(b) > 0 })
	case SLT:
		return nb, m.binaryIntOpBool(func(a, b *big.Int) bool { return toSigned(a).Cmp(toSigned(b)) < 0 })
	case SGT:
		return nb, m.binaryIntOpBool(func(a, b *big.Int) bool { return toSigned(a).Cmp(toSigned(b)) > 0 })
	case EQ:
		return nb, m.binaryValOpBool(func(a, b Value) bool { return a.Equal(b) })
	case ISZERO:
		return nb, m.unaryIntOpBool(func(a *big.Int) bool { return a.Sign() == 0 })
	case AND:
		return nb, m.binaryIntOp(func(a, b *big.Int) *big.Int { return mod256(new(big.Int).And(a, b)) })
	case OR:
		return nb, m.binaryIntOp(func(a, b *big.Int) *big.Int { return mod256(new(big.Int).Or(a, b)) })
	case XOR:
		return nb, m.binaryIntOp(func(a, b *big.Int) *big.Int { return mod256(new(big.Int).Xor(a, b)) })
	case NOT:
		return nb, m.unaryIntOp(func(a *big.Int) *big.Int { return mod256(new(big.Int).Not(a)) })
	case BYTE:
		return nb, m.binaryIntOp(byteAt)
	case SIGNEXTEND:
		return nb, m.binaryIntOp(signExtend)

	// --- Hashing & type ---
	case HASH:
		return nb, m.opHash()
	case TYPE:
		return nb, m.opType()

	// --- Stack & flow ---
	case POP:
		return nb, m.opPop()
	case SPUSH:
		m.stack = m.stack.Push(m.staticVal)
		return nb, nil
	case RPUSH:
		m.stack = m.stack.Push(m.register)
		return nb, nil
	case RSET:
		return nb, m.opRset()
	case JUMP:
		return nb, m.opJump()
	case CJUMP:
		return m.opCjump()
	case STACKEMPTY:
		m.stack = m.stack.Push(boolInt(m.stack.IsEmpty()))
		return nb, nil
	case PCPUSH:
		m.stack = m.stack.Push(NewCodePointValue(m.currentCodePoint()))
		return nb, nil
	case AUXPUSH:
		return nb, m.opAuxpush()
	case AUXPOP:
		return nb, m.opAuxpop()
	case AUXSTACKEMPTY:
		m.stack = m.stack.Push(boolInt(m.auxstack.IsEmpty()))
		return nb, nil
	case NOP:
		return nb, nil
	case ERRPUSH:
		m.stack = m.stack.Push(NewCodePointValue(m.errpc))
		return nb, nil
	case ERRSET:
		return nb, m.opErrset()

	// --- Dup/swap ---
	case DUP0:
		return nb, m.opDup(0)
	case DUP1:
		return nb, m.opDup(1)
	case DUP2:
		return nb, m.opDup(2)
	case SWAP1:
		return nb, m.opSwap(1)
	case SWAP2:
		return nb, m.opSwap(2)

	// --- Tuple ---
	case TGET:
		return nb, m.opTget()
	case TSET:
		return nb, m.opTset()
	case TLEN:
		return nb, m.opTlen()

	// --- Logging ---
	case BREAKPOINT:
		return BlockReason{Kind: BlockBreakpoint}, nil
	case LOG:
		return nb, m.opLog()
	case DEBUG:
		return nb, m.opDebug()

	// --- System ---
	case SEND:
		return m.opSend()
	case NBSEND:
		return nb, m.opNbsend()
	case GETTIME:
		t, _ := NewTuple([]Value{NewIntU64(m.context.TimeLower), NewIntU64(m.context.TimeUpper)})
		m.stack = m.stack.Push(t)
		return nb, nil
	case INBOX:
		return m.opInbox()
	case ERROR:
		m.status = Error
		return BlockReason{Kind: BlockError}, nil
	case HALT:
		m.status = Halted
		return BlockReason{Kind: BlockHalt}, nil

	default:
		return BlockReason{}, newVMError(op, ErrUnknownOpcode)
	}
}
