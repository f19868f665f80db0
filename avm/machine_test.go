package avm

import (
	"math/big"
	"testing"

	"github.com/offchainlabs/arb-avm-go/core/types"
	"github.com/offchainlabs/arb-avm-go/metrics"
)

func newTestMachine(ops []Operation) *Machine {
	seg := NewCodeSegment(ops)
	return NewMachine(seg, EmptyTuple())
}

func TestEmptyProgramHash(t *testing.T) {
	m := newTestMachine(nil)
	// pc=0 is out of range for an empty program; Hash() must use the null
	// code point rather than panicking or indexing out of bounds.
	h := m.Hash()
	want := keccakRoot(NullCodePoint().Hash(), m.stack.Hash(), m.auxstack.Hash(), m.register.Hash(), m.staticVal.Hash(), m.errpc.Hash())
	if h != want {
		t.Errorf("Hash() = %x, want %x", h, want)
	}
}

func TestAddAndHalt(t *testing.T) {
	m := newTestMachine([]Operation{
		{Op: ADD, HasImmediate: true, Immediate: NewIntU64(3)},
		{Op: HALT},
	})
	m.stack = m.stack.Push(NewIntU64(2))

	reason, steps := m.Run(10)
	if reason.Kind != BlockHalt {
		t.Fatalf("reason = %v, want BlockHalt", reason.Kind)
	}
	if steps != 2 {
		t.Fatalf("steps = %d, want 2", steps)
	}
	if m.Status() != Halted {
		t.Fatalf("status = %v, want Halted", m.Status())
	}
	if m.Hash() != (types.Hash{}) {
		t.Error("Halted machine's Hash() must be the literal zero hash")
	}
}

func TestStepIncrementsMetrics(t *testing.T) {
	seg := NewCodeSegment([]Operation{{Op: NOP}, {Op: HALT}})
	m := NewMachine(seg, EmptyTuple())
	reg := metrics.NewRegistry()
	m.reg = reg

	m.Step()
	if got := reg.Counter("avm_steps_total").Value(); got != 1 {
		t.Errorf("avm_steps_total = %d, want 1", got)
	}
	if got := reg.Counter("avm_opcode_nop").Value(); got != 1 {
		t.Errorf("avm_opcode_nop = %d, want 1", got)
	}
}

func TestHashedCollapseIffTerminal(t *testing.T) {
	m := newTestMachine([]Operation{{Op: HALT}})
	m.Run(1)
	if m.Status() != Halted {
		t.Fatal("expected Halted")
	}
	if m.Hash() != (types.Hash{}) {
		t.Error("Halted -> Hash() must be 0")
	}

	errM := newTestMachine([]Operation{{Op: ERROR}})
	errM.Run(1)
	if errM.Status() != Error {
		t.Fatal("expected Error")
	}
	want := types.Hash{}
	want[31] = 1
	if errM.Hash() != want {
		t.Errorf("Error -> Hash() = %x, want %x", errM.Hash(), want)
	}

	extM := newTestMachine([]Operation{{Op: NOP}, {Op: HALT}})
	extM.Run(1)
	if extM.Status() != Extensive {
		t.Fatal("expected Extensive after one NOP step")
	}
	if extM.Hash() == (types.Hash{}) || extM.Hash() == want {
		t.Error("Extensive machine's Hash() must not collapse to 0 or 1")
	}
}

func TestStackUnderflowDivertsToErrorHandler(t *testing.T) {
	// errpc points at pc=3, which pushes 0xDEAD and halts. ADD on an empty
	// stack is a genuine VM-internal error (stack underflow) -- unlike
	// DIV/MOD by zero, which this machine defines to return 0 rather than
	// error (spec.md §4.5 arithmetic group).
	ops := []Operation{
		{Op: ADD},             // pc0: empty stack -> VM error, diverted
		{Op: HALT},            // pc1: unreachable on the happy path
		{Op: NOP},             // pc2: unreachable
		{Op: SPUSH},           // pc3: errpc target: push 0xDEAD, then halt
		{Op: HALT},            // pc4
	}
	seg := NewCodeSegment(ops)
	m := NewMachine(seg, NewIntU64(0xDEAD))
	errCP, _ := seg.At(3)
	m.errpc = errCP

	reason, _ := m.Run(10)
	if reason.Kind != BlockHalt {
		t.Fatalf("reason = %v, want BlockHalt", reason.Kind)
	}
	if m.Status() != Halted {
		t.Fatalf("status = %v, want Halted (error handler recovered)", m.Status())
	}
	top, _, err := m.stack.Pop()
	if err != nil {
		t.Fatal(err)
	}
	if top.Int().Cmp(big.NewInt(0xDEAD)) != 0 {
		t.Errorf("top of stack = %s, want 0xDEAD", top.Int())
	}
}

func TestDeliverOnchainMessagesReachesInbox(t *testing.T) {
	seg := NewCodeSegment([]Operation{{Op: INBOX}, {Op: HALT}})
	m := NewMachine(seg, EmptyTuple())

	msg := NewMessage(types.Address{}, types.Address{}, nil, nil, NewIntU64(42))
	if err := m.SendOnchainMessage(msg); err != nil {
		t.Fatal(err)
	}
	if m.PendingMessageCount() != 1 {
		t.Fatalf("PendingMessageCount() = %d, want 1", m.PendingMessageCount())
	}

	// Before delivery, INBOX must still block: a pending onchain message is
	// not yet visible to the program.
	reason, _ := m.Run(1)
	if reason.Kind != BlockInboxEmpty {
		t.Fatalf("reason = %v, want BlockInboxEmpty before delivery", reason.Kind)
	}

	m.DeliverOnchainMessages()
	if m.PendingMessageCount() != 0 {
		t.Errorf("PendingMessageCount() after delivery = %d, want 0", m.PendingMessageCount())
	}

	reason, _ = m.Run(10)
	if reason.Kind != BlockHalt {
		t.Fatalf("reason = %v, want BlockHalt once delivered messages reach INBOX", reason.Kind)
	}
	top, _, err := m.stack.Pop()
	if err != nil {
		t.Fatal(err)
	}
	head, _ := top.TupleGet(0)
	if !head.Equal(msg.AsValue()) {
		t.Error("INBOX did not consume the delivered onchain message")
	}
}

func TestUnknownOpcodeBypassesErrpc(t *testing.T) {
	seg := NewCodeSegment([]Operation{{Op: Opcode(200)}, {Op: HALT}})
	m := NewMachine(seg, EmptyTuple())
	m.errpc = CodePoint{Op: HALT} // a non-null errpc that would recover a normal VM error
	reason, _ := m.Run(1)
	if reason.Kind != BlockError {
		t.Fatalf("reason = %v, want BlockError (unknown opcode must bypass errpc)", reason.Kind)
	}
	if m.Status() != Error {
		t.Fatalf("status = %v, want Error", m.Status())
	}
}

func TestInboxBlocksThenConsumesChunk(t *testing.T) {
	seg := NewCodeSegment([]Operation{{Op: INBOX}, {Op: HALT}})
	m := NewMachine(seg, EmptyTuple())

	reason, steps := m.Run(1)
	if reason.Kind != BlockInboxEmpty {
		t.Fatalf("reason = %v, want BlockInboxEmpty", reason.Kind)
	}
	if steps != 1 {
		t.Fatalf("steps = %d, want 1", steps)
	}
	if m.PC() != 0 {
		t.Errorf("pc = %d, want 0 (blocked step must not advance pc)", m.PC())
	}

	msg := NewMessage(types.Address{}, types.Address{}, nil, nil, NewIntU64(7))
	m.SendOffchainMessages([]Message{msg})

	reason, _ = m.Run(10)
	if reason.Kind != BlockHalt {
		t.Fatalf("reason = %v, want BlockHalt after inbox chunk delivered", reason.Kind)
	}
	top, _, err := m.stack.Pop()
	if err != nil {
		t.Fatal(err)
	}
	// top is a chain cell (message, empty_tuple); first element matches
	// msg's value representation.
	head, _ := top.TupleGet(0)
	if !head.Equal(msg.AsValue()) {
		t.Error("INBOX did not push the expected message chunk")
	}
}

func TestSendBlocksOnInsufficientBalance(t *testing.T) {
	seg := NewCodeSegment([]Operation{{Op: SEND}, {Op: HALT}})
	m := NewMachine(seg, EmptyTuple())
	msg := NewMessage(types.Address{}, types.Address{}, big.NewInt(1), big.NewInt(100), EmptyTuple())
	m.stack = m.stack.Push(msg.AsValue())

	reason, _ := m.Run(1)
	if reason.Kind != BlockSend || !reason.InsufficientBalance {
		t.Fatalf("reason = %+v, want BlockSend{InsufficientBalance:true}", reason)
	}

	if err := m.SendOnchainMessage(NewMessage(types.Address{}, types.Address{}, big.NewInt(1), big.NewInt(100), EmptyTuple())); err != nil {
		t.Fatal(err)
	}
	reason, _ = m.Run(10)
	if reason.Kind != BlockHalt {
		t.Fatalf("reason = %v, want BlockHalt once balance is topped up", reason.Kind)
	}
}

func TestJumpLoopCounterReachesZero(t *testing.T) {
	// A register-decrementing loop built from real JUMP/CJUMP instructions:
	//
	//	pc0: NOP   imm=1        push constant 1
	//	pc1: RPUSH              push register
	//	pc2: SUB                register - 1
	//	pc3: RSET                register = top
	//	pc4: RPUSH              push register
	//	pc5: ISZERO              push (register == 0)
	//	pc6: CJUMP imm=pc8       if true, jump to HALT
	//	pc7: JUMP  imm=pc0       else loop back to the top
	//	pc8: HALT
	//
	// JUMP/CJUMP targets only need a valid PC field (opJump/opCjump read
	// cp.PC and nothing else), so the target values don't need to be the
	// segment's own linked code points.
	ops := []Operation{
		{Op: NOP, HasImmediate: true, Immediate: NewIntU64(1)},
		{Op: RPUSH},
		{Op: SUB},
		{Op: RSET},
		{Op: RPUSH},
		{Op: ISZERO},
		{Op: CJUMP, HasImmediate: true, Immediate: NewCodePointValue(CodePoint{PC: 8})},
		{Op: JUMP, HasImmediate: true, Immediate: NewCodePointValue(CodePoint{PC: 0})},
		{Op: HALT},
	}
	seg := NewCodeSegment(ops)
	const start = 4
	m := NewMachine(seg, EmptyTuple())
	m.register = NewIntU64(start)

	hashes := map[types.Hash]bool{}
	for i := 0; i < 200 && m.Status() == Extensive; i++ {
		if m.PC() == 0 {
			hashes[m.Hash()] = true
		}
		m.Step()
	}
	if m.Status() != Halted {
		t.Fatalf("expected machine to halt, status = %v", m.Status())
	}
	// register visits start, start-1, ..., 1 at the loop head; it never
	// returns to pc0 once it reaches 0 since CJUMP jumps straight to HALT.
	if len(hashes) != start {
		t.Errorf("distinct root hashes observed at loop head = %d, want %d", len(hashes), start)
	}
}
