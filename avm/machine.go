package avm

import (
	"github.com/offchainlabs/arb-avm-go/core/types"
	"github.com/offchainlabs/arb-avm-go/log"
	"github.com/offchainlabs/arb-avm-go/metrics"
)

// Status is the machine's coarse lifecycle state (spec.md §3 "MachineState").
type Status uint8

const (
	Extensive Status = iota
	Halted
	Error
)

func (s Status) String() string {
	switch s {
	case Extensive:
		return "extensive"
	case Halted:
		return "halted"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// BlockKind tags the reason a step/run call returned without progressing
// past a Send/Inbox/Breakpoint condition, or because it reached a
// terminal state (spec.md §4.5, §7).
type BlockKind uint8

const (
	NotBlocked BlockKind = iota
	BlockHalt
	BlockError
	BlockBreakpoint
	BlockInboxEmpty
	BlockSend
)

// BlockReason is the tagged union returned by Step and Run.
type BlockReason struct {
	Kind                BlockKind
	InsufficientBalance bool // valid when Kind == BlockSend
}

// IsTerminal reports whether the block reason represents a stoppage the
// machine can never resume from (Halt, Error), as opposed to one that may
// become unstuck given more inbox input, balance, or a debugger resuming
// execution (InboxEmpty, Send, Breakpoint).
func (b BlockReason) IsTerminal() bool {
	return b.Kind == BlockHalt || b.Kind == BlockError
}

func (k BlockKind) String() string {
	switch k {
	case NotBlocked:
		return "not_blocked"
	case BlockHalt:
		return "halt"
	case BlockError:
		return "error"
	case BlockBreakpoint:
		return "breakpoint"
	case BlockInboxEmpty:
		return "inbox_empty"
	case BlockSend:
		return "send"
	default:
		return "unknown"
	}
}

// Context carries the block-time window the GETTIME opcode exposes to a
// running program.
type Context struct {
	TimeLower uint64
	TimeUpper uint64
}

// Machine ties together every component in this package into the runnable
// AVM described by spec.md §3 "MachineState". A zero Machine is not
// usable; construct one with NewMachine.
type Machine struct {
	code *CodeSegment
	pc   uint64

	stack    Stack
	auxstack Stack
	register Value

	staticVal Value
	errpc     CodePoint

	pendingInbox  MessageStack
	pendingValues []Value // content of pendingInbox, in append order, not yet delivered
	inbox         MessageStack
	inboxChunks   []Value // FIFO of not-yet-consumed inbox chunks, newest last

	outbox  MessageStack
	balance *BalanceTracker

	status      Status
	blockReason BlockReason
	context     Context

	pool *ValuePool
	log  *log.Logger
	reg  *metrics.Registry

	jumped bool // set by JUMP/CJUMP-taken so Step skips its own pc++
}

// NewMachine constructs an empty, freshly-loaded machine over code, with
// the given initial static value. This mirrors spec.md §4.3's loader
// post-conditions: pc=0, both stacks and the register are the empty
// tuple, errpc is the null code point, and status is Extensive.
func NewMachine(code *CodeSegment, staticVal Value) *Machine {
	return &Machine{
		code:      code,
		pc:        0,
		stack:     NewStack(),
		auxstack:  NewStack(),
		register:  EmptyTuple(),
		staticVal: staticVal,
		errpc:     NullCodePoint(),
		balance:   NewBalanceTracker(),
		status:    Extensive,
		pool:      NewValuePool(),
		log:       log.Default().Module("avm"),
		reg:       metrics.DefaultRegistry,
	}
}

// SetContext sets the block-time window exposed to GETTIME.
func (m *Machine) SetContext(ctx Context) { m.context = ctx }

// Status returns the machine's current lifecycle status.
func (m *Machine) Status() Status { return m.status }

// PC returns the current program counter.
func (m *Machine) PC() uint64 { return m.pc }

// Stack, AuxStack, Register, StaticVal, Errpc expose the fields that feed
// the root hash and proof marshalling (spec.md §4.4).
func (m *Machine) Stack() Stack         { return m.stack }
func (m *Machine) AuxStack() Stack      { return m.auxstack }
func (m *Machine) Register() Value      { return m.register }
func (m *Machine) StaticVal() Value     { return m.staticVal }
func (m *Machine) Errpc() CodePoint     { return m.errpc }
func (m *Machine) Balance() *BalanceTracker { return m.balance }
func (m *Machine) Inbox() MessageStack      { return m.inbox }
func (m *Machine) PendingInbox() MessageStack { return m.pendingInbox }
func (m *Machine) Outbox() MessageStack       { return m.outbox }

// currentCodePoint returns code[pc], or the null code point if pc is out
// of range (spec.md §8 "Empty program" scenario).
func (m *Machine) currentCodePoint() CodePoint {
	if cp, ok := m.code.At(m.pc); ok {
		return cp
	}
	return NullCodePoint()
}

// Hash computes the root state hash per spec.md §4.4. Halted collapses to
// the literal zero hash, Error to the literal hash with value 1 in its
// low byte, matching "return 0"/"return 1" read as 256-bit integers.
func (m *Machine) Hash() types.Hash {
	switch m.status {
	case Halted:
		return types.Hash{}
	case Error:
		var h types.Hash
		h[len(h)-1] = 1
		return h
	default:
		cp := m.currentCodePoint()
		cpHash := cp.Hash()
		stackHash := m.stack.Hash()
		auxHash := m.auxstack.Hash()
		regHash := m.register.Hash()
		staticHash := m.staticVal.Hash()
		errpcHash := m.errpc.Hash()

		return keccakRoot(cpHash, stackHash, auxHash, regHash, staticHash, errpcHash)
	}
}

// Load replaces the machine's code, pc, and static value as though freshly
// decoded from a program file; used by the loader after parsing a .ao
// binary (spec.md §4.3, §6 "load").
func (m *Machine) Load(code *CodeSegment, staticVal Value) {
	m.code = code
	m.pc = 0
	m.stack = NewStack()
	m.auxstack = NewStack()
	m.register = EmptyTuple()
	m.staticVal = staticVal
	m.errpc = NullCodePoint()
	m.status = Extensive
	m.blockReason = BlockReason{}
}

// SendOnchainMessage appends msg to the pending inbox and credits its
// payment to the balance tracker (spec.md §6 "send_onchain_message").
// It reports ErrBalanceOverflow if crediting would overflow 2^256; the
// message is still appended to the pending inbox in that case, since the
// inbox log is an append-only record of what was sent, not a conditional
// one (the host is expected to treat the overflow as fatal to the batch
// before calling this, not after).
func (m *Machine) SendOnchainMessage(msg Message) error {
	m.pendingInbox = m.pendingInbox.Append(msg)
	m.pendingValues = append(m.pendingValues, msg.AsValue())
	if msg.Currency.Sign() != 0 {
		if ok := m.balance.Add(msg.TokenType, msg.Currency); !ok {
			return ErrBalanceOverflow
		}
	}
	return nil
}

// SendOffchainMessages appends msgs as a new chunk to the inbox, in order
// (spec.md §6 "send_offchain_messages"). Each call forms one chunk that a
// subsequent INBOX opcode consumes as a unit.
func (m *Machine) SendOffchainMessages(msgs []Message) {
	if len(msgs) == 0 {
		return
	}
	m.inbox = m.inbox.Merge(msgs)
	vals := make([]Value, len(msgs))
	for i, msg := range msgs {
		vals[i] = msg.AsValue()
	}
	m.inboxChunks = append(m.inboxChunks, chunkValue(vals))
}

// chunkValue builds a right-leaning tuple chain value out of vals, reusing
// the same cons-cell shape as Stack so INBOX can hand the program a value
// it already knows how to walk with TGET/TLEN-style code.
func chunkValue(vals []Value) Value {
	chain := EmptyTuple()
	for i := len(vals) - 1; i >= 0; i-- {
		cell, _ := NewTuple([]Value{vals[i], chain})
		chain = cell
	}
	return chain
}

// DeliverOnchainMessages atomically moves the pending inbox into the main
// inbox and clears pending (spec.md §6 "deliver_onchain_messages"). The
// pending messages' actual content is bundled into one new inbox chunk
// (the same shape SendOffchainMessages builds) so a subsequent INBOX call
// can consume what was delivered, not just its hash.
func (m *Machine) DeliverOnchainMessages() {
	if m.pendingInbox.Count() == 0 {
		return
	}
	m.inbox = MessageStack{
		count: m.inbox.count + m.pendingInbox.count,
		head:  chainHash(m.pendingInbox.head, m.inbox.head),
	}
	if len(m.pendingValues) > 0 {
		m.inboxChunks = append(m.inboxChunks, chunkValue(m.pendingValues))
	}
	m.pendingInbox = NewMessageStack()
	m.pendingValues = nil
}

// SetInbox and SetPendingInbox are test/restore hooks (spec.md §6).
func (m *Machine) SetInbox(ms MessageStack)        { m.inbox = ms }
func (m *Machine) SetPendingInbox(ms MessageStack) { m.pendingInbox = ms }

// PendingMessageCount reports the number of messages awaiting delivery.
func (m *Machine) PendingMessageCount() uint64 { return m.pendingInbox.Count() }

// keccakRoot is kept in its own tiny function so machine.go's Hash method
// reads as a direct transliteration of the six-field formula in spec.md
// §4.4, with the actual Keccak256 call factored out so tests can recompute
// the same root from its six field hashes.
func keccakRoot(codeHash, stackHash, auxHash, regHash, staticHash, errpcHash types.Hash) types.Hash {
	return keccakHashConcat(codeHash, stackHash, auxHash, regHash, staticHash, errpcHash)
}
