package avm

import "math/big"

// binaryIntOp pops two integers (top, second), applies fn(top, second),
// and pushes the result. Matches the EVM convention that the top of stack
// is the operation's first operand.
func (m *Machine) binaryIntOp(fn func(a, b *big.Int) *big.Int) error {
	a, b, err := m.pop2Ints()
	if err != nil {
		return err
	}
	m.stack = m.stack.Push(NewInt(fn(a, b)))
	return nil
}

func (m *Machine) binaryIntOpBool(fn func(a, b *big.Int) bool) error {
	a, b, err := m.pop2Ints()
	if err != nil {
		return err
	}
	m.stack = m.stack.Push(boolInt(fn(a, b)))
	return nil
}

func (m *Machine) unaryIntOp(fn func(a *big.Int) *big.Int) error {
	a, err := m.pop1Int()
	if err != nil {
		return err
	}
	m.stack = m.stack.Push(NewInt(fn(a)))
	return nil
}

func (m *Machine) unaryIntOpBool(fn func(a *big.Int) bool) error {
	a, err := m.pop1Int()
	if err != nil {
		return err
	}
	m.stack = m.stack.Push(boolInt(fn(a)))
	return nil
}

func (m *Machine) ternaryIntOp(fn func(a, b, c *big.Int) *big.Int) error {
	v1, rest, err := m.stack.Pop()
	if err != nil {
		return err
	}
	v2, rest, err := rest.Pop()
	if err != nil {
		return err
	}
	v3, rest, err := rest.Pop()
	if err != nil {
		return err
	}
	a, err := v1.AsInt()
	if err != nil {
		return err
	}
	b, err := v2.AsInt()
	if err != nil {
		return err
	}
	c, err := v3.AsInt()
	if err != nil {
		return err
	}
	m.stack = rest.Push(NewInt(fn(a, b, c)))
	return nil
}

func (m *Machine) binaryValOpBool(fn func(a, b Value) bool) error {
	v1, rest, err := m.stack.Pop()
	if err != nil {
		return err
	}
	v2, rest, err := rest.Pop()
	if err != nil {
		return err
	}
	m.stack = rest.Push(boolInt(fn(v1, v2)))
	return nil
}

func (m *Machine) pop2Ints() (a, b *big.Int, err error) {
	v1, rest, err := m.stack.Pop()
	if err != nil {
		return nil, nil, err
	}
	v2, rest, err := rest.Pop()
	if err != nil {
		return nil, nil, err
	}
	a, err = v1.AsInt()
	if err != nil {
		return nil, nil, err
	}
	b, err = v2.AsInt()
	if err != nil {
		return nil, nil, err
	}
	m.stack = rest
	return a, b, nil
}

func (m *Machine) pop1Int() (*big.Int, error) {
	v, rest, err := m.stack.Pop()
	if err != nil {
		return nil, err
	}
	a, err := v.AsInt()
	if err != nil {
		return nil, err
	}
	m.stack = rest
	return a, nil
}

// opPop discards the top of stack.
func (m *Machine) opPop() error {
	_, rest, err := m.stack.Pop()
	if err != nil {
		return err
	}
	m.stack = rest
	return nil
}

// opHash pops a value and pushes the Keccak-256 hash of that value's own
// hash, wrapped as an integer (spec.md §4.5 "HASH (Keccak over the popped
// value's hash)").
func (m *Machine) opHash() error {
	v, rest, err := m.stack.Pop()
	if err != nil {
		return err
	}
	h := v.Hash()
	out := keccakHashConcat(h)
	m.stack = rest.Push(NewInt(new(big.Int).SetBytes(out[:])))
	return nil
}

// opType pops a value and pushes its integer type tag.
func (m *Machine) opType() error {
	v, rest, err := m.stack.Pop()
	if err != nil {
		return err
	}
	m.stack = rest.Push(NewInt(big.NewInt(v.TypeTag())))
	return nil
}

// opRset pops the top of stack into the register.
func (m *Machine) opRset() error {
	v, rest, err := m.stack.Pop()
	if err != nil {
		return err
	}
	m.register = v
	m.stack = rest
	return nil
}

// opErrset pops a code point off the stack into errpc.
func (m *Machine) opErrset() error {
	v, rest, err := m.stack.Pop()
	if err != nil {
		return err
	}
	cp, err := v.AsCodePoint()
	if err != nil {
		return err
	}
	m.errpc = cp
	m.stack = rest
	return nil
}

// opJump pops a code point and sets pc to it directly. It also sets
// m.jumped, which makes Step skip its own pc++ for this instruction, since
// JUMP is one of the opcodes that sets pc explicitly per spec.md §4.5
// step 5.
func (m *Machine) opJump() error {
	v, rest, err := m.stack.Pop()
	if err != nil {
		return err
	}
	cp, err := v.AsCodePoint()
	if err != nil {
		return ErrInvalidJumpDest
	}
	m.stack = rest
	m.pc = cp.PC
	m.jumped = true
	return nil
}

// opCjump pops a code point and a condition; if the condition is nonzero
// it jumps, otherwise falls through to pc+1 as usual.
func (m *Machine) opCjump() (BlockReason, error) {
	v1, rest, err := m.stack.Pop()
	if err != nil {
		return BlockReason{}, err
	}
	v2, rest, err := rest.Pop()
	if err != nil {
		return BlockReason{}, err
	}
	cp, err := v1.AsCodePoint()
	if err != nil {
		return BlockReason{}, ErrInvalidJumpDest
	}
	cond, err := v2.AsInt()
	if err != nil {
		return BlockReason{}, err
	}
	m.stack = rest
	if cond.Sign() != 0 {
		m.pc = cp.PC
		m.jumped = true
	}
	return BlockReason{Kind: NotBlocked}, nil
}

func (m *Machine) opAuxpush() error {
	v, rest, err := m.stack.Pop()
	if err != nil {
		return err
	}
	m.stack = rest
	m.auxstack = m.auxstack.Push(v)
	return nil
}

func (m *Machine) opAuxpop() error {
	v, rest, err := m.auxstack.Pop()
	if err != nil {
		return ErrAuxStackUnderflow
	}
	m.auxstack = rest
	m.stack = m.stack.Push(v)
	return nil
}

func (m *Machine) opDup(depth int) error {
	v, err := m.stack.Peek(depth)
	if err != nil {
		return err
	}
	m.stack = m.stack.Push(v)
	return nil
}

// opSwap exchanges the top of stack with the element at the given depth,
// leaving everything in between untouched.
func (m *Machine) opSwap(depth int) error {
	vals := make([]Value, depth+1)
	cur := m.stack
	for i := 0; i <= depth; i++ {
		v, rest, err := cur.Pop()
		if err != nil {
			return err
		}
		vals[i] = v
		cur = rest
	}
	vals[0], vals[depth] = vals[depth], vals[0]
	for i := depth; i >= 0; i-- {
		cur = cur.Push(vals[i])
	}
	m.stack = cur
	return nil
}

// opTget pops an index and a tuple, pushing the indexed element.
func (m *Machine) opTget() error {
	vi, rest, err := m.stack.Pop()
	if err != nil {
		return err
	}
	vt, rest, err := rest.Pop()
	if err != nil {
		return err
	}
	idx, err := vi.AsInt()
	if err != nil {
		return err
	}
	if !idx.IsInt64() {
		return ErrTupleIndexRange
	}
	elem, err := vt.TupleGet(int(idx.Int64()))
	if err != nil {
		return err
	}
	m.stack = rest.Push(elem)
	return nil
}

// opTset pops an index, a tuple, and a value, pushing the updated tuple.
func (m *Machine) opTset() error {
	vi, rest, err := m.stack.Pop()
	if err != nil {
		return err
	}
	vt, rest, err := rest.Pop()
	if err != nil {
		return err
	}
	vv, rest, err := rest.Pop()
	if err != nil {
		return err
	}
	idx, err := vi.AsInt()
	if err != nil {
		return err
	}
	if !idx.IsInt64() {
		return ErrTupleIndexRange
	}
	updated, err := vt.TupleSet(int(idx.Int64()), vv)
	if err != nil {
		return err
	}
	m.stack = rest.Push(m.pool.Intern(updated))
	return nil
}

// opTlen pops a tuple and pushes its arity.
func (m *Machine) opTlen() error {
	v, rest, err := m.stack.Pop()
	if err != nil {
		return err
	}
	n := v.TupleLen()
	if n < 0 {
		return ErrNotTuple
	}
	m.stack = rest.Push(NewIntU64(uint64(n)))
	return nil
}

// opLog pops a value and emits it as a side-effect log entry; it does not
// mutate machine state otherwise (spec.md §4.5 "LOG (emit side-effect)").
func (m *Machine) opLog() error {
	v, rest, err := m.stack.Pop()
	if err != nil {
		return err
	}
	m.stack = rest
	h := v.Hash()
	m.log.Info("log", "pc", m.pc, "value_hash", h.Hex())
	return nil
}

// opDebug pops a value and logs it at debug level without any other
// effect, used by programs as an inspection aid during development.
func (m *Machine) opDebug() error {
	v, rest, err := m.stack.Pop()
	if err != nil {
		return err
	}
	m.stack = rest
	h := v.Hash()
	m.log.Debug("debug", "pc", m.pc, "value_hash", h.Hex())
	return nil
}

// opSend pops a message tuple value and attempts to debit the sender's
// balance for its currency amount; insufficient balance blocks with
// BlockSend rather than erroring, per spec.md §4.5 "SEND (may block with
// Send if insufficient balance)". The message is popped only once the send
// actually succeeds, so a blocked SEND can be retried after the host tops
// up the balance.
func (m *Machine) opSend() (BlockReason, error) {
	v, err := m.stack.Peek(0)
	if err != nil {
		return BlockReason{}, err
	}
	msg, err := valueToMessage(v)
	if err != nil {
		return BlockReason{}, err
	}
	if msg.Currency.Sign() != 0 {
		if ok := m.balance.Sub(msg.TokenType, msg.Currency); !ok {
			return BlockReason{Kind: BlockSend, InsufficientBalance: true}, nil
		}
	}
	_, rest, _ := m.stack.Pop()
	m.stack = rest
	m.outbox = m.outbox.Append(msg)
	return BlockReason{Kind: NotBlocked}, nil
}

// opNbsend is the non-blocking counterpart to SEND: it never blocks,
// instead pushing a boolean success flag (spec.md §4.5 "NBSEND
// (non-blocking send returns success boolean)").
func (m *Machine) opNbsend() error {
	v, rest, err := m.stack.Pop()
	if err != nil {
		return err
	}
	msg, err := valueToMessage(v)
	if err != nil {
		m.stack = rest.Push(boolInt(false))
		return nil
	}
	ok := true
	if msg.Currency.Sign() != 0 {
		ok = m.balance.Sub(msg.TokenType, msg.Currency)
	}
	if ok {
		m.outbox = m.outbox.Append(msg)
	}
	m.stack = rest.Push(boolInt(ok))
	return nil
}

// opInbox consumes the oldest not-yet-delivered inbox chunk and pushes it
// onto the data stack as a right-leaning tuple chain of messages. If no
// chunk is queued, it blocks with BlockInboxEmpty without mutating pc
// (spec.md §4.5 "INBOX (consume pending inbox chunk; may block with
// Inbox)"; see DESIGN.md for the "chunk" interpretation this
// implementation settles on).
func (m *Machine) opInbox() (BlockReason, error) {
	if len(m.inboxChunks) == 0 {
		return BlockReason{Kind: BlockInboxEmpty}, nil
	}
	chunk := m.inboxChunks[0]
	m.inboxChunks = m.inboxChunks[1:]
	m.stack = m.stack.Push(chunk)
	return BlockReason{Kind: NotBlocked}, nil
}

// valueToMessage converts a 5-tuple value (as produced by Message.AsValue)
// back into a Message, for opcodes that build outbound messages on the
// data stack.
func valueToMessage(v Value) (Message, error) {
	if v.TupleLen() != 5 {
		return Message{}, ErrNotTuple
	}
	sender, err := mustTupleInt(v, 0)
	if err != nil {
		return Message{}, err
	}
	dest, err := mustTupleInt(v, 1)
	if err != nil {
		return Message{}, err
	}
	tokenType, err := mustTupleInt(v, 2)
	if err != nil {
		return Message{}, err
	}
	currency, err := mustTupleInt(v, 3)
	if err != nil {
		return Message{}, err
	}
	payload, err := v.TupleGet(4)
	if err != nil {
		return Message{}, err
	}
	return NewMessage(bigToAddress(sender), bigToAddress(dest), tokenType, currency, payload), nil
}

func mustTupleInt(v Value, i int) (*big.Int, error) {
	elem, err := v.TupleGet(i)
	if err != nil {
		return nil, err
	}
	return elem.AsInt()
}
