package avm

import (
	"math/big"

	"github.com/offchainlabs/arb-avm-go/core/rawdb"
	"github.com/offchainlabs/arb-avm-go/core/types"
	"github.com/offchainlabs/arb-avm-go/log"
	"github.com/offchainlabs/arb-avm-go/metrics"
	"github.com/offchainlabs/arb-avm-go/rlp"
)

// Checkpoint stores and restores the full machine state against a
// transactional, content-addressed key-value store (spec.md §4.7). Unlike
// the canonical value codec in codec.go (used for proof witnesses and
// .ao immediates, which must be self-contained since the verifier has no
// store to dereference into), checkpoint encoding is shallow: a tuple's
// record holds its children's *keys*, not their bytes, so that
// structurally shared sub-values are written to the store exactly once
// regardless of how many stack cells or messages reference them.

// valueRecord is the shallow, store-referencing encoding of a single
// Value node, RLP-encoded at its content address (spec.md §4.7
// "save_value ... stores the serialised encoding at that key").
type valueRecord struct {
	Kind         uint8
	Int          []byte // 32 bytes, KindInt only
	PC           uint64 // KindCodePoint only
	Op           uint8  // KindCodePoint only
	HasImmediate bool   // KindCodePoint only
	ImmKey       []byte // 32 bytes, KindCodePoint+HasImmediate only
	NextHash     []byte // 32 bytes, KindCodePoint only
	ChildKeys    [][]byte // KindTuple only, one 32-byte key per child
}

// machineStateRecord is the single record persisted at the root hash key.
// It names the six content-addressed value children (static value,
// register, errpc, current code point, data stack, aux stack), the chain
// heads and counts of the inbox and pending inbox, the content keys of the
// queued inbox chunks and pending messages, and the scalar status, block
// reason, and balance fields (spec.md §4.7).
type machineStateRecord struct {
	StaticValKey []byte
	RegisterKey  []byte
	ErrpcKey     []byte
	CodePointKey []byte
	StackKey     []byte
	AuxStackKey  []byte
	InboxHeadKey []byte
	InboxCount   uint64
	PendingHeadKey []byte
	PendingCount   uint64
	InboxChunkKeys   [][]byte // not-yet-consumed inbox chunk content, in FIFO order
	PendingValueKeys [][]byte // pendingInbox's message content, in append order

	Status       uint8
	BlockReason  uint8
	InsufficientBalance bool
	BalanceTokenTypes [][]byte
	BalanceAmounts    [][]byte
}

const machineStateKeyPrefix = 0xff

func machineStateKey(root types.Hash) []byte {
	key := make([]byte, 1+len(root))
	key[0] = machineStateKeyPrefix
	copy(key[1:], root[:])
	return key
}

// saveValue content-addresses v by its hash and writes its shallow record
// to batch, recursing into children first so a child's record always
// exists before its parent references it. It is idempotent: writing the
// same content twice is a harmless overwrite with identical bytes.
func saveValue(batch rawdb.Batch, v Value) (types.Hash, error) {
	key := v.Hash()

	var rec valueRecord
	switch v.Kind() {
	case KindInt:
		rec.Kind = uint8(KindInt)
		var b [32]byte
		v.Int().FillBytes(b[:])
		rec.Int = b[:]
	case KindCodePoint:
		cp := v.CodePoint()
		rec.Kind = uint8(KindCodePoint)
		rec.PC = cp.PC
		rec.Op = uint8(cp.Op)
		rec.HasImmediate = cp.HasImmediate
		rec.NextHash = cp.NextHash[:]
		if cp.HasImmediate {
			immKey, err := saveValue(batch, cp.Immediate)
			if err != nil {
				return types.Hash{}, err
			}
			rec.ImmKey = immKey[:]
		}
	default:
		rec.Kind = uint8(KindTuple)
		n := v.TupleLen()
		rec.ChildKeys = make([][]byte, n)
		for i := 0; i < n; i++ {
			child, _ := v.TupleGet(i)
			childKey, err := saveValue(batch, child)
			if err != nil {
				return types.Hash{}, err
			}
			rec.ChildKeys[i] = childKey[:]
		}
	}

	encoded, err := rlp.EncodeToBytes(&rec)
	if err != nil {
		return types.Hash{}, err
	}
	if err := batch.Put(key[:], encoded); err != nil {
		return types.Hash{}, err
	}
	return key, nil
}

// loadValue reconstructs a Value by iterative descent starting at key,
// failing with ErrCorrupt if any referenced child is missing.
func loadValue(store rawdb.KeyValueReader, key types.Hash) (Value, error) {
	raw, err := store.Get(key[:])
	if err != nil {
		return Value{}, ErrCorrupt
	}
	var rec valueRecord
	if err := rlp.DecodeBytes(raw, &rec); err != nil {
		return Value{}, ErrCorrupt
	}

	switch Kind(rec.Kind) {
	case KindInt:
		return NewInt(new(big.Int).SetBytes(rec.Int)), nil
	case KindCodePoint:
		var imm Value
		if rec.HasImmediate {
			var immKey types.Hash
			immKey.SetBytes(rec.ImmKey)
			imm, err = loadValue(store, immKey)
			if err != nil {
				return Value{}, err
			}
		}
		var nextHash types.Hash
		nextHash.SetBytes(rec.NextHash)
		return NewCodePointValue(CodePoint{
			PC:           rec.PC,
			Op:           Opcode(rec.Op),
			HasImmediate: rec.HasImmediate,
			Immediate:    imm,
			NextHash:     nextHash,
		}), nil
	default:
		items := make([]Value, len(rec.ChildKeys))
		for i, ck := range rec.ChildKeys {
			var childKey types.Hash
			childKey.SetBytes(ck)
			items[i], err = loadValue(store, childKey)
			if err != nil {
				return Value{}, err
			}
		}
		t, err := NewTuple(items)
		if err != nil {
			return Value{}, ErrCorrupt
		}
		return t, nil
	}
}

// Checkpoint persists the machine's full state to store and returns the
// root hash identifying it (spec.md §4.7). All child saves happen inside
// a single Batch and are committed atomically; any failure aborts the
// whole checkpoint and returns ErrAborted without partially writing.
func (m *Machine) Checkpoint(store rawdb.Database) (types.Hash, error) {
	batch := store.NewBatch()

	staticKey, err := saveValue(batch, m.staticVal)
	if err != nil {
		return types.Hash{}, ErrAborted
	}
	regKey, err := saveValue(batch, m.register)
	if err != nil {
		return types.Hash{}, ErrAborted
	}
	errpcKey, err := saveValue(batch, NewCodePointValue(m.errpc))
	if err != nil {
		return types.Hash{}, ErrAborted
	}
	cpKey, err := saveValue(batch, NewCodePointValue(m.currentCodePoint()))
	if err != nil {
		return types.Hash{}, ErrAborted
	}
	stackKey, err := saveValue(batch, m.stack.Value())
	if err != nil {
		return types.Hash{}, ErrAborted
	}
	auxKey, err := saveValue(batch, m.auxstack.Value())
	if err != nil {
		return types.Hash{}, ErrAborted
	}
	inboxChunkKeys := make([][]byte, len(m.inboxChunks))
	for i, chunk := range m.inboxChunks {
		key, err := saveValue(batch, chunk)
		if err != nil {
			return types.Hash{}, ErrAborted
		}
		inboxChunkKeys[i] = key[:]
	}
	pendingValueKeys := make([][]byte, len(m.pendingValues))
	for i, v := range m.pendingValues {
		key, err := saveValue(batch, v)
		if err != nil {
			return types.Hash{}, ErrAborted
		}
		pendingValueKeys[i] = key[:]
	}

	root := m.Hash()

	rec := machineStateRecord{
		StaticValKey:   staticKey[:],
		RegisterKey:    regKey[:],
		ErrpcKey:       errpcKey[:],
		CodePointKey:   cpKey[:],
		StackKey:       stackKey[:],
		AuxStackKey:    auxKey[:],
		InboxHeadKey:   m.inbox.Head().Bytes(),
		InboxCount:     m.inbox.Count(),
		PendingHeadKey: m.pendingInbox.Head().Bytes(),
		PendingCount:   m.pendingInbox.Count(),
		InboxChunkKeys:   inboxChunkKeys,
		PendingValueKeys: pendingValueKeys,
		Status:         uint8(m.status),
		BlockReason:    uint8(m.blockReason.Kind),
		InsufficientBalance: m.blockReason.InsufficientBalance,
	}
	for _, tt := range m.balance.TokenTypes() {
		rec.BalanceTokenTypes = append(rec.BalanceTokenTypes, tt.Bytes())
		rec.BalanceAmounts = append(rec.BalanceAmounts, m.balance.Get(tt).Bytes())
	}

	encoded, err := rlp.EncodeToBytes(&rec)
	if err != nil {
		return types.Hash{}, ErrAborted
	}
	if err := batch.Put(machineStateKey(root), encoded); err != nil {
		return types.Hash{}, ErrAborted
	}

	if err := batch.Write(); err != nil {
		return types.Hash{}, ErrAborted
	}
	return root, nil
}

// Restore reconstructs machine state from a previously-written checkpoint
// identified by root. The caller must supply the already-loaded code
// segment (spec.md §4.7: "code is not stored per-checkpoint"); pc is
// recovered from the saved code point's PC field. Restoration is
// all-or-nothing: any missing child fails with ErrCorrupt and m is left
// untouched.
func (m *Machine) Restore(store rawdb.Database, root types.Hash, code *CodeSegment) error {
	raw, err := store.Get(machineStateKey(root))
	if err != nil {
		return ErrNotFound
	}
	var rec machineStateRecord
	if err := rlp.DecodeBytes(raw, &rec); err != nil {
		return ErrCorrupt
	}

	var staticKey, regKey, errpcKey, cpKey, stackKey, auxKey types.Hash
	staticKey.SetBytes(rec.StaticValKey)
	regKey.SetBytes(rec.RegisterKey)
	errpcKey.SetBytes(rec.ErrpcKey)
	cpKey.SetBytes(rec.CodePointKey)
	stackKey.SetBytes(rec.StackKey)
	auxKey.SetBytes(rec.AuxStackKey)

	staticVal, err := loadValue(store, staticKey)
	if err != nil {
		return ErrCorrupt
	}
	register, err := loadValue(store, regKey)
	if err != nil {
		return ErrCorrupt
	}
	errpcVal, err := loadValue(store, errpcKey)
	if err != nil {
		return ErrCorrupt
	}
	errpc, err := errpcVal.AsCodePoint()
	if err != nil {
		return ErrCorrupt
	}
	cpVal, err := loadValue(store, cpKey)
	if err != nil {
		return ErrCorrupt
	}
	cp, err := cpVal.AsCodePoint()
	if err != nil {
		return ErrCorrupt
	}
	stackVal, err := loadValue(store, stackKey)
	if err != nil {
		return ErrCorrupt
	}
	auxVal, err := loadValue(store, auxKey)
	if err != nil {
		return ErrCorrupt
	}

	var inboxHead, pendingHead types.Hash
	inboxHead.SetBytes(rec.InboxHeadKey)
	pendingHead.SetBytes(rec.PendingHeadKey)

	inboxChunks := make([]Value, len(rec.InboxChunkKeys))
	for i, k := range rec.InboxChunkKeys {
		var key types.Hash
		key.SetBytes(k)
		chunk, err := loadValue(store, key)
		if err != nil {
			return ErrCorrupt
		}
		inboxChunks[i] = chunk
	}
	pendingValues := make([]Value, len(rec.PendingValueKeys))
	for i, k := range rec.PendingValueKeys {
		var key types.Hash
		key.SetBytes(k)
		v, err := loadValue(store, key)
		if err != nil {
			return ErrCorrupt
		}
		pendingValues[i] = v
	}

	balance := NewBalanceTracker()
	for i := range rec.BalanceTokenTypes {
		tt := new(big.Int).SetBytes(rec.BalanceTokenTypes[i])
		amt := new(big.Int).SetBytes(rec.BalanceAmounts[i])
		balance.Add(tt, amt)
	}

	m.code = code
	m.pc = cp.PC
	m.stack = StackFromValue(stackVal)
	m.auxstack = StackFromValue(auxVal)
	m.register = register
	m.staticVal = staticVal
	m.errpc = errpc
	m.inbox = MessageStack{count: rec.InboxCount, head: inboxHead}
	m.pendingInbox = MessageStack{count: rec.PendingCount, head: pendingHead}
	m.inboxChunks = inboxChunks
	m.pendingValues = pendingValues
	m.balance = balance
	m.status = Status(rec.Status)
	m.blockReason = BlockReason{Kind: BlockKind(rec.BlockReason), InsufficientBalance: rec.InsufficientBalance}
	if m.pool == nil {
		m.pool = NewValuePool()
	}
	if m.log == nil {
		m.log = log.Default().Module("avm")
	}
	if m.reg == nil {
		m.reg = metrics.DefaultRegistry
	}
	return nil
}
