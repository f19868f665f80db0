package avm

import (
	"sync"

	"github.com/offchainlabs/arb-avm-go/core/types"
)

// ValuePool interns tuple values by content hash so that structurally
// identical stack cells and sub-tuples share a single backing allocation.
// This has no effect on hash semantics (spec.md §4.1/Design Notes: pooling
// is a performance detail, not part of the value model) -- Intern(v) always
// returns a Value equal to v, just possibly backed by previously-allocated
// tuple storage. Modeled on core/rawdb's in-memory map+mutex store, applied
// to Values instead of raw bytes.
type ValuePool struct {
	mu    sync.RWMutex
	byKey map[types.Hash]Value
}

// NewValuePool creates an empty pool.
func NewValuePool() *ValuePool {
	return &ValuePool{byKey: make(map[types.Hash]Value)}
}

// Intern returns the pooled representative of v, recursively interning its
// children first so structurally shared sub-tuples collapse to one
// allocation regardless of where in the tree they first appeared.
func (p *ValuePool) Intern(v Value) Value {
	if v.kind != KindTuple || len(v.tuple) == 0 {
		return v
	}

	interned := make([]Value, len(v.tuple))
	for i, child := range v.tuple {
		interned[i] = p.Intern(child)
	}
	canon, _ := NewTuple(interned)
	key := canon.Hash()

	p.mu.RLock()
	if existing, ok := p.byKey[key]; ok {
		p.mu.RUnlock()
		return existing
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.byKey[key]; ok {
		return existing
	}
	p.byKey[key] = canon
	return canon
}

// Len returns the number of distinct tuple values currently pooled.
func (p *ValuePool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byKey)
}
