package avm

import "math/big"

// maxCurrency is the ceiling a single token type's balance may never
// reach or exceed: 2^256. BalanceTracker treats crossing it as an
// overflow rather than wrapping, per the Open Question decision recorded
// in DESIGN.md ("overflow in BalanceTracker add").
var maxCurrency = func() *big.Int {
	one := big.NewInt(1)
	return new(big.Int).Lsh(one, 256)
}()

// BalanceTracker holds the machine's per-token-type currency balances
// (spec.md §4.2 "BalanceTracker"), keyed by the string form of the
// 256-bit token type identifier since *big.Int is not a valid map key.
type BalanceTracker struct {
	balances map[string]*big.Int
}

// NewBalanceTracker returns an empty tracker.
func NewBalanceTracker() *BalanceTracker {
	return &BalanceTracker{balances: make(map[string]*big.Int)}
}

// Get returns the current balance for tokenType, zero if never touched.
func (b *BalanceTracker) Get(tokenType *big.Int) *big.Int {
	if cur, ok := b.balances[tokenType.String()]; ok {
		return new(big.Int).Set(cur)
	}
	return new(big.Int)
}

// Add credits amount of tokenType to the tracker. It reports ok=false and
// leaves the tracker unmodified if the resulting balance would reach or
// exceed 2^256; the caller (Machine.SendOnchainMessage) surfaces this as
// ErrBalanceOverflow. Add never silently saturates or wraps.
func (b *BalanceTracker) Add(tokenType, amount *big.Int) (ok bool) {
	cur := b.Get(tokenType)
	next := new(big.Int).Add(cur, amount)
	if next.Cmp(maxCurrency) >= 0 {
		return false
	}
	b.balances[tokenType.String()] = next
	return true
}

// Sub debits amount of tokenType from the tracker. It reports ok=false and
// leaves the tracker unmodified if the balance would go negative.
func (b *BalanceTracker) Sub(tokenType, amount *big.Int) (ok bool) {
	cur := b.Get(tokenType)
	if cur.Cmp(amount) < 0 {
		return false
	}
	b.balances[tokenType.String()] = new(big.Int).Sub(cur, amount)
	return true
}

// Clone returns a deep copy, used when snapshotting machine state for
// checkpointing or for speculative execution.
func (b *BalanceTracker) Clone() *BalanceTracker {
	cp := NewBalanceTracker()
	for k, v := range b.balances {
		cp.balances[k] = new(big.Int).Set(v)
	}
	return cp
}

// TokenTypes returns every token type with a recorded balance, in
// unspecified order; a token type debited back to zero by Sub is still
// included. Used by checkpoint.go to serialize the full set.
func (b *BalanceTracker) TokenTypes() []*big.Int {
	out := make([]*big.Int, 0, len(b.balances))
	for k := range b.balances {
		n, ok := new(big.Int).SetString(k, 10)
		if !ok {
			continue
		}
		out = append(out, n)
	}
	return out
}
