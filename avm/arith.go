package avm

import "math/big"

// twoPow256 is 2^256, the modulus of every AVM integer operation.
var twoPow256 = new(big.Int).Lsh(big.NewInt(1), 256)

// signBit is 2^255, used to detect the sign of a 256-bit two's-complement
// encoded value.
var signBit = new(big.Int).Lsh(big.NewInt(1), 255)

// mod256 reduces n into the canonical unsigned range [0, 2^256).
func mod256(n *big.Int) *big.Int {
	m := new(big.Int).Mod(n, twoPow256)
	if m.Sign() < 0 {
		m.Add(m, twoPow256)
	}
	return m
}

// toSigned interprets an unsigned 256-bit word as two's-complement signed.
func toSigned(n *big.Int) *big.Int {
	if n.Cmp(signBit) >= 0 {
		return new(big.Int).Sub(n, twoPow256)
	}
	return new(big.Int).Set(n)
}

// fromSigned re-encodes a signed big.Int back into unsigned 256-bit form.
func fromSigned(n *big.Int) *big.Int {
	return mod256(n)
}

// addMod256, subMod256, mulMod256 implement the unsigned modular
// arithmetic used by ADD/SUB/MUL (spec.md §4.5: "modular except SDIV/SMOD
// which are two's-complement").
func addMod256(a, b *big.Int) *big.Int { return mod256(new(big.Int).Add(a, b)) }
func subMod256(a, b *big.Int) *big.Int { return mod256(new(big.Int).Sub(a, b)) }
func mulMod256(a, b *big.Int) *big.Int { return mod256(new(big.Int).Mul(a, b)) }

// divMod256 computes unsigned a/b, or zero if b is zero (EVM-style
// zero-on-divide-by-zero convention, since DIV has no error path of its
// own in the dispatch table).
func divMod256(a, b *big.Int) *big.Int {
	if b.Sign() == 0 {
		return new(big.Int)
	}
	return new(big.Int).Div(a, b)
}

func modMod256(a, b *big.Int) *big.Int {
	if b.Sign() == 0 {
		return new(big.Int)
	}
	return new(big.Int).Mod(a, b)
}

// sdiv256, smod256 implement two's-complement signed division/modulus.
func sdiv256(a, b *big.Int) *big.Int {
	sa, sb := toSigned(a), toSigned(b)
	if sb.Sign() == 0 {
		return new(big.Int)
	}
	q := new(big.Int).Quo(sa, sb)
	return fromSigned(q)
}

func smod256(a, b *big.Int) *big.Int {
	sa, sb := toSigned(a), toSigned(b)
	if sb.Sign() == 0 {
		return new(big.Int)
	}
	r := new(big.Int).Rem(sa, sb)
	return fromSigned(r)
}

func addModMod256(a, b, m *big.Int) *big.Int {
	if m.Sign() == 0 {
		return new(big.Int)
	}
	sum := new(big.Int).Add(a, b)
	return mod256(new(big.Int).Mod(sum, m))
}

func mulModMod256(a, b, m *big.Int) *big.Int {
	if m.Sign() == 0 {
		return new(big.Int)
	}
	prod := new(big.Int).Mul(a, b)
	return mod256(new(big.Int).Mod(prod, m))
}

func expMod256(a, b *big.Int) *big.Int {
	return new(big.Int).Exp(a, b, twoPow256)
}

// byteAt returns the i-th byte (0 = most significant) of the 256-bit
// big-endian encoding of n, or zero if i is out of range.
func byteAt(i, n *big.Int) *big.Int {
	if i.Sign() < 0 || i.Cmp(big.NewInt(32)) >= 0 {
		return new(big.Int)
	}
	var buf [32]byte
	n.FillBytes(buf[:])
	return new(big.Int).SetInt64(int64(buf[i.Int64()]))
}

// signExtend sign-extends n, treating it as a signed integer whose
// highest set byte is at index k (0-indexed from the least significant
// byte), per the EVM-style SIGNEXTEND semantics this opcode reuses.
func signExtend(k, n *big.Int) *big.Int {
	if k.Cmp(big.NewInt(31)) >= 0 {
		return mod256(n)
	}
	bit := uint(k.Uint64()*8 + 7)
	val := mod256(n)
	mask := new(big.Int).Lsh(big.NewInt(1), bit)
	mask.Sub(mask, big.NewInt(1))
	if val.Bit(int(bit)) > 0 {
		val.Or(val, new(big.Int).Not(mask))
	} else {
		val.And(val, mask)
	}
	return mod256(val)
}

func boolInt(b bool) Value {
	if b {
		return NewIntU64(1)
	}
	return NewIntU64(0)
}
