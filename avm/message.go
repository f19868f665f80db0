package avm

import (
	"math/big"

	"github.com/offchainlabs/arb-avm-go/core/types"
	"github.com/offchainlabs/arb-avm-go/crypto"
)

// Message is one entry in the inbox or outbox log: a cross-chain transfer
// envelope carrying an optional token payment alongside an arbitrary
// payload value (spec.md §4.2 "Message").
type Message struct {
	Sender      types.Address
	Destination types.Address
	TokenType   *big.Int // 256-bit token type identifier
	Currency    *big.Int // 256-bit amount, zero for a non-paying message
	Payload     Value
}

// NewMessage builds a Message, defaulting nil TokenType/Currency to zero.
func NewMessage(sender, destination types.Address, tokenType, currency *big.Int, payload Value) Message {
	if tokenType == nil {
		tokenType = new(big.Int)
	}
	if currency == nil {
		currency = new(big.Int)
	}
	return Message{
		Sender:      sender,
		Destination: destination,
		TokenType:   new(big.Int).Set(tokenType),
		Currency:    new(big.Int).Set(currency),
		Payload:     payload,
	}
}

// AsValue converts the message into the 5-tuple value representation used
// when a message is pushed onto the data stack by the INBOX opcode or
// assembled for outbound SEND/NBSEND: (sender, destination, token_type,
// currency, payload).
func (m Message) AsValue() Value {
	t, _ := NewTuple([]Value{
		NewInt(new(big.Int).SetBytes(m.Sender.Bytes())),
		NewInt(new(big.Int).SetBytes(m.Destination.Bytes())),
		NewInt(m.TokenType),
		NewInt(m.Currency),
		m.Payload,
	})
	return t
}

// Hash returns the structural commitment of the message, defined as the
// hash of its tuple-value representation so that a message's hash is
// identical whether computed directly or recovered from the message
// chain (messagestack.go).
func (m Message) Hash() types.Hash {
	return m.AsValue().Hash()
}

// messageChainTag distinguishes a message-chain cons cell's preimage from
// an ordinary tuple, mirroring how the original machinestate keeps the
// inbox's hash chain independent of the general value-hashing rules (the
// chain commits to "message hash || previous chain hash", not to a tuple
// of the message's own fields).
var messageChainTag = []byte("avm-message-chain")

// bigToAddress truncates a 256-bit integer value to its low 20 bytes,
// used when a message's sender/destination fields are extracted back out
// of their on-stack integer representation.
func bigToAddress(n *big.Int) types.Address {
	return types.BytesToAddress(n.Bytes())
}

// chainHash computes Keccak256(tag || messageHash || prevChainHash), the
// link formula used by both MessageStack.Append and the pending-inbox
// bookkeeping in machine.go.
func chainHash(messageHash, prevChainHash types.Hash) types.Hash {
	return crypto.Keccak256Hash(messageChainTag, messageHash[:], prevChainHash[:])
}
