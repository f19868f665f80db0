package avm

import "github.com/offchainlabs/arb-avm-go/core/types"

// MessageStack is a hash-linked log of messages, used for both the inbox
// (incoming, to be consumed by INBOX) and the outbox (outgoing, produced by
// SEND/NBSEND). It tracks a running count and a chain hash that commits to
// every message appended so far, in order (spec.md §4.2 "MessageStack").
type MessageStack struct {
	count uint64
	head  types.Hash
}

// NewMessageStack returns an empty message stack.
func NewMessageStack() MessageStack {
	return MessageStack{}
}

// Count returns the number of messages appended.
func (ms MessageStack) Count() uint64 { return ms.count }

// Head returns the current chain hash, the zero hash for an empty stack.
func (ms MessageStack) Head() types.Hash { return ms.head }

// Append adds msg to the end of the log, advancing the chain hash and
// count.
func (ms MessageStack) Append(msg Message) MessageStack {
	return MessageStack{
		count: ms.count + 1,
		head:  chainHash(msg.Hash(), ms.head),
	}
}

// Merge bulk-appends every message in msgs, in order. Used by
// Machine.SendOffchainMessages to add one chunk of messages to the inbox.
func (ms MessageStack) Merge(msgs []Message) MessageStack {
	for _, m := range msgs {
		ms = ms.Append(m)
	}
	return ms
}

// Clear resets the stack to empty, used when the pending inbox is fully
// drained into the main inbox.
func (ms MessageStack) Clear() MessageStack {
	return MessageStack{}
}
