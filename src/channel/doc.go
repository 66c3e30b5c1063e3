// Package channel implements the ledger of bilateral payment channels.
//
// The Ledger owns the authoritative in-memory table of channels and the
// commitment history of each of them. Every balance-affecting operation
// follows the same order: compute the next state on a copy, sign its canonical
// commitment encoding, persist channel, commitment and payment in one store
// transaction, and only then publish the new state in memory and to the
// EventSink. A failed step leaves the ledger untouched.
//
// Invariants held for every channel:
//
//	MyBalance + PeerBalance == Capacity
//	Sequence increases by exactly one per balance-affecting event
//	there is exactly one Commitment per Sequence
//	a closed channel never changes balance again
//
// Updates coming from the counterparty enter through the ApplyRemote* and
// AcceptChannel methods, which verify the sender and the signatures before
// anything is applied.
package channel
