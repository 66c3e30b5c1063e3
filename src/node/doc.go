// Package node runs a payment channel node.
//
// A Node owns a channel Ledger and a gossip Overlay and connects them through
// a single dispatcher routine. The Ledger never talks to the network: every
// change it makes is handed to the Node as an Event through a bounded queue,
// and the dispatcher turns the events the counterparty needs into signed
// envelopes broadcast on the overlay:
//
//	ChannelOpened    -> channel_open
//	PaymentSent      -> payment
//	PaymentReceived  -> commitment_signed (only for remote payments)
//	ChannelClosed    -> channel_close (only for local closes)
//
// In the other direction, every envelope delivered by the overlay is verified
// against its sender before its message is applied to the Ledger through
// AcceptChannel, ApplyRemotePayment, ApplyRemoteClose or
// ApplyCountersignature. Those methods check that the sender is the channel
// counterparty and, for payments, that the commitment extends the current
// sequence and carries a valid signature. Messages about channels the node is
// not part of are ignored; the others are applied or rejected, and never
// retried.
//
// A sequence conflict, caused by both parties paying each other while they
// were disconnected, is detected and reported but not resolved.
package node
