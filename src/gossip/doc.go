// Package gossip keeps the channel ledgers of peers in sync over a best-effort
// overlay network.
//
// The Overlay owns the membership table and a single publish/subscribe topic.
// Ledger events are sealed into signed Envelopes and handed to Broadcast,
// which only enqueues them; a single sender routine fans them out to every
// member in order. Inbound publishes are de-duplicated by content hash, delivered on
// the Inbound channel and relayed to the other members, so a message reaches
// every node connected to the overlay, directly or not. Delivery is
// at-most-once and nothing is retried.
//
// Overlay members talk to each other over a Transport. There are two
// implementations:
//
// - Inmem: in-memory transport used only for testing
//
// - TCP: one-byte command type followed by a JSON encoded request, over pooled
// TCP connections
//
// Members find each other through the bootstrap addresses of peers.json and,
// on a local network, through mDNS.
package gossip
