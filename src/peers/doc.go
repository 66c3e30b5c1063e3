// Package peers tracks the members of the gossip overlay.
//
// Members are identified by a transient overlay identifier, generated per
// process, and announce the public key of the node behind them. The PeerTable
// is rebuilt from connect and disconnect events and is never persisted. The
// only file on disk is the optional bootstrap list, peers.json, which an
// operator edits by hand.
package peers
