// Package identity holds the long-term key pair of a node and everything
// derived from it: the node identifier, the settlement receiving address and
// the 2-of-2 joint address of a channel.
//
// Data is hashed with SHA-256 and signed with deterministic secp256k1 ECDSA.
// Signatures are hex encoded 64-byte compact r||s values. Verification never
// fails loudly: malformed input simply does not verify.
package identity
