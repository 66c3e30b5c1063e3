// Package keys implements the public key cryptography of a payment channel
// node.
//
// A node owns a long-term secp256k1 key-pair. The private key signs every
// commitment the node produces; the public key identifies the node to its
// channel counterparties and derives its settlement addresses.
//
// Public keys travel in their 33-byte compressed form. Signatures are
// deterministic (RFC 6979) and travel as 64-byte compact r||s values.
package keys
