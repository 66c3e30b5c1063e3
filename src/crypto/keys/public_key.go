package keys

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec"
)

const (
	// CompressedPubKeyLen is the length of a compressed secp256k1 point.
	CompressedPubKeyLen = 33
	// UncompressedPubKeyLen is the length of an uncompressed secp256k1 point.
	UncompressedPubKeyLen = 65
)

// ParsePublicKey parses a compressed or uncompressed secp256k1 public key and
// checks that the point is on the curve.
func ParsePublicKey(pub []byte) (*ecdsa.PublicKey, error) {
	if len(pub) != CompressedPubKeyLen && len(pub) != UncompressedPubKeyLen {
		return nil, fmt.Errorf("invalid public key length %d", len(pub))
	}
	key, err := btcec.ParsePubKey(pub, btcec.S256())
	if err != nil {
		return nil, err
	}
	return key.ToECDSA(), nil
}

// ParsePublicKeyHex is ParsePublicKey on a hex string.
func ParsePublicKeyHex(pub string) (*ecdsa.PublicKey, error) {
	raw, err := hex.DecodeString(pub)
	if err != nil {
		return nil, err
	}
	return ParsePublicKey(raw)
}

// FromPublicKey outputs the point in compressed form.
func FromPublicKey(pub *ecdsa.PublicKey) []byte {
	if pub == nil || pub.X == nil || pub.Y == nil {
		return nil
	}
	return (*btcec.PublicKey)(pub).SerializeCompressed()
}

// PublicKeyHex returns the hexadecimal reprentation of the compressed form of
// the public key
func PublicKeyHex(pub *ecdsa.PublicKey) string {
	return hex.EncodeToString(FromPublicKey(pub))
}

// CanonicalPublicKeyHex parses a hex public key in either form and returns the
// hex of its compressed form.
func CanonicalPublicKeyHex(pub string) (string, error) {
	key, err := ParsePublicKeyHex(pub)
	if err != nil {
		return "", err
	}
	return PublicKeyHex(key), nil
}
