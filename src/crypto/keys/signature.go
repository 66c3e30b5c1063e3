package keys

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec"
)

// SignatureLen is the length of a compact r||s signature.
const SignatureLen = 64

// Sign produces a deterministic (RFC 6979) signature of the hash. The s value
// is normalized to the lower half of the curve order.
func Sign(priv *ecdsa.PrivateKey, hash []byte) (r, s *big.Int, err error) {
	if priv == nil || priv.D == nil {
		return nil, nil, fmt.Errorf("nil private key")
	}
	sig, err := (*btcec.PrivateKey)(priv).Sign(hash)
	if err != nil {
		return nil, nil, err
	}
	return sig.R, sig.S, nil
}

// Verify verifies that a signature represented by r and s values, is a valid
// signature of the hash by an owner of the private key associated with the
// provided public key.
func Verify(pub *ecdsa.PublicKey, hash []byte, r, s *big.Int) bool {
	if pub == nil || pub.X == nil || r == nil || s == nil {
		return false
	}
	if r.Sign() <= 0 || s.Sign() <= 0 || r.Cmp(curveN) >= 0 || s.Cmp(curveN) >= 0 {
		return false
	}
	sig := &btcec.Signature{R: r, S: s}
	return sig.Verify(hash, (*btcec.PublicKey)(pub))
}

// IsLowS reports whether s is in the lower half of the curve order.
func IsLowS(s *big.Int) bool {
	return s.Cmp(curveHalfN) <= 0
}

// EncodeSignature returns the hex encoding of the compact r||s form.
func EncodeSignature(r, s *big.Int) string {
	buf := make([]byte, SignatureLen)
	r.FillBytes(buf[:32])
	s.FillBytes(buf[32:])
	return hex.EncodeToString(buf)
}

// DecodeSignature parses a string representation of a signature as produced by
// EncodeSignature.
func DecodeSignature(sig string) (r, s *big.Int, err error) {
	raw, err := hex.DecodeString(sig)
	if err != nil {
		return nil, nil, err
	}
	if len(raw) != SignatureLen {
		return nil, nil, fmt.Errorf("wrong signature length: got %d, want %d", len(raw), SignatureLen)
	}
	r = new(big.Int).SetBytes(raw[:32])
	s = new(big.Int).SetBytes(raw[32:])
	return r, s, nil
}
