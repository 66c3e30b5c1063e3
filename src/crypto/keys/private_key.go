package keys

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcec"
)

// PrivateKeyLen is the length of a serialized secp256k1 scalar.
const PrivateKeyLen = 32

var (
	curveN     = btcec.S256().N
	curveHalfN = new(big.Int).Rsh(curveN, 1)
)

//GenerateECDSAKey creates a new secp256k1 key-pair.
func GenerateECDSAKey() (*ecdsa.PrivateKey, error) {
	priv, err := btcec.NewPrivateKey(btcec.S256())
	if err != nil {
		return nil, err
	}
	return priv.ToECDSA(), nil
}

//DumpPrivateKey returns the 32-byte big-endian scalar of the key.
func DumpPrivateKey(priv *ecdsa.PrivateKey) []byte {
	if priv == nil {
		return nil
	}
	return (*btcec.PrivateKey)(priv).Serialize()
}

//ParsePrivateKey rebuilds a key-pair from its 32-byte scalar. Zero and values
//outside the curve order are rejected.
func ParsePrivateKey(d []byte) (*ecdsa.PrivateKey, error) {
	if len(d) != PrivateKeyLen {
		return nil, fmt.Errorf("invalid private key length: got %d, want %d", len(d), PrivateKeyLen)
	}

	k := new(big.Int).SetBytes(d)
	if k.Sign() == 0 || k.Cmp(curveN) >= 0 {
		return nil, fmt.Errorf("private key out of range")
	}

	priv, _ := btcec.PrivKeyFromBytes(btcec.S256(), d)
	return priv.ToECDSA(), nil
}

//ParsePrivateKeyHex is ParsePrivateKey on the hex dump of the scalar.
func ParsePrivateKeyHex(d string) (*ecdsa.PrivateKey, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(d))
	if err != nil {
		return nil, err
	}
	return ParsePrivateKey(raw)
}

//PrivateKeyHex returns the hex dump of the scalar.
func PrivateKeyHex(key *ecdsa.PrivateKey) string {
	return hex.EncodeToString(DumpPrivateKey(key))
}
