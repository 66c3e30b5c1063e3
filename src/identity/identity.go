package identity

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"

	pcrypto "github.com/mosaicnetworks/paychan/src/crypto"
	"github.com/mosaicnetworks/paychan/src/crypto/keys"
)

// Identity is the immutable key pair of a node.
type Identity struct {
	key    *ecdsa.PrivateKey
	pubKey []byte
	nodeID string
}

// Generate creates a fresh key pair. It only fails when the system entropy
// source fails.
func Generate() (*Identity, error) {
	key, err := keys.GenerateECDSAKey()
	if err != nil {
		return nil, fmt.Errorf("generating key: %v", err)
	}
	return New(key)
}

// New wraps an existing private key.
func New(key *ecdsa.PrivateKey) (*Identity, error) {
	if key == nil || key.D == nil {
		return nil, fmt.Errorf("nil private key")
	}

	pub := keys.FromPublicKey(&key.PublicKey)
	if pub == nil {
		return nil, fmt.Errorf("invalid public key")
	}

	return &Identity{
		key:    key,
		pubKey: pub,
		nodeID: NodeID(pub),
	}, nil
}

// NodeID returns the hex SHA-256 of a compressed public key.
func NodeID(pubKey []byte) string {
	return pcrypto.SHA256Hex(pubKey)
}

// NodeID returns the node identifier.
func (i *Identity) NodeID() string {
	return i.nodeID
}

// PublicKey returns a copy of the compressed public key.
func (i *Identity) PublicKey() []byte {
	res := make([]byte, len(i.pubKey))
	copy(res, i.pubKey)
	return res
}

// PublicKeyHex returns the hex encoded compressed public key.
func (i *Identity) PublicKeyHex() string {
	return hex.EncodeToString(i.pubKey)
}

// PrivateKey returns the underlying key. It is used to persist the identity.
func (i *Identity) PrivateKey() *ecdsa.PrivateKey {
	return i.key
}

// SettlementAddress returns the single-key witness address at which the node
// receives settlement funds.
func (i *Identity) SettlementAddress() string {
	addr, err := settlementAddress(i.pubKey)
	if err != nil {
		// the public key came out of a valid private key
		panic(err)
	}
	return addr
}

// Sign hashes data with SHA-256 and signs the digest.
func (i *Identity) Sign(data []byte) (string, error) {
	r, s, err := keys.Sign(i.key, pcrypto.SHA256(data))
	if err != nil {
		return "", fmt.Errorf("signing: %v", err)
	}
	return keys.EncodeSignature(r, s), nil
}

// DeriveJointAddress returns the 2-of-2 multisig witness address shared with
// the owner of peerPubKey.
func (i *Identity) DeriveJointAddress(peerPubKey []byte) (string, error) {
	return JointAddress(i.pubKey, peerPubKey)
}

// Verify reports whether sig is a valid signature of data by the holder of the
// hex encoded public key pubKeyHex. It returns false on any malformed input.
func Verify(data []byte, sig string, pubKeyHex string) bool {
	pub, err := keys.ParsePublicKeyHex(pubKeyHex)
	if err != nil {
		return false
	}

	r, s, err := keys.DecodeSignature(sig)
	if err != nil {
		return false
	}

	return keys.Verify(pub, pcrypto.SHA256(data), r, s)
}
