package channel

import (
	"fmt"

	"github.com/mosaicnetworks/paychan/src/crypto/keys"
	"github.com/mosaicnetworks/paychan/src/peers"
)

// PeerResolver maps a live overlay identifier to the public key its owner
// announced.
type PeerResolver interface {
	ResolveOverlayID(overlayID string) (pubKeyHex string, ok bool)
}

type peerIDKind int

const (
	overlayPeerID peerIDKind = iota
	pubKeyPeerID
)

// PeerIdentifier is a counterparty reference as supplied by a caller: either
// an overlay identifier or a hex encoded public key.
type PeerIdentifier struct {
	kind  peerIDKind
	value string
}

// ParsePeerIdentifier classifies s. Public keys are canonicalized to their
// compressed form.
func ParsePeerIdentifier(s string) (PeerIdentifier, error) {
	if peers.IsOverlayID(s) {
		return PeerIdentifier{kind: overlayPeerID, value: s}, nil
	}

	pub, err := keys.CanonicalPublicKeyHex(s)
	if err != nil {
		return PeerIdentifier{}, fmt.Errorf("invalid peer identifier %q: %v", s, err)
	}

	return PeerIdentifier{kind: pubKeyPeerID, value: pub}, nil
}

func (p PeerIdentifier) String() string {
	return p.value
}

// Resolve returns the canonical public key behind the identifier.
func (p PeerIdentifier) Resolve(resolver PeerResolver) (string, error) {
	if p.kind == pubKeyPeerID {
		return p.value, nil
	}

	if resolver == nil {
		return "", fmt.Errorf("overlay identifier %s can't be resolved offline", p.value)
	}

	pub, ok := resolver.ResolveOverlayID(p.value)
	if !ok {
		return "", fmt.Errorf("overlay identifier %s is not a connected peer", p.value)
	}

	return keys.CanonicalPublicKeyHex(pub)
}
