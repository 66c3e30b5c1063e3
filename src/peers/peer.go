package peers

import (
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// OverlayIDPrefix tags overlay identifiers so they can't be mistaken for hex
// public keys.
const OverlayIDPrefix = "ov-"

// NewOverlayID returns a fresh overlay identifier.
func NewOverlayID() string {
	return OverlayIDPrefix + strings.Replace(uuid.New().String(), "-", "", -1)
}

// IsOverlayID reports whether id carries the overlay prefix.
func IsOverlayID(id string) bool {
	return strings.HasPrefix(id, OverlayIDPrefix) && len(id) > len(OverlayIDPrefix)
}

// Peer is a member of the overlay.
type Peer struct {
	OverlayID string `json:"OverlayID"`
	NetAddr   string `json:"NetAddr"`
	PubKeyHex string `json:"PubKeyHex"`
	Moniker   string `json:"Moniker,omitempty"`
}

// NewPeer ...
func NewPeer(overlayID, pubKeyHex, netAddr, moniker string) *Peer {
	return &Peer{
		OverlayID: overlayID,
		NetAddr:   netAddr,
		PubKeyHex: pubKeyHex,
		Moniker:   moniker,
	}
}

// PubKeyBytes ...
func (p *Peer) PubKeyBytes() ([]byte, error) {
	return hex.DecodeString(p.PubKeyHex)
}

// ExcludePeer is used to exclude a single peer from a list of peers.
func ExcludePeer(peers []*Peer, overlayID string) (int, []*Peer) {
	index := -1
	otherPeers := make([]*Peer, 0, len(peers))
	for i, p := range peers {
		if p.OverlayID != overlayID {
			otherPeers = append(otherPeers, p)
		} else {
			index = i
		}
	}
	return index, otherPeers
}
