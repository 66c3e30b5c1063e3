package node

import (
	"github.com/mosaicnetworks/paychan/src/channel"
	"github.com/mosaicnetworks/paychan/src/peers"
)

// Info describes the node to API clients.
type Info struct {
	NodeID            string        `json:"node_id"`
	PublicKey         string        `json:"public_key"`
	SettlementAddress string        `json:"settlement_address"`
	OverlayID         string        `json:"overlay_id"`
	Moniker           string        `json:"moniker,omitempty"`
	State             string        `json:"state"`
	Peers             []*peers.Peer `json:"peers"`
}

// Info ...
func (n *Node) Info() Info {
	self := n.overlay.Self()

	return Info{
		NodeID:            n.id.NodeID(),
		PublicKey:         n.id.PublicKeyHex(),
		SettlementAddress: n.id.SettlementAddress(),
		OverlayID:         self.OverlayID,
		Moniker:           self.Moniker,
		State:             n.getState().String(),
		Peers:             n.overlay.Peers(),
	}
}

// Channels ...
func (n *Node) Channels() []*channel.Channel {
	return n.ledger.Channels()
}

// OpenChannel opens a channel with peerID, an overlay identifier or a hex
// public key.
func (n *Node) OpenChannel(peerID string, capacity uint64) (*channel.Channel, error) {
	return n.ledger.Open(peerID, capacity)
}

// SendPayment ...
func (n *Node) SendPayment(channelID string, amount uint64) (*channel.Payment, error) {
	return n.ledger.Pay(channelID, amount)
}

// Payments ...
func (n *Node) Payments(channelID string) ([]*channel.Payment, error) {
	return n.ledger.Payments(channelID)
}

// CloseChannel ...
func (n *Node) CloseChannel(channelID string) error {
	return n.ledger.Close(channelID)
}
