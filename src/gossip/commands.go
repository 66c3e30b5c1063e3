package gossip

import (
	"github.com/mosaicnetworks/paychan/src/peers"
)

// HelloRequest announces a member to another. It is the connect event of the
// membership table on both sides.
type HelloRequest struct {
	Peer peers.Peer
}

// HelloResponse carries the responder's own announcement.
type HelloResponse struct {
	Peer peers.Peer
}

// PublishRequest carries one sealed Envelope on the overlay topic.
type PublishRequest struct {
	FromID string
	Topic  string
	Data   []byte
}

// PublishResponse ...
type PublishResponse struct {
	FromID string
}

// ByeRequest tells a member that the sender is leaving.
type ByeRequest struct {
	FromID string
}

// ByeResponse ...
type ByeResponse struct {
	FromID string
}
