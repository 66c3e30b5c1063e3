package channel

import (
	"time"
)

// Direction tells whether a payment left or entered this node.
type Direction string

const (
	// Outgoing payments decrease MyBalance.
	Outgoing Direction = "outgoing"
	// Incoming payments increase MyBalance.
	Incoming Direction = "incoming"
)

// Channel is the local view of a bilateral channel. Amounts are in satoshis.
type Channel struct {
	ID           string    `json:"id"`
	PeerID       string    `json:"peer_id"`
	FundingRef   string    `json:"funding_reference"`
	Capacity     uint64    `json:"capacity"`
	MyBalance    uint64    `json:"my_balance"`
	PeerBalance  uint64    `json:"peer_balance"`
	Sequence     uint64    `json:"sequence_number"`
	IsOpen       bool      `json:"is_open"`
	Initiator    bool      `json:"initiator"`
	JointAddress string    `json:"joint_address"`
	CreatedAt    time.Time `json:"created_at"`
}

// Marshal returns the canonical JSON encoding of the channel record.
func (c *Channel) Marshal() ([]byte, error) {
	return marshal(c)
}

// Unmarshal ...
func (c *Channel) Unmarshal(data []byte) error {
	return unmarshal(data, c)
}

func (c *Channel) copy() *Channel {
	res := *c
	return &res
}

// Commitment is the signed snapshot of a channel at one sequence number.
// Balances, Encoding and Signature never change once created. PeerSignature
// is attached once the counterparty's signature over the same Encoding is
// known.
type Commitment struct {
	ChannelID     string    `json:"channel_id"`
	Sequence      uint64    `json:"sequence_number"`
	MyBalance     uint64    `json:"my_balance"`
	PeerBalance   uint64    `json:"peer_balance"`
	Encoding      string    `json:"encoding"`
	Signature     string    `json:"signature"`
	PeerSignature string    `json:"peer_signature,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Marshal ...
func (c *Commitment) Marshal() ([]byte, error) {
	return marshal(c)
}

// Unmarshal ...
func (c *Commitment) Unmarshal(data []byte) error {
	return unmarshal(data, c)
}

// FullySigned reports whether both parties signed the snapshot.
func (c *Commitment) FullySigned() bool {
	return c.Signature != "" && c.PeerSignature != ""
}

func (c *Commitment) copy() *Commitment {
	res := *c
	return &res
}

// Payment records one transfer. Sequence is the channel sequence the transfer
// produced.
type Payment struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	Amount    uint64    `json:"amount"`
	Direction Direction `json:"direction"`
	Sequence  uint64    `json:"sequence_number"`
	Timestamp time.Time `json:"timestamp"`
	IsOffline bool      `json:"is_offline"`
}

// Marshal ...
func (p *Payment) Marshal() ([]byte, error) {
	return marshal(p)
}

// Unmarshal ...
func (p *Payment) Unmarshal(data []byte) error {
	return unmarshal(data, p)
}

func (p *Payment) copy() *Payment {
	res := *p
	return &res
}
