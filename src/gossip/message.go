package gossip

import (
	"encoding/json"
	"fmt"
)

// Topic is the single publish/subscribe topic of the overlay.
const Topic = "paychan-offline"

// MessageType tags the wire messages.
type MessageType string

// Wire message types
const (
	ChannelOpenType      MessageType = "channel_open"
	ChannelCloseType     MessageType = "channel_close"
	PaymentType          MessageType = "payment"
	CommitmentSignedType MessageType = "commitment_signed"
)

// Body is implemented by every wire message.
type Body interface {
	Type() MessageType
	Channel() string
}

// ChannelOpen announces a new channel to its Counterparty, the hex public key
// of the node the opener opened it with. InitialBalance is the opener's side.
type ChannelOpen struct {
	ChannelID        string `json:"channel_id"`
	FundingReference string `json:"funding_reference"`
	Capacity         uint64 `json:"capacity"`
	InitialBalance   uint64 `json:"initial_balance"`
	Counterparty     string `json:"counterparty"`
}

// Type implements Body.
func (m *ChannelOpen) Type() MessageType { return ChannelOpenType }

// Channel implements Body.
func (m *ChannelOpen) Channel() string { return m.ChannelID }

// ChannelClose announces a close. FinalBalanceA is the sender's balance.
type ChannelClose struct {
	ChannelID     string `json:"channel_id"`
	FinalBalanceA uint64 `json:"final_balance_a"`
	FinalBalanceB uint64 `json:"final_balance_b"`
}

// Type implements Body.
func (m *ChannelClose) Type() MessageType { return ChannelCloseType }

// Channel implements Body.
func (m *ChannelClose) Channel() string { return m.ChannelID }

// Payment carries a transfer together with the sender's signature over the
// commitment encoding of the resulting state.
type Payment struct {
	ChannelID          string `json:"channel_id"`
	Amount             uint64 `json:"amount"`
	Sequence           uint64 `json:"sequence"`
	CommitmentEncoding string `json:"commitment_encoding"`
	Signature          string `json:"signature"`
}

// Type implements Body.
func (m *Payment) Type() MessageType { return PaymentType }

// Channel implements Body.
func (m *Payment) Channel() string { return m.ChannelID }

// CommitmentSigned acknowledges a payment with the receiver's own signature
// over the same commitment encoding.
type CommitmentSigned struct {
	ChannelID string `json:"channel_id"`
	Signature string `json:"signature"`
	Sequence  uint64 `json:"sequence"`
}

// Type implements Body.
func (m *CommitmentSigned) Type() MessageType { return CommitmentSignedType }

// Channel implements Body.
func (m *CommitmentSigned) Channel() string { return m.ChannelID }

// Message is the tagged union on the wire.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// EncodeMessage wraps a body in its tagged union.
func EncodeMessage(b Body) ([]byte, error) {
	payload, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}

	return json.Marshal(&Message{
		Type:    b.Type(),
		Payload: payload,
	})
}

// DecodeMessage parses a tagged union into its concrete body.
func DecodeMessage(data []byte) (Body, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	var b Body
	switch m.Type {
	case ChannelOpenType:
		b = new(ChannelOpen)
	case ChannelCloseType:
		b = new(ChannelClose)
	case PaymentType:
		b = new(Payment)
	case CommitmentSignedType:
		b = new(CommitmentSigned)
	default:
		return nil, fmt.Errorf("unknown message type %q", m.Type)
	}

	if len(m.Payload) == 0 {
		return nil, fmt.Errorf("empty %s payload", m.Type)
	}

	if err := json.Unmarshal(m.Payload, b); err != nil {
		return nil, err
	}

	return b, nil
}
