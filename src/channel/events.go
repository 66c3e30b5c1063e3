package channel

// EventType ...
type EventType uint32

const (
	// ChannelOpened is emitted when this node opens a channel.
	ChannelOpened EventType = iota
	// ChannelAccepted is emitted when the counterparty opened a channel with
	// this node and it was mirrored locally.
	ChannelAccepted
	// PaymentSent ...
	PaymentSent
	// PaymentReceived ...
	PaymentReceived
	// ChannelClosed ...
	ChannelClosed
	// CommitmentCountersigned is emitted when the counterparty's signature
	// over one of our commitments was verified and stored.
	CommitmentCountersigned
	// SequenceConflictDetected is emitted when a remote payment did not
	// extend the current sequence. Nothing was applied.
	SequenceConflictDetected
)

func (t EventType) String() string {
	switch t {
	case ChannelOpened:
		return "ChannelOpened"
	case ChannelAccepted:
		return "ChannelAccepted"
	case PaymentSent:
		return "PaymentSent"
	case PaymentReceived:
		return "PaymentReceived"
	case ChannelClosed:
		return "ChannelClosed"
	case CommitmentCountersigned:
		return "CommitmentCountersigned"
	case SequenceConflictDetected:
		return "SequenceConflictDetected"
	default:
		return "Unknown"
	}
}

// Event describes a ledger change. Channel is the state after the change.
// Remote is true when the change was requested by the counterparty.
type Event struct {
	Type       EventType
	Channel    Channel
	Payment    *Payment
	Commitment *Commitment
	Remote     bool
}

// EventSink receives ledger events. Enqueue is called with the ledger lock
// held and must not block.
type EventSink interface {
	Enqueue(Event)
}
