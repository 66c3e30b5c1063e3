package channel

// Update is a balance-affecting state transition: the new channel record, the
// commitment it produced and the payment that caused it.
type Update struct {
	Channel    *Channel
	Commitment *Commitment
	Payment    *Payment
}

// Store is the durable record store behind the Ledger. Implementations copy
// what they are given; callers may reuse their values afterwards.
type Store interface {
	// SaveChannel inserts a new channel record. It fails with KeyAlreadyExists
	// if the ID is taken.
	SaveChannel(*Channel) error
	// UpdateChannel overwrites an existing channel record.
	UpdateChannel(*Channel) error
	GetChannel(string) (*Channel, error)
	// AllChannels returns every channel ever saved, closed ones included.
	AllChannels() ([]*Channel, error)
	// ChannelCommitments returns the commitments of a channel ordered by
	// sequence, with their countersignatures attached.
	ChannelCommitments(string) ([]*Commitment, error)
	// SetCounterSignature attaches the counterparty's signature to the
	// commitment at the given sequence.
	SetCounterSignature(channelID string, sequence uint64, sig string) error
	// ChannelPayments returns the payments of a channel ordered by sequence.
	ChannelPayments(string) ([]*Payment, error)
	// CommitUpdate writes the three records of an Update atomically. It
	// fails with KeyAlreadyExists if a commitment already exists at that
	// sequence.
	CommitUpdate(*Update) error
	Close() error
	StorePath() string
}
