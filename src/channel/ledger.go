package channel

import (
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// FundingRefPrefix prefixes the opaque funding reference of new channels.
const FundingRefPrefix = "funding_"

// Signer is the part of a node identity the Ledger needs.
type Signer interface {
	PublicKeyHex() string
	Sign(data []byte) (string, error)
	DeriveJointAddress(peerPubKey []byte) (string, error)
}

// Ledger is the authoritative table of channels and commitments. A single
// RWMutex guards it: reads are shared, every mutation holds the lock through
// validation, signing and persistence.
type Ledger struct {
	mu sync.RWMutex

	signer   Signer
	store    Store
	resolver PeerResolver
	sink     EventSink

	channels    map[string]*Channel
	commitments map[string][]*Commitment

	logger *logrus.Entry
}

// NewLedger creates a Ledger and loads every channel and commitment from the
// store. The resolver and the sink may be nil.
func NewLedger(signer Signer, store Store, resolver PeerResolver, sink EventSink, logger *logrus.Entry) (*Ledger, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	l := &Ledger{
		signer:      signer,
		store:       store,
		resolver:    resolver,
		sink:        sink,
		channels:    make(map[string]*Channel),
		commitments: make(map[string][]*Commitment),
		logger:      logger,
	}

	if err := l.load(); err != nil {
		return nil, err
	}

	return l, nil
}

func (l *Ledger) load() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	chans, err := l.store.AllChannels()
	if err != nil {
		return newLedgerErr(PersistenceFailure, "", "loading channels", err)
	}

	for _, ch := range chans {
		cmts, err := l.store.ChannelCommitments(ch.ID)
		if err != nil {
			return newLedgerErr(PersistenceFailure, ch.ID, "loading commitments", err)
		}

		// The commitment trail is authoritative.
		if n := len(cmts); n > 0 && cmts[n-1].Sequence > ch.Sequence {
			last := cmts[n-1]

			l.logger.WithFields(logrus.Fields{
				"channel":    ch.ID,
				"record_seq": ch.Sequence,
				"trail_seq":  last.Sequence,
			}).Warn("Channel record behind commitment trail, restoring")

			ch.MyBalance = last.MyBalance
			ch.PeerBalance = last.PeerBalance
			ch.Sequence = last.Sequence

			if err := l.store.UpdateChannel(ch); err != nil {
				return newLedgerErr(PersistenceFailure, ch.ID, "restoring channel", err)
			}
		}

		if ch.MyBalance+ch.PeerBalance != ch.Capacity {
			return newLedgerErr(PersistenceFailure, ch.ID, "stored balances do not add up to capacity", nil)
		}

		l.channels[ch.ID] = ch
		l.commitments[ch.ID] = cmts
	}

	l.logger.WithField("channels", len(l.channels)).Debug("Ledger loaded")

	return nil
}

//==============================================================================
//Mutations

// Open creates a channel with the peer designated by peerID, which is either an
// overlay identifier of a connected peer or a hex public key. The capacity is
// split evenly; the opener gets the lower half when it is odd.
func (l *Ledger) Open(peerID string, capacity uint64) (*Channel, error) {
	if capacity == 0 {
		return nil, newLedgerErr(InvalidInput, "", "capacity must be positive", nil)
	}

	pid, err := ParsePeerIdentifier(peerID)
	if err != nil {
		return nil, newLedgerErr(InvalidInput, "", "invalid peer identifier", err)
	}

	peerKey, err := pid.Resolve(l.resolver)
	if err != nil {
		return nil, newLedgerErr(InvalidInput, "", "invalid peer identifier", err)
	}

	if peerKey == l.signer.PublicKeyHex() {
		return nil, newLedgerErr(InvalidInput, "", "cannot open a channel with oneself", nil)
	}

	joint, err := l.jointAddress(peerKey)
	if err != nil {
		return nil, err
	}

	myBalance := capacity / 2

	ch := &Channel{
		ID:           uuid.New().String(),
		PeerID:       peerKey,
		FundingRef:   FundingRefPrefix + uuid.New().String(),
		Capacity:     capacity,
		MyBalance:    myBalance,
		PeerBalance:  capacity - myBalance,
		Sequence:     0,
		IsOpen:       true,
		Initiator:    true,
		JointAddress: joint,
		CreatedAt:    time.Now().UTC(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.SaveChannel(ch); err != nil {
		return nil, newLedgerErr(PersistenceFailure, ch.ID, "saving channel", err)
	}

	l.channels[ch.ID] = ch
	l.commitments[ch.ID] = []*Commitment{}

	l.emit(Event{Type: ChannelOpened, Channel: *ch})

	l.logger.WithFields(logrus.Fields{
		"channel":  ch.ID,
		"peer":     ch.PeerID,
		"capacity": ch.Capacity,
	}).Info("Channel opened")

	return ch.copy(), nil
}

// Pay transfers amount from this node to the counterparty.
func (l *Ledger) Pay(channelID string, amount uint64) (*Payment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, err := l.openChannel(channelID)
	if err != nil {
		return nil, err
	}

	if amount == 0 {
		return nil, newLedgerErr(InvalidInput, channelID, "amount must be positive", nil)
	}

	if amount > ch.MyBalance {
		return nil, newLedgerErr(InsufficientFunds, channelID, "amount exceeds local balance", nil)
	}

	next := ch.copy()
	next.MyBalance -= amount
	next.PeerBalance += amount
	next.Sequence++

	cmt, err := l.newCommitment(next, "")
	if err != nil {
		return nil, err
	}

	payment := &Payment{
		ID:        uuid.New().String(),
		ChannelID: channelID,
		Amount:    amount,
		Direction: Outgoing,
		Sequence:  next.Sequence,
		Timestamp: cmt.CreatedAt,
		IsOffline: true,
	}

	if err := l.apply(next, cmt, payment); err != nil {
		return nil, err
	}

	l.emit(Event{
		Type:       PaymentSent,
		Channel:    *next,
		Payment:    payment.copy(),
		Commitment: cmt.copy(),
	})

	l.logger.WithFields(logrus.Fields{
		"channel":  channelID,
		"amount":   amount,
		"sequence": next.Sequence,
	}).Debug("Payment sent")

	return payment.copy(), nil
}

// Receive applies an incoming transfer at the given sequence number, which
// must be exactly one more than the current one.
func (l *Ledger) Receive(channelID string, amount uint64, sequence uint64) (*Payment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.receive(channelID, amount, sequence, nil)
}

func (l *Ledger) receive(channelID string, amount uint64, sequence uint64, remote *RemotePayment) (*Payment, error) {
	ch, err := l.openChannel(channelID)
	if err != nil {
		return nil, err
	}

	if sequence != ch.Sequence+1 {
		if remote != nil {
			l.emit(Event{Type: SequenceConflictDetected, Channel: *ch, Remote: true})
		}
		return nil, newLedgerErr(SequenceConflict, channelID, "sequence does not extend the current state", nil)
	}

	if amount == 0 {
		return nil, newLedgerErr(InvalidInput, channelID, "amount must be positive", nil)
	}

	if amount > ch.PeerBalance {
		return nil, newLedgerErr(InsufficientFunds, channelID, "amount exceeds counterparty balance", nil)
	}

	next := ch.copy()
	next.PeerBalance -= amount
	next.MyBalance += amount
	next.Sequence = sequence

	peerSig := ""
	if remote != nil {
		if err := l.verifyRemoteCommitment(next, remote); err != nil {
			return nil, err
		}
		peerSig = remote.Signature
	}

	cmt, err := l.newCommitment(next, peerSig)
	if err != nil {
		return nil, err
	}

	payment := &Payment{
		ID:        uuid.New().String(),
		ChannelID: channelID,
		Amount:    amount,
		Direction: Incoming,
		Sequence:  sequence,
		Timestamp: cmt.CreatedAt,
		IsOffline: true,
	}

	if err := l.apply(next, cmt, payment); err != nil {
		return nil, err
	}

	l.emit(Event{
		Type:       PaymentReceived,
		Channel:    *next,
		Payment:    payment.copy(),
		Commitment: cmt.copy(),
		Remote:     remote != nil,
	})

	l.logger.WithFields(logrus.Fields{
		"channel":  channelID,
		"amount":   amount,
		"sequence": sequence,
	}).Debug("Payment received")

	return payment.copy(), nil
}

// Close marks the channel closed. Closing a closed channel is a no-op.
func (l *Ledger) Close(channelID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.channels[channelID]
	if !ok {
		return newLedgerErr(NotFound, channelID, "channel not found", nil)
	}

	if !ch.IsOpen {
		return nil
	}

	return l.close(ch, false)
}

func (l *Ledger) close(ch *Channel, remote bool) error {
	next := ch.copy()
	next.IsOpen = false

	if err := l.store.UpdateChannel(next); err != nil {
		return newLedgerErr(PersistenceFailure, ch.ID, "updating channel", err)
	}

	*ch = *next

	l.emit(Event{Type: ChannelClosed, Channel: *next, Remote: remote})

	l.logger.WithFields(logrus.Fields{
		"channel":      ch.ID,
		"my_balance":   ch.MyBalance,
		"peer_balance": ch.PeerBalance,
		"sequence":     ch.Sequence,
		"remote":       remote,
	}).Info("Channel closed")

	return nil
}

//==============================================================================
//Reads

// Channel returns a copy of a channel.
func (l *Ledger) Channel(id string) (*Channel, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ch, ok := l.channels[id]
	if !ok {
		return nil, newLedgerErr(NotFound, id, "channel not found", nil)
	}

	return ch.copy(), nil
}

// Channels returns a copy of every channel, oldest first.
func (l *Ledger) Channels() []*Channel {
	l.mu.RLock()
	defer l.mu.RUnlock()

	res := make([]*Channel, 0, len(l.channels))
	for _, ch := range l.channels {
		res = append(res, ch.copy())
	}

	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID < res[j].ID
		}
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})

	return res
}

// Commitments returns the commitment history of a channel, ordered by
// sequence.
func (l *Ledger) Commitments(channelID string) ([]*Commitment, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	cmts, ok := l.commitments[channelID]
	if !ok {
		return nil, newLedgerErr(NotFound, channelID, "channel not found", nil)
	}

	res := make([]*Commitment, len(cmts))
	for i, c := range cmts {
		res[i] = c.copy()
	}

	return res, nil
}

// Payments returns the payments of a channel, ordered by sequence.
func (l *Ledger) Payments(channelID string) ([]*Payment, error) {
	l.mu.RLock()
	_, ok := l.channels[channelID]
	l.mu.RUnlock()

	if !ok {
		return nil, newLedgerErr(NotFound, channelID, "channel not found", nil)
	}

	payments, err := l.store.ChannelPayments(channelID)
	if err != nil {
		return nil, newLedgerErr(PersistenceFailure, channelID, "listing payments", err)
	}

	return payments, nil
}

//==============================================================================
//Helpers

func (l *Ledger) openChannel(id string) (*Channel, error) {
	ch, ok := l.channels[id]
	if !ok {
		return nil, newLedgerErr(NotFound, id, "channel not found", nil)
	}

	if !ch.IsOpen {
		return nil, newLedgerErr(InvalidState, id, "channel is closed", nil)
	}

	return ch, nil
}

func (l *Ledger) jointAddress(peerKey string) (string, error) {
	raw, err := hex.DecodeString(peerKey)
	if err != nil {
		return "", newLedgerErr(InvalidInput, "", "invalid peer key", err)
	}

	joint, err := l.signer.DeriveJointAddress(raw)
	if err != nil {
		return "", newLedgerErr(CryptoFailure, "", "key derivation failed", err)
	}

	return joint, nil
}

// newCommitment signs the canonical encoding of ch.
func (l *Ledger) newCommitment(ch *Channel, peerSig string) (*Commitment, error) {
	enc, err := NewCommitmentBody(ch, l.signer.PublicKeyHex()).Encode()
	if err != nil {
		return nil, newLedgerErr(CryptoFailure, ch.ID, "encoding commitment", err)
	}

	sig, err := l.signer.Sign(enc)
	if err != nil {
		return nil, newLedgerErr(CryptoFailure, ch.ID, "signing commitment", err)
	}

	return &Commitment{
		ChannelID:     ch.ID,
		Sequence:      ch.Sequence,
		MyBalance:     ch.MyBalance,
		PeerBalance:   ch.PeerBalance,
		Encoding:      string(enc),
		Signature:     sig,
		PeerSignature: peerSig,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// apply persists an update and, only if that succeeded, publishes it in
// memory.
func (l *Ledger) apply(next *Channel, cmt *Commitment, payment *Payment) error {
	err := l.store.CommitUpdate(&Update{
		Channel:    next,
		Commitment: cmt,
		Payment:    payment,
	})
	if err != nil {
		return newLedgerErr(PersistenceFailure, next.ID, "persisting update", err)
	}

	*l.channels[next.ID] = *next
	l.commitments[next.ID] = append(l.commitments[next.ID], cmt)

	return nil
}

func (l *Ledger) emit(ev Event) {
	if l.sink != nil {
		l.sink.Enqueue(ev)
	}
}
