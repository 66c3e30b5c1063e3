package channel

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mosaicnetworks/paychan/src/crypto/keys"
	"github.com/mosaicnetworks/paychan/src/identity"
	"github.com/sirupsen/logrus"
)

// RemoteOpen is a channel opened by the counterparty. InitialBalance is the
// opener's side.
type RemoteOpen struct {
	ChannelID      string
	FundingRef     string
	Capacity       uint64
	InitialBalance uint64
}

// RemotePayment is a transfer from the counterparty with its signature over
// the commitment encoding of the resulting state.
type RemotePayment struct {
	ChannelID string
	Amount    uint64
	Sequence  uint64
	Encoding  string
	Signature string
}

// RemoteClose is a close announced by the counterparty, with the balances it
// closed at.
type RemoteClose struct {
	ChannelID       string
	SenderBalance   uint64
	ReceiverBalance uint64
}

// AcceptChannel mirrors a channel the owner of sender opened with this node.
func (l *Ledger) AcceptChannel(sender string, o RemoteOpen) (*Channel, error) {
	peerKey, err := keys.CanonicalPublicKeyHex(sender)
	if err != nil {
		return nil, newLedgerErr(InvalidInput, o.ChannelID, "invalid sender key", err)
	}

	if peerKey == l.signer.PublicKeyHex() {
		return nil, newLedgerErr(InvalidInput, o.ChannelID, "cannot accept a channel from oneself", nil)
	}

	if _, err := uuid.Parse(o.ChannelID); err != nil {
		return nil, newLedgerErr(InvalidInput, o.ChannelID, "invalid channel id", err)
	}

	if o.Capacity == 0 || o.InitialBalance > o.Capacity {
		return nil, newLedgerErr(InvalidInput, o.ChannelID, "invalid capacity split", nil)
	}

	joint, err := l.jointAddress(peerKey)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.channels[o.ChannelID]; ok {
		return nil, newLedgerErr(InvalidState, o.ChannelID, "channel already exists", nil)
	}

	ch := &Channel{
		ID:           o.ChannelID,
		PeerID:       peerKey,
		FundingRef:   o.FundingRef,
		Capacity:     o.Capacity,
		MyBalance:    o.Capacity - o.InitialBalance,
		PeerBalance:  o.InitialBalance,
		Sequence:     0,
		IsOpen:       true,
		Initiator:    false,
		JointAddress: joint,
		CreatedAt:    time.Now().UTC(),
	}

	if err := l.store.SaveChannel(ch); err != nil {
		return nil, newLedgerErr(PersistenceFailure, ch.ID, "saving channel", err)
	}

	l.channels[ch.ID] = ch
	l.commitments[ch.ID] = []*Commitment{}

	l.emit(Event{Type: ChannelAccepted, Channel: *ch, Remote: true})

	l.logger.WithFields(logrus.Fields{
		"channel":  ch.ID,
		"peer":     ch.PeerID,
		"capacity": ch.Capacity,
	}).Info("Channel accepted")

	return ch.copy(), nil
}

// ApplyRemotePayment applies a transfer announced by sender. Nothing is
// applied unless sender is the channel counterparty, the sequence extends the
// current one, and p.Encoding is exactly the encoding of the resulting state
// signed by sender.
func (l *Ledger) ApplyRemotePayment(sender string, p RemotePayment) (*Payment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.channels[p.ChannelID]
	if !ok {
		return nil, newLedgerErr(NotFound, p.ChannelID, "channel not found", nil)
	}

	if err := checkSender(ch, sender); err != nil {
		return nil, err
	}

	return l.receive(p.ChannelID, p.Amount, p.Sequence, &p)
}

// ApplyRemoteClose closes a channel the counterparty closed. Diverging final
// balances are reported, not reconciled.
func (l *Ledger) ApplyRemoteClose(sender string, c RemoteClose) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.channels[c.ChannelID]
	if !ok {
		return newLedgerErr(NotFound, c.ChannelID, "channel not found", nil)
	}

	if err := checkSender(ch, sender); err != nil {
		return err
	}

	if !ch.IsOpen {
		return nil
	}

	if c.SenderBalance != ch.PeerBalance || c.ReceiverBalance != ch.MyBalance {
		l.logger.WithFields(logrus.Fields{
			"channel":           ch.ID,
			"my_balance":        ch.MyBalance,
			"peer_balance":      ch.PeerBalance,
			"peer_claims_mine":  c.ReceiverBalance,
			"peer_claims_yours": c.SenderBalance,
		}).Warn("Counterparty closed with different balances")
	}

	return l.close(ch, true)
}

// ApplyCountersignature attaches the counterparty's signature to the
// commitment at sequence after checking it against the stored encoding.
func (l *Ledger) ApplyCountersignature(sender string, channelID string, sequence uint64, sig string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.channels[channelID]
	if !ok {
		return newLedgerErr(NotFound, channelID, "channel not found", nil)
	}

	if err := checkSender(ch, sender); err != nil {
		return err
	}

	cmts := l.commitments[channelID]

	idx := -1
	for i, c := range cmts {
		if c.Sequence == sequence {
			idx = i
			break
		}
	}
	if idx < 0 {
		return newLedgerErr(NotFound, channelID, fmt.Sprintf("no commitment at sequence %d", sequence), nil)
	}

	cmt := cmts[idx]

	if cmt.PeerSignature != "" {
		return nil
	}

	if !identity.Verify([]byte(cmt.Encoding), sig, ch.PeerID) {
		return newLedgerErr(InvalidInput, channelID, "invalid countersignature", nil)
	}

	if err := l.store.SetCounterSignature(channelID, sequence, sig); err != nil {
		return newLedgerErr(PersistenceFailure, channelID, "saving countersignature", err)
	}

	next := cmt.copy()
	next.PeerSignature = sig
	cmts[idx] = next

	l.emit(Event{Type: CommitmentCountersigned, Channel: *ch, Commitment: next.copy(), Remote: true})

	return nil
}

func (l *Ledger) verifyRemoteCommitment(next *Channel, remote *RemotePayment) error {
	expected, err := NewCommitmentBody(next, l.signer.PublicKeyHex()).Encode()
	if err != nil {
		return newLedgerErr(CryptoFailure, next.ID, "encoding commitment", err)
	}

	if string(expected) != remote.Encoding {
		return newLedgerErr(InvalidInput, next.ID, "commitment does not describe the expected state", nil)
	}

	if !identity.Verify(expected, remote.Signature, next.PeerID) {
		return newLedgerErr(InvalidInput, next.ID, "invalid commitment signature", nil)
	}

	return nil
}

func checkSender(ch *Channel, sender string) error {
	key, err := keys.CanonicalPublicKeyHex(sender)
	if err != nil || key != ch.PeerID {
		return newLedgerErr(InvalidInput, ch.ID, "sender is not the channel counterparty", nil)
	}
	return nil
}
