package node

import (
	"github.com/mosaicnetworks/paychan/src/channel"
	"github.com/mosaicnetworks/paychan/src/crypto/keys"
	"github.com/mosaicnetworks/paychan/src/gossip"
	"github.com/sirupsen/logrus"
)

// publish turns a ledger event into a wire message for the counterparty.
// Events the counterparty doesn't need to hear about are not published.
func (n *Node) publish(ev channel.Event) {
	var body gossip.Body

	switch ev.Type {
	case channel.ChannelOpened:
		body = &gossip.ChannelOpen{
			ChannelID:        ev.Channel.ID,
			FundingReference: ev.Channel.FundingRef,
			Capacity:         ev.Channel.Capacity,
			InitialBalance:   ev.Channel.MyBalance,
			Counterparty:     ev.Channel.PeerID,
		}
	case channel.PaymentSent:
		n.metrics.payments.WithLabelValues(string(channel.Outgoing)).Inc()
		body = &gossip.Payment{
			ChannelID:          ev.Channel.ID,
			Amount:             ev.Payment.Amount,
			Sequence:           ev.Payment.Sequence,
			CommitmentEncoding: ev.Commitment.Encoding,
			Signature:          ev.Commitment.Signature,
		}
	case channel.PaymentReceived:
		n.metrics.payments.WithLabelValues(string(channel.Incoming)).Inc()
		if ev.Remote {
			body = &gossip.CommitmentSigned{
				ChannelID: ev.Channel.ID,
				Signature: ev.Commitment.Signature,
				Sequence:  ev.Commitment.Sequence,
			}
		}
	case channel.ChannelClosed:
		if !ev.Remote {
			body = &gossip.ChannelClose{
				ChannelID:     ev.Channel.ID,
				FinalBalanceA: ev.Channel.MyBalance,
				FinalBalanceB: ev.Channel.PeerBalance,
			}
		}
	case channel.SequenceConflictDetected:
		n.metrics.sequenceConflicts.Inc()
		n.logger.WithFields(logrus.Fields{
			"channel":  ev.Channel.ID,
			"sequence": ev.Channel.Sequence,
		}).Warn("Sequence conflict, channel needs a manual resync")
	}

	if body == nil {
		return
	}

	msgType := string(body.Type())

	env, err := gossip.Seal(body, n.id)
	if err != nil {
		n.logger.WithError(err).Error("Sealing message")
		n.metrics.gossip(msgType, resultDropped)
		return
	}

	data, err := env.Marshal()
	if err != nil {
		n.logger.WithError(err).Error("Marshalling envelope")
		n.metrics.gossip(msgType, resultDropped)
		return
	}

	if err := n.overlay.Broadcast(data); err != nil {
		n.logger.WithFields(logrus.Fields{
			"type":    msgType,
			"channel": body.Channel(),
			"error":   err,
		}).Warn("Broadcast failed")
		n.metrics.gossip(msgType, resultDropped)
		return
	}

	n.metrics.gossip(msgType, resultSent)

	n.logger.WithFields(logrus.Fields{
		"type":    msgType,
		"channel": body.Channel(),
	}).Debug("Message broadcast")
}

// handleInbound verifies an envelope and applies its message to the ledger.
// Every message is flooded to every member, so messages about channels this
// node is not part of are ignored.
func (n *Node) handleInbound(data []byte) {
	env, err := gossip.UnmarshalEnvelope(data)
	if err != nil {
		n.logger.WithError(err).Debug("Discarding malformed envelope")
		n.metrics.gossip("unknown", resultRejected)
		return
	}

	body, err := env.Open()
	if err != nil {
		n.logger.WithFields(logrus.Fields{
			"sender": env.Sender,
			"error":  err,
		}).Warn("Discarding envelope")
		n.metrics.gossip("unknown", resultRejected)
		return
	}

	msgType := string(body.Type())

	sender, err := keys.CanonicalPublicKeyHex(env.Sender)
	if err != nil || sender == n.id.PublicKeyHex() {
		n.metrics.gossip(msgType, resultIgnored)
		return
	}

	switch m := body.(type) {
	case *gossip.ChannelOpen:
		counterparty, err := keys.CanonicalPublicKeyHex(m.Counterparty)
		if err != nil || counterparty != n.id.PublicKeyHex() {
			n.metrics.gossip(msgType, resultIgnored)
			return
		}
		_, err = n.ledger.AcceptChannel(sender, channel.RemoteOpen{
			ChannelID:      m.ChannelID,
			FundingRef:     m.FundingReference,
			Capacity:       m.Capacity,
			InitialBalance: m.InitialBalance,
		})
		n.applied(msgType, m.ChannelID, err)
	case *gossip.Payment:
		_, err := n.ledger.ApplyRemotePayment(sender, channel.RemotePayment{
			ChannelID: m.ChannelID,
			Amount:    m.Amount,
			Sequence:  m.Sequence,
			Encoding:  m.CommitmentEncoding,
			Signature: m.Signature,
		})
		n.applied(msgType, m.ChannelID, err)
	case *gossip.ChannelClose:
		err := n.ledger.ApplyRemoteClose(sender, channel.RemoteClose{
			ChannelID:       m.ChannelID,
			SenderBalance:   m.FinalBalanceA,
			ReceiverBalance: m.FinalBalanceB,
		})
		n.applied(msgType, m.ChannelID, err)
	case *gossip.CommitmentSigned:
		err := n.ledger.ApplyCountersignature(sender, m.ChannelID, m.Sequence, m.Signature)
		n.applied(msgType, m.ChannelID, err)
	}
}

func (n *Node) applied(msgType string, channelID string, err error) {
	switch {
	case err == nil:
		n.metrics.gossip(msgType, resultApplied)
	case channel.IsLedger(err, channel.NotFound):
		n.metrics.gossip(msgType, resultIgnored)
	default:
		n.metrics.gossip(msgType, resultRejected)
		n.logger.WithFields(logrus.Fields{
			"type":    msgType,
			"channel": channelID,
			"error":   err,
		}).Warn("Rejected remote update")
	}
}
