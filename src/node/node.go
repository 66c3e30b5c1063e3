package node

import (
	"context"
	"sync"

	"github.com/mosaicnetworks/paychan/src/channel"
	"github.com/mosaicnetworks/paychan/src/gossip"
	"github.com/mosaicnetworks/paychan/src/identity"
	"github.com/mosaicnetworks/paychan/src/peers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Node ties a Ledger to the gossip overlay. Ledger events are turned into
// signed wire messages and inbound messages are verified and applied to the
// Ledger, both from a single dispatcher routine.
type Node struct {
	state

	conf   *Config
	logger *logrus.Entry

	id      *identity.Identity
	ledger  *channel.Ledger
	table   *peers.PeerTable
	overlay *gossip.Overlay

	eventCh chan channel.Event

	subLock sync.Mutex
	subs    map[int]chan channel.Event
	nextSub int

	metrics *metrics
}

// NewNode loads the ledger from store and prepares the overlay over trans.
func NewNode(conf *Config,
	id *identity.Identity,
	store channel.Store,
	trans gossip.Transport,
) (*Node, error) {

	logger := conf.Logger.WithField("node_id", id.NodeID()[:8])

	table := peers.NewPeerTable()

	self := peers.NewPeer(
		peers.NewOverlayID(),
		id.PublicKeyHex(),
		trans.AdvertiseAddr(),
		conf.Moniker,
	)

	queueSize := conf.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultConfig().QueueSize
	}

	n := &Node{
		conf:    conf,
		logger:  logger,
		id:      id,
		table:   table,
		eventCh: make(chan channel.Event, queueSize),
		subs:    make(map[int]chan channel.Event),
		metrics: newMetrics(table),
	}

	ledger, err := channel.NewLedger(id, store, table, n, logger.WithField("prefix", "ledger"))
	if err != nil {
		return nil, err
	}
	n.ledger = ledger

	var discovery gossip.Discovery
	if conf.MDNS {
		discovery = gossip.NewMDNSDiscovery(*self, conf.HeartbeatTimeout, logger.WithField("prefix", "mdns"))
	}

	n.overlay = gossip.NewOverlay(*self, trans, table, gossip.OverlayConfig{
		Bootstrap: conf.Bootstrap,
		Heartbeat: conf.HeartbeatTimeout,
		QueueSize: queueSize,
		Discovery: discovery,
	}, logger.WithField("prefix", "overlay"))

	return n, nil
}

// Enqueue implements channel.EventSink. It is called with the ledger lock
// held, so it never blocks: events are dropped when the queue is full.
func (n *Node) Enqueue(ev channel.Event) {
	select {
	case n.eventCh <- ev:
	default:
		n.logger.WithFields(logrus.Fields{
			"event":   ev.Type.String(),
			"channel": ev.Channel.ID,
		}).Error("Event queue full, dropping event")
	}
}

// Run starts the overlay and the dispatcher and blocks until ctx is done and
// the overlay has left.
func (n *Node) Run(ctx context.Context) {
	n.logger.WithFields(logrus.Fields{
		"overlay_id": n.overlay.Self().OverlayID,
		"addr":       n.overlay.Self().NetAddr,
	}).Info("Node running")

	n.goFunc(func() { n.overlay.Run(ctx) })

	n.setState(Running)

	for {
		select {
		case ev := <-n.eventCh:
			n.publish(ev)
			n.notify(ev)
		case data := <-n.overlay.Inbound():
			n.handleInbound(data)
		case <-ctx.Done():
			n.setState(Leaving)
			n.waitRoutines()
			n.closeSubscriptions()
			n.setState(Shutdown)
			n.logger.Info("Node stopped")
			return
		}
	}
}

// Subscribe returns a copy of every ledger event processed from now on. The
// returned function cancels the subscription. A subscriber that doesn't keep
// up misses events.
func (n *Node) Subscribe() (<-chan channel.Event, func()) {
	n.subLock.Lock()
	defer n.subLock.Unlock()

	id := n.nextSub
	n.nextSub++

	ch := make(chan channel.Event, 64)
	n.subs[id] = ch

	return ch, func() {
		n.subLock.Lock()
		defer n.subLock.Unlock()

		if c, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(c)
		}
	}
}

func (n *Node) notify(ev channel.Event) {
	n.subLock.Lock()
	defer n.subLock.Unlock()

	for _, ch := range n.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (n *Node) closeSubscriptions() {
	n.subLock.Lock()
	defer n.subLock.Unlock()

	for id, ch := range n.subs {
		delete(n.subs, id)
		close(ch)
	}
}

// GetState ...
func (n *Node) GetState() State {
	return n.getState()
}

// Registry returns the node's metrics.
func (n *Node) Registry() *prometheus.Registry {
	return n.metrics.registry
}

// Ledger ...
func (n *Node) Ledger() *channel.Ledger {
	return n.ledger
}

// Connect dials a peer directly.
func (n *Node) Connect(addr string) error {
	return n.overlay.Connect(addr)
}
