package gossip

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mosaicnetworks/paychan/src/peers"
	"github.com/sirupsen/logrus"
)

// ErrQueueFull is returned by Broadcast when the outbound queue is full.
var ErrQueueFull = errors.New("outbound queue full")

// OverlayConfig ...
type OverlayConfig struct {
	// Bootstrap addresses are dialed at startup and re-dialed every
	// Heartbeat while they are not members.
	Bootstrap []string
	Heartbeat time.Duration
	QueueSize int
	SeenSize  int
	Discovery Discovery
}

// Overlay is the membership and publish/subscribe layer. All membership
// changes and all fan-outs are driven by the event loop in Run.
type Overlay struct {
	self  peers.Peer
	trans Transport
	table *peers.PeerTable
	conf  OverlayConfig

	outCh chan outbound
	inCh  chan []byte
	seen  *seenCache

	wg     sync.WaitGroup
	logger *logrus.Entry
}

// NewOverlay ...
func NewOverlay(self peers.Peer, trans Transport, table *peers.PeerTable, conf OverlayConfig, logger *logrus.Entry) *Overlay {
	if conf.QueueSize <= 0 {
		conf.QueueSize = 256
	}
	if conf.SeenSize <= 0 {
		conf.SeenSize = 4096
	}
	if conf.Heartbeat <= 0 {
		conf.Heartbeat = 10 * time.Second
	}

	return &Overlay{
		self:   self,
		trans:  trans,
		table:  table,
		conf:   conf,
		outCh:  make(chan outbound, conf.QueueSize),
		inCh:   make(chan []byte, conf.QueueSize),
		seen:   newSeenCache(conf.SeenSize),
		logger: logger,
	}
}

// Self returns this member's announcement.
func (o *Overlay) Self() peers.Peer {
	return o.self
}

// Peers returns the current members.
func (o *Overlay) Peers() []*peers.Peer {
	return o.table.Peers()
}

// Inbound delivers the payload of every new publish received from the
// overlay.
func (o *Overlay) Inbound() <-chan []byte {
	return o.inCh
}

// outbound is a payload to publish to every member but except.
type outbound struct {
	data   []byte
	except string
}

// Broadcast enqueues data for fan-out. It never blocks.
func (o *Overlay) Broadcast(data []byte) error {
	o.seen.add(data)
	return o.enqueue(outbound{data: data})
}

func (o *Overlay) enqueue(out outbound) error {
	select {
	case o.outCh <- out:
		return nil
	default:
		return ErrQueueFull
	}
}

// Connect dials addr and adds the member behind it.
func (o *Overlay) Connect(addr string) error {
	if addr == "" || addr == o.self.NetAddr {
		return nil
	}

	if _, ok := o.table.ByNetAddr(addr); ok {
		return nil
	}

	var resp HelloResponse
	if err := o.trans.Hello(addr, &HelloRequest{Peer: o.self}, &resp); err != nil {
		return err
	}

	if !peers.IsOverlayID(resp.Peer.OverlayID) || resp.Peer.OverlayID == o.self.OverlayID {
		return fmt.Errorf("invalid hello response from %s", addr)
	}

	peer := resp.Peer
	peer.NetAddr = addr

	if o.table.Add(&peer) {
		o.logger.WithFields(logrus.Fields{
			"peer": peer.OverlayID,
			"addr": addr,
		}).Info("Peer connected")
	}

	return nil
}

// Run drives the overlay until ctx is done. It then says goodbye to the
// members and closes the transport.
func (o *Overlay) Run(ctx context.Context) {
	go o.trans.Listen()

	var discovered <-chan string
	if o.conf.Discovery != nil {
		ch, err := o.conf.Discovery.Start(ctx)
		if err != nil {
			o.logger.WithError(err).Warn("Discovery disabled")
		} else {
			discovered = ch
		}
	}

	o.goFunc(func() { o.sender(ctx) })

	o.dialBootstrap()

	ticker := time.NewTicker(o.conf.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case rpc := <-o.trans.Consumer():
			o.processRPC(rpc)
		case addr, ok := <-discovered:
			if !ok {
				discovered = nil
				continue
			}
			o.goDial(addr)
		case <-ticker.C:
			o.dialBootstrap()
		case <-ctx.Done():
			o.leave()
			return
		}
	}
}

func (o *Overlay) goFunc(f func()) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		f()
	}()
}

func (o *Overlay) goDial(addr string) {
	o.goFunc(func() {
		if err := o.Connect(addr); err != nil {
			o.logger.WithFields(logrus.Fields{
				"addr":  addr,
				"error": err,
			}).Debug("Dial failed")
		}
	})
}

func (o *Overlay) dialBootstrap() {
	for _, addr := range o.conf.Bootstrap {
		if _, ok := o.table.ByNetAddr(addr); !ok {
			o.goDial(addr)
		}
	}
}

func (o *Overlay) processRPC(rpc RPC) {
	switch cmd := rpc.Command.(type) {
	case *HelloRequest:
		o.processHello(rpc, cmd)
	case *PublishRequest:
		o.processPublish(rpc, cmd)
	case *ByeRequest:
		if p, ok := o.table.Remove(cmd.FromID); ok {
			o.logger.WithField("peer", p.OverlayID).Info("Peer left")
		}
		rpc.Respond(&ByeResponse{FromID: o.self.OverlayID}, nil)
	default:
		o.logger.WithField("cmd", rpc.Command).Error("Unexpected RPC command")
		rpc.Respond(nil, fmt.Errorf("unexpected command"))
	}
}

func (o *Overlay) processHello(rpc RPC, cmd *HelloRequest) {
	if !peers.IsOverlayID(cmd.Peer.OverlayID) || cmd.Peer.OverlayID == o.self.OverlayID {
		rpc.Respond(&HelloResponse{Peer: o.self}, fmt.Errorf("invalid overlay id %q", cmd.Peer.OverlayID))
		return
	}

	if o.table.Add(&cmd.Peer) {
		o.logger.WithFields(logrus.Fields{
			"peer": cmd.Peer.OverlayID,
			"addr": cmd.Peer.NetAddr,
		}).Info("Peer connected")
	}

	rpc.Respond(&HelloResponse{Peer: o.self}, nil)
}

func (o *Overlay) processPublish(rpc RPC, cmd *PublishRequest) {
	rpc.Respond(&PublishResponse{FromID: o.self.OverlayID}, nil)

	if cmd.Topic != Topic {
		o.logger.WithField("topic", cmd.Topic).Debug("Ignoring publish on unknown topic")
		return
	}

	if !o.seen.add(cmd.Data) {
		return
	}

	select {
	case o.inCh <- cmd.Data:
	default:
		o.logger.WithField("from", cmd.FromID).Warn("Inbound queue full, dropping message")
	}

	if err := o.enqueue(outbound{data: cmd.Data, except: cmd.FromID}); err != nil {
		o.logger.WithField("from", cmd.FromID).Warn("Outbound queue full, not relaying message")
	}
}

// sender publishes the outbound queue one payload at a time, so payloads
// from one origin reach a member in the order they were enqueued.
func (o *Overlay) sender(ctx context.Context) {
	for {
		select {
		case out := <-o.outCh:
			o.fanout(out.data, out.except)
		case <-ctx.Done():
			return
		}
	}
}

// fanout publishes data to every member but except. A member that can't be
// reached is removed from the table.
func (o *Overlay) fanout(data []byte, except string) {
	_, targets := peers.ExcludePeer(o.table.Peers(), except)

	for _, peer := range targets {
		var resp PublishResponse
		err := o.trans.Publish(peer.NetAddr, &PublishRequest{
			FromID: o.self.OverlayID,
			Topic:  Topic,
			Data:   data,
		}, &resp)
		if err != nil {
			o.table.Remove(peer.OverlayID)
			o.logger.WithFields(logrus.Fields{
				"peer":  peer.OverlayID,
				"error": err,
			}).Info("Peer disconnected")
		}
	}
}

func (o *Overlay) leave() {
	for _, p := range o.table.Peers() {
		var resp ByeResponse
		if err := o.trans.Bye(p.NetAddr, &ByeRequest{FromID: o.self.OverlayID}, &resp); err != nil {
			o.logger.WithField("peer", p.OverlayID).Debug("Bye failed")
		}
	}

	if o.conf.Discovery != nil {
		o.conf.Discovery.Close()
	}

	o.wg.Wait()

	if err := o.trans.Close(); err != nil {
		o.logger.WithError(err).Error("Closing transport")
	}

	o.logger.Debug("Overlay stopped")
}
