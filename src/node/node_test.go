package node

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mosaicnetworks/paychan/src/channel"
	"github.com/mosaicnetworks/paychan/src/gossip"
	"github.com/mosaicnetworks/paychan/src/identity"
)

type testNode struct {
	*Node
	id     *identity.Identity
	trans  *gossip.InmemTransport
	cancel context.CancelFunc
	done   chan struct{}
}

func newTestNode(t *testing.T, moniker string, bootstrap []string) *testNode {
	id, err := identity.Generate()
	if err != nil {
		t.Fatal(err)
	}

	_, trans := gossip.NewInmemTransport("")

	conf := TestConfig(t)
	conf.Moniker = moniker
	conf.Bootstrap = bootstrap

	n, err := NewNode(conf, id, channel.NewInmemStore(), trans)
	if err != nil {
		t.Fatal(err)
	}

	return &testNode{Node: n, id: id, trans: trans}
}

func (n *testNode) start() {
	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	n.done = make(chan struct{})
	go func() {
		n.Run(ctx)
		close(n.done)
	}()
}

func (n *testNode) stop() {
	n.cancel()
	<-n.done
}

// initNodes starts n nodes on connected in-memory transports; every node
// bootstraps from the first one.
func initNodes(t *testing.T, count int) []*testNode {
	nodes := make([]*testNode, count)
	transports := make([]*gossip.InmemTransport, count)

	for i := 0; i < count; i++ {
		var bootstrap []string
		if i > 0 {
			bootstrap = []string{nodes[0].trans.LocalAddr()}
		}
		nodes[i] = newTestNode(t, fmt.Sprintf("node%d", i), bootstrap)
		transports[i] = nodes[i].trans
	}

	gossip.ConnectAll(transports...)

	for _, n := range nodes {
		n.start()
	}

	for i, n := range nodes {
		expected := 1
		if i == 0 {
			expected = count - 1
		}
		waitFor(t, 3*time.Second, fmt.Sprintf("node%d peers", i), func() bool {
			return len(n.Info().Peers) >= expected
		})
	}

	return nodes
}

func shutdownNodes(nodes []*testNode) {
	for _, n := range nodes {
		n.cancel()
	}
	for _, n := range nodes {
		<-n.done
	}
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func channelOf(n *testNode, id string) *channel.Channel {
	ch, err := n.Ledger().Channel(id)
	if err != nil {
		return nil
	}
	return ch
}

func TestNodeChannelLifecycle(t *testing.T) {
	nodes := initNodes(t, 2)
	defer shutdownNodes(nodes)

	alice, bob := nodes[0], nodes[1]

	ch, err := alice.OpenChannel(bob.id.PublicKeyHex(), 100000)
	if err != nil {
		t.Fatal(err)
	}

	waitFor(t, 3*time.Second, "bob accepting the channel", func() bool {
		return channelOf(bob, ch.ID) != nil
	})

	mirror := channelOf(bob, ch.ID)
	if mirror.MyBalance != 50000 || mirror.PeerBalance != 50000 || mirror.Initiator {
		t.Fatalf("bob's mirror of the channel is wrong: %+v", mirror)
	}
	if mirror.JointAddress != ch.JointAddress {
		t.Fatalf("joint addresses differ: %s, %s", mirror.JointAddress, ch.JointAddress)
	}
	if mirror.PeerID != alice.id.PublicKeyHex() {
		t.Fatalf("bob's counterparty should be alice")
	}

	if _, err := alice.SendPayment(ch.ID, 10000); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 3*time.Second, "bob receiving the payment", func() bool {
		c := channelOf(bob, ch.ID)
		return c != nil && c.Sequence == 1
	})

	mirror = channelOf(bob, ch.ID)
	if mirror.MyBalance != 60000 || mirror.PeerBalance != 40000 {
		t.Fatalf("bob's balances are wrong: %d/%d", mirror.MyBalance, mirror.PeerBalance)
	}

	payments, err := bob.Payments(ch.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(payments) != 1 || payments[0].Direction != channel.Incoming || payments[0].Amount != 10000 {
		t.Fatalf("bob should have one incoming payment: %+v", payments)
	}

	// bob's acknowledgement countersigns alice's commitment
	waitFor(t, 3*time.Second, "alice's commitment countersigned", func() bool {
		cmts, err := alice.Ledger().Commitments(ch.ID)
		return err == nil && len(cmts) == 1 && cmts[0].FullySigned()
	})

	bobCmts, _ := bob.Ledger().Commitments(ch.ID)
	if len(bobCmts) != 1 || !bobCmts[0].FullySigned() {
		t.Fatalf("bob's commitment should carry both signatures")
	}

	// bob pays back
	if _, err := bob.SendPayment(ch.ID, 5000); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 3*time.Second, "alice receiving the payment", func() bool {
		c := channelOf(alice, ch.ID)
		return c.Sequence == 2 && c.MyBalance == 45000
	})

	if err := alice.CloseChannel(ch.ID); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 3*time.Second, "bob closing the channel", func() bool {
		return !channelOf(bob, ch.ID).IsOpen
	})

	if _, err := bob.SendPayment(ch.ID, 1); !channel.IsLedger(err, channel.InvalidState) {
		t.Fatalf("paying on a closed channel should fail with InvalidState, got %v", err)
	}
}

func TestNodeOpenByOverlayID(t *testing.T) {
	nodes := initNodes(t, 2)
	defer shutdownNodes(nodes)

	alice, bob := nodes[0], nodes[1]

	ch, err := alice.OpenChannel(bob.Info().OverlayID, 1001)
	if err != nil {
		t.Fatal(err)
	}

	if ch.PeerID != bob.id.PublicKeyHex() {
		t.Fatalf("overlay id should resolve to bob's key")
	}
	if ch.MyBalance != 500 || ch.PeerBalance != 501 {
		t.Fatalf("opener should get the lower half: %d/%d", ch.MyBalance, ch.PeerBalance)
	}

	waitFor(t, 3*time.Second, "bob accepting the channel", func() bool {
		c := channelOf(bob, ch.ID)
		return c != nil && c.MyBalance == 501
	})
}

func TestNodeRelayAndBystander(t *testing.T) {
	// carol only connects to alice; bob's messages reach carol through alice
	// and carol ignores them
	nodes := initNodes(t, 3)
	defer shutdownNodes(nodes)

	alice, bob, carol := nodes[0], nodes[1], nodes[2]

	ch, err := bob.OpenChannel(carol.id.PublicKeyHex(), 2000)
	if err != nil {
		t.Fatal(err)
	}

	waitFor(t, 3*time.Second, "carol accepting the channel", func() bool {
		return channelOf(carol, ch.ID) != nil
	})

	if _, err := bob.SendPayment(ch.ID, 300); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 3*time.Second, "carol receiving the payment", func() bool {
		c := channelOf(carol, ch.ID)
		return c.Sequence == 1 && c.MyBalance == 1300
	})

	if len(alice.Channels()) != 0 {
		t.Fatalf("alice is not part of the channel")
	}
}

func TestNodeSequenceConflict(t *testing.T) {
	nodes := initNodes(t, 2)
	defer shutdownNodes(nodes)

	alice, bob := nodes[0], nodes[1]

	ch, err := alice.OpenChannel(bob.id.PublicKeyHex(), 100000)
	if err != nil {
		t.Fatal(err)
	}

	waitFor(t, 3*time.Second, "bob accepting the channel", func() bool {
		return channelOf(bob, ch.ID) != nil
	})

	// both sides pay at the same sequence while disconnected
	alice.trans.DisconnectAll()
	bob.trans.DisconnectAll()

	if _, err := alice.SendPayment(ch.ID, 100); err != nil {
		t.Fatal(err)
	}
	if _, err := bob.SendPayment(ch.ID, 200); err != nil {
		t.Fatal(err)
	}

	// deliver alice's payment to bob by hand
	cmts, _ := alice.Ledger().Commitments(ch.ID)
	_, err = bob.Ledger().ApplyRemotePayment(alice.id.PublicKeyHex(), channel.RemotePayment{
		ChannelID: ch.ID,
		Amount:    100,
		Sequence:  1,
		Encoding:  cmts[0].Encoding,
		Signature: cmts[0].Signature,
	})
	if !channel.IsLedger(err, channel.SequenceConflict) {
		t.Fatalf("concurrent payment should be a sequence conflict, got %v", err)
	}

	c := channelOf(bob, ch.ID)
	if c.Sequence != 1 || c.MyBalance != 49800 {
		t.Fatalf("bob's state should be left untouched: %+v", c)
	}
}

func TestNodeSubscribe(t *testing.T) {
	nodes := initNodes(t, 2)
	defer shutdownNodes(nodes)

	alice, bob := nodes[0], nodes[1]

	events, cancel := bob.Subscribe()
	defer cancel()

	ch, err := alice.OpenChannel(bob.id.PublicKeyHex(), 10)
	if err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-events:
		if ev.Type != channel.ChannelAccepted || ev.Channel.ID != ch.ID {
			t.Fatalf("unexpected event %s for %s", ev.Type, ev.Channel.ID)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timeout waiting for event")
	}
}

func TestNodeInfo(t *testing.T) {
	n := newTestNode(t, "solo", nil)
	n.start()
	defer n.stop()

	waitFor(t, time.Second, "running state", func() bool {
		return n.GetState() == Running
	})

	info := n.Info()
	if info.NodeID != n.id.NodeID() || info.PublicKey != n.id.PublicKeyHex() {
		t.Fatalf("info should describe the node identity: %+v", info)
	}
	if info.SettlementAddress != n.id.SettlementAddress() {
		t.Fatalf("wrong settlement address")
	}
	if info.Moniker != "solo" || len(info.Peers) != 0 {
		t.Fatalf("unexpected info %+v", info)
	}
}
