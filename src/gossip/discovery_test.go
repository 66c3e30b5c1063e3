package gossip

import (
	"net"
	"testing"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/mosaicnetworks/paychan/src/common"
	"github.com/mosaicnetworks/paychan/src/peers"
)

func TestMDNSEntryAddr(t *testing.T) {
	self := peers.Peer{
		OverlayID: peers.NewOverlayID(),
		NetAddr:   "192.168.1.10:4001",
		PubKeyHex: "02aa",
	}
	d := NewMDNSDiscovery(self, time.Second, common.NewTestEntry(t, "mdns"))

	other := peers.NewOverlayID()

	cases := []struct {
		name  string
		entry *mdns.ServiceEntry
		addr  string
		ok    bool
	}{
		{
			name: "own announcement",
			entry: &mdns.ServiceEntry{
				AddrV4:     net.ParseIP("192.168.1.10"),
				Port:       4001,
				InfoFields: []string{"overlay=" + self.OverlayID, "pubkey=02aa"},
			},
		},
		{
			name: "no ipv4 address",
			entry: &mdns.ServiceEntry{
				Port:       4001,
				InfoFields: []string{"overlay=" + other},
			},
		},
		{
			name: "no port",
			entry: &mdns.ServiceEntry{
				AddrV4:     net.ParseIP("192.168.1.11"),
				InfoFields: []string{"overlay=" + other},
			},
		},
		{
			name: "other member",
			entry: &mdns.ServiceEntry{
				AddrV4:     net.ParseIP("192.168.1.11"),
				Port:       4002,
				InfoFields: []string{"overlay=" + other, "pubkey=02bb"},
			},
			addr: "192.168.1.11:4002",
			ok:   true,
		},
	}

	for _, c := range cases {
		addr, ok := d.entryAddr(c.entry)
		if ok != c.ok || addr != c.addr {
			t.Fatalf("%s: got %q, %v; want %q, %v", c.name, addr, ok, c.addr, c.ok)
		}
	}
}

func TestLoopbackOnly(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:4001":    true,
		"localhost:4001":    true,
		"[::1]:4001":        true,
		"192.168.1.10:4001": false,
		"node.lan:4001":     false,
		"garbage":           false,
	}

	for addr, want := range cases {
		if got := loopbackOnly(addr); got != want {
			t.Fatalf("loopbackOnly(%s) = %v, want %v", addr, got, want)
		}
	}
}
