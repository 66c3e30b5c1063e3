package peers

import (
	"io/ioutil"
	"os"
	"testing"
)

func TestPeerTable(t *testing.T) {
	table := NewPeerTable()

	a := NewPeer(NewOverlayID(), "02aa", "127.0.0.1:4001", "a")
	b := NewPeer(NewOverlayID(), "03bb", "127.0.0.1:4002", "b")

	if !table.Add(a) || !table.Add(b) {
		t.Fatalf("new peers should be added")
	}

	if table.Add(a) {
		t.Fatalf("adding the same peer twice should be a no-op")
	}

	if table.Len() != 2 {
		t.Fatalf("table should contain 2 peers, not %d", table.Len())
	}

	pub, ok := table.ResolveOverlayID(a.OverlayID)
	if !ok || pub != "02aa" {
		t.Fatalf("overlay id should resolve to 02aa, got %q", pub)
	}

	if _, ok := table.ResolveOverlayID("ov-unknown"); ok {
		t.Fatalf("unknown overlay id should not resolve")
	}

	if p, ok := table.ByPubKey("03bb"); !ok || p.OverlayID != b.OverlayID {
		t.Fatalf("lookup by public key failed")
	}

	// b restarts with a new overlay id on the same address
	b2 := NewPeer(NewOverlayID(), "03bb", "127.0.0.1:4002", "b")
	table.Add(b2)

	if table.Len() != 2 {
		t.Fatalf("reconnecting peer should replace its old entry, got %d peers", table.Len())
	}
	if _, ok := table.ByOverlayID(b.OverlayID); ok {
		t.Fatalf("old overlay id should be gone")
	}

	if _, ok := table.Remove(a.OverlayID); !ok {
		t.Fatalf("remove should find peer a")
	}
	if _, ok := table.Remove(a.OverlayID); ok {
		t.Fatalf("second remove should find nothing")
	}

	ps := table.Peers()
	if len(ps) != 1 || ps[0].OverlayID != b2.OverlayID {
		t.Fatalf("remaining peer should be b2")
	}

	// returned peers are copies
	ps[0].PubKeyHex = "tampered"
	if p, _ := table.ByOverlayID(b2.OverlayID); p.PubKeyHex != "03bb" {
		t.Fatalf("table should not be modified through returned peers")
	}
}

func TestOverlayID(t *testing.T) {
	id := NewOverlayID()
	if !IsOverlayID(id) {
		t.Fatalf("%s should be an overlay id", id)
	}
	if IsOverlayID("02abcdef") || IsOverlayID(OverlayIDPrefix) {
		t.Fatalf("hex keys and bare prefixes are not overlay ids")
	}
	if NewOverlayID() == id {
		t.Fatalf("overlay ids should be unique")
	}
}

func TestJSONPeers(t *testing.T) {
	os.Mkdir("test_data", os.ModeDir|0700)
	dir, err := ioutil.TempDir("test_data", "peers")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer os.RemoveAll(dir)

	store := NewJSONPeers(dir)

	addrs, err := store.Addresses()
	if err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if len(addrs) != 0 {
		t.Fatalf("missing file should give no addresses")
	}

	if err := store.SetPeers([]*Peer{
		{NetAddr: "10.0.0.1:4001"},
		{NetAddr: "10.0.0.2:4001", Moniker: "bob"},
		{NetAddr: "10.0.0.1:4001", Moniker: "duplicate"},
		{Moniker: "no address"},
	}); err != nil {
		t.Fatalf("err: %v", err)
	}

	addrs, err = store.Addresses()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(addrs) != 2 || addrs[0] != "10.0.0.1:4001" || addrs[1] != "10.0.0.2:4001" {
		t.Fatalf("unexpected addresses %v", addrs)
	}
}
