package peers

import (
	"sort"
	"sync"
)

// PeerTable is the live membership of the overlay, keyed by overlay ID.
type PeerTable struct {
	sync.RWMutex
	byOverlayID map[string]*Peer
	byNetAddr   map[string]*Peer
	sorted      []*Peer
}

// NewPeerTable ...
func NewPeerTable() *PeerTable {
	return &PeerTable{
		byOverlayID: make(map[string]*Peer),
		byNetAddr:   make(map[string]*Peer),
	}
}

// Add inserts or replaces a peer. It returns false when an identical entry was
// already present. A peer reconnecting from the same address with a new
// overlay ID replaces its previous entry.
func (t *PeerTable) Add(peer *Peer) bool {
	t.Lock()
	defer t.Unlock()

	if old, ok := t.byOverlayID[peer.OverlayID]; ok {
		if *old == *peer {
			return false
		}
		delete(t.byNetAddr, old.NetAddr)
	}

	if old, ok := t.byNetAddr[peer.NetAddr]; ok && old.OverlayID != peer.OverlayID {
		delete(t.byOverlayID, old.OverlayID)
	}

	p := *peer
	t.byOverlayID[p.OverlayID] = &p
	if p.NetAddr != "" {
		t.byNetAddr[p.NetAddr] = &p
	}

	t.internalSort()

	return true
}

// Remove deletes a peer by overlay ID and returns it.
func (t *PeerTable) Remove(overlayID string) (*Peer, bool) {
	t.Lock()
	defer t.Unlock()

	peer, ok := t.byOverlayID[overlayID]
	if !ok {
		return nil, false
	}

	delete(t.byOverlayID, overlayID)
	if cur, ok := t.byNetAddr[peer.NetAddr]; ok && cur.OverlayID == overlayID {
		delete(t.byNetAddr, peer.NetAddr)
	}

	t.internalSort()

	res := *peer
	return &res, true
}

func (t *PeerTable) internalSort() {
	res := make([]*Peer, 0, len(t.byOverlayID))

	for _, p := range t.byOverlayID {
		res = append(res, p)
	}

	sort.Slice(res, func(i, j int) bool {
		return res[i].OverlayID < res[j].OverlayID
	})

	t.sorted = res
}

// ByOverlayID ...
func (t *PeerTable) ByOverlayID(overlayID string) (*Peer, bool) {
	t.RLock()
	defer t.RUnlock()

	p, ok := t.byOverlayID[overlayID]
	if !ok {
		return nil, false
	}
	res := *p
	return &res, true
}

// ByNetAddr ...
func (t *PeerTable) ByNetAddr(netAddr string) (*Peer, bool) {
	t.RLock()
	defer t.RUnlock()

	p, ok := t.byNetAddr[netAddr]
	if !ok {
		return nil, false
	}
	res := *p
	return &res, true
}

// ByPubKey returns the first member announcing pubKeyHex.
func (t *PeerTable) ByPubKey(pubKeyHex string) (*Peer, bool) {
	t.RLock()
	defer t.RUnlock()

	for _, p := range t.sorted {
		if p.PubKeyHex == pubKeyHex {
			res := *p
			return &res, true
		}
	}
	return nil, false
}

// ResolveOverlayID returns the public key announced by an overlay member.
func (t *PeerTable) ResolveOverlayID(overlayID string) (string, bool) {
	p, ok := t.ByOverlayID(overlayID)
	if !ok || p.PubKeyHex == "" {
		return "", false
	}
	return p.PubKeyHex, true
}

// Peers returns a copy of the members sorted by overlay ID.
func (t *PeerTable) Peers() []*Peer {
	t.RLock()
	defer t.RUnlock()

	res := make([]*Peer, len(t.sorted))
	for i, p := range t.sorted {
		cp := *p
		res[i] = &cp
	}
	return res
}

// Len ...
func (t *PeerTable) Len() int {
	t.RLock()
	defer t.RUnlock()

	return len(t.byOverlayID)
}
