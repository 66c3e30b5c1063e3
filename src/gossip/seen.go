package gossip

import (
	"sync"

	pcrypto "github.com/mosaicnetworks/paychan/src/crypto"
)

// seenCache remembers the hashes of the last size messages.
type seenCache struct {
	sync.Mutex
	size  int
	set   map[string]struct{}
	order []string
	next  int
}

func newSeenCache(size int) *seenCache {
	return &seenCache{
		size:  size,
		set:   make(map[string]struct{}, size),
		order: make([]string, size),
	}
}

// add records data and reports whether it was new.
func (c *seenCache) add(data []byte) bool {
	h := pcrypto.SHA256Hex(data)

	c.Lock()
	defer c.Unlock()

	if _, ok := c.set[h]; ok {
		return false
	}

	if old := c.order[c.next]; old != "" {
		delete(c.set, old)
	}
	c.order[c.next] = h
	c.next = (c.next + 1) % c.size
	c.set[h] = struct{}{}

	return true
}
