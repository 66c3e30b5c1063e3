package channel

import (
	"fmt"
	"sort"
	"sync"

	cm "github.com/mosaicnetworks/paychan/src/common"
)

// InmemStore is a Store that keeps everything in memory. It backs tests and
// nodes started without a database.
type InmemStore struct {
	sync.RWMutex
	channels    map[string]*Channel
	commitments map[string]map[uint64]*Commitment
	cosigs      map[string]map[uint64]string
	payments    map[string]map[uint64]*Payment
}

// NewInmemStore ...
func NewInmemStore() *InmemStore {
	return &InmemStore{
		channels:    make(map[string]*Channel),
		commitments: make(map[string]map[uint64]*Commitment),
		cosigs:      make(map[string]map[uint64]string),
		payments:    make(map[string]map[uint64]*Payment),
	}
}

// SaveChannel implements the Store interface.
func (s *InmemStore) SaveChannel(ch *Channel) error {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.channels[ch.ID]; ok {
		return cm.NewStoreErr("Channel", cm.KeyAlreadyExists, ch.ID)
	}

	s.channels[ch.ID] = ch.copy()

	return nil
}

// UpdateChannel implements the Store interface.
func (s *InmemStore) UpdateChannel(ch *Channel) error {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.channels[ch.ID]; !ok {
		return cm.NewStoreErr("Channel", cm.KeyNotFound, ch.ID)
	}

	s.channels[ch.ID] = ch.copy()

	return nil
}

// GetChannel implements the Store interface.
func (s *InmemStore) GetChannel(id string) (*Channel, error) {
	s.RLock()
	defer s.RUnlock()

	ch, ok := s.channels[id]
	if !ok {
		return nil, cm.NewStoreErr("Channel", cm.KeyNotFound, id)
	}

	return ch.copy(), nil
}

// AllChannels implements the Store interface.
func (s *InmemStore) AllChannels() ([]*Channel, error) {
	s.RLock()
	defer s.RUnlock()

	res := make([]*Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		res = append(res, ch.copy())
	}

	sort.Slice(res, func(i, j int) bool {
		return res[i].ID < res[j].ID
	})

	return res, nil
}

// ChannelCommitments implements the Store interface.
func (s *InmemStore) ChannelCommitments(id string) ([]*Commitment, error) {
	s.RLock()
	defer s.RUnlock()

	res := []*Commitment{}
	for seq, c := range s.commitments[id] {
		cp := c.copy()
		if sig, ok := s.cosigs[id][seq]; ok {
			cp.PeerSignature = sig
		}
		res = append(res, cp)
	}

	sort.Slice(res, func(i, j int) bool {
		return res[i].Sequence < res[j].Sequence
	})

	return res, nil
}

// SetCounterSignature implements the Store interface.
func (s *InmemStore) SetCounterSignature(channelID string, sequence uint64, sig string) error {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.commitments[channelID][sequence]; !ok {
		return cm.NewStoreErr("Commitment", cm.KeyNotFound, fmt.Sprintf("%s_%d", channelID, sequence))
	}

	if _, ok := s.cosigs[channelID]; !ok {
		s.cosigs[channelID] = make(map[uint64]string)
	}
	s.cosigs[channelID][sequence] = sig

	return nil
}

// ChannelPayments implements the Store interface.
func (s *InmemStore) ChannelPayments(id string) ([]*Payment, error) {
	s.RLock()
	defer s.RUnlock()

	res := []*Payment{}
	for _, p := range s.payments[id] {
		res = append(res, p.copy())
	}

	sort.Slice(res, func(i, j int) bool {
		return res[i].Sequence < res[j].Sequence
	})

	return res, nil
}

// CommitUpdate implements the Store interface.
func (s *InmemStore) CommitUpdate(u *Update) error {
	s.Lock()
	defer s.Unlock()

	id := u.Channel.ID

	if _, ok := s.channels[id]; !ok {
		return cm.NewStoreErr("Channel", cm.KeyNotFound, id)
	}

	if u.Commitment != nil {
		if _, ok := s.commitments[id][u.Commitment.Sequence]; ok {
			return cm.NewStoreErr("Commitment", cm.KeyAlreadyExists, fmt.Sprintf("%s_%d", id, u.Commitment.Sequence))
		}
	}

	s.channels[id] = u.Channel.copy()

	if u.Commitment != nil {
		if _, ok := s.commitments[id]; !ok {
			s.commitments[id] = make(map[uint64]*Commitment)
		}
		s.commitments[id][u.Commitment.Sequence] = u.Commitment.copy()
	}

	if u.Payment != nil {
		if _, ok := s.payments[id]; !ok {
			s.payments[id] = make(map[uint64]*Payment)
		}
		s.payments[id][u.Payment.Sequence] = u.Payment.copy()
	}

	return nil
}

// Close implements the Store interface.
func (s *InmemStore) Close() error {
	return nil
}

// StorePath implements the Store interface.
func (s *InmemStore) StorePath() string {
	return ""
}
