package channel

import (
	"errors"
	"fmt"
	"io/ioutil"
	"math/rand"
	"os"
	"sync"
	"testing"

	"github.com/mosaicnetworks/paychan/src/common"
	"github.com/mosaicnetworks/paychan/src/identity"
)

type recordingSink struct {
	sync.Mutex
	events []Event
}

func (s *recordingSink) Enqueue(ev Event) {
	s.Lock()
	defer s.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) types() []EventType {
	s.Lock()
	defer s.Unlock()
	res := make([]EventType, len(s.events))
	for i, ev := range s.events {
		res[i] = ev.Type
	}
	return res
}

func (s *recordingSink) last() Event {
	s.Lock()
	defer s.Unlock()
	return s.events[len(s.events)-1]
}

type mapResolver map[string]string

func (m mapResolver) ResolveOverlayID(id string) (string, bool) {
	pub, ok := m[id]
	return pub, ok
}

// failingStore refuses every write once fail is set.
type failingStore struct {
	*InmemStore
	fail bool
}

var errDiskFull = errors.New("disk full")

func (s *failingStore) SaveChannel(ch *Channel) error {
	if s.fail {
		return errDiskFull
	}
	return s.InmemStore.SaveChannel(ch)
}

func (s *failingStore) UpdateChannel(ch *Channel) error {
	if s.fail {
		return errDiskFull
	}
	return s.InmemStore.UpdateChannel(ch)
}

func (s *failingStore) CommitUpdate(u *Update) error {
	if s.fail {
		return errDiskFull
	}
	return s.InmemStore.CommitUpdate(u)
}

func newTestLedger(t *testing.T, store Store) (*Ledger, *identity.Identity, *recordingSink) {
	id, err := identity.Generate()
	if err != nil {
		t.Fatal(err)
	}
	sink := &recordingSink{}
	l, err := NewLedger(id, store, nil, sink, common.NewTestEntry(t, "ledger"))
	if err != nil {
		t.Fatal(err)
	}
	return l, id, sink
}

func newPeerKey(t *testing.T) string {
	id, err := identity.Generate()
	if err != nil {
		t.Fatal(err)
	}
	return id.PublicKeyHex()
}

func checkBalances(t *testing.T, ch *Channel, my, peer, seq uint64) {
	t.Helper()
	if ch.MyBalance != my || ch.PeerBalance != peer || ch.Sequence != seq {
		t.Fatalf("expected %d/%d seq %d, got %d/%d seq %d",
			my, peer, seq, ch.MyBalance, ch.PeerBalance, ch.Sequence)
	}
	if ch.MyBalance+ch.PeerBalance != ch.Capacity {
		t.Fatalf("balances %d+%d do not add up to capacity %d", ch.MyBalance, ch.PeerBalance, ch.Capacity)
	}
}

func expectErr(t *testing.T, err error, kind ErrType) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if !IsLedger(err, kind) {
		t.Fatalf("expected %s error, got %v", kind, err)
	}
}

func TestLedgerScenario(t *testing.T) {
	l, _, sink := newTestLedger(t, NewInmemStore())

	ch, err := l.Open(newPeerKey(t), 100000)
	if err != nil {
		t.Fatal(err)
	}
	checkBalances(t, ch, 50000, 50000, 0)

	if !ch.IsOpen || !ch.Initiator {
		t.Fatalf("new channel should be open and initiated locally")
	}
	if ch.JointAddress == "" || ch.FundingRef[:len(FundingRefPrefix)] != FundingRefPrefix {
		t.Fatalf("channel should carry a joint address and a funding reference")
	}

	p, err := l.Pay(ch.ID, 10000)
	if err != nil {
		t.Fatal(err)
	}
	if p.Direction != Outgoing || p.Amount != 10000 || p.Sequence != 1 || !p.IsOffline {
		t.Fatalf("unexpected payment %+v", p)
	}

	ch, _ = l.Channel(ch.ID)
	checkBalances(t, ch, 40000, 60000, 1)

	payments, err := l.Payments(ch.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(payments) != 1 || payments[0].ID != p.ID {
		t.Fatalf("expected exactly the outgoing payment, got %d payments", len(payments))
	}

	cmts, _ := l.Commitments(ch.ID)
	if len(cmts) != 1 || cmts[0].Sequence != 1 || cmts[0].MyBalance != 40000 {
		t.Fatalf("expected one commitment at sequence 1")
	}

	if err := l.Close(ch.ID); err != nil {
		t.Fatal(err)
	}
	ch, _ = l.Channel(ch.ID)
	if ch.IsOpen {
		t.Fatalf("channel should be closed")
	}

	_, err = l.Pay(ch.ID, 1000)
	expectErr(t, err, InvalidState)

	want := []EventType{ChannelOpened, PaymentSent, ChannelClosed}
	got := sink.types()
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, got)
		}
	}
}

func TestLedgerConservationAndSequence(t *testing.T) {
	l, _, _ := newTestLedger(t, NewInmemStore())

	ch, err := l.Open(newPeerKey(t), 1000000)
	if err != nil {
		t.Fatal(err)
	}

	r := rand.New(rand.NewSource(42))
	seq := uint64(0)

	for i := 0; i < 200; i++ {
		amount := uint64(r.Intn(20000))
		var err error
		if r.Intn(2) == 0 {
			_, err = l.Pay(ch.ID, amount)
		} else {
			_, err = l.Receive(ch.ID, amount, seq+1)
		}

		before := seq
		if err == nil {
			seq++
		} else if !IsLedger(err, InvalidInput) && !IsLedger(err, InsufficientFunds) {
			t.Fatalf("unexpected error: %v", err)
		}

		cur, _ := l.Channel(ch.ID)
		if cur.MyBalance+cur.PeerBalance != cur.Capacity {
			t.Fatalf("conservation violated at step %d", i)
		}
		if cur.Sequence != seq {
			t.Fatalf("sequence should be %d (was %d), got %d", seq, before, cur.Sequence)
		}
	}

	cmts, _ := l.Commitments(ch.ID)
	if uint64(len(cmts)) != seq {
		t.Fatalf("expected %d commitments, got %d", seq, len(cmts))
	}
	for i, c := range cmts {
		if c.Sequence != uint64(i+1) {
			t.Fatalf("commitment %d has sequence %d", i, c.Sequence)
		}
		if c.MyBalance+c.PeerBalance != ch.Capacity {
			t.Fatalf("commitment %d violates conservation", i)
		}
	}
}

func TestLedgerReceive(t *testing.T) {
	l, _, sink := newTestLedger(t, NewInmemStore())

	ch, _ := l.Open(newPeerKey(t), 100000)

	_, err := l.Receive(ch.ID, 1000, 2)
	expectErr(t, err, SequenceConflict)

	_, err = l.Receive(ch.ID, 1000, 0)
	expectErr(t, err, SequenceConflict)

	_, err = l.Receive(ch.ID, 50001, 1)
	expectErr(t, err, InsufficientFunds)

	_, err = l.Receive(ch.ID, 0, 1)
	expectErr(t, err, InvalidInput)

	cur, _ := l.Channel(ch.ID)
	checkBalances(t, cur, 50000, 50000, 0)

	p, err := l.Receive(ch.ID, 50000, 1)
	if err != nil {
		t.Fatal(err)
	}
	if p.Direction != Incoming {
		t.Fatalf("payment should be incoming")
	}

	cur, _ = l.Channel(ch.ID)
	checkBalances(t, cur, 100000, 0, 1)

	if ev := sink.last(); ev.Type != PaymentReceived || ev.Remote {
		t.Fatalf("expected a local PaymentReceived event, got %s", ev.Type)
	}

	_, err = l.Receive(ch.ID, 1000, 1)
	expectErr(t, err, SequenceConflict)
}

func TestLedgerInsufficientFunds(t *testing.T) {
	l, _, _ := newTestLedger(t, NewInmemStore())

	ch, _ := l.Open(newPeerKey(t), 100000)

	_, err := l.Pay(ch.ID, 50001)
	expectErr(t, err, InsufficientFunds)

	cur, _ := l.Channel(ch.ID)
	checkBalances(t, cur, 50000, 50000, 0)

	if _, err := l.Pay(ch.ID, 50000); err != nil {
		t.Fatalf("paying the whole balance should succeed: %v", err)
	}

	_, err = l.Pay(ch.ID, 1)
	expectErr(t, err, InsufficientFunds)

	_, err = l.Pay(ch.ID, 0)
	expectErr(t, err, InvalidInput)

	_, err = l.Pay("unknown", 10)
	expectErr(t, err, NotFound)
}

func TestLedgerClosedChannel(t *testing.T) {
	l, _, sink := newTestLedger(t, NewInmemStore())

	ch, _ := l.Open(newPeerKey(t), 100000)

	if err := l.Close(ch.ID); err != nil {
		t.Fatal(err)
	}

	_, err := l.Pay(ch.ID, 10)
	expectErr(t, err, InvalidState)

	_, err = l.Receive(ch.ID, 10, 1)
	expectErr(t, err, InvalidState)

	n := len(sink.types())
	if err := l.Close(ch.ID); err != nil {
		t.Fatalf("closing twice should succeed: %v", err)
	}
	if len(sink.types()) != n {
		t.Fatalf("closing twice should not emit another event")
	}

	expectErr(t, l.Close("unknown"), NotFound)

	cur, _ := l.Channel(ch.ID)
	checkBalances(t, cur, 50000, 50000, 0)
}

func TestLedgerOpen(t *testing.T) {
	l, id, _ := newTestLedger(t, NewInmemStore())

	_, err := l.Open("not a key", 1000)
	expectErr(t, err, InvalidInput)

	_, err = l.Open(newPeerKey(t), 0)
	expectErr(t, err, InvalidInput)

	_, err = l.Open(id.PublicKeyHex(), 1000)
	expectErr(t, err, InvalidInput)

	_, err = l.Open("ov-0123456789", 1000)
	expectErr(t, err, InvalidInput)

	ch, err := l.Open(newPeerKey(t), 99999)
	if err != nil {
		t.Fatal(err)
	}
	checkBalances(t, ch, 49999, 50000, 0)

	// overlay identifiers go through the resolver
	peer := newPeerKey(t)
	l.resolver = mapResolver{"ov-abc": peer}

	ch, err = l.Open("ov-abc", 1000)
	if err != nil {
		t.Fatal(err)
	}
	if ch.PeerID != peer {
		t.Fatalf("overlay id should resolve to the announced key")
	}

	_, err = l.Open("ov-unknown", 1000)
	expectErr(t, err, InvalidInput)

	if len(l.Channels()) != 2 {
		t.Fatalf("expected 2 channels, got %d", len(l.Channels()))
	}
}

func TestLedgerCommitmentSignature(t *testing.T) {
	l, id, _ := newTestLedger(t, NewInmemStore())

	peer := newPeerKey(t)
	ch, _ := l.Open(peer, 100000)
	l.Pay(ch.ID, 2500)

	cmts, _ := l.Commitments(ch.ID)
	c := cmts[0]

	if !identity.Verify([]byte(c.Encoding), c.Signature, id.PublicKeyHex()) {
		t.Fatalf("commitment signature should verify under the node key")
	}

	body, err := DecodeCommitmentBody([]byte(c.Encoding))
	if err != nil {
		t.Fatal(err)
	}

	if body.Sequence != 1 || body.ChannelID != ch.ID || body.FundingRef != ch.FundingRef {
		t.Fatalf("unexpected commitment body %+v", body)
	}

	mine, _ := body.BalanceOf(id.PublicKeyHex())
	theirs, _ := body.BalanceOf(peer)
	if mine != 47500 || theirs != 52500 {
		t.Fatalf("unexpected outputs %d/%d", mine, theirs)
	}

	if c.FullySigned() {
		t.Fatalf("commitment should not be countersigned yet")
	}
}

func TestLedgerPersistenceFailure(t *testing.T) {
	store := &failingStore{InmemStore: NewInmemStore()}
	l, _, sink := newTestLedger(t, store)

	ch, _ := l.Open(newPeerKey(t), 100000)
	l.Pay(ch.ID, 1000)

	n := len(sink.types())
	store.fail = true

	_, err := l.Pay(ch.ID, 1000)
	expectErr(t, err, PersistenceFailure)

	_, err = l.Receive(ch.ID, 1000, 2)
	expectErr(t, err, PersistenceFailure)

	expectErr(t, l.Close(ch.ID), PersistenceFailure)

	_, err = l.Open(newPeerKey(t), 100)
	expectErr(t, err, PersistenceFailure)

	if !errors.Is(err, errDiskFull) {
		t.Fatalf("persistence failure should wrap the store error")
	}

	cur, _ := l.Channel(ch.ID)
	checkBalances(t, cur, 49000, 51000, 1)
	if !cur.IsOpen {
		t.Fatalf("failed close should leave the channel open")
	}

	cmts, _ := l.Commitments(ch.ID)
	if len(cmts) != 1 {
		t.Fatalf("failed updates should not add commitments")
	}

	if len(sink.types()) != n {
		t.Fatalf("failed updates should not emit events")
	}

	if len(l.Channels()) != 1 {
		t.Fatalf("failed open should not add a channel")
	}

	store.fail = false

	if _, err := l.Pay(ch.ID, 1000); err != nil {
		t.Fatalf("ledger should recover once the store does: %v", err)
	}
	cur, _ = l.Channel(ch.ID)
	checkBalances(t, cur, 48000, 52000, 2)
}

func TestLedgerReload(t *testing.T) {
	os.Mkdir("test_data", os.ModeDir|0700)
	dir, err := ioutil.TempDir("test_data", "ledger")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	store, err := NewBadgerStore(dir, common.NewTestEntry(t, "store"))
	if err != nil {
		t.Fatal(err)
	}

	id, _ := identity.Generate()
	l, err := NewLedger(id, store, nil, nil, common.NewTestEntry(t, "ledger"))
	if err != nil {
		t.Fatal(err)
	}

	a, _ := l.Open(newPeerKey(t), 100000)
	b, _ := l.Open(newPeerKey(t), 20000)

	l.Pay(a.ID, 10000)
	l.Receive(a.ID, 5000, 2)
	l.Pay(b.ID, 3000)
	l.Close(b.ID)

	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	store, err = NewBadgerStore(dir, common.NewTestEntry(t, "store"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	l2, err := NewLedger(id, store, nil, nil, common.NewTestEntry(t, "ledger"))
	if err != nil {
		t.Fatal(err)
	}

	ra, err := l2.Channel(a.ID)
	if err != nil {
		t.Fatal(err)
	}
	checkBalances(t, ra, 45000, 55000, 2)
	if !ra.IsOpen {
		t.Fatalf("channel a should still be open")
	}

	rb, err := l2.Channel(b.ID)
	if err != nil {
		t.Fatal(err)
	}
	checkBalances(t, rb, 7000, 13000, 1)
	if rb.IsOpen {
		t.Fatalf("channel b should be closed")
	}

	cmts, _ := l2.Commitments(a.ID)
	if len(cmts) != 2 || cmts[0].Sequence != 1 || cmts[1].Sequence != 2 {
		t.Fatalf("commitment history should be reloaded in order")
	}

	payments, _ := l2.Payments(a.ID)
	if len(payments) != 2 || payments[0].Direction != Outgoing || payments[1].Direction != Incoming {
		t.Fatalf("payment history should be reloaded in order")
	}

	// the reloaded ledger keeps going where the old one stopped
	if _, err := l2.Pay(a.ID, 5000); err != nil {
		t.Fatal(err)
	}
	ra, _ = l2.Channel(a.ID)
	checkBalances(t, ra, 40000, 60000, 3)
}

func TestLedgerRestoresFromTrail(t *testing.T) {
	store := NewInmemStore()
	l, id, _ := newTestLedger(t, store)

	ch, _ := l.Open(newPeerKey(t), 1000)
	l.Pay(ch.ID, 100)

	// simulate a channel record written before the last commitment
	stale, _ := store.GetChannel(ch.ID)
	stale.MyBalance, stale.PeerBalance, stale.Sequence = 500, 500, 0
	store.UpdateChannel(stale)

	l2, err := NewLedger(id, store, nil, nil, common.NewTestEntry(t, "ledger"))
	if err != nil {
		t.Fatal(err)
	}

	cur, _ := l2.Channel(ch.ID)
	checkBalances(t, cur, 400, 600, 1)
}

func TestLedgerConcurrentMutations(t *testing.T) {
	l, _, _ := newTestLedger(t, NewInmemStore())

	ch, err := l.Open(newPeerKey(t), 100000)
	if err != nil {
		t.Fatal(err)
	}

	const (
		payers    = 50
		receivers = 50
	)

	var (
		wg   sync.WaitGroup
		okMu sync.Mutex
		ok   uint64
	)

	success := func() {
		okMu.Lock()
		ok++
		okMu.Unlock()
	}

	for i := 0; i < payers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Pay(ch.ID, 7); err != nil {
				t.Errorf("pay: %v", err)
				return
			}
			success()
		}()
	}

	for i := 0; i < receivers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// another mutation may take the next sequence first
			for {
				cur, err := l.Channel(ch.ID)
				if err != nil {
					t.Errorf("get: %v", err)
					return
				}
				_, err = l.Receive(ch.ID, 3, cur.Sequence+1)
				if err == nil {
					success()
					return
				}
				if !IsLedger(err, SequenceConflict) {
					t.Errorf("receive: %v", err)
					return
				}
			}
		}()
	}

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, c := range l.Channels() {
				if c.MyBalance+c.PeerBalance != c.Capacity {
					t.Errorf("reader saw %d+%d for capacity %d", c.MyBalance, c.PeerBalance, c.Capacity)
				}
			}
		}()
	}

	wg.Wait()

	if ok != payers+receivers {
		t.Fatalf("expected %d successful mutations, got %d", payers+receivers, ok)
	}

	final, err := l.Channel(ch.ID)
	if err != nil {
		t.Fatal(err)
	}
	checkBalances(t, final, 50000-payers*7+receivers*3, 50000+payers*7-receivers*3, ok)

	cmts, err := l.Commitments(ch.ID)
	if err != nil {
		t.Fatal(err)
	}
	seen := make(map[uint64]bool)
	for _, c := range cmts {
		if seen[c.Sequence] {
			t.Fatalf("two commitments at sequence %d", c.Sequence)
		}
		seen[c.Sequence] = true
	}
	for seq := uint64(1); seq <= ok; seq++ {
		if !seen[seq] {
			t.Fatalf("no commitment at sequence %d", seq)
		}
	}

	payments, err := l.Payments(ch.ID)
	if err != nil {
		t.Fatal(err)
	}
	if uint64(len(payments)) != ok {
		t.Fatalf("expected %d payments, got %d", ok, len(payments))
	}
}

func TestErrorKinds(t *testing.T) {
	store := &failingStore{InmemStore: NewInmemStore()}
	l, _, _ := newTestLedger(t, store)

	ch, err := l.Open(newPeerKey(t), 1000)
	if err != nil {
		t.Fatal(err)
	}

	_, err = l.Pay("unknown", 1)
	if !IsBusiness(err) || !IsBusiness(fmt.Errorf("api: %w", err)) {
		t.Fatalf("a missing channel is a business failure: %v", err)
	}

	_, err = l.Pay(ch.ID, 5000)
	if !IsBusiness(err) {
		t.Fatalf("insufficient funds is a business failure: %v", err)
	}

	store.fail = true
	_, err = l.Pay(ch.ID, 1)
	expectErr(t, err, PersistenceFailure)
	if IsBusiness(err) {
		t.Fatalf("a store failure is not a business failure")
	}

	if IsBusiness(errors.New("boom")) {
		t.Fatalf("foreign errors are not business failures")
	}
}
