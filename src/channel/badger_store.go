package channel

import (
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger"
	cm "github.com/mosaicnetworks/paychan/src/common"
	"github.com/sirupsen/logrus"
)

const (
	channelPrefix    = "chan"
	commitmentPrefix = "cmt"
	cosigPrefix      = "cosig"
	paymentPrefix    = "pay"
	schemaKey        = "meta_schema_version"
)

// migrations[i] upgrades a database from schema version i to i+1. The length
// of the slice is the current schema version.
var migrations = []func(txn *badger.Txn) error{
	// 0 -> 1: initial layout, nothing to move.
	func(txn *badger.Txn) error { return nil },
}

// SchemaVersion is the layout version written by this package.
func SchemaVersion() int {
	return len(migrations)
}

// BadgerStore is a Store backed by a Badger database. Channels, commitments,
// countersignatures and payments live in separate key spaces. Commitment and
// payment keys embed a zero-padded sequence number so that prefix iteration
// returns them in sequence order.
type BadgerStore struct {
	db     *badger.DB
	path   string
	logger *logrus.Entry
}

// NewBadgerStore opens an existing database or creates a new one if nothing is
// found in path, and brings its schema up to date.
func NewBadgerStore(path string, logger *logrus.Entry) (*BadgerStore, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	opts := badger.DefaultOptions(path).
		WithSyncWrites(true).
		WithTruncate(true).
		WithLogger(logger.WithFields(logrus.Fields{"ns": "badger"}))

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	store := &BadgerStore{
		db:     handle,
		path:   path,
		logger: logger,
	}

	if err := store.migrate(); err != nil {
		handle.Close()
		return nil, err
	}

	return store, nil
}

//==============================================================================
//Keys

func channelKey(id string) []byte {
	return []byte(fmt.Sprintf("%s_%s", channelPrefix, id))
}

func commitmentKey(channelID string, sequence uint64) []byte {
	return []byte(fmt.Sprintf("%s_%s_%020d", commitmentPrefix, channelID, sequence))
}

func cosigKey(channelID string, sequence uint64) []byte {
	return []byte(fmt.Sprintf("%s_%s_%020d", cosigPrefix, channelID, sequence))
}

func paymentKey(channelID string, sequence uint64) []byte {
	return []byte(fmt.Sprintf("%s_%s_%020d", paymentPrefix, channelID, sequence))
}

func rangePrefix(prefix string, channelID string) []byte {
	if channelID == "" {
		return []byte(prefix + "_")
	}
	return []byte(fmt.Sprintf("%s_%s_", prefix, channelID))
}

//==============================================================================
//Implement the Store interface

// SaveChannel implements the Store interface.
func (s *BadgerStore) SaveChannel(ch *Channel) error {
	val, err := ch.Marshal()
	if err != nil {
		return err
	}

	tx := s.db.NewTransaction(true)
	defer tx.Discard()

	key := channelKey(ch.ID)

	_, err = tx.Get(key)
	if err == nil {
		return cm.NewStoreErr("Channel", cm.KeyAlreadyExists, ch.ID)
	}
	if !isDBKeyNotFound(err) {
		return err
	}

	if err := tx.Set(key, val); err != nil {
		return err
	}

	return tx.Commit()
}

// UpdateChannel implements the Store interface.
func (s *BadgerStore) UpdateChannel(ch *Channel) error {
	val, err := ch.Marshal()
	if err != nil {
		return err
	}

	tx := s.db.NewTransaction(true)
	defer tx.Discard()

	key := channelKey(ch.ID)

	if _, err := tx.Get(key); err != nil {
		return mapError(err, "Channel", ch.ID)
	}

	if err := tx.Set(key, val); err != nil {
		return err
	}

	return tx.Commit()
}

// GetChannel implements the Store interface.
func (s *BadgerStore) GetChannel(id string) (*Channel, error) {
	var chBytes []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(channelKey(id))
		if err != nil {
			return err
		}
		chBytes, err = item.ValueCopy(nil)
		return err
	})

	if err != nil {
		return nil, mapError(err, "Channel", id)
	}

	ch := new(Channel)
	if err := ch.Unmarshal(chBytes); err != nil {
		return nil, err
	}

	return ch, nil
}

// AllChannels implements the Store interface.
func (s *BadgerStore) AllChannels() ([]*Channel, error) {
	res := []*Channel{}

	err := s.iterate(rangePrefix(channelPrefix, ""), func(val []byte) error {
		ch := new(Channel)
		if err := ch.Unmarshal(val); err != nil {
			return err
		}
		res = append(res, ch)
		return nil
	})

	return res, err
}

// ChannelCommitments implements the Store interface.
func (s *BadgerStore) ChannelCommitments(id string) ([]*Commitment, error) {
	res := []*Commitment{}

	err := s.iterate(rangePrefix(commitmentPrefix, id), func(val []byte) error {
		c := new(Commitment)
		if err := c.Unmarshal(val); err != nil {
			return err
		}
		res = append(res, c)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = s.db.View(func(txn *badger.Txn) error {
		for _, c := range res {
			item, err := txn.Get(cosigKey(id, c.Sequence))
			if isDBKeyNotFound(err) {
				continue
			}
			if err != nil {
				return err
			}
			sig, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			c.PeerSignature = string(sig)
		}
		return nil
	})

	return res, err
}

// SetCounterSignature implements the Store interface.
func (s *BadgerStore) SetCounterSignature(channelID string, sequence uint64, sig string) error {
	tx := s.db.NewTransaction(true)
	defer tx.Discard()

	if _, err := tx.Get(commitmentKey(channelID, sequence)); err != nil {
		return mapError(err, "Commitment", fmt.Sprintf("%s_%d", channelID, sequence))
	}

	if err := tx.Set(cosigKey(channelID, sequence), []byte(sig)); err != nil {
		return err
	}

	return tx.Commit()
}

// ChannelPayments implements the Store interface.
func (s *BadgerStore) ChannelPayments(id string) ([]*Payment, error) {
	res := []*Payment{}

	err := s.iterate(rangePrefix(paymentPrefix, id), func(val []byte) error {
		p := new(Payment)
		if err := p.Unmarshal(val); err != nil {
			return err
		}
		res = append(res, p)
		return nil
	})

	return res, err
}

// CommitUpdate implements the Store interface. The channel, commitment and
// payment records are written in one Badger transaction.
func (s *BadgerStore) CommitUpdate(u *Update) error {
	tx := s.db.NewTransaction(true)
	defer tx.Discard()

	id := u.Channel.ID

	if _, err := tx.Get(channelKey(id)); err != nil {
		return mapError(err, "Channel", id)
	}

	chVal, err := u.Channel.Marshal()
	if err != nil {
		return err
	}
	if err := tx.Set(channelKey(id), chVal); err != nil {
		return err
	}

	if c := u.Commitment; c != nil {
		key := commitmentKey(id, c.Sequence)

		_, err := tx.Get(key)
		if err == nil {
			return cm.NewStoreErr("Commitment", cm.KeyAlreadyExists, string(key))
		}
		if !isDBKeyNotFound(err) {
			return err
		}

		val, err := c.Marshal()
		if err != nil {
			return err
		}
		if err := tx.Set(key, val); err != nil {
			return err
		}
		if c.PeerSignature != "" {
			if err := tx.Set(cosigKey(id, c.Sequence), []byte(c.PeerSignature)); err != nil {
				return err
			}
		}
	}

	if p := u.Payment; p != nil {
		val, err := p.Marshal()
		if err != nil {
			return err
		}
		if err := tx.Set(paymentKey(id, p.Sequence), val); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Close implements the Store interface.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// StorePath implements the Store interface.
func (s *BadgerStore) StorePath() string {
	return s.path
}

//==============================================================================
//DB helpers

func (s *BadgerStore) iterate(prefix []byte, fn func(val []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(val); err != nil {
				return err
			}
		}

		return nil
	})
}

func (s *BadgerStore) schemaVersion(txn *badger.Txn) (int, error) {
	item, err := txn.Get([]byte(schemaKey))
	if isDBKeyNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	val, err := item.ValueCopy(nil)
	if err != nil {
		return 0, err
	}

	return strconv.Atoi(string(val))
}

// migrate runs the migrations the database has not seen yet in a single
// transaction. A database written by a newer binary is refused.
func (s *BadgerStore) migrate() error {
	tx := s.db.NewTransaction(true)
	defer tx.Discard()

	version, err := s.schemaVersion(tx)
	if err != nil {
		return err
	}

	if version > SchemaVersion() {
		return cm.NewStoreErr("Schema", cm.SchemaMismatch, strconv.Itoa(version))
	}

	if version == SchemaVersion() {
		return nil
	}

	for v := version; v < SchemaVersion(); v++ {
		if err := migrations[v](tx); err != nil {
			return fmt.Errorf("migrating schema %d to %d: %v", v, v+1, err)
		}
	}

	if err := tx.Set([]byte(schemaKey), []byte(strconv.Itoa(SchemaVersion()))); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"from": version,
		"to":   SchemaVersion(),
	}).Debug("Migrated store schema")

	return tx.Commit()
}

func isDBKeyNotFound(err error) bool {
	return err == badger.ErrKeyNotFound
}

func mapError(err error, name, key string) error {
	if err != nil {
		if isDBKeyNotFound(err) {
			return cm.NewStoreErr(name, cm.KeyNotFound, key)
		}
	}
	return err
}
