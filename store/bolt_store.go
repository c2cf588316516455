package store

import (
	"encoding/binary"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// BoltDB is a DB backed by a single go.etcd.io/bbolt file. It is the
// production implementation of the Durable KV Store collaborator spec.md
// §1 names: entries and snapshots live in their own buckets, keyed by an
// 8-byte big-endian encoding of their int64 key so bbolt's natural
// lexicographic byte ordering matches numeric order; commitIndex lives as
// an 8-byte value under a single well-known key in a metadata bucket.
type BoltDB struct {
	db *bolt.DB

	entries     *boltOrderedMap
	snapshots   *boltOrderedMap
	commitIndex *boltAtomicInt
}

var metaBucket = []byte("meta")
var commitIndexKey = []byte("commitIndex")

// OpenBoltDB opens (creating if necessary) a bbolt file at path and
// prepares the entries/snapshots/commitIndex handles.
func OpenBoltDB(path string) (*BoltDB, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errors.Wrap(err, "store: opening bbolt file")
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{[]byte(EntriesMapName), []byte(SnapshotsMapName), metaBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "store: initializing bbolt buckets")
	}

	return &BoltDB{
		db:          db,
		entries:     &boltOrderedMap{db: db, bucket: []byte(EntriesMapName)},
		snapshots:   &boltOrderedMap{db: db, bucket: []byte(SnapshotsMapName)},
		commitIndex: &boltAtomicInt{db: db},
	}, nil
}

// Entries implements DB.
func (b *BoltDB) Entries() OrderedMap { return b.entries }

// Snapshots implements DB.
func (b *BoltDB) Snapshots() OrderedMap { return b.snapshots }

// CommitIndex implements DB.
func (b *BoltDB) CommitIndex() AtomicInt { return b.commitIndex }

// Close implements DB.
func (b *BoltDB) Close() error {
	return errors.Wrap(b.db.Close(), "store: closing bbolt file")
}

func encodeKey(key int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(key))
	return buf
}

func decodeKey(buf []byte) int64 {
	return int64(binary.BigEndian.Uint64(buf))
}

type boltOrderedMap struct {
	db     *bolt.DB
	bucket []byte
}

func (m *boltOrderedMap) Get(key int64) ([]byte, bool, error) {
	var value []byte
	ok := false
	err := m.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(m.bucket).Get(encodeKey(key))
		if v != nil {
			ok = true
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, errors.Wrap(err, "store: get")
	}
	return value, ok, nil
}

func (m *boltOrderedMap) Put(key int64, value []byte) error {
	err := m.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(m.bucket).Put(encodeKey(key), value)
	})
	return errors.Wrap(err, "store: put")
}

func (m *boltOrderedMap) Delete(key int64) error {
	err := m.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(m.bucket).Delete(encodeKey(key))
	})
	return errors.Wrap(err, "store: delete")
}

func (m *boltOrderedMap) Size() (int, error) {
	n := 0
	err := m.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(m.bucket).Stats().KeyN
		return nil
	})
	return n, errors.Wrap(err, "store: size")
}

func (m *boltOrderedMap) IsEmpty() (bool, error) {
	n, err := m.Size()
	return n == 0, err
}

func (m *boltOrderedMap) LastKey() (int64, bool, error) {
	key, _, ok, err := m.LastEntry()
	return key, ok, err
}

func (m *boltOrderedMap) LastEntry() (int64, []byte, bool, error) {
	var key int64
	var value []byte
	ok := false
	err := m.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(m.bucket).Cursor()
		k, v := c.Last()
		if k != nil {
			ok = true
			key = decodeKey(k)
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return 0, nil, false, errors.Wrap(err, "store: lastEntry")
	}
	return key, value, ok, nil
}

func (m *boltOrderedMap) ForEach(f func(key int64, value []byte) error) error {
	err := m.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(m.bucket).ForEach(func(k, v []byte) error {
			return f(decodeKey(k), v)
		})
	})
	return errors.Wrap(err, "store: forEach")
}

type boltAtomicInt struct {
	db *bolt.DB
}

func (a *boltAtomicInt) Get() (int64, error) {
	var v int64
	err := a.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(metaBucket).Get(commitIndexKey)
		if raw != nil {
			v = decodeKey(raw)
		}
		return nil
	})
	return v, errors.Wrap(err, "store: get commitIndex")
}

func (a *boltAtomicInt) Set(v int64) error {
	err := a.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(metaBucket).Put(commitIndexKey, encodeKey(v))
	})
	return errors.Wrap(err, "store: set commitIndex")
}
