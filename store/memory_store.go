package store

import (
	"sync"

	"github.com/google/btree"
)

// kvItem is a btree.Item keyed by an int64, carrying an opaque byte value.
type kvItem struct {
	key   int64
	value []byte
}

func (a kvItem) Less(than btree.Item) bool {
	return a.key < than.(kvItem).key
}

// MemDB is a DB backed by in-memory github.com/google/btree ordered maps.
// It implements the same OrderedMap/AtomicInt contract as BoltDB without
// touching disk, for tests and for embedding rlog in a process that
// doesn't need durability across restarts.
type MemDB struct {
	entries     *memOrderedMap
	snapshots   *memOrderedMap
	commitIndex *memAtomicInt
}

// NewMemDB returns an empty MemDB.
func NewMemDB() *MemDB {
	return &MemDB{
		entries:     newMemOrderedMap(),
		snapshots:   newMemOrderedMap(),
		commitIndex: &memAtomicInt{},
	}
}

// Entries implements DB.
func (m *MemDB) Entries() OrderedMap { return m.entries }

// Snapshots implements DB.
func (m *MemDB) Snapshots() OrderedMap { return m.snapshots }

// CommitIndex implements DB.
func (m *MemDB) CommitIndex() AtomicInt { return m.commitIndex }

// Close implements DB. MemDB holds no external resources.
func (m *MemDB) Close() error { return nil }

type memOrderedMap struct {
	mu   sync.Mutex
	tree *btree.BTree
}

func newMemOrderedMap() *memOrderedMap {
	return &memOrderedMap{tree: btree.New(32)}
}

func (m *memOrderedMap) Get(key int64) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item := m.tree.Get(kvItem{key: key})
	if item == nil {
		return nil, false, nil
	}
	return item.(kvItem).value, true, nil
}

func (m *memOrderedMap) Put(key int64, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tree.ReplaceOrInsert(kvItem{key: key, value: append([]byte(nil), value...)})
	return nil
}

func (m *memOrderedMap) Delete(key int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tree.Delete(kvItem{key: key})
	return nil
}

func (m *memOrderedMap) Size() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tree.Len(), nil
}

func (m *memOrderedMap) IsEmpty() (bool, error) {
	n, _ := m.Size()
	return n == 0, nil
}

func (m *memOrderedMap) LastKey() (int64, bool, error) {
	key, _, ok, err := m.LastEntry()
	return key, ok, err
}

func (m *memOrderedMap) LastEntry() (int64, []byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item := m.tree.Max()
	if item == nil {
		return 0, nil, false, nil
	}
	kv := item.(kvItem)
	return kv.key, kv.value, true, nil
}

func (m *memOrderedMap) ForEach(f func(key int64, value []byte) error) error {
	m.mu.Lock()
	items := make([]kvItem, 0, m.tree.Len())
	m.tree.Ascend(func(item btree.Item) bool {
		items = append(items, item.(kvItem))
		return true
	})
	m.mu.Unlock()

	for _, kv := range items {
		if err := f(kv.key, kv.value); err != nil {
			return err
		}
	}
	return nil
}

type memAtomicInt struct {
	mu sync.Mutex
	v  int64
}

func (a *memAtomicInt) Get() (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.v, nil
}

func (a *memAtomicInt) Set(v int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.v = v
	return nil
}
