// Package store declares the durable-storage interfaces the replicated log
// core requires of its Durable KV Store collaborator -- ordered,
// integer-keyed maps and a durable atomic integer -- along with two
// implementations: a go.etcd.io/bbolt-backed one for real durability, and
// a github.com/google/btree-backed one for tests and in-process embedding.
//
// The log core stores values as opaque bytes; it is responsible for
// encoding/decoding its own LogEntry and Snapshot types.
package store

// OrderedMap is an ordered, integer-keyed map of opaque byte values. Keys
// are compared numerically, not lexicographically, by every implementation
// in this package.
type OrderedMap interface {
	Get(key int64) (value []byte, ok bool, err error)
	Put(key int64, value []byte) error
	Delete(key int64) error
	Size() (int, error)
	IsEmpty() (bool, error)

	// LastKey returns the largest key present, or ok=false if the map is
	// empty.
	LastKey() (key int64, ok bool, err error)

	// LastEntry returns the entry with the largest key present, or
	// ok=false if the map is empty.
	LastEntry() (key int64, value []byte, ok bool, err error)

	// ForEach calls f for every entry in ascending key order. Iteration
	// stops and the error is returned if f returns an error.
	ForEach(f func(key int64, value []byte) error) error
}

// AtomicInt is a durable, atomically-updated integer.
type AtomicInt interface {
	Get() (int64, error)
	Set(int64) error
}

// Names of the persisted maps/counters the log core reserves.
const (
	EntriesMapName     = "entries"
	SnapshotsMapName   = "snapshots"
	CommitIndexIntName = "commitIndex"
)

// DB is the durable KV store handle the log core is constructed with. An
// implementation must make Entries/CommitIndex/Snapshots available under
// the reserved names above; callers of NewMemDB and OpenBoltDB get them
// pre-opened.
type DB interface {
	Entries() OrderedMap
	CommitIndex() AtomicInt
	Snapshots() OrderedMap

	Close() error
}
