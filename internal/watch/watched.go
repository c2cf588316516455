// Package watch provides a lock-piggybacking watched value with listener
// fan-out. The log core keeps its in-memory commitIndex in one; it
// registers no listeners of its own (compaction is triggered directly
// from the append paths), and lastLog is a plain atomic counter.
package watch

import "sync"

// Listener is called whenever a WatchedIndex's value changes, with the old
// and new values. A listener returning an error is treated as fatal by the
// caller that owns the lock -- see UnsafeSet.
type Listener func(old, new int64) error

// WatchedIndex is an int64 that notifies registered listeners whenever it
// changes, while relying on an externally-held lock for safe concurrent
// access. This mirrors the log core's own locking discipline: callers that
// already hold RLog's lock use UnsafeGet/UnsafeSet directly; callers
// without the lock use Get/AddListener, which take it themselves.
type WatchedIndex struct {
	lock      sync.Locker
	value     int64
	listeners []Listener
}

// New creates a WatchedIndex starting at 0, guarded by the given Locker.
func New(lock sync.Locker) *WatchedIndex {
	return &WatchedIndex{lock: lock}
}

// Get returns the current value, taking the lock itself.
func (w *WatchedIndex) Get() int64 {
	w.lock.Lock()
	v := w.value
	w.lock.Unlock()
	return v
}

// UnsafeGet returns the current value without taking the lock. The caller
// must already hold it.
func (w *WatchedIndex) UnsafeGet() int64 {
	return w.value
}

// AddListener registers a listener for future changes, taking the lock
// itself.
func (w *WatchedIndex) AddListener(l Listener) {
	w.lock.Lock()
	w.listeners = append(w.listeners, l)
	w.lock.Unlock()
}

// UnsafeSet sets the value and invokes every registered listener in order,
// without taking the lock. The caller must already hold it. If a listener
// returns an error, iteration stops and the error is returned to the
// caller -- the value has still been updated.
func (w *WatchedIndex) UnsafeSet(new int64) error {
	old := w.value
	w.value = new
	for _, l := range w.listeners {
		if err := l(old, new); err != nil {
			return err
		}
	}
	return nil
}

// AdvanceIfGreater takes the lock, and if new is greater than the current
// value, sets it (invoking listeners as UnsafeSet would) and reports
// applied=true. Otherwise it leaves the value untouched and reports
// applied=false. This is the atomic check-and-set a monotonically
// advancing index needs: callers that only have Get/UnsafeSet available
// would otherwise race between reading the current value and deciding
// whether to overwrite it.
func (w *WatchedIndex) AdvanceIfGreater(new int64) (applied bool, err error) {
	w.lock.Lock()
	defer w.lock.Unlock()
	if new <= w.value {
		return false, nil
	}
	err = w.UnsafeSet(new)
	return true, err
}
