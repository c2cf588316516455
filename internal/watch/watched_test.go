package watch_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/samborder/rlog/internal/watch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type callLog struct {
	calls []string
}

func (c *callLog) append(s string) { c.calls = append(c.calls, s) }

func (c *callLog) reset() []string {
	got := c.calls
	c.calls = nil
	return got
}

type mockLocker struct{ log *callLog }

func (l *mockLocker) Lock()   { l.log.append("Lock") }
func (l *mockLocker) Unlock() { l.log.append("Unlock") }

func TestWatchedIndex(t *testing.T) {
	log := &callLog{}
	locker := &mockLocker{log}
	w := watch.New(locker)

	assert.Equal(t, []string(nil), log.reset())

	assert.Equal(t, int64(0), w.Get())
	assert.Equal(t, []string{"Lock", "Unlock"}, log.reset())

	require.NoError(t, w.UnsafeSet(3))
	assert.Equal(t, []string(nil), log.reset())
	assert.Equal(t, int64(3), w.Get())
	assert.Equal(t, []string{"Lock", "Unlock"}, log.reset())

	assert.Equal(t, int64(3), w.UnsafeGet())
	assert.Equal(t, []string(nil), log.reset())

	w.AddListener(func(old, new int64) error {
		log.append(fmt.Sprintf("l1:%d->%d", old, new))
		return nil
	})
	assert.Equal(t, []string{"Lock", "Unlock"}, log.reset())

	require.NoError(t, w.UnsafeSet(4))
	assert.Equal(t, []string{"l1:3->4"}, log.reset())

	errBoom := errors.New("boom")
	w.AddListener(func(old, new int64) error {
		log.append(fmt.Sprintf("l2:%d->%d", old, new))
		if new == 10 {
			return errBoom
		}
		return nil
	})
	assert.Equal(t, []string{"Lock", "Unlock"}, log.reset())

	require.NoError(t, w.UnsafeSet(8))
	assert.Equal(t, []string{"l1:4->8", "l2:4->8"}, log.reset())

	err := w.UnsafeSet(10)
	assert.ErrorIs(t, err, errBoom)
	// The listener that errors still runs, but it ran after l1 (registration
	// order); the value is set regardless of the error.
	assert.Equal(t, []string{"l1:8->10", "l2:8->10"}, log.reset())
	assert.Equal(t, int64(10), w.Get())
}
