package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeepLatestN(t *testing.T) {
	db := NewMemDB()
	snaps := db.Snapshots()

	for _, k := range []int64{10, 20, 30, 40, 50} {
		require.NoError(t, snaps.Put(k, []byte("snap")))
	}

	require.NoError(t, KeepLatestN(snaps, 2))

	var remaining []int64
	require.NoError(t, snaps.ForEach(func(key int64, _ []byte) error {
		remaining = append(remaining, key)
		return nil
	}))
	assert.ElementsMatch(t, []int64{40, 50}, remaining)
}

func TestKeepLatestN_FewerThanN(t *testing.T) {
	db := NewMemDB()
	snaps := db.Snapshots()
	require.NoError(t, snaps.Put(1, []byte("snap")))

	require.NoError(t, KeepLatestN(snaps, 5))

	size, err := snaps.Size()
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}

func TestKeepLatestN_ZeroIsNoOp(t *testing.T) {
	db := NewMemDB()
	snaps := db.Snapshots()
	require.NoError(t, snaps.Put(1, []byte("snap")))

	require.NoError(t, KeepLatestN(snaps, 0))

	size, err := snaps.Size()
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}
