package rlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRLog_IndexCollisionDifferentTermIsSkippedNotTruncated exercises the
// Open Question resolution recorded in DESIGN.md: when a second entry
// arrives at an index already occupied by a different term, this log core
// keeps the existing entry rather than truncating the tail the way
// general Raft prescribes. spec.md §4.D states the contract explicitly
// ("does not reject or overwrite... assumes leader discipline ensures no
// conflict").
func TestRLog_IndexCollisionDifferentTermIsSkippedNotTruncated(t *testing.T) {
	rl, _, _ := newTestRLog(t, 1000)

	original := LogEntry{Term: 1, Index: 1, Command: WriteCommand(writePayload(t, "k", "v1"))}
	require.NoError(t, rl.Append([]LogEntry{original}))

	colliding := LogEntry{Term: 2, Index: 1, Command: WriteCommand(writePayload(t, "k", "v2"))}
	require.NoError(t, rl.Append([]LogEntry{colliding}))

	stored, ok, err := rl.GetLogEntry(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, original, stored, "existing entry at the index must be kept, not overwritten")

	size, err := rl.db.Entries().Size()
	require.NoError(t, err)
	assert.Equal(t, 1, size, "the colliding entry must not have been inserted alongside the original")
}

// TestRLog_ContainsEntry_SentinelAndSnapshotCoverage exercises the
// "Previous-entry check correctness" property from spec.md §8 directly
// against containsEntryLocked's three disjuncts.
func TestRLog_ContainsEntry_SentinelAndSnapshotCoverage(t *testing.T) {
	rl, _, _ := newTestRLog(t, 1000)

	ok, err := rl.ContainsEntry(NoPrevIndex, NoPrevTerm)
	require.NoError(t, err)
	assert.True(t, ok, "the (-1, -1) sentinel is always contained")

	ok, err = rl.ContainsEntry(1, 1)
	require.NoError(t, err)
	assert.False(t, ok, "an empty log contains nothing else")

	entry := LogEntry{Term: 1, Index: 1, Command: NoOpCommand()}
	require.NoError(t, rl.Append([]LogEntry{entry}))

	ok, err = rl.ContainsEntry(1, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = rl.ContainsEntry(1, 2)
	require.NoError(t, err)
	assert.False(t, ok, "same index, different term must not match")
}

// TestRLog_GetPreviousLogEntry_SynthesizesCompactedBoundary checks that
// GetPreviousLogEntry returns the synthetic CompactedEntry when the
// requested entry's predecessor sits exactly at the snapshot boundary.
func TestRLog_GetPreviousLogEntry_SynthesizesCompactedBoundary(t *testing.T) {
	rl, _, _ := newTestRLog(t, 1000)

	_, err := rl.InstallSnapshot(Snapshot{LastIncludedIndex: 7, LastIncludedTerm: 2})
	require.NoError(t, err)

	e8 := LogEntry{Term: 2, Index: 8, Command: WriteCommand(writePayload(t, "k", "v"))}
	require.NoError(t, rl.Append([]LogEntry{e8}))

	prev, ok, err := rl.GetPreviousLogEntry(e8)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, LogEntry{Term: 2, Index: 7, Command: Command{Kind: CommandCompacted}}, prev)
}
