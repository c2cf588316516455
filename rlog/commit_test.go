package rlog

import (
	"bytes"
	"encoding/gob"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samborder/rlog/statemachine"
)

func readPayload(t *testing.T, key string) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(statemachine.ReadOp(key)))
	return buf.Bytes()
}

// TestRLog_CommitMissingEntryIsFatal exercises the MissingLogEntry error
// kind from spec.md §7: a commit requested for an index that was never
// appended (a hole in the prefix) must be reported, not silently ignored.
func TestRLog_CommitMissingEntryIsFatal(t *testing.T) {
	rl, _, _ := newTestRLog(t, 1000)

	err := rl.Commit(LogEntry{Term: 1, Index: 5, Command: NoOpCommand()})
	assert.ErrorIs(t, err, ErrMissingLogEntry)
}

// TestRLog_CommitEntriesUntilToleratesHoles stress-tests the open question
// DESIGN.md resolves in commitEntriesUntilLocked's favor: a commit request
// chasing an append stream that has gaps in it must advance commitIndex
// only through indices that are actually present, and must converge to the
// full prefix once the gaps are filled in -- regardless of the order in
// which the surrounding entries arrive.
func TestRLog_CommitEntriesUntilToleratesHoles(t *testing.T) {
	rl, sm, _ := newTestRLog(t, 1000)

	// Append 1, 3, 5 out of order, leaving 2 and 4 as holes.
	for _, i := range []LogIndex{1, 3, 5} {
		e := LogEntry{Term: 1, Index: i, Command: WriteCommand(writePayload(t, "k", "v"))}
		require.NoError(t, rl.Append([]LogEntry{e}))
	}

	// Commit chases the leader's reported commit index of 5, but only
	// entries 1 and 3 are present so far: commitIndex must stop at 3.
	require.NoError(t, rl.commitEntriesUntilLocked(5, false))
	assert.Equal(t, LogIndex(3), rl.CommitIndex())

	// Fill in the holes at 2 and 4.
	for _, i := range []LogIndex{2, 4} {
		e := LogEntry{Term: 1, Index: i, Command: WriteCommand(writePayload(t, "k", "v"))}
		require.NoError(t, rl.Append([]LogEntry{e}))
	}

	require.NoError(t, rl.commitEntriesUntilLocked(5, false))
	assert.Equal(t, LogIndex(5), rl.CommitIndex())
	_, ok := sm.Get("k")
	assert.True(t, ok)
}

// TestRLog_CommitEntriesUntilNeverRegresses checks that repeatedly chasing
// a lower or equal target after commitIndex has already advanced past it is
// a no-op, per safeCommitLocked's "duplicate/old requests are ignored" rule.
func TestRLog_CommitEntriesUntilNeverRegresses(t *testing.T) {
	rl, _, _ := newTestRLog(t, 1000)

	for i := LogIndex(1); i <= 3; i++ {
		e := LogEntry{Term: 1, Index: i, Command: WriteCommand(writePayload(t, "k", "v"))}
		require.NoError(t, rl.Append([]LogEntry{e}))
	}
	require.NoError(t, rl.commitEntriesUntilLocked(3, false))
	assert.Equal(t, LogIndex(3), rl.CommitIndex())

	require.NoError(t, rl.commitEntriesUntilLocked(1, false))
	assert.Equal(t, LogIndex(3), rl.CommitIndex(), "commit index must never move backward")
}

// TestRLog_ExecuteReadDoesNotAdvanceCommitIndexOrMutate exercises the
// "execute(readCommand)" operation from spec.md §4.C: ExecuteRead must
// delegate to the state machine and return its result without advancing
// the commit index or mutating state for a key it merely read.
func TestRLog_ExecuteReadDoesNotAdvanceCommitIndexOrMutate(t *testing.T) {
	rl, sm, _ := newTestRLog(t, 1000)

	entry := LogEntry{Term: 1, Index: 1, Command: WriteCommand(writePayload(t, "k", "v1"))}
	require.NoError(t, rl.Append([]LogEntry{entry}))
	require.NoError(t, rl.Commit(entry))
	require.Equal(t, LogIndex(1), rl.CommitIndex())

	result, err := rl.ExecuteRead(readPayload(t, "k"))
	require.NoError(t, err)
	assert.Equal(t, "v1", result)

	assert.Equal(t, LogIndex(1), rl.CommitIndex(), "a read must not advance the commit index")
	v, ok := sm.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v1", v, "a read must not alter the value it read")

	missing, err := rl.ExecuteRead(readPayload(t, "never-written"))
	require.NoError(t, err)
	assert.Equal(t, "", missing)
	_, ok = sm.Get("never-written")
	assert.False(t, ok, "reading an absent key must not create it")
}
