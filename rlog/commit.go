package rlog

import (
	"context"

	"github.com/samborder/rlog/membership"
)

// This file implements the Commit Applier (spec.md §4.C): Commit,
// commitEntriesUntil, safeCommit, and command execution against the state
// machine. All of it runs under RLog's shared lock.

// Commit commits entry, provided its term matches the cluster's current
// local term (the leader-commit-safety rule). Every index strictly less
// than entry.Index is committed first, then entry itself.
//
// If entry's index is absent from the log, this returns ErrMissingLogEntry
// -- a hole, treated as fatal by the caller. If entry is present but its
// term doesn't match the current term, this returns ErrStaleTermCommit
// after logging at warn; no mutation occurs.
func (rl *RLog) Commit(entry LogEntry) error {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	existing, ok, err := rl.getLogEntryLocked(entry.Index)
	if err != nil {
		return err
	}
	if !ok {
		return ErrMissingLogEntry
	}
	if existing.Term != rl.localTerm() {
		rl.logger.Warnw("refusing commit for stale term",
			"index", entry.Index, "entryTerm", existing.Term, "localTerm", rl.localTerm())
		return ErrStaleTermCommit
	}

	if err := rl.commitEntriesUntilLocked(entry.Index, true); err != nil {
		return err
	}
	return rl.safeCommitLocked(entry.Index)
}

func (rl *RLog) localTerm() TermNo {
	return TermNo(rl.cluster.LocalTerm())
}

// commitEntriesUntilLocked walks commitIndex+1 .. target (or target-1 if
// exclusive), calling safeCommitLocked for each index in turn. A missing
// intermediate entry is tolerated: safeCommitLocked simply does nothing
// for it, and iteration continues to the next index. Per spec.md §9's
// flagged open question, this means commitIndex can advance directly to a
// later present index even past an earlier hole; the Cluster is relied
// upon to eventually deliver the hole via a subsequent AppendEntries.
func (rl *RLog) commitEntriesUntilLocked(target LogIndex, exclusive bool) error {
	upTo := target
	if exclusive {
		upTo = target - 1
	}

	start := LogIndex(rl.commitIndex.Get()) + 1
	for i := start; i <= upTo; i++ {
		if err := rl.safeCommitLocked(i); err != nil {
			return err
		}
	}
	return nil
}

// safeCommitLocked commits index i if its entry exists and i is beyond the
// current commit index. Stale/duplicate requests (i <= commitIndex, or a
// missing entry) are logged and ignored.
func (rl *RLog) safeCommitLocked(i LogIndex) error {
	e, ok, err := rl.getLogEntryLocked(i)
	if err != nil {
		return err
	}
	if !ok {
		rl.logger.Debugw("safeCommit: entry not yet present, skipping", "index", i)
		return nil
	}

	applied, err := rl.commitIndex.AdvanceIfGreater(int64(i))
	if err != nil {
		return err
	}
	if !applied {
		rl.logger.Debugw("safeCommit: index already committed, ignoring", "index", i)
		return nil
	}

	if err := rl.db.CommitIndex().Set(int64(i)); err != nil {
		return err
	}

	_, err = rl.executeLocked(e.Command)
	return err
}

// executeLocked dispatches a committed command to its effect: the state
// machine for Write/Read commands, the Cluster for joint-consensus
// follow-up, or nothing for NoOp/LeaveJointConsensus/CompactedEntry.
func (rl *RLog) executeLocked(cmd Command) (interface{}, error) {
	switch cmd.Kind {
	case CommandNoOp, CommandLeaveJointConsensus, CommandCompacted:
		return nil, nil

	case CommandEnterJointConsensus:
		bindings := make([]membership.ServerID, len(cmd.Bindings))
		for i, id := range cmd.Bindings {
			bindings[i] = membership.ServerID(id)
		}
		req := membership.MajorityJointConsensus{Bindings: membership.Bindings{New: bindings}}
		go func() {
			if err := rl.cluster.On(context.Background(), req); err != nil {
				rl.logger.Warnw("joint consensus did not reach majority, awaiting retry", "error", err)
			}
		}()
		return nil, nil

	case CommandWrite, CommandRead:
		return rl.sm.Apply(cmd.Payload)

	default:
		return nil, nil
	}
}

// ExecuteRead applies a read payload directly to the state machine without
// touching the commit index. This is the "execute(readCommand)" operation
// of spec.md §4.C: a read that does not need to be part of the committed
// log sequence.
func (rl *RLog) ExecuteRead(payload []byte) (interface{}, error) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return rl.sm.Apply(payload)
}

// CommitIndex returns the current commit index.
func (rl *RLog) CommitIndex() LogIndex {
	return LogIndex(rl.commitIndex.Get())
}
