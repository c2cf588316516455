package rlog

// This file implements the Recovery path (spec.md §4.G): rebuilding an
// RLog's in-memory state from whatever a durable store already holds, so
// that a restarted process resumes exactly where it left off without
// re-executing anything twice.

// recover loads the latest snapshot (if any), applies it to sm and
// cluster, then replays every entry between the snapshot's boundary and
// the durable commit index against sm and cluster in order. It finishes
// by caching the durable commit index in the in-memory watch and
// refreshing lastLog. Called once, from New, before the RLog is returned
// to its caller.
func (rl *RLog) recover() error {
	if err := rl.loadSnapshotLocked(); err != nil {
		return err
	}

	durableCommit, err := rl.db.CommitIndex().Get()
	if err != nil {
		return err
	}

	if err := rl.replayLocked(LogIndex(durableCommit)); err != nil {
		return err
	}

	if err := rl.commitIndex.UnsafeSet(durableCommit); err != nil {
		return err
	}

	lastLog, err := rl.findLastLogIndex()
	if err != nil {
		return err
	}
	if rl.snapshot != nil && rl.snapshot.LastIncludedIndex > lastLog {
		lastLog = rl.snapshot.LastIncludedIndex
	}
	rl.lastLog.Store(int64(lastLog))

	return nil
}

// loadSnapshotLocked reads the newest snapshot from the durable store, if
// any, decodes it, and applies its effects to sm and cluster. No lock is
// held yet at this point (recover runs before New returns rl to any other
// goroutine), so "Locked" here only documents that it mutates rl.snapshot
// directly, as every other write to that field does under rl.mu.
func (rl *RLog) loadSnapshotLocked() error {
	_, raw, ok, err := rl.db.Snapshots().LastEntry()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	snap, err := decodeSnapshot(raw)
	if err != nil {
		return err
	}

	if err := rl.sm.Deserialize(snap.StateMachineState); err != nil {
		return err
	}
	if err := rl.cluster.RestoreMembership(snap.Membership); err != nil {
		return err
	}

	rl.snapshot = &snap
	return nil
}

// replayLocked re-executes every committed entry strictly above the
// snapshot's boundary and up to upTo (inclusive) against sm and cluster,
// in index order. Entries already folded into the loaded snapshot are not
// replayed again. A hole in this range is a corrupt store: recovery
// cannot proceed past a gap the way a live commit can tolerate one, since
// there is no leader to eventually resend it.
func (rl *RLog) replayLocked(upTo LogIndex) error {
	start := rl.firstIndex()
	for i := start; i <= upTo; i++ {
		e, ok, err := rl.getLogEntryLocked(i)
		if err != nil {
			return err
		}
		if !ok {
			return ErrMissingLogEntry
		}
		if err := rl.afterAppendLocked(e); err != nil {
			return err
		}
		if _, err := rl.executeLocked(e.Command); err != nil {
			return err
		}
	}
	return nil
}
