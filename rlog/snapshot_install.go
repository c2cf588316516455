package rlog

import (
	"time"

	"github.com/samborder/rlog/store"
)

// This file implements the Snapshot Installer (spec.md §4.F). It runs
// under RLog's exclusive lock for its whole duration: no other operation
// may ever observe a partially-installed snapshot.

// InstallSnapshot atomically replaces the state machine's contents, the
// commit index, and the cluster's membership from a received snapshot,
// and records the snapshot itself in the durable snapshot store. It
// returns true on success. An interrupted install (a non-nil error) must
// leave the previous snapshot and commit index intact -- every mutation
// below happens only after every fallible step (serialization, the
// durable writes) has already succeeded.
func (rl *RLog) InstallSnapshot(snap Snapshot) (bool, error) {
	if snap.CreatedAt == 0 {
		snap.CreatedAt = time.Now().UnixNano()
	}

	raw, err := encodeSnapshot(snap)
	if err != nil {
		return false, err
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if err := rl.db.Snapshots().Put(snap.CreatedAt, raw); err != nil {
		return false, err
	}

	if err := rl.sm.Deserialize(snap.StateMachineState); err != nil {
		return false, err
	}

	if err := rl.db.CommitIndex().Set(int64(snap.LastIncludedIndex)); err != nil {
		return false, err
	}
	if err := rl.commitIndex.UnsafeSet(int64(snap.LastIncludedIndex)); err != nil {
		rl.logger.Warnw("commit index listener failed during snapshot install", "error", err)
	}

	if err := rl.cluster.RestoreMembership(snap.Membership); err != nil {
		return false, err
	}

	snapCopy := snap
	rl.snapshot = &snapCopy

	if idx := rl.lastLog.Load(); int64(snap.LastIncludedIndex) > idx {
		rl.lastLog.Store(int64(snap.LastIncludedIndex))
	}

	if err := store.KeepLatestN(rl.db.Snapshots(), rl.retention); err != nil {
		rl.logger.Warnw("snapshot retention pruning failed after install", "error", err)
	}

	return true, nil
}
