package rlog

// This file implements the Log Manipulator (spec.md §4.D): TryAppend,
// Append, ContainsEntry, and the entry-lookup family. Every exported
// method here that reads the log takes RLog's shared (read) lock; the
// exclusive lock is taken only by InstallSnapshot (see
// snapshot_install.go) and by compaction's snapshot-build step (see
// compactor.go). Concurrent callers are
// safe because of invariant 3: accepting a second entry at the same
// (index, term) is a no-op, and the durable store gives per-key atomicity.

// TryAppend validates and appends a follower-side AppendEntries request.
// It returns true iff the log already contains an entry matching
// (ae.PrevLogIndex, ae.PrevLogTerm), or that pair is the (-1, -1)
// sentinel, or it is covered by the current snapshot. If acceptable, every
// supplied entry is inserted idempotently, commit is advanced up to the
// leader's reported commit index (through entries actually present), and
// compaction is asynchronously re-evaluated.
//
// Per spec.md §4.D, TryAppend does not resolve index collisions at a
// different term by truncating the tail: it assumes leader discipline
// ensures no such conflict arises, and simply skips a duplicate at the
// same (index, term). See DESIGN.md's Open Question resolution.
func (rl *RLog) TryAppend(ae AppendEntries) (bool, error) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	ok, err := rl.containsEntryLocked(ae.PrevLogIndex, ae.PrevLogTerm)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	for _, e := range ae.Entries {
		if err := rl.appendOneLocked(e); err != nil {
			return false, err
		}
	}

	if err := rl.commitEntriesUntilLocked(ae.CommitIndex, false); err != nil {
		return false, err
	}

	go rl.evaluateCompaction()
	return true, nil
}

// Append is the leader-side local append: it inserts entries idempotently
// without touching the commit index, then asynchronously re-evaluates
// compaction.
func (rl *RLog) Append(entries []LogEntry) error {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	for _, e := range entries {
		if err := rl.appendOneLocked(e); err != nil {
			return err
		}
	}

	go rl.evaluateCompaction()
	return nil
}

// appendOneLocked inserts a single entry, skipping it if an entry with the
// same (index, term) is already present (invariant 3). Joint-consensus
// side effects are delivered to the Cluster collaborator here, at append
// time, not at commit time, per spec.md §4.D.
//
// Caller must hold at least the shared lock.
func (rl *RLog) appendOneLocked(e LogEntry) error {
	existing, ok, err := rl.getLogEntryLocked(e.Index)
	if err != nil {
		return err
	}
	if ok {
		if existing.sameIdentity(e) {
			rl.logger.Warnw("duplicate append, skipping", "index", e.Index, "term", e.Term, "error", ErrDuplicateAppend)
			return nil
		}
		// Index collision at a different term: per spec.md §4.D this log
		// core does not reject or truncate -- it trusts leader discipline
		// to never present this. We still surface it at warn so a
		// misbehaving leader is visible in logs.
		rl.logger.Warnw("index collision with different term, keeping existing entry",
			"index", e.Index, "existingTerm", existing.Term, "newTerm", e.Term)
		return nil
	}

	raw, err := encodeLogEntry(e)
	if err != nil {
		return err
	}
	if err := rl.db.Entries().Put(int64(e.Index), raw); err != nil {
		return err
	}

	if idx := rl.lastLog.Load(); int64(e.Index) > idx {
		rl.lastLog.CompareAndSwap(idx, int64(e.Index))
	}

	return rl.afterAppendLocked(e)
}

// afterAppendLocked delivers EnterJointConsensus/LeaveJointConsensus side
// effects to the Cluster collaborator immediately, activating the new
// configuration eagerly per Raft joint-consensus rules.
func (rl *RLog) afterAppendLocked(e LogEntry) error {
	switch e.Command.Kind {
	case CommandEnterJointConsensus:
		return rl.cluster.Apply(membershipCommandFor(e.Command))
	case CommandLeaveJointConsensus:
		return rl.cluster.Apply(membershipCommandFor(e.Command))
	default:
		return nil
	}
}

// ContainsEntry reports whether the log (or the current snapshot) has an
// entry matching (index, term), or whether (index, term) is the (-1, -1)
// sentinel.
func (rl *RLog) ContainsEntry(index LogIndex, term TermNo) (bool, error) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return rl.containsEntryLocked(index, term)
}

func (rl *RLog) containsEntryLocked(index LogIndex, term TermNo) (bool, error) {
	if index == NoPrevIndex && term == NoPrevTerm {
		return true, nil
	}
	if rl.snapshot.covers(index, term) {
		return true, nil
	}
	e, ok, err := rl.getLogEntryLocked(index)
	if err != nil {
		return false, err
	}
	return ok && e.Term == term, nil
}

// GetLogEntry returns the entry at the given index, or ok=false if absent.
// This does not consult the snapshot: a snapshot-covered index has no
// discrete LogEntry of its own except the synthetic one GetLastLogEntry
// may return for the snapshot's own boundary.
func (rl *RLog) GetLogEntry(index LogIndex) (LogEntry, bool, error) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return rl.getLogEntryLocked(index)
}

func (rl *RLog) getLogEntryLocked(index LogIndex) (LogEntry, bool, error) {
	if index <= 0 {
		return LogEntry{}, false, nil
	}
	raw, ok, err := rl.db.Entries().Get(int64(index))
	if err != nil || !ok {
		return LogEntry{}, false, err
	}
	e, err := decodeLogEntry(raw)
	return e, err == nil, err
}

// GetPreviousLogEntry returns the entry immediately preceding e. If e's
// predecessor index is exactly the snapshot's last-included index, the
// synthetic compacted entry is returned.
func (rl *RLog) GetPreviousLogEntry(e LogEntry) (LogEntry, bool, error) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	prevIndex := e.Index - 1
	if prevIndex <= 0 {
		return LogEntry{}, false, nil
	}
	if rl.snapshot != nil && rl.snapshot.LastIncludedIndex == prevIndex {
		return rl.snapshot.compactedEntry(), true, nil
	}
	return rl.getLogEntryLocked(prevIndex)
}

// GetLastLogEntry returns the entry at the current last index. If the real
// last index in the store is covered by the snapshot (i.e. there are no
// entries past it), a synthetic CommandCompacted entry for the snapshot's
// boundary is returned instead. ok is false only when the log is entirely
// empty and there is no snapshot.
func (rl *RLog) GetLastLogEntry() (LogEntry, bool, error) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	maxIdx, err := rl.findLastLogIndex()
	if err != nil {
		return LogEntry{}, false, err
	}

	if rl.snapshot != nil && maxIdx <= rl.snapshot.LastIncludedIndex {
		return rl.snapshot.compactedEntry(), true, nil
	}
	if maxIdx == 0 {
		return LogEntry{}, false, nil
	}
	return rl.getLogEntryLocked(maxIdx)
}

// NextLogIndex atomically allocates and returns the next index to use for
// a new leader-local append.
func (rl *RLog) NextLogIndex() LogIndex {
	return rl.nextLogIndex()
}

// FindLastLogIndex returns the maximum index present in the entries store,
// or 0 if empty. It does not consider the snapshot.
func (rl *RLog) FindLastLogIndex() (LogIndex, error) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return rl.findLastLogIndex()
}

