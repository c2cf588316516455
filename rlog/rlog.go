package rlog

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/samborder/rlog/compaction"
	"github.com/samborder/rlog/internal/watch"
	"github.com/samborder/rlog/membership"
	"github.com/samborder/rlog/statemachine"
	"github.com/samborder/rlog/store"
)

// DefaultSnapshotRetention is the number of snapshots KeepLatestN retains
// after each successful snapshot write when New is given a non-positive
// retention value. Resolves spec.md §9's open question about unbounded
// growth of the snapshots map.
const DefaultSnapshotRetention = 3

// RLog is the replicated log core: it owns the ordered sequence of
// replicated commands, commits entries against sm in index order, and
// drives snapshot compaction and installation.
//
// Concurrency: one sync.RWMutex protects everything below. Append,
// Commit, ExecuteRead, and the ContainsEntry/GetLogEntry family of reads
// all take the shared (read) lock; the exclusive (write) lock is taken by
// InstallSnapshot and, briefly, by compaction's snapshot-build step (see
// compactor.go). Serialization of concurrent appends against each other is
// not the lock's job -- it relies on the idempotent-insertion rule
// (duplicate (index, term) pairs are no-ops) and the durable store's
// per-key atomicity. See spec.md §5.
type RLog struct {
	mu sync.RWMutex

	db      store.DB
	sm      statemachine.StateMachine
	cluster membership.Cluster
	logger  *zap.SugaredLogger

	// commitIndex mirrors the durable commit index in memory. It is
	// guarded by its own private mutex (see New), not by mu;
	// UnsafeGet/UnsafeSet are used only where mu is held exclusively or
	// before New returns, when no other goroutine can touch it. This
	// package registers no listeners on it.
	commitIndex *watch.WatchedIndex

	// lastLog is the highest index allocated or appended so far; the next
	// index to allocate is lastLog+1. It is set from the store (and the
	// snapshot boundary) at recovery, advanced by nextLogIndex and by
	// appends past it, and raised to the snapshot boundary by
	// InstallSnapshot.
	lastLog atomic.Int64

	// snapshot caches the latest installed/recovered snapshot, or nil if
	// none exists yet. Written only by InstallSnapshot (under the
	// exclusive lock) and by recovery (before any other access is
	// possible); read under at least the shared lock everywhere else.
	snapshot *Snapshot

	// retention is how many snapshots KeepLatestN keeps after every
	// successful snapshot write (both InstallSnapshot and compaction).
	// Set once at construction from the snapshotRetention argument to New.
	retention int

	policy *compaction.Policy
}

// New constructs an RLog over db, applying db, sm, and cluster's committed
// history so far: it loads the latest snapshot if any, replays committed
// entries past it into sm, and initializes the volatile lastLog counter.
// See spec.md §4.G. snapshotRetention configures how many snapshots
// KeepLatestN keeps after each write; a non-positive value falls back to
// DefaultSnapshotRetention.
func New(db store.DB, sm statemachine.StateMachine, cluster membership.Cluster, logger *zap.SugaredLogger, snapshotRetention int) (*RLog, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if snapshotRetention <= 0 {
		snapshotRetention = DefaultSnapshotRetention
	}

	rl := &RLog{
		db:        db,
		sm:        sm,
		cluster:   cluster,
		logger:    logger,
		retention: snapshotRetention,
	}
	// commitIndex gets its own private lock rather than sharing rl.mu:
	// safeCommit and tryAppend/append only ever hold rl.mu in shared
	// (read) mode, but multiple goroutines can hold a read lock at once,
	// so advancing the in-memory commit index still needs its own
	// exclusion independent of rl.mu's mode.
	rl.commitIndex = watch.New(&sync.Mutex{})

	if err := rl.recover(); err != nil {
		return nil, err
	}

	rl.policy = compaction.NewPolicy(cluster.FixedLogSizeCompaction(), &logCompactor{rl}, logger)

	return rl, nil
}

// nextLogIndex atomically allocates and returns the next index to use for
// a new leader-local append. Indices are dense and monotonically
// increasing within this process.
func (rl *RLog) nextLogIndex() LogIndex {
	return LogIndex(rl.lastLog.Add(1))
}

// findLastLogIndex returns the maximum key present in the entries store,
// or 0 if it is empty. Used at construction (recovery) and by
// GetLastLogEntry/FindLastLogIndex.
func (rl *RLog) findLastLogIndex() (LogIndex, error) {
	key, ok, err := rl.db.Entries().LastKey()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return LogIndex(key), nil
}

// firstIndex returns the first index this log can legitimately hold: the
// index right after the current snapshot's coverage, or 1 if there is no
// snapshot. Caller must hold at least the shared lock.
func (rl *RLog) firstIndex() LogIndex {
	if rl.snapshot == nil {
		return 1
	}
	return rl.snapshot.LastIncludedIndex + 1
}

// evaluateCompaction asynchronously asks the compaction policy to
// consider whether a snapshot is due. Called after every append path,
// outside of the lock so it never contends with the next append.
func (rl *RLog) evaluateCompaction() {
	size, err := rl.db.Entries().Size()
	if err != nil {
		rl.logger.Warnw("compaction evaluation could not read entries size", "error", err)
		return
	}
	rl.policy.Evaluate(size)
}
