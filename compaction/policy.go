// Package compaction implements the fixed-size compaction policy: decide
// when a snapshot is due, and drive the log compactor at most once
// concurrently, off the request thread, without blocking callers.
package compaction

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Compactor produces a snapshot from the current committed state and
// prunes the entries it covers. Its implementation is out of scope for
// this package (see spec.md §4.E) -- Policy only guarantees it runs at
// most once concurrently and is dispatched asynchronously.
type Compactor interface {
	Compact(ctx context.Context) error
}

// Policy evaluates, on every append path, whether the log has reached its
// configured threshold and if so dispatches the Compactor at most once
// concurrently. A bounded worker pool (capacity 2, per spec.md §4.E) keeps
// compaction dispatch off commit-path goroutines without letting an
// unbounded number of evaluations pile up; submissions above capacity are
// rejected synchronously, which is benign because the next append
// re-evaluates.
type Policy struct {
	logSize   int
	compactor Compactor
	logger    *zap.SugaredLogger

	compacting int32 // CAS guard: 0 = idle, 1 = compaction in flight
	sem        *semaphore.Weighted
}

// poolCapacity bounds how many compaction dispatches may be in flight (as
// opposed to running) at once. It is deliberately small so compaction
// dispatch can never starve commit-path goroutines; see spec.md §4.E.
const poolCapacity = 2

// NewPolicy returns a Policy that triggers compactor once the log holds at
// least logSize entries, subject to the single-flight and pool-capacity
// constraints described above.
func NewPolicy(logSize int, compactor Compactor, logger *zap.SugaredLogger) *Policy {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Policy{
		logSize:   logSize,
		compactor: compactor,
		logger:    logger,
		sem:       semaphore.NewWeighted(poolCapacity),
	}
}

// Evaluate is called from the append path (tryAppend/append) with the
// current entry count. If the threshold is reached and no compaction is
// already running, it dispatches one asynchronously; otherwise it returns
// immediately having done nothing. Evaluate never blocks.
func (p *Policy) Evaluate(entryCount int) {
	if entryCount < p.logSize {
		return
	}
	if !atomic.CompareAndSwapInt32(&p.compacting, 0, 1) {
		return // a compaction is already in flight
	}

	if !p.sem.TryAcquire(1) {
		// Pool is full; benign -- release the single-flight guard so the
		// next append's Evaluate call can try again.
		atomic.StoreInt32(&p.compacting, 0)
		return
	}

	go func() {
		defer p.sem.Release(1)
		defer atomic.StoreInt32(&p.compacting, 0)

		if err := p.compactor.Compact(context.Background()); err != nil {
			p.logger.Warnw("compaction failed", "error", err)
		}
	}()
}

// Compacting reports whether a compaction is currently in flight, mainly
// for tests asserting single-flight behavior.
func (p *Policy) Compacting() bool {
	return atomic.LoadInt32(&p.compacting) != 0
}
