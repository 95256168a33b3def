// Package scheduler implements the expiry + eviction background task:
// a singleton start/stop ticker loop in the style of a periodic
// cluster health-check loop, submitting its tick work through the worker
// pool rather than running storage I/O directly on the ticker goroutine.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"formbridge.dev/formbridge/internal/pkg/logger"
	"formbridge.dev/formbridge/internal/pkg/worker"
	"formbridge.dev/formbridge/internal/submission"
)

// SubmissionExpirer is the scheduler's dependency on the submission
// manager: it only needs the ability to force an expire transition, not
// the full manager surface.
type SubmissionExpirer interface {
	ExpireSubmission(ctx context.Context, submissionID string) error
}

// Scheduler is the process-wide expiry+eviction task. It is safe for a
// single instance per process; Start is not reentrant. Stop is safe to call
// more than once.
type Scheduler struct {
	store submission.Store
	expirer SubmissionExpirer
	pools *worker.Pools
	interval time.Duration
	maxEntries int

	stopCh chan struct{}
	stopOnce sync.Once
}

// New creates a Scheduler. interval defaults to 60s and maxEntries to
// "no eviction" (0 is treated as unbounded) when zero-valued.
func New(store submission.Store, expirer SubmissionExpirer, pools *worker.Pools, interval time.Duration, maxEntries int) *Scheduler {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Scheduler{
		store: store,
		expirer: expirer,
		pools: pools,
		interval: interval,
		maxEntries: maxEntries,
		stopCh: make(chan struct{}),
	}
}

// Start begins the ticker loop. Each tick's work is submitted through the
// worker pool so storage I/O never runs directly on the ticker goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				if err := s.pools.SubmitDetached("general", s.tick); err != nil {
					logger.Warn("failed to submit scheduler tick", zap.Error(err))
				}
			}
		}
	}()
}

// Stop ends the ticker loop; guaranteed to release on process shutdown.
// Guarded by sync.Once so a second Stop call never double-closes stopCh.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

// tick performs one pass: expire anything past its TTL, then evict
// terminal-state records down to maxEntries. Both steps are idempotent
// under restart — an already-expired submission is simply skipped by
// ListExpiring (it is terminal), and eviction only ever removes records
// already in a terminal state.
func (s *Scheduler) tick(ctx context.Context) {
	expiring, err := s.store.ListExpiring(ctx, time.Now())
	if err != nil {
		logger.Error("scheduler: list expiring submissions failed", zap.Error(err))
	} else {
		for _, sub := range expiring {
			if err := s.expirer.ExpireSubmission(ctx, sub.ID); err != nil {
				logger.Warn("scheduler: expire submission failed",
					logger.SubmissionField(sub.ID), zap.Error(err))
			}
		}
	}

	if s.maxEntries <= 0 {
		return
	}
	evicted, err := s.store.EvictTerminal(ctx, s.maxEntries)
	if err != nil {
		logger.Error("scheduler: evict terminal submissions failed", zap.Error(err))
		return
	}
	if evicted > 0 {
		logger.Info("scheduler: evicted terminal submissions",
			zap.Int("count", evicted), zap.Int("max_entries", s.maxEntries))
	}
}
