// Package worker holds the background loops run by cmd/worker.
package worker

import (
	"context"
	"log"
	"time"

	"github.com/ignite/spark-tracker/internal/domain"
	"github.com/ignite/spark-tracker/internal/pkg/distlock"
)

// =============================================================================
// EXPIRY SWEEPER: moves Sparks past their expiry to the expired status
// =============================================================================
// Reads already treat a past-expiry Spark as expired, so the sweeper only has
// to make that visible in stored status and listings. One replica sweeps at a
// time under a distributed lock. Expired records are optionally archived to
// S3 as a final snapshot.

const (
	// DefaultSweepInterval is how often the sweep cycle runs.
	DefaultSweepInterval = 5 * time.Minute

	// DefaultSweepBatch bounds each ExpireDue call.
	DefaultSweepBatch = 200

	// maxRoundsPerSweep caps a single cycle so a huge backlog can't hold the
	// lock past its TTL.
	maxRoundsPerSweep = 50

	lockKey = "expiry-sweeper"
)

// Expirer expires due Sparks. *tracker.Service implements it.
type Expirer interface {
	ExpireDue(ctx context.Context, limit int) ([]domain.EngagementRecord, error)
}

// Archiver stores a final snapshot of an expired Spark. *storage.Archiver
// implements it.
type Archiver interface {
	Archive(ctx context.Context, rec *domain.EngagementRecord) (string, error)
}

// extender is implemented by locks whose lease can be renewed mid-sweep.
type extender interface {
	Extend(ctx context.Context, ttl time.Duration) error
}

// SweepResult summarizes one sweep cycle.
type SweepResult struct {
	Acquired bool
	Expired  int
	Archived int
	Rounds   int
}

// ExpirySweeper periodically expires Sparks whose expiry has passed.
type ExpirySweeper struct {
	expirer  Expirer
	lock     distlock.Lock
	archiver Archiver
	interval time.Duration
	batch    int
	lockTTL  time.Duration
}

// NewExpirySweeper creates a sweeper. archiver may be nil. lockTTL is the
// lease renewed between batches on locks that support it.
func NewExpirySweeper(e Expirer, lock distlock.Lock, archiver Archiver, interval time.Duration, batch int, lockTTL time.Duration) *ExpirySweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if batch <= 0 {
		batch = DefaultSweepBatch
	}
	if lockTTL <= 0 {
		lockTTL = interval
	}
	return &ExpirySweeper{expirer: e, lock: lock, archiver: archiver, interval: interval, batch: batch, lockTTL: lockTTL}
}

// LockKey is the distributed lock name shared by every sweeper replica.
func LockKey() string { return lockKey }

// Start runs the sweep loop. It blocks until ctx is cancelled.
func (s *ExpirySweeper) Start(ctx context.Context) {
	log.Printf("[ExpirySweeper] Starting (interval=%s, batch_size=%d)", s.interval, s.batch)

	// Run once immediately on start
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[ExpirySweeper] Stopping")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *ExpirySweeper) runOnce(ctx context.Context) {
	start := time.Now()
	res, err := s.Sweep(ctx)
	if err != nil {
		log.Printf("[ExpirySweeper] Sweep failed after %d expired: %v", res.Expired, err)
		return
	}
	if !res.Acquired {
		log.Println("[ExpirySweeper] Another replica holds the lock, skipping")
		return
	}
	if res.Expired > 0 {
		log.Printf("[ExpirySweeper] Expired %d sparks (%d archived) in %s",
			res.Expired, res.Archived, time.Since(start).Round(time.Millisecond))
	}
}

// Sweep runs one cycle: take the lock, expire due Sparks batch by batch and
// archive them. It returns without work when another holder has the lock.
func (s *ExpirySweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	ok, err := s.lock.TryAcquire(ctx)
	if err != nil || !ok {
		return res, err
	}
	res.Acquired = true
	defer func() {
		if err := s.lock.Release(context.Background()); err != nil {
			log.Printf("[ExpirySweeper] Release lock: %v", err)
		}
	}()

	for res.Rounds < maxRoundsPerSweep {
		res.Rounds++
		expired, err := s.expirer.ExpireDue(ctx, s.batch)
		res.Expired += len(expired)
		res.Archived += s.archive(ctx, expired)
		if err != nil {
			return res, err
		}
		if len(expired) < s.batch {
			break
		}
		if ext, ok := s.lock.(extender); ok {
			if err := ext.Extend(ctx, s.lockTTL); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

func (s *ExpirySweeper) archive(ctx context.Context, recs []domain.EngagementRecord) int {
	if s.archiver == nil {
		return 0
	}
	n := 0
	for i := range recs {
		key, err := s.archiver.Archive(ctx, &recs[i])
		if err != nil {
			log.Printf("[ExpirySweeper] Archive %s: %v", recs[i].ID, err)
			continue
		}
		log.Printf("[ExpirySweeper] Archived %s to %s", recs[i].ID, key)
		n++
	}
	return n
}
