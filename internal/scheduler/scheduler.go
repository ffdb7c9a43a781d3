// Package scheduler triggers ingestion cycles on a fixed interval and on demand.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/PratikDhanave/audit-sync-monitor/internal/models"
)

// Runner runs one ingestion cycle for a status.
type Runner interface {
	RunCycle(ctx context.Context, status models.Status) (*models.SyncEntry, error)
}

// CycleResult is the outcome of one cycle. Entry is nil when nothing new was
// found or when Err is set.
type CycleResult struct {
	Status models.Status
	Entry  *models.SyncEntry
	Err    error
}

// Scheduler polls the periodic statuses sequentially on every tick. A tick that
// arrives while the previous firing is still running is skipped.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	periodic []models.Status
	all      []models.Status
	logger   *slog.Logger

	firing atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a Scheduler for the periodic statuses; manual-only statuses are
// reached through CollectNow.
func New(r Runner, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		runner:   r,
		interval: interval,
		periodic: models.PeriodicStatuses(),
		all:      models.AllStatuses(),
		logger:   logger,
	}
}

// Start launches the ticker loop. It returns immediately; the loop ends when
// ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx, s.done)
	s.logger.Info("scheduler started", "interval", s.interval.String(), "statuses", s.periodic)
}

// Stop ends the loop and waits for an in-flight firing to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one periodic firing unless the previous one is still in progress.
// It reports whether the firing ran.
func (s *Scheduler) Tick(ctx context.Context) bool {
	if !s.firing.CompareAndSwap(false, true) {
		s.logger.Warn("previous firing still running, skipping tick")
		return false
	}
	defer s.firing.Store(false)

	s.RunPeriodic(ctx)
	return true
}

// RunPeriodic runs the periodic statuses one after another. A failure does not
// stop the remaining statuses.
func (s *Scheduler) RunPeriodic(ctx context.Context) []CycleResult {
	results := make([]CycleResult, 0, len(s.periodic))
	for _, st := range s.periodic {
		if ctx.Err() != nil {
			break
		}
		entry, err := s.runner.RunCycle(ctx, st)
		results = append(results, CycleResult{Status: st, Entry: entry, Err: err})
	}
	return results
}

// CollectNow runs every status, periodic and manual-only, in parallel.
// Results are returned in status order.
func (s *Scheduler) CollectNow(ctx context.Context) []CycleResult {
	results := make([]CycleResult, len(s.all))

	var g errgroup.Group
	for i, st := range s.all {
		i, st := i, st
		g.Go(func() error {
			entry, err := s.runner.RunCycle(ctx, st)
			results[i] = CycleResult{Status: st, Entry: entry, Err: err}
			// per-status errors stay in results
			return nil
		})
	}
	_ = g.Wait()
	return results
}
