// Package worker runs the background duties of the worker process: the
// periodic duplicate merge and the metrics endpoint.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cellcare/cellcare_backend/internal/service/dedup"
)

type Merger interface {
	MergeAllDuplicates(ctx context.Context) dedup.MergeReport
}

// Scheduler runs a full duplicate merge every interval. Runs never overlap.
type Scheduler struct {
	merger     Merger
	interval   time.Duration
	runOnStart bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(merger Merger, interval time.Duration, runOnStart bool) *Scheduler {
	return &Scheduler{merger: merger, interval: interval, runOnStart: runOnStart}
}

// Start launches the loop and returns immediately.
func (s *Scheduler) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx)
	slog.Info("dedup_worker: started", "interval", s.interval, "run_on_start", s.runOnStart)
	return nil
}

// Stop cancels the loop and waits for an in-flight run to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		slog.Info("dedup_worker: stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	if s.runOnStart {
		s.RunOnce(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single merge pass.
func (s *Scheduler) RunOnce(ctx context.Context) dedup.MergeReport {
	report := s.merger.MergeAllDuplicates(ctx)
	if report.Errors > 0 {
		slog.Warn("dedup_worker: run finished with errors",
			"customers", report.CustomersProcessed,
			"merged", report.RecordsMerged,
			"errors", report.Errors,
		)
	}
	return report
}
