package scheduler

import (
	"context"
	"log/slog"
	"time"

	"refurb_tracker/internal/domain"
)

// CycleRunner defines the interface for tracking cycle operations.
type CycleRunner interface {
	RunCycle(ctx context.Context) domain.CycleStats
}

// SummaryRunner delivers any daily summaries that have come due.
type SummaryRunner interface {
	RunPending(ctx context.Context)
}

type Scheduler struct {
	tracker         CycleRunner
	summary         SummaryRunner
	cycleInterval   time.Duration
	summaryInterval time.Duration
	summaryTimeout  time.Duration
	logger          *slog.Logger
}

func NewScheduler(
	tracker CycleRunner,
	summary SummaryRunner,
	cycleInterval, summaryInterval time.Duration,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		tracker:         tracker,
		summary:         summary,
		cycleInterval:   cycleInterval,
		summaryInterval: summaryInterval,
		summaryTimeout:  5 * time.Minute,
		logger:          logger,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started",
		"cycle_interval", s.cycleInterval,
		"summary_interval", s.summaryInterval,
	)

	s.runCycle(ctx)

	cycleTicker := time.NewTicker(s.cycleInterval)
	defer cycleTicker.Stop()
	summaryTicker := time.NewTicker(s.summaryInterval)
	defer summaryTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-cycleTicker.C:
			s.runCycle(ctx)
		case <-summaryTicker.C:
			s.runSummary(ctx)
		}
	}
}

// The tracking cycle runs under the scheduler context only. A deadline
// here could cancel the history write after notifications went out;
// overlap is prevented by the cycle's single-flight guard.
func (s *Scheduler) runCycle(ctx context.Context) {
	s.tracker.RunCycle(ctx)
}

func (s *Scheduler) runSummary(ctx context.Context) {
	summaryCtx, cancel := context.WithTimeout(ctx, s.summaryTimeout)
	defer cancel()

	s.summary.RunPending(summaryCtx)
}
