package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refurb_tracker/internal/domain"
)

type captureCycleRunner struct {
	runs        int
	hadDeadline bool
}

func (c *captureCycleRunner) RunCycle(ctx context.Context) domain.CycleStats {
	c.runs++
	_, c.hadDeadline = ctx.Deadline()
	return domain.CycleStats{}
}

type captureSummaryRunner struct {
	runs        int
	hadDeadline bool
}

func (c *captureSummaryRunner) RunPending(ctx context.Context) {
	c.runs++
	_, c.hadDeadline = ctx.Deadline()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunCycleHasNoDeadline(t *testing.T) {
	tracker := &captureCycleRunner{}
	sched := NewScheduler(tracker, &captureSummaryRunner{}, time.Hour, 10*time.Minute, testLogger())

	sched.runCycle(context.Background())

	require.Equal(t, 1, tracker.runs)
	assert.False(t, tracker.hadDeadline, "tracking cycle must not run under a deadline")
}

func TestRunSummaryBounded(t *testing.T) {
	summary := &captureSummaryRunner{}
	sched := NewScheduler(&captureCycleRunner{}, summary, time.Hour, 10*time.Minute, testLogger())

	sched.runSummary(context.Background())

	require.Equal(t, 1, summary.runs)
	assert.True(t, summary.hadDeadline)
}

func TestStartRunsFirstCycleAndStopsOnCancel(t *testing.T) {
	tracker := &captureCycleRunner{}
	sched := NewScheduler(tracker, &captureSummaryRunner{}, time.Hour, 10*time.Minute, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sched.Start(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, tracker.runs)
}
