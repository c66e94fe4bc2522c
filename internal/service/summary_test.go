package service

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"refurb_tracker/internal/domain"
	"refurb_tracker/internal/notify"
	"refurb_tracker/internal/service/mocks"
)

type SummaryTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	catalog     *mocks.MockCatalog
	snapshots   *mocks.MockSnapshotStore
	subscribers *mocks.MockSubscriberStore
	auditLog    *mocks.MockNotificationLog
	notifier    *mocks.MockNotifier

	summary *Summary
	now     time.Time
}

func (s *SummaryTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.catalog = mocks.NewMockCatalog(s.ctrl)
	s.snapshots = mocks.NewMockSnapshotStore(s.ctrl)
	s.subscribers = mocks.NewMockSubscriberStore(s.ctrl)
	s.auditLog = mocks.NewMockNotificationLog(s.ctrl)
	s.notifier = mocks.NewMockNotifier(s.ctrl)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s.now = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	s.summary = NewSummary(
		s.catalog,
		s.snapshots,
		s.subscribers,
		s.auditLog,
		s.notifier,
		30,
		time.UTC,
		logger,
	)
	s.summary.now = func() time.Time { return s.now }
}

func (s *SummaryTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestSummaryTestSuite(t *testing.T) {
	suite.Run(t, new(SummaryTestSuite))
}

func named(name, url string) domain.Product {
	return domain.Product{Name: name, URL: url, SourceID: "apple"}
}

func (s *SummaryTestSuite) TestEnsureDailySnapshot_NewDateTriggersCleanup() {
	ctx := context.Background()
	products := []domain.Product{named("MacBook Air", "https://example.com/p/a")}

	s.snapshots.EXPECT().Get(ctx, "2026-08-31").Return(nil, nil)
	s.snapshots.EXPECT().Save(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, snap domain.DailySnapshot) error {
			s.Equal("2026-08-31", snap.Date)
			s.Equal(1, snap.TotalCount)
			s.Len(snap.Products, 1)
			return nil
		},
	)
	s.snapshots.EXPECT().DeleteOlderThan(ctx, "2026-08-01").Return(int64(2), nil)

	s.NoError(s.summary.EnsureDailySnapshot(ctx, "2026-08-31", products))
}

func (s *SummaryTestSuite) TestEnsureDailySnapshot_OverwriteSkipsCleanup() {
	ctx := context.Background()

	s.snapshots.EXPECT().Get(ctx, "2026-08-31").Return(&domain.DailySnapshot{Date: "2026-08-31"}, nil)
	s.snapshots.EXPECT().Save(ctx, gomock.Any()).Return(nil)

	s.NoError(s.summary.EnsureDailySnapshot(ctx, "2026-08-31", nil))
}

func (s *SummaryTestSuite) TestDiff_DayOverDayDelta() {
	ctx := context.Background()

	yesterday := &domain.DailySnapshot{
		Date: "2026-08-30",
		Products: []domain.Product{
			named("A", "https://example.com/p/a"),
			named("B", "https://example.com/p/b"),
			named("C", "https://example.com/p/c"),
		},
		TotalCount: 3,
	}
	today := &domain.DailySnapshot{
		Date: "2026-08-31",
		Products: []domain.Product{
			named("B", "https://example.com/p/b"),
			named("C", "https://example.com/p/c"),
			named("MacBook Pro 14吋 整修品", "https://example.com/p/d"),
			named("iPad Air 整修品", "https://example.com/p/e"),
		},
		TotalCount: 4,
	}

	s.snapshots.EXPECT().Get(ctx, "2026-08-31").Return(today, nil)
	s.snapshots.EXPECT().Get(ctx, "2026-08-30").Return(yesterday, nil)

	report, err := s.summary.DiffAgainstPreviousDay(ctx, "2026-08-31")

	s.Require().NoError(err)
	s.Equal(2, report.NewCount)
	s.Equal(1, report.TotalDelta)
	s.Equal(4, report.TotalToday)
	s.Equal(map[string]int{"MacBook": 1, "iPad": 1}, report.Breakdown)
	s.Len(report.NewProducts, 2)
}

func (s *SummaryTestSuite) TestDiff_FallsBackToOlderBaseline() {
	ctx := context.Background()

	today := &domain.DailySnapshot{
		Date:       "2026-08-31",
		Products:   []domain.Product{named("A", "https://example.com/p/a")},
		TotalCount: 1,
	}
	older := &domain.DailySnapshot{
		Date:       "2026-08-25",
		Products:   []domain.Product{named("A", "https://example.com/p/a")},
		TotalCount: 1,
	}

	s.snapshots.EXPECT().Get(ctx, "2026-08-31").Return(today, nil)
	s.snapshots.EXPECT().Get(ctx, "2026-08-30").Return(nil, nil)
	s.snapshots.EXPECT().LatestBefore(ctx, "2026-08-31").Return(older, nil)

	report, err := s.summary.DiffAgainstPreviousDay(ctx, "2026-08-31")

	s.Require().NoError(err)
	s.Equal(0, report.NewCount)
	s.Equal(0, report.TotalDelta)
}

func (s *SummaryTestSuite) TestDiff_ScrapesWhenTodayMissing() {
	ctx := context.Background()
	products := []domain.Product{named("MacBook Air 整修品", "https://example.com/p/a")}

	s.snapshots.EXPECT().Get(ctx, "2026-08-31").Return(nil, nil).Times(2)
	s.catalog.EXPECT().ScrapeAll(ctx).Return(products)
	s.snapshots.EXPECT().Save(ctx, gomock.Any()).Return(nil)
	s.snapshots.EXPECT().DeleteOlderThan(ctx, "2026-08-01").Return(int64(0), nil)
	s.snapshots.EXPECT().Get(ctx, "2026-08-30").Return(nil, nil)
	s.snapshots.EXPECT().LatestBefore(ctx, "2026-08-31").Return(nil, nil)

	report, err := s.summary.DiffAgainstPreviousDay(ctx, "2026-08-31")

	s.Require().NoError(err)
	s.Equal(1, report.NewCount)
	s.Equal(1, report.TotalDelta, "with no baseline everything counts as new")
}

func (s *SummaryTestSuite) TestFormatReport_NoNewListings() {
	msg := FormatReport(&domain.SummaryReport{
		Date:       "2026-08-31",
		TotalToday: 120,
	})

	s.Contains(msg, "今日沒有新上架的整修品")
	s.Contains(msg, "120 件")
}

func (s *SummaryTestSuite) TestFormatReport_WithBreakdown() {
	msg := FormatReport(&domain.SummaryReport{
		Date:       "2026-08-31",
		NewCount:   3,
		Breakdown:  map[string]int{"MacBook": 2, "其他": 1},
		TotalToday: 121,
		TotalDelta: 1,
	})

	s.Contains(msg, "🆕 新上架 3 件")
	s.Contains(msg, "MacBook: 2 件")
	s.Contains(msg, "其他: 1 件")
	s.Contains(msg, "+1")
	s.NotContains(msg, "iPad")
}

func summarySubscriber(id, at, lastDate string) domain.Subscriber {
	sub := domain.Subscriber{ID: id, IsActive: true, LastSummaryDate: lastDate}
	sub.SummarySettings.DailySummary.Enabled = true
	sub.SummarySettings.DailySummary.Time = at
	return sub
}

func (s *SummaryTestSuite) TestRunPending_DeliversOncePerDay() {
	ctx := context.Background()

	due := summarySubscriber("due", "09:00", "")
	alreadySent := summarySubscriber("already-sent", "09:00", "2026-08-31")
	notYet := summarySubscriber("not-yet", "23:00", "")
	optedOut := domain.Subscriber{ID: "opted-out", IsActive: true}

	s.subscribers.EXPECT().ListActive(ctx).Return(
		[]domain.Subscriber{due, alreadySent, notYet, optedOut}, nil,
	)

	today := &domain.DailySnapshot{Date: "2026-08-31", TotalCount: 1}
	s.snapshots.EXPECT().Get(ctx, "2026-08-31").Return(today, nil)
	s.snapshots.EXPECT().Get(ctx, "2026-08-30").Return(&domain.DailySnapshot{Date: "2026-08-30", TotalCount: 1}, nil)

	s.notifier.EXPECT().Send(ctx, due, gomock.Any()).Return([]notify.Result{{Success: true}})
	s.subscribers.EXPECT().UpdateLastSummaryDate(ctx, "due", "2026-08-31").Return(nil)
	s.auditLog.EXPECT().Append(ctx, gomock.Any()).Return(nil)

	s.summary.RunPending(ctx)
}

func (s *SummaryTestSuite) TestRunPending_FailedDeliveryNotMarked() {
	ctx := context.Background()

	due := summarySubscriber("due", "09:00", "")
	s.subscribers.EXPECT().ListActive(ctx).Return([]domain.Subscriber{due}, nil)

	s.snapshots.EXPECT().Get(ctx, "2026-08-31").Return(&domain.DailySnapshot{Date: "2026-08-31"}, nil)
	s.snapshots.EXPECT().Get(ctx, "2026-08-30").Return(&domain.DailySnapshot{Date: "2026-08-30"}, nil)

	s.notifier.EXPECT().Send(ctx, due, gomock.Any()).Return(nil)

	s.summary.RunPending(ctx)
}
