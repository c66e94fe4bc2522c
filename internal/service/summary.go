package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"refurb_tracker/internal/domain"
	"refurb_tracker/internal/notify"
)

// summaryCategories is the fixed breakdown order; whatever matches none
// falls into 其他.
var summaryCategories = []string{"MacBook", "iPad", "AirPods", "HomePod"}

const otherCategory = "其他"

// Summary maintains the daily snapshots and delivers per-subscriber
// day-over-day summaries.
type Summary struct {
	catalog       Catalog
	snapshots     SnapshotStore
	subscribers   SubscriberStore
	auditLog      NotificationLog
	notifier      Notifier
	retentionDays int
	loc           *time.Location
	logger        *slog.Logger

	now func() time.Time
}

func NewSummary(
	catalog Catalog,
	snapshots SnapshotStore,
	subscribers SubscriberStore,
	auditLog NotificationLog,
	notifier Notifier,
	retentionDays int,
	loc *time.Location,
	logger *slog.Logger,
) *Summary {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &Summary{
		catalog:       catalog,
		snapshots:     snapshots,
		subscribers:   subscribers,
		auditLog:      auditLog,
		notifier:      notifier,
		retentionDays: retentionDays,
		loc:           loc,
		logger:        logger.With("component", "summary"),
		now:           time.Now,
	}
}

// EnsureDailySnapshot saves the catalog capture for one date. Re-saving
// a date overwrites it; retention cleanup runs only when the date is new,
// once per day.
func (s *Summary) EnsureDailySnapshot(ctx context.Context, date string, products []domain.Product) error {
	existing, err := s.snapshots.Get(ctx, date)
	if err != nil {
		return fmt.Errorf("check snapshot %s: %w", date, err)
	}

	snap := domain.DailySnapshot{
		Date:       date,
		Products:   products,
		TotalCount: len(products),
		CreatedAt:  s.now(),
	}
	if err := s.snapshots.Save(ctx, snap); err != nil {
		return err
	}

	if existing == nil {
		s.cleanupOldSnapshots(ctx, date)
	}
	return nil
}

func (s *Summary) cleanupOldSnapshots(ctx context.Context, date string) {
	day, err := time.ParseInLocation(domain.DateLayout, date, s.loc)
	if err != nil {
		s.logger.Warn("invalid snapshot date, skipping cleanup", "date", date, "error", err)
		return
	}
	cutoff := day.AddDate(0, 0, -s.retentionDays).Format(domain.DateLayout)

	deleted, err := s.snapshots.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Warn("snapshot retention cleanup failed", "cutoff", cutoff, "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("old snapshots removed", "cutoff", cutoff, "deleted", deleted)
	}
}

// DiffAgainstPreviousDay computes the day-over-day delta for date. If
// today's snapshot is missing it scrapes fresh and snapshots first. The
// baseline is yesterday's snapshot, falling back to the most recent
// older one; with no baseline at all, everything counts as new.
func (s *Summary) DiffAgainstPreviousDay(ctx context.Context, date string) (*domain.SummaryReport, error) {
	today, err := s.snapshots.Get(ctx, date)
	if err != nil {
		return nil, err
	}
	if today == nil {
		products := s.catalog.ScrapeAll(ctx)
		if err := s.EnsureDailySnapshot(ctx, date, products); err != nil {
			return nil, fmt.Errorf("snapshot fresh scrape: %w", err)
		}
		today = &domain.DailySnapshot{Date: date, Products: products, TotalCount: len(products)}
	}

	baseline, err := s.resolveBaseline(ctx, date)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool)
	baselineCount := 0
	if baseline != nil {
		baselineCount = baseline.TotalCount
		for _, p := range baseline.Products {
			known[domain.IdentityKey(p.URL)] = true
		}
	}

	var newProducts []domain.Product
	for _, p := range today.Products {
		if !known[domain.IdentityKey(p.URL)] {
			newProducts = append(newProducts, p)
		}
	}

	return &domain.SummaryReport{
		Date:        date,
		NewCount:    len(newProducts),
		Breakdown:   breakdown(newProducts),
		TotalToday:  today.TotalCount,
		TotalDelta:  today.TotalCount - baselineCount,
		NewProducts: newProducts,
	}, nil
}

func (s *Summary) resolveBaseline(ctx context.Context, date string) (*domain.DailySnapshot, error) {
	day, err := time.ParseInLocation(domain.DateLayout, date, s.loc)
	if err != nil {
		return nil, fmt.Errorf("parse date %s: %w", date, err)
	}
	yesterday := day.AddDate(0, 0, -1).Format(domain.DateLayout)

	baseline, err := s.snapshots.Get(ctx, yesterday)
	if err != nil {
		return nil, err
	}
	if baseline != nil {
		return baseline, nil
	}
	return s.snapshots.LatestBefore(ctx, date)
}

// breakdown buckets new products by case-insensitive substring on name
// or resolved product type, computed only over the new set.
func breakdown(products []domain.Product) map[string]int {
	counts := make(map[string]int)
	for _, p := range products {
		counts[categorize(p)]++
	}
	return counts
}

func categorize(p domain.Product) string {
	text := strings.ToLower(p.Name)
	if p.Spec.ProductType != nil {
		text += " " + strings.ToLower(*p.Spec.ProductType)
	}
	for _, category := range summaryCategories {
		if strings.Contains(text, strings.ToLower(category)) {
			return category
		}
	}
	return otherCategory
}

// FormatReport renders a summary report as the daily message.
func FormatReport(report *domain.SummaryReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 每日整修品摘要 (%s)\n", report.Date)

	if report.NewCount == 0 && report.TotalDelta <= 0 {
		sb.WriteString("今日沒有新上架的整修品\n")
		fmt.Fprintf(&sb, "📦 目前共 %d 件", report.TotalToday)
		return sb.String()
	}

	fmt.Fprintf(&sb, "🆕 新上架 %d 件\n", report.NewCount)
	for _, category := range append(summaryCategories, otherCategory) {
		if count := report.Breakdown[category]; count > 0 {
			fmt.Fprintf(&sb, "・%s: %d 件\n", category, count)
		}
	}
	fmt.Fprintf(&sb, "📈 總數變化: %+d (目前共 %d 件)", report.TotalDelta, report.TotalToday)
	return sb.String()
}

// RunPending delivers the daily summary to every subscriber whose
// configured local time has been reached and who has not received one
// today. Called on a fixed polling interval.
func (s *Summary) RunPending(ctx context.Context) {
	now := s.now().In(s.loc)
	date := now.Format(domain.DateLayout)

	subs, err := s.subscribers.ListActive(ctx)
	if err != nil {
		s.logger.Error("failed to list subscribers", "error", err)
		return
	}

	var report *domain.SummaryReport
	for _, sub := range subs {
		if !s.due(sub, now, date) {
			continue
		}

		if report == nil {
			report, err = s.DiffAgainstPreviousDay(ctx, date)
			if err != nil {
				s.logger.Error("failed to compute summary", "date", date, "error", err)
				return
			}
		}

		s.deliver(ctx, sub, date, FormatReport(report))
	}
}

// due reports whether a subscriber should receive today's summary now:
// enabled, not yet delivered today, and past the configured local time.
func (s *Summary) due(sub domain.Subscriber, now time.Time, date string) bool {
	if !sub.SummarySettings.DailySummary.Enabled {
		return false
	}
	if sub.LastSummaryDate == date {
		return false
	}

	at, err := time.Parse("15:04", sub.SummarySettings.DailySummary.Time)
	if err != nil {
		s.logger.Warn("invalid summary time",
			"subscriber", sub.ID,
			"time", sub.SummarySettings.DailySummary.Time,
		)
		return false
	}

	scheduled := time.Date(now.Year(), now.Month(), now.Day(), at.Hour(), at.Minute(), 0, 0, s.loc)
	return !now.Before(scheduled)
}

func (s *Summary) deliver(ctx context.Context, sub domain.Subscriber, date, message string) {
	results := s.notifier.Send(ctx, sub, message)
	if !notify.Delivered(results) {
		s.logger.Warn("summary delivery failed", "subscriber", sub.ID)
		return
	}

	if err := s.subscribers.UpdateLastSummaryDate(ctx, sub.ID, date); err != nil {
		s.logger.Error("failed to mark summary delivered", "subscriber", sub.ID, "error", err)
	}

	rec := domain.NotificationRecord{
		ID:           uuid.NewString(),
		SubscriberID: sub.ID,
		Message:      message,
		SentAt:       s.now(),
	}
	if err := s.auditLog.Append(ctx, rec); err != nil {
		s.logger.Warn("failed to record summary notification", "subscriber", sub.ID, "error", err)
	}

	s.logger.Info("daily summary delivered", "subscriber", sub.ID, "date", date)
}
