package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"refurb_tracker/internal/domain"
	"refurb_tracker/internal/matcher"
	"refurb_tracker/internal/notify"
)

// Tracker runs the scrape-detect-match-notify-persist cycle.
type Tracker struct {
	catalog     Catalog
	history     HistoryStore
	rules       RuleStore
	subscribers SubscriberStore
	auditLog    NotificationLog
	state       StateStore
	messenger   Messenger
	notifier    Notifier
	snapshotter Snapshotter
	logger      *slog.Logger
	loc         *time.Location

	enabled atomic.Bool
	running atomic.Bool
	now     func() time.Time
}

func NewTracker(
	catalog Catalog,
	history HistoryStore,
	rules RuleStore,
	subscribers SubscriberStore,
	auditLog NotificationLog,
	state StateStore,
	messenger Messenger,
	notifier Notifier,
	snapshotter Snapshotter,
	loc *time.Location,
	logger *slog.Logger,
) *Tracker {
	return &Tracker{
		catalog:     catalog,
		history:     history,
		rules:       rules,
		subscribers: subscribers,
		auditLog:    auditLog,
		state:       state,
		messenger:   messenger,
		notifier:    notifier,
		snapshotter: snapshotter,
		loc:         loc,
		logger:      logger.With("component", "tracker"),
		now:         time.Now,
	}
}

// StartTracking switches tracking on and persists the switch. The
// persistence failure is returned: losing this write would corrupt
// resume-on-restart.
func (t *Tracker) StartTracking(ctx context.Context) error {
	if err := t.state.SetTracking(ctx, true); err != nil {
		return fmt.Errorf("persist tracking state: %w", err)
	}
	t.enabled.Store(true)
	t.logger.Info("tracking started")
	return nil
}

func (t *Tracker) StopTracking(ctx context.Context) error {
	if err := t.state.SetTracking(ctx, false); err != nil {
		return fmt.Errorf("persist tracking state: %w", err)
	}
	t.enabled.Store(false)
	t.logger.Info("tracking stopped")
	return nil
}

// Resume restores the persisted tracking switch on startup.
func (t *Tracker) Resume(ctx context.Context) error {
	tracking, err := t.state.GetTracking(ctx)
	if err != nil {
		return fmt.Errorf("read tracking state: %w", err)
	}
	t.enabled.Store(tracking)
	t.logger.Info("tracking state restored", "tracking", tracking)
	return nil
}

func (t *Tracker) IsTracking() bool {
	return t.enabled.Load()
}

// RunCycle executes one full tracking cycle. It never returns an error:
// failures are absorbed into partial counts, the Degraded flag and log
// output. A cycle is skipped when tracking is off or a previous cycle is
// still running.
func (t *Tracker) RunCycle(ctx context.Context) domain.CycleStats {
	var stats domain.CycleStats

	if !t.enabled.Load() {
		stats.Skipped = true
		return stats
	}
	if !t.running.CompareAndSwap(false, true) {
		t.logger.Warn("already tracking, skipping cycle")
		stats.Skipped = true
		return stats
	}
	defer t.running.Store(false)

	start := t.now()
	t.logger.Info("starting tracking cycle")

	products := t.catalog.ScrapeAll(ctx)
	stats.TotalProducts = len(products)

	history, err := t.history.Load(ctx)
	if err != nil {
		// Without history there is no safe new-product decision; marking
		// these products as seen would silently swallow notifications.
		t.logger.Error("failed to load history, aborting cycle", "error", err)
		stats.Degraded = true
		stats.Duration = time.Since(start)
		return stats
	}

	newProducts := detectNew(products, history)
	stats.NewProducts = len(newProducts)
	t.logger.Info("change detection done",
		"total", stats.TotalProducts,
		"known", len(history),
		"new", stats.NewProducts,
	)

	if len(newProducts) > 0 {
		t.notifySubscribers(ctx, newProducts, &stats)
	}

	if err := t.history.UpsertBatch(ctx, products, start); err != nil {
		t.logger.Error("failed to persist history", "error", err)
		stats.Degraded = true
	}

	date := start.In(t.loc).Format(domain.DateLayout)
	if err := t.snapshotter.EnsureDailySnapshot(ctx, date, products); err != nil {
		t.logger.Error("failed to persist daily snapshot", "date", date, "error", err)
		stats.Degraded = true
	}

	stats.Duration = time.Since(start)
	t.logger.Info("tracking cycle completed",
		"total_products", stats.TotalProducts,
		"new_products", stats.NewProducts,
		"total_new_matches", stats.TotalNewMatches,
		"notified_subscribers", stats.NotifiedSubscribers,
		"degraded", stats.Degraded,
		"duration", stats.Duration,
	)
	return stats
}

// detectNew returns the products whose identity key is absent from the
// loaded history, deduplicated within the scrape itself.
func detectNew(products []domain.Product, history map[string]domain.HistoryEntry) []domain.Product {
	var fresh []domain.Product
	seen := make(map[string]bool, len(products))
	for _, p := range products {
		key := domain.IdentityKey(p.URL)
		if seen[key] {
			continue
		}
		seen[key] = true
		if _, known := history[key]; !known {
			fresh = append(fresh, p)
		}
	}
	return fresh
}

func (t *Tracker) notifySubscribers(ctx context.Context, newProducts []domain.Product, stats *domain.CycleStats) {
	subs, err := t.subscribers.ListActive(ctx)
	if err != nil {
		t.logger.Error("failed to list subscribers", "error", err)
		stats.Degraded = true
		return
	}

	for _, sub := range subs {
		rules, err := t.rules.ListEnabled(ctx, sub.ID)
		if err != nil {
			t.logger.Error("failed to load rules", "subscriber", sub.ID, "error", err)
			stats.Degraded = true
			continue
		}

		matched := matcher.Match(newProducts, rules)
		if len(matched) == 0 {
			continue
		}
		stats.TotalNewMatches += len(matched)

		batches := t.messenger.BuildMessages(ctx, matched)
		outcomes := t.messenger.Deliver(ctx, sub, batches)

		notified := false
		for _, outcome := range outcomes {
			if !outcome.Delivered {
				continue
			}
			notified = true
			t.recordDelivery(ctx, sub.ID, outcome.Batch)
		}
		if notified {
			stats.NotifiedSubscribers++
		}
	}
}

func (t *Tracker) recordDelivery(ctx context.Context, subscriberID string, batch notify.Batch) {
	rec := domain.NotificationRecord{
		ID:           uuid.NewString(),
		SubscriberID: subscriberID,
		Message:      batch.Message,
		ProductIDs:   batch.ProductKeys,
		SentAt:       t.now(),
	}
	if err := t.auditLog.Append(ctx, rec); err != nil {
		t.logger.Warn("failed to record notification", "subscriber", subscriberID, "error", err)
	}
}

// Status is a point-in-time operational snapshot used in logs.
type Status struct {
	Tracking             bool
	ActiveRules          int
	ActiveSubscribers    int
	NotificationsLast24h int
}

func (t *Tracker) Status(ctx context.Context) (Status, error) {
	status := Status{Tracking: t.enabled.Load()}

	var err error
	if status.ActiveRules, err = t.rules.CountEnabled(ctx); err != nil {
		return status, fmt.Errorf("count rules: %w", err)
	}
	if status.ActiveSubscribers, err = t.subscribers.CountActive(ctx); err != nil {
		return status, fmt.Errorf("count subscribers: %w", err)
	}
	if status.NotificationsLast24h, err = t.auditLog.CountSince(ctx, t.now().Add(-24*time.Hour)); err != nil {
		return status, fmt.Errorf("count notifications: %w", err)
	}
	return status, nil
}

// NotifyAll broadcasts one message to every active subscriber and
// reports how many received it.
func (t *Tracker) NotifyAll(ctx context.Context, message string) (int, error) {
	subs, err := t.subscribers.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list subscribers: %w", err)
	}

	delivered := 0
	for _, sub := range subs {
		results := t.notifier.Send(ctx, sub, message)
		if !notify.Delivered(results) {
			t.logger.Warn("broadcast delivery failed", "subscriber", sub.ID)
			continue
		}
		delivered++
		t.recordDelivery(ctx, sub.ID, notify.Batch{Message: message})
	}
	return delivered, nil
}
