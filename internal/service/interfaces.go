package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"refurb_tracker/internal/domain"
	"refurb_tracker/internal/notify"
)

// Catalog is the scrape fan-out over all enabled sources. It never
// fails; sources that exhaust their retries contribute zero products.
type Catalog interface {
	ScrapeAll(ctx context.Context) []domain.Product
}

type HistoryStore interface {
	Load(ctx context.Context) (map[string]domain.HistoryEntry, error)
	UpsertBatch(ctx context.Context, products []domain.Product, seenAt time.Time) error
}

type RuleStore interface {
	ListEnabled(ctx context.Context, subscriberID string) ([]domain.TrackingRule, error)
	CountEnabled(ctx context.Context) (int, error)
}

type SubscriberStore interface {
	ListActive(ctx context.Context) ([]domain.Subscriber, error)
	UpdateLastSummaryDate(ctx context.Context, subscriberID, date string) error
	CountActive(ctx context.Context) (int, error)
}

type SnapshotStore interface {
	Get(ctx context.Context, date string) (*domain.DailySnapshot, error)
	Save(ctx context.Context, snap domain.DailySnapshot) error
	LatestBefore(ctx context.Context, date string) (*domain.DailySnapshot, error)
	DeleteOlderThan(ctx context.Context, cutoff string) (int64, error)
}

type NotificationLog interface {
	Append(ctx context.Context, rec domain.NotificationRecord) error
	CountSince(ctx context.Context, since time.Time) (int, error)
}

type StateStore interface {
	GetTracking(ctx context.Context) (bool, error)
	SetTracking(ctx context.Context, enabled bool) error
}

// Messenger formats matched products into batches and paces their
// delivery to one subscriber.
type Messenger interface {
	BuildMessages(ctx context.Context, matched []domain.MatchedProduct) []notify.Batch
	Deliver(ctx context.Context, sub domain.Subscriber, batches []notify.Batch) []notify.BatchOutcome
}

// Notifier sends one standalone message through the subscriber's
// enabled providers.
type Notifier interface {
	Send(ctx context.Context, sub domain.Subscriber, message string) []notify.Result
}

// Snapshotter persists the per-day catalog captures.
type Snapshotter interface {
	EnsureDailySnapshot(ctx context.Context, date string, products []domain.Product) error
}
