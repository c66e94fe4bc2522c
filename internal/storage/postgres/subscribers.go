package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"refurb_tracker/internal/domain"
)

type SubscriberStore struct {
	db *sqlx.DB
}

func NewSubscriberStore(db *sqlx.DB) *SubscriberStore {
	return &SubscriberStore{db: db}
}

type subscriberRow struct {
	ID              string    `db:"id"`
	IsActive        bool      `db:"is_active"`
	Addresses       []byte    `db:"addresses"`
	Preferences     []byte    `db:"preferences"`
	SummarySettings []byte    `db:"summary_settings"`
	LastSummaryDate string    `db:"last_summary_date"`
	CreatedAt       time.Time `db:"created_at"`
}

func (r subscriberRow) toDomain() (domain.Subscriber, error) {
	sub := domain.Subscriber{
		ID:              r.ID,
		IsActive:        r.IsActive,
		LastSummaryDate: r.LastSummaryDate,
		CreatedAt:       r.CreatedAt,
	}
	for _, field := range []struct {
		raw  []byte
		dest interface{}
	}{
		{r.Addresses, &sub.Addresses},
		{r.Preferences, &sub.Preferences},
		{r.SummarySettings, &sub.SummarySettings},
	} {
		if len(field.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(field.raw, field.dest); err != nil {
			return sub, fmt.Errorf("decode subscriber %s: %w", r.ID, err)
		}
	}
	return sub, nil
}

// ListActive returns every subscriber participating in notification.
func (s *SubscriberStore) ListActive(ctx context.Context) ([]domain.Subscriber, error) {
	query := `
		SELECT id, is_active, addresses, preferences, summary_settings,
		       last_summary_date, created_at
		FROM subscribers
		WHERE is_active
		ORDER BY created_at`

	var rows []subscriberRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list active subscribers: %w", err)
	}

	subs := make([]domain.Subscriber, 0, len(rows))
	for _, row := range rows {
		sub, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// Upsert writes one subscriber.
func (s *SubscriberStore) Upsert(ctx context.Context, sub domain.Subscriber) error {
	addresses, err := json.Marshal(sub.Addresses)
	if err != nil {
		return fmt.Errorf("encode addresses: %w", err)
	}
	preferences, err := json.Marshal(sub.Preferences)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	settings, err := json.Marshal(sub.SummarySettings)
	if err != nil {
		return fmt.Errorf("encode summary settings: %w", err)
	}

	query := `
		INSERT INTO subscribers (id, is_active, addresses, preferences, summary_settings, last_summary_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			is_active = EXCLUDED.is_active,
			addresses = EXCLUDED.addresses,
			preferences = EXCLUDED.preferences,
			summary_settings = EXCLUDED.summary_settings,
			last_summary_date = EXCLUDED.last_summary_date`

	_, err = s.db.ExecContext(ctx, query,
		sub.ID,
		sub.IsActive,
		addresses,
		preferences,
		settings,
		sub.LastSummaryDate,
		sub.CreatedAt,
	)
	return err
}

// UpdateLastSummaryDate marks a subscriber's summary as delivered for one
// calendar date, guarding the at-most-one-per-day rule.
func (s *SubscriberStore) UpdateLastSummaryDate(ctx context.Context, subscriberID, date string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE subscribers SET last_summary_date = $2 WHERE id = $1",
		subscriberID, date,
	)
	if err != nil {
		return fmt.Errorf("update last summary date: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("unknown subscriber: %s", subscriberID)
	}
	return nil
}

// CountActive reports the active subscriber count.
func (s *SubscriberStore) CountActive(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM subscribers WHERE is_active")
	return count, err
}
