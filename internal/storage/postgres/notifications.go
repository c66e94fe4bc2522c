package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"refurb_tracker/internal/domain"
)

// NotificationStore is the append-only delivery audit log.
type NotificationStore struct {
	db *sqlx.DB
}

func NewNotificationStore(db *sqlx.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

func (s *NotificationStore) Append(ctx context.Context, rec domain.NotificationRecord) error {
	query := `
		INSERT INTO notifications (id, subscriber_id, message, product_ids, sent_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.SubscriberID,
		rec.Message,
		pq.Array(rec.ProductIDs),
		rec.SentAt,
	)
	if err != nil {
		return fmt.Errorf("append notification: %w", err)
	}
	return nil
}

// CountSince reports deliveries recorded after the given instant, used
// for the status snapshot.
func (s *NotificationStore) CountSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM notifications WHERE sent_at >= $1",
		since,
	)
	return count, err
}
