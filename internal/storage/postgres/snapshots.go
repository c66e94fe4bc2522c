package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"refurb_tracker/internal/domain"
)

type SnapshotStore struct {
	db *sqlx.DB
}

func NewSnapshotStore(db *sqlx.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

type snapshotRow struct {
	Date       string    `db:"date"`
	Products   []byte    `db:"products"`
	TotalCount int       `db:"total_count"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r snapshotRow) toDomain() (*domain.DailySnapshot, error) {
	snap := &domain.DailySnapshot{
		Date:       r.Date,
		TotalCount: r.TotalCount,
		CreatedAt:  r.CreatedAt,
	}
	if len(r.Products) > 0 {
		if err := json.Unmarshal(r.Products, &snap.Products); err != nil {
			return nil, fmt.Errorf("decode snapshot %s: %w", r.Date, err)
		}
	}
	return snap, nil
}

// Get returns the snapshot for an ISO date, or nil when none exists.
func (s *SnapshotStore) Get(ctx context.Context, date string) (*domain.DailySnapshot, error) {
	var row snapshotRow
	err := s.db.GetContext(ctx, &row,
		"SELECT date, products, total_count, created_at FROM daily_snapshots WHERE date = $1",
		date,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot %s: %w", date, err)
	}
	return row.toDomain()
}

// Save upserts a snapshot. Re-saving a date overwrites it, so a snapshot
// always reflects the latest observation of that calendar day.
func (s *SnapshotStore) Save(ctx context.Context, snap domain.DailySnapshot) error {
	products, err := json.Marshal(snap.Products)
	if err != nil {
		return fmt.Errorf("encode snapshot products: %w", err)
	}

	query := `
		INSERT INTO daily_snapshots (date, products, total_count, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (date) DO UPDATE SET
			products = EXCLUDED.products,
			total_count = EXCLUDED.total_count`

	if _, err := s.db.ExecContext(ctx, query, snap.Date, products, snap.TotalCount, snap.CreatedAt); err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.Date, err)
	}
	return nil
}

// LatestBefore returns the most recent snapshot strictly older than date,
// or nil when none exists. String comparison is valid for ISO dates.
func (s *SnapshotStore) LatestBefore(ctx context.Context, date string) (*domain.DailySnapshot, error) {
	var row snapshotRow
	err := s.db.GetContext(ctx, &row, `
		SELECT date, products, total_count, created_at
		FROM daily_snapshots
		WHERE date < $1
		ORDER BY date DESC
		LIMIT 1`,
		date,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot before %s: %w", date, err)
	}
	return row.toDomain()
}

// DeleteOlderThan removes snapshots with a date before the cutoff and
// reports how many were deleted.
func (s *SnapshotStore) DeleteOlderThan(ctx context.Context, cutoff string) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM daily_snapshots WHERE date < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete snapshots before %s: %w", cutoff, err)
	}
	return result.RowsAffected()
}
