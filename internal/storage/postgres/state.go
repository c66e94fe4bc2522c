package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const trackingStateKey = "tracking_enabled"

// StateStore persists the small system flags that must survive a
// restart, most importantly whether tracking is switched on.
type StateStore struct {
	db *sqlx.DB
}

func NewStateStore(db *sqlx.DB) *StateStore {
	return &StateStore{db: db}
}

// GetTracking reports the persisted tracking switch. A missing row means
// tracking was never enabled.
func (s *StateStore) GetTracking(ctx context.Context) (bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value,
		"SELECT value FROM system_state WHERE key = $1",
		trackingStateKey,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get tracking state: %w", err)
	}
	return value == "true", nil
}

// SetTracking persists the tracking switch. Callers must treat a failure
// here as fatal for the toggle: losing this write corrupts
// resume-on-restart.
func (s *StateStore) SetTracking(ctx context.Context, enabled bool) error {
	value := "false"
	if enabled {
		value = "true"
	}

	query := `
		INSERT INTO system_state (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = NOW()`

	if _, err := s.db.ExecContext(ctx, query, trackingStateKey, value); err != nil {
		return fmt.Errorf("set tracking state: %w", err)
	}
	return nil
}
