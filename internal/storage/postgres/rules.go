package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"refurb_tracker/internal/domain"
)

type RuleStore struct {
	db *sqlx.DB
}

func NewRuleStore(db *sqlx.DB) *RuleStore {
	return &RuleStore{db: db}
}

type ruleRow struct {
	ID           string    `db:"id"`
	SubscriberID string    `db:"subscriber_id"`
	Name         string    `db:"name"`
	Enabled      bool      `db:"enabled"`
	Filters      []byte    `db:"filters"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r ruleRow) toDomain() (domain.TrackingRule, error) {
	rule := domain.TrackingRule{
		ID:        r.ID,
		Name:      r.Name,
		Enabled:   r.Enabled,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if len(r.Filters) > 0 {
		if err := json.Unmarshal(r.Filters, &rule.Filters); err != nil {
			return rule, fmt.Errorf("decode filters for rule %s: %w", r.ID, err)
		}
	}
	return rule, nil
}

// ListEnabled returns one subscriber's enabled rules.
func (s *RuleStore) ListEnabled(ctx context.Context, subscriberID string) ([]domain.TrackingRule, error) {
	query := `
		SELECT id, subscriber_id, name, enabled, filters, created_at, updated_at
		FROM tracking_rules
		WHERE subscriber_id = $1 AND enabled
		ORDER BY created_at`

	var rows []ruleRow
	if err := s.db.SelectContext(ctx, &rows, query, subscriberID); err != nil {
		return nil, fmt.Errorf("list rules for %s: %w", subscriberID, err)
	}

	rules := make([]domain.TrackingRule, 0, len(rows))
	for _, row := range rows {
		rule, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// Upsert writes one rule, keyed by id within its subscriber.
func (s *RuleStore) Upsert(ctx context.Context, subscriberID string, rule domain.TrackingRule) error {
	filters, err := json.Marshal(rule.Filters)
	if err != nil {
		return fmt.Errorf("encode filters: %w", err)
	}

	query := `
		INSERT INTO tracking_rules (id, subscriber_id, name, enabled, filters, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id, subscriber_id) DO UPDATE SET
			name = EXCLUDED.name,
			enabled = EXCLUDED.enabled,
			filters = EXCLUDED.filters,
			updated_at = EXCLUDED.updated_at`

	_, err = s.db.ExecContext(ctx, query,
		rule.ID,
		subscriberID,
		rule.Name,
		rule.Enabled,
		filters,
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	return err
}

// CountEnabled reports the enabled rule count across all subscribers.
func (s *RuleStore) CountEnabled(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM tracking_rules WHERE enabled")
	return count, err
}
