package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"refurb_tracker/internal/domain"
)

// HistoryStore is the change-detection ground truth: one row per identity
// key, never pruned.
type HistoryStore struct {
	db *sqlx.DB
}

func NewHistoryStore(db *sqlx.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

type historyRow struct {
	IdentityKey string    `db:"identity_key"`
	Name        string    `db:"name"`
	PriceText   string    `db:"price_text"`
	PriceValue  int       `db:"price_value"`
	URL         string    `db:"url"`
	ImageURL    string    `db:"image_url"`
	SourceID    string    `db:"source_id"`
	Category    string    `db:"category"`
	Spec        []byte    `db:"spec"`
	Description string    `db:"description"`
	FirstSeen   time.Time `db:"first_seen"`
	LastSeen    time.Time `db:"last_seen"`
}

// Load reads the whole history as a map keyed by identity key, so change
// detection is a single round-trip plus in-memory membership tests.
func (s *HistoryStore) Load(ctx context.Context) (map[string]domain.HistoryEntry, error) {
	query := `
		SELECT identity_key, name, price_text, price_value, url, image_url,
		       source_id, category, spec, description, first_seen, last_seen
		FROM product_history`

	var rows []historyRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	history := make(map[string]domain.HistoryEntry, len(rows))
	for _, row := range rows {
		entry := domain.HistoryEntry{
			Product: domain.Product{
				Name:        row.Name,
				PriceText:   row.PriceText,
				PriceValue:  row.PriceValue,
				URL:         row.URL,
				ImageURL:    row.ImageURL,
				SourceID:    row.SourceID,
				Category:    row.Category,
				Description: row.Description,
			},
			FirstSeen: row.FirstSeen,
			LastSeen:  row.LastSeen,
		}
		if len(row.Spec) > 0 {
			if err := json.Unmarshal(row.Spec, &entry.Spec); err != nil {
				return nil, fmt.Errorf("decode spec for %s: %w", row.IdentityKey, err)
			}
		}
		history[row.IdentityKey] = entry
	}
	return history, nil
}

// UpsertBatch merges the scraped products into history in one statement.
// Existing rows keep their first_seen; everything else reflects the
// latest observation. Products collapsing to the same identity key are
// deduplicated first since one statement may not update a row twice.
func (s *HistoryStore) UpsertBatch(ctx context.Context, products []domain.Product, seenAt time.Time) error {
	unique := make([]domain.Product, 0, len(products))
	seen := make(map[string]bool, len(products))
	for _, p := range products {
		key := domain.IdentityKey(p.URL)
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, p)
	}
	if len(unique) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO product_history (
		identity_key, name, price_text, price_value, url, image_url,
		source_id, category, spec, description, first_seen, last_seen
	) VALUES `)

	const cols = 12
	args := make([]interface{}, 0, len(unique)*cols)
	for i, p := range unique {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for c := 0; c < cols; c++ {
			if c > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("$")
			sb.WriteString(strconv.Itoa(i*cols + c + 1))
		}
		sb.WriteString(")")

		spec, err := json.Marshal(p.Spec)
		if err != nil {
			return fmt.Errorf("encode spec for %s: %w", p.URL, err)
		}
		args = append(args,
			domain.IdentityKey(p.URL),
			p.Name,
			p.PriceText,
			p.PriceValue,
			p.URL,
			p.ImageURL,
			p.SourceID,
			p.Category,
			spec,
			p.Description,
			seenAt,
			seenAt,
		)
	}

	sb.WriteString(`
		ON CONFLICT (identity_key) DO UPDATE SET
			name = EXCLUDED.name,
			price_text = EXCLUDED.price_text,
			price_value = EXCLUDED.price_value,
			url = EXCLUDED.url,
			image_url = EXCLUDED.image_url,
			source_id = EXCLUDED.source_id,
			category = EXCLUDED.category,
			spec = EXCLUDED.spec,
			description = EXCLUDED.description,
			last_seen = EXCLUDED.last_seen`)

	if _, err := s.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("upsert history batch: %w", err)
	}
	return nil
}

// Count reports the number of tracked identity keys.
func (s *HistoryStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM product_history")
	return count, err
}
