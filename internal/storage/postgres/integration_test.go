//go:build integration

package postgres

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"refurb_tracker/internal/domain"
	"refurb_tracker/testdata/utils"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	migrationsPath, err := filepath.Abs("../../../migrations")
	s.Require().NoError(err)

	container, err := postgres.RunContainer(s.ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.WithInitScripts(
			filepath.Join(migrationsPath, "001_init.up.sql"),
		),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM notifications")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM tracking_rules")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM subscribers")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM daily_snapshots")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM product_history")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM system_state")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func testProduct(url, name string) domain.Product {
	return domain.Product{
		Name:       name,
		PriceText:  "NT$36,900",
		PriceValue: 36900,
		URL:        url,
		SourceID:   "apple",
		Category:   "Mac",
		Spec: domain.ProductSpec{
			ProductType: utils.Ptr("MacBook Air"),
			Memory:      utils.Ptr("16GB"),
		},
	}
}

func (s *PostgresIntegrationSuite) TestHistoryStore_UpsertAndLoad() {
	store := NewHistoryStore(s.db)
	now := time.Now().Truncate(time.Microsecond)

	products := []domain.Product{
		testProduct("https://example.com/p/a?cid=x", "MacBook Air A"),
		testProduct("https://example.com/p/b", "MacBook Air B"),
	}

	err := store.UpsertBatch(s.ctx, products, now)
	s.NoError(err)

	history, err := store.Load(s.ctx)
	s.NoError(err)
	s.Len(history, 2)

	entry, ok := history["https://example.com/p/a"]
	s.True(ok, "identity key strips query parameters")
	s.Equal("MacBook Air A", entry.Name)
	s.Equal(36900, entry.PriceValue)
	s.NotNil(entry.Spec.ProductType)
	s.Equal("MacBook Air", *entry.Spec.ProductType)
	s.WithinDuration(now, entry.FirstSeen, time.Second)
}

func (s *PostgresIntegrationSuite) TestHistoryStore_UpsertPreservesFirstSeen() {
	store := NewHistoryStore(s.db)
	first := time.Now().Add(-48 * time.Hour).Truncate(time.Microsecond)
	later := time.Now().Truncate(time.Microsecond)

	p := testProduct("https://example.com/p/a", "MacBook Air")
	s.NoError(store.UpsertBatch(s.ctx, []domain.Product{p}, first))

	p.Name = "MacBook Air (restocked)"
	s.NoError(store.UpsertBatch(s.ctx, []domain.Product{p}, later))

	history, err := store.Load(s.ctx)
	s.NoError(err)
	s.Len(history, 1)

	entry := history["https://example.com/p/a"]
	s.Equal("MacBook Air (restocked)", entry.Name)
	s.WithinDuration(first, entry.FirstSeen, time.Second)
	s.WithinDuration(later, entry.LastSeen, time.Second)
}

func (s *PostgresIntegrationSuite) TestHistoryStore_QueryVariantsCollapse() {
	store := NewHistoryStore(s.db)
	now := time.Now().Truncate(time.Microsecond)

	products := []domain.Product{
		testProduct("https://example.com/p/a?cid=1", "A"),
		testProduct("https://example.com/p/a?cid=2", "A"),
	}

	s.NoError(store.UpsertBatch(s.ctx, products, now))

	count, err := store.Count(s.ctx)
	s.NoError(err)
	s.Equal(1, count)
}

func (s *PostgresIntegrationSuite) TestRuleStore_ListEnabled() {
	subStore := NewSubscriberStore(s.db)
	ruleStore := NewRuleStore(s.db)
	now := time.Now().Truncate(time.Microsecond)

	s.NoError(subStore.Upsert(s.ctx, domain.Subscriber{ID: "u1", IsActive: true, CreatedAt: now}))

	enabled := domain.TrackingRule{
		ID:      "r1",
		Name:    "MacBook watch",
		Enabled: true,
		Filters: domain.RuleFilters{
			ProductType: utils.Ptr("MacBook Air"),
			MaxPrice:    utils.Ptr(40000),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	disabled := domain.TrackingRule{ID: "r2", Name: "paused", CreatedAt: now.Add(time.Second), UpdatedAt: now}

	s.NoError(ruleStore.Upsert(s.ctx, "u1", enabled))
	s.NoError(ruleStore.Upsert(s.ctx, "u1", disabled))

	rules, err := ruleStore.ListEnabled(s.ctx, "u1")
	s.NoError(err)
	s.Len(rules, 1)
	s.Equal("MacBook watch", rules[0].Name)
	s.NotNil(rules[0].Filters.MaxPrice)
	s.Equal(40000, *rules[0].Filters.MaxPrice)

	count, err := ruleStore.CountEnabled(s.ctx)
	s.NoError(err)
	s.Equal(1, count)
}

func (s *PostgresIntegrationSuite) TestSubscriberStore_ListActiveAndSummaryDate() {
	store := NewSubscriberStore(s.db)
	now := time.Now().Truncate(time.Microsecond)

	active := domain.Subscriber{
		ID:          "u1",
		IsActive:    true,
		Addresses:   map[string]string{"push": "U123"},
		Preferences: map[string]bool{"queue": false},
		CreatedAt:   now,
	}
	active.SummarySettings.DailySummary.Enabled = true
	active.SummarySettings.DailySummary.Time = "09:00"

	inactive := domain.Subscriber{ID: "u2", IsActive: false, CreatedAt: now}

	s.NoError(store.Upsert(s.ctx, active))
	s.NoError(store.Upsert(s.ctx, inactive))

	subs, err := store.ListActive(s.ctx)
	s.NoError(err)
	s.Len(subs, 1)
	s.Equal("U123", subs[0].Addresses["push"])
	s.False(subs[0].Preferences["queue"])
	s.True(subs[0].SummarySettings.DailySummary.Enabled)
	s.Equal("09:00", subs[0].SummarySettings.DailySummary.Time)

	s.NoError(store.UpdateLastSummaryDate(s.ctx, "u1", "2026-08-31"))

	subs, err = store.ListActive(s.ctx)
	s.NoError(err)
	s.Equal("2026-08-31", subs[0].LastSummaryDate)

	s.Error(store.UpdateLastSummaryDate(s.ctx, "missing", "2026-08-31"))
}

func (s *PostgresIntegrationSuite) TestSnapshotStore_OverwritePerDate() {
	store := NewSnapshotStore(s.db)
	now := time.Now().Truncate(time.Microsecond)

	first := domain.DailySnapshot{
		Date:       "2026-08-30",
		Products:   []domain.Product{testProduct("https://example.com/p/a", "A")},
		TotalCount: 1,
		CreatedAt:  now,
	}
	s.NoError(store.Save(s.ctx, first))

	second := first
	second.Products = append(second.Products, testProduct("https://example.com/p/b", "B"))
	second.TotalCount = 2
	s.NoError(store.Save(s.ctx, second))

	snap, err := store.Get(s.ctx, "2026-08-30")
	s.NoError(err)
	s.Require().NotNil(snap)
	s.Equal(2, snap.TotalCount)
	s.Len(snap.Products, 2)

	missing, err := store.Get(s.ctx, "1999-01-01")
	s.NoError(err)
	s.Nil(missing)
}

func (s *PostgresIntegrationSuite) TestSnapshotStore_LatestBeforeAndRetention() {
	store := NewSnapshotStore(s.db)
	now := time.Now().Truncate(time.Microsecond)

	for _, date := range []string{"2026-07-01", "2026-08-28", "2026-08-30"} {
		s.NoError(store.Save(s.ctx, domain.DailySnapshot{Date: date, TotalCount: 1, CreatedAt: now}))
	}

	baseline, err := store.LatestBefore(s.ctx, "2026-08-30")
	s.NoError(err)
	s.Require().NotNil(baseline)
	s.Equal("2026-08-28", baseline.Date)

	none, err := store.LatestBefore(s.ctx, "2026-07-01")
	s.NoError(err)
	s.Nil(none)

	deleted, err := store.DeleteOlderThan(s.ctx, "2026-08-01")
	s.NoError(err)
	s.Equal(int64(1), deleted)
}

func (s *PostgresIntegrationSuite) TestNotificationStore_AppendAndCount() {
	store := NewNotificationStore(s.db)
	now := time.Now().Truncate(time.Microsecond)

	rec := domain.NotificationRecord{
		ID:           "n1",
		SubscriberID: "u1",
		Message:      "發現 2 個新整修產品",
		ProductIDs:   []string{"https://example.com/p/a", "https://example.com/p/b"},
		SentAt:       now,
	}
	s.NoError(store.Append(s.ctx, rec))

	count, err := store.CountSince(s.ctx, now.Add(-time.Hour))
	s.NoError(err)
	s.Equal(1, count)

	count, err = store.CountSince(s.ctx, now.Add(time.Hour))
	s.NoError(err)
	s.Equal(0, count)
}

func (s *PostgresIntegrationSuite) TestStateStore_TrackingRoundTrip() {
	store := NewStateStore(s.db)

	tracking, err := store.GetTracking(s.ctx)
	s.NoError(err)
	s.False(tracking, "missing row means tracking never enabled")

	s.NoError(store.SetTracking(s.ctx, true))

	tracking, err = store.GetTracking(s.ctx)
	s.NoError(err)
	s.True(tracking)

	s.NoError(store.SetTracking(s.ctx, false))

	tracking, err = store.GetTracking(s.ctx)
	s.NoError(err)
	s.False(tracking)
}
