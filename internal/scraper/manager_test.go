package scraper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refurb_tracker/internal/domain"
	"refurb_tracker/testdata/utils"
)

type fakeScraper struct {
	id       string
	products []domain.Product
	err      error
	failures int32
	calls    atomic.Int32
	closeErr error
	closed   atomic.Int32
}

func (f *fakeScraper) ID() string           { return f.id }
func (f *fakeScraper) TargetURLs() []string { return []string{"https://example.com/" + f.id} }

func (f *fakeScraper) ScrapeProducts(context.Context) ([]domain.Product, error) {
	call := f.calls.Add(1)
	if f.err != nil && (f.failures == 0 || call <= f.failures) {
		return nil, f.err
	}
	return f.products, nil
}

func (f *fakeScraper) FilterProducts(products []domain.Product, filters domain.RuleFilters) []domain.Product {
	return filterProducts(products, filters)
}

func (f *fakeScraper) SupportedFilters() domain.FilterCapabilities {
	return domain.FilterCapabilities{"productType"}
}

func (f *fakeScraper) Close() error {
	f.closed.Add(1)
	return f.closeErr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond}
}

func product(name, url, sourceID string) domain.Product {
	return domain.Product{Name: name, URL: url, SourceID: sourceID}
}

func TestScrapeAll_PartialFailureIsolation(t *testing.T) {
	m := NewManager(testLogger())

	broken := &fakeScraper{id: "broken", err: errors.New("markup drift")}
	healthy := &fakeScraper{id: "healthy", products: []domain.Product{
		product("MacBook Air", "https://example.com/a", "healthy"),
		product("iPad Pro", "https://example.com/b", "healthy"),
	}}
	m.Register(broken, fastPolicy())
	m.Register(healthy, fastPolicy())

	products := m.ScrapeAll(context.Background())

	assert.Len(t, products, 2)
	assert.Equal(t, int32(3), broken.calls.Load(), "failing source exhausts its retries")
	assert.Equal(t, int32(1), healthy.calls.Load())
}

func TestScrapeAll_RetriesUntilSuccess(t *testing.T) {
	m := NewManager(testLogger())

	flaky := &fakeScraper{
		id:       "flaky",
		err:      errors.New("timeout"),
		failures: 2,
		products: []domain.Product{product("Mac mini", "https://example.com/m", "flaky")},
	}
	m.Register(flaky, fastPolicy())

	products := m.ScrapeAll(context.Background())

	assert.Len(t, products, 1)
	assert.Equal(t, int32(3), flaky.calls.Load())
}

func TestScrapeAll_SkipsDisabledSources(t *testing.T) {
	m := NewManager(testLogger())

	a := &fakeScraper{id: "a", products: []domain.Product{product("A", "https://example.com/a", "a")}}
	b := &fakeScraper{id: "b", products: []domain.Product{product("B", "https://example.com/b", "b")}}
	m.Register(a, fastPolicy())
	m.Register(b, fastPolicy())

	require.NoError(t, m.Disable("a"))
	require.NoError(t, m.Disable("a"), "disabling twice is idempotent")

	products := m.ScrapeAll(context.Background())

	assert.Len(t, products, 1)
	assert.Equal(t, "B", products[0].Name)
	assert.Equal(t, int32(0), a.calls.Load())

	require.NoError(t, m.Enable("a"))
	assert.Equal(t, ManagerStats{Available: 2, Enabled: 2}, m.Stats())
}

func TestEnableUnknownSource(t *testing.T) {
	m := NewManager(testLogger())
	assert.Error(t, m.Enable("missing"))
	assert.Error(t, m.Disable("missing"))
}

func TestSupportedFilters_IncludesCommonSet(t *testing.T) {
	m := NewManager(testLogger())
	m.Register(&fakeScraper{id: "a"}, fastPolicy())

	filters := m.SupportedFilters()

	assert.Equal(t, domain.FilterCapabilities{"productType"}, filters["a"])
	assert.Equal(t, commonFilters, filters["common"])
}

func TestFilterBySource(t *testing.T) {
	m := NewManager(testLogger())
	m.Register(&fakeScraper{id: "known"}, fastPolicy())

	cheap := product("Cheap", "https://example.com/c", "known")
	cheap.PriceValue = 10000
	expensive := product("Expensive", "https://example.com/e", "known")
	expensive.PriceValue = 90000
	foreign := product("Foreign", "https://example.com/f", "unknown")

	filtered := m.FilterBySource(
		[]domain.Product{cheap, expensive, foreign},
		map[string]domain.RuleFilters{
			"known":   {MaxPrice: utils.Ptr(20000)},
			"unknown": {MaxPrice: utils.Ptr(1)},
		},
	)

	require.Len(t, filtered, 2)
	assert.Equal(t, "Cheap", filtered[0].Name)
	assert.Equal(t, "Foreign", filtered[1].Name, "unknown sources pass through unfiltered")
}

func TestClose_CollectsAllFailures(t *testing.T) {
	m := NewManager(testLogger())

	ok := &fakeScraper{id: "ok"}
	bad := &fakeScraper{id: "bad", closeErr: errors.New("session leak")}
	m.Register(ok, fastPolicy())
	m.Register(bad, fastPolicy())

	err := m.Close()

	assert.ErrorContains(t, err, "session leak")
	assert.Equal(t, int32(1), ok.closed.Load(), "healthy sources still closed")
}

func TestRetry_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := retry(ctx, RetryPolicy{MaxAttempts: 5, Delay: time.Hour}, testLogger(), func(context.Context) (int, error) {
		calls++
		return 0, errors.New("always fails")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
