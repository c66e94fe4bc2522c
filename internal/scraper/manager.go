package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"refurb_tracker/internal/domain"
)

// RetryPolicy bounds the re-attempts of one source's scrape call.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.Delay <= 0 {
		p.Delay = 5 * time.Second
	}
	return p
}

// commonFilters are filterable regardless of source capabilities.
var commonFilters = domain.FilterCapabilities{"maxPrice", "minMemory", "minStorage", "color"}

// ManagerStats counts registered against enabled sources.
type ManagerStats struct {
	Available int
	Enabled   int
}

// Manager owns the registered sources and runs the enabled ones
// concurrently, tolerating partial failure.
type Manager struct {
	mu       sync.RWMutex
	scrapers map[string]Scraper
	enabled  map[string]bool
	policies map[string]RetryPolicy
	logger   *slog.Logger
}

func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		scrapers: make(map[string]Scraper),
		enabled:  make(map[string]bool),
		policies: make(map[string]RetryPolicy),
		logger:   logger.With("component", "scraper_manager"),
	}
}

// Register adds a source and enables it. Registering an id twice replaces
// the previous scraper.
func (m *Manager) Register(s Scraper, policy RetryPolicy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scrapers[s.ID()] = s
	m.enabled[s.ID()] = true
	m.policies[s.ID()] = policy.withDefaults()
}

func (m *Manager) Enable(id string) error {
	return m.setEnabled(id, true)
}

func (m *Manager) Disable(id string) error {
	return m.setEnabled(id, false)
}

func (m *Manager) setEnabled(id string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scrapers[id]; !ok {
		return fmt.Errorf("unknown source: %s", id)
	}
	m.enabled[id] = enabled
	return nil
}

func (m *Manager) Get(id string) (Scraper, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.scrapers[id]
	return s, ok
}

func (m *Manager) Stats() ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := ManagerStats{Available: len(m.scrapers)}
	for _, enabled := range m.enabled {
		if enabled {
			stats.Enabled++
		}
	}
	return stats
}

// SupportedFilters reports each source's declared filterable fields plus
// the common set under the "common" key.
func (m *Manager) SupportedFilters() map[string]domain.FilterCapabilities {
	m.mu.RLock()
	defer m.mu.RUnlock()
	filters := make(map[string]domain.FilterCapabilities, len(m.scrapers)+1)
	for id, s := range m.scrapers {
		filters[id] = s.SupportedFilters()
	}
	filters["common"] = commonFilters
	return filters
}

// ScrapeAll fans out over the enabled sources, retrying each one under
// its policy, and returns the union of their products. One source failing
// every attempt contributes zero products; ScrapeAll itself never fails.
func (m *Manager) ScrapeAll(ctx context.Context) []domain.Product {
	m.mu.RLock()
	targets := make(map[string]Scraper)
	policies := make(map[string]RetryPolicy)
	for id, s := range m.scrapers {
		if m.enabled[id] {
			targets[id] = s
			policies[id] = m.policies[id]
		}
	}
	m.mu.RUnlock()

	var (
		wg       sync.WaitGroup
		resultMu sync.Mutex
		products []domain.Product
	)

	for id, s := range targets {
		wg.Add(1)
		go func(id string, s Scraper) {
			defer wg.Done()

			scraped, err := retry(ctx, policies[id], m.logger.With("source", id), s.ScrapeProducts)
			if err != nil {
				m.logger.Error("source failed after retries", "source", id, "error", err)
				return
			}

			m.logger.Info("source scraped", "source", id, "products", len(scraped))
			resultMu.Lock()
			products = append(products, scraped...)
			resultMu.Unlock()
		}(id, s)
	}

	wg.Wait()
	return products
}

// FilterBySource groups products by SourceID and delegates filtering to
// each source's scraper. Products whose source has no filter entry, and
// products from unknown sources, pass through unfiltered.
func (m *Manager) FilterBySource(products []domain.Product, filtersBySource map[string]domain.RuleFilters) []domain.Product {
	bySource := make(map[string][]domain.Product)
	order := make([]string, 0)
	for _, p := range products {
		if _, seen := bySource[p.SourceID]; !seen {
			order = append(order, p.SourceID)
		}
		bySource[p.SourceID] = append(bySource[p.SourceID], p)
	}

	filtered := make([]domain.Product, 0, len(products))
	for _, sourceID := range order {
		group := bySource[sourceID]
		filters, hasFilters := filtersBySource[sourceID]
		scraper, known := m.Get(sourceID)
		if !hasFilters || !known {
			filtered = append(filtered, group...)
			continue
		}
		filtered = append(filtered, scraper.FilterProducts(group, filters)...)
	}
	return filtered
}

// Close releases every source's rendering resources, collecting failures
// instead of stopping at the first one.
func (m *Manager) Close() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var errs []error
	for id, s := range m.scrapers {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// retry runs fn up to policy.MaxAttempts times with a fixed delay between
// attempts, stopping early when the context is cancelled.
func retry[T any](ctx context.Context, policy RetryPolicy, logger *slog.Logger, fn func(context.Context) (T, error)) (T, error) {
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		logger.Warn("attempt failed", "attempt", attempt, "max_attempts", policy.MaxAttempts, "error", err)

		if attempt == policy.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-time.After(policy.Delay):
		}
	}
	var zero T
	return zero, fmt.Errorf("all %d attempts failed: %w", policy.MaxAttempts, lastErr)
}
