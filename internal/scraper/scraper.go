package scraper

import (
	"context"
	"strings"

	"refurb_tracker/internal/domain"
)

// Scraper is one external product catalog. Implementations own their
// target URL list, drive extraction through an injected renderer, run
// their source parser and emit standardized products.
type Scraper interface {
	ID() string
	TargetURLs() []string
	ScrapeProducts(ctx context.Context) ([]domain.Product, error)
	FilterProducts(products []domain.Product, filters domain.RuleFilters) []domain.Product
	SupportedFilters() domain.FilterCapabilities
	Close() error
}

// standardize fills the common fields every source must populate before a
// product leaves its scraper.
func standardize(p *domain.Product, sourceID string) {
	p.SourceID = sourceID
	p.Name = strings.TrimSpace(p.Name)
	p.PriceValue = domain.ParsePrice(p.PriceText)
	if p.Category == "" {
		p.Category = "Other"
	}
}

// validateProduct drops records that cannot participate in tracking.
// Sources add their own plausibility checks on top.
func validateProduct(p domain.Product) bool {
	return p.Name != "" && p.URL != "" && p.SourceID != ""
}

func filterProducts(products []domain.Product, filters domain.RuleFilters) []domain.Product {
	matched := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if domain.MatchesFilters(p, filters) {
			matched = append(matched, p)
		}
	}
	return matched
}
