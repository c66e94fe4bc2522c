package matcher

import (
	"slices"

	"refurb_tracker/internal/domain"
)

// Match evaluates one subscriber's enabled rules against the new-product
// set. Each product appears at most once in the result, annotated with
// every distinct rule name it satisfied. Products and rule names keep
// first-seen order; the match map is keyed by identity key so two URLs
// differing only in query parameters collapse into one entry.
func Match(newProducts []domain.Product, rules []domain.TrackingRule) []domain.MatchedProduct {
	matched := make(map[string]*domain.MatchedProduct)
	var order []string

	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		for _, p := range newProducts {
			if !domain.MatchesFilters(p, rule.Filters) {
				continue
			}
			key := domain.IdentityKey(p.URL)
			entry, ok := matched[key]
			if !ok {
				entry = &domain.MatchedProduct{Product: p}
				matched[key] = entry
				order = append(order, key)
			}
			if !slices.Contains(entry.MatchingRuleNames, rule.Name) {
				entry.MatchingRuleNames = append(entry.MatchingRuleNames, rule.Name)
			}
		}
	}

	result := make([]domain.MatchedProduct, 0, len(order))
	for _, key := range order {
		result = append(result, *matched[key])
	}
	return result
}
