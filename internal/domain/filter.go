package domain

import (
	"strconv"
	"strings"
)

// MatchesFilters reports whether a product satisfies every present field
// of a filter set. String fields require exact matches against the parsed
// spec; numeric fields compare against parsed integers, and a product
// whose attribute cannot be parsed (e.g. memory "—") fails any numeric
// filter referencing it.
func MatchesFilters(p Product, f RuleFilters) bool {
	if f.ProductType != nil && (p.Spec.ProductType == nil || *p.Spec.ProductType != *f.ProductType) {
		return false
	}
	if f.Chip != nil && (p.Spec.Chip == nil || *p.Spec.Chip != *f.Chip) {
		return false
	}
	if f.Color != nil && (p.Spec.Color == nil || *p.Spec.Color != *f.Color) {
		return false
	}
	if f.MinMemory != nil {
		memory, ok := parseLeadingInt(deref(p.Spec.Memory))
		if !ok || memory < *f.MinMemory {
			return false
		}
	}
	if f.MaxPrice != nil && p.PriceValue > *f.MaxPrice {
		return false
	}
	if f.MinStorage != nil {
		storage, ok := storageGB(deref(p.Spec.Storage))
		if !ok || storage < *f.MinStorage {
			return false
		}
	}
	return true
}

// storageGB converts a storage label like "512GB" or "1TB" into gigabytes.
func storageGB(s string) (int, bool) {
	value, ok := parseLeadingInt(s)
	if !ok {
		return 0, false
	}
	if strings.Contains(strings.ToUpper(s), "TB") {
		return value * 1024, true
	}
	return value, true
}

func parseLeadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	value, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return value, true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
