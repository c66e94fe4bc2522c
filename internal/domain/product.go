package domain

import (
	"strings"
	"time"
)

// Product is one refurbished listing discovered by a scraper.
type Product struct {
	Name        string      `json:"name"`
	PriceText   string      `json:"price_text"`
	PriceValue  int         `json:"price_value"`
	URL         string      `json:"url"`
	ImageURL    string      `json:"image_url,omitempty"`
	SourceID    string      `json:"source_id"`
	Category    string      `json:"category"`
	Spec        ProductSpec `json:"spec"`
	Description string      `json:"description,omitempty"`
}

// ProductSpec holds the attributes parsed out of a listing's text.
// A nil field means the attribute could not be determined.
type ProductSpec struct {
	ProductType *string `json:"product_type"`
	ScreenSize  *string `json:"screen_size"`
	Chip        *string `json:"chip"`
	Memory      *string `json:"memory"`
	Storage     *string `json:"storage"`
	Color       *string `json:"color"`
}

// Label renders the resolved fields as a human-readable line in a fixed
// order, skipping fields that could not be determined.
func (s ProductSpec) Label() string {
	var parts []string
	for _, field := range []*string{
		s.ProductType,
		s.ScreenSize,
		s.Chip,
		s.Memory,
		s.Storage,
		s.Color,
	} {
		if field != nil {
			parts = append(parts, *field)
		}
	}
	return strings.Join(parts, " ")
}

// MatchedProduct is a product annotated with the names of every tracking
// rule it satisfied for one subscriber.
type MatchedProduct struct {
	Product
	MatchingRuleNames []string `json:"matching_rule_names"`
}

// HistoryEntry is the persisted last observation of a listing, keyed by
// its identity key.
type HistoryEntry struct {
	Product
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// IdentityKey derives the canonical deduplication key for a listing: the
// URL with everything from the first '?' onward removed, so tracking
// parameters never produce a fresh identity.
func IdentityKey(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		return url[:i]
	}
	return url
}

// ParsePrice extracts an integer amount from a price string such as
// "NT$36,900" by stripping every non-digit rune. Returns 0 when nothing
// remains.
func ParsePrice(priceText string) int {
	value := 0
	seen := false
	for _, r := range priceText {
		if r < '0' || r > '9' {
			continue
		}
		value = value*10 + int(r-'0')
		seen = true
	}
	if !seen {
		return 0
	}
	return value
}
