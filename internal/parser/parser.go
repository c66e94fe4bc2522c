package parser

import (
	"regexp"
	"strings"

	"refurb_tracker/internal/domain"
)

// Parser turns the raw text of a listing into a normalized spec record.
// Implementations must be pure and total: they never fail, and fields that
// cannot be resolved stay nil.
type Parser interface {
	// ParseSpecs extracts a spec record from a listing's name, description
	// and category text.
	ParseSpecs(name, description, category string) domain.ProductSpec
	// ValidateSpecs reports whether a parsed record is plausible for this
	// source, used to drop noise before standardization.
	ValidateSpecs(spec domain.ProductSpec) bool
	// FormatSpecs renders a canonical human-readable label, skipping
	// unresolved fields.
	FormatSpecs(spec domain.ProductSpec) string
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// normalizeText collapses non-breaking spaces and whitespace runs so the
// pattern rules behave the same regardless of the page's typography.
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, " ", " ")
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}

// findFirstMatch applies an ordered pattern list and returns the first
// match; order encodes precedence. Returns the first capture group when
// present, otherwise the whole match.
func findFirstMatch(text string, patterns []*regexp.Regexp) (string, bool) {
	for _, pattern := range patterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if len(m) > 1 && m[1] != "" {
			return m[1], true
		}
		return m[0], true
	}
	return "", false
}

// findColor returns the first color from the list contained in text. The
// list is ordered most-specific first so "太空灰色" wins over "灰色".
func findColor(text string, colors []string) *string {
	for _, color := range colors {
		if strings.Contains(text, color) {
			c := color
			return &c
		}
	}
	return nil
}

type productTypeRule struct {
	pattern *regexp.Regexp
	name    string
}

// baseProductTypes is the shared product-type table. More specific entries
// precede generic ones ("iPad Pro" before "iPad").
var baseProductTypes = []productTypeRule{
	{regexp.MustCompile(`(?i)MacBook\s*Air`), "MacBook Air"},
	{regexp.MustCompile(`(?i)MacBook\s*Pro`), "MacBook Pro"},
	{regexp.MustCompile(`(?i)Mac\s*Studio`), "Mac Studio"},
	{regexp.MustCompile(`(?i)Mac\s*mini`), "Mac mini"},
	{regexp.MustCompile(`(?i)iMac`), "iMac"},
	{regexp.MustCompile(`(?i)iPad\s*Pro`), "iPad Pro"},
	{regexp.MustCompile(`(?i)iPad\s*Air`), "iPad Air"},
	{regexp.MustCompile(`(?i)iPad\s*mini`), "iPad mini"},
	{regexp.MustCompile(`(?i)iPad`), "iPad"},
	{regexp.MustCompile(`(?i)Apple\s*TV`), "Apple TV"},
}

func matchProductType(name string, rules []productTypeRule) *string {
	for _, rule := range rules {
		if rule.pattern.MatchString(name) {
			t := rule.name
			return &t
		}
	}
	return nil
}
