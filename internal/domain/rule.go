package domain

import "time"

// RuleFilters is the filter set of one tracking rule. A nil field imposes
// no constraint.
type RuleFilters struct {
	ProductType *string `json:"product_type,omitempty" yaml:"product_type"`
	Chip        *string `json:"chip,omitempty" yaml:"chip"`
	Color       *string `json:"color,omitempty" yaml:"color"`
	MinMemory   *int    `json:"min_memory,omitempty" yaml:"min_memory"`
	MaxPrice    *int    `json:"max_price,omitempty" yaml:"max_price"`
	MinStorage  *int    `json:"min_storage,omitempty" yaml:"min_storage"`
}

// FilterCapabilities names the filter fields a source can serve.
type FilterCapabilities []string

// TrackingRule is a subscriber-owned named filter predicate. Disabled
// rules are retained but excluded from matching.
type TrackingRule struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Enabled   bool        `json:"enabled"`
	Filters   RuleFilters `json:"filters"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// SummarySettings controls a subscriber's daily summary delivery.
type SummarySettings struct {
	DailySummary struct {
		Enabled bool   `json:"enabled"`
		Time    string `json:"time"` // "HH:MM" in the reference time zone
	} `json:"daily_summary"`
}

// Subscriber is one notification recipient. Addresses maps a provider
// name to that provider's delivery address; Preferences toggles providers
// per subscriber (missing entry means enabled).
type Subscriber struct {
	ID              string            `json:"id"`
	IsActive        bool              `json:"is_active"`
	Addresses       map[string]string `json:"addresses"`
	Preferences     map[string]bool   `json:"preferences"`
	SummarySettings SummarySettings   `json:"summary_settings"`
	LastSummaryDate string            `json:"last_summary_date"`
	CreatedAt       time.Time         `json:"created_at"`
}
