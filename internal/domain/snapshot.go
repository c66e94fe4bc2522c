package domain

import "time"

// DateLayout is the canonical snapshot date format. Lexicographic order on
// these strings matches chronological order.
const DateLayout = "2006-01-02"

// DailySnapshot is the full catalog capture for one calendar date. At most
// one snapshot exists per date; re-saving a date overwrites it.
type DailySnapshot struct {
	Date       string    `json:"date"`
	Products   []Product `json:"products"`
	TotalCount int       `json:"total_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// NotificationRecord is one entry of the append-only delivery audit log.
type NotificationRecord struct {
	ID           string    `json:"id"`
	SubscriberID string    `json:"subscriber_id"`
	Message      string    `json:"message"`
	ProductIDs   []string  `json:"product_ids"`
	SentAt       time.Time `json:"sent_at"`
}

// SummaryReport is the day-over-day delta computed by the snapshot differ.
type SummaryReport struct {
	Date        string
	NewCount    int
	Breakdown   map[string]int
	TotalToday  int
	TotalDelta  int
	NewProducts []Product
}

// CycleStats is the structured result of one tracking cycle. A cycle never
// fails outright; partial failures surface as Degraded plus log output.
type CycleStats struct {
	TotalProducts       int
	NewProducts         int
	TotalNewMatches     int
	NotifiedSubscribers int
	Skipped             bool
	Degraded            bool
	Duration            time.Duration
}
