package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"refurb_tracker/internal/domain"
)

// Store is the in-memory fallback used when the database is unreachable
// at startup. It serves the same interfaces as the postgres stores with
// weaker durability: everything is lost on restart.
type Store struct {
	mu            sync.RWMutex
	history       map[string]domain.HistoryEntry
	rules         map[string][]domain.TrackingRule
	subscribers   map[string]domain.Subscriber
	snapshots     map[string]domain.DailySnapshot
	notifications []domain.NotificationRecord
	tracking      bool
}

func NewStore() *Store {
	return &Store{
		history:     make(map[string]domain.HistoryEntry),
		rules:       make(map[string][]domain.TrackingRule),
		subscribers: make(map[string]domain.Subscriber),
		snapshots:   make(map[string]domain.DailySnapshot),
	}
}

func (s *Store) Load(context.Context) (map[string]domain.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := make(map[string]domain.HistoryEntry, len(s.history))
	for key, entry := range s.history {
		history[key] = entry
	}
	return history, nil
}

func (s *Store) UpsertBatch(_ context.Context, products []domain.Product, seenAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool, len(products))
	for _, p := range products {
		key := domain.IdentityKey(p.URL)
		// Query variants of one listing collapse to the same key; the
		// first occurrence wins, matching the postgres store.
		if seen[key] {
			continue
		}
		seen[key] = true
		entry, exists := s.history[key]
		if !exists {
			entry.FirstSeen = seenAt
		}
		entry.Product = p
		entry.LastSeen = seenAt
		s.history[key] = entry
	}
	return nil
}

func (s *Store) CountHistory(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history), nil
}

func (s *Store) ListEnabled(_ context.Context, subscriberID string) ([]domain.TrackingRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var enabled []domain.TrackingRule
	for _, rule := range s.rules[subscriberID] {
		if rule.Enabled {
			enabled = append(enabled, rule)
		}
	}
	return enabled, nil
}

func (s *Store) UpsertRule(_ context.Context, subscriberID string, rule domain.TrackingRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rules := s.rules[subscriberID]
	for i, existing := range rules {
		if existing.ID == rule.ID {
			rules[i] = rule
			return nil
		}
	}
	s.rules[subscriberID] = append(rules, rule)
	return nil
}

func (s *Store) CountEnabled(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, rules := range s.rules {
		for _, rule := range rules {
			if rule.Enabled {
				count++
			}
		}
	}
	return count, nil
}

func (s *Store) ListActive(context.Context) ([]domain.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var active []domain.Subscriber
	for _, sub := range s.subscribers {
		if sub.IsActive {
			active = append(active, sub)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})
	return active, nil
}

func (s *Store) UpsertSubscriber(_ context.Context, sub domain.Subscriber) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers[sub.ID] = sub
	return nil
}

func (s *Store) UpdateLastSummaryDate(_ context.Context, subscriberID, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscribers[subscriberID]
	if !ok {
		return fmt.Errorf("unknown subscriber: %s", subscriberID)
	}
	sub.LastSummaryDate = date
	s.subscribers[subscriberID] = sub
	return nil
}

func (s *Store) CountActive(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, sub := range s.subscribers {
		if sub.IsActive {
			count++
		}
	}
	return count, nil
}

func (s *Store) Get(_ context.Context, date string) (*domain.DailySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[date]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (s *Store) Save(_ context.Context, snap domain.DailySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.Date] = snap
	return nil
}

func (s *Store) LatestBefore(_ context.Context, date string) (*domain.DailySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	best := ""
	for candidate := range s.snapshots {
		if candidate < date && candidate > best {
			best = candidate
		}
	}
	if best == "" {
		return nil, nil
	}
	snap := s.snapshots[best]
	return &snap, nil
}

func (s *Store) DeleteOlderThan(_ context.Context, cutoff string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for date := range s.snapshots {
		if date < cutoff {
			delete(s.snapshots, date)
			deleted++
		}
	}
	return deleted, nil
}

func (s *Store) Append(_ context.Context, rec domain.NotificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, rec)
	return nil
}

func (s *Store) CountSince(_ context.Context, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, rec := range s.notifications {
		if !rec.SentAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *Store) GetTracking(context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tracking, nil
}

func (s *Store) SetTracking(_ context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracking = enabled
	return nil
}
