package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"refurb_tracker/internal/domain"
)

// Result is one provider's verdict on one delivery attempt.
type Result struct {
	Success    bool      `json:"success"`
	Provider   string    `json:"provider"`
	ProviderID string    `json:"provider_id,omitempty"`
	SentAt     time.Time `json:"sent_at"`
}

// Provider is one outbound notification channel.
type Provider interface {
	Name() string
	Send(ctx context.Context, address, message string) (Result, error)
	Reply(ctx context.Context, replyToken, message string) error
	Close() error
}

// Manager holds the registered providers and routes a message to the
// ones a subscriber has enabled. Provider failures are isolated: one
// channel failing never suppresses the others.
type Manager struct {
	mu        sync.RWMutex
	providers []Provider
	logger    *slog.Logger
}

func NewManager(logger *slog.Logger) *Manager {
	return &Manager{logger: logger.With("component", "notify_manager")}
}

func (m *Manager) Register(p Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers = append(m.providers, p)
}

// Send delivers message to sub through every provider the subscriber has
// an address for and has not disabled. A missing preference entry means
// the provider is enabled.
func (m *Manager) Send(ctx context.Context, sub domain.Subscriber, message string) []Result {
	m.mu.RLock()
	providers := make([]Provider, len(m.providers))
	copy(providers, m.providers)
	m.mu.RUnlock()

	var results []Result
	for _, p := range providers {
		if enabled, present := sub.Preferences[p.Name()]; present && !enabled {
			continue
		}
		address, ok := sub.Addresses[p.Name()]
		if !ok || address == "" {
			continue
		}

		result, err := p.Send(ctx, address, message)
		if err != nil {
			m.logger.Warn("provider delivery failed",
				"provider", p.Name(),
				"subscriber", sub.ID,
				"error", err,
			)
			results = append(results, Result{Provider: p.Name(), SentAt: time.Now().UTC()})
			continue
		}
		results = append(results, result)
	}
	return results
}

// Delivered reports whether at least one provider accepted the message.
func Delivered(results []Result) bool {
	for _, r := range results {
		if r.Success {
			return true
		}
	}
	return false
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var lastErr error
	for _, p := range m.providers {
		if err := p.Close(); err != nil {
			m.logger.Warn("provider close failed", "provider", p.Name(), "error", err)
			lastErr = err
		}
	}
	return lastErr
}
