package render

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Renderer fetches a page and exposes it as a parsed document for
// extraction. It abstracts whatever rendering capability backs it so the
// scrapers never touch transport details.
type Renderer interface {
	FetchPage(ctx context.Context, url string) (*goquery.Document, error)
	Close() error
}

// Config holds rendering session settings.
type Config struct {
	Timeout   time.Duration
	UserAgent string
}

// Session is a shared HTTP-backed renderer. The underlying client is
// created lazily on first use; concurrent first callers share a single
// initialization. Every fetch is an independent request, so concurrent
// source scrapes never interfere with each other.
type Session struct {
	timeout   time.Duration
	userAgent string
	logger    *slog.Logger

	mu     sync.Mutex
	client *http.Client
}

func NewSession(cfg Config, logger *slog.Logger) *Session {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "RefurbTracker/1.0"
	}
	return &Session{
		timeout:   timeout,
		userAgent: userAgent,
		logger:    logger.With("component", "renderer"),
	}
}

func (s *Session) ensureClient() *http.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		s.logger.Debug("initializing rendering session")
		s.client = &http.Client{Timeout: s.timeout}
	}
	return s.client
}

// FetchPage retrieves url and parses the response body. The per-fetch
// timeout bounds the whole request; exceeding it fails this URL only.
func (s *Session) FetchPage(ctx context.Context, url string) (*goquery.Document, error) {
	client := s.ensureClient()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

// Close releases the session. Safe to call more than once and before any
// fetch happened.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		s.client.CloseIdleConnections()
		s.client = nil
	}
	return nil
}
