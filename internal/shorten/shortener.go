package shorten

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Shortener shortens a URL on a best-effort basis. Implementations must
// never fail: on any error they return the original URL unchanged.
type Shortener interface {
	Shorten(ctx context.Context, rawURL string) string
}

const defaultEndpoint = "https://is.gd/create.php"

// ISGd shortens URLs through the is.gd simple API.
type ISGd struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

func NewISGd(endpoint string, logger *slog.Logger) *ISGd {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &ISGd{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger.With("component", "shortener"),
	}
}

func (s *ISGd) Shorten(ctx context.Context, rawURL string) string {
	target := fmt.Sprintf("%s?format=simple&url=%s", s.endpoint, url.QueryEscape(rawURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return rawURL
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Debug("shorten failed, using original url", "error", err)
		return rawURL
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if err != nil || resp.StatusCode != http.StatusOK {
		return rawURL
	}

	short := strings.TrimSpace(string(body))
	if !strings.HasPrefix(short, "http") || strings.Contains(short, "Error") {
		return rawURL
	}

	return short
}
