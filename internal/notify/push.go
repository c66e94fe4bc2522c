package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const pushProviderName = "push"

// Push delivers messages through an HTTP push gateway that fronts the
// actual chat channel.
type Push struct {
	endpoint string
	token    string
	client   *http.Client
	logger   *slog.Logger
}

type PushConfig struct {
	Endpoint string
	Token    string
}

func NewPush(cfg PushConfig, logger *slog.Logger) *Push {
	return &Push{
		endpoint: cfg.Endpoint,
		token:    cfg.Token,
		client:   &http.Client{Timeout: 15 * time.Second},
		logger:   logger.With("provider", pushProviderName),
	}
}

func (p *Push) Name() string { return pushProviderName }

type pushPayload struct {
	To         string `json:"to,omitempty"`
	ReplyToken string `json:"reply_token,omitempty"`
	Message    string `json:"message"`
}

func (p *Push) Send(ctx context.Context, address, message string) (Result, error) {
	result := Result{Provider: pushProviderName, SentAt: time.Now().UTC()}

	if err := p.post(ctx, "/push", pushPayload{To: address, Message: message}); err != nil {
		return result, err
	}

	result.Success = true
	result.ProviderID = uuid.NewString()
	return result, nil
}

func (p *Push) Reply(ctx context.Context, replyToken, message string) error {
	return p.post(ctx, "/reply", pushPayload{ReplyToken: replyToken, Message: message})
}

func (p *Push) post(ctx context.Context, path string, payload pushPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push gateway returned %d", resp.StatusCode)
	}
	return nil
}

func (p *Push) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
