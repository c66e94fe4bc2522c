package notify

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"refurb_tracker/internal/domain"
	"refurb_tracker/internal/shorten"
)

var (
	refurbMarker = regexp.MustCompile(`整修品.*$`)
	brandPrefix  = regexp.MustCompile(`(?i)Apple\s*`)
)

// Batch is one size-bounded notification message, carrying the identity
// keys of the products it covers for the audit log.
type Batch struct {
	Message     string
	ProductKeys []string
}

// BatchOutcome records whether one batch reached the subscriber.
type BatchOutcome struct {
	Batch     Batch
	Delivered bool
}

// Batcher formats matched products into paced message batches.
type Batcher struct {
	size      int
	delay     time.Duration
	shortener shorten.Shortener
	manager   *Manager
	logger    *slog.Logger
}

func NewBatcher(size int, delay time.Duration, shortener shorten.Shortener, manager *Manager, logger *slog.Logger) *Batcher {
	if size <= 0 {
		size = 10
	}
	if delay <= 0 {
		delay = time.Second
	}
	return &Batcher{
		size:      size,
		delay:     delay,
		shortener: shortener,
		manager:   manager,
		logger:    logger.With("component", "batcher"),
	}
}

// BuildMessages splits matched products into batches. The first batch
// opens with the total count; the batch position marker appears on every
// batch once there is more than one.
func (b *Batcher) BuildMessages(ctx context.Context, matched []domain.MatchedProduct) []Batch {
	if len(matched) == 0 {
		return nil
	}

	total := (len(matched) + b.size - 1) / b.size
	batches := make([]Batch, 0, total)

	for i := 0; i < total; i++ {
		start := i * b.size
		end := min(start+b.size, len(matched))
		chunk := matched[start:end]

		var sb strings.Builder
		if i == 0 {
			fmt.Fprintf(&sb, "🆕 發現 %d 個新整修產品！\n", len(matched))
		}
		if total > 1 {
			fmt.Fprintf(&sb, "📄 第 %d/%d 批\n", i+1, total)
		}

		keys := make([]string, 0, len(chunk))
		for j, p := range chunk {
			sb.WriteString("\n")
			b.writeProductLine(ctx, &sb, start+j+1, p)
			keys = append(keys, domain.IdentityKey(p.URL))
		}

		batches = append(batches, Batch{Message: sb.String(), ProductKeys: keys})
	}

	return batches
}

func (b *Batcher) writeProductLine(ctx context.Context, sb *strings.Builder, index int, p domain.MatchedProduct) {
	fmt.Fprintf(sb, "%d. %s\n", index, shortName(p.Name))
	if label := p.Spec.Label(); label != "" {
		fmt.Fprintf(sb, "📋 %s\n", label)
	}
	fmt.Fprintf(sb, "💰 %s\n", priceLine(p.Product))
	if len(p.MatchingRuleNames) > 0 {
		fmt.Fprintf(sb, "🎯 符合規則: %s\n", strings.Join(p.MatchingRuleNames, ", "))
	}
	fmt.Fprintf(sb, "🔗 %s\n", b.shortener.Shorten(ctx, p.URL))
}

// shortName strips the trailing refurbished marker and the brand prefix
// so batch lines stay compact.
func shortName(name string) string {
	name = refurbMarker.ReplaceAllString(name, "")
	name = brandPrefix.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}

func priceLine(p domain.Product) string {
	if p.PriceText != "" {
		return p.PriceText
	}
	if p.PriceValue > 0 {
		return fmt.Sprintf("NT$%d", p.PriceValue)
	}
	return "價格未知"
}

// Deliver sends a subscriber's batches sequentially with a fixed delay
// between them. A failed batch is logged and skipped; the remaining
// batches still go out.
func (b *Batcher) Deliver(ctx context.Context, sub domain.Subscriber, batches []Batch) []BatchOutcome {
	outcomes := make([]BatchOutcome, 0, len(batches))

	for i, batch := range batches {
		if i > 0 {
			select {
			case <-ctx.Done():
				b.logger.Warn("delivery cancelled", "subscriber", sub.ID, "remaining", len(batches)-i)
				return outcomes
			case <-time.After(b.delay):
			}
		}

		results := b.manager.Send(ctx, sub, batch.Message)
		delivered := Delivered(results)
		if !delivered {
			b.logger.Warn("batch delivery failed", "subscriber", sub.ID, "batch", i+1, "total", len(batches))
		}
		outcomes = append(outcomes, BatchOutcome{Batch: batch, Delivered: delivered})
	}

	return outcomes
}
