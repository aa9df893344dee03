package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/bekzodov/kutubxona-bot/internal/core/domain"
	"github.com/bekzodov/kutubxona-bot/internal/core/ports"
)

const noticeNothingFound = "📭 Nothing here yet."

// DeliveryPacer fans the documents of a resolved leaf back to the requesting
// session, one at a time, spaced by a minimum interval so outbound-channel
// rate limits are respected.
type DeliveryPacer struct {
	catalog   ports.CatalogStore
	transport ports.Transport
	interval  time.Duration
	logger    *slog.Logger
}

func NewDeliveryPacer(catalog ports.CatalogStore, transport ports.Transport, interval time.Duration, logger *slog.Logger) *DeliveryPacer {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &DeliveryPacer{
		catalog:   catalog,
		transport: transport,
		interval:  interval,
		logger:    logger,
	}
}

// Deliver sends every document of leaf, newest first, exactly once. A faulty
// document is logged and skipped; the pass never aborts early and never
// retries. An error is returned only when the document set itself cannot be
// fetched, before anything was dispatched.
func (p *DeliveryPacer) Deliver(ctx context.Context, identity string, leaf domain.Category) error {
	docs, err := p.catalog.DocumentsOf(ctx, leaf.ID)
	if err != nil {
		return fmt.Errorf("fetch documents of %q: %w", leaf.Name, err)
	}
	if len(docs) == 0 {
		if err := p.transport.SendNotice(ctx, identity, noticeNothingFound); err != nil {
			p.logger.Error("empty_notice_failed", "category_id", leaf.ID, "error", err)
		}
		return nil
	}

	// Fresh limiter per pass: pacing is a per-delivery guarantee.
	limiter := rate.NewLimiter(rate.Every(p.interval), 1)
	delivered := 0
	for _, doc := range docs {
		if err := limiter.Wait(ctx); err != nil {
			p.logger.Warn("delivery_interrupted", "category_id", leaf.ID, "sent", delivered, "total", len(docs))
			return nil
		}
		if err := p.transport.SendDocument(ctx, identity, doc.FileID, doc.Caption); err != nil {
			p.logger.Error("delivery_failed", "document_id", doc.ID, "category_id", leaf.ID, "error", err)
			continue
		}
		delivered++
	}

	p.logger.Info("delivery_pass_done", "category_id", leaf.ID, "sent", delivered, "total", len(docs))
	return nil
}
