package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bekzodov/kutubxona-bot/internal/core/domain"
	"github.com/bekzodov/kutubxona-bot/internal/core/ports"
)

const (
	captionTokenBlank    = "cap:blank"
	captionTokenOriginal = "cap:keep"

	noticeDenied        = "🚫 You are not allowed to upload documents."
	noticeSendDocuments = "📤 Send one or more documents, then /done. /cancel aborts."
	noticeNotADocument  = "Please send a document, or /done to continue, /cancel to abort."
	noticeBufferEmpty   = "No documents buffered yet. Send at least one before /done."
	noticeCancelled     = "Upload cancelled. Nothing was saved."
	promptCaption       = "✍️ Caption for this batch: pick an option or type your own."
	promptDestination   = "📂 Pick a destination category:"
)

// IngestionOptions collapses the historical flow variants into configuration:
// the per-batch captioning step can be present or absent. When absent, each
// draft keeps its originally attached caption.
type IngestionOptions struct {
	CaptionStep bool
}

// Ingestion is the gated multi-step upload controller. All state transitions
// operate on the caller's session; traversal toward a destination leaf is
// shared with the browse flow and ends in Commit.
type Ingestion struct {
	catalog   ports.CatalogStore
	gate      ports.AccessGate
	transport ports.Transport
	publisher ports.EventPublisher
	opts      IngestionOptions
	logger    *slog.Logger
}

func NewIngestion(
	catalog ports.CatalogStore,
	gate ports.AccessGate,
	transport ports.Transport,
	publisher ports.EventPublisher,
	opts IngestionOptions,
	logger *slog.Logger,
) *Ingestion {
	return &Ingestion{
		catalog:   catalog,
		gate:      gate,
		transport: transport,
		publisher: publisher,
		opts:      opts,
		logger:    logger,
	}
}

// Begin enters the upload flow. The gate is consulted before any transition;
// a denied identity gets a notice and the session is left exactly as it was.
func (ing *Ingestion) Begin(ctx context.Context, s *domain.Session) error {
	if !ing.gate.IsAuthorized(ctx, s.Identity) {
		ing.logger.Warn("upload_denied", "identity", s.Identity)
		return ing.transport.SendNotice(ctx, s.Identity, noticeDenied)
	}
	s.Reset()
	s.State = domain.StateUploadCollect
	return ing.transport.SendNotice(ctx, s.Identity, noticeSendDocuments)
}

// Collect handles one event while the session waits for files. Documents are
// appended to the buffer; anything else is rejected with a format notice and
// causes no state change.
func (ing *Ingestion) Collect(ctx context.Context, s *domain.Session, event domain.Event) error {
	if event.Kind != domain.KindDocument || event.Document == nil {
		return ing.transport.SendNotice(ctx, s.Identity, noticeNotADocument)
	}
	s.Drafts = append(s.Drafts, *event.Document)
	return ing.transport.SendNotice(ctx, s.Identity, fmt.Sprintf("Added. %d document(s) buffered.", len(s.Drafts)))
}

// Done confirms the buffered batch and moves on to captioning or straight to
// the destination pick. Confirming an empty buffer changes nothing.
func (ing *Ingestion) Done(ctx context.Context, s *domain.Session) error {
	if len(s.Drafts) == 0 {
		return ing.transport.SendNotice(ctx, s.Identity, noticeBufferEmpty)
	}
	if ing.opts.CaptionStep {
		s.State = domain.StateUploadCaption
		choices := []ports.Choice{
			{Label: "Leave blank", Token: captionTokenBlank},
			{Label: "Keep original", Token: captionTokenOriginal},
		}
		return ing.transport.RenderChoices(ctx, s.Identity, promptCaption, choices, false)
	}
	// No captioning step: every draft keeps its own captured caption.
	s.CaptionMode = domain.CaptionOriginal
	return ing.enterDestination(ctx, s)
}

// Caption records the batch caption choice and moves to the destination pick.
func (ing *Ingestion) Caption(ctx context.Context, s *domain.Session, event domain.Event) error {
	switch {
	case event.Token == captionTokenBlank:
		s.CaptionMode = domain.CaptionBlank
	case event.Token == captionTokenOriginal:
		s.CaptionMode = domain.CaptionOriginal
	case event.Kind == domain.KindText && event.Text != "":
		s.CaptionMode = domain.CaptionCustom
		s.Caption = event.Text
	default:
		return ing.transport.SendNotice(ctx, s.Identity, promptCaption)
	}
	return ing.enterDestination(ctx, s)
}

// Cancel clears the buffer and returns to idle without writing anything. It
// is valid from every non-idle upload state.
func (ing *Ingestion) Cancel(ctx context.Context, s *domain.Session) error {
	s.Reset()
	return ing.transport.SendNotice(ctx, s.Identity, noticeCancelled)
}

func (ing *Ingestion) enterDestination(ctx context.Context, s *domain.Session) error {
	// Fetch before transitioning so a store hiccup leaves the session
	// where it was and the retried event resumes from the same state.
	children, err := ing.catalog.ChildrenOf(ctx, nil)
	if err != nil {
		return fmt.Errorf("render destination menu: %w", err)
	}
	s.State = domain.StateUploadDest
	s.Position = nil
	choices := make([]ports.Choice, 0, len(children))
	for _, c := range children {
		choices = append(choices, ports.Choice{Label: c.Name, Token: CategoryToken(c.ID)})
	}
	return ing.transport.RenderChoices(ctx, s.Identity, promptDestination, choices, false)
}

// Commit persists every buffered draft under the resolved leaf, best-effort
// per draft. Failures are counted, never re-queued; the final notice reports
// saved-versus-requested and the buffer is cleared regardless of the outcome.
func (ing *Ingestion) Commit(ctx context.Context, s *domain.Session, leaf domain.Category) error {
	requested := len(s.Drafts)
	saved := 0
	for _, draft := range s.Drafts {
		doc := &domain.Document{
			ID:         uuid.NewString(),
			CategoryID: leaf.ID,
			FileID:     draft.FileID,
			Caption:    s.BatchCaption(draft),
			CreatedAt:  time.Now().UTC(),
		}
		if err := ing.catalog.CreateDocument(ctx, doc); err != nil {
			ing.logger.Error("commit_draft_failed", "category_id", leaf.ID, "file_id", draft.FileID, "error", err)
			continue
		}
		saved++
		if ing.publisher != nil {
			if err := ing.publisher.PublishDocumentCommitted(ctx, doc.ID); err != nil {
				ing.logger.Warn("commit_event_publish_failed", "document_id", doc.ID, "error", err)
			}
		}
	}

	s.Reset()
	ing.logger.Info("batch_committed", "category_id", leaf.ID, "saved", saved, "requested", requested)
	notice := fmt.Sprintf("✅ Saved %d of %d document(s) to %q.", saved, requested, leaf.Name)
	if err := ing.transport.SendNotice(ctx, s.Identity, notice); err != nil {
		// The commit outcome is already final; a lost notice must not
		// trigger a redelivery that could double-commit.
		ing.logger.Error("commit_notice_failed", "identity", s.Identity, "error", err)
	}
	return nil
}
