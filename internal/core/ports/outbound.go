package ports

import (
	"context"

	"github.com/bekzodov/kutubxona-bot/internal/core/domain"
)

// CatalogStore is the query surface of the externally managed catalog.
type CatalogStore interface {
	ChildrenOf(ctx context.Context, parentID *int64) ([]domain.Category, error)
	FindByNameAndParent(ctx context.Context, name string, parentID *int64) (*domain.Category, error)
	GetCategory(ctx context.Context, id int64) (*domain.Category, error)
	DocumentsOf(ctx context.Context, categoryID int64) ([]domain.Document, error)
	CreateDocument(ctx context.Context, doc *domain.Document) error
}

// AccessGate answers whether an identity may ingest content.
type AccessGate interface {
	IsAuthorized(ctx context.Context, identity string) bool
}

// Choice is one selectable entry of a rendered menu. Token is echoed back by
// the transport when the user taps the entry.
type Choice struct {
	Label string
	Token string
}

// Transport is the outbound side of the chat channel.
type Transport interface {
	RenderChoices(ctx context.Context, identity, prompt string, choices []Choice, backOption bool) error
	SendDocument(ctx context.Context, identity, contentRef, caption string) error
	SendNotice(ctx context.Context, identity, text string) error
}

// SessionStore holds per-identity conversation state. Access to one session
// is serialized by the per-chat event lanes, so implementations only need
// map-level safety.
type SessionStore interface {
	Get(identity string) *domain.Session
	Len() int
}

// EventPublisher emits catalog change notifications for external consumers.
type EventPublisher interface {
	PublishDocumentCommitted(ctx context.Context, documentID string) error
}
