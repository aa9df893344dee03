package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bekzodov/kutubxona-bot/internal/core/domain"
	"github.com/bekzodov/kutubxona-bot/internal/core/ports"
)

const (
	// BackToken is issued with every non-root menu and echoed by "go back".
	BackToken = "back"
	backLabel = "⬅️ Back"

	promptChoose       = "📚 Choose a category:"
	noticeIdleHint     = "Send /start to browse the catalog."
	noticeUnknownPick  = "That choice didn't match anything here. Pick one of the options below."
	noticeEmptyCatalog = "The catalog is empty right now. Try again later."
	noticeUnknownCmd   = "Unknown command. /start browses the catalog, /upload adds documents."
)

// Conversation routes inbound events through the per-session FSM: browse
// traversal, the upload flow, and delivery hand-off. Events for one identity
// are handled strictly in arrival order by the transport lanes, so no
// locking happens here.
type Conversation struct {
	sessions  ports.SessionStore
	nav       *Navigator
	ingest    *Ingestion
	delivery  *DeliveryPacer
	transport ports.Transport
	logger    *slog.Logger
}

func NewConversation(
	sessions ports.SessionStore,
	nav *Navigator,
	ingest *Ingestion,
	delivery *DeliveryPacer,
	transport ports.Transport,
	logger *slog.Logger,
) *Conversation {
	return &Conversation{
		sessions:  sessions,
		nav:       nav,
		ingest:    ingest,
		delivery:  delivery,
		transport: transport,
		logger:    logger,
	}
}

// HandleEvent processes one inbound event for its session. An error wrapping
// domain.ErrTemporary signals the transport to redeliver; any other return
// means the event was fully absorbed.
func (c *Conversation) HandleEvent(ctx context.Context, event domain.Event) error {
	s := c.sessions.Get(event.Identity)

	if event.Kind == domain.KindCommand {
		return c.handleCommand(ctx, s, event)
	}

	switch s.State {
	case domain.StateBrowsing:
		return c.handleBrowseInput(ctx, s, event)
	case domain.StateUploadCollect:
		return c.ingest.Collect(ctx, s, event)
	case domain.StateUploadCaption:
		return c.ingest.Caption(ctx, s, event)
	case domain.StateUploadDest:
		return c.handleDestInput(ctx, s, event)
	default:
		return c.transport.SendNotice(ctx, s.Identity, noticeIdleHint)
	}
}

func (c *Conversation) handleCommand(ctx context.Context, s *domain.Session, event domain.Event) error {
	switch event.Command {
	case domain.CommandStart:
		return c.startBrowse(ctx, s)
	case domain.CommandUpload:
		return c.ingest.Begin(ctx, s)
	case domain.CommandDone:
		if s.State == domain.StateUploadCollect {
			return c.ingest.Done(ctx, s)
		}
		return c.transport.SendNotice(ctx, s.Identity, noticeIdleHint)
	case domain.CommandCancel:
		if s.State == domain.StateIdle {
			return c.transport.SendNotice(ctx, s.Identity, noticeIdleHint)
		}
		return c.ingest.Cancel(ctx, s)
	default:
		return c.transport.SendNotice(ctx, s.Identity, noticeUnknownCmd)
	}
}

// startBrowse resets the session to the root of the tree and renders the
// top-level menu. Root has no ascend target, so no back option is offered.
func (c *Conversation) startBrowse(ctx context.Context, s *domain.Session) error {
	children, err := c.nav.Children(ctx, nil)
	if err != nil {
		return err
	}
	s.Reset()
	if len(children) == 0 {
		return c.transport.SendNotice(ctx, s.Identity, noticeEmptyCatalog)
	}
	s.State = domain.StateBrowsing
	return c.renderLevel(ctx, s, children)
}

func (c *Conversation) handleBrowseInput(ctx context.Context, s *domain.Session, event domain.Event) error {
	return c.advance(ctx, s, event, func(ctx context.Context, s *domain.Session, leaf domain.Category) error {
		// One-shot delivery: the walk terminates the moment a leaf is
		// chosen and nothing is retained afterwards.
		if err := c.delivery.Deliver(ctx, s.Identity, leaf); err != nil {
			return err
		}
		s.Reset()
		return nil
	})
}

func (c *Conversation) handleDestInput(ctx context.Context, s *domain.Session, event domain.Event) error {
	if event.Kind == domain.KindDocument {
		return c.transport.SendNotice(ctx, s.Identity, noticeUnknownPick)
	}
	return c.advance(ctx, s, event, c.ingest.Commit)
}

// advance performs one traversal step shared by the browse and destination
// flows: ascend on "back", descend on a branch pick, hand a resolved leaf to
// onLeaf, and re-render with a corrective notice on a failed resolution. The
// session position never moves when resolution fails.
func (c *Conversation) advance(
	ctx context.Context,
	s *domain.Session,
	event domain.Event,
	onLeaf func(context.Context, *domain.Session, domain.Category) error,
) error {
	if event.Token == BackToken || event.Text == backLabel {
		parent, err := c.nav.Ascend(ctx, s.Position)
		if err != nil {
			return err
		}
		children, err := c.nav.Children(ctx, parent)
		if err != nil {
			return err
		}
		s.Position = parent
		return c.renderLevel(ctx, s, children)
	}

	category, err := c.resolvePick(ctx, s, event)
	if domain.IsKind(err, domain.ErrCategoryNotFound) {
		if noticeErr := c.transport.SendNotice(ctx, s.Identity, noticeUnknownPick); noticeErr != nil {
			return noticeErr
		}
		children, childErr := c.nav.Children(ctx, s.Position)
		if childErr != nil {
			return childErr
		}
		return c.renderLevel(ctx, s, children)
	}
	if err != nil {
		return err
	}

	children, err := c.nav.Children(ctx, &category.ID)
	if err != nil {
		return err
	}
	if len(children) == 0 {
		return onLeaf(ctx, s, *category)
	}

	s.Position = &category.ID
	return c.renderLevel(ctx, s, children)
}

func (c *Conversation) resolvePick(ctx context.Context, s *domain.Session, event domain.Event) (*domain.Category, error) {
	if event.Token != "" {
		return c.nav.ResolveToken(ctx, s.Position, event.Token)
	}
	if event.Kind != domain.KindText || event.Text == "" {
		return nil, domain.WrapError(domain.ErrCategoryNotFound, "resolve pick", fmt.Errorf("unusable input of kind %q", event.Kind))
	}
	return c.nav.Resolve(ctx, s.Position, event.Text)
}

func (c *Conversation) renderLevel(ctx context.Context, s *domain.Session, children []domain.Category) error {
	prompt := promptChoose
	if s.State == domain.StateUploadDest {
		prompt = promptDestination
	}
	choices := make([]ports.Choice, 0, len(children))
	for _, child := range children {
		choices = append(choices, ports.Choice{Label: child.Name, Token: CategoryToken(child.ID)})
	}
	return c.transport.RenderChoices(ctx, s.Identity, prompt, choices, s.Position != nil)
}
