package telegram

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bekzodov/kutubxona-bot/internal/core/domain"
	"github.com/bekzodov/kutubxona-bot/internal/core/ports"
	"github.com/bekzodov/kutubxona-bot/internal/infrastructure/resilience"
	"github.com/bekzodov/kutubxona-bot/internal/observability/metrics"
)

const laneBuffer = 32

// Poller long-polls getUpdates and feeds events into per-chat lanes: events
// of one chat are handled strictly in arrival order, different chats run
// concurrently. The poller is the transport-side retry layer — a handler
// error wrapping domain.ErrTemporary is retried with backoff inside the
// lane, with the session untouched, so the event resumes from the same
// state.
type Poller struct {
	client      *Client
	handler     ports.EventHandler
	executor    *resilience.Executor
	metrics     *metrics.BotMetrics
	logger      *slog.Logger
	pollTimeout time.Duration

	mu    sync.Mutex
	lanes map[string]chan laneItem
	wg    sync.WaitGroup
}

type laneItem struct {
	event domain.Event
}

func NewPoller(
	client *Client,
	handler ports.EventHandler,
	executor *resilience.Executor,
	botMetrics *metrics.BotMetrics,
	pollTimeout time.Duration,
	logger *slog.Logger,
) *Poller {
	if pollTimeout <= 0 {
		pollTimeout = 30 * time.Second
	}
	return &Poller{
		client:      client,
		handler:     handler,
		executor:    executor,
		metrics:     botMetrics,
		logger:      logger,
		pollTimeout: pollTimeout,
		lanes:       make(map[string]chan laneItem),
	}
}

// Run blocks until ctx is cancelled, then drains the active lanes.
func (p *Poller) Run(ctx context.Context) error {
	var offset int64
	for {
		if ctx.Err() != nil {
			break
		}

		updates, err := p.client.GetUpdates(ctx, offset, p.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			p.logger.Warn("get_updates_failed", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(2 * time.Second):
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			event, callbackID, ok := toEvent(update)
			if !ok {
				continue
			}
			if callbackID != "" {
				if err := p.client.AnswerCallback(ctx, callbackID); err != nil {
					p.logger.Debug("answer_callback_failed", "error", err)
				}
			}
			p.dispatch(ctx, event)
		}
	}

	p.mu.Lock()
	for _, lane := range p.lanes {
		close(lane)
	}
	p.lanes = make(map[string]chan laneItem)
	p.mu.Unlock()
	p.wg.Wait()
	return ctx.Err()
}

func (p *Poller) dispatch(ctx context.Context, event domain.Event) {
	p.mu.Lock()
	lane, ok := p.lanes[event.Identity]
	if !ok {
		lane = make(chan laneItem, laneBuffer)
		p.lanes[event.Identity] = lane
		p.wg.Add(1)
		go p.runLane(ctx, lane)
	}
	p.mu.Unlock()

	select {
	case lane <- laneItem{event: event}:
	default:
		// A chat flooding faster than its lane drains loses the event;
		// the user re-sends. Blocking here would stall every other chat.
		p.logger.Warn("lane_overflow", "identity", event.Identity, "kind", event.Kind)
	}
}

func (p *Poller) runLane(ctx context.Context, lane <-chan laneItem) {
	defer p.wg.Done()
	for item := range lane {
		p.handleOne(ctx, item.event)
	}
}

func (p *Poller) handleOne(ctx context.Context, event domain.Event) {
	start := time.Now()
	err := p.executor.Execute(ctx, "event.handle", func(ctx context.Context) error {
		return p.handler.HandleEvent(ctx, event)
	}, classifyHandlerError)
	if err != nil && ctx.Err() == nil {
		p.logger.Error("event_failed", "identity", event.Identity, "kind", event.Kind, "error", err)
	}
	if p.metrics != nil {
		p.metrics.ObserveEvent(string(event.Kind), time.Since(start), err)
	}
}

// classifyHandlerError retries only temporary failures and keeps the breaker
// out of event handling: one slow store must not trip a breaker that would
// then reject unrelated chats.
func classifyHandlerError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	return resilience.ErrorClassification{
		Retryable:     domain.IsKind(err, domain.ErrTemporary),
		RecordFailure: false,
	}
}

// toEvent converts a raw update into a domain event. The second return is
// the callback id to acknowledge, the third reports whether the update is
// usable at all.
func toEvent(update Update) (domain.Event, string, bool) {
	if update.CallbackQuery != nil {
		cb := update.CallbackQuery
		identity := strconv.FormatInt(cb.From.ID, 10)
		if cb.Message != nil {
			identity = strconv.FormatInt(cb.Message.Chat.ID, 10)
		}
		return domain.Event{
			Identity: identity,
			Kind:     domain.KindText,
			Token:    cb.Data,
		}, cb.ID, true
	}

	if update.Message == nil {
		return domain.Event{}, "", false
	}
	msg := update.Message
	identity := strconv.FormatInt(msg.Chat.ID, 10)

	if msg.Document != nil {
		return domain.Event{
			Identity: identity,
			Kind:     domain.KindDocument,
			Document: &domain.DocumentDraft{
				FileID:          msg.Document.FileID,
				OriginalCaption: msg.Caption,
			},
		}, "", true
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return domain.Event{}, "", false
	}
	if strings.HasPrefix(text, "/") {
		command := strings.TrimPrefix(text, "/")
		command = strings.SplitN(command, " ", 2)[0]
		// Commands may arrive suffixed with the bot name in groups.
		command = strings.SplitN(command, "@", 2)[0]
		return domain.Event{
			Identity: identity,
			Kind:     domain.KindCommand,
			Command:  strings.ToLower(command),
		}, "", true
	}

	return domain.Event{
		Identity: identity,
		Kind:     domain.KindText,
		Text:     text,
	}, "", true
}
