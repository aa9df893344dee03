package ports

import (
	"context"

	"github.com/bekzodov/kutubxona-bot/internal/core/domain"
)

// EventHandler is the inbound contract of the conversation core. A returned
// error wrapping domain.ErrTemporary tells the transport to redeliver the
// event; any other error means the event was absorbed.
type EventHandler interface {
	HandleEvent(ctx context.Context, event domain.Event) error
}
