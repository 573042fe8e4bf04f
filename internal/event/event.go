// Package event defines the contracts between the bot's transports and its
// handlers: what a handler looks like, how events route to handlers, and how
// replies travel back. The surrounding framework (webhook server, scheduler)
// delivers events; handlers never see the transport.
package event

import (
	"context"

	"github.com/arendabot/arendabot/internal/model"
)

// Handler processes one inbound event and returns the reply text to send back
// to the originating chat (empty for no reply). The returned error is the
// handler's failure; the failure boundary decides what the user sees.
type Handler interface {
	Name() string
	Handle(ctx context.Context, ev model.Event) (string, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev model.Event) (string, error)

type funcHandler struct {
	name string
	fn   HandlerFunc
}

// NewHandler wraps fn as a named Handler. The name becomes the source field of
// every log record the boundary emits for this handler.
func NewHandler(name string, fn HandlerFunc) Handler {
	return &funcHandler{name: name, fn: fn}
}

func (h *funcHandler) Name() string { return h.name }

func (h *funcHandler) Handle(ctx context.Context, ev model.Event) (string, error) {
	return h.fn(ctx, ev)
}

// Responder sends a reply to a chat over whatever transport the deployment
// uses. Implementations must be safe for concurrent use.
type Responder interface {
	Respond(ctx context.Context, chatID int64, text string) error
}
