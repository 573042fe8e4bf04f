// Package dispatch routes inbound events to handlers through the failure
// boundary and drives the periodic update fan-out.
package dispatch

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/arendabot/arendabot/internal/boundary"
	"github.com/arendabot/arendabot/internal/event"
	"github.com/arendabot/arendabot/internal/model"
)

// Dispatcher resolves a handler for each event and invokes it inside the
// boundary, so no handler failure ever reaches the transport.
type Dispatcher struct {
	registry *event.Registry
	guard    *boundary.Boundary
	log      zerolog.Logger
}

// NewDispatcher returns a Dispatcher over registry and guard.
func NewDispatcher(registry *event.Registry, guard *boundary.Boundary, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, guard: guard, log: log}
}

// Dispatch runs the handler registered for ev and returns its outcome. Events
// nothing is registered for get the unknown-command handler, so every event
// still produces a reply and a log record.
func (d *Dispatcher) Dispatch(ctx context.Context, ev model.Event) boundary.Outcome {
	h, ok := d.registry.Resolve(ev)
	if !ok {
		h = Unknown()
	}
	out := d.guard.Handle(ctx, ev, h)
	if !out.Succeeded() {
		d.log.Warn().
			Str("event_id", ev.ID).
			Str("handler", h.Name()).
			Str("classification", string(out.Failure.Class)).
			Msg("handler failure absorbed")
	}
	return out
}
