package dispatch

import (
	"context"

	"github.com/rs/zerolog"
)

// LogResponder delivers replies to the operator console. It stands in for a
// chat transport: the conversational surface is an external collaborator, so
// the process only records what it would have sent.
type LogResponder struct {
	log zerolog.Logger
}

// NewLogResponder returns a LogResponder writing through log.
func NewLogResponder(log zerolog.Logger) *LogResponder {
	return &LogResponder{log: log}
}

// Respond logs the outgoing reply.
func (r *LogResponder) Respond(_ context.Context, chatID int64, text string) error {
	r.log.Info().Int64("chat_id", chatID).Str("text", text).Msg("reply sent")
	return nil
}
