package dispatch

import (
	"context"
	"fmt"

	"github.com/arendabot/arendabot/internal/event"
	"github.com/arendabot/arendabot/internal/model"
)

const (
	welcomeReply = "You're subscribed to listing updates. Use /stop to unsubscribe."
	goodbyeReply = "You're unsubscribed. Send /start to subscribe again."
	helpReply    = "Commands: /start, /stop, /status, /ping, /help"
	unknownReply = "Unknown command. Try /help."
	promptReply  = "Use /help to see what I can do."
)

// SubscriberRegistry is the write side of the subscriber store the commands
// need. *repository.SubscriberRepository satisfies it.
type SubscriberRegistry interface {
	Upsert(ctx context.Context, chatID int64, username string) error
	Deactivate(ctx context.Context, chatID int64) error
}

// StartCommand subscribes the chat and welcomes the user.
func StartCommand(subs SubscriberRegistry) event.Handler {
	return event.NewHandler("start", func(ctx context.Context, ev model.Event) (string, error) {
		if err := subs.Upsert(ctx, ev.ChatID, ev.Username); err != nil {
			return "", fmt.Errorf("subscribe chat %d: %w", ev.ChatID, err)
		}
		return welcomeReply, nil
	})
}

// StopCommand deactivates the chat's subscription.
func StopCommand(subs SubscriberRegistry) event.Handler {
	return event.NewHandler("stop", func(ctx context.Context, ev model.Event) (string, error) {
		if err := subs.Deactivate(ctx, ev.ChatID); err != nil {
			return "", fmt.Errorf("unsubscribe chat %d: %w", ev.ChatID, err)
		}
		return goodbyeReply, nil
	})
}

// PingCommand answers pong; useful to check the bot is alive end to end.
func PingCommand() event.Handler {
	return event.NewHandler("ping", func(context.Context, model.Event) (string, error) {
		return "pong", nil
	})
}

// HelpCommand lists the available commands.
func HelpCommand() event.Handler {
	return event.NewHandler("help", func(context.Context, model.Event) (string, error) {
		return helpReply, nil
	})
}

// StatusCommand renders the process counters for the chat.
func StatusCommand(status StatusFunc) event.Handler {
	return event.NewHandler("status", func(ctx context.Context, ev model.Event) (string, error) {
		st, err := status(ctx)
		if err != nil {
			return "", fmt.Errorf("collect status: %w", err)
		}
		return st.Text(), nil
	})
}

// DigestTick handles scheduler ticks. An empty reply means there is nothing
// to send this round, which is the default until a listing source composes
// digests here.
func DigestTick() event.Handler {
	return event.NewHandler("digest", func(context.Context, model.Event) (string, error) {
		return "", nil
	})
}

// Fallback answers free-text messages that are not commands.
func Fallback() event.Handler {
	return event.NewHandler("fallback", func(context.Context, model.Event) (string, error) {
		return promptReply, nil
	})
}

// Unknown answers commands nothing is registered for.
func Unknown() event.Handler {
	return event.NewHandler("unknown", func(context.Context, model.Event) (string, error) {
		return unknownReply, nil
	})
}
