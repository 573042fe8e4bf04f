package model

import (
	"strconv"
	"time"
)

// EventKind classifies an inbound event the way the bot's transport delivers
// it: a slash command, a free-text message, an inline-keyboard callback, or a
// scheduler tick synthesized inside the process.
type EventKind string

const (
	EventCommand  EventKind = "command"
	EventMessage  EventKind = "message"
	EventCallback EventKind = "callback"
	EventTick     EventKind = "tick"
)

// Event is one inbound unit of work. The transport adapter (webhook, poller,
// scheduler) fills it in; handlers only ever see this shape.
type Event struct {
	ID         string    `json:"id"`
	Kind       EventKind `json:"kind"`
	Command    string    `json:"command,omitempty"`
	ChatID     int64     `json:"chat_id"`
	UserID     int64     `json:"user_id,omitempty"`
	Username   string    `json:"username,omitempty"`
	Text       string    `json:"text,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// Meta returns the attributes a log record carries for this event.
func (e Event) Meta() map[string]string {
	m := map[string]string{
		"event_id": e.ID,
		"kind":     string(e.Kind),
	}
	if e.ChatID != 0 {
		m["chat_id"] = strconv.FormatInt(e.ChatID, 10)
	}
	if e.Command != "" {
		m["command"] = e.Command
	}
	return m
}
