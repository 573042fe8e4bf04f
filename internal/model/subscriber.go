package model

import "time"

// Subscriber is a chat the bot talks to. The periodic dispatcher fans tick
// events out to every active subscriber.
type Subscriber struct {
	ChatID     int64     `json:"chat_id"`
	Username   string    `json:"username,omitempty"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}
