package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/arendabot/arendabot/internal/model"
)

// SubscriberRepository persists chats that asked for listing updates.
type SubscriberRepository struct {
	db *sql.DB
}

// NewSubscriberRepository returns a SubscriberRepository using the given
// database, creating the schema if it does not exist yet.
func NewSubscriberRepository(db *sql.DB) (*SubscriberRepository, error) {
	r := &SubscriberRepository{db: db}
	if err := r.migrate(); err != nil {
		return nil, fmt.Errorf("subscriber repository: migrate: %w", err)
	}
	return r, nil
}

func (r *SubscriberRepository) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS subscribers (
		chat_id      INTEGER PRIMARY KEY,
		username     TEXT NOT NULL DEFAULT '',
		active       INTEGER NOT NULL DEFAULT 1,
		created_at   TEXT NOT NULL,
		last_seen_at TEXT NOT NULL
	);`
	_, err := r.db.ExecContext(context.Background(), query)
	return err
}

// Upsert activates a subscription for chatID, creating it on first contact.
// Re-subscribing keeps the original created_at and refreshes the rest.
func (r *SubscriberRepository) Upsert(ctx context.Context, chatID int64, username string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	query := `
		INSERT INTO subscribers (chat_id, username, active, created_at, last_seen_at)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			username = excluded.username,
			active = 1,
			last_seen_at = excluded.last_seen_at`
	if _, err := r.db.ExecContext(ctx, query, chatID, username, now, now); err != nil {
		return fmt.Errorf("upsert subscriber %d: %w", chatID, err)
	}
	return nil
}

// Touch refreshes last_seen_at without changing the subscription state.
func (r *SubscriberRepository) Touch(ctx context.Context, chatID int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := r.db.ExecContext(ctx,
		`UPDATE subscribers SET last_seen_at = ? WHERE chat_id = ?`, now, chatID); err != nil {
		return fmt.Errorf("touch subscriber %d: %w", chatID, err)
	}
	return nil
}

// Deactivate stops updates for chatID. The row is kept so a later Upsert
// restores the original created_at.
func (r *SubscriberRepository) Deactivate(ctx context.Context, chatID int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE subscribers SET active = 0 WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("deactivate subscriber %d: %w", chatID, err)
	}
	return nil
}

// Active returns all active subscribers, oldest subscription first.
func (r *SubscriberRepository) Active(ctx context.Context) ([]model.Subscriber, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT chat_id, username, active, created_at, last_seen_at
		FROM subscribers
		WHERE active = 1
		ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []model.Subscriber
	for rows.Next() {
		var (
			sub      model.Subscriber
			created  string
			lastSeen string
		)
		if err := rows.Scan(&sub.ChatID, &sub.Username, &sub.Active, &created, &lastSeen); err != nil {
			return nil, err
		}
		sub.CreatedAt = parseTime(created)
		sub.LastSeenAt = parseTime(lastSeen)
		list = append(list, sub)
	}
	return list, rows.Err()
}

// Count returns the number of active subscribers.
func (r *SubscriberRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subscribers WHERE active = 1`).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func parseTime(value string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}
