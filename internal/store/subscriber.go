package store

import (
	"context"
	"fmt"

	"github.com/dmitrov/finradar/pkg/models"
)

// SubscriberStore manages Telegram bot subscribers.
type SubscriberStore struct {
	db *DB
}

// NewSubscriberStore creates a SubscriberStore.
func NewSubscriberStore(db *DB) *SubscriberStore {
	return &SubscriberStore{db: db}
}

// Upsert registers a subscriber or reactivates a soft-deleted one.
func (s *SubscriberStore) Upsert(ctx context.Context, sub *models.Subscriber) error {
	_, err := s.db.SQLX().ExecContext(ctx, `
		INSERT INTO telegram_subscribers (chat_id, username, first_name, last_name, is_active)
		VALUES ($1,$2,$3,$4,TRUE)
		ON CONFLICT (chat_id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			is_active = TRUE
	`, sub.ChatID, sub.Username, sub.FirstName, sub.LastName)
	if err != nil {
		return fmt.Errorf("upsert subscriber: %w", err)
	}
	return nil
}

// Deactivate soft-deletes a subscriber by clearing is_active.
func (s *SubscriberStore) Deactivate(ctx context.Context, chatID int64) error {
	_, err := s.db.SQLX().ExecContext(ctx, `
		UPDATE telegram_subscribers SET is_active = FALSE WHERE chat_id = $1
	`, chatID)
	if err != nil {
		return fmt.Errorf("deactivate subscriber: %w", err)
	}
	return nil
}

// Active returns every subscriber currently opted in.
func (s *SubscriberStore) Active(ctx context.Context) ([]models.Subscriber, error) {
	rows, err := s.db.SQLX().QueryContext(ctx, `
		SELECT chat_id, username, first_name, last_name, subscribed_at, is_active, last_notification_at
		FROM telegram_subscribers WHERE is_active = TRUE
	`)
	if err != nil {
		return nil, fmt.Errorf("active subscribers: %w", err)
	}
	defer rows.Close()

	var out []models.Subscriber
	for rows.Next() {
		var sub models.Subscriber
		if err := rows.Scan(
			&sub.ChatID, &sub.Username, &sub.FirstName, &sub.LastName,
			&sub.SubscribedAt, &sub.IsActive, &sub.LastNotificationAt,
		); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// Get fetches a subscriber's current status, for /mystatus.
func (s *SubscriberStore) Get(ctx context.Context, chatID int64) (*models.Subscriber, bool, error) {
	var sub models.Subscriber
	err := s.db.SQLX().QueryRowContext(ctx, `
		SELECT chat_id, username, first_name, last_name, subscribed_at, is_active, last_notification_at
		FROM telegram_subscribers WHERE chat_id = $1
	`, chatID).Scan(
		&sub.ChatID, &sub.Username, &sub.FirstName, &sub.LastName,
		&sub.SubscribedAt, &sub.IsActive, &sub.LastNotificationAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get subscriber: %w", err)
	}
	return &sub, true, nil
}

// MarkNotified stamps last_notification_at after a successful send.
func (s *SubscriberStore) MarkNotified(ctx context.Context, chatID int64) error {
	_, err := s.db.SQLX().ExecContext(ctx, `
		UPDATE telegram_subscribers SET last_notification_at = now() WHERE chat_id = $1
	`, chatID)
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	return nil
}
