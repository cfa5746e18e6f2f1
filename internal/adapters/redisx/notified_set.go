package redisx

import (
	"context"
	"fmt"
	"time"
)

// NotifiedSet is a bounded, TTL-backed "already alerted" set keyed on
// analyzed-news id (§9's "bounded LRU keyed on analyzed-news id", made
// durable across restarts by using Redis instead of an in-process set —
// a restart may still resend at most the window the hot_new_since query
// covers, per §3).
type NotifiedSet struct {
	client *Client
	ttl    time.Duration
}

// NewNotifiedSet creates a NotifiedSet with the given per-entry TTL.
func NewNotifiedSet(client *Client, ttl time.Duration) *NotifiedSet {
	return &NotifiedSet{client: client, ttl: ttl}
}

func (s *NotifiedSet) key(analyzedID int64) string {
	return fmt.Sprintf("notified_news:%d", analyzedID)
}

// Contains reports whether an analyzed-news id has already been notified.
func (s *NotifiedSet) Contains(ctx context.Context, analyzedID int64) (bool, error) {
	n, err := s.client.Raw().Exists(ctx, s.key(analyzedID)).Result()
	if err != nil {
		return false, fmt.Errorf("notified set contains: %w", err)
	}
	return n > 0, nil
}

// Add marks an analyzed-news id as notified, expiring after the configured
// TTL.
func (s *NotifiedSet) Add(ctx context.Context, analyzedID int64) error {
	if err := s.client.Raw().Set(ctx, s.key(analyzedID), 1, s.ttl).Err(); err != nil {
		return fmt.Errorf("notified set add: %w", err)
	}
	return nil
}
