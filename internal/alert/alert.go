// Package alert implements the hot-news push monitor (§4.H): it polls for
// newly analyzed news above a hotness threshold and pushes a rendered card
// to every active subscriber, tracking what it has already sent in a
// bounded, TTL-backed notified set.
package alert

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dmitrov/finradar/pkg/logger"
	"github.com/dmitrov/finradar/pkg/models"
)

// Sender delivers one rendered card to a subscriber; implemented by
// internal/adapters/telegram.
type Sender interface {
	SendCard(ctx context.Context, chatID int64, news *models.AnalyzedNews) error
}

// AnalyzedSource is the subset of internal/store.AnalyzedStore the monitor
// reads from.
type AnalyzedSource interface {
	HotNewSince(ctx context.Context, threshold float64, windowSeconds int) ([]models.AnalyzedNews, error)
}

// SubscriberSource is the subset of internal/store.SubscriberStore the
// monitor reads from and updates.
type SubscriberSource interface {
	Active(ctx context.Context) ([]models.Subscriber, error)
	MarkNotified(ctx context.Context, chatID int64) error
}

// NotifiedSet is the subset of internal/adapters/redisx.NotifiedSet the
// monitor uses to avoid re-sending the same news.
type NotifiedSet interface {
	Contains(ctx context.Context, analyzedID int64) (bool, error)
	Add(ctx context.Context, analyzedID int64) error
}

// Config configures the monitor's poll cadence and threshold.
type Config struct {
	Threshold     float64
	CheckInterval time.Duration
}

// Monitor is a pkg/worker.Worker that implements the hot-news push loop.
type Monitor struct {
	analyzed    AnalyzedSource
	subscribers SubscriberSource
	notified    NotifiedSet
	sender      Sender
	cfg         Config
}

// New creates a Monitor.
func New(analyzed AnalyzedSource, subscribers SubscriberSource, notified NotifiedSet, sender Sender, cfg Config) *Monitor {
	return &Monitor{
		analyzed:    analyzed,
		subscribers: subscribers,
		notified:    notified,
		sender:      sender,
		cfg:         cfg,
	}
}

// Name identifies this worker in logs.
func (m *Monitor) Name() string {
	return "hot-news-monitor"
}

// Run polls hot_new_since with a 2x window (tolerating one missed tick)
// and pushes any not-yet-notified row to every active subscriber.
func (m *Monitor) Run(ctx context.Context) error {
	windowSeconds := int(2 * m.cfg.CheckInterval.Seconds())

	rows, err := m.analyzed.HotNewSince(ctx, m.cfg.Threshold, windowSeconds)
	if err != nil {
		return fmt.Errorf("hot_new_since: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	subscribers, err := m.subscribers.Active(ctx)
	if err != nil {
		return fmt.Errorf("load active subscribers: %w", err)
	}

	for i := range rows {
		row := rows[i]

		already, err := m.notified.Contains(ctx, row.ID)
		if err != nil {
			logger.Warn("alert: notified-set check failed, sending anyway",
				zap.Int64("id", row.ID), zap.Error(err))
		} else if already {
			continue
		}

		m.pushToSubscribers(ctx, &row, subscribers)

		if err := m.notified.Add(ctx, row.ID); err != nil {
			logger.Warn("alert: failed to record notified id",
				zap.Int64("id", row.ID), zap.Error(err))
		}
	}

	return nil
}

// pushToSubscribers sends one card to every active subscriber. A failed
// send is logged and counted but never blocks the remaining subscribers.
func (m *Monitor) pushToSubscribers(ctx context.Context, row *models.AnalyzedNews, subscribers []models.Subscriber) {
	var sent, failed int
	for _, sub := range subscribers {
		if err := m.sender.SendCard(ctx, sub.ChatID, row); err != nil {
			failed++
			logger.Warn("alert: send failed",
				zap.Int64("chat_id", sub.ChatID), zap.Int64("news_id", row.ID), zap.Error(err))
			continue
		}
		sent++
		if err := m.subscribers.MarkNotified(ctx, sub.ChatID); err != nil {
			logger.Warn("alert: failed to record last_notification_at",
				zap.Int64("chat_id", sub.ChatID), zap.Error(err))
		}
	}

	logger.Info("alert: card pushed",
		zap.Int64("news_id", row.ID), zap.Int("sent", sent), zap.Int("failed", failed))
}
