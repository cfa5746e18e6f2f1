package alert

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrov/finradar/pkg/models"
)

type stubSender struct {
	calls int
	fail  map[int64]bool
}

func (s *stubSender) SendCard(ctx context.Context, chatID int64, news *models.AnalyzedNews) error {
	s.calls++
	if s.fail[chatID] {
		return errors.New("send failed")
	}
	return nil
}

type stubAnalyzed struct {
	rows []models.AnalyzedNews
	err  error
}

func (s *stubAnalyzed) HotNewSince(ctx context.Context, threshold float64, windowSeconds int) ([]models.AnalyzedNews, error) {
	return s.rows, s.err
}

type stubSubscribers struct {
	subs    []models.Subscriber
	marked  []int64
	markErr error
}

func (s *stubSubscribers) Active(ctx context.Context) ([]models.Subscriber, error) {
	return s.subs, nil
}

func (s *stubSubscribers) MarkNotified(ctx context.Context, chatID int64) error {
	s.marked = append(s.marked, chatID)
	return s.markErr
}

type stubNotified struct {
	seen map[int64]bool
	adds []int64
}

func newStubNotified() *stubNotified {
	return &stubNotified{seen: map[int64]bool{}}
}

func (s *stubNotified) Contains(ctx context.Context, id int64) (bool, error) {
	return s.seen[id], nil
}

func (s *stubNotified) Add(ctx context.Context, id int64) error {
	s.adds = append(s.adds, id)
	return nil
}

func TestMonitor_Name(t *testing.T) {
	m := New(&stubAnalyzed{}, &stubSubscribers{}, newStubNotified(), &stubSender{}, Config{Threshold: 0.7, CheckInterval: time.Minute})
	assert.Equal(t, "hot-news-monitor", m.Name())
}

func TestMonitor_Run_PushesToAllSubscribersAndRecordsNotified(t *testing.T) {
	analyzed := &stubAnalyzed{rows: []models.AnalyzedNews{{ID: 42}}}
	subscribers := &stubSubscribers{subs: []models.Subscriber{{ChatID: 1}, {ChatID: 2}}}
	notified := newStubNotified()
	sender := &stubSender{}

	m := New(analyzed, subscribers, notified, sender, Config{Threshold: 0.7, CheckInterval: time.Minute})
	err := m.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, sender.calls)
	assert.Equal(t, []int64{1, 2}, subscribers.marked)
	assert.Equal(t, []int64{42}, notified.adds)
}

func TestMonitor_Run_SkipsAlreadyNotifiedRows(t *testing.T) {
	analyzed := &stubAnalyzed{rows: []models.AnalyzedNews{{ID: 42}}}
	subscribers := &stubSubscribers{subs: []models.Subscriber{{ChatID: 1}}}
	notified := newStubNotified()
	notified.seen[42] = true
	sender := &stubSender{}

	m := New(analyzed, subscribers, notified, sender, Config{Threshold: 0.7, CheckInterval: time.Minute})
	err := m.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, sender.calls)
}

func TestMonitor_Run_ContinuesPastSendFailures(t *testing.T) {
	analyzed := &stubAnalyzed{rows: []models.AnalyzedNews{{ID: 42}}}
	subscribers := &stubSubscribers{subs: []models.Subscriber{{ChatID: 1}, {ChatID: 2}, {ChatID: 3}}}
	notified := newStubNotified()
	sender := &stubSender{fail: map[int64]bool{2: true}}

	m := New(analyzed, subscribers, notified, sender, Config{Threshold: 0.7, CheckInterval: time.Minute})
	err := m.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, sender.calls)
	// subscriber 2's failed send must not prevent 1 and 3 from being marked.
	assert.ElementsMatch(t, []int64{1, 3}, subscribers.marked)
}

func TestMonitor_Run_NoRowsIsNoop(t *testing.T) {
	analyzed := &stubAnalyzed{}
	m := New(analyzed, &stubSubscribers{}, newStubNotified(), &stubSender{}, Config{})
	err := m.Run(context.Background())
	require.NoError(t, err)
}
