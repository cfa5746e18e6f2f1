package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubNormalizer struct {
	n   int
	err error
}

func (s *stubNormalizer) Run(ctx context.Context, batchSize int) (int, error) { return s.n, s.err }

type stubDeduplicator struct {
	n   int
	err error
}

func (s *stubDeduplicator) Run(ctx context.Context, batchSize int) (int, error) { return s.n, s.err }

type stubEnricher struct {
	n   int
	err error
}

func (s *stubEnricher) Run(ctx context.Context, limit int, delay time.Duration) (int, error) {
	return s.n, s.err
}

func TestWorker_RunsAllThreeStagesInOrder(t *testing.T) {
	w := New(&stubNormalizer{n: 5}, &stubDeduplicator{n: 3}, &stubEnricher{n: 1}, Config{BatchSize: 100, LLMLimit: 10})
	err := w.Run(context.Background())
	require.NoError(t, err)
}

func TestWorker_ContinuesPastStageErrors(t *testing.T) {
	w := New(
		&stubNormalizer{err: errors.New("boom")},
		&stubDeduplicator{n: 2},
		&stubEnricher{n: 1},
		Config{BatchSize: 10, LLMLimit: 10},
	)
	// a failed stage is logged and Run itself never surfaces the error — the
	// periodic worker runner moves on to the next tick rather than crashing
	// the loop.
	err := w.Run(context.Background())
	assert.NoError(t, err)
}

func TestWorker_Name(t *testing.T) {
	w := New(&stubNormalizer{}, &stubDeduplicator{}, &stubEnricher{}, Config{})
	assert.Equal(t, "pipeline", w.Name())
}
