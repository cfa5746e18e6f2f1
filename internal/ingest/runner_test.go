package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrov/finradar/pkg/models"
)

type stubSource struct {
	name     string
	articles []Article
	err      error
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) FetchLatest(ctx context.Context, limit int) ([]Article, error) {
	return s.articles, s.err
}

type stubSink struct {
	inserted []models.RawArticle
	dupe     map[string]bool
}

func (s *stubSink) Insert(ctx context.Context, a *models.RawArticle) (int64, bool, error) {
	if s.dupe[a.Title] {
		return 0, false, nil
	}
	s.inserted = append(s.inserted, *a)
	return int64(len(s.inserted)), true, nil
}

func TestRunner_InsertsArticlesFromEverySource(t *testing.T) {
	sinkStore := &stubSink{dupe: map[string]bool{}}
	src1 := &stubSource{name: "rss-a", articles: []Article{{Title: "A", Content: "one two three"}}}
	src2 := &stubSource{name: "rss-b", articles: []Article{{Title: "B", Content: "four five"}}}

	r := New(sinkStore, src1, src2)
	err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, sinkStore.inserted, 2)
}

func TestRunner_OneSourceErrorDoesNotBlockOthers(t *testing.T) {
	sinkStore := &stubSink{dupe: map[string]bool{}}
	failing := &stubSource{name: "broken", err: errors.New("fetch failed")}
	ok := &stubSource{name: "fine", articles: []Article{{Title: "ok"}}}

	r := New(sinkStore, failing, ok)
	err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, sinkStore.inserted, 1)
}

func TestRunner_NoSourcesIsAnError(t *testing.T) {
	r := New(&stubSink{dupe: map[string]bool{}})
	err := r.Run(context.Background())
	assert.Error(t, err)
}

func TestRunner_DuplicateTitleIsSkippedNotErrored(t *testing.T) {
	sinkStore := &stubSink{dupe: map[string]bool{"Already seen": true}}
	src := &stubSource{name: "rss-a", articles: []Article{{Title: "Already seen"}}}

	r := New(sinkStore, src)
	err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sinkStore.inserted)
}

func TestArticle_ToRawComputesWordCountAndReadingTime(t *testing.T) {
	a := Article{Title: "t", Content: "one two three four five", Published: time.Now()}
	raw := a.toRaw()
	assert.Equal(t, 5, raw.WordCount)
	assert.Equal(t, 1, raw.ReadingTime)
}
