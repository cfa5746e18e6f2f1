package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrov/finradar/internal/vectorindex"
)

func candidates(cs ...candidate) func(int64) (candidate, bool) {
	byID := map[int64]candidate{}
	for _, c := range cs {
		byID[c.normalizedID] = c
	}
	return func(id int64) (candidate, bool) {
		c, ok := byID[id]
		return c, ok
	}
}

func TestClassify_ExactDuplicate(t *testing.T) {
	now := time.Now()
	lookup := candidates(candidate{normalizedID: 1, clusterID: 100, lang: "en", publishedAt: now})

	neighbors := []vectorindex.Neighbor{{ID: 1, Similarity: 0.97}}
	dec := classify(2, "en", now, neighbors, lookup)

	assert.False(t, dec.isNew)
	assert.Equal(t, int64(100), dec.clusterID)
	assert.Equal(t, "dup@0.97", dec.reason)
}

func TestClassify_SameStoryDifferentWording(t *testing.T) {
	now := time.Now()
	lookup := candidates(candidate{normalizedID: 1, clusterID: 100, lang: "en", publishedAt: now})

	neighbors := []vectorindex.Neighbor{{ID: 1, Similarity: 0.91}}
	dec := classify(2, "en", now, neighbors, lookup)

	assert.False(t, dec.isNew)
	assert.Equal(t, int64(100), dec.clusterID)
	assert.Equal(t, "story@0.91", dec.reason)
}

func TestClassify_CrossLanguageGuardBlocksStoryMatch(t *testing.T) {
	now := time.Now()
	lookup := candidates(candidate{normalizedID: 1, clusterID: 100, lang: "ru", publishedAt: now})

	neighbors := []vectorindex.Neighbor{{ID: 1, Similarity: 0.91}}
	dec := classify(2, "en", now, neighbors, lookup)

	assert.True(t, dec.isNew)
	assert.Equal(t, "new", dec.reason)
}

func TestClassify_OutsideWindowGuardBlocksStoryMatch(t *testing.T) {
	now := time.Now()
	old := now.Add(-72 * time.Hour)
	lookup := candidates(candidate{normalizedID: 1, clusterID: 100, lang: "en", publishedAt: old})

	neighbors := []vectorindex.Neighbor{{ID: 1, Similarity: 0.91}}
	dec := classify(2, "en", now, neighbors, lookup)

	assert.True(t, dec.isNew)
}

func TestClassify_BelowBothThresholdsIsNew(t *testing.T) {
	now := time.Now()
	lookup := candidates(candidate{normalizedID: 1, clusterID: 100, lang: "en", publishedAt: now})

	neighbors := []vectorindex.Neighbor{{ID: 1, Similarity: 0.5}}
	dec := classify(2, "en", now, neighbors, lookup)

	assert.True(t, dec.isNew)
}

func TestClassify_SelfIsAlwaysSkipped(t *testing.T) {
	now := time.Now()
	lookup := candidates(
		candidate{normalizedID: 1, clusterID: 100, lang: "en", publishedAt: now},
		candidate{normalizedID: 2, clusterID: 200, lang: "en", publishedAt: now},
	)

	// id 1 is the article itself (already indexed before search, e.g. a
	// re-run); its perfect self-similarity must not short-circuit the
	// decision.
	neighbors := []vectorindex.Neighbor{
		{ID: 1, Similarity: 1.0},
		{ID: 2, Similarity: 0.90},
	}
	dec := classify(1, "en", now, neighbors, lookup)

	assert.False(t, dec.isNew)
	assert.Equal(t, int64(200), dec.clusterID)
}

func TestClassify_DupTakesPriorityOverStoryWhenBothQualify(t *testing.T) {
	now := time.Now()
	lookup := candidates(
		candidate{normalizedID: 1, clusterID: 100, lang: "en", publishedAt: now},
		candidate{normalizedID: 2, clusterID: 200, lang: "en", publishedAt: now},
	)

	neighbors := []vectorindex.Neighbor{
		{ID: 2, Similarity: 0.96},
		{ID: 1, Similarity: 0.90},
	}
	dec := classify(3, "en", now, neighbors, lookup)

	assert.Equal(t, int64(200), dec.clusterID)
	assert.Equal(t, "dup@0.96", dec.reason)
}
