package dedup

import (
	"fmt"
	"time"

	"github.com/dmitrov/finradar/internal/vectorindex"
)

const (
	// tauDup is the cosine-similarity threshold above which two articles are
	// considered the exact same report (possibly re-published or a wire
	// pickup), not merely the same story.
	tauDup = 0.95
	// tauStory is the threshold above which two articles are judged to
	// describe the same underlying event.
	tauStory = 0.89
	// windowHours bounds story-level matches only: a neighbor scoring at or
	// above tauStory but below tauDup is not a story match when it was
	// published more than this many hours apart (either direction). Matches
	// at or above tauDup are not limited by time.
	windowHours = 48
	// kNeighbors is how many nearest neighbors the vector index is asked
	// for per incoming article.
	kNeighbors = 30
)

// decision is the outcome of classifying one article against its nearest
// neighbors: the cluster it was assigned to (existing or freshly created)
// and a short human-readable reason, e.g. "dup@0.97", "story@0.91", "new".
type decision struct {
	clusterID int64
	isNew     bool
	reason    string
}

// candidate is everything classify needs to know about one neighbor
// article to decide whether it matches.
type candidate struct {
	normalizedID int64
	clusterID    int64
	lang         string
	publishedAt  time.Time
}

// classify walks the neighbor list in similarity order (vectorindex.Search
// already sorts descending) and returns the first hit at tauDup, else the
// first hit at tauStory within the time window and same language, else
// "new". The article's own id is always skipped, even if it is already
// indexed.
func classify(selfID int64, lang string, publishedAt time.Time, neighbors []vectorindex.Neighbor, lookup func(normalizedID int64) (candidate, bool)) decision {
	dup, ok := firstAbove(selfID, neighbors, lookup, tauDup, nil)
	if ok {
		return decision{clusterID: dup.clusterID, reason: formatReason("dup", simOf(neighbors, dup.normalizedID))}
	}

	storyGuard := func(c candidate) bool {
		if c.lang != lang {
			return false
		}
		age := publishedAt.Sub(c.publishedAt)
		if age < 0 {
			age = -age
		}
		return age <= windowHours*time.Hour
	}

	story, ok := firstAbove(selfID, neighbors, lookup, tauStory, storyGuard)
	if ok {
		return decision{clusterID: story.clusterID, reason: formatReason("story", simOf(neighbors, story.normalizedID))}
	}

	return decision{isNew: true, reason: "new"}
}

func firstAbove(selfID int64, neighbors []vectorindex.Neighbor, lookup func(int64) (candidate, bool), threshold float32, guard func(candidate) bool) (candidate, bool) {
	for _, n := range neighbors {
		if n.ID == selfID {
			continue
		}
		if n.Similarity < threshold {
			break // neighbors are sorted descending; nothing further qualifies
		}
		c, ok := lookup(n.ID)
		if !ok {
			continue
		}
		if guard != nil && !guard(c) {
			continue
		}
		return c, true
	}
	return candidate{}, false
}

func simOf(neighbors []vectorindex.Neighbor, id int64) float32 {
	for _, n := range neighbors {
		if n.ID == id {
			return n.Similarity
		}
	}
	return 0
}

func formatReason(kind string, sim float32) string {
	return fmt.Sprintf("%s@%.2f", kind, sim)
}
