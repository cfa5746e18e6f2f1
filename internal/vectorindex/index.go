// Package vectorindex implements the Vector Index (§4.D): a flat
// in-memory inner-product nearest-neighbor search, append-only and
// rebuildable from the Store. No ANN library is used — at the scale this
// system runs, a brute-force scan over unit-norm vectors is the documented
// design, not a shortcut.
package vectorindex

import (
	"sort"
	"sync"
)

// Neighbor is one search result: a normalized-article id and its
// similarity (inner product, which equals cosine for unit-norm vectors) to
// the query vector.
type Neighbor struct {
	ID         int64
	Similarity float32
}

// Index is a flat inner-product index, safe for a single writer with
// concurrent readers.
type Index struct {
	mu   sync.RWMutex
	ids  []int64
	vecs [][]float32
}

// New creates an empty Index.
func New() *Index {
	return &Index{}
}

// Add appends one vector. The Deduplicator is the sole writer (§4.D); this
// lock only protects concurrent readers from observing a partial add.
func (idx *Index) Add(id int64, vec []float32) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.ids = append(idx.ids, id)
	idx.vecs = append(idx.vecs, vec)
}

// AddBatch appends many vectors at once, used for warm-up from Store.
func (idx *Index) AddBatch(ids []int64, vecs [][]float32) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.ids = append(idx.ids, ids...)
	idx.vecs = append(idx.vecs, vecs...)
}

// Search returns the top-k neighbors of vec by inner product, including the
// query's own id if it is already indexed. Sentinel id -1 is never
// returned; it is reserved by callers for "no neighbor".
func (idx *Index) Search(vec []float32, k int) []Neighbor {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.ids) == 0 {
		return nil
	}

	results := make([]Neighbor, 0, len(idx.ids))
	for i, v := range idx.vecs {
		if idx.ids[i] == -1 {
			continue
		}
		results = append(results, Neighbor{ID: idx.ids[i], Similarity: innerProduct(vec, v)})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if len(results) > k {
		results = results[:k]
	}
	return results
}

// Size returns the number of indexed vectors.
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.ids)
}

func innerProduct(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
