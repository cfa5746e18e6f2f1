package vectorindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIndex_SearchReturnsNearestFirst(t *testing.T) {
	idx := New()
	idx.Add(1, []float32{1, 0, 0})
	idx.Add(2, []float32{0, 1, 0})
	idx.Add(3, []float32{0.9, 0.1, 0})

	neighbors := idx.Search([]float32{1, 0, 0}, 2)
	assert.Len(t, neighbors, 2)
	assert.Equal(t, int64(1), neighbors[0].ID)
	assert.Equal(t, int64(3), neighbors[1].ID)
}

func TestIndex_SearchOnEmptyIndexReturnsNil(t *testing.T) {
	idx := New()
	assert.Nil(t, idx.Search([]float32{1, 0}, 5))
}

func TestIndex_SearchSkipsTombstonedIDs(t *testing.T) {
	idx := New()
	idx.Add(-1, []float32{1, 0})
	idx.Add(2, []float32{1, 0})

	neighbors := idx.Search([]float32{1, 0}, 5)
	assert.Len(t, neighbors, 1)
	assert.Equal(t, int64(2), neighbors[0].ID)
}

func TestIndex_SearchCapsAtK(t *testing.T) {
	idx := New()
	idx.AddBatch([]int64{1, 2, 3}, [][]float32{{1, 0}, {0.9, 0.1}, {0.5, 0.5}})
	assert.Len(t, idx.Search([]float32{1, 0}, 1), 1)
}

func TestIndex_Size(t *testing.T) {
	idx := New()
	assert.Equal(t, 0, idx.Size())
	idx.AddBatch([]int64{1, 2}, [][]float32{{1, 0}, {0, 1}})
	assert.Equal(t, 2, idx.Size())
}

func TestInnerProduct_OrthogonalVectorsAreZero(t *testing.T) {
	assert.Equal(t, float32(0), innerProduct([]float32{1, 0}, []float32{0, 1}))
}

func TestInnerProduct_UnequalLengthsUsesShorter(t *testing.T) {
	assert.Equal(t, float32(1), innerProduct([]float32{1, 1, 1}, []float32{1, 0}))
}
