package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/jmoiron/sqlx"

	"github.com/dmitrov/finradar/pkg/models"
)

// EmbeddingStore persists Embedding rows and loads them back in bulk for
// Vector Index warm-up. Vectors are packed as little-endian float32 bytes;
// the pipeline never needs the database to do vector math, only to hold it,
// so no pgvector-style extension is required.
type EmbeddingStore struct {
	db *DB
}

// NewEmbeddingStore creates an EmbeddingStore.
func NewEmbeddingStore(db *DB) *EmbeddingStore {
	return &EmbeddingStore{db: db}
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}

// Save upserts the embedding for a normalized article.
func (s *EmbeddingStore) Save(ctx context.Context, e *models.Embedding) error {
	return saveEmbedding(ctx, s.db.SQLX(), e)
}

// SaveTx is Save run inside a caller-managed transaction, so the persisted
// embedding commits or rolls back together with the cluster it feeds into.
func (s *EmbeddingStore) SaveTx(ctx context.Context, tx *sqlx.Tx, e *models.Embedding) error {
	return saveEmbedding(ctx, tx, e)
}

func saveEmbedding(ctx context.Context, ex execer, e *models.Embedding) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO embeddings (normalized_id, vector, model_name, dim)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (normalized_id) DO UPDATE SET
			vector = EXCLUDED.vector,
			model_name = EXCLUDED.model_name,
			dim = EXCLUDED.dim
	`, e.NormalizedID, encodeVector(e.Vector), e.ModelName, e.Dim)
	if err != nil {
		return fmt.Errorf("save embedding: %w", err)
	}
	return nil
}

// LoadAll returns every embedding in normalized_id order, used to warm up
// the Vector Index so neighbor ids correspond to persisted state.
func (s *EmbeddingStore) LoadAll(ctx context.Context) ([]models.Embedding, error) {
	rows, err := s.db.SQLX().QueryContext(ctx, `
		SELECT normalized_id, vector, model_name, dim
		FROM embeddings
		ORDER BY normalized_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("load all embeddings: %w", err)
	}
	defer rows.Close()

	var out []models.Embedding
	for rows.Next() {
		var e models.Embedding
		var buf []byte
		if err := rows.Scan(&e.NormalizedID, &buf, &e.ModelName, &e.Dim); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		e.Vector = decodeVector(buf)
		out = append(out, e)
	}
	return out, rows.Err()
}
