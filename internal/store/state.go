package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/dmitrov/finradar/pkg/models"
)

// StateStore manages the singleton PipelineState row that tracks the
// Deduplicator's high-water marks.
type StateStore struct {
	db *DB
}

// NewStateStore creates a StateStore.
func NewStateStore(db *DB) *StateStore {
	return &StateStore{db: db}
}

// Get loads the current pipeline state.
func (s *StateStore) Get(ctx context.Context) (*models.PipelineState, error) {
	var st models.PipelineState
	err := s.db.SQLX().QueryRowContext(ctx, `
		SELECT last_vectorized_id, last_clustered_id FROM pipeline_state WHERE id = 1
	`).Scan(&st.LastVectorizedID, &st.LastClusteredID)
	if err != nil {
		return nil, fmt.Errorf("get pipeline state: %w", err)
	}
	return &st, nil
}

// SetLastVectorizedID advances the Deduplicator's high-water mark. Never
// decreases: callers must only pass a value they have already processed up
// to.
func (s *StateStore) SetLastVectorizedID(ctx context.Context, id int64) error {
	_, err := s.db.SQLX().ExecContext(ctx, `
		UPDATE pipeline_state SET last_vectorized_id = $1 WHERE id = 1 AND last_vectorized_id < $1
	`, id)
	if err != nil {
		return fmt.Errorf("set last_vectorized_id: %w", err)
	}
	return nil
}

// SetLastClusteredID records the Deduplicator's last fully-clustered
// document id, mirroring last_vectorized_id for future stages that key off
// cluster membership rather than embedding.
func (s *StateStore) SetLastClusteredID(ctx context.Context, id int64) error {
	return setLastClusteredID(ctx, s.db.SQLX(), id)
}

// SetLastClusteredIDTx is SetLastClusteredID run inside a caller-managed
// transaction, so the high-water mark only advances together with the
// cluster write it describes.
func (s *StateStore) SetLastClusteredIDTx(ctx context.Context, tx *sqlx.Tx, id int64) error {
	return setLastClusteredID(ctx, tx, id)
}

func setLastClusteredID(ctx context.Context, ex execer, id int64) error {
	_, err := ex.ExecContext(ctx, `
		UPDATE pipeline_state SET last_clustered_id = $1 WHERE id = 1 AND last_clustered_id < $1
	`, id)
	if err != nil {
		return fmt.Errorf("set last_clustered_id: %w", err)
	}
	return nil
}
