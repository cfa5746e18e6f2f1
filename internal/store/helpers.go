package store

import (
	"context"
	"database/sql"
	"errors"
)

// isNoRows reports whether err is sql.ErrNoRows, the signal a QueryRow...Scan
// uses for "RETURNING produced nothing" (e.g. an ON CONFLICT DO NOTHING that
// hit the conflict branch).
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// execer is satisfied by both *sqlx.DB and *sqlx.Tx, since each embeds the
// matching *sql.DB/*sql.Tx and promotes these methods unchanged. Store
// methods that need to participate in a caller-managed transaction accept
// this instead of hardcoding db.SQLX(), so the same query logic runs
// standalone or inside a BeginTxx/Commit block.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}
