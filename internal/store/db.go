// Package store is the Postgres-backed persistence layer for every entity
// in the radar's data model: raw articles, normalized articles, embeddings,
// story clusters and their members, analyzed news, Telegram subscribers and
// pipeline cursor state.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/dmitrov/finradar/internal/config"
	"github.com/dmitrov/finradar/pkg/logger"
)

// DB wraps the Postgres connection pool shared by every store accessor.
type DB struct {
	conn *sqlx.DB
}

// Open connects to Postgres and verifies the connection is alive.
func Open(cfg *config.DatabaseConfig) (*DB, error) {
	conn, err := sqlx.Connect("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Name),
	)

	return &DB{conn: conn}, nil
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	if db.conn != nil {
		logger.Info("closing database connection")
		return db.conn.Close()
	}
	return nil
}

// Conn returns the underlying *sql.DB, used for migrations.
func (db *DB) Conn() *sql.DB {
	return db.conn.DB
}

// SQLX returns the sqlx.DB handle used by every accessor in this package.
func (db *DB) SQLX() *sqlx.DB {
	return db.conn
}

// Ping checks whether the database is reachable.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// BeginTxx starts a new sqlx transaction.
func (db *DB) BeginTxx(ctx context.Context) (*sqlx.Tx, error) {
	return db.conn.BeginTxx(ctx, nil)
}

// Health checks database health with a short timeout, for the readiness probe.
func (db *DB) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
