package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"study_sync/internal/common"
	"study_sync/internal/platform/config"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
)

//go:embed schema.sql
var schemaSQL string

// Connect opens the pool and verifies the store is reachable. An unreachable
// store is fatal for every job, so callers should abort on error.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("open database: %v: %w", err, common.ErrLocalStore)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to %s:%s/%s: %v: %w", cfg.Host, cfg.Port, cfg.Name, err, common.ErrLocalStore)
	}
	return db, nil
}

// EnsureSchema creates the tables and indexes if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %v: %w", err, common.ErrLocalStore)
	}
	return nil
}
