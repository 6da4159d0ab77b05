package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS items (
		id BIGSERIAL PRIMARY KEY,
		origin_id TEXT NOT NULL UNIQUE,
		source_name TEXT NOT NULL,
		title TEXT NOT NULL,
		raw_text TEXT NOT NULL DEFAULT '',
		short_description TEXT NOT NULL DEFAULT '',
		published_at TIMESTAMPTZ NOT NULL,
		scraped_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		metadata JSONB NOT NULL DEFAULT '{}'::jsonb
	)`,
	`CREATE INDEX IF NOT EXISTS items_source_published_idx ON items (source_name, published_at DESC)`,
	`CREATE INDEX IF NOT EXISTS items_published_idx ON items (published_at DESC)`,
	`CREATE TABLE IF NOT EXISTS digests (
		id BIGSERIAL PRIMARY KEY,
		item_id BIGINT NOT NULL UNIQUE REFERENCES items (id),
		title TEXT NOT NULL,
		summary TEXT NOT NULL,
		url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS digests_created_idx ON digests (created_at DESC)`,
}

// Migrate creates the tables and indexes when they are missing.
func Migrate(ctx context.Context, db DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// NewPool opens and pings a pgx connection pool.
func NewPool(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}
