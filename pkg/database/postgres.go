package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rstrack/rstrack/pkg/config"
)

// DB wraps the pgxpool.Pool. DB connections are created only here.
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(cfg *config.Config) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the database connection pool.
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Ping checks if the database is accessible.
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Migrate creates the tables and indexes the engine needs. Idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS instruments (
			symbol    TEXT PRIMARY KEY,
			name      TEXT NOT NULL DEFAULT '',
			sector    TEXT NOT NULL DEFAULT '',
			industry  TEXT NOT NULL DEFAULT '',
			active    BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS daily_bars (
			symbol       TEXT NOT NULL,
			trade_date   DATE NOT NULL,
			open_price   DOUBLE PRECISION NOT NULL,
			high_price   DOUBLE PRECISION NOT NULL,
			low_price    DOUBLE PRECISION NOT NULL,
			close_price  DOUBLE PRECISION NOT NULL,
			adj_close    DOUBLE PRECISION NOT NULL,
			volume       BIGINT NOT NULL DEFAULT 0,
			daily_return DOUBLE PRECISION,
			PRIMARY KEY (symbol, trade_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_daily_bars_symbol_date
			ON daily_bars (symbol, trade_date DESC)`,
		`CREATE TABLE IF NOT EXISTS rs_scores (
			entity_type     TEXT NOT NULL,
			entity_name     TEXT NOT NULL,
			score_date      DATE NOT NULL,
			rs_score        DOUBLE PRECISION NOT NULL,
			percentile      DOUBLE PRECISION NOT NULL,
			weighted_return DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (entity_type, entity_name, score_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rs_scores_type_date
			ON rs_scores (entity_type, score_date)`,
		`CREATE TABLE IF NOT EXISTS group_strength (
			entity_type  TEXT NOT NULL,
			name         TEXT NOT NULL,
			score_date   DATE NOT NULL,
			strength     DOUBLE PRECISION,
			member_count INTEGER NOT NULL,
			above_count  INTEGER NOT NULL,
			PRIMARY KEY (entity_type, name, score_date)
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
