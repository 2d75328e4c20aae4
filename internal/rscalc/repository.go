package rscalc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rstrack/rstrack/internal/contracts"
)

// ScoreRepository implements contracts.ScoreRepository over PostgreSQL.
// Replacement runs in one transaction so readers never observe a
// half-written score set for a date.
type ScoreRepository struct {
	pool *pgxpool.Pool
}

// NewScoreRepository creates a new score repository.
func NewScoreRepository(pool *pgxpool.Pool) *ScoreRepository {
	return &ScoreRepository{pool: pool}
}

// ReplaceScores deletes the previous scores for the date and writes the
// new set in a single transaction.
func (r *ScoreRepository) ReplaceScores(ctx context.Context, date time.Time, scores []contracts.RSScore) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace scores: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM rs_scores WHERE score_date = $1`, date); err != nil {
		return fmt.Errorf("delete scores: %w", err)
	}

	query := `
		INSERT INTO rs_scores (entity_type, entity_name, score_date, rs_score, percentile, weighted_return)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, s := range scores {
		_, err := tx.Exec(ctx, query,
			string(s.EntityType), s.EntityName, s.Date, s.Score, s.Percentile, s.WeightedReturn,
		)
		if err != nil {
			return fmt.Errorf("insert score %s/%s: %w", s.EntityType, s.EntityName, err)
		}
	}

	return tx.Commit(ctx)
}

// ReplaceGroupStrength replaces the group rollups for the date in a
// single transaction.
func (r *ScoreRepository) ReplaceGroupStrength(ctx context.Context, date time.Time, groups []contracts.GroupStrength) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace group strength: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM group_strength WHERE score_date = $1`, date); err != nil {
		return fmt.Errorf("delete group strength: %w", err)
	}

	query := `
		INSERT INTO group_strength (entity_type, name, score_date, strength, member_count, above_count)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, g := range groups {
		_, err := tx.Exec(ctx, query,
			string(g.EntityType), g.Name, g.Date, g.Strength, g.MemberCount, g.AboveCount,
		)
		if err != nil {
			return fmt.Errorf("insert group strength %s/%s: %w", g.EntityType, g.Name, err)
		}
	}

	return tx.Commit(ctx)
}

// DeleteAll removes every cached score and rollup.
func (r *ScoreRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM rs_scores`); err != nil {
		return fmt.Errorf("delete scores: %w", err)
	}
	if _, err := r.pool.Exec(ctx, `DELETE FROM group_strength`); err != nil {
		return fmt.Errorf("delete group strength: %w", err)
	}
	return nil
}

// SettingsRepository implements contracts.SettingsRepository over
// PostgreSQL key/value rows.
type SettingsRepository struct {
	pool *pgxpool.Pool
}

// NewSettingsRepository creates a new settings repository.
func NewSettingsRepository(pool *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

// Get reads a setting, ok=false when the key is absent.
func (r *SettingsRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query setting %s: %w", key, err)
	}
	return value, true, nil
}

// Set writes a setting, overwriting any previous value.
func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO settings (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = now()
	`
	if _, err := r.pool.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("upsert setting %s: %w", key, err)
	}
	return nil
}
