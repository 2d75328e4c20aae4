package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rstrack/rstrack/internal/contracts"
)

// InstrumentRepository implements contracts.InstrumentRepository over
// PostgreSQL.
type InstrumentRepository struct {
	pool *pgxpool.Pool
}

// NewInstrumentRepository creates a new instrument repository.
func NewInstrumentRepository(pool *pgxpool.Pool) *InstrumentRepository {
	return &InstrumentRepository{pool: pool}
}

// Upsert inserts or updates an instrument by symbol.
func (r *InstrumentRepository) Upsert(ctx context.Context, inst contracts.Instrument) error {
	query := `
		INSERT INTO instruments (symbol, name, sector, industry, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (symbol) DO UPDATE SET
			name = EXCLUDED.name,
			sector = EXCLUDED.sector,
			industry = EXCLUDED.industry,
			active = EXCLUDED.active,
			updated_at = now()
	`
	if _, err := r.pool.Exec(ctx, query, inst.Symbol, inst.Name, inst.Sector, inst.Industry, inst.Active); err != nil {
		return fmt.Errorf("upsert instrument %s: %w", inst.Symbol, err)
	}
	return nil
}

// GetBySymbol returns the instrument, ok=false when unknown.
func (r *InstrumentRepository) GetBySymbol(ctx context.Context, symbol string) (contracts.Instrument, bool, error) {
	query := `
		SELECT symbol, name, sector, industry, active
		FROM instruments
		WHERE symbol = $1
	`
	var inst contracts.Instrument
	err := r.pool.QueryRow(ctx, query, symbol).Scan(
		&inst.Symbol, &inst.Name, &inst.Sector, &inst.Industry, &inst.Active,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return contracts.Instrument{}, false, nil
	}
	if err != nil {
		return contracts.Instrument{}, false, fmt.Errorf("query instrument %s: %w", symbol, err)
	}
	return inst, true, nil
}

// ListActive returns all active instruments ordered by symbol.
func (r *InstrumentRepository) ListActive(ctx context.Context) ([]contracts.Instrument, error) {
	query := `
		SELECT symbol, name, sector, industry, active
		FROM instruments
		WHERE active = TRUE
		ORDER BY symbol ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query active instruments: %w", err)
	}
	defer rows.Close()

	var out []contracts.Instrument
	for rows.Next() {
		var inst contracts.Instrument
		if err := rows.Scan(&inst.Symbol, &inst.Name, &inst.Sector, &inst.Industry, &inst.Active); err != nil {
			return nil, fmt.Errorf("scan instrument: %w", err)
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

// Deactivate marks an instrument inactive.
func (r *InstrumentRepository) Deactivate(ctx context.Context, symbol string) error {
	query := `UPDATE instruments SET active = FALSE, updated_at = now() WHERE symbol = $1`
	if _, err := r.pool.Exec(ctx, query, symbol); err != nil {
		return fmt.Errorf("deactivate instrument %s: %w", symbol, err)
	}
	return nil
}

// Sectors lists the distinct non-empty sectors of active instruments.
func (r *InstrumentRepository) Sectors(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "sector")
}

// Industries lists the distinct non-empty industries of active
// instruments.
func (r *InstrumentRepository) Industries(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "industry")
}

func (r *InstrumentRepository) distinct(ctx context.Context, column string) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT %s
		FROM instruments
		WHERE active = TRUE AND %s <> '' AND %s <> 'Unknown'
		ORDER BY %s ASC
	`, column, column, column, column)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query distinct %s: %w", column, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan %s: %w", column, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
