package pricestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rstrack/rstrack/internal/contracts"
)

// BarRepository implements contracts.BarRepository over PostgreSQL.
type BarRepository struct {
	pool *pgxpool.Pool
}

// NewBarRepository creates a new bar repository.
func NewBarRepository(pool *pgxpool.Pool) *BarRepository {
	return &BarRepository{pool: pool}
}

// GetSeries retrieves all bars for a symbol ascending by date.
func (r *BarRepository) GetSeries(ctx context.Context, symbol string) (contracts.PriceSeries, error) {
	query := `
		SELECT symbol, trade_date, open_price, high_price, low_price, close_price, adj_close, volume, daily_return
		FROM daily_bars
		WHERE symbol = $1
		ORDER BY trade_date ASC
	`

	rows, err := r.pool.Query(ctx, query, symbol)
	if err != nil {
		return contracts.PriceSeries{}, fmt.Errorf("query series: %w", err)
	}
	defer rows.Close()

	series := contracts.PriceSeries{Symbol: symbol}
	for rows.Next() {
		var b contracts.DailyBar
		if err := rows.Scan(&b.Symbol, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.AdjClose, &b.Volume, &b.DailyReturn); err != nil {
			return contracts.PriceSeries{}, fmt.Errorf("scan bar: %w", err)
		}
		b.Date = DateOnly(b.Date)
		series.Bars = append(series.Bars, b)
	}
	return series, rows.Err()
}

// LatestDate retrieves the most recent bar date for a symbol.
func (r *BarRepository) LatestDate(ctx context.Context, symbol string) (time.Time, bool, error) {
	query := `
		SELECT trade_date
		FROM daily_bars
		WHERE symbol = $1
		ORDER BY trade_date DESC
		LIMIT 1
	`

	var date time.Time
	err := r.pool.QueryRow(ctx, query, symbol).Scan(&date)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query latest date: %w", err)
	}
	return DateOnly(date), true, nil
}

// UpsertBars writes bars one statement per bar so each write is atomic;
// an existing (symbol, trade_date) row is overwritten.
func (r *BarRepository) UpsertBars(ctx context.Context, symbol string, bars []contracts.DailyBar) error {
	if len(bars) == 0 {
		return nil
	}

	query := `
		INSERT INTO daily_bars (symbol, trade_date, open_price, high_price, low_price, close_price, adj_close, volume, daily_return)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (symbol, trade_date) DO UPDATE SET
			open_price = EXCLUDED.open_price,
			high_price = EXCLUDED.high_price,
			low_price = EXCLUDED.low_price,
			close_price = EXCLUDED.close_price,
			adj_close = EXCLUDED.adj_close,
			volume = EXCLUDED.volume,
			daily_return = EXCLUDED.daily_return
	`

	for _, b := range bars {
		_, err := r.pool.Exec(ctx, query,
			symbol, b.Date, b.Open, b.High, b.Low, b.Close, b.AdjClose, b.Volume, b.DailyReturn,
		)
		if err != nil {
			return fmt.Errorf("upsert bar %s/%s: %w", symbol, b.Date.Format("2006-01-02"), err)
		}
	}
	return nil
}
