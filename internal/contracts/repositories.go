package contracts

import (
	"context"
	"time"
)

// InstrumentRepository persists the instrument registry.
type InstrumentRepository interface {
	// Upsert inserts or updates an instrument by symbol. Classification
	// is mutable on re-import; Active is preserved unless set explicitly.
	Upsert(ctx context.Context, inst Instrument) error

	// GetBySymbol returns the instrument or (zero, false) when unknown.
	GetBySymbol(ctx context.Context, symbol string) (Instrument, bool, error)

	// ListActive returns all active instruments ordered by symbol.
	ListActive(ctx context.Context) ([]Instrument, error)

	// Deactivate marks an instrument inactive. Instruments are never
	// deleted.
	Deactivate(ctx context.Context, symbol string) error

	// Sectors and Industries list the distinct non-empty classifications
	// of active instruments.
	Sectors(ctx context.Context) ([]string, error)
	Industries(ctx context.Context) ([]string, error)
}

// BarRepository persists daily bars, keyed by (symbol, date).
type BarRepository interface {
	// GetSeries returns all bars for the symbol ascending by date.
	GetSeries(ctx context.Context, symbol string) (PriceSeries, error)

	// LatestDate returns the high-water mark, or ok=false when the
	// symbol has no bars.
	LatestDate(ctx context.Context, symbol string) (time.Time, bool, error)

	// UpsertBars writes bars idempotently; an existing (symbol, date)
	// row is overwritten. Each bar write is atomic.
	UpsertBars(ctx context.Context, symbol string, bars []DailyBar) error
}

// ScoreRepository persists derived RS scores and group strength.
type ScoreRepository interface {
	// ReplaceScores deletes the previous scores for the run date and
	// writes the new set in one transaction.
	ReplaceScores(ctx context.Context, date time.Time, scores []RSScore) error

	// ReplaceGroupStrength does the same for group rollups.
	ReplaceGroupStrength(ctx context.Context, date time.Time, groups []GroupStrength) error

	// DeleteAll removes every cached score. Used when the weight config
	// changes, which invalidates all derived output.
	DeleteAll(ctx context.Context) error
}

// SettingsRepository persists tunable settings (benchmark symbol, weight
// config, history start date) as key/value rows.
type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}
