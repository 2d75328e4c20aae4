package pricestore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rstrack/rstrack/internal/contracts"
)

// MemoryBarRepository is an in-memory contracts.BarRepository used by
// unit tests across packages.
type MemoryBarRepository struct {
	mu   sync.RWMutex
	bars map[string]map[time.Time]contracts.DailyBar
}

// NewMemoryBarRepository creates an empty in-memory bar repository.
func NewMemoryBarRepository() *MemoryBarRepository {
	return &MemoryBarRepository{
		bars: make(map[string]map[time.Time]contracts.DailyBar),
	}
}

// GetSeries returns the bars for a symbol ascending by date.
func (r *MemoryBarRepository) GetSeries(ctx context.Context, symbol string) (contracts.PriceSeries, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	series := contracts.PriceSeries{Symbol: symbol}
	for _, b := range r.bars[symbol] {
		series.Bars = append(series.Bars, b)
	}
	sort.Slice(series.Bars, func(i, j int) bool {
		return series.Bars[i].Date.Before(series.Bars[j].Date)
	})
	return series, nil
}

// LatestDate returns the most recent bar date for a symbol.
func (r *MemoryBarRepository) LatestDate(ctx context.Context, symbol string) (time.Time, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest time.Time
	found := false
	for d := range r.bars[symbol] {
		if !found || d.After(latest) {
			latest = d
			found = true
		}
	}
	return latest, found, nil
}

// UpsertBars overwrites bars by (symbol, date).
func (r *MemoryBarRepository) UpsertBars(ctx context.Context, symbol string, bars []contracts.DailyBar) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bars[symbol] == nil {
		r.bars[symbol] = make(map[time.Time]contracts.DailyBar)
	}
	for _, b := range bars {
		b.Symbol = symbol
		b.Date = DateOnly(b.Date)
		r.bars[symbol][b.Date] = b
	}
	return nil
}

// Count returns the number of stored bars for a symbol.
func (r *MemoryBarRepository) Count(symbol string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bars[symbol])
}
