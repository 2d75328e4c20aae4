package pricestore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rstrack/rstrack/internal/contracts"
	"github.com/rstrack/rstrack/pkg/logger"
)

// Store is the price cache: an append-only per-instrument daily series
// with incremental-fetch bookkeeping. It owns all price data; the
// calculator only reads through it.
//
// Writes are partitioned by instrument. Two workers never write the same
// symbol's series concurrently, but writes to distinct symbols proceed
// in parallel.
type Store struct {
	repo   contracts.BarRepository
	logger *logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a price store over a bar repository.
func NewStore(repo contracts.BarRepository, log *logger.Logger) *Store {
	return &Store{
		repo:   repo,
		logger: log.WithField("module", "pricestore"),
		locks:  make(map[string]*sync.Mutex),
	}
}

// RejectedBar is a bar refused by validation, with the reason. Rejection
// is per bar and never aborts the rest of the batch.
type RejectedBar struct {
	Bar    contracts.DailyBar
	Reason string
}

// UpsertResult reports the outcome of an upsert batch.
type UpsertResult struct {
	Accepted int
	Rejected []RejectedBar

	// MissingDays are weekdays inside the requested range the provider
	// returned no bar for. They are surfaced as an incomplete-fetch
	// warning, not retried; most are market holidays.
	MissingDays []time.Time
}

// Incomplete reports whether the fetch left gaps in the requested range.
func (r UpsertResult) Incomplete() bool {
	return len(r.MissingDays) > 0
}

// GetSeries returns all persisted bars for the symbol, ascending by
// date. An unknown symbol yields an empty series, not an error.
func (s *Store) GetSeries(ctx context.Context, symbol string) (contracts.PriceSeries, error) {
	return s.repo.GetSeries(ctx, symbol)
}

// LatestDate returns the series high-water mark, used to compute the
// minimal fetch range on refresh.
func (s *Store) LatestDate(ctx context.Context, symbol string) (time.Time, bool, error) {
	return s.repo.LatestDate(ctx, symbol)
}

// UpsertBars validates and persists bars for one instrument. Bars with a
// date already present are overwritten, which makes the operation
// idempotent and lets upstream corrections through. Invalid bars are
// rejected individually and reported in the result.
func (s *Store) UpsertBars(ctx context.Context, symbol string, bars []contracts.DailyBar) (UpsertResult, error) {
	return s.UpsertRange(ctx, symbol, bars, time.Time{}, time.Time{})
}

// UpsertRange is UpsertBars plus gap detection against the requested
// fetch range. Pass zero times to skip gap detection.
func (s *Store) UpsertRange(ctx context.Context, symbol string, bars []contracts.DailyBar, rangeStart, rangeEnd time.Time) (UpsertResult, error) {
	now := time.Now()
	result := UpsertResult{}

	valid := make([]contracts.DailyBar, 0, len(bars))
	for _, bar := range bars {
		if reason, ok := validateBar(bar, now); !ok {
			result.Rejected = append(result.Rejected, RejectedBar{Bar: bar, Reason: reason})
			continue
		}
		bar.Symbol = symbol
		bar.Date = DateOnly(bar.Date)
		valid = append(valid, bar)
	}

	if len(valid) > 0 {
		sort.Slice(valid, func(i, j int) bool { return valid[i].Date.Before(valid[j].Date) })

		lock := s.symbolLock(symbol)
		lock.Lock()
		err := s.stitchReturns(ctx, symbol, valid)
		if err == nil {
			err = s.repo.UpsertBars(ctx, symbol, valid)
		}
		lock.Unlock()
		if err != nil {
			return result, fmt.Errorf("upsert bars for %s: %w", symbol, err)
		}
		result.Accepted = len(valid)
	}

	if !rangeStart.IsZero() && !rangeEnd.IsZero() {
		result.MissingDays = missingWeekdays(valid, rangeStart, rangeEnd)
	}

	if len(result.Rejected) > 0 {
		s.logger.WithFields(map[string]interface{}{
			"symbol":   symbol,
			"accepted": result.Accepted,
			"rejected": len(result.Rejected),
		}).Warn("Some bars rejected by validation")
	}
	if result.Incomplete() {
		s.logger.WithFields(map[string]interface{}{
			"symbol":       symbol,
			"missing_days": len(result.MissingDays),
		}).Debug("Fetch range has uncovered weekdays")
	}

	return result, nil
}

// stitchReturns fills daily returns the provider could not compute.
// Returns are derived within a single response, so the first bar of an
// incremental fetch window arrives without one even though the previous
// close is already cached. That bar's return is derived from the last
// stored bar before it; later gaps chain off the in-batch predecessor.
func (s *Store) stitchReturns(ctx context.Context, symbol string, bars []contracts.DailyBar) error {
	for i := range bars {
		if bars[i].DailyReturn != nil {
			continue
		}

		var prev *contracts.DailyBar
		if i > 0 {
			prev = &bars[i-1]
		} else {
			series, err := s.repo.GetSeries(ctx, symbol)
			if err != nil {
				return fmt.Errorf("load cached series: %w", err)
			}
			for j := series.Len() - 1; j >= 0; j-- {
				if series.Bars[j].Date.Before(bars[i].Date) {
					prev = &series.Bars[j]
					break
				}
			}
		}

		if prev == nil || prev.AdjClose <= 0 {
			continue
		}
		r := bars[i].AdjClose/prev.AdjClose - 1
		bars[i].DailyReturn = &r
	}
	return nil
}

// validateBar checks a bar before it is persisted. Returns the rejection
// reason when the bar is invalid.
func validateBar(bar contracts.DailyBar, now time.Time) (string, bool) {
	if bar.Date.IsZero() {
		return "missing date", false
	}
	if DateOnly(bar.Date).After(DateOnly(now)) {
		return "date in the future", false
	}
	if bar.Close <= 0 {
		return "non-positive close", false
	}
	if bar.High < bar.Low {
		return "high below low", false
	}
	if bar.High < bar.Open || bar.High < bar.Close {
		return "high below open/close", false
	}
	if bar.Low > bar.Open || bar.Low > bar.Close {
		return "low above open/close", false
	}
	return "", true
}

// missingWeekdays returns the weekdays in [start, end] not covered by
// the given bars.
func missingWeekdays(bars []contracts.DailyBar, start, end time.Time) []time.Time {
	covered := make(map[time.Time]bool, len(bars))
	for _, bar := range bars {
		covered[DateOnly(bar.Date)] = true
	}

	var missing []time.Time
	for d := DateOnly(start); !d.After(DateOnly(end)); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		if !covered[d] {
			missing = append(missing, d)
		}
	}
	return missing
}

// symbolLock returns the per-instrument write lock, creating it on first
// use.
func (s *Store) symbolLock(symbol string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[symbol]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[symbol] = lock
	}
	return lock
}
