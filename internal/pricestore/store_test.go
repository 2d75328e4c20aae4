package pricestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rstrack/rstrack/internal/contracts"
	"github.com/rstrack/rstrack/pkg/logger"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func bar(d time.Time, close float64) contracts.DailyBar {
	return contracts.DailyBar{
		Date:     d,
		Open:     close,
		High:     close * 1.01,
		Low:      close * 0.99,
		Close:    close,
		AdjClose: close,
		Volume:   1000,
	}
}

func TestStore_UpsertBars_Idempotent(t *testing.T) {
	repo := NewMemoryBarRepository()
	store := NewStore(repo, logger.NewNop())
	ctx := context.Background()

	bars := []contracts.DailyBar{
		bar(date(2026, 8, 24), 100),
		bar(date(2026, 8, 25), 101),
	}

	res1, err := store.UpsertBars(ctx, "AAPL", bars)
	require.NoError(t, err)
	assert.Equal(t, 2, res1.Accepted)

	// Replaying the same provider response must not duplicate anything.
	res2, err := store.UpsertBars(ctx, "AAPL", bars)
	require.NoError(t, err)
	assert.Equal(t, 2, res2.Accepted)
	assert.Equal(t, 2, repo.Count("AAPL"))

	series, err := store.GetSeries(ctx, "AAPL")
	require.NoError(t, err)
	require.Equal(t, 2, series.Len())
	assert.Equal(t, 100.0, series.Bars[0].Close)
	assert.Equal(t, 101.0, series.Bars[1].Close)
}

func TestStore_UpsertBars_SameDayOverwrite(t *testing.T) {
	repo := NewMemoryBarRepository()
	store := NewStore(repo, logger.NewNop())
	ctx := context.Background()

	d := date(2026, 8, 25)
	_, err := store.UpsertBars(ctx, "AAPL", []contracts.DailyBar{bar(d, 100)})
	require.NoError(t, err)

	// Upstream correction for the same day replaces the stored bar.
	_, err = store.UpsertBars(ctx, "AAPL", []contracts.DailyBar{bar(d, 102)})
	require.NoError(t, err)

	series, err := store.GetSeries(ctx, "AAPL")
	require.NoError(t, err)
	require.Equal(t, 1, series.Len())
	assert.Equal(t, 102.0, series.Bars[0].Close)
}

func TestStore_UpsertBars_RejectsInvalidIndividually(t *testing.T) {
	repo := NewMemoryBarRepository()
	store := NewStore(repo, logger.NewNop())
	ctx := context.Background()

	future := DateOnly(time.Now()).AddDate(0, 0, 5)
	invalidHighLow := contracts.DailyBar{
		Date: date(2026, 8, 24), Open: 100, High: 90, Low: 95, Close: 100, AdjClose: 100,
	}

	res, err := store.UpsertBars(ctx, "MSFT", []contracts.DailyBar{
		bar(date(2026, 8, 21), 100), // valid
		invalidHighLow,              // high < low
		bar(future, 105),            // future date
	})
	require.NoError(t, err, "invalid bars must not abort the batch")

	assert.Equal(t, 1, res.Accepted)
	require.Len(t, res.Rejected, 2)
	assert.Equal(t, "high below low", res.Rejected[0].Reason)
	assert.Equal(t, "date in the future", res.Rejected[1].Reason)
	assert.Equal(t, 1, repo.Count("MSFT"))
}

func TestStore_UpsertRange_ReportsMissingWeekdays(t *testing.T) {
	repo := NewMemoryBarRepository()
	store := NewStore(repo, logger.NewNop())
	ctx := context.Background()

	// Mon 2026-08-17 .. Fri 2026-08-21, with Wednesday absent.
	bars := []contracts.DailyBar{
		bar(date(2026, 8, 17), 100),
		bar(date(2026, 8, 18), 101),
		bar(date(2026, 8, 20), 102),
		bar(date(2026, 8, 21), 103),
	}

	res, err := store.UpsertRange(ctx, "NVDA", bars, date(2026, 8, 17), date(2026, 8, 21))
	require.NoError(t, err)

	assert.True(t, res.Incomplete())
	require.Len(t, res.MissingDays, 1)
	assert.Equal(t, date(2026, 8, 19), res.MissingDays[0])
}

func TestStore_UpsertRange_StitchesReturnAcrossFetchBoundary(t *testing.T) {
	repo := NewMemoryBarRepository()
	store := NewStore(repo, logger.NewNop())
	ctx := context.Background()

	// Day 1 is already cached from an earlier fetch.
	_, err := store.UpsertBars(ctx, "AAPL", []contracts.DailyBar{bar(date(2026, 8, 21), 100)})
	require.NoError(t, err)

	// The incremental window starts at day 2: the provider can compute
	// day 3's return from day 2, but day 2 arrives with no return.
	day2 := bar(date(2026, 8, 24), 102)
	day3 := bar(date(2026, 8, 25), 103)
	r3 := 103.0/102.0 - 1
	day3.DailyReturn = &r3

	_, err = store.UpsertRange(ctx, "AAPL", []contracts.DailyBar{day2, day3}, date(2026, 8, 24), date(2026, 8, 25))
	require.NoError(t, err)

	series, err := store.GetSeries(ctx, "AAPL")
	require.NoError(t, err)
	require.Equal(t, 3, series.Len())

	require.NotNil(t, series.Bars[1].DailyReturn, "boundary bar return derived from the cached previous close")
	assert.InDelta(t, 0.02, *series.Bars[1].DailyReturn, 1e-9)
	require.NotNil(t, series.Bars[2].DailyReturn)
	assert.InDelta(t, r3, *series.Bars[2].DailyReturn, 1e-9)
}

func TestStore_UpsertBars_StitchesReturnsWithinBatch(t *testing.T) {
	repo := NewMemoryBarRepository()
	store := NewStore(repo, logger.NewNop())
	ctx := context.Background()

	// A full-history fetch with no precomputed returns: the first bar has
	// nothing to chain from and stays nil, the rest are derived in order.
	_, err := store.UpsertBars(ctx, "MSFT", []contracts.DailyBar{
		bar(date(2026, 8, 21), 100),
		bar(date(2026, 8, 24), 110),
		bar(date(2026, 8, 25), 99),
	})
	require.NoError(t, err)

	series, err := store.GetSeries(ctx, "MSFT")
	require.NoError(t, err)
	require.Equal(t, 3, series.Len())

	assert.Nil(t, series.Bars[0].DailyReturn, "no previous close exists for the first bar ever")
	require.NotNil(t, series.Bars[1].DailyReturn)
	assert.InDelta(t, 0.10, *series.Bars[1].DailyReturn, 1e-9)
	require.NotNil(t, series.Bars[2].DailyReturn)
	assert.InDelta(t, 99.0/110.0-1, *series.Bars[2].DailyReturn, 1e-9)
}

func TestStore_LatestDate(t *testing.T) {
	repo := NewMemoryBarRepository()
	store := NewStore(repo, logger.NewNop())
	ctx := context.Background()

	_, ok, err := store.LatestDate(ctx, "AAPL")
	require.NoError(t, err)
	assert.False(t, ok, "empty series has no high-water mark")

	_, err = store.UpsertBars(ctx, "AAPL", []contracts.DailyBar{
		bar(date(2026, 8, 20), 100),
		bar(date(2026, 8, 25), 101),
	})
	require.NoError(t, err)

	latest, ok, err := store.LatestDate(ctx, "AAPL")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, date(2026, 8, 25), latest)
}

func TestValidateBar(t *testing.T) {
	now := date(2026, 8, 26)

	tests := []struct {
		name   string
		bar    contracts.DailyBar
		valid  bool
		reason string
	}{
		{
			name:  "valid bar",
			bar:   bar(date(2026, 8, 25), 100),
			valid: true,
		},
		{
			name:   "zero date",
			bar:    contracts.DailyBar{Open: 1, High: 1, Low: 1, Close: 1},
			valid:  false,
			reason: "missing date",
		},
		{
			name:   "non-positive close",
			bar:    contracts.DailyBar{Date: date(2026, 8, 25), Open: 1, High: 1, Low: 0, Close: 0},
			valid:  false,
			reason: "non-positive close",
		},
		{
			name:   "high below close",
			bar:    contracts.DailyBar{Date: date(2026, 8, 25), Open: 99, High: 100, Low: 98, Close: 101},
			valid:  false,
			reason: "high below open/close",
		},
		{
			name:   "low above open",
			bar:    contracts.DailyBar{Date: date(2026, 8, 25), Open: 97, High: 100, Low: 98, Close: 99},
			valid:  false,
			reason: "low above open/close",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, ok := validateBar(tt.bar, now)
			assert.Equal(t, tt.valid, ok)
			if !tt.valid {
				assert.Equal(t, tt.reason, reason)
			}
		})
	}
}
