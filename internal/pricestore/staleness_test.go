package pricestore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeFetchWindow(t *testing.T) {
	historyStart := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 8, 26, 15, 0, 0, 0, time.UTC)
	staleness := 24 * time.Hour

	date := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}

	tests := []struct {
		name      string
		highWater *time.Time
		wantStart time.Time
		wantEnd   time.Time
		wantNeed  bool
	}{
		{
			name:      "empty series fetches full history",
			highWater: nil,
			wantStart: historyStart,
			wantEnd:   date(2026, 8, 26),
			wantNeed:  true,
		},
		{
			name: "stale series fetches only the gap",
			highWater: func() *time.Time {
				d := date(2026, 8, 20)
				return &d
			}(),
			wantStart: date(2026, 8, 21),
			wantEnd:   date(2026, 8, 26),
			wantNeed:  true,
		},
		{
			name: "fresh series needs no fetch",
			highWater: func() *time.Time {
				d := date(2026, 8, 26)
				return &d
			}(),
			wantNeed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			window := ComputeFetchWindow(tt.highWater, now, staleness, historyStart)

			assert.Equal(t, tt.wantNeed, window.Needed)
			if tt.wantNeed {
				assert.Equal(t, tt.wantStart, window.Start)
				assert.Equal(t, tt.wantEnd, window.End)
			}
		})
	}
}

func TestComputeFetchWindow_HighWaterAfterToday(t *testing.T) {
	now := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)
	mark := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)

	// Within the threshold nothing is requested even though the mark is
	// exactly today.
	window := ComputeFetchWindow(&mark, now, 48*time.Hour, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.False(t, window.Needed)
}

func TestDateOnly(t *testing.T) {
	ts := time.Date(2026, 3, 15, 23, 45, 12, 999, time.FixedZone("KST", 9*3600))
	got := DateOnly(ts)

	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, 0, got.Hour())
	assert.Equal(t, 15, got.Day())
}
