package rscalc

import (
	"sort"
	"time"

	"github.com/rstrack/rstrack/internal/contracts"
)

// benchIndex gives date-keyed access to the benchmark series with
// tolerant boundary lookup: when a boundary date falls on a benchmark
// holiday, the closest available trading day at or before it is used.
type benchIndex struct {
	dates  []time.Time
	closes []float64
}

func newBenchIndex(series contracts.PriceSeries) *benchIndex {
	idx := &benchIndex{
		dates:  make([]time.Time, series.Len()),
		closes: make([]float64, series.Len()),
	}
	for i, b := range series.Bars {
		idx.dates[i] = b.Date
		idx.closes[i] = b.Close
	}
	return idx
}

// closeAtOrBefore returns the benchmark close on the given date or the
// nearest earlier trading day. ok is false when the benchmark has no
// data at or before the date.
func (x *benchIndex) closeAtOrBefore(date time.Time) (float64, bool) {
	// First index strictly after date.
	i := sort.Search(len(x.dates), func(i int) bool {
		return x.dates[i].After(date)
	})
	if i == 0 {
		return 0, false
	}
	return x.closes[i-1], true
}

// weightedReturn computes the benchmark's weighted return over period
// boundaries anchored to the instrument's own trading dates, keeping the
// comparison point-in-time. It fails with ErrInsufficientHistory when
// the benchmark cannot cover a boundary.
func (x *benchIndex) weightedReturn(boundaries []periodBoundary, weights contracts.WeightConfig) (float64, error) {
	if len(x.dates) == 0 || len(boundaries) == 0 {
		return 0, contracts.ErrInsufficientHistory
	}

	// The at-or-before lookup tolerates holiday gaps, not a series that
	// stopped updating. A benchmark whose last close precedes the most
	// recent period's start would collapse every later boundary onto the
	// same stale close and report a zero benchmark return.
	if x.dates[len(x.dates)-1].Before(boundaries[0].Start) {
		return 0, contracts.ErrInsufficientHistory
	}

	total := 0.0
	for k, b := range boundaries {
		startClose, ok := x.closeAtOrBefore(b.Start)
		if !ok {
			return 0, contracts.ErrInsufficientHistory
		}
		endClose, ok := x.closeAtOrBefore(b.End)
		if !ok || startClose == 0 {
			return 0, contracts.ErrInsufficientHistory
		}
		total += (endClose/startClose - 1) * weights.Periods[k].Weight
	}
	return total, nil
}

// periodBoundary is one period's start/end trading dates on the subject
// instrument's calendar.
type periodBoundary struct {
	Start time.Time
	End   time.Time
}
