package pricestore

import (
	"time"
)

// FetchWindow is the minimal provider request needed to bring a series
// up to date.
type FetchWindow struct {
	Start  time.Time
	End    time.Time
	Needed bool
}

// ComputeFetchWindow decides what range to request from the provider
// given the series high-water mark, the current time and the staleness
// threshold. It is a pure function so refresh policy is testable without
// touching the store or the network.
//
// With no high-water mark the full history from historyStart is
// requested. A series whose high-water mark is within the staleness
// threshold of now needs no fetch. Otherwise the window is
// (highWater, today]: the day after the high-water mark through today.
func ComputeFetchWindow(highWater *time.Time, now time.Time, staleness time.Duration, historyStart time.Time) FetchWindow {
	today := DateOnly(now)

	if highWater == nil {
		return FetchWindow{Start: DateOnly(historyStart), End: today, Needed: true}
	}

	mark := DateOnly(*highWater)
	if now.Sub(mark) < staleness {
		return FetchWindow{Needed: false}
	}

	start := mark.AddDate(0, 0, 1)
	if start.After(today) {
		return FetchWindow{Needed: false}
	}

	return FetchWindow{Start: start, End: today, Needed: true}
}

// DateOnly truncates a timestamp to its UTC calendar date. All trading
// dates in the system are stored this way.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
