package contracts

import (
	"time"
)

// Instrument is a tracked equity with its sector/industry classification.
// Instruments are created on import and never deleted, only deactivated.
type Instrument struct {
	Symbol   string
	Name     string
	Sector   string
	Industry string
	Active   bool
}

// Classified reports whether the instrument carries a usable
// sector/industry classification.
func (i Instrument) Classified() bool {
	return validClassification(i.Sector) && validClassification(i.Industry)
}

func validClassification(v string) bool {
	return v != "" && v != "Unknown"
}

// DailyBar is a single daily OHLC record for one instrument.
// Key is (Symbol, Date); bars are immutable except for same-day overwrite
// when the upstream source publishes corrections.
type DailyBar struct {
	Symbol      string
	Date        time.Time
	Open        float64
	High        float64
	Low         float64
	Close       float64
	AdjClose    float64
	Volume      int64
	DailyReturn *float64 // nil for the first bar of a series
}

// PriceSeries is the ordered (ascending by date) sequence of daily bars
// for one instrument.
type PriceSeries struct {
	Symbol string
	Bars   []DailyBar
}

// Len returns the number of bars in the series.
func (s PriceSeries) Len() int { return len(s.Bars) }

// LatestDate returns the high-water mark of the series: the most recent
// date for which a bar exists. ok is false for an empty series.
func (s PriceSeries) LatestDate() (time.Time, bool) {
	if len(s.Bars) == 0 {
		return time.Time{}, false
	}
	return s.Bars[len(s.Bars)-1].Date, true
}

// Closes returns the close prices of the series in date order.
func (s PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}

// WeightPeriod is one (trading days, weight) entry of a weight config,
// ordered most-recent-first.
type WeightPeriod struct {
	Days   int
	Weight float64
}

// WeightConfig holds the four quarterly period weights applied to
// trailing returns. Weights must sum to 1.0 and the period lengths must
// partition the trailing 252-trading-day window.
type WeightConfig struct {
	Periods [4]WeightPeriod
}

// Window returns the total trading-day window the config covers.
func (c WeightConfig) Window() int {
	total := 0
	for _, p := range c.Periods {
		total += p.Days
	}
	return total
}

// EntityType identifies the subject of an RS score.
type EntityType string

const (
	EntityStock    EntityType = "stock"
	EntitySector   EntityType = "sector"
	EntityIndustry EntityType = "industry"
)

// RSScore is a derived relative-strength score for one subject as of a
// date. Scores are recomputed wholesale per calculation run, never
// patched in place.
type RSScore struct {
	EntityType     EntityType
	EntityName     string
	Date           time.Time
	Score          float64
	Percentile     float64
	WeightedReturn float64
}

// GroupStrength is the fraction of a group's members scoring above 100,
// expressed as a percentage. Strength is nil (undefined) for a group with
// zero valid members.
type GroupStrength struct {
	EntityType  EntityType
	Name        string
	Date        time.Time
	Strength    *float64
	MemberCount int // members with a valid score
	AboveCount  int // members with score > 100
}

// ExclusionReason explains why an instrument was left out of a
// calculation run.
type ExclusionReason string

const (
	ReasonInsufficientHistory ExclusionReason = "insufficient_history"
	ReasonBenchmarkHistory    ExclusionReason = "benchmark_insufficient_history"
	ReasonInvalidDenominator  ExclusionReason = "invalid_benchmark_denominator"
	ReasonNoPriceData         ExclusionReason = "no_price_data"
)

// Exclusion records a per-instrument scoring exclusion with its reason.
type Exclusion struct {
	Symbol string
	Reason ExclusionReason
}

// Freshness marks whether an instrument's series was refreshed in the
// current pipeline run or carried over from a previous one.
type Freshness string

const (
	FreshnessFresh Freshness = "fresh"
	FreshnessStale Freshness = "stale"
)
