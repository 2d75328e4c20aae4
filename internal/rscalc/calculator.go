package rscalc

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rstrack/rstrack/internal/contracts"
	"github.com/rstrack/rstrack/pkg/logger"
)

// SeriesSource supplies price series to the calculator. The calculator
// never mutates price data; it only reads through this interface.
type SeriesSource interface {
	GetSeries(ctx context.Context, symbol string) (contracts.PriceSeries, error)
}

// RunState is the calculator's per-run state machine.
type RunState string

const (
	StateIdle        RunState = "idle"
	StateLoading     RunState = "loading"
	StateComputing   RunState = "computing"
	StateAggregating RunState = "aggregating"
	StatePublished   RunState = "published"
)

// Input is everything one calculation run needs.
type Input struct {
	Instruments []contracts.Instrument
	Benchmark   string
	Weights     contracts.WeightConfig

	// Freshness marks which series were refreshed by the current
	// pipeline run; it is passed through into the published result.
	Freshness map[string]contracts.Freshness
}

// ResultSet is the complete derived output of one run. It is swapped in
// atomically: consumers either see the previous complete set or this
// one, never a partial mix.
type ResultSet struct {
	RunAt time.Time
	AsOf  time.Time // latest trading date across scored instruments

	Scores         []contracts.RSScore
	SectorScores   []contracts.RSScore
	IndustryScores []contracts.RSScore

	SectorStrength   []contracts.GroupStrength
	IndustryStrength []contracts.GroupStrength

	Exclusions []contracts.Exclusion
	Freshness  map[string]contracts.Freshness
}

// Calculator computes weighted returns, RS scores and percentile ranks,
// and aggregates them into sector/industry rollups. A run is triggered
// explicitly via Run, never implicitly on read.
type Calculator struct {
	source SeriesSource
	logger *logger.Logger

	mu        sync.RWMutex
	state     RunState
	published *ResultSet
}

// NewCalculator creates a calculator over a series source.
func NewCalculator(source SeriesSource, log *logger.Logger) *Calculator {
	return &Calculator{
		source: source,
		logger: log.WithField("module", "rscalc"),
		state:  StateIdle,
	}
}

// State returns the current run state.
func (c *Calculator) State() RunState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Published returns the last complete result set, nil before the first
// successful run.
func (c *Calculator) Published() *ResultSet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.published
}

func (c *Calculator) setState(s RunState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Run executes one calculation pass: Loading -> Computing ->
// Aggregating -> Published. Instrument-level failures are recorded as
// exclusions and never abort the run; only an invalid weight config or
// an unreadable store does.
func (c *Calculator) Run(ctx context.Context, input Input) (*ResultSet, error) {
	if err := ValidateWeightConfig(input.Weights); err != nil {
		return nil, fmt.Errorf("weight config rejected: %w", err)
	}

	defer c.setState(StateIdle)

	// Loading: benchmark first, then every instrument series.
	c.setState(StateLoading)

	benchSeries, err := c.source.GetSeries(ctx, input.Benchmark)
	if err != nil {
		return nil, fmt.Errorf("load benchmark %s: %w", input.Benchmark, err)
	}
	if benchSeries.Len() == 0 {
		return nil, fmt.Errorf("benchmark %s has no price data", input.Benchmark)
	}
	bench := newBenchIndex(benchSeries)

	window := input.Weights.Window()

	type loaded struct {
		inst   contracts.Instrument
		series contracts.PriceSeries
	}
	instruments := make([]loaded, 0, len(input.Instruments))
	for _, inst := range input.Instruments {
		if inst.Symbol == input.Benchmark {
			continue
		}
		series, err := c.source.GetSeries(ctx, inst.Symbol)
		if err != nil {
			return nil, fmt.Errorf("load series %s: %w", inst.Symbol, err)
		}
		instruments = append(instruments, loaded{inst: inst, series: series})
	}

	// Computing: per-instrument weighted returns and scores.
	c.setState(StateComputing)

	result := &ResultSet{
		RunAt:     time.Now(),
		Freshness: input.Freshness,
	}

	scoresBySymbol := make(map[string]float64)

	for _, l := range instruments {
		score, reason, ok := c.scoreInstrument(l.series, bench, input.Weights, window)
		if !ok {
			result.Exclusions = append(result.Exclusions, contracts.Exclusion{
				Symbol: l.inst.Symbol,
				Reason: reason,
			})
			continue
		}
		if score.Date.After(result.AsOf) {
			result.AsOf = score.Date
		}
		scoresBySymbol[l.inst.Symbol] = score.Score
		result.Scores = append(result.Scores, score)
	}

	// Aggregating: percentiles and group rollups over the valid set.
	c.setState(StateAggregating)

	scores := make([]float64, len(result.Scores))
	for i, s := range result.Scores {
		scores[i] = s.Score
	}
	for i, pct := range Percentiles(scores) {
		result.Scores[i].Percentile = pct
	}

	// Groups are keyed from every classified instrument, scored or not,
	// so a group whose members were all excluded still surfaces with an
	// undefined strength rather than vanishing.
	sectorMembers := groupMembers(input.Instruments, input.Benchmark, func(i contracts.Instrument) string { return i.Sector })
	industryMembers := groupMembers(input.Instruments, input.Benchmark, func(i contracts.Instrument) string { return i.Industry })

	result.SectorStrength = strengthFor(contracts.EntitySector, sectorMembers, scoresBySymbol, result.AsOf)
	result.IndustryStrength = strengthFor(contracts.EntityIndustry, industryMembers, scoresBySymbol, result.AsOf)

	allSeries := make(map[string]contracts.PriceSeries, len(instruments))
	for _, l := range instruments {
		allSeries[l.inst.Symbol] = l.series
	}
	result.SectorScores = c.groupScores(contracts.EntitySector, sectorMembers, allSeries, bench, input.Weights, window)
	result.IndustryScores = c.groupScores(contracts.EntityIndustry, industryMembers, allSeries, bench, input.Weights, window)

	// Published: atomic swap. The previous set stays visible until the
	// new one is complete.
	c.mu.Lock()
	c.state = StatePublished
	c.published = result
	c.mu.Unlock()

	c.logger.WithFields(map[string]interface{}{
		"scored":   len(result.Scores),
		"excluded": len(result.Exclusions),
		"as_of":    result.AsOf.Format("2006-01-02"),
	}).Info("Calculation run published")

	return result, nil
}

// scoreInstrument computes one instrument's weighted return and RS
// score as of its own latest trading date.
func (c *Calculator) scoreInstrument(
	series contracts.PriceSeries,
	bench *benchIndex,
	weights contracts.WeightConfig,
	window int,
) (contracts.RSScore, contracts.ExclusionReason, bool) {
	if series.Len() == 0 {
		return contracts.RSScore{}, contracts.ReasonNoPriceData, false
	}
	if series.Len() < window {
		return contracts.RSScore{}, contracts.ReasonInsufficientHistory, false
	}

	boundaries, returns, ok := periodReturns(series, weights)
	if !ok {
		return contracts.RSScore{}, contracts.ReasonNoPriceData, false
	}

	weighted := 0.0
	for k, r := range returns {
		weighted += r * weights.Periods[k].Weight
	}

	// Benchmark boundaries are anchored to the instrument's dates so
	// the two weighted returns are point-in-time comparable.
	benchWeighted, err := bench.weightedReturn(boundaries, weights)
	if err != nil {
		return contracts.RSScore{}, contracts.ReasonBenchmarkHistory, false
	}

	denom := 1 + benchWeighted
	if denom <= 0 {
		return contracts.RSScore{}, contracts.ReasonInvalidDenominator, false
	}

	asOf, _ := series.LatestDate()
	return contracts.RSScore{
		EntityType:     contracts.EntityStock,
		EntityName:     series.Symbol,
		Date:           asOf,
		Score:          (1 + weighted) / denom * 100,
		WeightedReturn: weighted,
	}, "", true
}

// periodReturns computes the per-period close-to-close returns over the
// trailing window, most recent period first, together with each
// period's boundary dates.
func periodReturns(series contracts.PriceSeries, weights contracts.WeightConfig) ([]periodBoundary, []float64, bool) {
	n := series.Len()
	boundaries := make([]periodBoundary, 0, len(weights.Periods))
	returns := make([]float64, 0, len(weights.Periods))

	offset := 0
	for _, p := range weights.Periods {
		endIdx := n - offset - 1
		startIdx := n - offset - p.Days

		startBar := series.Bars[startIdx]
		endBar := series.Bars[endIdx]
		if startBar.Close <= 0 {
			return nil, nil, false
		}

		boundaries = append(boundaries, periodBoundary{Start: startBar.Date, End: endBar.Date})
		returns = append(returns, endBar.Close/startBar.Close-1)

		offset += p.Days
	}

	return boundaries, returns, true
}

// groupScores computes RS scores for groups from equal-weighted average
// daily returns across member instruments. Groups without enough return
// history are skipped quietly; percentiles are ranked within the group
// set of the same entity type.
func (c *Calculator) groupScores(
	entityType contracts.EntityType,
	members map[string][]string,
	allSeries map[string]contracts.PriceSeries,
	bench *benchIndex,
	weights contracts.WeightConfig,
	window int,
) []contracts.RSScore {
	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []contracts.RSScore
	for _, name := range names {
		dates, avgReturns := equalWeightedReturns(members[name], allSeries)
		if len(avgReturns) < window {
			continue
		}

		// Trailing window only.
		dates = dates[len(dates)-window:]
		avgReturns = avgReturns[len(avgReturns)-window:]

		weighted := 0.0
		boundaries := make([]periodBoundary, 0, len(weights.Periods))
		offset := 0
		for k, p := range weights.Periods {
			segStart := window - offset - p.Days
			segEnd := window - offset

			compound := 1.0
			for _, r := range avgReturns[segStart:segEnd] {
				compound *= 1 + r
			}
			weighted += (compound - 1) * weights.Periods[k].Weight
			boundaries = append(boundaries, periodBoundary{
				Start: dates[segStart],
				End:   dates[segEnd-1],
			})
			offset += p.Days
		}

		benchWeighted, err := bench.weightedReturn(boundaries, weights)
		if err != nil {
			continue
		}
		denom := 1 + benchWeighted
		if denom <= 0 {
			continue
		}

		out = append(out, contracts.RSScore{
			EntityType:     entityType,
			EntityName:     name,
			Date:           dates[len(dates)-1],
			Score:          (1 + weighted) / denom * 100,
			WeightedReturn: weighted,
		})
	}

	scores := make([]float64, len(out))
	for i, s := range out {
		scores[i] = s.Score
	}
	for i, pct := range Percentiles(scores) {
		out[i].Percentile = pct
	}

	return out
}

// equalWeightedReturns averages the daily returns of the member series
// per date, ascending by date.
func equalWeightedReturns(symbols []string, allSeries map[string]contracts.PriceSeries) ([]time.Time, []float64) {
	byDate := make(map[time.Time][]float64)
	for _, sym := range symbols {
		for _, bar := range allSeries[sym].Bars {
			if bar.DailyReturn == nil {
				continue
			}
			byDate[bar.Date] = append(byDate[bar.Date], *bar.DailyReturn)
		}
	}

	dates := make([]time.Time, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	avgs := make([]float64, len(dates))
	for i, d := range dates {
		sum := 0.0
		for _, r := range byDate[d] {
			sum += r
		}
		avgs[i] = sum / float64(len(byDate[d]))
	}
	return dates, avgs
}

// groupMembers buckets instrument symbols by classification, dropping
// empty and Unknown groups and the benchmark itself.
func groupMembers(instruments []contracts.Instrument, benchmark string, key func(contracts.Instrument) string) map[string][]string {
	out := make(map[string][]string)
	for _, inst := range instruments {
		if inst.Symbol == benchmark {
			continue
		}
		k := key(inst)
		if k == "" || k == "Unknown" {
			continue
		}
		out[k] = append(out[k], inst.Symbol)
	}
	return out
}

// strengthFor computes per-group Strength %: the share of scored members
// whose RS score exceeds 100, meaning they outperform the benchmark. A
// group where no member produced a score reports an undefined strength,
// not zero.
func strengthFor(
	entityType contracts.EntityType,
	members map[string][]string,
	scoresBySymbol map[string]float64,
	asOf time.Time,
) []contracts.GroupStrength {
	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]contracts.GroupStrength, 0, len(names))
	for _, name := range names {
		scored := 0
		above := 0
		for _, sym := range members[name] {
			score, ok := scoresBySymbol[sym]
			if !ok {
				continue
			}
			scored++
			if score > 100 {
				above++
			}
		}

		gs := contracts.GroupStrength{
			EntityType:  entityType,
			Name:        name,
			Date:        asOf,
			MemberCount: scored,
			AboveCount:  above,
		}
		if scored > 0 {
			v := float64(above) / float64(scored) * 100
			gs.Strength = &v
		}
		out = append(out, gs)
	}
	return out
}
