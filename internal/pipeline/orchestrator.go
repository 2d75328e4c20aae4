package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rstrack/rstrack/internal/contracts"
	"github.com/rstrack/rstrack/internal/pricestore"
	"github.com/rstrack/rstrack/internal/registry"
	"github.com/rstrack/rstrack/internal/rscalc"
	"github.com/rstrack/rstrack/pkg/config"
	"github.com/rstrack/rstrack/pkg/logger"
	"github.com/rstrack/rstrack/pkg/rediscache"
)

// ErrRunInProgress is returned when a refresh is requested while one is
// already running. Runs never queue or overlap.
var ErrRunInProgress = errors.New("refresh already in progress")

// BarSource fetches daily bars from the upstream provider.
type BarSource interface {
	FetchRange(ctx context.Context, symbol string, start, end time.Time) ([]contracts.DailyBar, error)
}

// Orchestrator drives a full refresh: import, fetch, calculate,
// publish. At most one run is in flight at a time.
type Orchestrator struct {
	registry *registry.Registry
	store    *pricestore.Store
	source   BarSource
	calc     *rscalc.Calculator
	settings *rscalc.Settings
	scores   contracts.ScoreRepository
	cache    *rediscache.Cache
	cfg      config.PipelineConfig
	logger   *logger.Logger

	tracker *tracker
	now     func() time.Time
}

// NewOrchestrator wires the pipeline. cache may be nil when no snapshot
// cache is configured.
func NewOrchestrator(
	reg *registry.Registry,
	store *pricestore.Store,
	source BarSource,
	calc *rscalc.Calculator,
	settings *rscalc.Settings,
	scores contracts.ScoreRepository,
	cache *rediscache.Cache,
	cfg config.PipelineConfig,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		registry: reg,
		store:    store,
		source:   source,
		calc:     calc,
		settings: settings,
		scores:   scores,
		cache:    cache,
		cfg:      cfg,
		logger:   log.WithField("module", "pipeline"),
		tracker:  newTracker(),
		now:      time.Now,
	}
}

// Status returns a snapshot of the current or last run.
func (o *Orchestrator) Status() Status {
	return o.tracker.snapshot()
}

// Refresh runs the full pipeline once. A second call while a run is in
// flight fails with ErrRunInProgress. Per-instrument fetch failures are
// recorded and the run continues on whatever data is available;
// cancellation stops between units, letting the in-flight unit finish.
func (o *Orchestrator) Refresh(ctx context.Context) (*rscalc.ResultSet, error) {
	if !o.tracker.tryBegin(o.now()) {
		return nil, ErrRunInProgress
	}

	result, err := o.run(ctx)
	o.tracker.finish(o.now(), err)
	return result, err
}

// Calculate recomputes and publishes scores from cached data only,
// without contacting the provider. Freshness is judged against the
// staleness threshold so consumers can tell old series apart.
func (o *Orchestrator) Calculate(ctx context.Context) (*rscalc.ResultSet, error) {
	if !o.tracker.tryBegin(o.now()) {
		return nil, ErrRunInProgress
	}

	result, err := o.calculate(ctx)
	o.tracker.finish(o.now(), err)
	return result, err
}

func (o *Orchestrator) calculate(ctx context.Context) (*rscalc.ResultSet, error) {
	instruments, err := o.registry.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active instruments: %w", err)
	}

	benchmark, err := o.settings.Benchmark(ctx)
	if err != nil {
		return nil, err
	}
	weights, err := o.settings.WeightConfig(ctx)
	if err != nil {
		return nil, err
	}

	freshness := make(map[string]contracts.Freshness, len(instruments)+1)
	mark := func(symbol string) error {
		latest, ok, err := o.store.LatestDate(ctx, symbol)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		win := pricestore.ComputeFetchWindow(&latest, o.now(), o.cfg.StalenessThreshold, o.cfg.HistoryStart)
		if win.Needed {
			freshness[symbol] = contracts.FreshnessStale
		} else {
			freshness[symbol] = contracts.FreshnessFresh
		}
		return nil
	}
	if err := mark(benchmark); err != nil {
		return nil, err
	}
	for _, inst := range instruments {
		if err := mark(inst.Symbol); err != nil {
			return nil, err
		}
	}

	o.tracker.setStage(StageCalculate)

	result, err := o.calc.Run(ctx, rscalc.Input{
		Instruments: instruments,
		Benchmark:   benchmark,
		Weights:     weights,
		Freshness:   freshness,
	})
	if err != nil {
		return nil, fmt.Errorf("calculation run: %w", err)
	}

	o.tracker.setStage(StagePublish)

	if err := o.publish(ctx, result); err != nil {
		return nil, err
	}

	return result, nil
}

func (o *Orchestrator) run(ctx context.Context) (*rscalc.ResultSet, error) {
	// Import: load the active universe and fill missing classifications.
	o.tracker.setStage(StageImport)

	if enriched, err := o.registry.EnrichClassifications(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		o.logger.WithError(err).Warn("Classification enrichment failed, continuing")
	} else if enriched > 0 {
		o.logger.WithField("enriched", enriched).Info("Classifications enriched")
	}

	instruments, err := o.registry.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active instruments: %w", err)
	}

	benchmark, err := o.settings.Benchmark(ctx)
	if err != nil {
		return nil, err
	}
	weights, err := o.settings.WeightConfig(ctx)
	if err != nil {
		return nil, err
	}

	// Fetch: the benchmark first, then the universe through a bounded
	// worker pool. Request cadence is governed by the provider's shared
	// rate limiter, the pool only bounds dispatch.
	o.tracker.setStage(StageFetch)

	symbols := make([]string, 0, len(instruments)+1)
	symbols = append(symbols, benchmark)
	for _, inst := range instruments {
		if inst.Symbol != benchmark {
			symbols = append(symbols, inst.Symbol)
		}
	}
	o.tracker.track(symbols)

	freshness := make(map[string]contracts.Freshness, len(symbols))
	var freshMu sync.Mutex

	fetch := func(symbol string) {
		o.tracker.markFetching(symbol)
		added, fresh, err := o.fetchOne(ctx, symbol)
		freshMu.Lock()
		if fresh != "" {
			freshness[symbol] = fresh
		}
		freshMu.Unlock()

		switch {
		case err != nil:
			o.tracker.markFailed(symbol, fresh, err.Error())
			o.logger.WithError(err).WithField("symbol", symbol).Warn("Fetch failed")
		case added == 0 && fresh == contracts.FreshnessFresh:
			o.tracker.markSkipped(symbol)
		default:
			o.tracker.markFetched(symbol, added)
		}
	}

	// Benchmark data gates every score, so it goes first and alone.
	fetch(benchmark)

	jobs := make(chan string, len(symbols))
	var wg sync.WaitGroup
	for i := 0; i < o.cfg.FetchWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				fetch(symbol)
			}
		}()
	}
	for _, symbol := range symbols[1:] {
		jobs <- symbol
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Calculate: one atomic pass over whatever the store now holds.
	o.tracker.setStage(StageCalculate)

	result, err := o.calc.Run(ctx, rscalc.Input{
		Instruments: instruments,
		Benchmark:   benchmark,
		Weights:     weights,
		Freshness:   freshness,
	})
	if err != nil {
		return nil, fmt.Errorf("calculation run: %w", err)
	}

	// Publish: replace the persisted score sets, then best-effort cache
	// the snapshot.
	o.tracker.setStage(StagePublish)

	if err := o.publish(ctx, result); err != nil {
		return nil, err
	}

	o.logger.WithFields(map[string]interface{}{
		"instruments": len(instruments),
		"scored":      len(result.Scores),
		"excluded":    len(result.Exclusions),
	}).Info("Refresh completed")

	return result, nil
}

// fetchOne brings one symbol's series up to date. The returned
// freshness is empty when the symbol has no usable data at all.
func (o *Orchestrator) fetchOne(ctx context.Context, symbol string) (int, contracts.Freshness, error) {
	latest, ok, err := o.store.LatestDate(ctx, symbol)
	if err != nil {
		return 0, "", err
	}

	var highWater *time.Time
	if ok {
		highWater = &latest
	}

	win := pricestore.ComputeFetchWindow(highWater, o.now(), o.cfg.StalenessThreshold, o.cfg.HistoryStart)
	if !win.Needed {
		return 0, contracts.FreshnessFresh, nil
	}

	bars, err := o.source.FetchRange(ctx, symbol, win.Start, win.End)
	if errors.Is(err, contracts.ErrNoData) && ok {
		// Nothing published for the increment, market holidays most
		// likely. The stored series is still current.
		return 0, contracts.FreshnessFresh, nil
	}
	if err != nil {
		if ok {
			return 0, contracts.FreshnessStale, err
		}
		return 0, "", err
	}

	res, err := o.store.UpsertRange(ctx, symbol, bars, win.Start, win.End)
	if err != nil {
		if ok {
			return 0, contracts.FreshnessStale, err
		}
		return 0, "", err
	}

	if res.Incomplete() {
		o.logger.WithFields(map[string]interface{}{
			"symbol":       symbol,
			"missing_days": len(res.MissingDays),
			"rejected":     len(res.Rejected),
		}).Debug("Fetched range has gaps")
	}

	return res.Accepted, contracts.FreshnessFresh, nil
}

// publish writes the result set to the score store and the optional
// snapshot cache.
func (o *Orchestrator) publish(ctx context.Context, result *rscalc.ResultSet) error {
	if result.AsOf.IsZero() {
		o.logger.Warn("No instrument scored, nothing to publish")
		return nil
	}

	all := make([]contracts.RSScore, 0, len(result.Scores)+len(result.SectorScores)+len(result.IndustryScores))
	all = append(all, result.Scores...)
	all = append(all, result.SectorScores...)
	all = append(all, result.IndustryScores...)
	if err := o.scores.ReplaceScores(ctx, result.AsOf, all); err != nil {
		return fmt.Errorf("publish scores: %w", err)
	}

	groups := make([]contracts.GroupStrength, 0, len(result.SectorStrength)+len(result.IndustryStrength))
	groups = append(groups, result.SectorStrength...)
	groups = append(groups, result.IndustryStrength...)
	if err := o.scores.ReplaceGroupStrength(ctx, result.AsOf, groups); err != nil {
		return fmt.Errorf("publish group strength: %w", err)
	}

	if o.cache != nil {
		key := rediscache.SnapshotKey(result.AsOf)
		if err := o.cache.Set(ctx, key, result, 24*time.Hour); err != nil {
			o.logger.WithError(err).Warn("Snapshot cache write failed")
		}
		if err := o.cache.Set(ctx, rediscache.SnapshotLatest, result, 24*time.Hour); err != nil {
			o.logger.WithError(err).Warn("Snapshot cache write failed")
		}
	}

	return nil
}
