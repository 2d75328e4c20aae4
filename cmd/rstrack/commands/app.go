package commands

import (
	"fmt"

	"github.com/rstrack/rstrack/internal/pipeline"
	"github.com/rstrack/rstrack/internal/pricestore"
	"github.com/rstrack/rstrack/internal/provider"
	"github.com/rstrack/rstrack/internal/registry"
	"github.com/rstrack/rstrack/internal/rscalc"
	"github.com/rstrack/rstrack/pkg/config"
	"github.com/rstrack/rstrack/pkg/database"
	"github.com/rstrack/rstrack/pkg/logger"
	"github.com/rstrack/rstrack/pkg/rediscache"
)

// app holds the wired application services shared by the commands.
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	db    *database.DB
	cache *rediscache.Cache

	registry     *registry.Registry
	store        *pricestore.Store
	yahoo        *provider.YahooClient
	calc         *rscalc.Calculator
	settings     *rscalc.Settings
	orchestrator *pipeline.Orchestrator
}

// newApp loads config and wires every service against the database.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)
	if verbose {
		cfg.LogLevel = "debug"
		log = logger.New(cfg)
	}

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	cache := rediscache.New(cfg, log)

	limiter := provider.NewLimiter(cfg.Provider)
	yahoo := provider.NewYahooClient(cfg.Provider, limiter, log)

	instrumentRepo := registry.NewInstrumentRepository(db.Pool)
	reg := registry.New(instrumentRepo, yahoo, log)

	store := pricestore.NewStore(pricestore.NewBarRepository(db.Pool), log)

	scoreRepo := rscalc.NewScoreRepository(db.Pool)
	settings := rscalc.NewSettings(
		rscalc.NewSettingsRepository(db.Pool),
		scoreRepo,
		cfg.Pipeline.Benchmark,
		log,
	)
	calc := rscalc.NewCalculator(store, log)

	orch := pipeline.NewOrchestrator(reg, store, yahoo, calc, settings, scoreRepo, cache, cfg.Pipeline, log)

	return &app{
		cfg:          cfg,
		log:          log,
		db:           db,
		cache:        cache,
		registry:     reg,
		store:        store,
		yahoo:        yahoo,
		calc:         calc,
		settings:     settings,
		orchestrator: orch,
	}, nil
}

// Close releases database and cache connections.
func (a *app) Close() {
	if a.cache != nil {
		a.cache.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
