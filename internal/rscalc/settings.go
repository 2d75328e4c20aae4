package rscalc

import (
	"context"
	"fmt"

	"github.com/rstrack/rstrack/internal/contracts"
	"github.com/rstrack/rstrack/pkg/logger"
)

const (
	settingWeightConfig = "rs.weight_config"
	settingBenchmark    = "rs.benchmark"
)

// Settings reads and applies the tunable calculation parameters. Weight
// config changes invalidate every cached score, since all derived output
// depends on the weighting.
type Settings struct {
	settings contracts.SettingsRepository
	scores   contracts.ScoreRepository
	logger   *logger.Logger

	defaultBenchmark string
}

// NewSettings creates the settings service. defaultBenchmark is used
// when no override has been stored.
func NewSettings(
	settings contracts.SettingsRepository,
	scores contracts.ScoreRepository,
	defaultBenchmark string,
	log *logger.Logger,
) *Settings {
	return &Settings{
		settings:         settings,
		scores:           scores,
		logger:           log.WithField("module", "rscalc.settings"),
		defaultBenchmark: defaultBenchmark,
	}
}

// WeightConfig returns the stored weight config, falling back to the
// default quarterly weighting when none is stored. A stored value that
// fails validation is an error, not a silent fallback.
func (s *Settings) WeightConfig(ctx context.Context) (contracts.WeightConfig, error) {
	raw, ok, err := s.settings.Get(ctx, settingWeightConfig)
	if err != nil {
		return contracts.WeightConfig{}, fmt.Errorf("read weight config: %w", err)
	}
	if !ok {
		return DefaultWeightConfig(), nil
	}
	return DecodeWeightConfig(raw)
}

// ApplyWeightConfig validates and stores a new weight config, then
// drops every cached score so the next run recomputes under the new
// weighting. An invalid config is rejected before anything changes.
func (s *Settings) ApplyWeightConfig(ctx context.Context, cfg contracts.WeightConfig) error {
	if err := ValidateWeightConfig(cfg); err != nil {
		return err
	}

	raw, err := EncodeWeightConfig(cfg)
	if err != nil {
		return err
	}
	if err := s.settings.Set(ctx, settingWeightConfig, raw); err != nil {
		return fmt.Errorf("store weight config: %w", err)
	}

	if err := s.scores.DeleteAll(ctx); err != nil {
		return fmt.Errorf("invalidate scores: %w", err)
	}

	s.logger.Info("Weight config applied, cached scores invalidated")
	return nil
}

// Benchmark returns the stored benchmark symbol or the configured
// default.
func (s *Settings) Benchmark(ctx context.Context) (string, error) {
	raw, ok, err := s.settings.Get(ctx, settingBenchmark)
	if err != nil {
		return "", fmt.Errorf("read benchmark: %w", err)
	}
	if !ok || raw == "" {
		return s.defaultBenchmark, nil
	}
	return raw, nil
}

// SetBenchmark stores a benchmark override and invalidates cached
// scores, since every score is relative to the benchmark.
func (s *Settings) SetBenchmark(ctx context.Context, symbol string) error {
	if symbol == "" {
		return &contracts.ValidationError{Field: "benchmark", Reason: "must not be empty"}
	}
	if err := s.settings.Set(ctx, settingBenchmark, symbol); err != nil {
		return fmt.Errorf("store benchmark: %w", err)
	}
	if err := s.scores.DeleteAll(ctx); err != nil {
		return fmt.Errorf("invalidate scores: %w", err)
	}
	return nil
}
