package rscalc

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/rstrack/rstrack/internal/contracts"
)

const (
	// tradingWindow is the trailing window the four periods must cover,
	// in trading days (~one year).
	tradingWindow = 252

	// weightTolerance is the floating tolerance on the weight sum.
	weightTolerance = 1e-9
)

// DefaultWeightConfig returns the standard quarterly weighting: the most
// recent quarter counts double.
func DefaultWeightConfig() contracts.WeightConfig {
	return contracts.WeightConfig{
		Periods: [4]contracts.WeightPeriod{
			{Days: 63, Weight: 0.4},
			{Days: 63, Weight: 0.2},
			{Days: 63, Weight: 0.2},
			{Days: 63, Weight: 0.2},
		},
	}
}

// ValidateWeightConfig rejects a config whose weights do not sum to 1.0
// or whose periods fail to partition the 252-trading-day window. Invalid
// configs are refused before they are applied; applying a valid one
// invalidates every cached score.
func ValidateWeightConfig(cfg contracts.WeightConfig) error {
	sum := 0.0
	total := 0
	for i, p := range cfg.Periods {
		if p.Days <= 0 {
			return &contracts.ValidationError{
				Field:  fmt.Sprintf("periods[%d].days", i),
				Reason: "must be positive",
			}
		}
		if p.Weight < 0 || p.Weight > 1 {
			return &contracts.ValidationError{
				Field:  fmt.Sprintf("periods[%d].weight", i),
				Reason: "must be within [0, 1]",
			}
		}
		sum += p.Weight
		total += p.Days
	}

	if math.Abs(sum-1.0) > weightTolerance {
		return &contracts.ValidationError{
			Field:  "weights",
			Reason: fmt.Sprintf("must sum to 1.0, got %.12f", sum),
		}
	}

	if total != tradingWindow {
		return &contracts.ValidationError{
			Field:  "periods",
			Reason: fmt.Sprintf("must cover exactly %d trading days, got %d", tradingWindow, total),
		}
	}

	return nil
}

// EncodeWeightConfig serializes a config for the settings store.
func EncodeWeightConfig(cfg contracts.WeightConfig) (string, error) {
	data, err := json.Marshal(cfg.Periods)
	if err != nil {
		return "", fmt.Errorf("encode weight config: %w", err)
	}
	return string(data), nil
}

// DecodeWeightConfig parses a config from its settings representation
// and validates it.
func DecodeWeightConfig(raw string) (contracts.WeightConfig, error) {
	var cfg contracts.WeightConfig
	if err := json.Unmarshal([]byte(raw), &cfg.Periods); err != nil {
		return contracts.WeightConfig{}, fmt.Errorf("decode weight config: %w", err)
	}
	if err := ValidateWeightConfig(cfg); err != nil {
		return contracts.WeightConfig{}, err
	}
	return cfg, nil
}
