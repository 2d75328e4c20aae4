package rscalc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rstrack/rstrack/internal/contracts"
)

func TestValidateWeightConfig(t *testing.T) {
	periods := func(p [4]contracts.WeightPeriod) contracts.WeightConfig {
		return contracts.WeightConfig{Periods: p}
	}

	tests := []struct {
		name    string
		cfg     contracts.WeightConfig
		wantErr bool
	}{
		{
			name: "default config",
			cfg:  DefaultWeightConfig(),
		},
		{
			name: "equal weights",
			cfg: periods([4]contracts.WeightPeriod{
				{Days: 63, Weight: 0.25}, {Days: 63, Weight: 0.25},
				{Days: 63, Weight: 0.25}, {Days: 63, Weight: 0.25},
			}),
		},
		{
			name: "uneven period lengths still covering the window",
			cfg: periods([4]contracts.WeightPeriod{
				{Days: 90, Weight: 0.4}, {Days: 54, Weight: 0.2},
				{Days: 54, Weight: 0.2}, {Days: 54, Weight: 0.2},
			}),
		},
		{
			name: "weights not summing to one",
			cfg: periods([4]contracts.WeightPeriod{
				{Days: 63, Weight: 0.5}, {Days: 63, Weight: 0.2},
				{Days: 63, Weight: 0.2}, {Days: 63, Weight: 0.2},
			}),
			wantErr: true,
		},
		{
			name: "negative weight",
			cfg: periods([4]contracts.WeightPeriod{
				{Days: 63, Weight: 1.2}, {Days: 63, Weight: -0.2},
				{Days: 63, Weight: 0.0}, {Days: 63, Weight: 0.0},
			}),
			wantErr: true,
		},
		{
			name: "zero-length period",
			cfg: periods([4]contracts.WeightPeriod{
				{Days: 0, Weight: 0.25}, {Days: 84, Weight: 0.25},
				{Days: 84, Weight: 0.25}, {Days: 84, Weight: 0.25},
			}),
			wantErr: true,
		},
		{
			name: "periods not covering 252 days",
			cfg: periods([4]contracts.WeightPeriod{
				{Days: 60, Weight: 0.25}, {Days: 60, Weight: 0.25},
				{Days: 60, Weight: 0.25}, {Days: 60, Weight: 0.25},
			}),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWeightConfig(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				var vErr *contracts.ValidationError
				assert.ErrorAs(t, err, &vErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWeightConfigCodecRoundTrip(t *testing.T) {
	cfg := DefaultWeightConfig()

	raw, err := EncodeWeightConfig(cfg)
	require.NoError(t, err)

	decoded, err := DecodeWeightConfig(raw)
	require.NoError(t, err)
	assert.Equal(t, cfg, decoded)
}

func TestDecodeWeightConfig_RejectsInvalid(t *testing.T) {
	_, err := DecodeWeightConfig(`not json`)
	assert.Error(t, err)

	// Well-formed but fails validation.
	_, err = DecodeWeightConfig(`[{"Days":63,"Weight":0.9},{"Days":63,"Weight":0.2},{"Days":63,"Weight":0.2},{"Days":63,"Weight":0.2}]`)
	require.Error(t, err)
	var vErr *contracts.ValidationError
	assert.ErrorAs(t, err, &vErr)
}
