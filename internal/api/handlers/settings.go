package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rstrack/rstrack/internal/contracts"
	"github.com/rstrack/rstrack/internal/rscalc"
	"github.com/rstrack/rstrack/pkg/logger"
)

// SettingsHandler serves the calculation settings endpoints.
type SettingsHandler struct {
	settings *rscalc.Settings
	logger   *logger.Logger
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(settings *rscalc.Settings, log *logger.Logger) *SettingsHandler {
	return &SettingsHandler{settings: settings, logger: log}
}

// weightPeriodPayload mirrors one weight period on the wire.
type weightPeriodPayload struct {
	Days   int     `json:"days"`
	Weight float64 `json:"weight"`
}

// GetWeights returns the active weight config.
// GET /api/settings/weights
func (h *SettingsHandler) GetWeights(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.settings.WeightConfig(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to read weight config")
		respondError(w, http.StatusInternalServerError, "Failed to read weight config")
		return
	}

	periods := make([]weightPeriodPayload, 0, len(cfg.Periods))
	for _, p := range cfg.Periods {
		periods = append(periods, weightPeriodPayload{Days: p.Days, Weight: p.Weight})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"periods": periods})
}

// UpdateWeights validates and applies a new weight config. Applying a
// valid config invalidates every cached score.
// PUT /api/settings/weights
func (h *SettingsHandler) UpdateWeights(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Periods []weightPeriodPayload `json:"periods"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	if len(payload.Periods) != len(contracts.WeightConfig{}.Periods) {
		respondError(w, http.StatusBadRequest, "exactly four weight periods required")
		return
	}

	var cfg contracts.WeightConfig
	for i, p := range payload.Periods {
		cfg.Periods[i] = contracts.WeightPeriod{Days: p.Days, Weight: p.Weight}
	}

	if err := h.settings.ApplyWeightConfig(r.Context(), cfg); err != nil {
		var vErr *contracts.ValidationError
		if errors.As(err, &vErr) {
			respondError(w, http.StatusBadRequest, vErr.Error())
			return
		}
		h.logger.WithError(err).Error("Failed to apply weight config")
		respondError(w, http.StatusInternalServerError, "Failed to apply weight config")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

// UpdateBenchmark stores a new benchmark symbol and invalidates cached
// scores.
// PUT /api/settings/benchmark
func (h *SettingsHandler) UpdateBenchmark(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Symbol string `json:"symbol"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	if err := h.settings.SetBenchmark(r.Context(), payload.Symbol); err != nil {
		var vErr *contracts.ValidationError
		if errors.As(err, &vErr) {
			respondError(w, http.StatusBadRequest, vErr.Error())
			return
		}
		h.logger.WithError(err).Error("Failed to set benchmark")
		respondError(w, http.StatusInternalServerError, "Failed to set benchmark")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "applied", "symbol": payload.Symbol})
}
