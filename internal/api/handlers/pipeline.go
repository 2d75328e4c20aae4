package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/rstrack/rstrack/internal/pipeline"
	"github.com/rstrack/rstrack/pkg/logger"
)

// PipelineHandler serves the pipeline control endpoints.
type PipelineHandler struct {
	orchestrator *pipeline.Orchestrator
	logger       *logger.Logger
}

// NewPipelineHandler creates a new pipeline handler.
func NewPipelineHandler(orch *pipeline.Orchestrator, log *logger.Logger) *PipelineHandler {
	return &PipelineHandler{orchestrator: orch, logger: log}
}

// Refresh triggers a full pipeline run in the background. A run already
// in flight yields 409.
// POST /api/pipeline/refresh
func (h *PipelineHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if h.orchestrator.Status().Running {
		respondError(w, http.StatusConflict, "refresh already in progress")
		return
	}

	go func() {
		// Detached from the request context: the run outlives the
		// response.
		if _, err := h.orchestrator.Refresh(context.Background()); err != nil {
			if errors.Is(err, pipeline.ErrRunInProgress) {
				return
			}
			h.logger.WithError(err).Error("Background refresh failed")
		}
	}()

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// GetStatus returns the current or last run's status.
// GET /api/pipeline/status
func (h *PipelineHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status := h.orchestrator.Status()

	instruments := make([]map[string]interface{}, 0, len(status.Instruments))
	for _, inst := range status.Instruments {
		item := map[string]interface{}{
			"symbol": inst.Symbol,
			"state":  string(inst.State),
		}
		if inst.BarsAdded > 0 {
			item["barsAdded"] = inst.BarsAdded
		}
		if inst.Freshness != "" {
			item["freshness"] = string(inst.Freshness)
		}
		if inst.Error != "" {
			item["error"] = inst.Error
		}
		instruments = append(instruments, item)
	}

	resp := map[string]interface{}{
		"running":     status.Running,
		"stage":       string(status.Stage),
		"total":       status.Total,
		"fetched":     status.Fetched,
		"skipped":     status.Skipped,
		"failed":      status.Failed,
		"instruments": instruments,
	}
	if !status.StartedAt.IsZero() {
		resp["startedAt"] = status.StartedAt
	}
	if !status.FinishedAt.IsZero() {
		resp["finishedAt"] = status.FinishedAt
	}
	if status.LastError != "" {
		resp["lastError"] = status.LastError
	}

	respondJSON(w, http.StatusOK, resp)
}
