package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/rstrack/rstrack/internal/pipeline"
	"github.com/rstrack/rstrack/pkg/config"
	"github.com/rstrack/rstrack/pkg/logger"
)

// RefreshJob runs the full pipeline after market close on trading days.
type RefreshJob struct {
	orchestrator *pipeline.Orchestrator
	config       *config.Config
	logger       *logger.Logger
}

// NewRefreshJob creates a new refresh job.
func NewRefreshJob(orch *pipeline.Orchestrator, cfg *config.Config, log *logger.Logger) *RefreshJob {
	return &RefreshJob{
		orchestrator: orch,
		config:       cfg,
		logger:       log,
	}
}

// Name returns the job name.
func (j *RefreshJob) Name() string {
	return "daily_refresh"
}

// Schedule returns the configured cron expression.
func (j *RefreshJob) Schedule() string {
	return j.config.Pipeline.RefreshSchedule
}

// Run executes a full refresh. A run already in flight counts as done,
// not as a failure to retry.
func (j *RefreshJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled refresh")

	result, err := j.orchestrator.Refresh(ctx)
	if errors.Is(err, pipeline.ErrRunInProgress) {
		j.logger.Info("Refresh already running, skipping scheduled run")
		return nil
	}
	if err != nil {
		return fmt.Errorf("scheduled refresh: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"scored":   len(result.Scores),
		"excluded": len(result.Exclusions),
	}).Info("Scheduled refresh completed")

	return nil
}
