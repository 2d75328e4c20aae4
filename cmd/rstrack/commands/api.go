package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rstrack/rstrack/internal/api"
	"github.com/rstrack/rstrack/internal/api/handlers"
	"github.com/rstrack/rstrack/internal/pipeline"
	"github.com/rstrack/rstrack/internal/scheduler"
	"github.com/rstrack/rstrack/internal/scheduler/jobs"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Starts the REST API server with the scheduled daily refresh.

Endpoints:
  GET    /health                    - Health check
  GET    /api/instruments           - Active universe
  POST   /api/instruments/upload    - Import a ticker CSV
  DELETE /api/instruments/{symbol}  - Deactivate an instrument
  POST   /api/pipeline/refresh      - Trigger a full refresh
  GET    /api/pipeline/status       - Pipeline status
  GET    /api/scores                - Published RS scores
  GET    /api/groups                - Published group strength
  GET    /api/settings/weights      - Active weight config
  PUT    /api/settings/weights      - Apply a weight config
  PUT    /api/settings/benchmark    - Set the benchmark symbol

Example:
  go run ./cmd/rstrack api
  go run ./cmd/rstrack api --port 8090`,
	RunE: runAPIServer,
}

var (
	apiPort     string
	noScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default from config)")
	apiCmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "disable the scheduled daily refresh")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	a.log.WithFields(map[string]interface{}{
		"port": a.cfg.Port,
		"env":  a.cfg.Env,
	}).Info("Initializing API server")

	instrumentHandler := handlers.NewInstrumentHandler(a.registry, a.log)
	pipelineHandler := handlers.NewPipelineHandler(a.orchestrator, a.log)
	scoreHandler := handlers.NewScoreHandler(a.calc, pipeline.NewSnapshotStore(a.cache), a.log)
	settingsHandler := handlers.NewSettingsHandler(a.settings, a.log)

	router := api.NewRouter(instrumentHandler, pipelineHandler, scoreHandler, settingsHandler, a.log)
	server := api.New(a.cfg, a.log, router)

	var sched *scheduler.Scheduler
	if !noScheduler && a.cfg.Pipeline.RefreshSchedule != "" {
		sched = scheduler.New(a.log)
		if err := sched.AddJob(jobs.NewRefreshJob(a.orchestrator, a.cfg, a.log)); err != nil {
			return fmt.Errorf("schedule refresh job: %w", err)
		}
		sched.Start()
	}

	go func() {
		if err := server.Start(); err != nil {
			a.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("Server running on http://localhost:%s\n", a.cfg.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	if sched != nil {
		sched.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}
