package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rstrack/rstrack/internal/scheduler"
	"github.com/rstrack/rstrack/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the refresh scheduler without the API server",
	Long: `Starts the cron scheduler as a standalone daemon. The daily
refresh job runs on its configured schedule until interrupted.

Example:
  go run ./cmd/rstrack scheduler
  go run ./cmd/rstrack scheduler --run-now`,
	RunE: runSchedulerDaemon,
}

var schedulerRunNow bool

func init() {
	rootCmd.AddCommand(schedulerCmd)

	schedulerCmd.Flags().BoolVar(&schedulerRunNow, "run-now", false, "trigger the refresh job immediately on start")
}

func runSchedulerDaemon(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sched := scheduler.New(a.log)
	refresh := jobs.NewRefreshJob(a.orchestrator, a.cfg, a.log)
	if err := sched.AddJob(refresh); err != nil {
		return fmt.Errorf("schedule refresh job: %w", err)
	}

	sched.Start()

	fmt.Println("Scheduler started. Registered jobs:")
	for name, schedule := range sched.Jobs() {
		fmt.Printf("  - %s (%s)\n", name, schedule)
	}
	fmt.Println("Press Ctrl+C to stop")

	if schedulerRunNow {
		if err := sched.RunJob(refresh.Name()); err != nil {
			return fmt.Errorf("run refresh job: %w", err)
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sched.Stop()

	for name := range sched.Jobs() {
		history, err := sched.GetJobHistory(name)
		if err != nil {
			continue
		}
		recent := history.Latest(5)
		if len(recent) == 0 {
			continue
		}
		fmt.Printf("Recent %s runs:\n", name)
		for _, r := range recent {
			outcome := "ok"
			if !r.Success {
				outcome = "failed: " + r.Error
			}
			fmt.Printf("  %s  %s  %s\n", r.StartTime.Format("2006-01-02 15:04:05"), r.Duration.Round(time.Millisecond), outcome)
		}
	}

	return nil
}
