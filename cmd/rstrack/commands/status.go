package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store and score coverage",
	Long: `Prints a summary of the local store: universe size, price
coverage and the latest published score date.

Example:
  go run ./cmd/rstrack status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()

	var activeCount int
	if err := a.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM instruments WHERE active = TRUE`).Scan(&activeCount); err != nil {
		return fmt.Errorf("count instruments: %w", err)
	}

	var barCount int64
	var symbolsWithBars int
	if err := a.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT symbol) FROM daily_bars`).Scan(&barCount, &symbolsWithBars); err != nil {
		return fmt.Errorf("count bars: %w", err)
	}

	var latestScoreDate *time.Time
	var scoreCount int
	if err := a.db.Pool.QueryRow(ctx,
		`SELECT MAX(score_date), COUNT(*) FROM rs_scores`).Scan(&latestScoreDate, &scoreCount); err != nil {
		return fmt.Errorf("read score coverage: %w", err)
	}

	fmt.Printf("Active instruments: %d\n", activeCount)
	fmt.Printf("Daily bars:         %d across %d symbols\n", barCount, symbolsWithBars)
	if latestScoreDate != nil {
		fmt.Printf("Published scores:   %d as of %s\n", scoreCount, latestScoreDate.Format("2006-01-02"))
	} else {
		fmt.Println("Published scores:   none")
	}

	return nil
}
