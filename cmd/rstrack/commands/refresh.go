package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// refreshCmd represents the refresh command
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run the full refresh pipeline once",
	Long: `Runs the full pipeline: enrich classifications, bring every price
series up to date, recompute RS scores and publish them.

Example:
  go run ./cmd/rstrack refresh`,
	RunE: runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.orchestrator.Refresh(cmd.Context())
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	fmt.Printf("Scored %d instruments as of %s (%d excluded)\n",
		len(result.Scores), result.AsOf.Format("2006-01-02"), len(result.Exclusions))
	for _, e := range result.Exclusions {
		fmt.Printf("  excluded %s: %s\n", e.Symbol, e.Reason)
	}

	return nil
}
