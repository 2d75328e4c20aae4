package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// calculateCmd represents the calculate command
var calculateCmd = &cobra.Command{
	Use:   "calculate",
	Short: "Recompute RS scores from cached data",
	Long: `Recomputes and publishes RS scores from the local price store
without contacting the provider. Useful after changing the weight
config or the benchmark.

Example:
  go run ./cmd/rstrack calculate`,
	RunE: runCalculate,
}

func init() {
	rootCmd.AddCommand(calculateCmd)
}

func runCalculate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.orchestrator.Calculate(cmd.Context())
	if err != nil {
		return fmt.Errorf("calculate: %w", err)
	}

	if result.AsOf.IsZero() {
		fmt.Println("No instrument could be scored from cached data.")
		return nil
	}

	fmt.Printf("Scored %d instruments as of %s (%d excluded)\n",
		len(result.Scores), result.AsOf.Format("2006-01-02"), len(result.Exclusions))
	for _, e := range result.Exclusions {
		fmt.Printf("  excluded %s: %s\n", e.Symbol, e.Reason)
	}

	return nil
}
