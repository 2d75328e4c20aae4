package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rstrack",
	Short: "Relative strength tracking engine",
	Long: `rstrack - relative strength tracking for equities

Maintains a local daily price store, computes quarterly-weighted
relative strength scores against a benchmark, and rolls them up into
sector and industry strength.

Usage:
  go run ./cmd/rstrack [command]

Examples:
  go run ./cmd/rstrack migrate
  go run ./cmd/rstrack import tickers.csv
  go run ./cmd/rstrack refresh
  go run ./cmd/rstrack api`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
