package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Import a ticker CSV into the registry",
	Long: `Imports instrument symbols from a CSV file. The symbol column is
located by header name (ticker/symbol); malformed rows are skipped.

Example:
  go run ./cmd/rstrack import tickers.csv
  go run ./cmd/rstrack import tickers.csv --enrich`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var enrichAfterImport bool

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().BoolVar(&enrichAfterImport, "enrich", false, "fetch sector/industry classification after import")
}

func runImport(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	file, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open %s: %w", args[0], err)
	}
	defer file.Close()

	ctx := cmd.Context()
	result, err := a.registry.ImportCSV(ctx, file)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	fmt.Printf("Added %d, reactivated %d, already registered %d, skipped %d\n",
		result.Added, result.Reactivated, result.Existing, len(result.Skipped))
	for _, token := range result.Skipped {
		fmt.Printf("  skipped: %s\n", token)
	}

	if enrichAfterImport {
		enriched, err := a.registry.EnrichClassifications(ctx)
		if err != nil {
			return fmt.Errorf("enrich classifications: %w", err)
		}
		fmt.Printf("Enriched %d classifications\n", enriched)
	}

	return nil
}
