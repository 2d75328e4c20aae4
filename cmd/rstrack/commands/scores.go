package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// scoresCmd represents the scores command
var scoresCmd = &cobra.Command{
	Use:   "scores",
	Short: "Print published RS scores",
	Long: `Prints the latest published RS scores, strongest first.

Example:
  go run ./cmd/rstrack scores
  go run ./cmd/rstrack scores --type sector --limit 10`,
	RunE: runScores,
}

var (
	scoresType  string
	scoresLimit int
)

func init() {
	rootCmd.AddCommand(scoresCmd)

	scoresCmd.Flags().StringVar(&scoresType, "type", "stock", "entity type (stock|sector|industry)")
	scoresCmd.Flags().IntVar(&scoresLimit, "limit", 25, "maximum rows")
}

func runScores(cmd *cobra.Command, args []string) error {
	switch scoresType {
	case "stock", "sector", "industry":
	default:
		return fmt.Errorf("type must be stock, sector or industry")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()

	rows, err := a.db.Pool.Query(ctx, `
		SELECT entity_name, score_date, rs_score, percentile, weighted_return
		FROM rs_scores
		WHERE entity_type = $1
		  AND score_date = (SELECT MAX(score_date) FROM rs_scores WHERE entity_type = $1)
		ORDER BY rs_score DESC
		LIMIT $2
	`, scoresType, scoresLimit)
	if err != nil {
		return fmt.Errorf("query scores: %w", err)
	}
	defer rows.Close()

	printed := 0
	for rows.Next() {
		var name string
		var date time.Time
		var score, percentile, weighted float64
		if err := rows.Scan(&name, &date, &score, &percentile, &weighted); err != nil {
			return fmt.Errorf("scan score: %w", err)
		}
		if printed == 0 {
			fmt.Printf("%s scores as of %s\n\n", scoresType, date.Format("2006-01-02"))
			fmt.Printf("%-12s %10s %10s %10s\n", "NAME", "SCORE", "PCTL", "WRET")
		}
		fmt.Printf("%-12s %10.2f %10.1f %9.2f%%\n", name, score, percentile, weighted*100)
		printed++
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if printed == 0 {
		fmt.Println("No published scores. Run a refresh first.")
	}

	return nil
}
