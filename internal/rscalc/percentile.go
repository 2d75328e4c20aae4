package rscalc

import (
	"sort"
)

// Percentiles computes percentile-of-rank for each score within the
// full set, expressed 0-100. Ties share the average of the ranks they
// occupy, and the maximum score lands exactly on 100 when untied.
func Percentiles(scores []float64) []float64 {
	n := len(scores)
	if n == 0 {
		return nil
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return scores[order[a]] < scores[order[b]]
	})

	out := make([]float64, n)
	for i := 0; i < n; {
		// Walk the tie group sharing this value.
		j := i
		for j < n && scores[order[j]] == scores[order[i]] {
			j++
		}

		// Ranks are 1-based; the group shares the average rank.
		avgRank := float64(i+1+j) / 2.0
		pct := avgRank / float64(n) * 100.0
		for k := i; k < j; k++ {
			out[order[k]] = pct
		}
		i = j
	}

	return out
}
