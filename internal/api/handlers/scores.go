package handlers

import (
	"context"
	"net/http"

	"github.com/rstrack/rstrack/internal/contracts"
	"github.com/rstrack/rstrack/internal/rscalc"
	"github.com/rstrack/rstrack/pkg/logger"
)

// SnapshotSource recovers the last published result set when the
// in-process calculator has not run yet, typically right after a
// restart.
type SnapshotSource interface {
	Latest(ctx context.Context) (*rscalc.ResultSet, bool, error)
}

// ScoreHandler serves the published calculation results. It reads the
// calculator's published snapshot, never intermediate state, falling
// back to the cached snapshot before the first in-process run.
type ScoreHandler struct {
	calc      *rscalc.Calculator
	snapshots SnapshotSource
	logger    *logger.Logger
}

// NewScoreHandler creates a new score handler. snapshots may be nil
// when no snapshot cache is configured.
func NewScoreHandler(calc *rscalc.Calculator, snapshots SnapshotSource, log *logger.Logger) *ScoreHandler {
	return &ScoreHandler{calc: calc, snapshots: snapshots, logger: log}
}

// published resolves the result set to serve: the in-process published
// snapshot when one exists, otherwise the cached one.
func (h *ScoreHandler) published(ctx context.Context) *rscalc.ResultSet {
	if p := h.calc.Published(); p != nil {
		return p
	}
	if h.snapshots == nil {
		return nil
	}
	p, found, err := h.snapshots.Latest(ctx)
	if err != nil {
		h.logger.WithError(err).Warn("Snapshot recovery failed")
		return nil
	}
	if !found {
		return nil
	}
	return p
}

// ScoreItem is one RS score in API responses.
type ScoreItem struct {
	Name           string  `json:"name"`
	Score          float64 `json:"score"`
	Percentile     float64 `json:"percentile"`
	WeightedReturn float64 `json:"weightedReturn"`
	Date           string  `json:"date"`
	Freshness      string  `json:"freshness,omitempty"`
}

// GroupItem is one group strength entry in API responses.
type GroupItem struct {
	Name        string   `json:"name"`
	Strength    *float64 `json:"strength"` // null when no member scored
	MemberCount int      `json:"memberCount"`
	AboveCount  int      `json:"aboveCount"`
}

// GetScores returns published RS scores for one entity type.
// GET /api/scores?type=stock|sector|industry
func (h *ScoreHandler) GetScores(w http.ResponseWriter, r *http.Request) {
	published := h.published(r.Context())
	if published == nil {
		respondError(w, http.StatusNotFound, "no published results yet")
		return
	}

	var scores []contracts.RSScore
	entityType := r.URL.Query().Get("type")
	switch entityType {
	case "", "stock":
		entityType = "stock"
		scores = published.Scores
	case "sector":
		scores = published.SectorScores
	case "industry":
		scores = published.IndustryScores
	default:
		respondError(w, http.StatusBadRequest, "type must be stock, sector or industry")
		return
	}

	items := make([]ScoreItem, 0, len(scores))
	for _, s := range scores {
		item := ScoreItem{
			Name:           s.EntityName,
			Score:          s.Score,
			Percentile:     s.Percentile,
			WeightedReturn: s.WeightedReturn,
			Date:           s.Date.Format("2006-01-02"),
		}
		if f, ok := published.Freshness[s.EntityName]; ok {
			item.Freshness = string(f)
		}
		items = append(items, item)
	}

	exclusions := make([]map[string]string, 0, len(published.Exclusions))
	if entityType == "stock" {
		for _, e := range published.Exclusions {
			exclusions = append(exclusions, map[string]string{
				"symbol": e.Symbol,
				"reason": string(e.Reason),
			})
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"type":       entityType,
		"asOf":       published.AsOf.Format("2006-01-02"),
		"count":      len(items),
		"items":      items,
		"exclusions": exclusions,
	})
}

// GetGroups returns published group strength rollups.
// GET /api/groups?type=sector|industry
func (h *ScoreHandler) GetGroups(w http.ResponseWriter, r *http.Request) {
	published := h.published(r.Context())
	if published == nil {
		respondError(w, http.StatusNotFound, "no published results yet")
		return
	}

	var groups []contracts.GroupStrength
	entityType := r.URL.Query().Get("type")
	switch entityType {
	case "", "sector":
		entityType = "sector"
		groups = published.SectorStrength
	case "industry":
		groups = published.IndustryStrength
	default:
		respondError(w, http.StatusBadRequest, "type must be sector or industry")
		return
	}

	items := make([]GroupItem, 0, len(groups))
	for _, g := range groups {
		items = append(items, GroupItem{
			Name:        g.Name,
			Strength:    g.Strength,
			MemberCount: g.MemberCount,
			AboveCount:  g.AboveCount,
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"type":  entityType,
		"asOf":  published.AsOf.Format("2006-01-02"),
		"count": len(items),
		"items": items,
	})
}
