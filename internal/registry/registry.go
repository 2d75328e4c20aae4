package registry

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/rstrack/rstrack/internal/contracts"
	"github.com/rstrack/rstrack/pkg/logger"
)

// symbolPattern is the accepted ticker format: 1-10 uppercase
// alphanumerics, dots and hyphens allowed (BRK.B, BF-B).
var symbolPattern = regexp.MustCompile(`^[A-Z0-9.\-]{1,10}$`)

// tickerColumns are the header names recognized as the symbol column,
// compared case-insensitively.
var tickerColumns = map[string]bool{
	"ticker":  true,
	"symbol":  true,
	"tickers": true,
	"symbols": true,
}

// placeholderValues are cell contents treated as absent rather than
// invalid.
var placeholderValues = map[string]bool{
	"": true, "NA": true, "N/A": true, "NULL": true,
	"NAN": true, "NONE": true, "-": true,
}

// ClassificationSource resolves an instrument's sector and industry.
type ClassificationSource interface {
	FetchProfile(ctx context.Context, symbol string) (sector, industry string, err error)
}

// ImportResult summarizes one CSV import.
type ImportResult struct {
	Added       int
	Reactivated int
	Existing    int
	Skipped     []string // rejected tokens, in input order
}

// Registry manages the instrument universe: CSV imports, classification
// enrichment and deactivation. Instruments are never deleted.
type Registry struct {
	repo       contracts.InstrumentRepository
	classifier ClassificationSource
	logger     *logger.Logger
}

// New creates a registry. classifier may be nil when enrichment is not
// wired.
func New(repo contracts.InstrumentRepository, classifier ClassificationSource, log *logger.Logger) *Registry {
	return &Registry{
		repo:       repo,
		classifier: classifier,
		logger:     log.WithField("module", "registry"),
	}
}

// ImportCSV reads a ticker CSV and registers every valid, deduplicated
// symbol. The symbol column is located by header name; rows with
// placeholder or malformed tickers are skipped, not fatal. Existing
// instruments keep their classification; inactive ones are reactivated.
func (r *Registry) ImportCSV(ctx context.Context, src io.Reader) (ImportResult, error) {
	reader := csv.NewReader(src)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return ImportResult{}, fmt.Errorf("empty CSV")
	}
	if err != nil {
		return ImportResult{}, fmt.Errorf("read CSV header: %w", err)
	}

	col := -1
	for i, name := range header {
		if tickerColumns[strings.ToLower(strings.TrimSpace(stripBOM(name)))] {
			col = i
			break
		}
	}
	if col < 0 {
		return ImportResult{}, fmt.Errorf("no ticker/symbol column in header %v", header)
	}

	var result ImportResult
	seen := make(map[string]bool)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return result, fmt.Errorf("read CSV row: %w", err)
		}
		if col >= len(row) {
			continue
		}

		symbol := strings.ToUpper(strings.TrimSpace(row[col]))
		if placeholderValues[symbol] {
			continue
		}
		if !symbolPattern.MatchString(symbol) {
			result.Skipped = append(result.Skipped, symbol)
			continue
		}
		if seen[symbol] {
			continue
		}
		seen[symbol] = true

		existing, ok, err := r.repo.GetBySymbol(ctx, symbol)
		if err != nil {
			return result, fmt.Errorf("lookup %s: %w", symbol, err)
		}
		switch {
		case !ok:
			if err := r.repo.Upsert(ctx, contracts.Instrument{Symbol: symbol, Active: true}); err != nil {
				return result, fmt.Errorf("register %s: %w", symbol, err)
			}
			result.Added++
		case !existing.Active:
			existing.Active = true
			if err := r.repo.Upsert(ctx, existing); err != nil {
				return result, fmt.Errorf("reactivate %s: %w", symbol, err)
			}
			result.Reactivated++
		default:
			result.Existing++
		}
	}

	r.logger.WithFields(map[string]interface{}{
		"added":       result.Added,
		"reactivated": result.Reactivated,
		"existing":    result.Existing,
		"skipped":     len(result.Skipped),
	}).Info("CSV import completed")

	return result, nil
}

// EnrichClassifications fills in sector/industry for active instruments
// that lack a usable classification. Lookup failures are logged and
// skipped; the instrument stays unclassified until a later pass.
func (r *Registry) EnrichClassifications(ctx context.Context) (int, error) {
	if r.classifier == nil {
		return 0, nil
	}

	instruments, err := r.repo.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active instruments: %w", err)
	}

	enriched := 0
	for _, inst := range instruments {
		if inst.Classified() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return enriched, err
		}

		sector, industry, err := r.classifier.FetchProfile(ctx, inst.Symbol)
		if err != nil {
			r.logger.WithFields(map[string]interface{}{
				"symbol": inst.Symbol,
				"error":  err.Error(),
			}).Warn("Classification lookup failed")
			continue
		}

		inst.Sector = sector
		inst.Industry = industry
		if err := r.repo.Upsert(ctx, inst); err != nil {
			return enriched, fmt.Errorf("store classification %s: %w", inst.Symbol, err)
		}
		enriched++
	}

	return enriched, nil
}

// ListActive returns the active universe ordered by symbol.
func (r *Registry) ListActive(ctx context.Context) ([]contracts.Instrument, error) {
	return r.repo.ListActive(ctx)
}

// Deactivate removes an instrument from the active universe without
// deleting its history.
func (r *Registry) Deactivate(ctx context.Context, symbol string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if !symbolPattern.MatchString(symbol) {
		return &contracts.ValidationError{Field: "symbol", Reason: "malformed ticker"}
	}
	return r.repo.Deactivate(ctx, symbol)
}

// stripBOM drops a UTF-8 byte order mark from the first header cell.
func stripBOM(s string) string {
	return strings.TrimPrefix(s, "\uFEFF")
}
