// Package provider is the rate-limited boundary to the upstream market
// data source. A single limiter instance is shared across every
// instrument because the upstream throttles by client, not by symbol.
package provider

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/rstrack/rstrack/internal/contracts"
	"github.com/rstrack/rstrack/pkg/config"
)

// BarSource returns raw daily bars for a symbol and date range.
//
// Failures are typed: contracts.ErrNoData means the upstream answered
// but has nothing for the symbol (delisted or wrong ticker) and the
// caller should flag the instrument rather than retry.
// contracts.ErrProviderUnavailable means transient retries were
// exhausted; the caller keeps the instrument's stale series and may try
// again next run. Neither aborts a batch of other instruments.
type BarSource interface {
	FetchRange(ctx context.Context, symbol string, start, end time.Time) ([]contracts.DailyBar, error)
}

// ClassificationSource resolves sector/industry classification for a
// symbol, used when an import carries no classification columns.
type ClassificationSource interface {
	FetchProfile(ctx context.Context, symbol string) (sector, industry string, err error)
}

// NewLimiter builds the process-wide request limiter from config: a
// token bucket releasing one request per MinRequestInterval with no
// burst beyond a single token.
func NewLimiter(cfg config.ProviderConfig) *rate.Limiter {
	return rate.NewLimiter(rate.Every(cfg.MinRequestInterval), 1)
}
