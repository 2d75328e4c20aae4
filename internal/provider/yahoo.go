package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/rstrack/rstrack/internal/contracts"
	"github.com/rstrack/rstrack/pkg/config"
	"github.com/rstrack/rstrack/pkg/httputil"
	"github.com/rstrack/rstrack/pkg/logger"
)

// YahooClient fetches daily OHLC bars from the Yahoo Finance chart API.
// All requests flow through the shared rate limiter attached to the
// HTTP client; transient failures (timeouts, 429, 5xx) are retried with
// exponential backoff up to the configured attempt count.
type YahooClient struct {
	baseURL    string
	httpClient *httputil.Client
	logger     *logger.Logger
}

// NewYahooClient creates a chart API client sharing the given limiter.
func NewYahooClient(cfg config.ProviderConfig, limiter *rate.Limiter, log *logger.Logger) *YahooClient {
	client := httputil.New(log, cfg.RequestTimeout).
		WithRetry(cfg.MaxRetries, cfg.InitialBackoff, cfg.MaxBackoff).
		WithRateLimiter(limiter)

	return &YahooClient{
		baseURL:    cfg.BaseURL,
		httpClient: client,
		logger:     log.WithField("module", "provider"),
	}
}

// chartResponse mirrors the subset of the chart API payload we consume.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchRange returns daily bars for [start, end], ascending by date.
func (c *YahooClient) FetchRange(ctx context.Context, symbol string, start, end time.Time) ([]contracts.DailyBar, error) {
	// period2 is exclusive upstream, so push it one day past end.
	url := fmt.Sprintf(
		"%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d&events=div%%2Csplit",
		c.baseURL, symbol, start.Unix(), end.AddDate(0, 0, 1).Unix(),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", contracts.ErrProviderUnavailable, symbol, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", contracts.ErrNoData, symbol)
	case resp.StatusCode == http.StatusTooManyRequests:
		// Retries inside the HTTP client are exhausted at this point.
		return nil, fmt.Errorf("%w: %s: %w", contracts.ErrProviderUnavailable, symbol, contracts.ErrRateLimited)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: %s: status %d", contracts.ErrProviderUnavailable, symbol, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: %s: unexpected status %d", contracts.ErrProviderUnavailable, symbol, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read body: %v", contracts.ErrProviderUnavailable, symbol, err)
	}

	bars, err := c.parseChart(symbol, body)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"from":   start.Format("2006-01-02"),
		"to":     end.Format("2006-01-02"),
		"count":  len(bars),
	}).Debug("Fetched bars")

	return bars, nil
}

// parseChart converts a chart payload into bars, computing daily returns
// off the adjusted close chain. Rows with a null close are skipped.
func (c *YahooClient) parseChart(symbol string, body []byte) ([]contracts.DailyBar, error) {
	var payload chartResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse chart response for %s: %w", symbol, err)
	}

	if payload.Chart.Error != nil {
		return nil, fmt.Errorf("%w: %s: %s", contracts.ErrNoData, symbol, payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", contracts.ErrNoData, symbol)
	}

	result := payload.Chart.Result[0]
	if len(result.Timestamp) == 0 || len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: %s", contracts.ErrNoData, symbol)
	}

	quote := result.Indicators.Quote[0]
	var adjCloses []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adjCloses = result.Indicators.AdjClose[0].AdjClose
	}

	at := func(vals []*float64, i int) (float64, bool) {
		if i >= len(vals) || vals[i] == nil {
			return 0, false
		}
		return *vals[i], true
	}

	var bars []contracts.DailyBar
	var prevAdjClose *float64
	for i, ts := range result.Timestamp {
		closePrice, ok := at(quote.Close, i)
		if !ok {
			continue
		}
		open, _ := at(quote.Open, i)
		high, _ := at(quote.High, i)
		low, _ := at(quote.Low, i)

		adjClose := closePrice
		if v, ok := at(adjCloses, i); ok {
			adjClose = v
		}

		var volume int64
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			volume = *quote.Volume[i]
		}

		bar := contracts.DailyBar{
			Symbol:   symbol,
			Date:     time.Unix(ts, 0).UTC().Truncate(24 * time.Hour),
			Open:     open,
			High:     high,
			Low:      low,
			Close:    closePrice,
			AdjClose: adjClose,
			Volume:   volume,
		}

		if prevAdjClose != nil && *prevAdjClose != 0 {
			ret := (adjClose - *prevAdjClose) / *prevAdjClose
			bar.DailyReturn = &ret
		}
		prev := adjClose
		prevAdjClose = &prev

		bars = append(bars, bar)
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s", contracts.ErrNoData, symbol)
	}
	return bars, nil
}
