package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rstrack/rstrack/internal/contracts"
	"github.com/rstrack/rstrack/pkg/config"
	"github.com/rstrack/rstrack/pkg/logger"
)

func testClient(t *testing.T, serverURL string) *YahooClient {
	t.Helper()
	cfg := config.ProviderConfig{
		BaseURL:            serverURL,
		MinRequestInterval: time.Millisecond,
		RequestTimeout:     5 * time.Second,
		MaxRetries:         1,
		InitialBackoff:     time.Millisecond,
		MaxBackoff:         10 * time.Millisecond,
	}
	return NewYahooClient(cfg, NewLimiter(cfg), logger.NewNop())
}

func chartPayload(timestamps []int64, closes []string) string {
	ts := ""
	for i, v := range timestamps {
		if i > 0 {
			ts += ","
		}
		ts += fmt.Sprintf("%d", v)
	}
	cl := ""
	for i, v := range closes {
		if i > 0 {
			cl += ","
		}
		cl += v
	}
	return fmt.Sprintf(`{"chart":{"result":[{"timestamp":[%s],"indicators":{"quote":[{"open":[%s],"high":[%s],"low":[%s],"close":[%s],"volume":[%s]}],"adjclose":[{"adjclose":[%s]}]}}],"error":null}}`,
		ts, cl, cl, cl, cl, intsOfLen(len(closes)), cl)
}

func intsOfLen(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			out += ","
		}
		out += "1000"
	}
	return out
}

func TestYahooClient_FetchRange(t *testing.T) {
	// 2026-08-24 and 2026-08-25 UTC midnight.
	day1 := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/v8/finance/chart/AAPL")
		fmt.Fprint(w, chartPayload(
			[]int64{day1.Unix(), day2.Unix()},
			[]string{"100", "102"},
		))
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	bars, err := client.FetchRange(context.Background(), "AAPL", day1, day2)
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, day1, bars[0].Date)
	assert.Equal(t, 100.0, bars[0].Close)
	assert.Nil(t, bars[0].DailyReturn, "first bar has no prior adjclose")

	assert.Equal(t, day2, bars[1].Date)
	require.NotNil(t, bars[1].DailyReturn)
	assert.InDelta(t, 0.02, *bars[1].DailyReturn, 1e-9)
}

func TestYahooClient_FetchRange_SkipsNullRows(t *testing.T) {
	day1 := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	day3 := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chartPayload(
			[]int64{day1.Unix(), day2.Unix(), day3.Unix()},
			[]string{"100", "null", "104"},
		))
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	bars, err := client.FetchRange(context.Background(), "AAPL", day1, day3)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, day3, bars[1].Date)
}

func TestYahooClient_FetchRange_NoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`)
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	_, err := client.FetchRange(context.Background(), "GONE", time.Now().AddDate(0, 0, -5), time.Now())

	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrNoData)
	assert.NotErrorIs(t, err, contracts.ErrProviderUnavailable,
		"no-data must stay distinct from an outage")
}

func TestYahooClient_FetchRange_UnavailableAfterRetries(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	_, err := client.FetchRange(context.Background(), "AAPL", time.Now().AddDate(0, 0, -5), time.Now())

	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrProviderUnavailable)
	assert.Equal(t, 2, attempts, "one retry after the initial attempt")
}

func TestNewLimiter_EnforcesSpacing(t *testing.T) {
	cfg := config.ProviderConfig{MinRequestInterval: 20 * time.Millisecond}
	limiter := NewLimiter(cfg)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx))
	require.NoError(t, limiter.Wait(ctx))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 20*time.Millisecond,
		"second request must wait out the minimum interval")
}

func TestNewLimiter_SharedAcrossSymbols(t *testing.T) {
	cfg := config.ProviderConfig{
		BaseURL:            "http://unused",
		MinRequestInterval: time.Millisecond,
		RequestTimeout:     time.Second,
	}
	limiter := NewLimiter(cfg)

	a := NewYahooClient(cfg, limiter, logger.NewNop())
	b := NewYahooClient(cfg, limiter, logger.NewNop())

	// Both clients throttle through the same bucket.
	assert.Same(t, limiter, a.httpClient.Limiter())
	assert.Same(t, limiter, b.httpClient.Limiter())
}
