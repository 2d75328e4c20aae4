package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rstrack/rstrack/internal/api/handlers"
	"github.com/rstrack/rstrack/internal/contracts"
	"github.com/rstrack/rstrack/internal/pipeline"
	"github.com/rstrack/rstrack/internal/pricestore"
	"github.com/rstrack/rstrack/internal/registry"
	"github.com/rstrack/rstrack/internal/rscalc"
	"github.com/rstrack/rstrack/pkg/config"
	"github.com/rstrack/rstrack/pkg/logger"
)

type stubSource struct{}

func (stubSource) FetchRange(_ context.Context, _ string, _, _ time.Time) ([]contracts.DailyBar, error) {
	return nil, contracts.ErrNoData
}

// newTestServer wires the router over in-memory repositories.
func newTestServer(t *testing.T) (*httptest.Server, *rscalc.Calculator, *rscalc.MemoryScoreRepository) {
	srv, calc, scores, _ := newTestServerWithBars(t)
	return srv, calc, scores
}

func newTestServerWithBars(t *testing.T) (*httptest.Server, *rscalc.Calculator, *rscalc.MemoryScoreRepository, *pricestore.MemoryBarRepository) {
	return newTestServerWithSnapshots(t, nil)
}

func newTestServerWithSnapshots(t *testing.T, snapshots handlers.SnapshotSource) (*httptest.Server, *rscalc.Calculator, *rscalc.MemoryScoreRepository, *pricestore.MemoryBarRepository) {
	t.Helper()
	log := logger.NewNop()

	insts := registry.NewMemoryInstrumentRepository()
	reg := registry.New(insts, nil, log)
	bars := pricestore.NewMemoryBarRepository()
	store := pricestore.NewStore(bars, log)
	scores := rscalc.NewMemoryScoreRepository()
	settings := rscalc.NewSettings(rscalc.NewMemorySettingsRepository(), scores, "SPY", log)
	calc := rscalc.NewCalculator(store, log)
	orch := pipeline.NewOrchestrator(reg, store, stubSource{}, calc, settings, scores, nil, config.PipelineConfig{
		FetchWorkers:       1,
		StalenessThreshold: 24 * time.Hour,
		Benchmark:          "SPY",
	}, log)

	router := NewRouter(
		handlers.NewInstrumentHandler(reg, log),
		handlers.NewPipelineHandler(orch, log),
		handlers.NewScoreHandler(calc, snapshots, log),
		handlers.NewSettingsHandler(settings, log),
		log,
	)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, calc, scores, bars
}

func TestRouter_Health(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestRouter_InstrumentUploadAndList(t *testing.T) {
	srv, _, _ := newTestServer(t)

	csv := "symbol\nAAPL\nMSFT\nnot a ticker\n"
	resp, err := http.Post(srv.URL+"/api/instruments/upload", "text/csv", strings.NewReader(csv))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/instruments")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/instruments/AAPL", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_UploadRejectsHeaderlessCSV(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/instruments/upload", "text/csv", strings.NewReader("Name,Exchange\nApple,NASDAQ\n"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_ScoresBeforeFirstPublish(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/scores")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/groups")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

type stubSnapshots struct {
	result *rscalc.ResultSet
}

func (s *stubSnapshots) Latest(_ context.Context) (*rscalc.ResultSet, bool, error) {
	if s.result == nil {
		return nil, false, nil
	}
	return s.result, true, nil
}

func TestRouter_ScoresRecoveredFromSnapshotAfterRestart(t *testing.T) {
	strength := 50.0
	snapshots := &stubSnapshots{result: &rscalc.ResultSet{
		AsOf: time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC),
		Scores: []contracts.RSScore{{
			EntityType: contracts.EntityStock,
			EntityName: "AAPL",
			Date:       time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC),
			Score:      104.2,
			Percentile: 100,
		}},
		SectorStrength: []contracts.GroupStrength{{
			EntityType:  contracts.EntitySector,
			Name:        "Technology",
			Date:        time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC),
			Strength:    &strength,
			MemberCount: 2,
			AboveCount:  1,
		}},
	}}

	// The calculator has not run in this process; the handler serves the
	// cached snapshot instead of a 404.
	srv, _, _, _ := newTestServerWithSnapshots(t, snapshots)

	resp, err := http.Get(srv.URL + "/api/scores")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		AsOf  string `json:"asOf"`
		Count int    `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "2026-08-25", body.AsOf)
	assert.Equal(t, 1, body.Count)

	resp, err = http.Get(srv.URL + "/api/groups")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_ScoresBadType(t *testing.T) {
	srv, calc, _, bars := newTestServerWithBars(t)

	// Publish something so the type check is what fails.
	seedPublished(t, calc, bars)

	resp, err := http.Get(srv.URL + "/api/scores?type=galaxy")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_SettingsWeights(t *testing.T) {
	srv, _, scores := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/settings/weights")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Valid config applies and invalidates cached scores.
	valid := `{"periods":[{"days":63,"weight":0.25},{"days":63,"weight":0.25},{"days":63,"weight":0.25},{"days":63,"weight":0.25}]}`
	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/settings/weights", strings.NewReader(valid))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, scores.DeleteCount())

	// Invalid weights are rejected with 400 and no invalidation.
	invalid := `{"periods":[{"days":63,"weight":0.9},{"days":63,"weight":0.2},{"days":63,"weight":0.2},{"days":63,"weight":0.2}]}`
	req, err = http.NewRequest(http.MethodPut, srv.URL+"/api/settings/weights", strings.NewReader(invalid))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 1, scores.DeleteCount())
}

func TestRouter_SettingsBenchmark(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/settings/benchmark", strings.NewReader(`{"symbol":"QQQ"}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err = http.NewRequest(http.MethodPut, srv.URL+"/api/settings/benchmark", strings.NewReader(`{"symbol":""}`))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_PipelineStatus(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/pipeline/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// seedPublished gives the server's calculator a benchmark series and
// runs it once so a published snapshot exists.
func seedPublished(t *testing.T, calc *rscalc.Calculator, repo *pricestore.MemoryBarRepository) {
	t.Helper()
	dates := make([]time.Time, 0, 260)
	d := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	for len(dates) < 260 {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			dates = append(dates, d)
		}
		d = d.AddDate(0, 0, -1)
	}
	for i, j := 0, len(dates)-1; i < j; i, j = i+1, j-1 {
		dates[i], dates[j] = dates[j], dates[i]
	}
	bars := make([]contracts.DailyBar, len(dates))
	for i, day := range dates {
		bars[i] = contracts.DailyBar{Date: day, Open: 100, High: 101, Low: 99, Close: 100, AdjClose: 100, Volume: 1}
	}
	require.NoError(t, repo.UpsertBars(context.Background(), "SPY", bars))

	_, err := calc.Run(context.Background(), rscalc.Input{
		Benchmark: "SPY",
		Weights:   rscalc.DefaultWeightConfig(),
	})
	require.NoError(t, err)
}
