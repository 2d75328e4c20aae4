package registry

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rstrack/rstrack/internal/contracts"
	"github.com/rstrack/rstrack/pkg/logger"
)

type fakeClassifier struct {
	profiles map[string][2]string
	fail     map[string]bool
	calls    []string
}

func (f *fakeClassifier) FetchProfile(_ context.Context, symbol string) (string, string, error) {
	f.calls = append(f.calls, symbol)
	if f.fail[symbol] {
		return "", "", errors.New("profile unavailable")
	}
	p, ok := f.profiles[symbol]
	if !ok {
		return "Unknown", "Unknown", nil
	}
	return p[0], p[1], nil
}

func TestRegistry_ImportCSV(t *testing.T) {
	repo := NewMemoryInstrumentRepository()
	reg := New(repo, nil, logger.NewNop())

	csv := strings.Join([]string{
		"Name,Ticker,Exchange",
		"Apple,aapl,NASDAQ",
		"Microsoft, MSFT ,NASDAQ",
		"Berkshire,BRK.B,NYSE",
		"Duplicate,AAPL,NASDAQ",
		"Placeholder,N/A,NYSE",
		"Blank,,NYSE",
		"TooLong,VERYLONGTICKER,NYSE",
		"BadChars,ab$cd,NYSE",
	}, "\n")

	res, err := reg.ImportCSV(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, 3, res.Added)
	assert.Equal(t, 0, res.Existing)
	assert.Equal(t, []string{"VERYLONGTICKER", "AB$CD"}, res.Skipped)

	active, err := reg.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, "AAPL", active[0].Symbol)
	assert.Equal(t, "BRK.B", active[1].Symbol)
	assert.Equal(t, "MSFT", active[2].Symbol)
}

func TestRegistry_ImportCSV_NoTickerColumn(t *testing.T) {
	reg := New(NewMemoryInstrumentRepository(), nil, logger.NewNop())

	_, err := reg.ImportCSV(context.Background(), strings.NewReader("Name,Exchange\nApple,NASDAQ\n"))
	assert.Error(t, err)

	_, err = reg.ImportCSV(context.Background(), strings.NewReader(""))
	assert.Error(t, err)
}

func TestRegistry_ImportCSV_PreservesClassificationAndReactivates(t *testing.T) {
	repo := NewMemoryInstrumentRepository()
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, contracts.Instrument{
		Symbol: "AAPL", Sector: "Technology", Industry: "Hardware", Active: true,
	}))
	require.NoError(t, repo.Upsert(ctx, contracts.Instrument{
		Symbol: "GE", Sector: "Industrials", Industry: "Conglomerates", Active: false,
	}))

	reg := New(repo, nil, logger.NewNop())
	res, err := reg.ImportCSV(ctx, strings.NewReader("symbol\nAAPL\nGE\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Added)
	assert.Equal(t, 1, res.Existing)
	assert.Equal(t, 1, res.Reactivated)

	aapl, ok, err := repo.GetBySymbol(ctx, "AAPL")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Technology", aapl.Sector, "re-import must not wipe classification")

	ge, ok, err := repo.GetBySymbol(ctx, "GE")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, ge.Active)
	assert.Equal(t, "Industrials", ge.Sector)
}

func TestRegistry_EnrichClassifications(t *testing.T) {
	repo := NewMemoryInstrumentRepository()
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, contracts.Instrument{Symbol: "AAPL", Active: true}))
	require.NoError(t, repo.Upsert(ctx, contracts.Instrument{Symbol: "FAIL", Active: true}))
	require.NoError(t, repo.Upsert(ctx, contracts.Instrument{
		Symbol: "MSFT", Sector: "Technology", Industry: "Software", Active: true,
	}))

	classifier := &fakeClassifier{
		profiles: map[string][2]string{"AAPL": {"Technology", "Consumer Electronics"}},
		fail:     map[string]bool{"FAIL": true},
	}
	reg := New(repo, classifier, logger.NewNop())

	enriched, err := reg.EnrichClassifications(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, enriched)
	assert.NotContains(t, classifier.calls, "MSFT", "classified instruments are not re-fetched")

	aapl, _, err := repo.GetBySymbol(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Technology", aapl.Sector)
	assert.Equal(t, "Consumer Electronics", aapl.Industry)

	fail, _, err := repo.GetBySymbol(ctx, "FAIL")
	require.NoError(t, err)
	assert.False(t, fail.Classified(), "lookup failure leaves the instrument unclassified")
}

func TestRegistry_Deactivate(t *testing.T) {
	repo := NewMemoryInstrumentRepository()
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, contracts.Instrument{Symbol: "AAPL", Active: true}))

	reg := New(repo, nil, logger.NewNop())
	require.NoError(t, reg.Deactivate(ctx, "aapl"))

	active, err := reg.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	inst, ok, err := repo.GetBySymbol(ctx, "AAPL")
	require.NoError(t, err)
	require.True(t, ok, "deactivation never deletes")
	assert.False(t, inst.Active)

	assert.Error(t, reg.Deactivate(ctx, "not a ticker"))
}
