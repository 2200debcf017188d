package recorder

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockScope/internal/model"
	"StockScope/internal/snapshot"
)

func sampleResult(id string, started time.Time) *snapshot.Result {
	return &snapshot.Result{
		ID:       id,
		Provider: "mock",
		Request: model.PortfolioRequest{
			Tickers: []model.TickerSymbol{"LLY", "NOPE", "ABT"},
			Range: model.DateRange{
				Start: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2024, 1, 22, 0, 0, 0, 0, time.UTC),
			},
		},
		Entries: []snapshot.Entry{
			{Index: 0, RelativeSize: 1, Snapshot: model.StockSnapshot{
				Ticker: "LLY", MarketCapBillions: model.Float(554), RevenueGrowthPct: model.Float(20),
				Week52Source: model.RangeSourceProvider,
			}},
			{Index: 2, RelativeSize: 0.35, Snapshot: model.StockSnapshot{Ticker: "ABT"}},
		},
		Errors: []*snapshot.SnapshotError{
			{Ticker: "NOPE", Index: 1, Kind: snapshot.KindLookupFailure, Err: errors.Wrap(model.ErrNotFound, "quote")},
		},
		Notices: []*snapshot.SnapshotError{
			{Ticker: "ABT", Index: 2, Kind: snapshot.KindInsufficientHistory, Field: "revenue_growth_pct", Err: model.ErrInsufficientHistory},
		},
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
	}
}

func TestRows(t *testing.T) {
	run, snaps, errs := Rows(sampleResult("r1", time.Unix(1700000000, 0)), TriggerWeb)

	assert.Equal(t, "LLY,NOPE,ABT", run.Tickers)
	assert.Equal(t, "2023-01-01", run.RangeStart)
	assert.Equal(t, 2, run.OK)
	assert.Equal(t, 1, run.Failed)
	require.Len(t, snaps, 2)
	assert.Equal(t, 2, snaps[1].Position)
	assert.Nil(t, snaps[1].MarketCapBillions)
	require.Len(t, errs, 2)
	assert.True(t, errs[0].Dropped)
	assert.False(t, errs[1].Dropped)
}

func TestSQLRecorder_SQLite(t *testing.T) {
	ctx := context.Background()
	rec, err := NewSQLRecorder("sqlite", filepath.Join(t.TempDir(), "runs.db"), zerolog.Nop())
	require.NoError(t, err)
	defer rec.Close()

	first := time.Unix(1700000000, 0)
	require.NoError(t, rec.RecordRun(ctx, sampleResult("r1", first), TriggerWeb))
	require.NoError(t, rec.RecordRun(ctx, sampleResult("r2", first.Add(time.Hour)), TriggerScheduled))

	runs, err := rec.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r2", runs[0].ID, "newest first")
	assert.Equal(t, TriggerScheduled, runs[0].Trigger)

	snaps, err := rec.SnapshotsForRun(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "LLY", snaps[0].Ticker)
	require.NotNil(t, snaps[0].MarketCapBillions)
	assert.Equal(t, 554.0, *snaps[0].MarketCapBillions)
	assert.Nil(t, snaps[1].MarketCapBillions)

	errs, err := rec.ErrorsForRun(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, errs, 2)
	assert.Equal(t, "NOPE", errs[0].Ticker)
	assert.True(t, errs[0].Dropped)
	assert.Contains(t, errs[0].Message, "error fetching data for NOPE")
}

func TestSQLRecorder_DuplicateRunRollsBack(t *testing.T) {
	ctx := context.Background()
	rec, err := NewSQLRecorder("sqlite", filepath.Join(t.TempDir(), "runs.db"), zerolog.Nop())
	require.NoError(t, err)
	defer rec.Close()

	res := sampleResult("dup", time.Now())
	require.NoError(t, rec.RecordRun(ctx, res, TriggerAPI))
	assert.Error(t, rec.RecordRun(ctx, res, TriggerAPI))

	snaps, err := rec.SnapshotsForRun(ctx, "dup")
	require.NoError(t, err)
	assert.Len(t, snaps, 2, "second attempt left nothing behind")
}

func TestNoopRecorder(t *testing.T) {
	var rec Recorder = NewNoopRecorder()
	assert.NoError(t, rec.RecordRun(context.Background(), sampleResult("x", time.Now()), TriggerWeb))
	runs, err := rec.RecentRuns(context.Background(), 5)
	assert.NoError(t, err)
	assert.Empty(t, runs)
	snaps, err := rec.SnapshotsForRun(context.Background(), "x")
	assert.NoError(t, err)
	assert.Empty(t, snaps)
	assert.NoError(t, rec.Close())
}
