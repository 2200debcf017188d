package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockScope/internal/collector"
	"StockScope/internal/model"
	"StockScope/internal/recorder"
	"StockScope/internal/snapshot"
)

func fixedRange(time.Time) (model.DateRange, error) {
	return model.DateRange{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}, nil
}

func newTestServer(t *testing.T) (*Server, *collector.MockProvider) {
	t.Helper()
	mock := &collector.MockProvider{Quotes: map[model.TickerSymbol]*model.RawQuoteInfo{
		"LLY": {MarketCap: model.Float(554e9), CurrentPrice: model.Float(620), ProfitMargin: model.Float(0.23)},
		"ABT": {MarketCap: model.Float(196e9), CurrentPrice: model.Float(110)},
	}}
	agg := snapshot.NewAggregator(mock, snapshot.Options{Concurrency: 2}, zerolog.Nop())
	s := New(Config{
		Log:      zerolog.Nop(),
		Builder:  agg,
		Defaults: Defaults{Tickers: "LLY, ABT", UpperCase: true, Range: fixedRange},
		DevMode:  true,
	})
	return s, mock
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)
}

func TestDashboard_FormOnly(t *testing.T) {
	s, mock := newTestServer(t)
	rec := get(t, s, "/")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `value="LLY, ABT"`)
	assert.Contains(t, body, `value="2024-01-01"`)
	assert.NotContains(t, body, "Download PDF")
	assert.Zero(t, mock.Calls("quote"), "nothing is fetched before Run")
}

func TestDashboard_Run(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/?tickers=lly,nope&start=2024-01-01&end=2024-01-31&run=1")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<svg")
	assert.Contains(t, body, "Market Cap (B)")
	assert.Contains(t, body, "554.00")
	assert.Contains(t, body, "error fetching data for NOPE")
	assert.Contains(t, body, "/api/report.pdf?")
}

func TestDashboard_BlankTickers(t *testing.T) {
	s, mock := newTestServer(t)
	rec := get(t, s, "/?tickers=+,+&run=1")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "at least one ticker")
	assert.Zero(t, mock.Calls("quote"))
}

func TestDashboard_InvertedRange(t *testing.T) {
	s, mock := newTestServer(t)
	rec := get(t, s, "/?tickers=LLY&start=2024-02-01&end=2024-01-01&run=1")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, mock.Calls("quote"))
}

func TestAPISnapshots(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/api/snapshots?tickers=LLY,NOPE,ABT")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp struct {
		Entries []snapshot.Entry     `json:"entries"`
		Missing []model.TickerSymbol `json:"missing"`
		Table   struct {
			Columns []string `json:"columns"`
		} `json:"table"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, model.TickerSymbol("LLY"), resp.Entries[0].Snapshot.Ticker)
	assert.Equal(t, []model.TickerSymbol{"NOPE"}, resp.Missing)
	assert.Equal(t, []string{"LLY", "ABT"}, resp.Table.Columns)
}

func TestAPISnapshots_ProviderDown(t *testing.T) {
	s, mock := newTestServer(t)
	down := errors.Wrap(model.ErrUnavailable, "dial tcp")
	mock.QuoteErr = map[model.TickerSymbol]error{"LLY": down, "ABT": down}

	rec := get(t, s, "/api/snapshots")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)
}

func TestReportPDF(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/api/report.pdf?tickers=LLY")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "stockscope-2024-01-31.pdf")
	assert.True(t, len(rec.Body.Bytes()) > 5 && string(rec.Body.Bytes()[:5]) == "%PDF-")
}

func TestRunDetail(t *testing.T) {
	mock := &collector.MockProvider{Quotes: map[model.TickerSymbol]*model.RawQuoteInfo{
		"LLY": {MarketCap: model.Float(554e9), CurrentPrice: model.Float(620)},
	}}
	rec, err := recorder.NewSQLRecorder("sqlite", filepath.Join(t.TempDir(), "runs.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rec.Close() })

	s := New(Config{
		Log:      zerolog.Nop(),
		Builder:  snapshot.NewAggregator(mock, snapshot.Options{}, zerolog.Nop()),
		Recorder: rec,
		Defaults: Defaults{Tickers: "LLY", UpperCase: true, Range: fixedRange},
		DevMode:  true,
	})

	created := get(t, s, "/api/snapshots?tickers=LLY,NOPE")
	require.Equal(t, http.StatusOK, created.Code)
	var run struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &run))
	require.NotEmpty(t, run.ID)

	resp := get(t, s, "/api/runs/"+run.ID)
	require.Equal(t, http.StatusOK, resp.Code)
	var detail runDetailResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &detail))
	require.Len(t, detail.Snapshots, 1)
	assert.Equal(t, "LLY", detail.Snapshots[0].Ticker)
	require.NotEmpty(t, detail.Errors)
	assert.Equal(t, "NOPE", detail.Errors[0].Ticker)

	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/runs/unknown").Code)
}

func TestRuns_Noop(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/api/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
