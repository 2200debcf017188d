package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockScope/internal/collector"
	"StockScope/internal/model"
	"StockScope/internal/recorder"
	"StockScope/internal/render"
	"StockScope/internal/snapshot"
)

type captureSender struct {
	mu   sync.Mutex
	msgs []string
}

func (c *captureSender) SendWithRetry(_ context.Context, text string, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, text)
	return nil
}

type memRecorder struct {
	recorder.NoopRecorder
	runs []recorder.RunRecord
}

func (m *memRecorder) RecordRun(_ context.Context, res *snapshot.Result, trigger string) error {
	run, _, _ := recorder.Rows(res, trigger)
	m.runs = append(m.runs, run)
	return nil
}

func (m *memRecorder) RecentRuns(_ context.Context, _ int) ([]recorder.RunRecord, error) {
	return m.runs, nil
}

func fixedRange(time.Time) (model.DateRange, error) {
	return model.DateRange{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}, nil
}

func newTestScheduler(t *testing.T) (*Scheduler, *collector.MockProvider, *captureSender, *memRecorder) {
	t.Helper()
	mock := &collector.MockProvider{Quotes: map[model.TickerSymbol]*model.RawQuoteInfo{
		"LLY": {MarketCap: model.Float(554e9), CurrentPrice: model.Float(620)},
		"ABT": {MarketCap: model.Float(196e9), CurrentPrice: model.Float(110)},
	}}
	agg := snapshot.NewAggregator(mock, snapshot.Options{Concurrency: 2}, zerolog.Nop())
	sender := &captureSender{}
	rec := &memRecorder{}
	wl := Watchlist{Tickers: "lly, abt", UpperCase: true, Range: fixedRange}
	s := NewScheduler(context.Background(), agg, sender, rec, wl, render.Options{}, zerolog.Nop())
	return s, mock, sender, rec
}

func TestRunNow(t *testing.T) {
	s, _, sender, rec := newTestScheduler(t)
	s.RunNow()

	require.Len(t, sender.msgs, 1)
	assert.Contains(t, sender.msgs[0], "<b>LLY</b>")
	assert.Contains(t, sender.msgs[0], "<b>ABT</b>")
	require.Len(t, rec.runs, 1)
	assert.Equal(t, recorder.TriggerScheduled, rec.runs[0].Trigger)
	assert.Equal(t, "LLY,ABT", rec.runs[0].Tickers)
}

func TestRunNow_ProviderDown(t *testing.T) {
	s, mock, sender, rec := newTestScheduler(t)
	down := errors.Wrap(model.ErrUnavailable, "dial tcp")
	mock.QuoteErr = map[model.TickerSymbol]error{"LLY": down, "ABT": down}
	s.RunNow()

	require.Len(t, sender.msgs, 1)
	assert.Contains(t, sender.msgs[0], "快照生成失败")
	assert.Empty(t, rec.runs)
}

type failingBuilder struct{ err error }

func (f failingBuilder) BuildSnapshots(context.Context, model.PortfolioRequest) (*snapshot.Result, error) {
	return nil, f.err
}

func TestFailureMessagesAreEscaped(t *testing.T) {
	s, _, sender, _ := newTestScheduler(t)
	s.Builder = failingBuilder{err: errors.Wrap(model.ErrProviderUnavailable,
		"status 503, body: <html><body>Service Unavailable</body></html>")}

	reply := s.HandleCommand(context.Background(), "/snapshot LLY")
	assert.Contains(t, reply, "快照生成失败")
	assert.NotContains(t, reply, "<html>")
	assert.Contains(t, reply, "&lt;html&gt;&lt;body&gt;Service Unavailable")

	s.RunNow()
	require.Len(t, sender.msgs, 1)
	assert.NotContains(t, sender.msgs[0], "<body>")
	assert.Contains(t, sender.msgs[0], "&lt;/html&gt;")
}

func TestHandleCommand(t *testing.T) {
	s, mock, _, rec := newTestScheduler(t)
	ctx := context.Background()

	reply := s.HandleCommand(ctx, "/snapshot@stockscope_bot lly, nope")
	assert.Contains(t, reply, "<b>LLY</b>")
	assert.Contains(t, reply, "error fetching data for NOPE")
	require.Len(t, rec.runs, 1)
	assert.Equal(t, recorder.TriggerCommand, rec.runs[0].Trigger)

	before := mock.Calls("quote")
	reply = s.HandleCommand(ctx, "/snapshot  ,  ,")
	assert.Contains(t, reply, "/snapshot LLY, ABT")
	assert.Equal(t, before, mock.Calls("quote"), "malformed input fetches nothing")

	reply = s.HandleCommand(ctx, "/snapshot")
	assert.Contains(t, reply, "<b>ABT</b>", "falls back to the watchlist")

	reply = s.HandleCommand(ctx, "/runs")
	assert.Contains(t, reply, "LLY,NOPE")

	assert.Contains(t, s.HandleCommand(ctx, "/help"), "/snapshot")
	assert.Contains(t, s.HandleCommand(ctx, "hello"), "可用命令")
}

func TestRegister(t *testing.T) {
	s, _, _, _ := newTestScheduler(t)
	require.NoError(t, s.Register(""))
	assert.Empty(t, s.Cron.Entries())

	require.NoError(t, s.Register("0 30 22 * * 1-5"))
	assert.Len(t, s.Cron.Entries(), 1)

	assert.Error(t, s.Register("not a cron"))
}
