package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockScope/internal/model"
	"StockScope/internal/recorder"
	"StockScope/internal/render"
	"StockScope/internal/snapshot"
)

func sampleReport() *render.Report {
	res := &snapshot.Result{
		ID: "run-1",
		Request: model.PortfolioRequest{
			Tickers: []model.TickerSymbol{"LLY", "NOPE"},
			Range: model.DateRange{
				Start: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2024, 1, 22, 0, 0, 0, 0, time.UTC),
			},
		},
		Entries: []snapshot.Entry{{
			Index:        0,
			RelativeSize: 1,
			Snapshot: model.StockSnapshot{
				Ticker:            "LLY",
				MarketCapBillions: model.Float(554),
				ProfitMargin:      model.Float(0.23),
				CurrentPrice:      model.Float(620.5),
				PERatio:           model.Float(110.4),
				PreviousRevenue:   model.Float(28.5e9),
				CurrentRevenue:    model.Float(34.1e9),
				RevenueGrowthPct:  model.Float(19.6),
				GrowthDirection:   model.DirectionGrowth,
			},
			History: []model.PriceHistoryPoint{
				{Date: time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC), AdjClose: 500},
				{Date: time.Date(2024, 1, 22, 0, 0, 0, 0, time.UTC), AdjClose: 600},
			},
		}},
		Errors: []*snapshot.SnapshotError{
			{Ticker: "NOPE", Index: 1, Kind: snapshot.KindLookupFailure, Err: errors.Wrap(model.ErrNotFound, "<quote>")},
		},
	}
	return render.BuildReport(res, render.Options{})
}

func TestFormatSnapshotReport(t *testing.T) {
	msg := FormatSnapshotReport(sampleReport())

	assert.Contains(t, msg, "<b>LLY</b> 620.50 (+20.0%)")
	assert.Contains(t, msg, "554.00B")
	assert.Contains(t, msg, "PE 110.40")
	assert.Contains(t, msg, "利润率 23.00%")
	assert.Contains(t, msg, "+19.60%")
	assert.Contains(t, msg, "🟢")
	assert.Contains(t, msg, "error fetching data for NOPE")
	assert.Contains(t, msg, "&lt;quote&gt;", "provider text is escaped")
	assert.NotContains(t, msg, "<quote>")
}

func TestFormatRecentRuns(t *testing.T) {
	assert.Equal(t, "暂无运行记录", FormatRecentRuns(nil))
	msg := FormatRecentRuns([]recorder.RunRecord{{Trigger: "web", Tickers: "LLY,ABT", StartedAt: time.Now().Add(-2 * time.Hour).Unix(), OK: 2}})
	assert.Contains(t, msg, "2 hours ago")
	assert.Contains(t, msg, "LLY,ABT")
}

func TestFormatHelp(t *testing.T) {
	assert.Contains(t, FormatHelp("LLY, ABT"), "/snapshot")
	assert.Contains(t, FormatHelp("LLY, ABT"), "LLY, ABT")
}

type fakeBot struct {
	mu       sync.Mutex
	sent     []string
	failures int
	updates  string
}

func (f *fakeBot) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch {
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			if f.failures > 0 {
				f.failures--
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			var payload map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "HTML", payload["parse_mode"])
			f.sent = append(f.sent, payload["text"].(string))
			_, _ = w.Write([]byte(`{"ok":true}`))
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			body := f.updates
			f.updates = `{"ok":true,"result":[]}`
			_, _ = w.Write([]byte(body))
		}
	}
}

func newTestNotifier(t *testing.T, bot *fakeBot) *TelegramNotifier {
	srv := httptest.NewServer(bot.handler(t))
	t.Cleanup(srv.Close)
	n := NewTelegramNotifier("token", "42", "", zerolog.Nop())
	n.APIBase = srv.URL
	return n
}

func TestSendWithRetry(t *testing.T) {
	bot := &fakeBot{failures: 1}
	n := newTestNotifier(t, bot)

	require.NoError(t, n.SendWithRetry(context.Background(), "hello", 2))
	assert.Equal(t, []string{"hello"}, bot.sent)
}

func TestSendWithRetry_Cancelled(t *testing.T) {
	bot := &fakeBot{failures: 10}
	n := newTestNotifier(t, bot)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, n.SendWithRetry(ctx, "hello", 3), context.Canceled)
}

func TestStartPolling(t *testing.T) {
	bot := &fakeBot{updates: `{"ok":true,"result":[
		{"update_id":7,"message":{"text":" /help ","chat":{"id":42}}},
		{"update_id":8,"message":{"text":"/help","chat":{"id":99}}}
	]}`}
	n := newTestNotifier(t, bot)

	ctx, cancel := context.WithCancel(context.Background())
	var got []string
	done := make(chan struct{})
	go func() {
		n.StartPolling(ctx, func(_ context.Context, cmd string) string {
			got = append(got, cmd)
			cancel()
			return "reply"
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("polling did not stop")
	}
	assert.Equal(t, []string{"/help"}, got, "only the configured chat is served")
	bot.mu.Lock()
	defer bot.mu.Unlock()
	assert.Equal(t, []string{"reply"}, bot.sent)
}
