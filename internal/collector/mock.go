package collector

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"StockScope/internal/model"
)

// MockProvider returns controllable fixed data for development and testing.
// Tickers without a quote entry are reported as not found. Tickers without a
// history entry get generated bars around the quote's current price.
type MockProvider struct {
	Quotes     map[model.TickerSymbol]*model.RawQuoteInfo
	Statements map[model.TickerSymbol]*model.FinancialStatementSeries
	History    map[model.TickerSymbol][]model.PriceHistoryPoint

	// Per-ticker forced failures by data kind.
	QuoteErr     map[model.TickerSymbol]error
	FinancialErr map[model.TickerSymbol]error
	HistoryErr   map[model.TickerSymbol]error

	mu    sync.Mutex
	calls map[string]int
}

func (m *MockProvider) Name() string { return "mock" }

// Calls returns how many times the given data kind ("quote", "financials",
// "history") was requested.
func (m *MockProvider) Calls(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[kind]
}

func (m *MockProvider) count(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[kind]++
}

func (m *MockProvider) QuoteInfo(ctx context.Context, ticker model.TickerSymbol) (*model.RawQuoteInfo, error) {
	m.count("quote")
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(model.ErrUnavailable, err.Error())
	}
	if err := m.QuoteErr[ticker]; err != nil {
		return nil, err
	}
	q, ok := m.Quotes[ticker]
	if !ok {
		return nil, errors.Wrapf(model.ErrNotFound, "mock quote %s", ticker)
	}
	cp := *q
	return &cp, nil
}

func (m *MockProvider) Financials(ctx context.Context, ticker model.TickerSymbol) (*model.FinancialStatementSeries, error) {
	m.count("financials")
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(model.ErrUnavailable, err.Error())
	}
	if err := m.FinancialErr[ticker]; err != nil {
		return nil, err
	}
	s, ok := m.Statements[ticker]
	if !ok {
		return &model.FinancialStatementSeries{}, nil
	}
	cp := model.FinancialStatementSeries{Periods: append([]model.StatementPeriod(nil), s.Periods...)}
	return &cp, nil
}

func (m *MockProvider) PriceHistory(ctx context.Context, ticker model.TickerSymbol, rng model.DateRange) ([]model.PriceHistoryPoint, error) {
	m.count("history")
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(model.ErrUnavailable, err.Error())
	}
	if err := m.HistoryErr[ticker]; err != nil {
		return nil, err
	}
	if h, ok := m.History[ticker]; ok {
		out := make([]model.PriceHistoryPoint, 0, len(h))
		for _, p := range h {
			if rng.Contains(p.Date) {
				out = append(out, p)
			}
		}
		return out, nil
	}
	base := 100.0
	if q, ok := m.Quotes[ticker]; ok && q.CurrentPrice != nil {
		base = *q.CurrentPrice
	}
	return generateMockBars(base, rng), nil
}

// generateMockBars produces one bar per weekday in rng, drifting towards basePrice.
func generateMockBars(basePrice float64, rng model.DateRange) []model.PriceHistoryPoint {
	var days []model.PriceHistoryPoint
	for d := rng.Start; !d.After(rng.End); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == 0 || wd == 6 {
			continue
		}
		days = append(days, model.PriceHistoryPoint{Date: d})
	}
	count := len(days)
	for i := range days {
		p := basePrice * (1 + float64(i-count+1)*0.001)
		days[i].AdjClose = p
		days[i].Close = p
		days[i].High = p * 1.005
		days[i].Low = p * 0.995
		days[i].Volume = 1000000
	}
	return days
}
