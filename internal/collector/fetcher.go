package collector

import (
	"context"

	"StockScope/internal/model"
)

// Provider defines the interface for fetching market data. Every call is one
// attempt; failures wrap model.ErrNotFound or model.ErrUnavailable.
type Provider interface {
	QuoteInfo(ctx context.Context, ticker model.TickerSymbol) (*model.RawQuoteInfo, error)
	Financials(ctx context.Context, ticker model.TickerSymbol) (*model.FinancialStatementSeries, error)
	PriceHistory(ctx context.Context, ticker model.TickerSymbol, rng model.DateRange) ([]model.PriceHistoryPoint, error)
	Name() string
}
