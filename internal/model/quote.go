package model

import "time"

// RawQuoteInfo holds the provider's metadata for one ticker. A nil field means
// the provider did not report it.
type RawQuoteInfo struct {
	Symbol         string
	Name           string
	Currency       string
	MarketCap      *float64
	TrailingEPS    *float64
	ForwardEPS     *float64
	TrailingPE     *float64
	PEGRatio       *float64
	Beta           *float64
	DividendYield  *float64
	ProfitMargin   *float64
	ReturnOnAssets *float64
	ReturnOnEquity *float64
	Week52Low      *float64
	Week52High     *float64
	CurrentPrice   *float64
	RevenueGrowth  *float64
	EarningsGrowth *float64
}

// StatementPeriod is one reporting period of an income statement.
type StatementPeriod struct {
	EndDate      time.Time
	TotalRevenue *float64
}

// FinancialStatementSeries lists statement periods, most recent first.
type FinancialStatementSeries struct {
	Periods []StatementPeriod
}

// Float returns a pointer to a copy of v.
func Float(v float64) *float64 { return &v }

// FloatOr dereferences p, returning def when p is nil.
func FloatOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
