package snapshot

import (
	"strconv"
	"time"

	"StockScope/internal/calculator"
	"StockScope/internal/model"
)

// Placeholder stands in for any absent value in tabular output.
const Placeholder = "-"

// Derive builds the snapshot for one ticker. yearHistory is the price series
// used when the provider does not report a 52-week range; fin may be nil when
// the statement lookup failed. Notices come back for derived fields that
// could not be computed.
func Derive(ticker model.TickerSymbol, info *model.RawQuoteInfo, fin *model.FinancialStatementSeries,
	yearHistory []model.PriceHistoryPoint, end time.Time) (model.StockSnapshot, []*SnapshotError) {

	snap := model.StockSnapshot{
		Ticker:         ticker,
		Name:           info.Name,
		ProfitMargin:   info.ProfitMargin,
		ROA:            info.ReturnOnAssets,
		ROE:            info.ReturnOnEquity,
		PERatio:        info.TrailingPE,
		PEGRatio:       info.PEGRatio,
		Beta:           info.Beta,
		DividendYield:  info.DividendYield,
		TrailingEPS:    info.TrailingEPS,
		ForwardEPS:     info.ForwardEPS,
		CurrentPrice:   info.CurrentPrice,
		RevenueGrowth:  info.RevenueGrowth,
		EarningsGrowth: info.EarningsGrowth,
	}
	if info.MarketCap != nil {
		snap.MarketCapBillions = model.Float(*info.MarketCap / 1e9)
	}

	// Provider metadata wins per side; history only fills a missing side.
	snap.Week52Low, snap.Week52High = info.Week52Low, info.Week52High
	if snap.Week52Low != nil || snap.Week52High != nil {
		snap.Week52Source = model.RangeSourceProvider
	}
	if snap.Week52Low == nil || snap.Week52High == nil {
		if low, high, err := calculator.Calculate52WeekRange(yearHistory, end); err == nil {
			if snap.Week52Low == nil {
				snap.Week52Low = model.Float(low)
			}
			if snap.Week52High == nil {
				snap.Week52High = model.Float(high)
			}
			snap.Week52Source = model.RangeSourceHistory
		}
	}
	snap.Week52RangeDisplay = FormatRange(snap.Week52Low, snap.Week52High)

	var notices []*SnapshotError
	if fin != nil {
		prev, cur, pct, err := calculator.RevenueGrowth(fin)
		if err != nil {
			notices = append(notices, &SnapshotError{
				Ticker: ticker,
				Kind:   KindInsufficientHistory,
				Field:  "revenue_growth_pct",
				Err:    err,
			})
		} else {
			snap.PreviousRevenue = model.Float(prev)
			snap.CurrentRevenue = model.Float(cur)
			snap.RevenueGrowthPct = model.Float(pct)
			snap.GrowthDirection = calculator.Direction(pct)
		}
	}
	return snap, notices
}

// FormatNumber renders v in its shortest exact form, or the placeholder.
func FormatNumber(v *float64) string {
	if v == nil {
		return Placeholder
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// FormatRange renders "low - high". An absent side shows the placeholder; a
// range with neither side is the placeholder alone.
func FormatRange(low, high *float64) string {
	if low == nil && high == nil {
		return Placeholder
	}
	return FormatNumber(low) + " - " + FormatNumber(high)
}
