package calculator

import (
	"StockScope/internal/model"
)

// RevenueGrowth compares the two most recent statement periods and returns
// the previous revenue, the current revenue and the change in percent.
func RevenueGrowth(series *model.FinancialStatementSeries) (prev, cur, pct float64, err error) {
	if series == nil || len(series.Periods) < 2 {
		return 0, 0, 0, model.ErrInsufficientHistory
	}
	c, p := series.Periods[0].TotalRevenue, series.Periods[1].TotalRevenue
	if c == nil || p == nil || *p == 0 {
		return 0, 0, 0, model.ErrInsufficientHistory
	}
	return *p, *c, (*c - *p) / *p * 100, nil
}

// Direction maps a growth percentage to its display direction.
func Direction(pct float64) model.GrowthDirection {
	if pct < 0 {
		return model.DirectionDecline
	}
	return model.DirectionGrowth
}
