package model

import "time"

// TickerSymbol identifies one security for the duration of a run.
type TickerSymbol string

func (t TickerSymbol) String() string { return string(t) }

// PriceHistoryPoint is one trading day of one ticker.
type PriceHistoryPoint struct {
	Date     time.Time `json:"date"`
	AdjClose float64   `json:"adj_close"`
	Close    float64   `json:"close"`
	Low      float64   `json:"low"`
	High     float64   `json:"high"`
	Volume   float64   `json:"volume"`
}

// DateRange is an inclusive calendar range.
type DateRange struct {
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required,gtefield=Start"`
}

// Contains reports whether t falls inside the range, ignoring time of day.
func (r DateRange) Contains(t time.Time) bool {
	d := truncateDay(t)
	return !d.Before(truncateDay(r.Start)) && !d.After(truncateDay(r.End))
}

// YearBefore returns the trailing one-year window ending on End.
func (r DateRange) YearBefore() DateRange {
	return DateRange{Start: r.End.AddDate(-1, 0, 0), End: r.End}
}

// Lookback returns a window of the given number of years anchored on End.
func (r DateRange) Lookback(years int) DateRange {
	return DateRange{Start: r.End.AddDate(-years, 0, 0), End: r.End}
}

func (r DateRange) String() string {
	return r.Start.Format("2006-01-02") + " - " + r.End.Format("2006-01-02")
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// PortfolioRequest is the input of one run. It is built fresh on every trigger.
type PortfolioRequest struct {
	Tickers []TickerSymbol `json:"tickers" validate:"min=1,dive,required"`
	Range   DateRange      `json:"range"`
}
