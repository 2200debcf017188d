package render

import (
	"time"

	"StockScope/internal/calculator"
	"StockScope/internal/model"
	"StockScope/internal/snapshot"
)

// Options controls report assembly.
type Options struct {
	Title     string
	SMAWindow int // 0 disables the moving-average overlay
}

const DefaultTitle = "Portfolio Management - Stock Comparative Analysis"

// ChartPoint is one plotted value.
type ChartPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Series is one ticker's adjusted-close line.
type Series struct {
	Ticker model.TickerSymbol `json:"ticker"`
	Points []ChartPoint       `json:"points"`
	SMA    []ChartPoint       `json:"sma,omitempty"`
}

// Chart is the price performance chart over the requested range. An empty
// Series slice is a valid, empty chart.
type Chart struct {
	Range  model.DateRange `json:"range"`
	Series []Series        `json:"series"`
}

// Empty reports whether there is nothing to plot.
func (c Chart) Empty() bool {
	for _, s := range c.Series {
		if len(s.Points) > 0 {
			return false
		}
	}
	return true
}

// Notice is a user-facing message about one ticker.
type Notice struct {
	Ticker  model.TickerSymbol `json:"ticker"`
	Kind    string             `json:"kind"`
	Message string             `json:"message"`
	Dropped bool               `json:"dropped"`
}

// Report is everything a renderer needs for one run.
type Report struct {
	Title       string                 `json:"title"`
	RunID       string                 `json:"run_id"`
	GeneratedAt time.Time              `json:"generated_at"`
	Request     model.PortfolioRequest `json:"request"`
	Chart       Chart                  `json:"chart"`
	Table       Table                  `json:"table"`
	Panels      []Panel                `json:"panels"`
	Notices     []Notice               `json:"notices"`
}

// BuildReport lays out a snapshot result for display. Errors come first in
// the notices, followed by field-level notices, both in request order.
func BuildReport(res *snapshot.Result, opts Options) *Report {
	title := opts.Title
	if title == "" {
		title = DefaultTitle
	}
	r := &Report{
		Title:       title,
		RunID:       res.ID,
		GeneratedAt: res.FinishedAt,
		Request:     res.Request,
		Chart:       buildChart(res, opts.SMAWindow),
		Table:       BuildTable(res.Entries),
		Panels:      BuildPanels(res.Entries),
		Notices:     make([]Notice, 0, len(res.Errors)+len(res.Notices)),
	}
	for _, e := range res.Errors {
		r.Notices = append(r.Notices, Notice{Ticker: e.Ticker, Kind: string(e.Kind), Message: e.Message(), Dropped: true})
	}
	for _, n := range res.Notices {
		r.Notices = append(r.Notices, Notice{Ticker: n.Ticker, Kind: string(n.Kind), Message: n.Message()})
	}
	return r
}

func buildChart(res *snapshot.Result, smaWindow int) Chart {
	c := Chart{Range: res.Request.Range, Series: make([]Series, 0, len(res.Entries))}
	seen := make(map[model.TickerSymbol]bool, len(res.Entries))
	for _, e := range res.Entries {
		// one line per symbol, duplicates would overdraw
		if seen[e.Snapshot.Ticker] {
			continue
		}
		seen[e.Snapshot.Ticker] = true

		s := Series{Ticker: e.Snapshot.Ticker, Points: make([]ChartPoint, len(e.History))}
		for i, p := range e.History {
			s.Points[i] = ChartPoint{Date: p.Date, Value: p.AdjClose}
		}
		if smaWindow > 0 {
			if ma, err := calculator.MovingAverage(e.History, smaWindow); err == nil {
				s.SMA = make([]ChartPoint, len(ma))
				for i, m := range ma {
					s.SMA[i] = ChartPoint{Date: m.Date, Value: m.Value}
				}
			}
		}
		c.Series = append(c.Series, s)
	}
	return c
}
