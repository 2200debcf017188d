package render

import (
	"fmt"

	"StockScope/internal/calculator"
	"StockScope/internal/model"
	"StockScope/internal/snapshot"
)

const (
	ColorGrowth  = "#2e7d32"
	ColorDecline = "#c62828"
	ColorNeutral = "#757575"
)

// Panel is the per-ticker infographic. All numeric fields here drive
// geometry and are zero-floored; labels keep the placeholder.
type Panel struct {
	Ticker  model.TickerSymbol `json:"ticker"`
	Name    string             `json:"name,omitempty"`
	Bubble  Bubble             `json:"bubble"`
	Bars    []Bar              `json:"bars"`
	Revenue RevenueComparison  `json:"revenue"`
	Range   RangeStrip         `json:"range"`
}

// Bubble is the market-cap circle, sized relative to the batch maximum.
type Bubble struct {
	RelativeSize float64 `json:"relative_size"`
	Label        string  `json:"label"`
}

// Bar is one horizontal percentage bar.
type Bar struct {
	Label   string  `json:"label"`
	Percent float64 `json:"percent"`
	Text    string  `json:"text"`
}

// RevenueComparison is the previous vs current revenue pair.
type RevenueComparison struct {
	Available  bool    `json:"available"`
	Previous   float64 `json:"previous"`
	Current    float64 `json:"current"`
	Annotation string  `json:"annotation"`
	Color      string  `json:"color"`
}

// RangeStrip is the 52-week line with a marker at the current price.
type RangeStrip struct {
	Available    bool    `json:"available"`
	Low          float64 `json:"low"`
	High         float64 `json:"high"`
	Current      float64 `json:"current"`
	Position     float64 `json:"position"`
	LowLabel     string  `json:"low_label"`
	HighLabel    string  `json:"high_label"`
	CurrentLabel string  `json:"current_label"`
}

// BuildPanels creates one panel per entry, in entry order.
func BuildPanels(entries []snapshot.Entry) []Panel {
	panels := make([]Panel, 0, len(entries))
	for _, e := range entries {
		panels = append(panels, buildPanel(e))
	}
	return panels
}

func buildPanel(e snapshot.Entry) Panel {
	s := e.Snapshot
	p := Panel{
		Ticker: s.Ticker,
		Name:   s.Name,
		Bubble: Bubble{RelativeSize: e.RelativeSize, Label: billionsLabel(s.MarketCapBillions)},
		Bars: []Bar{
			percentBar("Profit Margin", s.ProfitMargin),
			percentBar("ROA", s.ROA),
			percentBar("ROE", s.ROE),
		},
		Revenue: revenueComparison(s),
		Range:   rangeStrip(s),
	}
	return p
}

func billionsLabel(v *float64) string {
	if v == nil {
		return snapshot.Placeholder
	}
	return fmt.Sprintf("%.2fB", *v)
}

func percentBar(label string, frac *float64) Bar {
	return Bar{Label: label, Percent: floorZero(frac) * 100, Text: FormatPercent(frac, true)}
}

func revenueComparison(s model.StockSnapshot) RevenueComparison {
	if s.RevenueGrowthPct == nil {
		return RevenueComparison{Annotation: "n/a", Color: ColorNeutral}
	}
	rc := RevenueComparison{
		Available:  true,
		Previous:   floorZero(s.PreviousRevenue),
		Current:    floorZero(s.CurrentRevenue),
		Annotation: fmt.Sprintf("%+.2f%%", *s.RevenueGrowthPct),
		Color:      ColorGrowth,
	}
	if s.GrowthDirection == model.DirectionDecline {
		rc.Color = ColorDecline
	}
	return rc
}

func rangeStrip(s model.StockSnapshot) RangeStrip {
	rs := RangeStrip{
		Low:          floorZero(s.Week52Low),
		High:         floorZero(s.Week52High),
		Current:      floorZero(s.CurrentPrice),
		LowLabel:     FormatFixed(s.Week52Low),
		HighLabel:    FormatFixed(s.Week52High),
		CurrentLabel: FormatFixed(s.CurrentPrice),
	}
	if s.Week52Low == nil || s.Week52High == nil {
		return rs
	}
	pos, err := calculator.Calculate52WeekPosition(rs.Current, rs.High, rs.Low)
	if err != nil {
		return rs
	}
	rs.Available = true
	rs.Position = pos
	return rs
}

func floorZero(v *float64) float64 {
	if v == nil || *v <= 0 {
		return 0
	}
	return *v
}
