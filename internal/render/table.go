package render

import (
	"fmt"

	"StockScope/internal/model"
	"StockScope/internal/snapshot"
)

// Table is the transposed snapshot table: one row per field, one column per
// ticker occurrence.
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Row is one field across all tickers.
type Row struct {
	Label string   `json:"label"`
	Cells []string `json:"cells"`
}

type valueKind int

const (
	plain    valueKind = iota // %.2f
	fraction                  // stored as 0.23, shown as 23.00%
	percent                   // already in percent
	verbatim                  // preformatted string
)

type field struct {
	label string
	kind  valueKind
	num   func(*model.StockSnapshot) *float64
	text  func(*model.StockSnapshot) string
}

var tableFields = []field{
	{label: "Market Cap (B)", kind: plain, num: func(s *model.StockSnapshot) *float64 { return s.MarketCapBillions }},
	{label: "Sales", kind: percent, num: func(s *model.StockSnapshot) *float64 { return s.RevenueGrowthPct }},
	{label: "Profit Margin", kind: fraction, num: func(s *model.StockSnapshot) *float64 { return s.ProfitMargin }},
	{label: "ROA", kind: fraction, num: func(s *model.StockSnapshot) *float64 { return s.ROA }},
	{label: "ROE", kind: fraction, num: func(s *model.StockSnapshot) *float64 { return s.ROE }},
	{label: "Trailing EPS", kind: plain, num: func(s *model.StockSnapshot) *float64 { return s.TrailingEPS }},
	{label: "Forward EPS", kind: plain, num: func(s *model.StockSnapshot) *float64 { return s.ForwardEPS }},
	{label: "52W Range", kind: verbatim, text: func(s *model.StockSnapshot) string { return s.Week52RangeDisplay }},
	{label: "PE", kind: plain, num: func(s *model.StockSnapshot) *float64 { return s.PERatio }},
	{label: "PEG Ratio", kind: plain, num: func(s *model.StockSnapshot) *float64 { return s.PEGRatio }},
	{label: "Beta", kind: plain, num: func(s *model.StockSnapshot) *float64 { return s.Beta }},
	{label: "Div Yield", kind: fraction, num: func(s *model.StockSnapshot) *float64 { return s.DividendYield }},
	{label: "Price", kind: plain, num: func(s *model.StockSnapshot) *float64 { return s.CurrentPrice }},
	{label: "Revenue Growth", kind: fraction, num: func(s *model.StockSnapshot) *float64 { return s.RevenueGrowth }},
	{label: "Earnings Growth", kind: fraction, num: func(s *model.StockSnapshot) *float64 { return s.EarningsGrowth }},
}

// BuildTable transposes the entries into field rows. Every cell is filled;
// absent values become the placeholder.
func BuildTable(entries []snapshot.Entry) Table {
	t := Table{Columns: make([]string, len(entries)), Rows: make([]Row, len(tableFields))}
	for i, e := range entries {
		t.Columns[i] = e.Snapshot.Ticker.String()
	}
	for r, f := range tableFields {
		row := Row{Label: f.label, Cells: make([]string, len(entries))}
		for i := range entries {
			row.Cells[i] = f.format(&entries[i].Snapshot)
		}
		t.Rows[r] = row
	}
	return t
}

func (f field) format(s *model.StockSnapshot) string {
	switch f.kind {
	case verbatim:
		if v := f.text(s); v != "" {
			return v
		}
		return snapshot.Placeholder
	case fraction:
		return FormatPercent(f.num(s), true)
	case percent:
		return FormatPercent(f.num(s), false)
	}
	return FormatFixed(f.num(s))
}

// FormatFixed renders v with two decimals, or the placeholder.
func FormatFixed(v *float64) string {
	if v == nil {
		return snapshot.Placeholder
	}
	return fmt.Sprintf("%.2f", *v)
}

// FormatPercent renders v as a percentage. Fractions are scaled by 100 here
// and nowhere else.
func FormatPercent(v *float64, isFraction bool) string {
	if v == nil {
		return snapshot.Placeholder
	}
	p := *v
	if isFraction {
		p *= 100
	}
	return fmt.Sprintf("%.2f%%", p)
}
