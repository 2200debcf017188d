package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockScope/internal/model"
	"StockScope/internal/snapshot"
)

func day(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

func sampleResult() *snapshot.Result {
	lly := model.StockSnapshot{
		Ticker:             "LLY",
		MarketCapBillions:  model.Float(554),
		ProfitMargin:       model.Float(0.23),
		ROA:                model.Float(-0.02),
		CurrentPrice:       model.Float(620.5),
		Week52Low:          model.Float(309.2),
		Week52High:         model.Float(629.97),
		Week52RangeDisplay: "309.2 - 629.97",
		PreviousRevenue:    model.Float(100),
		CurrentRevenue:     model.Float(120),
		RevenueGrowthPct:   model.Float(20),
		GrowthDirection:    model.DirectionGrowth,
	}
	mrna := model.StockSnapshot{
		Ticker:             "MRNA",
		MarketCapBillions:  model.Float(38),
		PreviousRevenue:    model.Float(100),
		CurrentRevenue:     model.Float(80),
		RevenueGrowthPct:   model.Float(-20),
		GrowthDirection:    model.DirectionDecline,
		Week52RangeDisplay: snapshot.Placeholder,
	}
	return &snapshot.Result{
		ID: "run-1",
		Request: model.PortfolioRequest{
			Tickers: []model.TickerSymbol{"LLY", "NOPE", "MRNA"},
			Range:   model.DateRange{Start: day(1), End: day(31)},
		},
		Entries: []snapshot.Entry{
			{Index: 0, Snapshot: lly, RelativeSize: 1, History: []model.PriceHistoryPoint{
				{Date: day(2), AdjClose: 600}, {Date: day(3), AdjClose: 610}, {Date: day(4), AdjClose: 620},
			}},
			{Index: 2, Snapshot: mrna, RelativeSize: 38.0 / 554.0, History: []model.PriceHistoryPoint{}},
		},
		Errors: []*snapshot.SnapshotError{
			{Ticker: "NOPE", Index: 1, Kind: snapshot.KindLookupFailure, Err: errors.Wrap(model.ErrNotFound, "quote")},
		},
		Notices: []*snapshot.SnapshotError{
			{Ticker: "MRNA", Index: 2, Kind: snapshot.KindEmptyHistory, Field: "history", Err: errors.New("no trading days")},
		},
		FinishedAt: day(31),
	}
}

func row(t *testing.T, tbl Table, label string) Row {
	t.Helper()
	for _, r := range tbl.Rows {
		if r.Label == label {
			return r
		}
	}
	t.Fatalf("row %q not found", label)
	return Row{}
}

func TestBuildTable(t *testing.T) {
	tbl := BuildTable(sampleResult().Entries)

	assert.Equal(t, []string{"LLY", "MRNA"}, tbl.Columns)
	assert.Len(t, tbl.Rows, 15)
	assert.Equal(t, []string{"554.00", "38.00"}, row(t, tbl, "Market Cap (B)").Cells)
	assert.Equal(t, []string{"23.00%", "-"}, row(t, tbl, "Profit Margin").Cells)
	assert.Equal(t, []string{"20.00%", "-20.00%"}, row(t, tbl, "Sales").Cells, "already in percent, not rescaled")
	assert.Equal(t, []string{"309.2 - 629.97", "-"}, row(t, tbl, "52W Range").Cells)
	assert.Equal(t, []string{"620.50", "-"}, row(t, tbl, "Price").Cells)

	for _, r := range tbl.Rows {
		for _, c := range r.Cells {
			assert.NotEmpty(t, c, "row %s", r.Label)
		}
	}
}

func TestFormatPercent_ScalesOnce(t *testing.T) {
	assert.Equal(t, "23.00%", FormatPercent(model.Float(0.23), true))
	assert.Equal(t, "23.00%", FormatPercent(model.Float(23), false))
	assert.Equal(t, "-", FormatPercent(nil, true))
	assert.Equal(t, "-", FormatFixed(nil))
	assert.Equal(t, "0.00", FormatFixed(model.Float(0)))
}

func TestBuildPanels(t *testing.T) {
	panels := BuildPanels(sampleResult().Entries)
	require.Len(t, panels, 2)

	lly := panels[0]
	assert.Equal(t, 1.0, lly.Bubble.RelativeSize)
	assert.Equal(t, "554.00B", lly.Bubble.Label)
	assert.InDelta(t, 23.0, lly.Bars[0].Percent, 1e-9)
	assert.Equal(t, 0.0, lly.Bars[1].Percent, "negative ROA floors to zero")
	assert.Equal(t, "-2.00%", lly.Bars[1].Text, "label keeps the real value")
	assert.Equal(t, 0.0, lly.Bars[2].Percent, "absent ROE floors to zero")
	assert.Equal(t, "-", lly.Bars[2].Text)

	assert.True(t, lly.Revenue.Available)
	assert.Equal(t, "+20.00%", lly.Revenue.Annotation)
	assert.Equal(t, ColorGrowth, lly.Revenue.Color)

	assert.True(t, lly.Range.Available)
	assert.InDelta(t, (620.5-309.2)/(629.97-309.2), lly.Range.Position, 1e-9)

	mrna := panels[1]
	assert.Equal(t, ColorDecline, mrna.Revenue.Color)
	assert.Equal(t, "-20.00%", mrna.Revenue.Annotation)
	assert.False(t, mrna.Range.Available)
	assert.Equal(t, "-", mrna.Range.LowLabel)
}

func TestBuildReport(t *testing.T) {
	r := BuildReport(sampleResult(), Options{SMAWindow: 2})

	assert.Equal(t, DefaultTitle, r.Title)
	require.Len(t, r.Chart.Series, 2)
	assert.Len(t, r.Chart.Series[0].Points, 3)
	assert.Len(t, r.Chart.Series[0].SMA, 2)
	assert.InDelta(t, 605.0, r.Chart.Series[0].SMA[0].Value, 1e-9)
	assert.Empty(t, r.Chart.Series[1].Points)
	assert.Empty(t, r.Chart.Series[1].SMA)
	assert.False(t, r.Chart.Empty())

	require.Len(t, r.Notices, 2)
	assert.True(t, r.Notices[0].Dropped)
	assert.Equal(t, model.TickerSymbol("NOPE"), r.Notices[0].Ticker)
	assert.Contains(t, r.Notices[0].Message, "error fetching data for NOPE")
	assert.False(t, r.Notices[1].Dropped)
}

func TestMarkdownAndHTML(t *testing.T) {
	r := BuildReport(sampleResult(), Options{Title: "Pharma"})

	text := Markdown(r)
	assert.True(t, strings.HasPrefix(text, "# Pharma\n"))
	assert.Contains(t, text, "| Market Cap (B) | 554.00 | 38.00 |")
	assert.Contains(t, text, "(2024-01-01 - 2024-01-31)")
	assert.Contains(t, text, "| LLY | 600.00 | 620.00 | +3.33% |")

	out, err := HTML(r)
	require.NoError(t, err)
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<h1")
	assert.Contains(t, out, "554.00")
}

func TestMarkdown_EscapesTableCells(t *testing.T) {
	r := &Report{
		Title: "Picks",
		Table: Table{
			Columns: []string{"BRK|B", "LLY"},
			Rows:    []Row{{Label: "Price", Cells: []string{"1.00", "2.00"}}},
		},
	}
	text := Markdown(r)
	assert.Contains(t, text, `| Field | BRK\|B | LLY |`)
	assert.Contains(t, text, "| Price | 1.00 | 2.00 |")

	out, err := HTML(r)
	require.NoError(t, err)
	assert.Contains(t, out, `>BRK|B</th>`, "pipe stays inside one header cell")
	assert.Contains(t, out, ">LLY</th>")
}

func TestChartSVG(t *testing.T) {
	r := BuildReport(sampleResult(), Options{})
	svg := ChartSVG(r.Chart, 600, 300)
	assert.True(t, strings.HasPrefix(svg, "<svg"))
	assert.Equal(t, 1, strings.Count(svg, "<polyline"))

	empty := ChartSVG(Chart{}, 600, 300)
	assert.Contains(t, empty, "no price data")
}

func TestPDF(t *testing.T) {
	r := BuildReport(sampleResult(), Options{SMAWindow: 2})
	out, err := PDF(r)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))

	empty := BuildReport(&snapshot.Result{Request: r.Request}, Options{})
	out, err = PDF(empty)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}
