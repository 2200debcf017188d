package render

import (
	"bytes"
	"math"
	"strconv"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"
)

const (
	pageW, pageH = 297.0, 210.0 // A4 landscape
	margin       = 10.0
	tableCols    = 8 // tickers per table block
)

// PDF draws the report: chart on the first page, then the table, then the
// panels, four to a page.
func PDF(r *Report) ([]byte, error) {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, margin)
	pdf.SetTitle(r.Title, false)

	pdf.AddPage()
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, r.Title, "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 5, "Stock Performance Chart ("+r.Request.Range.String()+")", "", 1, "L", false, 0, "")
	drawChart(pdf, r.Chart, margin, pdf.GetY()+2, pageW-2*margin, 120)

	if len(r.Notices) > 0 {
		pdf.SetXY(margin, 160)
		pdf.SetFont("Arial", "B", 9)
		pdf.CellFormat(0, 5, "Notices", "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 8)
		for _, n := range r.Notices {
			if pdf.GetY() > pageH-margin-4 {
				break
			}
			pdf.CellFormat(0, 4, n.Message, "", 1, "L", false, 0, "")
		}
	}

	pdf.AddPage()
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Stock Data", "", 1, "L", false, 0, "")
	drawTable(pdf, r.Table)

	for i, p := range r.Panels {
		if i%4 == 0 {
			pdf.AddPage()
		}
		drawPanel(pdf, p, margin, margin+float64(i%4)*47)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, errors.Wrap(err, "write pdf")
	}
	return buf.Bytes(), nil
}

func setDraw(pdf *fpdf.Fpdf, hex string) {
	r, g, b := hexRGB(hex)
	pdf.SetDrawColor(r, g, b)
}

func setFill(pdf *fpdf.Fpdf, hex string) {
	r, g, b := hexRGB(hex)
	pdf.SetFillColor(r, g, b)
}

func hexRGB(hex string) (int, int, int) {
	if len(hex) != 7 || hex[0] != '#' {
		return 0, 0, 0
	}
	v, err := strconv.ParseUint(hex[1:], 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)
}

func drawChart(pdf *fpdf.Fpdf, c Chart, x, y, w, h float64) {
	pdf.SetDrawColor(200, 200, 200)
	pdf.SetLineWidth(0.2)
	pdf.Rect(x, y, w, h, "D")

	t0, t1, lo, hi, ok := c.bounds()
	if !ok {
		pdf.SetXY(x, y+h/2)
		pdf.CellFormat(w, 5, "No price data in the selected range", "", 0, "C", false, 0, "")
		return
	}
	pdf.SetFont("Arial", "", 7)
	pdf.Text(x+1, y+3, strconv.FormatFloat(hi, 'f', 2, 64))
	pdf.Text(x+1, y+h-1, strconv.FormatFloat(lo, 'f', 2, 64))
	pdf.Text(x, y+h+4, t0.Format("2006-01-02"))
	pdf.Text(x+w-16, y+h+4, t1.Format("2006-01-02"))

	line := func(points []ChartPoint) {
		for i := 1; i < len(points); i++ {
			x0, y0 := project(points[i-1], t0, t1, lo, hi, w, h)
			x1, y1 := project(points[i], t0, t1, lo, hi, w, h)
			pdf.Line(x+x0, y+y0, x+x1, y+y1)
		}
	}
	for i, s := range c.Series {
		setDraw(pdf, SeriesColor(i))
		pdf.SetLineWidth(0.35)
		line(s.Points)
		if len(s.SMA) > 0 {
			pdf.SetDashPattern([]float64{1.2, 0.8}, 0)
			pdf.SetLineWidth(0.2)
			line(s.SMA)
			pdf.SetDashPattern([]float64{}, 0)
		}
		r, g, b := hexRGB(SeriesColor(i))
		pdf.SetTextColor(r, g, b)
		pdf.Text(x+2+float64(i)*18, y+h+9, s.Ticker.String())
	}
	pdf.SetTextColor(0, 0, 0)
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.2)
}

func drawTable(pdf *fpdf.Fpdf, t Table) {
	pdf.SetFont("Arial", "", 8)
	if len(t.Columns) == 0 {
		pdf.CellFormat(0, 5, "No tickers could be loaded.", "", 1, "L", false, 0, "")
		return
	}
	const labelW = 32.0
	colW := (pageW - 2*margin - labelW) / tableCols
	for start := 0; start < len(t.Columns); start += tableCols {
		end := min(start+tableCols, len(t.Columns))
		if pdf.GetY() > pageH-margin-float64(len(t.Rows)+1)*5 {
			pdf.AddPage()
		}
		pdf.SetFont("Arial", "B", 8)
		pdf.SetFillColor(230, 230, 230)
		pdf.CellFormat(labelW, 5, "", "1", 0, "L", true, 0, "")
		for _, c := range t.Columns[start:end] {
			pdf.CellFormat(colW, 5, c, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 8)
		for _, row := range t.Rows {
			pdf.CellFormat(labelW, 5, row.Label, "1", 0, "L", false, 0, "")
			for _, cell := range row.Cells[start:end] {
				pdf.CellFormat(colW, 5, cell, "1", 0, "R", false, 0, "")
			}
			pdf.Ln(-1)
		}
		pdf.Ln(4)
	}
}

// drawPanel lays out one ticker row: bubble, bars, revenue pair, 52w strip.
func drawPanel(pdf *fpdf.Fpdf, p Panel, x, y float64) {
	const rowH = 44.0
	pdf.SetDrawColor(210, 210, 210)
	pdf.Rect(x, y, pageW-2*margin, rowH, "D")
	pdf.SetDrawColor(0, 0, 0)

	pdf.SetFont("Arial", "B", 11)
	pdf.Text(x+2, y+6, p.Ticker.String())

	// bubble: area proportional to relative size
	cx, cy := x+25, y+26
	radius := 15 * math.Sqrt(p.Bubble.RelativeSize)
	if radius > 0 {
		setFill(pdf, "#90caf9")
		pdf.Circle(cx, cy, radius, "F")
	}
	pdf.SetFont("Arial", "", 8)
	pdf.SetXY(cx-15, cy-2)
	pdf.CellFormat(30, 4, p.Bubble.Label, "", 0, "C", false, 0, "")

	// bars, percent scale capped at 100
	bx, barMax := x+55, 50.0
	for i, b := range p.Bars {
		by := y + 10 + float64(i)*10
		pdf.Text(bx, by+3, b.Label)
		setFill(pdf, "#4caf50")
		if wv := math.Min(b.Percent, 100) / 100 * barMax; wv > 0 {
			pdf.Rect(bx+22, by, wv, 4, "F")
		}
		pdf.Text(bx+24+barMax, by+3, b.Text)
	}

	// revenue comparison
	rx := x + 160
	pdf.Text(rx, y+8, "Revenue")
	if p.Revenue.Available {
		top := math.Max(p.Revenue.Previous, p.Revenue.Current)
		heights := [2]float64{0, 0}
		if top > 0 {
			heights = [2]float64{p.Revenue.Previous / top * 25, p.Revenue.Current / top * 25}
		}
		setFill(pdf, ColorNeutral)
		pdf.Rect(rx, y+38-heights[0], 8, heights[0], "F")
		setFill(pdf, p.Revenue.Color)
		pdf.Rect(rx+12, y+38-heights[1], 8, heights[1], "F")
	}
	r, g, b := hexRGB(p.Revenue.Color)
	pdf.SetTextColor(r, g, b)
	pdf.Text(rx+24, y+24, p.Revenue.Annotation)
	pdf.SetTextColor(0, 0, 0)

	// 52-week strip
	sx, sw, sy := x+205, 65.0, y+24
	pdf.Text(sx, y+8, "52W Range")
	pdf.SetLineWidth(0.6)
	pdf.Line(sx, sy, sx+sw, sy)
	pdf.SetLineWidth(0.2)
	if p.Range.Available {
		setFill(pdf, ColorDecline)
		pdf.Circle(sx+p.Range.Position*sw, sy, 1.5, "F")
	}
	pdf.Text(sx, sy+6, p.Range.LowLabel)
	pdf.Text(sx+sw-10, sy+6, p.Range.HighLabel)
	pdf.Text(sx+p.Range.Position*sw-4, sy-3, p.Range.CurrentLabel)
}
