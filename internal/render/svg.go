package render

import (
	"fmt"
	"html"
	"strings"
	"time"
)

var palette = []string{"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd", "#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf"}

// SeriesColor returns the stable colour of the i-th series.
func SeriesColor(i int) string { return palette[i%len(palette)] }

// bounds returns the time and value extent of every plotted point.
func (c Chart) bounds() (t0, t1 time.Time, lo, hi float64, ok bool) {
	for _, s := range c.Series {
		for _, p := range s.Points {
			if !ok {
				t0, t1, lo, hi, ok = p.Date, p.Date, p.Value, p.Value, true
				continue
			}
			if p.Date.Before(t0) {
				t0 = p.Date
			}
			if p.Date.After(t1) {
				t1 = p.Date
			}
			lo = min(lo, p.Value)
			hi = max(hi, p.Value)
		}
	}
	return
}

// project maps a point into a w x h box with the origin at the top left.
func project(p ChartPoint, t0, t1 time.Time, lo, hi, w, h float64) (x, y float64) {
	span := t1.Sub(t0).Seconds()
	if span > 0 {
		x = p.Date.Sub(t0).Seconds() / span * w
	}
	y = h / 2
	if hi > lo {
		y = h - (p.Value-lo)/(hi-lo)*h
	}
	return x, y
}

// ChartSVG draws the adjusted-close lines as an inline SVG element.
func ChartSVG(c Chart, width, height int) string {
	const pad = 40.0
	w, h := float64(width)-2*pad, float64(height)-2*pad
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, width, height, width, height)
	fmt.Fprintf(&b, `<rect x="%.0f" y="%.0f" width="%.0f" height="%.0f" fill="none" stroke="#ccc"/>`, pad, pad, w, h)

	t0, t1, lo, hi, ok := c.bounds()
	if !ok {
		fmt.Fprintf(&b, `<text x="%.0f" y="%.0f" text-anchor="middle">no price data</text></svg>`, float64(width)/2, float64(height)/2)
		return b.String()
	}
	fmt.Fprintf(&b, `<text x="2" y="%.0f" font-size="10">%.2f</text>`, pad, hi)
	fmt.Fprintf(&b, `<text x="2" y="%.0f" font-size="10">%.2f</text>`, pad+h, lo)
	fmt.Fprintf(&b, `<text x="%.0f" y="%.0f" font-size="10">%s</text>`, pad, pad+h+14, t0.Format("2006-01-02"))
	fmt.Fprintf(&b, `<text x="%.0f" y="%.0f" font-size="10" text-anchor="end">%s</text>`, pad+w, pad+h+14, t1.Format("2006-01-02"))

	polyline := func(points []ChartPoint, color, dash string) {
		if len(points) == 0 {
			return
		}
		coords := make([]string, len(points))
		for i, p := range points {
			x, y := project(p, t0, t1, lo, hi, w, h)
			coords[i] = fmt.Sprintf("%.1f,%.1f", x+pad, y+pad)
		}
		fmt.Fprintf(&b, `<polyline fill="none" stroke="%s" stroke-width="1.5"%s points="%s"/>`, color, dash, strings.Join(coords, " "))
	}
	for i, s := range c.Series {
		color := SeriesColor(i)
		polyline(s.Points, color, "")
		polyline(s.SMA, color, ` stroke-dasharray="4 3"`)
		fmt.Fprintf(&b, `<text x="%.0f" y="%d" font-size="11" fill="%s">%s</text>`, pad+float64(i)*60, 14, color, html.EscapeString(s.Ticker.String()))
	}
	b.WriteString(`</svg>`)
	return b.String()
}
