package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"StockScope/internal/snapshot"
)

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithXHTML()),
)

// Markdown renders the report as GitHub-flavoured markdown.
func Markdown(r *Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", escapeInline(r.Title))

	if len(r.Notices) > 0 {
		b.WriteString("## Notices\n\n")
		for _, n := range r.Notices {
			fmt.Fprintf(&b, "- %s\n", escapeInline(n.Message))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Stock Performance Chart\n\n")
	fmt.Fprintf(&b, "(%s)\n\n", r.Request.Range)
	if r.Chart.Empty() {
		b.WriteString("No price data in the selected range.\n\n")
	} else {
		b.WriteString("| Ticker | First | Last | Change |\n|---|---:|---:|---:|\n")
		for _, s := range r.Chart.Series {
			if len(s.Points) == 0 {
				fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", escapeInline(s.Ticker.String()), snapshot.Placeholder, snapshot.Placeholder, snapshot.Placeholder)
				continue
			}
			first, last := s.Points[0].Value, s.Points[len(s.Points)-1].Value
			change := snapshot.Placeholder
			if first != 0 {
				change = fmt.Sprintf("%+.2f%%", (last-first)/first*100)
			}
			fmt.Fprintf(&b, "| %s | %.2f | %.2f | %s |\n", escapeInline(s.Ticker.String()), first, last, change)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Stock Data\n\n")
	writeTable(&b, r.Table)

	if len(r.Panels) > 0 {
		b.WriteString("\n## Snapshot Panels\n\n")
		for _, p := range r.Panels {
			fmt.Fprintf(&b, "### %s\n\n", escapeInline(p.Ticker.String()))
			fmt.Fprintf(&b, "- Market cap: %s (relative size %.2f)\n", p.Bubble.Label, p.Bubble.RelativeSize)
			for _, bar := range p.Bars {
				fmt.Fprintf(&b, "- %s: %s\n", bar.Label, bar.Text)
			}
			if p.Revenue.Available {
				fmt.Fprintf(&b, "- Revenue: %.2f -> %.2f (%s)\n", p.Revenue.Previous, p.Revenue.Current, p.Revenue.Annotation)
			} else {
				fmt.Fprintf(&b, "- Revenue: %s\n", p.Revenue.Annotation)
			}
			fmt.Fprintf(&b, "- 52W: %s / %s / %s\n\n", p.Range.LowLabel, p.Range.CurrentLabel, p.Range.HighLabel)
		}
	}
	return b.String()
}

func writeTable(b *strings.Builder, t Table) {
	if len(t.Columns) == 0 {
		b.WriteString("No tickers could be loaded.\n")
		return
	}
	b.WriteString("| Field |")
	for _, c := range t.Columns {
		fmt.Fprintf(b, " %s |", escapeInline(c))
	}
	b.WriteString("\n|---|")
	b.WriteString(strings.Repeat("---:|", len(t.Columns)))
	b.WriteString("\n")
	for _, row := range t.Rows {
		fmt.Fprintf(b, "| %s |", escapeInline(row.Label))
		for _, c := range row.Cells {
			fmt.Fprintf(b, " %s |", escapeInline(c))
		}
		b.WriteString("\n")
	}
}

func escapeInline(s string) string {
	return strings.NewReplacer("|", `\|`, "*", `\*`, "_", `\_`).Replace(s)
}

// HTML converts the markdown rendering of r into an HTML fragment.
func HTML(r *Report) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(Markdown(r)), &buf); err != nil {
		return "", errors.Wrap(err, "convert report markdown")
	}
	return buf.String(), nil
}
