package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"StockScope/internal/model"
	"StockScope/internal/recorder"
	"StockScope/internal/render"
)

// FormatSnapshotReport formats a report as a Telegram HTML message.
func FormatSnapshotReport(r *render.Report) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>%s</b>\n", html.EscapeString(r.Title)))
	b.WriteString(fmt.Sprintf("%s\n\n", r.Request.Range))

	if len(r.Panels) == 0 {
		b.WriteString("No tickers could be loaded.\n")
	}
	for i, p := range r.Panels {
		s := priceChange(r.Chart, p.Ticker)
		b.WriteString(fmt.Sprintf("<b>%s</b> %s%s\n", html.EscapeString(p.Ticker.String()), p.Range.CurrentLabel, s))
		b.WriteString(fmt.Sprintf("  市值 %s | PE %s | Beta %s\n",
			p.Bubble.Label, cell(r.Table, "PE", i), cell(r.Table, "Beta", i)))
		b.WriteString(fmt.Sprintf("  利润率 %s | ROA %s | ROE %s\n", p.Bars[0].Text, p.Bars[1].Text, p.Bars[2].Text))
		if p.Revenue.Available {
			icon := "🟢"
			if p.Revenue.Color == render.ColorDecline {
				icon = "🔴"
			}
			b.WriteString(fmt.Sprintf("  营收 %s → %s (%s) %s\n",
				revenue(p.Revenue.Previous), revenue(p.Revenue.Current), p.Revenue.Annotation, icon))
		}
		b.WriteString(fmt.Sprintf("  52周 %s - %s\n", p.Range.LowLabel, p.Range.HighLabel))
	}

	var dropped, notes []string
	for _, n := range r.Notices {
		if n.Dropped {
			dropped = append(dropped, html.EscapeString(n.Message))
		} else {
			notes = append(notes, html.EscapeString(n.Message))
		}
	}
	if len(dropped) > 0 {
		b.WriteString("\n❌ <b>获取失败:</b>\n")
		for _, m := range dropped {
			b.WriteString("  " + m + "\n")
		}
	}
	if len(notes) > 0 {
		b.WriteString(fmt.Sprintf("\n⚠️ %d 条数据提示\n", len(notes)))
	}
	return b.String()
}

func priceChange(c render.Chart, ticker model.TickerSymbol) string {
	for _, s := range c.Series {
		if s.Ticker != ticker || len(s.Points) < 2 || s.Points[0].Value == 0 {
			continue
		}
		first, last := s.Points[0].Value, s.Points[len(s.Points)-1].Value
		return fmt.Sprintf(" (%+.1f%%)", (last-first)/first*100)
	}
	return ""
}

func cell(t render.Table, label string, col int) string {
	for _, r := range t.Rows {
		if r.Label == label && col < len(r.Cells) {
			return r.Cells[col]
		}
	}
	return "-"
}

func revenue(v float64) string {
	if v >= 1e6 {
		return humanize.SIWithDigits(v, 1, "")
	}
	return humanize.Commaf(v)
}

// FormatRecentRuns lists stored runs, newest first.
func FormatRecentRuns(runs []recorder.RunRecord) string {
	if len(runs) == 0 {
		return "暂无运行记录"
	}
	var b strings.Builder
	b.WriteString("🗂 <b>最近运行</b>\n\n")
	for _, r := range runs {
		b.WriteString(fmt.Sprintf("%s [%s] %s  ✅%d ❌%d\n",
			humanize.Time(time.Unix(r.StartedAt, 0)), r.Trigger, html.EscapeString(r.Tickers), r.OK, r.Failed))
	}
	return b.String()
}

// FormatHelp lists the bot commands.
func FormatHelp(defaultTickers string) string {
	var b strings.Builder
	b.WriteString("可用命令:\n")
	b.WriteString("• /snapshot [T1,T2,...] 生成快照 (默认: " + html.EscapeString(defaultTickers) + ")\n")
	b.WriteString("• /runs 最近运行记录\n")
	b.WriteString("• /help 帮助\n")
	return b.String()
}
