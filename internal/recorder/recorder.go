package recorder

import (
	"context"
	"strings"

	"StockScope/internal/snapshot"
)

// Trigger names what started a run.
const (
	TriggerWeb       = "web"
	TriggerAPI       = "api"
	TriggerScheduled = "scheduled"
	TriggerCommand   = "command"
)

// RunRecord is one aggregation run.
type RunRecord struct {
	ID         string `db:"id" json:"id"`
	Trigger    string `db:"trigger_type" json:"trigger_type"`
	Provider   string `db:"provider" json:"provider"`
	Tickers    string `db:"tickers" json:"tickers"`
	RangeStart string `db:"range_start" json:"range_start"`
	RangeEnd   string `db:"range_end" json:"range_end"`
	StartedAt  int64  `db:"started_at" json:"started_at"`
	FinishedAt int64  `db:"finished_at" json:"finished_at"`
	OK         int    `db:"ok_count" json:"ok_count"`
	Failed     int    `db:"failed_count" json:"failed_count"`
}

// SnapshotRow is one stored snapshot of a run.
type SnapshotRow struct {
	RunID             string   `db:"run_id" json:"run_id"`
	Position          int      `db:"position" json:"position"`
	Ticker            string   `db:"ticker" json:"ticker"`
	MarketCapBillions *float64 `db:"market_cap_b" json:"market_cap_b"`
	ProfitMargin      *float64 `db:"profit_margin" json:"profit_margin"`
	ROA               *float64 `db:"roa" json:"roa"`
	ROE               *float64 `db:"roe" json:"roe"`
	PERatio           *float64 `db:"pe_ratio" json:"pe_ratio"`
	Beta              *float64 `db:"beta" json:"beta"`
	CurrentPrice      *float64 `db:"current_price" json:"current_price"`
	Week52Low         *float64 `db:"low_52w" json:"low_52w"`
	Week52High        *float64 `db:"high_52w" json:"high_52w"`
	Week52Source      string   `db:"range_source" json:"range_source"`
	RevenueGrowthPct  *float64 `db:"revenue_growth_pct" json:"revenue_growth_pct"`
	RelativeSize      float64  `db:"relative_size" json:"relative_size"`
}

// ErrorRow is one per-ticker error or notice of a run.
type ErrorRow struct {
	RunID    string `db:"run_id" json:"run_id"`
	Position int    `db:"position" json:"position"`
	Ticker   string `db:"ticker" json:"ticker"`
	Kind     string `db:"kind" json:"kind"`
	Field    string `db:"field" json:"field"`
	Dropped  bool   `db:"dropped" json:"dropped"`
	Message  string `db:"message" json:"message"`
}

// Recorder persists run history for later analysis. Stored runs are never
// read back to serve a request.
type Recorder interface {
	RecordRun(ctx context.Context, res *snapshot.Result, trigger string) error
	RecentRuns(ctx context.Context, limit int) ([]RunRecord, error)
	SnapshotsForRun(ctx context.Context, runID string) ([]SnapshotRow, error)
	ErrorsForRun(ctx context.Context, runID string) ([]ErrorRow, error)
	Close() error
}

// Rows flattens a result into the stored rows.
func Rows(res *snapshot.Result, trigger string) (RunRecord, []SnapshotRow, []ErrorRow) {
	tickers := make([]string, len(res.Request.Tickers))
	for i, t := range res.Request.Tickers {
		tickers[i] = t.String()
	}
	run := RunRecord{
		ID:         res.ID,
		Trigger:    trigger,
		Provider:   res.Provider,
		Tickers:    strings.Join(tickers, ","),
		RangeStart: res.Request.Range.Start.Format("2006-01-02"),
		RangeEnd:   res.Request.Range.End.Format("2006-01-02"),
		StartedAt:  res.StartedAt.Unix(),
		FinishedAt: res.FinishedAt.Unix(),
		OK:         len(res.Entries),
		Failed:     len(res.Errors),
	}

	snaps := make([]SnapshotRow, 0, len(res.Entries))
	for _, e := range res.Entries {
		s := e.Snapshot
		snaps = append(snaps, SnapshotRow{
			RunID:             res.ID,
			Position:          e.Index,
			Ticker:            s.Ticker.String(),
			MarketCapBillions: s.MarketCapBillions,
			ProfitMargin:      s.ProfitMargin,
			ROA:               s.ROA,
			ROE:               s.ROE,
			PERatio:           s.PERatio,
			Beta:              s.Beta,
			CurrentPrice:      s.CurrentPrice,
			Week52Low:         s.Week52Low,
			Week52High:        s.Week52High,
			Week52Source:      string(s.Week52Source),
			RevenueGrowthPct:  s.RevenueGrowthPct,
			RelativeSize:      e.RelativeSize,
		})
	}

	errs := make([]ErrorRow, 0, len(res.Errors)+len(res.Notices))
	add := func(list []*snapshot.SnapshotError, dropped bool) {
		for _, e := range list {
			errs = append(errs, ErrorRow{
				RunID:    res.ID,
				Position: e.Index,
				Ticker:   e.Ticker.String(),
				Kind:     string(e.Kind),
				Field:    e.Field,
				Dropped:  dropped,
				Message:  e.Error(),
			})
		}
	}
	add(res.Errors, true)
	add(res.Notices, false)
	return run, snaps, errs
}
