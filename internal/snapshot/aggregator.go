package snapshot

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"StockScope/internal/calculator"
	"StockScope/internal/collector"
	"StockScope/internal/model"
)

// Options tunes a run. Zero values mean sequential fetching, no per-fetch
// timeout and no lookback series.
type Options struct {
	Concurrency   int
	FetchTimeout  time.Duration
	LookbackYears int
}

// Aggregator turns a PortfolioRequest into snapshots and price series.
type Aggregator struct {
	provider collector.Provider
	opts     Options
	log      zerolog.Logger
}

// NewAggregator creates a new Aggregator.
func NewAggregator(provider collector.Provider, opts Options, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		provider: provider,
		opts:     opts,
		log:      log.With().Str("component", "aggregator").Str("provider", provider.Name()).Logger(),
	}
}

// Entry is one successfully fetched ticker, in request position.
type Entry struct {
	Index        int                       `json:"index"`
	Snapshot     model.StockSnapshot       `json:"snapshot"`
	History      []model.PriceHistoryPoint `json:"history"`
	Lookback     []model.PriceHistoryPoint `json:"lookback,omitempty"`
	RelativeSize float64                   `json:"relative_size"`
}

// Result holds everything a run produced. Entries keep request order and
// contain exactly the tickers that succeeded.
type Result struct {
	ID         string                 `json:"id"`
	Provider   string                 `json:"provider"`
	Request    model.PortfolioRequest `json:"request"`
	Entries    []Entry                `json:"entries"`
	Errors     []*SnapshotError       `json:"errors"`
	Notices    []*SnapshotError       `json:"notices"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
}

// Snapshots returns the ticker -> snapshot mapping. For duplicate tickers the
// first occurrence wins; use Entries to see every occurrence.
func (r *Result) Snapshots() map[model.TickerSymbol]model.StockSnapshot {
	out := make(map[model.TickerSymbol]model.StockSnapshot, len(r.Entries))
	for _, e := range r.Entries {
		if _, ok := out[e.Snapshot.Ticker]; !ok {
			out[e.Snapshot.Ticker] = e.Snapshot
		}
	}
	return out
}

// Histories returns the ticker -> price series mapping, first occurrence wins.
func (r *Result) Histories() map[model.TickerSymbol][]model.PriceHistoryPoint {
	out := make(map[model.TickerSymbol][]model.PriceHistoryPoint, len(r.Entries))
	for _, e := range r.Entries {
		if _, ok := out[e.Snapshot.Ticker]; !ok {
			out[e.Snapshot.Ticker] = e.History
		}
	}
	return out
}

// Snapshot looks up the first snapshot for ticker.
func (r *Result) Snapshot(ticker model.TickerSymbol) (*model.StockSnapshot, bool) {
	for i := range r.Entries {
		if r.Entries[i].Snapshot.Ticker == ticker {
			return &r.Entries[i].Snapshot, true
		}
	}
	return nil, false
}

// Missing lists the requested tickers, by occurrence, that have no entry.
func (r *Result) Missing() []model.TickerSymbol {
	got := make(map[int]bool, len(r.Entries))
	for _, e := range r.Entries {
		got[e.Index] = true
	}
	var missing []model.TickerSymbol
	for i, t := range r.Request.Tickers {
		if !got[i] {
			missing = append(missing, t)
		}
	}
	return missing
}

// outcome is the isolated result of one ticker's fetch-and-derive.
type outcome struct {
	entry   *Entry
	err     *SnapshotError
	notices []*SnapshotError
}

// BuildSnapshots fetches and derives every requested ticker. Per-ticker
// failures are recorded in the result and never abort the run. The only
// errors returned are invalid input, cancellation, and ErrProviderUnavailable
// when every ticker failed because the provider could not be reached.
func (a *Aggregator) BuildSnapshots(ctx context.Context, req model.PortfolioRequest) (*Result, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	res := &Result{
		ID:        uuid.NewString(),
		Provider:  a.provider.Name(),
		Request:   req,
		Entries:   []Entry{},
		Errors:    []*SnapshotError{},
		Notices:   []*SnapshotError{},
		StartedAt: time.Now(),
	}
	log := a.log.With().Str("run", res.ID).Logger()
	log.Info().Int("tickers", len(req.Tickers)).Str("range", req.Range.String()).Msg("building snapshots")

	outcomes := make([]outcome, len(req.Tickers))
	var g errgroup.Group
	limit := a.opts.Concurrency
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)
	for i, ticker := range req.Tickers {
		i, ticker := i, ticker
		g.Go(func() error {
			outcomes[i] = a.buildOne(ctx, i, ticker, req.Range)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Join: assemble in request order, then the batch-wide reductions.
	caps := make([]*float64, 0, len(outcomes))
	for _, o := range outcomes {
		res.Notices = append(res.Notices, o.notices...)
		if o.err != nil {
			res.Errors = append(res.Errors, o.err)
			continue
		}
		res.Entries = append(res.Entries, *o.entry)
		caps = append(caps, o.entry.Snapshot.MarketCapBillions)
	}
	for i, size := range calculator.RelativeSizes(caps) {
		res.Entries[i].RelativeSize = size
	}
	res.FinishedAt = time.Now()

	if len(res.Entries) == 0 && allUnavailable(res.Errors) {
		log.Error().Err(res.Errors[0].Err).Msg("provider unreachable for every ticker")
		return nil, errors.Wrap(model.ErrProviderUnavailable, res.Errors[0].Err.Error())
	}
	log.Info().
		Int("ok", len(res.Entries)).
		Int("failed", len(res.Errors)).
		Int("notices", len(res.Notices)).
		Dur("elapsed", res.FinishedAt.Sub(res.StartedAt)).
		Msg("snapshots built")
	return res, nil
}

func allUnavailable(errs []*SnapshotError) bool {
	if len(errs) == 0 {
		return false
	}
	for _, e := range errs {
		if !errors.Is(e.Err, model.ErrUnavailable) {
			return false
		}
	}
	return true
}

func (a *Aggregator) buildOne(ctx context.Context, idx int, ticker model.TickerSymbol, rng model.DateRange) outcome {
	log := a.log.With().Str("ticker", string(ticker)).Int("index", idx).Logger()
	fail := func(field string, err error) outcome {
		log.Warn().Err(err).Str("field", field).Msg("lookup failed, skipping ticker")
		return outcome{err: &SnapshotError{Ticker: ticker, Index: idx, Kind: KindLookupFailure, Err: err}}
	}

	var info *model.RawQuoteInfo
	err := a.withTimeout(ctx, func(ctx context.Context) (err error) {
		info, err = a.provider.QuoteInfo(ctx, ticker)
		return err
	})
	if err == nil && info == nil {
		err = errors.Wrapf(model.ErrNotFound, "no quote info for %s", ticker)
	}
	if err != nil {
		return fail("quote", err)
	}

	var history []model.PriceHistoryPoint
	err = a.withTimeout(ctx, func(ctx context.Context) (err error) {
		history, err = a.provider.PriceHistory(ctx, ticker, rng)
		return err
	})
	if err != nil {
		return fail("history", err)
	}
	if history == nil {
		history = []model.PriceHistoryPoint{}
	}

	var notices []*SnapshotError
	notice := func(kind ErrorKind, field string, err error) {
		notices = append(notices, &SnapshotError{Ticker: ticker, Index: idx, Kind: kind, Field: field, Err: err})
	}
	if len(history) == 0 {
		log.Debug().Msg("empty price history")
		notice(KindEmptyHistory, "history", errors.New("no trading days in range"))
	}

	var lookback []model.PriceHistoryPoint
	if a.opts.LookbackYears > 0 {
		err = a.withTimeout(ctx, func(ctx context.Context) (err error) {
			lookback, err = a.provider.PriceHistory(ctx, ticker, rng.Lookback(a.opts.LookbackYears))
			return err
		})
		if err != nil {
			log.Warn().Err(err).Msg("lookback history failed")
			notice(KindLookupFailure, "lookback", err)
			lookback = nil
		}
	}

	var fin *model.FinancialStatementSeries
	err = a.withTimeout(ctx, func(ctx context.Context) (err error) {
		fin, err = a.provider.Financials(ctx, ticker)
		return err
	})
	if err != nil {
		log.Warn().Err(err).Msg("financials lookup failed")
		notice(KindLookupFailure, "financials", err)
		fin = nil
	}

	yearSource := history
	if len(lookback) > 0 {
		yearSource = lookback
	}
	snap, derived := Derive(ticker, info, fin, yearSource, rng.End)
	for _, n := range derived {
		n.Index = idx
	}
	notices = append(notices, derived...)

	return outcome{
		entry: &Entry{
			Index:    idx,
			Snapshot: snap,
			History:  history,
			Lookback: lookback,
		},
		notices: notices,
	}
}

func (a *Aggregator) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	if a.opts.FetchTimeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, a.opts.FetchTimeout)
	defer cancel()
	return fn(ctx)
}
