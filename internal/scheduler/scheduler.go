package scheduler

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"StockScope/internal/model"
	"StockScope/internal/notifier"
	"StockScope/internal/recorder"
	"StockScope/internal/render"
	"StockScope/internal/snapshot"
)

// Sender delivers a formatted message.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Builder produces snapshot results.
type Builder interface {
	BuildSnapshots(ctx context.Context, req model.PortfolioRequest) (*snapshot.Result, error)
}

// Watchlist is what a scheduled refresh fetches.
type Watchlist struct {
	Tickers   string
	UpperCase bool
	// Range returns the date range for a run started at now.
	Range func(now time.Time) (model.DateRange, error)
}

// Scheduler manages cron refreshes and bot commands.
type Scheduler struct {
	Cron      *cron.Cron
	Builder   Builder
	Notifier  Sender
	Recorder  recorder.Recorder
	Watchlist Watchlist
	Report    render.Options
	Ctx       context.Context
	log       zerolog.Logger
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, b Builder, tn Sender, rec recorder.Recorder, wl Watchlist, opts render.Options, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Builder:   b,
		Notifier:  tn,
		Recorder:  rec,
		Watchlist: wl,
		Report:    opts,
		Ctx:       ctx,
		log:       log.With().Str("component", "scheduler").Logger(),
	}
}

// Register adds the watchlist refresh. An empty expression registers nothing.
func (s *Scheduler) Register(refreshCron string) error {
	if refreshCron == "" {
		s.log.Info().Msg("no refresh schedule configured")
		return nil
	}
	if _, err := s.Cron.AddFunc(refreshCron, s.refreshTask); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Int("jobs", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running job.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// RunNow executes the watchlist refresh immediately (for manual trigger / RUN_ON_START).
func (s *Scheduler) RunNow() {
	s.refreshTask()
}

func (s *Scheduler) refreshTask() {
	s.log.Info().Msg("running watchlist refresh")
	msg, err := s.snapshot(s.Ctx, s.Watchlist.Tickers, recorder.TriggerScheduled)
	if err != nil {
		s.log.Error().Err(err).Msg("watchlist refresh failed")
		s.trySend(failureText("快照生成失败", err))
		return
	}
	s.trySend(msg)
}

// snapshot runs one aggregation and returns the formatted message.
func (s *Scheduler) snapshot(ctx context.Context, tickerText, trigger string) (string, error) {
	tickers, err := snapshot.ParseTickers(tickerText, s.Watchlist.UpperCase)
	if err != nil {
		return "", err
	}
	rng, err := s.Watchlist.Range(time.Now())
	if err != nil {
		return "", errors.Wrap(err, "date range")
	}
	res, err := s.Builder.BuildSnapshots(ctx, model.PortfolioRequest{Tickers: tickers, Range: rng})
	if err != nil {
		return "", err
	}
	if err := s.Recorder.RecordRun(ctx, res, trigger); err != nil {
		s.log.Error().Err(err).Str("run", res.ID).Msg("record run")
	}
	return notifier.FormatSnapshotReport(render.BuildReport(res, s.Report)), nil
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	name, args, _ := strings.Cut(strings.TrimSpace(command), " ")
	// commands may carry a bot suffix: /snapshot@stockscope_bot
	name, _, _ = strings.Cut(name, "@")

	switch name {
	case "/snapshot", "快照":
		tickers := strings.TrimSpace(args)
		if tickers == "" {
			tickers = s.Watchlist.Tickers
		}
		msg, err := s.snapshot(ctx, tickers, recorder.TriggerCommand)
		if errors.Is(err, model.ErrMalformedInput) {
			return "请输入以逗号分隔的股票代码, 例如: /snapshot LLY, ABT"
		}
		if err != nil {
			s.log.Error().Err(err).Msg("command snapshot failed")
			return failureText("快照生成失败", err)
		}
		return msg
	case "/runs", "运行记录":
		runs, err := s.Recorder.RecentRuns(ctx, 10)
		if err != nil {
			return failureText("读取运行记录失败", err)
		}
		return notifier.FormatRecentRuns(runs)
	default:
		return notifier.FormatHelp(s.Watchlist.Tickers)
	}
}

// failureText formats an error for an HTML parse-mode message.
func failureText(what string, err error) string {
	return fmt.Sprintf("❌ %s: %s", what, html.EscapeString(err.Error()))
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		s.log.Debug().Msg("no notifier configured, dropping message")
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.log.Error().Err(err).Msg("send notification")
	}
}
