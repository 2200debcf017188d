package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"StockScope/internal/collector"
	"StockScope/internal/config"
	"StockScope/internal/logger"
	"StockScope/internal/notifier"
	"StockScope/internal/recorder"
	"StockScope/internal/render"
	"StockScope/internal/scheduler"
	"StockScope/internal/server"
	"StockScope/internal/snapshot"
)

func main() {
	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		boot := logger.New(logger.Config{})
		boot.Fatal().Err(err).Msg("load config")
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}
	log.Info().Str("config", cfgPath).Msg("StockScope starting")

	provider, err := newProvider(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("init data provider")
	}
	log.Info().Str("provider", provider.Name()).Msg("data source ready")

	agg := snapshot.NewAggregator(provider, snapshot.Options{
		Concurrency:   cfg.Dashboard.Concurrency,
		FetchTimeout:  cfg.FetchTimeout(),
		LookbackYears: cfg.Dashboard.LookbackYears,
	}, log)

	// Init recorder
	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.Database.Driver != "" {
		sr, err := recorder.NewSQLRecorder(cfg.Database.Driver, cfg.Database.DSN, log)
		if err != nil {
			log.Warn().Err(err).Msg("init sql recorder failed, using noop")
		} else {
			rec = sr
		}
	}
	defer rec.Close()

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	report := render.Options{Title: cfg.Dashboard.Title, SMAWindow: cfg.Dashboard.SMAWindow}
	wl := scheduler.Watchlist{
		Tickers:   cfg.Dashboard.DefaultTickers,
		UpperCase: cfg.Dashboard.UpperCase,
		Range:     cfg.DefaultRange,
	}

	// The scheduler checks for a nil Sender, so a disabled bot must stay an
	// untyped nil rather than a nil *TelegramNotifier.
	var sender scheduler.Sender
	var tn *notifier.TelegramNotifier
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)
		sender = tn
	} else {
		log.Info().Msg("telegram not configured, notifications disabled")
	}

	sched := scheduler.NewScheduler(ctx, agg, sender, rec, wl, report, log)
	if err := sched.Register(cfg.Schedule.RefreshCron); err != nil {
		log.Fatal().Err(err).Msg("register cron tasks")
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info().Msg("telegram polling started")
	}

	if os.Getenv("RUN_ON_START") == "true" {
		log.Info().Msg("RUN_ON_START enabled, refreshing watchlist now")
		go sched.RunNow()
	}

	srv := server.New(server.Config{
		Port:     cfg.Server.Port,
		Log:      log,
		Builder:  agg,
		Recorder: rec,
		Defaults: server.Defaults{
			Tickers:   cfg.Dashboard.DefaultTickers,
			UpperCase: cfg.Dashboard.UpperCase,
			Range:     cfg.DefaultRange,
		},
		Report:      report,
		CORSOrigins: cfg.Server.CORSOrigins,
		DevMode:     os.Getenv("DEV_MODE") == "true",
	})
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	log.Info().Int("port", cfg.Server.Port).Msg("StockScope is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutdown signal received, stopping...")
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	log.Info().Msg("StockScope stopped")
}

func newProvider(cfg *config.Config, log zerolog.Logger) (collector.Provider, error) {
	switch cfg.DataSource.Provider {
	case "yahoo":
		return collector.NewYahooProvider(cfg.Proxy, cfg.DataSource.RequestsPerSecond, log), nil
	case "rest":
		return collector.NewRESTProvider(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.Proxy), nil
	case "mock":
		return &collector.MockProvider{}, nil
	}
	return nil, errors.Errorf("unknown data provider %q", cfg.DataSource.Provider)
}
