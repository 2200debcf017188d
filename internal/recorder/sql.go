package recorder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"StockScope/internal/snapshot"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

var _ Recorder = (*SQLRecorder)(nil)

// SQLRecorder persists run history to SQLite or PostgreSQL.
type SQLRecorder struct {
	db     *sqlx.DB
	driver string
	mu     sync.Mutex
	log    zerolog.Logger
}

// NewSQLRecorder opens (or creates) the database and runs migrations.
// driver is "sqlite" or "postgres".
func NewSQLRecorder(driver, dsn string, log zerolog.Logger) (*SQLRecorder, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == "sqlite" {
		// WAL mode lets dashboards read while runs are written.
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	r := &SQLRecorder{db: db, driver: driver, log: log.With().Str("component", "recorder").Logger()}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.log.Info().Str("driver", driver).Msg("recorder opened")
	return r, nil
}

func (r *SQLRecorder) migrate() error {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	boolean := "INTEGER"
	if r.driver == "postgres" {
		serial = "BIGSERIAL PRIMARY KEY"
		boolean = "BOOLEAN"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id           TEXT PRIMARY KEY,
			trigger_type TEXT NOT NULL,
			provider     TEXT NOT NULL,
			tickers      TEXT NOT NULL,
			range_start  TEXT NOT NULL,
			range_end    TEXT NOT NULL,
			started_at   BIGINT NOT NULL,
			finished_at  BIGINT NOT NULL,
			ok_count     INTEGER NOT NULL,
			failed_count INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS snapshots (
			id                 ` + serial + `,
			run_id             TEXT NOT NULL,
			position           INTEGER NOT NULL,
			ticker             TEXT NOT NULL,
			market_cap_b       REAL,
			profit_margin      REAL,
			roa                REAL,
			roe                REAL,
			pe_ratio           REAL,
			beta               REAL,
			current_price      REAL,
			low_52w            REAL,
			high_52w           REAL,
			range_source       TEXT,
			revenue_growth_pct REAL,
			relative_size      REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_ticker ON snapshots(ticker)`,

		`CREATE TABLE IF NOT EXISTS run_errors (
			id       ` + serial + `,
			run_id   TEXT NOT NULL,
			position INTEGER NOT NULL,
			ticker   TEXT NOT NULL,
			kind     TEXT NOT NULL,
			field    TEXT,
			dropped  ` + boolean + ` NOT NULL,
			message  TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_errors_run ON run_errors(run_id)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

const (
	insertRun = `INSERT INTO runs
		(id, trigger_type, provider, tickers, range_start, range_end, started_at, finished_at, ok_count, failed_count)
		VALUES (:id, :trigger_type, :provider, :tickers, :range_start, :range_end, :started_at, :finished_at, :ok_count, :failed_count)`
	insertSnapshot = `INSERT INTO snapshots
		(run_id, position, ticker, market_cap_b, profit_margin, roa, roe, pe_ratio, beta, current_price,
		 low_52w, high_52w, range_source, revenue_growth_pct, relative_size)
		VALUES (:run_id, :position, :ticker, :market_cap_b, :profit_margin, :roa, :roe, :pe_ratio, :beta, :current_price,
		 :low_52w, :high_52w, :range_source, :revenue_growth_pct, :relative_size)`
	insertError = `INSERT INTO run_errors
		(run_id, position, ticker, kind, field, dropped, message)
		VALUES (:run_id, :position, :ticker, :kind, :field, :dropped, :message)`
)

// RecordRun stores a run with its snapshots and errors in one transaction.
func (r *SQLRecorder) RecordRun(ctx context.Context, res *snapshot.Result, trigger string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, snaps, errs := Rows(res, trigger)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.NamedExecContext(ctx, insertRun, run); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	for _, s := range snaps {
		if _, err := tx.NamedExecContext(ctx, insertSnapshot, s); err != nil {
			return fmt.Errorf("insert snapshot %s: %w", s.Ticker, err)
		}
	}
	for _, e := range errs {
		if _, err := tx.NamedExecContext(ctx, insertError, e); err != nil {
			return fmt.Errorf("insert error %s: %w", e.Ticker, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	r.log.Debug().Str("run", run.ID).Int("snapshots", len(snaps)).Int("errors", len(errs)).Msg("run recorded")
	return nil
}

// RecentRuns returns the latest runs, newest first.
func (r *SQLRecorder) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []RunRecord
	q := r.db.Rebind(`SELECT * FROM runs ORDER BY started_at DESC, id LIMIT ?`)
	if err := r.db.SelectContext(ctx, &runs, q, limit); err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	return runs, nil
}

// SnapshotsForRun returns the stored snapshots of one run in request order.
func (r *SQLRecorder) SnapshotsForRun(ctx context.Context, runID string) ([]SnapshotRow, error) {
	var rows []SnapshotRow
	q := r.db.Rebind(`SELECT run_id, position, ticker, market_cap_b, profit_margin, roa, roe, pe_ratio, beta,
		current_price, low_52w, high_52w, range_source, revenue_growth_pct, relative_size
		FROM snapshots WHERE run_id = ? ORDER BY position`)
	if err := r.db.SelectContext(ctx, &rows, q, runID); err != nil {
		return nil, fmt.Errorf("select snapshots: %w", err)
	}
	return rows, nil
}

// ErrorsForRun returns the stored errors and notices of one run.
func (r *SQLRecorder) ErrorsForRun(ctx context.Context, runID string) ([]ErrorRow, error) {
	var rows []ErrorRow
	q := r.db.Rebind(`SELECT run_id, position, ticker, kind, field, dropped, message
		FROM run_errors WHERE run_id = ? ORDER BY id`)
	if err := r.db.SelectContext(ctx, &rows, q, runID); err != nil {
		return nil, fmt.Errorf("select errors: %w", err)
	}
	return rows, nil
}

func (r *SQLRecorder) Close() error {
	r.log.Info().Msg("closing recorder")
	return r.db.Close()
}
