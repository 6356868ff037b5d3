package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"vicitrade/internal/domain"
	"vicitrade/internal/util"
)

// Compile-time interface check.
var _ ResultStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS backtests (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	strategy_name   TEXT NOT NULL,
	symbols         TEXT NOT NULL,
	start_date      TEXT NOT NULL,
	end_date        TEXT NOT NULL,
	initial_capital REAL NOT NULL,
	commission_rate REAL NOT NULL DEFAULT 0.001,
	status          TEXT NOT NULL DEFAULT 'pending',
	final_equity    REAL NOT NULL DEFAULT 0,
	created_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	backtest_id TEXT NOT NULL REFERENCES backtests(id) ON DELETE CASCADE,
	seq         INTEGER NOT NULL,
	symbol      TEXT NOT NULL,
	side        TEXT NOT NULL,
	quantity    REAL NOT NULL,
	price       REAL NOT NULL,
	commission  REAL NOT NULL DEFAULT 0,
	date        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_backtest ON trades(backtest_id, seq);

CREATE TABLE IF NOT EXISTS backtest_results (
	backtest_id       TEXT PRIMARY KEY REFERENCES backtests(id) ON DELETE CASCADE,
	metrics_json      TEXT NOT NULL,
	equity_curve_json TEXT NOT NULL
);
`

// Write attempts made while another connection holds the database lock.
const (
	busyAttempts  = 5
	busyBaseDelay = 20 * time.Millisecond
)

// SQLiteStore implements ResultStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates the
// schema if needed, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isBusy reports whether err is a transient lock conflict.
func isBusy(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// ResultStore implementation
// ---------------------------------------------------------------------------

// SaveRun inserts the run, its trades, and its results in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *RunRecord) error {
	symbols, err := json.Marshal(run.Symbols)
	if err != nil {
		return err
	}
	metrics, err := json.Marshal(run.Metrics)
	if err != nil {
		return fmt.Errorf("encoding metrics: %w", err)
	}
	curve := run.EquityCurve
	if curve == nil {
		curve = []domain.EquityPoint{}
	}
	equity, err := json.Marshal(curve)
	if err != nil {
		return fmt.Errorf("encoding equity curve: %w", err)
	}

	return util.Retry(ctx, busyAttempts, busyBaseDelay, isBusy, func() error {
		return s.saveRun(ctx, run, string(symbols), string(metrics), string(equity))
	})
}

func (s *SQLiteStore) saveRun(ctx context.Context, run *RunRecord, symbols, metrics, equity string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO backtests
			(id, name, strategy_name, symbols, start_date, end_date,
			 initial_capital, commission_rate, status, final_equity, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Name, run.Strategy, symbols, run.StartDate, run.EndDate,
		run.InitialCapital, run.CommissionRate, run.Status, run.FinalEquity,
		run.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting backtest %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO trades (backtest_id, seq, symbol, side, quantity, price, commission, date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, t := range run.Trades {
		if _, err := stmt.ExecContext(ctx, run.ID, i, t.Symbol, string(t.Side),
			t.Quantity, t.Price, t.Commission, t.Date); err != nil {
			return fmt.Errorf("inserting trade %d of %s: %w", i, run.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO backtest_results (backtest_id, metrics_json, equity_curve_json)
		 VALUES (?, ?, ?)`,
		run.ID, metrics, equity,
	)
	if err != nil {
		return fmt.Errorf("inserting results for %s: %w", run.ID, err)
	}

	return tx.Commit()
}

const summaryColumns = `id, name, strategy_name, symbols, start_date, end_date,
	initial_capital, commission_rate, status, final_equity, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner) (RunSummary, error) {
	var (
		sum       RunSummary
		symbols   string
		createdAt string
	)
	err := row.Scan(&sum.ID, &sum.Name, &sum.Strategy, &symbols, &sum.StartDate, &sum.EndDate,
		&sum.InitialCapital, &sum.CommissionRate, &sum.Status, &sum.FinalEquity, &createdAt)
	if err != nil {
		return sum, err
	}
	if err := json.Unmarshal([]byte(symbols), &sum.Symbols); err != nil {
		return sum, fmt.Errorf("decoding symbols of %s: %w", sum.ID, err)
	}
	if sum.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return sum, fmt.Errorf("decoding created_at of %s: %w", sum.ID, err)
	}
	return sum, nil
}

// GetRun retrieves a single run with its trades and results. It returns
// ErrNotFound if no run has the given ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+summaryColumns+` FROM backtests WHERE id = ?`, id)
	sum, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	run := &RunRecord{RunSummary: sum}

	var metrics, equity string
	err = s.db.QueryRowContext(ctx,
		`SELECT metrics_json, equity_curve_json FROM backtest_results WHERE backtest_id = ?`, id,
	).Scan(&metrics, &equity)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// results are optional for failed runs
	case err != nil:
		return nil, err
	default:
		if err := json.Unmarshal([]byte(metrics), &run.Metrics); err != nil {
			return nil, fmt.Errorf("decoding metrics of %s: %w", id, err)
		}
		if err := json.Unmarshal([]byte(equity), &run.EquityCurve); err != nil {
			return nil, fmt.Errorf("decoding equity curve of %s: %w", id, err)
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, side, quantity, price, commission, date
		 FROM trades WHERE backtest_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var t domain.Trade
		var side string
		if err := rows.Scan(&t.Symbol, &side, &t.Quantity, &t.Price, &t.Commission, &t.Date); err != nil {
			return nil, err
		}
		t.Side = domain.Side(side)
		run.Trades = append(run.Trades, t)
	}
	return run, rows.Err()
}

// ListRuns returns summaries of all stored runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+summaryColumns+` FROM backtests ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// DeleteRun removes a run with its trades and results. It returns
// ErrNotFound if no run has the given ID.
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	return util.Retry(ctx, busyAttempts, busyBaseDelay, isBusy, func() error {
		return s.deleteRun(ctx, id)
	})
}

func (s *SQLiteStore) deleteRun(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM backtest_results WHERE backtest_id = ?`,
		`DELETE FROM trades WHERE backtest_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return err
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM backtests WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return tx.Commit()
}
