// Package store defines storage interfaces for price bars and completed
// backtest runs, with Parquet and SQLite implementations.
package store

import (
	"context"
	"errors"
	"time"

	"vicitrade/internal/domain"
	"vicitrade/internal/performance"
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("not found")

// BarStore persists and retrieves daily OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars to storage, replacing any bar with
	// the same symbol and date.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol within [start, end], sorted
	// ascending by date.
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols with stored bars.
	ListSymbols(ctx context.Context) ([]string, error)
}

// ResultStore persists and retrieves completed backtest runs.
type ResultStore interface {
	// SaveRun stores a run with its trades, metrics, and equity curve.
	SaveRun(ctx context.Context, run *RunRecord) error

	// GetRun retrieves a single run by its ID.
	GetRun(ctx context.Context, id string) (*RunRecord, error)

	// ListRuns returns summaries of all stored runs, newest first.
	ListRuns(ctx context.Context) ([]RunSummary, error)

	// DeleteRun removes a run and everything stored with it.
	DeleteRun(ctx context.Context, id string) error
}

// Run statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// RunSummary describes a stored run without its ledger.
type RunSummary struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Strategy       string    `json:"strategy"`
	Symbols        []string  `json:"symbols"`
	StartDate      string    `json:"start_date"`
	EndDate        string    `json:"end_date"`
	InitialCapital float64   `json:"initial_capital"`
	CommissionRate float64   `json:"commission_rate"`
	Status         string    `json:"status"`
	FinalEquity    float64   `json:"final_equity"`
	CreatedAt      time.Time `json:"created_at"`
}

// RunRecord is a completed run as persisted: its request, outcome, and full
// ledger.
type RunRecord struct {
	RunSummary

	Metrics     performance.Metrics  `json:"metrics"`
	Trades      []domain.Trade       `json:"trades"`
	EquityCurve []domain.EquityPoint `json:"equity_curve"`
}
