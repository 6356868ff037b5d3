// Package domain defines the core value types shared by the backtest engine,
// the portfolio ledger, the performance calculator, and the storage adapters.
package domain

import "time"

// DateLayout is the canonical textual form of a trading date. Trades and
// equity snapshots carry dates in this layout so that run output does not
// depend on time zones.
const DateLayout = "2006-01-02"

// ---------------------------------------------------------------------------
// Price data
// ---------------------------------------------------------------------------

// Bar is one day of OHLCV data for a single symbol.
type Bar struct {
	Symbol string
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// DateKey returns the bar's date formatted with DateLayout.
func (b Bar) DateKey() string {
	return b.Date.UTC().Format(DateLayout)
}

// IndicatorConfig names an indicator to precompute over a symbol's series.
// Column selects the source column for single-input indicators and defaults
// to "close" when empty.
type IndicatorConfig struct {
	Name   string             `yaml:"name" json:"name"`
	Params map[string]float64 `yaml:"params,omitempty" json:"params,omitempty"`
	Column string             `yaml:"column,omitempty" json:"column,omitempty"`
}

// SourceColumn returns the configured source column, or "close".
func (c IndicatorConfig) SourceColumn() string {
	if c.Column == "" {
		return "close"
	}
	return c.Column
}

// ---------------------------------------------------------------------------
// Ledger types
// ---------------------------------------------------------------------------

// Side is the direction of an executed trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Trade records a single executed fill. Trades are never mutated after they
// are appended to a portfolio's log.
type Trade struct {
	Symbol     string  `json:"symbol"`
	Side       Side    `json:"side"`
	Quantity   float64 `json:"quantity"`
	Price      float64 `json:"price"`
	Commission float64 `json:"commission"`
	Date       string  `json:"date"`
}

// Position is the current holding in one symbol. A flat position has zero
// quantity, average price, and cost basis.
type Position struct {
	Symbol    string  `json:"symbol"`
	Quantity  float64 `json:"quantity"`
	AvgPrice  float64 `json:"avg_price"`
	CostBasis float64 `json:"cost_basis"`
}

// IsOpen reports whether the position holds any shares.
func (p Position) IsOpen() bool {
	return p.Quantity > 0
}

// MarketValue returns the position's value at the given price.
func (p Position) MarketValue(price float64) float64 {
	return p.Quantity * price
}

// UnrealizedPnL returns the market value at price minus the committed cost
// basis.
func (p Position) UnrealizedPnL(price float64) float64 {
	return p.MarketValue(price) - p.CostBasis
}

// EquityPoint is one snapshot on the equity curve.
type EquityPoint struct {
	Date   string  `json:"date"`
	Equity float64 `json:"equity"`
	Cash   float64 `json:"cash"`
}
