// Package performance derives summary statistics from a finished portfolio:
// returns, drawdown, Sharpe ratio, and round-trip trade statistics.
package performance

import (
	"encoding/json"
	"math"

	"vicitrade/internal/domain"
	"vicitrade/internal/portfolio"
)

// TradingDaysPerYear annualizes daily figures.
const TradingDaysPerYear = 252

// Metrics summarizes a completed backtest. Values are unrounded; see
// Rounded for presentation precision.
type Metrics struct {
	TotalReturn          float64 `json:"total_return"`
	TotalReturnPct       float64 `json:"total_return_pct"`
	AnnualizedReturnPct  float64 `json:"annualized_return_pct"`
	MaxDrawdownPct       float64 `json:"max_drawdown_pct"`
	WinRate              float64 `json:"win_rate"`
	TotalTrades          int     `json:"total_trades"`
	WinningTrades        int     `json:"winning_trades"`
	LosingTrades         int     `json:"losing_trades"`
	SharpeRatio          float64 `json:"sharpe_ratio"`
	ProfitFactor         float64 `json:"profit_factor"`
	AvgTradeReturnPct    float64 `json:"avg_trade_return_pct"`
	MaxConsecutiveWins   int     `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
}

type options struct {
	riskFreeRate float64
}

// Option configures Calculate.
type Option func(*options)

// WithRiskFreeRate sets the annual risk-free rate used by the Sharpe ratio.
// The default is zero.
func WithRiskFreeRate(rate float64) Option {
	return func(o *options) { o.riskFreeRate = rate }
}

// Calculate computes Metrics from p's equity history and trade log. An empty
// equity history yields zero-valued Metrics.
func Calculate(p *portfolio.Portfolio, opts ...Option) Metrics {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	curve := p.EquityHistory()
	if len(curve) == 0 {
		return Metrics{}
	}
	equities := make([]float64, len(curve))
	for i, pt := range curve {
		equities[i] = pt.Equity
	}

	initial := p.InitialCapital()
	final := equities[len(equities)-1]

	m := Metrics{
		TotalReturn:         final - initial,
		TotalReturnPct:      (final - initial) / initial * 100,
		AnnualizedReturnPct: AnnualizedReturn(equities, initial),
		MaxDrawdownPct:      MaxDrawdown(equities),
		SharpeRatio:         SharpeRatio(equities, o.riskFreeRate),
	}
	applyTradeStats(&m, RoundTrips(p.Trades()))
	return m
}

// AnnualizedReturn compounds the total return over len(equities)/252 years.
// It is zero for fewer than two points or a non-positive final ratio.
func AnnualizedReturn(equities []float64, initialCapital float64) float64 {
	if len(equities) < 2 || initialCapital <= 0 {
		return 0
	}
	ratio := equities[len(equities)-1] / initialCapital
	years := float64(len(equities)) / TradingDaysPerYear
	if years <= 0 || ratio <= 0 {
		return 0
	}
	return (math.Pow(ratio, 1/years) - 1) * 100
}

// MaxDrawdown returns the most negative percentage decline from a running
// peak, seeded at the first point. It is zero for a curve that never falls.
func MaxDrawdown(equities []float64) float64 {
	if len(equities) == 0 {
		return 0
	}
	peak := equities[0]
	worst := 0.0
	for _, e := range equities {
		if e > peak {
			peak = e
		}
		dd := 0.0
		if peak > 0 {
			dd = (e - peak) / peak * 100
		}
		if dd < worst {
			worst = dd
		}
	}
	return worst
}

// SharpeRatio annualizes the mean over the sample standard deviation of
// daily excess returns. It is zero when fewer than two daily returns exist
// or the returns have no variance.
func SharpeRatio(equities []float64, riskFreeRate float64) float64 {
	if len(equities) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(equities)-1)
	for i := 1; i < len(equities); i++ {
		returns = append(returns, equities[i]/equities[i-1]-1)
	}
	if len(returns) < 2 {
		return 0
	}

	sd := sampleStd(returns)
	if sd == 0 || math.IsNaN(sd) {
		return 0
	}

	dailyRF := riskFreeRate / TradingDaysPerYear
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - dailyRF
	}
	return mean(excess) / sampleStd(excess) * math.Sqrt(TradingDaysPerYear)
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func sampleStd(xs []float64) float64 {
	mu := mean(xs)
	ss := 0.0
	for _, x := range xs {
		d := x - mu
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// ---------------------------------------------------------------------------
// Round trips
// ---------------------------------------------------------------------------

// RoundTrip is a BUY matched with a later SELL of the same symbol.
type RoundTrip struct {
	Symbol   string  `json:"symbol"`
	BuyDate  string  `json:"buy_date"`
	SellDate string  `json:"sell_date"`
	PnLPct   float64 `json:"pnl_pct"`
}

// Win reports whether the trip made money. Break-even trips count as losses.
func (rt RoundTrip) Win() bool {
	return rt.PnLPct > 0
}

// RoundTrips pairs trades first-in first-out per symbol. Each SELL consumes
// the oldest unmatched BUY regardless of quantity; the percentage P&L
// compares the sell's net revenue with the buy's cost including commission.
// Unmatched buys and sells produce no trip. Trips are returned in SELL order.
func RoundTrips(trades []domain.Trade) []RoundTrip {
	open := make(map[string][]domain.Trade)
	var trips []RoundTrip

	for _, t := range trades {
		switch t.Side {
		case domain.SideBuy:
			open[t.Symbol] = append(open[t.Symbol], t)
		case domain.SideSell:
			queue := open[t.Symbol]
			if len(queue) == 0 {
				continue
			}
			buy := queue[0]
			open[t.Symbol] = queue[1:]

			cost := buy.Quantity*buy.Price + buy.Commission
			revenue := t.Quantity*t.Price - t.Commission
			trips = append(trips, RoundTrip{
				Symbol:   t.Symbol,
				BuyDate:  buy.Date,
				SellDate: t.Date,
				PnLPct:   (revenue - cost) / cost * 100,
			})
		}
	}
	return trips
}

func applyTradeStats(m *Metrics, trips []RoundTrip) {
	if len(trips) == 0 {
		return
	}

	var gains, losses, total float64
	var wins, streakW, streakL int
	for _, rt := range trips {
		total += rt.PnLPct
		if rt.Win() {
			wins++
			gains += rt.PnLPct
			streakW++
			streakL = 0
		} else {
			losses += rt.PnLPct
			streakL++
			streakW = 0
		}
		m.MaxConsecutiveWins = max(m.MaxConsecutiveWins, streakW)
		m.MaxConsecutiveLosses = max(m.MaxConsecutiveLosses, streakL)
	}

	n := len(trips)
	m.TotalTrades = n
	m.WinningTrades = wins
	m.LosingTrades = n - wins
	m.WinRate = float64(wins) / float64(n) * 100
	m.AvgTradeReturnPct = total / float64(n)

	losses = math.Abs(losses)
	switch {
	case losses > 0:
		m.ProfitFactor = gains / losses
	case gains > 0:
		m.ProfitFactor = math.Inf(1)
	}
}

// ---------------------------------------------------------------------------
// JSON
// ---------------------------------------------------------------------------

// infString stands in for an infinite profit factor, which JSON cannot
// represent.
const infString = "inf"

// MarshalJSON encodes an infinite profit factor as the string "inf".
func (m Metrics) MarshalJSON() ([]byte, error) {
	type plain Metrics
	out := struct {
		plain
		ProfitFactor any `json:"profit_factor"`
	}{plain: plain(m), ProfitFactor: m.ProfitFactor}
	if math.IsInf(m.ProfitFactor, 1) {
		out.ProfitFactor = infString
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the encoding produced by MarshalJSON.
func (m *Metrics) UnmarshalJSON(data []byte) error {
	type plain Metrics
	in := struct {
		*plain
		ProfitFactor any `json:"profit_factor"`
	}{plain: (*plain)(m)}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch v := in.ProfitFactor.(type) {
	case float64:
		m.ProfitFactor = v
	case string:
		if v == infString {
			m.ProfitFactor = math.Inf(1)
		}
	}
	return nil
}
