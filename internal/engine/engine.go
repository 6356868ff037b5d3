// Package engine replays aligned daily price series through a strategy,
// driving a portfolio one trading date at a time.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"vicitrade/internal/domain"
	"vicitrade/internal/indicator"
	"vicitrade/internal/portfolio"
	"vicitrade/internal/util"
)

var (
	// ErrInvalidRequest marks a run that cannot start. Every configuration
	// failure below wraps it.
	ErrInvalidRequest = errors.New("invalid backtest request")

	// ErrNoData is returned when the run has no symbols.
	ErrNoData = errors.New("no price data")

	// ErrNoOverlap is returned when the symbols share no trading date.
	ErrNoOverlap = errors.New("no overlapping trading dates")
)

// Strategy is the set of hooks the engine drives during a run. Hooks run
// sequentially on the engine's goroutine; a returned error aborts the run.
type Strategy interface {
	Name() string
	Indicators() []domain.IndicatorConfig
	OnStart(p *portfolio.Portfolio, symbols []string) error
	OnBar(date string, bars map[string]indicator.Row, p *portfolio.Portfolio) error
	OnEnd(p *portfolio.Portfolio) error
}

// Params are the monetary settings of a run.
type Params struct {
	InitialCapital float64
	CommissionRate float64
}

// Validate checks that capital is positive and the commission rate lies in
// [0, 1).
func (p Params) Validate() error {
	if !(p.InitialCapital > 0) {
		return fmt.Errorf("%w: initial capital must be positive, got %v", ErrInvalidRequest, p.InitialCapital)
	}
	if !(p.CommissionRate >= 0 && p.CommissionRate < 1) {
		return fmt.Errorf("%w: commission rate must be in [0, 1), got %v", ErrInvalidRequest, p.CommissionRate)
	}
	return nil
}

// Engine runs backtests. It holds no per-run state, so a single Engine may
// serve concurrent runs as long as each run has its own Strategy instance.
type Engine struct {
	logger *slog.Logger
}

// New creates an Engine. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Engine {
	return &Engine{logger: util.OrDefault(logger)}
}

// Run simulates strat over data, which maps each symbol to its bars in
// ascending date order. Indicators requested by the strategy are computed
// once per symbol against reg (nil resolves built-ins only) before any
// portfolio exists. Only dates present for every symbol are simulated.
//
// Trades placed in OnBar are reflected in the same date's equity snapshot.
// Cancellation of ctx is observed between dates.
func (e *Engine) Run(
	ctx context.Context,
	data map[string][]domain.Bar,
	strat Strategy,
	params Params,
	reg *indicator.Registry,
) (*portfolio.Portfolio, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, ErrNoData)
	}
	if strat == nil {
		return nil, fmt.Errorf("%w: nil strategy", ErrInvalidRequest)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	frames, err := e.prepare(data, strat, reg)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, ErrNoData)
	}

	symbols := make([]string, 0, len(frames))
	dateSets := make([][]string, 0, len(frames))
	for sym, f := range frames {
		symbols = append(symbols, sym)
		dateSets = append(dateSets, f.Dates())
	}
	sort.Strings(symbols)

	cal := util.NewTradingCalendar(dateSets...)
	if cal.Empty() {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, ErrNoOverlap)
	}

	e.logger.Info("backtest starting",
		"strategy", strat.Name(),
		"symbols", symbols,
		"trading_days", cal.Len(),
		"first", cal.First(),
		"last", cal.Last(),
	)

	p := portfolio.New(params.InitialCapital, params.CommissionRate)
	if err := strat.OnStart(p, append([]string(nil), symbols...)); err != nil {
		return nil, fmt.Errorf("%s on start: %w", strat.Name(), err)
	}

	for _, date := range cal.Days() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest interrupted at %s: %w", date, err)
		}

		bars := make(map[string]indicator.Row, len(symbols))
		prices := make(map[string]float64, len(symbols))
		for _, sym := range symbols {
			f := frames[sym]
			i, ok := f.Index(date)
			if !ok {
				continue
			}
			row := f.Row(i)
			bars[sym] = row
			prices[sym] = row.Close()
		}

		if err := strat.OnBar(date, bars, p); err != nil {
			return nil, fmt.Errorf("%s on bar %s: %w", strat.Name(), date, err)
		}
		p.RecordEquity(date, prices)
	}

	if err := strat.OnEnd(p); err != nil {
		return nil, fmt.Errorf("%s on end: %w", strat.Name(), err)
	}

	final := 0.0
	if hist := p.EquityHistory(); len(hist) > 0 {
		final = hist[len(hist)-1].Equity
	}
	e.logger.Info("backtest finished",
		"strategy", strat.Name(),
		"trades", len(p.Trades()),
		"final_equity", final,
	)
	return p, nil
}

// prepare builds one frame per non-empty symbol and attaches the strategy's
// indicators. Any indicator failure aborts the whole run.
func (e *Engine) prepare(data map[string][]domain.Bar, strat Strategy, reg *indicator.Registry) (map[string]*indicator.Frame, error) {
	symbols := make([]string, 0, len(data))
	for sym := range data {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	configs := strat.Indicators()
	frames := make(map[string]*indicator.Frame, len(symbols))
	for _, sym := range symbols {
		bars := data[sym]
		if len(bars) == 0 {
			e.logger.Warn("skipping symbol with no data", "symbol", sym)
			continue
		}

		f := indicator.NewFrame(sym, bars)
		if len(configs) > 0 {
			computed, err := indicator.Compute(f, configs, reg)
			if err != nil {
				return nil, fmt.Errorf("indicators for %s: %w", sym, err)
			}
			f = computed
		}
		frames[sym] = f
	}
	return frames, nil
}
