package builtins

import (
	"fmt"

	"vicitrade/internal/domain"
	"vicitrade/internal/indicator"
	"vicitrade/internal/portfolio"
	"vicitrade/internal/strategy"
)

// SMACrossoverName is the registry name of SMACrossover.
const SMACrossoverName = "sma-crossover"

// Compile-time interface check.
var _ strategy.Strategy = (*SMACrossover)(nil)

// SMACrossover holds a fixed-size position in each symbol while its short
// simple moving average is above its long one.
//
// Parameters: short_period (50), long_period (200), position_size (100).
type SMACrossover struct {
	strategy.Base

	shortPeriod int
	longPeriod  int
	size        float64
	shortCol    string
	longCol     string
}

// NewSMACrossover builds an SMACrossover from params.
func NewSMACrossover(params strategy.Params) (strategy.Strategy, error) {
	short, err := period(params, "short_period", 50)
	if err != nil {
		return nil, err
	}
	long, err := period(params, "long_period", 200)
	if err != nil {
		return nil, err
	}
	if short >= long {
		return nil, fmt.Errorf("%w: short_period %d must be below long_period %d", ErrInvalidParams, short, long)
	}
	size, err := positive(params, "position_size", 100)
	if err != nil {
		return nil, err
	}
	return &SMACrossover{
		shortPeriod: short,
		longPeriod:  long,
		size:        size,
		shortCol:    periodColumn("sma", short),
		longCol:     periodColumn("sma", long),
	}, nil
}

// Name returns "sma-crossover".
func (s *SMACrossover) Name() string {
	return SMACrossoverName
}

// Indicators requests the short and long SMA columns.
func (s *SMACrossover) Indicators() []domain.IndicatorConfig {
	return []domain.IndicatorConfig{
		{Name: "sma", Params: map[string]float64{"period": float64(s.shortPeriod)}},
		{Name: "sma", Params: map[string]float64{"period": float64(s.longPeriod)}},
	}
}

// OnBar buys position_size shares of a flat symbol whose short SMA is above
// its long SMA and closes an open position when the short SMA drops below.
// Symbols still inside the long warm-up window are left alone.
func (s *SMACrossover) OnBar(date string, bars map[string]indicator.Row, p *portfolio.Portfolio) error {
	for _, sym := range sortedSymbols(bars) {
		row := bars[sym]
		if !row.Defined(s.shortCol) || !row.Defined(s.longCol) {
			continue
		}
		short, long := row.Value(s.shortCol), row.Value(s.longCol)
		pos := p.Position(sym)

		switch {
		case short > long && !pos.IsOpen():
			p.Buy(sym, s.size, row.Close(), date)
		case short < long && pos.IsOpen():
			p.Sell(sym, pos.Quantity, row.Close(), date)
		}
	}
	return nil
}
