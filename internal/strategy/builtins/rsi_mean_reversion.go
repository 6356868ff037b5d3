package builtins

import (
	"fmt"

	"vicitrade/internal/domain"
	"vicitrade/internal/indicator"
	"vicitrade/internal/portfolio"
	"vicitrade/internal/strategy"
)

// RSIMeanReversionName is the registry name of RSIMeanReversion.
const RSIMeanReversionName = "rsi-mean-reversion"

var _ strategy.Strategy = (*RSIMeanReversion)(nil)

// RSIMeanReversion buys oversold symbols and exits once they turn
// overbought.
//
// Parameters: rsi_period (14), oversold (30), overbought (70),
// position_size (100).
type RSIMeanReversion struct {
	strategy.Base

	period     int
	oversold   float64
	overbought float64
	size       float64
	col        string
}

// NewRSIMeanReversion builds an RSIMeanReversion from params.
func NewRSIMeanReversion(params strategy.Params) (strategy.Strategy, error) {
	n, err := period(params, "rsi_period", 14)
	if err != nil {
		return nil, err
	}
	oversold := params.Get("oversold", 30)
	overbought := params.Get("overbought", 70)
	if !(oversold >= 0 && oversold < overbought && overbought <= 100) {
		return nil, fmt.Errorf("%w: need 0 <= oversold < overbought <= 100, got %v and %v",
			ErrInvalidParams, oversold, overbought)
	}
	size, err := positive(params, "position_size", 100)
	if err != nil {
		return nil, err
	}
	return &RSIMeanReversion{
		period:     n,
		oversold:   oversold,
		overbought: overbought,
		size:       size,
		col:        periodColumn("rsi", n),
	}, nil
}

func (s *RSIMeanReversion) Name() string { return RSIMeanReversionName }

func (s *RSIMeanReversion) Indicators() []domain.IndicatorConfig {
	return []domain.IndicatorConfig{
		{Name: "rsi", Params: map[string]float64{"period": float64(s.period)}},
	}
}

// OnBar buys position_size shares when RSI falls below oversold with no
// position held and sells the whole position when RSI rises above
// overbought.
func (s *RSIMeanReversion) OnBar(date string, bars map[string]indicator.Row, p *portfolio.Portfolio) error {
	for _, sym := range sortedSymbols(bars) {
		row := bars[sym]
		if !row.Defined(s.col) {
			continue
		}
		rsi := row.Value(s.col)
		pos := p.Position(sym)

		switch {
		case rsi < s.oversold && !pos.IsOpen():
			p.Buy(sym, s.size, row.Close(), date)
		case rsi > s.overbought && pos.IsOpen():
			p.Sell(sym, pos.Quantity, row.Close(), date)
		}
	}
	return nil
}
