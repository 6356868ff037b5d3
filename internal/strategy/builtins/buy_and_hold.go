package builtins

import (
	"math"

	"vicitrade/internal/indicator"
	"vicitrade/internal/portfolio"
	"vicitrade/internal/strategy"
)

// BuyAndHoldName is the registry name of BuyAndHold.
const BuyAndHoldName = "buy-and-hold"

var _ strategy.Strategy = (*BuyAndHold)(nil)

// BuyAndHold splits its starting cash equally across all symbols on the
// first bar, buying whole shares, and never trades again. It takes no
// parameters.
type BuyAndHold struct {
	strategy.Base
	invested bool
}

// NewBuyAndHold builds a BuyAndHold.
func NewBuyAndHold(strategy.Params) (strategy.Strategy, error) {
	return &BuyAndHold{}, nil
}

func (s *BuyAndHold) Name() string { return BuyAndHoldName }

func (s *BuyAndHold) OnBar(date string, bars map[string]indicator.Row, p *portfolio.Portfolio) error {
	if s.invested || len(bars) == 0 {
		return nil
	}
	s.invested = true

	budget := p.Cash() / float64(len(bars))
	for _, sym := range sortedSymbols(bars) {
		price := bars[sym].Close()
		if !(price > 0) {
			continue
		}
		qty := math.Floor(budget / (price * (1 + p.CommissionRate())))
		if qty > 0 {
			p.Buy(sym, qty, price, date)
		}
	}
	return nil
}
