// Package portfolio implements the cash and position ledger driven by a
// strategy during one backtest run.
package portfolio

import (
	"sort"

	"vicitrade/internal/domain"
)

// flatEpsilon is the residual quantity below which a position is treated as
// fully closed.
const flatEpsilon = 1e-9

// Portfolio tracks cash, open positions, the executed trade log, and the
// equity curve of a single run. Cash never goes negative: orders that cannot
// be funded or covered are rejected without changing state.
//
// A Portfolio is owned by exactly one run and is not safe for concurrent use.
type Portfolio struct {
	initialCapital float64
	commissionRate float64
	cash           float64

	positions map[string]*domain.Position
	trades    []domain.Trade
	equity    []domain.EquityPoint
}

// New creates a Portfolio holding initialCapital in cash.
func New(initialCapital, commissionRate float64) *Portfolio {
	return &Portfolio{
		initialCapital: initialCapital,
		commissionRate: commissionRate,
		cash:           initialCapital,
		positions:      make(map[string]*domain.Position),
	}
}

// InitialCapital returns the starting cash.
func (p *Portfolio) InitialCapital() float64 { return p.initialCapital }

// CommissionRate returns the flat commission charged on trade notional.
func (p *Portfolio) CommissionRate() float64 { return p.commissionRate }

// Cash returns the uninvested cash balance.
func (p *Portfolio) Cash() float64 { return p.cash }

// position returns the live position for symbol, creating a flat one on
// first access.
func (p *Portfolio) position(symbol string) *domain.Position {
	pos, ok := p.positions[symbol]
	if !ok {
		pos = &domain.Position{Symbol: symbol}
		p.positions[symbol] = pos
	}
	return pos
}

// Position returns a copy of the position in symbol. Unknown symbols yield a
// flat position.
func (p *Portfolio) Position(symbol string) domain.Position {
	return *p.position(symbol)
}

// Positions returns copies of every tracked position, sorted by symbol.
func (p *Portfolio) Positions() []domain.Position {
	out := make([]domain.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Trades returns the executed trades in execution order.
func (p *Portfolio) Trades() []domain.Trade {
	out := make([]domain.Trade, len(p.trades))
	copy(out, p.trades)
	return out
}

// EquityHistory returns the recorded equity snapshots in date order.
func (p *Portfolio) EquityHistory() []domain.EquityPoint {
	out := make([]domain.EquityPoint, len(p.equity))
	copy(out, p.equity)
	return out
}

// ---------------------------------------------------------------------------
// Execution
// ---------------------------------------------------------------------------

// Buy purchases quantity shares of symbol at price. The order is rejected,
// returning (nil, false) with no state change, when quantity or price is not
// positive or when cost plus commission exceeds available cash.
func (p *Portfolio) Buy(symbol string, quantity, price float64, date string) (*domain.Trade, bool) {
	if quantity <= 0 || price <= 0 {
		return nil, false
	}
	cost := quantity * price
	commission := cost * p.commissionRate
	if cost+commission > p.cash {
		return nil, false
	}

	p.cash -= cost + commission

	pos := p.position(symbol)
	pos.CostBasis += cost
	pos.Quantity += quantity
	pos.AvgPrice = pos.CostBasis / pos.Quantity

	return p.record(symbol, domain.SideBuy, quantity, price, commission, date), true
}

// Sell disposes of quantity shares of symbol at price. The order is rejected,
// returning (nil, false) with no state change, when quantity or price is not
// positive or when quantity exceeds the held position.
//
// Cost basis is reduced in proportion to the fraction of the position sold;
// realized profit is not tracked on the position.
func (p *Portfolio) Sell(symbol string, quantity, price float64, date string) (*domain.Trade, bool) {
	if quantity <= 0 || price <= 0 {
		return nil, false
	}
	pos, ok := p.positions[symbol]
	if !ok || quantity > pos.Quantity {
		return nil, false
	}

	revenue := quantity * price
	commission := revenue * p.commissionRate
	p.cash += revenue - commission

	ratio := quantity / pos.Quantity
	pos.CostBasis -= pos.CostBasis * ratio
	pos.Quantity -= quantity
	if pos.Quantity < flatEpsilon {
		pos.Quantity = 0
		pos.CostBasis = 0
		pos.AvgPrice = 0
	}

	return p.record(symbol, domain.SideSell, quantity, price, commission, date), true
}

func (p *Portfolio) record(symbol string, side domain.Side, quantity, price, commission float64, date string) *domain.Trade {
	p.trades = append(p.trades, domain.Trade{
		Symbol:     symbol,
		Side:       side,
		Quantity:   quantity,
		Price:      price,
		Commission: commission,
		Date:       date,
	})
	t := p.trades[len(p.trades)-1]
	return &t
}

// ---------------------------------------------------------------------------
// Valuation
// ---------------------------------------------------------------------------

// TotalEquity returns cash plus the market value of every open position that
// has an entry in prices. Positions without a price are left out.
func (p *Portfolio) TotalEquity(prices map[string]float64) float64 {
	symbols := make([]string, 0, len(p.positions))
	for sym := range p.positions {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	total := p.cash
	for _, sym := range symbols {
		pos := p.positions[sym]
		if !pos.IsOpen() {
			continue
		}
		if price, ok := prices[sym]; ok {
			total += pos.MarketValue(price)
		}
	}
	return total
}

// RecordEquity appends an equity snapshot for date valued at prices.
func (p *Portfolio) RecordEquity(date string, prices map[string]float64) domain.EquityPoint {
	pt := domain.EquityPoint{
		Date:   date,
		Equity: p.TotalEquity(prices),
		Cash:   p.cash,
	}
	p.equity = append(p.equity, pt)
	return pt
}
