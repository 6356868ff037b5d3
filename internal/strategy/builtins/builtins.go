// Package builtins provides the strategy implementations that ship with
// vicitrade.
package builtins

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"vicitrade/internal/indicator"
	"vicitrade/internal/strategy"
)

// ErrInvalidParams is returned by a factory given unusable parameters.
var ErrInvalidParams = errors.New("invalid strategy parameters")

// Register adds every built-in strategy to reg.
func Register(reg *strategy.Registry) {
	reg.Register(SMACrossoverName, NewSMACrossover)
	reg.Register(RSIMeanReversionName, NewRSIMeanReversion)
	reg.Register(BuyAndHoldName, NewBuyAndHold)
}

// NewRegistry returns a registry holding every built-in strategy.
func NewRegistry() *strategy.Registry {
	reg := strategy.NewRegistry()
	Register(reg)
	return reg
}

// period reads a positive integer parameter.
func period(params strategy.Params, key string, def float64) (int, error) {
	v := params.Get(key, def)
	if v < 1 || v != math.Trunc(v) {
		return 0, fmt.Errorf("%w: %s must be a positive integer, got %v", ErrInvalidParams, key, v)
	}
	return int(v), nil
}

// positive reads a strictly positive parameter.
func positive(params strategy.Params, key string, def float64) (float64, error) {
	v := params.Get(key, def)
	if !(v > 0) {
		return 0, fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidParams, key, v)
	}
	return v, nil
}

func periodColumn(name string, n int) string {
	return indicator.ColumnName(name, map[string]float64{"period": float64(n)})
}

func sortedSymbols(bars map[string]indicator.Row) []string {
	symbols := make([]string, 0, len(bars))
	for sym := range bars {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols
}
