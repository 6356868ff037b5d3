package performance

import (
	"math"

	"github.com/shopspring/decimal"
)

// Presentation precision, in decimal places.
const (
	pctPlaces   = 2
	ratioPlaces = 4
)

// Rounded returns a copy of m with monetary and percentage figures rounded
// to two decimal places and the Sharpe ratio and profit factor rounded to
// four. An infinite profit factor is kept as is.
func (m Metrics) Rounded() Metrics {
	r := m
	r.TotalReturn = round(m.TotalReturn, pctPlaces)
	r.TotalReturnPct = round(m.TotalReturnPct, pctPlaces)
	r.AnnualizedReturnPct = round(m.AnnualizedReturnPct, pctPlaces)
	r.MaxDrawdownPct = round(m.MaxDrawdownPct, pctPlaces)
	r.WinRate = round(m.WinRate, pctPlaces)
	r.AvgTradeReturnPct = round(m.AvgTradeReturnPct, pctPlaces)
	r.SharpeRatio = round(m.SharpeRatio, ratioPlaces)
	r.ProfitFactor = round(m.ProfitFactor, ratioPlaces)
	return r
}

// round rounds v half away from zero. Non-finite values pass through.
func round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}
