package performance

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"vicitrade/internal/domain"
	"vicitrade/internal/portfolio"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want float64
	}{
		{"example", []float64{100, 120, 90, 110}, -25},
		{"never falls", []float64{100, 101, 102}, 0},
		{"empty", nil, 0},
		{"zero peak", []float64{0, 0, 0}, 0},
		{"two troughs", []float64{100, 80, 150, 105}, -30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaxDrawdown(tt.in); !approx(got, tt.want) {
				t.Errorf("MaxDrawdown(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMaxDrawdownExact(t *testing.T) {
	if got := MaxDrawdown([]float64{100, 120, 90, 110}); got != -25.0 {
		t.Errorf("MaxDrawdown = %v, want exactly -25", got)
	}
}

func TestAnnualizedReturn(t *testing.T) {
	if got := AnnualizedReturn([]float64{110}, 100); got != 0 {
		t.Errorf("single point = %v, want 0", got)
	}
	if got := AnnualizedReturn([]float64{50, 0}, 100); got != 0 {
		t.Errorf("zero final equity = %v, want 0", got)
	}

	equities := make([]float64, TradingDaysPerYear)
	for i := range equities {
		equities[i] = 100
	}
	equities[len(equities)-1] = 110
	if got := AnnualizedReturn(equities, 100); !approx(got, 10) {
		t.Errorf("one year at +10%% = %v, want 10", got)
	}
}

func TestSharpeRatio(t *testing.T) {
	if got := SharpeRatio([]float64{100}, 0); got != 0 {
		t.Errorf("single point = %v, want 0", got)
	}
	if got := SharpeRatio([]float64{100, 110}, 0); got != 0 {
		t.Errorf("single return = %v, want 0", got)
	}
	if got := SharpeRatio([]float64{100, 100, 100, 100}, 0); got != 0 {
		t.Errorf("flat curve = %v, want 0", got)
	}

	// returns 0.1, -0.1, 0.1: mean 1/30, sample std sqrt(0.04/3)
	eq := []float64{100, 110, 99, 108.9}
	mu := 0.1 / 3
	sd := math.Sqrt((2*math.Pow(0.1-mu, 2) + math.Pow(-0.1-mu, 2)) / 2)
	want := mu / sd * math.Sqrt(252)
	if got := SharpeRatio(eq, 0); math.Abs(got-want) > 1e-6 {
		t.Errorf("SharpeRatio = %v, want %v", got, want)
	}

	withRF := SharpeRatio(eq, 0.05)
	wantRF := (mu - 0.05/252) / sd * math.Sqrt(252)
	if math.Abs(withRF-wantRF) > 1e-6 {
		t.Errorf("SharpeRatio with rf = %v, want %v", withRF, wantRF)
	}
}

func TestRoundTrips_Example(t *testing.T) {
	p := portfolio.New(10000, 0.01)
	p.Buy("AAPL", 10, 100, "2024-01-02")
	p.Sell("AAPL", 10, 120, "2024-01-05")

	trips := RoundTrips(p.Trades())
	if len(trips) != 1 {
		t.Fatalf("RoundTrips returned %d trips, want 1", len(trips))
	}
	want := (10*120*0.99 - 10*100*1.01) / (10 * 100 * 1.01) * 100
	if !approx(trips[0].PnLPct, want) {
		t.Errorf("PnLPct = %v, want %v", trips[0].PnLPct, want)
	}
	if trips[0].BuyDate != "2024-01-02" || trips[0].SellDate != "2024-01-05" {
		t.Errorf("trip dates = %s..%s", trips[0].BuyDate, trips[0].SellDate)
	}

	m := Calculate(p)
	if m.WinRate != 100 || m.TotalTrades != 1 || m.WinningTrades != 1 {
		t.Errorf("metrics = %+v, want win rate 100 over 1 trade", m)
	}
	if !math.IsInf(m.ProfitFactor, 1) {
		t.Errorf("ProfitFactor = %v, want +Inf", m.ProfitFactor)
	}
}

func TestRoundTrips_FIFO(t *testing.T) {
	trades := []domain.Trade{
		{Symbol: "A", Side: domain.SideBuy, Quantity: 1, Price: 100, Date: "d1"},
		{Symbol: "B", Side: domain.SideSell, Quantity: 1, Price: 50, Date: "d1"},
		{Symbol: "A", Side: domain.SideBuy, Quantity: 1, Price: 200, Date: "d2"},
		{Symbol: "A", Side: domain.SideSell, Quantity: 1, Price: 150, Date: "d3"},
		{Symbol: "A", Side: domain.SideSell, Quantity: 1, Price: 150, Date: "d4"},
		{Symbol: "A", Side: domain.SideBuy, Quantity: 1, Price: 10, Date: "d5"},
	}
	trips := RoundTrips(trades)
	if len(trips) != 2 {
		t.Fatalf("RoundTrips returned %d trips, want 2", len(trips))
	}
	if trips[0].BuyDate != "d1" || !approx(trips[0].PnLPct, 50) {
		t.Errorf("first trip = %+v, want buy d1, +50%%", trips[0])
	}
	if trips[1].BuyDate != "d2" || !approx(trips[1].PnLPct, -25) {
		t.Errorf("second trip = %+v, want buy d2, -25%%", trips[1])
	}
}

func TestTradeStats(t *testing.T) {
	trips := []RoundTrip{
		{PnLPct: 10}, {PnLPct: 5}, {PnLPct: -3}, {PnLPct: 0}, {PnLPct: -2}, {PnLPct: 4},
	}
	var m Metrics
	applyTradeStats(&m, trips)

	if m.TotalTrades != 6 || m.WinningTrades != 3 || m.LosingTrades != 3 {
		t.Errorf("counts = %d/%d/%d, want 6/3/3", m.TotalTrades, m.WinningTrades, m.LosingTrades)
	}
	if !approx(m.WinRate, 50) {
		t.Errorf("WinRate = %v, want 50", m.WinRate)
	}
	if !approx(m.ProfitFactor, 19.0/5.0) {
		t.Errorf("ProfitFactor = %v, want 3.8", m.ProfitFactor)
	}
	if !approx(m.AvgTradeReturnPct, 14.0/6.0) {
		t.Errorf("AvgTradeReturnPct = %v, want %v", m.AvgTradeReturnPct, 14.0/6.0)
	}
	if m.MaxConsecutiveWins != 2 || m.MaxConsecutiveLosses != 3 {
		t.Errorf("streaks = %d/%d, want 2/3", m.MaxConsecutiveWins, m.MaxConsecutiveLosses)
	}
}

func TestTradeStats_BreakEvenOnly(t *testing.T) {
	var m Metrics
	applyTradeStats(&m, []RoundTrip{{PnLPct: 0}})
	if m.ProfitFactor != 0 {
		t.Errorf("ProfitFactor = %v, want 0", m.ProfitFactor)
	}
	if m.LosingTrades != 1 {
		t.Errorf("LosingTrades = %d, want 1", m.LosingTrades)
	}
}

func TestCalculate_Empty(t *testing.T) {
	m := Calculate(portfolio.New(1000, 0))
	if m != (Metrics{}) {
		t.Errorf("Calculate on empty history = %+v, want zero", m)
	}
}

func TestCalculate_Returns(t *testing.T) {
	p := portfolio.New(1000, 0)
	p.Buy("A", 10, 50, "2024-01-01")
	p.RecordEquity("2024-01-01", map[string]float64{"A": 50})
	p.RecordEquity("2024-01-02", map[string]float64{"A": 60})

	m := Calculate(p)
	if !approx(m.TotalReturn, 100) || !approx(m.TotalReturnPct, 10) {
		t.Errorf("returns = %v / %v%%, want 100 / 10%%", m.TotalReturn, m.TotalReturnPct)
	}
	if m.TotalTrades != 0 || m.ProfitFactor != 0 {
		t.Errorf("trade stats without trips = %+v", m)
	}
	if m.AnnualizedReturnPct <= 0 {
		t.Errorf("AnnualizedReturnPct = %v, want > 0", m.AnnualizedReturnPct)
	}
}

func TestRounded(t *testing.T) {
	m := Metrics{
		TotalReturn:  1234.5678,
		WinRate:      66.666666,
		SharpeRatio:  1.234567,
		ProfitFactor: math.Inf(1),
		TotalTrades:  3,
	}
	r := m.Rounded()
	if r.TotalReturn != 1234.57 {
		t.Errorf("TotalReturn = %v, want 1234.57", r.TotalReturn)
	}
	if r.WinRate != 66.67 {
		t.Errorf("WinRate = %v, want 66.67", r.WinRate)
	}
	if r.SharpeRatio != 1.2346 {
		t.Errorf("SharpeRatio = %v, want 1.2346", r.SharpeRatio)
	}
	if !math.IsInf(r.ProfitFactor, 1) {
		t.Errorf("ProfitFactor = %v, want +Inf", r.ProfitFactor)
	}
	if r.TotalTrades != 3 {
		t.Errorf("TotalTrades = %d, want 3", r.TotalTrades)
	}
}

func TestMetricsJSON(t *testing.T) {
	m := Metrics{TotalTrades: 2, WinRate: 100, ProfitFactor: math.Inf(1)}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"profit_factor":"inf"`) {
		t.Errorf("json = %s, want profit_factor \"inf\"", data)
	}
	if strings.Count(string(data), "profit_factor") != 1 {
		t.Errorf("json = %s, want a single profit_factor key", data)
	}

	var back Metrics
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !math.IsInf(back.ProfitFactor, 1) || back.TotalTrades != 2 || back.WinRate != 100 {
		t.Errorf("decoded = %+v", back)
	}

	finite, _ := json.Marshal(Metrics{ProfitFactor: 1.5})
	if !strings.Contains(string(finite), `"profit_factor":1.5`) {
		t.Errorf("json = %s, want numeric profit_factor", finite)
	}
}
