package engine

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"
	"time"

	"vicitrade/internal/domain"
	"vicitrade/internal/indicator"
	"vicitrade/internal/portfolio"
)

func bar(symbol string, day int, close float64) domain.Bar {
	return domain.Bar{
		Symbol: symbol,
		Date:   time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
		Open:   close,
		High:   close + 1,
		Low:    close - 1,
		Close:  close,
		Volume: 1000,
	}
}

// recorder logs every hook call and buys one share of each symbol on the
// first bar.
type recorder struct {
	indicators []domain.IndicatorConfig
	calls      []string
	seen       []map[string]indicator.Row
	failOn     string
}

func (r *recorder) Name() string                         { return "recorder" }
func (r *recorder) Indicators() []domain.IndicatorConfig { return r.indicators }

func (r *recorder) OnStart(_ *portfolio.Portfolio, symbols []string) error {
	r.calls = append(r.calls, "start")
	return nil
}

func (r *recorder) OnBar(date string, bars map[string]indicator.Row, p *portfolio.Portfolio) error {
	if date == r.failOn {
		return errors.New("boom")
	}
	r.calls = append(r.calls, date)
	r.seen = append(r.seen, bars)
	if len(r.seen) == 1 {
		symbols := make([]string, 0, len(bars))
		for sym := range bars {
			symbols = append(symbols, sym)
		}
		sort.Strings(symbols)
		for _, sym := range symbols {
			p.Buy(sym, 1, bars[sym].Close(), date)
		}
	}
	return nil
}

func (r *recorder) OnEnd(_ *portfolio.Portfolio) error {
	r.calls = append(r.calls, "end")
	return nil
}

var defaultParams = Params{InitialCapital: 10000, CommissionRate: 0.001}

func TestRun_IntersectsCalendars(t *testing.T) {
	data := map[string][]domain.Bar{
		"A": {bar("A", 1, 10), bar("A", 2, 11), bar("A", 3, 12)},
		"B": {bar("B", 2, 20), bar("B", 3, 21), bar("B", 4, 22)},
	}
	strat := &recorder{}

	p, err := New(nil).Run(context.Background(), data, strat, defaultParams, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	hist := p.EquityHistory()
	if len(hist) != 2 {
		t.Fatalf("equity history length = %d, want 2", len(hist))
	}
	if hist[0].Date != "2024-01-02" || hist[1].Date != "2024-01-03" {
		t.Errorf("equity dates = %s, %s, want 2024-01-02, 2024-01-03", hist[0].Date, hist[1].Date)
	}

	wantCalls := []string{"start", "2024-01-02", "2024-01-03", "end"}
	if !reflect.DeepEqual(strat.calls, wantCalls) {
		t.Errorf("hook calls = %v, want %v", strat.calls, wantCalls)
	}
	for i, bars := range strat.seen {
		if len(bars) != 2 {
			t.Errorf("bar %d has %d symbols, want 2", i, len(bars))
		}
	}
}

func TestRun_SameDayFillInEquity(t *testing.T) {
	data := map[string][]domain.Bar{
		"A": {bar("A", 1, 100), bar("A", 2, 110)},
	}
	p, err := New(nil).Run(context.Background(), data, &recorder{}, Params{InitialCapital: 1000}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	hist := p.EquityHistory()
	if hist[0].Cash != 900 || hist[0].Equity != 1000 {
		t.Errorf("day 1 snapshot = %+v, want cash 900, equity 1000", hist[0])
	}
	if hist[1].Equity != 1010 {
		t.Errorf("day 2 equity = %v, want 1010", hist[1].Equity)
	}
}

func TestRun_Errors(t *testing.T) {
	e := New(nil)
	ctx := context.Background()
	valid := map[string][]domain.Bar{"A": {bar("A", 1, 10)}}

	tests := []struct {
		name   string
		data   map[string][]domain.Bar
		strat  Strategy
		params Params
		want   error
	}{
		{"empty map", map[string][]domain.Bar{}, &recorder{}, defaultParams, ErrNoData},
		{"only empty series", map[string][]domain.Bar{"A": nil}, &recorder{}, defaultParams, ErrNoData},
		{"no overlap", map[string][]domain.Bar{
			"A": {bar("A", 1, 10)},
			"B": {bar("B", 2, 10)},
		}, &recorder{}, defaultParams, ErrNoOverlap},
		{"nil strategy", valid, nil, defaultParams, ErrInvalidRequest},
		{"zero capital", valid, &recorder{}, Params{}, ErrInvalidRequest},
		{"rate of one", valid, &recorder{}, Params{InitialCapital: 1, CommissionRate: 1}, ErrInvalidRequest},
		{"unknown indicator", valid, &recorder{
			indicators: []domain.IndicatorConfig{{Name: "mystery"}},
		}, defaultParams, indicator.ErrUnknownIndicator},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := e.Run(ctx, tt.data, tt.strat, tt.params, nil)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Run error = %v, want %v", err, tt.want)
			}
			if p != nil {
				t.Error("Run returned a portfolio alongside an error")
			}
		})
	}
}

func TestRun_NoDataIsInvalidRequest(t *testing.T) {
	_, err := New(nil).Run(context.Background(), nil, &recorder{}, defaultParams, nil)
	if !errors.Is(err, ErrInvalidRequest) || !errors.Is(err, ErrNoData) {
		t.Errorf("Run error = %v, want ErrInvalidRequest wrapping ErrNoData", err)
	}
}

func TestRun_SkipsEmptySeries(t *testing.T) {
	data := map[string][]domain.Bar{
		"A": {bar("A", 1, 10), bar("A", 2, 11)},
		"B": {},
	}
	p, err := New(nil).Run(context.Background(), data, &recorder{}, defaultParams, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n := len(p.EquityHistory()); n != 2 {
		t.Errorf("equity history length = %d, want 2", n)
	}
}

func TestRun_AttachesIndicators(t *testing.T) {
	data := map[string][]domain.Bar{
		"A": {bar("A", 1, 10), bar("A", 2, 12), bar("A", 3, 14)},
	}
	strat := &recorder{indicators: []domain.IndicatorConfig{
		{Name: "sma", Params: map[string]float64{"period": 2}},
	}}
	if _, err := New(nil).Run(context.Background(), data, strat, defaultParams, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strat.seen[0]["A"].Defined("sma_2") {
		t.Error("sma_2 defined on first bar")
	}
	if got := strat.seen[2]["A"].Value("sma_2"); got != 13 {
		t.Errorf("sma_2 on third bar = %v, want 13", got)
	}
}

func TestRun_HookError(t *testing.T) {
	data := map[string][]domain.Bar{
		"A": {bar("A", 1, 10), bar("A", 2, 11)},
	}
	_, err := New(nil).Run(context.Background(), data, &recorder{failOn: "2024-01-02"}, defaultParams, nil)
	if err == nil {
		t.Fatal("Run returned nil error for failing OnBar")
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	data := map[string][]domain.Bar{"A": {bar("A", 1, 10)}}

	_, err := New(nil).Run(ctx, data, &recorder{}, defaultParams, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
}

func TestRun_Deterministic(t *testing.T) {
	data := map[string][]domain.Bar{
		"A": {bar("A", 1, 10), bar("A", 2, 11), bar("A", 3, 9)},
		"B": {bar("B", 1, 20), bar("B", 2, 19), bar("B", 3, 25)},
		"C": {bar("C", 1, 5), bar("C", 2, 6), bar("C", 3, 7)},
	}
	e := New(nil)

	p1, err := e.Run(context.Background(), data, &recorder{}, defaultParams, nil)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	p2, err := e.Run(context.Background(), data, &recorder{}, defaultParams, nil)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if !reflect.DeepEqual(p1.Trades(), p2.Trades()) {
		t.Errorf("trades differ between runs:\n%v\n%v", p1.Trades(), p2.Trades())
	}
	if !reflect.DeepEqual(p1.EquityHistory(), p2.EquityHistory()) {
		t.Errorf("equity differs between runs:\n%v\n%v", p1.EquityHistory(), p2.EquityHistory())
	}
}
