package vici

import (
	"testing"
)

func TestDial(t *testing.T) {
	c, err := Dial("localhost:50051")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	if c.conn == nil || c.own == nil {
		t.Fatal("expected non-nil connection")
	}
}

func TestRunRequestToStruct(t *testing.T) {
	rate := 0.0
	s, err := RunRequest{
		Strategy: "sma-crossover",
		Params:   map[string]float64{"short_period": 10},
		Symbols:  []string{"AAPL", "MSFT"},
		Start:    "2023-01-01",
		End:      "2023-12-31",

		CommissionRate: &rate,
	}.toStruct()
	if err != nil {
		t.Fatalf("toStruct: %v", err)
	}

	m := s.AsMap()
	if m["strategy"] != "sma-crossover" {
		t.Errorf("strategy = %v, want sma-crossover", m["strategy"])
	}
	if _, ok := m["initial_capital"]; ok {
		t.Error("zero initial_capital should be omitted")
	}
	if m["commission_rate"] != 0.0 {
		t.Errorf("commission_rate = %v, want explicit 0", m["commission_rate"])
	}
	symbols, _ := m["symbols"].([]any)
	if len(symbols) != 2 || symbols[1] != "MSFT" {
		t.Errorf("symbols = %v", m["symbols"])
	}
	params, _ := m["params"].(map[string]any)
	if params["short_period"] != 10.0 {
		t.Errorf("params = %v", m["params"])
	}
}

func TestMethod(t *testing.T) {
	if got := method("Run"); got != "/vicitrade.v1.Backtest/Run" {
		t.Errorf("method(Run) = %q", got)
	}
}
