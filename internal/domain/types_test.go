package domain

import (
	"testing"
	"time"
)

func TestTypesExist(t *testing.T) {
	// Verify Bar can be instantiated with zero values.
	bar := Bar{}
	if bar.Symbol != "" {
		t.Error("expected empty Symbol for zero-value Bar")
	}
	if !bar.Date.IsZero() {
		t.Error("expected zero Date for zero-value Bar")
	}
	if bar.Open != 0 || bar.High != 0 || bar.Low != 0 || bar.Close != 0 {
		t.Error("expected zero OHLC values for zero-value Bar")
	}
	if bar.Volume != 0 {
		t.Error("expected zero Volume for zero-value Bar")
	}

	// Verify Trade can be instantiated with zero values.
	trade := Trade{}
	if trade.Symbol != "" || trade.Side != "" || trade.Date != "" {
		t.Error("expected empty Symbol/Side/Date for zero-value Trade")
	}
	if trade.Price != 0 || trade.Quantity != 0 || trade.Commission != 0 {
		t.Error("expected zero Price/Quantity/Commission for zero-value Trade")
	}

	// Verify enum constants are defined correctly.
	if SideBuy != "BUY" {
		t.Errorf("SideBuy = %q, want %q", SideBuy, "BUY")
	}
	if SideSell != "SELL" {
		t.Errorf("SideSell = %q, want %q", SideSell, "SELL")
	}
}

func TestBarDateKey(t *testing.T) {
	// A non-UTC timestamp must still map to its UTC calendar date.
	loc := time.FixedZone("UTC+8", 8*3600)
	bar := Bar{Date: time.Date(2024, 3, 5, 7, 0, 0, 0, loc)}
	if got := bar.DateKey(); got != "2024-03-04" {
		t.Errorf("DateKey() = %q, want %q", got, "2024-03-04")
	}

	bar = Bar{Date: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)}
	if got := bar.DateKey(); got != "2024-03-05" {
		t.Errorf("DateKey() = %q, want %q", got, "2024-03-05")
	}
}

func TestIndicatorConfigSourceColumn(t *testing.T) {
	if got := (IndicatorConfig{Name: "sma"}).SourceColumn(); got != "close" {
		t.Errorf("SourceColumn() = %q, want %q", got, "close")
	}
	if got := (IndicatorConfig{Name: "sma", Column: "high"}).SourceColumn(); got != "high" {
		t.Errorf("SourceColumn() = %q, want %q", got, "high")
	}
}

func TestPositionHelpers(t *testing.T) {
	pos := Position{Symbol: "AAPL", Quantity: 10, AvgPrice: 100, CostBasis: 1000}
	if !pos.IsOpen() {
		t.Error("IsOpen() = false, want true")
	}
	if got := pos.MarketValue(120); got != 1200 {
		t.Errorf("MarketValue(120) = %v, want 1200", got)
	}
	if got := pos.UnrealizedPnL(120); got != 200 {
		t.Errorf("UnrealizedPnL(120) = %v, want 200", got)
	}

	flat := Position{Symbol: "AAPL"}
	if flat.IsOpen() {
		t.Error("IsOpen() = true for flat position, want false")
	}
}
