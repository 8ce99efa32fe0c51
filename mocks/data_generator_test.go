package mocks

import (
	"encoding/json"
	"testing"
	"time"
)

func TestPayloadGenerator_Generate(t *testing.T) {
	gen := NewPayloadGenerator(42) // Fixed seed for reproducibility
	config := DefaultConfig()
	config.Count = 100

	bars := gen.Generate(config)

	if len(bars) != 100 {
		t.Errorf("expected 100 bars, got %d", len(bars))
	}

	// Verify bars are in chronological order
	for i := 1; i < len(bars); i++ {
		if !bars[i].Time.After(bars[i-1].Time) {
			t.Errorf("bars not in chronological order at index %d", i)
		}
	}

	// Verify symbol is set correctly
	for i, b := range bars {
		if b.Symbol != config.Symbol {
			t.Errorf("expected symbol %s at index %d, got %s", config.Symbol, i, b.Symbol)
		}
	}

	// Verify OHLC values are positive
	for i, b := range bars {
		if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
			t.Errorf("invalid OHLC values at index %d: O=%f H=%f L=%f C=%f",
				i, b.Open, b.High, b.Low, b.Close)
		}
	}

	// Verify High >= Low
	for i, b := range bars {
		if b.High < b.Low {
			t.Errorf("High < Low at index %d: H=%f L=%f", i, b.High, b.Low)
		}
	}

	// Verify time intervals
	expectedInterval := config.Interval
	for i := 1; i < len(bars); i++ {
		actualInterval := bars[i].Time.Sub(bars[i-1].Time)
		if actualInterval != expectedInterval {
			t.Errorf("unexpected interval at index %d: expected %v, got %v",
				i, expectedInterval, actualInterval)
		}
	}
}

func TestPayloadGenerator_Reproducibility(t *testing.T) {
	// Same seed should produce same results
	gen1 := NewPayloadGenerator(42)
	gen2 := NewPayloadGenerator(42)

	config := DefaultConfig()
	config.Count = 10

	bars1 := gen1.Generate(config)
	bars2 := gen2.Generate(config)

	for i := range bars1 {
		if bars1[i].Close != bars2[i].Close {
			t.Errorf("bars not reproducible at index %d: got %f and %f",
				i, bars1[i].Close, bars2[i].Close)
		}
	}
}

func TestPayloadGenerator_Different_Seeds(t *testing.T) {
	gen1 := NewPayloadGenerator(42)
	gen2 := NewPayloadGenerator(123)

	config := DefaultConfig()
	config.Count = 10

	bars1 := gen1.Generate(config)
	bars2 := gen2.Generate(config)

	// Different seeds should produce different results
	sameCount := 0
	for i := range bars1 {
		if bars1[i].Close == bars2[i].Close {
			sameCount++
		}
	}

	if sameCount == len(bars1) {
		t.Error("different seeds produced identical bars")
	}
}

func TestDefaultPayload(t *testing.T) {
	payload := DefaultPayload("AAPL")

	var bars []Bar
	if err := json.Unmarshal(payload, &bars); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}

	if len(bars) != DefaultConfig().Count {
		t.Errorf("expected %d bars, got %d", DefaultConfig().Count, len(bars))
	}

	if bars[0].Symbol != "AAPL" {
		t.Errorf("expected symbol AAPL, got %s", bars[0].Symbol)
	}

	// Same seed, same payload
	if string(payload) != string(DefaultPayload("AAPL")) {
		t.Error("DefaultPayload is not reproducible")
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Count != 100 {
		t.Errorf("expected default count 100, got %d", config.Count)
	}

	if config.Symbol != "TEST" {
		t.Errorf("expected default symbol TEST, got %s", config.Symbol)
	}

	if config.Interval != time.Minute {
		t.Errorf("expected default interval 1m, got %v", config.Interval)
	}

	if config.InitialPrice != 100.0 {
		t.Errorf("expected default initial price 100.0, got %f", config.InitialPrice)
	}
}
