package model

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestZeroQuoteRendersPlainZero(t *testing.T) {
	data, err := json.Marshal(ZeroQuote(50))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["output_amount"] != "0" || got["minimum_received"] != "0" || got["input_amount"] != "0" {
		t.Fatalf("expected plain zeros, got %s", data)
	}
	if got["price_impact_pct"] != float64(0) {
		t.Fatalf("expected zero impact, got %s", data)
	}
}

func TestQuoteRendersSixDigits(t *testing.T) {
	q := Quote{
		InputAmount:     decimal.NewFromInt(100),
		OutputAmount:    decimal.RequireFromString("123.45"),
		MinimumReceived: decimal.RequireFromString("122.832750"),
	}
	data, err := json.Marshal(q)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["input_amount"] != "100.000000" || got["output_amount"] != "123.450000" || got["minimum_received"] != "122.832750" {
		t.Fatalf("unexpected rendering: %s", data)
	}
}
