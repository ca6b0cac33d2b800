package model

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Quote is a client-side swap estimate. It is computed per request and never persisted.
type Quote struct {
	InputAmount          decimal.Decimal
	OutputAmount         decimal.Decimal
	PriceImpactPct       float64
	MinimumReceived      decimal.Decimal
	SlippageToleranceBps uint32
	Rate                 float64
	// Stale is set when the rate came from a last-known or reference price.
	Stale bool
}

// ZeroQuote is the deterministic result for an empty input.
func ZeroQuote(slippageBps uint32) Quote {
	return Quote{
		InputAmount:          decimal.Zero,
		OutputAmount:         decimal.Zero,
		MinimumReceived:      decimal.Zero,
		SlippageToleranceBps: slippageBps,
	}
}

// MarshalJSON renders amounts as fixed-point strings.
func (q Quote) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		InputAmount          string  `json:"input_amount"`
		OutputAmount         string  `json:"output_amount"`
		PriceImpactPct       float64 `json:"price_impact_pct"`
		MinimumReceived      string  `json:"minimum_received"`
		SlippageToleranceBps uint32  `json:"slippage_tolerance_bps"`
		Rate                 float64 `json:"rate"`
		Stale                bool    `json:"stale,omitempty"`
	}{
		InputAmount:          formatQuoteAmount(q.InputAmount),
		OutputAmount:         formatQuoteAmount(q.OutputAmount),
		PriceImpactPct:       q.PriceImpactPct,
		MinimumReceived:      formatQuoteAmount(q.MinimumReceived),
		SlippageToleranceBps: q.SlippageToleranceBps,
		Rate:                 q.Rate,
		Stale:                q.Stale,
	})
}

// formatQuoteAmount renders an exact zero as "0" and anything else with
// DisplayPlaces digits.
func formatQuoteAmount(amount decimal.Decimal) string {
	if amount.IsZero() {
		return "0"
	}
	return FormatAmount(amount)
}
