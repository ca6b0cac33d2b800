package model

import "github.com/shopspring/decimal"

// DefaultRatioToleranceBps is the default deposit ratio tolerance (5%).
const DefaultRatioToleranceBps uint32 = 500

// RatioCheck is the result of validating a two-sided deposit against the pool price.
// Amount0 is the base token and Amount1 the quote token.
type RatioCheck struct {
	UserRatio          float64         `json:"user_ratio"`
	PoolPrice          float64         `json:"pool_price"`
	ToleranceBps       uint32          `json:"tolerance_bps"`
	IsValid            bool            `json:"is_valid"`
	IsInitialRatio     bool            `json:"is_initial_ratio"`
	SuggestedAmount0   decimal.Decimal `json:"suggested_amount0"`
	SuggestedAmount1   decimal.Decimal `json:"suggested_amount1"`
	PriceDifferencePct float64         `json:"price_difference_pct"`
}

// Blocks reports whether the check must block a deposit.
func (c *RatioCheck) Blocks() bool {
	return c != nil && !c.IsValid && !c.IsInitialRatio
}
