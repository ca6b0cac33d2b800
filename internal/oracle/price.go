package oracle

import (
	"math"
	"math/big"

	"liquidityDesk/internal/model"
)

// tickBase is the price ratio between adjacent ticks.
const tickBase = 1.0001

// TickToPrice returns the raw token1/token0 price in base units at tick.
func TickToPrice(tick int32) float64 {
	return math.Pow(tickBase, float64(tick))
}

// HumanPrice converts a raw token1/token0 base-unit price into whole tokens,
// inverting when the quote token sits in slot 0.
func HumanPrice(raw float64, decimals0, decimals1 uint8, invert bool) float64 {
	price := raw * math.Pow10(int(decimals0)-int(decimals1))
	if invert {
		price = 1 / price
	}
	return price
}

// IsSane reports whether price is finite and inside (0, MaxSanePrice).
func IsSane(price float64) bool {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return false
	}
	return price > 0 && price < model.MaxSanePrice
}

// scaledToFloat converts a 1e18-scaled fixed point integer to float64.
func scaledToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(value), big.NewFloat(1e18)).Float64()
	return f
}
