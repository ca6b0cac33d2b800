package ratio

import (
	"github.com/shopspring/decimal"

	"liquidityDesk/internal/model"
)

var (
	bpsDenominator = decimal.NewFromInt(10_000)
	hundred        = decimal.NewFromInt(100)
)

// Validate checks a two-sided deposit of amount0 base and amount1 quote
// against price. It returns nil when either amount is not positive. A zero
// tolerance means DefaultRatioToleranceBps.
func Validate(amount0, amount1 decimal.Decimal, price model.PriceResult, toleranceBps uint32) *model.RatioCheck {
	if amount0.Sign() <= 0 || amount1.Sign() <= 0 {
		return nil
	}
	if toleranceBps == 0 {
		toleranceBps = model.DefaultRatioToleranceBps
	}

	userRatio := amount1.Div(amount0)
	check := &model.RatioCheck{
		PoolPrice:        price.Price,
		ToleranceBps:     toleranceBps,
		IsInitialRatio:   price.IsInitialRatio,
		IsValid:          price.IsInitialRatio,
		SuggestedAmount0: decimal.Zero,
		SuggestedAmount1: decimal.Zero,
	}
	check.UserRatio, _ = userRatio.Float64()

	if price.Price <= 0 {
		return check
	}
	poolPrice := decimal.NewFromFloat(price.Price)
	difference := userRatio.Sub(poolPrice).Div(poolPrice)
	tolerance := decimal.NewFromInt(int64(toleranceBps)).Div(bpsDenominator)

	if difference.Abs().LessThanOrEqual(tolerance) {
		check.IsValid = true
	}
	check.PriceDifferencePct, _ = difference.Mul(hundred).Float64()
	check.SuggestedAmount1 = amount0.Mul(poolPrice).Round(model.DisplayPlaces)
	check.SuggestedAmount0 = amount1.Div(poolPrice).Round(model.DisplayPlaces)
	return check
}
