package model

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// DisplayPlaces is the number of fractional digits used for rendered amounts.
const DisplayPlaces = 6

// ParseAmount parses a human amount. Empty input is reported as missing.
func ParseAmount(input string) (decimal.Decimal, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return decimal.Zero, fmt.Errorf("amount is required")
	}
	d, err := decimal.NewFromString(input)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", input)
	}
	return d, nil
}

// ToBaseUnits converts a human amount into integer base units, truncating
// anything below the token's precision.
func ToBaseUnits(amount decimal.Decimal, decimals uint8) *big.Int {
	return amount.Shift(int32(decimals)).Truncate(0).BigInt()
}

// FromBaseUnits converts integer base units into a human amount.
func FromBaseUnits(value *big.Int, decimals uint8) decimal.Decimal {
	if value == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(value, -int32(decimals))
}

// FormatAmount renders an amount with DisplayPlaces fractional digits.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(DisplayPlaces)
}
