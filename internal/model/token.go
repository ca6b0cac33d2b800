package model

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NativeDecimals is the decimals of the chain's native asset.
const NativeDecimals uint8 = 18

// Token identifies an ERC20 token (or the native asset when Address is zero).
type Token struct {
	Symbol   string         `json:"symbol"`
	Address  common.Address `json:"address"`
	Decimals uint8          `json:"decimals"`
}

// NativeToken returns the native asset descriptor.
func NativeToken(symbol string) Token {
	if symbol == "" {
		symbol = "ETH"
	}
	return Token{Symbol: symbol, Decimals: NativeDecimals}
}

// IsNative reports whether t is the native asset.
func (t Token) IsNative() bool {
	return t.Address == (common.Address{})
}

// SameSymbol compares symbols case-insensitively.
func SameSymbol(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
