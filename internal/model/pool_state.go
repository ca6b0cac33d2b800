package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PoolState is a point-in-time read of a concentrated-liquidity pool.
// It is owned by a single query and never cached.
type PoolState struct {
	Tick           int32
	SqrtPriceX96   *big.Int
	Liquidity      *big.Int
	Token0         common.Address
	Token1         common.Address
	Token0Decimals uint8
	Token1Decimals uint8
}

// PriceSource records which layer produced a price.
type PriceSource string

const (
	PriceSourcePool       PriceSource = "pool"
	PriceSourceTokenPrice PriceSource = "token_price"
	PriceSourceDefault    PriceSource = "default"
)

// DefaultInitialPrice is the conventional placeholder ratio for a pool without liquidity.
const DefaultInitialPrice = 1000.0

// MaxSanePrice bounds the accepted price range (exclusive).
const MaxSanePrice = 1_000_000.0

// PriceResult is a human price expressed as quote token per base token.
type PriceResult struct {
	Price          float64     `json:"price"`
	IsInitialRatio bool        `json:"is_initial_ratio"`
	Source         PriceSource `json:"source"`
}

// InitialPriceResult is the placeholder ratio. Source is pool for a pool
// without liquidity and default when no layer produced a sane price.
func InitialPriceResult(source PriceSource) PriceResult {
	return PriceResult{Price: DefaultInitialPrice, IsInitialRatio: true, Source: source}
}

// Degraded reports whether the price is the last-resort placeholder rather
// than a value read from chain.
func (r PriceResult) Degraded() bool {
	return r.Source == PriceSourceDefault
}
