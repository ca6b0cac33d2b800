package dex

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"liquidityDesk/internal/chain"
	"liquidityDesk/internal/model"
)

// FetchPoolState reads token addresses, slot0 and liquidity of a V3 pool at
// the latest block. Token decimals are left for the caller to fill from its
// metadata cache.
func FetchPoolState(ctx context.Context, chainClient *chain.Client, pool common.Address) (model.PoolState, error) {
	if chainClient == nil {
		return model.PoolState{}, fmt.Errorf("chain client is nil")
	}

	poolABI, err := PoolABI()
	if err != nil {
		return model.PoolState{}, fmt.Errorf("parse pool abi: %w", err)
	}
	call := func(method string) ([]interface{}, error) {
		return callMethod(ctx, chainClient, pool, common.Address{}, poolABI, method, nil)
	}

	values, err := call("token0")
	if err != nil {
		return model.PoolState{}, err
	}
	token0, err := asAddress(values[0])
	if err != nil {
		return model.PoolState{}, fmt.Errorf("token0: %w", err)
	}

	values, err = call("token1")
	if err != nil {
		return model.PoolState{}, err
	}
	token1, err := asAddress(values[0])
	if err != nil {
		return model.PoolState{}, fmt.Errorf("token1: %w", err)
	}

	values, err = call("slot0")
	if err != nil {
		return model.PoolState{}, err
	}
	if len(values) < 2 {
		return model.PoolState{}, fmt.Errorf("slot0: short result")
	}
	sqrtPrice, err := asBigInt(values[0])
	if err != nil {
		return model.PoolState{}, fmt.Errorf("slot0 sqrtPriceX96: %w", err)
	}
	tickInt, err := asBigInt(values[1])
	if err != nil {
		return model.PoolState{}, fmt.Errorf("slot0 tick: %w", err)
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return model.PoolState{}, fmt.Errorf("slot0 tick: %w", err)
	}

	values, err = call("liquidity")
	if err != nil {
		return model.PoolState{}, err
	}
	liquidity, err := asBigInt(values[0])
	if err != nil {
		return model.PoolState{}, fmt.Errorf("liquidity: %w", err)
	}

	return model.PoolState{
		Tick:         tick,
		SqrtPriceX96: sqrtPrice,
		Liquidity:    liquidity,
		Token0:       token0,
		Token1:       token1,
	}, nil
}
