package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityDesk/internal/model"
)

// positionLayout gives the output indexes of a position tuple.
type positionLayout struct {
	token0, token1, liquidity, owed0, owed1 int
}

var (
	routerDetailsLayout   = positionLayout{token0: 0, token1: 1, liquidity: 2, owed0: 5, owed1: 6}
	managerPositionLayout = positionLayout{token0: 2, token1: 3, liquidity: 7, owed0: 10, owed1: 11}
)

// Positions lists the position token ids the router tracks for account, with
// details for each.
func (a *Adapter) Positions(ctx context.Context, account common.Address) ([]model.Position, error) {
	if !a.Capabilities().UserPositions {
		return nil, fmt.Errorf("%w: getUserPositions", ErrCapability)
	}
	parsed, err := RouterABI()
	if err != nil {
		return nil, fmt.Errorf("parse router abi: %w", err)
	}

	var values []interface{}
	err = a.retry(ctx, func(ctx context.Context) error {
		var err error
		values, err = callMethod(ctx, a.client, a.router, account, parsed, "getUserPositions", nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	ids, err := asBigIntSlice(values[0])
	if err != nil {
		return nil, fmt.Errorf("position ids: %w", err)
	}

	positions := make([]model.Position, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		positions = append(positions, a.PositionDetails(ctx, id))
	}
	return positions, nil
}

// PositionDetails reads a position through the router, then through the
// position manager, and finally returns a record holding only the id.
func (a *Adapter) PositionDetails(ctx context.Context, tokenID *big.Int) model.Position {
	caps := a.Capabilities()

	if caps.PositionDetails {
		values, err := a.callRouter(ctx, "getPositionDetails", tokenID)
		if err == nil {
			pos, decodeErr := positionFromValues(tokenID, values, routerDetailsLayout)
			if decodeErr == nil {
				return pos
			}
			a.logger.Debug("position details decode failed", zap.String("token_id", tokenID.String()), zap.Error(decodeErr))
		} else {
			a.logger.Warn("position details call failed", zap.String("token_id", tokenID.String()), zap.Error(err))
		}
	}

	if caps.PositionManager {
		pos, err := a.managerPosition(ctx, tokenID)
		if err == nil {
			return pos
		}
		a.logger.Warn("position manager lookup failed", zap.String("token_id", tokenID.String()), zap.Error(err))
	}

	return model.Position{TokenID: tokenID.String(), Liquidity: "0"}
}

func (a *Adapter) managerPosition(ctx context.Context, tokenID *big.Int) (model.Position, error) {
	values, err := a.callRouter(ctx, "positionManager")
	if err != nil {
		return model.Position{}, err
	}
	manager, err := asAddress(values[0])
	if err != nil {
		return model.Position{}, fmt.Errorf("position manager: %w", err)
	}
	if manager == (common.Address{}) {
		return model.Position{}, fmt.Errorf("position manager is unset")
	}

	parsed, err := PositionManagerABI()
	if err != nil {
		return model.Position{}, fmt.Errorf("parse position manager abi: %w", err)
	}
	err = a.retry(ctx, func(ctx context.Context) error {
		var err error
		values, err = callMethod(ctx, a.client, manager, common.Address{}, parsed, "positions", nil, tokenID)
		return err
	})
	if err != nil {
		return model.Position{}, err
	}
	return positionFromValues(tokenID, values, managerPositionLayout)
}

func positionFromValues(tokenID *big.Int, values []interface{}, layout positionLayout) (model.Position, error) {
	need := layout.owed1
	for _, idx := range []int{layout.token0, layout.token1, layout.liquidity, layout.owed0} {
		if idx > need {
			need = idx
		}
	}
	if len(values) <= need {
		return model.Position{}, fmt.Errorf("position tuple has %d fields", len(values))
	}

	token0, err := asAddress(values[layout.token0])
	if err != nil {
		return model.Position{}, fmt.Errorf("token0: %w", err)
	}
	token1, err := asAddress(values[layout.token1])
	if err != nil {
		return model.Position{}, fmt.Errorf("token1: %w", err)
	}
	liquidity, err := asBigInt(values[layout.liquidity])
	if err != nil {
		return model.Position{}, fmt.Errorf("liquidity: %w", err)
	}
	owed0, err := asBigInt(values[layout.owed0])
	if err != nil {
		return model.Position{}, fmt.Errorf("tokens owed0: %w", err)
	}
	owed1, err := asBigInt(values[layout.owed1])
	if err != nil {
		return model.Position{}, fmt.Errorf("tokens owed1: %w", err)
	}

	return model.Position{
		TokenID:     tokenID.String(),
		Token0:      token0.Hex(),
		Token1:      token1.Hex(),
		Liquidity:   liquidity.String(),
		TokensOwed0: owed0.String(),
		TokensOwed1: owed1.String(),
	}, nil
}
