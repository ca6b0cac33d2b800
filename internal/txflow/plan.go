package txflow

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"liquidityDesk/internal/model"
)

// liquidityDecimals is the fixed-point precision the router expects for a
// liquidity fraction.
const liquidityDecimals uint8 = 18

// spend is a token amount the intent transfers from the account.
type spend struct {
	token  model.Token
	amount *big.Int
	human  decimal.Decimal
}

// plan is a validated intent ready for execution.
type plan struct {
	kind   model.IntentKind
	spends []spend
	// positionID is set when the router must be approved for a position first.
	positionID *big.Int
	call       model.CallDescriptor
	record     model.HistoryRecord
}

// normalize dereferences pointer intents. A nil intent is a programmer error.
func normalize(intent model.Intent) (model.Intent, error) {
	switch in := intent.(type) {
	case nil:
		return nil, ErrNilIntent
	case *model.SwapIntent:
		if in == nil {
			return nil, ErrNilIntent
		}
		return *in, nil
	case *model.AddLiquidityIntent:
		if in == nil {
			return nil, ErrNilIntent
		}
		return *in, nil
	case *model.RemoveLiquidityIntent:
		if in == nil {
			return nil, ErrNilIntent
		}
		return *in, nil
	case *model.CollectFeesIntent:
		if in == nil {
			return nil, ErrNilIntent
		}
		return *in, nil
	default:
		return intent, nil
	}
}

func (o *Orchestrator) buildPlan(intent model.Intent) (*plan, error) {
	switch in := intent.(type) {
	case model.SwapIntent:
		return o.planSwap(in)
	case model.AddLiquidityIntent:
		return o.planAddLiquidity(in)
	case model.RemoveLiquidityIntent:
		return o.planRemoveLiquidity(in)
	case model.CollectFeesIntent:
		return o.planCollectFees(in)
	default:
		return nil, fmt.Errorf("unsupported intent %T", intent)
	}
}

func (o *Orchestrator) planSwap(in model.SwapIntent) (*plan, error) {
	if model.SameSymbol(in.TokenIn.Symbol, in.TokenOut.Symbol) {
		return nil, fmt.Errorf("input and output token are the same")
	}
	if in.TokenIn.IsNative() || in.TokenOut.IsNative() {
		return nil, fmt.Errorf("router swaps ERC20 tokens only")
	}
	s, err := newSpend(in.TokenIn, in.AmountIn)
	if err != nil {
		return nil, err
	}

	return &plan{
		kind:   model.IntentSwap,
		spends: []spend{s},
		call: model.CallDescriptor{
			Method: model.MethodSwap,
			Args:   []interface{}{in.TokenIn.Address, in.TokenOut.Address, s.amount},
		},
		record: model.HistoryRecord{
			Kind:         model.IntentSwap,
			Token0Symbol: in.TokenIn.Symbol,
			Token1Symbol: in.TokenOut.Symbol,
			Amount0:      s.human.String(),
			Amount1:      strings.TrimSpace(in.ExpectedOut),
		},
	}, nil
}

func (o *Orchestrator) planAddLiquidity(in model.AddLiquidityIntent) (*plan, error) {
	s0, err := newSpend(in.Token0, in.Amount0)
	if err != nil {
		return nil, fmt.Errorf("amount0: %w", err)
	}
	s1, err := newSpend(in.Token1, in.Amount1)
	if err != nil {
		return nil, fmt.Errorf("amount1: %w", err)
	}
	if in.Ratio == nil {
		return nil, fmt.Errorf("ratio check is required")
	}
	if in.Ratio.Blocks() {
		return nil, fmt.Errorf("deposit ratio %.6f is %.2f%% away from pool price %.6f (tolerance %d bps); suggested %s / %s",
			in.Ratio.UserRatio, in.Ratio.PriceDifferencePct, in.Ratio.PoolPrice, in.Ratio.ToleranceBps,
			model.FormatAmount(in.Ratio.SuggestedAmount0), model.FormatAmount(in.Ratio.SuggestedAmount1))
	}

	return &plan{
		kind:   model.IntentAddLiquidity,
		spends: []spend{s0, s1},
		call: model.CallDescriptor{
			Method: model.MethodAddLiquidity,
			Args:   []interface{}{s0.amount, s1.amount},
		},
		record: model.HistoryRecord{
			Kind:         model.IntentAddLiquidity,
			Token0Symbol: in.Token0.Symbol,
			Token1Symbol: in.Token1.Symbol,
			Amount0:      s0.human.String(),
			Amount1:      s1.human.String(),
		},
	}, nil
}

func (o *Orchestrator) planRemoveLiquidity(in model.RemoveLiquidityIntent) (*plan, error) {
	id, err := parsePositionID(in.PositionID)
	if err != nil {
		return nil, err
	}
	fraction, err := model.ParseAmount(in.Fraction)
	if err != nil {
		return nil, fmt.Errorf("fraction: %w", err)
	}
	if fraction.Sign() <= 0 || fraction.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("fraction must be in (0, 1], got %s", fraction)
	}

	return &plan{
		kind: model.IntentRemoveLiquidity,
		call: model.CallDescriptor{
			Method: model.MethodRemoveLiquidity,
			Args:   []interface{}{id, model.ToBaseUnits(fraction, liquidityDecimals)},
		},
		record: model.HistoryRecord{
			Kind:         model.IntentRemoveLiquidity,
			Token0Symbol: o.token0Symbol,
			Token1Symbol: o.token1Symbol,
			Amount0:      fraction.String(),
			PositionID:   id.String(),
		},
	}, nil
}

func (o *Orchestrator) planCollectFees(in model.CollectFeesIntent) (*plan, error) {
	id, err := parsePositionID(in.PositionID)
	if err != nil {
		return nil, err
	}
	p := &plan{
		kind: model.IntentCollectFees,
		call: model.CallDescriptor{
			Method: model.MethodCollectFees,
			Args:   []interface{}{id},
		},
		record: model.HistoryRecord{
			Kind:         model.IntentCollectFees,
			Token0Symbol: o.token0Symbol,
			Token1Symbol: o.token1Symbol,
			PositionID:   id.String(),
		},
	}
	if o.client.Capabilities().PositionApproval {
		p.positionID = id
	}
	return p, nil
}

func newSpend(token model.Token, amount string) (spend, error) {
	human, err := model.ParseAmount(amount)
	if err != nil {
		return spend{}, err
	}
	if human.Sign() <= 0 {
		return spend{}, fmt.Errorf("amount must be positive, got %s", human)
	}
	raw := model.ToBaseUnits(human, token.Decimals)
	if raw.Sign() <= 0 {
		return spend{}, fmt.Errorf("amount %s is below %s precision", human, token.Symbol)
	}
	return spend{token: token, amount: raw, human: human}, nil
}

func parsePositionID(input string) (*big.Int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("position id is required")
	}
	id, ok := new(big.Int).SetString(input, 10)
	if !ok || id.Sign() < 0 {
		return nil, fmt.Errorf("invalid position id %q", input)
	}
	return id, nil
}
