package model

// IntentKind tags the variant of an Intent.
type IntentKind string

const (
	IntentSwap            IntentKind = "swap"
	IntentAddLiquidity    IntentKind = "add_liquidity"
	IntentRemoveLiquidity IntentKind = "remove_liquidity"
	IntentCollectFees     IntentKind = "collect_fees"
)

// Intent is a transaction the user asked for. The set of implementations is closed.
type Intent interface {
	Kind() IntentKind
	intent()
}

// SwapIntent swaps an exact input amount of TokenIn for TokenOut.
// ExpectedOut is informational (recorded in history).
type SwapIntent struct {
	TokenIn     Token
	TokenOut    Token
	AmountIn    string
	ExpectedOut string
}

// AddLiquidityIntent deposits both pool tokens, in pool order.
// Ratio must come from the ratio validator for the same amounts.
type AddLiquidityIntent struct {
	Token0  Token
	Token1  Token
	Amount0 string
	Amount1 string
	Ratio   *RatioCheck
}

// RemoveLiquidityIntent withdraws Fraction (0, 1] of a position.
type RemoveLiquidityIntent struct {
	PositionID string
	Fraction   string
}

// CollectFeesIntent collects accrued fees of a position.
type CollectFeesIntent struct {
	PositionID string
}

func (SwapIntent) Kind() IntentKind            { return IntentSwap }
func (AddLiquidityIntent) Kind() IntentKind    { return IntentAddLiquidity }
func (RemoveLiquidityIntent) Kind() IntentKind { return IntentRemoveLiquidity }
func (CollectFeesIntent) Kind() IntentKind     { return IntentCollectFees }

func (SwapIntent) intent()            {}
func (AddLiquidityIntent) intent()    {}
func (RemoveLiquidityIntent) intent() {}
func (CollectFeesIntent) intent()     {}
