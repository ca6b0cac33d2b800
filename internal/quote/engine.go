package quote

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquidityDesk/internal/model"
)

// DefaultReferencePrice is the quote-per-base rate used before any price has
// been read.
const DefaultReferencePrice = 1.2345

// MaxPriceImpactPct caps the linear price impact estimate.
const MaxPriceImpactPct = 5.0

var (
	bpsDenominator = decimal.NewFromInt(10_000)
	impactPerUnit  = decimal.RequireFromString("0.0001")
	maxImpact      = decimal.NewFromFloat(MaxPriceImpactPct)
)

// PriceSource yields the current quote-per-base price.
type PriceSource interface {
	GetPoolPrice(ctx context.Context) (model.PriceResult, error)
}

// Config configures an Engine.
type Config struct {
	// BaseSymbol is the token the price is quoted per.
	BaseSymbol     string
	ReferencePrice float64
	Logger         *zap.Logger
}

// Engine computes swap quotes from the pool price.
type Engine struct {
	source     PriceSource
	baseSymbol string
	reference  float64
	logger     *zap.Logger

	mu        sync.RWMutex
	lastKnown float64
}

func NewEngine(source PriceSource, cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	reference := cfg.ReferencePrice
	if reference <= 0 {
		reference = DefaultReferencePrice
	}
	return &Engine{
		source:     source,
		baseSymbol: cfg.BaseSymbol,
		reference:  reference,
		logger:     logger,
	}
}

// ComputeQuote estimates the output of swapping amount of inSymbol into
// outSymbol. It always returns a quote; when the price is unavailable the
// last known or reference rate is used and the quote is marked stale.
func (e *Engine) ComputeQuote(ctx context.Context, amount decimal.Decimal, inSymbol, outSymbol string, slippageBps uint32) model.Quote {
	if amount.Sign() <= 0 || model.SameSymbol(inSymbol, outSymbol) {
		return model.ZeroQuote(slippageBps)
	}

	price, stale := e.currentPrice(ctx)
	rate := price
	if !model.SameSymbol(inSymbol, e.baseSymbol) {
		rate = 1 / price
	}

	output := amount.Mul(decimal.NewFromFloat(rate)).Round(model.DisplayPlaces)
	slippage := decimal.NewFromInt(int64(slippageBps)).Div(bpsDenominator)
	minimum := output.Mul(decimal.NewFromInt(1).Sub(slippage)).Round(model.DisplayPlaces)

	return model.Quote{
		InputAmount:          amount,
		OutputAmount:         output,
		PriceImpactPct:       PriceImpactPct(amount),
		MinimumReceived:      minimum,
		SlippageToleranceBps: slippageBps,
		Rate:                 rate,
		Stale:                stale,
	}
}

// PriceImpactPct is the linear placeholder policy min(amount/1000*0.1, 5).
// It does not model pool depth.
func PriceImpactPct(amount decimal.Decimal) float64 {
	if amount.Sign() <= 0 {
		return 0
	}
	impact := decimal.Min(amount.Mul(impactPerUnit), maxImpact)
	f, _ := impact.Float64()
	return f
}

// LastKnownPrice returns the last authoritative price, if any.
func (e *Engine) LastKnownPrice() (float64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastKnown, e.lastKnown > 0
}

func (e *Engine) currentPrice(ctx context.Context) (float64, bool) {
	result, err := e.source.GetPoolPrice(ctx)
	if err == nil && !result.Degraded() && result.Price > 0 {
		e.mu.Lock()
		e.lastKnown = result.Price
		e.mu.Unlock()
		return result.Price, false
	}

	if err != nil {
		e.logger.Warn("price unavailable for quote", zap.Error(err))
	}
	if last, ok := e.LastKnownPrice(); ok {
		return last, true
	}
	return e.reference, true
}
