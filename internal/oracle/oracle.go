package oracle

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityDesk/internal/model"
)

// Config configures an Oracle.
type Config struct {
	Pool common.Address
	// QuoteToken is the token prices are expressed in. When it is the pool's
	// token0 the raw price is inverted.
	QuoteToken common.Address
	// Token0, Token1 and their decimals describe the pool when known up
	// front. They let the token price layer run before any pool read has
	// succeeded. Zero addresses leave the pair to be learned from reads.
	Token0       common.Address
	Token1       common.Address
	Decimals0    uint8
	Decimals1    uint8
	Capabilities model.Capabilities
	Logger       *zap.Logger
}

// Oracle turns pool state into a human price. It never fails on RPC errors:
// each layer falls through to the next and the last one is a placeholder.
type Oracle struct {
	reader     model.PoolReader
	pool       common.Address
	quoteToken common.Address
	caps       model.Capabilities
	logger     *zap.Logger

	mu   sync.RWMutex
	pair *pairMeta
}

// pairMeta is the immutable part of a pool read, kept for the token price layer.
type pairMeta struct {
	token0, token1       common.Address
	decimals0, decimals1 uint8
}

func New(reader model.PoolReader, cfg Config) *Oracle {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Oracle{
		reader:     reader,
		pool:       cfg.Pool,
		quoteToken: cfg.QuoteToken,
		caps:       cfg.Capabilities,
		logger:     logger,
	}
	if cfg.Token0 != (common.Address{}) && cfg.Token1 != (common.Address{}) {
		o.pair = &pairMeta{
			token0:    cfg.Token0,
			token1:    cfg.Token1,
			decimals0: cfg.Decimals0,
			decimals1: cfg.Decimals1,
		}
	}
	return o
}

// GetPoolPrice reads the pool fresh and returns quote-per-base price. The only
// error is context cancellation.
func (o *Oracle) GetPoolPrice(ctx context.Context) (model.PriceResult, error) {
	state, err := o.reader.GetPoolState(ctx, o.pool)
	switch {
	case err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model.PriceResult{}, ctxErr
		}
		o.logger.Warn("pool state read failed",
			zap.String("kind", string(model.ErrorOracleUnavailable)),
			zap.String("pool", o.pool.Hex()),
			zap.Error(err),
		)
	case state.Liquidity == nil || state.Liquidity.Sign() == 0:
		o.rememberPair(state)
		return model.InitialPriceResult(model.PriceSourcePool), nil
	default:
		o.rememberPair(state)
		price := HumanPrice(TickToPrice(state.Tick), state.Token0Decimals, state.Token1Decimals, o.invert(state.Token0))
		if IsSane(price) {
			return model.PriceResult{Price: price, Source: model.PriceSourcePool}, nil
		}
		o.logger.Debug("pool price rejected", zap.Int32("tick", state.Tick), zap.Float64("price", price))
	}

	if price, ok := o.tokenPrice(ctx); ok {
		return model.PriceResult{Price: price, Source: model.PriceSourceTokenPrice}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return model.PriceResult{}, ctxErr
	}
	return model.InitialPriceResult(model.PriceSourceDefault), nil
}

func (o *Oracle) tokenPrice(ctx context.Context) (float64, bool) {
	if !o.caps.TokenPrice {
		return 0, false
	}
	pair := o.knownPair()
	if pair == nil {
		o.logger.Debug("token price skipped: pool tokens unknown")
		return 0, false
	}

	raw, err := o.reader.GetTokenPrice(ctx, o.pool)
	if err != nil {
		o.logger.Warn("token price read failed",
			zap.String("kind", string(model.ErrorOracleUnavailable)),
			zap.Error(err),
		)
		return 0, false
	}
	price := HumanPrice(scaledToFloat(raw), pair.decimals0, pair.decimals1, o.invert(pair.token0))
	if !IsSane(price) {
		o.logger.Debug("token price rejected", zap.String("raw", raw.String()), zap.Float64("price", price))
		return 0, false
	}
	return price, true
}

func (o *Oracle) invert(token0 common.Address) bool {
	return o.quoteToken != (common.Address{}) && o.quoteToken == token0
}

func (o *Oracle) rememberPair(state model.PoolState) {
	if state.Token0 == (common.Address{}) || state.Token1 == (common.Address{}) {
		return
	}
	o.mu.Lock()
	o.pair = &pairMeta{
		token0:    state.Token0,
		token1:    state.Token1,
		decimals0: state.Token0Decimals,
		decimals1: state.Token1Decimals,
	}
	o.mu.Unlock()
}

func (o *Oracle) knownPair() *pairMeta {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.pair
}
