package session

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquidityDesk/internal/balance"
	"liquidityDesk/internal/model"
	"liquidityDesk/internal/ratio"
	"liquidityDesk/internal/txflow"
)

// Price returns the current quote-per-base pool price.
func (s *Session) Price(ctx context.Context) (model.PriceResult, error) {
	return s.oracle.GetPoolPrice(ctx)
}

// GetQuote estimates swapping amount of inSymbol into outSymbol with the
// configured slippage tolerance.
func (s *Session) GetQuote(ctx context.Context, amount decimal.Decimal, inSymbol, outSymbol string) model.Quote {
	return s.quotes.ComputeQuote(ctx, amount, inSymbol, outSymbol, s.cfg.SlippageBps)
}

// CheckRatio validates a deposit of baseAmount and quoteAmount against the
// pool price. It returns nil when either amount is not positive.
func (s *Session) CheckRatio(ctx context.Context, baseAmount, quoteAmount decimal.Decimal) (*model.RatioCheck, error) {
	price, err := s.oracle.GetPoolPrice(ctx)
	if err != nil {
		return nil, err
	}
	return ratio.Validate(baseAmount, quoteAmount, price, s.cfg.RatioToleranceBps), nil
}

// SwapIntent builds a swap of amountIn of inSymbol for the other pool token.
// The expected output is taken from a fresh quote.
func (s *Session) SwapIntent(ctx context.Context, inSymbol, amountIn string) (model.SwapIntent, model.Quote, error) {
	in, err := s.TokenBySymbol(inSymbol)
	if err != nil {
		return model.SwapIntent{}, model.Quote{}, err
	}
	out := s.quote
	if in.Address == s.quote.Address {
		out = s.base
	}

	intent := model.SwapIntent{TokenIn: in, TokenOut: out, AmountIn: amountIn}
	amount, err := model.ParseAmount(amountIn)
	if err != nil {
		// Submit reports the invalid amount as an outcome.
		return intent, model.ZeroQuote(s.cfg.SlippageBps), nil
	}
	q := s.GetQuote(ctx, amount, in.Symbol, out.Symbol)
	intent.ExpectedOut = model.FormatAmount(q.OutputAmount)
	return intent, q, nil
}

// AddLiquidityIntent builds a deposit from base and quote amounts, ordered
// as the pool orders its tokens, with the ratio check attached.
func (s *Session) AddLiquidityIntent(ctx context.Context, baseAmount, quoteAmount string) (model.AddLiquidityIntent, error) {
	intent := model.AddLiquidityIntent{Token0: s.token0, Token1: s.token1}
	if s.base.Address == s.token0.Address {
		intent.Amount0, intent.Amount1 = baseAmount, quoteAmount
	} else {
		intent.Amount0, intent.Amount1 = quoteAmount, baseAmount
	}

	base, errBase := model.ParseAmount(baseAmount)
	quoteAmt, errQuote := model.ParseAmount(quoteAmount)
	if errBase != nil || errQuote != nil {
		return intent, nil
	}
	check, err := s.CheckRatio(ctx, base, quoteAmt)
	if err != nil {
		return intent, err
	}
	intent.Ratio = check
	return intent, nil
}

// Submit runs intent through the transaction flow.
func (s *Session) Submit(ctx context.Context, intent model.Intent, progress txflow.ProgressFunc) (model.Outcome, error) {
	if !s.hasAccount {
		return model.Outcome{}, ErrReadOnly
	}
	return s.orchestrator.Submit(ctx, intent, progress)
}

// WatchBalances starts polling balances of account, or of the signer when
// account is zero.
func (s *Session) WatchBalances(ctx context.Context, account common.Address) error {
	if account == (common.Address{}) {
		if !s.hasAccount {
			return ErrReadOnly
		}
		account = s.account
	}
	s.logger.Debug("watching balances", zap.String("account", account.Hex()))
	s.balances.Start(ctx, account)
	return nil
}

// SubscribeBalances registers fn for balance updates and returns the
// function that removes it.
func (s *Session) SubscribeBalances(fn func(balance.Snapshot)) func() {
	return s.balances.Subscribe(fn)
}

// Balances returns the latest balance snapshot.
func (s *Session) Balances() balance.Snapshot {
	return s.balances.Current()
}

// RefreshBalances reads every tracked balance now.
func (s *Session) RefreshBalances(ctx context.Context) error {
	if err := s.balances.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh balances: %w", err)
	}
	return nil
}
