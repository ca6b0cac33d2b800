package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityDesk/internal/balance"
	"liquidityDesk/internal/config"
	"liquidityDesk/internal/model"
	"liquidityDesk/internal/session"
)

func newPriceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "price",
		Short: "Show the pool price",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithSession(cmd, func(ctx context.Context, s *session.Session, _ *zap.Logger) error {
				price, err := s.Price(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]interface{}{
					"base":  s.Base().Symbol,
					"quote": s.Quote().Symbol,
					"price": price,
				})
			})
		},
	}
}

func newQuoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Estimate a swap",
		RunE: func(cmd *cobra.Command, _ []string) error {
			amountText, _ := cmd.Flags().GetString("amount")
			in, _ := cmd.Flags().GetString("in")
			out, _ := cmd.Flags().GetString("out")
			amount, err := model.ParseAmount(amountText)
			if err != nil {
				return err
			}
			return runWithSession(cmd, func(ctx context.Context, s *session.Session, _ *zap.Logger) error {
				if out == "" {
					out = otherSymbol(s, in)
				}
				return printJSON(cmd, s.GetQuote(ctx, amount, in, out))
			})
		},
	}
	cmd.Flags().String("amount", "", "input amount")
	cmd.Flags().String("in", "", "input token symbol")
	cmd.Flags().String("out", "", "output token symbol (default the other pool token)")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

func newCheckRatioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check-ratio",
		Short: "Check a deposit against the pool price",
		RunE: func(cmd *cobra.Command, _ []string) error {
			baseText, _ := cmd.Flags().GetString("base-amount")
			quoteText, _ := cmd.Flags().GetString("quote-amount")
			base, err := model.ParseAmount(baseText)
			if err != nil {
				return fmt.Errorf("base amount: %w", err)
			}
			quoteAmount, err := model.ParseAmount(quoteText)
			if err != nil {
				return fmt.Errorf("quote amount: %w", err)
			}
			return runWithSession(cmd, func(ctx context.Context, s *session.Session, _ *zap.Logger) error {
				check, err := s.CheckRatio(ctx, base, quoteAmount)
				if err != nil {
					return err
				}
				if check == nil {
					return fmt.Errorf("amounts must be positive")
				}
				return printJSON(cmd, check)
			})
		},
	}
	cmd.Flags().String("base-amount", "", "base token amount")
	cmd.Flags().String("quote-amount", "", "quote token amount")
	return cmd
}

func newBalancesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balances",
		Short: "Show balances of the pool tokens and the native asset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			accountText, _ := cmd.Flags().GetString("account")
			watch, _ := cmd.Flags().GetBool("watch")
			account, err := config.ParseOptionalAddress("account", accountText)
			if err != nil {
				return err
			}
			return runWithSession(cmd, func(ctx context.Context, s *session.Session, _ *zap.Logger) error {
				updates := make(chan balance.Snapshot, 1)
				unsubscribe := s.SubscribeBalances(func(snap balance.Snapshot) {
					select {
					case updates <- snap:
					default:
					}
				})
				defer unsubscribe()

				if err := s.WatchBalances(ctx, account); err != nil {
					return err
				}
				for {
					select {
					case <-ctx.Done():
						return nil
					case snap := <-updates:
						if err := printJSON(cmd, formatSnapshot(snap)); err != nil {
							return err
						}
						if !watch {
							return nil
						}
					}
				}
			})
		},
	}
	cmd.Flags().String("account", "", "account to read (default the signer)")
	cmd.Flags().Bool("watch", false, "keep printing balances every poll interval")
	return cmd
}

func newPositionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "positions",
		Short: "List liquidity positions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			accountText, _ := cmd.Flags().GetString("account")
			account, err := config.ParseOptionalAddress("account", accountText)
			if err != nil {
				return err
			}
			return runWithSession(cmd, func(ctx context.Context, s *session.Session, _ *zap.Logger) error {
				positions, err := s.Positions(ctx, account)
				if err != nil {
					return err
				}
				return printJSON(cmd, positions)
			})
		},
	}
	cmd.Flags().String("account", "", "position owner (default the signer)")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded transactions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			account, _ := cmd.Flags().GetString("account")
			limit, _ := cmd.Flags().GetInt("limit")
			if account != "" && !common.IsHexAddress(account) {
				return fmt.Errorf("invalid account address: %s", account)
			}
			return runWithSession(cmd, func(ctx context.Context, s *session.Session, _ *zap.Logger) error {
				records, err := s.History(ctx, account, limit)
				if err != nil {
					return err
				}
				return printJSON(cmd, records)
			})
		},
	}
	cmd.Flags().String("account", "", "account to list (default the signer)")
	cmd.Flags().Int("limit", 20, "maximum records, 0 lists all")
	return cmd
}

func otherSymbol(s *session.Session, symbol string) string {
	if model.SameSymbol(symbol, s.Base().Symbol) {
		return s.Quote().Symbol
	}
	return s.Base().Symbol
}

func formatSnapshot(snap balance.Snapshot) map[string]string {
	out := make(map[string]string, len(snap))
	for symbol, amount := range snap {
		out[symbol] = model.FormatAmount(amount)
	}
	return out
}
