package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityDesk/internal/model"
	"liquidityDesk/internal/session"
	"liquidityDesk/internal/txflow"
)

func newSwapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Swap an exact input amount",
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, _ := cmd.Flags().GetString("in")
			amount, _ := cmd.Flags().GetString("amount")
			return runWithSession(cmd, func(ctx context.Context, s *session.Session, logger *zap.Logger) error {
				intent, q, err := s.SwapIntent(ctx, in, amount)
				if err != nil {
					return err
				}
				logger.Info("swap quote",
					zap.String("in", intent.TokenIn.Symbol),
					zap.String("out", intent.TokenOut.Symbol),
					zap.String("expected_out", intent.ExpectedOut),
					zap.String("minimum_received", model.FormatAmount(q.MinimumReceived)),
					zap.Bool("stale", q.Stale),
				)
				return submit(ctx, cmd, s, logger, intent)
			})
		},
	}
	cmd.Flags().String("in", "", "input token symbol")
	cmd.Flags().String("amount", "", "input amount")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

func newAddLiquidityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-liquidity",
		Short: "Deposit both pool tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			base, _ := cmd.Flags().GetString("base-amount")
			quoteAmount, _ := cmd.Flags().GetString("quote-amount")
			return runWithSession(cmd, func(ctx context.Context, s *session.Session, logger *zap.Logger) error {
				intent, err := s.AddLiquidityIntent(ctx, base, quoteAmount)
				if err != nil {
					return err
				}
				if intent.Ratio != nil {
					logger.Info("deposit ratio",
						zap.Float64("user_ratio", intent.Ratio.UserRatio),
						zap.Float64("pool_price", intent.Ratio.PoolPrice),
						zap.Bool("valid", intent.Ratio.IsValid),
						zap.Bool("initial", intent.Ratio.IsInitialRatio),
					)
				}
				return submit(ctx, cmd, s, logger, intent)
			})
		},
	}
	cmd.Flags().String("base-amount", "", "base token amount")
	cmd.Flags().String("quote-amount", "", "quote token amount")
	return cmd
}

func newRemoveLiquidityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove-liquidity",
		Short: "Withdraw a fraction of a position",
		RunE: func(cmd *cobra.Command, _ []string) error {
			position, _ := cmd.Flags().GetString("position")
			fraction, _ := cmd.Flags().GetString("fraction")
			return runWithSession(cmd, func(ctx context.Context, s *session.Session, logger *zap.Logger) error {
				return submit(ctx, cmd, s, logger, model.RemoveLiquidityIntent{PositionID: position, Fraction: fraction})
			})
		},
	}
	cmd.Flags().String("position", "", "position token id")
	cmd.Flags().String("fraction", "1", "fraction of liquidity to withdraw, in (0, 1]")
	return cmd
}

func newCollectFeesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect-fees",
		Short: "Collect accrued fees of a position",
		RunE: func(cmd *cobra.Command, _ []string) error {
			position, _ := cmd.Flags().GetString("position")
			return runWithSession(cmd, func(ctx context.Context, s *session.Session, logger *zap.Logger) error {
				return submit(ctx, cmd, s, logger, model.CollectFeesIntent{PositionID: position})
			})
		},
	}
	cmd.Flags().String("position", "", "position token id")
	return cmd
}

// submit runs intent, logs every state change and prints the outcome. A
// failed outcome becomes the command error.
func submit(ctx context.Context, cmd *cobra.Command, s *session.Session, logger *zap.Logger, intent model.Intent) error {
	outcome, err := s.Submit(ctx, intent, func(p txflow.Progress) {
		fields := []zap.Field{
			zap.String("intent", string(p.Intent)),
			zap.String("state", string(p.State)),
		}
		if p.Subject != "" {
			fields = append(fields, zap.String("subject", p.Subject))
		}
		if p.Hash != "" {
			fields = append(fields, zap.String("tx", p.Hash))
		}
		if p.ErrorKind != "" {
			fields = append(fields, zap.String("error_kind", string(p.ErrorKind)))
		}
		logger.Info("progress", fields...)
	})
	if err != nil {
		return err
	}
	if err := printJSON(cmd, outcome); err != nil {
		return err
	}
	if !outcome.Success {
		return fmt.Errorf("%s: %s", outcome.ErrorKind, outcome.ErrorMessage)
	}
	return nil
}
