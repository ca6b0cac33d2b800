package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"liquidityDesk/internal/config"
	"liquidityDesk/internal/session"
)

func main() {
	root := &cobra.Command{
		Use:          "desk",
		Short:        "Concentrated liquidity trading desk",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	addSessionFlags(root.PersistentFlags())

	root.AddCommand(
		newPriceCmd(),
		newQuoteCmd(),
		newCheckRatioCmd(),
		newSwapCmd(),
		newAddLiquidityCmd(),
		newRemoveLiquidityCmd(),
		newCollectFeesCmd(),
		newBalancesCmd(),
		newPositionsCmd(),
		newHistoryCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addSessionFlags(flags *pflag.FlagSet) {
	flags.String("rpc", "", "EVM RPC URL")
	flags.String("pool", "", "pool address")
	flags.String("router", "", "router address")
	flags.String("base-token", "", "token prices are quoted per (default pool token0)")
	flags.String("quote-token", "", "token prices are expressed in (default pool token1)")
	flags.String("private-key", "", "hex private key of the signing account")
	flags.Uint64("chain-id", 0, "expected chain id, 0 accepts any")
	flags.Uint32("slippage-bps", 50, "slippage tolerance in basis points")
	flags.Uint32("ratio-tolerance-bps", 500, "deposit ratio tolerance in basis points")
	flags.Duration("poll-interval", 30*time.Second, "balance poll interval")
	flags.Uint64("gas-limit-fallback", 500000, "gas limit when estimation fails")
	flags.Duration("receipt-timeout", 3*time.Minute, "maximum wait for a receipt")
	flags.Duration("receipt-poll", 2*time.Second, "receipt poll interval")
	flags.Int("max-retries", 3, "maximum retry attempts for reads")
	flags.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	flags.Bool("approve-exact", false, "approve the spent amount instead of the maximum")
	flags.Float64("reference-price", 1.2345, "quote per base rate used before any price is known")
	flags.String("history-out", "./data/history.jsonl", "history JSONL path, empty disables")
	flags.String("pg-dsn", "", "Postgres DSN for history")
	flags.Bool("history-onchain", false, "also record history through the router")
	flags.String("native-symbol", "ETH", "symbol of the native asset")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

// runWithSession loads config, opens a session and runs fn with a context
// canceled on SIGINT or SIGTERM.
func runWithSession(cmd *cobra.Command, fn func(ctx context.Context, s *session.Session, logger *zap.Logger) error) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := session.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	return fn(ctx, s, logger)
}

func printJSON(cmd *cobra.Command, value interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
