package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL            string
	Pool              string
	Router            string
	BaseToken         string
	QuoteToken        string
	PrivateKey        string
	ChainID           uint64
	SlippageBps       uint32
	RatioToleranceBps uint32
	PollInterval      time.Duration
	GasLimitFallback  uint64
	ReceiptTimeout    time.Duration
	ReceiptPoll       time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration
	ApproveExact      bool
	ReferencePrice    float64
	HistoryOut        string
	PGDSN             string
	HistoryOnchain    bool
	NativeSymbol      string
	LogLevel          string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DESK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("slippage-bps", 50)
	v.SetDefault("ratio-tolerance-bps", 500)
	v.SetDefault("poll-interval", 30*time.Second)
	v.SetDefault("gas-limit-fallback", uint64(500000))
	v.SetDefault("receipt-timeout", 3*time.Minute)
	v.SetDefault("receipt-poll", 2*time.Second)
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("approve-exact", false)
	v.SetDefault("reference-price", 1.2345)
	v.SetDefault("history-out", "./data/history.jsonl")
	v.SetDefault("history-onchain", false)
	v.SetDefault("native-symbol", "ETH")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:            strings.TrimSpace(v.GetString("rpc")),
		Pool:              strings.TrimSpace(v.GetString("pool")),
		Router:            strings.TrimSpace(v.GetString("router")),
		BaseToken:         strings.TrimSpace(v.GetString("base-token")),
		QuoteToken:        strings.TrimSpace(v.GetString("quote-token")),
		PrivateKey:        strings.TrimSpace(v.GetString("private-key")),
		ChainID:           v.GetUint64("chain-id"),
		SlippageBps:       v.GetUint32("slippage-bps"),
		RatioToleranceBps: v.GetUint32("ratio-tolerance-bps"),
		PollInterval:      v.GetDuration("poll-interval"),
		GasLimitFallback:  v.GetUint64("gas-limit-fallback"),
		ReceiptTimeout:    v.GetDuration("receipt-timeout"),
		ReceiptPoll:       v.GetDuration("receipt-poll"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		ApproveExact:      v.GetBool("approve-exact"),
		ReferencePrice:    v.GetFloat64("reference-price"),
		HistoryOut:        v.GetString("history-out"),
		PGDSN:             v.GetString("pg-dsn"),
		HistoryOnchain:    v.GetBool("history-onchain"),
		NativeSymbol:      v.GetString("native-symbol"),
		LogLevel:          v.GetString("log-level"),
	}

	return cfg, nil
}

// Validate checks the settings every session needs.
func (c Config) Validate() error {
	if c.RPCURL == "" {
		return ErrMissingRPC
	}
	if c.Pool == "" {
		return ErrMissingPool
	}
	if c.Router == "" {
		return ErrMissingRouter
	}
	if c.SlippageBps > 10_000 {
		return fmt.Errorf("slippage-bps out of range: %d", c.SlippageBps)
	}
	if c.RatioToleranceBps > 10_000 {
		return fmt.Errorf("ratio-tolerance-bps out of range: %d", c.RatioToleranceBps)
	}
	_, err := c.ParseAddresses()
	return err
}
