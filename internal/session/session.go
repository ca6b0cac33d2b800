package session

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityDesk/internal/balance"
	"liquidityDesk/internal/chain"
	"liquidityDesk/internal/config"
	"liquidityDesk/internal/dex"
	"liquidityDesk/internal/model"
	"liquidityDesk/internal/oracle"
	"liquidityDesk/internal/quote"
	"liquidityDesk/internal/storage"
	"liquidityDesk/internal/storage/postgres"
	"liquidityDesk/internal/txflow"
)

// Session wires one user's view of one pool: price, quotes, ratio checks,
// balances, transactions and history. Nothing is shared between sessions.
type Session struct {
	cfg    config.Config
	addrs  config.Addresses
	logger *zap.Logger

	client       *chain.Client
	ownsClient   bool
	adapter      *dex.Adapter
	caps         model.Capabilities
	chainID      uint64
	account      common.Address
	hasAccount   bool
	token0       model.Token
	token1       model.Token
	base         model.Token
	quote        model.Token
	native       model.Token
	oracle       *oracle.Oracle
	quotes       *quote.Engine
	balances     *balance.Cache
	orchestrator *txflow.Orchestrator
	history      storage.HistoryStore
	pg           *postgres.Store
}

// Open dials the configured RPC endpoint and builds a session on it.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	s, err := New(ctx, client, cfg, logger)
	if err != nil {
		client.Close()
		return nil, err
	}
	s.ownsClient = true
	return s, nil
}

// New builds a session on an existing client. It resolves router capabilities
// and pool token metadata once; both are immutable for the session.
func New(ctx context.Context, client *chain.Client, cfg config.Config, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	addrs, err := cfg.ParseAddresses()
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:    cfg,
		addrs:  addrs,
		logger: logger,
		client: client,
		native: model.NativeToken(cfg.NativeSymbol),
	}

	if err := s.resolveChain(ctx); err != nil {
		return nil, err
	}

	var signer *chain.Signer
	if cfg.PrivateKey != "" {
		signer, err = chain.NewSigner(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		s.account = signer.Address()
		s.hasAccount = true
	}

	s.adapter = dex.NewAdapter(client, dex.AdapterConfig{
		Router:       addrs.Router,
		Signer:       signer,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		ReceiptPoll:  cfg.ReceiptPoll,
		Logger:       logger,
	})

	caps, err := dex.ResolveCapabilities(ctx, client, addrs.Router)
	if err != nil {
		return nil, fmt.Errorf("resolve router capabilities: %w", err)
	}
	s.caps = caps
	s.adapter.SetCapabilities(caps)

	if err := s.resolveTokens(ctx); err != nil {
		return nil, err
	}

	s.oracle = oracle.New(s.adapter, oracle.Config{
		Pool:         addrs.Pool,
		QuoteToken:   s.quote.Address,
		Token0:       s.token0.Address,
		Token1:       s.token1.Address,
		Decimals0:    s.token0.Decimals,
		Decimals1:    s.token1.Decimals,
		Capabilities: caps,
		Logger:       logger,
	})
	s.quotes = quote.NewEngine(s.oracle, quote.Config{
		BaseSymbol:     s.base.Symbol,
		ReferencePrice: cfg.ReferencePrice,
		Logger:         logger,
	})
	s.balances = balance.NewCache(s.adapter, balance.Config{
		Tokens:   []model.Token{s.base, s.quote, s.native},
		Interval: cfg.PollInterval,
		Logger:   logger,
	})

	recorders, err := s.openHistory(ctx)
	if err != nil {
		return nil, err
	}

	s.orchestrator = txflow.New(s.adapter, txflow.Config{
		Account:          s.account,
		Spender:          addrs.Router,
		ChainID:          s.chainID,
		GasLimitFallback: cfg.GasLimitFallback,
		ReceiptTimeout:   cfg.ReceiptTimeout,
		ApproveExact:     cfg.ApproveExact,
		Token0Symbol:     s.token0.Symbol,
		Token1Symbol:     s.token1.Symbol,
		Refresher:        s.balances,
		Recorders:        recorders,
		Logger:           logger,
	})

	logger.Info("session ready",
		zap.Uint64("chain_id", s.chainID),
		zap.String("pool", addrs.Pool.Hex()),
		zap.String("router", addrs.Router.Hex()),
		zap.String("base", s.base.Symbol),
		zap.String("quote", s.quote.Symbol),
		zap.Bool("signer", s.hasAccount),
		zap.Any("capabilities", caps),
	)
	return s, nil
}

func (s *Session) resolveChain(ctx context.Context) error {
	id, err := s.client.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("chain id: %w", err)
	}
	if !id.IsUint64() {
		return fmt.Errorf("chain id out of range: %s", id)
	}
	s.chainID = id.Uint64()
	if s.cfg.ChainID != 0 && s.cfg.ChainID != s.chainID {
		return fmt.Errorf("chain id mismatch: configured %d, rpc reports %d", s.cfg.ChainID, s.chainID)
	}
	return nil
}

// resolveTokens reads the pool's tokens and picks base and quote. Without
// explicit configuration token0 is the base.
func (s *Session) resolveTokens(ctx context.Context) error {
	state, err := s.adapter.GetPoolState(ctx, s.addrs.Pool)
	if err != nil {
		return fmt.Errorf("read pool: %w", err)
	}
	if s.token0, err = s.token(ctx, state.Token0); err != nil {
		return err
	}
	if s.token1, err = s.token(ctx, state.Token1); err != nil {
		return err
	}

	inPool := func(addr common.Address) bool {
		return addr == state.Token0 || addr == state.Token1
	}
	other := func(addr common.Address) model.Token {
		if addr == state.Token0 {
			return s.token1
		}
		return s.token0
	}
	byAddress := func(addr common.Address) model.Token {
		if addr == state.Token0 {
			return s.token0
		}
		return s.token1
	}

	base, quoteToken := s.addrs.BaseToken, s.addrs.QuoteToken
	for _, addr := range []common.Address{base, quoteToken} {
		if addr != (common.Address{}) && !inPool(addr) {
			return fmt.Errorf("%w: %s", ErrUnknownToken, addr.Hex())
		}
	}
	switch {
	case base != (common.Address{}):
		s.base, s.quote = byAddress(base), other(base)
	case quoteToken != (common.Address{}):
		s.base, s.quote = other(quoteToken), byAddress(quoteToken)
	default:
		s.base, s.quote = s.token0, s.token1
	}
	if model.SameSymbol(s.base.Symbol, s.quote.Symbol) {
		return fmt.Errorf("pool tokens share symbol %q", s.base.Symbol)
	}
	return nil
}

func (s *Session) token(ctx context.Context, addr common.Address) (model.Token, error) {
	meta, err := s.adapter.TokenMeta(ctx, addr)
	if err != nil {
		return model.Token{}, err
	}
	symbol := meta.Symbol
	if symbol == "" {
		symbol = addr.Hex()[:10]
	}
	return model.Token{Symbol: symbol, Address: addr, Decimals: meta.Decimals}, nil
}

// openHistory builds the history sinks. Postgres, when configured, also
// serves history listings; otherwise the JSONL file does.
func (s *Session) openHistory(ctx context.Context) ([]txflow.HistoryRecorder, error) {
	var recorders []txflow.HistoryRecorder

	if s.cfg.HistoryOut != "" {
		jsonl := storage.NewJsonlStorage(s.cfg.HistoryOut)
		recorders = append(recorders, jsonl)
		s.history = jsonl
	}

	if s.cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, s.cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		s.pg = store
		s.history = store
		recorders = append(recorders, store)
	}

	if s.cfg.HistoryOnchain {
		if s.caps.HistoryRecord {
			recorders = append(recorders, txflow.NewChainRecorder(s.adapter, s.cfg.GasLimitFallback))
		} else {
			s.logger.Warn("router does not record history on chain; history-onchain ignored")
		}
	}
	return recorders, nil
}

// Close stops background work and releases connections.
func (s *Session) Close() {
	s.balances.Stop()
	s.orchestrator.Wait()
	if s.pg != nil {
		s.pg.Close()
	}
	if s.ownsClient {
		s.client.Close()
	}
}

// Base returns the token prices are quoted per.
func (s *Session) Base() model.Token { return s.base }

// Quote returns the token prices are expressed in.
func (s *Session) Quote() model.Token { return s.quote }

// Native returns the native asset descriptor.
func (s *Session) Native() model.Token { return s.native }

func (s *Session) ChainID() uint64 { return s.chainID }

func (s *Session) Capabilities() model.Capabilities { return s.caps }

// Account returns the signing account, if any.
func (s *Session) Account() (common.Address, bool) {
	return s.account, s.hasAccount
}

// TokenBySymbol returns the pool token with symbol.
func (s *Session) TokenBySymbol(symbol string) (model.Token, error) {
	for _, tok := range []model.Token{s.base, s.quote} {
		if model.SameSymbol(tok.Symbol, symbol) {
			return tok, nil
		}
	}
	return model.Token{}, fmt.Errorf("%w: %s", ErrUnknownToken, symbol)
}

// Positions lists positions of account, or of the signer when account is zero.
func (s *Session) Positions(ctx context.Context, account common.Address) ([]model.Position, error) {
	if account == (common.Address{}) {
		if !s.hasAccount {
			return nil, ErrReadOnly
		}
		account = s.account
	}
	return s.adapter.Positions(ctx, account)
}

// History lists recorded transactions of account, newest first. An empty
// account lists the signer's history, or everything in read-only sessions.
func (s *Session) History(ctx context.Context, account string, limit int) ([]model.HistoryRecord, error) {
	if s.history == nil {
		return nil, ErrNoHistory
	}
	if account == "" && s.hasAccount {
		account = s.account.Hex()
	}
	records, err := s.history.ListHistory(ctx, account, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return records, nil
}
