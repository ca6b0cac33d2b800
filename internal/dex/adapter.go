package dex

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"liquidityDesk/internal/chain"
	"liquidityDesk/internal/model"
)

// approveGasFallback is used when estimating an ERC20 approve fails.
const approveGasFallback uint64 = 100_000

// AdapterConfig configures an Adapter.
type AdapterConfig struct {
	Router       common.Address
	Signer       *chain.Signer
	MaxRetries   int
	RetryBackoff time.Duration
	ReceiptPoll  time.Duration
	Logger       *zap.Logger
}

// Adapter implements model.ChainClient against a V3 pool and its router.
type Adapter struct {
	client       *chain.Client
	router       common.Address
	signer       *chain.Signer
	maxRetries   int
	retryBackoff time.Duration
	receiptPoll  time.Duration
	tokens       *TokenMetaCache
	logger       *zap.Logger

	mu   sync.RWMutex
	caps model.Capabilities
	sent map[common.Hash]*types.Transaction
}

var _ model.ChainClient = (*Adapter)(nil)

// NewAdapter wraps client. Capabilities start empty until SetCapabilities.
func NewAdapter(client *chain.Client, cfg AdapterConfig) *Adapter {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		client:       client,
		router:       cfg.Router,
		signer:       cfg.Signer,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
		receiptPoll:  cfg.ReceiptPoll,
		tokens:       NewTokenMetaCache(),
		logger:       logger,
		sent:         make(map[common.Hash]*types.Transaction),
	}
}

// SetCapabilities installs the capability set resolved for this session.
func (a *Adapter) SetCapabilities(caps model.Capabilities) {
	a.mu.Lock()
	a.caps = caps
	a.mu.Unlock()
}

// Capabilities returns the router capability set.
func (a *Adapter) Capabilities() model.Capabilities {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.caps
}

// Account returns the signing account, if a key is configured.
func (a *Adapter) Account() (common.Address, bool) {
	if a.signer == nil {
		return common.Address{}, false
	}
	return a.signer.Address(), true
}

// Router returns the router address calls are sent to.
func (a *Adapter) Router() common.Address {
	return a.router
}

func (a *Adapter) retry(ctx context.Context, fn func(context.Context) error) error {
	return chain.WithRetry(ctx, a.maxRetries, a.retryBackoff, fn)
}

func (a *Adapter) from() common.Address {
	if a.signer == nil {
		return common.Address{}
	}
	return a.signer.Address()
}

// TokenMeta returns cached token metadata, loading it on first use.
func (a *Adapter) TokenMeta(ctx context.Context, token common.Address) (model.TokenMeta, error) {
	if meta, ok := a.tokens.Get(token); ok {
		return meta, nil
	}
	var meta model.TokenMeta
	err := a.retry(ctx, func(ctx context.Context) error {
		var err error
		meta, err = FetchTokenMeta(ctx, a.client, token, a.logger)
		return err
	})
	if err != nil {
		return model.TokenMeta{}, fmt.Errorf("token %s metadata: %w", token.Hex(), err)
	}
	a.tokens.Set(token, meta)
	return meta, nil
}

// GetPoolState reads slot0, liquidity and token decimals of pool.
func (a *Adapter) GetPoolState(ctx context.Context, pool common.Address) (model.PoolState, error) {
	var state model.PoolState
	err := a.retry(ctx, func(ctx context.Context) error {
		var err error
		state, err = FetchPoolState(ctx, a.client, pool)
		return err
	})
	if err != nil {
		return model.PoolState{}, err
	}

	meta0, err := a.TokenMeta(ctx, state.Token0)
	if err != nil {
		return model.PoolState{}, err
	}
	meta1, err := a.TokenMeta(ctx, state.Token1)
	if err != nil {
		return model.PoolState{}, err
	}
	state.Token0Decimals = meta0.Decimals
	state.Token1Decimals = meta1.Decimals
	return state, nil
}

// GetTokenPrice reads the router's 1e18-scaled token1-per-token0 raw price.
// The router is bound to a single pool, so pool only labels errors.
func (a *Adapter) GetTokenPrice(ctx context.Context, pool common.Address) (*big.Int, error) {
	if !a.Capabilities().TokenPrice {
		return nil, fmt.Errorf("%w: getTokenPrice", ErrCapability)
	}
	values, err := a.callRouter(ctx, "getTokenPrice")
	if err != nil {
		return nil, fmt.Errorf("token price for pool %s: %w", pool.Hex(), err)
	}
	return asBigInt(values[0])
}

// GetTokenBalance returns the balance of account in token base units. A zero
// token address reads the native balance.
func (a *Adapter) GetTokenBalance(ctx context.Context, token, account common.Address) (*big.Int, error) {
	var balance *big.Int
	err := a.retry(ctx, func(ctx context.Context) error {
		if token == (common.Address{}) {
			value, err := a.client.BalanceAt(ctx, account)
			if err != nil {
				return fmt.Errorf("native balance: %w", err)
			}
			balance = value
			return nil
		}
		parsed, err := erc20ABIStringInstance()
		if err != nil {
			return fmt.Errorf("parse erc20 abi: %w", err)
		}
		values, err := callMethod(ctx, a.client, token, common.Address{}, parsed, "balanceOf", nil, account)
		if err != nil {
			return err
		}
		balance, err = asBigInt(values[0])
		return err
	})
	if err != nil {
		return nil, err
	}
	return balance, nil
}

// GetAllowance returns the ERC20 allowance granted by owner to spender.
func (a *Adapter) GetAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	parsed, err := erc20ABIStringInstance()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	var allowance *big.Int
	err = a.retry(ctx, func(ctx context.Context) error {
		values, err := callMethod(ctx, a.client, token, common.Address{}, parsed, "allowance", nil, owner, spender)
		if err != nil {
			return err
		}
		allowance, err = asBigInt(values[0])
		return err
	})
	if err != nil {
		return nil, err
	}
	return allowance, nil
}

// SendApproval sends an ERC20 approve of amount to spender.
func (a *Adapter) SendApproval(ctx context.Context, token, spender common.Address, amount *big.Int) (model.TxHandle, error) {
	if a.signer == nil {
		return model.TxHandle{}, chain.ErrMissingKey
	}
	parsed, err := erc20ABIStringInstance()
	if err != nil {
		return model.TxHandle{}, fmt.Errorf("parse erc20 abi: %w", err)
	}
	data, err := parsed.Pack("approve", spender, amount)
	if err != nil {
		return model.TxHandle{}, fmt.Errorf("pack approve: %w", err)
	}

	gas, err := a.client.EstimateGas(ctx, ethereum.CallMsg{From: a.from(), To: &token, Data: data})
	if err != nil {
		a.logger.Debug("approve gas estimation failed", zap.String("token", token.Hex()), zap.Error(err))
		gas = approveGasFallback
	}
	return a.send(ctx, chain.TxRequest{To: token, Data: data, Gas: gas})
}

// EstimateGas estimates a router call from the signing account.
func (a *Adapter) EstimateGas(ctx context.Context, call model.CallDescriptor) (uint64, error) {
	data, err := a.packRouter(call)
	if err != nil {
		return 0, err
	}
	router := a.router
	return a.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  a.from(),
		To:    &router,
		Value: call.Value,
		Data:  data,
	})
}

// SendTransaction signs and sends a router call with call.GasLimit.
func (a *Adapter) SendTransaction(ctx context.Context, call model.CallDescriptor) (model.TxHandle, error) {
	if a.signer == nil {
		return model.TxHandle{}, chain.ErrMissingKey
	}
	data, err := a.packRouter(call)
	if err != nil {
		return model.TxHandle{}, err
	}
	return a.send(ctx, chain.TxRequest{To: a.router, Data: data, Value: call.Value, Gas: call.GasLimit})
}

func (a *Adapter) send(ctx context.Context, req chain.TxRequest) (model.TxHandle, error) {
	tx, err := a.client.SendTx(ctx, a.signer, req)
	if err != nil {
		return model.TxHandle{}, err
	}
	a.mu.Lock()
	a.sent[tx.Hash()] = tx
	a.mu.Unlock()
	a.logger.Debug("tx sent",
		zap.String("hash", tx.Hash().Hex()),
		zap.String("to", req.To.Hex()),
		zap.Uint64("nonce", tx.Nonce()),
		zap.Uint64("gas", tx.Gas()),
	)
	return model.TxHandle{Hash: tx.Hash(), Nonce: tx.Nonce()}, nil
}

// WaitForReceipt blocks until tx is mined. A reverted receipt carries the
// revert reason when the node can replay it.
func (a *Adapter) WaitForReceipt(ctx context.Context, handle model.TxHandle) (model.Receipt, error) {
	receipt, err := a.client.WaitReceipt(ctx, handle.Hash, a.receiptPoll)
	if err != nil {
		return model.Receipt{}, err
	}

	out := model.Receipt{
		Status:  model.ReceiptSuccess,
		Hash:    receipt.TxHash,
		GasUsed: receipt.GasUsed,
	}
	if receipt.BlockNumber != nil {
		out.BlockNumber = receipt.BlockNumber.Uint64()
	}

	a.mu.Lock()
	tx := a.sent[handle.Hash]
	delete(a.sent, handle.Hash)
	a.mu.Unlock()

	if receipt.Status == types.ReceiptStatusSuccessful {
		return out, nil
	}

	out.Status = model.ReceiptReverted
	if tx == nil {
		tx, err = a.client.TransactionByHash(ctx, handle.Hash)
		if err != nil {
			a.logger.Debug("revert replay skipped", zap.String("hash", handle.Hash.Hex()), zap.Error(err))
			return out, nil
		}
	}
	out.RevertReason = a.client.ReplayRevertReason(ctx, a.from(), tx, receipt.BlockNumber)
	return out, nil
}

func (a *Adapter) packRouter(call model.CallDescriptor) ([]byte, error) {
	parsed, err := RouterABI()
	if err != nil {
		return nil, fmt.Errorf("parse router abi: %w", err)
	}
	if _, ok := parsed.Methods[call.Method]; !ok {
		return nil, fmt.Errorf("unknown router method %q", call.Method)
	}
	if err := a.requireCapability(call.Method); err != nil {
		return nil, err
	}
	data, err := parsed.Pack(call.Method, call.Args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", call.Method, err)
	}
	return data, nil
}

func (a *Adapter) requireCapability(method string) error {
	caps := a.Capabilities()
	var ok bool
	switch method {
	case model.MethodApprovePosition:
		ok = caps.PositionApproval
	case model.MethodAddTransactionRecord:
		ok = caps.HistoryRecord
	default:
		return nil
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrCapability, method)
	}
	return nil
}

func (a *Adapter) callRouter(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	parsed, err := RouterABI()
	if err != nil {
		return nil, fmt.Errorf("parse router abi: %w", err)
	}
	var values []interface{}
	err = a.retry(ctx, func(ctx context.Context) error {
		var err error
		values, err = callMethod(ctx, a.client, a.router, a.from(), parsed, method, nil, args...)
		return err
	})
	return values, err
}
