package model

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Router methods the desk calls.
const (
	MethodSwap                 = "swapExactInputSingle"
	MethodAddLiquidity         = "addLiquidity"
	MethodRemoveLiquidity      = "removeLiquidity"
	MethodCollectFees          = "collectFees"
	MethodApprovePosition      = "approvePositionManager"
	MethodAddTransactionRecord = "addTransactionToHistory"
)

// CallDescriptor describes a router call. The chain client packs it.
type CallDescriptor struct {
	Method   string
	Args     []interface{}
	Value    *big.Int
	GasLimit uint64
}

// TxHandle identifies a sent transaction.
type TxHandle struct {
	Hash  common.Hash
	Nonce uint64
}

// ReceiptStatus is the execution status of a mined transaction.
type ReceiptStatus int

const (
	ReceiptSuccess ReceiptStatus = iota
	ReceiptReverted
)

// Receipt is the mined result of a transaction.
type Receipt struct {
	Status       ReceiptStatus
	Hash         common.Hash
	BlockNumber  uint64
	GasUsed      uint64
	RevertReason string
}

// Capabilities lists optional router methods detected once per session.
type Capabilities struct {
	TokenPrice       bool `json:"token_price"`
	HistoryRecord    bool `json:"history_record"`
	PositionApproval bool `json:"position_approval"`
	UserPositions    bool `json:"user_positions"`
	PositionDetails  bool `json:"position_details"`
	PositionManager  bool `json:"position_manager"`
}

// PoolReader reads pool state.
type PoolReader interface {
	GetPoolState(ctx context.Context, pool common.Address) (PoolState, error)
	// GetTokenPrice returns the router's price of token0 in token1 base units, scaled by 1e18.
	GetTokenPrice(ctx context.Context, pool common.Address) (*big.Int, error)
}

// BalanceReader reads balances. A zero token address reads the native balance.
type BalanceReader interface {
	GetTokenBalance(ctx context.Context, token, account common.Address) (*big.Int, error)
}

// ChainClient is everything the orchestrator needs from the chain.
type ChainClient interface {
	PoolReader
	BalanceReader
	GetAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	SendApproval(ctx context.Context, token, spender common.Address, amount *big.Int) (TxHandle, error)
	EstimateGas(ctx context.Context, call CallDescriptor) (uint64, error)
	SendTransaction(ctx context.Context, call CallDescriptor) (TxHandle, error)
	WaitForReceipt(ctx context.Context, tx TxHandle) (Receipt, error)
	Capabilities() Capabilities
}
