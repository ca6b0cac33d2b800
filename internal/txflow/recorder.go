package txflow

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"liquidityDesk/internal/model"
)

// History transaction types understood by the router.
const (
	historyTypeSwap      uint8 = 0
	historyTypeLiquidity uint8 = 1
)

// historyAmountDecimals is the fixed-point precision of recorded amounts.
const historyAmountDecimals uint8 = 18

// ChainRecorder stores history through the router's addTransactionToHistory.
type ChainRecorder struct {
	client           model.ChainClient
	gasLimitFallback uint64
}

func NewChainRecorder(client model.ChainClient, gasLimitFallback uint64) *ChainRecorder {
	if gasLimitFallback == 0 {
		gasLimitFallback = DefaultGasLimitFallback
	}
	return &ChainRecorder{client: client, gasLimitFallback: gasLimitFallback}
}

// PutHistory sends the record and waits for it to be mined.
func (r *ChainRecorder) PutHistory(ctx context.Context, record model.HistoryRecord) error {
	if !r.client.Capabilities().HistoryRecord {
		return ErrHistoryUnsupported
	}

	txType := historyTypeLiquidity
	if record.Kind == model.IntentSwap {
		txType = historyTypeSwap
	}
	call := model.CallDescriptor{
		Method: model.MethodAddTransactionRecord,
		Args: []interface{}{
			txType,
			record.Token0Symbol,
			record.Token1Symbol,
			recordAmount(record.Amount0),
			recordAmount(record.Amount1),
			record.TxHash,
		},
	}

	gas, err := r.client.EstimateGas(ctx, call)
	if err != nil {
		gas = r.gasLimitFallback
	}
	call.GasLimit = gas

	handle, err := r.client.SendTransaction(ctx, call)
	if err != nil {
		return fmt.Errorf("send history record: %w", err)
	}
	receipt, err := r.client.WaitForReceipt(ctx, handle)
	if err != nil {
		return fmt.Errorf("wait history record: %w", err)
	}
	if receipt.Status != model.ReceiptSuccess {
		return fmt.Errorf("history record %s: %w", handle.Hash.Hex(), revertError(receipt))
	}
	return nil
}

// recordAmount scales a human amount for the on-chain log. Non-numeric
// amounts are recorded as zero.
func recordAmount(value string) *big.Int {
	d, err := decimal.NewFromString(value)
	if err != nil || d.Sign() < 0 {
		return new(big.Int)
	}
	return model.ToBaseUnits(d, historyAmountDecimals)
}
