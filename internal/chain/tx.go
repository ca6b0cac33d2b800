package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TxRequest is an unsigned contract call.
type TxRequest struct {
	To    common.Address
	Data  []byte
	Value *big.Int
	Gas   uint64
}

// SendTx signs req with signer and broadcasts it. Fees follow EIP-1559 when the
// latest header carries a base fee, legacy gas price otherwise.
func (c *Client) SendTx(ctx context.Context, signer *Signer, req TxRequest) (*types.Transaction, error) {
	if signer == nil {
		return nil, ErrMissingKey
	}
	if req.Gas == 0 {
		return nil, fmt.Errorf("gas limit is required")
	}

	chainID, err := c.GetChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	nonce, err := c.ethClient.PendingNonceAt(ctx, signer.Address())
	if err != nil {
		return nil, fmt.Errorf("pending nonce: %w", err)
	}
	header, err := c.ethClient.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("latest header: %w", err)
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	to := req.To

	var tx *types.Transaction
	if header.BaseFee != nil {
		tip, err := c.ethClient.SuggestGasTipCap(ctx)
		if err != nil {
			return nil, fmt.Errorf("suggest tip: %w", err)
		}
		feeCap := new(big.Int).Mul(header.BaseFee, big.NewInt(2))
		feeCap.Add(feeCap, tip)
		tx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Gas:       req.Gas,
			To:        &to,
			Value:     value,
			Data:      req.Data,
		})
	} else {
		gasPrice, err := c.ethClient.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("suggest gas price: %w", err)
		}
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      req.Gas,
			To:       &to,
			Value:    value,
			Data:     req.Data,
		})
	}

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), signer.key)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	if err := c.ethClient.SendTransaction(ctx, signed); err != nil {
		return nil, err
	}
	return signed, nil
}

// WaitReceipt polls for the receipt of hash until it is mined or ctx ends.
func (c *Client) WaitReceipt(ctx context.Context, hash common.Hash, poll time.Duration) (*types.Receipt, error) {
	if poll <= 0 {
		poll = time.Second
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	var lastErr error
	for {
		receipt, err := c.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return nil, fmt.Errorf("wait receipt %s: %w (last error: %v)", hash.Hex(), ctx.Err(), lastErr)
			}
			return nil, fmt.Errorf("wait receipt %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// ReplayRevertReason re-executes a mined transaction as a call at its block
// and returns the revert string, if the node reports one.
func (c *Client) ReplayRevertReason(ctx context.Context, from common.Address, tx *types.Transaction, block *big.Int) string {
	if tx == nil {
		return ""
	}
	msg := ethereum.CallMsg{
		From:  from,
		To:    tx.To(),
		Gas:   tx.Gas(),
		Value: tx.Value(),
		Data:  tx.Data(),
	}
	_, err := c.CallContract(ctx, msg, block)
	return RevertReason(err)
}
