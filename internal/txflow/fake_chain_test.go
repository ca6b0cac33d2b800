package txflow

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"liquidityDesk/internal/model"
)

type approval struct {
	token   common.Address
	spender common.Address
	amount  *big.Int
}

// fakeChain records every write in order and mines everything instantly.
type fakeChain struct {
	mu sync.Mutex

	caps       model.Capabilities
	balances   map[common.Address]*big.Int
	allowances map[common.Address]*big.Int

	approveErr    map[common.Address]error
	approveRevert map[common.Address]bool
	estimateErr   error
	sendErr       map[string]error
	revertMethod  map[string]string
	receiptErr    error

	log       []string
	approvals []approval
	sent      []model.CallDescriptor
	nonce     uint64
	pending   map[common.Hash]func() model.Receipt
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		balances:      make(map[common.Address]*big.Int),
		allowances:    make(map[common.Address]*big.Int),
		approveErr:    make(map[common.Address]error),
		approveRevert: make(map[common.Address]bool),
		sendErr:       make(map[string]error),
		revertMethod:  make(map[string]string),
		pending:       make(map[common.Hash]func() model.Receipt),
	}
}

func (f *fakeChain) GetPoolState(ctx context.Context, pool common.Address) (model.PoolState, error) {
	return model.PoolState{}, errors.New("not used")
}

func (f *fakeChain) GetTokenPrice(ctx context.Context, pool common.Address) (*big.Int, error) {
	return nil, errors.New("not used")
}

func (f *fakeChain) GetTokenBalance(ctx context.Context, token, account common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.balances[token]; ok {
		return new(big.Int).Set(v), nil
	}
	return new(big.Int), nil
}

func (f *fakeChain) GetAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.allowances[token]; ok {
		return new(big.Int).Set(v), nil
	}
	return new(big.Int), nil
}

func (f *fakeChain) nextHash() (common.Hash, uint64) {
	f.nonce++
	return common.BigToHash(new(big.Int).SetUint64(f.nonce)), f.nonce
}

func (f *fakeChain) SendApproval(ctx context.Context, token, spender common.Address, amount *big.Int) (model.TxHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, "approve:"+token.Hex())
	if err := f.approveErr[token]; err != nil {
		return model.TxHandle{}, err
	}
	f.approvals = append(f.approvals, approval{token: token, spender: spender, amount: new(big.Int).Set(amount)})
	hash, nonce := f.nextHash()
	revert := f.approveRevert[token]
	f.pending[hash] = func() model.Receipt {
		if revert {
			return model.Receipt{Status: model.ReceiptReverted, Hash: hash}
		}
		if f.allowances[token] == nil || f.allowances[token].Cmp(amount) < 0 {
			f.allowances[token] = new(big.Int).Set(amount)
		}
		return model.Receipt{Status: model.ReceiptSuccess, Hash: hash}
	}
	return model.TxHandle{Hash: hash, Nonce: nonce}, nil
}

func (f *fakeChain) EstimateGas(ctx context.Context, call model.CallDescriptor) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.estimateErr != nil {
		return 0, f.estimateErr
	}
	return 210_000, nil
}

func (f *fakeChain) SendTransaction(ctx context.Context, call model.CallDescriptor) (model.TxHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, "send:"+call.Method)
	if err := f.sendErr[call.Method]; err != nil {
		return model.TxHandle{}, err
	}
	f.sent = append(f.sent, call)
	hash, nonce := f.nextHash()
	reason, reverts := f.revertMethod[call.Method]
	f.pending[hash] = func() model.Receipt {
		if reverts {
			return model.Receipt{Status: model.ReceiptReverted, Hash: hash, RevertReason: reason}
		}
		return model.Receipt{Status: model.ReceiptSuccess, Hash: hash, GasUsed: call.GasLimit / 2}
	}
	return model.TxHandle{Hash: hash, Nonce: nonce}, nil
}

func (f *fakeChain) WaitForReceipt(ctx context.Context, tx model.TxHandle) (model.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.receiptErr != nil {
		return model.Receipt{}, f.receiptErr
	}
	mine, ok := f.pending[tx.Hash]
	if !ok {
		return model.Receipt{}, fmt.Errorf("unknown tx %s", tx.Hash.Hex())
	}
	delete(f.pending, tx.Hash)
	return mine(), nil
}

func (f *fakeChain) Capabilities() model.Capabilities {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.caps
}

func (f *fakeChain) writes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.log))
	copy(out, f.log)
	return out
}

func (f *fakeChain) sentCalls() []model.CallDescriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.CallDescriptor, len(f.sent))
	copy(out, f.sent)
	return out
}
