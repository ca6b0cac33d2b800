package txflow

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"go.uber.org/zap"

	"liquidityDesk/internal/model"
)

const (
	// DefaultGasLimitFallback is used when gas estimation fails.
	DefaultGasLimitFallback uint64 = 500_000
	// DefaultReceiptTimeout bounds each wait for a receipt.
	DefaultReceiptTimeout = 3 * time.Minute
	// DefaultSideEffectTimeout bounds post-settlement work.
	DefaultSideEffectTimeout = 30 * time.Second
)

// BalanceRefresher refreshes cached balances after settlement.
type BalanceRefresher interface {
	Refresh(ctx context.Context) error
}

// HistoryRecorder stores settled transactions.
type HistoryRecorder interface {
	PutHistory(ctx context.Context, record model.HistoryRecord) error
}

// Config configures an Orchestrator.
type Config struct {
	Account common.Address
	// Spender is the router that pulls approved tokens.
	Spender          common.Address
	ChainID          uint64
	GasLimitFallback uint64
	ReceiptTimeout   time.Duration
	// ApproveExact approves the spent amount instead of the maximum.
	ApproveExact bool
	// Token0Symbol and Token1Symbol label position records.
	Token0Symbol      string
	Token1Symbol      string
	Refresher         BalanceRefresher
	Recorders         []HistoryRecorder
	SideEffectTimeout time.Duration
	Logger            *zap.Logger
}

// Orchestrator drives an intent through approvals, submission and receipt.
// Steps within one Submit are sequential; separate Submits are independent.
type Orchestrator struct {
	client            model.ChainClient
	account           common.Address
	spender           common.Address
	chainID           uint64
	gasFallback       uint64
	receiptTimeout    time.Duration
	approveExact      bool
	token0Symbol      string
	token1Symbol      string
	refresher         BalanceRefresher
	recorders         []HistoryRecorder
	sideEffectTimeout time.Duration
	logger            *zap.Logger

	sideEffects sync.WaitGroup
}

func New(client model.ChainClient, cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	gasFallback := cfg.GasLimitFallback
	if gasFallback == 0 {
		gasFallback = DefaultGasLimitFallback
	}
	receiptTimeout := cfg.ReceiptTimeout
	if receiptTimeout <= 0 {
		receiptTimeout = DefaultReceiptTimeout
	}
	sideEffectTimeout := cfg.SideEffectTimeout
	if sideEffectTimeout <= 0 {
		sideEffectTimeout = DefaultSideEffectTimeout
	}
	return &Orchestrator{
		client:            client,
		account:           cfg.Account,
		spender:           cfg.Spender,
		chainID:           cfg.ChainID,
		gasFallback:       gasFallback,
		receiptTimeout:    receiptTimeout,
		approveExact:      cfg.ApproveExact,
		token0Symbol:      cfg.Token0Symbol,
		token1Symbol:      cfg.Token1Symbol,
		refresher:         cfg.Refresher,
		recorders:         cfg.Recorders,
		sideEffectTimeout: sideEffectTimeout,
		logger:            logger,
	}
}

// run is the state of one Submit.
type run struct {
	kind      model.IntentKind
	progress  ProgressFunc
	approvals []string
	logger    *zap.Logger
}

func (r *run) emit(p Progress) {
	p.Intent = r.kind
	if r.progress != nil {
		r.progress(p)
	}
}

func (r *run) fail(kind model.ErrorKind, msg string) model.Outcome {
	r.logger.Warn("intent failed", zap.String("kind", string(kind)), zap.String("error", msg))
	r.emit(Progress{State: StateFailed, ErrorKind: kind})
	out := model.Failed(kind, msg)
	out.ApprovalHashes = r.approvals
	return out
}

// Submit executes intent and reports the outcome. User-facing failures are
// returned in the Outcome; the error is reserved for programmer errors.
func (o *Orchestrator) Submit(ctx context.Context, intent model.Intent, progress ProgressFunc) (model.Outcome, error) {
	intent, err := normalize(intent)
	if err != nil {
		return model.Outcome{}, err
	}

	r := &run{
		kind:     intent.Kind(),
		progress: progress,
		logger:   o.logger.With(zap.String("intent", string(intent.Kind()))),
	}
	r.emit(Progress{State: StateIdle})

	r.emit(Progress{State: StateValidatingInputs})
	p, err := o.buildPlan(intent)
	if err != nil {
		return r.fail(model.ErrorInvalidInput, err.Error()), nil
	}

	r.emit(Progress{State: StateCheckingBalance})
	for _, s := range p.spends {
		balance, err := o.client.GetTokenBalance(ctx, s.token.Address, o.account)
		if err != nil {
			return r.fail(classify(err, model.ErrorUnknown), fmt.Sprintf("read %s balance: %v", s.token.Symbol, err)), nil
		}
		if balance.Cmp(s.amount) < 0 {
			return r.fail(model.ErrorInsufficientBalance, fmt.Sprintf("insufficient %s balance: have %s, need %s",
				s.token.Symbol,
				model.FormatAmount(model.FromBaseUnits(balance, s.token.Decimals)),
				model.FormatAmount(s.human))), nil
		}
	}

	r.emit(Progress{State: StateCheckingAllowance})
	var needApproval []spend
	for _, s := range p.spends {
		if s.token.IsNative() {
			continue
		}
		allowance, err := o.client.GetAllowance(ctx, s.token.Address, o.account, o.spender)
		if err != nil {
			return r.fail(classify(err, model.ErrorUnknown), fmt.Sprintf("read %s allowance: %v", s.token.Symbol, err)), nil
		}
		if allowance.Cmp(s.amount) < 0 {
			needApproval = append(needApproval, s)
		}
	}

	for _, s := range needApproval {
		r.emit(Progress{State: StateApproving, Subject: s.token.Symbol})
		hash, err := o.approveToken(ctx, s)
		if hash != "" {
			r.approvals = append(r.approvals, hash)
		}
		if err != nil {
			return r.fail(classify(err, model.ErrorApprovalFailed), fmt.Sprintf("approve %s: %v", s.token.Symbol, err)), nil
		}
		r.logger.Info("token approved", zap.String("token", s.token.Symbol), zap.String("hash", hash))
	}

	if p.positionID != nil {
		subject := "position " + p.positionID.String()
		r.emit(Progress{State: StateApproving, Subject: subject})
		call := model.CallDescriptor{Method: model.MethodApprovePosition, Args: []interface{}{p.positionID}}
		hash, err := o.sendAndWait(ctx, call, r.logger)
		if hash != "" {
			r.approvals = append(r.approvals, hash)
		}
		if err != nil {
			return r.fail(classify(err, model.ErrorApprovalFailed), fmt.Sprintf("approve %s: %v", subject, err)), nil
		}
	}

	r.emit(Progress{State: StateSubmitting})
	call := p.call
	gas, estimateErr := o.client.EstimateGas(ctx, call)
	if estimateErr != nil {
		r.logger.Warn("gas estimation failed, using fallback",
			zap.Uint64("gas_limit", o.gasFallback),
			zap.Error(estimateErr),
		)
		gas = o.gasFallback
	}
	call.GasLimit = gas

	handle, err := o.client.SendTransaction(ctx, call)
	if err != nil {
		fallback := model.ErrorUnknown
		msg := err.Error()
		if estimateErr != nil {
			fallback = model.ErrorGasEstimation
			msg = fmt.Sprintf("%v (gas estimation: %v)", err, estimateErr)
		}
		return r.fail(classify(err, fallback), msg), nil
	}
	hash := handle.Hash.Hex()

	r.emit(Progress{State: StateAwaitingReceipt, Hash: hash})
	receipt, err := o.waitReceipt(ctx, handle)
	if err != nil {
		out := r.fail(classify(err, model.ErrorUnknown), fmt.Sprintf("wait for receipt: %v", err))
		out.Hash = hash
		return out, nil
	}
	if receipt.Status != model.ReceiptSuccess {
		msg := "transaction reverted"
		if receipt.RevertReason != "" {
			msg = "transaction reverted: " + receipt.RevertReason
		}
		out := r.fail(model.ErrorReverted, msg)
		out.Hash = hash
		return out, nil
	}

	r.emit(Progress{State: StateSettled, Hash: hash})
	r.logger.Info("intent settled", zap.String("hash", hash), zap.Uint64("gas_used", receipt.GasUsed))

	record := p.record
	record.ChainID = o.chainID
	record.Account = o.account.Hex()
	record.TxHash = hash
	record.Status = model.HistoryStatusConfirmed
	record.Timestamp = time.Now().UTC()
	o.afterSettled(ctx, record)

	return model.Outcome{Success: true, Hash: hash, ApprovalHashes: r.approvals}, nil
}

// Wait blocks until background side effects of settled intents finish.
func (o *Orchestrator) Wait() {
	o.sideEffects.Wait()
}

func (o *Orchestrator) approveToken(ctx context.Context, s spend) (string, error) {
	amount := new(big.Int).Set(math.MaxBig256)
	if o.approveExact {
		amount = new(big.Int).Set(s.amount)
	}
	handle, err := o.client.SendApproval(ctx, s.token.Address, o.spender, amount)
	if err != nil {
		return "", err
	}
	hash := handle.Hash.Hex()
	receipt, err := o.waitReceipt(ctx, handle)
	if err != nil {
		return hash, err
	}
	if receipt.Status != model.ReceiptSuccess {
		return hash, revertError(receipt)
	}
	return hash, nil
}

// sendAndWait sends an auxiliary router call with the same gas strategy as
// the primary one.
func (o *Orchestrator) sendAndWait(ctx context.Context, call model.CallDescriptor, logger *zap.Logger) (string, error) {
	gas, err := o.client.EstimateGas(ctx, call)
	if err != nil {
		logger.Debug("gas estimation failed, using fallback", zap.String("method", call.Method), zap.Error(err))
		gas = o.gasFallback
	}
	call.GasLimit = gas
	handle, err := o.client.SendTransaction(ctx, call)
	if err != nil {
		return "", err
	}
	hash := handle.Hash.Hex()
	receipt, err := o.waitReceipt(ctx, handle)
	if err != nil {
		return hash, err
	}
	if receipt.Status != model.ReceiptSuccess {
		return hash, revertError(receipt)
	}
	return hash, nil
}

func (o *Orchestrator) waitReceipt(ctx context.Context, handle model.TxHandle) (model.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, o.receiptTimeout)
	defer cancel()
	return o.client.WaitForReceipt(ctx, handle)
}

func revertError(receipt model.Receipt) error {
	if receipt.RevertReason != "" {
		return fmt.Errorf("reverted: %s", receipt.RevertReason)
	}
	return errors.New("reverted")
}

// afterSettled refreshes balances and records history in the background.
// Failures are logged and never change the outcome.
func (o *Orchestrator) afterSettled(ctx context.Context, record model.HistoryRecord) {
	if o.refresher == nil && len(o.recorders) == 0 {
		return
	}
	o.sideEffects.Add(1)
	go func() {
		defer o.sideEffects.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.sideEffectTimeout)
		defer cancel()

		logger := o.logger.With(zap.String("hash", record.TxHash))
		if o.refresher != nil {
			if err := o.refresher.Refresh(ctx); err != nil {
				logger.Warn("balance refresh after settlement failed", zap.Error(err))
			}
		}
		for _, recorder := range o.recorders {
			if err := recorder.PutHistory(ctx, record); err != nil {
				logger.Warn("history record failed", zap.String("recorder", fmt.Sprintf("%T", recorder)), zap.Error(err))
			}
		}
	}()
}
