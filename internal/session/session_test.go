package session

import (
	"context"
	"errors"
	"math"
	"math/big"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquidityDesk/internal/chain"
	"liquidityDesk/internal/config"
	"liquidityDesk/internal/dex"
	"liquidityDesk/internal/model"
	"liquidityDesk/internal/storage"
)

const testERC20ABI = `[
	{"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"name":"symbol","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]}
]`

var (
	testPool   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testRouter = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testWETH   = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	testUSDC   = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

type fakeEth struct {
	mu      sync.Mutex
	chainID int64
	code    map[common.Address][]byte
	results map[common.Address]map[[4]byte][]byte
}

type callArgs struct {
	From  *common.Address `json:"from"`
	To    *common.Address `json:"to"`
	Input *hexutil.Bytes  `json:"input"`
	Data  *hexutil.Bytes  `json:"data"`
}

func (f *fakeEth) ChainId(ctx context.Context) (*hexutil.Big, error) {
	return (*hexutil.Big)(big.NewInt(f.chainID)), nil
}

func (f *fakeEth) Call(ctx context.Context, args callArgs, _ gethrpc.BlockNumberOrHash) (hexutil.Bytes, error) {
	var input []byte
	if args.Input != nil {
		input = *args.Input
	} else if args.Data != nil {
		input = *args.Data
	}
	if args.To == nil || len(input) < 4 {
		return nil, errors.New("execution reverted")
	}
	var selector [4]byte
	copy(selector[:], input[:4])

	f.mu.Lock()
	defer f.mu.Unlock()
	if out, ok := f.results[*args.To][selector]; ok {
		return out, nil
	}
	return nil, errors.New("execution reverted")
}

func (f *fakeEth) GetCode(ctx context.Context, addr common.Address, _ gethrpc.BlockNumberOrHash) (hexutil.Bytes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.code[addr], nil
}

func (f *fakeEth) GetBalance(ctx context.Context, addr common.Address, _ gethrpc.BlockNumberOrHash) (*hexutil.Big, error) {
	return (*hexutil.Big)(big.NewInt(0)), nil
}

func (f *fakeEth) set(t *testing.T, contract common.Address, parsed abi.ABI, method string, outputs ...interface{}) {
	t.Helper()
	m, ok := parsed.Methods[method]
	if !ok {
		t.Fatalf("unknown method %s", method)
	}
	data, err := m.Outputs.Pack(outputs...)
	if err != nil {
		t.Fatalf("pack %s outputs: %v", method, err)
	}
	var selector [4]byte
	copy(selector[:], m.ID)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.results[contract] == nil {
		f.results[contract] = make(map[[4]byte][]byte)
	}
	f.results[contract][selector] = data
}

// newFakePool serves a WETH/USDC pool at tick 6932 (about 2 USDC per WETH)
// and a router without optional methods.
func newFakePool(t *testing.T) *fakeEth {
	t.Helper()
	fe := &fakeEth{
		chainID: 1337,
		code:    map[common.Address][]byte{testRouter: {0x00}},
		results: make(map[common.Address]map[[4]byte][]byte),
	}
	poolABI, err := dex.PoolABI()
	if err != nil {
		t.Fatalf("pool abi: %v", err)
	}
	erc20, err := abi.JSON(strings.NewReader(testERC20ABI))
	if err != nil {
		t.Fatalf("erc20 abi: %v", err)
	}
	sqrtPrice, _ := new(big.Int).SetString("79228162514264337593543950336", 10)
	fe.set(t, testPool, poolABI, "token0", testWETH)
	fe.set(t, testPool, poolABI, "token1", testUSDC)
	fe.set(t, testPool, poolABI, "slot0", sqrtPrice, big.NewInt(6932), uint16(1), uint16(1), uint16(1), uint8(0), true)
	fe.set(t, testPool, poolABI, "liquidity", big.NewInt(5_000_000))
	fe.set(t, testWETH, erc20, "decimals", uint8(18))
	fe.set(t, testWETH, erc20, "symbol", "WETH")
	fe.set(t, testUSDC, erc20, "decimals", uint8(18))
	fe.set(t, testUSDC, erc20, "symbol", "USDC")
	return fe
}

func newTestSession(t *testing.T, fe *fakeEth, cfg config.Config) (*Session, error) {
	t.Helper()
	srv := gethrpc.NewServer()
	if err := srv.RegisterName("eth", fe); err != nil {
		t.Fatalf("register rpc service: %v", err)
	}
	client := chain.NewClientFromRPC(gethrpc.DialInProc(srv))
	t.Cleanup(func() {
		client.Close()
		srv.Stop()
	})
	if cfg.Pool == "" {
		cfg.Pool = testPool.Hex()
	}
	if cfg.Router == "" {
		cfg.Router = testRouter.Hex()
	}
	cfg.RetryBackoff = time.Millisecond
	s, err := New(context.Background(), client, cfg, zap.NewNop())
	if err == nil {
		t.Cleanup(s.Close)
	}
	return s, err
}

func TestSessionDefaultsToPoolOrder(t *testing.T) {
	s, err := newTestSession(t, newFakePool(t), config.Config{})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if s.Base().Symbol != "WETH" || s.Quote().Symbol != "USDC" {
		t.Fatalf("unexpected pair: %s/%s", s.Base().Symbol, s.Quote().Symbol)
	}
	if s.ChainID() != 1337 {
		t.Fatalf("chain id mismatch: %d", s.ChainID())
	}
	if s.Capabilities() != (model.Capabilities{}) {
		t.Fatalf("expected no optional capabilities, got %+v", s.Capabilities())
	}

	price, err := s.Price(context.Background())
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if price.Source != model.PriceSourcePool || math.Abs(price.Price-2) > 0.001 {
		t.Fatalf("unexpected price: %+v", price)
	}

	q := s.GetQuote(context.Background(), decimal.NewFromInt(10), "WETH", "USDC")
	if q.Stale || math.Abs(q.OutputAmount.InexactFloat64()-20) > 0.01 {
		t.Fatalf("unexpected quote: %+v", q)
	}
}

func TestSessionConfiguredBaseInvertsPrice(t *testing.T) {
	s, err := newTestSession(t, newFakePool(t), config.Config{BaseToken: testUSDC.Hex(), RatioToleranceBps: 500})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if s.Base().Symbol != "USDC" || s.Quote().Symbol != "WETH" {
		t.Fatalf("unexpected pair: %s/%s", s.Base().Symbol, s.Quote().Symbol)
	}
	price, err := s.Price(context.Background())
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if math.Abs(price.Price-0.5) > 0.001 {
		t.Fatalf("expected inverted price near 0.5, got %v", price.Price)
	}

	intent, err := s.AddLiquidityIntent(context.Background(), "2", "1")
	if err != nil {
		t.Fatalf("add liquidity intent: %v", err)
	}
	if intent.Token0.Address != testWETH || intent.Amount0 != "1" || intent.Amount1 != "2" {
		t.Fatalf("amounts not in pool order: %+v", intent)
	}
	if intent.Ratio == nil || !intent.Ratio.IsValid {
		t.Fatalf("expected valid ratio, got %+v", intent.Ratio)
	}
}

func TestSessionSwapIntent(t *testing.T) {
	s, err := newTestSession(t, newFakePool(t), config.Config{SlippageBps: 50})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	intent, q, err := s.SwapIntent(context.Background(), "usdc", "4")
	if err != nil {
		t.Fatalf("swap intent: %v", err)
	}
	if intent.TokenIn.Symbol != "USDC" || intent.TokenOut.Symbol != "WETH" {
		t.Fatalf("unexpected direction: %+v", intent)
	}
	if math.Abs(q.OutputAmount.InexactFloat64()-2) > 0.01 || intent.ExpectedOut != model.FormatAmount(q.OutputAmount) {
		t.Fatalf("unexpected expected output: %s vs %s", intent.ExpectedOut, q.OutputAmount)
	}

	if _, _, err := s.SwapIntent(context.Background(), "DAI", "1"); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken, got %v", err)
	}
}

func TestSessionReadOnly(t *testing.T) {
	s, err := newTestSession(t, newFakePool(t), config.Config{})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, err := s.Submit(context.Background(), model.CollectFeesIntent{PositionID: "1"}, nil); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly from submit, got %v", err)
	}
	if err := s.WatchBalances(context.Background(), common.Address{}); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly from balances, got %v", err)
	}
	if _, err := s.History(context.Background(), "", 0); !errors.Is(err, ErrNoHistory) {
		t.Fatalf("expected ErrNoHistory, got %v", err)
	}
}

func TestSessionHistoryFromJsonl(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	record := model.HistoryRecord{
		ChainID:   1337,
		Account:   "0x3333333333333333333333333333333333333333",
		Kind:      model.IntentSwap,
		TxHash:    "0x01",
		Status:    model.HistoryStatusConfirmed,
		Timestamp: time.Unix(1_700_000_000, 0).UTC(),
	}
	if err := storage.NewJsonlStorage(path).PutHistory(context.Background(), record); err != nil {
		t.Fatalf("seed history: %v", err)
	}

	s, err := newTestSession(t, newFakePool(t), config.Config{HistoryOut: path})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	records, err := s.History(context.Background(), record.Account, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(records) != 1 || records[0].TxHash != "0x01" {
		t.Fatalf("unexpected history: %+v", records)
	}
}

func TestSessionRejectsMismatches(t *testing.T) {
	if _, err := newTestSession(t, newFakePool(t), config.Config{ChainID: 56}); err == nil {
		t.Fatalf("expected chain id mismatch")
	}
	other := "0xcccccccccccccccccccccccccccccccccccccccc"
	if _, err := newTestSession(t, newFakePool(t), config.Config{QuoteToken: other}); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken, got %v", err)
	}

	fe := newFakePool(t)
	fe.code = map[common.Address][]byte{}
	if _, err := newTestSession(t, fe, config.Config{}); !errors.Is(err, dex.ErrNoCode) {
		t.Fatalf("expected ErrNoCode, got %v", err)
	}
}

func TestSessionPriceFallsBackToRouterOnFirstRead(t *testing.T) {
	fe := newFakePool(t)
	routerABI, err := dex.RouterABI()
	if err != nil {
		t.Fatalf("router abi: %v", err)
	}
	// PUSH4 <getTokenPrice selector>, STOP
	fe.code[testRouter] = append(append([]byte{0x63}, routerABI.Methods["getTokenPrice"].ID...), 0x00)
	fe.set(t, testRouter, routerABI, "getTokenPrice", new(big.Int).Mul(big.NewInt(3), big.NewInt(1e18)))

	s, err := newTestSession(t, fe, config.Config{})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if !s.Capabilities().TokenPrice {
		t.Fatalf("expected token price capability, got %+v", s.Capabilities())
	}

	poolABI, err := dex.PoolABI()
	if err != nil {
		t.Fatalf("pool abi: %v", err)
	}
	var slot0 [4]byte
	copy(slot0[:], poolABI.Methods["slot0"].ID)
	fe.mu.Lock()
	delete(fe.results[testPool], slot0)
	fe.mu.Unlock()

	price, err := s.Price(context.Background())
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if price.Source != model.PriceSourceTokenPrice || math.Abs(price.Price-3) > 1e-9 || price.IsInitialRatio {
		t.Fatalf("expected router price 3, got %+v", price)
	}
}
