package oracle

import (
	"context"
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityDesk/internal/model"
)

var (
	token0 = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	token1 = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	pool   = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

type fakeReader struct {
	state      model.PoolState
	stateErr   error
	tokenPrice *big.Int
	priceErr   error
	stateCalls int
	priceCalls int
}

func (f *fakeReader) GetPoolState(ctx context.Context, _ common.Address) (model.PoolState, error) {
	f.stateCalls++
	if f.stateErr != nil {
		return model.PoolState{}, f.stateErr
	}
	return f.state, nil
}

func (f *fakeReader) GetTokenPrice(ctx context.Context, _ common.Address) (*big.Int, error) {
	f.priceCalls++
	if f.priceErr != nil {
		return nil, f.priceErr
	}
	return f.tokenPrice, nil
}

func poolState(tick int32, dec0, dec1 uint8) model.PoolState {
	return model.PoolState{
		Tick:           tick,
		SqrtPriceX96:   big.NewInt(1),
		Liquidity:      big.NewInt(1_000_000),
		Token0:         token0,
		Token1:         token1,
		Token0Decimals: dec0,
		Token1Decimals: dec1,
	}
}

func TestPriceFromTickEqualDecimals(t *testing.T) {
	for _, tick := range []int32{-50000, -1000, -1, 0, 1, 887, 25000, 50000} {
		reader := &fakeReader{state: poolState(tick, 18, 18)}
		base := New(reader, Config{Pool: pool, QuoteToken: token1, Logger: zap.NewNop()})
		got, err := base.GetPoolPrice(context.Background())
		if err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
		want := math.Pow(1.0001, float64(tick))
		if math.Abs(got.Price-want) > 1e-9*math.Max(1, want) {
			t.Fatalf("tick %d: price %v, want %v", tick, got.Price, want)
		}
		if got.IsInitialRatio || got.Source != model.PriceSourcePool {
			t.Fatalf("tick %d: unexpected result %+v", tick, got)
		}

		inverted := New(reader, Config{Pool: pool, QuoteToken: token0, Logger: zap.NewNop()})
		inv, err := inverted.GetPoolPrice(context.Background())
		if err != nil {
			t.Fatalf("tick %d inverted: %v", tick, err)
		}
		if math.Abs(inv.Price-1/want) > 1e-9*math.Max(1, 1/want) {
			t.Fatalf("tick %d: inverted price %v, want %v", tick, inv.Price, 1/want)
		}
	}
}

func TestPriceDecimalAdjustment(t *testing.T) {
	// 18-decimal base against a 6-decimal quote around 2000.
	tick := int32(-200311)
	reader := &fakeReader{state: poolState(tick, 18, 6)}
	o := New(reader, Config{Pool: pool, QuoteToken: token1})

	got, err := o.GetPoolPrice(context.Background())
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	want := math.Pow(1.0001, float64(tick)) * 1e12
	if math.Abs(got.Price-want)/want > 1e-9 {
		t.Fatalf("price %v, want %v", got.Price, want)
	}
	if got.Price < 1900 || got.Price > 2100 {
		t.Fatalf("expected a price near 2000, got %v", got.Price)
	}
}

func TestEmptyPoolIsInitialRatio(t *testing.T) {
	state := poolState(500, 18, 18)
	state.Liquidity = big.NewInt(0)
	o := New(&fakeReader{state: state}, Config{Pool: pool})

	got, err := o.GetPoolPrice(context.Background())
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if got.Price != model.DefaultInitialPrice || !got.IsInitialRatio {
		t.Fatalf("expected initial ratio, got %+v", got)
	}
	if got.Degraded() {
		t.Fatalf("empty pool is an authoritative read")
	}
}

func TestInsanePriceFallsBackToTokenPrice(t *testing.T) {
	reader := &fakeReader{
		state:      poolState(300000, 18, 18),
		tokenPrice: new(big.Int).Mul(big.NewInt(25), big.NewInt(1e17)),
	}
	o := New(reader, Config{
		Pool:         pool,
		QuoteToken:   token1,
		Capabilities: model.Capabilities{TokenPrice: true},
	})

	got, err := o.GetPoolPrice(context.Background())
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if got.Source != model.PriceSourceTokenPrice || math.Abs(got.Price-2.5) > 1e-12 {
		t.Fatalf("expected token price 2.5, got %+v", got)
	}
}

func TestInsanePriceWithoutCapabilityIsDefault(t *testing.T) {
	reader := &fakeReader{state: poolState(300000, 18, 18), tokenPrice: big.NewInt(1)}
	o := New(reader, Config{Pool: pool, QuoteToken: token1})

	got, err := o.GetPoolPrice(context.Background())
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if !got.Degraded() || !got.IsInitialRatio || got.Price != model.DefaultInitialPrice {
		t.Fatalf("expected default placeholder, got %+v", got)
	}
	if reader.priceCalls != 0 {
		t.Fatalf("token price must not be read without the capability")
	}
}

func TestRPCFailureNeverSurfaces(t *testing.T) {
	reader := &fakeReader{
		stateErr:   errors.New("connection reset"),
		tokenPrice: new(big.Int).Mul(big.NewInt(3), big.NewInt(1e18)),
	}
	o := New(reader, Config{
		Pool:         pool,
		QuoteToken:   token1,
		Token0:       token0,
		Token1:       token1,
		Decimals0:    18,
		Decimals1:    18,
		Capabilities: model.Capabilities{TokenPrice: true},
	})

	got, err := o.GetPoolPrice(context.Background())
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if got.Source != model.PriceSourceTokenPrice || got.Price != 3 || got.IsInitialRatio {
		t.Fatalf("expected token price on the first read, got %+v", got)
	}
	if reader.priceCalls != 1 {
		t.Fatalf("expected one token price read, got %d", reader.priceCalls)
	}

	reader.priceErr = errors.New("connection reset")
	got, err = o.GetPoolPrice(context.Background())
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if !got.Degraded() {
		t.Fatalf("expected default placeholder, got %+v", got)
	}
}

func TestTokenPriceAfterEmptyPoolRead(t *testing.T) {
	empty := poolState(0, 18, 6)
	empty.Liquidity = big.NewInt(0)
	reader := &fakeReader{
		state:      empty,
		tokenPrice: new(big.Int).Mul(big.NewInt(2000), big.NewInt(1e6)),
	}
	o := New(reader, Config{Pool: pool, QuoteToken: token1, Capabilities: model.Capabilities{TokenPrice: true}})

	got, err := o.GetPoolPrice(context.Background())
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if !got.IsInitialRatio || got.Degraded() {
		t.Fatalf("expected initial ratio from the empty pool, got %+v", got)
	}

	reader.stateErr = errors.New("connection reset")
	got, err = o.GetPoolPrice(context.Background())
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if got.Source != model.PriceSourceTokenPrice || math.Abs(got.Price-2000) > 1e-6 {
		t.Fatalf("expected token price 2000 using pool decimals, got %+v", got)
	}
}

func TestCancelledContextReturnsError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reader := &fakeReader{stateErr: context.Canceled}
	o := New(reader, Config{Pool: pool})
	if _, err := o.GetPoolPrice(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestIsSane(t *testing.T) {
	cases := []struct {
		price float64
		want  bool
	}{
		{0, false},
		{-1, false},
		{1e-12, true},
		{999_999, true},
		{1_000_000, false},
		{math.Inf(1), false},
		{math.NaN(), false},
	}
	for _, tc := range cases {
		if got := IsSane(tc.price); got != tc.want {
			t.Fatalf("IsSane(%v) = %v, want %v", tc.price, got, tc.want)
		}
	}
}
