package quote

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquidityDesk/internal/model"
)

type fakeSource struct {
	result model.PriceResult
	err    error
	calls  int
}

func (f *fakeSource) GetPoolPrice(ctx context.Context) (model.PriceResult, error) {
	f.calls++
	return f.result, f.err
}

func newEngine(source PriceSource) *Engine {
	return NewEngine(source, Config{BaseSymbol: "A", Logger: zap.NewNop()})
}

func TestZeroQuote(t *testing.T) {
	source := &fakeSource{result: model.PriceResult{Price: 2, Source: model.PriceSourcePool}}
	engine := newEngine(source)

	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-5)} {
		q := engine.ComputeQuote(context.Background(), amount, "A", "B", 50)
		if !q.OutputAmount.IsZero() || !q.MinimumReceived.IsZero() || q.PriceImpactPct != 0 {
			t.Fatalf("expected zero quote, got %+v", q)
		}
	}
	q := engine.ComputeQuote(context.Background(), decimal.NewFromInt(10), "A", "a", 50)
	if !q.OutputAmount.IsZero() {
		t.Fatalf("same-symbol swap must quote zero, got %s", q.OutputAmount)
	}
	if source.calls != 0 {
		t.Fatalf("zero quotes must not read the price, got %d calls", source.calls)
	}
}

func TestQuoteAtUnitPrice(t *testing.T) {
	engine := newEngine(&fakeSource{result: model.PriceResult{Price: 1.0, Source: model.PriceSourcePool}})

	q := engine.ComputeQuote(context.Background(), decimal.NewFromInt(100), "A", "B", 50)
	if got := model.FormatAmount(q.OutputAmount); got != "100.000000" {
		t.Fatalf("output mismatch: %s", got)
	}
	if q.PriceImpactPct != 0.01 {
		t.Fatalf("impact mismatch: %v", q.PriceImpactPct)
	}
	if got := model.FormatAmount(q.MinimumReceived); got != "99.500000" {
		t.Fatalf("minimum received mismatch: %s", got)
	}
	if q.Stale {
		t.Fatalf("fresh price must not be stale")
	}

	q = engine.ComputeQuote(context.Background(), decimal.NewFromInt(100), "A", "B", 5)
	if got := model.FormatAmount(q.MinimumReceived); got != "99.950000" {
		t.Fatalf("minimum received at 5 bps mismatch: %s", got)
	}
}

func TestQuoteDirection(t *testing.T) {
	engine := newEngine(&fakeSource{result: model.PriceResult{Price: 4, Source: model.PriceSourcePool}})

	q := engine.ComputeQuote(context.Background(), decimal.NewFromInt(2), "A", "B", 0)
	if got := model.FormatAmount(q.OutputAmount); got != "8.000000" {
		t.Fatalf("base to quote mismatch: %s", got)
	}
	q = engine.ComputeQuote(context.Background(), decimal.NewFromInt(2), "B", "A", 0)
	if got := model.FormatAmount(q.OutputAmount); got != "0.500000" {
		t.Fatalf("quote to base mismatch: %s", got)
	}
}

func TestPriceImpactCap(t *testing.T) {
	if got := PriceImpactPct(decimal.NewFromInt(1_000_000)); got != MaxPriceImpactPct {
		t.Fatalf("impact must cap at %v, got %v", MaxPriceImpactPct, got)
	}
	if got := PriceImpactPct(decimal.NewFromInt(1000)); got != 0.1 {
		t.Fatalf("impact mismatch: %v", got)
	}
}

func TestQuoteFallsBackToLastKnownThenReference(t *testing.T) {
	source := &fakeSource{err: context.DeadlineExceeded}
	engine := newEngine(source)

	q := engine.ComputeQuote(context.Background(), decimal.NewFromInt(10), "A", "B", 0)
	if !q.Stale || q.Rate != DefaultReferencePrice {
		t.Fatalf("expected stale reference quote, got %+v", q)
	}
	if got := model.FormatAmount(q.OutputAmount); got != "12.345000" {
		t.Fatalf("reference output mismatch: %s", got)
	}

	source.err = nil
	source.result = model.PriceResult{Price: 2, Source: model.PriceSourcePool}
	engine.ComputeQuote(context.Background(), decimal.NewFromInt(1), "A", "B", 0)

	source.result = model.InitialPriceResult(model.PriceSourceDefault)
	q = engine.ComputeQuote(context.Background(), decimal.NewFromInt(10), "A", "B", 0)
	if !q.Stale || q.Rate != 2 {
		t.Fatalf("expected stale last-known quote, got %+v", q)
	}

	source.err = errors.New("boom")
	q = engine.ComputeQuote(context.Background(), decimal.NewFromInt(10), "B", "A", 0)
	if !q.Stale || q.Rate != 0.5 {
		t.Fatalf("expected inverted last-known rate, got %+v", q)
	}
}
