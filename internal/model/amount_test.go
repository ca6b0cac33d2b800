package model

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

func TestToBaseUnitsTruncates(t *testing.T) {
	amount := decimal.RequireFromString("1.2345678")
	got := ToBaseUnits(amount, 6)
	if got.Cmp(big.NewInt(1_234_567)) != 0 {
		t.Fatalf("base units mismatch: %s", got)
	}
}

func TestFromBaseUnits(t *testing.T) {
	value, _ := new(big.Int).SetString("1500000000000000000", 10)
	got := FromBaseUnits(value, 18)
	if !got.Equal(decimal.RequireFromString("1.5")) {
		t.Fatalf("human amount mismatch: %s", got)
	}
	if !FromBaseUnits(nil, 18).IsZero() {
		t.Fatalf("nil should convert to zero")
	}
}

func TestParseAmount(t *testing.T) {
	if _, err := ParseAmount(""); err == nil {
		t.Fatalf("expected error for missing amount")
	}
	if _, err := ParseAmount("12abc"); err == nil {
		t.Fatalf("expected error for non-numeric amount")
	}
	got, err := ParseAmount(" 42.5 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if FormatAmount(got) != "42.500000" {
		t.Fatalf("format mismatch: %s", FormatAmount(got))
	}
}
