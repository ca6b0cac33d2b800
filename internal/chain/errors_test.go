package chain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type testRPCError struct {
	code int
	msg  string
	data interface{}
}

func (e testRPCError) Error() string          { return e.msg }
func (e testRPCError) ErrorCode() int         { return e.code }
func (e testRPCError) ErrorData() interface{} { return e.data }

func encodeRevert(t *testing.T, reason string) string {
	t.Helper()
	stringType, err := abi.NewType("string", "", nil)
	if err != nil {
		t.Fatalf("string type: %v", err)
	}
	packed, err := abi.Arguments{{Type: stringType}}.Pack(reason)
	if err != nil {
		t.Fatalf("pack reason: %v", err)
	}
	// Error(string)
	selector := []byte{0x08, 0xc3, 0x79, 0xa0}
	return hexutil.Encode(append(selector, packed...))
}

func TestRevertReasonFromData(t *testing.T) {
	err := fmt.Errorf("estimate: %w", testRPCError{code: 3, msg: "execution reverted", data: encodeRevert(t, "STF")})
	if got := RevertReason(err); got != "STF" {
		t.Fatalf("reason mismatch: %q", got)
	}
}

func TestRevertReasonFromMessage(t *testing.T) {
	err := errors.New("execution reverted: Too little received")
	if got := RevertReason(err); got != "Too little received" {
		t.Fatalf("reason mismatch: %q", got)
	}
	if got := RevertReason(errors.New("connection refused")); got != "" {
		t.Fatalf("expected empty reason, got %q", got)
	}
	if got := RevertReason(nil); got != "" {
		t.Fatalf("expected empty reason for nil, got %q", got)
	}
}

func TestIsUserRejected(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{testRPCError{code: 4001, msg: "rejected"}, true},
		{errors.New("MetaMask Tx Signature: User denied transaction signature."), true},
		{errors.New("user rejected the request"), true},
		{errors.New("nonce too low"), false},
		{nil, false},
	}
	for _, tc := range cases {
		if got := IsUserRejected(tc.err); got != tc.want {
			t.Fatalf("IsUserRejected(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestNewSigner(t *testing.T) {
	if _, err := NewSigner(""); !errors.Is(err, ErrMissingKey) {
		t.Fatalf("expected missing key, got %v", err)
	}
	if _, err := NewSigner("0xzz"); err == nil {
		t.Fatalf("expected parse error")
	}
	// Well-known dev key (hardhat account #0).
	signer, err := NewSigner("0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	if got := signer.Address().Hex(); got != "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266" {
		t.Fatalf("address mismatch: %s", got)
	}
}
