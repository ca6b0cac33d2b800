package dex

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"

	"liquidityDesk/internal/chain"
	"liquidityDesk/internal/model"
)

// ResolveCapabilities reads the router bytecode once and reports which optional
// methods it dispatches.
func ResolveCapabilities(ctx context.Context, chainClient *chain.Client, router common.Address) (model.Capabilities, error) {
	if chainClient == nil {
		return model.Capabilities{}, fmt.Errorf("chain client is nil")
	}
	code, err := chainClient.CodeAt(ctx, router)
	if err != nil {
		return model.Capabilities{}, fmt.Errorf("router code: %w", err)
	}
	if len(code) == 0 {
		return model.Capabilities{}, fmt.Errorf("%w: %s", ErrNoCode, router.Hex())
	}
	return CapabilitiesFromCode(code)
}

// CapabilitiesFromCode matches the 4-byte selectors pushed by a Solidity
// dispatcher against the optional router methods.
func CapabilitiesFromCode(code []byte) (model.Capabilities, error) {
	parsed, err := RouterABI()
	if err != nil {
		return model.Capabilities{}, fmt.Errorf("parse router abi: %w", err)
	}
	selectors := push4Immediates(code)
	has := func(method string) bool {
		m, ok := parsed.Methods[method]
		if !ok {
			return false
		}
		var key [4]byte
		copy(key[:], m.ID)
		_, ok = selectors[key]
		return ok
	}

	return model.Capabilities{
		TokenPrice:       has("getTokenPrice"),
		HistoryRecord:    has(model.MethodAddTransactionRecord),
		PositionApproval: has(model.MethodApprovePosition),
		UserPositions:    has("getUserPositions"),
		PositionDetails:  has("getPositionDetails"),
		PositionManager:  has("positionManager"),
	}, nil
}

// push4Immediates walks the bytecode, skipping push data, and collects every
// PUSH4 operand.
func push4Immediates(code []byte) map[[4]byte]struct{} {
	out := make(map[[4]byte]struct{})
	for i := 0; i < len(code); i++ {
		op := vm.OpCode(code[i])
		if op < vm.PUSH1 || op > vm.PUSH32 {
			continue
		}
		size := int(op-vm.PUSH1) + 1
		if op == vm.PUSH4 && i+1+size <= len(code) {
			var key [4]byte
			copy(key[:], code[i+1:i+1+size])
			out[key] = struct{}{}
		}
		i += size
	}
	return out
}
