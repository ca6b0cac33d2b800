package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Addresses are the parsed contract addresses of a Config. BaseToken and
// QuoteToken are zero when not configured; the session then uses pool order.
type Addresses struct {
	Pool       common.Address
	Router     common.Address
	BaseToken  common.Address
	QuoteToken common.Address
}

// ParseAddresses converts the configured address strings.
func (c Config) ParseAddresses() (Addresses, error) {
	var (
		out Addresses
		err error
	)
	if out.Pool, err = ParseAddress("pool", c.Pool); err != nil {
		return Addresses{}, err
	}
	if out.Router, err = ParseAddress("router", c.Router); err != nil {
		return Addresses{}, err
	}
	if out.BaseToken, err = ParseOptionalAddress("base-token", c.BaseToken); err != nil {
		return Addresses{}, err
	}
	if out.QuoteToken, err = ParseOptionalAddress("quote-token", c.QuoteToken); err != nil {
		return Addresses{}, err
	}
	if out.BaseToken != (common.Address{}) && out.BaseToken == out.QuoteToken {
		return Addresses{}, fmt.Errorf("base-token and quote-token are the same: %s", out.BaseToken.Hex())
	}
	return out, nil
}

// ParseAddress converts a required hex address.
func ParseAddress(field, input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return common.Address{}, fmt.Errorf("%s is required", field)
	}
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid %s address: %s", field, input)
	}
	return common.HexToAddress(input), nil
}

// ParseOptionalAddress converts a hex address; empty input is the zero address.
func ParseOptionalAddress(field, input string) (common.Address, error) {
	if strings.TrimSpace(input) == "" {
		return common.Address{}, nil
	}
	return ParseAddress(field, input)
}
