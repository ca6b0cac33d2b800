package dex

import "errors"

var (
	// ErrCapability is returned when the router lacks an optional method.
	ErrCapability = errors.New("router does not support method")
	// ErrNoCode is returned when the router address has no bytecode.
	ErrNoCode = errors.New("no contract code at address")
)
