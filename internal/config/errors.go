package config

import "errors"

var (
	ErrMissingRPC    = errors.New("rpc url is required")
	ErrMissingPool   = errors.New("pool address is required")
	ErrMissingRouter = errors.New("router address is required")
)
