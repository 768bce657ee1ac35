package config

import "errors"

// Config validation errors
var (
	ErrMissingNetwork        = errors.New("config: network is required")
	ErrUnsupportedNetwork    = errors.New("config: network is not supported")
	ErrInvalidToken          = errors.New("config: token must be an address")
	ErrInvalidDecimals       = errors.New("config: decimals must be positive")
	ErrInvalidTipAmount      = errors.New("config: tip amount must be a positive decimal")
	ErrInvalidBatchSize      = errors.New("config: batch size must be positive")
	ErrInvalidFlushTimeout   = errors.New("config: batch timeout must be positive")
	ErrInvalidInterval       = errors.New("config: engagement interval must be positive")
	ErrInvalidRetries        = errors.New("config: retries must not be negative")
	ErrConflictingSubmitters = errors.New("config: set either wallet-rpc-url or private-key, not both")
	ErrMissingRPCURL         = errors.New("config: rpc-url is required with private-key")
	ErrInvalidLogLevel       = errors.New("config: log-level must be debug, info, warn or error")
)
