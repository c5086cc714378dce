package config

import "errors"

// ErrLoadConfig wraps failures reading a config source; ErrInvalidConfig
// wraps values that were read but cannot be served.
var (
	ErrLoadConfig    = errors.New("load config failed")
	ErrInvalidConfig = errors.New("invalid config")
)
