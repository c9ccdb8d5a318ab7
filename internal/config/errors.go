package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrInvalidMode is returned for a mode other than clearnet, tor or hybrid.
	ErrInvalidMode = errors.New("invalid mode: must be clearnet, tor or hybrid")

	// ErrInvalidBackend is returned for a backend other than proxy or native.
	ErrInvalidBackend = errors.New("invalid backend: must be proxy or native")

	// ErrInvalidProxyAddress is returned when the proxy backend is used
	// with an address that is not "host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address: expected host:port")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidTorStartupTimeout is returned when the Tor startup timeout
	// is not positive.
	ErrInvalidTorStartupTimeout = errors.New("invalid tor startup timeout: must be positive")

	// ErrInvalidConcurrency is returned when concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrNoDBDir is returned when history is enabled without a database
	// directory.
	ErrNoDBDir = errors.New("history is enabled but no database directory is set")
)
