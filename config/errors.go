package config

import "errors"

var (
	// ErrConfigNotFound indicates the config file does not exist or is unreadable.
	ErrConfigNotFound = errors.New("config: file not found")

	// ErrInvalidFormat indicates the config file is not valid YAML.
	ErrInvalidFormat = errors.New("config: invalid format")

	// ErrInvalidNetwork indicates an unknown network selector.
	ErrInvalidNetwork = errors.New("config: network must be testnet or mainnet")

	// ErrInvalidMode indicates an unknown encryption mode.
	ErrInvalidMode = errors.New("config: encryption mode must be mock or network")

	// ErrInvalidThreshold indicates a threshold outside the valid range.
	ErrInvalidThreshold = errors.New("config: threshold must be >= 1 and <= number of key servers")

	// ErrNoKeyServers indicates network mode without key servers or a discovery domain.
	ErrNoKeyServers = errors.New("config: network mode requires key servers or a key server domain")

	// ErrInvalidLogLevel indicates an unknown log level string.
	ErrInvalidLogLevel = errors.New("config: invalid log level")

	// ErrInvalidRetention indicates a zero retention period.
	ErrInvalidRetention = errors.New("config: retention epochs must be >= 1")
)
