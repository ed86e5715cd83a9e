package config

import "strings"

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid.
func ValidateConfig(cfg *Config) error {
	if cfg.Network != "testnet" && cfg.Network != "mainnet" {
		return ErrInvalidNetwork
	}

	switch cfg.EncryptionMode {
	case ModeMock:
		// Mock mode needs no key servers.
	case ModeNetwork:
		if len(cfg.KeyServers) == 0 && cfg.KeyServerDomain == "" {
			return ErrNoKeyServers
		}
		if cfg.Threshold < 1 {
			return ErrInvalidThreshold
		}
		// With static endpoints the threshold must be satisfiable. With DNS
		// discovery the server count is only known at resolution time.
		if len(cfg.KeyServers) > 0 && int(cfg.Threshold) > len(cfg.KeyServers) {
			return ErrInvalidThreshold
		}
	default:
		return ErrInvalidMode
	}

	if cfg.RetentionEpochs == 0 {
		return ErrInvalidRetention
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	return nil
}
