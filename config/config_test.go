package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "testnet", cfg.Network)
	assert.Equal(t, ModeNetwork, cfg.EncryptionMode)
	assert.Equal(t, uint32(2), cfg.Threshold)
	assert.Equal(t, uint32(5), cfg.RetentionEpochs)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
network: mainnet
encryption_mode: network
key_servers:
  - https://ks1.example.com
  - https://ks2.example.com
  - https://ks3.example.com
threshold: 2
publisher_url: https://publisher.example.com
aggregator_url: https://aggregator.example.com
retention_epochs: 10
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "mainnet", cfg.Network)
	assert.Len(t, cfg.KeyServers, 3)
	assert.Equal(t, uint32(2), cfg.Threshold)
	assert.Equal(t, uint32(10), cfg.RetentionEpochs)
	// Defaults survive for unset fields.
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestLoadConfig_BadYAML(t *testing.T) {
	path := writeConfig(t, "network: [unclosed")
	_, err := LoadConfig(path)
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("CANVA_PUBLISHER_URL", "https://override.example.com")
	path := writeConfig(t, `
network: testnet
encryption_mode: mock
publisher_url: https://file.example.com
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://override.example.com", cfg.PublisherURL)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid mock", func(c *Config) { c.EncryptionMode = ModeMock }, nil},
		{"bad network", func(c *Config) { c.Network = "devnet" }, ErrInvalidNetwork},
		{"bad mode", func(c *Config) { c.EncryptionMode = "auto" }, ErrInvalidMode},
		{"no key servers", func(c *Config) { c.KeyServers = nil; c.KeyServerDomain = "" }, ErrNoKeyServers},
		{"zero threshold", func(c *Config) { c.Threshold = 0 }, ErrInvalidThreshold},
		{"threshold exceeds servers", func(c *Config) { c.Threshold = 5 }, ErrInvalidThreshold},
		{"zero retention", func(c *Config) { c.RetentionEpochs = 0 }, ErrInvalidRetention},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, ErrInvalidLogLevel},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.KeyServers = []string{"https://ks1", "https://ks2", "https://ks3"}
			tc.mutate(cfg)
			err := ValidateConfig(cfg)
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}

func TestValidateConfig_DiscoveryDomainSkipsServerCount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KeyServers = nil
	cfg.KeyServerDomain = "keys.example.com"
	cfg.Threshold = 3
	assert.NoError(t, ValidateConfig(cfg))
}
