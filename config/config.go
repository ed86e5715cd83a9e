// Package config defines the configuration surface for the encrypted
// decentralized storage pipeline: key-server endpoints, decryption threshold,
// blob network endpoints, ledger RPC, and the encryption strategy selector.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v2"
)

// Encryption strategy selectors. The choice is made once at startup; there is
// no runtime fallback between strategies.
const (
	// ModeMock selects the reversible mock strategy. Data "encrypted" under
	// this mode is NOT protected and is tagged as such in every envelope.
	ModeMock = "mock"

	// ModeNetwork selects the real threshold strategy backed by a key-server
	// quorum and an on-chain authorization check.
	ModeNetwork = "network"
)

// RPCConfig holds connection parameters for the ledger JSON-RPC endpoint.
type RPCConfig struct {
	URL      string `yaml:"url"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// Config holds all pipeline configuration.
type Config struct {
	// DataDir is the base directory for local state (bolt databases).
	DataDir string `yaml:"data_dir"`

	// Network selects the target deployment: "testnet" or "mainnet".
	Network string `yaml:"network"`

	// EncryptionMode selects the encryption strategy: ModeMock or ModeNetwork.
	EncryptionMode string `yaml:"encryption_mode"`

	// KeyServers lists key-server base URLs. May be empty when
	// KeyServerDomain is set, in which case endpoints are discovered via SRV.
	KeyServers []string `yaml:"key_servers"`

	// KeyServerDomain, when set, is resolved to key-server endpoints through
	// DNS SRV records (_sealkeys._tcp.{domain}).
	KeyServerDomain string `yaml:"key_server_domain"`

	// Threshold is the number of key shares required for decryption.
	Threshold uint32 `yaml:"threshold"`

	// PublisherURL is the blob network write endpoint. May be empty when
	// BlobNetDomain is set.
	PublisherURL string `yaml:"publisher_url"`

	// AggregatorURL is the blob network read endpoint. May be empty when
	// BlobNetDomain is set.
	AggregatorURL string `yaml:"aggregator_url"`

	// BlobNetDomain, when set, is resolved to publisher/aggregator endpoints
	// through DNS SRV records (_blobnet._tcp.{domain}).
	BlobNetDomain string `yaml:"blobnet_domain"`

	// DNSSECUpstream is the recursive resolver used for endpoint discovery.
	// Discovery answers must carry DNSSEC validation; empty selects the
	// default upstream.
	DNSSECUpstream string `yaml:"dnssec_upstream"`

	// Ledger is the JSON-RPC endpoint used for seal_approve authorization.
	Ledger RPCConfig `yaml:"ledger"`

	// OracleObject is the on-chain object id of the authorization program
	// referenced by approval transactions. May be empty when OracleDomain
	// is set.
	OracleObject string `yaml:"oracle_object"`

	// OracleDomain, when set, is resolved to the oracle object id through a
	// "sealobj=" TXT record.
	OracleDomain string `yaml:"oracle_domain"`

	// RetentionEpochs is the default blob retention period.
	RetentionEpochs uint32 `yaml:"retention_epochs"`

	// CompressThreshold is the payload size in bytes above which blob
	// payloads are xz-compressed before storage. Zero disables compression.
	CompressThreshold int `yaml:"compress_threshold"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns a Config with conservative defaults for testnet use.
func DefaultConfig() *Config {
	return &Config{
		Network:           "testnet",
		EncryptionMode:    ModeNetwork,
		Threshold:         2,
		RetentionEpochs:   5,
		CompressThreshold: 1 << 16,
		LogLevel:          "info",
	}
}

// ConfigPath returns the conventional config file location under dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config.yaml")
}

// LoadConfig reads a YAML config file, applies environment overrides, and
// validates the result. Missing fields fall back to DefaultConfig values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ErrConfigNotFound
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, ErrInvalidFormat
	}

	applyEnv(cfg)

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays a small set of environment variables onto cfg. Only
// deployment-endpoint values are overridable; policy-relevant values
// (threshold, mode) come from the file so they are reviewable.
func applyEnv(cfg *Config) {
	if v := os.Getenv("CANVA_PUBLISHER_URL"); v != "" {
		cfg.PublisherURL = v
	}
	if v := os.Getenv("CANVA_AGGREGATOR_URL"); v != "" {
		cfg.AggregatorURL = v
	}
	if v := os.Getenv("CANVA_LEDGER_RPC_URL"); v != "" {
		cfg.Ledger.URL = v
	}
	if v := os.Getenv("CANVA_RETENTION_EPOCHS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.RetentionEpochs = uint32(n)
		}
	}
}
