// Package config provides configuration management for stagekeeper services.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"
)

// envPrefix is the prefix for every stagekeeper environment variable.
const envPrefix = "SK"

// Config is the complete service configuration.
type Config struct {
	RuleAPI   RuleAPIConfig
	Database  DatabaseConfig
	Log       LogConfig
	Telemetry TelemetryConfig
	Catalog   CatalogConfig
}

// RuleAPIConfig holds configuration for the gRPC rule submission API.
type RuleAPIConfig struct {
	Host                 string
	Port                 int
	MaxConcurrentStreams int // per client connection
	RequestTimeout       time.Duration
	MaxRulesPerSync      int
	MaxDocumentBytes     int64
}

// DatabaseConfig holds the database location.
type DatabaseConfig struct {
	URL string
}

// LogConfig selects log level, encoding and optional rotated file output.
type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// TelemetryConfig enables OTLP trace export.
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// CatalogConfig overrides the built-in field, transaction type and list vocabulary.
// Empty sections keep the built-in defaults.
type CatalogConfig struct {
	Fields           []FieldConfig `mapstructure:"fields"`
	TransactionTypes []string      `mapstructure:"transaction_types"`
	Lists            []ListConfig  `mapstructure:"lists"`
}

// FieldConfig declares one catalog field.
type FieldConfig struct {
	Name  string `mapstructure:"name"`
	Label string `mapstructure:"label"`
	Kind  string `mapstructure:"kind"`
}

// ListConfig declares one statically known list.
type ListConfig struct {
	ID   string `mapstructure:"id"`
	Name string `mapstructure:"name"`
	Type string `mapstructure:"type"`
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		RuleAPI: RuleAPIConfig{
			Host:                 "0.0.0.0",
			Port:                 50052,
			MaxConcurrentStreams: 100,
			RequestTimeout:       30 * time.Second,
			MaxRulesPerSync:      10000,
			MaxDocumentBytes:     1 << 20,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "stagekeeper",
		},
	}
}

// HMACSecrets extracts HMAC secrets from environment variables.
// Supports SK_HMAC_SECRET (single) and SK_HMAC_SECRET_N (rotation).
// Returns map of secret_id -> decoded secret bytes.
// Secret IDs are UUIDv7 (32 hex chars without hyphens) matching API key format.
func HMACSecrets() (map[string][]byte, error) {
	secrets := make(map[string][]byte)
	single := envPrefix + "_HMAC_SECRET"

	add := func(key, val string) error {
		secretID, decoded, err := ParseHMACSecretWithID(val)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if _, exists := secrets[secretID]; exists {
			return fmt.Errorf("duplicate secret_id '%s' found in environment variables (check %s and %s_* for conflicts)", secretID, single, single)
		}
		secrets[secretID] = decoded
		return nil
	}

	if val := os.Getenv(single); val != "" {
		if err := add(single, val); err != nil {
			return nil, err
		}
	}

	// Numbered secrets keep old and new keys valid during rotation.
	for i := 1; ; i++ {
		key := fmt.Sprintf("%s_%d", single, i)
		val := os.Getenv(key)
		if val == "" {
			break
		}
		if err := add(key, val); err != nil {
			return nil, err
		}
	}

	return secrets, nil
}

// ParseHMACSecret decodes base64-encoded HMAC secret from environment variable.
func ParseHMACSecret(envValue string) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(envValue))
	if err != nil {
		return nil, fmt.Errorf("invalid base64 encoding: %w", err)
	}
	if len(decoded) < 32 {
		return nil, fmt.Errorf("secret must be at least 32 bytes, got %d", len(decoded))
	}
	return decoded, nil
}

// ParseHMACSecretWithID parses secret_id:base64_secret format.
// Secret ID must be 32 hex chars (UUIDv7 without hyphens).
func ParseHMACSecretWithID(envValue string) (secretID string, secret []byte, err error) {
	parts := strings.SplitN(strings.TrimSpace(envValue), ":", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("format must be <secret_id>:<base64_secret>")
	}

	secretID = parts[0]
	if len(secretID) != 32 {
		return "", nil, fmt.Errorf("secret_id must be 32 hex chars (UUIDv7 without hyphens)")
	}

	for _, c := range secretID {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return "", nil, fmt.Errorf("secret_id must be hex chars only")
		}
	}

	secret, err = ParseHMACSecret(parts[1])
	if err != nil {
		return "", nil, err
	}

	return secretID, secret, nil
}
