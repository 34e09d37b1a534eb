package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/solatis/stagekeeper/internal/rules"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// SK_RULE_API_PORT overrides rule_api.port.
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets are environment-only.
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		RuleAPI: RuleAPIConfig{
			Host:                 v.GetString("rule_api.host"),
			Port:                 v.GetInt("rule_api.port"),
			MaxConcurrentStreams: v.GetInt("rule_api.max_concurrent_streams"),
			RequestTimeout:       v.GetDuration("rule_api.request_timeout"),
			MaxRulesPerSync:      v.GetInt("rule_api.max_rules_per_sync"),
			MaxDocumentBytes:     v.GetInt64("rule_api.max_document_bytes"),
		},
		Database: DatabaseConfig{
			URL: v.GetString("database.url"),
		},
		Log: LogConfig{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			File:       v.GetString("log.file"),
			MaxSizeMB:  v.GetInt("log.max_size_mb"),
			MaxBackups: v.GetInt("log.max_backups"),
			MaxAgeDays: v.GetInt("log.max_age_days"),
			Compress:   v.GetBool("log.compress"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      v.GetBool("telemetry.enabled"),
			OTLPEndpoint: v.GetString("telemetry.otlp_endpoint"),
			ServiceName:  v.GetString("telemetry.service_name"),
		},
	}
	if err := v.UnmarshalKey("catalog", &cfg.Catalog); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("rule_api.host", d.RuleAPI.Host)
	v.SetDefault("rule_api.port", d.RuleAPI.Port)
	v.SetDefault("rule_api.max_concurrent_streams", d.RuleAPI.MaxConcurrentStreams)
	v.SetDefault("rule_api.request_timeout", d.RuleAPI.RequestTimeout.String())
	v.SetDefault("rule_api.max_rules_per_sync", d.RuleAPI.MaxRulesPerSync)
	v.SetDefault("rule_api.max_document_bytes", d.RuleAPI.MaxDocumentBytes)

	v.SetDefault("database.url", "")

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	v.SetDefault("log.compress", false)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", d.Telemetry.ServiceName)
}

// validateConfig checks port range, positive limits, log settings and catalog kinds.
func validateConfig(cfg *Config) error {
	api := cfg.RuleAPI
	if api.Port <= 0 || api.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", api.Port)
	}
	if api.MaxConcurrentStreams <= 0 {
		return fmt.Errorf("max_concurrent_streams must be positive, got %d", api.MaxConcurrentStreams)
	}
	if api.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", api.RequestTimeout)
	}
	if api.MaxRulesPerSync <= 0 {
		return fmt.Errorf("max_rules_per_sync must be positive, got %d", api.MaxRulesPerSync)
	}
	if api.MaxDocumentBytes <= 0 {
		return fmt.Errorf("max_document_bytes must be positive, got %d", api.MaxDocumentBytes)
	}

	switch strings.ToLower(cfg.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", cfg.Log.Format)
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", cfg.Log.Level)
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.OTLPEndpoint == "" {
		return fmt.Errorf("telemetry.otlp_endpoint required when telemetry is enabled")
	}

	for i, f := range cfg.Catalog.Fields {
		if f.Name == "" {
			return fmt.Errorf("catalog.fields[%d]: name required", i)
		}
		if _, err := rules.ParseFieldKind(f.Kind); err != nil {
			return fmt.Errorf("catalog.fields[%d]: %w", i, err)
		}
	}
	for i, l := range cfg.Catalog.Lists {
		if l.ID == "" {
			return fmt.Errorf("catalog.lists[%d]: id required", i)
		}
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets.
// InConfig ignores the environment, so SK_HMAC_SECRET itself does not trip it.
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.InConfig("hmac_secret") || v.InConfig("rule_api.hmac_secret") {
		return fmt.Errorf("HMAC secrets not allowed in config files (use SK_HMAC_SECRET environment variable)")
	}
	return nil
}
