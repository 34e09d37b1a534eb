package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/solatis/stagekeeper/internal/rules"
)

func TestHMACSecrets(t *testing.T) {
	// Clean environment
	os.Unsetenv("SK_HMAC_SECRET")
	os.Unsetenv("SK_HMAC_SECRET_1")
	os.Unsetenv("SK_HMAC_SECRET_2")

	t.Run("single secret", func(t *testing.T) {
		os.Setenv("SK_HMAC_SECRET", "0123456789abcdef0123456789abcdef:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")
		defer os.Unsetenv("SK_HMAC_SECRET")

		secrets, err := HMACSecrets()
		if err != nil {
			t.Fatalf("HMACSecrets failed: %v", err)
		}
		if len(secrets) != 1 {
			t.Errorf("expected 1 secret, got %d", len(secrets))
		}
		if _, ok := secrets["0123456789abcdef0123456789abcdef"]; !ok {
			t.Errorf("secret_id not found in map")
		}
	})

	t.Run("multiple numbered secrets", func(t *testing.T) {
		os.Setenv("SK_HMAC_SECRET_1", "0123456789abcdef0123456789abcdef:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")
		os.Setenv("SK_HMAC_SECRET_2", "fedcba9876543210fedcba9876543210:YW5vdGhlcnNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")
		defer os.Unsetenv("SK_HMAC_SECRET_1")
		defer os.Unsetenv("SK_HMAC_SECRET_2")

		secrets, err := HMACSecrets()
		if err != nil {
			t.Fatalf("HMACSecrets failed: %v", err)
		}
		if len(secrets) != 2 {
			t.Errorf("expected 2 secrets, got %d", len(secrets))
		}
	})

	t.Run("invalid format", func(t *testing.T) {
		os.Setenv("SK_HMAC_SECRET", "invalid_format")
		defer os.Unsetenv("SK_HMAC_SECRET")

		_, err := HMACSecrets()
		if err == nil {
			t.Error("expected error for invalid format")
		}
	})

	t.Run("invalid secret_id length", func(t *testing.T) {
		os.Setenv("SK_HMAC_SECRET", "short:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")
		defer os.Unsetenv("SK_HMAC_SECRET")

		_, err := HMACSecrets()
		if err == nil {
			t.Error("expected error for short secret_id")
		}
	})

	t.Run("non-hex secret_id", func(t *testing.T) {
		os.Setenv("SK_HMAC_SECRET", "0123456789abcdefGHIJKLMNOPQRSTUV:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")
		defer os.Unsetenv("SK_HMAC_SECRET")

		_, err := HMACSecrets()
		if err == nil {
			t.Error("expected error for non-hex secret_id")
		}
	})

	t.Run("duplicate secret_id in numbered secrets", func(t *testing.T) {
		os.Setenv("SK_HMAC_SECRET_1", "0123456789abcdef0123456789abcdef:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")
		os.Setenv("SK_HMAC_SECRET_2", "0123456789abcdef0123456789abcdef:YW5vdGhlcnNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")
		defer os.Unsetenv("SK_HMAC_SECRET_1")
		defer os.Unsetenv("SK_HMAC_SECRET_2")

		_, err := HMACSecrets()
		if err == nil {
			t.Error("expected error for duplicate secret_id")
		}
	})

	t.Run("duplicate secret_id between single and numbered", func(t *testing.T) {
		os.Setenv("SK_HMAC_SECRET", "0123456789abcdef0123456789abcdef:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")
		os.Setenv("SK_HMAC_SECRET_1", "0123456789abcdef0123456789abcdef:YW5vdGhlcnNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")
		defer os.Unsetenv("SK_HMAC_SECRET")
		defer os.Unsetenv("SK_HMAC_SECRET_1")

		_, err := HMACSecrets()
		if err == nil {
			t.Error("expected error for duplicate secret_id between SK_HMAC_SECRET and SK_HMAC_SECRET_1")
		}
	})
}

func TestLoadConfig(t *testing.T) {
	// Clean environment
	os.Unsetenv("SK_RULE_API_HOST")
	os.Unsetenv("SK_RULE_API_PORT")

	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadConfig("")
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.RuleAPI.Host != "0.0.0.0" {
			t.Errorf("expected host 0.0.0.0, got %s", cfg.RuleAPI.Host)
		}
		if cfg.RuleAPI.Port != 50052 {
			t.Errorf("expected port 50052, got %d", cfg.RuleAPI.Port)
		}
		if cfg.RuleAPI.MaxConcurrentStreams != 100 {
			t.Errorf("expected max_concurrent_streams 100, got %d", cfg.RuleAPI.MaxConcurrentStreams)
		}
		if cfg.RuleAPI.RequestTimeout != 30*time.Second {
			t.Errorf("expected timeout 30s, got %v", cfg.RuleAPI.RequestTimeout)
		}
		if cfg.RuleAPI.MaxRulesPerSync != 10000 {
			t.Errorf("expected max_rules_per_sync 10000, got %d", cfg.RuleAPI.MaxRulesPerSync)
		}
		if cfg.RuleAPI.MaxDocumentBytes != 1<<20 {
			t.Errorf("expected max_document_bytes %d, got %d", 1<<20, cfg.RuleAPI.MaxDocumentBytes)
		}
		if cfg.Log.Format != "json" || cfg.Log.Level != "info" {
			t.Errorf("expected json/info logging, got %s/%s", cfg.Log.Format, cfg.Log.Level)
		}
		if cfg.Telemetry.Enabled {
			t.Error("expected telemetry disabled by default")
		}
	})

	t.Run("environment override", func(t *testing.T) {
		os.Setenv("SK_RULE_API_PORT", "9999")
		os.Setenv("SK_RULE_API_HOST", "127.0.0.1")
		os.Setenv("SK_LOG_FORMAT", "text")
		defer os.Unsetenv("SK_RULE_API_PORT")
		defer os.Unsetenv("SK_RULE_API_HOST")
		defer os.Unsetenv("SK_LOG_FORMAT")

		cfg, err := LoadConfig("")
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.RuleAPI.Port != 9999 {
			t.Errorf("expected port 9999, got %d", cfg.RuleAPI.Port)
		}
		if cfg.RuleAPI.Host != "127.0.0.1" {
			t.Errorf("expected host 127.0.0.1, got %s", cfg.RuleAPI.Host)
		}
		if cfg.Log.Format != "text" {
			t.Errorf("expected log format text, got %s", cfg.Log.Format)
		}
	})

	t.Run("invalid port range", func(t *testing.T) {
		os.Setenv("SK_RULE_API_PORT", "70000")
		defer os.Unsetenv("SK_RULE_API_PORT")

		_, err := LoadConfig("")
		if err == nil {
			t.Error("expected error for port > 65535")
		}
	})

	t.Run("invalid negative values", func(t *testing.T) {
		os.Setenv("SK_RULE_API_MAX_CONCURRENT_STREAMS", "-1")
		defer os.Unsetenv("SK_RULE_API_MAX_CONCURRENT_STREAMS")

		_, err := LoadConfig("")
		if err == nil {
			t.Error("expected error for negative max_concurrent_streams")
		}
	})

	t.Run("invalid log level", func(t *testing.T) {
		os.Setenv("SK_LOG_LEVEL", "verbose")
		defer os.Unsetenv("SK_LOG_LEVEL")

		_, err := LoadConfig("")
		if err == nil {
			t.Error("expected error for unknown log level")
		}
	})

	t.Run("telemetry without endpoint", func(t *testing.T) {
		os.Setenv("SK_TELEMETRY_ENABLED", "true")
		defer os.Unsetenv("SK_TELEMETRY_ENABLED")

		_, err := LoadConfig("")
		if err == nil {
			t.Error("expected error for telemetry without otlp_endpoint")
		}
	})
}

func TestLoadConfig_Catalog(t *testing.T) {
	path := writeConfig(t, `catalog:
  fields:
    - name: amount
      kind: numeric
    - name: iban
      label: IBAN
      kind: text
  transaction_types: [deposit, chargeback]
  lists:
    - id: internal_block
      name: Internal blocklist
      type: block
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	cat, err := cfg.Catalog.BuildCatalog(nil)
	if err != nil {
		t.Fatalf("BuildCatalog failed: %v", err)
	}
	if kind, ok := cat.Kind("iban"); !ok || kind != rules.FieldText {
		t.Errorf("Kind(iban) = %v, %v, want text, true", kind, ok)
	}
	if _, ok := cat.Kind("country"); ok {
		t.Error("configured fields should replace the defaults")
	}
	if !cat.HasTransactionType("chargeback") || cat.HasTransactionType("transfer") {
		t.Errorf("TransactionTypes() = %v", cat.TransactionTypes())
	}
	if _, ok, _ := cat.LookupList(context.Background(), "internal_block"); !ok {
		t.Error("configured list not resolvable")
	}
	if _, ok, _ := cat.LookupList(context.Background(), "pep_a"); ok {
		t.Error("configured lists should replace the defaults")
	}
}

func TestLoadConfig_CatalogDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	cat, err := cfg.Catalog.BuildCatalog(nil)
	if err != nil {
		t.Fatalf("BuildCatalog failed: %v", err)
	}
	if len(cat.Fields()) != len(rules.DefaultFields) {
		t.Errorf("len(Fields()) = %d, want %d", len(cat.Fields()), len(rules.DefaultFields))
	}
	if _, ok, _ := cat.LookupList(context.Background(), "sanctions"); !ok {
		t.Error("default list sanctions not resolvable")
	}
}

func TestLoadConfig_RejectsUnknownFieldKind(t *testing.T) {
	path := writeConfig(t, `catalog:
  fields:
    - name: amount
      kind: decimal
`)
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for unknown field kind")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseHMACSecret(t *testing.T) {
	t.Run("valid base64", func(t *testing.T) {
		secret, err := ParseHMACSecret("dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")
		if err != nil {
			t.Fatalf("ParseHMACSecret failed: %v", err)
		}
		if len(secret) < 32 {
			t.Errorf("secret too short: %d bytes", len(secret))
		}
	})

	t.Run("invalid base64", func(t *testing.T) {
		_, err := ParseHMACSecret("not-valid-base64!!!")
		if err == nil {
			t.Error("expected error for invalid base64")
		}
	})

	t.Run("secret too short", func(t *testing.T) {
		_, err := ParseHMACSecret("c2hvcnQ=") // "short" in base64
		if err == nil {
			t.Error("expected error for secret < 32 bytes")
		}
	})
}

func TestParseHMACSecretWithID(t *testing.T) {
	t.Run("valid format", func(t *testing.T) {
		secretID, secret, err := ParseHMACSecretWithID("0123456789abcdef0123456789abcdef:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")
		if err != nil {
			t.Fatalf("ParseHMACSecretWithID failed: %v", err)
		}
		if secretID != "0123456789abcdef0123456789abcdef" {
			t.Errorf("unexpected secret_id: %s", secretID)
		}
		if len(secret) == 0 {
			t.Error("secret should not be empty")
		}
	})

	t.Run("missing colon", func(t *testing.T) {
		_, _, err := ParseHMACSecretWithID("0123456789abcdef0123456789abcdef")
		if err == nil {
			t.Error("expected error for missing colon")
		}
	})

	t.Run("invalid secret_id length", func(t *testing.T) {
		_, _, err := ParseHMACSecretWithID("tooshort:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")
		if err == nil {
			t.Error("expected error for short secret_id")
		}
	})

	t.Run("non-hex chars in secret_id", func(t *testing.T) {
		_, _, err := ParseHMACSecretWithID("0123456789abcdefGHIJKLMNOPQRSTUV:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")
		if err == nil {
			t.Error("expected error for non-hex secret_id")
		}
	})
}
