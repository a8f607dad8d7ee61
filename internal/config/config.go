// Package config assembles the server's runtime configuration from the
// environment, optionally overlaying secrets from Vault.
package config

import (
	"os"
	"strings"
)

// Config is everything gantryd needs to start.
type Config struct {
	// Messaging binding.
	NATSURL string

	// KV binding.
	RedisURL string

	// Blob binding.
	BlobEndpoint  string
	BlobRegion    string
	BlobAccessKey string
	BlobSecretKey string

	// Operator identity: either a raw operator token whose valid_signers
	// seed the signer set, or an operator key plus a csv of signer keys.
	OperatorToken string
	Operator      string
	Signers       []string

	// HTTP health endpoint.
	HTTPAddr string

	// OTLP metrics endpoint; empty disables telemetry.
	OTELEndpoint string
}

// Load reads the environment, then overlays Vault secrets when VAULT_ADDR
// and VAULT_TOKEN are present.
func Load() (*Config, error) {
	cfg := &Config{
		NATSURL:       getEnv("NATS_URL", "nats://127.0.0.1:4222"),
		RedisURL:      getEnv("REDIS_URL", "redis://127.0.0.1:6379"),
		BlobEndpoint:  os.Getenv("GANTRY_BLOB_ENDPOINT"),
		BlobRegion:    getEnv("GANTRY_BLOB_REGION", "us-east-1"),
		BlobAccessKey: os.Getenv("AWS_ACCESS_KEY_ID"),
		BlobSecretKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		OperatorToken: os.Getenv("GANTRY_OPERATOR_TOKEN"),
		Operator:      os.Getenv("GANTRY_OPERATOR"),
		Signers:       splitCSV(os.Getenv("GANTRY_SIGNERS")),
		HTTPAddr:      getEnv("GANTRY_HTTP_ADDR", ":8080"),
		OTELEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	vaultAddr := os.Getenv("VAULT_ADDR")
	vaultToken := os.Getenv("VAULT_TOKEN")
	if vaultAddr != "" && vaultToken != "" {
		if err := cfg.loadVault(vaultAddr, vaultToken); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
