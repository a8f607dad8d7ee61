package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/vault/api"
)

// SecretManager wraps the Vault API client for reading secrets.
type SecretManager struct {
	client *api.Client
}

// NewSecretManager creates a Vault client pointed at the given address and
// authenticated with the provided token.
func NewSecretManager(address, token string) (*SecretManager, error) {
	cfg := api.DefaultConfig()
	cfg.Address = address

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault client initialization failed: %w", err)
	}
	client.SetToken(token)

	return &SecretManager{client: client}, nil
}

// GetKV2 reads from a KV v2 backend and returns the inner "data" map,
// unwrapping the v2 envelope.
func (s *SecretManager) GetKV2(path string) (map[string]interface{}, error) {
	secret, err := s.client.Logical().Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret at %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("no data found at %s", path)
	}
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected data format at %s", path)
	}
	return data, nil
}

// loadVault overlays secret values onto the config. Keys absent from the
// secret keep their environment values.
func (c *Config) loadVault(address, token string) error {
	manager, err := NewSecretManager(address, token)
	if err != nil {
		return err
	}

	path := os.Getenv("VAULT_SECRET_PATH")
	if path == "" {
		path = "secret/data/gantry/server"
	}
	secrets, err := manager.GetKV2(path)
	if err != nil {
		return fmt.Errorf("failed to load secrets from vault: %w", err)
	}

	overlay := func(dst *string, key string) {
		if v, ok := secrets[key].(string); ok && v != "" {
			*dst = v
		}
	}
	overlay(&c.RedisURL, "REDIS_URL")
	overlay(&c.NATSURL, "NATS_URL")
	overlay(&c.BlobAccessKey, "AWS_ACCESS_KEY_ID")
	overlay(&c.BlobSecretKey, "AWS_SECRET_ACCESS_KEY")
	overlay(&c.OperatorToken, "GANTRY_OPERATOR_TOKEN")
	return nil
}
