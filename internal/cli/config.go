package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Credentials is what login persists: the registry's broker URLs and an
// optional user JWT plus nkey seed for authenticated brokers.
type Credentials struct {
	ServerURLs []string `yaml:"server_urls"`
	UserJWT    string   `yaml:"user_jwt,omitempty"`
	UserSeed   string   `yaml:"user_seed,omitempty"`
}

const configDirName = ".gantry"

func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, configDirName, "config.yaml"), nil
}

// loadCredentials reads the persisted credentials; a missing file is not an
// error and yields zero credentials.
func loadCredentials() (Credentials, error) {
	path, err := configPath()
	if err != nil {
		return Credentials{}, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Credentials{}, nil
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("read config: %w", err)
	}
	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return Credentials{}, fmt.Errorf("parse config: %w", err)
	}
	return creds, nil
}

// saveCredentials writes the config file with owner-only permissions; the
// seed inside is secret material.
func saveCredentials(creds Credentials) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// removeCredentials deletes the config file; already gone is fine.
func removeCredentials() error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove config: %w", err)
	}
	return nil
}
