package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATSURL)
	assert.Equal(t, "redis://127.0.0.1:6379", cfg.RedisURL)
	assert.Equal(t, "us-east-1", cfg.BlobRegion)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("NATS_URL", "nats://broker:4222")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("GANTRY_OPERATOR", "OOPKEY")
	t.Setenv("GANTRY_SIGNERS", "OSIGNER1, OSIGNER2 ,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "nats://broker:4222", cfg.NATSURL)
	assert.Equal(t, "redis://cache:6379/1", cfg.RedisURL)
	assert.Equal(t, "OOPKEY", cfg.Operator)
	assert.Equal(t, []string{"OSIGNER1", "OSIGNER2"}, cfg.Signers)
}

func TestSplitCSV(t *testing.T) {
	assert.Nil(t, splitCSV(""))
	assert.Equal(t, []string{"a"}, splitCSV("a"))
	assert.Equal(t, []string{"a", "b"}, splitCSV(" a , b "))
}
