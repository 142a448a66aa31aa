package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "poold.yaml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	require.NoError(t, cfg.Validate())

	_, err = os.Stat(path)
	require.NoError(t, err, "defaults should be written out")
}

func TestLoadConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poold.yaml")
	yaml := `
listen: ":9090"
owner: "0xaa"
backend:
  kind: groth16
  key_dir: /var/lib/poold/keys
snapshot_interval: 30s
tokens:
  - id: "0x0a"
    name: usdc
    register: true
    holders:
      - account: "0x100"
        balance: "1000"
        allowance: "500"
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "0xaa", cfg.Owner)
	assert.Equal(t, "0x5017", cfg.Address, "unset fields keep defaults")
	assert.Equal(t, "groth16", cfg.Backend.Kind)
	assert.Equal(t, 30*time.Second, cfg.SnapshotInterval)
	require.Len(t, cfg.Tokens, 1)
	assert.True(t, cfg.Tokens[0].Register)
	assert.Equal(t, "500", cfg.Tokens[0].Holders[0].Allowance)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("POOLD_LISTEN", "127.0.0.1:7000")
	t.Setenv("POOLD_BACKEND", "plonk")
	t.Setenv("POOLD_NATS_URL", "nats://nats:4222")
	t.Setenv("POOLD_LOG_JSON", "true")
	t.Setenv("POOLD_SNAPSHOT_INTERVAL", "5s")

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, "127.0.0.1:7000", cfg.Listen)
	assert.Equal(t, "plonk", cfg.Backend.Kind)
	assert.Equal(t, "nats://nats:4222", cfg.NATS.URL)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, 5*time.Second, cfg.SnapshotInterval)

	t.Setenv("POOLD_LOG_JSON", "maybe")
	assert.Error(t, cfg.ApplyEnv())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen", func(c *Config) { c.Listen = "" }},
		{"bad owner", func(c *Config) { c.Owner = "zz" }},
		{"bad backend", func(c *Config) { c.Backend.Kind = "stark" }},
		{"negative snapshot", func(c *Config) { c.SnapshotInterval = -time.Second }},
		{"zero burst", func(c *Config) { c.RateLimit.Burst = 0 }},
		{"duplicate token", func(c *Config) {
			c.Tokens = []TokenConfig{{ID: "0x0a"}, {ID: "0xa"}}
		}},
		{"bad holder", func(c *Config) {
			c.Tokens = []TokenConfig{{ID: "0x0a", Holders: []HolderConfig{{Account: "0x1", Balance: "-3"}}}}
		}},
		{"oversized balance", func(c *Config) {
			c.Tokens = []TokenConfig{{ID: "0x0a", Holders: []HolderConfig{{
				Account: "0x1",
				Balance: "340282366920938463463374607431768211456",
			}}}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
