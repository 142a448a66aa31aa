// config.go - Configuration management for the pool daemon
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"shielder/internal/backend"
	"shielder/internal/shielder"
)

// Config represents the daemon configuration
type Config struct {
	Listen string `yaml:"listen"`

	// Pool identity
	Owner   string `yaml:"owner"`
	Address string `yaml:"address"`

	// Persistence
	StatePath        string        `yaml:"state_path"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`

	Backend   BackendConfig   `yaml:"backend"`
	Log       LogConfig       `yaml:"log"`
	NATS      NATSConfig      `yaml:"nats"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Tokens    []TokenConfig   `yaml:"tokens"`
}

type BackendConfig struct {
	Kind   string `yaml:"kind"`
	KeyDir string `yaml:"key_dir"`
}

type LogConfig struct {
	Level     string `yaml:"level"`
	File      string `yaml:"file"`
	AuditFile string `yaml:"audit_file"`
	JSON      bool   `yaml:"json"`
}

// NATSConfig enables event publishing when URL is set.
type NATSConfig struct {
	URL      string        `yaml:"url"`
	Prefix   string        `yaml:"prefix"`
	SenderID string        `yaml:"sender_id"`
	Timeout  time.Duration `yaml:"timeout"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// RateLimitConfig is a token bucket per client IP.
type RateLimitConfig struct {
	Burst  int           `yaml:"burst"`
	Refill int           `yaml:"refill"`
	Period time.Duration `yaml:"period"`
}

// TokenConfig describes an in-memory token ledger the daemon hosts.
type TokenConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	// Register makes the daemon register the id as owner when the state does not have it yet.
	Register bool           `yaml:"register"`
	Holders  []HolderConfig `yaml:"holders"`
}

// HolderConfig funds an account and approves the pool to pull from it.
type HolderConfig struct {
	Account   string `yaml:"account"`
	Balance   string `yaml:"balance"`
	Allowance string `yaml:"allowance"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Listen:           ":8080",
		Owner:            "0x01",
		Address:          "0x5017",
		StatePath:        "pool_state.json",
		SnapshotInterval: time.Minute,
		Backend: BackendConfig{
			Kind:   string(backend.KindNative),
			KeyDir: "keys",
		},
		Log: LogConfig{
			Level: "info",
		},
		NATS: NATSConfig{
			Prefix:   "shielder.events",
			SenderID: "poold",
			Timeout:  10 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Burst:  20,
			Refill: 10,
			Period: time.Second,
		},
	}
}

// LoadConfig loads configuration from file. A missing file yields the defaults, which are
// written to path so they can be edited.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := SaveConfig(config, path); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
		return config, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}
	return config, nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// ApplyEnv overrides fields from POOLD_* environment variables.
func (c *Config) ApplyEnv() error {
	str := map[string]*string{
		"POOLD_LISTEN":      &c.Listen,
		"POOLD_OWNER":       &c.Owner,
		"POOLD_ADDRESS":     &c.Address,
		"POOLD_STATE_PATH":  &c.StatePath,
		"POOLD_BACKEND":     &c.Backend.Kind,
		"POOLD_KEY_DIR":     &c.Backend.KeyDir,
		"POOLD_LOG_LEVEL":   &c.Log.Level,
		"POOLD_LOG_FILE":    &c.Log.File,
		"POOLD_NATS_URL":    &c.NATS.URL,
		"POOLD_JWT_SECRET":  &c.Auth.JWTSecret,
		"POOLD_AUDIT_FILE":  &c.Log.AuditFile,
		"POOLD_NATS_PREFIX": &c.NATS.Prefix,
	}
	for key, field := range str {
		if v, ok := os.LookupEnv(key); ok {
			*field = v
		}
	}
	if v, ok := os.LookupEnv("POOLD_LOG_JSON"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("POOLD_LOG_JSON: %w", err)
		}
		c.Log.JSON = b
	}
	if v, ok := os.LookupEnv("POOLD_SNAPSHOT_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("POOLD_SNAPSHOT_INTERVAL: %w", err)
		}
		c.SnapshotInterval = d
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen must be set")
	}
	if _, err := shielder.ParseScalar(c.Owner); err != nil {
		return fmt.Errorf("owner: %w", err)
	}
	if _, err := shielder.ParseScalar(c.Address); err != nil {
		return fmt.Errorf("address: %w", err)
	}
	if _, err := backend.ParseKind(c.Backend.Kind); err != nil {
		return err
	}
	if c.SnapshotInterval < 0 {
		return fmt.Errorf("snapshot_interval must not be negative")
	}
	if c.RateLimit.Burst <= 0 || c.RateLimit.Refill <= 0 || c.RateLimit.Period <= 0 {
		return fmt.Errorf("rate_limit burst, refill and period must be positive")
	}
	seen := make(map[shielder.Scalar]bool)
	for i, t := range c.Tokens {
		id, err := shielder.ParseScalar(t.ID)
		if err != nil {
			return fmt.Errorf("tokens[%d].id: %w", i, err)
		}
		if seen[id] {
			return fmt.Errorf("tokens[%d]: duplicate id %s", i, id)
		}
		seen[id] = true
		for j, h := range t.Holders {
			if _, err := shielder.ParseScalar(h.Account); err != nil {
				return fmt.Errorf("tokens[%d].holders[%d].account: %w", i, j, err)
			}
			for _, amount := range []string{h.Balance, h.Allowance} {
				if amount == "" {
					continue
				}
				if _, err := shielder.ParseAmount(amount); err != nil {
					return fmt.Errorf("tokens[%d].holders[%d]: %w", i, j, err)
				}
			}
		}
	}
	return nil
}
