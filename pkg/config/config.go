// Package config loads gate configuration from the environment with an
// optional YAML overlay. The result is an explicit struct handed to
// constructors; nothing here is global.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bpolania/DeltaNEAR-sub001/pkg/gate"
	"github.com/bpolania/DeltaNEAR-sub001/pkg/manifest"
)

// Config holds every tunable of the intent core.
type Config struct {
	MaxClockSkewSeconds       int64  `yaml:"max_clock_skew_seconds"`
	SimulationValiditySeconds int64  `yaml:"simulation_validity_seconds"`
	NonceExpirySeconds        int64  `yaml:"nonce_expiry_seconds"`
	DeadlineHorizonSeconds    int64  `yaml:"deadline_horizon_seconds"`
	GCIntervalSeconds         int64  `yaml:"gc_interval_seconds"`
	ManifestSchemaVersion     string `yaml:"manifest_schema_version"`
	ManifestABIHash           string `yaml:"manifest_abi_hash"`
	RedisAddr                 string `yaml:"redis_addr"`
	LogLevel                  string `yaml:"log_level"`
}

// defaults mirror the original protocol deployment: five-minute simulation
// validity, 24h deadline horizon, nonce retention equal to the horizon.
func defaults() Config {
	return Config{
		MaxClockSkewSeconds:       60,
		SimulationValiditySeconds: 300,
		NonceExpirySeconds:        86400,
		DeadlineHorizonSeconds:    86400,
		GCIntervalSeconds:         60,
		ManifestSchemaVersion:     "1.0.0",
		LogLevel:                  "INFO",
	}
}

// Load builds a Config from defaults, an optional YAML file, then
// environment variables, in increasing precedence.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config file parse: %w", err)
		}
	}

	envInt64(&cfg.MaxClockSkewSeconds, "DELTANEAR_MAX_CLOCK_SKEW_SECONDS")
	envInt64(&cfg.SimulationValiditySeconds, "DELTANEAR_SIMULATION_VALIDITY_SECONDS")
	envInt64(&cfg.NonceExpirySeconds, "DELTANEAR_NONCE_EXPIRY_SECONDS")
	envInt64(&cfg.DeadlineHorizonSeconds, "DELTANEAR_DEADLINE_HORIZON_SECONDS")
	envInt64(&cfg.GCIntervalSeconds, "DELTANEAR_GC_INTERVAL_SECONDS")
	envString(&cfg.ManifestSchemaVersion, "DELTANEAR_MANIFEST_SCHEMA_VERSION")
	envString(&cfg.ManifestABIHash, "DELTANEAR_MANIFEST_ABI_HASH")
	envString(&cfg.RedisAddr, "DELTANEAR_REDIS_ADDR")
	envString(&cfg.LogLevel, "DELTANEAR_LOG_LEVEL")

	return cfg, nil
}

// Manifest freezes the configured manifest identity.
func (c Config) Manifest() (*manifest.Manifest, error) {
	return manifest.New(c.ManifestSchemaVersion, c.ManifestABIHash)
}

// GateConfig translates the loaded values into the gate's explicit
// configuration struct.
func (c Config) GateConfig() (gate.Config, error) {
	m, err := c.Manifest()
	if err != nil {
		return gate.Config{}, err
	}
	gc := gate.Config{
		MaxClockSkew:       time.Duration(c.MaxClockSkewSeconds) * time.Second,
		SimulationValidity: time.Duration(c.SimulationValiditySeconds) * time.Second,
		NonceRetention:     time.Duration(c.NonceExpirySeconds) * time.Second,
		MaxDeadlineHorizon: time.Duration(c.DeadlineHorizonSeconds) * time.Second,
		Manifest:           m,
	}
	if err := gc.Validate(); err != nil {
		return gate.Config{}, err
	}
	return gc, nil
}

// GCInterval returns the background cleanup period.
func (c Config) GCInterval() time.Duration {
	return time.Duration(c.GCIntervalSeconds) * time.Second
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}
