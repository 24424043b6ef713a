// Package config resolves CLI configuration from a JSON file and the
// environment.
//
// Resolution order: defaults, then config file values, then environment
// overrides (AIEOS_REGISTRY_URL, AIEOS_TRANSPORT, AIEOS_KEY_DIR).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

const (
	EnvRegistryURL = "AIEOS_REGISTRY_URL"
	EnvTransport   = "AIEOS_TRANSPORT"
	EnvKeyDir      = "AIEOS_KEY_DIR"
)

const (
	TransportHTTP = "http"
	TransportGRPC = "grpc"
)

// Config describes how the CLI reaches the registry and where identities
// live on disk.
//
// Example:
//
//	{
//	  "registry_url": "https://registry.aieos.dev",
//	  "transport": "http",
//	  "key_dir": "/home/agent/.aieos"
//	}
type Config struct {
	RegistryURL string `json:"registry_url,omitempty"`
	Transport   string `json:"transport,omitempty"`
	KeyDir      string `json:"key_dir,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		RegistryURL: "https://registry.aieos.dev",
		Transport:   TransportHTTP,
	}
}

// LoadFile reads a JSON config file and validates it.
func LoadFile(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, errors.New("config: empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// FromEnv overlays environment variables onto base and validates the result.
func FromEnv(base Config) (Config, error) {
	cfg := base
	if v := os.Getenv(EnvRegistryURL); v != "" {
		cfg.RegistryURL = v
	}
	if v := os.Getenv(EnvTransport); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv(EnvKeyDir); v != "" {
		cfg.KeyDir = v
	}
	return cfg, cfg.Validate()
}

// Resolve returns the effective configuration: defaults, overlaid with the
// config file at path (when non-empty), overlaid with the environment.
func Resolve(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		fileCfg, err := LoadFile(path)
		if err != nil {
			return Config{}, err
		}
		if fileCfg.RegistryURL != "" {
			cfg.RegistryURL = fileCfg.RegistryURL
		}
		if fileCfg.Transport != "" {
			cfg.Transport = fileCfg.Transport
		}
		if fileCfg.KeyDir != "" {
			cfg.KeyDir = fileCfg.KeyDir
		}
	}
	return FromEnv(cfg)
}

func (c Config) Validate() error {
	switch c.Transport {
	case "", TransportHTTP, TransportGRPC:
		return nil
	default:
		return fmt.Errorf("config: invalid transport %q", c.Transport)
	}
}
