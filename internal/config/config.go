// Package config loads service configuration from an optional YAML file
// with environment-variable overrides on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds everything the service needs at startup.
type Config struct {
	Host         string `yaml:"host"`
	Port         string `yaml:"port"`
	DatabasePath string `yaml:"database_path"`
	// LegacyDir overrides the default ~/.antigravity-agent import source.
	LegacyDir string `yaml:"legacy_dir"`
	// UltraRequiredModels extends the built-in list of model fragments
	// that only ultra-tier accounts can serve.
	UltraRequiredModels []string `yaml:"ultra_required_models"`
}

func defaults() *Config {
	return &Config{
		Host:         "127.0.0.1",
		Port:         "8086",
		DatabasePath: "agnexus.db",
	}
}

// Load resolves the config file (explicit env path, then well-known
// locations), parses it, and applies env overrides. A missing file is fine;
// a present but unparsable one is not.
func Load() (*Config, error) {
	cfg := defaults()

	path, err := resolveConfigPath()
	if err != nil {
		return nil, err
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func resolveConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("AGNEXUS_CONFIG")); explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config: AGNEXUS_CONFIG: %w", err)
		}
		return explicit, nil
	}

	candidates := []string{
		"config/agnexus.yaml",
		"/etc/agnexus/config.yaml",
	}
	if homeDir, err := os.UserHomeDir(); err == nil && homeDir != "" {
		candidates = append(candidates,
			filepath.Join(homeDir, ".config", "agnexus", "config.yaml"),
			filepath.Join(homeDir, ".agnexus", "config.yaml"),
		)
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("AGNEXUS_DB"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("AGNEXUS_LEGACY_DIR"); v != "" {
		cfg.LegacyDir = v
	}
}

// Addr is the host:port the HTTP server binds.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}
