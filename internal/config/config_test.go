package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AGNEXUS_CONFIG", "")
	t.Setenv("HOST", "")
	t.Setenv("PORT", "")
	t.Setenv("AGNEXUS_DB", "")
	t.Setenv("AGNEXUS_LEGACY_DIR", "")
	t.Setenv("HOME", t.TempDir()) // keep a real user config out of the test

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr() != "127.0.0.1:8086" {
		t.Fatalf("unexpected default addr %q", cfg.Addr())
	}
	if cfg.DatabasePath != "agnexus.db" {
		t.Fatalf("unexpected default db %q", cfg.DatabasePath)
	}
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `host: 0.0.0.0
port: "9000"
database_path: /data/pool.db
legacy_dir: /data/v1
ultra_required_models:
  - custom-flagship
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("AGNEXUS_CONFIG", path)
	t.Setenv("HOST", "")
	t.Setenv("AGNEXUS_DB", "")
	t.Setenv("AGNEXUS_LEGACY_DIR", "")
	t.Setenv("PORT", "9001") // env wins over file

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Host != "0.0.0.0" || cfg.Port != "9001" {
		t.Fatalf("override mismatch: %s:%s", cfg.Host, cfg.Port)
	}
	if cfg.LegacyDir != "/data/v1" {
		t.Fatalf("legacy dir %q", cfg.LegacyDir)
	}
	if len(cfg.UltraRequiredModels) != 1 || cfg.UltraRequiredModels[0] != "custom-flagship" {
		t.Fatalf("ultra models %v", cfg.UltraRequiredModels)
	}
}

func TestLoad_BadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("host: [unclosed"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("AGNEXUS_CONFIG", path)

	if _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}
}
