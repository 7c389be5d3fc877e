package app

import (
	"os"
	"path/filepath"
	"testing"

	"auditflow/internal/config"
)

func TestGetDefaults(t *testing.T) {
	t.Run("uses env vars when set", func(t *testing.T) {
		t.Setenv(EnvConfigPath, "/custom/config.toml")
		t.Setenv(EnvHome, "/custom/auditflow")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		if defaults["config_path"] != "/custom/config.toml" {
			t.Errorf("config_path = %q, want %q", defaults["config_path"], "/custom/config.toml")
		}
		if defaults["base_dir"] != "/custom/auditflow" {
			t.Errorf("base_dir = %q, want %q", defaults["base_dir"], "/custom/auditflow")
		}
		if defaults["log_dir"] != "/custom/auditflow/log" {
			t.Errorf("log_dir = %q, want %q", defaults["log_dir"], "/custom/auditflow/log")
		}
	})

	t.Run("falls back to home dir defaults", func(t *testing.T) {
		t.Setenv(EnvConfigPath, "")
		t.Setenv(EnvHome, "")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		homeDir, _ := os.UserHomeDir()

		wantConfig := filepath.Join(homeDir, ".config", "auditflow.toml")
		if defaults["config_path"] != wantConfig {
			t.Errorf("config_path = %q, want %q", defaults["config_path"], wantConfig)
		}

		wantBase := filepath.Join(homeDir, ".local", "share", "auditflow")
		if defaults["base_dir"] != wantBase {
			t.Errorf("base_dir = %q, want %q", defaults["base_dir"], wantBase)
		}
	})
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := EnvJWTSecret + "=from-file\n" + EnvHome + "=/from/file\n"
	if err := os.WriteFile(envFile, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(EnvJWTSecret, "")
	os.Unsetenv(EnvJWTSecret)
	t.Setenv(EnvHome, "/already/set")

	if err := LoadDotEnv(envFile, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv(EnvJWTSecret); got != "from-file" {
		t.Errorf("%s = %q, want from-file", EnvJWTSecret, got)
	}
	if got := os.Getenv(EnvHome); got != "/already/set" {
		t.Errorf("%s = %q, existing value was overridden", EnvHome, got)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := config.NewConfig(t.TempDir())
	cfg.Server.JWTSecret = "from-config"

	t.Setenv(EnvJWTSecret, "")
	ApplyEnv(cfg)
	if cfg.Server.JWTSecret != "from-config" {
		t.Errorf("JWTSecret = %q, want from-config", cfg.Server.JWTSecret)
	}

	t.Setenv(EnvJWTSecret, "from-env")
	ApplyEnv(cfg)
	if cfg.Server.JWTSecret != "from-env" {
		t.Errorf("JWTSecret = %q, want from-env", cfg.Server.JWTSecret)
	}
}
