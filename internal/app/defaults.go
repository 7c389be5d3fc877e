package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"auditflow/internal/config"
)

// Environment variables read by the application.
const (
	EnvConfigPath    = "AUDITFLOW_CONFIG_PATH"
	EnvHome          = "AUDITFLOW_HOME"
	EnvJWTSecret     = "AUDITFLOW_JWT_SECRET"
	EnvKeyPassphrase = "AUDITFLOW_KEY_PASSPHRASE"
)

// LoadDotEnv loads variables from the given .env files (".env" when none are
// named) without overriding ones already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - AUDITFLOW_CONFIG_PATH: config file location (default: ~/.config/auditflow.toml)
//   - AUDITFLOW_HOME: base directory for auditflow data (default: ~/.local/share/auditflow)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// ApplyEnv overrides secrets in cfg with AUDITFLOW_JWT_SECRET when it is set.
func ApplyEnv(cfg *config.Config) {
	if s := os.Getenv(EnvJWTSecret); s != "" {
		cfg.Server.JWTSecret = s
	}
}

func getConfigPath() (string, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "auditflow.toml"), nil
}

// getBaseDir falls back to the XDG default ~/.local/share/auditflow.
func getBaseDir() (string, error) {
	if path := os.Getenv(EnvHome); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "auditflow"), nil
}
