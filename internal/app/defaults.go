package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Environment variables that override default locations.
const (
	EnvConfigPath = "CHATVAULT_CONFIG_PATH" // config file (default ~/.config/chatvault.toml)
	EnvHome       = "CHATVAULT_HOME"        // data directory (default ~/.local/share/chatvault)
)

// GetDefaults returns default locations keyed by "config_path", "base_dir"
// and "log_dir". Environment variables take precedence over the home
// directory defaults.
func GetDefaults() (map[string]string, error) {
	configPath, err := envOrHome(EnvConfigPath, ".config", "chatvault.toml")
	if err != nil {
		return nil, err
	}
	baseDir, err := envOrHome(EnvHome, ".local", "share", "chatvault")
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// envOrHome returns the value of env, or elems joined under the user's
// home directory when env is unset.
func envOrHome(env string, elems ...string) (string, error) {
	if path := os.Getenv(env); path != "" {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append([]string{homeDir}, elems...)...), nil
}
