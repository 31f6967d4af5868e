package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNoConfig means none of the standard locations holds a config file.
var ErrNoConfig = errors.New("no config file found")

// systemConfigPath is a variable so tests can point it elsewhere.
var systemConfigPath = "/etc/wsgc/config.yaml"

// DiscoverConfigFile finds the config file by checking standard locations.
// Priority order: $WSGC_CONFIG, ~/.config/wsgc/config.yaml, /etc/wsgc/config.yaml.
// A $WSGC_CONFIG that points nowhere is an error rather than a silent fallback.
func DiscoverConfigFile() (string, error) {
	if path := os.Getenv("WSGC_CONFIG"); path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("WSGC_CONFIG=%s: %w", path, err)
		}
		return path, nil
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		userConfig := filepath.Join(homeDir, ".config", "wsgc", "config.yaml")
		if fileExists(userConfig) {
			return userConfig, nil
		}
	}

	if fileExists(systemConfigPath) {
		return systemConfigPath, nil
	}

	return "", ErrNoConfig
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
