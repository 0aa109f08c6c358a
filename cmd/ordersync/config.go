// ABOUTME: config.go provides configuration file management for the ordersync CLI.
// ABOUTME: Supports loading, saving, and auto-initialization with environment variable overrides.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config represents the ordersync CLI configuration.
type Config struct {
	Server   string `json:"server"`
	Token    string `json:"token"`
	DeviceID string `json:"device_id"`
	DB       string `json:"db"`
	LogFile  string `json:"log_file,omitempty"`
}

// ConfigPath is a function that returns the path to the ordersync config file.
// It can be overridden in tests.
var ConfigPath = func() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".ordersync", "config.json")
	}
	return filepath.Join(home, ".ordersync", "config.json")
}

// ConfigDir returns the directory containing the config file.
func ConfigDir() string {
	return filepath.Dir(ConfigPath())
}

// EnsureConfigDir creates the config directory if it doesn't exist.
// Handles edge cases like the path being a file instead of a directory.
//
//nolint:nestif // Complex nested blocks needed to handle various filesystem states.
func EnsureConfigDir() error {
	dir := ConfigDir()

	// Check if path exists
	info, err := os.Stat(dir)
	if err == nil {
		// Path exists - make sure it's a directory
		if !info.IsDir() {
			// It's a file, back it up and create directory
			backup := dir + ".backup." + time.Now().Format("20060102-150405")
			if err := os.Rename(dir, backup); err != nil {
				return fmt.Errorf("config path %s is a file, failed to backup: %w", dir, err)
			}
			fmt.Fprintf(os.Stderr, "Warning: %s was a file, backed up to %s\n", dir, backup)
		} else {
			return nil // Already a directory
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("check config dir: %w", err)
	}

	return os.MkdirAll(dir, 0o750)
}

// LoadConfig loads config from file and applies environment variable overrides.
// Returns default config if file doesn't exist or is corrupted.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	configPath := ConfigPath()

	// Check if config path is a directory (user error)
	info, statErr := os.Stat(configPath)
	if statErr == nil && info.IsDir() {
		return nil, fmt.Errorf("config path %s is a directory, not a file\nRemove it and run 'ordersync init'", configPath)
	}

	// Try to load from file
	// #nosec G304 -- configPath is derived from user's home directory, not user input
	data, err := os.ReadFile(configPath)
	if err == nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			// Config file is corrupted - back it up and return error with helpful message
			backup := configPath + ".corrupt." + time.Now().Format("20060102-150405")
			if renameErr := os.Rename(configPath, backup); renameErr == nil {
				fmt.Fprintf(os.Stderr, "Warning: corrupted config backed up to %s\n", backup)
			}
			return nil, fmt.Errorf("config file corrupted: %w\nRun 'ordersync init' to create a new config", jsonErr)
		}
	} else if !os.IsNotExist(err) {
		// Some other error (permissions, etc)
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Ensure the database path is set to a default if empty
	if cfg.DB == "" {
		cfg.DB = filepath.Join(ConfigDir(), "orders.db")
	}

	return cfg, nil
}

// defaultConfig returns a config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Server:   "",
		Token:    "",
		DeviceID: "",
		DB:       filepath.Join(ConfigDir(), "orders.db"),
	}
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if server := os.Getenv("ORDERSYNC_SERVER"); server != "" {
		cfg.Server = server
	}
	if token := os.Getenv("ORDERSYNC_TOKEN"); token != "" {
		cfg.Token = token
	}
	if deviceID := os.Getenv("ORDERSYNC_DEVICE_ID"); deviceID != "" {
		cfg.DeviceID = deviceID
	}
	if db := os.Getenv("ORDERSYNC_DB"); db != "" {
		cfg.DB = expandPath(db)
	}
	if logFile := os.Getenv("ORDERSYNC_LOG_FILE"); logFile != "" {
		cfg.LogFile = expandPath(logFile)
	}
}

// SaveConfig writes config to file.
func SaveConfig(cfg *Config) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(ConfigPath(), data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// InitConfig creates a new config with a minted device ID. The server URL and
// token are filled in later, either by editing the file or through the
// ORDERSYNC_SERVER and ORDERSYNC_TOKEN environment variables.
func InitConfig() (*Config, error) {
	cfg := &Config{
		Server:   "",
		Token:    "",
		DeviceID: uuid.NewString(),
		DB:       filepath.Join(filepath.Dir(ConfigPath()), "orders.db"),
	}

	if err := SaveConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ConfigExists returns true if config file exists.
func ConfigExists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
