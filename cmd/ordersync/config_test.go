package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func TestConfigPath(t *testing.T) {
	path := ConfigPath()
	if path == "" {
		t.Fatal("ConfigPath returned empty string")
	}
	if !filepath.IsAbs(path) {
		t.Errorf("ConfigPath returned relative path: %s", path)
	}
}

func TestEnsureConfigDir(t *testing.T) {
	// Use temp directory for testing
	tmpDir := t.TempDir()
	originalHome := os.Getenv("HOME")
	_ = os.Setenv("HOME", tmpDir)
	defer func() { _ = os.Setenv("HOME", originalHome) }()

	if err := EnsureConfigDir(); err != nil {
		t.Fatalf("EnsureConfigDir failed: %v", err)
	}

	dir := filepath.Dir(ConfigPath())
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Errorf("Config directory not created: %s", dir)
	}
}

func TestLoadConfig_NotExists(t *testing.T) {
	// Use temp directory for testing
	tmpDir := t.TempDir()
	originalHome := os.Getenv("HOME")
	_ = os.Setenv("HOME", tmpDir)
	defer func() { _ = os.Setenv("HOME", originalHome) }()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed when file doesn't exist: %v", err)
	}
	if cfg == nil {
		t.Fatal("LoadConfig returned nil config")
	}

	// Should have default values
	if cfg.DB == "" {
		t.Error("Default DB not set")
	}
	if cfg.Server != "" {
		t.Errorf("Server should default to empty, got %s", cfg.Server)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	// Use temp directory for testing
	tmpDir := t.TempDir()
	originalHome := os.Getenv("HOME")
	_ = os.Setenv("HOME", tmpDir)
	defer func() { _ = os.Setenv("HOME", originalHome) }()

	// Set environment variables
	testServer := "https://example.com"
	testToken := "test-token"
	testDeviceID := "test-device"
	testDB := filepath.Join(tmpDir, "override.db")
	testLogFile := filepath.Join(tmpDir, "ordersync.log")

	_ = os.Setenv("ORDERSYNC_SERVER", testServer)
	_ = os.Setenv("ORDERSYNC_TOKEN", testToken)
	_ = os.Setenv("ORDERSYNC_DEVICE_ID", testDeviceID)
	_ = os.Setenv("ORDERSYNC_DB", testDB)
	_ = os.Setenv("ORDERSYNC_LOG_FILE", testLogFile)
	defer func() {
		_ = os.Unsetenv("ORDERSYNC_SERVER")
		_ = os.Unsetenv("ORDERSYNC_TOKEN")
		_ = os.Unsetenv("ORDERSYNC_DEVICE_ID")
		_ = os.Unsetenv("ORDERSYNC_DB")
		_ = os.Unsetenv("ORDERSYNC_LOG_FILE")
	}()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server != testServer {
		t.Errorf("Server not set from env: got %s, want %s", cfg.Server, testServer)
	}
	if cfg.Token != testToken {
		t.Errorf("Token not set from env: got %s, want %s", cfg.Token, testToken)
	}
	if cfg.DeviceID != testDeviceID {
		t.Errorf("DeviceID not set from env: got %s, want %s", cfg.DeviceID, testDeviceID)
	}
	if cfg.DB != testDB {
		t.Errorf("DB not set from env: got %s, want %s", cfg.DB, testDB)
	}
	if cfg.LogFile != testLogFile {
		t.Errorf("LogFile not set from env: got %s, want %s", cfg.LogFile, testLogFile)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	// Use temp directory for testing
	tmpDir := t.TempDir()
	originalHome := os.Getenv("HOME")
	_ = os.Setenv("HOME", tmpDir)
	defer func() { _ = os.Setenv("HOME", originalHome) }()

	// Create a config
	originalCfg := &Config{
		Server:   "https://pos.example.com",
		Token:    "test-token",
		DeviceID: "test-device-123",
		DB:       filepath.Join(tmpDir, "orders.db"),
		LogFile:  filepath.Join(tmpDir, "ordersync.log"),
	}

	// Save it
	if err := SaveConfig(originalCfg); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	// Load it back
	loadedCfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	// Compare
	if loadedCfg.Server != originalCfg.Server {
		t.Errorf("Server mismatch: got %s, want %s", loadedCfg.Server, originalCfg.Server)
	}
	if loadedCfg.Token != originalCfg.Token {
		t.Errorf("Token mismatch: got %s, want %s", loadedCfg.Token, originalCfg.Token)
	}
	if loadedCfg.DeviceID != originalCfg.DeviceID {
		t.Errorf("DeviceID mismatch: got %s, want %s", loadedCfg.DeviceID, originalCfg.DeviceID)
	}
	if loadedCfg.DB != originalCfg.DB {
		t.Errorf("DB mismatch: got %s, want %s", loadedCfg.DB, originalCfg.DB)
	}
	if loadedCfg.LogFile != originalCfg.LogFile {
		t.Errorf("LogFile mismatch: got %s, want %s", loadedCfg.LogFile, originalCfg.LogFile)
	}
}

func TestInitConfig(t *testing.T) {
	// Use temp directory for testing
	tmpDir := t.TempDir()
	originalHome := os.Getenv("HOME")
	_ = os.Setenv("HOME", tmpDir)
	defer func() { _ = os.Setenv("HOME", originalHome) }()

	cfg, err := InitConfig()
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	// Verify config was created
	if cfg.DeviceID == "" {
		t.Error("DeviceID not generated")
	}
	if cfg.DB == "" {
		t.Error("DB not set")
	}

	// Verify the device ID is a well-formed UUID
	if _, err := uuid.Parse(cfg.DeviceID); err != nil {
		t.Errorf("DeviceID is not a valid UUID: %v", err)
	}

	// Verify config file exists
	if !ConfigExists() {
		t.Error("Config file not created")
	}

	// Load and verify
	loadedCfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loadedCfg.DeviceID != cfg.DeviceID {
		t.Error("Loaded config device ID doesn't match")
	}
}

func TestConfigExists(t *testing.T) {
	// Use temp directory for testing
	tmpDir := t.TempDir()
	originalHome := os.Getenv("HOME")
	_ = os.Setenv("HOME", tmpDir)
	defer func() { _ = os.Setenv("HOME", originalHome) }()

	// Should not exist initially
	if ConfigExists() {
		t.Error("ConfigExists returned true for non-existent config")
	}

	// Create config
	if err := EnsureConfigDir(); err != nil {
		t.Fatalf("EnsureConfigDir failed: %v", err)
	}
	cfg := &Config{
		Server: "https://pos.example.com",
	}
	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	// Should exist now
	if !ConfigExists() {
		t.Error("ConfigExists returned false for existing config")
	}
}

func TestExpandPath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantHome bool
	}{
		{"absolute path", "/tmp/test.db", false},
		{"relative path", "test.db", false},
		{"tilde path", "~/.ordersync/test.db", true},
		{"tilde only", "~/", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := expandPath(tt.input)
			if tt.wantHome {
				home, _ := os.UserHomeDir()
				if home != "" && result == tt.input {
					t.Errorf("expandPath(%q) = %q, expected tilde to be expanded", tt.input, result)
				}
			} else if result != tt.input {
				t.Errorf("expandPath(%q) = %q, expected no change", tt.input, result)
			}
		})
	}
}
