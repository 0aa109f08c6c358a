// ABOUTME: Tests for the shared CLI runtime glue.
// ABOUTME: Covers option normalization, device identity, and logger sinks.
package appcli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestNewAppMintsStableDeviceID(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "data", "orders.db")

	app, err := NewApp(ctx, Options{DBPath: dbPath})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	first := app.DeviceID()
	if first == "" {
		t.Fatal("expected a minted device id")
	}
	if err := app.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	again, err := NewApp(ctx, Options{DBPath: dbPath})
	if err != nil {
		t.Fatalf("reopen app: %v", err)
	}
	defer func() {
		if cerr := again.Close(); cerr != nil {
			t.Errorf("close: %v", cerr)
		}
	}()
	if again.DeviceID() != first {
		t.Fatalf("device id must survive restarts, got %q then %q", first, again.DeviceID())
	}
}

func TestNewAppHonorsExplicitDeviceID(t *testing.T) {
	ctx := context.Background()
	app, err := NewApp(ctx, Options{
		DBPath:   filepath.Join(t.TempDir(), "orders.db"),
		DeviceID: "dev-42",
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer func() {
		if cerr := app.Close(); cerr != nil {
			t.Errorf("close: %v", cerr)
		}
	}()
	if app.DeviceID() != "dev-42" {
		t.Fatalf("expected dev-42, got %q", app.DeviceID())
	}
}

func TestNewLoggerWritesRotatingFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "ordersync.log")
	if err := ensureDir(logFile); err != nil {
		t.Fatalf("ensure dir: %v", err)
	}

	log := NewLogger(logFile, false)
	log.Warn("refresh failed")
	log.Debug("request issued")
	_ = log.Sync()

	info, err := os.Stat(logFile)
	if err != nil {
		t.Fatalf("log file missing: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("expected log entries in the file sink")
	}
}
