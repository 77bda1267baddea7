package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./massctl.db" {
			t.Errorf("expected database path ./massctl.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 8095 {
			t.Errorf("expected server port 8095, got %d", config.Server.Port)
		}

		if config.Auth.DetectTimeout != 5*time.Second {
			t.Errorf("expected detect timeout 5s, got %v", config.Auth.DetectTimeout)
		}

		if config.Auth.ConnectAttempts != 10 || config.Auth.ConnectInterval != 500*time.Millisecond {
			t.Errorf("unexpected connect retry policy: %d x %v", config.Auth.ConnectAttempts, config.Auth.ConnectInterval)
		}

		if config.Cache.MaxEntries != 256 {
			t.Errorf("expected cache max entries 256, got %d", config.Cache.MaxEntries)
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[server]
url = "music.example.com"
port = 443
owner_name = "sam"

[auth]
detect_timeout = "2s"

[database]
path = "/custom/path.db"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}

		if config.Server.URL != "music.example.com" || config.Server.Port != 443 {
			t.Errorf("unexpected server config: %+v", config.Server)
		}

		if config.Auth.DetectTimeout != 2*time.Second {
			t.Errorf("expected detect timeout 2s, got %v", config.Auth.DetectTimeout)
		}

		if config.Auth.LoginTimeout != 10*time.Second {
			t.Errorf("unset keys should keep defaults, got login timeout %v", config.Auth.LoginTimeout)
		}
	})

	t.Run("LoadConfig rejects unbounded deadlines", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := os.WriteFile(configPath, []byte("[auth]\nconnect_attempts = 0\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		_, err := LoadConfig(configPath)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}
