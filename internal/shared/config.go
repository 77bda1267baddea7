package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Auth     AuthConfig     `toml:"auth"`
	Database DatabaseConfig `toml:"database"`
	Secrets  SecretsConfig  `toml:"secrets"`
	Cache    CacheConfig    `toml:"cache"`
	Prefetch PrefetchConfig `toml:"prefetch"`
	Log      LogConfig      `toml:"log"`
}

// ServerConfig contains the Music Assistant server address used when no saved setting exists.
type ServerConfig struct {
	URL       string `toml:"url"`
	Port      int    `toml:"port"`
	OwnerName string `toml:"owner_name"`
}

// AuthConfig contains deadlines and retry limits for detection, login and connection.
type AuthConfig struct {
	DetectTimeout   time.Duration `toml:"detect_timeout"`
	LoginTimeout    time.Duration `toml:"login_timeout"`
	ConnectAttempts int           `toml:"connect_attempts"`
	ConnectInterval time.Duration `toml:"connect_interval"`
	DeviceName      string        `toml:"device_name"`
	TokenName       string        `toml:"token_name"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// SecretsConfig points at the key file protecting stored credentials.
type SecretsConfig struct {
	KeyPath string `toml:"key_path"`
}

// CacheConfig bounds the response cache.
type CacheConfig struct {
	TTL            time.Duration `toml:"ttl"`
	MaxEntries     int           `toml:"max_entries"`
	RefreshTimeout time.Duration `toml:"refresh_timeout"`
}

// PrefetchConfig controls the playlist prefetch worker pool.
type PrefetchConfig struct {
	Workers   int     `toml:"workers"`
	RateLimit float64 `toml:"rate_limit"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Validate rejects values that would leave the client without a bounded deadline.
func (c *Config) Validate() error {
	switch {
	case c.Auth.DetectTimeout <= 0:
		return fmt.Errorf("%w: auth.detect_timeout must be positive", ErrInvalidConfig)
	case c.Auth.LoginTimeout <= 0:
		return fmt.Errorf("%w: auth.login_timeout must be positive", ErrInvalidConfig)
	case c.Auth.ConnectAttempts <= 0:
		return fmt.Errorf("%w: auth.connect_attempts must be positive", ErrInvalidConfig)
	case c.Auth.ConnectInterval <= 0:
		return fmt.Errorf("%w: auth.connect_interval must be positive", ErrInvalidConfig)
	case c.Server.Port < 0 || c.Server.Port > 65535:
		return fmt.Errorf("%w: server.port out of range", ErrInvalidConfig)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
