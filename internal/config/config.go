// Package config loads the gateway's YAML configuration, in the same
// shape as the teacher's reset/internal/config package: strict decoding,
// config-file-relative path resolution, and a Validate pass.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the gateway's full runtime configuration.
type Config struct {
	BLE      BLEConfig      `yaml:"ble"`
	InterMCU InterMCUConfig `yaml:"inter_mcu"`
	Store    StoreConfig    `yaml:"store"`
	Log      LogConfig      `yaml:"log"`
}

// BLEConfig names the radio adapter and the user identity sent during the
// authentication handshake (§4.4).
type BLEConfig struct {
	AdapterName string `yaml:"adapter_name"`
	UserID      string `yaml:"user_id"`
}

// InterMCUConfig describes the UART link to the display co-processor and
// the local staging filesystem for OTA images (§4.6, §6).
type InterMCUConfig struct {
	UARTDevice   string        `yaml:"uart_device"`
	BaudRate     int           `yaml:"baud_rate"`
	StagingRoot  string        `yaml:"staging_root"`
	ChunkTimeout time.Duration `yaml:"chunk_timeout"`
}

// StoreConfig locates the persisted key-value pairing store (§6).
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LogConfig holds the log level and format; Validate checks them, while
// cmd/gateway sets up slog from its -v and -log-format flags and does not
// read this block.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Load reads and validates the YAML file at path, resolving any relative
// filesystem paths it contains against the config file's own directory.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)

	cfg := Config{
		InterMCU: InterMCUConfig{BaudRate: 115200, ChunkTimeout: 2 * time.Second},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.resolvePaths(path)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) resolvePaths(configPath string) {
	dir := filepath.Dir(configPath)
	c.InterMCU.StagingRoot = resolvePath(dir, c.InterMCU.StagingRoot)
	c.Store.Path = resolvePath(dir, c.Store.Path)
}

func resolvePath(baseDir, path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Clean(filepath.Join(baseDir, trimmed))
}

// Validate checks that every required field is present and within range.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BLE.AdapterName) == "" {
		return fmt.Errorf("config: ble.adapter_name is required")
	}
	if strings.TrimSpace(c.BLE.UserID) == "" {
		return fmt.Errorf("config: ble.user_id is required")
	}
	if strings.TrimSpace(c.InterMCU.UARTDevice) == "" {
		return fmt.Errorf("config: inter_mcu.uart_device is required")
	}
	if c.InterMCU.BaudRate <= 0 {
		return fmt.Errorf("config: inter_mcu.baud_rate must be > 0")
	}
	if strings.TrimSpace(c.InterMCU.StagingRoot) == "" {
		return fmt.Errorf("config: inter_mcu.staging_root is required")
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("config: store.path is required")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level must be one of debug,info,warn,error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}
