package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/adhocore/gronx"
	"gopkg.in/yaml.v3"

	"github.com/lazypower/lexisync/internal/kv"
)

// Config holds all lexisync configuration.
type Config struct {
	UserID  string        `yaml:"user_id"`
	Paths   PathsConfig   `yaml:"paths"`
	Storage StorageConfig `yaml:"storage"`
	Server  ServerConfig  `yaml:"server"`
	Sync    SyncConfig    `yaml:"sync"`
	Logging LoggingConfig `yaml:"logging"`
}

type PathsConfig struct {
	UserDataDir string `yaml:"user_data_dir"`
	SyncDir     string `yaml:"sync_dir"`
	TrashDir    string `yaml:"trash_dir"` // empty: <user_data_dir>/trash
}

type StorageConfig struct {
	Backend string `yaml:"backend"` // "leveldb", "pebble", "sqlite"
}

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type SyncConfig struct {
	Schedule string `yaml:"schedule"` // cron expression
	Enabled  bool   `yaml:"enabled"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultDir is the lexisync home, ~/.lexisync.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lexisync"
	}
	return filepath.Join(home, ".lexisync")
}

// DefaultPath is the config file read when none is given.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

// Default returns a Config with sensible defaults.
func Default() Config {
	dir := DefaultDir()
	return Config{
		Paths: PathsConfig{
			UserDataDir: filepath.Join(dir, "data"),
			SyncDir:     filepath.Join(dir, "sync"),
		},
		Storage: StorageConfig{
			Backend: kv.DefaultBackend,
		},
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37777,
		},
		Sync: SyncConfig{
			Schedule: "*/30 * * * *",
			Enabled:  true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the yaml file at path over the defaults, then applies
// environment overrides. A missing file is not an error. An empty path means
// DefaultPath.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	ApplyEnv(&cfg)
	cfg.Paths.UserDataDir = expandHome(cfg.Paths.UserDataDir)
	cfg.Paths.SyncDir = expandHome(cfg.Paths.SyncDir)
	cfg.Paths.TrashDir = expandHome(cfg.Paths.TrashDir)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg from LEXISYNC_* environment variables.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("LEXISYNC_USER_ID"); v != "" {
		cfg.UserID = v
	}
	if v := os.Getenv("LEXISYNC_USER_DATA_DIR"); v != "" {
		cfg.Paths.UserDataDir = v
	}
	if v := os.Getenv("LEXISYNC_SYNC_DIR"); v != "" {
		cfg.Paths.SyncDir = v
	}
	if v := os.Getenv("LEXISYNC_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("LEXISYNC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LEXISYNC_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if _, err := kv.Lookup(c.Storage.Backend); err != nil {
		return fmt.Errorf("storage.backend: %w", err)
	}
	if c.Paths.UserDataDir == "" {
		return errors.New("paths.user_data_dir is required")
	}
	if c.Paths.SyncDir == "" {
		return errors.New("paths.sync_dir is required")
	}
	if c.Sync.Schedule != "" && !gronx.IsValid(c.Sync.Schedule) {
		return fmt.Errorf("sync.schedule: invalid cron expression %q", c.Sync.Schedule)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: %d out of range", c.Server.Port)
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// TrashDir resolves the quarantine directory for pre-upgrade snapshots.
func (c *Config) TrashDir() string {
	if c.Paths.TrashDir != "" {
		return c.Paths.TrashDir
	}
	return filepath.Join(c.Paths.UserDataDir, "trash")
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
