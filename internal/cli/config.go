package cli

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/partboard/partboard/pkg/errors"
)

// Store backends selectable via configuration.
const (
	StoreBackendFile   = "file"
	StoreBackendMemory = "memory"
	StoreBackendMongo  = "mongo"
	StoreBackendRedis  = "redis"
)

// Config is the partboard configuration, loaded from
// ~/.config/partboard/config.toml (override with PARTBOARD_CONFIG).
type Config struct {
	Server ServerConfig `toml:"server"`
	Store  StoreConfig  `toml:"store"`
	Mongo  MongoConfig  `toml:"mongo"`
	Redis  RedisConfig  `toml:"redis"`
	Save   SaveConfig   `toml:"save"`
	Collab CollabConfig `toml:"collab"`
}

// ServerConfig configures the serve command.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Backend string `toml:"backend"` // file (default), memory, mongo, redis
	Dir     string `toml:"dir"`     // file backend directory; empty uses XDG data dir
}

// MongoConfig configures the mongo backend.
type MongoConfig struct {
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// RedisConfig configures the redis backend and collab fan-out.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	TTLSeconds int    `toml:"ttl_seconds"` // 0 means rows never expire
}

// TTL returns the configured row TTL.
func (r RedisConfig) TTL() time.Duration {
	return time.Duration(r.TTLSeconds) * time.Second
}

// SaveConfig configures the autosave coordinator.
type SaveConfig struct {
	DebounceSeconds int `toml:"debounce_seconds"`
}

// Debounce returns the configured debounce window, defaulting when unset.
func (s SaveConfig) Debounce() time.Duration {
	if s.DebounceSeconds <= 0 {
		return 3 * time.Second
	}
	return time.Duration(s.DebounceSeconds) * time.Second
}

// CollabConfig configures the collaboration bridge.
type CollabConfig struct {
	Endpoint string `toml:"endpoint"` // websocket URL; empty disables collab
	UserName string `toml:"user_name"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8480"},
		Store:  StoreConfig{Backend: StoreBackendFile},
		Mongo: MongoConfig{
			URI:        "mongodb://localhost:27017",
			Database:   "partboard",
			Collection: "boards",
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
	}
}

// LoadConfig reads the config file at path. An empty path resolves the
// standard location; a missing file yields defaults without error.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("PARTBOARD_CONFIG")
	}
	if path == "" {
		var err error
		path, err = configPath()
		if err != nil {
			return DefaultConfig(), nil
		}
	}

	cfg := DefaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse config %s", path)
	}
	return cfg, nil
}
