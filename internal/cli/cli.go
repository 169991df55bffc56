// Package cli implements the partboard command-line interface.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/partboard/partboard/pkg/buildinfo"
	"github.com/partboard/partboard/pkg/errors"
	"github.com/partboard/partboard/pkg/store"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "partboard"

	// defaultStoreTimeout bounds one store operation from the CLI.
	defaultStoreTimeout = 30 * time.Second
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Config *Config
}

// New creates a new CLI instance with a default logger and configuration
// loaded from the config file (falling back to defaults when none exists).
func New(w io.Writer, level log.Level) *CLI {
	cfg, err := LoadConfig("")
	if err != nil {
		cfg = DefaultConfig()
	}
	c := &CLI{
		Logger: newLogger(w, level),
		Config: cfg,
	}
	if err != nil {
		c.Logger.Warn("config file ignored", "err", err)
	}
	return c
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "partboard",
		Short:        "Partboard lays out product catalogs as whiteboard diagrams",
		Long:         `Partboard turns a project catalog (items, versions, parts) into a positioned whiteboard diagram: cards, badges, and connector arrows on an infinite board, with persistence and live collaboration.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	// Register all subcommands
	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.previewCommand())
	root.AddCommand(c.boardCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.watchCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Store Factory
// =============================================================================

// newStore opens the persistence backend named by the configuration.
func (c *CLI) newStore(ctx context.Context) (store.Store, error) {
	switch c.Config.Store.Backend {
	case StoreBackendFile, "":
		dir := c.Config.Store.Dir
		if dir == "" {
			var err error
			dir, err = dataDir()
			if err != nil {
				return nil, err
			}
		}
		return store.NewFileStore(dir)
	case StoreBackendMemory:
		return store.NewMemoryStore(), nil
	case StoreBackendMongo:
		return store.NewMongoStore(ctx, c.Config.Mongo.URI, c.Config.Mongo.Database, c.Config.Mongo.Collection)
	case StoreBackendRedis:
		s := store.NewRedisStore(&redis.Options{Addr: c.Config.Redis.Addr}, c.Config.Redis.TTL())
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	}
	return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown store backend %q", c.Config.Store.Backend)
}

// =============================================================================
// Paths
// =============================================================================

// dataDir returns the board directory using XDG standard
// (~/.local/share/partboard/boards).
func dataDir() (string, error) {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, appName, "boards"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", appName, "boards"), nil
}

// configPath returns the config file path using XDG standard
// (~/.config/partboard/config.toml).
func configPath() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}
