// Package config loads taskmap configuration from config.yaml, .env files
// and TASKMAP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/manav03panchal/taskmap/internal/logging"
	"github.com/manav03panchal/taskmap/internal/query"
	"github.com/manav03panchal/taskmap/internal/storage"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	// EnvPrefix prefixes every environment override (TASKMAP_BACKEND, ...).
	EnvPrefix = "taskmap"

	// DefaultBackend is the backend used when none is configured.
	DefaultBackend = "badger"
)

// Config keys, as written in config.yaml.
const (
	KeyBackend       = "backend"
	KeyDataDir       = "data_dir"
	KeyPluginName    = "plugin_name"
	KeyCacheDir      = "cache_dir"
	KeySnapshotDelay = "snapshot_delay"
	KeyPageSize      = "page_size"
	KeyLogLevel      = "log_level"
	KeyLogJSON       = "log_json"
	KeyLogFile       = "log_file"
)

// KnownBackends lists the backend names a configuration may select.
var KnownBackends = []string{"badger", "sqlite", "json"}

// Config holds all runtime configuration values.
type Config struct {
	// Storage configuration
	Storage StorageConfig

	// Query configuration
	Query QueryConfig

	// Logging configuration
	Log LogConfig

	// File is the config file that was read, if any.
	File string
}

// StorageConfig selects and locates the backend.
type StorageConfig struct {
	// Backend is one of KnownBackends.
	// Default: badger
	Backend string

	// DataDir is the host data directory.
	// Default: $XDG_DATA_HOME/taskmap
	DataDir string

	// PluginName is the subdirectory of DataDir owned by this instance.
	// Default: taskmap
	PluginName string

	// CacheDir holds local snapshot copies for the sqlite backend.
	// Default: $XDG_CACHE_HOME/taskmap
	CacheDir string

	// SnapshotDelay is the debounce window for sqlite snapshots.
	// Default: 300ms
	SnapshotDelay time.Duration
}

// QueryConfig holds listing defaults.
type QueryConfig struct {
	// PageSize is the default page size for list commands. Zero lists
	// everything on one page.
	// Default: 20
	PageSize int
}

// LogConfig holds logging configuration.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: warn
	Level string

	// JSON switches to JSON log lines.
	// Default: false
	JSON bool

	// File, when set, receives logs through a size-rotated writer.
	File string
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend:       DefaultBackend,
			DataDir:       storage.DefaultDataDir(),
			PluginName:    storage.DefaultPluginName,
			CacheDir:      storage.DefaultCacheDir(),
			SnapshotDelay: storage.DefaultSnapshotDelay,
		},
		Query: QueryConfig{
			PageSize: query.DefaultPageSize,
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// DefaultDir returns the directory searched for config.yaml.
func DefaultDir() string {
	return filepath.Join(xdg.ConfigHome, storage.AppName)
}

// Options controls where Load looks.
type Options struct {
	// Path is an explicit config file. Empty searches Dir.
	Path string
	// Dir is searched for config.yaml when Path is empty.
	// Default: DefaultDir()
	Dir string
	// Fs is the filesystem the config file is read from.
	// Default: the OS filesystem
	Fs afero.Fs
}

// Load reads the configuration. Precedence, highest first: environment,
// config file, defaults. A missing config file is not an error; an
// explicit Path that does not exist is.
func Load(opts Options) (*Config, error) {
	def := Default()

	v := viper.New()
	if opts.Fs != nil {
		v.SetFs(opts.Fs)
	}
	v.SetDefault(KeyBackend, def.Storage.Backend)
	v.SetDefault(KeyDataDir, def.Storage.DataDir)
	v.SetDefault(KeyPluginName, def.Storage.PluginName)
	v.SetDefault(KeyCacheDir, def.Storage.CacheDir)
	v.SetDefault(KeySnapshotDelay, def.Storage.SnapshotDelay)
	v.SetDefault(KeyPageSize, def.Query.PageSize)
	v.SetDefault(KeyLogLevel, def.Log.Level)
	v.SetDefault(KeyLogJSON, def.Log.JSON)
	v.SetDefault(KeyLogFile, def.Log.File)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if opts.Path != "" {
		v.SetConfigFile(opts.Path)
	} else {
		dir := opts.Dir
		if dir == "" {
			dir = DefaultDir()
		}
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.Path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		Storage: StorageConfig{
			Backend:       strings.ToLower(strings.TrimSpace(v.GetString(KeyBackend))),
			DataDir:       v.GetString(KeyDataDir),
			PluginName:    v.GetString(KeyPluginName),
			CacheDir:      v.GetString(KeyCacheDir),
			SnapshotDelay: v.GetDuration(KeySnapshotDelay),
		},
		Query: QueryConfig{
			PageSize: v.GetInt(KeyPageSize),
		},
		Log: LogConfig{
			Level: v.GetString(KeyLogLevel),
			JSON:  v.GetBool(KeyLogJSON),
			File:  v.GetString(KeyLogFile),
		},
		File: v.ConfigFileUsed(),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFiles loads .env and .env.local from the working directory when
// present. Variables already set in the environment win.
func LoadEnvFiles() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if !slices.Contains(KnownBackends, c.Storage.Backend) {
		return fmt.Errorf("unknown backend %q (use one of %s)", c.Storage.Backend, strings.Join(KnownBackends, ", "))
	}
	if c.Storage.DataDir == "" {
		return errors.New("data_dir must not be empty")
	}
	if c.Storage.PluginName == "" || strings.ContainsAny(c.Storage.PluginName, `/\`) {
		return fmt.Errorf("plugin_name %q must be a single path segment", c.Storage.PluginName)
	}
	if c.Storage.SnapshotDelay < 0 {
		return fmt.Errorf("snapshot_delay must not be negative, got %s", c.Storage.SnapshotDelay)
	}
	if c.Query.PageSize < 0 {
		return fmt.Errorf("page_size must not be negative, got %d", c.Query.PageSize)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// StorageOptions converts the storage section into a backend configuration.
func (c *Config) StorageOptions() storage.Config {
	return storage.Config{
		DataDir:       c.Storage.DataDir,
		PluginName:    c.Storage.PluginName,
		CacheDir:      c.Storage.CacheDir,
		SnapshotDelay: c.Storage.SnapshotDelay,
	}.WithDefaults()
}
