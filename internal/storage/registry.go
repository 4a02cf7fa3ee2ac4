package storage

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/adrg/xdg"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/manav03panchal/taskmap/internal/model"
)

const (
	// AppName is the application name used for data directories.
	AppName = "taskmap"

	// DefaultPluginName is the per-instance directory under the data dir.
	DefaultPluginName = "taskmap"

	// DefaultSnapshotDelay is the debounce window for snapshot backends.
	DefaultSnapshotDelay = 300 * time.Millisecond
)

// Config carries everything a backend factory may need.
type Config struct {
	Schema model.Schema
	// DataDir is the host-assigned data directory; backends write under
	// DataDir/PluginName.
	DataDir    string
	PluginName string
	// CacheDir holds local scratch copies (sqlite snapshots).
	CacheDir string
	// InMemory keeps everything in memory where the backend supports it.
	InMemory      bool
	Files         Files
	SnapshotDelay time.Duration
}

// DefaultConfig returns a configuration using the XDG directories.
func DefaultConfig() Config {
	return Config{
		Schema:        model.DefaultSchema(),
		DataDir:       DefaultDataDir(),
		PluginName:    DefaultPluginName,
		CacheDir:      DefaultCacheDir(),
		Files:         OSFiles(),
		SnapshotDelay: DefaultSnapshotDelay,
	}
}

// DefaultDataDir returns the default data directory following the XDG spec.
func DefaultDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// DefaultCacheDir returns the default cache directory following the XDG spec.
func DefaultCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// WithDefaults fills unset fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	if len(c.Schema.Stores) == 0 {
		c.Schema = model.DefaultSchema()
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir()
	}
	if c.PluginName == "" {
		c.PluginName = DefaultPluginName
	}
	if c.CacheDir == "" {
		c.CacheDir = DefaultCacheDir()
	}
	if c.Files == nil {
		c.Files = OSFiles()
	}
	if c.SnapshotDelay <= 0 {
		c.SnapshotDelay = DefaultSnapshotDelay
	}
	return c
}

// PluginDir is the directory holding this instance's files.
func (c Config) PluginDir() string {
	return filepath.Join(c.DataDir, c.PluginName)
}

// Factory builds a backend from a configuration.
type Factory func(cfg Config) (Backend, error)

var registry = xsync.NewMapOf[string, Factory]()

// Register makes a backend factory available under name. Backend packages
// call it from init.
func Register(name string, f Factory) {
	registry.Store(name, f)
}

// New builds the backend registered under name.
func New(name string, cfg Config) (Backend, error) {
	f, ok := registry.Load(name)
	if !ok {
		return nil, fmt.Errorf("unknown backend %q (available: %v)", name, Registered())
	}
	return f(cfg.WithDefaults())
}

// Registered returns the registered backend names, sorted.
func Registered() []string {
	var names []string
	registry.Range(func(name string, _ Factory) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}
