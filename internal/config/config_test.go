package config

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manav03panchal/taskmap/internal/storage"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultBackend, cfg.Storage.Backend)
	assert.Equal(t, storage.DefaultDataDir(), cfg.Storage.DataDir)
	assert.Equal(t, storage.DefaultPluginName, cfg.Storage.PluginName)
	assert.Equal(t, 300*time.Millisecond, cfg.Storage.SnapshotDelay)
	assert.Equal(t, 20, cfg.Query.PageSize)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(Options{Dir: "/etc/taskmap", Fs: afero.NewMemMapFs()})
	require.NoError(t, err)
	assert.Equal(t, DefaultBackend, cfg.Storage.Backend)
	assert.Empty(t, cfg.File)
}

func TestLoadFromDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/taskmap/config.yaml", []byte(`
backend: sqlite
data_dir: /srv/data
snapshot_delay: 1s
page_size: 50
log_level: debug
log_json: true
`), 0o644))

	cfg, err := Load(Options{Dir: "/etc/taskmap", Fs: fs})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "/srv/data", cfg.Storage.DataDir)
	assert.Equal(t, time.Second, cfg.Storage.SnapshotDelay)
	assert.Equal(t, 50, cfg.Query.PageSize)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, storage.DefaultPluginName, cfg.Storage.PluginName, "unset keys keep defaults")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/c/taskmap.yaml", []byte("backend: sqlite\n"), 0o644))
	t.Setenv("TASKMAP_BACKEND", "json")
	t.Setenv("TASKMAP_PAGE_SIZE", "5")

	cfg, err := Load(Options{Path: "/c/taskmap.yaml", Fs: fs})
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Storage.Backend)
	assert.Equal(t, 5, cfg.Query.PageSize)
	assert.Equal(t, "/c/taskmap.yaml", cfg.File)
}

func TestLoadExplicitPathMissing(t *testing.T) {
	_, err := Load(Options{Path: "/nope/config.yaml", Fs: afero.NewMemMapFs()})
	assert.Error(t, err)
}

func TestLoadInvalidBackend(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/c/config.yaml", []byte("backend: postgres\n"), 0o644))

	_, err := Load(Options{Dir: "/c", Fs: fs})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty_data_dir", func(c *Config) { c.Storage.DataDir = "" }},
		{"nested_plugin_name", func(c *Config) { c.Storage.PluginName = "a/b" }},
		{"negative_delay", func(c *Config) { c.Storage.SnapshotDelay = -time.Second }},
		{"negative_page_size", func(c *Config) { c.Query.PageSize = -1 }},
		{"bad_log_level", func(c *Config) { c.Log.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestStorageOptions(t *testing.T) {
	cfg := Default()
	cfg.Storage.DataDir = "/data"
	cfg.Storage.PluginName = "vault"

	opts := cfg.StorageOptions()
	assert.Equal(t, "/data/vault", opts.PluginDir())
	assert.NotNil(t, opts.Files)
	assert.NotEmpty(t, opts.Schema.Stores)
}
