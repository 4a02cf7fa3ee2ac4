// Package runtime provides the application runtime context for taskmap:
// configuration, the open store and output formatting for one command.
package runtime

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/manav03panchal/taskmap/internal/config"
	"github.com/manav03panchal/taskmap/internal/errors"
	"github.com/manav03panchal/taskmap/internal/logging"
	"github.com/manav03panchal/taskmap/internal/metrics"
	"github.com/manav03panchal/taskmap/internal/output"
	"github.com/manav03panchal/taskmap/internal/repo"
	"github.com/manav03panchal/taskmap/internal/storage"

	// Backends register themselves with the storage registry.
	_ "github.com/manav03panchal/taskmap/internal/storage/badgerdb"
	_ "github.com/manav03panchal/taskmap/internal/storage/jsonfile"
	_ "github.com/manav03panchal/taskmap/internal/storage/sqlite"
)

// Context holds the application runtime context.
type Context struct {
	Config    *config.Config
	DB        *repo.DB
	Metrics   *metrics.Metrics
	Formatter *output.Formatter

	// Debug mode
	Debug bool

	lock *storage.FileLock
}

// Options configures the runtime context.
type Options struct {
	// Config is the loaded configuration. Nil uses config.Default().
	Config *config.Config

	// InMemory keeps data in memory where the backend supports it and
	// skips the data directory lock.
	InMemory bool

	// Files overrides host file access for the file-backed backends.
	Files storage.Files

	Format    output.Format
	ColorMode output.ColorMode
	Writer    io.Writer
	Debug     bool
}

// DefaultOptions returns default runtime options.
func DefaultOptions() Options {
	return Options{
		Config:    config.Default(),
		Format:    output.FormatCLI,
		ColorMode: output.ColorAuto,
		Writer:    os.Stdout,
	}
}

// New opens the configured backend behind a metrics decorator, initializes
// it and wires the store facade. On disk the plugin directory is locked
// for the lifetime of the context.
func New(ctx context.Context, opts Options) (*Context, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.NewUserError(err.Error(), "Check --backend and the values in your config file.")
	}

	scfg := cfg.StorageOptions()
	scfg.InMemory = opts.InMemory
	if opts.Files != nil {
		scfg.Files = opts.Files
	}

	var lock *storage.FileLock
	if !opts.InMemory {
		lock = storage.NewFileLock(scfg.PluginDir())
		if err := lock.Acquire(); err != nil {
			return nil, errors.FromStorage(err)
		}
	}
	release := func() {
		if lock != nil {
			_ = lock.Release()
		}
	}

	backend, err := storage.New(cfg.Storage.Backend, scfg)
	if err != nil {
		release()
		return nil, errors.FromStorage(err)
	}

	m := metrics.New()
	db := repo.Open(metrics.Instrument(backend, m))
	if err := db.Init(ctx); err != nil {
		_ = db.Close()
		release()
		return nil, errors.FromStorage(err)
	}

	formatter := output.NewFormatter()
	formatter.Format = opts.Format
	formatter.ColorMode = opts.ColorMode
	if opts.Writer != nil {
		formatter.Writer = opts.Writer
	}

	logging.DebugContext(ctx, "runtime ready",
		logging.KeyBackend, backend.Name(),
		"dir", scfg.PluginDir(),
		"in_memory", opts.InMemory)

	return &Context{
		Config:    cfg,
		DB:        db,
		Metrics:   m,
		Formatter: formatter,
		Debug:     opts.Debug,
		lock:      lock,
	}, nil
}

// Close closes the store, flushing pending writes, and releases the data
// directory lock.
func (c *Context) Close() error {
	var err error
	if c.DB != nil {
		err = c.DB.Close()
	}
	if c.lock != nil {
		if lerr := c.lock.Release(); lerr != nil && err == nil {
			err = lerr
		}
		c.lock = nil
	}
	return err
}

// CLIFormatter returns a CLI formatter.
func (c *Context) CLIFormatter() *output.CLIFormatter {
	return output.NewCLIFormatter(c.Formatter)
}

// JSONFormatter returns a JSON formatter.
func (c *Context) JSONFormatter() *output.JSONFormatter {
	return output.NewJSONFormatter(c.Formatter)
}

// IsJSON returns true if output format is JSON.
func (c *Context) IsJSON() bool {
	return c.Formatter.Format == output.FormatJSON
}

// PageSize is the configured default page size for list commands.
func (c *Context) PageSize() int {
	return c.Config.Query.PageSize
}

// Fail converts err into the CLI taxonomy and counts it in the metrics.
// The returned error is what the command should return.
func (c *Context) Fail(err error) error {
	if err == nil {
		return nil
	}
	err = errors.FromStorage(err)
	c.Metrics.RecordError(errors.Classify(err).String(), err)
	return err
}

// Debugf prints debug output if debug mode is enabled.
func (c *Context) Debugf(format string, args ...any) {
	if c.Debug {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}
