// Package sqlite is the embedded relational backend. The working copy of
// the database lives in an in-memory SQLite engine; mutations schedule a
// debounced snapshot that serializes the whole engine to a local cache
// file and to the external data file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/manav03panchal/taskmap/internal/logging"
	"github.com/manav03panchal/taskmap/internal/model"
	"github.com/manav03panchal/taskmap/internal/storage"
)

// Name is the registry name of this backend.
const Name = "sqlite"

// FileName is the external snapshot file inside the plugin directory.
const FileName = "taskmap.sqlite"

// Reserved columns. Index columns are named after their index.
const (
	keyColumn  = "_key"
	dataColumn = "_data"
)

func init() {
	storage.Register(Name, func(cfg storage.Config) (storage.Backend, error) {
		opts := Options{
			Files: cfg.Files,
			Delay: cfg.SnapshotDelay,
		}
		if !cfg.InMemory {
			opts.ExternalPath = filepath.Join(cfg.PluginDir(), FileName)
			opts.CachePath = CachePath(cfg.CacheDir, cfg.Schema)
		}
		return New(cfg.Schema, opts), nil
	})
}

// Options configures persistence. With both paths empty the database is
// never snapshotted.
type Options struct {
	// ExternalPath is the data file written on every snapshot.
	ExternalPath string
	// CachePath is the local scratch copy, preferred on restore.
	CachePath string
	Files     storage.Files
	// Delay is the snapshot debounce window.
	Delay time.Duration
}

// CachePath returns the local snapshot path for schema under dir.
func CachePath(dir string, schema model.Schema) string {
	return filepath.Join(dir, fmt.Sprintf("%s_v%d.sqlite", schema.Name, schema.Version))
}

// Backend implements storage.Backend on an in-memory SQLite database.
type Backend struct {
	schema model.Schema
	opts   Options

	once storage.InitOnce

	// mu makes check-then-write sequences atomic and guards db against
	// Close.
	mu     sync.RWMutex
	db     *sql.DB
	closed atomic.Bool

	flusher   *storage.Debouncer
	snapshots atomic.Int32
}

// New returns an unopened backend.
func New(schema model.Schema, opts Options) *Backend {
	if opts.Files == nil {
		opts.Files = storage.OSFiles()
	}
	if opts.Delay <= 0 {
		opts.Delay = storage.DefaultSnapshotDelay
	}
	b := &Backend{schema: schema, opts: opts}
	b.flusher = storage.NewDebouncer(opts.Delay, b.snapshot, func(err error) {
		logging.Error("sqlite snapshot failed",
			logging.KeyBackend, Name,
			logging.KeyPath, opts.ExternalPath,
			logging.KeyError, err)
	})
	return b
}

// Name implements storage.Backend.
func (b *Backend) Name() string { return Name }

// Schema implements storage.Backend.
func (b *Backend) Schema() model.Schema { return b.schema }

func (b *Backend) persistent() bool {
	return b.opts.ExternalPath != "" || b.opts.CachePath != ""
}

// Init opens the engine, restores the latest snapshot and creates the
// tables of every declared store.
func (b *Backend) Init(ctx context.Context) error {
	if b.closed.Load() {
		return storage.ErrClosed
	}
	if err := storage.CheckContext(ctx); err != nil {
		return err
	}
	// One caller's cancellation must not fail the shared initialization.
	ctx = context.WithoutCancel(ctx)
	return b.once.Do(func() error {
		if err := validateSchema(b.schema); err != nil {
			return storage.Unavailable(Name, err)
		}
		db, err := sql.Open("sqlite", ":memory:")
		if err != nil {
			return storage.Unavailable(Name, fmt.Errorf("open sqlite: %w", err))
		}
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)

		if err := b.createTables(ctx, db); err != nil {
			_ = db.Close()
			return storage.Unavailable(Name, err)
		}
		if err := b.restore(ctx, db); err != nil {
			_ = db.Close()
			logging.Error("restore sqlite snapshot", logging.KeyError, err)
			return storage.Unavailable(Name, err)
		}
		if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", b.schema.Version)); err != nil {
			_ = db.Close()
			return storage.Unavailable(Name, err)
		}

		b.mu.Lock()
		defer b.mu.Unlock()
		if b.closed.Load() {
			_ = db.Close()
			return storage.ErrClosed
		}
		b.db = db
		logging.DebugLog("sqlite ready",
			logging.KeyBackend, Name,
			logging.KeyPath, b.location())
		return nil
	})
}

func validateSchema(schema model.Schema) error {
	for _, cfg := range schema.Stores {
		for _, idx := range cfg.Indexes {
			if idx.Name == keyColumn || idx.Name == dataColumn {
				return fmt.Errorf("store %q: index name %q is reserved", cfg.Name, idx.Name)
			}
		}
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (b *Backend) createTables(ctx context.Context, db *sql.DB) error {
	for _, cfg := range b.schema.Stores {
		cols := []string{quoteIdent(keyColumn) + " TEXT PRIMARY KEY"}
		for _, idx := range cfg.Indexes {
			cols = append(cols, quoteIdent(idx.Name)+" TEXT")
		}
		cols = append(cols, quoteIdent(dataColumn)+" TEXT NOT NULL")

		stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(cfg.Name), strings.Join(cols, ", "))
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create table %s: %w", cfg.Name, err)
		}
		for _, idx := range cfg.Indexes {
			stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
				quoteIdent(cfg.Name+"_"+idx.Name), quoteIdent(cfg.Name), quoteIdent(idx.Name))
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("create index %s.%s: %w", cfg.Name, idx.Name, err)
			}
		}
	}
	return nil
}

// ready checks the context, initializes lazily and returns the engine.
// With write set the exclusive lock is held, otherwise the shared one;
// callers release it with done.
func (b *Backend) ready(ctx context.Context, write bool) (db *sql.DB, done func(), err error) {
	if err := storage.CheckContext(ctx); err != nil {
		return nil, nil, err
	}
	if err := b.Init(ctx); err != nil {
		return nil, nil, err
	}
	lock, unlock := b.mu.RLock, b.mu.RUnlock
	if write {
		lock, unlock = b.mu.Lock, b.mu.Unlock
	}
	lock()
	if b.closed.Load() || b.db == nil {
		unlock()
		return nil, nil, storage.ErrClosed
	}
	return b.db, unlock, nil
}

// mutated schedules a snapshot.
func (b *Backend) mutated() {
	if b.persistent() {
		b.flusher.Trigger()
	}
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// putRow writes rec with its index columns. With replace set an existing
// row is overwritten.
func putRow(ctx context.Context, ex execer, cfg model.StoreConfig, key string, rec model.Record, replace bool) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	cols := []string{quoteIdent(keyColumn)}
	args := []any{key}
	for _, idx := range cfg.Indexes {
		cols = append(cols, quoteIdent(idx.Name))
		if enc, ok := storage.RecordIndexKey(idx, rec); ok {
			args = append(args, enc)
		} else {
			args = append(args, nil)
		}
	}
	cols = append(cols, quoteIdent(dataColumn))
	args = append(args, string(data))

	verb := "INSERT"
	if replace {
		verb = "INSERT OR REPLACE"
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt := fmt.Sprintf("%s INTO %s (%s) VALUES (%s)", verb, quoteIdent(cfg.Name), strings.Join(cols, ", "), placeholders)
	_, err = ex.ExecContext(ctx, stmt, args...)
	return err
}

func getRow(ctx context.Context, db *sql.DB, store, id string) (model.Record, error) {
	var data string
	err := db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", quoteIdent(dataColumn), quoteIdent(store), quoteIdent(keyColumn)),
		id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", store, id, err)
	}
	return model.DecodeRecord([]byte(data))
}

func queryRows(ctx context.Context, db *sql.DB, query string, args ...any) ([]model.Record, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []model.Record{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		rec, err := model.DecodeRecord([]byte(data))
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func selectData(store string) string {
	return fmt.Sprintf("SELECT %s FROM %s", quoteIdent(dataColumn), quoteIdent(store))
}

// Create implements storage.Backend.
func (b *Backend) Create(ctx context.Context, store string, rec model.Record) (model.Record, error) {
	cfg, err := storage.LookupStore(b.schema, store)
	if err != nil {
		return nil, err
	}
	out, key, err := storage.PrepareCreate(cfg, rec)
	if err != nil {
		return nil, err
	}
	db, done, err := b.ready(ctx, true)
	if err != nil {
		return nil, err
	}
	defer done()

	existing, err := getRow(ctx, db, store, key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s/%s", storage.ErrDuplicateKey, store, key)
	}
	if err := putRow(ctx, db, cfg, key, out, false); err != nil {
		return nil, fmt.Errorf("insert %s/%s: %w", store, key, err)
	}
	b.mutated()
	logging.DebugContext(ctx, "record created",
		logging.KeyBackend, Name,
		logging.KeyStore, store,
		logging.KeyID, key)
	return out.Clone(), nil
}

// Get implements storage.Backend.
func (b *Backend) Get(ctx context.Context, store, id string) (model.Record, error) {
	if _, err := storage.LookupStore(b.schema, store); err != nil {
		return nil, err
	}
	db, done, err := b.ready(ctx, false)
	if err != nil {
		return nil, err
	}
	defer done()

	return getRow(ctx, db, store, id)
}

// GetAll implements storage.Backend.
func (b *Backend) GetAll(ctx context.Context, store string) ([]model.Record, error) {
	if _, err := storage.LookupStore(b.schema, store); err != nil {
		return nil, err
	}
	db, done, err := b.ready(ctx, false)
	if err != nil {
		return nil, err
	}
	defer done()

	return queryRows(ctx, db, selectData(store)+" ORDER BY rowid")
}

// Update implements storage.Backend.
func (b *Backend) Update(ctx context.Context, store, id string, patch model.Record) (bool, error) {
	cfg, err := storage.LookupStore(b.schema, store)
	if err != nil {
		return false, err
	}
	db, done, err := b.ready(ctx, true)
	if err != nil {
		return false, err
	}
	defer done()

	existing, err := getRow(ctx, db, store, id)
	if err != nil || existing == nil {
		return false, err
	}
	merged, err := storage.PrepareUpdate(cfg, existing, id, patch)
	if err != nil {
		return false, err
	}
	if err := putRow(ctx, db, cfg, id, merged, true); err != nil {
		return false, fmt.Errorf("update %s/%s: %w", store, id, err)
	}
	b.mutated()
	logging.DebugContext(ctx, "record updated",
		logging.KeyBackend, Name,
		logging.KeyStore, store,
		logging.KeyID, id)
	return true, nil
}

// Delete implements storage.Backend.
func (b *Backend) Delete(ctx context.Context, store, id string) (bool, error) {
	if _, err := storage.LookupStore(b.schema, store); err != nil {
		return false, err
	}
	db, done, err := b.ready(ctx, true)
	if err != nil {
		return false, err
	}
	defer done()

	res, err := db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE %s = ?", quoteIdent(store), quoteIdent(keyColumn)), id)
	if err != nil {
		return false, fmt.Errorf("delete %s/%s: %w", store, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	b.mutated()
	logging.DebugContext(ctx, "record deleted",
		logging.KeyBackend, Name,
		logging.KeyStore, store,
		logging.KeyID, id)
	return true, nil
}

// DeleteMany implements storage.Backend.
func (b *Backend) DeleteMany(ctx context.Context, store string, ids []string) (storage.BatchResult, error) {
	return storage.DeleteEach(ctx, Name, store, ids, func(ctx context.Context, id string) (bool, error) {
		return b.Delete(ctx, store, id)
	})
}

// QueryByIndex implements storage.Backend.
func (b *Backend) QueryByIndex(ctx context.Context, store, index string, value any) ([]model.Record, error) {
	if _, _, err := storage.LookupIndex(b.schema, store, index); err != nil {
		return nil, err
	}
	enc, ok := storage.EncodeIndexKey(value)
	if !ok {
		return []model.Record{}, nil
	}
	db, done, err := b.ready(ctx, false)
	if err != nil {
		return nil, err
	}
	defer done()

	return queryRows(ctx, db, selectData(store)+fmt.Sprintf(" WHERE %s = ? ORDER BY rowid", quoteIdent(index)), enc)
}

// QueryByIndexRange implements storage.Backend. Bounds become >, >=, <
// and <= predicates on the encoded index column.
func (b *Backend) QueryByIndexRange(ctx context.Context, store, index string, r storage.KeyRange) ([]model.Record, error) {
	if _, _, err := storage.LookupIndex(b.schema, store, index); err != nil {
		return nil, err
	}
	rng, err := r.Encode()
	if err != nil {
		return nil, err
	}

	col := quoteIdent(index)
	where := []string{col + " IS NOT NULL"}
	var args []any
	if rng.HasLower {
		op := ">="
		if rng.LowerOpen {
			op = ">"
		}
		where = append(where, fmt.Sprintf("%s %s ?", col, op))
		args = append(args, rng.Lower)
	}
	if rng.HasUpper {
		op := "<="
		if rng.UpperOpen {
			op = "<"
		}
		where = append(where, fmt.Sprintf("%s %s ?", col, op))
		args = append(args, rng.Upper)
	}

	db, done, err := b.ready(ctx, false)
	if err != nil {
		return nil, err
	}
	defer done()

	query := selectData(store) + " WHERE " + strings.Join(where, " AND ") + " ORDER BY " + col + ", rowid"
	return queryRows(ctx, db, query, args...)
}

// Count implements storage.Backend.
func (b *Backend) Count(ctx context.Context, store string) (int, error) {
	if _, err := storage.LookupStore(b.schema, store); err != nil {
		return 0, err
	}
	db, done, err := b.ready(ctx, false)
	if err != nil {
		return 0, err
	}
	defer done()

	var n int
	err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(store)).Scan(&n)
	return n, err
}

// Clear implements storage.Backend.
func (b *Backend) Clear(ctx context.Context, store string) error {
	if _, err := storage.LookupStore(b.schema, store); err != nil {
		return err
	}
	db, done, err := b.ready(ctx, true)
	if err != nil {
		return err
	}
	defer done()

	if _, err := db.ExecContext(ctx, "DELETE FROM "+quoteIdent(store)); err != nil {
		return fmt.Errorf("clear %s: %w", store, err)
	}
	b.mutated()
	return nil
}

// ExportData implements storage.Backend.
func (b *Backend) ExportData(ctx context.Context, store string) (string, error) {
	records, err := b.GetAll(ctx, store)
	if err != nil {
		return "", err
	}
	return storage.EncodeExport(records)
}

// ImportData implements storage.Backend. The store is replaced inside one
// transaction.
func (b *Backend) ImportData(ctx context.Context, store, data string) (storage.BatchResult, error) {
	cfg, err := storage.LookupStore(b.schema, store)
	if err != nil {
		return storage.BatchResult{}, err
	}
	plan, ok := storage.ParseImport(cfg, data)
	if !ok {
		return plan.Result, nil
	}
	db, done, err := b.ready(ctx, true)
	if err != nil {
		return storage.BatchResult{}, err
	}
	defer done()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return storage.BatchResult{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+quoteIdent(store)); err != nil {
		return storage.BatchResult{}, fmt.Errorf("clear %s: %w", store, err)
	}
	res := plan.Result
	for i, rec := range plan.Records {
		if err := putRow(ctx, tx, cfg, plan.Keys[i], rec, true); err != nil {
			logging.WarnContext(ctx, "import row rejected",
				logging.KeyStore, store,
				logging.KeyID, plan.Keys[i],
				logging.KeyError, err)
			res.Fail(plan.Keys[i])
			continue
		}
		res.Succeed()
	}
	if err := tx.Commit(); err != nil {
		return storage.BatchResult{}, fmt.Errorf("commit import %s: %w", store, err)
	}
	b.mutated()
	logging.DebugContext(ctx, "store imported",
		logging.KeyBackend, Name,
		logging.KeyStore, store,
		logging.KeyCount, res.Succeeded)
	return res, nil
}

// Flush writes a snapshot now if one is pending.
func (b *Backend) Flush() error {
	return b.flusher.Flush()
}

func (b *Backend) location() string {
	if b.opts.ExternalPath != "" {
		return b.opts.ExternalPath
	}
	return ":memory:"
}

// Status implements storage.Backend.
func (b *Backend) Status() storage.Status {
	st := storage.Status{
		Backend:     Name,
		Initialized: b.once.Done() && b.once.Err() == nil,
		Closed:      b.closed.Load(),
		Location:    b.location(),
		Pending:     b.flusher.Pending(),
	}
	if err := b.once.Err(); err != nil {
		st.Error = err.Error()
	}
	return st
}

// Close cancels the snapshot timer, writes a final snapshot and releases
// the engine. Writes already holding the lock finish and are included in
// the snapshot. Closing twice is a no-op.
func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	// Wait for in-flight writers; later ones see closed and fail.
	b.mu.Lock()
	b.mu.Unlock() //nolint:staticcheck // empty critical section is a barrier
	flushErr := b.flusher.Stop()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return flushErr
	}
	err := b.db.Close()
	b.db = nil
	return errors.Join(flushErr, err)
}
