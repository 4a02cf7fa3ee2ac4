package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/manav03panchal/taskmap/internal/logging"
	"github.com/manav03panchal/taskmap/internal/model"
	"github.com/manav03panchal/taskmap/internal/storage"
)

const snapshotSchema = "snap"

// snapshot serializes the engine and writes the bytes to the cache and the
// external file. It runs on the debouncer.
func (b *Backend) snapshot() error {
	b.mu.RLock()
	db := b.db
	if db == nil {
		b.mu.RUnlock()
		return nil
	}
	data, err := serialize(context.Background(), db)
	b.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("serialize: %w", err)
	}

	var errs []error
	for _, path := range []string{b.opts.CachePath, b.opts.ExternalPath} {
		if path == "" {
			continue
		}
		if err := b.opts.Files.WriteFile(path, data); err != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", path, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	b.snapshots.Add(1)
	logging.DebugLog("sqlite snapshot written",
		logging.KeyBackend, Name,
		logging.KeyPath, b.location(),
		"bytes", len(data))
	return nil
}

// serialize returns the whole database as an SQLite file image.
func serialize(ctx context.Context, db *sql.DB) ([]byte, error) {
	dir, cleanup, err := scratchDir()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	path := filepath.Join(dir, "snapshot.sqlite")
	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// restore loads the newest available snapshot into db: the local cache
// first, then the external file. A corrupt cache falls through to the
// external file; a corrupt external file is an error.
func (b *Backend) restore(ctx context.Context, db *sql.DB) error {
	sources := []string{b.opts.CachePath, b.opts.ExternalPath}
	for i, path := range sources {
		if path == "" {
			continue
		}
		data, err := b.opts.Files.ReadFile(path)
		if storage.IsNotExist(err) {
			continue
		}
		if err == nil {
			err = b.load(ctx, db, data)
		}
		if err == nil {
			logging.DebugLog("sqlite snapshot restored",
				logging.KeyBackend, Name,
				logging.KeyPath, path)
			return nil
		}
		if i == len(sources)-1 {
			return fmt.Errorf("restore %s: %w", path, err)
		}
		logging.Warn("ignoring unreadable sqlite cache",
			logging.KeyPath, path,
			logging.KeyError, err)
	}
	return nil
}

// load copies the records of a snapshot image into db. Index columns are
// recomputed, so images written under an older schema load cleanly.
func (b *Backend) load(ctx context.Context, db *sql.DB, data []byte) error {
	dir, cleanup, err := scratchDir()
	if err != nil {
		return err
	}
	defer cleanup()

	path := filepath.Join(dir, "restore.sqlite")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, "ATTACH DATABASE ? AS "+snapshotSchema, path); err != nil {
		return err
	}
	defer func() { _, _ = db.ExecContext(ctx, "DETACH DATABASE "+snapshotSchema) }()

	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA "+snapshotSchema+".user_version").Scan(&version); err != nil {
		return err
	}
	if version > b.schema.Version {
		return fmt.Errorf("snapshot schema version %d is newer than %d", version, b.schema.Version)
	}

	// Rows are read before the transaction starts: the pool has one
	// connection and the transaction holds it.
	loaded := make(map[string][]model.Record, len(b.schema.Stores))
	for _, cfg := range b.schema.Stores {
		var n int
		err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM "+snapshotSchema+".sqlite_master WHERE type = 'table' AND name = ?",
			cfg.Name).Scan(&n)
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		records, err := queryRows(ctx, db,
			fmt.Sprintf("SELECT %s FROM %s.%s ORDER BY rowid", quoteIdent(dataColumn), snapshotSchema, quoteIdent(cfg.Name)))
		if err != nil {
			return fmt.Errorf("read %s: %w", cfg.Name, err)
		}
		loaded[cfg.Name] = records
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, cfg := range b.schema.Stores {
		for _, rec := range loaded[cfg.Name] {
			key, err := storage.RecordKey(cfg, rec)
			if err != nil {
				logging.Warn("skipping snapshot row without key", logging.KeyStore, cfg.Name)
				continue
			}
			if err := putRow(ctx, tx, cfg, key, rec, true); err != nil {
				return fmt.Errorf("load %s/%s: %w", cfg.Name, key, err)
			}
		}
	}
	return tx.Commit()
}

// scratchDir creates a private temp directory removed by the returned func.
func scratchDir() (string, func(), error) {
	dir, err := os.MkdirTemp("", "taskmap-sqlite-*")
	if err != nil {
		return "", nil, err
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}
