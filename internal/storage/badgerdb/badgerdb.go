// Package badgerdb is the indexed store backend. Records live in a Badger
// key-value database next to one key per secondary index entry, so
// equality and range lookups are ordered prefix scans.
package badgerdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/manav03panchal/taskmap/internal/logging"
	"github.com/manav03panchal/taskmap/internal/model"
	"github.com/manav03panchal/taskmap/internal/storage"
)

// Name is the registry name of this backend.
const Name = "badger"

// Key layout:
//
//	meta/version                          stored schema version
//	meta/store/<store>                    store descriptor (JSON StoreConfig)
//	d/<store>/<id>                        record JSON
//	i/<store>/<index>/<encoded>\x00<id>   index entry, empty value
const (
	metaVersionKey  = "meta/version"
	metaStorePrefix = "meta/store/"
	dataPrefix      = "d/"
	indexPrefix     = "i/"
	indexSep        = "\x00"
)

var emptyValue = []byte{}

func init() {
	storage.Register(Name, func(cfg storage.Config) (storage.Backend, error) {
		return New(cfg.Schema, Options{
			Path:     filepath.Join(cfg.PluginDir(), "badger"),
			InMemory: cfg.InMemory,
		}), nil
	})
}

// Options configures the database connection.
type Options struct {
	// Path is the database directory path. Empty string uses in-memory mode.
	Path string
	// InMemory forces in-memory mode regardless of Path.
	InMemory bool
}

// Backend implements storage.Backend on Badger.
type Backend struct {
	schema model.Schema
	opts   Options

	once storage.InitOnce

	// mu guards db against Close while an operation is using it.
	mu     sync.RWMutex
	db     *badger.DB
	closed atomic.Bool

	upgrades atomic.Int32
}

// New returns an unopened backend for schema. The database is opened by
// Init or by the first operation.
func New(schema model.Schema, opts Options) *Backend {
	return &Backend{schema: schema, opts: opts}
}

// Name implements storage.Backend.
func (b *Backend) Name() string { return Name }

// Schema implements storage.Backend.
func (b *Backend) Schema() model.Schema { return b.schema }

// Init opens the database and runs the schema upgrade when the stored
// version is older than the declared one.
func (b *Backend) Init(ctx context.Context) error {
	if b.closed.Load() {
		return storage.ErrClosed
	}
	if err := storage.CheckContext(ctx); err != nil {
		return err
	}
	return b.once.Do(func() error {
		db, err := open(b.opts)
		if err != nil {
			logging.Error("open badger", logging.KeyPath, b.opts.Path, logging.KeyError, err)
			return storage.Unavailable(Name, err)
		}
		if err := b.upgrade(db); err != nil {
			_ = db.Close()
			logging.Error("upgrade badger schema", logging.KeyError, err)
			return storage.Unavailable(Name, err)
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.closed.Load() {
			_ = db.Close()
			return storage.ErrClosed
		}
		b.db = db
		logging.DebugLog("badger ready",
			logging.KeyBackend, Name,
			logging.KeyPath, b.location())
		return nil
	})
}

// open opens or creates a database following opts.
func open(opts Options) (*badger.DB, error) {
	var badgerOpts badger.Options

	if opts.InMemory || opts.Path == "" {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(opts.Path, 0o755); err != nil {
			return nil, err
		}
		badgerOpts = badger.DefaultOptions(opts.Path)
	}

	// Reduce logging noise
	badgerOpts = badgerOpts.WithLoggingLevel(badger.ERROR)

	return badger.Open(badgerOpts)
}

// upgrade brings the stored schema up to b.schema.Version. Stores that
// already have a descriptor are left alone except for indexes declared
// since, which are built from the existing records.
func (b *Backend) upgrade(db *badger.DB) error {
	stored, err := storedVersion(db)
	if err != nil {
		return err
	}
	if stored > b.schema.Version {
		return fmt.Errorf("stored schema version %d is newer than %d", stored, b.schema.Version)
	}
	if stored == b.schema.Version {
		return nil
	}

	b.upgrades.Add(1)
	return db.Update(func(txn *badger.Txn) error {
		for _, cfg := range b.schema.Stores {
			existing, found, err := storeDescriptor(txn, cfg.Name)
			if err != nil {
				return err
			}
			if found {
				for _, idx := range cfg.Indexes {
					if _, ok := existing.Index(idx.Name); ok {
						continue
					}
					if err := backfillIndex(txn, cfg.Name, idx); err != nil {
						return err
					}
				}
			}
			data, err := json.Marshal(cfg)
			if err != nil {
				return err
			}
			if err := txn.Set([]byte(metaStorePrefix+cfg.Name), data); err != nil {
				return err
			}
			logging.DebugLog("store declared",
				logging.KeyBackend, Name,
				logging.KeyStore, cfg.Name,
				"existing", found)
		}
		return txn.Set([]byte(metaVersionKey), []byte(strconv.Itoa(b.schema.Version)))
	})
}

func storedVersion(db *badger.DB) (int, error) {
	var version int
	err := db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(metaVersionKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			v, err := strconv.Atoi(string(val))
			if err != nil {
				return fmt.Errorf("corrupt schema version %q: %w", val, err)
			}
			version = v
			return nil
		})
	})
	return version, err
}

func storeDescriptor(txn *badger.Txn, store string) (model.StoreConfig, bool, error) {
	var cfg model.StoreConfig
	item, err := txn.Get([]byte(metaStorePrefix + store))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return cfg, false, nil
	}
	if err != nil {
		return cfg, false, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &cfg)
	})
	return cfg, err == nil, err
}

func backfillIndex(txn *badger.Txn, store string, idx model.IndexConfig) error {
	records, keys, err := scanRecords(txn, store)
	if err != nil {
		return err
	}
	for i, rec := range records {
		if enc, ok := storage.RecordIndexKey(idx, rec); ok {
			if err := txn.Set(indexKey(store, idx.Name, enc, keys[i]), emptyValue); err != nil {
				return err
			}
		}
	}
	return nil
}

func dataStorePrefix(store string) string {
	return dataPrefix + store + "/"
}

func dataKey(store, id string) []byte {
	return []byte(dataStorePrefix(store) + id)
}

func indexStorePrefix(store string) string {
	return indexPrefix + store + "/"
}

func indexNamePrefix(store, index string) string {
	return indexStorePrefix(store) + index + "/"
}

func indexKey(store, index, enc, id string) []byte {
	return []byte(indexNamePrefix(store, index) + enc + indexSep + id)
}

// splitIndexKey returns the encoded value and id of an index key with the
// index prefix already removed.
func splitIndexKey(rest string) (enc, id string, ok bool) {
	i := strings.Index(rest, indexSep)
	if i < 0 {
		return "", "", false
	}
	return rest[:i], rest[i+1:], true
}

// ready checks the context, initializes lazily and returns the open
// database with the read lock held. Callers must call release.
func (b *Backend) ready(ctx context.Context) (*badger.DB, error) {
	if err := storage.CheckContext(ctx); err != nil {
		return nil, err
	}
	if err := b.Init(ctx); err != nil {
		return nil, err
	}
	b.mu.RLock()
	if b.closed.Load() || b.db == nil {
		b.mu.RUnlock()
		return nil, storage.ErrClosed
	}
	return b.db, nil
}

func (b *Backend) release() {
	b.mu.RUnlock()
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
	db, err := b.ready(ctx)
	if err != nil {
		return nil, err
	}
	defer b.release()

	err = update(db, func(txn *badger.Txn) error {
		_, err := txn.Get(dataKey(store, key))
		if err == nil {
			return fmt.Errorf("%w: %s/%s", storage.ErrDuplicateKey, store, key)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return putRecord(txn, cfg, key, out)
	})
	if err != nil {
		return nil, err
	}
	logging.DebugContext(ctx, "record created",
		logging.KeyBackend, Name,
		logging.KeyStore, store,
		logging.KeyID, key)
	return out.Clone(), nil
}

// maxConflictRetries bounds how often a transaction that lost a write
// conflict is rerun.
const maxConflictRetries = 64

// update runs fn in a read-write transaction. When a concurrent transaction
// committed a conflicting write first, fn runs again against the new state,
// so a losing Create sees the winner's record and reports a duplicate.
func update(db *badger.DB, fn func(txn *badger.Txn) error) error {
	var err error
	for range maxConflictRetries {
		if err = db.Update(fn); !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// putRecord writes rec and its index entries.
func putRecord(txn *badger.Txn, cfg model.StoreConfig, key string, rec model.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := txn.Set(dataKey(cfg.Name, key), data); err != nil {
		return err
	}
	for _, idx := range cfg.Indexes {
		if enc, ok := storage.RecordIndexKey(idx, rec); ok {
			if err := txn.Set(indexKey(cfg.Name, idx.Name, enc, key), emptyValue); err != nil {
				return err
			}
		}
	}
	return nil
}

// dropIndexes removes the index entries of rec.
func dropIndexes(txn *badger.Txn, cfg model.StoreConfig, key string, rec model.Record) error {
	for _, idx := range cfg.Indexes {
		if enc, ok := storage.RecordIndexKey(idx, rec); ok {
			if err := txn.Delete(indexKey(cfg.Name, idx.Name, enc, key)); err != nil {
				return err
			}
		}
	}
	return nil
}

// getRecord reads one record. A missing record is returned as nil.
func getRecord(txn *badger.Txn, store, id string) (model.Record, error) {
	item, err := txn.Get(dataKey(store, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec model.Record
	err = item.Value(func(val []byte) error {
		var err error
		rec, err = model.DecodeRecord(val)
		return err
	})
	return rec, err
}

// scanRecords returns every record of store with its key.
func scanRecords(txn *badger.Txn, store string) ([]model.Record, []string, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchSize = 100
	it := txn.NewIterator(opts)
	defer it.Close()

	records := []model.Record{}
	var keys []string
	prefix := []byte(dataStorePrefix(store))
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		err := item.Value(func(val []byte) error {
			rec, err := model.DecodeRecord(val)
			if err != nil {
				return err
			}
			records = append(records, rec)
			keys = append(keys, string(item.Key()[len(prefix):]))
			return nil
		})
		if err != nil {
			return nil, nil, err
		}
	}
	return records, keys, nil
}

// listKeys returns every key under prefix.
func listKeys(txn *badger.Txn, prefix string) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	p := []byte(prefix)
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys
}

// Get implements storage.Backend.
func (b *Backend) Get(ctx context.Context, store, id string) (model.Record, error) {
	if _, err := storage.LookupStore(b.schema, store); err != nil {
		return nil, err
	}
	db, err := b.ready(ctx)
	if err != nil {
		return nil, err
	}
	defer b.release()

	var rec model.Record
	err = db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, store, id)
		return err
	})
	return rec, err
}

// GetAll implements storage.Backend.
func (b *Backend) GetAll(ctx context.Context, store string) ([]model.Record, error) {
	if _, err := storage.LookupStore(b.schema, store); err != nil {
		return nil, err
	}
	db, err := b.ready(ctx)
	if err != nil {
		return nil, err
	}
	defer b.release()

	var records []model.Record
	err = db.View(func(txn *badger.Txn) error {
		var err error
		records, _, err = scanRecords(txn, store)
		return err
	})
	return records, err
}

// Update implements storage.Backend.
func (b *Backend) Update(ctx context.Context, store, id string, patch model.Record) (bool, error) {
	cfg, err := storage.LookupStore(b.schema, store)
	if err != nil {
		return false, err
	}
	db, err := b.ready(ctx)
	if err != nil {
		return false, err
	}
	defer b.release()

	var found bool
	err = update(db, func(txn *badger.Txn) error {
		existing, err := getRecord(txn, store, id)
		if err != nil || existing == nil {
			return err
		}
		found = true
		merged, err := storage.PrepareUpdate(cfg, existing, id, patch)
		if err != nil {
			return err
		}
		if err := dropIndexes(txn, cfg, id, existing); err != nil {
			return err
		}
		return putRecord(txn, cfg, id, merged)
	})
	if err != nil {
		return false, err
	}
	if found {
		logging.DebugContext(ctx, "record updated",
			logging.KeyBackend, Name,
			logging.KeyStore, store,
			logging.KeyID, id)
	}
	return found, nil
}

// Delete implements storage.Backend.
func (b *Backend) Delete(ctx context.Context, store, id string) (bool, error) {
	cfg, err := storage.LookupStore(b.schema, store)
	if err != nil {
		return false, err
	}
	db, err := b.ready(ctx)
	if err != nil {
		return false, err
	}
	defer b.release()

	var found bool
	err = update(db, func(txn *badger.Txn) error {
		var err error
		found, err = deleteRecord(txn, cfg, id)
		return err
	})
	if err != nil {
		return false, err
	}
	if found {
		logging.DebugContext(ctx, "record deleted",
			logging.KeyBackend, Name,
			logging.KeyStore, store,
			logging.KeyID, id)
	}
	return found, nil
}

func deleteRecord(txn *badger.Txn, cfg model.StoreConfig, id string) (bool, error) {
	existing, err := getRecord(txn, cfg.Name, id)
	if err != nil || existing == nil {
		return false, err
	}
	if err := dropIndexes(txn, cfg, id, existing); err != nil {
		return false, err
	}
	return true, txn.Delete(dataKey(cfg.Name, id))
}

// DeleteMany implements storage.Backend. Each id is deleted in its own
// transaction.
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
	db, err := b.ready(ctx)
	if err != nil {
		return nil, err
	}
	defer b.release()

	records := []model.Record{}
	err = db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(indexNamePrefix(store, index) + enc + indexSep)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id := string(it.Item().Key()[len(prefix):])
			rec, err := getRecord(txn, store, id)
			if err != nil {
				return err
			}
			if rec != nil {
				records = append(records, rec)
			}
		}
		return nil
	})
	return records, err
}

// QueryByIndexRange implements storage.Backend.
func (b *Backend) QueryByIndexRange(ctx context.Context, store, index string, r storage.KeyRange) ([]model.Record, error) {
	if _, _, err := storage.LookupIndex(b.schema, store, index); err != nil {
		return nil, err
	}
	rng, err := r.Encode()
	if err != nil {
		return nil, err
	}
	db, err := b.ready(ctx)
	if err != nil {
		return nil, err
	}
	defer b.release()

	records := []model.Record{}
	err = db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := indexNamePrefix(store, index)
		start := []byte(prefix)
		if rng.HasLower {
			start = []byte(prefix + rng.Lower)
		}
		for it.Seek(start); it.ValidForPrefix([]byte(prefix)); it.Next() {
			enc, id, ok := splitIndexKey(string(it.Item().Key()[len(prefix):]))
			if !ok {
				continue
			}
			if rng.AboveUpper(enc) {
				break
			}
			if !rng.Contains(enc) {
				continue
			}
			rec, err := getRecord(txn, store, id)
			if err != nil {
				return err
			}
			if rec != nil {
				records = append(records, rec)
			}
		}
		return nil
	})
	return records, err
}

// Count implements storage.Backend.
func (b *Backend) Count(ctx context.Context, store string) (int, error) {
	if _, err := storage.LookupStore(b.schema, store); err != nil {
		return 0, err
	}
	db, err := b.ready(ctx)
	if err != nil {
		return 0, err
	}
	defer b.release()

	var n int
	err = db.View(func(txn *badger.Txn) error {
		n = len(listKeys(txn, dataStorePrefix(store)))
		return nil
	})
	return n, err
}

// Clear implements storage.Backend.
func (b *Backend) Clear(ctx context.Context, store string) error {
	if _, err := storage.LookupStore(b.schema, store); err != nil {
		return err
	}
	db, err := b.ready(ctx)
	if err != nil {
		return err
	}
	defer b.release()

	return clearStore(db, store)
}

// clearStore removes every record and index entry of store. A write
// batch keeps large stores under the transaction size limit.
func clearStore(db *badger.DB, store string) error {
	var keys [][]byte
	err := db.View(func(txn *badger.Txn) error {
		keys = append(listKeys(txn, dataStorePrefix(store)), listKeys(txn, indexStorePrefix(store))...)
		return nil
	})
	if err != nil {
		return err
	}
	wb := db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// ExportData implements storage.Backend.
func (b *Backend) ExportData(ctx context.Context, store string) (string, error) {
	records, err := b.GetAll(ctx, store)
	if err != nil {
		return "", err
	}
	return storage.EncodeExport(records)
}

// ImportData implements storage.Backend.
func (b *Backend) ImportData(ctx context.Context, store, data string) (storage.BatchResult, error) {
	cfg, err := storage.LookupStore(b.schema, store)
	if err != nil {
		return storage.BatchResult{}, err
	}
	plan, ok := storage.ParseImport(cfg, data)
	if !ok {
		return plan.Result, nil
	}
	db, err := b.ready(ctx)
	if err != nil {
		return storage.BatchResult{}, err
	}
	defer b.release()

	if err := clearStore(db, store); err != nil {
		return storage.BatchResult{}, err
	}

	res := plan.Result
	wb := db.NewWriteBatch()
	defer wb.Cancel()
	for i, rec := range plan.Records {
		if err := writeBatchRecord(wb, cfg, plan.Keys[i], rec); err != nil {
			res.Fail(plan.Keys[i])
			continue
		}
		res.Succeed()
	}
	if err := wb.Flush(); err != nil {
		return storage.BatchResult{}, err
	}
	logging.DebugContext(ctx, "store imported",
		logging.KeyBackend, Name,
		logging.KeyStore, store,
		logging.KeyCount, res.Succeeded)
	return res, nil
}

func writeBatchRecord(wb *badger.WriteBatch, cfg model.StoreConfig, key string, rec model.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := wb.Set(dataKey(cfg.Name, key), data); err != nil {
		return err
	}
	for _, idx := range cfg.Indexes {
		if enc, ok := storage.RecordIndexKey(idx, rec); ok {
			if err := wb.Set(indexKey(cfg.Name, idx.Name, enc, key), emptyValue); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Backend) location() string {
	if b.opts.InMemory || b.opts.Path == "" {
		return ":memory:"
	}
	return b.opts.Path
}

// Status implements storage.Backend.
func (b *Backend) Status() storage.Status {
	st := storage.Status{
		Backend:     Name,
		Initialized: b.once.Done() && b.once.Err() == nil,
		Closed:      b.closed.Load(),
		Location:    b.location(),
	}
	if err := b.once.Err(); err != nil {
		st.Error = err.Error()
	}
	return st
}

// Close implements storage.Backend. Closing twice is a no-op.
func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}
