// Package jsonfile is the flat document backend. The whole dataset is
// loaded into memory on first access and written back to one JSON file,
// in full, before every mutating call returns.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/manav03panchal/taskmap/internal/logging"
	"github.com/manav03panchal/taskmap/internal/model"
	"github.com/manav03panchal/taskmap/internal/storage"
)

// Name is the registry name of this backend.
const Name = "json"

// FileName is the data file inside the plugin directory.
const FileName = "taskmap.json"

const versionKey = "version"

func init() {
	storage.Register(Name, func(cfg storage.Config) (storage.Backend, error) {
		opts := Options{Files: cfg.Files}
		if !cfg.InMemory {
			opts.Path = filepath.Join(cfg.PluginDir(), FileName)
		}
		return New(cfg.Schema, opts), nil
	})
}

// Options configures the backing file. An empty Path keeps the dataset in
// memory only.
type Options struct {
	Path  string
	Files storage.Files
}

// collection is one store in memory, in insertion order. Stored records
// are never mutated in place, so a shallow copy is a consistent backup.
type collection struct {
	records []model.Record
	keys    []string
	pos     map[string]int
}

func newCollection() *collection {
	return &collection{pos: map[string]int{}}
}

func (c *collection) backup() *collection {
	pos := make(map[string]int, len(c.pos))
	for k, v := range c.pos {
		pos[k] = v
	}
	return &collection{
		records: append([]model.Record(nil), c.records...),
		keys:    append([]string(nil), c.keys...),
		pos:     pos,
	}
}

func (c *collection) get(id string) (model.Record, bool) {
	i, ok := c.pos[id]
	if !ok {
		return nil, false
	}
	return c.records[i], true
}

func (c *collection) put(id string, rec model.Record) {
	if i, ok := c.pos[id]; ok {
		c.records[i] = rec
		return
	}
	c.pos[id] = len(c.records)
	c.records = append(c.records, rec)
	c.keys = append(c.keys, id)
}

func (c *collection) remove(id string) bool {
	i, ok := c.pos[id]
	if !ok {
		return false
	}
	c.records = append(c.records[:i:i], c.records[i+1:]...)
	c.keys = append(c.keys[:i:i], c.keys[i+1:]...)
	delete(c.pos, id)
	for j := i; j < len(c.keys); j++ {
		c.pos[c.keys[j]] = j
	}
	return true
}

func (c *collection) reset() {
	c.records, c.keys = nil, nil
	c.pos = map[string]int{}
}

// Backend implements storage.Backend over an in-memory document.
type Backend struct {
	schema model.Schema
	opts   Options

	once storage.InitOnce

	mu     sync.RWMutex
	stores map[string]*collection
	// extra holds unknown top-level keys so they survive a rewrite.
	extra  map[string]json.RawMessage
	closed atomic.Bool

	loads  atomic.Int32
	writes atomic.Int32
}

// New returns an unloaded backend.
func New(schema model.Schema, opts Options) *Backend {
	if opts.Files == nil {
		opts.Files = storage.OSFiles()
	}
	return &Backend{schema: schema, opts: opts}
}

// Name implements storage.Backend.
func (b *Backend) Name() string { return Name }

// Schema implements storage.Backend.
func (b *Backend) Schema() model.Schema { return b.schema }

// Init implements storage.Backend by loading the file.
func (b *Backend) Init(ctx context.Context) error {
	return b.Load(ctx)
}

// Load hydrates the dataset from the file once. Concurrent callers wait
// for the same load.
func (b *Backend) Load(ctx context.Context) error {
	if b.closed.Load() {
		return storage.ErrClosed
	}
	if err := storage.CheckContext(ctx); err != nil {
		return err
	}
	return b.once.Do(func() error {
		b.loads.Add(1)
		stores, extra, err := b.read()
		if err != nil {
			logging.Error("load json document", logging.KeyPath, b.opts.Path, logging.KeyError, err)
			return storage.Unavailable(Name, err)
		}
		b.mu.Lock()
		b.stores, b.extra = stores, extra
		b.mu.Unlock()
		logging.DebugLog("json document loaded",
			logging.KeyBackend, Name,
			logging.KeyPath, b.location())
		return nil
	})
}

func (b *Backend) read() (map[string]*collection, map[string]json.RawMessage, error) {
	stores := make(map[string]*collection, len(b.schema.Stores))
	for _, cfg := range b.schema.Stores {
		stores[cfg.Name] = newCollection()
	}
	extra := map[string]json.RawMessage{}
	if b.opts.Path == "" {
		return stores, extra, nil
	}

	data, err := b.opts.Files.ReadFile(b.opts.Path)
	if storage.IsNotExist(err) {
		return stores, extra, nil
	}
	if err != nil {
		return nil, nil, err
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", b.opts.Path, err)
	}
	for name, raw := range top {
		if name == versionKey {
			continue
		}
		cfg, ok := b.schema.Store(name)
		if !ok {
			extra[name] = raw
			continue
		}
		records, err := decodeStore(cfg, raw)
		if err != nil {
			return nil, nil, fmt.Errorf("parse %s.%s: %w", b.opts.Path, name, err)
		}
		c := stores[name]
		for _, rec := range records {
			key, err := storage.RecordKey(cfg, rec)
			if err != nil {
				logging.Warn("skipping record without key", logging.KeyStore, name)
				continue
			}
			c.put(key, rec)
		}
	}
	return stores, extra, nil
}

// decodeStore accepts a store as an array of records, or as an object
// mapping key to record. Object entries that are not records are wrapped
// as {"value": v}.
func decodeStore(cfg model.StoreConfig, raw json.RawMessage) ([]model.Record, error) {
	if string(raw) == "null" {
		return nil, nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]model.Record, 0, len(list))
		for i, item := range list {
			rec, err := model.DecodeRecord(item)
			if err != nil {
				logging.Warn("skipping malformed record",
					logging.KeyStore, cfg.Name,
					"position", i,
					logging.KeyError, err)
				continue
			}
			out = append(out, rec)
		}
		return out, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]model.Record, 0, len(obj))
	for _, k := range keys {
		rec, err := model.DecodeRecord(obj[k])
		if err != nil {
			var v any
			if err := json.Unmarshal(obj[k], &v); err != nil {
				return nil, err
			}
			rec = model.Record{"value": v}
		}
		rec[cfg.KeyPath] = k
		out = append(out, rec)
	}
	return out, nil
}

// objectStore reports whether a store is written as a key-to-record
// object rather than an array.
func objectStore(cfg model.StoreConfig) bool {
	return cfg.Name == model.StoreSettings
}

// encode renders the whole document.
func (b *Backend) encode() ([]byte, error) {
	doc := make(map[string]any, len(b.stores)+len(b.extra)+1)
	for k, v := range b.extra {
		doc[k] = v
	}
	doc[versionKey] = b.schema.Version
	for _, cfg := range b.schema.Stores {
		c := b.stores[cfg.Name]
		if objectStore(cfg) {
			obj := make(map[string]model.Record, len(c.records))
			for _, rec := range c.records {
				entry := rec.Clone()
				key := entry.String(cfg.KeyPath)
				delete(entry, cfg.KeyPath)
				obj[key] = entry
			}
			doc[cfg.Name] = obj
			continue
		}
		records := c.records
		if records == nil {
			records = []model.Record{}
		}
		doc[cfg.Name] = records
	}
	return json.MarshalIndent(doc, "", "  ")
}

// persist writes the document. Callers hold the write lock.
func (b *Backend) persist() error {
	if b.opts.Path == "" {
		return nil
	}
	data, err := b.encode()
	if err != nil {
		return err
	}
	if err := b.opts.Files.WriteFile(b.opts.Path, data); err != nil {
		logging.Error("write json document", logging.KeyPath, b.opts.Path, logging.KeyError, err)
		return err
	}
	b.writes.Add(1)
	return nil
}

// view runs fn on the loaded store under the shared lock.
func (b *Backend) view(ctx context.Context, store string, fn func(cfg model.StoreConfig, c *collection) error) error {
	cfg, err := storage.LookupStore(b.schema, store)
	if err != nil {
		return err
	}
	if err := b.Load(ctx); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed.Load() {
		return storage.ErrClosed
	}
	return fn(cfg, b.stores[store])
}

// mutate runs fn under the write lock and persists the document. When
// fn reports no change nothing is written; when the write fails the store
// is restored to its previous state.
func (b *Backend) mutate(ctx context.Context, store string, fn func(cfg model.StoreConfig, c *collection) (bool, error)) error {
	cfg, err := storage.LookupStore(b.schema, store)
	if err != nil {
		return err
	}
	if err := b.Load(ctx); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed.Load() {
		return storage.ErrClosed
	}

	prev := b.stores[store].backup()
	changed, err := fn(cfg, b.stores[store])
	if err != nil || !changed {
		b.stores[store] = prev
		return err
	}
	if err := b.persist(); err != nil {
		b.stores[store] = prev
		return err
	}
	return nil
}

// Create implements storage.Backend.
func (b *Backend) Create(ctx context.Context, store string, rec model.Record) (model.Record, error) {
	var out model.Record
	var key string
	err := b.mutate(ctx, store, func(cfg model.StoreConfig, c *collection) (bool, error) {
		prepared, k, err := storage.PrepareCreate(cfg, rec)
		if err != nil {
			return false, err
		}
		if _, exists := c.get(k); exists {
			return false, fmt.Errorf("%w: %s/%s", storage.ErrDuplicateKey, store, k)
		}
		c.put(k, prepared)
		key = k
		out = prepared.Clone()
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	logging.DebugContext(ctx, "record created",
		logging.KeyBackend, Name,
		logging.KeyStore, store,
		logging.KeyID, key)
	return out, nil
}

// Get implements storage.Backend.
func (b *Backend) Get(ctx context.Context, store, id string) (model.Record, error) {
	var out model.Record
	err := b.view(ctx, store, func(_ model.StoreConfig, c *collection) error {
		if rec, ok := c.get(id); ok {
			out = rec.Clone()
		}
		return nil
	})
	return out, err
}

// GetAll implements storage.Backend. Records come back in insertion order.
func (b *Backend) GetAll(ctx context.Context, store string) ([]model.Record, error) {
	var out []model.Record
	err := b.view(ctx, store, func(_ model.StoreConfig, c *collection) error {
		out = cloneAll(c.records)
		return nil
	})
	return out, err
}

func cloneAll(records []model.Record) []model.Record {
	out := make([]model.Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}

// Update implements storage.Backend.
func (b *Backend) Update(ctx context.Context, store, id string, patch model.Record) (bool, error) {
	var found bool
	err := b.mutate(ctx, store, func(cfg model.StoreConfig, c *collection) (bool, error) {
		existing, ok := c.get(id)
		if !ok {
			return false, nil
		}
		merged, err := storage.PrepareUpdate(cfg, existing, id, patch)
		if err != nil {
			return false, err
		}
		c.put(id, merged)
		found = true
		return true, nil
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
	var found bool
	err := b.mutate(ctx, store, func(_ model.StoreConfig, c *collection) (bool, error) {
		found = c.remove(id)
		return found, nil
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

// DeleteMany implements storage.Backend. Every id is its own write.
func (b *Backend) DeleteMany(ctx context.Context, store string, ids []string) (storage.BatchResult, error) {
	return storage.DeleteEach(ctx, Name, store, ids, func(ctx context.Context, id string) (bool, error) {
		return b.Delete(ctx, store, id)
	})
}

// QueryByIndex implements storage.Backend with a scan of the store.
func (b *Backend) QueryByIndex(ctx context.Context, store, index string, value any) ([]model.Record, error) {
	_, idx, err := storage.LookupIndex(b.schema, store, index)
	if err != nil {
		return nil, err
	}
	var out []model.Record
	err = b.view(ctx, store, func(_ model.StoreConfig, c *collection) error {
		out = cloneAll(storage.FilterByIndex(c.records, idx, value))
		return nil
	})
	return out, err
}

// QueryByIndexRange implements storage.Backend with a scan of the store.
func (b *Backend) QueryByIndexRange(ctx context.Context, store, index string, r storage.KeyRange) ([]model.Record, error) {
	_, idx, err := storage.LookupIndex(b.schema, store, index)
	if err != nil {
		return nil, err
	}
	if _, err := r.Encode(); err != nil {
		return nil, err
	}
	var out []model.Record
	err = b.view(ctx, store, func(_ model.StoreConfig, c *collection) error {
		matched, err := storage.FilterByRange(c.records, idx, r)
		if err != nil {
			return err
		}
		out = cloneAll(matched)
		return nil
	})
	return out, err
}

// Count implements storage.Backend.
func (b *Backend) Count(ctx context.Context, store string) (int, error) {
	var n int
	err := b.view(ctx, store, func(_ model.StoreConfig, c *collection) error {
		n = len(c.records)
		return nil
	})
	return n, err
}

// Clear implements storage.Backend.
func (b *Backend) Clear(ctx context.Context, store string) error {
	return b.mutate(ctx, store, func(_ model.StoreConfig, c *collection) (bool, error) {
		c.reset()
		return true, nil
	})
}

// ExportData implements storage.Backend.
func (b *Backend) ExportData(ctx context.Context, store string) (string, error) {
	records, err := b.GetAll(ctx, store)
	if err != nil {
		return "", err
	}
	return storage.EncodeExport(records)
}

// ImportData implements storage.Backend with a single write.
func (b *Backend) ImportData(ctx context.Context, store, data string) (storage.BatchResult, error) {
	cfg, err := storage.LookupStore(b.schema, store)
	if err != nil {
		return storage.BatchResult{}, err
	}
	plan, ok := storage.ParseImport(cfg, data)
	if !ok {
		return plan.Result, nil
	}
	res := plan.Result
	err = b.mutate(ctx, store, func(_ model.StoreConfig, c *collection) (bool, error) {
		c.reset()
		for i, rec := range plan.Records {
			c.put(plan.Keys[i], rec)
			res.Succeed()
		}
		return true, nil
	})
	if err != nil {
		return storage.BatchResult{}, err
	}
	logging.DebugContext(ctx, "store imported",
		logging.KeyBackend, Name,
		logging.KeyStore, store,
		logging.KeyCount, res.Succeeded)
	return res, nil
}

func (b *Backend) location() string {
	if b.opts.Path == "" {
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

// Close releases the dataset. Every write is already on disk, so there is
// nothing to flush.
func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	b.mu.Lock()
	b.stores = nil
	b.mu.Unlock()
	return nil
}
