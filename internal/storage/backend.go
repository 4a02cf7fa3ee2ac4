// Package storage defines the persistence contract shared by every taskmap
// backend, plus the pieces the backends have in common: index key
// encoding, key ranges, import/export payloads, debounced flushing, host
// file access and the backend registry.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/manav03panchal/taskmap/internal/idgen"
	"github.com/manav03panchal/taskmap/internal/logging"
	"github.com/manav03panchal/taskmap/internal/model"
)

var (
	// ErrDuplicateKey is returned by Create when the key already exists.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrUnknownStore is returned for a store the schema does not declare.
	ErrUnknownStore = errors.New("unknown store")
	// ErrUnknownIndex is returned for an index the store does not declare.
	ErrUnknownIndex = errors.New("unknown index")
	// ErrBackendUnavailable is returned when the substrate could not be
	// opened. It is permanent for the lifetime of the backend value.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrClosed is returned by operations on a closed backend.
	ErrClosed = errors.New("backend closed")
	// ErrInvalidKey is returned when a record's key is not a non-empty string.
	ErrInvalidKey = errors.New("record key must be a non-empty string")
	// ErrInvalidRange is returned for key ranges that cannot be evaluated.
	ErrInvalidRange = errors.New("invalid key range")
)

// Backend is a storage engine serving every store declared by its schema.
//
// Absent records are not errors: Get returns a nil record, Update and
// Delete return false. Returned records are independent copies.
type Backend interface {
	// Name identifies the backend kind ("badger", "sqlite", "json").
	Name() string
	// Schema returns the declared stores.
	Schema() model.Schema

	// Init opens the substrate and ensures every declared store exists.
	// Concurrent and repeated calls share a single initialization.
	Init(ctx context.Context) error

	Create(ctx context.Context, store string, rec model.Record) (model.Record, error)
	Get(ctx context.Context, store, id string) (model.Record, error)
	GetAll(ctx context.Context, store string) ([]model.Record, error)
	Update(ctx context.Context, store, id string, patch model.Record) (bool, error)
	Delete(ctx context.Context, store, id string) (bool, error)
	DeleteMany(ctx context.Context, store string, ids []string) (BatchResult, error)

	QueryByIndex(ctx context.Context, store, index string, value any) ([]model.Record, error)
	QueryByIndexRange(ctx context.Context, store, index string, r KeyRange) ([]model.Record, error)

	Count(ctx context.Context, store string) (int, error)
	Clear(ctx context.Context, store string) error

	// ExportData returns the store as a JSON array.
	ExportData(ctx context.Context, store string) (string, error)
	// ImportData replaces the store with the records of a JSON array.
	// A payload that is not a JSON array yields OK=false and no error.
	ImportData(ctx context.Context, store, data string) (BatchResult, error)

	Status() Status

	// Close flushes pending writes and releases the substrate.
	Close() error
}

// BatchResult summarizes a best-effort batch operation.
type BatchResult struct {
	OK        bool     `json:"ok"`
	Succeeded int      `json:"succeeded"`
	Failed    []string `json:"failed,omitempty"`
}

// NewBatchResult returns an empty successful result.
func NewBatchResult() BatchResult {
	return BatchResult{OK: true}
}

// Succeed counts a successful item.
func (b *BatchResult) Succeed() {
	b.Succeeded++
}

// Fail records a failed item.
func (b *BatchResult) Fail(id string) {
	b.Failed = append(b.Failed, id)
	b.OK = false
}

// DeleteEach deletes ids one at a time with del. Ids that are absent or
// fail are recorded in the result and do not undo earlier deletions.
// Errors that make every further call fail abort the batch.
func DeleteEach(ctx context.Context, backend, store string, ids []string, del func(context.Context, string) (bool, error)) (BatchResult, error) {
	res := NewBatchResult()
	for _, id := range ids {
		ok, err := del(ctx, id)
		if err != nil && isFatal(ctx, err) {
			return res, err
		}
		if err != nil || !ok {
			res.Fail(id)
			continue
		}
		res.Succeed()
	}
	if !res.OK {
		logging.WarnContext(ctx, "batch delete incomplete",
			logging.KeyBackend, backend,
			logging.KeyStore, store,
			logging.KeyCount, len(res.Failed))
	}
	return res, nil
}

func isFatal(ctx context.Context, err error) bool {
	return errors.Is(err, ErrUnknownStore) ||
		errors.Is(err, ErrClosed) ||
		errors.Is(err, ErrBackendUnavailable) ||
		CheckContext(ctx) != nil
}

// Status describes a backend for diagnostics.
type Status struct {
	Backend     string `json:"backend"`
	Initialized bool   `json:"initialized"`
	Closed      bool   `json:"closed"`
	Location    string `json:"location,omitempty"`
	Pending     bool   `json:"pending,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Unavailable wraps cause so that it matches ErrBackendUnavailable.
func Unavailable(backend string, cause error) error {
	return fmt.Errorf("%s: %w: %w", backend, ErrBackendUnavailable, cause)
}

// LookupStore returns the store configuration or ErrUnknownStore.
func LookupStore(schema model.Schema, store string) (model.StoreConfig, error) {
	cfg, ok := schema.Store(store)
	if !ok {
		return model.StoreConfig{}, fmt.Errorf("%w: %q", ErrUnknownStore, store)
	}
	return cfg, nil
}

// LookupIndex returns the store and index configuration or an
// ErrUnknownStore / ErrUnknownIndex error.
func LookupIndex(schema model.Schema, store, index string) (model.StoreConfig, model.IndexConfig, error) {
	cfg, err := LookupStore(schema, store)
	if err != nil {
		return cfg, model.IndexConfig{}, err
	}
	idx, ok := cfg.Index(index)
	if !ok {
		return cfg, idx, fmt.Errorf("%w: %q on store %q", ErrUnknownIndex, index, store)
	}
	return cfg, idx, nil
}

// PrepareCreate normalizes rec for insertion into cfg and assigns a
// generated id when the key field is missing or empty. It returns the
// prepared record and its key.
func PrepareCreate(cfg model.StoreConfig, rec model.Record) (model.Record, string, error) {
	out, err := model.Normalize(rec)
	if err != nil {
		return nil, "", err
	}
	raw, present := out[cfg.KeyPath]
	if !present || raw == nil || raw == "" {
		out[cfg.KeyPath] = idgen.Generate()
	}
	key, err := RecordKey(cfg, out)
	if err != nil {
		return nil, "", err
	}
	return out, key, nil
}

// PrepareUpdate merges patch into existing, keeping the key field fixed.
func PrepareUpdate(cfg model.StoreConfig, existing model.Record, id string, patch model.Record) (model.Record, error) {
	norm, err := model.Normalize(patch)
	if err != nil {
		return nil, err
	}
	merged := existing.Merge(norm)
	merged[cfg.KeyPath] = id
	return merged, nil
}

// RecordKey extracts the key of rec for cfg.
func RecordKey(cfg model.StoreConfig, rec model.Record) (string, error) {
	key, ok := rec[cfg.KeyPath].(string)
	if !ok || key == "" {
		return "", fmt.Errorf("%w: field %q", ErrInvalidKey, cfg.KeyPath)
	}
	return key, nil
}

// CheckContext returns the context error, if any. Backends call it before
// handing control to their substrate.
func CheckContext(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
