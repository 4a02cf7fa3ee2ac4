package metrics

import (
	"context"
	"time"

	"github.com/manav03panchal/taskmap/internal/model"
	"github.com/manav03panchal/taskmap/internal/storage"
)

// Backend is a storage.Backend that records every call in a Metrics.
type Backend struct {
	inner storage.Backend
	m     *Metrics
}

// Instrument wraps b so that its operations are recorded in m.
func Instrument(b storage.Backend, m *Metrics) *Backend {
	return &Backend{inner: b, m: m}
}

// Unwrap returns the wrapped backend.
func (b *Backend) Unwrap() storage.Backend { return b.inner }

// Metrics returns the metrics the backend records into.
func (b *Backend) Metrics() *Metrics { return b.m }

func (b *Backend) observe(op, store string, start time.Time, err error) {
	b.m.Observe(b.inner.Name(), op, store, start, err)
}

func (b *Backend) Name() string         { return b.inner.Name() }
func (b *Backend) Schema() model.Schema { return b.inner.Schema() }
func (b *Backend) Status() storage.Status {
	return b.inner.Status()
}

func (b *Backend) Init(ctx context.Context) error {
	start := time.Now()
	err := b.inner.Init(ctx)
	b.observe("init", "", start, err)
	return err
}

func (b *Backend) Create(ctx context.Context, store string, rec model.Record) (model.Record, error) {
	start := time.Now()
	out, err := b.inner.Create(ctx, store, rec)
	b.observe("create", store, start, err)
	return out, err
}

func (b *Backend) Get(ctx context.Context, store, id string) (model.Record, error) {
	start := time.Now()
	out, err := b.inner.Get(ctx, store, id)
	b.observe("get", store, start, err)
	return out, err
}

func (b *Backend) GetAll(ctx context.Context, store string) ([]model.Record, error) {
	start := time.Now()
	out, err := b.inner.GetAll(ctx, store)
	b.observe("get_all", store, start, err)
	return out, err
}

func (b *Backend) Update(ctx context.Context, store, id string, patch model.Record) (bool, error) {
	start := time.Now()
	ok, err := b.inner.Update(ctx, store, id, patch)
	b.observe("update", store, start, err)
	return ok, err
}

func (b *Backend) Delete(ctx context.Context, store, id string) (bool, error) {
	start := time.Now()
	ok, err := b.inner.Delete(ctx, store, id)
	b.observe("delete", store, start, err)
	return ok, err
}

func (b *Backend) DeleteMany(ctx context.Context, store string, ids []string) (storage.BatchResult, error) {
	start := time.Now()
	res, err := b.inner.DeleteMany(ctx, store, ids)
	b.observe("delete_many", store, start, err)
	b.m.ObserveBatch(b.inner.Name(), "delete_many", store, res)
	return res, err
}

func (b *Backend) QueryByIndex(ctx context.Context, store, index string, value any) ([]model.Record, error) {
	start := time.Now()
	out, err := b.inner.QueryByIndex(ctx, store, index, value)
	b.observe("query_index", store, start, err)
	return out, err
}

func (b *Backend) QueryByIndexRange(ctx context.Context, store, index string, r storage.KeyRange) ([]model.Record, error) {
	start := time.Now()
	out, err := b.inner.QueryByIndexRange(ctx, store, index, r)
	b.observe("query_range", store, start, err)
	return out, err
}

func (b *Backend) Count(ctx context.Context, store string) (int, error) {
	start := time.Now()
	n, err := b.inner.Count(ctx, store)
	b.observe("count", store, start, err)
	return n, err
}

func (b *Backend) Clear(ctx context.Context, store string) error {
	start := time.Now()
	err := b.inner.Clear(ctx, store)
	b.observe("clear", store, start, err)
	return err
}

func (b *Backend) ExportData(ctx context.Context, store string) (string, error) {
	start := time.Now()
	out, err := b.inner.ExportData(ctx, store)
	b.observe("export", store, start, err)
	return out, err
}

func (b *Backend) ImportData(ctx context.Context, store, data string) (storage.BatchResult, error) {
	start := time.Now()
	res, err := b.inner.ImportData(ctx, store, data)
	b.observe("import", store, start, err)
	b.m.ObserveBatch(b.inner.Name(), "import", store, res)
	return res, err
}

func (b *Backend) Close() error {
	start := time.Now()
	err := b.inner.Close()
	b.observe("close", "", start, err)
	return err
}

var _ storage.Backend = (*Backend)(nil)
