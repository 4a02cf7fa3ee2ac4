// Package repo is the typed facade over a storage backend: one repository
// per entity kind, all sharing a single explicitly owned database handle.
package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/manav03panchal/taskmap/internal/idgen"
	"github.com/manav03panchal/taskmap/internal/model"
	"github.com/manav03panchal/taskmap/internal/query"
	"github.com/manav03panchal/taskmap/internal/storage"
)

// DB is the database handle. It owns the backend and exposes one
// repository per store.
type DB struct {
	backend storage.Backend

	Projects   *ProjectRepo
	Tasks      *TaskRepo
	Categories *CategoryRepo
	Tags       *TagRepo
	Settings   *SettingsRepo
	Timers     *TimerRepo
	Habits     *HabitRepo
}

// Open wraps backend. The backend is initialized lazily by the first
// operation, or eagerly by Init.
func Open(backend storage.Backend) *DB {
	db := &DB{backend: backend}
	db.Tasks = &TaskRepo{Repo: newRepo(db, model.StoreTasks, idgen.PrefixTask, func() *model.Task { return &model.Task{} })}
	db.Projects = &ProjectRepo{Repo: newRepo(db, model.StoreProjects, idgen.PrefixProject, func() *model.Project { return &model.Project{} }), tasks: db.Tasks}
	db.Categories = &CategoryRepo{Repo: newRepo(db, model.StoreCategories, idgen.PrefixCategory, func() *model.Category { return &model.Category{} })}
	db.Tags = &TagRepo{Repo: newRepo(db, model.StoreTags, idgen.PrefixTag, func() *model.Tag { return &model.Tag{} })}
	db.Settings = &SettingsRepo{db: db}
	db.Timers = &TimerRepo{Repo: newRepo(db, model.StoreTimerRecords, idgen.PrefixTimer, func() *model.TimerRecord { return &model.TimerRecord{} })}
	db.Habits = &HabitRepo{Repo: newRepo(db, model.StoreHabits, idgen.PrefixHabit, func() *model.Habit { return &model.Habit{} })}
	return db
}

// Init initializes the backend.
func (db *DB) Init(ctx context.Context) error {
	return db.backend.Init(ctx)
}

// Backend returns the underlying backend.
func (db *DB) Backend() storage.Backend {
	return db.backend
}

// Status reports the backend status.
func (db *DB) Status() storage.Status {
	return db.backend.Status()
}

// Close flushes and closes the backend.
func (db *DB) Close() error {
	return db.backend.Close()
}

// Repo provides typed access to one store. T is a pointer entity type.
type Repo[T model.Model] struct {
	db     *DB
	store  string
	prefix string
	newFn  func() T
}

func newRepo[T model.Model](db *DB, store, prefix string, newFn func() T) *Repo[T] {
	return &Repo[T]{db: db, store: store, prefix: prefix, newFn: newFn}
}

// Store returns the store name.
func (r *Repo[T]) Store() string {
	return r.store
}

func (r *Repo[T]) decode(rec model.Record) (T, error) {
	v := r.newFn()
	data, err := json.Marshal(rec)
	if err != nil {
		return v, fmt.Errorf("encode %s record: %w", r.store, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return v, fmt.Errorf("decode %s record: %w", r.store, err)
	}
	return v, nil
}

func (r *Repo[T]) decodeAll(recs []model.Record) ([]T, error) {
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		v, err := r.decode(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Create stores v and returns the stored entity. An empty key is replaced
// with a new prefixed id.
func (r *Repo[T]) Create(ctx context.Context, v T) (T, error) {
	var zero T
	if v.GetKey() == "" {
		id, err := idgen.GeneratePrefixed(r.prefix)
		if err != nil {
			return zero, err
		}
		v.SetKey(id)
	}
	rec, err := model.ToRecord(v)
	if err != nil {
		return zero, err
	}
	stored, err := r.db.backend.Create(ctx, r.store, rec)
	if err != nil {
		return zero, err
	}
	return r.decode(stored)
}

// Get returns the entity with id, or nil when absent.
func (r *Repo[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	rec, err := r.db.backend.Get(ctx, r.store, id)
	if err != nil || rec == nil {
		return zero, err
	}
	return r.decode(rec)
}

// GetAll returns every entity in store order.
func (r *Repo[T]) GetAll(ctx context.Context) ([]T, error) {
	recs, err := r.db.backend.GetAll(ctx, r.store)
	if err != nil {
		return nil, err
	}
	return r.decodeAll(recs)
}

// Update merges patch into the entity with id. A nil patch value clears
// the field. It reports false when the entity does not exist.
func (r *Repo[T]) Update(ctx context.Context, id string, patch model.Record) (bool, error) {
	return r.db.backend.Update(ctx, r.store, id, patch)
}

// Save merges the fields of v over the stored entity. Optional fields
// left at their zero value are omitted from the patch and keep their
// stored value; clear them with Update and a nil value.
func (r *Repo[T]) Save(ctx context.Context, v T) (bool, error) {
	rec, err := model.ToRecord(v)
	if err != nil {
		return false, err
	}
	return r.db.backend.Update(ctx, r.store, v.GetKey(), rec)
}

// Delete removes the entity with id. It reports false when absent.
func (r *Repo[T]) Delete(ctx context.Context, id string) (bool, error) {
	return r.db.backend.Delete(ctx, r.store, id)
}

// DeleteMany removes each id, best effort.
func (r *Repo[T]) DeleteMany(ctx context.Context, ids []string) (storage.BatchResult, error) {
	return r.db.backend.DeleteMany(ctx, r.store, ids)
}

// ByIndex returns the entities whose index key equals value.
func (r *Repo[T]) ByIndex(ctx context.Context, index string, value any) ([]T, error) {
	recs, err := r.db.backend.QueryByIndex(ctx, r.store, index, value)
	if err != nil {
		return nil, err
	}
	return r.decodeAll(recs)
}

// ByRange returns the entities whose index key falls in kr, in index order.
func (r *Repo[T]) ByRange(ctx context.Context, index string, kr storage.KeyRange) ([]T, error) {
	recs, err := r.db.backend.QueryByIndexRange(ctx, r.store, index, kr)
	if err != nil {
		return nil, err
	}
	return r.decodeAll(recs)
}

type entry[T any] struct {
	v   T
	rec model.Record
}

// Query filters, sorts and pages the whole store. Sort fields name the
// stored JSON fields, e.g. "dueDate".
func (r *Repo[T]) Query(ctx context.Context, p query.Params[T]) (query.Result[T], error) {
	recs, err := r.db.backend.GetAll(ctx, r.store)
	if err != nil {
		return query.Result[T]{}, err
	}
	entries := make([]entry[T], 0, len(recs))
	for _, rec := range recs {
		v, err := r.decode(rec)
		if err != nil {
			return query.Result[T]{}, err
		}
		entries = append(entries, entry[T]{v: v, rec: rec})
	}

	var filter func(entry[T]) bool
	if p.Filter != nil {
		filter = func(e entry[T]) bool { return p.Filter(e.v) }
	}
	res := query.Apply(entries, query.Params[entry[T]]{
		Filter:   filter,
		Sort:     p.Sort,
		Page:     p.Page,
		PageSize: p.PageSize,
	}, func(e entry[T], field string) (any, bool) {
		return e.rec.Lookup(field)
	})

	out := query.Result[T]{
		Data:       make([]T, len(res.Data)),
		Total:      res.Total,
		Page:       res.Page,
		PageSize:   res.PageSize,
		TotalPages: res.TotalPages,
	}
	for i, e := range res.Data {
		out.Data[i] = e.v
	}
	return out, nil
}

// Count returns the number of entities.
func (r *Repo[T]) Count(ctx context.Context) (int, error) {
	return r.db.backend.Count(ctx, r.store)
}

// Clear removes every entity.
func (r *Repo[T]) Clear(ctx context.Context) error {
	return r.db.backend.Clear(ctx, r.store)
}

// Export returns the store as a JSON array.
func (r *Repo[T]) Export(ctx context.Context) (string, error) {
	return r.db.backend.ExportData(ctx, r.store)
}

// Import replaces the store with the records of a JSON array.
func (r *Repo[T]) Import(ctx context.Context, data string) (storage.BatchResult, error) {
	return r.db.backend.ImportData(ctx, r.store, data)
}

// stamp adds updatedAt to a copy of patch.
func stamp(patch model.Record) model.Record {
	out := make(model.Record, len(patch)+1)
	for k, v := range patch {
		out[k] = v
	}
	out["updatedAt"] = model.NowMillis()
	return out
}
