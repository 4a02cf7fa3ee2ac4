// Package storagetest holds the behavioural test suite every storage
// backend must pass. Backend packages call Run from their own tests.
package storagetest

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manav03panchal/taskmap/internal/idgen"
	"github.com/manav03panchal/taskmap/internal/model"
	"github.com/manav03panchal/taskmap/internal/storage"
)

// Factory returns a fresh, uninitialized backend for one test. The
// factory is responsible for registering cleanup.
type Factory func(t *testing.T) storage.Backend

// Reopener returns backends that share one persistent location, so that a
// second backend sees what the first one wrote after Close.
type Reopener func(t *testing.T) storage.Backend

// Run executes the contract suite against backends built by newBackend.
func Run(t *testing.T, newBackend Factory) {
	tests := []struct {
		name string
		fn   func(*testing.T, storage.Backend)
	}{
		{"CreateGet", testCreateGet},
		{"CreateAssignsID", testCreateAssignsID},
		{"CreateDuplicate", testCreateDuplicate},
		{"GetMissing", testGetMissing},
		{"GetAll", testGetAll},
		{"UpdateMerges", testUpdateMerges},
		{"UpdateMissing", testUpdateMissing},
		{"DeleteTwice", testDeleteTwice},
		{"DeleteMany", testDeleteMany},
		{"QueryByIndex", testQueryByIndex},
		{"QueryByArrayIndex", testQueryByArrayIndex},
		{"QueryByIndexRange", testQueryByIndexRange},
		{"UnknownStoreAndIndex", testUnknownStoreAndIndex},
		{"CountClear", testCountClear},
		{"ExportImportRoundTrip", testExportImportRoundTrip},
		{"ImportReplaces", testImportReplaces},
		{"ImportMalformed", testImportMalformed},
		{"SettingsKeyPath", testSettingsKeyPath},
		{"ResultsAreCopies", testResultsAreCopies},
		{"ConcurrentInit", testConcurrentInit},
		{"ConcurrentCreateSameKey", testConcurrentCreateSameKey},
		{"ConcurrentUpdates", testConcurrentUpdates},
		{"CanceledContext", testCanceledContext},
		{"ClosedBackend", testClosedBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newBackend(t))
		})
	}
}

// RunPersistence checks that data written by one backend instance is
// visible to the next one opened on the same location.
func RunPersistence(t *testing.T, open Reopener) {
	ctx := context.Background()

	first := open(t)
	require.NoError(t, first.Init(ctx))
	_, err := first.Create(ctx, model.StoreProjects, model.Record{"id": "prj-1", "name": "Kept", "status": "active"})
	require.NoError(t, err)
	_, err = first.Create(ctx, model.StoreTasks, model.Record{"id": "tsk-1", "projectId": "prj-1"})
	require.NoError(t, err)
	_, err = first.Create(ctx, model.StoreSettings, model.Record{"key": "theme", "value": "dark"})
	require.NoError(t, err)
	ok, err := first.Update(ctx, model.StoreProjects, "prj-1", model.Record{"priority": 2})
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, first.Close())

	second := open(t)
	require.NoError(t, second.Init(ctx))
	t.Cleanup(func() { _ = second.Close() })

	p, err := second.Get(ctx, model.StoreProjects, "prj-1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Kept", p["name"])
	assert.Equal(t, 2.0, p["priority"])

	tasks, err := second.QueryByIndex(ctx, model.StoreTasks, "projectId", "prj-1")
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	s, err := second.Get(ctx, model.StoreSettings, "theme")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "dark", s["value"])
}

func initBackend(t *testing.T, b storage.Backend) context.Context {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, b.Init(ctx))
	return ctx
}

func ids(records []model.Record, key string) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.String(key))
	}
	sort.Strings(out)
	return out
}

func testCreateGet(t *testing.T, b storage.Backend) {
	ctx := initBackend(t, b)

	input := model.Record{
		"id":       "prj-a",
		"name":     "Alpha",
		"priority": 3.0,
		"tags":     []any{"x", "y"},
		"meta":     map[string]any{"nested": true},
	}
	created, err := b.Create(ctx, model.StoreProjects, input)
	require.NoError(t, err)
	assert.Equal(t, input, created)

	got, err := b.Get(ctx, model.StoreProjects, "prj-a")
	require.NoError(t, err)
	assert.Equal(t, input, got)
}

func testCreateAssignsID(t *testing.T, b storage.Backend) {
	ctx := initBackend(t, b)

	created, err := b.Create(ctx, model.StoreTags, model.Record{"name": "urgent"})
	require.NoError(t, err)
	id := created.String("id")
	assert.True(t, idgen.IsValid(id), "assigned id %q", id)

	got, err := b.Get(ctx, model.StoreTags, id)
	require.NoError(t, err)
	assert.Equal(t, model.Record{"id": id, "name": "urgent"}, got)
}

func testCreateDuplicate(t *testing.T, b storage.Backend) {
	ctx := initBackend(t, b)

	_, err := b.Create(ctx, model.StoreTasks, model.Record{"id": "dup", "name": "first"})
	require.NoError(t, err)
	_, err = b.Create(ctx, model.StoreTasks, model.Record{"id": "dup", "name": "second"})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := b.Get(ctx, model.StoreTasks, "dup")
	require.NoError(t, err)
	assert.Equal(t, "first", got["name"])

	n, err := b.Count(ctx, model.StoreTasks)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testGetMissing(t *testing.T, b storage.Backend) {
	ctx := initBackend(t, b)

	got, err := b.Get(ctx, model.StoreTasks, "nope")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func testGetAll(t *testing.T, b storage.Backend) {
	ctx := initBackend(t, b)

	all, err := b.GetAll(ctx, model.StoreCategories)
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)

	for _, id := range []string{"c1", "c2", "c3"} {
		_, err := b.Create(ctx, model.StoreCategories, model.Record{"id": id, "name": id})
		require.NoError(t, err)
	}
	all, err = b.GetAll(ctx, model.StoreCategories)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2", "c3"}, ids(all, "id"))
}

func testUpdateMerges(t *testing.T, b storage.Backend) {
	ctx := initBackend(t, b)

	orig := model.Record{
		"id":     "t1",
		"name":   "Write",
		"status": "pending",
		"notes":  "keep me",
		"tags":   []any{"a"},
	}
	_, err := b.Create(ctx, model.StoreTasks, orig)
	require.NoError(t, err)

	before, err := b.Get(ctx, model.StoreTasks, "t1")
	require.NoError(t, err)

	ok, err := b.Update(ctx, model.StoreTasks, "t1", model.Record{"status": "completed"})
	require.NoError(t, err)
	assert.True(t, ok)

	after, err := b.Get(ctx, model.StoreTasks, "t1")
	require.NoError(t, err)
	assert.Equal(t, "completed", after["status"])
	for _, field := range []string{"id", "name", "notes", "tags"} {
		wantJSON, _ := json.Marshal(before[field])
		gotJSON, _ := json.Marshal(after[field])
		assert.Equal(t, string(wantJSON), string(gotJSON), "field %s changed", field)
	}

	byStatus, err := b.QueryByIndex(ctx, model.StoreTasks, "status", "completed")
	require.NoError(t, err)
	assert.Len(t, byStatus, 1)
	stale, err := b.QueryByIndex(ctx, model.StoreTasks, "status", "pending")
	require.NoError(t, err)
	assert.Empty(t, stale, "index must follow updates")
}

func testUpdateMissing(t *testing.T, b storage.Backend) {
	ctx := initBackend(t, b)

	ok, err := b.Update(ctx, model.StoreTasks, "ghost", model.Record{"name": "x"})
	assert.NoError(t, err)
	assert.False(t, ok)

	got, err := b.Get(ctx, model.StoreTasks, "ghost")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testDeleteTwice(t *testing.T, b storage.Backend) {
	ctx := initBackend(t, b)

	_, err := b.Create(ctx, model.StoreHabits, model.Record{"id": "h1", "name": "Read"})
	require.NoError(t, err)

	ok, err := b.Delete(ctx, model.StoreHabits, "h1")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := b.Get(ctx, model.StoreHabits, "h1")
	require.NoError(t, err)
	assert.Nil(t, got)

	ok, err = b.Delete(ctx, model.StoreHabits, "h1")
	require.NoError(t, err)
	assert.False(t, ok)

	byName, err := b.QueryByIndex(ctx, model.StoreHabits, "name", "Read")
	require.NoError(t, err)
	assert.Empty(t, byName)
}

func testDeleteMany(t *testing.T, b storage.Backend) {
	ctx := initBackend(t, b)

	for _, id := range []string{"a", "b", "c"} {
		_, err := b.Create(ctx, model.StoreTags, model.Record{"id": id})
		require.NoError(t, err)
	}

	res, err := b.DeleteMany(ctx, model.StoreTags, []string{"a", "b"})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, 2, res.Succeeded)

	res, err = b.DeleteMany(ctx, model.StoreTags, []string{"c", "missing"})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, []string{"missing"}, res.Failed)

	n, err := b.Count(ctx, model.StoreTags)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testQueryByIndex(t *testing.T, b storage.Backend) {
	ctx := initBackend(t, b)

	records := []model.Record{
		{"id": "t1", "projectId": "p1", "priority": 1},
		{"id": "t2", "projectId": "p2", "priority": 2},
		{"id": "t3", "projectId": "p1", "priority": 2},
		{"id": "t4", "priority": true},
	}
	for _, r := range records {
		_, err := b.Create(ctx, model.StoreTasks, r)
		require.NoError(t, err)
	}

	got, err := b.QueryByIndex(ctx, model.StoreTasks, "projectId", "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t3"}, ids(got, "id"))

	got, err = b.QueryByIndex(ctx, model.StoreTasks, "priority", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"t2", "t3"}, ids(got, "id"))

	got, err = b.QueryByIndex(ctx, model.StoreTasks, "projectId", "none")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got, err = b.QueryByIndex(ctx, model.StoreTasks, "priority", true)
	require.NoError(t, err)
	assert.Empty(t, got, "booleans are not indexable")
}

func testQueryByArrayIndex(t *testing.T, b storage.Backend) {
	ctx := initBackend(t, b)

	_, err := b.Create(ctx, model.StoreTasks, model.Record{"id": "t1", "referenceNote": []any{"n1", "n2"}})
	require.NoError(t, err)
	_, err = b.Create(ctx, model.StoreTasks, model.Record{"id": "t2", "referenceNote": []any{"n1"}})
	require.NoError(t, err)

	got, err := b.QueryByIndex(ctx, model.StoreTasks, "referenceNote", []any{"n1", "n2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, ids(got, "id"))

	got, err = b.QueryByIndex(ctx, model.StoreTasks, "referenceNote", []string{"n1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"t2"}, ids(got, "id"))
}

func testQueryByIndexRange(t *testing.T, b storage.Backend) {
	ctx := initBackend(t, b)

	for i, due := range []float64{100, 200, 300, 400, 500} {
		_, err := b.Create(ctx, model.StoreProjects, model.Record{"id": string(rune('a' + i)), "dueDate": due})
		require.NoError(t, err)
	}
	_, err := b.Create(ctx, model.StoreProjects, model.Record{"id": "nodue"})
	require.NoError(t, err)
	_, err = b.Create(ctx, model.StoreProjects, model.Record{"id": "strdue", "dueDate": "soon"})
	require.NoError(t, err)

	tests := []struct {
		name string
		r    storage.KeyRange
		want []string
	}{
		{"closed", storage.Bound(200, 400, false, false), []string{"b", "c", "d"}},
		{"open", storage.Bound(200, 400, true, true), []string{"c"}},
		{"half_open", storage.Bound(200, 400, false, true), []string{"b", "c"}},
		{"lower", storage.LowerBound(400, true), []string{"e", "strdue"}},
		{"upper", storage.UpperBound(200, false), []string{"a", "b"}},
		{"only", storage.Only(300), []string{"c"}},
		{"empty", storage.Bound(201, 299, false, false), []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.QueryByIndexRange(ctx, model.StoreProjects, "dueDate", tt.r)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got, "id"))
		})
	}

	_, err = b.QueryByIndexRange(ctx, model.StoreProjects, "dueDate", storage.Bound(5, 1, false, false))
	assert.ErrorIs(t, err, storage.ErrInvalidRange)
}

func testUnknownStoreAndIndex(t *testing.T, b storage.Backend) {
	ctx := initBackend(t, b)

	_, err := b.Create(ctx, "nope", model.Record{"id": "x"})
	assert.ErrorIs(t, err, storage.ErrUnknownStore)

	_, err = b.GetAll(ctx, "nope")
	assert.ErrorIs(t, err, storage.ErrUnknownStore)

	_, err = b.QueryByIndex(ctx, model.StoreTasks, "nope", "x")
	assert.ErrorIs(t, err, storage.ErrUnknownIndex)

	_, err = b.QueryByIndexRange(ctx, model.StoreTasks, "nope", storage.Only("x"))
	assert.ErrorIs(t, err, storage.ErrUnknownIndex)
}

func testCountClear(t *testing.T, b storage.Backend) {
	ctx := initBackend(t, b)

	for i := 0; i < 4; i++ {
		_, err := b.Create(ctx, model.StoreTimerRecords, model.Record{"startTime": float64(i)})
		require.NoError(t, err)
	}
	_, err := b.Create(ctx, model.StoreTags, model.Record{"id": "other"})
	require.NoError(t, err)

	n, err := b.Count(ctx, model.StoreTimerRecords)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	require.NoError(t, b.Clear(ctx, model.StoreTimerRecords))
	n, err = b.Count(ctx, model.StoreTimerRecords)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := b.QueryByIndexRange(ctx, model.StoreTimerRecords, "startTime", storage.LowerBound(0, false))
	require.NoError(t, err)
	assert.Empty(t, got)

	n, err = b.Count(ctx, model.StoreTags)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "clear touches only its store")
}

func testExportImportRoundTrip(t *testing.T, b storage.Backend) {
	ctx := initBackend(t, b)

	for _, r := range []model.Record{
		{"id": "t1", "name": "one", "projectId": "p"},
		{"id": "t2", "name": "two", "subTasks": []any{"t3"}},
		{"id": "t3", "name": "three", "parentId": "t2"},
	} {
		_, err := b.Create(ctx, model.StoreTasks, r)
		require.NoError(t, err)
	}
	before, err := b.GetAll(ctx, model.StoreTasks)
	require.NoError(t, err)

	exported, err := b.ExportData(ctx, model.StoreTasks)
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(exported)))

	res, err := b.ImportData(ctx, model.StoreTasks, exported)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, 3, res.Succeeded)

	after, err := b.GetAll(ctx, model.StoreTasks)
	require.NoError(t, err)
	assert.Equal(t, ids(before, "id"), ids(after, "id"))
	assert.ElementsMatch(t, before, after)

	children, err := b.QueryByIndex(ctx, model.StoreTasks, "parentId", "t2")
	require.NoError(t, err)
	assert.Equal(t, []string{"t3"}, ids(children, "id"), "indexes are rebuilt on import")
}

func testImportReplaces(t *testing.T, b storage.Backend) {
	ctx := initBackend(t, b)

	_, err := b.Create(ctx, model.StoreTags, model.Record{"id": "old", "name": "old"})
	require.NoError(t, err)

	res, err := b.ImportData(ctx, model.StoreTags, `[{"id":"new1","name":"n"},{"name":"no id"},{"id":"new2","name":"n"}]`)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, []string{"#1"}, res.Failed)

	all, err := b.GetAll(ctx, model.StoreTags)
	require.NoError(t, err)
	assert.Equal(t, []string{"new1", "new2"}, ids(all, "id"))

	byName, err := b.QueryByIndex(ctx, model.StoreTags, "name", "old")
	require.NoError(t, err)
	assert.Empty(t, byName)
}

func testImportMalformed(t *testing.T, b storage.Backend) {
	ctx := initBackend(t, b)

	_, err := b.Create(ctx, model.StoreTags, model.Record{"id": "keep"})
	require.NoError(t, err)

	for _, payload := range []string{"not json", `{"id":"x"}`, ""} {
		res, err := b.ImportData(ctx, model.StoreTags, payload)
		require.NoError(t, err, "payload %q", payload)
		assert.False(t, res.OK)
	}

	n, err := b.Count(ctx, model.StoreTags)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "malformed import must not clear the store")
}

func testSettingsKeyPath(t *testing.T, b storage.Backend) {
	ctx := initBackend(t, b)

	_, err := b.Create(ctx, model.StoreSettings, model.Record{"key": "theme", "value": "dark", "category": "ui"})
	require.NoError(t, err)
	_, err = b.Create(ctx, model.StoreSettings, model.Record{"key": "lang", "value": "en", "category": "ui"})
	require.NoError(t, err)

	got, err := b.Get(ctx, model.StoreSettings, "theme")
	require.NoError(t, err)
	assert.Equal(t, model.Record{"key": "theme", "value": "dark", "category": "ui"}, got)

	ok, err := b.Update(ctx, model.StoreSettings, "theme", model.Record{"value": "light"})
	require.NoError(t, err)
	assert.True(t, ok)

	ui, err := b.QueryByIndex(ctx, model.StoreSettings, "category", "ui")
	require.NoError(t, err)
	assert.Equal(t, []string{"lang", "theme"}, ids(ui, "key"))

	_, err = b.Create(ctx, model.StoreSettings, model.Record{"key": "theme"})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func testResultsAreCopies(t *testing.T, b storage.Backend) {
	ctx := initBackend(t, b)

	input := model.Record{"id": "p", "name": "orig", "list": []any{"a"}}
	created, err := b.Create(ctx, model.StoreProjects, input)
	require.NoError(t, err)

	input["name"] = "mutated input"
	created["name"] = "mutated result"

	got, err := b.Get(ctx, model.StoreProjects, "p")
	require.NoError(t, err)
	got["name"] = "mutated get"
	got["list"].([]any)[0] = "z"

	all, err := b.GetAll(ctx, model.StoreProjects)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "orig", all[0]["name"])
	assert.Equal(t, []any{"a"}, all[0]["list"])
}

func testConcurrentInit(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- b.Init(ctx)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.True(t, b.Status().Initialized)

	// Operations also initialize lazily and must not re-run setup.
	_, err := b.Create(ctx, model.StoreTags, model.Record{"id": "x"})
	require.NoError(t, err)
	require.NoError(t, b.Init(ctx))
	n, err := b.Count(ctx, model.StoreTags)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testConcurrentCreateSameKey(t *testing.T, b storage.Backend) {
	ctx := initBackend(t, b)

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.Create(ctx, model.StoreTasks, model.Record{"id": "race", "name": "contender"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	created := 0
	for err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, storage.ErrDuplicateKey)
	}
	assert.Equal(t, 1, created)

	n, err := b.Count(ctx, model.StoreTasks)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testConcurrentUpdates(t *testing.T, b storage.Backend) {
	ctx := initBackend(t, b)

	_, err := b.Create(ctx, model.StoreTasks, model.Record{"id": "shared", "name": "Shared"})
	require.NoError(t, err)

	fields := []string{"f0", "f1", "f2", "f3", "f4", "f5", "f6", "f7"}
	var wg sync.WaitGroup
	for _, f := range fields {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := b.Update(ctx, model.StoreTasks, "shared", model.Record{f: true})
			assert.NoError(t, err)
			assert.True(t, ok)
		}()
	}
	wg.Wait()

	got, err := b.Get(ctx, model.StoreTasks, "shared")
	require.NoError(t, err)
	for _, f := range fields {
		assert.Equal(t, true, got[f], "update of %s lost", f)
	}
}

func testCanceledContext(t *testing.T, b storage.Backend) {
	initBackend(t, b)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Create(ctx, model.StoreTags, model.Record{"id": "x"})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = b.GetAll(ctx, model.StoreTags)
	assert.ErrorIs(t, err, context.Canceled)
}

func testClosedBackend(t *testing.T, b storage.Backend) {
	ctx := initBackend(t, b)

	require.NoError(t, b.Close())
	assert.True(t, b.Status().Closed)
	assert.NoError(t, b.Close(), "close is idempotent")

	_, err := b.Get(ctx, model.StoreTags, "x")
	assert.ErrorIs(t, err, storage.ErrClosed)
}
