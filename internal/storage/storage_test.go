package storage

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manav03panchal/taskmap/internal/model"
)

// =============================================================================
// Index Key Tests
// =============================================================================

func mustKey(t *testing.T, v any) string {
	t.Helper()
	k, ok := EncodeIndexKey(v)
	require.True(t, ok, "value %#v should be indexable", v)
	return k
}

func TestEncodeIndexKeyOrdering(t *testing.T) {
	ordered := []any{
		-1e9, -2.5, -1, 0, 0.5, 1, 2, 10, 1e12,
		"", "A", "B", "a", "a\x00", "a\x01", "aa", "b", "é",
		[]any{}, []any{1.0}, []any{1.0, "x"}, []any{2.0}, []any{"a"}, []any{"a", "b"}, []any{"b"},
	}

	var keys []string
	for _, v := range ordered {
		keys = append(keys, mustKey(t, v))
	}
	assert.True(t, sort.StringsAreSorted(keys), "encoded keys must follow value order")

	for _, k := range keys {
		assert.NotContains(t, k, "\x00")
	}
}

func TestEncodeIndexKeyNumericKinds(t *testing.T) {
	assert.Equal(t, mustKey(t, 3.0), mustKey(t, 3))
	assert.Equal(t, mustKey(t, 3.0), mustKey(t, int64(3)))
	assert.Equal(t, mustKey(t, 0.0), mustKey(t, -0.0))
	assert.Equal(t, mustKey(t, []any{"x"}), mustKey(t, []string{"x"}))
}

func TestEncodeIndexKeyUnindexable(t *testing.T) {
	for _, v := range []any{nil, true, map[string]any{"a": 1}, []any{[]any{1}}, []any{true}} {
		_, ok := EncodeIndexKey(v)
		assert.False(t, ok, "%#v should not be indexable", v)
	}
}

func TestFilterByIndex(t *testing.T) {
	idx := model.IndexConfig{Name: "status", KeyPath: "status"}
	records := []model.Record{
		{"id": "1", "status": "active"},
		{"id": "2", "status": "paused"},
		{"id": "3"},
		{"id": "4", "status": "active"},
	}

	got := FilterByIndex(records, idx, "active")
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0]["id"])
	assert.Equal(t, "4", got[1]["id"])

	assert.Empty(t, FilterByIndex(records, idx, true))
}

func TestFilterByIndexNestedPath(t *testing.T) {
	idx := model.IndexConfig{Name: "owner", KeyPath: "meta.owner"}
	records := []model.Record{
		{"id": "1", "meta": map[string]any{"owner": "ana"}},
		{"id": "2", "meta": map[string]any{"owner": "bo"}},
		{"id": "3", "meta": "flat"},
	}
	got := FilterByIndex(records, idx, "bo")
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0]["id"])
}

// =============================================================================
// Key Range Tests
// =============================================================================

func TestKeyRangeBounds(t *testing.T) {
	idx := model.IndexConfig{Name: "n", KeyPath: "n"}
	var records []model.Record
	for i := 1; i <= 5; i++ {
		records = append(records, model.Record{"id": string(rune('0' + i)), "n": float64(i)})
	}

	tests := []struct {
		name string
		r    KeyRange
		want []float64
	}{
		{"closed", Bound(2, 4, false, false), []float64{2, 3, 4}},
		{"open", Bound(2, 4, true, true), []float64{3}},
		{"lower_open", Bound(2, 4, true, false), []float64{3, 4}},
		{"upper_open", Bound(2, 4, false, true), []float64{2, 3}},
		{"lower_only", LowerBound(4, false), []float64{4, 5}},
		{"lower_only_open", LowerBound(4, true), []float64{5}},
		{"upper_only", UpperBound(2, false), []float64{1, 2}},
		{"upper_only_open", UpperBound(2, true), []float64{1}},
		{"only", Only(3), []float64{3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FilterByRange(records, idx, tt.r)
			require.NoError(t, err)
			var ns []float64
			for _, r := range got {
				ns = append(ns, r["n"].(float64))
			}
			assert.Equal(t, tt.want, ns)
		})
	}
}

func TestKeyRangeInvalid(t *testing.T) {
	_, err := Bound(5, 1, false, false).Encode()
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = Bound(1, 1, true, false).Encode()
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = LowerBound(true, false).Encode()
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestEncodedRangeAboveUpper(t *testing.T) {
	enc, err := Bound("b", "d", false, true).Encode()
	require.NoError(t, err)
	assert.False(t, enc.AboveUpper(mustKey(t, "c")))
	assert.True(t, enc.AboveUpper(mustKey(t, "d")))

	enc, err = LowerBound("b", false).Encode()
	require.NoError(t, err)
	assert.False(t, enc.AboveUpper(mustKey(t, "zzz")))
}

// =============================================================================
// Import/Export Tests
// =============================================================================

var testStore = model.StoreConfig{Name: "things", KeyPath: "id"}

func TestParseImport(t *testing.T) {
	plan, ok := ParseImport(testStore, `[
		{"id": "a", "n": 1},
		{"id": "b"},
		"not an object",
		{"name": "no key"},
		{"id": "a", "n": 2}
	]`)
	require.True(t, ok)

	assert.Equal(t, []string{"a", "b"}, plan.Keys)
	assert.Equal(t, 2.0, plan.Records[0]["n"], "later duplicate replaces the earlier record")
	assert.False(t, plan.Result.OK)
	assert.Equal(t, []string{"#2", "#3"}, plan.Result.Failed)
}

func TestParseImportMalformed(t *testing.T) {
	for _, payload := range []string{"", "{", `{"id":"a"}`, "null", "42"} {
		plan, ok := ParseImport(testStore, payload)
		assert.False(t, ok, "payload %q", payload)
		assert.False(t, plan.Result.OK)
	}
}

func TestParseImportEmptyArray(t *testing.T) {
	plan, ok := ParseImport(testStore, "[]")
	require.True(t, ok)
	assert.True(t, plan.Result.OK)
	assert.Empty(t, plan.Records)
}

func TestEncodeExport(t *testing.T) {
	out, err := EncodeExport(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", out)

	out, err = EncodeExport([]model.Record{{"id": "a"}})
	require.NoError(t, err)
	assert.Equal(t, "[\n  {\n    \"id\": \"a\"\n  }\n]", out)

	plan, ok := ParseImport(testStore, out)
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, plan.Keys)
}

// =============================================================================
// Record Preparation Tests
// =============================================================================

func TestPrepareCreateAssignsID(t *testing.T) {
	rec, key, err := PrepareCreate(testStore, model.Record{"name": "x", "n": 1})
	require.NoError(t, err)
	assert.NotEmpty(t, key)
	assert.Equal(t, key, rec["id"])
	assert.Equal(t, 1.0, rec["n"])
}

func TestPrepareCreateKeepsID(t *testing.T) {
	_, key, err := PrepareCreate(testStore, model.Record{"id": "fixed"})
	require.NoError(t, err)
	assert.Equal(t, "fixed", key)
}

func TestPrepareCreateRejectsNonStringKey(t *testing.T) {
	_, _, err := PrepareCreate(testStore, model.Record{"id": 12})
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestPrepareUpdateKeepsKey(t *testing.T) {
	merged, err := PrepareUpdate(testStore, model.Record{"id": "a", "x": 1.0, "y": "keep"}, "a", model.Record{"id": "b", "x": 2})
	require.NoError(t, err)
	assert.Equal(t, model.Record{"id": "a", "x": 2.0, "y": "keep"}, merged)
}

func TestLookupIndex(t *testing.T) {
	schema := model.DefaultSchema()

	_, _, err := LookupIndex(schema, "nope", "x")
	assert.ErrorIs(t, err, ErrUnknownStore)

	_, _, err = LookupIndex(schema, model.StoreTasks, "nope")
	assert.ErrorIs(t, err, ErrUnknownIndex)

	_, idx, err := LookupIndex(schema, model.StoreTasks, "projectId")
	require.NoError(t, err)
	assert.Equal(t, "projectId", idx.KeyPath)
}

func TestBatchResult(t *testing.T) {
	b := NewBatchResult()
	assert.True(t, b.OK)
	b.Succeed()
	b.Fail("x")
	assert.False(t, b.OK)
	assert.Equal(t, 1, b.Succeeded)
	assert.Equal(t, []string{"x"}, b.Failed)
}

func TestUnavailable(t *testing.T) {
	err := Unavailable("sqlite", errors.New("boom"))
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.Contains(t, err.Error(), "boom")
}

// =============================================================================
// Debouncer Tests
// =============================================================================

func TestDebouncerCollapsesBursts(t *testing.T) {
	var runs atomic.Int32
	d := NewDebouncer(30*time.Millisecond, func() error {
		runs.Add(1)
		return nil
	}, nil)

	for i := 0; i < 10; i++ {
		d.Trigger()
	}
	assert.True(t, d.Pending())

	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
	assert.False(t, d.Pending())
}

func TestDebouncerFlushRunsSynchronously(t *testing.T) {
	var runs atomic.Int32
	d := NewDebouncer(time.Hour, func() error {
		runs.Add(1)
		return nil
	}, nil)

	require.NoError(t, d.Flush())
	assert.Equal(t, int32(0), runs.Load(), "nothing pending, nothing to run")

	d.Trigger()
	require.NoError(t, d.Flush())
	assert.Equal(t, int32(1), runs.Load())

	require.NoError(t, d.Flush())
	assert.Equal(t, int32(1), runs.Load())
}

func TestDebouncerFailureStaysPending(t *testing.T) {
	fail := true
	d := NewDebouncer(time.Hour, func() error {
		if fail {
			return errors.New("disk gone")
		}
		return nil
	}, nil)

	d.Trigger()
	assert.Error(t, d.Flush())
	assert.True(t, d.Pending())

	fail = false
	assert.NoError(t, d.Flush())
	assert.False(t, d.Pending())
}

func TestDebouncerTimerErrorsReported(t *testing.T) {
	errs := make(chan error, 1)
	d := NewDebouncer(5*time.Millisecond, func() error {
		return errors.New("boom")
	}, func(err error) { errs <- err })

	d.Trigger()
	select {
	case err := <-errs:
		assert.EqualError(t, err, "boom")
	case <-time.After(time.Second):
		t.Fatal("timer error not reported")
	}
	d.cancel()
}

func TestDebouncerStop(t *testing.T) {
	var runs atomic.Int32
	d := NewDebouncer(time.Hour, func() error {
		runs.Add(1)
		return nil
	}, nil)

	d.Trigger()
	require.NoError(t, d.Stop())
	assert.Equal(t, int32(1), runs.Load())

	d.Trigger()
	assert.False(t, d.Pending())
}

// =============================================================================
// Init Coalescing Tests
// =============================================================================

func TestInitOnceCoalesces(t *testing.T) {
	var once InitOnce
	var calls atomic.Int32
	start := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			assert.NoError(t, once.Do(func() error {
				calls.Add(1)
				time.Sleep(10 * time.Millisecond)
				return nil
			}))
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, once.Done())
}

func TestInitOnceRemembersFailure(t *testing.T) {
	var once InitOnce
	boom := errors.New("boom")
	calls := 0

	for i := 0; i < 3; i++ {
		err := once.Do(func() error {
			calls++
			return boom
		})
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, once.Err(), boom)
}

// =============================================================================
// Files Tests
// =============================================================================

func TestFilesRoundTrip(t *testing.T) {
	files := NewFiles(afero.NewMemMapFs())

	_, err := files.ReadFile("/data/taskmap/taskmap.json")
	assert.True(t, IsNotExist(err))

	require.NoError(t, files.WriteFile("/data/taskmap/taskmap.json", []byte(`{"v":1}`)))
	data, err := files.ReadFile("/data/taskmap/taskmap.json")
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, string(data))

	require.NoError(t, files.WriteFile("/data/taskmap/taskmap.json", []byte(`{"v":2}`)))
	data, err = files.ReadFile("/data/taskmap/taskmap.json")
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(data))
}

func TestFilesWriteLeavesNoTempFiles(t *testing.T) {
	fsys := afero.NewMemMapFs()
	files := NewFiles(fsys)
	require.NoError(t, files.WriteFile("/d/out.json", []byte("x")))

	entries, err := afero.ReadDir(fsys, "/d")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "out.json", entries[0].Name())
}

func TestFilesEnsureDir(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, NewFiles(fsys).EnsureDir("/a/b/c"))
	ok, err := afero.DirExists(fsys, "/a/b/c")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOSFilesWrite(t *testing.T) {
	dir := t.TempDir()
	files := OSFiles()
	require.NoError(t, files.WriteFile(dir+"/nested/file.txt", []byte("hello")))
	data, err := files.ReadFile(dir + "/nested/file.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

// =============================================================================
// Registry Tests
// =============================================================================

type nopBackend struct{ Backend }

func TestRegistry(t *testing.T) {
	var got Config
	Register("test-nop", func(cfg Config) (Backend, error) {
		got = cfg
		return nopBackend{}, nil
	})

	b, err := New("test-nop", Config{PluginName: "demo"})
	require.NoError(t, err)
	assert.NotNil(t, b)
	assert.Equal(t, "demo", got.PluginName)
	assert.Equal(t, DefaultSnapshotDelay, got.SnapshotDelay)
	assert.NotEmpty(t, got.Schema.Stores)
	assert.Contains(t, Registered(), "test-nop")

	_, err = New("does-not-exist", Config{})
	assert.Error(t, err)
}

func TestConfigPluginDir(t *testing.T) {
	cfg := Config{DataDir: "/data", PluginName: "tm"}
	assert.Equal(t, "/data/tm", cfg.PluginDir())
}
