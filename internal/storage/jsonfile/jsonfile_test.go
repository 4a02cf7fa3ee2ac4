package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manav03panchal/taskmap/internal/model"
	"github.com/manav03panchal/taskmap/internal/storage"
	"github.com/manav03panchal/taskmap/internal/storage/storagetest"
)

const testPath = "/data/taskmap/taskmap.json"

func setupTestBackend(t *testing.T, fs afero.Fs) *Backend {
	t.Helper()
	opts := Options{}
	if fs != nil {
		opts = Options{Path: testPath, Files: storage.NewFiles(fs)}
	}
	b := New(model.DefaultSchema(), opts)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func readDoc(t *testing.T, fs afero.Fs) map[string]json.RawMessage {
	t.Helper()
	data, err := afero.ReadFile(fs, testPath)
	require.NoError(t, err)
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func TestContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Backend {
		return setupTestBackend(t, nil)
	})
}

func TestContractPersistent(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Backend {
		return setupTestBackend(t, afero.NewMemMapFs())
	})
}

func TestPersistence(t *testing.T) {
	fs := afero.NewMemMapFs()
	storagetest.RunPersistence(t, func(t *testing.T) storage.Backend {
		return New(model.DefaultSchema(), Options{Path: testPath, Files: storage.NewFiles(fs)})
	})
}

func TestDocumentShape(t *testing.T) {
	fs := afero.NewMemMapFs()
	b := setupTestBackend(t, fs)
	ctx := context.Background()

	_, err := b.Create(ctx, model.StoreTasks, model.Record{"id": "t1", "name": "one"})
	require.NoError(t, err)
	_, err = b.Create(ctx, model.StoreSettings, model.Record{"key": "theme", "value": "dark"})
	require.NoError(t, err)

	doc := readDoc(t, fs)
	assert.JSONEq(t, `1`, string(doc["version"]))
	assert.JSONEq(t, `[{"id":"t1","name":"one"}]`, string(doc["tasks"]))
	assert.JSONEq(t, `{"theme":{"value":"dark"}}`, string(doc["settings"]))
	for _, store := range []string{"projects", "categories", "tags", "timerRecords", "habits"} {
		assert.JSONEq(t, `[]`, string(doc[store]), store)
	}
}

func TestEveryMutationWrites(t *testing.T) {
	fs := afero.NewMemMapFs()
	b := setupTestBackend(t, fs)
	ctx := context.Background()

	_, err := b.Create(ctx, model.StoreTags, model.Record{"id": "a"})
	require.NoError(t, err)
	_, err = b.Update(ctx, model.StoreTags, "a", model.Record{"color": "#fff"})
	require.NoError(t, err)
	_, err = b.Delete(ctx, model.StoreTags, "a")
	require.NoError(t, err)
	assert.Equal(t, int32(3), b.writes.Load())

	_, err = b.Delete(ctx, model.StoreTags, "a")
	require.NoError(t, err)
	_, err = b.Update(ctx, model.StoreTags, "a", model.Record{"color": "#000"})
	require.NoError(t, err)
	_, err = b.GetAll(ctx, model.StoreTags)
	require.NoError(t, err)
	assert.Equal(t, int32(3), b.writes.Load(), "no-op calls and reads do not write")
}

func TestUnknownKeysPreserved(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, testPath, []byte(`{
		"version": 1,
		"tasks": [{"id": "t1"}],
		"plugins": {"calendar": true}
	}`), 0o600))

	b := setupTestBackend(t, fs)
	ctx := context.Background()

	n, err := b.Count(ctx, model.StoreProjects)
	require.NoError(t, err)
	assert.Zero(t, n, "missing stores default to empty")

	_, err = b.Create(ctx, model.StoreTasks, model.Record{"id": "t2"})
	require.NoError(t, err)

	doc := readDoc(t, fs)
	assert.JSONEq(t, `{"calendar": true}`, string(doc["plugins"]))
	assert.JSONEq(t, `[{"id":"t1"},{"id":"t2"}]`, string(doc["tasks"]))
}

func TestLegacySettingsValues(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, testPath, []byte(`{
		"settings": {"theme": "dark", "pageSize": {"value": 50, "category": "ui"}}
	}`), 0o600))

	b := setupTestBackend(t, fs)
	ctx := context.Background()

	theme, err := b.Get(ctx, model.StoreSettings, "theme")
	require.NoError(t, err)
	assert.Equal(t, model.Record{"key": "theme", "value": "dark"}, theme)

	page, err := b.Get(ctx, model.StoreSettings, "pageSize")
	require.NoError(t, err)
	assert.Equal(t, model.Record{"key": "pageSize", "value": 50.0, "category": "ui"}, page)
}

func TestMalformedElementsSkipped(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, testPath, []byte(`{"tags": [{"id": "ok"}, 42, {"name": "no id"}]}`), 0o600))

	b := setupTestBackend(t, fs)
	all, err := b.GetAll(context.Background(), model.StoreTags)
	require.NoError(t, err)
	assert.Equal(t, []model.Record{{"id": "ok"}}, all)
}

func TestCorruptFileIsUnavailable(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, testPath, []byte(`{not json`), 0o600))

	b := setupTestBackend(t, fs)
	_, err := b.GetAll(context.Background(), model.StoreTags)
	assert.ErrorIs(t, err, storage.ErrBackendUnavailable)
	assert.NotEmpty(t, b.Status().Error)
}

func TestConcurrentLoadReadsOnce(t *testing.T) {
	b := setupTestBackend(t, afero.NewMemMapFs())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.GetAll(context.Background(), model.StoreTasks)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), b.loads.Load())
}

// failingFiles reads from an inner Files and fails every write once armed.
type failingFiles struct {
	storage.Files
	fail bool
}

var errWrite = errors.New("write refused")

func (f *failingFiles) WriteFile(path string, data []byte) error {
	if f.fail {
		return errWrite
	}
	return f.Files.WriteFile(path, data)
}

func TestFailedWriteRollsBack(t *testing.T) {
	files := &failingFiles{Files: storage.NewFiles(afero.NewMemMapFs())}
	b := New(model.DefaultSchema(), Options{Path: testPath, Files: files})
	t.Cleanup(func() { _ = b.Close() })
	ctx := context.Background()

	_, err := b.Create(ctx, model.StoreTasks, model.Record{"id": "t1", "status": "pending"})
	require.NoError(t, err)

	files.fail = true

	_, err = b.Create(ctx, model.StoreTasks, model.Record{"id": "t2"})
	assert.ErrorIs(t, err, errWrite)
	_, err = b.Update(ctx, model.StoreTasks, "t1", model.Record{"status": "completed"})
	assert.ErrorIs(t, err, errWrite)
	_, err = b.Delete(ctx, model.StoreTasks, "t1")
	assert.ErrorIs(t, err, errWrite)
	err = b.Clear(ctx, model.StoreTasks)
	assert.ErrorIs(t, err, errWrite)
	_, err = b.ImportData(ctx, model.StoreTasks, `[{"id":"x"}]`)
	assert.ErrorIs(t, err, errWrite)

	all, err := b.GetAll(ctx, model.StoreTasks)
	require.NoError(t, err)
	assert.Equal(t, []model.Record{{"id": "t1", "status": "pending"}}, all)

	files.fail = false
	_, err = b.Create(ctx, model.StoreTasks, model.Record{"id": "t2"})
	require.NoError(t, err, "position map must survive the rollbacks")
	got, err := b.Get(ctx, model.StoreTasks, "t2")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestInsertionOrderAfterDelete(t *testing.T) {
	b := setupTestBackend(t, nil)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d"} {
		_, err := b.Create(ctx, model.StoreTags, model.Record{"id": id})
		require.NoError(t, err)
	}
	_, err := b.Delete(ctx, model.StoreTags, "b")
	require.NoError(t, err)
	ok, err := b.Update(ctx, model.StoreTags, "d", model.Record{"name": "dee"})
	require.NoError(t, err)
	require.True(t, ok)

	all, err := b.GetAll(ctx, model.StoreTags)
	require.NoError(t, err)
	var ids []string
	for _, r := range all {
		ids = append(ids, r.String("id"))
	}
	assert.Equal(t, []string{"a", "c", "d"}, ids)
	assert.Equal(t, "dee", all[2]["name"])
}

func TestRegistered(t *testing.T) {
	b, err := storage.New(Name, storage.Config{DataDir: "/d", Files: storage.NewFiles(afero.NewMemMapFs())})
	require.NoError(t, err)
	assert.Equal(t, "/d/taskmap/taskmap.json", b.Status().Location)
	require.NoError(t, b.Close())
}
