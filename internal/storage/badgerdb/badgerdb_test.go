package badgerdb

import (
	"context"
	"sync"
	"testing"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manav03panchal/taskmap/internal/model"
	"github.com/manav03panchal/taskmap/internal/storage"
	"github.com/manav03panchal/taskmap/internal/storage/storagetest"
)

func setupTestBackend(t *testing.T) *Backend {
	t.Helper()
	b := New(model.DefaultSchema(), Options{InMemory: true})
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Backend {
		return setupTestBackend(t)
	})
}

func TestPersistence(t *testing.T) {
	dir := t.TempDir()
	storagetest.RunPersistence(t, func(t *testing.T) storage.Backend {
		return New(model.DefaultSchema(), Options{Path: dir})
	})
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, storage.Registered(), Name)

	b, err := storage.New(Name, storage.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	assert.Equal(t, Name, b.Name())
	require.NoError(t, b.Init(context.Background()))
	assert.Equal(t, ":memory:", b.Status().Location)
}

func TestConcurrentInitUpgradesOnce(t *testing.T) {
	b := setupTestBackend(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, b.Init(context.Background()))
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), b.upgrades.Load())
}

func TestUpgradeRunsOnlyForNewerVersion(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first := New(model.DefaultSchema(), Options{Path: dir})
	require.NoError(t, first.Init(ctx))
	assert.Equal(t, int32(1), first.upgrades.Load())
	require.NoError(t, first.Close())

	same := New(model.DefaultSchema(), Options{Path: dir})
	require.NoError(t, same.Init(ctx))
	assert.Zero(t, same.upgrades.Load(), "same version must not upgrade")
	require.NoError(t, same.Close())

	older := model.DefaultSchema()
	older.Version = 0
	stale := New(older, Options{Path: dir})
	err := stale.Init(ctx)
	assert.ErrorIs(t, err, storage.ErrBackendUnavailable)
	assert.NotEmpty(t, stale.Status().Error)
	_ = stale.Close()
}

func TestUpgradeBackfillsNewIndex(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	v1 := model.Schema{Name: "test", Version: 1, Stores: []model.StoreConfig{
		{Name: "notes", KeyPath: "id"},
	}}
	first := New(v1, Options{Path: dir})
	_, err := first.Create(ctx, "notes", model.Record{"id": "n1", "topic": "go"})
	require.NoError(t, err)
	_, err = first.Create(ctx, "notes", model.Record{"id": "n2", "topic": "rust"})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	v2 := model.Schema{Name: "test", Version: 2, Stores: []model.StoreConfig{
		{Name: "notes", KeyPath: "id", Indexes: []model.IndexConfig{{Name: "topic", KeyPath: "topic"}}},
		{Name: "links", KeyPath: "id"},
	}}
	second := New(v2, Options{Path: dir})
	t.Cleanup(func() { _ = second.Close() })

	got, err := second.QueryByIndex(ctx, "notes", "topic", "go")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "n1", got[0]["id"])

	n, err := second.Count(ctx, "links")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIndexEntriesFollowRecords(t *testing.T) {
	b := setupTestBackend(t)
	ctx := context.Background()

	_, err := b.Create(ctx, model.StoreTasks, model.Record{"id": "t1", "status": "pending", "priority": 1})
	require.NoError(t, err)
	_, err = b.Update(ctx, model.StoreTasks, "t1", model.Record{"status": "completed"})
	require.NoError(t, err)
	_, err = b.Delete(ctx, model.StoreTasks, "t1")
	require.NoError(t, err)

	var keys [][]byte
	require.NoError(t, b.db.View(func(txn *badger.Txn) error {
		keys = listKeys(txn, indexStorePrefix(model.StoreTasks))
		return nil
	}))
	assert.Empty(t, keys, "no index entries may outlive their record")
}

func TestSplitIndexKey(t *testing.T) {
	enc, id, ok := splitIndexKey("3abc\x00tsk-1")
	require.True(t, ok)
	assert.Equal(t, "3abc", enc)
	assert.Equal(t, "tsk-1", id)

	_, _, ok = splitIndexKey("3abc")
	assert.False(t, ok)
}

func TestClosedBeforeInit(t *testing.T) {
	b := New(model.DefaultSchema(), Options{InMemory: true})
	require.NoError(t, b.Close())

	err := b.Init(context.Background())
	assert.ErrorIs(t, err, storage.ErrClosed)
}
