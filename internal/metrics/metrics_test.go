package metrics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manav03panchal/taskmap/internal/model"
	"github.com/manav03panchal/taskmap/internal/storage"
	"github.com/manav03panchal/taskmap/internal/storage/jsonfile"
	"github.com/manav03panchal/taskmap/internal/storage/storagetest"
)

func setupInstrumented(t *testing.T) *Backend {
	t.Helper()
	b := Instrument(jsonfile.New(model.DefaultSchema(), jsonfile.Options{}), New())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Backend {
		return setupInstrumented(t)
	})
}

func TestObserveCountsOperations(t *testing.T) {
	b := setupInstrumented(t)
	ctx := context.Background()

	_, err := b.Create(ctx, model.StoreTags, model.Record{"id": "a"})
	require.NoError(t, err)
	_, err = b.Create(ctx, model.StoreTags, model.Record{"id": "a"})
	require.ErrorIs(t, err, storage.ErrDuplicateKey)
	_, err = b.Get(ctx, model.StoreTags, "a")
	require.NoError(t, err)

	snap := b.Metrics().Snapshot()
	assert.Equal(t, uint64(2), snap.Operations[`taskmap_operations_total{backend="json",op="create",store="tags"}`])
	assert.Equal(t, uint64(1), snap.Operations[`taskmap_operations_total{backend="json",op="get",store="tags"}`])
	assert.Equal(t, int64(1), snap.ErrorsTotal)
	assert.Equal(t, int64(1), snap.ErrorsByCategory[CategoryDuplicate])
	assert.NotNil(t, snap.LastErrorAt)
	assert.Contains(t, snap.LastError, "duplicate")
}

func TestWritePrometheus(t *testing.T) {
	b := setupInstrumented(t)
	ctx := context.Background()

	_, err := b.ImportData(ctx, model.StoreTags, `[{"id":"a"},{"name":"no id"}]`)
	require.NoError(t, err)

	var buf bytes.Buffer
	b.Metrics().WritePrometheus(&buf)
	out := buf.String()
	assert.Contains(t, out, `taskmap_operations_total{backend="json",op="import",store="tags"} 1`)
	assert.Contains(t, out, `taskmap_batch_items_total{backend="json",op="import",store="tags",result="ok"} 1`)
	assert.Contains(t, out, `taskmap_batch_items_total{backend="json",op="import",store="tags",result="failed"} 1`)
	assert.Contains(t, out, `taskmap_operation_duration_seconds_bucket`)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("x: %w", storage.ErrDuplicateKey), CategoryDuplicate},
		{storage.ErrUnknownIndex, CategoryNotDeclared},
		{storage.Unavailable("badger", errors.New("locked")), CategoryUnavailable},
		{storage.ErrClosed, CategoryClosed},
		{context.Canceled, CategoryCanceled},
		{storage.ErrInvalidKey, CategoryInvalid},
		{errors.New("boom"), CategoryOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.err), tt.err.Error())
	}
}

func TestSnapshotOperationNamesSorted(t *testing.T) {
	snap := Snapshot{Operations: map[string]uint64{"b": 1, "a": 2}}
	assert.Equal(t, []string{"a", "b"}, snap.OperationNames())
}

func TestJSON(t *testing.T) {
	m := New()
	data, err := m.JSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"errors_total": 0`)
}
