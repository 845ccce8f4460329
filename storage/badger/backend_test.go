package badger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/tenderscope/core"
	"github.com/poiesic/tenderscope/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, dim int) *Store {
	t.Helper()
	store, err := NewMemoryStore(dim)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testRecord(id, title string, now time.Time) *core.Record {
	return &core.Record{ID: id, Title: title, Organization: "Ministry", CreatedAt: now, UpdatedAt: now}
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "db")
	backend, err := OpenBackend(tmpDir, false)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	info, err := os.Stat(tmpDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOpenBackend_NotADirectory(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(tmpFile, []byte("x"), 0644))

	_, err := OpenBackend(tmpFile, false)
	assert.Error(t, err)
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)

	assert.False(t, backend.IsClosed())
	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())

	err = backend.WithTx(nil, false)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestOpen_PersistsDimension(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, store.Vectors().Dimension())
	require.NoError(t, store.Close())

	// A different configured dimension does not override the stored one.
	store, err = Open(dir, 5)
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, 3, store.Vectors().Dimension())
}

func TestOpen_InvalidDimension(t *testing.T) {
	_, err := NewMemoryStore(0)
	assert.ErrorIs(t, err, core.ErrInvalidDimension)
}

func TestDeleteKeys_Chunked(t *testing.T) {
	store := newTestStore(t, 2)
	ctx := context.Background()
	now := time.Now().UTC()

	records := make([]*core.Record, 0, deleteChunkSize+10)
	vectors := make([]*core.EmbeddingVector, 0, deleteChunkSize+10)
	for i := range deleteChunkSize + 10 {
		id := fmt.Sprintf("T-%04d", i)
		records = append(records, testRecord(id, "title", now))
		vectors = append(vectors, &core.EmbeddingVector{RecordID: id, Values: []float32{1, 0}})
	}
	require.NoError(t, store.Records().PutRecords(ctx, records...))
	written, err := store.Vectors().PutVectors(ctx, vectors...)
	require.NoError(t, err)
	require.Equal(t, len(vectors), written)

	deleted, err := store.Vectors().DeleteAllVectors(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(vectors), deleted)

	count, err := store.Vectors().CountVectors(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
