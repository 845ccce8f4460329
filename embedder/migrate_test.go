package embedder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/tenderscope/ai"
	"github.com/poiesic/tenderscope/ai/mock"
	"github.com/poiesic/tenderscope/core"
	"github.com/poiesic/tenderscope/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockFactory(dimension int) (ai.Embedder, error) {
	return mock.NewMockEmbedder(dimension), nil
}

func newTestMigrator(t *testing.T, store *badger.Store, factory EmbedderFactory) *Migrator {
	t.Helper()
	m, err := NewMigrator(store.Vectors(), store.Migrations(), factory,
		WithConfig(&Config{BatchSize: 2, MaxBatches: 1, MaxRetries: 1}),
		WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	return m
}

func seedVectors(t *testing.T, store *badger.Store) {
	t.Helper()
	putRecords(t, store, record("A", nil), record("B", nil), record("C", nil))
	b := newTestEmbedder(t, store, mock.NewMockEmbedder(testDim), &Config{BatchSize: 10, MaxRetries: 1})
	_, err := b.Run(context.Background())
	require.NoError(t, err)
}

func TestMigrator_Migrate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedVectors(t, store)

	m := newTestMigrator(t, store, mockFactory)
	state, err := m.Migrate(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, core.MigrationReady, state.Phase)
	assert.Equal(t, 8, state.Dimension)
	assert.Equal(t, testDim, state.PreviousDimension)

	assert.Equal(t, 8, store.Vectors().Dimension())
	count, err := store.Vectors().CountVectors(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	v, err := store.Vectors().GetVector(ctx, "A")
	require.NoError(t, err)
	assert.Len(t, v.Values, 8)

	persisted, err := store.Migrations().LoadMigrationState(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.MigrationReady, persisted.Phase)
}

func TestMigrator_SameDimensionIsNoop(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedVectors(t, store)

	m := newTestMigrator(t, store, mockFactory)
	state, err := m.Migrate(ctx, testDim)
	require.NoError(t, err)
	assert.Equal(t, core.MigrationReady, state.Phase)

	count, err := store.Vectors().CountVectors(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestMigrator_InvalidDimension(t *testing.T) {
	m := newTestMigrator(t, newTestStore(t), mockFactory)
	_, err := m.Migrate(context.Background(), 0)
	assert.ErrorIs(t, err, core.ErrInvalidDimension)
}

func TestMigrator_ResumeAfterInterruption(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedVectors(t, store)

	failing := func(int) (ai.Embedder, error) { return nil, errors.New("provider unavailable") }
	m := newTestMigrator(t, store, failing)

	state, err := m.Migrate(ctx, 8)
	require.Error(t, err)
	assert.Equal(t, core.MigrationRebuilding, state.Phase)

	// The store is already resized and empty.
	assert.Equal(t, 8, store.Vectors().Dimension())
	count, err := store.Vectors().CountVectors(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// A new migration is refused until the old one finishes.
	_, err = m.Migrate(ctx, 16)
	assert.ErrorIs(t, err, ErrMigrationInProgress)

	m = newTestMigrator(t, store, mockFactory)
	state, err = m.Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.MigrationReady, state.Phase)

	count, err = store.Vectors().CountVectors(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestMigrator_ResumeFromDrained(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedVectors(t, store)

	require.NoError(t, store.Migrations().SaveMigrationState(ctx, &core.MigrationState{
		Phase:             core.MigrationDrained,
		Dimension:         6,
		PreviousDimension: testDim,
	}))

	m := newTestMigrator(t, store, mockFactory)
	state, err := m.Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.MigrationReady, state.Phase)
	assert.Equal(t, 6, store.Vectors().Dimension())
}

func TestMigrator_ResumeWithNothingInProgress(t *testing.T) {
	m := newTestMigrator(t, newTestStore(t), mockFactory)
	state, err := m.Resume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.MigrationReady, state.Phase)
	assert.Equal(t, testDim, state.Dimension)
}
