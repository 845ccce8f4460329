package embedder

import (
	"context"
	"testing"

	"github.com/poiesic/tenderscope/ai/mock"
	"github.com/poiesic/tenderscope/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegenerator_All(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	putRecords(t, store, record("A", nil), record("B", nil), record("C", nil))

	emb := mock.NewMockEmbedder(testDim)
	b := newTestEmbedder(t, store, emb, &Config{BatchSize: 2, MaxBatches: 1, MaxRetries: 1})
	_, err := b.Run(ctx)
	require.NoError(t, err)

	r, err := NewRegenerator(b)
	require.NoError(t, err)

	result, err := r.Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Deleted)
	assert.Equal(t, 3, result.Created, "regeneration is not bounded by MaxBatches")
	assert.Equal(t, 0, result.After)
}

func TestRegenerator_StaleOnly(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	putRecords(t, store, record("A", nil), record("B", nil))

	emb := mock.NewMockEmbedder(testDim)
	b := newTestEmbedder(t, store, emb, &Config{BatchSize: 10, MaxRetries: 1})
	_, err := b.Run(ctx)
	require.NoError(t, err)

	changed := record("A", nil)
	changed.Title = "Construction of a new hospital wing"
	putRecords(t, store, changed)

	r, err := NewRegenerator(b)
	require.NoError(t, err)
	result, err := r.Run(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, 1, result.Created)

	v, err := store.Vectors().GetVector(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, core.TextFingerprint(changed.EmbeddingText()), v.Fingerprint)

	stale, err := store.Vectors().FindStale(ctx)
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestNewRegenerator_RequiresEmbedder(t *testing.T) {
	_, err := NewRegenerator(nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
}
