package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/poiesic/tenderscope/core"
	"github.com/poiesic/tenderscope/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorRepository_PutVectors(t *testing.T) {
	store := newTestStore(t, 3)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.Records().PutRecords(ctx, testRecord("T-1", "Road works", now)))

	t.Run("wrong dimension is rejected", func(t *testing.T) {
		_, err := store.Vectors().PutVectors(ctx, &core.EmbeddingVector{RecordID: "T-1", Values: []float32{1, 0}})
		assert.ErrorIs(t, err, storage.ErrDimensionMismatch)
	})

	t.Run("unknown record is rejected", func(t *testing.T) {
		_, err := store.Vectors().PutVectors(ctx, &core.EmbeddingVector{RecordID: "missing", Values: []float32{1, 0, 0}})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("existing vector is kept", func(t *testing.T) {
		written, err := store.Vectors().PutVectors(ctx, &core.EmbeddingVector{RecordID: "T-1", Values: []float32{1, 0, 0}})
		require.NoError(t, err)
		assert.Equal(t, 1, written)

		written, err = store.Vectors().PutVectors(ctx, &core.EmbeddingVector{RecordID: "T-1", Values: []float32{0, 1, 0}})
		require.NoError(t, err)
		assert.Zero(t, written)

		got, err := store.Vectors().GetVector(ctx, "T-1")
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 0, 0}, got.Values)
		assert.False(t, got.CreatedAt.IsZero())
	})
}

func TestVectorRepository_FindUnvectored(t *testing.T) {
	store := newTestStore(t, 2)
	ctx := context.Background()
	now := time.Now().UTC()

	open := testRecord("open", "open", now)
	undated := testRecord("undated", "undated", now)
	expired := testRecord("expired", "expired", now)
	expired.SubmissionDeadline = timePtr(now.Add(-time.Minute))
	open.SubmissionDeadline = timePtr(now.Add(time.Hour))
	done := testRecord("done", "done", now)
	require.NoError(t, store.Records().PutRecords(ctx, open, undated, expired, done))
	_, err := store.Vectors().PutVectors(ctx, &core.EmbeddingVector{RecordID: "done", Values: []float32{1, 1}})
	require.NoError(t, err)

	records, err := store.Vectors().FindUnvectored(ctx, now, 0)
	require.NoError(t, err)
	var ids []string
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []string{"open", "undated"}, ids)

	limited, err := store.Vectors().FindUnvectored(ctx, now, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	count, err := store.Vectors().CountUnvectored(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestVectorRepository_FindExpired(t *testing.T) {
	store := newTestStore(t, 2)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	past := testRecord("past", "past", now)
	past.SubmissionDeadline = timePtr(now.Add(-time.Hour))
	pastNoVector := testRecord("past-novec", "past", now)
	pastNoVector.SubmissionDeadline = timePtr(now.Add(-time.Hour))
	atNow := testRecord("now", "now", now)
	atNow.SubmissionDeadline = timePtr(now)
	future := testRecord("future", "future", now)
	future.SubmissionDeadline = timePtr(now.Add(time.Hour))
	require.NoError(t, store.Records().PutRecords(ctx, past, pastNoVector, atNow, future))

	_, err := store.Vectors().PutVectors(ctx,
		&core.EmbeddingVector{RecordID: "past", Values: []float32{1, 0}},
		&core.EmbeddingVector{RecordID: "now", Values: []float32{1, 0}},
		&core.EmbeddingVector{RecordID: "future", Values: []float32{1, 0}},
	)
	require.NoError(t, err)

	ids, err := store.Vectors().FindExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"past"}, ids)
}

func TestVectorRepository_FindSimilar(t *testing.T) {
	store := newTestStore(t, 2)
	ctx := context.Background()
	now := time.Now().UTC()

	r1 := testRecord("R1", "first", now)
	r1.PublishedAt = timePtr(now.Add(-2 * time.Hour))
	r2 := testRecord("R2", "second", now)
	r2.PublishedAt = timePtr(now.Add(-72 * time.Hour))
	closed := testRecord("R3", "closed", now)
	closed.SubmissionDeadline = timePtr(now.Add(-time.Hour))
	require.NoError(t, store.Records().PutRecords(ctx, r1, r2, closed))

	// Similarities to (1, 0): R2 = 0.9, R1 = 0.6, R3 = 1.0 but expired.
	_, err := store.Vectors().PutVectors(ctx,
		&core.EmbeddingVector{RecordID: "R1", Values: []float32{0.6, 0.8}},
		&core.EmbeddingVector{RecordID: "R2", Values: []float32{0.9, 0.43588989}},
		&core.EmbeddingVector{RecordID: "R3", Values: []float32{1, 0}},
	)
	require.NoError(t, err)

	query := []float32{1, 0}

	results, err := store.Vectors().FindSimilar(ctx, query, storage.SimilarityFilter{ValidAt: now}, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "R2", results[0].Record.ID)
	assert.InDelta(t, 0.9, results[0].Similarity, 1e-4)
	assert.Equal(t, "R1", results[1].Record.ID)
	assert.InDelta(t, 0.6, results[1].Similarity, 1e-4)

	since := now.Add(-24 * time.Hour)
	recent, err := store.Vectors().FindSimilar(ctx, query, storage.SimilarityFilter{ValidAt: now, PublishedSince: &since}, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "R1", recent[0].Record.ID)

	limited, err := store.Vectors().FindSimilar(ctx, query, storage.SimilarityFilter{ValidAt: now}, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := store.Vectors().FindSimilar(ctx, query, storage.SimilarityFilter{ValidAt: now}, 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = store.Vectors().FindSimilar(ctx, []float32{1, 0, 0}, storage.SimilarityFilter{}, 10)
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)
}

func TestVectorRepository_FindStale(t *testing.T) {
	store := newTestStore(t, 2)
	ctx := context.Background()
	now := time.Now().UTC()

	fresh := testRecord("fresh", "Road works", now)
	stale := testRecord("stale", "Bridge works", now)
	require.NoError(t, store.Records().PutRecords(ctx, fresh, stale))
	_, err := store.Vectors().PutVectors(ctx,
		&core.EmbeddingVector{RecordID: "fresh", Values: []float32{1, 0}, Fingerprint: core.TextFingerprint(fresh.EmbeddingText())},
		&core.EmbeddingVector{RecordID: "stale", Values: []float32{1, 0}, Fingerprint: core.TextFingerprint("something else")},
	)
	require.NoError(t, err)

	ids, err := store.Vectors().FindStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"stale"}, ids)
}

func TestVectorRepository_Resize(t *testing.T) {
	store := newTestStore(t, 2)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.Records().PutRecords(ctx, testRecord("T-1", "Road works", now)))
	_, err := store.Vectors().PutVectors(ctx, &core.EmbeddingVector{RecordID: "T-1", Values: []float32{1, 0}})
	require.NoError(t, err)

	err = store.Vectors().Resize(ctx, 4)
	assert.ErrorIs(t, err, storage.ErrVectorsPresent)
	assert.Equal(t, 2, store.Vectors().Dimension())

	deleted, err := store.Vectors().DeleteVectors(ctx, "T-1", "missing")
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	require.NoError(t, store.Vectors().Resize(ctx, 4))
	assert.Equal(t, 4, store.Vectors().Dimension())

	written, err := store.Vectors().PutVectors(ctx, &core.EmbeddingVector{RecordID: "T-1", Values: []float32{1, 0, 0, 0}})
	require.NoError(t, err)
	assert.Equal(t, 1, written)
}

func TestVectorRepository_PutVectorsChecksStoredDimension(t *testing.T) {
	store := newTestStore(t, 4)
	ctx := context.Background()
	require.NoError(t, store.Records().PutRecords(ctx, testRecord("T-1", "Road works", time.Now().UTC())))

	// Another handle resized the store after this one cached its dimension.
	require.NoError(t, store.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set([]byte(dimensionKey), storage.MarshalDimension(2)); err != nil {
			return err
		}
		return tx.Commit()
	}, true))

	_, err := store.Vectors().PutVectors(ctx, &core.EmbeddingVector{RecordID: "T-1", Values: []float32{1, 0, 0, 0}})
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)
	count, err := store.Vectors().CountVectors(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestVectorRepository_PutVectorsRacingResize(t *testing.T) {
	store := newTestStore(t, 4)
	ctx := context.Background()
	now := time.Now().UTC()

	const n = 20
	for i := range n {
		require.NoError(t, store.Records().PutRecords(ctx, testRecord(fmt.Sprintf("T-%d", i), "Road works", now)))
	}

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.Vectors().PutVectors(ctx, &core.EmbeddingVector{
				RecordID: fmt.Sprintf("T-%d", i), Values: []float32{1, 0, 0, 0},
			})
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for store.Vectors().Resize(ctx, 2) != nil {
			if _, err := store.Vectors().DeleteAllVectors(ctx); err != nil {
				return
			}
		}
	}()
	wg.Wait()

	dim := store.Vectors().Dimension()
	for i := range n {
		v, err := store.Vectors().GetVector(ctx, fmt.Sprintf("T-%d", i))
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		require.NoError(t, err)
		assert.Len(t, v.Values, dim)
	}
}
