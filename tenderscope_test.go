package tenderscope

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/tenderscope/ai"
	"github.com/poiesic/tenderscope/ai/mock"
	"github.com/poiesic/tenderscope/config"
	"github.com/poiesic/tenderscope/core"
	"github.com/poiesic/tenderscope/fetcher"
	"github.com/poiesic/tenderscope/scheduler"
	"github.com/poiesic/tenderscope/search"
	"github.com/poiesic/tenderscope/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pageFetcher struct {
	records []*core.RawRecord
}

func (f *pageFetcher) Fetch(ctx context.Context, page fetcher.Page) ([]*core.RawRecord, error) {
	if page.Number > 1 {
		return nil, nil
	}
	return f.records, nil
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func mockFactory(cfg *ai.Config) (ai.Provider, error) {
	return mock.NewMockProvider(cfg.Dimension), nil
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Embedding.Dimension = 4
	cfg.Batch.Delay = 0
	return cfg
}

func openMemory(t *testing.T, records ...*core.RawRecord) *Pipeline {
	t.Helper()
	return openMemoryWith(t, testConfig(), records...)
}

func openMemoryWith(t *testing.T, cfg *config.Config, records ...*core.RawRecord) *Pipeline {
	t.Helper()
	store, err := badger.NewMemoryStore(4)
	require.NoError(t, err)
	p, err := Open(context.Background(), cfg,
		WithStore(store),
		WithProviderFactory(mockFactory),
		WithFetcher(&pageFetcher{records: records}))
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func raw(id, title string) *core.RawRecord {
	return &core.RawRecord{
		ID:           id,
		Title:        title,
		Organization: "Ministry of Transport",
		Category:     "General",
		SourceURL:    "https://example.test/" + id,
	}
}

func TestOpen(t *testing.T) {
	t.Run("badger directory", func(t *testing.T) {
		cfg := testConfig()
		cfg.Storage.Path = t.TempDir()

		p, err := Open(context.Background(), cfg, WithProviderFactory(mockFactory))
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, 4, p.Store().Vectors().Dimension())
		assert.Same(t, cfg, p.Config())
		assert.NoError(t, p.Close())
	})

	t.Run("stored dimension wins", func(t *testing.T) {
		cfg := testConfig()
		cfg.Storage.Path = t.TempDir()
		p, err := Open(context.Background(), cfg, WithProviderFactory(mockFactory))
		require.NoError(t, err)
		require.NoError(t, p.Close())

		cfg.Embedding.Dimension = 8
		var requested int
		p, err = Open(context.Background(), cfg, WithProviderFactory(func(c *ai.Config) (ai.Provider, error) {
			requested = c.Dimension
			return mock.NewMockProvider(c.Dimension), nil
		}))
		require.NoError(t, err)
		defer p.Close()
		assert.Equal(t, 4, requested)
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := testConfig()
		cfg.Storage.Backend = "sqlite"
		_, err := Open(context.Background(), cfg, WithProviderFactory(mockFactory))
		assert.ErrorIs(t, err, config.ErrInvalidConfig)
	})

	t.Run("path is a file", func(t *testing.T) {
		cfg := testConfig()
		cfg.Storage.Path = "tenderscope_test.go"
		_, err := Open(context.Background(), cfg, WithProviderFactory(mockFactory))
		assert.Error(t, err)
	})
}

func TestPipeline_IngestEmbedSearch(t *testing.T) {
	ctx := context.Background()
	p := openMemory(t, raw("T-1", "Road maintenance"), raw("T-2", "Hospital cleaning"))

	cycle, err := p.NewCycle()
	require.NoError(t, err)
	run, err := cycle.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusSuccess, run.Status)
	assert.Equal(t, 2, run.Created)

	ids, err := p.Keywords().Search("hospital", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"T-2"}, ids)

	be, err := p.NewBatchEmbedder()
	require.NoError(t, err)
	result, err := be.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Before)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, result.After)

	engine, err := p.NewEngine()
	require.NoError(t, err)
	resp, err := engine.Search(ctx, search.Query{Text: "road", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Count)

	r, err := p.NewReaper()
	require.NoError(t, err)
	reaped, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, reaped)
}

func TestPipeline_OpenIndexesExistingRecords(t *testing.T) {
	ctx := context.Background()
	store, err := badger.NewMemoryStore(4)
	require.NoError(t, err)
	require.NoError(t, store.Records().PutRecords(ctx, core.NewRecord(raw("T-9", "Bridge inspection"), testNow)))

	p, err := Open(ctx, testConfig(), WithStore(store), WithProviderFactory(mockFactory))
	require.NoError(t, err)
	defer p.Close()

	count, err := p.Keywords().Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestPipeline_MigrateSwitchesEmbedder(t *testing.T) {
	ctx := context.Background()
	p := openMemory(t, raw("T-1", "Road maintenance"))

	cycle, err := p.NewCycle()
	require.NoError(t, err)
	_, err = cycle.Run(ctx)
	require.NoError(t, err)

	m, err := p.NewMigrator()
	require.NoError(t, err)
	state, err := m.Migrate(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, core.MigrationReady, state.Phase)
	assert.Equal(t, 8, p.Store().Vectors().Dimension())

	vec, err := p.Embedder().EmbedText(ctx, "road")
	require.NoError(t, err)
	assert.Len(t, vec, 8)

	stored, err := p.Store().Vectors().GetVector(ctx, "T-1")
	require.NoError(t, err)
	assert.Len(t, stored.Values, 8)
}

func TestPipeline_Scheduler(t *testing.T) {
	cfg := testConfig()
	cfg.Scheduler.Fetch.Enabled = false
	cfg.Scheduler.Embed.Enabled = false
	cfg.Scheduler.Reap.Enabled = false
	p := openMemoryWith(t, cfg, raw("T-1", "Road maintenance"))

	s, err := p.NewScheduler()
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	require.NoError(t, s.Trigger(scheduler.JobFetch))
	assert.ErrorIs(t, s.Trigger("unknown"), scheduler.ErrUnknownJob)
	require.Eventually(t, func() bool {
		return s.Results()[scheduler.JobFetch].Runs == 1
	}, 5*time.Second, 10*time.Millisecond)
	s.Stop()

	result := s.Results()[scheduler.JobFetch]
	assert.Equal(t, 1, result.Runs)
	assert.NoError(t, result.Err)

	count, err := p.Store().Records().CountRecords(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
