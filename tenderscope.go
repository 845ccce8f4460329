// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package tenderscope wires the listing pipeline together: a store, an
// embedding provider, a keyword index and the components that ingest, embed,
// reap and search records.
package tenderscope

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/poiesic/tenderscope/ai"
	"github.com/poiesic/tenderscope/ai/openai"
	"github.com/poiesic/tenderscope/config"
	"github.com/poiesic/tenderscope/embedder"
	"github.com/poiesic/tenderscope/fetcher"
	"github.com/poiesic/tenderscope/ingestion"
	"github.com/poiesic/tenderscope/reaper"
	"github.com/poiesic/tenderscope/scheduler"
	"github.com/poiesic/tenderscope/search"
	"github.com/poiesic/tenderscope/storage"
	"github.com/poiesic/tenderscope/storage/badger"
	"github.com/poiesic/tenderscope/storage/postgres"
)

// ProviderFactory creates an embedding provider from a provider config.
type ProviderFactory func(cfg *ai.Config) (ai.Provider, error)

// Pipeline owns the store and provider shared by every component.
type Pipeline struct {
	config   *config.Config
	store    storage.Store
	fetcher  fetcher.Fetcher
	keywords *search.KeywordIndex
	embedder *liveEmbedder
	factory  ProviderFactory
	logger   *slog.Logger

	mu        sync.Mutex
	providers []ai.Provider
}

// Option configures a Pipeline.
type Option func(*pipelineOptions)

type pipelineOptions struct {
	store   storage.Store
	fetcher fetcher.Fetcher
	factory ProviderFactory
	logger  *slog.Logger
}

// WithStore uses an already opened store instead of the configured backend.
// The pipeline takes ownership and closes it.
func WithStore(store storage.Store) Option {
	return func(o *pipelineOptions) {
		o.store = store
	}
}

// WithFetcher replaces the HTTP fetcher built from the configuration.
func WithFetcher(f fetcher.Fetcher) Option {
	return func(o *pipelineOptions) {
		o.fetcher = f
	}
}

// WithProviderFactory replaces the OpenAI-compatible provider.
func WithProviderFactory(factory ProviderFactory) Option {
	return func(o *pipelineOptions) {
		o.factory = factory
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *pipelineOptions) {
		o.logger = logger
	}
}

// Open opens the configured store, creates the embedding provider for the
// store's dimension and loads the keyword index from stored records.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	options := &pipelineOptions{
		factory: openai.NewProvider,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	logger := options.logger

	store := options.store
	if store == nil {
		var err error
		if store, err = openStore(ctx, cfg); err != nil {
			return nil, err
		}
	}

	p := &Pipeline{
		config:  cfg,
		store:   store,
		factory: options.factory,
		logger:  logger,
	}

	// A dimension persisted by an earlier run or migration wins over the file.
	dim := store.Vectors().Dimension()
	if dim != cfg.Embedding.Dimension {
		logger.Warn("configured dimension differs from stored dimension, using stored",
			"configured", cfg.Embedding.Dimension, "stored", dim)
	}
	provider, err := p.newProvider(dim)
	if err != nil {
		store.Close()
		return nil, err
	}
	p.embedder = &liveEmbedder{current: provider.Embedder()}

	p.fetcher = options.fetcher
	if p.fetcher == nil {
		p.fetcher, err = fetcher.NewHTTPFetcher(&cfg.Fetcher, fetcher.WithLogger(logger))
		if err != nil {
			p.Close()
			return nil, err
		}
	}

	p.keywords, err = search.NewKeywordIndex(logger)
	if err != nil {
		p.Close()
		return nil, err
	}
	count, err := p.keywords.Rebuild(ctx, store.Records())
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to build keyword index: %w", err)
	}
	logger.Info("pipeline opened", "backend", cfg.Storage.Backend, "dimension", dim, "indexed", count)
	return p, nil
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendBadger, "":
		return badger.Open(cfg.Storage.Path, cfg.Embedding.Dimension)
	case config.BackendPostgres:
		return postgres.Open(ctx, cfg.Storage.Postgres, cfg.Embedding.Dimension)
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", config.ErrInvalidConfig, cfg.Storage.Backend)
	}
}

// newProvider creates a provider for dim and keeps it for Close.
func (p *Pipeline) newProvider(dim int) (ai.Provider, error) {
	aiCfg := p.config.Embedding
	aiCfg.Dimension = dim
	provider, err := p.factory(&aiCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}
	p.mu.Lock()
	p.providers = append(p.providers, provider)
	p.mu.Unlock()
	return provider, nil
}

// Close releases the providers, the keyword index and the store.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	providers := p.providers
	p.providers = nil
	p.mu.Unlock()

	var errs []error
	for _, provider := range providers {
		if err := provider.Close(); err != nil {
			p.logger.Error("error closing embedding provider", "err", err)
			errs = append(errs, err)
		}
	}
	if p.keywords != nil {
		if err := p.keywords.Close(); err != nil {
			p.logger.Error("error closing keyword index", "err", err)
			errs = append(errs, err)
		}
	}
	if err := p.store.Close(); err != nil {
		p.logger.Error("error closing store", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (p *Pipeline) Config() *config.Config {
	return p.config
}

func (p *Pipeline) Store() storage.Store {
	return p.store
}

// Keywords returns the in-memory keyword index over stored records.
func (p *Pipeline) Keywords() *search.KeywordIndex {
	return p.keywords
}

// Embedder returns the embedder for the store's current dimension. It follows
// dimension migrations.
func (p *Pipeline) Embedder() ai.Embedder {
	return p.embedder
}

// NewUpserter creates an upserter that also feeds the keyword index.
func (p *Pipeline) NewUpserter(opts ...ingestion.UpserterOption) (*ingestion.Upserter, error) {
	base := []ingestion.UpserterOption{
		ingestion.WithIndexer(p.keywords),
		ingestion.WithUpserterLogger(p.logger),
	}
	return ingestion.NewUpserter(p.store.Records(), append(base, opts...)...)
}

// NewCycle creates an ingestion cycle over the pipeline's fetcher.
func (p *Pipeline) NewCycle(opts ...ingestion.CycleOption) (*ingestion.Cycle, error) {
	return p.NewCycleWith(p.fetcher, opts...)
}

// NewCycleWith creates an ingestion cycle over f.
func (p *Pipeline) NewCycleWith(f fetcher.Fetcher, opts ...ingestion.CycleOption) (*ingestion.Cycle, error) {
	upserter, err := p.NewUpserter()
	if err != nil {
		return nil, err
	}
	base := []ingestion.CycleOption{
		ingestion.WithPages(p.config.Fetcher.PageSize, p.config.Fetcher.MaxPages),
		ingestion.WithCycleLogger(p.logger),
	}
	return ingestion.NewCycle(f, upserter, p.store.Runs(), append(base, opts...)...)
}

// NewBatchEmbedder creates a batch embedder using the configured batch settings.
func (p *Pipeline) NewBatchEmbedder(opts ...embedder.Option) (*embedder.BatchEmbedder, error) {
	return embedder.NewBatchEmbedder(p.store.Vectors(), p.embedder, p.embedderOptions(opts)...)
}

// NewRegenerator creates a regenerator around a new batch embedder.
func (p *Pipeline) NewRegenerator(opts ...embedder.Option) (*embedder.Regenerator, error) {
	be, err := p.NewBatchEmbedder(opts...)
	if err != nil {
		return nil, err
	}
	return embedder.NewRegenerator(be)
}

// NewMigrator creates a dimension migrator. When the rebuild phase starts,
// the pipeline switches to a provider for the new dimension.
func (p *Pipeline) NewMigrator(opts ...embedder.Option) (*embedder.Migrator, error) {
	factory := func(dim int) (ai.Embedder, error) {
		provider, err := p.newProvider(dim)
		if err != nil {
			return nil, err
		}
		p.embedder.swap(provider.Embedder())
		p.logger.Info("embedding provider switched", "dimension", dim)
		return p.embedder, nil
	}
	return embedder.NewMigrator(p.store.Vectors(), p.store.Migrations(), factory, p.embedderOptions(opts)...)
}

func (p *Pipeline) embedderOptions(opts []embedder.Option) []embedder.Option {
	batch := p.config.Batch
	base := []embedder.Option{
		embedder.WithConfig(&batch),
		embedder.WithLogger(p.logger),
	}
	return append(base, opts...)
}

func (p *Pipeline) NewReaper(opts ...reaper.Option) (*reaper.Reaper, error) {
	return reaper.NewReaper(p.store.Vectors(), append([]reaper.Option{reaper.WithLogger(p.logger)}, opts...)...)
}

func (p *Pipeline) NewEngine(opts ...search.Option) (*search.Engine, error) {
	return search.NewEngine(p.store.Vectors(), p.embedder, append([]search.Option{search.WithLogger(p.logger)}, opts...)...)
}

// NewScheduler creates a scheduler with the fetch, embed and reap jobs
// registered from the scheduler configuration.
func (p *Pipeline) NewScheduler() (*scheduler.Scheduler, error) {
	cycle, err := p.NewCycle()
	if err != nil {
		return nil, err
	}
	be, err := p.NewBatchEmbedder()
	if err != nil {
		return nil, err
	}
	r, err := p.NewReaper()
	if err != nil {
		return nil, err
	}

	cfg := p.config.Scheduler
	s, err := scheduler.NewScheduler(cfg.PoolSize, scheduler.WithLogger(p.logger))
	if err != nil {
		return nil, err
	}

	jobs := []struct {
		name   string
		config scheduler.JobConfig
		fn     scheduler.JobFunc
	}{
		{scheduler.JobFetch, cfg.Fetch, func(ctx context.Context) error {
			_, err := cycle.Run(ctx)
			return err
		}},
		{scheduler.JobEmbed, cfg.Embed, func(ctx context.Context) error {
			_, err := be.Run(ctx)
			return err
		}},
		{scheduler.JobReap, cfg.Reap, func(ctx context.Context) error {
			_, err := r.Run(ctx)
			return err
		}},
	}
	for _, j := range jobs {
		if err := s.Register(j.name, j.config, j.fn); err != nil {
			s.Stop()
			return nil, err
		}
	}
	return s, nil
}

// liveEmbedder forwards to the embedder of the current dimension.
type liveEmbedder struct {
	mu      sync.RWMutex
	current ai.Embedder
}

var _ ai.Embedder = (*liveEmbedder)(nil)

func (l *liveEmbedder) get() ai.Embedder {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

func (l *liveEmbedder) swap(e ai.Embedder) {
	l.mu.Lock()
	l.current = e
	l.mu.Unlock()
}

func (l *liveEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return l.get().EmbedText(ctx, text)
}

func (l *liveEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return l.get().EmbedTexts(ctx, texts)
}
