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


package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/poiesic/tenderscope"
	"github.com/poiesic/tenderscope/config"
	"github.com/poiesic/tenderscope/core"
	"github.com/poiesic/tenderscope/embedder"
	"github.com/poiesic/tenderscope/fetcher"
	"github.com/poiesic/tenderscope/httpapi"
	"github.com/poiesic/tenderscope/search"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

const configKey = "config"

// setup loads the configuration and installs the default logger.
func setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if level := c.String("log-level"); level != "" {
		cfg.Logging.Level = level
	}

	level, err := config.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata[configKey] = cfg
	return nil
}

func loadedConfig(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata[configKey].(*config.Config); ok {
		return cfg
	}
	return config.DefaultConfig()
}

// openPipeline validates the configuration and opens the pipeline.
func openPipeline(ctx context.Context, c *cli.Context, opts ...tenderscope.Option) (*tenderscope.Pipeline, error) {
	cfg := loadedConfig(c)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p, err := tenderscope.Open(ctx, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open pipeline: %w", err)
	}
	return p, nil
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := openPipeline(ctx, c)
	if err != nil {
		return err
	}
	defer p.Close()
	cfg := p.Config()

	engine, err := p.NewEngine()
	if err != nil {
		return err
	}
	cycle, err := p.NewCycle()
	if err != nil {
		return err
	}
	generator, err := p.NewBatchEmbedder()
	if err != nil {
		return err
	}
	regenerator, err := p.NewRegenerator()
	if err != nil {
		return err
	}
	migrator, err := p.NewMigrator()
	if err != nil {
		return err
	}
	if state, err := migrator.State(ctx); err == nil && state.Phase != core.MigrationReady {
		slog.Warn("dimension migration was interrupted; run `tenderscope migrate --resume`",
			"phase", state.Phase, "dimension", state.Dimension)
	}

	api, err := httpapi.NewServer(httpapi.Deps{
		Records:     p.Store().Records(),
		Runs:        p.Store().Runs(),
		Vectors:     p.Store().Vectors(),
		Searcher:    engine,
		Keywords:    p.Keywords(),
		Ingester:    cycle,
		Generator:   generator,
		Regenerator: regenerator,
		Migrator:    migrator,
	}, httpapi.WithLimits(cfg.Search.DefaultLimit, cfg.Search.MaxLimit))
	if err != nil {
		return err
	}
	defer api.Close()

	if !c.Bool("no-scheduler") {
		sched, err := p.NewScheduler()
		if err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer sched.Stop()
	}

	addr := cfg.Server.Addr
	if c.String("addr") != "" {
		addr = c.String("addr")
	}
	server := &http.Server{
		Addr:         addr,
		Handler:      api.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

func scrapeCommand(c *cli.Context) error {
	p, err := openPipeline(c.Context, c)
	if err != nil {
		return err
	}
	defer p.Close()

	cycle, err := p.NewCycle()
	if err != nil {
		return err
	}
	return runCycle(c.Context, cycle.Run)
}

func importCommand(c *cli.Context) error {
	p, err := openPipeline(c.Context, c)
	if err != nil {
		return err
	}
	defer p.Close()

	fc := p.Config().Fetcher
	f := fetcher.NewFileFetcher(c.String("file"), fc.BaseURL, fc.DetailURLTemplate, slog.Default())
	cycle, err := p.NewCycleWith(f)
	if err != nil {
		return err
	}
	return runCycle(c.Context, cycle.Run)
}

func runCycle(ctx context.Context, run func(context.Context) (*core.IngestionRun, error)) error {
	result, err := run(ctx)
	if result != nil {
		fmt.Fprintf(os.Stderr, "Run %s: %s\n", result.ID, result.Status)
		fmt.Fprintf(os.Stderr, "%s\n", result.Message)
	}
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	return nil
}

func embedCommand(c *cli.Context) error {
	p, err := openPipeline(c.Context, c)
	if err != nil {
		return err
	}
	defer p.Close()

	be, err := p.NewBatchEmbedder(embedder.WithProgress(newBarProgress(os.Stderr, "Embedding")))
	if err != nil {
		return err
	}
	cfg := be.Config()
	batchSize, maxBatches := cfg.BatchSize, cfg.MaxBatches
	if c.Int("batch-size") > 0 {
		batchSize = c.Int("batch-size")
	}
	if c.Int("max-batches") >= 0 {
		maxBatches = c.Int("max-batches")
	}

	result, err := be.RunWith(c.Context, batchSize, maxBatches)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}
	printResult(result)
	return nil
}

func printResult(result embedder.Result) {
	fmt.Fprintf(os.Stderr, "Unvectored before: %d\n", result.Before)
	fmt.Fprintf(os.Stderr, "Vectors created:   %d (%d groups)\n", result.Created, result.Batches)
	fmt.Fprintf(os.Stderr, "Unvectored after:  %d\n", result.After)
}

func reapCommand(c *cli.Context) error {
	p, err := openPipeline(c.Context, c)
	if err != nil {
		return err
	}
	defer p.Close()

	r, err := p.NewReaper()
	if err != nil {
		return err
	}
	removed, err := r.Run(c.Context)
	if err != nil {
		return fmt.Errorf("reaping failed: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Removed %d expired vectors\n", removed)
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("a query is required")
	}

	p, err := openPipeline(c.Context, c)
	if err != nil {
		return err
	}
	defer p.Close()

	engine, err := p.NewEngine()
	if err != nil {
		return err
	}
	resp, err := engine.Search(c.Context, search.Query{
		Text:       query,
		Limit:      c.Int("limit"),
		RecentOnly: c.Bool("today-only"),
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	for _, result := range resp.Results {
		fmt.Printf("%.4f  %-12s  %s\n", result.Similarity, result.Record.ID, result.Record.Title)
		fmt.Printf("        %s | %s\n", result.Record.Organization, result.Record.SourceURL)
	}
	fmt.Fprintf(os.Stderr, "%d results\n", resp.Count)
	return nil
}

func regenerateCommand(c *cli.Context) error {
	p, err := openPipeline(c.Context, c)
	if err != nil {
		return err
	}
	defer p.Close()

	r, err := p.NewRegenerator(embedder.WithProgress(newBarProgress(os.Stderr, "Regenerating")))
	if err != nil {
		return err
	}
	result, err := r.Run(c.Context, c.Bool("stale-only"))
	if err != nil {
		return fmt.Errorf("regeneration failed: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Vectors deleted:   %d\n", result.Deleted)
	printResult(result.Result)
	return nil
}

func migrateCommand(c *cli.Context) error {
	if !c.Bool("resume") && c.Int("dimension") <= 0 {
		return fmt.Errorf("--dimension is required unless --resume is set")
	}

	p, err := openPipeline(c.Context, c)
	if err != nil {
		return err
	}
	defer p.Close()

	m, err := p.NewMigrator(embedder.WithProgress(newBarProgress(os.Stderr, "Rebuilding")))
	if err != nil {
		return err
	}

	var state *core.MigrationState
	if c.Bool("resume") {
		state, err = m.Resume(c.Context)
	} else {
		fmt.Fprintf(os.Stderr, "Migrating from dimension %d to %d\n", p.Store().Vectors().Dimension(), c.Int("dimension"))
		state, err = m.Migrate(c.Context, c.Int("dimension"))
	}
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	fmt.Fprintf(os.Stderr, "%s: %s\n", state.Phase, state.Message)
	if p.Config().Embedding.Dimension != state.Dimension {
		fmt.Fprintf(os.Stderr, "Set embedding.dimension to %d in %s\n", state.Dimension, c.String("config"))
	}
	return nil
}

func runsCommand(c *cli.Context) error {
	p, err := openPipeline(c.Context, c)
	if err != nil {
		return err
	}
	defer p.Close()

	runs, err := p.Store().Runs().ListRuns(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}
	for _, run := range runs {
		fmt.Printf("%s  %-8s  seen=%-4d new=%-4d updated=%-4d  %s\n",
			run.StartedAt.Format("2006-01-02 15:04:05"), run.Status, run.Seen, run.Created, run.Updated, run.Message)
	}
	return nil
}

func configInitCommand(c *cli.Context) error {
	path := c.String("config")
	if _, err := os.Stat(path); err == nil && !c.Bool("force") {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.DefaultConfig().Save(path); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Wrote %s\n", path)
	return nil
}

func configShowCommand(c *cli.Context) error {
	cfg := *loadedConfig(c)
	if cfg.Embedding.Token != "" {
		cfg.Embedding.Token = "********"
	}
	if cfg.Storage.Postgres.DSN != "" {
		cfg.Storage.Postgres.DSN = "********"
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}
