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


package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/tenderscope/ai"
	"github.com/poiesic/tenderscope/core"
	"github.com/poiesic/tenderscope/storage"
)

// RecentWindow is the rolling window used by Query.RecentOnly.
const RecentWindow = 24 * time.Hour

// Query is a semantic search request.
type Query struct {
	Text       string
	Limit      int
	RecentOnly bool // keep only records published within RecentWindow
}

// Response echoes the query alongside its results.
type Response struct {
	Query      string
	Limit      int
	RecentOnly bool
	Results    []*core.SearchResult
	Count      int
}

// Engine ranks valid records by semantic similarity to a query.
type Engine struct {
	vectors  storage.VectorRepository
	embedder ai.Embedder
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithClock overrides the time source for the validity and recency filters.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) error {
		if now != nil {
			e.now = now
		}
		return nil
	}
}

// NewEngine creates a new search engine.
func NewEngine(vectors storage.VectorRepository, embedder ai.Embedder, opts ...Option) (*Engine, error) {
	if vectors == nil {
		return nil, ErrVectorRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	e := &Engine{
		vectors:  vectors,
		embedder: embedder,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.logger = e.logger.With("component", "search")
	return e, nil
}

// Search returns up to q.Limit records ordered by similarity, highest first.
func (e *Engine) Search(ctx context.Context, q Query) (*Response, error) {
	return e.SearchWithMonitor(ctx, q, nil)
}

// SearchWithMonitor is Search with stage callbacks.
// A limit of zero or less yields an empty response without contacting the
// embedding provider. Blank query text is searched as a zero vector.
func (e *Engine) SearchWithMonitor(ctx context.Context, q Query, monitor SearchMonitor) (*Response, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	monitor.Start(q)

	resp := &Response{
		Query:      q.Text,
		Limit:      q.Limit,
		RecentOnly: q.RecentOnly,
		Results:    []*core.SearchResult{},
	}
	if q.Limit <= 0 {
		monitor.Finish(resp.Results)
		return resp, nil
	}

	var vector []float32
	if strings.TrimSpace(q.Text) == "" {
		vector = core.ZeroVector(e.vectors.Dimension())
	} else {
		var err error
		vector, err = e.embedder.EmbedText(ctx, q.Text)
		if err != nil {
			e.logger.Error("error generating embedding for query", "query", q.Text, "err", err)
			return nil, fmt.Errorf("failed to embed query: %w", err)
		}
	}
	monitor.AfterEmbedding(vector)

	now := e.now()
	filter := storage.SimilarityFilter{ValidAt: now}
	if q.RecentOnly {
		since := now.Add(-RecentWindow)
		filter.PublishedSince = &since
	}

	results, err := e.vectors.FindSimilar(ctx, vector, filter, q.Limit)
	if err != nil {
		e.logger.Error("error querying for similar records", "err", err)
		return nil, fmt.Errorf("failed to rank vectors: %w", err)
	}

	// Raw cosine spans [-1, 1]; scores are reported in [0, 1].
	for _, r := range results {
		r.Similarity = core.ClampSimilarity(float64(r.Similarity))
	}

	resp.Results = results
	resp.Count = len(results)
	monitor.Finish(results)
	e.logger.Debug("search finished", "query", q.Text, "recent_only", q.RecentOnly, "count", resp.Count)
	return resp, nil
}
