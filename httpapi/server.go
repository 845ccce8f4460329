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


package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/tenderscope/core"
	"github.com/poiesic/tenderscope/embedder"
	"github.com/poiesic/tenderscope/search"
	"github.com/poiesic/tenderscope/storage"
)

// Searcher runs semantic queries.
type Searcher interface {
	Search(ctx context.Context, q search.Query) (*search.Response, error)
}

// KeywordSearcher returns record ids matching a keyword query.
type KeywordSearcher interface {
	Search(q string, limit int) ([]string, error)
}

// Ingester runs one ingestion cycle.
type Ingester interface {
	Run(ctx context.Context) (*core.IngestionRun, error)
}

// Generator embeds unvectored records in bounded groups.
type Generator interface {
	RunWith(ctx context.Context, batchSize, maxBatches int) (embedder.Result, error)
	Config() embedder.Config
}

// Regenerator rebuilds vectors.
type Regenerator interface {
	Run(ctx context.Context, staleOnly bool) (embedder.RegenerateResult, error)
}

// Migrator changes the vector dimension.
type Migrator interface {
	Migrate(ctx context.Context, dimension int) (*core.MigrationState, error)
	State(ctx context.Context) (*core.MigrationState, error)
}

// Deps are the components the server exposes. Records, Runs and Searcher are
// required; endpoints whose component is nil answer 501.
type Deps struct {
	Records     storage.RecordRepository
	Runs        storage.RunRepository
	Vectors     storage.VectorRepository
	Searcher    Searcher
	Keywords    KeywordSearcher
	Ingester    Ingester
	Generator   Generator
	Regenerator Regenerator
	Migrator    Migrator
}

// Server handles the JSON API.
type Server struct {
	deps         Deps
	defaultLimit int
	maxLimit     int
	logger       *slog.Logger

	// background runs one long operation at a time.
	background *ants.Pool
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

// Option is a functional option for configuring a Server.
type Option func(*Server) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithLimits sets the search limit used when a request gives none and the
// largest limit a request may ask for.
func WithLimits(defaultLimit, maxLimit int) Option {
	return func(s *Server) error {
		if defaultLimit < 1 || maxLimit < defaultLimit {
			return fmt.Errorf("%w: limits %d/%d", errInvalidParameter, defaultLimit, maxLimit)
		}
		s.defaultLimit = defaultLimit
		s.maxLimit = maxLimit
		return nil
	}
}

// NewServer creates a Server over deps.
func NewServer(deps Deps, opts ...Option) (*Server, error) {
	if deps.Records == nil {
		return nil, ErrRecordsRequired
	}
	if deps.Runs == nil {
		return nil, ErrRunsRequired
	}
	if deps.Searcher == nil {
		return nil, ErrSearcherRequired
	}

	s := &Server{
		deps:         deps,
		defaultLimit: 10,
		maxLimit:     300,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "httpapi")

	pool, err := ants.NewPool(1, ants.WithNonblocking(true), ants.WithPanicHandler(func(p any) {
		s.logger.Error("background operation panicked", "panic", p)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create background pool: %w", err)
	}
	s.background = pool
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s, nil
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/vector-search", s.handleVectorSearch)
	mux.HandleFunc("GET /api/tenders", s.handleListTenders)
	mux.HandleFunc("GET /api/tenders/{id}", s.handleGetTender)
	mux.HandleFunc("GET /api/logs", s.handleLogs)
	mux.HandleFunc("POST /api/trigger-scrape", s.handleTriggerScrape)
	mux.HandleFunc("GET /api/embeddings/status", s.handleEmbeddingStatus)
	mux.HandleFunc("POST /api/embeddings/generate", s.handleGenerate)
	mux.HandleFunc("POST /api/embeddings/regenerate", s.handleRegenerate)
	mux.HandleFunc("POST /api/embeddings/migrate", s.handleMigrate)
	mux.HandleFunc("GET /health", s.handleHealth)
	return s.recoverer(mux)
}

// Close cancels background operations and waits for them to stop.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
		s.background.Release()
	})
}

// runBackground starts op on the background pool. It fails with
// ErrOperationRunning while another operation is in flight.
func (s *Server) runBackground(name string, op func(ctx context.Context) error) error {
	s.wg.Add(1)
	err := s.background.Submit(func() {
		defer s.wg.Done()
		s.logger.Info("background operation started", "operation", name)
		if err := op(s.ctx); err != nil {
			s.logger.Error("background operation failed", "operation", name, "err", err)
			return
		}
		s.logger.Info("background operation finished", "operation", name)
	})
	if err != nil {
		s.wg.Done()
		if errors.Is(err, ants.ErrPoolOverload) {
			return ErrOperationRunning
		}
		return err
	}
	return nil
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				s.logger.Error("handler panicked", "path", r.URL.Path, "panic", p)
				writeError(w, http.StatusInternalServerError, errors.New("internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
