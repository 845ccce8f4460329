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


package embedder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/tenderscope/ai"
	"github.com/poiesic/tenderscope/core"
	"github.com/poiesic/tenderscope/storage"
)

// EmbedderFactory returns an embedder producing vectors of the given dimension.
type EmbedderFactory func(dimension int) (ai.Embedder, error)

// Migrator changes the vector dimension of a store.
//
// A migration passes through DRAINED (every vector deleted), RESIZED (store
// accepts the new dimension) and REBUILDING (vectors regenerated) before
// returning to READY. The phase is persisted after every transition, so an
// interrupted migration continues from where it stopped.
type Migrator struct {
	vectors    storage.VectorRepository
	migrations storage.MigrationRepository
	factory    EmbedderFactory
	opts       []Option
	logger     *slog.Logger
}

// NewMigrator creates a Migrator. opts configure the BatchEmbedder used for
// the rebuild phase.
func NewMigrator(vectors storage.VectorRepository, migrations storage.MigrationRepository, factory EmbedderFactory, opts ...Option) (*Migrator, error) {
	if vectors == nil {
		return nil, ErrVectorRepositoryRequired
	}
	if migrations == nil {
		return nil, ErrMigrationRepositoryRequired
	}
	if factory == nil {
		return nil, ErrEmbedderRequired
	}

	// Resolve the logger the rebuild embedder would use.
	probe := &BatchEmbedder{logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(probe); err != nil {
			return nil, err
		}
	}

	return &Migrator{
		vectors:    vectors,
		migrations: migrations,
		factory:    factory,
		opts:       opts,
		logger:     probe.logger.With("component", "migrator"),
	}, nil
}

// State returns the persisted migration state, or READY at the current
// dimension if none was recorded.
func (m *Migrator) State(ctx context.Context) (*core.MigrationState, error) {
	state, err := m.migrations.LoadMigrationState(ctx)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = &core.MigrationState{Phase: core.MigrationReady, Dimension: m.vectors.Dimension()}
	}
	return state, nil
}

// Migrate moves the store to dimension. Migrating to the current dimension
// is a no-op. Returns ErrMigrationInProgress if an earlier migration did not
// finish; use Resume for that.
func (m *Migrator) Migrate(ctx context.Context, dimension int) (*core.MigrationState, error) {
	if err := core.ValidateDimension(dimension); err != nil {
		return nil, err
	}

	state, err := m.State(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load migration state: %w", err)
	}
	if state.Phase != core.MigrationReady {
		return state, fmt.Errorf("%w: %s to %d", ErrMigrationInProgress, state.Phase, state.Dimension)
	}
	if current := m.vectors.Dimension(); current == dimension {
		m.logger.Info("vector store already at requested dimension", "dimension", dimension)
		return state, nil
	}

	state = &core.MigrationState{
		Dimension:         dimension,
		PreviousDimension: m.vectors.Dimension(),
	}
	m.logger.Info("starting dimension migration", "from", state.PreviousDimension, "to", dimension)
	return m.advance(ctx, state)
}

// Resume continues an unfinished migration. Returns the state unchanged when
// nothing is in progress.
func (m *Migrator) Resume(ctx context.Context) (*core.MigrationState, error) {
	state, err := m.State(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load migration state: %w", err)
	}
	if state.Phase == core.MigrationReady {
		return state, nil
	}
	m.logger.Info("resuming dimension migration", "phase", state.Phase, "to", state.Dimension)
	return m.advance(ctx, state)
}

func (m *Migrator) advance(ctx context.Context, state *core.MigrationState) (*core.MigrationState, error) {
	if state.Phase == "" {
		deleted, err := m.vectors.DeleteAllVectors(ctx)
		if err != nil {
			return state, fmt.Errorf("failed to drain vectors: %w", err)
		}
		if err := m.save(ctx, state, core.MigrationDrained, fmt.Sprintf("deleted %d vectors", deleted)); err != nil {
			return state, err
		}
	}

	if state.Phase == core.MigrationDrained {
		// Vectors written by a concurrent run since draining would block Resize.
		if _, err := m.vectors.DeleteAllVectors(ctx); err != nil {
			return state, fmt.Errorf("failed to drain vectors: %w", err)
		}
		if m.vectors.Dimension() != state.Dimension {
			if err := m.vectors.Resize(ctx, state.Dimension); err != nil {
				return state, fmt.Errorf("failed to resize vector store: %w", err)
			}
		}
		if err := m.save(ctx, state, core.MigrationResized, ""); err != nil {
			return state, err
		}
	}

	if state.Phase == core.MigrationResized {
		if err := m.save(ctx, state, core.MigrationRebuilding, ""); err != nil {
			return state, err
		}
	}

	if state.Phase == core.MigrationRebuilding {
		embedder, err := m.factory(state.Dimension)
		if err != nil {
			return state, fmt.Errorf("failed to create embedder: %w", err)
		}
		batch, err := NewBatchEmbedder(m.vectors, embedder, m.opts...)
		if err != nil {
			return state, err
		}
		result, err := batch.RunWith(ctx, batch.config.BatchSize, 0)
		if err != nil {
			return state, fmt.Errorf("failed to rebuild vectors: %w", err)
		}
		msg := fmt.Sprintf("rebuilt %d vectors, %d records pending", result.Created, result.After)
		if err := m.save(ctx, state, core.MigrationReady, msg); err != nil {
			return state, err
		}
		m.logger.Info("dimension migration finished", "dimension", state.Dimension,
			"created", result.Created, "pending", result.After)
	}

	return state, nil
}

func (m *Migrator) save(ctx context.Context, state *core.MigrationState, phase core.MigrationPhase, message string) error {
	state.Phase = phase
	state.Message = message
	if err := m.migrations.SaveMigrationState(ctx, state); err != nil {
		return fmt.Errorf("failed to record migration phase %s: %w", phase, err)
	}
	m.logger.Debug("migration phase recorded", "phase", phase, "dimension", state.Dimension)
	return nil
}
