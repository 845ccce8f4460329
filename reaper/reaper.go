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


// Package reaper removes vectors whose records are past their submission deadline.
package reaper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/tenderscope/storage"
)

// ErrVectorRepositoryRequired is returned when a vector repository is not provided.
var ErrVectorRepositoryRequired = errors.New("vector repository required")

// Reaper deletes the vectors of expired records. Records themselves are kept.
type Reaper struct {
	vectors storage.VectorRepository
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Reaper.
type Option func(*Reaper) error

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Reaper) error {
		if now != nil {
			r.now = now
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reaper) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewReaper creates a Reaper over vectors.
func NewReaper(vectors storage.VectorRepository, opts ...Option) (*Reaper, error) {
	if vectors == nil {
		return nil, ErrVectorRepositoryRequired
	}
	r := &Reaper{
		vectors: vectors,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "reaper")
	return r, nil
}

// Run deletes every vector whose record deadline is strictly before now and
// returns the number deleted. Records without a deadline are never reaped.
// A failed delete is logged and the remaining vectors are still processed.
func (r *Reaper) Run(ctx context.Context) (int, error) {
	ids, err := r.vectors.FindExpired(ctx, r.now())
	if err != nil {
		return 0, fmt.Errorf("failed to find expired vectors: %w", err)
	}
	r.logger.Info("found expired vectors", "count", len(ids))

	deleted := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		n, err := r.vectors.DeleteVectors(ctx, id)
		if err != nil {
			r.logger.Error("failed to delete expired vector", "record_id", id, "err", err)
			continue
		}
		deleted += n
	}

	r.logger.Info("removed expired vectors", "count", deleted)
	return deleted, nil
}
