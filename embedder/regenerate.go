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
)

// RegenerateResult summarizes a regeneration.
type RegenerateResult struct {
	Deleted int
	Result
}

// Regenerator discards vectors and rebuilds them with the current embedder.
type Regenerator struct {
	embedder *BatchEmbedder
	logger   *slog.Logger
}

// NewRegenerator creates a Regenerator driving embedder.
func NewRegenerator(embedder *BatchEmbedder) (*Regenerator, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	return &Regenerator{
		embedder: embedder,
		logger:   embedder.logger.With("op", "regenerate"),
	}, nil
}

// Run deletes every vector, or with staleOnly only those whose source text
// changed since they were computed, then embeds until no eligible record is
// left.
func (r *Regenerator) Run(ctx context.Context, staleOnly bool) (RegenerateResult, error) {
	var out RegenerateResult
	vectors := r.embedder.vectors

	if staleOnly {
		ids, err := vectors.FindStale(ctx)
		if err != nil {
			return out, fmt.Errorf("failed to find stale vectors: %w", err)
		}
		if out.Deleted, err = vectors.DeleteVectors(ctx, ids...); err != nil {
			return out, fmt.Errorf("failed to delete stale vectors: %w", err)
		}
	} else {
		var err error
		if out.Deleted, err = vectors.DeleteAllVectors(ctx); err != nil {
			return out, fmt.Errorf("failed to delete vectors: %w", err)
		}
	}
	r.logger.Info("vectors deleted", "count", out.Deleted, "stale_only", staleOnly)

	result, err := r.embedder.RunWith(ctx, r.embedder.config.BatchSize, 0)
	out.Result = result
	return out, err
}
