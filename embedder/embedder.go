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
	"time"

	"github.com/poiesic/tenderscope/ai"
	"github.com/poiesic/tenderscope/storage"
)

// Result summarizes one embedding run.
type Result struct {
	Before  int // unvectored valid records before the run
	After   int // unvectored valid records after the run
	Created int // vectors stored
	Batches int // groups attempted
}

// BatchEmbedder fills in missing vectors for valid records.
type BatchEmbedder struct {
	vectors   storage.VectorRepository
	config    *Config
	processor *batchProcessor
	progress  Progress
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a BatchEmbedder.
type Option func(*BatchEmbedder) error

// WithConfig replaces the default Config.
func WithConfig(config *Config) Option {
	return func(b *BatchEmbedder) error {
		if config == nil {
			return nil
		}
		if err := config.Validate(); err != nil {
			return err
		}
		b.config = config
		return nil
	}
}

// WithProgress reports progress of every run to p.
func WithProgress(p Progress) Option {
	return func(b *BatchEmbedder) error {
		b.progress = p
		return nil
	}
}

// WithClock overrides the time source used for the validity predicate.
func WithClock(now func() time.Time) Option {
	return func(b *BatchEmbedder) error {
		if now != nil {
			b.now = now
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *BatchEmbedder) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger
		return nil
	}
}

// NewBatchEmbedder creates a BatchEmbedder storing into vectors.
func NewBatchEmbedder(vectors storage.VectorRepository, embedder ai.Embedder, opts ...Option) (*BatchEmbedder, error) {
	if vectors == nil {
		return nil, ErrVectorRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	b := &BatchEmbedder{
		vectors: vectors,
		config:  DefaultConfig(),
		now:     func() time.Time { return time.Now().UTC() },
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	b.logger = b.logger.With("component", "embedder")
	b.processor = &batchProcessor{
		vectors:        vectors,
		embedder:       embedder,
		maxRetries:     b.config.MaxRetries,
		retryBaseDelay: b.config.RetryDelay,
		now:            b.now,
		logger:         b.logger,
	}
	return b, nil
}

// Config returns the active configuration.
func (b *BatchEmbedder) Config() Config {
	return *b.config
}

// Run processes up to the configured number of groups.
func (b *BatchEmbedder) Run(ctx context.Context) (Result, error) {
	return b.RunWith(ctx, b.config.BatchSize, b.config.MaxBatches)
}

// RunWith processes up to maxBatches groups of batchSize records; maxBatches
// 0 means until no eligible record is left. The eligible set is re-queried
// before every group, so records that expire or were embedded elsewhere in
// the meantime are not touched. A group that stores nothing ends the run.
func (b *BatchEmbedder) RunWith(ctx context.Context, batchSize, maxBatches int) (Result, error) {
	if batchSize < 1 {
		return Result{}, fmt.Errorf("%w: batch size must be greater than 0", ErrInvalidConfig)
	}

	var result Result
	before, err := b.vectors.CountUnvectored(ctx, b.now())
	if err != nil {
		return result, fmt.Errorf("failed to count unvectored records: %w", err)
	}
	result.Before = before
	result.After = before
	if before == 0 {
		b.logger.Info("no records need embedding")
		return result, nil
	}

	b.logger.Info("starting embedding run", "pending", before, "batch_size", batchSize, "max_batches", maxBatches)
	if b.progress != nil {
		total := before
		if maxBatches > 0 {
			total = min(total, batchSize*maxBatches)
		}
		b.progress.Start(total)
		defer b.progress.Finish()
	}

	for maxBatches == 0 || result.Batches < maxBatches {
		if result.Batches > 0 && b.config.Delay > 0 {
			if err := sleep(ctx, b.config.Delay); err != nil {
				return result, err
			}
		}

		records, err := b.vectors.FindUnvectored(ctx, b.now(), batchSize)
		if err != nil {
			return result, fmt.Errorf("failed to select records: %w", err)
		}
		if len(records) == 0 {
			break
		}

		result.Batches++
		stored, err := b.processor.process(ctx, records)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			b.logger.Error("embedding group failed", "batch", result.Batches, "count", len(records), "err", err)
		}
		result.Created += stored
		if b.progress != nil {
			b.progress.Increment(stored)
		}
		b.logger.Debug("embedding group done", "batch", result.Batches, "stored", stored)
		if stored == 0 {
			break
		}
	}

	after, err := b.vectors.CountUnvectored(ctx, b.now())
	if err != nil {
		return result, fmt.Errorf("failed to count unvectored records: %w", err)
	}
	result.After = after

	b.logger.Info("embedding run finished", "created", result.Created, "batches", result.Batches,
		"before", result.Before, "after", result.After)
	return result, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
