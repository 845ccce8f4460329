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
	"github.com/poiesic/tenderscope/core"
	"github.com/poiesic/tenderscope/storage"
)

// batchProcessor embeds and stores one group of records.
type batchProcessor struct {
	vectors        storage.VectorRepository
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
	now            func() time.Time
	logger         *slog.Logger
}

// process embeds records with a single provider call and stores the vectors.
// Records with empty text get a zero vector without reaching the provider.
// A provider failure fails the whole group and stores nothing; a record whose
// vector cannot be validated or stored is skipped. Returns the number stored.
func (bp *batchProcessor) process(ctx context.Context, records []*core.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	dim := bp.vectors.Dimension()
	texts := make([]string, len(records))
	var pending []int // indexes of records that need the provider
	for i, record := range records {
		texts[i] = record.EmbeddingText()
		if texts[i] != "" {
			pending = append(pending, i)
		}
	}

	values := make([][]float32, len(records))
	if len(pending) > 0 {
		input := make([]string, len(pending))
		for j, i := range pending {
			input[j] = texts[i]
		}

		var embeddings [][]float32
		err := RetryWithBackoff(ctx, func(ctx context.Context) error {
			var err error
			embeddings, err = bp.embedder.EmbedTexts(ctx, input)
			return err
		}, bp.maxRetries, bp.retryBaseDelay)
		if err != nil {
			return 0, fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
		}
		if len(embeddings) != len(pending) {
			return 0, fmt.Errorf("%w: expected %d, got %d", ai.ErrResultCount, len(pending), len(embeddings))
		}
		for j, i := range pending {
			values[i] = NormalizeVector(embeddings[j])
		}
	}

	now := bp.now()
	vectors := make([]*core.EmbeddingVector, 0, len(records))
	for i, record := range records {
		v := values[i]
		if texts[i] == "" {
			v = core.ZeroVector(dim)
		}
		if err := core.ValidateVector(v, dim); err != nil {
			bp.logger.Error("skipping record with invalid embedding", "record_id", record.ID, "err", err)
			continue
		}
		vectors = append(vectors, &core.EmbeddingVector{
			RecordID:    record.ID,
			Values:      v,
			Fingerprint: core.TextFingerprint(texts[i]),
			CreatedAt:   now,
		})
	}

	stored, err := bp.vectors.PutVectors(ctx, vectors...)
	if err == nil {
		return stored, nil
	}

	// The group write failed as a unit; store one by one so a single bad
	// record only costs itself.
	bp.logger.Warn("group store failed, retrying per record", "count", len(vectors), "err", err)
	stored = 0
	for _, v := range vectors {
		n, err := bp.vectors.PutVectors(ctx, v)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return stored, ctxErr
			}
			bp.logger.Error("failed to store embedding", "record_id", v.RecordID, "err", err)
			continue
		}
		stored += n
	}
	return stored, nil
}
