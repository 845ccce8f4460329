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


package ingestion

import (
	"context"
	"log/slog"
	"time"

	"github.com/poiesic/tenderscope/core"
	"github.com/poiesic/tenderscope/storage"
)

// DefaultBatchSize is the number of records committed per transaction.
const DefaultBatchSize = 50

// Indexer receives every batch of records after it is committed.
type Indexer interface {
	IndexRecords(ctx context.Context, records []*core.Record) error
}

// Stats counts the outcome of one Upsert call.
type Stats struct {
	Seen    int // raw records received
	Created int
	Updated int
	Skipped int // discarded for a missing id or title
	Failed  int // refused by the store
}

// Upserter reconciles raw records into the record store.
type Upserter struct {
	records   storage.RecordRepository
	batchSize int
	indexer   Indexer
	now       func() time.Time
	logger    *slog.Logger
}

// UpserterOption configures an Upserter.
type UpserterOption func(*Upserter) error

// WithBatchSize sets the commit batch size. Values below 1 fall back to the default.
func WithBatchSize(size int) UpserterOption {
	return func(u *Upserter) error {
		if size < 1 {
			size = DefaultBatchSize
		}
		u.batchSize = size
		return nil
	}
}

// WithIndexer registers an index refreshed after every committed batch.
func WithIndexer(indexer Indexer) UpserterOption {
	return func(u *Upserter) error {
		u.indexer = indexer
		return nil
	}
}

// WithClock overrides the time source used for created-at and updated-at.
func WithClock(now func() time.Time) UpserterOption {
	return func(u *Upserter) error {
		if now != nil {
			u.now = now
		}
		return nil
	}
}

// WithUpserterLogger sets a custom logger.
// Default is slog.Default().
func WithUpserterLogger(logger *slog.Logger) UpserterOption {
	return func(u *Upserter) error {
		if logger == nil {
			logger = slog.Default()
		}
		u.logger = logger
		return nil
	}
}

// NewUpserter creates an Upserter over records.
func NewUpserter(records storage.RecordRepository, opts ...UpserterOption) (*Upserter, error) {
	if records == nil {
		return nil, ErrRecordRepositoryRequired
	}
	u := &Upserter{
		records:   records,
		batchSize: DefaultBatchSize,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(u); err != nil {
			return nil, err
		}
	}
	u.logger = u.logger.With("component", "upserter")
	return u, nil
}

// Upsert creates records for unseen ids and updates the rest.
// Raw records without an id or title are skipped. When a batch commit fails
// its records are committed one at a time, and only those the store still
// refuses are counted in Stats.Failed; later batches still run. The error is
// non-nil only when ctx ends before every batch was attempted.
func (u *Upserter) Upsert(ctx context.Context, raws []*core.RawRecord) (Stats, error) {
	stats := Stats{Seen: len(raws)}

	valid := make([]*core.RawRecord, 0, len(raws))
	for _, raw := range raws {
		if err := core.ValidateRawRecord(raw); err != nil {
			stats.Skipped++
			u.logger.Warn("skipping raw record", "err", err)
			continue
		}
		valid = append(valid, raw)
	}

	for start := 0; start < len(valid); start += u.batchSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		end := min(start+u.batchSize, len(valid))
		batch, err := u.commitBatch(ctx, valid[start:end])
		if err != nil {
			stats.Failed += end - start
			u.logger.Error("batch commit failed", "offset", start, "count", end-start, "err", err)
			continue
		}
		stats.Created += batch.Created
		stats.Updated += batch.Updated
		stats.Failed += batch.Failed
		u.logger.Debug("batch committed", "offset", start, "created", batch.Created,
			"updated", batch.Updated, "failed", batch.Failed)
	}

	u.logger.Info("upsert finished", "seen", stats.Seen, "created", stats.Created,
		"updated", stats.Updated, "skipped", stats.Skipped, "failed", stats.Failed)
	return stats, nil
}

func (u *Upserter) commitBatch(ctx context.Context, batch []*core.RawRecord) (Stats, error) {
	ids := make([]string, len(batch))
	for i, raw := range batch {
		ids[i] = raw.ID
	}
	existing, err := u.records.GetRecords(ctx, ids...)
	if err != nil {
		return Stats{}, err
	}

	byID := make(map[string]*core.Record, len(existing))
	for _, r := range existing {
		byID[r.ID] = r
	}

	now := u.now()
	counts := make(map[string]*Stats, len(batch))
	// A repeated id within one batch merges onto the pending record.
	for _, raw := range batch {
		c, ok := counts[raw.ID]
		if !ok {
			c = &Stats{}
			counts[raw.ID] = c
		}
		c.Seen++
		if record, ok := byID[raw.ID]; ok {
			record.Merge(raw, now)
			c.Updated++
			continue
		}
		byID[raw.ID] = core.NewRecord(raw, now)
		c.Created++
	}
	pending := make([]*core.Record, 0, len(counts))
	for _, id := range uniqueIDs(ids) {
		pending = append(pending, byID[id])
	}

	committed := pending
	if err := u.records.PutRecords(ctx, pending...); err != nil {
		u.logger.Warn("batch write failed, retrying per record", "count", len(pending), "err", err)
		committed = make([]*core.Record, 0, len(pending))
		for _, record := range pending {
			if err := u.records.PutRecords(ctx, record); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return Stats{}, ctxErr
				}
				u.logger.Error("failed to store record", "record_id", record.ID, "err", err)
				counts[record.ID].Failed = counts[record.ID].Seen
				continue
			}
			committed = append(committed, record)
		}
	}

	var stats Stats
	for _, c := range counts {
		if c.Failed > 0 {
			stats.Failed += c.Failed
			continue
		}
		stats.Created += c.Created
		stats.Updated += c.Updated
	}

	if u.indexer != nil && len(committed) > 0 {
		if err := u.indexer.IndexRecords(ctx, committed); err != nil {
			u.logger.Warn("failed to index committed records", "count", len(committed), "err", err)
		}
	}
	return stats, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
