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

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/poiesic/tenderscope/core"
	"github.com/poiesic/tenderscope/storage"
)

// rebuildBatchSize bounds the documents per bleve batch during Rebuild.
const rebuildBatchSize = 500

// KeywordIndex is an in-memory full-text index of records.
// It is safe for concurrent use.
type KeywordIndex struct {
	index  bleve.Index
	logger *slog.Logger
}

// indexedRecord is the document stored for each record.
type indexedRecord struct {
	Title           string
	Organization    string
	Category        string
	Activities      string
	ReferenceNumber string
	Location        string
}

func newIndexedRecord(r *core.Record) *indexedRecord {
	return &indexedRecord{
		Title:           r.Title,
		Organization:    r.Organization,
		Category:        r.Category,
		Activities:      r.Activities,
		ReferenceNumber: r.ReferenceNumber,
		Location:        r.Location,
	}
}

// NewKeywordIndex creates an empty in-memory index.
func NewKeywordIndex(logger *slog.Logger) (*KeywordIndex, error) {
	if logger == nil {
		logger = slog.Default()
	}
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create keyword index: %w", err)
	}
	return &KeywordIndex{
		index:  idx,
		logger: logger.With("component", "keyword_index"),
	}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("Title", text)
	doc.AddFieldMappingsAt("Organization", text)
	doc.AddFieldMappingsAt("Category", text)
	doc.AddFieldMappingsAt("Activities", text)
	doc.AddFieldMappingsAt("Location", text)
	doc.AddFieldMappingsAt("ReferenceNumber", text)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// IndexRecords adds or replaces records in the index.
func (k *KeywordIndex) IndexRecords(ctx context.Context, records []*core.Record) error {
	if len(records) == 0 {
		return nil
	}
	batch := k.index.NewBatch()
	for _, r := range records {
		if err := batch.Index(r.ID, newIndexedRecord(r)); err != nil {
			return fmt.Errorf("batch index %s: %w", r.ID, err)
		}
	}
	if err := k.index.Batch(batch); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Search returns the ids of up to limit records matching every term of q,
// best match first. A blank q matches nothing.
func (k *KeywordIndex) Search(q string, limit int) ([]string, error) {
	if limit <= 0 {
		return []string{}, nil
	}

	match := bleve.NewMatchQuery(q)
	match.SetOperator(query.MatchQueryOperatorAnd)
	req := bleve.NewSearchRequestOptions(match, limit, 0, false)

	res, err := k.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// Rebuild indexes every record in repo and returns the number indexed.
func (k *KeywordIndex) Rebuild(ctx context.Context, repo storage.RecordRepository) (int, error) {
	if repo == nil {
		return 0, ErrRecordRepositoryRequired
	}

	count := 0
	pending := make([]*core.Record, 0, rebuildBatchSize)
	flush := func() error {
		if err := k.IndexRecords(ctx, pending); err != nil {
			return err
		}
		count += len(pending)
		pending = pending[:0]
		return nil
	}

	err := repo.ForEachRecord(ctx, func(r *core.Record) error {
		pending = append(pending, r)
		if len(pending) == rebuildBatchSize {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	if err != nil {
		return count, fmt.Errorf("rebuild keyword index: %w", err)
	}

	k.logger.Info("keyword index rebuilt", "count", count)
	return count, nil
}

// Count returns the number of indexed records.
func (k *KeywordIndex) Count() (uint64, error) {
	return k.index.DocCount()
}

// Close releases the index.
func (k *KeywordIndex) Close() error {
	return k.index.Close()
}
