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


package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/tenderscope/core"
	"github.com/poiesic/tenderscope/storage"
)

// VectorRepository implements storage.VectorRepository for BadgerDB.
// Vectors are keyed by the id of the record that owns them.
type VectorRepository struct {
	backend *Backend
	logger  *slog.Logger

	mu        sync.RWMutex
	dimension int
}

var _ storage.VectorRepository = (*VectorRepository)(nil)

// NewVectorRepository creates a VectorRepository.
// The first open records dimension; later opens keep the stored dimension
// and log a warning when the requested one differs.
func NewVectorRepository(backend *Backend, dimension int) (*VectorRepository, error) {
	if err := core.ValidateDimension(dimension); err != nil {
		return nil, err
	}
	r := &VectorRepository{
		backend: backend,
		logger:  backend.logger.With("repository", "vectors"),
	}

	err := backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(dimensionKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			r.dimension = dimension
			if err := tx.Set([]byte(dimensionKey), storage.MarshalDimension(dimension)); err != nil {
				return err
			}
			return tx.Commit()
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			stored, err := storage.UnmarshalDimension(val)
			if err != nil {
				return err
			}
			r.dimension = stored
			return nil
		})
	}, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load vector dimension: %w", err)
	}

	if r.dimension != dimension {
		r.logger.Warn("stored vector dimension differs from configured dimension; run a migration",
			"stored", r.dimension, "configured", dimension)
	}
	return r, nil
}

// Dimension returns the length every stored vector must have.
func (r *VectorRepository) Dimension() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dimension
}

// PutVectors stores vectors for records that don't have one yet.
// The read lock is held for the whole write so a concurrent Resize cannot
// commit between the dimension check and the write.
func (r *VectorRepository) PutVectors(ctx context.Context, vectors ...*core.EmbeddingVector) (int, error) {
	if len(vectors) == 0 {
		return 0, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	dim := r.dimension
	for _, v := range vectors {
		if len(v.Values) != dim {
			return 0, fmt.Errorf("%w: record %s has %d values, want %d",
				storage.ErrDimensionMismatch, v.RecordID, len(v.Values), dim)
		}
	}

	written := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		// Reading meta:dim puts it in the read set; a resize committed by
		// another handle aborts this transaction with a conflict.
		stored, err := readDimension(tx)
		if err != nil {
			return err
		}
		if stored != dim {
			return fmt.Errorf("%w: store holds %d-value vectors, writing %d",
				storage.ErrDimensionMismatch, stored, dim)
		}
		for _, v := range vectors {
			if err := ctx.Err(); err != nil {
				return err
			}
			found, err := exists(tx, makeRecordKey(v.RecordID))
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("%w: record %s", storage.ErrNotFound, v.RecordID)
			}

			key := makeVectorKey(v.RecordID)
			present, err := exists(tx, key)
			if err != nil {
				return err
			}
			if present {
				continue
			}
			if v.CreatedAt.IsZero() {
				v.CreatedAt = time.Now().UTC()
			}
			if err := tx.Set(key, storage.MarshalVector(v)); err != nil {
				return err
			}
			written++
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}
	return written, nil
}

func readDimension(tx *badger.Txn) (int, error) {
	item, err := tx.Get([]byte(dimensionKey))
	if err != nil {
		return 0, err
	}
	var dim int
	err = item.Value(func(val []byte) error {
		dim, err = storage.UnmarshalDimension(val)
		return err
	})
	return dim, err
}

// GetVector retrieves the vector owned by a record.
func (r *VectorRepository) GetVector(ctx context.Context, recordID string) (*core.EmbeddingVector, error) {
	var result *core.EmbeddingVector
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readVector(tx, makeVectorKey(recordID))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// DeleteVectors removes the vectors owned by the given records.
func (r *VectorRepository) DeleteVectors(ctx context.Context, recordIDs ...string) (int, error) {
	var keys [][]byte
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range recordIDs {
			key := makeVectorKey(id)
			present, err := exists(tx, key)
			if err != nil {
				return err
			}
			if present {
				keys = append(keys, key)
			}
		}
		return nil
	}, false)
	if err != nil {
		return 0, err
	}
	return r.backend.deleteKeys(keys)
}

// DeleteAllVectors removes every vector.
func (r *VectorRepository) DeleteAllVectors(ctx context.Context) (int, error) {
	var keys [][]byte
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(ctx, tx, vectorPrefix, func(item *badger.Item) error {
			keys = append(keys, item.KeyCopy(nil))
			return nil
		})
	}, false)
	if err != nil {
		return 0, err
	}
	return r.backend.deleteKeys(keys)
}

// CountVectors returns the number of stored vectors.
func (r *VectorRepository) CountVectors(ctx context.Context) (int, error) {
	var count int
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		count, err = countPrefix(ctx, tx, vectorPrefix)
		return err
	}, false)
	return count, err
}

// Resize changes the dimension of an empty vector store.
func (r *VectorRepository) Resize(ctx context.Context, dimension int) error {
	if err := core.ValidateDimension(dimension); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		count, err := countPrefix(ctx, tx, vectorPrefix)
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: %d vectors stored", storage.ErrVectorsPresent, count)
		}
		if err := tx.Set([]byte(dimensionKey), storage.MarshalDimension(dimension)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return err
	}

	r.logger.Info("vector dimension changed", "from", r.dimension, "to", dimension)
	r.dimension = dimension
	return nil
}

// FindUnvectored returns valid records that have no vector yet.
func (r *VectorRepository) FindUnvectored(ctx context.Context, now time.Time, limit int) ([]*core.Record, error) {
	var results []*core.Record
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		err := scanPrefix(ctx, tx, recordPrefix, func(item *badger.Item) error {
			id := recordIDFromKey(item.Key())
			present, err := exists(tx, makeVectorKey(id))
			if err != nil || present {
				return err
			}
			record, err := itemRecord(item)
			if err != nil {
				return err
			}
			if !record.ValidAt(now) {
				return nil
			}
			results = append(results, record)
			if limit > 0 && len(results) >= limit {
				return errStopIteration
			}
			return nil
		})
		if errors.Is(err, errStopIteration) {
			return nil
		}
		return err
	}, false)
	return results, err
}

// CountUnvectored counts the records FindUnvectored would select.
func (r *VectorRepository) CountUnvectored(ctx context.Context, now time.Time) (int, error) {
	records, err := r.FindUnvectored(ctx, now, 0)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// FindExpired walks the deadline index up to now and keeps records that own a vector.
func (r *VectorRepository) FindExpired(ctx context.Context, now time.Time) ([]string, error) {
	var ids []string
	end := deadlineScanEnd(now)
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordDeadlinePrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := iter.Item().Key()
			if string(key) >= string(end) {
				break
			}
			id := idFromTimeIndexKey(recordDeadlinePrefix, key)
			present, err := exists(tx, makeVectorKey(id))
			if err != nil {
				return err
			}
			if !present {
				continue
			}
			// The index has microsecond resolution; confirm against the record.
			record, err := readRecord(tx, makeRecordKey(id))
			if err != nil {
				return err
			}
			if record != nil && record.ExpiredAt(now) {
				ids = append(ids, id)
			}
		}
		return nil
	}, false)
	return ids, err
}

// FindStale returns the ids of records whose vector fingerprint no longer
// matches their embedding text.
func (r *VectorRepository) FindStale(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(ctx, tx, vectorPrefix, func(item *badger.Item) error {
			vector, err := itemVector(item)
			if err != nil {
				return err
			}
			record, err := readRecord(tx, makeRecordKey(vector.RecordID))
			if err != nil {
				return err
			}
			if record == nil {
				return nil
			}
			if vector.Fingerprint != core.TextFingerprint(record.EmbeddingText()) {
				ids = append(ids, vector.RecordID)
			}
			return nil
		})
	}, false)
	return ids, err
}

// FindSimilar compares query against every stored vector.
// Ties are broken by record id so results are deterministic.
func (r *VectorRepository) FindSimilar(ctx context.Context, query []float32, filter storage.SimilarityFilter, limit int) ([]*core.SearchResult, error) {
	if limit <= 0 {
		return []*core.SearchResult{}, nil
	}
	if len(query) != r.Dimension() {
		return nil, fmt.Errorf("%w: query has %d values, want %d",
			storage.ErrDimensionMismatch, len(query), r.Dimension())
	}

	var results []*core.SearchResult
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(ctx, tx, vectorPrefix, func(item *badger.Item) error {
			vector, err := itemVector(item)
			if err != nil {
				return err
			}
			record, err := readRecord(tx, makeRecordKey(vectorIDFromKey(item.Key())))
			if err != nil {
				return err
			}
			if record == nil || !passesFilter(record, filter) {
				return nil
			}
			results = append(results, &core.SearchResult{
				Record:     record,
				Similarity: core.CosineSimilarity(query, vector.Values),
			})
			return nil
		})
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b *core.SearchResult) int {
		if a.Similarity > b.Similarity {
			return -1
		}
		if a.Similarity < b.Similarity {
			return 1
		}
		return strings.Compare(a.Record.ID, b.Record.ID)
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func passesFilter(record *core.Record, filter storage.SimilarityFilter) bool {
	if !filter.ValidAt.IsZero() && !record.ValidAt(filter.ValidAt) {
		return false
	}
	if filter.PublishedSince != nil {
		if record.PublishedAt == nil || record.PublishedAt.Before(*filter.PublishedSince) {
			return false
		}
	}
	return true
}
