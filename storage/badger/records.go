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
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/tenderscope/core"
	"github.com/poiesic/tenderscope/storage"
)

// RecordRepository implements storage.RecordRepository for BadgerDB.
type RecordRepository struct {
	backend *Backend
}

var _ storage.RecordRepository = (*RecordRepository)(nil)

// NewRecordRepository creates a new RecordRepository.
func NewRecordRepository(backend *Backend) *RecordRepository {
	return &RecordRepository{backend: backend}
}

// GetRecord retrieves a single record by natural id.
func (r *RecordRepository) GetRecord(ctx context.Context, id string) (*core.Record, error) {
	var result *core.Record
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readRecord(tx, makeRecordKey(id))
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

// GetRecords retrieves multiple records by natural id.
func (r *RecordRepository) GetRecords(ctx context.Context, ids ...string) ([]*core.Record, error) {
	var result []*core.Record
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			record, err := readRecord(tx, makeRecordKey(id))
			if err != nil {
				return err
			}
			if record != nil {
				result = append(result, record)
			}
		}
		return nil
	}, false)
	return result, err
}

// PutRecords creates or replaces records and keeps the time indexes current.
func (r *RecordRepository) PutRecords(ctx context.Context, records ...*core.Record) error {
	if len(records) == 0 {
		return nil
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, record := range records {
			key := makeRecordKey(record.ID)

			old, err := readRecord(tx, key)
			if err != nil {
				return err
			}
			if old != nil {
				if err := deleteRecordIndexes(tx, old); err != nil {
					return err
				}
			}

			if err := tx.Set(key, storage.MarshalRecord(record)); err != nil {
				return err
			}
			if err := setRecordIndexes(tx, record); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// DeleteRecords removes records, their indexes and their vectors.
func (r *RecordRepository) DeleteRecords(ctx context.Context, ids ...string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeRecordKey(id)
			record, err := readRecord(tx, key)
			if err != nil {
				return err
			}
			if record == nil {
				return storage.ErrNotFound
			}

			if err := deleteRecordIndexes(tx, record); err != nil {
				return err
			}
			if err := tx.Delete(makeVectorKey(id)); err != nil {
				return err
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// CountRecords returns the number of stored records.
func (r *RecordRepository) CountRecords(ctx context.Context) (int, error) {
	var count int
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		count, err = countPrefix(ctx, tx, recordPrefix)
		return err
	}, false)
	return count, err
}

// ListRecords walks the publication index newest first, then appends
// records that have no publication time.
func (r *RecordRepository) ListRecords(ctx context.Context, filter storage.RecordFilter) ([]*core.Record, error) {
	if filter.Offset < 0 || filter.Limit < 0 {
		return nil, storage.ErrInvalidQuery
	}

	var results []*core.Record
	skipped := 0
	// collect applies offset and limit; it returns false once the page is full.
	collect := func(record *core.Record) bool {
		if !matchesFilter(record, filter) {
			return true
		}
		if skipped < filter.Offset {
			skipped++
			return true
		}
		results = append(results, record)
		return filter.Limit == 0 || len(results) < filter.Limit
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordPublishPrefix)
		opts.Reverse = true
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(prefixUpperBound(recordPublishPrefix)); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			id := idFromTimeIndexKey(recordPublishPrefix, iter.Item().Key())
			record, err := readRecord(tx, makeRecordKey(id))
			if err != nil {
				return err
			}
			if record != nil && !collect(record) {
				return nil
			}
		}

		// Records without a publication time are not in the index.
		err := scanPrefix(ctx, tx, recordPrefix, func(item *badger.Item) error {
			record, err := itemRecord(item)
			if err != nil {
				return err
			}
			if record.PublishedAt == nil && !collect(record) {
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

// ForEachRecord calls fn for every record in key order.
func (r *RecordRepository) ForEachRecord(ctx context.Context, fn func(*core.Record) error) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(ctx, tx, recordPrefix, func(item *badger.Item) error {
			record, err := itemRecord(item)
			if err != nil {
				return err
			}
			return fn(record)
		})
	}, false)
}

func matchesFilter(record *core.Record, filter storage.RecordFilter) bool {
	if filter.Organization != "" && record.Organization != filter.Organization {
		return false
	}
	if filter.Category != "" && record.Category != filter.Category {
		return false
	}
	if filter.PublishedFrom != nil || filter.PublishedTo != nil {
		if record.PublishedAt == nil {
			return false
		}
		if filter.PublishedFrom != nil && record.PublishedAt.Before(*filter.PublishedFrom) {
			return false
		}
		if filter.PublishedTo != nil && !record.PublishedAt.Before(*filter.PublishedTo) {
			return false
		}
	}
	return true
}

func setRecordIndexes(tx *badger.Txn, record *core.Record) error {
	id := []byte(record.ID)
	if t := record.SubmissionDeadline; t != nil {
		if err := tx.Set(makeDeadlineKey(*t, record.ID), id); err != nil {
			return err
		}
	}
	if t := record.PublishedAt; t != nil {
		if err := tx.Set(makePublishKey(*t, record.ID), id); err != nil {
			return err
		}
	}
	return nil
}

func deleteRecordIndexes(tx *badger.Txn, record *core.Record) error {
	if t := record.SubmissionDeadline; t != nil {
		if err := tx.Delete(makeDeadlineKey(*t, record.ID)); err != nil {
			return err
		}
	}
	if t := record.PublishedAt; t != nil {
		if err := tx.Delete(makePublishKey(*t, record.ID)); err != nil {
			return err
		}
	}
	return nil
}

// deadlineScanEnd is the exclusive upper bound for deadlines strictly before now.
func deadlineScanEnd(now time.Time) []byte {
	return makePartialTimeIndexKey(recordDeadlinePrefix, now.Add(time.Microsecond))
}
