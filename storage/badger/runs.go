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
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/tenderscope/core"
	"github.com/poiesic/tenderscope/storage"
)

// RunRepository implements storage.RunRepository for BadgerDB.
type RunRepository struct {
	backend *Backend
}

var _ storage.RunRepository = (*RunRepository)(nil)

// NewRunRepository creates a new RunRepository.
func NewRunRepository(backend *Backend) *RunRepository {
	return &RunRepository{backend: backend}
}

// CreateRun persists a new RUNNING run and indexes it by start time.
func (r *RunRepository) CreateRun(ctx context.Context, run *core.IngestionRun) error {
	if run.Status != core.RunStatusRunning {
		return fmt.Errorf("%w: new run must be %s, got %s",
			core.ErrInvalidRunStatus, core.RunStatusRunning, run.Status)
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeRunKey(run.ID), storage.MarshalRun(run)); err != nil {
			return err
		}
		if err := tx.Set(makeRunStartKey(run.StartedAt, run.ID), []byte(run.ID)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// FinishRun stores the terminal state of a run exactly once.
func (r *RunRepository) FinishRun(ctx context.Context, run *core.IngestionRun) error {
	if !run.Status.IsTerminal() {
		return fmt.Errorf("%w: %s is not terminal", core.ErrInvalidRunStatus, run.Status)
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeRunKey(run.ID)
		stored, err := readRun(tx, key)
		if err != nil {
			return err
		}
		if stored == nil {
			return storage.ErrNotFound
		}
		if stored.Status.IsTerminal() {
			return fmt.Errorf("%w: run %s is %s", storage.ErrRunFinalized, run.ID, stored.Status)
		}
		if err := tx.Set(key, storage.MarshalRun(run)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetRun retrieves a run by id.
func (r *RunRepository) GetRun(ctx context.Context, id string) (*core.IngestionRun, error) {
	var result *core.IngestionRun
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readRun(tx, makeRunKey(id))
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

// ListRuns walks the start index newest first.
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]*core.IngestionRun, error) {
	var results []*core.IngestionRun
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(runStartPrefix)
		opts.Reverse = true
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(prefixUpperBound(runStartPrefix)); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			id := idFromTimeIndexKey(runStartPrefix, iter.Item().Key())
			run, err := readRun(tx, makeRunKey(id))
			if err != nil {
				return err
			}
			if run == nil {
				continue
			}
			results = append(results, run)
			if limit > 0 && len(results) >= limit {
				break
			}
		}
		return nil
	}, false)
	return results, err
}

func readRun(tx *badger.Txn, key []byte) (*core.IngestionRun, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}
	var run *core.IngestionRun
	err = item.Value(func(val []byte) error {
		var err error
		run, err = storage.UnmarshalRun(val)
		return err
	})
	return run, err
}
