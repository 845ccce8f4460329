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
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/tenderscope/core"
	"github.com/poiesic/tenderscope/storage"
)

// MigrationRepository implements storage.MigrationRepository for BadgerDB.
type MigrationRepository struct {
	backend *Backend
}

var _ storage.MigrationRepository = (*MigrationRepository)(nil)

// NewMigrationRepository creates a new MigrationRepository.
func NewMigrationRepository(backend *Backend) *MigrationRepository {
	return &MigrationRepository{
		backend: backend,
	}
}

// SaveMigrationState persists the migration state.
func (r *MigrationRepository) SaveMigrationState(ctx context.Context, state *core.MigrationState) error {
	if err := core.ValidateMigrationPhase(state.Phase); err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		state.UpdatedAt = time.Now().UTC()
		if err := tx.Set([]byte(migrationKey), storage.MarshalMigrationState(state)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// LoadMigrationState retrieves the migration state.
// Returns nil, nil if no state exists.
func (r *MigrationRepository) LoadMigrationState(ctx context.Context) (*core.MigrationState, error) {
	var state *core.MigrationState
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(migrationKey))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}

		return item.Value(func(val []byte) error {
			var unmarshalErr error
			state, unmarshalErr = storage.UnmarshalMigrationState(val)
			return unmarshalErr
		})
	}, false)

	return state, err
}
