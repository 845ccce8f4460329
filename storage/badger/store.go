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
	"github.com/poiesic/tenderscope/storage"
)

// Store bundles the BadgerDB repositories over one backend.
type Store struct {
	backend    *Backend
	records    *RecordRepository
	vectors    *VectorRepository
	runs       *RunRepository
	migrations *MigrationRepository
}

var _ storage.Store = (*Store)(nil)

// Open opens (or creates) a store at path. dimension is recorded on first
// open and must be migrated explicitly afterwards.
func Open(path string, dimension int) (*Store, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	return newStore(backend, dimension)
}

func newStore(backend *Backend, dimension int) (*Store, error) {
	vectors, err := NewVectorRepository(backend, dimension)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return &Store{
		backend:    backend,
		records:    NewRecordRepository(backend),
		vectors:    vectors,
		runs:       NewRunRepository(backend),
		migrations: NewMigrationRepository(backend),
	}, nil
}

func (s *Store) Records() storage.RecordRepository       { return s.records }
func (s *Store) Vectors() storage.VectorRepository       { return s.vectors }
func (s *Store) Runs() storage.RunRepository             { return s.runs }
func (s *Store) Migrations() storage.MigrationRepository { return s.migrations }

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.backend.IsClosed() {
		return nil
	}
	return s.backend.Close()
}
