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

package storage

import (
	"context"
	"time"

	"github.com/poiesic/tenderscope/core"
)

// RecordFilter narrows ListRecords.
type RecordFilter struct {
	// Organization and Category match exactly when non-empty.
	Organization string
	Category     string
	// PublishedFrom and PublishedTo bound the publication time (inclusive, exclusive).
	PublishedFrom *time.Time
	PublishedTo   *time.Time
	Offset        int
	Limit         int
}

// SimilarityFilter restricts FindSimilar to records that are still valid.
type SimilarityFilter struct {
	// ValidAt excludes records whose submission deadline is not after this instant.
	ValidAt time.Time
	// PublishedSince, when set, excludes records published before it or without
	// a publication time.
	PublishedSince *time.Time
}

type RecordRepository interface {
	// GetRecord retrieves a single record by natural id.
	// Returns ErrNotFound if the record doesn't exist.
	GetRecord(ctx context.Context, id string) (*core.Record, error)

	// GetRecords retrieves multiple records by natural id.
	// Returns only the records that exist (no error for missing records).
	GetRecords(ctx context.Context, ids ...string) ([]*core.Record, error)

	// PutRecords creates or replaces records in a single transaction.
	// Either every record is written or none is.
	PutRecords(ctx context.Context, records ...*core.Record) error

	// DeleteRecords removes records and their vectors.
	// Returns ErrNotFound if any record doesn't exist.
	DeleteRecords(ctx context.Context, ids ...string) error

	// CountRecords returns the number of stored records.
	CountRecords(ctx context.Context) (int, error)

	// ListRecords returns records ordered by publication time, newest first.
	// Records without a publication time come last.
	ListRecords(ctx context.Context, filter RecordFilter) ([]*core.Record, error)

	// ForEachRecord calls fn for every record. Iteration stops at the first error.
	ForEachRecord(ctx context.Context, fn func(*core.Record) error) error
}

type VectorRepository interface {
	// Dimension returns the length every stored vector must have.
	Dimension() int

	// PutVectors stores vectors in a single transaction.
	// Returns ErrDimensionMismatch if any vector has the wrong length and
	// ErrNotFound if any owning record doesn't exist. Records that already
	// have a vector are skipped. Returns the number of vectors written.
	PutVectors(ctx context.Context, vectors ...*core.EmbeddingVector) (int, error)

	// GetVector retrieves the vector owned by a record.
	// Returns ErrNotFound if the record has no vector.
	GetVector(ctx context.Context, recordID string) (*core.EmbeddingVector, error)

	// DeleteVectors removes the vectors owned by the given records.
	// Missing vectors are ignored. Returns the number removed.
	DeleteVectors(ctx context.Context, recordIDs ...string) (int, error)

	// DeleteAllVectors removes every vector and returns the number removed.
	DeleteAllVectors(ctx context.Context) (int, error)

	// CountVectors returns the number of stored vectors.
	CountVectors(ctx context.Context) (int, error)

	// Resize changes the store dimension.
	// Returns ErrVectorsPresent unless the store holds no vectors.
	Resize(ctx context.Context, dimension int) error

	// FindUnvectored returns up to limit records without a vector whose
	// submission deadline is null or after now. limit <= 0 means no limit.
	FindUnvectored(ctx context.Context, now time.Time, limit int) ([]*core.Record, error)

	// CountUnvectored counts the records FindUnvectored would select.
	CountUnvectored(ctx context.Context, now time.Time) (int, error)

	// FindExpired returns the ids of records that own a vector and whose
	// submission deadline is strictly before now.
	FindExpired(ctx context.Context, now time.Time) ([]string, error)

	// FindStale returns the ids of records whose vector was computed from
	// text that differs from the record's current embedding text.
	FindStale(ctx context.Context) ([]string, error)

	// FindSimilar ranks vectors by cosine similarity to query, keeping only
	// records that pass filter. Results are ordered by similarity, highest first.
	FindSimilar(ctx context.Context, query []float32, filter SimilarityFilter, limit int) ([]*core.SearchResult, error)
}

type RunRepository interface {
	// CreateRun persists a new run. The run must be RUNNING.
	CreateRun(ctx context.Context, run *core.IngestionRun) error

	// FinishRun stores the terminal state of a run.
	// Returns ErrRunFinalized if the stored run is already terminal
	// and ErrNotFound if it doesn't exist.
	FinishRun(ctx context.Context, run *core.IngestionRun) error

	// GetRun retrieves a run by id.
	// Returns ErrNotFound if the run doesn't exist.
	GetRun(ctx context.Context, id string) (*core.IngestionRun, error)

	// ListRuns returns up to limit runs, most recently started first.
	ListRuns(ctx context.Context, limit int) ([]*core.IngestionRun, error)
}

type MigrationRepository interface {
	// LoadMigrationState returns the persisted state.
	// Returns nil, nil if no migration was ever recorded.
	LoadMigrationState(ctx context.Context) (*core.MigrationState, error)

	// SaveMigrationState persists state, stamping UpdatedAt.
	SaveMigrationState(ctx context.Context, state *core.MigrationState) error
}

// Store aggregates the repositories of one backend.
type Store interface {
	Records() RecordRepository
	Vectors() VectorRepository
	Runs() RunRepository
	Migrations() MigrationRepository

	// Close releases the backend. Repositories must not be used afterwards.
	Close() error
}
