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

// Package storage provides the storage abstraction layer for tenderscope.
//
// This package defines repository interfaces that decouple the pipeline from
// the storage implementation. Two backends implement them: storage/badger
// (embedded, the default) and storage/postgres (pgx with pgvector).
//
// # Architecture
//
//   - RecordRepository: listing records keyed by natural id
//   - VectorRepository: one embedding vector per record, fixed dimension
//   - RunRepository: ingestion run log
//   - MigrationRepository: persisted dimensionality migration state
//   - Store: aggregates the four and owns their lifecycle
//
// # Consistency
//
// Each repository call is atomic on its own. There is no transaction spanning
// the record and vector repositories; a record can expire between the moment
// the embedder selects it and the moment its vector is written. The expiry
// reaper removes such vectors on its next pass.
//
// # Usage
//
//	store, err := badger.Open("/path/to/db", 1536)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
// Use in tests with in-memory storage:
//
//	store, err := badger.NewMemoryStore(3)
//
// All repository implementations are safe for concurrent use.
package storage
