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


// Package ingestion reconciles fetched listings into the record store.
//
// The Upserter creates or updates records keyed by their natural id and commits
// them in fixed-size batches; a failed commit loses only its own batch. The
// Cycle wraps one fetch and upsert pass in an IngestionRun that is created
// RUNNING and finalized exactly once as SUCCESS, WARNING or ERROR.
package ingestion
