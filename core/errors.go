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

package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidRecord indicates a raw record failed validation.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrEmptyID indicates the natural id is empty.
	ErrEmptyID = errors.New("record id cannot be empty")

	// ErrEmptyTitle indicates the title is empty.
	ErrEmptyTitle = errors.New("record title cannot be empty")

	// ErrInvalidVector indicates an embedding vector failed validation.
	ErrInvalidVector = errors.New("invalid vector")

	// ErrWrongDimension indicates a vector whose length differs from the store dimension.
	ErrWrongDimension = errors.New("vector has wrong dimension")

	// ErrInvalidDimension indicates a non-positive dimension.
	ErrInvalidDimension = errors.New("dimension must be greater than 0")

	// ErrInvalidRunStatus indicates an unknown ingestion run status.
	ErrInvalidRunStatus = errors.New("invalid run status")

	// ErrInvalidMigrationPhase indicates an unknown migration phase.
	ErrInvalidMigrationPhase = errors.New("invalid migration phase")
)
