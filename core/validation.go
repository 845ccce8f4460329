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

import (
	"fmt"
	"strings"
)

// ValidateRawRecord checks that a raw record carries the fields required to
// reconcile it: a non-empty natural id and title.
func ValidateRawRecord(raw *RawRecord) error {
	if raw == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}

	if strings.TrimSpace(raw.ID) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyID)
	}

	if strings.TrimSpace(raw.Title) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyTitle)
	}

	return nil
}

// ValidateDimension checks that dim is usable as a vector dimension.
func ValidateDimension(dim int) error {
	if dim <= 0 {
		return fmt.Errorf("%w: value %d", ErrInvalidDimension, dim)
	}
	return nil
}

// ValidateVector checks that values has exactly dim elements.
func ValidateVector(values []float32, dim int) error {
	if err := ValidateDimension(dim); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidVector, err)
	}
	if len(values) != dim {
		return fmt.Errorf("%w: %w: got %d, want %d", ErrInvalidVector, ErrWrongDimension, len(values), dim)
	}
	return nil
}

// ValidateRunStatus checks that status is one of the known run statuses.
func ValidateRunStatus(status RunStatus) error {
	switch status {
	case RunStatusRunning, RunStatusSuccess, RunStatusWarning, RunStatusError:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidRunStatus, status)
}

// ValidateMigrationPhase checks that phase is one of the known phases.
func ValidateMigrationPhase(phase MigrationPhase) error {
	switch phase {
	case MigrationReady, MigrationDrained, MigrationResized, MigrationRebuilding:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidMigrationPhase, phase)
}
