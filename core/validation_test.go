package core

import (
	"errors"
	"testing"
)

func TestValidateRawRecord(t *testing.T) {
	tests := []struct {
		name    string
		raw     *RawRecord
		wantErr error
	}{
		{
			name:    "valid record",
			raw:     &RawRecord{ID: "T-1", Title: "Road works"},
			wantErr: nil,
		},
		{
			name:    "nil record",
			raw:     nil,
			wantErr: ErrInvalidRecord,
		},
		{
			name:    "missing id",
			raw:     &RawRecord{Title: "Road works"},
			wantErr: ErrEmptyID,
		},
		{
			name:    "blank id",
			raw:     &RawRecord{ID: "   ", Title: "Road works"},
			wantErr: ErrEmptyID,
		},
		{
			name:    "missing title",
			raw:     &RawRecord{ID: "T-1"},
			wantErr: ErrEmptyTitle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRawRecord(tt.raw)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateRawRecord() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateRawRecord() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidRecord) {
				t.Errorf("ValidateRawRecord() error should wrap ErrInvalidRecord")
			}
		})
	}
}

func TestValidateVector(t *testing.T) {
	if err := ValidateVector([]float32{1, 2, 3}, 3); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err := ValidateVector([]float32{1, 2}, 3)
	if !errors.Is(err, ErrWrongDimension) || !errors.Is(err, ErrInvalidVector) {
		t.Errorf("expected wrong dimension error, got %v", err)
	}

	err = ValidateVector([]float32{1}, 0)
	if !errors.Is(err, ErrInvalidDimension) {
		t.Errorf("expected invalid dimension error, got %v", err)
	}
}

func TestValidateRunStatus(t *testing.T) {
	if err := ValidateRunStatus(RunStatusWarning); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateRunStatus("DONE"); !errors.Is(err, ErrInvalidRunStatus) {
		t.Errorf("expected ErrInvalidRunStatus, got %v", err)
	}
}

func TestValidateMigrationPhase(t *testing.T) {
	if err := ValidateMigrationPhase(MigrationRebuilding); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateMigrationPhase("HALFWAY"); !errors.Is(err, ErrInvalidMigrationPhase) {
		t.Errorf("expected ErrInvalidMigrationPhase, got %v", err)
	}
}
