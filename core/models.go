package core

import (
	"strings"
	"time"
)

// Record is a normalized listing keyed by its natural id.
type Record struct {
	ID                 string
	ReferenceNumber    string
	Title              string
	Organization       string
	Category           string
	Activities         string // Free-text activity description
	Duration           string
	Price              string
	Location           string
	SourceURL          string
	PublishedAt        *time.Time
	InquiryDeadline    *time.Time
	SubmissionDeadline *time.Time // nil means the record never expires
	OpeningAt          *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// RawRecord is a freshly fetched listing before reconciliation.
// Title, Organization, Category and SourceURL are always applied on update.
// Pointer fields are applied only when non-nil.
type RawRecord struct {
	ID                 string
	Title              string
	Organization       string
	Category           string
	SourceURL          string
	ReferenceNumber    *string
	Activities         *string
	Duration           *string
	Price              *string
	Location           *string
	PublishedAt        *time.Time
	InquiryDeadline    *time.Time
	SubmissionDeadline *time.Time
	OpeningAt          *time.Time
}

// NewRecord builds a record from a raw payload. Fields absent from the
// payload default to empty strings and nil timestamps.
func NewRecord(raw *RawRecord, now time.Time) *Record {
	r := &Record{
		ID:        raw.ID,
		CreatedAt: now,
	}
	r.Merge(raw, now)
	return r
}

// Merge applies a raw payload to an existing record and bumps UpdatedAt.
func (r *Record) Merge(raw *RawRecord, now time.Time) {
	r.Title = raw.Title
	r.Organization = raw.Organization
	r.Category = raw.Category
	r.SourceURL = raw.SourceURL

	mergeString(&r.ReferenceNumber, raw.ReferenceNumber)
	mergeString(&r.Activities, raw.Activities)
	mergeString(&r.Duration, raw.Duration)
	mergeString(&r.Price, raw.Price)
	mergeString(&r.Location, raw.Location)

	mergeTime(&r.PublishedAt, raw.PublishedAt)
	mergeTime(&r.InquiryDeadline, raw.InquiryDeadline)
	mergeTime(&r.SubmissionDeadline, raw.SubmissionDeadline)
	mergeTime(&r.OpeningAt, raw.OpeningAt)

	r.UpdatedAt = now
}

func mergeString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func mergeTime(dst **time.Time, src *time.Time) {
	if src != nil {
		t := src.UTC()
		*dst = &t
	}
}

// ValidAt reports whether the record's validity window is open at now.
func (r *Record) ValidAt(now time.Time) bool {
	return r.SubmissionDeadline == nil || r.SubmissionDeadline.After(now)
}

// ExpiredAt reports whether the submission deadline is strictly before now.
// Records without a deadline never expire.
func (r *Record) ExpiredAt(now time.Time) bool {
	return r.SubmissionDeadline != nil && r.SubmissionDeadline.Before(now)
}

// PublishedWithin reports whether the record was published in the window
// ending at now. Records without a publication time are never recent.
func (r *Record) PublishedWithin(now time.Time, window time.Duration) bool {
	if r.PublishedAt == nil {
		return false
	}
	return !r.PublishedAt.Before(now.Add(-window))
}

// EmbeddingText returns the text submitted to the embedding provider:
// title, organization and activities, space-joined, empty parts skipped.
func (r *Record) EmbeddingText() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{r.Title, r.Organization, r.Activities} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// EmbeddingVector is the semantic representation of one record.
type EmbeddingVector struct {
	RecordID    string
	Values      []float32
	Fingerprint uint64 // TextFingerprint of the text that was embedded
	CreatedAt   time.Time
}

// RunStatus is the state of an ingestion run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "RUNNING"
	RunStatusSuccess RunStatus = "SUCCESS"
	RunStatusWarning RunStatus = "WARNING"
	RunStatusError   RunStatus = "ERROR"
)

// IsTerminal reports whether the status ends a run.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSuccess || s == RunStatusWarning || s == RunStatusError
}

// IngestionRun records one fetch-and-upsert cycle.
type IngestionRun struct {
	ID        string
	StartedAt time.Time
	EndedAt   *time.Time // nil while running
	Status    RunStatus
	Message   string
	Seen      int
	Created   int
	Updated   int
}

// SearchResult pairs a record with its similarity to a query.
type SearchResult struct {
	Record     *Record
	Similarity float32
}

// MigrationPhase names a step of a vector dimensionality migration.
type MigrationPhase string

const (
	// MigrationReady means no migration is in progress.
	MigrationReady MigrationPhase = "READY"
	// MigrationDrained means every vector was deleted.
	MigrationDrained MigrationPhase = "DRAINED"
	// MigrationResized means the store accepts the new dimension.
	MigrationResized MigrationPhase = "RESIZED"
	// MigrationRebuilding means vectors are being regenerated.
	MigrationRebuilding MigrationPhase = "REBUILDING"
)

// MigrationState is the persisted progress of a dimensionality migration.
type MigrationState struct {
	Phase             MigrationPhase
	Dimension         int // target dimension
	PreviousDimension int
	Message           string
	UpdatedAt         time.Time
}
