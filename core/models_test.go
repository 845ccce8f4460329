package core

import (
	"math"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func TestRecord_EmbeddingText(t *testing.T) {
	tests := []struct {
		name   string
		record Record
		want   string
	}{
		{
			name:   "all parts",
			record: Record{Title: "Road works", Organization: "Ministry", Activities: "paving"},
			want:   "Road works Ministry paving",
		},
		{
			name:   "missing organization",
			record: Record{Title: "Road works", Activities: "paving"},
			want:   "Road works paving",
		},
		{
			name:   "whitespace parts skipped",
			record: Record{Title: "  Road works ", Organization: "   ", Activities: ""},
			want:   "Road works",
		},
		{
			name:   "empty",
			record: Record{},
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.record.EmbeddingText(); got != tt.want {
				t.Errorf("EmbeddingText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecord_ValidAndExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		deadline    *time.Time
		wantValid   bool
		wantExpired bool
	}{
		{"no deadline", nil, true, false},
		{"future deadline", timePtr(now.Add(time.Hour)), true, false},
		{"past deadline", timePtr(now.Add(-time.Second)), false, true},
		{"deadline equals now", timePtr(now), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Record{SubmissionDeadline: tt.deadline}
			if got := r.ValidAt(now); got != tt.wantValid {
				t.Errorf("ValidAt() = %v, want %v", got, tt.wantValid)
			}
			if got := r.ExpiredAt(now); got != tt.wantExpired {
				t.Errorf("ExpiredAt() = %v, want %v", got, tt.wantExpired)
			}
		})
	}
}

func TestRecord_PublishedWithin(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	recent := &Record{PublishedAt: timePtr(now.Add(-2 * time.Hour))}
	old := &Record{PublishedAt: timePtr(now.Add(-30 * time.Hour))}
	unknown := &Record{}

	if !recent.PublishedWithin(now, 24*time.Hour) {
		t.Error("record published 2h ago should be recent")
	}
	if old.PublishedWithin(now, 24*time.Hour) {
		t.Error("record published 30h ago should not be recent")
	}
	if unknown.PublishedWithin(now, 24*time.Hour) {
		t.Error("record without publication time should not be recent")
	}
}

func TestNewRecord_Defaults(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	raw := &RawRecord{ID: "T-1", Title: "Road works"}

	r := NewRecord(raw, now)

	if r.ID != "T-1" || r.Title != "Road works" {
		t.Fatalf("unexpected record: %+v", r)
	}
	if r.Duration != "" || r.Price != "" || r.Location != "" {
		t.Errorf("optional strings should default to empty: %+v", r)
	}
	if r.SubmissionDeadline != nil || r.PublishedAt != nil {
		t.Errorf("timestamps should default to nil")
	}
	if !r.CreatedAt.Equal(now) || !r.UpdatedAt.Equal(now) {
		t.Errorf("CreatedAt/UpdatedAt should be %v", now)
	}
}

func TestRecord_Merge(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)
	deadline := created.Add(72 * time.Hour)

	r := NewRecord(&RawRecord{
		ID:                 "T-1",
		Title:              "Old title",
		Organization:       "Old org",
		Category:           "Old type",
		SourceURL:          "https://old",
		Duration:           strPtr("12 months"),
		Price:              strPtr("100"),
		Location:           strPtr("Riyadh"),
		SubmissionDeadline: timePtr(deadline),
	}, created)

	r.Merge(&RawRecord{
		ID:    "T-1",
		Title: "New title",
		Price: strPtr("200"),
	}, updated)

	if r.Title != "New title" {
		t.Errorf("Title = %q, want refreshed value", r.Title)
	}
	if r.Organization != "" || r.Category != "" || r.SourceURL != "" {
		t.Errorf("descriptive fields are always overwritten, got %+v", r)
	}
	if r.Duration != "12 months" || r.Location != "Riyadh" {
		t.Errorf("omitted optional fields must be kept, got duration=%q location=%q", r.Duration, r.Location)
	}
	if r.Price != "200" {
		t.Errorf("Price = %q, want 200", r.Price)
	}
	if r.SubmissionDeadline == nil || !r.SubmissionDeadline.Equal(deadline) {
		t.Errorf("omitted deadline must be kept")
	}
	if !r.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt changed on merge")
	}
	if !r.UpdatedAt.After(r.CreatedAt) {
		t.Errorf("UpdatedAt should be newer than CreatedAt")
	}
}

func TestRunStatus_IsTerminal(t *testing.T) {
	if RunStatusRunning.IsTerminal() {
		t.Error("RUNNING is not terminal")
	}
	for _, s := range []RunStatus{RunStatusSuccess, RunStatusWarning, RunStatusError} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

func TestTextFingerprint(t *testing.T) {
	if TextFingerprint("road works") != TextFingerprint("road works") {
		t.Error("TextFingerprint() is not deterministic")
	}
	if TextFingerprint("road works") == TextFingerprint("bridge works") {
		t.Error("TextFingerprint() collided for different text")
	}
}

func TestClampSimilarity(t *testing.T) {
	tests := []struct {
		in   float64
		want float32
	}{
		{0.75, 0.75},
		{-0.4, 0},
		{1.0000002, 1},
		{math.NaN(), 0},
		{math.Inf(-1), 0},
	}
	for _, tt := range tests {
		if got := ClampSimilarity(tt.in); got != tt.want {
			t.Errorf("ClampSimilarity(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"scaled", []float32{2, 0}, []float32{5, 0}, 1},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if diff := got - tt.want; diff > 1e-6 || diff < -1e-6 {
				t.Errorf("CosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}
