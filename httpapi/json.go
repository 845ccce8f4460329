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


package httpapi

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/poiesic/tenderscope/core"
)

type tenderJSON struct {
	ID                 string     `json:"tender_id"`
	ReferenceNumber    string     `json:"reference_number"`
	Title              string     `json:"title"`
	Organization       string     `json:"organization"`
	Category           string     `json:"tender_type"`
	Activities         string     `json:"main_activities"`
	Duration           string     `json:"duration"`
	Price              string     `json:"price"`
	Location           string     `json:"city"`
	URL                string     `json:"url"`
	PublishedAt        *time.Time `json:"publication_date"`
	InquiryDeadline    *time.Time `json:"inquiry_deadline"`
	SubmissionDeadline *time.Time `json:"submission_deadline"`
	OpeningAt          *time.Time `json:"opening_date"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func toTender(r *core.Record) tenderJSON {
	return tenderJSON{
		ID:                 r.ID,
		ReferenceNumber:    r.ReferenceNumber,
		Title:              r.Title,
		Organization:       r.Organization,
		Category:           r.Category,
		Activities:         r.Activities,
		Duration:           r.Duration,
		Price:              r.Price,
		Location:           r.Location,
		URL:                r.SourceURL,
		PublishedAt:        r.PublishedAt,
		InquiryDeadline:    r.InquiryDeadline,
		SubmissionDeadline: r.SubmissionDeadline,
		OpeningAt:          r.OpeningAt,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func toTenders(records []*core.Record) []tenderJSON {
	out := make([]tenderJSON, 0, len(records))
	for _, r := range records {
		out = append(out, toTender(r))
	}
	return out
}

type resultJSON struct {
	Tender     tenderJSON `json:"tender"`
	Similarity float32    `json:"similarity"`
}

type vectorSearchJSON struct {
	Query     string       `json:"query"`
	Limit     int          `json:"limit"`
	TodayOnly bool         `json:"today_only"`
	Results   []resultJSON `json:"results"`
	Count     int          `json:"count"`
}

type tendersJSON struct {
	Tenders []tenderJSON `json:"tenders"`
	Count   int          `json:"count"`
}

type runJSON struct {
	ID        string     `json:"id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	Status    string     `json:"status"`
	Message   string     `json:"message"`
	Scraped   int        `json:"tenders_scraped"`
	New       int        `json:"tenders_new"`
	Updated   int        `json:"tenders_updated"`
}

func toRun(run *core.IngestionRun) runJSON {
	return runJSON{
		ID:        run.ID,
		StartTime: run.StartedAt,
		EndTime:   run.EndedAt,
		Status:    string(run.Status),
		Message:   run.Message,
		Scraped:   run.Seen,
		New:       run.Created,
		Updated:   run.Updated,
	}
}

type generateJSON struct {
	Before  int `json:"before"`
	After   int `json:"after"`
	Created int `json:"created"`
	Batches int `json:"batches"`
}

type statusJSON struct {
	Records    int    `json:"records"`
	Vectors    int    `json:"vectors"`
	Unvectored int    `json:"unvectored"`
	Dimension  int    `json:"dimension"`
	Migration  string `json:"migration_phase,omitempty"`
	Target     int    `json:"migration_dimension,omitempty"`
	Message    string `json:"migration_message,omitempty"`
}

type acceptedJSON struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type errorJSON struct {
	Error string `json:"error"`
}

// writeJSON encodes v before committing the status, so a value that cannot
// be encoded becomes a 500 rather than an empty success.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		slog.Default().Error("failed to encode response", "err", err)
		buf.Reset()
		status = http.StatusInternalServerError
		json.NewEncoder(&buf).Encode(errorJSON{Error: "failed to encode response"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorJSON{Error: err.Error()})
}
