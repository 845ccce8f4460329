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
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/tenderscope/core"
	"github.com/poiesic/tenderscope/embedder"
	"github.com/poiesic/tenderscope/search"
	"github.com/poiesic/tenderscope/storage"
)

const (
	defaultPageSize = 50
	defaultLogLimit = 20
)

var errNotConfigured = errors.New("operation not available")

func (s *Server) handleVectorSearch(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", s.defaultLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: limit", errInvalidParameter))
		return
	}
	// A limit of zero or less asks for nothing and gets an empty result.
	limit = max(0, min(limit, s.maxLimit))
	todayOnly, err := boolParam(r, "today_only")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: today_only", errInvalidParameter))
		return
	}

	query := search.Query{
		Text:       r.URL.Query().Get("query"),
		Limit:      limit,
		RecentOnly: todayOnly,
	}
	resp, err := s.deps.Searcher.Search(r.Context(), query)
	if err != nil {
		s.logger.Error("vector search failed", "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	out := vectorSearchJSON{
		Query:     resp.Query,
		Limit:     resp.Limit,
		TodayOnly: resp.RecentOnly,
		Results:   make([]resultJSON, 0, len(resp.Results)),
		Count:     resp.Count,
	}
	for _, result := range resp.Results {
		out.Results = append(out.Results, resultJSON{Tender: toTender(result.Record), Similarity: result.Similarity})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListTenders(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultPageSize)
	if err != nil || limit < 1 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: limit", errInvalidParameter))
		return
	}
	limit = min(limit, s.maxLimit)
	offset, err := intParam(r, "offset", 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: offset", errInvalidParameter))
		return
	}

	var records []*core.Record
	if q := strings.TrimSpace(r.URL.Query().Get("search")); q != "" {
		if s.deps.Keywords == nil {
			writeError(w, http.StatusNotImplemented, errNotConfigured)
			return
		}
		ids, err := s.deps.Keywords.Search(q, offset+limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if offset >= len(ids) {
			writeJSON(w, http.StatusOK, tendersJSON{Tenders: []tenderJSON{}})
			return
		}
		records, err = s.deps.Records.GetRecords(r.Context(), ids[offset:]...)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	} else {
		filter := storage.RecordFilter{
			Organization: r.URL.Query().Get("organization"),
			Category:     r.URL.Query().Get("category"),
			Offset:       offset,
			Limit:        limit,
		}
		records, err = s.deps.Records.ListRecords(r.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, tendersJSON{Tenders: toTenders(records), Count: len(records)})
}

func (s *Server) handleGetTender(w http.ResponseWriter, r *http.Request) {
	record, err := s.deps.Records.GetRecord(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, toTender(record))
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultLogLimit)
	if err != nil || limit < 1 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: limit", errInvalidParameter))
		return
	}
	runs, err := s.deps.Runs.ListRuns(r.Context(), min(limit, s.maxLimit))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]runJSON, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRun(run))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTriggerScrape(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ingester == nil {
		writeError(w, http.StatusNotImplemented, errNotConfigured)
		return
	}
	run, err := s.deps.Ingester.Run(r.Context())
	if err != nil {
		s.logger.Error("triggered ingestion failed", "err", err)
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, toRun(run))
}

func (s *Server) handleEmbeddingStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Vectors == nil {
		writeError(w, http.StatusNotImplemented, errNotConfigured)
		return
	}
	ctx := r.Context()
	var out statusJSON
	var err error
	if out.Records, err = s.deps.Records.CountRecords(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if out.Vectors, err = s.deps.Vectors.CountVectors(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if out.Unvectored, err = s.deps.Vectors.CountUnvectored(ctx, time.Now()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out.Dimension = s.deps.Vectors.Dimension()
	if s.deps.Migrator != nil {
		state, err := s.deps.Migrator.State(ctx)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		out.Migration = string(state.Phase)
		out.Target = state.Dimension
		out.Message = state.Message
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if s.deps.Generator == nil {
		writeError(w, http.StatusNotImplemented, errNotConfigured)
		return
	}
	limit, err := intParam(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: limit", errInvalidParameter))
		return
	}

	// A positive limit embeds at most that many records in one group;
	// otherwise every unvectored record is embedded.
	batchSize, maxBatches := limit, 1
	if limit <= 0 {
		batchSize, maxBatches = s.deps.Generator.Config().BatchSize, 0
	}
	result, err := s.deps.Generator.RunWith(r.Context(), batchSize, maxBatches)
	if err != nil {
		s.logger.Error("embedding generation failed", "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, generateJSON{
		Before:  result.Before,
		After:   result.After,
		Created: result.Created,
		Batches: result.Batches,
	})
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	if s.deps.Regenerator == nil {
		writeError(w, http.StatusNotImplemented, errNotConfigured)
		return
	}
	staleOnly, err := boolParam(r, "stale_only")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: stale_only", errInvalidParameter))
		return
	}

	err = s.runBackground("regenerate", func(ctx context.Context) error {
		result, err := s.deps.Regenerator.Run(ctx, staleOnly)
		if err != nil {
			return err
		}
		s.logger.Info("regeneration complete", "deleted", result.Deleted, "created", result.Created)
		return nil
	})
	s.accepted(w, err, "embedding regeneration started")
}

func (s *Server) handleMigrate(w http.ResponseWriter, r *http.Request) {
	if s.deps.Migrator == nil {
		writeError(w, http.StatusNotImplemented, errNotConfigured)
		return
	}
	raw := r.URL.Query().Get("dimension")
	dimension, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: dimension %q", errInvalidParameter, raw))
		return
	}
	if err := core.ValidateDimension(dimension); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	state, err := s.deps.Migrator.State(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if state.Phase != core.MigrationReady {
		writeError(w, http.StatusConflict, embedder.ErrMigrationInProgress)
		return
	}

	err = s.runBackground("migrate", func(ctx context.Context) error {
		state, err := s.deps.Migrator.Migrate(ctx, dimension)
		if err != nil {
			return err
		}
		s.logger.Info("migration complete", "dimension", state.Dimension, "message", state.Message)
		return nil
	})
	s.accepted(w, err, fmt.Sprintf("migration to dimension %d started", dimension))
}

// accepted writes the response for a background submission and reports
// whether the operation was started.
func (s *Server) accepted(w http.ResponseWriter, err error, message string) bool {
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, acceptedJSON{Status: "accepted", Message: message})
		return true
	case errors.Is(err, ErrOperationRunning):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusServiceUnavailable, err)
	}
	return false
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func boolParam(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}
