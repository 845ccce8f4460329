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


package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/tenderscope/core"
	"github.com/poiesic/tenderscope/fetcher"
	"github.com/poiesic/tenderscope/storage"
)

// Cycle performs one fetch-and-upsert pass tracked by an IngestionRun.
type Cycle struct {
	fetcher  fetcher.Fetcher
	upserter *Upserter
	runs     storage.RunRepository
	pageSize int
	maxPages int
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger
}

// CycleOption configures a Cycle.
type CycleOption func(*Cycle) error

// WithPages sets the page size and the maximum number of pages fetched per run.
func WithPages(pageSize, maxPages int) CycleOption {
	return func(c *Cycle) error {
		if pageSize < 1 {
			return fmt.Errorf("%w: page size %d", fetcher.ErrInvalidPage, pageSize)
		}
		c.pageSize = pageSize
		c.maxPages = maxPages
		return nil
	}
}

// WithCycleClock overrides the time source for run timestamps.
func WithCycleClock(now func() time.Time) CycleOption {
	return func(c *Cycle) error {
		if now != nil {
			c.now = now
		}
		return nil
	}
}

// WithCycleLogger sets a custom logger.
// Default is slog.Default().
func WithCycleLogger(logger *slog.Logger) CycleOption {
	return func(c *Cycle) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// NewCycle creates a Cycle.
func NewCycle(f fetcher.Fetcher, upserter *Upserter, runs storage.RunRepository, opts ...CycleOption) (*Cycle, error) {
	if f == nil {
		return nil, ErrFetcherRequired
	}
	if upserter == nil {
		return nil, ErrUpserterRequired
	}
	if runs == nil {
		return nil, ErrRunRepositoryRequired
	}

	fc := fetcher.DefaultConfig()
	c := &Cycle{
		fetcher:  f,
		upserter: upserter,
		runs:     runs,
		pageSize: fc.PageSize,
		maxPages: fc.MaxPages,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.logger = c.logger.With("component", "ingestion")
	return c, nil
}

// Run fetches, upserts and finalizes a new run. The returned run is always
// terminal when the error comes from fetching or upserting; it is nil only
// when the run could not be created.
func (c *Cycle) Run(ctx context.Context) (run *core.IngestionRun, err error) {
	run = &core.IngestionRun{
		ID:        c.newID(),
		StartedAt: c.now(),
		Status:    core.RunStatusRunning,
	}
	if err := c.runs.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	logger := c.logger.With("run_id", run.ID)
	logger.Info("ingestion run started")

	finalized := false
	finalize := func(status core.RunStatus, message string) {
		if finalized {
			return
		}
		finalized = true
		end := c.now()
		run.EndedAt = &end
		run.Status = status
		run.Message = message
		// The run must be closed even when ctx was cancelled mid-cycle.
		if ferr := c.runs.FinishRun(context.WithoutCancel(ctx), run); ferr != nil {
			logger.Error("failed to finalize run", "status", status, "err", ferr)
		}
	}
	defer func() {
		if r := recover(); r != nil {
			finalize(core.RunStatusError, fmt.Sprintf("Error during ingestion: %v", r))
			panic(r)
		}
	}()

	raws, fetchErr := fetcher.FetchAll(ctx, c.fetcher, c.pageSize, c.maxPages)
	if fetchErr != nil && len(raws) == 0 {
		finalize(core.RunStatusError, fmt.Sprintf("Error fetching records: %v", fetchErr))
		logger.Error("fetch failed", "err", fetchErr)
		return run, fetchErr
	}
	if len(raws) == 0 {
		finalize(core.RunStatusWarning, "No records found")
		logger.Warn("no records found")
		return run, nil
	}

	stats, upsertErr := c.upserter.Upsert(ctx, raws)
	run.Seen = stats.Seen
	run.Created = stats.Created
	run.Updated = stats.Updated

	switch {
	case upsertErr != nil:
		finalize(core.RunStatusError, fmt.Sprintf("Error saving records: %v", upsertErr))
		logger.Error("upsert failed", "err", upsertErr)
		return run, upsertErr
	case fetchErr != nil:
		finalize(core.RunStatusWarning, fmt.Sprintf("Partial fetch of %d records (%v). New: %d, Updated: %d",
			stats.Seen, fetchErr, stats.Created, stats.Updated))
	case stats.Failed > 0:
		finalize(core.RunStatusWarning, fmt.Sprintf("Fetched %d records. New: %d, Updated: %d, Skipped: %d, Failed: %d",
			stats.Seen, stats.Created, stats.Updated, stats.Skipped, stats.Failed))
	default:
		finalize(core.RunStatusSuccess, fmt.Sprintf("Successfully fetched %d records. New: %d, Updated: %d",
			stats.Seen, stats.Created, stats.Updated))
	}

	logger.Info("ingestion run finished", "status", run.Status,
		"seen", run.Seen, "created", run.Created, "updated", run.Updated)
	return run, nil
}
