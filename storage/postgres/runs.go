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


package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/poiesic/tenderscope/core"
	"github.com/poiesic/tenderscope/storage"
)

// RunRepository implements storage.RunRepository for Postgres.
type RunRepository struct {
	pool *pgxpool.Pool
}

var _ storage.RunRepository = (*RunRepository)(nil)

func (r *RunRepository) CreateRun(ctx context.Context, run *core.IngestionRun) error {
	if run.Status != core.RunStatusRunning {
		return fmt.Errorf("%w: new run must be %s, got %s",
			core.ErrInvalidRunStatus, core.RunStatusRunning, run.Status)
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO ingestion_runs
		(id, started_at, status, message, seen, created, updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, run.StartedAt, string(run.Status), run.Message, run.Seen, run.Created, run.Updated)
	return err
}

// FinishRun only updates a run that is still RUNNING.
func (r *RunRepository) FinishRun(ctx context.Context, run *core.IngestionRun) error {
	if !run.Status.IsTerminal() {
		return fmt.Errorf("%w: %s is not terminal", core.ErrInvalidRunStatus, run.Status)
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx, `SELECT status FROM ingestion_runs WHERE id = $1 FOR UPDATE`, run.ID).Scan(&status)
		if err != nil {
			return notFound(err)
		}
		if core.RunStatus(status).IsTerminal() {
			return fmt.Errorf("%w: run %s is %s", storage.ErrRunFinalized, run.ID, status)
		}
		_, err = tx.Exec(ctx, `UPDATE ingestion_runs
			SET ended_at = $2, status = $3, message = $4, seen = $5, created = $6, updated = $7
			WHERE id = $1`,
			run.ID, run.EndedAt, string(run.Status), run.Message, run.Seen, run.Created, run.Updated)
		return err
	})
}

const runColumns = `id, started_at, ended_at, status, message, seen, created, updated`

func (r *RunRepository) GetRun(ctx context.Context, id string) (*core.IngestionRun, error) {
	run, err := scanRun(r.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM ingestion_runs WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return run, nil
}

func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]*core.IngestionRun, error) {
	query := `SELECT ` + runColumns + ` FROM ingestion_runs ORDER BY started_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*core.IngestionRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(row pgx.Row) (*core.IngestionRun, error) {
	var (
		run    core.IngestionRun
		status string
	)
	if err := row.Scan(&run.ID, &run.StartedAt, &run.EndedAt, &status, &run.Message,
		&run.Seen, &run.Created, &run.Updated); err != nil {
		return nil, err
	}
	run.Status = core.RunStatus(status)
	run.StartedAt = run.StartedAt.UTC()
	run.EndedAt = utcPtr(run.EndedAt)
	return &run, nil
}

// MigrationRepository implements storage.MigrationRepository on the vector_meta row.
type MigrationRepository struct {
	pool *pgxpool.Pool
}

var _ storage.MigrationRepository = (*MigrationRepository)(nil)

func (r *MigrationRepository) LoadMigrationState(ctx context.Context) (*core.MigrationState, error) {
	var (
		phase   *string
		state   core.MigrationState
		updated *time.Time
	)
	err := r.pool.QueryRow(ctx, `SELECT migration_phase, migration_target, migration_previous,
		migration_message, migration_updated FROM vector_meta WHERE id = 1`,
	).Scan(&phase, &state.Dimension, &state.PreviousDimension, &state.Message, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if phase == nil {
		return nil, nil
	}
	state.Phase = core.MigrationPhase(*phase)
	if updated != nil {
		state.UpdatedAt = updated.UTC()
	}
	return &state, nil
}

func (r *MigrationRepository) SaveMigrationState(ctx context.Context, state *core.MigrationState) error {
	if err := core.ValidateMigrationPhase(state.Phase); err != nil {
		return err
	}
	state.UpdatedAt = time.Now().UTC()
	tag, err := r.pool.Exec(ctx, `UPDATE vector_meta SET migration_phase = $1, migration_target = $2,
		migration_previous = $3, migration_message = $4, migration_updated = $5 WHERE id = 1`,
		string(state.Phase), state.Dimension, state.PreviousDimension, state.Message, state.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
