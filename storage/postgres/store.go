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
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/poiesic/tenderscope/core"
	"github.com/poiesic/tenderscope/storage"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Config holds connection settings for the Postgres store.
type Config struct {
	DSN      string `yaml:"dsn"`
	MaxConns int    `yaml:"max_conns"`
	// ViaBouncer switches to the simple query protocol, which transaction-pooling
	// pgbouncer deployments require.
	ViaBouncer bool `yaml:"via_bouncer"`
}

// Store implements storage.Store on a pgx connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger

	records    *RecordRepository
	vectors    *VectorRepository
	runs       *RunRepository
	migrations *MigrationRepository

	closeOnce sync.Once
}

var _ storage.Store = (*Store)(nil)

// Open connects to Postgres, applies the embedded schema and records
// dimension if no dimension is stored yet.
func Open(ctx context.Context, cfg Config, dimension int) (*Store, error) {
	if err := core.ValidateDimension(dimension); err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 4
	}
	poolCfg.MaxConns = int32(maxConns)
	if cfg.ViaBouncer {
		poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	logger := slog.Default().With("component", "postgres")
	if err := applyMigrations(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, err
	}

	vectors, err := newVectorRepository(ctx, pool, logger, dimension)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &Store{
		pool:       pool,
		logger:     logger,
		records:    &RecordRepository{pool: pool},
		vectors:    vectors,
		runs:       &RunRepository{pool: pool},
		migrations: &MigrationRepository{pool: pool},
	}, nil
}

func (s *Store) Records() storage.RecordRepository       { return s.records }
func (s *Store) Vectors() storage.VectorRepository       { return s.vectors }
func (s *Store) Runs() storage.RunRepository             { return s.runs }
func (s *Store) Migrations() storage.MigrationRepository { return s.migrations }

// Close closes the connection pool.
func (s *Store) Close() error {
	s.closeOnce.Do(s.pool.Close)
	return nil
}

// applyMigrations runs every embedded migration that hasn't been applied yet,
// each in its own transaction, in file name order.
func applyMigrations(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	_, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	names, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	for _, name := range names {
		var applied bool
		err := pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, name).Scan(&applied)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		body, err := migrationFiles.ReadFile(name)
		if err != nil {
			return err
		}

		err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(body)); err != nil {
				return err
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO schema_migrations (version, applied_at) VALUES ($1, $2)`, name, time.Now().UTC())
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %s failed: %w", name, err)
		}
		logger.Info("applied schema migration", "version", name)
	}
	return nil
}

// notFound maps pgx.ErrNoRows to storage.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}
