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
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/poiesic/tenderscope/core"
	"github.com/poiesic/tenderscope/storage"
)

// foreignKeyViolation is the SQLSTATE raised when a vector references a missing record.
const foreignKeyViolation = "23503"

// VectorRepository implements storage.VectorRepository for Postgres.
type VectorRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger

	mu        sync.RWMutex
	dimension int
}

var _ storage.VectorRepository = (*VectorRepository)(nil)

func newVectorRepository(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger, dimension int) (*VectorRepository, error) {
	r := &VectorRepository{pool: pool, logger: logger.With("repository", "vectors")}

	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `SELECT dimension FROM vector_meta WHERE id = 1`).Scan(&r.dimension)
		if err == nil {
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		r.dimension = dimension
		if _, err := tx.Exec(ctx, `INSERT INTO vector_meta (id, dimension) VALUES (1, $1)`, dimension); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, fmt.Sprintf(`ALTER TABLE tender_vectors ALTER COLUMN embedding TYPE vector(%d)`, dimension))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load vector dimension: %w", err)
	}

	if r.dimension != dimension {
		r.logger.Warn("stored vector dimension differs from configured dimension; run a migration",
			"stored", r.dimension, "configured", dimension)
	}
	return r, nil
}

func (r *VectorRepository) Dimension() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dimension
}

func (r *VectorRepository) PutVectors(ctx context.Context, vectors ...*core.EmbeddingVector) (int, error) {
	if len(vectors) == 0 {
		return 0, nil
	}
	dim := r.Dimension()
	for _, v := range vectors {
		if len(v.Values) != dim {
			return 0, fmt.Errorf("%w: record %s has %d values, want %d",
				storage.ErrDimensionMismatch, v.RecordID, len(v.Values), dim)
		}
	}

	written := 0
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		b := &pgx.Batch{}
		for _, v := range vectors {
			if v.CreatedAt.IsZero() {
				v.CreatedAt = time.Now().UTC()
			}
			b.Queue(`INSERT INTO tender_vectors (record_id, embedding, fingerprint, created_at)
				VALUES ($1, $2, $3, $4) ON CONFLICT (record_id) DO NOTHING`,
				v.RecordID, pgvector.NewVector(v.Values), int64(v.Fingerprint), v.CreatedAt)
		}
		br := tx.SendBatch(ctx, b)
		for _, v := range vectors {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				var pgErr *pgconn.PgError
				if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
					return fmt.Errorf("%w: record %s", storage.ErrNotFound, v.RecordID)
				}
				return err
			}
			written += int(tag.RowsAffected())
		}
		return br.Close()
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

func (r *VectorRepository) GetVector(ctx context.Context, recordID string) (*core.EmbeddingVector, error) {
	var (
		vec         pgvector.Vector
		fingerprint int64
		result      = core.EmbeddingVector{RecordID: recordID}
	)
	err := r.pool.QueryRow(ctx,
		`SELECT embedding, fingerprint, created_at FROM tender_vectors WHERE record_id = $1`, recordID,
	).Scan(&vec, &fingerprint, &result.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	result.Values = vec.Slice()
	result.Fingerprint = uint64(fingerprint)
	result.CreatedAt = result.CreatedAt.UTC()
	return &result, nil
}

func (r *VectorRepository) DeleteVectors(ctx context.Context, recordIDs ...string) (int, error) {
	if len(recordIDs) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM tender_vectors WHERE record_id = ANY($1)`, recordIDs)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *VectorRepository) DeleteAllVectors(ctx context.Context) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tender_vectors`)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *VectorRepository) CountVectors(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM tender_vectors`).Scan(&count)
	return count, err
}

// Resize retypes the embedding column. The table must be empty.
func (r *VectorRepository) Resize(ctx context.Context, dimension int) error {
	if err := core.ValidateDimension(dimension); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		// Lock out concurrent inserts while the column changes type.
		if _, err := tx.Exec(ctx, `LOCK TABLE tender_vectors IN ACCESS EXCLUSIVE MODE`); err != nil {
			return err
		}
		var count int
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM tender_vectors`).Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: %d vectors stored", storage.ErrVectorsPresent, count)
		}
		if _, err := tx.Exec(ctx, fmt.Sprintf(`ALTER TABLE tender_vectors ALTER COLUMN embedding TYPE vector(%d)`, dimension)); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE vector_meta SET dimension = $1 WHERE id = 1`, dimension)
		return err
	})
	if err != nil {
		return err
	}

	r.logger.Info("vector dimension changed", "from", r.dimension, "to", dimension)
	r.dimension = dimension
	return nil
}

const unvectoredWhere = ` FROM tenders t
	WHERE NOT EXISTS (SELECT 1 FROM tender_vectors v WHERE v.record_id = t.id)
	AND (t.submission_deadline IS NULL OR t.submission_deadline > $1)`

func (r *VectorRepository) FindUnvectored(ctx context.Context, now time.Time, limit int) ([]*core.Record, error) {
	query := `SELECT ` + recordColumns + unvectoredWhere + ` ORDER BY t.id`
	args := []any{now}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

func (r *VectorRepository) CountUnvectored(ctx context.Context, now time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT count(*)`+unvectoredWhere, now).Scan(&count)
	return count, err
}

func (r *VectorRepository) FindExpired(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT t.id FROM tenders t
		JOIN tender_vectors v ON v.record_id = t.id
		WHERE t.submission_deadline < $1
		ORDER BY t.submission_deadline, t.id`, now)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// FindStale compares fingerprints in Go; the embedding text isn't materialized in SQL.
func (r *VectorRepository) FindStale(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+recordColumns+`, v.fingerprint
		FROM tenders t JOIN tender_vectors v ON v.record_id = t.id ORDER BY t.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var fingerprint int64
		record, err := scanRecord(rows, &fingerprint)
		if err != nil {
			return nil, err
		}
		if uint64(fingerprint) != core.TextFingerprint(record.EmbeddingText()) {
			ids = append(ids, record.ID)
		}
	}
	return ids, rows.Err()
}

func (r *VectorRepository) FindSimilar(ctx context.Context, query []float32, filter storage.SimilarityFilter, limit int) ([]*core.SearchResult, error) {
	if limit <= 0 {
		return []*core.SearchResult{}, nil
	}
	if len(query) != r.Dimension() {
		return nil, fmt.Errorf("%w: query has %d values, want %d",
			storage.ErrDimensionMismatch, len(query), r.Dimension())
	}

	args := []any{pgvector.NewVector(query)}
	var where []string
	if !filter.ValidAt.IsZero() {
		args = append(args, filter.ValidAt)
		where = append(where, fmt.Sprintf("(t.submission_deadline IS NULL OR t.submission_deadline > $%d)", len(args)))
	}
	if filter.PublishedSince != nil {
		args = append(args, *filter.PublishedSince)
		where = append(where, fmt.Sprintf("t.published_at >= $%d", len(args)))
	}
	args = append(args, limit)

	var sb strings.Builder
	sb.WriteString(`SELECT ` + recordColumns + `, 1 - (v.embedding <=> $1) AS similarity
		FROM tender_vectors v JOIN tenders t ON t.id = v.record_id`)
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	fmt.Fprintf(&sb, " ORDER BY v.embedding <=> $1, t.id LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []*core.SearchResult{}
	for rows.Next() {
		var similarity float64
		record, err := scanRecord(rows, &similarity)
		if err != nil {
			return nil, err
		}
		results = append(results, &core.SearchResult{Record: record, Similarity: core.ClampSimilarity(similarity)})
	}
	return results, rows.Err()
}
