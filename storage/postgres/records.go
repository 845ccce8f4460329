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
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/poiesic/tenderscope/core"
	"github.com/poiesic/tenderscope/storage"
)

const recordColumns = `t.id, t.reference_number, t.title, t.organization, t.category, t.activities,
	t.duration, t.price, t.location, t.source_url, t.published_at, t.inquiry_deadline,
	t.submission_deadline, t.opening_at, t.created_at, t.updated_at`

const upsertRecordSQL = `INSERT INTO tenders
	(id, reference_number, title, organization, category, activities, duration, price,
	 location, source_url, published_at, inquiry_deadline, submission_deadline, opening_at,
	 created_at, updated_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	ON CONFLICT (id) DO UPDATE SET
	 reference_number = EXCLUDED.reference_number,
	 title = EXCLUDED.title,
	 organization = EXCLUDED.organization,
	 category = EXCLUDED.category,
	 activities = EXCLUDED.activities,
	 duration = EXCLUDED.duration,
	 price = EXCLUDED.price,
	 location = EXCLUDED.location,
	 source_url = EXCLUDED.source_url,
	 published_at = EXCLUDED.published_at,
	 inquiry_deadline = EXCLUDED.inquiry_deadline,
	 submission_deadline = EXCLUDED.submission_deadline,
	 opening_at = EXCLUDED.opening_at,
	 updated_at = EXCLUDED.updated_at`

// RecordRepository implements storage.RecordRepository for Postgres.
type RecordRepository struct {
	pool *pgxpool.Pool
}

var _ storage.RecordRepository = (*RecordRepository)(nil)

func (r *RecordRepository) GetRecord(ctx context.Context, id string) (*core.Record, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM tenders t WHERE t.id = $1`, id)
	record, err := scanRecord(row)
	if err != nil {
		return nil, notFound(err)
	}
	return record, nil
}

func (r *RecordRepository) GetRecords(ctx context.Context, ids ...string) ([]*core.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+recordColumns+` FROM tenders t WHERE t.id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

// PutRecords upserts every record in one transaction using a pipelined batch.
func (r *RecordRepository) PutRecords(ctx context.Context, records ...*core.Record) error {
	if len(records) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		b := &pgx.Batch{}
		for _, rec := range records {
			b.Queue(upsertRecordSQL,
				rec.ID, rec.ReferenceNumber, rec.Title, rec.Organization, rec.Category,
				rec.Activities, rec.Duration, rec.Price, rec.Location, rec.SourceURL,
				rec.PublishedAt, rec.InquiryDeadline, rec.SubmissionDeadline, rec.OpeningAt,
				rec.CreatedAt, rec.UpdatedAt,
			)
		}
		br := tx.SendBatch(ctx, b)
		for range records {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return err
			}
		}
		return br.Close()
	})
}

// DeleteRecords removes records; their vectors go with them through the foreign key.
func (r *RecordRepository) DeleteRecords(ctx context.Context, ids ...string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM tenders WHERE id = ANY($1)`, ids)
		if err != nil {
			return err
		}
		if int(tag.RowsAffected()) != len(ids) {
			return storage.ErrNotFound
		}
		return nil
	})
}

func (r *RecordRepository) CountRecords(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM tenders`).Scan(&count)
	return count, err
}

func (r *RecordRepository) ListRecords(ctx context.Context, filter storage.RecordFilter) ([]*core.Record, error) {
	if filter.Offset < 0 || filter.Limit < 0 {
		return nil, storage.ErrInvalidQuery
	}

	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.Organization != "" {
		add("t.organization = $%d", filter.Organization)
	}
	if filter.Category != "" {
		add("t.category = $%d", filter.Category)
	}
	if filter.PublishedFrom != nil {
		add("t.published_at >= $%d", *filter.PublishedFrom)
	}
	if filter.PublishedTo != nil {
		add("t.published_at < $%d", *filter.PublishedTo)
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + recordColumns + ` FROM tenders t`)
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY t.published_at DESC NULLS LAST, t.id")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

func (r *RecordRepository) ForEachRecord(ctx context.Context, fn func(*core.Record) error) error {
	rows, err := r.pool.Query(ctx, `SELECT `+recordColumns+` FROM tenders t ORDER BY t.id`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return err
		}
		if err := fn(record); err != nil {
			return err
		}
	}
	return rows.Err()
}

func scanRecord(row pgx.Row, extra ...any) (*core.Record, error) {
	var rec core.Record
	dest := []any{
		&rec.ID, &rec.ReferenceNumber, &rec.Title, &rec.Organization, &rec.Category,
		&rec.Activities, &rec.Duration, &rec.Price, &rec.Location, &rec.SourceURL,
		&rec.PublishedAt, &rec.InquiryDeadline, &rec.SubmissionDeadline, &rec.OpeningAt,
		&rec.CreatedAt, &rec.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	rec.PublishedAt = utcPtr(rec.PublishedAt)
	rec.InquiryDeadline = utcPtr(rec.InquiryDeadline)
	rec.SubmissionDeadline = utcPtr(rec.SubmissionDeadline)
	rec.OpeningAt = utcPtr(rec.OpeningAt)
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}

func collectRecords(rows pgx.Rows) ([]*core.Record, error) {
	defer rows.Close()
	var records []*core.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
