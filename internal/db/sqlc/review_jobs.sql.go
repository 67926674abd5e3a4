// source: review_jobs.sql

package sqlc

import (
	"context"
	"database/sql"
)

const reviewJobColumns = `id, content_id, content_type, author_id, reviewer_id, status, reason, auto, created_at, decided_at, dispatched_at`

func scanReviewJob(row interface{ Scan(...interface{}) error }) (ReviewJob, error) {
	var i ReviewJob
	err := row.Scan(
		&i.ID,
		&i.ContentID,
		&i.ContentType,
		&i.AuthorID,
		&i.ReviewerID,
		&i.Status,
		&i.Reason,
		&i.Auto,
		&i.CreatedAt,
		&i.DecidedAt,
		&i.DispatchedAt,
	)
	return i, err
}

func (q *Queries) listReviewJobs(ctx context.Context, query string, args ...interface{}) ([]ReviewJob, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ReviewJob
	for rows.Next() {
		i, err := scanReviewJob(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countUnfinishedReviewJobs = `-- name: CountUnfinishedReviewJobs :one
SELECT COUNT(*) FROM review_jobs
WHERE reviewer_id = ? AND status = 'not_reviewed'
`

func (q *Queries) CountUnfinishedReviewJobs(ctx context.Context, reviewerID sql.NullInt64) (int64, error) {
	row := q.db.QueryRowContext(ctx, countUnfinishedReviewJobs, reviewerID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const createReviewJob = `-- name: CreateReviewJob :one
INSERT INTO review_jobs (
    content_id, content_type, author_id, reviewer_id, status, reason,
    auto, created_at, decided_at
) VALUES (
    ?, ?, ?, ?, ?, ?, ?, ?, ?
)
RETURNING ` + reviewJobColumns

type CreateReviewJobParams struct {
	ContentID   string
	ContentType string
	AuthorID    int64
	ReviewerID  sql.NullInt64
	Status      string
	Reason      sql.NullString
	Auto        int64
	CreatedAt   int64
	DecidedAt   sql.NullInt64
}

func (q *Queries) CreateReviewJob(ctx context.Context, arg CreateReviewJobParams) (ReviewJob, error) {
	row := q.db.QueryRowContext(ctx, createReviewJob,
		arg.ContentID,
		arg.ContentType,
		arg.AuthorID,
		arg.ReviewerID,
		arg.Status,
		arg.Reason,
		arg.Auto,
		arg.CreatedAt,
		arg.DecidedAt,
	)
	return scanReviewJob(row)
}

const decideReviewJob = `-- name: DecideReviewJob :execrows
UPDATE review_jobs
SET status = ?1,
    reason = ?2,
    decided_at = ?3
WHERE id = ?4 AND status = 'not_reviewed'
`

type DecideReviewJobParams struct {
	Status    string
	Reason    sql.NullString
	DecidedAt sql.NullInt64
	ID        int64
}

func (q *Queries) DecideReviewJob(ctx context.Context, arg DecideReviewJobParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, decideReviewJob,
		arg.Status,
		arg.Reason,
		arg.DecidedAt,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getLatestReviewJobForContent = `-- name: GetLatestReviewJobForContent :one
SELECT ` + reviewJobColumns + ` FROM review_jobs
WHERE content_type = ? AND content_id = ?
ORDER BY id DESC
LIMIT 1
`

type GetLatestReviewJobForContentParams struct {
	ContentType string
	ContentID   string
}

func (q *Queries) GetLatestReviewJobForContent(ctx context.Context, arg GetLatestReviewJobForContentParams) (ReviewJob, error) {
	row := q.db.QueryRowContext(ctx, getLatestReviewJobForContent, arg.ContentType, arg.ContentID)
	return scanReviewJob(row)
}

const getReviewJob = `-- name: GetReviewJob :one
SELECT ` + reviewJobColumns + ` FROM review_jobs WHERE id = ?
`

func (q *Queries) GetReviewJob(ctx context.Context, id int64) (ReviewJob, error) {
	row := q.db.QueryRowContext(ctx, getReviewJob, id)
	return scanReviewJob(row)
}

const listFinishedReviewJobsByReviewer = `-- name: ListFinishedReviewJobsByReviewer :many
SELECT ` + reviewJobColumns + ` FROM review_jobs
WHERE reviewer_id = ? AND status != 'not_reviewed'
ORDER BY decided_at DESC, id DESC
`

func (q *Queries) ListFinishedReviewJobsByReviewer(ctx context.Context, reviewerID sql.NullInt64) ([]ReviewJob, error) {
	return q.listReviewJobs(ctx, listFinishedReviewJobsByReviewer, reviewerID)
}

const listPendingReviewJobs = `-- name: ListPendingReviewJobs :many
SELECT ` + reviewJobColumns + ` FROM review_jobs
WHERE status = 'not_reviewed'
ORDER BY created_at ASC, id ASC
LIMIT ?
`

func (q *Queries) ListPendingReviewJobs(ctx context.Context, limit int64) ([]ReviewJob, error) {
	return q.listReviewJobs(ctx, listPendingReviewJobs, limit)
}

const listReviewJobsByReviewer = `-- name: ListReviewJobsByReviewer :many
SELECT ` + reviewJobColumns + ` FROM review_jobs
WHERE reviewer_id = ?
ORDER BY created_at DESC, id DESC
`

func (q *Queries) ListReviewJobsByReviewer(ctx context.Context, reviewerID sql.NullInt64) ([]ReviewJob, error) {
	return q.listReviewJobs(ctx, listReviewJobsByReviewer, reviewerID)
}

const listUndispatchedReviewJobs = `-- name: ListUndispatchedReviewJobs :many
SELECT ` + reviewJobColumns + ` FROM review_jobs
WHERE status != 'not_reviewed' AND dispatched_at IS NULL
    AND id > ?
ORDER BY id ASC
LIMIT ?
`

type ListUndispatchedReviewJobsParams struct {
	AfterID int64
	MaxRows int64
}

func (q *Queries) ListUndispatchedReviewJobs(ctx context.Context, arg ListUndispatchedReviewJobsParams) ([]ReviewJob, error) {
	return q.listReviewJobs(ctx, listUndispatchedReviewJobs, arg.AfterID, arg.MaxRows)
}

const listUnfinishedReviewJobsByReviewer = `-- name: ListUnfinishedReviewJobsByReviewer :many
SELECT ` + reviewJobColumns + ` FROM review_jobs
WHERE reviewer_id = ? AND status = 'not_reviewed'
ORDER BY created_at ASC, id ASC
`

func (q *Queries) ListUnfinishedReviewJobsByReviewer(ctx context.Context, reviewerID sql.NullInt64) ([]ReviewJob, error) {
	return q.listReviewJobs(ctx, listUnfinishedReviewJobsByReviewer, reviewerID)
}

const markReviewJobDispatched = `-- name: MarkReviewJobDispatched :execrows
UPDATE review_jobs
SET dispatched_at = ?
WHERE id = ? AND dispatched_at IS NULL AND status != 'not_reviewed'
`

type MarkReviewJobDispatchedParams struct {
	DispatchedAt sql.NullInt64
	ID           int64
}

func (q *Queries) MarkReviewJobDispatched(ctx context.Context, arg MarkReviewJobDispatchedParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, markReviewJobDispatched, arg.DispatchedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
