// source: comments.sql

package sqlc

import (
	"context"
	"database/sql"
)

const commentColumns = `id, article_id, parent_id, author_id, body_md, body_html, status, reject_reason, created_at, updated_at`

func scanComment(row interface{ Scan(...interface{}) error }) (Comment, error) {
	var i Comment
	err := row.Scan(
		&i.ID,
		&i.ArticleID,
		&i.ParentID,
		&i.AuthorID,
		&i.BodyMd,
		&i.BodyHtml,
		&i.Status,
		&i.RejectReason,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func (q *Queries) listComments(ctx context.Context, query string, args ...interface{}) ([]Comment, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Comment
	for rows.Next() {
		i, err := scanComment(rows)
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

const createComment = `-- name: CreateComment :one
INSERT INTO comments (
    article_id, parent_id, author_id, body_md, status, created_at,
    updated_at
) VALUES (
    ?, ?, ?, ?, 'reviewing', ?, ?
)
RETURNING ` + commentColumns

type CreateCommentParams struct {
	ArticleID int64
	ParentID  sql.NullInt64
	AuthorID  int64
	BodyMd    string
	CreatedAt int64
	UpdatedAt int64
}

func (q *Queries) CreateComment(ctx context.Context, arg CreateCommentParams) (Comment, error) {
	row := q.db.QueryRowContext(ctx, createComment,
		arg.ArticleID,
		arg.ParentID,
		arg.AuthorID,
		arg.BodyMd,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return scanComment(row)
}

const getComment = `-- name: GetComment :one
SELECT ` + commentColumns + ` FROM comments WHERE id = ?
`

func (q *Queries) GetComment(ctx context.Context, id int64) (Comment, error) {
	row := q.db.QueryRowContext(ctx, getComment, id)
	return scanComment(row)
}

const listArticleComments = `-- name: ListArticleComments :many
SELECT ` + commentColumns + ` FROM comments
WHERE article_id = ? AND status = 'published'
ORDER BY created_at ASC, id ASC
`

func (q *Queries) ListArticleComments(ctx context.Context, articleID int64) ([]Comment, error) {
	return q.listComments(ctx, listArticleComments, articleID)
}

const listPublishedComments = `-- name: ListPublishedComments :many
SELECT ` + commentColumns + ` FROM comments
WHERE status = 'published'
ORDER BY created_at DESC, id DESC
LIMIT ?
`

func (q *Queries) ListPublishedComments(ctx context.Context, limit int64) ([]Comment, error) {
	return q.listComments(ctx, listPublishedComments, limit)
}

const publishReviewedComment = `-- name: PublishReviewedComment :execrows
UPDATE comments
SET status = 'published',
    body_html = ?1,
    reject_reason = NULL,
    updated_at = ?2
WHERE id = ?3 AND status = 'reviewing'
`

type PublishReviewedCommentParams struct {
	BodyHtml  sql.NullString
	UpdatedAt int64
	ID        int64
}

func (q *Queries) PublishReviewedComment(ctx context.Context, arg PublishReviewedCommentParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, publishReviewedComment,
		arg.BodyHtml,
		arg.UpdatedAt,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const rejectReviewedComment = `-- name: RejectReviewedComment :execrows
UPDATE comments
SET status = 'review_rejected',
    reject_reason = ?1,
    updated_at = ?2
WHERE id = ?3 AND status = 'reviewing'
`

type RejectReviewedCommentParams struct {
	RejectReason sql.NullString
	UpdatedAt    int64
	ID           int64
}

func (q *Queries) RejectReviewedComment(ctx context.Context, arg RejectReviewedCommentParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, rejectReviewedComment,
		arg.RejectReason,
		arg.UpdatedAt,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const updateCommentStatus = `-- name: UpdateCommentStatus :execrows
UPDATE comments
SET status = ?1,
    updated_at = ?2
WHERE id = ?3 AND status = ?4
`

type UpdateCommentStatusParams struct {
	Status         string
	UpdatedAt      int64
	ID             int64
	ExpectedStatus string
}

func (q *Queries) UpdateCommentStatus(ctx context.Context, arg UpdateCommentStatusParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateCommentStatus,
		arg.Status,
		arg.UpdatedAt,
		arg.ID,
		arg.ExpectedStatus,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
