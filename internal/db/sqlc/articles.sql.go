// source: articles.sql

package sqlc

import (
	"context"
	"database/sql"
)

const articleColumns = `id, author_id, title, body_md, body_html, status, prev_status, reject_reason, created_at, updated_at, published_at`

func scanArticle(row interface{ Scan(...interface{}) error }) (Article, error) {
	var i Article
	err := row.Scan(
		&i.ID,
		&i.AuthorID,
		&i.Title,
		&i.BodyMd,
		&i.BodyHtml,
		&i.Status,
		&i.PrevStatus,
		&i.RejectReason,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.PublishedAt,
	)
	return i, err
}

func (q *Queries) listArticles(ctx context.Context, query string, args ...interface{}) ([]Article, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Article
	for rows.Next() {
		i, err := scanArticle(rows)
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

const createArticle = `-- name: CreateArticle :one
INSERT INTO articles (
    author_id, title, body_md, status, created_at, updated_at
) VALUES (
    ?, ?, ?, 'draft', ?, ?
)
RETURNING ` + articleColumns

type CreateArticleParams struct {
	AuthorID  int64
	Title     string
	BodyMd    string
	CreatedAt int64
	UpdatedAt int64
}

func (q *Queries) CreateArticle(ctx context.Context, arg CreateArticleParams) (Article, error) {
	row := q.db.QueryRowContext(ctx, createArticle,
		arg.AuthorID,
		arg.Title,
		arg.BodyMd,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return scanArticle(row)
}

const getArticle = `-- name: GetArticle :one
SELECT ` + articleColumns + ` FROM articles WHERE id = ?
`

func (q *Queries) GetArticle(ctx context.Context, id int64) (Article, error) {
	row := q.db.QueryRowContext(ctx, getArticle, id)
	return scanArticle(row)
}

const listArticlesByAuthor = `-- name: ListArticlesByAuthor :many
SELECT ` + articleColumns + ` FROM articles
WHERE author_id = ? AND status NOT IN ('deleted', 'forbidden')
ORDER BY created_at DESC, id DESC
`

func (q *Queries) ListArticlesByAuthor(ctx context.Context, authorID int64) ([]Article, error) {
	return q.listArticles(ctx, listArticlesByAuthor, authorID)
}

const listPublishedArticles = `-- name: ListPublishedArticles :many
SELECT ` + articleColumns + ` FROM articles
WHERE status = 'published'
ORDER BY published_at DESC, id DESC
LIMIT ? OFFSET ?
`

type ListPublishedArticlesParams struct {
	Limit  int64
	Offset int64
}

func (q *Queries) ListPublishedArticles(ctx context.Context, arg ListPublishedArticlesParams) ([]Article, error) {
	return q.listArticles(ctx, listPublishedArticles, arg.Limit, arg.Offset)
}

const publishReviewedArticle = `-- name: PublishReviewedArticle :execrows
UPDATE articles
SET status = 'published',
    body_html = ?1,
    reject_reason = NULL,
    published_at = ?2,
    updated_at = ?3
WHERE id = ?4 AND status = 'reviewing'
`

type PublishReviewedArticleParams struct {
	BodyHtml    sql.NullString
	PublishedAt sql.NullInt64
	UpdatedAt   int64
	ID          int64
}

func (q *Queries) PublishReviewedArticle(ctx context.Context, arg PublishReviewedArticleParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, publishReviewedArticle,
		arg.BodyHtml,
		arg.PublishedAt,
		arg.UpdatedAt,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const rejectReviewedArticle = `-- name: RejectReviewedArticle :execrows
UPDATE articles
SET status = 'review_rejected',
    reject_reason = ?1,
    updated_at = ?2
WHERE id = ?3 AND status = 'reviewing'
`

type RejectReviewedArticleParams struct {
	RejectReason sql.NullString
	UpdatedAt    int64
	ID           int64
}

func (q *Queries) RejectReviewedArticle(ctx context.Context, arg RejectReviewedArticleParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, rejectReviewedArticle,
		arg.RejectReason,
		arg.UpdatedAt,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const updateArticleStatus = `-- name: UpdateArticleStatus :execrows
UPDATE articles
SET status = ?1,
    prev_status = ?2,
    updated_at = ?3
WHERE id = ?4 AND status = ?5
`

type UpdateArticleStatusParams struct {
	Status         string
	PrevStatus     sql.NullString
	UpdatedAt      int64
	ID             int64
	ExpectedStatus string
}

func (q *Queries) UpdateArticleStatus(ctx context.Context, arg UpdateArticleStatusParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateArticleStatus,
		arg.Status,
		arg.PrevStatus,
		arg.UpdatedAt,
		arg.ID,
		arg.ExpectedStatus,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
