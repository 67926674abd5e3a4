package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lamp-blog/lamp/internal/content"
	"github.com/lamp-blog/lamp/internal/db/sqlc"
)

// ErrDuplicate is returned when an insert collides with a unique key, for
// example an author reusing an article title.
var ErrDuplicate = errors.New("duplicate record")

// Missing rows are reported as sql.ErrNoRows, wrapped, by every
// implementation.

// ReviewJobStore handles review job persistence.
type ReviewJobStore interface {
	// CreateReviewJob inserts a new job. ErrDuplicate when the content
	// already has an undecided job.
	CreateReviewJob(ctx context.Context,
		params CreateReviewJobParams) (ReviewJob, error)

	// GetReviewJob fetches a job by id.
	GetReviewJob(ctx context.Context, id int64) (ReviewJob, error)

	// DecideReviewJob records a decision if and only if the job is still
	// not_reviewed. It returns false when the job was already decided or
	// does not exist.
	DecideReviewJob(ctx context.Context,
		params DecideReviewJobParams) (bool, error)

	// MarkReviewJobDispatched records that markers ran for a decided job.
	// Repeated calls keep the first timestamp.
	MarkReviewJobDispatched(ctx context.Context, id int64,
		at time.Time) error

	// ListReviewJobsByReviewer lists every job of a reviewer, newest
	// first.
	ListReviewJobsByReviewer(ctx context.Context,
		reviewerID int64) ([]ReviewJob, error)

	// ListUnfinishedReviewJobs lists a reviewer's undecided jobs, oldest
	// first.
	ListUnfinishedReviewJobs(ctx context.Context,
		reviewerID int64) ([]ReviewJob, error)

	// ListFinishedReviewJobs lists a reviewer's decided jobs, most
	// recently decided first.
	ListFinishedReviewJobs(ctx context.Context,
		reviewerID int64) ([]ReviewJob, error)

	// GetLatestReviewJobForContent returns the newest job for a content
	// item.
	GetLatestReviewJobForContent(ctx context.Context, ct content.Type,
		contentID string) (ReviewJob, error)

	// ListPendingReviewJobs lists undecided jobs across reviewers, oldest
	// first.
	ListPendingReviewJobs(ctx context.Context,
		limit int) ([]ReviewJob, error)

	// ListUndispatchedReviewJobs lists decided jobs whose dispatch was
	// never acknowledged, in id order starting after afterID.
	ListUndispatchedReviewJobs(ctx context.Context, afterID int64,
		limit int) ([]ReviewJob, error)

	// CountUnfinishedReviewJobs counts a reviewer's undecided jobs.
	CountUnfinishedReviewJobs(ctx context.Context,
		reviewerID int64) (int64, error)
}

// ArticleStore handles article persistence. Status changes are conditional
// on the current status so concurrent writers cannot skip a lifecycle step.
type ArticleStore interface {
	// CreateArticle inserts a draft. ErrDuplicate when the author already
	// has an article with that title.
	CreateArticle(ctx context.Context,
		params CreateArticleParams) (Article, error)

	// GetArticle fetches an article by id.
	GetArticle(ctx context.Context, id int64) (Article, error)

	// UpdateArticleStatus moves an article from params.From to params.To.
	// It returns false when the article is not in params.From.
	UpdateArticleStatus(ctx context.Context,
		params UpdateStatusParams) (bool, error)

	// PublishReviewedArticle moves a reviewing article to published with
	// its rendered body.
	PublishReviewedArticle(ctx context.Context, id int64, html string,
		at time.Time) (bool, error)

	// RejectReviewedArticle moves a reviewing article to
	// review_rejected.
	RejectReviewedArticle(ctx context.Context, id int64, reason string,
		at time.Time) (bool, error)

	// ListPublishedArticles pages through published articles, newest
	// first.
	ListPublishedArticles(ctx context.Context, limit,
		offset int) ([]Article, error)

	// ListArticlesByAuthor lists an author's articles that are not
	// deleted or forbidden.
	ListArticlesByAuthor(ctx context.Context,
		authorID int64) ([]Article, error)
}

// CommentStore handles comment persistence.
type CommentStore interface {
	// CreateComment inserts a comment in reviewing status.
	CreateComment(ctx context.Context,
		params CreateCommentParams) (Comment, error)

	// GetComment fetches a comment by id.
	GetComment(ctx context.Context, id int64) (Comment, error)

	// UpdateCommentStatus moves a comment from params.From to params.To.
	UpdateCommentStatus(ctx context.Context,
		params UpdateStatusParams) (bool, error)

	// PublishReviewedComment moves a reviewing comment to published.
	PublishReviewedComment(ctx context.Context, id int64, html string,
		at time.Time) (bool, error)

	// RejectReviewedComment moves a reviewing comment to
	// review_rejected.
	RejectReviewedComment(ctx context.Context, id int64, reason string,
		at time.Time) (bool, error)

	// ListArticleComments lists the published comments of an article,
	// oldest first.
	ListArticleComments(ctx context.Context,
		articleID int64) ([]Comment, error)

	// ListPublishedComments lists the newest published comments.
	ListPublishedComments(ctx context.Context,
		limit int) ([]Comment, error)
}

// Storage combines all store interfaces for unified access.
type Storage interface {
	ReviewJobStore
	ArticleStore
	CommentStore

	// WithTx executes a function within a write database transaction.
	WithTx(ctx context.Context,
		fn func(ctx context.Context, s Storage) error) error

	// WithReadTx executes a function within a read-only transaction for
	// a consistent snapshot across queries.
	WithReadTx(ctx context.Context,
		fn func(ctx context.Context, s Storage) error) error

	// Close closes the store and releases resources.
	Close() error
}

// ReviewJob is a stored review job. Status holds the review package's
// status string.
type ReviewJob struct {
	ID           int64
	ContentID    string
	ContentType  content.Type
	AuthorID     int64
	ReviewerID   *int64
	Status       string
	Reason       string
	Auto         bool
	CreatedAt    time.Time
	DecidedAt    *time.Time
	DispatchedAt *time.Time
}

// Article is a stored article.
type Article struct {
	ID           int64
	AuthorID     int64
	Title        string
	BodyMD       string
	BodyHTML     string
	Status       content.Status
	PrevStatus   content.Status
	RejectReason string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	PublishedAt  *time.Time
}

// Comment is a stored comment.
type Comment struct {
	ID           int64
	ArticleID    int64
	ParentID     *int64
	AuthorID     int64
	BodyMD       string
	BodyHTML     string
	Status       content.Status
	RejectReason string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateReviewJobParams are the parameters for a new review job. A job
// created already decided carries DecidedAt.
type CreateReviewJobParams struct {
	ContentID   string
	ContentType content.Type
	AuthorID    int64
	ReviewerID  *int64
	Status      string
	Reason      string
	Auto        bool
	DecidedAt   *time.Time
}

// DecideReviewJobParams record a review decision.
type DecideReviewJobParams struct {
	ID        int64
	Status    string
	Reason    string
	DecidedAt time.Time
}

// CreateArticleParams are the parameters for a new draft.
type CreateArticleParams struct {
	AuthorID int64
	Title    string
	BodyMD   string
}

// CreateCommentParams are the parameters for a new comment.
type CreateCommentParams struct {
	ArticleID int64
	ParentID  *int64
	AuthorID  int64
	BodyMD    string
}

// UpdateStatusParams describe a conditional status change. PrevStatus is
// remembered for restore and ignored by comments.
type UpdateStatusParams struct {
	ID         int64
	From       content.Status
	To         content.Status
	PrevStatus content.Status
	At         time.Time
}

// Conversion functions from sqlc models.

// ReviewJobFromSqlc converts a sqlc.ReviewJob to a store.ReviewJob.
func ReviewJobFromSqlc(j sqlc.ReviewJob) ReviewJob {
	job := ReviewJob{
		ID:          j.ID,
		ContentID:   j.ContentID,
		ContentType: content.Type(j.ContentType),
		AuthorID:    j.AuthorID,
		Status:      j.Status,
		Reason:      j.Reason.String,
		Auto:        j.Auto == 1,
		CreatedAt:   time.Unix(j.CreatedAt, 0),
	}
	if j.ReviewerID.Valid {
		id := j.ReviewerID.Int64
		job.ReviewerID = &id
	}
	job.DecidedAt = fromSqlcNullTime(j.DecidedAt)
	job.DispatchedAt = fromSqlcNullTime(j.DispatchedAt)

	return job
}

// ArticleFromSqlc converts a sqlc.Article to a store.Article.
func ArticleFromSqlc(a sqlc.Article) Article {
	return Article{
		ID:           a.ID,
		AuthorID:     a.AuthorID,
		Title:        a.Title,
		BodyMD:       a.BodyMd,
		BodyHTML:     a.BodyHtml.String,
		Status:       content.Status(a.Status),
		PrevStatus:   content.Status(a.PrevStatus.String),
		RejectReason: a.RejectReason.String,
		CreatedAt:    time.Unix(a.CreatedAt, 0),
		UpdatedAt:    time.Unix(a.UpdatedAt, 0),
		PublishedAt:  fromSqlcNullTime(a.PublishedAt),
	}
}

// CommentFromSqlc converts a sqlc.Comment to a store.Comment.
func CommentFromSqlc(c sqlc.Comment) Comment {
	comment := Comment{
		ID:           c.ID,
		ArticleID:    c.ArticleID,
		AuthorID:     c.AuthorID,
		BodyMD:       c.BodyMd,
		BodyHTML:     c.BodyHtml.String,
		Status:       content.Status(c.Status),
		RejectReason: c.RejectReason.String,
		CreatedAt:    time.Unix(c.CreatedAt, 0),
		UpdatedAt:    time.Unix(c.UpdatedAt, 0),
	}
	if c.ParentID.Valid {
		id := c.ParentID.Int64
		comment.ParentID = &id
	}

	return comment
}

func fromSqlcNullTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0)

	return &t
}

// ToSqlcNullString converts a string to sql.NullString, empty being NULL.
func ToSqlcNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// ToSqlcNullTime converts a time pointer to a unix sql.NullInt64.
func ToSqlcNullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

// ToSqlcNullInt64 converts an int64 pointer to sql.NullInt64.
func ToSqlcNullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func boolToInt64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
