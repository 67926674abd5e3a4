package store

import (
	"context"
	"fmt"
	"time"

	"github.com/lamp-blog/lamp/internal/content"
	"github.com/lamp-blog/lamp/internal/db"
	"github.com/lamp-blog/lamp/internal/db/sqlc"
)

// SqlcStore implements Storage on top of the sqlc queries.
type SqlcStore struct {
	db      *db.Store
	queries *sqlc.Queries

	// inTx is set on the copies handed to transaction callbacks so that
	// nested WithTx calls join the open transaction. With a single
	// connection a second BeginTx would wait forever.
	inTx bool
}

// NewSqlcStore creates a new SqlcStore wrapping the given database.
func NewSqlcStore(store *db.Store) *SqlcStore {
	return &SqlcStore{
		db:      store,
		queries: store.Queries(),
	}
}

// Close closes the underlying database connection.
func (s *SqlcStore) Close() error {
	return s.db.Close()
}

// WithTx executes the given function within a write transaction.
func (s *SqlcStore) WithTx(ctx context.Context,
	fn func(ctx context.Context, store Storage) error) error {

	return s.execTx(ctx, db.WriteTxOption(), fn)
}

// WithReadTx executes the given function within a read-only transaction.
func (s *SqlcStore) WithReadTx(ctx context.Context,
	fn func(ctx context.Context, store Storage) error) error {

	return s.execTx(ctx, db.ReadTxOption(), fn)
}

func (s *SqlcStore) execTx(ctx context.Context, opts db.TxOptions,
	fn func(ctx context.Context, store Storage) error) error {

	if s.inTx {
		return fn(ctx, s)
	}

	return s.db.ExecTx(ctx, opts, func(q *sqlc.Queries) error {
		return fn(ctx, &SqlcStore{db: s.db, queries: q, inTx: true})
	})
}

// ReviewJobStore implementation.

// CreateReviewJob inserts a new review job.
func (s *SqlcStore) CreateReviewJob(ctx context.Context,
	params CreateReviewJobParams) (ReviewJob, error) {

	j, err := s.queries.CreateReviewJob(ctx, sqlc.CreateReviewJobParams{
		ContentID:   params.ContentID,
		ContentType: params.ContentType.String(),
		AuthorID:    params.AuthorID,
		ReviewerID:  ToSqlcNullInt64(params.ReviewerID),
		Status:      params.Status,
		Reason:      ToSqlcNullString(params.Reason),
		Auto:        boolToInt64(params.Auto),
		CreatedAt:   time.Now().Unix(),
		DecidedAt:   ToSqlcNullTime(params.DecidedAt),
	})
	if err != nil {
		err = db.MapSQLError(err)
		if db.IsUniqueConstraintViolation(err) {
			return ReviewJob{}, fmt.Errorf("%w: pending review job "+
				"for %s:%s", ErrDuplicate, params.ContentType,
				params.ContentID)
		}

		return ReviewJob{}, fmt.Errorf("failed to create review job: %w",
			err)
	}

	return ReviewJobFromSqlc(j), nil
}

// GetReviewJob retrieves a review job by its ID.
func (s *SqlcStore) GetReviewJob(ctx context.Context,
	id int64) (ReviewJob, error) {

	j, err := s.queries.GetReviewJob(ctx, id)
	if err != nil {
		return ReviewJob{}, fmt.Errorf("failed to get review job: %w",
			err)
	}

	return ReviewJobFromSqlc(j), nil
}

// DecideReviewJob records a decision on a job that is still undecided.
func (s *SqlcStore) DecideReviewJob(ctx context.Context,
	params DecideReviewJobParams) (bool, error) {

	decidedAt := params.DecidedAt
	n, err := s.queries.DecideReviewJob(ctx, sqlc.DecideReviewJobParams{
		Status:    params.Status,
		Reason:    ToSqlcNullString(params.Reason),
		DecidedAt: ToSqlcNullTime(&decidedAt),
		ID:        params.ID,
	})
	if err != nil {
		return false, fmt.Errorf("failed to decide review job: %w",
			db.MapSQLError(err))
	}

	return n == 1, nil
}

// MarkReviewJobDispatched acknowledges dispatch of a decided job.
func (s *SqlcStore) MarkReviewJobDispatched(ctx context.Context, id int64,
	at time.Time) error {

	_, err := s.queries.MarkReviewJobDispatched(
		ctx, sqlc.MarkReviewJobDispatchedParams{
			DispatchedAt: ToSqlcNullTime(&at),
			ID:           id,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to mark job dispatched: %w",
			db.MapSQLError(err))
	}

	return nil
}

// ListReviewJobsByReviewer lists every job assigned to a reviewer.
func (s *SqlcStore) ListReviewJobsByReviewer(ctx context.Context,
	reviewerID int64) ([]ReviewJob, error) {

	rows, err := s.queries.ListReviewJobsByReviewer(
		ctx, ToSqlcNullInt64(&reviewerID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list review jobs: %w", err)
	}

	return reviewJobsFromSqlc(rows), nil
}

// ListUnfinishedReviewJobs lists a reviewer's undecided jobs.
func (s *SqlcStore) ListUnfinishedReviewJobs(ctx context.Context,
	reviewerID int64) ([]ReviewJob, error) {

	rows, err := s.queries.ListUnfinishedReviewJobsByReviewer(
		ctx, ToSqlcNullInt64(&reviewerID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list unfinished jobs: %w",
			err)
	}

	return reviewJobsFromSqlc(rows), nil
}

// ListFinishedReviewJobs lists a reviewer's decided jobs.
func (s *SqlcStore) ListFinishedReviewJobs(ctx context.Context,
	reviewerID int64) ([]ReviewJob, error) {

	rows, err := s.queries.ListFinishedReviewJobsByReviewer(
		ctx, ToSqlcNullInt64(&reviewerID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list finished jobs: %w", err)
	}

	return reviewJobsFromSqlc(rows), nil
}

// GetLatestReviewJobForContent returns the newest job for a content item.
func (s *SqlcStore) GetLatestReviewJobForContent(ctx context.Context,
	ct content.Type, contentID string) (ReviewJob, error) {

	j, err := s.queries.GetLatestReviewJobForContent(
		ctx, sqlc.GetLatestReviewJobForContentParams{
			ContentType: ct.String(),
			ContentID:   contentID,
		},
	)
	if err != nil {
		return ReviewJob{}, fmt.Errorf("failed to get job for %s:%s: %w",
			ct, contentID, err)
	}

	return ReviewJobFromSqlc(j), nil
}

// ListPendingReviewJobs lists undecided jobs across all reviewers.
func (s *SqlcStore) ListPendingReviewJobs(ctx context.Context,
	limit int) ([]ReviewJob, error) {

	rows, err := s.queries.ListPendingReviewJobs(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending jobs: %w", err)
	}

	return reviewJobsFromSqlc(rows), nil
}

// ListUndispatchedReviewJobs lists decided jobs that were never
// acknowledged by the dispatcher.
func (s *SqlcStore) ListUndispatchedReviewJobs(ctx context.Context,
	afterID int64, limit int) ([]ReviewJob, error) {

	rows, err := s.queries.ListUndispatchedReviewJobs(
		ctx, sqlc.ListUndispatchedReviewJobsParams{
			AfterID: afterID,
			MaxRows: int64(limit),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list undispatched jobs: %w",
			err)
	}

	return reviewJobsFromSqlc(rows), nil
}

// CountUnfinishedReviewJobs counts a reviewer's undecided jobs.
func (s *SqlcStore) CountUnfinishedReviewJobs(ctx context.Context,
	reviewerID int64) (int64, error) {

	n, err := s.queries.CountUnfinishedReviewJobs(
		ctx, ToSqlcNullInt64(&reviewerID),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to count unfinished jobs: %w", err)
	}

	return n, nil
}

func reviewJobsFromSqlc(rows []sqlc.ReviewJob) []ReviewJob {
	jobs := make([]ReviewJob, len(rows))
	for i, r := range rows {
		jobs[i] = ReviewJobFromSqlc(r)
	}

	return jobs
}

// ArticleStore implementation.

// CreateArticle inserts a new draft article.
func (s *SqlcStore) CreateArticle(ctx context.Context,
	params CreateArticleParams) (Article, error) {

	now := time.Now().Unix()
	a, err := s.queries.CreateArticle(ctx, sqlc.CreateArticleParams{
		AuthorID:  params.AuthorID,
		Title:     params.Title,
		BodyMd:    params.BodyMD,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		err = db.MapSQLError(err)
		if db.IsUniqueConstraintViolation(err) {
			return Article{}, fmt.Errorf("%w: article %q",
				ErrDuplicate, params.Title)
		}

		return Article{}, fmt.Errorf("failed to create article: %w",
			err)
	}

	return ArticleFromSqlc(a), nil
}

// GetArticle retrieves an article by its ID.
func (s *SqlcStore) GetArticle(ctx context.Context,
	id int64) (Article, error) {

	a, err := s.queries.GetArticle(ctx, id)
	if err != nil {
		return Article{}, fmt.Errorf("failed to get article: %w", err)
	}

	return ArticleFromSqlc(a), nil
}

// UpdateArticleStatus conditionally changes an article's status.
func (s *SqlcStore) UpdateArticleStatus(ctx context.Context,
	params UpdateStatusParams) (bool, error) {

	n, err := s.queries.UpdateArticleStatus(
		ctx, sqlc.UpdateArticleStatusParams{
			Status:         params.To.String(),
			PrevStatus:     ToSqlcNullString(params.PrevStatus.String()),
			UpdatedAt:      params.At.Unix(),
			ID:             params.ID,
			ExpectedStatus: params.From.String(),
		},
	)
	if err != nil {
		return false, fmt.Errorf("failed to update article status: %w",
			db.MapSQLError(err))
	}

	return n == 1, nil
}

// PublishReviewedArticle publishes an article that is under review.
func (s *SqlcStore) PublishReviewedArticle(ctx context.Context, id int64,
	html string, at time.Time) (bool, error) {

	n, err := s.queries.PublishReviewedArticle(
		ctx, sqlc.PublishReviewedArticleParams{
			BodyHtml:    ToSqlcNullString(html),
			PublishedAt: ToSqlcNullTime(&at),
			UpdatedAt:   at.Unix(),
			ID:          id,
		},
	)
	if err != nil {
		return false, fmt.Errorf("failed to publish article: %w",
			db.MapSQLError(err))
	}

	return n == 1, nil
}

// RejectReviewedArticle rejects an article that is under review.
func (s *SqlcStore) RejectReviewedArticle(ctx context.Context, id int64,
	reason string, at time.Time) (bool, error) {

	n, err := s.queries.RejectReviewedArticle(
		ctx, sqlc.RejectReviewedArticleParams{
			RejectReason: ToSqlcNullString(reason),
			UpdatedAt:    at.Unix(),
			ID:           id,
		},
	)
	if err != nil {
		return false, fmt.Errorf("failed to reject article: %w",
			db.MapSQLError(err))
	}

	return n == 1, nil
}

// ListPublishedArticles pages through published articles.
func (s *SqlcStore) ListPublishedArticles(ctx context.Context, limit,
	offset int) ([]Article, error) {

	rows, err := s.queries.ListPublishedArticles(
		ctx, sqlc.ListPublishedArticlesParams{
			Limit:  int64(limit),
			Offset: int64(offset),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}

	return articlesFromSqlc(rows), nil
}

// ListArticlesByAuthor lists an author's visible articles.
func (s *SqlcStore) ListArticlesByAuthor(ctx context.Context,
	authorID int64) ([]Article, error) {

	rows, err := s.queries.ListArticlesByAuthor(ctx, authorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list author articles: %w",
			err)
	}

	return articlesFromSqlc(rows), nil
}

func articlesFromSqlc(rows []sqlc.Article) []Article {
	articles := make([]Article, len(rows))
	for i, r := range rows {
		articles[i] = ArticleFromSqlc(r)
	}

	return articles
}

// CommentStore implementation.

// CreateComment inserts a comment awaiting review.
func (s *SqlcStore) CreateComment(ctx context.Context,
	params CreateCommentParams) (Comment, error) {

	now := time.Now().Unix()
	c, err := s.queries.CreateComment(ctx, sqlc.CreateCommentParams{
		ArticleID: params.ArticleID,
		ParentID:  ToSqlcNullInt64(params.ParentID),
		AuthorID:  params.AuthorID,
		BodyMd:    params.BodyMD,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Comment{}, fmt.Errorf("failed to create comment: %w",
			db.MapSQLError(err))
	}

	return CommentFromSqlc(c), nil
}

// GetComment retrieves a comment by its ID.
func (s *SqlcStore) GetComment(ctx context.Context,
	id int64) (Comment, error) {

	c, err := s.queries.GetComment(ctx, id)
	if err != nil {
		return Comment{}, fmt.Errorf("failed to get comment: %w", err)
	}

	return CommentFromSqlc(c), nil
}

// UpdateCommentStatus conditionally changes a comment's status.
func (s *SqlcStore) UpdateCommentStatus(ctx context.Context,
	params UpdateStatusParams) (bool, error) {

	n, err := s.queries.UpdateCommentStatus(
		ctx, sqlc.UpdateCommentStatusParams{
			Status:         params.To.String(),
			UpdatedAt:      params.At.Unix(),
			ID:             params.ID,
			ExpectedStatus: params.From.String(),
		},
	)
	if err != nil {
		return false, fmt.Errorf("failed to update comment status: %w",
			db.MapSQLError(err))
	}

	return n == 1, nil
}

// PublishReviewedComment publishes a comment that is under review.
func (s *SqlcStore) PublishReviewedComment(ctx context.Context, id int64,
	html string, at time.Time) (bool, error) {

	n, err := s.queries.PublishReviewedComment(
		ctx, sqlc.PublishReviewedCommentParams{
			BodyHtml:  ToSqlcNullString(html),
			UpdatedAt: at.Unix(),
			ID:        id,
		},
	)
	if err != nil {
		return false, fmt.Errorf("failed to publish comment: %w",
			db.MapSQLError(err))
	}

	return n == 1, nil
}

// RejectReviewedComment rejects a comment that is under review.
func (s *SqlcStore) RejectReviewedComment(ctx context.Context, id int64,
	reason string, at time.Time) (bool, error) {

	n, err := s.queries.RejectReviewedComment(
		ctx, sqlc.RejectReviewedCommentParams{
			RejectReason: ToSqlcNullString(reason),
			UpdatedAt:    at.Unix(),
			ID:           id,
		},
	)
	if err != nil {
		return false, fmt.Errorf("failed to reject comment: %w",
			db.MapSQLError(err))
	}

	return n == 1, nil
}

// ListArticleComments lists the published comments of an article.
func (s *SqlcStore) ListArticleComments(ctx context.Context,
	articleID int64) ([]Comment, error) {

	rows, err := s.queries.ListArticleComments(ctx, articleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	return commentsFromSqlc(rows), nil
}

// ListPublishedComments lists the newest published comments.
func (s *SqlcStore) ListPublishedComments(ctx context.Context,
	limit int) ([]Comment, error) {

	rows, err := s.queries.ListPublishedComments(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	return commentsFromSqlc(rows), nil
}

func commentsFromSqlc(rows []sqlc.Comment) []Comment {
	comments := make([]Comment, len(rows))
	for i, r := range rows {
		comments[i] = CommentFromSqlc(r)
	}

	return comments
}

// Compile-time check that SqlcStore implements Storage.
var _ Storage = (*SqlcStore)(nil)
