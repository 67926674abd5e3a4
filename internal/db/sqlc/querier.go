package sqlc

import (
	"context"
	"database/sql"
)

type Querier interface {
	CountUnfinishedReviewJobs(ctx context.Context, reviewerID sql.NullInt64) (int64, error)
	CreateArticle(ctx context.Context, arg CreateArticleParams) (Article, error)
	CreateComment(ctx context.Context, arg CreateCommentParams) (Comment, error)
	CreateReviewJob(ctx context.Context, arg CreateReviewJobParams) (ReviewJob, error)
	DecideReviewJob(ctx context.Context, arg DecideReviewJobParams) (int64, error)
	GetArticle(ctx context.Context, id int64) (Article, error)
	GetComment(ctx context.Context, id int64) (Comment, error)
	GetLatestReviewJobForContent(ctx context.Context, arg GetLatestReviewJobForContentParams) (ReviewJob, error)
	GetReviewJob(ctx context.Context, id int64) (ReviewJob, error)
	ListArticleComments(ctx context.Context, articleID int64) ([]Comment, error)
	ListArticlesByAuthor(ctx context.Context, authorID int64) ([]Article, error)
	ListFinishedReviewJobsByReviewer(ctx context.Context, reviewerID sql.NullInt64) ([]ReviewJob, error)
	ListPendingReviewJobs(ctx context.Context, limit int64) ([]ReviewJob, error)
	ListPublishedArticles(ctx context.Context, arg ListPublishedArticlesParams) ([]Article, error)
	ListPublishedComments(ctx context.Context, limit int64) ([]Comment, error)
	ListReviewJobsByReviewer(ctx context.Context, reviewerID sql.NullInt64) ([]ReviewJob, error)
	ListUndispatchedReviewJobs(ctx context.Context, arg ListUndispatchedReviewJobsParams) ([]ReviewJob, error)
	ListUnfinishedReviewJobsByReviewer(ctx context.Context, reviewerID sql.NullInt64) ([]ReviewJob, error)
	MarkReviewJobDispatched(ctx context.Context, arg MarkReviewJobDispatchedParams) (int64, error)
	PublishReviewedArticle(ctx context.Context, arg PublishReviewedArticleParams) (int64, error)
	PublishReviewedComment(ctx context.Context, arg PublishReviewedCommentParams) (int64, error)
	RejectReviewedArticle(ctx context.Context, arg RejectReviewedArticleParams) (int64, error)
	RejectReviewedComment(ctx context.Context, arg RejectReviewedCommentParams) (int64, error)
	UpdateArticleStatus(ctx context.Context, arg UpdateArticleStatusParams) (int64, error)
	UpdateCommentStatus(ctx context.Context, arg UpdateCommentStatusParams) (int64, error)
}

var _ Querier = (*Queries)(nil)
