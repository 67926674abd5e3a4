package store

import (
	"context"
	"database/sql"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/lamp-blog/lamp/internal/content"
	"github.com/lamp-blog/lamp/internal/db"
	"github.com/stretchr/testify/require"
)

// backends returns every Storage implementation under test.
func backends(t *testing.T) map[string]Storage {
	t.Helper()

	sqlDB, err := db.Open(
		filepath.Join(t.TempDir(), "store.db"), slog.Default(),
	)
	require.NoError(t, err)

	sqlStore := NewSqlcStore(sqlDB)
	t.Cleanup(func() {
		sqlStore.Close()
	})

	return map[string]Storage{
		"mock":   NewMockStore(),
		"sqlite": sqlStore,
	}
}

func reviewer(id int64) *int64 {
	return &id
}

func TestReviewJobLifecycle(t *testing.T) {
	t.Parallel()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			job, err := s.CreateReviewJob(ctx, CreateReviewJobParams{
				ContentID:   "10",
				ContentType: content.TypeArticle,
				AuthorID:    4,
				ReviewerID:  reviewer(2),
				Status:      statusNotReviewed,
			})
			require.NoError(t, err)
			require.NotZero(t, job.ID)
			require.Nil(t, job.DecidedAt)

			n, err := s.CountUnfinishedReviewJobs(ctx, 2)
			require.NoError(t, err)
			require.EqualValues(t, 1, n)

			ok, err := s.DecideReviewJob(ctx, DecideReviewJobParams{
				ID:        job.ID,
				Status:    "rejected",
				Reason:    "spam",
				DecidedAt: time.Now(),
			})
			require.NoError(t, err)
			require.True(t, ok)

			// The second decision must not land.
			ok, err = s.DecideReviewJob(ctx, DecideReviewJobParams{
				ID:        job.ID,
				Status:    "reviewed",
				DecidedAt: time.Now(),
			})
			require.NoError(t, err)
			require.False(t, ok)

			got, err := s.GetReviewJob(ctx, job.ID)
			require.NoError(t, err)
			require.Equal(t, "rejected", got.Status)
			require.Equal(t, "spam", got.Reason)
			require.NotNil(t, got.DecidedAt)

			finished, err := s.ListFinishedReviewJobs(ctx, 2)
			require.NoError(t, err)
			require.Len(t, finished, 1)

			unfinished, err := s.ListUnfinishedReviewJobs(ctx, 2)
			require.NoError(t, err)
			require.Empty(t, unfinished)

			undispatched, err := s.ListUndispatchedReviewJobs(ctx, 0, 10)
			require.NoError(t, err)
			require.Len(t, undispatched, 1)

			// The cursor excludes ids up to and including afterID.
			after, err := s.ListUndispatchedReviewJobs(ctx, job.ID, 10)
			require.NoError(t, err)
			require.Empty(t, after)

			require.NoError(t, s.MarkReviewJobDispatched(
				ctx, job.ID, time.Now(),
			))
			undispatched, err = s.ListUndispatchedReviewJobs(ctx, 0, 10)
			require.NoError(t, err)
			require.Empty(t, undispatched)
		})
	}
}

func TestReviewJobNotFound(t *testing.T) {
	t.Parallel()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.GetReviewJob(ctx, 999)
			require.ErrorIs(t, err, sql.ErrNoRows)

			_, err = s.GetLatestReviewJobForContent(
				ctx, content.TypeComment, "1",
			)
			require.ErrorIs(t, err, sql.ErrNoRows)

			ok, err := s.DecideReviewJob(ctx, DecideReviewJobParams{
				ID: 999, Status: "reviewed", DecidedAt: time.Now(),
			})
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestLatestJobForContent(t *testing.T) {
	t.Parallel()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			// Each submission is decided before the next one.
			var last ReviewJob
			for i := 0; i < 3; i++ {
				job, err := s.CreateReviewJob(
					ctx, CreateReviewJobParams{
						ContentID:   "7",
						ContentType: content.TypeArticle,
						ReviewerID:  reviewer(1),
						Status:      statusNotReviewed,
					},
				)
				require.NoError(t, err)
				last = job

				if i == 2 {
					break
				}
				ok, err := s.DecideReviewJob(
					ctx, DecideReviewJobParams{
						ID:        job.ID,
						Status:    "rejected",
						Reason:    "typos",
						DecidedAt: time.Now(),
					},
				)
				require.NoError(t, err)
				require.True(t, ok)
			}

			got, err := s.GetLatestReviewJobForContent(
				ctx, content.TypeArticle, "7",
			)
			require.NoError(t, err)
			require.Equal(t, last.ID, got.ID)

			_, err = s.CreateReviewJob(ctx, CreateReviewJobParams{
				ContentID:   "8",
				ContentType: content.TypeArticle,
				ReviewerID:  reviewer(1),
				Status:      statusNotReviewed,
			})
			require.NoError(t, err)

			pending, err := s.ListPendingReviewJobs(ctx, 2)
			require.NoError(t, err)
			require.Len(t, pending, 2)
			require.Equal(t, last.ID, pending[0].ID)
			require.Less(t, pending[0].ID, pending[1].ID)
		})
	}
}

func TestOnePendingJobPerContent(t *testing.T) {
	t.Parallel()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			params := CreateReviewJobParams{
				ContentID:   "9",
				ContentType: content.TypeComment,
				ReviewerID:  reviewer(1),
				Status:      statusNotReviewed,
			}
			_, err := s.CreateReviewJob(ctx, params)
			require.NoError(t, err)

			_, err = s.CreateReviewJob(ctx, params)
			require.ErrorIs(t, err, ErrDuplicate)

			// Another type with the same id is a different item.
			params.ContentType = content.TypeArticle
			_, err = s.CreateReviewJob(ctx, params)
			require.NoError(t, err)
		})
	}
}

func TestArticleStatusCompareAndSet(t *testing.T) {
	t.Parallel()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			a, err := s.CreateArticle(ctx, CreateArticleParams{
				AuthorID: 1, Title: "t", BodyMD: "*x*",
			})
			require.NoError(t, err)
			require.Equal(t, content.StatusDraft, a.Status)

			_, err = s.CreateArticle(ctx, CreateArticleParams{
				AuthorID: 1, Title: "t", BodyMD: "y",
			})
			require.ErrorIs(t, err, ErrDuplicate)

			// Publishing requires reviewing.
			ok, err := s.PublishReviewedArticle(
				ctx, a.ID, "<p>x</p>", time.Now(),
			)
			require.NoError(t, err)
			require.False(t, ok)

			ok, err = s.UpdateArticleStatus(ctx, UpdateStatusParams{
				ID:   a.ID,
				From: content.StatusDraft,
				To:   content.StatusReviewing,
				At:   time.Now(),
			})
			require.NoError(t, err)
			require.True(t, ok)

			ok, err = s.PublishReviewedArticle(
				ctx, a.ID, "<p>x</p>", time.Now(),
			)
			require.NoError(t, err)
			require.True(t, ok)

			got, err := s.GetArticle(ctx, a.ID)
			require.NoError(t, err)
			require.Equal(t, content.StatusPublished, got.Status)
			require.Equal(t, "<p>x</p>", got.BodyHTML)
			require.NotNil(t, got.PublishedAt)

			published, err := s.ListPublishedArticles(ctx, 10, 0)
			require.NoError(t, err)
			require.Len(t, published, 1)

			// A late rejection finds nothing to reject.
			ok, err = s.RejectReviewedArticle(
				ctx, a.ID, "late", time.Now(),
			)
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestCommentsOfArticle(t *testing.T) {
	t.Parallel()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			a, err := s.CreateArticle(ctx, CreateArticleParams{
				AuthorID: 1, Title: "host", BodyMD: "body",
			})
			require.NoError(t, err)

			c1, err := s.CreateComment(ctx, CreateCommentParams{
				ArticleID: a.ID, AuthorID: 2, BodyMD: "first",
			})
			require.NoError(t, err)
			require.Equal(t, content.StatusReviewing, c1.Status)

			c2, err := s.CreateComment(ctx, CreateCommentParams{
				ArticleID: a.ID, ParentID: &c1.ID, AuthorID: 3,
				BodyMD: "reply",
			})
			require.NoError(t, err)
			require.Equal(t, c1.ID, *c2.ParentID)

			ok, err := s.PublishReviewedComment(
				ctx, c1.ID, "<p>first</p>", time.Now(),
			)
			require.NoError(t, err)
			require.True(t, ok)

			ok, err = s.RejectReviewedComment(
				ctx, c2.ID, "rude", time.Now(),
			)
			require.NoError(t, err)
			require.True(t, ok)

			listed, err := s.ListArticleComments(ctx, a.ID)
			require.NoError(t, err)
			require.Len(t, listed, 1)
			require.Equal(t, c1.ID, listed[0].ID)

			got, err := s.GetComment(ctx, c2.ID)
			require.NoError(t, err)
			require.Equal(t, "rude", got.RejectReason)
		})
	}
}

func TestSqlcStoreNestedTx(t *testing.T) {
	t.Parallel()

	s := backends(t)["sqlite"]
	ctx := context.Background()

	err := s.WithTx(ctx, func(ctx context.Context, tx Storage) error {
		_, err := tx.CreateArticle(ctx, CreateArticleParams{
			AuthorID: 9, Title: "nested", BodyMD: "x",
		})
		if err != nil {
			return err
		}

		return tx.WithTx(ctx, func(ctx context.Context,
			inner Storage) error {

			list, err := inner.ListArticlesByAuthor(ctx, 9)
			if err != nil {
				return err
			}
			require.Len(t, list, 1)

			return nil
		})
	})
	require.NoError(t, err)
}
