package comment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lamp-blog/lamp/internal/content"
	"github.com/lamp-blog/lamp/internal/review"
	"github.com/lamp-blog/lamp/internal/store"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

type eventLog struct {
	mu     sync.Mutex
	events []content.Event
}

func (l *eventLog) Publish(_ context.Context, ev content.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, ev)
}

func (l *eventLog) take() []content.Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	evs := l.events
	l.events = nil

	return evs
}

// fixture is a comment service over a mock store holding one published
// and one draft article.
type fixture struct {
	svc       *Service
	st        *store.MockStore
	evs       *eventLog
	published int64
	draft     int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctx := context.Background()
	st := store.NewMockStore()

	pub, err := st.CreateArticle(ctx, store.CreateArticleParams{
		AuthorID: 1, Title: "public", BodyMD: "x",
	})
	require.NoError(t, err)
	_, err = st.UpdateArticleStatus(ctx, store.UpdateStatusParams{
		ID: pub.ID, From: content.StatusDraft,
		To: content.StatusReviewing, At: time.Now(),
	})
	require.NoError(t, err)
	ok, err := st.PublishReviewedArticle(ctx, pub.ID, "<p>x</p>",
		time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	draft, err := st.CreateArticle(ctx, store.CreateArticleParams{
		AuthorID: 1, Title: "draft", BodyMD: "y",
	})
	require.NoError(t, err)

	evs := &eventLog{}
	svc, err := NewService(Config{Store: st, Events: evs})
	require.NoError(t, err)

	return &fixture{
		svc:       svc,
		st:        st,
		evs:       evs,
		published: pub.ID,
		draft:     draft.ID,
	}
}

func fin(eventID string, c Comment, reason string) review.Finalization {
	return review.Finalization{
		EventID:   eventID,
		Type:      content.TypeComment,
		ContentID: content.FormatID(c.ID),
		Reason:    reason,
	}
}

func TestCreateCommentSubmitsForReview(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	c, err := f.svc.CreateComment(ctx, 2, f.published,
		fn.None[int64](), "nice post")
	require.NoError(t, err)
	require.Equal(t, content.StatusReviewing, c.Status)

	emitted := f.evs.take()
	require.Len(t, emitted, 2)
	require.True(t, emitted[0].(content.StatusEvent).Previous.IsNone())
	pe := emitted[1].(content.PublishEvent)
	require.Equal(t, content.StageReviewing, pe.Stage)
	require.Equal(t, content.TypeComment, pe.Ref.Type)
	require.Equal(t, int64(2), pe.Ref.AuthorID)

	// Not visible until approved.
	listed, err := f.svc.ListArticleComments(ctx, f.published)
	require.NoError(t, err)
	require.Empty(t, listed)
}

func TestCreateCommentValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateComment(ctx, 2, f.draft, fn.None[int64](), "hi")
	require.ErrorIs(t, err, content.ErrContentNotFound)

	_, err = f.svc.CreateComment(ctx, 2, 999, fn.None[int64](), "hi")
	require.ErrorIs(t, err, content.ErrContentNotFound)

	_, err = f.svc.CreateComment(ctx, 2, f.published, fn.None[int64](),
		"   ")
	require.ErrorIs(t, err, review.ErrInvalidArgument)

	_, err = f.svc.CreateComment(ctx, 2, f.published, fn.Some[int64](42),
		"reply")
	require.ErrorIs(t, err, content.ErrContentNotFound)

	parent, err := f.svc.CreateComment(ctx, 2, f.published,
		fn.None[int64](), "root")
	require.NoError(t, err)

	reply, err := f.svc.CreateComment(ctx, 3, f.published,
		fn.Some(parent.ID), "reply")
	require.NoError(t, err)
	require.Equal(t, parent.ID, reply.ParentID.UnwrapOr(0))
}

func TestCommentMarker(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	ok, err := f.svc.CreateComment(ctx, 2, f.published, fn.None[int64](),
		"**good**")
	require.NoError(t, err)
	bad, err := f.svc.CreateComment(ctx, 3, f.published, fn.None[int64](),
		"bad")
	require.NoError(t, err)
	f.evs.take()

	require.NoError(t, f.svc.MarkAsReviewed(ctx, fin("a", ok, "")))
	require.NoError(t, f.svc.MarkAsRejected(ctx, fin("b", bad, "rude")))

	got, err := f.svc.GetComment(ctx, ok.ID)
	require.NoError(t, err)
	require.Equal(t, content.StatusPublished, got.Status)
	require.Contains(t, got.HTML, "<strong>good</strong>")

	got, err = f.svc.GetComment(ctx, bad.ID)
	require.NoError(t, err)
	require.Equal(t, content.StatusReviewRejected, got.Status)
	require.Equal(t, "rude", got.RejectReason)

	require.Len(t, f.evs.take(), 3)

	// Redelivery is a no-op.
	require.NoError(t, f.svc.MarkAsReviewed(ctx, fin("a", ok, "")))
	require.NoError(t, f.svc.MarkAsReviewed(ctx, fin("c", bad, "")))
	require.Empty(t, f.evs.take())

	listed, err := f.svc.ListArticleComments(ctx, f.published)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, ok.ID, listed[0].ID)

	reg, err := content.NewCollectionRegistry(f.svc)
	require.NoError(t, err)
	all, err := reg.Collection(ctx, content.CollectionComments, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestDeleteComment(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	c, err := f.svc.CreateComment(ctx, 2, f.published, fn.None[int64](),
		"hi")
	require.NoError(t, err)
	f.evs.take()

	got, err := f.svc.DeleteComment(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, content.StatusDeleted, got.Status)

	emitted := f.evs.take()
	require.Len(t, emitted, 1)
	require.Equal(t, content.StatusReviewing,
		emitted[0].(content.StatusEvent).Previous.UnwrapOr(""))

	_, err = f.svc.DeleteComment(ctx, c.ID)
	require.ErrorIs(t, err, content.ErrInvalidTransition)

	// An approval arriving after deletion leaves the comment deleted.
	require.NoError(t, f.svc.MarkAsReviewed(ctx, fin("late", c, "")))
	got, err = f.svc.GetComment(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, content.StatusDeleted, got.Status)

	exists, err := f.svc.ContentExists(ctx, c.Ref())
	require.NoError(t, err)
	require.True(t, exists)
}

func TestMarkerIgnoresSupersededJob(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	c, err := f.svc.CreateComment(ctx, 2, f.published,
		fn.None[int64](), "first try")
	require.NoError(t, err)

	reviewer := int64(3)
	params := store.CreateReviewJobParams{
		ContentID:   content.FormatID(c.ID),
		ContentType: content.TypeComment,
		AuthorID:    2,
		ReviewerID:  &reviewer,
		Status:      "not_reviewed",
	}
	old, err := f.st.CreateReviewJob(ctx, params)
	require.NoError(t, err)
	ok, err := f.st.DecideReviewJob(ctx, store.DecideReviewJobParams{
		ID: old.ID, Status: "rejected", Reason: "rude",
		DecidedAt: time.Now(),
	})
	require.NoError(t, err)
	require.True(t, ok)
	current, err := f.st.CreateReviewJob(ctx, params)
	require.NoError(t, err)

	late := fin("ev-old", c, "rude")
	late.JobID = old.ID
	require.NoError(t, f.svc.MarkAsRejected(ctx, late))

	got, err := f.svc.GetComment(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, content.StatusReviewing, got.Status)

	approve := fin("ev-current", c, "")
	approve.JobID = current.ID
	require.NoError(t, f.svc.MarkAsReviewed(ctx, approve))

	got, err = f.svc.GetComment(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, content.StatusPublished, got.Status)
}
