package review

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lamp-blog/lamp/internal/actorutil"
	"github.com/lamp-blog/lamp/internal/content"
	"github.com/lamp-blog/lamp/internal/db"
	"github.com/lamp-blog/lamp/internal/events"
	"github.com/lamp-blog/lamp/internal/store"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestAssignReviewerHumanPath(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, nil)
	ctx := context.Background()

	job, err := h.svc.AssignReviewer(ctx, articleRef("1"), true)
	require.NoError(t, err)
	require.Equal(t, StatusNotReviewed, job.Status)
	require.Equal(t, int64(7), job.ReviewerID.UnwrapOr(-1))
	require.False(t, job.Auto)
	require.Empty(t, h.publisher.Events())

	job, err = h.svc.AssignReviewerDefault(ctx, articleRef("2"))
	require.NoError(t, err)
	require.Equal(t, int64(8), job.ReviewerID.UnwrapOr(-1))
}

func TestAssignReviewerAutoPath(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, NewTrustedAuthorPolicy(42))
	ctx := context.Background()

	job, err := h.svc.AssignReviewer(ctx, articleRef("1"), true)
	require.NoError(t, err)
	require.Equal(t, StatusReviewed, job.Status)
	require.Equal(t, AutoReviewerID, job.ReviewerID.UnwrapOr(-1))
	require.True(t, job.Auto)
	require.True(t, job.DecidedAt.IsSome())

	evs := h.publisher.Events()
	require.Len(t, evs, 1)
	require.Equal(t, StatusReviewed, evs[0].Status)
	require.Equal(t, job.ID, evs[0].Job.ID)

	stored, err := h.svc.GetReviewInfo(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, StatusReviewed, stored.Status)
}

func TestAssignReviewerWithoutAutoNeverDecides(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, NewTrustedAuthorPolicy(42))

	job, err := h.svc.AssignReviewer(
		context.Background(), articleRef("1"), false,
	)
	require.NoError(t, err)
	require.Equal(t, StatusNotReviewed, job.Status)
	require.Empty(t, h.publisher.Events())
}

func TestAssignReviewerErrors(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, nil)
	ctx := context.Background()

	_, err := h.svc.AssignReviewer(ctx, content.Ref{
		ID: "1", Type: content.TypeComment,
	}, false)
	require.ErrorIs(t, err, ErrUnsupportedType)

	h.marker.missing = map[string]bool{"404": true}
	_, err = h.svc.AssignReviewer(ctx, articleRef("404"), false)
	require.ErrorIs(t, err, ErrContentNotFound)

	_, err = h.svc.AssignReviewer(ctx, articleRef(""), false)
	require.ErrorIs(t, err, ErrInvalidArgument)

	pending, err := h.svc.ListPendingJobs(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestMakeReview(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, nil)
	ctx := context.Background()

	job, err := h.svc.AssignReviewer(ctx, articleRef("1"), false)
	require.NoError(t, err)

	info, err := h.svc.MakeReview(ctx, job.ID, false, "plagiarism")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, info.Status)
	require.Equal(t, "plagiarism", info.Reason)
	require.True(t, info.DecidedAt.IsSome())

	evs := h.publisher.Events()
	require.Len(t, evs, 1)
	require.Equal(t, StatusRejected, evs[0].Status)
	require.Equal(t, "plagiarism", evs[0].Job.Reason)

	// A second decision is refused and changes nothing.
	_, err = h.svc.MakeReview(ctx, job.ID, true, "")
	require.ErrorIs(t, err, ErrInvalidState)

	stored, err := h.svc.GetReviewInfo(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, stored.Status)
	require.Len(t, h.publisher.Events(), 1)

	_, err = h.svc.MakeReview(ctx, 999, true, "")
	require.ErrorIs(t, err, ErrJobNotFound)
}

func TestMakeReviewPublishFailureKeepsDecision(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, nil)
	ctx := context.Background()

	job, err := h.svc.AssignReviewer(ctx, articleRef("1"), false)
	require.NoError(t, err)

	h.publisher.err = ErrDispatcherStopped
	info, err := h.svc.MakeReview(ctx, job.ID, true, "")
	require.NoError(t, err)
	require.Equal(t, StatusReviewed, info.Status)

	// The decision is recovered on the next start.
	h.publisher.err = nil
	n, err := h.svc.RecoverUndispatched(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	evs := h.publisher.Events()
	require.Len(t, evs, 1)
	want := NewStateChangeEvent(Job{ID: info.JobID}, StatusReviewed)
	require.Equal(t, want.ID, evs[0].ID)
}

// TestRecoverUndispatchedPages checks that recovery re-publishes every
// undispatched job even when there are more than fit in one page.
func TestRecoverUndispatchedPages(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		batch := rapid.IntRange(1, 4).Draw(rt, "batch")
		n := rapid.IntRange(0, 13).Draw(rt, "n")

		marker := newRecordingMarker("articles", content.TypeArticle)
		registry, err := NewRegistry(marker)
		require.NoError(rt, err)

		pub := &recordingPublisher{err: ErrDispatcherStopped}
		svc, err := NewService(ServiceConfig{
			Store:        store.NewMockStore(),
			Registry:     registry,
			Publisher:    pub,
			Selector:     NewRoundRobinSelector(7),
			RecoverBatch: batch,
		})
		require.NoError(rt, err)

		ctx := context.Background()
		want := make(map[int64]bool, n)
		for i := range n {
			ref := articleRef(content.FormatID(int64(i + 1)))
			job, err := svc.AssignReviewer(ctx, ref, false)
			require.NoError(rt, err)

			_, err = svc.MakeReview(ctx, job.ID, i%2 == 0, "")
			require.NoError(rt, err)
			want[job.ID] = true
		}

		pub.mu.Lock()
		pub.err = nil
		pub.mu.Unlock()

		got, err := svc.RecoverUndispatched(ctx)
		require.NoError(rt, err)
		require.Equal(rt, n, got)

		seen := make(map[int64]bool, n)
		for _, ev := range pub.Events() {
			require.False(rt, seen[ev.Job.ID], "job %d twice", ev.Job.ID)
			seen[ev.Job.ID] = true
		}
		require.Equal(rt, want, seen)
	})
}

func TestReviewerListings(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, nil)
	ctx := context.Background()

	// Reviewers alternate 7, 8, 7.
	var ids []int64
	for _, c := range []string{"1", "2", "3"} {
		job, err := h.svc.AssignReviewer(ctx, articleRef(c), false)
		require.NoError(t, err)
		ids = append(ids, job.ID)
	}
	_, err := h.svc.MakeReview(ctx, ids[0], true, "")
	require.NoError(t, err)

	all, err := h.svc.GetReviewJobs(ctx, 7)
	require.NoError(t, err)
	require.Len(t, all, 2)

	unfinished, err := h.svc.GetUnfinishedReviewJobs(ctx, 7)
	require.NoError(t, err)
	require.Len(t, unfinished, 1)
	require.Equal(t, ids[2], unfinished[0].JobID)

	finished, err := h.svc.GetFinishedReviewJobs(ctx, 7)
	require.NoError(t, err)
	require.Len(t, finished, 1)
	require.Equal(t, ids[0], finished[0].JobID)

	pending, err := h.svc.ListPendingJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
}

func TestGetReviewInfoByContent(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, nil)
	ctx := context.Background()

	_, err := h.svc.GetReviewInfoByContent(ctx, "1", content.TypeArticle)
	require.ErrorIs(t, err, ErrJobNotFound)

	first, err := h.svc.AssignReviewer(ctx, articleRef("1"), false)
	require.NoError(t, err)
	_, err = h.svc.MakeReview(ctx, first.ID, false, "typos")
	require.NoError(t, err)

	second, err := h.svc.AssignReviewer(ctx, articleRef("1"), false)
	require.NoError(t, err)

	info, err := h.svc.GetReviewInfoByContent(ctx, "1", content.TypeArticle)
	require.NoError(t, err)
	require.Equal(t, second.ID, info.JobID)
	require.Equal(t, StatusNotReviewed, info.Status)
}

func TestServiceReceive(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	a := NewServiceActor(h.svc, 10, &wg)
	t.Cleanup(func() {
		a.Stop()
		wg.Wait()
	})
	ref := a.Ref()

	assigned, err := actorutil.AskAwaitTyped[AssignReviewerResp](
		ctx, ref, ReviewRequest(AssignReviewerMsg{Ref: articleRef("1")}),
	)
	require.NoError(t, err)
	require.NoError(t, assigned.Error)

	decided, err := actorutil.AskAwaitTyped[MakeReviewResp](
		ctx, ref, ReviewRequest(MakeReviewMsg{JobID: assigned.Job.ID, Passed: true}),
	)
	require.NoError(t, err)
	require.NoError(t, decided.Error)
	require.Equal(t, StatusReviewed, decided.Info.Status)

	again, err := actorutil.AskAwaitTyped[MakeReviewResp](
		ctx, ref, ReviewRequest(MakeReviewMsg{JobID: assigned.Job.ID, Passed: true}),
	)
	require.NoError(t, err)
	require.ErrorIs(t, again.Error, ErrInvalidState)

	jobs, err := actorutil.AskAwaitTyped[GetReviewJobsResp](
		ctx, ref, ReviewRequest(GetReviewJobsMsg{
			ReviewerID: 7, Filter: FilterFinished,
		}),
	)
	require.NoError(t, err)
	require.Len(t, jobs.Jobs, 1)

	info, err := actorutil.AskAwaitTyped[GetReviewInfoResp](
		ctx, ref, ReviewRequest(GetReviewInfoMsg{
			ContentID: "1", ContentType: content.TypeArticle,
		}),
	)
	require.NoError(t, err)
	require.Equal(t, assigned.Job.ID, info.Info.JobID)
}

func TestSubmissionHandler(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, nil)
	ctx := context.Background()
	handler := NewSubmissionHandler(h.svc)

	ev := content.NewPublishEvent(articleRef("1"), content.StageReviewing)
	require.NoError(t, handler.Handle(ctx, ev))

	// Redelivery does not create a second pending job.
	require.NoError(t, handler.Handle(ctx, ev))

	// Other stages are ignored.
	require.NoError(t, handler.Handle(ctx, content.NewPublishEvent(
		articleRef("2"), content.StagePublished,
	)))

	pending, err := h.svc.ListPendingJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "1", pending[0].Content.ID)
}

func TestSubmissionHandlerOnBus(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, nil)
	ctx := context.Background()

	bus := events.NewBus[content.Event]("content")
	t.Cleanup(bus.Stop)

	_, err := NewSubmissionHandler(h.svc).Subscribe(bus)
	require.NoError(t, err)

	bus.Publish(ctx, content.NewPublishEvent(
		articleRef("5"), content.StageReviewing,
	))

	require.Eventually(t, func() bool {
		info, err := h.svc.GetReviewInfoByContent(
			ctx, "5", content.TypeArticle,
		)
		return err == nil && info.Status == StatusNotReviewed
	}, 2*time.Second, 10*time.Millisecond)
}

// TestConcurrentMakeReviewSingleWinner races decisions on one job against
// a real database.
func TestConcurrentMakeReviewSingleWinner(t *testing.T) {
	t.Parallel()

	dbStore, err := db.Open(
		filepath.Join(t.TempDir(), "lamp.db"), slog.Default(),
	)
	require.NoError(t, err)
	st := store.NewSqlcStore(dbStore)
	t.Cleanup(func() { _ = st.Close() })

	marker := newRecordingMarker("articles", content.TypeArticle)
	registry, err := NewRegistry(marker)
	require.NoError(t, err)
	pub := &recordingPublisher{}

	svc, err := NewService(ServiceConfig{
		Store:     st,
		Registry:  registry,
		Publisher: pub,
		Selector:  NewLeastLoadedSelector(st, 1),
	})
	require.NoError(t, err)

	ctx := context.Background()
	job, err := svc.AssignReviewer(ctx, articleRef("1"), false)
	require.NoError(t, err)

	const racers = 8
	var (
		wg      sync.WaitGroup
		wins    atomic.Int32
		refused atomic.Int32
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(passed bool) {
			defer wg.Done()

			_, err := svc.MakeReview(ctx, job.ID, passed, "r")
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrInvalidState):
				refused.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i%2 == 0)
	}
	wg.Wait()

	require.Equal(t, int32(1), wins.Load())
	require.Equal(t, int32(racers-1), refused.Load())
	require.Len(t, pub.Events(), 1)
}

func TestAssignReviewerTwiceRefused(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, nil)
	ctx := context.Background()

	first, err := h.svc.AssignReviewer(ctx, articleRef("1"), false)
	require.NoError(t, err)

	_, err = h.svc.AssignReviewer(ctx, articleRef("1"), false)
	require.ErrorIs(t, err, ErrInvalidState)

	pending, err := h.svc.ListPendingJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, first.ID, pending[0].JobID)

	// Once decided, the content may be submitted again.
	_, err = h.svc.MakeReview(ctx, first.ID, false, "typos")
	require.NoError(t, err)
	_, err = h.svc.AssignReviewer(ctx, articleRef("1"), false)
	require.NoError(t, err)
	require.True(t, h.store.IsConsistent())
}

// TestConcurrentAssignReviewerSinglePendingJob races assignments of one
// article against sqlite and checks a single undecided job survives.
func TestConcurrentAssignReviewerSinglePendingJob(t *testing.T) {
	t.Parallel()

	dbStore, err := db.Open(
		filepath.Join(t.TempDir(), "lamp.db"), slog.Default(),
	)
	require.NoError(t, err)
	st := store.NewSqlcStore(dbStore)
	t.Cleanup(func() { _ = st.Close() })

	registry, err := NewRegistry(
		newRecordingMarker("articles", content.TypeArticle),
	)
	require.NoError(t, err)

	svc, err := NewService(ServiceConfig{
		Store:     st,
		Registry:  registry,
		Publisher: &recordingPublisher{},
		Selector:  NewRoundRobinSelector(1, 2),
	})
	require.NoError(t, err)

	ctx := context.Background()

	const racers = 8
	var (
		wg      sync.WaitGroup
		wins    atomic.Int32
		refused atomic.Int32
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := svc.AssignReviewer(ctx, articleRef("1"), false)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrInvalidState):
				refused.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), wins.Load())
	require.Equal(t, int32(racers-1), refused.Load())

	pending, err := svc.ListPendingJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

// TestEndToEndDispatch wires the service to a real dispatcher and checks
// the marker sees the decision and the job is acknowledged.
func TestEndToEndDispatch(t *testing.T) {
	t.Parallel()

	st := store.NewMockStore()
	marker := newRecordingMarker("articles", content.TypeArticle)
	registry, err := NewRegistry(marker)
	require.NoError(t, err)

	d, err := NewDispatcher(DispatcherConfig{
		Registry: registry,
		Acker:    st,
	})
	require.NoError(t, err)
	t.Cleanup(d.Stop)

	svc, err := NewService(ServiceConfig{
		Store:     st,
		Registry:  registry,
		Publisher: d,
		Selector:  NewRoundRobinSelector(1),
	})
	require.NoError(t, err)

	ctx := context.Background()
	job, err := svc.AssignReviewer(ctx, articleRef("1"), false)
	require.NoError(t, err)
	_, err = svc.MakeReview(ctx, job.ID, true, "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		undispatched, err := st.ListUndispatchedReviewJobs(ctx, 0, 10)
		return err == nil && len(undispatched) == 0 &&
			len(marker.Calls()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.True(t, marker.Calls()[0].Reviewed)
	require.True(t, st.IsConsistent())
}
