package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lamp-blog/lamp/internal/article"
	"github.com/lamp-blog/lamp/internal/comment"
	"github.com/lamp-blog/lamp/internal/content"
	"github.com/lamp-blog/lamp/internal/events"
	"github.com/lamp-blog/lamp/internal/review"
	"github.com/lamp-blog/lamp/internal/store"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const reviewerID = 7

// testEnv is a fully wired server over a MockStore.
type testEnv struct {
	srv  *Server
	http *httptest.Server
	st   *store.MockStore
	bus  *events.Bus[content.Event]
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := store.NewMockStore()
	bus := events.NewBus[content.Event]("content")
	t.Cleanup(bus.Stop)

	articles, err := article.NewService(article.Config{
		Store: st, Events: bus,
	})
	require.NoError(t, err)
	comments, err := comment.NewService(comment.Config{
		Store: st, Events: bus,
	})
	require.NoError(t, err)

	registry, err := review.NewRegistry(articles, comments)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics := review.NewMetrics(reg)

	dispatcher, err := review.NewDispatcher(review.DispatcherConfig{
		Registry: registry,
		Acker:    st,
		Metrics:  metrics,
	})
	require.NoError(t, err)
	t.Cleanup(dispatcher.Stop)

	svc, err := review.NewService(review.ServiceConfig{
		Store:     st,
		Registry:  registry,
		Publisher: dispatcher,
		Selector:  review.NewRoundRobinSelector(reviewerID),
		Metrics:   metrics,
	})
	require.NoError(t, err)

	_, err = review.NewSubmissionHandler(svc).Subscribe(bus)
	require.NoError(t, err)

	reviewActor := review.NewServiceActor(svc, 16, nil)
	t.Cleanup(reviewActor.Stop)

	srv, err := NewServer(&Config{
		Articles: articles,
		Comments: comments,
		Review:   reviewActor.Ref(),
		Failures: dispatcher.Sink(),
		Feed:     bus,
		Gatherer: reg,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Shutdown(context.Background())
	})

	return &testEnv{srv: srv, http: ts, st: st, bus: bus}
}

func (e *testEnv) do(t *testing.T, method, path string, body any,
	out any) int {

	t.Helper()

	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.http.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}

	return resp.StatusCode
}

// publishedArticle creates an article, publishes it and approves its job
// through the API, returning once the article is public.
func (e *testEnv) publishedArticle(t *testing.T, title string) APIV1Article {
	t.Helper()

	var a APIV1Article
	code := e.do(t, http.MethodPost, "/api/v1/articles", map[string]any{
		"author_id": 1, "title": title, "body": "# " + title,
	}, &a)
	require.Equal(t, http.StatusCreated, code)

	code = e.do(t, http.MethodPost,
		fmt.Sprintf("/api/v1/articles/%d/publish", a.ID), nil, &a)
	require.Equal(t, http.StatusAccepted, code)
	require.Equal(t, content.StatusReviewing.String(), a.Status)

	job := e.awaitJob(t, content.TypeArticle, a.ID)

	var decided APIV1ReviewJob
	code = e.do(t, http.MethodPost,
		fmt.Sprintf("/api/v1/review-jobs/%d/decision", job.ID),
		map[string]any{"passed": true}, &decided)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, review.StatusReviewed.String(), decided.Status)

	require.Eventually(t, func() bool {
		e.do(t, http.MethodGet,
			fmt.Sprintf("/api/v1/articles/%d", a.ID), nil, &a)
		return a.Status == content.StatusPublished.String()
	}, 2*time.Second, 10*time.Millisecond)

	return a
}

// awaitJob waits for the submission handler to create the content's job.
func (e *testEnv) awaitJob(t *testing.T, ct content.Type,
	id int64) APIV1ReviewJob {

	t.Helper()

	var job APIV1ReviewJob
	require.Eventually(t, func() bool {
		code := e.do(t, http.MethodGet,
			fmt.Sprintf("/api/v1/contents/%s/%d/review", ct, id),
			nil, &job)
		return code == http.StatusOK &&
			job.Status == review.StatusNotReviewed.String()
	}, 2*time.Second, 10*time.Millisecond)

	return job
}

func TestArticleReviewFlow(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	a := e.publishedArticle(t, "Hello")

	require.Contains(t, a.HTML, "<h1")
	require.NotNil(t, a.PublishedAt)

	var listed struct {
		Articles []APIV1Article `json:"articles"`
	}
	code := e.do(t, http.MethodGet, "/api/v1/articles", nil, &listed)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, listed.Articles, 1)

	var jobs struct {
		Jobs []APIV1ReviewJob `json:"jobs"`
	}
	code = e.do(t, http.MethodGet, fmt.Sprintf(
		"/api/v1/reviewers/%d/jobs?state=finished", reviewerID,
	), nil, &jobs)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, jobs.Jobs, 1)
	require.NotNil(t, jobs.Jobs[0].DecidedAt)

	code = e.do(t, http.MethodGet, fmt.Sprintf(
		"/api/v1/reviewers/%d/jobs?state=unfinished", reviewerID,
	), nil, &jobs)
	require.Equal(t, http.StatusOK, code)
	require.Empty(t, jobs.Jobs)
}

func TestRejectionAndResubmit(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)

	var a APIV1Article
	e.do(t, http.MethodPost, "/api/v1/articles", map[string]any{
		"author_id": 2, "title": "Spam", "body": "buy now",
	}, &a)
	e.do(t, http.MethodPost,
		fmt.Sprintf("/api/v1/articles/%d/publish", a.ID), nil, nil)

	job := e.awaitJob(t, content.TypeArticle, a.ID)

	// A rejection without a reason is refused before reaching the
	// service.
	var apiErr APIV1Error
	code := e.do(t, http.MethodPost,
		fmt.Sprintf("/api/v1/review-jobs/%d/decision", job.ID),
		map[string]any{"passed": false}, &apiErr)
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, review.ClassInvalidArgument, apiErr.Code)

	code = e.do(t, http.MethodPost,
		fmt.Sprintf("/api/v1/review-jobs/%d/decision", job.ID),
		map[string]any{"passed": false, "reason": "spam"}, nil)
	require.Equal(t, http.StatusOK, code)

	require.Eventually(t, func() bool {
		e.do(t, http.MethodGet,
			fmt.Sprintf("/api/v1/articles/%d", a.ID), nil, &a)
		return a.Status == content.StatusReviewRejected.String()
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, "spam", a.RejectReason)

	// Deciding twice conflicts.
	code = e.do(t, http.MethodPost,
		fmt.Sprintf("/api/v1/review-jobs/%d/decision", job.ID),
		map[string]any{"passed": true}, &apiErr)
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, review.ClassInvalidState, apiErr.Code)

	// Resubmitting opens a new job.
	code = e.do(t, http.MethodPost,
		fmt.Sprintf("/api/v1/articles/%d/publish", a.ID), nil, nil)
	require.Equal(t, http.StatusAccepted, code)

	next := e.awaitJob(t, content.TypeArticle, a.ID)
	require.NotEqual(t, job.ID, next.ID)
}

func TestCommentFlow(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	a := e.publishedArticle(t, "Host")

	var cm APIV1Comment
	code := e.do(t, http.MethodPost,
		fmt.Sprintf("/api/v1/articles/%d/comments", a.ID),
		map[string]any{"author_id": 3, "body": "*nice*"}, &cm)
	require.Equal(t, http.StatusAccepted, code)
	require.Equal(t, content.StatusReviewing.String(), cm.Status)

	job := e.awaitJob(t, content.TypeComment, cm.ID)
	code = e.do(t, http.MethodPost,
		fmt.Sprintf("/api/v1/review-jobs/%d/decision", job.ID),
		map[string]any{"passed": true}, nil)
	require.Equal(t, http.StatusOK, code)

	var listed struct {
		Comments []APIV1Comment `json:"comments"`
	}
	require.Eventually(t, func() bool {
		e.do(t, http.MethodGet,
			fmt.Sprintf("/api/v1/articles/%d/comments", a.ID), nil,
			&listed)
		return len(listed.Comments) == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.Contains(t, listed.Comments[0].HTML, "<em>nice</em>")
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   review.ErrorClass
	}{
		{
			name: "missing article", method: http.MethodGet,
			path:   "/api/v1/articles/99",
			status: http.StatusNotFound, code: review.ClassNotFound,
		},
		{
			name: "bad id", method: http.MethodGet,
			path:   "/api/v1/articles/abc",
			status: http.StatusBadRequest,
			code:   review.ClassInvalidArgument,
		},
		{
			name: "missing job", method: http.MethodGet,
			path:   "/api/v1/review-jobs/42",
			status: http.StatusNotFound, code: review.ClassNotFound,
		},
		{
			name: "unsupported type", method: http.MethodGet,
			path:   "/api/v1/contents/video/1/review",
			status: http.StatusUnprocessableEntity,
			code:   review.ClassUnsupportedType,
		},
		{
			name: "bad filter", method: http.MethodGet,
			path:   "/api/v1/reviewers/7/jobs?state=soon",
			status: http.StatusBadRequest,
			code:   review.ClassInvalidArgument,
		},
		{
			name: "invalid draft", method: http.MethodPost,
			path: "/api/v1/articles",
			body: map[string]any{"author_id": 1, "title": ""},
			status: http.StatusBadRequest,
			code:   review.ClassInvalidArgument,
		},
		{
			name: "decision without passed", method: http.MethodPost,
			path:   "/api/v1/review-jobs/1/decision",
			body:   map[string]any{"reason": "x"},
			status: http.StatusBadRequest,
			code:   review.ClassInvalidArgument,
		},
		{
			name: "comment on missing article",
			method: http.MethodPost,
			path:   "/api/v1/articles/5/comments",
			body:   map[string]any{"author_id": 1, "body": "hi"},
			status: http.StatusNotFound, code: review.ClassNotFound,
		},
		{
			name: "unknown route", method: http.MethodGet,
			path:   "/api/v1/nope",
			status: http.StatusNotFound, code: review.ClassNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var apiErr APIV1Error
			status := e.do(t, tc.method, tc.path, tc.body, &apiErr)
			require.Equal(t, tc.status, status)
			require.Equal(t, tc.code, apiErr.Code)
			require.NotEmpty(t, apiErr.Message)
		})
	}
}

func TestPublishDraftTwiceConflicts(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)

	var a APIV1Article
	e.do(t, http.MethodPost, "/api/v1/articles", map[string]any{
		"author_id": 1, "title": "Once", "body": "x",
	}, &a)

	path := fmt.Sprintf("/api/v1/articles/%d/publish", a.ID)
	require.Equal(t, http.StatusAccepted,
		e.do(t, http.MethodPost, path, nil, nil))

	var apiErr APIV1Error
	require.Equal(t, http.StatusConflict,
		e.do(t, http.MethodPost, path, nil, &apiErr))
	require.Equal(t, review.ClassInvalidState, apiErr.Code)
}

func TestDispatchFailuresAndMetrics(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	e.publishedArticle(t, "Counted")

	var failures struct {
		Failures []APIV1MarkerFailure `json:"failures"`
		Total    uint64               `json:"total"`
	}
	code := e.do(t, http.MethodGet, "/api/v1/dispatch/failures", nil,
		&failures)
	require.Equal(t, http.StatusOK, code)
	require.Empty(t, failures.Failures)
	require.Zero(t, failures.Total)

	resp, err := http.Get(e.http.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	require.Contains(t, buf.String(), "lamp_review_decisions_total")
}

func TestModerationFeed(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)

	url := "ws" + strings.TrimPrefix(e.http.URL, "http") +
		"/ws/moderation?type=article"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, WSMsgTypeConnected, msg.Type)

	require.Eventually(t, func() bool {
		return e.srv.Hub().ClientCount() == 1
	}, time.Second, 5*time.Millisecond)

	// Comment events are filtered out; the article ones arrive.
	ref := content.Ref{ID: "1", Type: content.TypeComment, AuthorID: 1}
	e.bus.Publish(context.Background(), content.NewPublishEvent(
		ref, content.StageReviewing,
	))
	ref.Type = content.TypeArticle
	e.bus.Publish(context.Background(), content.NewStatusEvent(
		ref, fn.Some(content.StatusDraft),
		content.StatusReviewing,
	))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var feed struct {
		Type    string            `json:"type"`
		Payload APIV1ContentEvent `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&feed))
	require.Equal(t, WSMsgTypeStatus, feed.Type)
	require.Equal(t, "article", feed.Payload.ContentType)
	require.Equal(t, "draft", feed.Payload.Previous)
	require.Equal(t, "reviewing", feed.Payload.Current)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ping"}))
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, WSMsgTypePong, msg.Type)
}

func TestModerationFeedSubscribe(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)

	url := "ws" + strings.TrimPrefix(e.http.URL, "http") + "/ws/moderation"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, WSMsgTypeConnected, msg.Type)

	// A payload that is not an object is refused, not read as "all".
	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "subscribe",
		"data": "comment",
	}))
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, WSMsgTypeError, msg.Type)
	require.Equal(t, map[string]any{
		"message": "invalid subscribe payload",
	}, msg.Payload)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "subscribe",
		"data": map[string]any{"type": "comment"},
	}))
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, WSMsgTypeSubscribed, msg.Type)
	require.Equal(t, map[string]any{"type": "comment"}, msg.Payload)

	// No payload at all still subscribes to everything.
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "subscribe"}))
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, WSMsgTypeSubscribed, msg.Type)
}
