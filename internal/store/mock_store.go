package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lamp-blog/lamp/internal/content"
)

const statusNotReviewed = "not_reviewed"

// MockStore provides an in-memory implementation of the Storage interface
// for testing purposes. All data is stored in maps and protected by a mutex.
type MockStore struct {
	mu sync.RWMutex

	jobs     map[int64]ReviewJob
	articles map[int64]Article
	comments map[int64]Comment

	// titles indexes "authorID/title" for the uniqueness check.
	titles map[string]int64

	// Counters for auto-incrementing IDs.
	nextJobID     int64
	nextArticleID int64
	nextCommentID int64
}

// NewMockStore creates a new in-memory mock store.
func NewMockStore() *MockStore {
	return &MockStore{
		jobs:          make(map[int64]ReviewJob),
		articles:      make(map[int64]Article),
		comments:      make(map[int64]Comment),
		titles:        make(map[string]int64),
		nextJobID:     1,
		nextArticleID: 1,
		nextCommentID: 1,
	}
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}

// WithTx runs fn against the mock. Writes are not rolled back on error.
func (m *MockStore) WithTx(ctx context.Context,
	fn func(ctx context.Context, s Storage) error) error {

	return fn(ctx, m)
}

// WithReadTx runs fn against the mock.
func (m *MockStore) WithReadTx(ctx context.Context,
	fn func(ctx context.Context, s Storage) error) error {

	return fn(ctx, m)
}

// IsConsistent checks invariants of the stored data. Used by property
// tests.
func (m *MockStore) IsConsistent() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pending := make(map[string]bool)
	for _, j := range m.jobs {
		decided := j.Status != statusNotReviewed
		if !decided {
			key := string(j.ContentType) + ":" + j.ContentID
			if pending[key] {
				return false
			}
			pending[key] = true
		}
		if decided != (j.DecidedAt != nil) {
			return false
		}
		if j.DispatchedAt != nil && !decided {
			return false
		}
	}
	for _, c := range m.comments {
		if _, ok := m.articles[c.ArticleID]; !ok {
			return false
		}
	}

	return true
}

// ReviewJobStore implementation.

func (m *MockStore) CreateReviewJob(_ context.Context,
	params CreateReviewJobParams) (ReviewJob, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	if params.Status == statusNotReviewed {
		for _, other := range m.jobs {
			if other.Status == statusNotReviewed &&
				other.ContentType == params.ContentType &&
				other.ContentID == params.ContentID {

				return ReviewJob{}, fmt.Errorf("%w: pending review "+
					"job for %s:%s", ErrDuplicate,
					params.ContentType, params.ContentID)
			}
		}
	}

	job := ReviewJob{
		ID:          m.nextJobID,
		ContentID:   params.ContentID,
		ContentType: params.ContentType,
		AuthorID:    params.AuthorID,
		ReviewerID:  copyInt64(params.ReviewerID),
		Status:      params.Status,
		Reason:      params.Reason,
		Auto:        params.Auto,
		CreatedAt:   time.Now(),
		DecidedAt:   copyTime(params.DecidedAt),
	}
	m.nextJobID++
	m.jobs[job.ID] = job

	return job, nil
}

func (m *MockStore) GetReviewJob(_ context.Context,
	id int64) (ReviewJob, error) {

	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return ReviewJob{}, fmt.Errorf("review job %d: %w", id,
			sql.ErrNoRows)
	}

	return job, nil
}

func (m *MockStore) DecideReviewJob(_ context.Context,
	params DecideReviewJobParams) (bool, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[params.ID]
	if !ok || job.Status != statusNotReviewed {
		return false, nil
	}

	decidedAt := params.DecidedAt.Truncate(time.Second)
	job.Status = params.Status
	job.Reason = params.Reason
	job.DecidedAt = &decidedAt
	m.jobs[job.ID] = job

	return true, nil
}

func (m *MockStore) MarkReviewJobDispatched(_ context.Context, id int64,
	at time.Time) error {

	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok || job.Status == statusNotReviewed || job.DispatchedAt != nil {
		return nil
	}
	job.DispatchedAt = &at
	m.jobs[id] = job

	return nil
}

func (m *MockStore) ListReviewJobsByReviewer(_ context.Context,
	reviewerID int64) ([]ReviewJob, error) {

	jobs := m.filterJobs(func(j ReviewJob) bool {
		return hasReviewer(j, reviewerID)
	})
	sort.Slice(jobs, func(a, b int) bool {
		return jobs[a].ID > jobs[b].ID
	})

	return jobs, nil
}

func (m *MockStore) ListUnfinishedReviewJobs(_ context.Context,
	reviewerID int64) ([]ReviewJob, error) {

	jobs := m.filterJobs(func(j ReviewJob) bool {
		return hasReviewer(j, reviewerID) &&
			j.Status == statusNotReviewed
	})
	sortJobsAsc(jobs)

	return jobs, nil
}

func (m *MockStore) ListFinishedReviewJobs(_ context.Context,
	reviewerID int64) ([]ReviewJob, error) {

	jobs := m.filterJobs(func(j ReviewJob) bool {
		return hasReviewer(j, reviewerID) &&
			j.Status != statusNotReviewed
	})
	sort.Slice(jobs, func(a, b int) bool {
		da, db := *jobs[a].DecidedAt, *jobs[b].DecidedAt
		if !da.Equal(db) {
			return da.After(db)
		}
		return jobs[a].ID > jobs[b].ID
	})

	return jobs, nil
}

func (m *MockStore) GetLatestReviewJobForContent(_ context.Context,
	ct content.Type, contentID string) (ReviewJob, error) {

	jobs := m.filterJobs(func(j ReviewJob) bool {
		return j.ContentType == ct && j.ContentID == contentID
	})
	if len(jobs) == 0 {
		return ReviewJob{}, fmt.Errorf("review job for %s:%s: %w", ct,
			contentID, sql.ErrNoRows)
	}

	latest := jobs[0]
	for _, j := range jobs[1:] {
		if j.ID > latest.ID {
			latest = j
		}
	}

	return latest, nil
}

func (m *MockStore) ListPendingReviewJobs(_ context.Context,
	limit int) ([]ReviewJob, error) {

	jobs := m.filterJobs(func(j ReviewJob) bool {
		return j.Status == statusNotReviewed
	})
	sortJobsAsc(jobs)

	return truncate(jobs, limit), nil
}

func (m *MockStore) ListUndispatchedReviewJobs(_ context.Context,
	afterID int64, limit int) ([]ReviewJob, error) {

	jobs := m.filterJobs(func(j ReviewJob) bool {
		return j.ID > afterID && j.Status != statusNotReviewed &&
			j.DispatchedAt == nil
	})
	sortJobsAsc(jobs)

	return truncate(jobs, limit), nil
}

func (m *MockStore) CountUnfinishedReviewJobs(ctx context.Context,
	reviewerID int64) (int64, error) {

	jobs, _ := m.ListUnfinishedReviewJobs(ctx, reviewerID)

	return int64(len(jobs)), nil
}

func (m *MockStore) filterJobs(keep func(ReviewJob) bool) []ReviewJob {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ReviewJob
	for _, j := range m.jobs {
		if keep(j) {
			result = append(result, j)
		}
	}

	return result
}

func hasReviewer(j ReviewJob, reviewerID int64) bool {
	return j.ReviewerID != nil && *j.ReviewerID == reviewerID
}

func sortJobsAsc(jobs []ReviewJob) {
	sort.Slice(jobs, func(a, b int) bool {
		return jobs[a].ID < jobs[b].ID
	})
}

// ArticleStore implementation.

func (m *MockStore) CreateArticle(_ context.Context,
	params CreateArticleParams) (Article, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	key := fmt.Sprintf("%d/%s", params.AuthorID, params.Title)
	if _, ok := m.titles[key]; ok {
		return Article{}, fmt.Errorf("%w: article %q", ErrDuplicate,
			params.Title)
	}

	now := time.Now()
	a := Article{
		ID:        m.nextArticleID,
		AuthorID:  params.AuthorID,
		Title:     params.Title,
		BodyMD:    params.BodyMD,
		Status:    content.StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.nextArticleID++
	m.articles[a.ID] = a
	m.titles[key] = a.ID

	return a, nil
}

func (m *MockStore) GetArticle(_ context.Context, id int64) (Article,
	error) {

	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.articles[id]
	if !ok {
		return Article{}, fmt.Errorf("article %d: %w", id,
			sql.ErrNoRows)
	}

	return a, nil
}

func (m *MockStore) UpdateArticleStatus(_ context.Context,
	params UpdateStatusParams) (bool, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.articles[params.ID]
	if !ok || a.Status != params.From {
		return false, nil
	}
	a.Status = params.To
	a.PrevStatus = params.PrevStatus
	a.UpdatedAt = params.At
	m.articles[a.ID] = a

	return true, nil
}

func (m *MockStore) PublishReviewedArticle(_ context.Context, id int64,
	html string, at time.Time) (bool, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.articles[id]
	if !ok || a.Status != content.StatusReviewing {
		return false, nil
	}
	a.Status = content.StatusPublished
	a.BodyHTML = html
	a.RejectReason = ""
	a.PublishedAt = &at
	a.UpdatedAt = at
	m.articles[id] = a

	return true, nil
}

func (m *MockStore) RejectReviewedArticle(_ context.Context, id int64,
	reason string, at time.Time) (bool, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.articles[id]
	if !ok || a.Status != content.StatusReviewing {
		return false, nil
	}
	a.Status = content.StatusReviewRejected
	a.RejectReason = reason
	a.UpdatedAt = at
	m.articles[id] = a

	return true, nil
}

func (m *MockStore) ListPublishedArticles(_ context.Context, limit,
	offset int) ([]Article, error) {

	m.mu.RLock()
	var result []Article
	for _, a := range m.articles {
		if a.Status == content.StatusPublished {
			result = append(result, a)
		}
	}
	m.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID > result[j].ID
	})
	if offset >= len(result) {
		return nil, nil
	}

	return truncate(result[offset:], limit), nil
}

func (m *MockStore) ListArticlesByAuthor(_ context.Context,
	authorID int64) ([]Article, error) {

	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Article
	for _, a := range m.articles {
		if a.AuthorID != authorID || a.Status.CanRestore() {
			continue
		}
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID > result[j].ID
	})

	return result, nil
}

// CommentStore implementation.

func (m *MockStore) CreateComment(_ context.Context,
	params CreateCommentParams) (Comment, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.articles[params.ArticleID]; !ok {
		return Comment{}, fmt.Errorf("article %d: %w",
			params.ArticleID, sql.ErrNoRows)
	}
	if params.ParentID != nil {
		if _, ok := m.comments[*params.ParentID]; !ok {
			return Comment{}, fmt.Errorf("comment %d: %w",
				*params.ParentID, sql.ErrNoRows)
		}
	}

	now := time.Now()
	c := Comment{
		ID:        m.nextCommentID,
		ArticleID: params.ArticleID,
		ParentID:  copyInt64(params.ParentID),
		AuthorID:  params.AuthorID,
		BodyMD:    params.BodyMD,
		Status:    content.StatusReviewing,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.nextCommentID++
	m.comments[c.ID] = c

	return c, nil
}

func (m *MockStore) GetComment(_ context.Context, id int64) (Comment,
	error) {

	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.comments[id]
	if !ok {
		return Comment{}, fmt.Errorf("comment %d: %w", id,
			sql.ErrNoRows)
	}

	return c, nil
}

func (m *MockStore) UpdateCommentStatus(_ context.Context,
	params UpdateStatusParams) (bool, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.comments[params.ID]
	if !ok || c.Status != params.From {
		return false, nil
	}
	c.Status = params.To
	c.UpdatedAt = params.At
	m.comments[c.ID] = c

	return true, nil
}

func (m *MockStore) PublishReviewedComment(_ context.Context, id int64,
	html string, at time.Time) (bool, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.comments[id]
	if !ok || c.Status != content.StatusReviewing {
		return false, nil
	}
	c.Status = content.StatusPublished
	c.BodyHTML = html
	c.RejectReason = ""
	c.UpdatedAt = at
	m.comments[id] = c

	return true, nil
}

func (m *MockStore) RejectReviewedComment(_ context.Context, id int64,
	reason string, at time.Time) (bool, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.comments[id]
	if !ok || c.Status != content.StatusReviewing {
		return false, nil
	}
	c.Status = content.StatusReviewRejected
	c.RejectReason = reason
	c.UpdatedAt = at
	m.comments[id] = c

	return true, nil
}

func (m *MockStore) ListArticleComments(_ context.Context,
	articleID int64) ([]Comment, error) {

	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Comment
	for _, c := range m.comments {
		if c.ArticleID == articleID &&
			c.Status == content.StatusPublished {

			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result, nil
}

func (m *MockStore) ListPublishedComments(_ context.Context,
	limit int) ([]Comment, error) {

	m.mu.RLock()
	var result []Comment
	for _, c := range m.comments {
		if c.Status == content.StatusPublished {
			result = append(result, c)
		}
	}
	m.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID > result[j].ID
	})

	return truncate(result, limit), nil
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}

	return items
}

func copyInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v

	return &c
}

func copyTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v

	return &c
}

// Compile-time check that MockStore implements Storage.
var _ Storage = (*MockStore)(nil)
