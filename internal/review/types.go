package review

import (
	"fmt"
	"time"

	"github.com/lamp-blog/lamp/internal/content"
	"github.com/lamp-blog/lamp/internal/store"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Status is the decision state of a review job.
type Status string

const (
	// StatusNotReviewed is a job waiting for its reviewer.
	StatusNotReviewed Status = "not_reviewed"

	// StatusReviewed is an approved job.
	StatusReviewed Status = "reviewed"

	// StatusRejected is a rejected job.
	StatusRejected Status = "rejected"
)

// AutoReviewerID is recorded as the reviewer of jobs decided by the
// automatic path. Real reviewer ids start at one.
const AutoReviewerID int64 = 0

// IsTerminal reports whether the job has been decided.
func (s Status) IsTerminal() bool {
	return s == StatusReviewed || s == StatusRejected
}

// String returns the stored form of the status.
func (s Status) String() string {
	return string(s)
}

// ParseStatus parses a stored status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusNotReviewed, StatusReviewed, StatusRejected:
		return Status(s), nil
	}

	return "", fmt.Errorf("unknown review status %q", s)
}

// Job is one review assignment: a content item, its reviewer and the
// decision once made.
type Job struct {
	ID          int64
	ContentID   string
	ContentType content.Type
	AuthorID    int64
	ReviewerID  fn.Option[int64]
	Status      Status
	Reason      string
	CreatedAt   time.Time
	DecidedAt   fn.Option[time.Time]
	Auto        bool
}

// Ref returns the content the job reviews.
func (j Job) Ref() content.Ref {
	return content.Ref{
		ID:       j.ContentID,
		Type:     j.ContentType,
		AuthorID: j.AuthorID,
	}
}

// Info is the read model of a job handed to callers.
type Info struct {
	JobID      int64
	Content    content.Ref
	ReviewerID fn.Option[int64]
	Status     Status
	Reason     string
	Auto       bool
	CreatedAt  time.Time
	DecidedAt  fn.Option[time.Time]
}

// Info projects the job.
func (j Job) Info() Info {
	return Info{
		JobID:      j.ID,
		Content:    j.Ref(),
		ReviewerID: j.ReviewerID,
		Status:     j.Status,
		Reason:     j.Reason,
		Auto:       j.Auto,
		CreatedAt:  j.CreatedAt,
		DecidedAt:  j.DecidedAt,
	}
}

// JobFromStore converts a stored job.
func JobFromStore(sj store.ReviewJob) (Job, error) {
	status, err := ParseStatus(sj.Status)
	if err != nil {
		return Job{}, fmt.Errorf("job %d: %w", sj.ID, err)
	}

	job := Job{
		ID:          sj.ID,
		ContentID:   sj.ContentID,
		ContentType: sj.ContentType,
		AuthorID:    sj.AuthorID,
		Status:      status,
		Reason:      sj.Reason,
		CreatedAt:   sj.CreatedAt,
		Auto:        sj.Auto,
	}
	if sj.ReviewerID != nil {
		job.ReviewerID = fn.Some(*sj.ReviewerID)
	}
	if sj.DecidedAt != nil {
		job.DecidedAt = fn.Some(*sj.DecidedAt)
	}

	return job, nil
}

func jobsFromStore(sjs []store.ReviewJob) ([]Job, error) {
	jobs := make([]Job, 0, len(sjs))
	for _, sj := range sjs {
		job, err := JobFromStore(sj)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	return jobs, nil
}
