package review

import (
	"github.com/lamp-blog/lamp/internal/baselib/actor"
	"github.com/lamp-blog/lamp/internal/content"
)

// ReviewRequest is the sealed interface for review service requests.
type ReviewRequest interface {
	actor.Message
	isReviewRequest()
}

// ReviewResponse is the sealed interface for review service responses.
type ReviewResponse interface {
	isReviewResponse()
}

// JobFilter selects which of a reviewer's jobs to list.
type JobFilter string

const (
	FilterAll        JobFilter = "all"
	FilterUnfinished JobFilter = "unfinished"
	FilterFinished   JobFilter = "finished"
)

// ParseJobFilter parses a filter name. The empty string means all.
func ParseJobFilter(s string) (JobFilter, bool) {
	switch JobFilter(s) {
	case "", FilterAll:
		return FilterAll, true
	case FilterUnfinished, FilterFinished:
		return JobFilter(s), true
	}

	return "", false
}

// AssignReviewerMsg requests a review job for content.
type AssignReviewerMsg struct {
	actor.BaseMessage

	Ref             content.Ref
	AllowAutoReview bool
}

func (AssignReviewerMsg) isReviewRequest() {}

// MessageType implements actor.Message.
func (AssignReviewerMsg) MessageType() string { return "AssignReviewerMsg" }

// AssignReviewerResp carries the created job.
type AssignReviewerResp struct {
	Job   Job
	Error error
}

func (AssignReviewerResp) isReviewResponse() {}

// MakeReviewMsg records a decision.
type MakeReviewMsg struct {
	actor.BaseMessage

	JobID  int64
	Passed bool
	Reason string
}

func (MakeReviewMsg) isReviewRequest() {}

// MessageType implements actor.Message.
func (MakeReviewMsg) MessageType() string { return "MakeReviewMsg" }

// MakeReviewResp carries the decided job.
type MakeReviewResp struct {
	Info  Info
	Error error
}

func (MakeReviewResp) isReviewResponse() {}

// GetReviewJobsMsg lists a reviewer's jobs.
type GetReviewJobsMsg struct {
	actor.BaseMessage

	ReviewerID int64
	Filter     JobFilter
}

func (GetReviewJobsMsg) isReviewRequest() {}

// MessageType implements actor.Message.
func (GetReviewJobsMsg) MessageType() string { return "GetReviewJobsMsg" }

// GetReviewJobsResp carries the listed jobs.
type GetReviewJobsResp struct {
	Jobs  []Info
	Error error
}

func (GetReviewJobsResp) isReviewResponse() {}

// GetReviewInfoMsg looks a job up by id, or by content when JobID is
// zero.
type GetReviewInfoMsg struct {
	actor.BaseMessage

	JobID       int64
	ContentID   string
	ContentType content.Type
}

func (GetReviewInfoMsg) isReviewRequest() {}

// MessageType implements actor.Message.
func (GetReviewInfoMsg) MessageType() string { return "GetReviewInfoMsg" }

// GetReviewInfoResp carries the job.
type GetReviewInfoResp struct {
	Info  Info
	Error error
}

func (GetReviewInfoResp) isReviewResponse() {}

// ListPendingJobsMsg lists undecided jobs across reviewers.
type ListPendingJobsMsg struct {
	actor.BaseMessage

	Limit int
}

func (ListPendingJobsMsg) isReviewRequest() {}

// MessageType implements actor.Message.
func (ListPendingJobsMsg) MessageType() string { return "ListPendingJobsMsg" }

// ListPendingJobsResp carries the pending jobs.
type ListPendingJobsResp struct {
	Jobs  []Info
	Error error
}

func (ListPendingJobsResp) isReviewResponse() {}
