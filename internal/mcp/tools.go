package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/lamp-blog/lamp/internal/content"
	"github.com/lamp-blog/lamp/internal/review"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// JobResult is a review job as returned by the tools.
type JobResult struct {
	ID          int64  `json:"id"`
	ContentType string `json:"content_type"`
	ContentID   string `json:"content_id"`
	AuthorID    int64  `json:"author_id"`
	ReviewerID  *int64 `json:"reviewer_id,omitempty"`
	Status      string `json:"status"`
	Reason      string `json:"reason,omitempty"`
	Auto        bool   `json:"auto"`
	CreatedAt   string `json:"created_at"`
	DecidedAt   string `json:"decided_at,omitempty"`
}

func toJobResult(info review.Info) JobResult {
	out := JobResult{
		ID:          info.JobID,
		ContentType: info.Content.Type.String(),
		ContentID:   info.Content.ID,
		AuthorID:    info.Content.AuthorID,
		Status:      info.Status.String(),
		Reason:      info.Reason,
		Auto:        info.Auto,
		CreatedAt:   info.CreatedAt.UTC().Format(time.RFC3339),
	}
	if info.ReviewerID.IsSome() {
		id := info.ReviewerID.UnwrapOr(0)
		out.ReviewerID = &id
	}
	if info.DecidedAt.IsSome() {
		out.DecidedAt = info.DecidedAt.UnwrapOr(time.Time{}).UTC().
			Format(time.RFC3339)
	}

	return out
}

// ListReviewJobsArgs are the arguments for the list_review_jobs tool.
type ListReviewJobsArgs struct {
	ReviewerID int64  `json:"reviewer_id,omitempty" jsonschema:"Reviewer whose jobs to list; omit for all undecided jobs"`
	State      string `json:"state,omitempty" jsonschema:"all, unfinished or finished,default=all"`
	Limit      int    `json:"limit,omitempty" jsonschema:"Maximum undecided jobs when reviewer_id is omitted,default=50"`
}

// ListReviewJobsResult is the result of the list_review_jobs tool.
type ListReviewJobsResult struct {
	Jobs []JobResult `json:"jobs"`
}

func (s *Server) handleListReviewJobs(ctx context.Context,
	req *mcp.CallToolRequest,
	args ListReviewJobsArgs) (*mcp.CallToolResult, ListReviewJobsResult,
	error) {

	var (
		infos []review.Info
		err   error
	)
	if args.ReviewerID <= 0 {
		limit := args.Limit
		if limit <= 0 {
			limit = 50
		}

		var resp review.ListPendingJobsResp
		resp, err = askReview[review.ListPendingJobsResp](
			ctx, s, review.ListPendingJobsMsg{Limit: limit},
		)
		if err == nil {
			infos, err = resp.Jobs, resp.Error
		}
	} else {
		filter, ok := review.ParseJobFilter(args.State)
		if !ok {
			return nil, ListReviewJobsResult{}, fmt.Errorf(
				"unknown state %q", args.State)
		}

		var resp review.GetReviewJobsResp
		resp, err = askReview[review.GetReviewJobsResp](
			ctx, s, review.GetReviewJobsMsg{
				ReviewerID: args.ReviewerID,
				Filter:     filter,
			},
		)
		if err == nil {
			infos, err = resp.Jobs, resp.Error
		}
	}
	if err != nil {
		return nil, ListReviewJobsResult{}, err
	}

	result := ListReviewJobsResult{Jobs: make([]JobResult, 0, len(infos))}
	for _, info := range infos {
		result.Jobs = append(result.Jobs, toJobResult(info))
	}

	return nil, result, nil
}

// MakeReviewArgs are the arguments for the make_review tool.
type MakeReviewArgs struct {
	JobID  int64  `json:"job_id" jsonschema:"ID of the review job"`
	Passed bool   `json:"passed" jsonschema:"true to approve, false to reject"`
	Reason string `json:"reason,omitempty" jsonschema:"Why the content was rejected; required when passed is false"`
}

func (s *Server) handleMakeReview(ctx context.Context,
	req *mcp.CallToolRequest,
	args MakeReviewArgs) (*mcp.CallToolResult, JobResult, error) {

	if !args.Passed && args.Reason == "" {
		return nil, JobResult{}, fmt.Errorf("%w: a rejection needs a "+
			"reason", review.ErrInvalidArgument)
	}

	resp, err := askReview[review.MakeReviewResp](ctx, s,
		review.MakeReviewMsg{
			JobID:  args.JobID,
			Passed: args.Passed,
			Reason: args.Reason,
		},
	)
	if err != nil {
		return nil, JobResult{}, err
	}
	if resp.Error != nil {
		return nil, JobResult{}, resp.Error
	}

	log.InfoS(ctx, "Review decided over MCP", "job_id", args.JobID,
		"passed", args.Passed)

	return nil, toJobResult(resp.Info), nil
}

// GetReviewInfoArgs are the arguments for the get_review_info tool.
type GetReviewInfoArgs struct {
	JobID       int64  `json:"job_id,omitempty" jsonschema:"ID of the review job"`
	ContentType string `json:"content_type,omitempty" jsonschema:"article or comment, with content_id"`
	ContentID   string `json:"content_id,omitempty" jsonschema:"ID of the content item, with content_type"`
}

func (s *Server) handleGetReviewInfo(ctx context.Context,
	req *mcp.CallToolRequest,
	args GetReviewInfoArgs) (*mcp.CallToolResult, JobResult, error) {

	msg := review.GetReviewInfoMsg{JobID: args.JobID}
	if args.JobID <= 0 {
		t, err := content.ParseType(args.ContentType)
		if err != nil {
			return nil, JobResult{}, fmt.Errorf("%w: %v",
				review.ErrUnsupportedType, err)
		}
		if args.ContentID == "" {
			return nil, JobResult{}, fmt.Errorf("%w: job_id or "+
				"content_id is required", review.ErrInvalidArgument)
		}
		msg.ContentType = t
		msg.ContentID = args.ContentID
	}

	resp, err := askReview[review.GetReviewInfoResp](ctx, s, msg)
	if err != nil {
		return nil, JobResult{}, err
	}
	if resp.Error != nil {
		return nil, JobResult{}, resp.Error
	}

	return nil, toJobResult(resp.Info), nil
}

// ListDispatchFailuresArgs are the arguments for the
// list_dispatch_failures tool.
type ListDispatchFailuresArgs struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum failures to return, newest first,default=20"`
}

// FailureResult is a failed marker call.
type FailureResult struct {
	EventID     string `json:"event_id"`
	JobID       int64  `json:"job_id"`
	Marker      string `json:"marker"`
	ContentType string `json:"content_type"`
	ContentID   string `json:"content_id"`
	Attempts    int    `json:"attempts"`
	Error       string `json:"error"`
	At          string `json:"at"`
}

// ListDispatchFailuresResult is the result of the list_dispatch_failures
// tool.
type ListDispatchFailuresResult struct {
	Failures []FailureResult `json:"failures"`
	Total    uint64          `json:"total"`
}

func (s *Server) handleListDispatchFailures(ctx context.Context,
	req *mcp.CallToolRequest,
	args ListDispatchFailuresArgs) (*mcp.CallToolResult,
	ListDispatchFailuresResult, error) {

	result := ListDispatchFailuresResult{Failures: []FailureResult{}}
	if s.failures == nil {
		return nil, result, nil
	}

	limit := args.Limit
	if limit <= 0 {
		limit = 20
	}

	for _, f := range s.failures.Recent(limit) {
		result.Failures = append(result.Failures, FailureResult{
			EventID:     f.EventID,
			JobID:       f.JobID,
			Marker:      f.Marker,
			ContentType: f.Type.String(),
			ContentID:   f.ContentID,
			Attempts:    f.Attempts,
			Error:       f.Err.Error(),
			At:          f.At.UTC().Format(time.RFC3339Nano),
		})
	}
	result.Total = s.failures.Total()

	return nil, result, nil
}
