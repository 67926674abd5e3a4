// Review API handlers for the /api/v1 review endpoints.
package web

import (
	"fmt"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/labstack/echo/v4"
	"github.com/lamp-blog/lamp/internal/content"
	"github.com/lamp-blog/lamp/internal/review"
)

const defaultFailureLimit = 50

// APIV1ReviewJob represents a review job in the JSON API.
type APIV1ReviewJob struct {
	ID          int64   `json:"id"`
	ContentID   string  `json:"content_id"`
	ContentType string  `json:"content_type"`
	AuthorID    int64   `json:"author_id"`
	ReviewerID  *int64  `json:"reviewer_id,omitempty"`
	Status      string  `json:"status"`
	Reason      string  `json:"reason,omitempty"`
	Auto        bool    `json:"auto"`
	CreatedAt   string  `json:"created_at"`
	DecidedAt   *string `json:"decided_at,omitempty"`
}

// APIV1MarkerFailure represents a failed marker call in the JSON API.
type APIV1MarkerFailure struct {
	EventID     string `json:"event_id"`
	JobID       int64  `json:"job_id"`
	Marker      string `json:"marker"`
	ContentType string `json:"content_type"`
	ContentID   string `json:"content_id"`
	Attempts    int    `json:"attempts"`
	Error       string `json:"error"`
	At          string `json:"at"`
}

func toAPIV1ReviewJob(info review.Info) APIV1ReviewJob {
	out := APIV1ReviewJob{
		ID:          info.JobID,
		ContentID:   info.Content.ID,
		ContentType: info.Content.Type.String(),
		AuthorID:    info.Content.AuthorID,
		Status:      info.Status.String(),
		Reason:      info.Reason,
		Auto:        info.Auto,
		CreatedAt:   formatTime(info.CreatedAt),
		DecidedAt:   optionalTime(info.DecidedAt),
	}
	if info.ReviewerID.IsSome() {
		id := info.ReviewerID.UnwrapOr(0)
		out.ReviewerID = &id
	}

	return out
}

func toAPIV1ReviewJobs(infos []review.Info) []APIV1ReviewJob {
	out := make([]APIV1ReviewJob, 0, len(infos))
	for _, info := range infos {
		out = append(out, toAPIV1ReviewJob(info))
	}

	return out
}

// decisionRequest is the body of POST /api/v1/review-jobs/:id/decision.
type decisionRequest struct {
	Passed *bool  `json:"passed"`
	Reason string `json:"reason"`
}

// Validate implements validation.Validatable. Rejections must say why.
func (r decisionRequest) Validate() error {
	rejected := r.Passed != nil && !*r.Passed

	return validation.ValidateStruct(&r,
		validation.Field(&r.Passed, validation.NotNil),
		validation.Field(&r.Reason,
			validation.When(rejected, validation.Required),
			validation.RuneLength(0, 1000),
		),
	)
}

// handleReviewerJobs handles GET /api/v1/reviewers/:id/jobs.
func (s *Server) handleReviewerJobs(c echo.Context) error {
	reviewerID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	filter, ok := review.ParseJobFilter(c.QueryParam("state"))
	if !ok {
		return fmt.Errorf("%w: unknown state %q",
			review.ErrInvalidArgument, c.QueryParam("state"))
	}

	jobs, err := s.reviewJobs(c.Request().Context(), review.GetReviewJobsMsg{
		ReviewerID: reviewerID,
		Filter:     filter,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"jobs": toAPIV1ReviewJobs(jobs),
	})
}

// handlePendingJobs handles GET /api/v1/review-jobs, the undecided jobs of
// every reviewer.
func (s *Server) handlePendingJobs(c echo.Context) error {
	limit, err := queryInt(c, "limit", defaultPageSize, maxPageSize)
	if err != nil {
		return err
	}

	jobs, err := s.pendingJobs(c.Request().Context(), limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"jobs": toAPIV1ReviewJobs(jobs),
	})
}

// handleGetReviewJob handles GET /api/v1/review-jobs/:id.
func (s *Server) handleGetReviewJob(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	info, err := s.reviewInfo(c.Request().Context(), review.GetReviewInfoMsg{
		JobID: id,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toAPIV1ReviewJob(info))
}

// handleDecision handles POST /api/v1/review-jobs/:id/decision.
func (s *Server) handleDecision(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req decisionRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}

	info, err := s.makeReview(c.Request().Context(), review.MakeReviewMsg{
		JobID:  id,
		Passed: *req.Passed,
		Reason: req.Reason,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toAPIV1ReviewJob(info))
}

// handleContentReview handles GET /api/v1/contents/:type/:id/review, the
// newest job for a content item.
func (s *Server) handleContentReview(c echo.Context) error {
	t, err := content.ParseType(c.Param("type"))
	if err != nil {
		return fmt.Errorf("%w: %v", review.ErrUnsupportedType, err)
	}

	info, err := s.reviewInfo(c.Request().Context(), review.GetReviewInfoMsg{
		ContentID:   c.Param("id"),
		ContentType: t,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toAPIV1ReviewJob(info))
}

// handleDispatchFailures handles GET /api/v1/dispatch/failures, newest
// first.
func (s *Server) handleDispatchFailures(c echo.Context) error {
	limit, err := queryInt(c, "limit", defaultFailureLimit, 0)
	if err != nil {
		return err
	}

	out := []APIV1MarkerFailure{}
	var total uint64
	if s.cfg.Failures != nil {
		for _, f := range s.cfg.Failures.Recent(limit) {
			out = append(out, APIV1MarkerFailure{
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
		total = s.cfg.Failures.Total()
	}

	return c.JSON(http.StatusOK, map[string]any{
		"failures": out,
		"total":    total,
	})
}
