package web

import (
	"context"

	"github.com/lamp-blog/lamp/internal/actorutil"
	"github.com/lamp-blog/lamp/internal/review"
)

// makeReview records a decision via the review actor.
func (s *Server) makeReview(ctx context.Context,
	msg review.MakeReviewMsg) (review.Info, error) {

	resp, err := actorutil.AskAwaitTyped[review.MakeReviewResp](
		ctx, s.cfg.Review, review.ReviewRequest(msg),
	)
	if err != nil {
		return review.Info{}, err
	}

	return resp.Info, resp.Error
}

// reviewJobs lists a reviewer's jobs via the review actor.
func (s *Server) reviewJobs(ctx context.Context,
	msg review.GetReviewJobsMsg) ([]review.Info, error) {

	resp, err := actorutil.AskAwaitTyped[review.GetReviewJobsResp](
		ctx, s.cfg.Review, review.ReviewRequest(msg),
	)
	if err != nil {
		return nil, err
	}

	return resp.Jobs, resp.Error
}

// reviewInfo fetches a job by id or by content via the review actor.
func (s *Server) reviewInfo(ctx context.Context,
	msg review.GetReviewInfoMsg) (review.Info, error) {

	resp, err := actorutil.AskAwaitTyped[review.GetReviewInfoResp](
		ctx, s.cfg.Review, review.ReviewRequest(msg),
	)
	if err != nil {
		return review.Info{}, err
	}

	return resp.Info, resp.Error
}

// pendingJobs lists undecided jobs of every reviewer via the review actor.
func (s *Server) pendingJobs(ctx context.Context,
	limit int) ([]review.Info, error) {

	resp, err := actorutil.AskAwaitTyped[review.ListPendingJobsResp](
		ctx, s.cfg.Review,
		review.ReviewRequest(review.ListPendingJobsMsg{Limit: limit}),
	)
	if err != nil {
		return nil, err
	}

	return resp.Jobs, resp.Error
}
