package mcp

import (
	"context"
	"fmt"

	"github.com/lamp-blog/lamp/internal/actorutil"
	"github.com/lamp-blog/lamp/internal/review"
)

// askReview sends msg to the review actor when one is configured and to the
// service directly otherwise.
func askReview[T review.ReviewResponse](ctx context.Context, s *Server,
	msg review.ReviewRequest) (T, error) {

	if s.reviewRef != nil {
		return actorutil.AskAwaitTyped[T](ctx, s.reviewRef, msg)
	}

	var zero T
	val, err := s.review.Receive(ctx, msg).Unpack()
	if err != nil {
		return zero, err
	}

	typed, ok := val.(T)
	if !ok {
		return zero, fmt.Errorf("unexpected response type: got %T, "+
			"want %T", val, zero)
	}

	return typed, nil
}
