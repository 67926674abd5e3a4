package review

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/lamp-blog/lamp/internal/content"
)

// ReviewerSelector picks the reviewer for new human review jobs.
type ReviewerSelector interface {
	SelectReviewer(ctx context.Context, ref content.Ref) (int64, error)
}

// AutoReviewPolicy decides whether content may skip human review when the
// caller allows it.
type AutoReviewPolicy interface {
	AllowAutoReview(ctx context.Context, ref content.Ref) bool
}

// RoundRobinSelector cycles through a fixed reviewer pool.
type RoundRobinSelector struct {
	reviewers []int64
	next      atomic.Uint64
}

// NewRoundRobinSelector builds a selector over reviewers.
func NewRoundRobinSelector(reviewers ...int64) *RoundRobinSelector {
	return &RoundRobinSelector{
		reviewers: append([]int64(nil), reviewers...),
	}
}

// SelectReviewer implements ReviewerSelector.
func (s *RoundRobinSelector) SelectReviewer(_ context.Context,
	_ content.Ref) (int64, error) {

	if len(s.reviewers) == 0 {
		return 0, ErrNoReviewers
	}

	idx := (s.next.Add(1) - 1) % uint64(len(s.reviewers))

	return s.reviewers[idx], nil
}

// LoadCounter counts a reviewer's undecided jobs.
type LoadCounter interface {
	CountUnfinishedReviewJobs(ctx context.Context,
		reviewerID int64) (int64, error)
}

// LeastLoadedSelector picks the reviewer with the fewest undecided jobs.
// Ties go to the reviewer listed first.
type LeastLoadedSelector struct {
	reviewers []int64
	counter   LoadCounter
}

// NewLeastLoadedSelector builds a selector that asks counter for load.
func NewLeastLoadedSelector(counter LoadCounter,
	reviewers ...int64) *LeastLoadedSelector {

	return &LeastLoadedSelector{
		reviewers: append([]int64(nil), reviewers...),
		counter:   counter,
	}
}

// SelectReviewer implements ReviewerSelector.
func (s *LeastLoadedSelector) SelectReviewer(ctx context.Context,
	_ content.Ref) (int64, error) {

	if len(s.reviewers) == 0 {
		return 0, ErrNoReviewers
	}

	best, bestLoad := int64(0), int64(-1)
	for _, id := range s.reviewers {
		load, err := s.counter.CountUnfinishedReviewJobs(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("count jobs of reviewer %d: %w",
				id, err)
		}
		if bestLoad < 0 || load < bestLoad {
			best, bestLoad = id, load
		}
	}

	return best, nil
}

// NeverAutoReview sends everything to a human.
type NeverAutoReview struct{}

// AllowAutoReview implements AutoReviewPolicy.
func (NeverAutoReview) AllowAutoReview(context.Context, content.Ref) bool {
	return false
}

// TrustedAuthorPolicy auto-approves content of a fixed set of authors.
type TrustedAuthorPolicy struct {
	authors map[int64]struct{}
}

// NewTrustedAuthorPolicy trusts the given author ids.
func NewTrustedAuthorPolicy(authors ...int64) *TrustedAuthorPolicy {
	p := &TrustedAuthorPolicy{
		authors: make(map[int64]struct{}, len(authors)),
	}
	for _, a := range authors {
		p.authors[a] = struct{}{}
	}

	return p
}

// AllowAutoReview implements AutoReviewPolicy.
func (p *TrustedAuthorPolicy) AllowAutoReview(_ context.Context,
	ref content.Ref) bool {

	_, ok := p.authors[ref.AuthorID]
	return ok
}
