// Package content defines the moderated content model shared by the review
// core and the content services: lifecycle statuses, content types and the
// events content services emit.
package content

import (
	"fmt"
)

// Status is the lifecycle state of a piece of content.
type Status string

const (
	// StatusDraft is content only its author can see.
	StatusDraft Status = "draft"

	// StatusReviewing is content waiting on a review decision.
	StatusReviewing Status = "reviewing"

	// StatusReviewRejected is content a reviewer turned down.
	StatusReviewRejected Status = "review_rejected"

	// StatusPublished is the only publicly visible state.
	StatusPublished Status = "published"

	// StatusDeleted is removed content, invisible to its author as well.
	StatusDeleted Status = "deleted"

	// StatusForbidden is content hidden by moderation, invisible to its
	// author.
	StatusForbidden Status = "forbidden"

	// StatusHide is content hidden from the public but visible to its
	// author.
	StatusHide Status = "hide"
)

// AllStatuses lists every status in declaration order.
func AllStatuses() []Status {
	return []Status{
		StatusDraft, StatusReviewing, StatusReviewRejected,
		StatusPublished, StatusDeleted, StatusForbidden, StatusHide,
	}
}

// ParseStatus converts the stored form of a status.
func ParseStatus(s string) (Status, error) {
	for _, st := range AllStatuses() {
		if string(st) == s {
			return st, nil
		}
	}

	return "", fmt.Errorf("unknown content status %q", s)
}

// String returns the stored form.
func (s Status) String() string {
	return string(s)
}

// IsPublicVisitable is true only for published content.
func (s Status) IsPublicVisitable() bool {
	return s == StatusPublished
}

// NeedsReview is true only for content under review. It is also the only
// status the review subsystem may resolve.
func (s Status) NeedsReview() bool {
	return s == StatusReviewing
}

// CanRestore is true for deleted and forbidden content.
func (s Status) CanRestore() bool {
	return s == StatusDeleted || s == StatusForbidden
}

// transitions is the set of legal moves. Restored content goes back through
// review before it can be published again.
var transitions = map[Status][]Status{
	StatusDraft: {StatusReviewing, StatusDeleted},
	StatusReviewing: {
		StatusPublished, StatusReviewRejected, StatusDeleted,
	},
	StatusReviewRejected: {StatusReviewing, StatusDeleted},
	StatusPublished: {
		StatusHide, StatusForbidden, StatusDeleted,
	},
	StatusHide:      {StatusPublished, StatusDeleted},
	StatusDeleted:   {StatusReviewing},
	StatusForbidden: {StatusReviewing},
}

// CanTransition reports whether content may move from one status to
// another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}

	return false
}

// ValidateTransition returns ErrInvalidTransition wrapped with both states
// when the move is not allowed.
func ValidateTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	return nil
}
