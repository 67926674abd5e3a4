package content

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestStatusPredicates(t *testing.T) {
	t.Parallel()

	for _, s := range AllStatuses() {
		require.Equal(t, s == StatusPublished, s.IsPublicVisitable(),
			"visitable %s", s)
		require.Equal(t, s == StatusReviewing, s.NeedsReview(),
			"needs review %s", s)
		require.Equal(t,
			s == StatusDeleted || s == StatusForbidden,
			s.CanRestore(), "restore %s", s)
	}
}

func TestParseStatusRoundTrip(t *testing.T) {
	t.Parallel()

	for _, s := range AllStatuses() {
		got, err := ParseStatus(s.String())
		require.NoError(t, err)
		require.Equal(t, s, got)
	}

	_, err := ParseStatus("PUBLISHED")
	require.Error(t, err)
}

func TestTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusDraft, StatusReviewing, true},
		{StatusDraft, StatusPublished, false},
		{StatusReviewing, StatusPublished, true},
		{StatusReviewing, StatusReviewRejected, true},
		{StatusReviewRejected, StatusReviewing, true},
		{StatusReviewRejected, StatusPublished, false},
		{StatusPublished, StatusHide, true},
		{StatusHide, StatusPublished, true},
		{StatusDeleted, StatusReviewing, true},
		{StatusDeleted, StatusPublished, false},
		{StatusForbidden, StatusReviewing, true},
		{StatusPublished, StatusReviewing, false},
	}
	for _, tc := range tests {
		err := ValidateTransition(tc.from, tc.to)
		if tc.ok {
			require.NoError(t, err, "%s -> %s", tc.from, tc.to)
			continue
		}
		require.ErrorIs(t, err, ErrInvalidTransition,
			"%s -> %s", tc.from, tc.to)
	}
}

// TestPublishedOnlyFromReviewOrHide checks that nothing reaches published
// without passing review, except un-hiding already published content.
func TestPublishedOnlyFromReviewOrHide(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		from := rapid.SampledFrom(AllStatuses()).Draw(t, "from")
		if !CanTransition(from, StatusPublished) {
			return
		}
		if from != StatusReviewing && from != StatusHide {
			t.Fatalf("%s reaches published", from)
		}
	})
}

func TestRestoreReentersReview(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		from := rapid.SampledFrom(AllStatuses()).Draw(t, "from")
		if !from.CanRestore() {
			return
		}
		if !CanTransition(from, StatusReviewing) {
			t.Fatalf("%s cannot be restored", from)
		}
		if CanTransition(from, StatusPublished) {
			t.Fatalf("%s skips review on restore", from)
		}
	})
}

func TestParseIDMalformed(t *testing.T) {
	t.Parallel()

	id, err := ParseID(FormatID(42))
	require.NoError(t, err)
	require.EqualValues(t, 42, id)

	_, err = ParseID("not-a-number")
	require.True(t, errors.Is(err, ErrContentNotFound))
}
