package store

import (
	"context"
	"testing"
	"time"

	"github.com/lamp-blog/lamp/internal/content"
	"pgregory.net/rapid"
)

// TestDecisionAppliedOnce checks that whatever sequence of decisions hits a
// set of jobs, each job accepts exactly its first decision.
func TestDecisionAppliedOnce(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := NewMockStore()
		ctx := context.Background()

		numJobs := rapid.IntRange(1, 5).Draw(t, "numJobs")
		for i := 0; i < numJobs; i++ {
			_, err := s.CreateReviewJob(ctx, CreateReviewJobParams{
				ContentID:   content.FormatID(int64(i)),
				ContentType: content.TypeArticle,
				ReviewerID:  reviewer(1),
				Status:      statusNotReviewed,
			})
			if err != nil {
				t.Fatal(err)
			}
		}

		first := make(map[int64]string)
		steps := rapid.IntRange(1, 30).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			id := int64(rapid.IntRange(1, numJobs).Draw(t, "job"))
			status := rapid.SampledFrom(
				[]string{"reviewed", "rejected"},
			).Draw(t, "status")

			ok, err := s.DecideReviewJob(ctx, DecideReviewJobParams{
				ID: id, Status: status, DecidedAt: time.Now(),
			})
			if err != nil {
				t.Fatal(err)
			}

			_, decided := first[id]
			if ok == decided {
				t.Fatalf("job %d: accepted=%v after decided=%v",
					id, ok, decided)
			}
			if ok {
				first[id] = status
			}
		}

		for id, status := range first {
			job, err := s.GetReviewJob(ctx, id)
			if err != nil {
				t.Fatal(err)
			}
			if job.Status != status {
				t.Fatalf("job %d: stored %s, first was %s",
					id, job.Status, status)
			}
		}

		if !s.IsConsistent() {
			t.Fatal("store inconsistent")
		}
	})
}
