package review

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lamp-blog/lamp/internal/store"
)

// Superseded reports whether f's content has a newer review job than the
// one f carries. An outcome that arrives after the content was resubmitted
// belongs to the old submission and must not be applied to the new one.
// Content without any job is not superseded.
func Superseded(ctx context.Context, jobs store.ReviewJobStore,
	f Finalization) (bool, error) {

	latest, err := jobs.GetLatestReviewJobForContent(
		ctx, f.Type, f.ContentID,
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil

	case err != nil:
		return false, err
	}

	return latest.ID != f.JobID, nil
}
