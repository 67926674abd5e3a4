package comment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lamp-blog/lamp/internal/content"
	"github.com/lamp-blog/lamp/internal/review"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// MarkerName identifies the comment marker in logs and metrics.
const MarkerName = "comment"

// Name implements review.StatusMarker.
func (s *Service) Name() string {
	return MarkerName
}

// SupportedReviewTypes implements review.StatusMarker.
func (s *Service) SupportedReviewTypes() []content.Type {
	return []content.Type{content.TypeComment}
}

// MarkAsReviewed shows an approved comment.
func (s *Service) MarkAsReviewed(ctx context.Context,
	f review.Finalization) error {

	return s.finalize(ctx, f, content.StatusPublished,
		func(id int64, body string) (bool, error) {
			html, err := s.render.Render(body)
			if err != nil {
				return false, err
			}

			return s.store.PublishReviewedComment(
				ctx, id, html, time.Now(),
			)
		},
	)
}

// MarkAsRejected hides a rejected comment and records the reason.
func (s *Service) MarkAsRejected(ctx context.Context,
	f review.Finalization) error {

	return s.finalize(ctx, f, content.StatusReviewRejected,
		func(id int64, _ string) (bool, error) {
			return s.store.RejectReviewedComment(
				ctx, id, f.Reason, time.Now(),
			)
		},
	)
}

func (s *Service) finalize(ctx context.Context, f review.Finalization,
	to content.Status, apply func(id int64, body string) (bool, error)) error {

	if s.seen.Contains(f.EventID) {
		return nil
	}

	id, err := content.ParseID(f.ContentID)
	if err != nil {
		return err
	}
	c, err := s.get(ctx, s.store, id)
	if err != nil {
		return err
	}

	if c.Status != content.StatusReviewing {
		log.DebugS(ctx, "Comment no longer in review",
			"comment_id", id, "status", c.Status)
		s.seen.Add(f.EventID, struct{}{})

		return nil
	}

	stale, err := review.Superseded(ctx, s.store, f)
	if err != nil {
		return fmt.Errorf("latest review job of comment %d: %w", id, err)
	}
	if stale {
		log.DebugS(ctx, "Comment resubmitted since job, ignoring outcome",
			"comment_id", id, "job_id", f.JobID)
		s.seen.Add(f.EventID, struct{}{})

		return nil
	}

	ok, err := apply(id, c.BodyMD)
	if err != nil {
		return fmt.Errorf("finalize comment %d: %w", id, err)
	}
	s.seen.Add(f.EventID, struct{}{})
	if !ok {
		return nil
	}

	ref := content.Ref{
		ID:       f.ContentID,
		Type:     content.TypeComment,
		AuthorID: c.AuthorID,
	}
	ev := content.NewStatusEvent(ref, fn.Some(content.StatusReviewing), to)
	ev.Reason = f.Reason
	s.events.Publish(ctx, ev)

	if to == content.StatusPublished {
		s.events.Publish(ctx, content.NewPublishEvent(
			ref, content.StagePublished,
		))
	}

	log.InfoS(ctx, "Review outcome applied", "comment_id", id,
		"status", to, "job_id", f.JobID)

	return nil
}

// ContentExists implements review.ContentLocator.
func (s *Service) ContentExists(ctx context.Context,
	ref content.Ref) (bool, error) {

	id, err := content.ParseID(ref.ID)
	if err != nil {
		return false, nil
	}

	_, err = s.store.GetComment(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}

	return err == nil, err
}

// SupportedCollections implements content.CollectionAccessor.
func (s *Service) SupportedCollections() []content.CollectionType {
	return []content.CollectionType{
		content.CollectionComments,
		content.CollectionArticleComments,
	}
}

// ContentCollection implements content.CollectionAccessor.
func (s *Service) ContentCollection(ctx context.Context,
	ct content.CollectionType, collectionID string) ([]content.Details,
	error) {

	var (
		rows []Comment
		err  error
	)
	switch ct {
	case content.CollectionComments:
		rows, err = s.ListComments(ctx, DefaultListLimit)

	case content.CollectionArticleComments:
		articleID, perr := content.ParseID(collectionID)
		if perr != nil {
			return nil, perr
		}
		rows, err = s.ListArticleComments(ctx, articleID)

	default:
		return nil, fmt.Errorf("%w: %s", content.ErrUnsupportedCollection,
			ct)
	}
	if err != nil {
		return nil, err
	}

	details := make([]content.Details, 0, len(rows))
	for _, c := range rows {
		details = append(details, content.Details{
			Ref:       c.Ref(),
			Status:    c.Status,
			CreatedAt: c.CreatedAt,
		})
	}

	return details, nil
}

var (
	_ review.StatusMarker        = (*Service)(nil)
	_ review.ContentLocator      = (*Service)(nil)
	_ content.CollectionAccessor = (*Service)(nil)
)
