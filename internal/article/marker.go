package article

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

// MarkerName identifies the article marker in logs and metrics.
const MarkerName = "article"

// Name implements review.StatusMarker.
func (s *Service) Name() string {
	return MarkerName
}

// SupportedReviewTypes implements review.StatusMarker.
func (s *Service) SupportedReviewTypes() []content.Type {
	return []content.Type{content.TypeArticle}
}

// MarkAsReviewed publishes an approved article with its rendered body.
// Redelivered events and articles that left review are ignored.
func (s *Service) MarkAsReviewed(ctx context.Context,
	f review.Finalization) error {

	return s.finalize(ctx, f, func(id int64, body string) (bool, error) {
		html, err := s.render.Render(body)
		if err != nil {
			return false, err
		}

		return s.store.PublishReviewedArticle(ctx, id, html, time.Now())
	}, content.StatusPublished)
}

// MarkAsRejected returns a rejected article to its author with the
// reviewer's reason.
func (s *Service) MarkAsRejected(ctx context.Context,
	f review.Finalization) error {

	return s.finalize(ctx, f, func(id int64, _ string) (bool, error) {
		return s.store.RejectReviewedArticle(
			ctx, id, f.Reason, time.Now(),
		)
	}, content.StatusReviewRejected)
}

func (s *Service) finalize(ctx context.Context, f review.Finalization,
	apply func(id int64, body string) (bool, error),
	to content.Status) error {

	if s.seen.Contains(f.EventID) {
		log.DebugS(ctx, "Review event already applied",
			"event_id", f.EventID, "article", f.ContentID)

		return nil
	}

	id, err := content.ParseID(f.ContentID)
	if err != nil {
		return err
	}
	a, err := s.get(ctx, s.store, id)
	if err != nil {
		return err
	}

	if a.Status != content.StatusReviewing {
		log.DebugS(ctx, "Article no longer in review, ignoring outcome",
			"article_id", id, "status", a.Status, "outcome", to)

		s.seen.Add(f.EventID, struct{}{})

		return nil
	}

	stale, err := review.Superseded(ctx, s.store, f)
	if err != nil {
		return fmt.Errorf("latest review job of article %d: %w", id, err)
	}
	if stale {
		log.DebugS(ctx, "Article resubmitted since job, ignoring outcome",
			"article_id", id, "job_id", f.JobID)
		s.seen.Add(f.EventID, struct{}{})

		return nil
	}

	ok, err := apply(id, a.BodyMD)
	if err != nil {
		return fmt.Errorf("finalize article %d: %w", id, err)
	}
	s.seen.Add(f.EventID, struct{}{})
	if !ok {
		log.DebugS(ctx, "Article left review concurrently",
			"article_id", id)

		return nil
	}

	ref := content.Ref{
		ID:       f.ContentID,
		Type:     content.TypeArticle,
		AuthorID: a.AuthorID,
	}
	ev := content.NewStatusEvent(ref, fn.Some(content.StatusReviewing), to)
	ev.Reason = f.Reason
	s.events.Publish(ctx, ev)

	if to == content.StatusPublished {
		s.events.Publish(ctx, content.NewPublishEvent(
			ref, content.StagePublished,
		))
	}

	log.InfoS(ctx, "Review outcome applied", "article_id", id,
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

	_, err = s.store.GetArticle(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}

	return err == nil, err
}

// SupportedCollections implements content.CollectionAccessor.
func (s *Service) SupportedCollections() []content.CollectionType {
	return []content.CollectionType{
		content.CollectionArticles,
		content.CollectionUserArticles,
	}
}

// ContentCollection implements content.CollectionAccessor.
func (s *Service) ContentCollection(ctx context.Context,
	ct content.CollectionType, collectionID string) ([]content.Details,
	error) {

	var (
		rows []Article
		err  error
	)
	switch ct {
	case content.CollectionArticles:
		rows, err = s.ListPublished(ctx, 100, 0)

	case content.CollectionUserArticles:
		authorID, perr := content.ParseID(collectionID)
		if perr != nil {
			return nil, perr
		}
		rows, err = s.ListByAuthor(ctx, authorID)

	default:
		return nil, fmt.Errorf("%w: %s", content.ErrUnsupportedCollection,
			ct)
	}
	if err != nil {
		return nil, err
	}

	details := make([]content.Details, 0, len(rows))
	for _, a := range rows {
		details = append(details, content.Details{
			Ref:       a.Ref(),
			Title:     a.Title,
			Status:    a.Status,
			CreatedAt: a.CreatedAt,
		})
	}

	return details, nil
}

var (
	_ review.StatusMarker        = (*Service)(nil)
	_ review.ContentLocator      = (*Service)(nil)
	_ content.CollectionAccessor = (*Service)(nil)
)
