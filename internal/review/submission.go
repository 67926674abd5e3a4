package review

import (
	"context"
	"errors"

	"github.com/lamp-blog/lamp/internal/content"
	"github.com/lamp-blog/lamp/internal/events"
)

// SubmissionSubscriber is the bus subscription name of the handler.
const SubmissionSubscriber = "review-submissions"

// SubmissionHandler turns content submitted for review into review jobs.
type SubmissionHandler struct {
	svc *Service
}

// NewSubmissionHandler creates a handler feeding svc.
func NewSubmissionHandler(svc *Service) *SubmissionHandler {
	return &SubmissionHandler{svc: svc}
}

// Subscribe attaches the handler to the content bus.
func (h *SubmissionHandler) Subscribe(
	bus *events.Bus[content.Event]) (*events.Subscription, error) {

	return bus.Subscribe(
		SubmissionSubscriber, h.Handle, events.DefaultBuffer,
	)
}

// Handle implements events.Handler. Only reviewing-stage publish events
// are acted on. A redelivered submission whose job is still undecided
// does not create a second job.
func (h *SubmissionHandler) Handle(ctx context.Context,
	ev content.Event) error {

	pe, ok := ev.(content.PublishEvent)
	if !ok || pe.Stage != content.StageReviewing {
		return nil
	}

	latest, err := h.svc.GetReviewInfoByContent(ctx, pe.Ref.ID, pe.Ref.Type)
	switch {
	case err == nil && latest.Status == StatusNotReviewed:
		log.DebugS(ctx, "Submission already has a pending job",
			"content", pe.Ref.Key(), "job_id", latest.JobID)

		return nil

	case err != nil && !errors.Is(err, ErrJobNotFound):
		return err
	}

	_, err = h.svc.AssignReviewer(ctx, pe.Ref, true)
	if errors.Is(err, ErrInvalidState) {
		// Lost a race with another assignment of the same content.
		log.DebugS(ctx, "Submission assigned concurrently",
			"content", pe.Ref.Key())

		return nil
	}

	return err
}
