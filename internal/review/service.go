package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lamp-blog/lamp/internal/content"
	"github.com/lamp-blog/lamp/internal/store"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// defaultRecoverBatch is the page size RecoverUndispatched reads jobs in
// unless ServiceConfig.RecoverBatch overrides it.
const defaultRecoverBatch = 1000

// ServiceConfig holds the dependencies of the review service.
type ServiceConfig struct {
	Store    store.Storage
	Registry *Registry

	// Publisher receives decided jobs. Usually the Dispatcher.
	Publisher Publisher

	// Selector picks reviewers for the human path. Required.
	Selector ReviewerSelector

	// AutoPolicy gates the automatic path. Defaults to NeverAutoReview.
	AutoPolicy AutoReviewPolicy

	Metrics *Metrics

	// RecoverBatch is the page size used by RecoverUndispatched.
	RecoverBatch int
}

// Service creates review jobs, records decisions and hands decided jobs
// to the dispatcher.
type Service struct {
	store     store.Storage
	registry  *Registry
	publisher Publisher
	selector  ReviewerSelector
	policy    AutoReviewPolicy
	metrics   *Metrics
	batch     int
}

// NewService creates a review service.
func NewService(cfg ServiceConfig) (*Service, error) {
	switch {
	case cfg.Store == nil:
		return nil, fmt.Errorf("review service needs a store")
	case cfg.Registry == nil:
		return nil, fmt.Errorf("review service needs a registry")
	case cfg.Publisher == nil:
		return nil, fmt.Errorf("review service needs a publisher")
	case cfg.Selector == nil:
		return nil, fmt.Errorf("review service needs a reviewer " +
			"selector")
	}

	policy := cfg.AutoPolicy
	if policy == nil {
		policy = NeverAutoReview{}
	}

	batch := cfg.RecoverBatch
	if batch <= 0 {
		batch = defaultRecoverBatch
	}

	return &Service{
		store:     cfg.Store,
		registry:  cfg.Registry,
		publisher: cfg.Publisher,
		selector:  cfg.Selector,
		policy:    policy,
		metrics:   cfg.Metrics,
		batch:     batch,
	}, nil
}

// Receive implements actor.ActorBehavior by dispatching to the typed
// handlers.
func (s *Service) Receive(ctx context.Context,
	msg ReviewRequest) fn.Result[ReviewResponse] {

	switch m := msg.(type) {
	case AssignReviewerMsg:
		resp := s.handleAssignReviewer(ctx, m)
		return fn.Ok[ReviewResponse](resp)

	case MakeReviewMsg:
		resp := s.handleMakeReview(ctx, m)
		return fn.Ok[ReviewResponse](resp)

	case GetReviewJobsMsg:
		resp := s.handleGetReviewJobs(ctx, m)
		return fn.Ok[ReviewResponse](resp)

	case GetReviewInfoMsg:
		resp := s.handleGetReviewInfo(ctx, m)
		return fn.Ok[ReviewResponse](resp)

	case ListPendingJobsMsg:
		jobs, err := s.ListPendingJobs(ctx, m.Limit)
		return fn.Ok[ReviewResponse](ListPendingJobsResp{
			Jobs: jobs, Error: err,
		})

	default:
		return fn.Err[ReviewResponse](fmt.Errorf(
			"unknown message type: %T", msg,
		))
	}
}

func (s *Service) handleAssignReviewer(ctx context.Context,
	msg AssignReviewerMsg) AssignReviewerResp {

	job, err := s.AssignReviewer(ctx, msg.Ref, msg.AllowAutoReview)

	return AssignReviewerResp{Job: job, Error: err}
}

func (s *Service) handleMakeReview(ctx context.Context,
	msg MakeReviewMsg) MakeReviewResp {

	info, err := s.MakeReview(ctx, msg.JobID, msg.Passed, msg.Reason)

	return MakeReviewResp{Info: info, Error: err}
}

func (s *Service) handleGetReviewJobs(ctx context.Context,
	msg GetReviewJobsMsg) GetReviewJobsResp {

	var (
		jobs []Info
		err  error
	)
	switch msg.Filter {
	case FilterUnfinished:
		jobs, err = s.GetUnfinishedReviewJobs(ctx, msg.ReviewerID)
	case FilterFinished:
		jobs, err = s.GetFinishedReviewJobs(ctx, msg.ReviewerID)
	default:
		jobs, err = s.GetReviewJobs(ctx, msg.ReviewerID)
	}

	return GetReviewJobsResp{Jobs: jobs, Error: err}
}

func (s *Service) handleGetReviewInfo(ctx context.Context,
	msg GetReviewInfoMsg) GetReviewInfoResp {

	var (
		info Info
		err  error
	)
	if msg.JobID > 0 {
		info, err = s.GetReviewInfo(ctx, msg.JobID)
	} else {
		info, err = s.GetReviewInfoByContent(
			ctx, msg.ContentID, msg.ContentType,
		)
	}

	return GetReviewInfoResp{Info: info, Error: err}
}

// AssignReviewerDefault assigns a human reviewer to ref.
func (s *Service) AssignReviewerDefault(ctx context.Context,
	ref content.Ref) (Job, error) {

	return s.AssignReviewer(ctx, ref, false)
}

// AssignReviewer creates the review job for ref. With allowAutoReview set
// and the auto-review policy agreeing, the job is created already
// approved by AutoReviewerID and dispatched like a human approval.
// Otherwise the selector picks a reviewer and the job waits for a
// decision. Content that already has an undecided job fails with
// ErrInvalidState.
func (s *Service) AssignReviewer(ctx context.Context, ref content.Ref,
	allowAutoReview bool) (Job, error) {

	if ref.ID == "" {
		return Job{}, fmt.Errorf("%w: empty content id",
			ErrInvalidArgument)
	}
	if !s.registry.Supports(ref.Type) {
		return Job{}, fmt.Errorf("%w: %q", ErrUnsupportedType, ref.Type)
	}
	if err := s.checkContentExists(ctx, ref); err != nil {
		return Job{}, err
	}

	auto := allowAutoReview && s.policy.AllowAutoReview(ctx, ref)

	reviewerID := AutoReviewerID
	if !auto {
		var err error
		reviewerID, err = s.selector.SelectReviewer(ctx, ref)
		if err != nil {
			return Job{}, fmt.Errorf("select reviewer for %s: %w",
				ref, err)
		}
	}

	var (
		job     Job
		publish []PublishStateChange
	)
	err := s.store.WithTx(ctx, func(ctx context.Context,
		tx store.Storage) error {

		sj, err := tx.CreateReviewJob(ctx, store.CreateReviewJobParams{
			ContentID:   ref.ID,
			ContentType: ref.Type,
			AuthorID:    ref.AuthorID,
			ReviewerID:  &reviewerID,
			Status:      string(StatusNotReviewed),
			Auto:        auto,
		})
		if err != nil {
			return fmt.Errorf("create review job: %w", err)
		}

		job, err = JobFromStore(sj)
		if err != nil {
			return err
		}
		if !auto {
			return nil
		}

		outbox, err := NewJobFSM(job).ProcessEvent(
			ctx, ApproveEvent{At: time.Now()},
		)
		if err != nil {
			return err
		}
		publish, err = s.applyOutbox(ctx, tx, &job, outbox)

		return err
	})
	if errors.Is(err, store.ErrDuplicate) {
		return Job{}, fmt.Errorf("%w: %s already has an undecided "+
			"review job", ErrInvalidState, ref.Key())
	}
	if err != nil {
		return Job{}, err
	}

	path := "human"
	if auto {
		path = "auto"
		s.metrics.decided(job.Status)
	}
	s.metrics.assigned(string(ref.Type), path)

	log.InfoS(ctx, "Review job created", "job_id", job.ID,
		"content", ref.Key(), "reviewer_id", reviewerID, "auto", auto)

	s.publishOutbox(ctx, job, publish)

	return job, nil
}

// checkContentExists asks every marker of the type that can locate
// content. Types without a locator are trusted.
func (s *Service) checkContentExists(ctx context.Context,
	ref content.Ref) error {

	for _, m := range s.registry.Lookup(ref.Type) {
		locator, ok := m.(ContentLocator)
		if !ok {
			continue
		}

		exists, err := locator.ContentExists(ctx, ref)
		if err != nil {
			return fmt.Errorf("locate %s: %w", ref, err)
		}
		if !exists {
			return fmt.Errorf("%w: %s", ErrContentNotFound, ref)
		}
	}

	return nil
}

// MakeReview records the decision on a job. A job that is already
// decided fails with ErrInvalidState and keeps its stored decision.
func (s *Service) MakeReview(ctx context.Context, jobID int64,
	passed bool, reason string) (Info, error) {

	var event JobEvent = ApproveEvent{At: time.Now()}
	if !passed {
		event = RejectEvent{Reason: reason, At: time.Now()}
	}

	var (
		job     Job
		publish []PublishStateChange
	)
	err := s.store.WithTx(ctx, func(ctx context.Context,
		tx store.Storage) error {

		var err error
		job, err = s.loadJob(ctx, tx, jobID)
		if err != nil {
			return err
		}

		outbox, err := NewJobFSM(job).ProcessEvent(ctx, event)
		if err != nil {
			return err
		}
		publish, err = s.applyOutbox(ctx, tx, &job, outbox)

		return err
	})
	if err != nil {
		return Info{}, err
	}

	s.metrics.decided(job.Status)
	log.InfoS(ctx, "Review decision recorded", "job_id", job.ID,
		"content", job.Ref().Key(), "status", job.Status)

	s.publishOutbox(ctx, job, publish)

	return job.Info(), nil
}

// applyOutbox executes the storage side effects of a transition inside
// tx and returns the events to publish once tx commits.
func (s *Service) applyOutbox(ctx context.Context, tx store.Storage,
	job *Job, events []JobOutboxEvent) ([]PublishStateChange, error) {

	var publish []PublishStateChange
	for _, event := range events {
		switch e := event.(type) {
		case PersistDecision:
			ok, err := tx.DecideReviewJob(ctx,
				store.DecideReviewJobParams{
					ID:        e.JobID,
					Status:    string(e.Status),
					Reason:    e.Reason,
					DecidedAt: e.DecidedAt,
				},
			)
			if err != nil {
				return nil, fmt.Errorf("persist decision: %w",
					err)
			}
			if !ok {
				return nil, s.decisionConflict(ctx, tx, e.JobID)
			}

			job.Status = e.Status
			job.Reason = e.Reason
			job.DecidedAt = fn.Some(e.DecidedAt.Truncate(time.Second))

		case PublishStateChange:
			publish = append(publish, e)
		}
	}

	return publish, nil
}

// decisionConflict explains a lost compare-and-set.
func (s *Service) decisionConflict(ctx context.Context, tx store.Storage,
	jobID int64) error {

	current, err := s.loadJob(ctx, tx, jobID)
	if err != nil {
		return err
	}

	return fmt.Errorf("%w: job %d already %s", ErrInvalidState, jobID,
		current.Status)
}

// publishOutbox hands decided jobs to the publisher. The decision is
// already durable, so a refused publish is left to RecoverUndispatched.
func (s *Service) publishOutbox(ctx context.Context, job Job,
	publish []PublishStateChange) {

	for _, p := range publish {
		ev := NewStateChangeEvent(job, p.Status)
		if err := s.publisher.Publish(ctx, ev); err != nil {
			log.WarnS(ctx, "Dispatch deferred to recovery", err,
				"job_id", job.ID, "event_id", ev.ID)
		}
	}
}

func (s *Service) loadJob(ctx context.Context, st store.ReviewJobStore,
	jobID int64) (Job, error) {

	sj, err := st.GetReviewJob(ctx, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, fmt.Errorf("%w: %d", ErrJobNotFound, jobID)
	}
	if err != nil {
		return Job{}, err
	}

	return JobFromStore(sj)
}

// GetReviewJobs lists every job of a reviewer, newest first.
func (s *Service) GetReviewJobs(ctx context.Context,
	reviewerID int64) ([]Info, error) {

	return s.listInfos(s.store.ListReviewJobsByReviewer(ctx, reviewerID))
}

// GetUnfinishedReviewJobs lists a reviewer's undecided jobs, oldest first.
func (s *Service) GetUnfinishedReviewJobs(ctx context.Context,
	reviewerID int64) ([]Info, error) {

	return s.listInfos(s.store.ListUnfinishedReviewJobs(ctx, reviewerID))
}

// GetFinishedReviewJobs lists a reviewer's decided jobs, latest decision
// first.
func (s *Service) GetFinishedReviewJobs(ctx context.Context,
	reviewerID int64) ([]Info, error) {

	return s.listInfos(s.store.ListFinishedReviewJobs(ctx, reviewerID))
}

// ListPendingJobs lists undecided jobs of every reviewer, oldest first.
func (s *Service) ListPendingJobs(ctx context.Context,
	limit int) ([]Info, error) {

	return s.listInfos(s.store.ListPendingReviewJobs(ctx, limit))
}

func (s *Service) listInfos(sjs []store.ReviewJob, err error) ([]Info,
	error) {

	if err != nil {
		return nil, err
	}

	jobs, err := jobsFromStore(sjs)
	if err != nil {
		return nil, err
	}

	infos := make([]Info, 0, len(jobs))
	for _, j := range jobs {
		infos = append(infos, j.Info())
	}

	return infos, nil
}

// GetReviewInfo returns the job with the given id.
func (s *Service) GetReviewInfo(ctx context.Context,
	jobID int64) (Info, error) {

	job, err := s.loadJob(ctx, s.store, jobID)
	if err != nil {
		return Info{}, err
	}

	return job.Info(), nil
}

// GetReviewInfoByContent returns the newest job for a content item.
func (s *Service) GetReviewInfoByContent(ctx context.Context,
	contentID string, t content.Type) (Info, error) {

	sj, err := s.store.GetLatestReviewJobForContent(ctx, t, contentID)
	if errors.Is(err, sql.ErrNoRows) {
		return Info{}, fmt.Errorf("%w: no job for %s:%s",
			ErrJobNotFound, t, contentID)
	}
	if err != nil {
		return Info{}, err
	}

	job, err := JobFromStore(sj)
	if err != nil {
		return Info{}, err
	}

	return job.Info(), nil
}

// RecoverUndispatched re-publishes decided jobs whose markers never
// finished, typically after a crash or an interrupted shutdown. Markers
// see the same event ids as the first delivery.
func (s *Service) RecoverUndispatched(ctx context.Context) (int, error) {
	var (
		total   int
		afterID int64
	)
	for {
		sjs, err := s.store.ListUndispatchedReviewJobs(
			ctx, afterID, s.batch,
		)
		if err != nil {
			return total, fmt.Errorf("list undispatched jobs: %w", err)
		}

		jobs, err := jobsFromStore(sjs)
		if err != nil {
			return total, err
		}

		for _, job := range jobs {
			ev := NewStateChangeEvent(job, job.Status)
			if err := s.publisher.Publish(ctx, ev); err != nil {
				return total, fmt.Errorf("republish job %d: %w",
					job.ID, err)
			}
			total++
			afterID = job.ID
		}

		// Published jobs stay unacknowledged until the dispatcher
		// runs them, so paging is by id rather than by re-listing.
		if len(jobs) < s.batch {
			break
		}
	}

	if total > 0 {
		log.InfoS(ctx, "Re-published undispatched review jobs",
			"count", total)
	}

	return total, nil
}
