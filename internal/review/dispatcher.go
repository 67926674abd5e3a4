package review

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lamp-blog/lamp/internal/actorutil"
	"github.com/lamp-blog/lamp/internal/baselib/actor"
	"github.com/lamp-blog/lamp/internal/content"
	"github.com/lightningnetwork/lnd/fn/v2"
	"golang.org/x/sync/errgroup"
)

// eventNamespace scopes the name-based uuids of state change events.
var eventNamespace = uuid.MustParse("6f1c4a0e-9d55-4c3e-8a47-2b7f0e3d91a4")

// StateChangeEvent announces a decided review job to the status markers.
type StateChangeEvent struct {
	actor.BaseMessage

	// ID is derived from the job id and status, so redelivering the
	// same decision carries the same id.
	ID     string
	Job    Job
	Status Status
	At     time.Time
}

// NewStateChangeEvent builds the event for job moving to status.
func NewStateChangeEvent(job Job, status Status) StateChangeEvent {
	name := fmt.Sprintf("%d/%s", job.ID, status)

	return StateChangeEvent{
		ID:     uuid.NewSHA1(eventNamespace, []byte(name)).String(),
		Job:    job,
		Status: status,
		At:     time.Now(),
	}
}

// MessageType implements actor.Message.
func (StateChangeEvent) MessageType() string { return "StateChangeEvent" }

// Publisher accepts decided jobs for dispatch.
type Publisher interface {
	Publish(ctx context.Context, ev StateChangeEvent) error
}

// DispatchAcker records that a job's markers have run.
type DispatchAcker interface {
	MarkReviewJobDispatched(ctx context.Context, id int64,
		at time.Time) error
}

// DispatchReport summarizes one dispatched event.
type DispatchReport struct {
	EventID  string
	JobID    int64
	Markers  int
	Failures []MarkerFailure

	// Unsupported is set when no marker handles the content type.
	Unsupported bool
}

// DispatcherConfig configures NewDispatcher.
type DispatcherConfig struct {
	// Registry resolves markers per content type. Required.
	Registry *Registry

	// Acker is told once a job's markers have run. Optional.
	Acker DispatchAcker

	// Workers is the number of worker actors. Defaults to 4.
	Workers int

	// MailboxSize bounds each worker's queue. Defaults to 256.
	MailboxSize int

	// Concurrency caps markers running at once for one event. Defaults
	// to 8.
	Concurrency int

	// MarkerTimeout bounds each marker call. Defaults to 10s.
	MarkerTimeout time.Duration

	// MaxAttempts bounds calls per marker for transient errors. Defaults
	// to 3.
	MaxAttempts int

	// RetryBackoff is the first retry delay; it doubles per attempt.
	// Defaults to 100ms.
	RetryBackoff time.Duration

	// DrainTimeout bounds how long Stop waits for queued events.
	// Defaults to 5s.
	DrainTimeout time.Duration

	// Sink collects marker failures. Defaults to a new sink.
	Sink *ErrorSink

	Metrics *Metrics

	// DLO receives events stranded in a worker mailbox on shutdown.
	DLO actor.TellOnlyRef[actor.Message]

	// OnDispatched runs after every event.
	OnDispatched func(StateChangeEvent, DispatchReport)
}

func (c *DispatcherConfig) setDefaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.MailboxSize <= 0 {
		c.MailboxSize = 256
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 8
	}
	if c.MarkerTimeout <= 0 {
		c.MarkerTimeout = 10 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 100 * time.Millisecond
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = 5 * time.Second
	}
	if c.Sink == nil {
		c.Sink = NewErrorSink(DefaultSinkCapacity)
	}
}

// Dispatcher fans decided review jobs out to the status markers of their
// content type. Events for the same content are handled by the same
// worker in publish order. A failing marker never affects the others.
type Dispatcher struct {
	cfg  DispatcherConfig
	pool *actorutil.Pool[StateChangeEvent, DispatchReport]

	mu      sync.RWMutex
	stopped bool
	pending sync.WaitGroup
}

// NewDispatcher starts the worker pool.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("dispatcher needs a registry")
	}
	cfg.setDefaults()

	d := &Dispatcher{cfg: cfg}
	d.pool = actorutil.NewPool(actorutil.PoolConfig[StateChangeEvent,
		DispatchReport]{

		ID:   "review-dispatch",
		Size: cfg.Workers,
		Factory: func(int) actor.ActorBehavior[StateChangeEvent,
			DispatchReport] {

			return &dispatchWorker{d: d}
		},
		MailboxSize: cfg.MailboxSize,
		DLO:         cfg.DLO,
	})

	return d, nil
}

// Sink returns the failure sink.
func (d *Dispatcher) Sink() *ErrorSink {
	return d.cfg.Sink
}

// QueueDepth reports events waiting for a worker.
func (d *Dispatcher) QueueDepth() int {
	return d.pool.QueueDepth()
}

// Running reports whether the dispatcher accepts events.
func (d *Dispatcher) Running() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return !d.stopped
}

// Publish queues ev and returns without waiting for the markers. It blocks
// only while the owning worker's mailbox is full.
func (d *Dispatcher) Publish(ctx context.Context, ev StateChangeEvent) error {
	_, err := d.enqueue(ctx, ev)
	return err
}

// PublishAndWait queues ev and waits for its report.
func (d *Dispatcher) PublishAndWait(ctx context.Context,
	ev StateChangeEvent) (DispatchReport, error) {

	fut, err := d.enqueue(ctx, ev)
	if err != nil {
		return DispatchReport{}, err
	}

	return fut.Await(ctx).Unpack()
}

func (d *Dispatcher) enqueue(ctx context.Context,
	ev StateChangeEvent) (actor.Future[DispatchReport], error) {

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		return nil, ErrDispatcherStopped
	}

	dispLog.TraceS(ctx, "Queueing state change",
		"event_id", ev.ID, "job_id", ev.Job.ID, "status", ev.Status)

	// Accepted work must outlive the publisher's request.
	fut := d.pool.AskKeyed(
		context.WithoutCancel(ctx), ev.Job.Ref().Key(), ev,
	)

	d.pending.Add(1)
	fut.OnComplete(context.Background(), func(fn.Result[DispatchReport]) {
		d.pending.Done()
	})
	d.cfg.Metrics.setQueueDepth(d.pool.QueueDepth())

	return fut, nil
}

// Stop refuses new events, waits up to DrainTimeout for queued ones and
// stops the workers. Events still queued go to the DLO; their jobs stay
// unacknowledged for RecoverUndispatched.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		d.pending.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(d.cfg.DrainTimeout):
		dispLog.WarnS(context.Background(), "Dispatcher drain timed out",
			nil, "queued", d.pool.QueueDepth())
	}

	d.pool.Stop()
}

// dispatchWorker is the behaviour of each pool member.
type dispatchWorker struct {
	d *Dispatcher
}

// Receive implements actor.ActorBehavior.
func (w *dispatchWorker) Receive(ctx context.Context,
	ev StateChangeEvent) fn.Result[DispatchReport] {

	return fn.Ok(w.d.dispatch(ctx, ev))
}

func (d *Dispatcher) dispatch(ctx context.Context,
	ev StateChangeEvent) DispatchReport {

	report := DispatchReport{EventID: ev.ID, JobID: ev.Job.ID}
	defer func() {
		d.cfg.Metrics.setQueueDepth(d.pool.QueueDepth())
		if d.cfg.OnDispatched != nil {
			d.cfg.OnDispatched(ev, report)
		}
	}()

	if !ev.Status.IsTerminal() {
		f := d.failure(ev, "dispatcher", 0, fmt.Errorf("%w: job %d "+
			"published as %s", ErrInvalidState, ev.Job.ID, ev.Status))

		dispLog.ErrorS(ctx, "Undecided job reached dispatch", f.Err,
			"event_id", ev.ID, "job_id", ev.Job.ID)

		d.cfg.Sink.Add(f)
		d.cfg.Metrics.dispatched("invalid")
		report.Failures = append(report.Failures, f)

		return report
	}

	markers := d.cfg.Registry.Lookup(ev.Job.ContentType)
	if len(markers) == 0 {
		dispLog.WarnS(ctx, "No status marker for content type",
			ErrUnsupportedType, "type", ev.Job.ContentType,
			"job_id", ev.Job.ID)

		report.Unsupported = true
		d.cfg.Metrics.dispatched("unsupported")
		d.ack(ctx, ev)

		return report
	}

	fin := Finalization{
		EventID:   ev.ID,
		JobID:     ev.Job.ID,
		Type:      ev.Job.ContentType,
		ContentID: ev.Job.ContentID,
		Reason:    ev.Job.Reason,
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(d.cfg.Concurrency)

	for _, m := range markers {
		g.Go(func() error {
			attempts, err := d.invoke(ctx, m, ev.Status, fin)
			if err == nil {
				return nil
			}

			f := d.failure(ev, m.Name(), attempts, err)
			dispLog.ErrorS(ctx, "Status marker failed", err,
				"marker", m.Name(), "event_id", ev.ID,
				"job_id", ev.Job.ID, "attempts", attempts)

			d.cfg.Sink.Add(f)
			d.cfg.Metrics.markerFailed(m.Name())

			mu.Lock()
			report.Failures = append(report.Failures, f)
			mu.Unlock()

			// Never cancel the siblings.
			return nil
		})
	}
	_ = g.Wait()

	report.Markers = len(markers)

	outcome := "ok"
	if len(report.Failures) > 0 {
		outcome = "partial"
	}
	d.cfg.Metrics.dispatched(outcome)

	// A worker stopped mid-event leaves the job for recovery.
	if ctx.Err() == nil {
		d.ack(ctx, ev)
	}

	dispLog.DebugS(ctx, "State change dispatched", "event_id", ev.ID,
		"job_id", ev.Job.ID, "status", ev.Status,
		"markers", len(markers), "failures", len(report.Failures))

	return report
}

// invoke calls one marker, retrying transient errors with exponential
// backoff. It returns the number of calls made.
func (d *Dispatcher) invoke(ctx context.Context, m StatusMarker,
	status Status, fin Finalization) (int, error) {

	backoff := d.cfg.RetryBackoff
	for attempt := 1; ; attempt++ {
		start := time.Now()
		err := d.callMarker(ctx, m, status, fin)
		d.cfg.Metrics.markerCalled(m.Name(), err, time.Since(start))

		if err == nil {
			return attempt, nil
		}
		if attempt >= d.cfg.MaxAttempts || !isTransient(err) ||
			ctx.Err() != nil {

			return attempt, err
		}

		dispLog.DebugS(ctx, "Retrying status marker", "marker", m.Name(),
			"attempt", attempt, "backoff", backoff, "err", err)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return attempt, err
		}
		backoff *= 2
	}
}

// callMarker runs one marker call under the marker timeout. A marker that
// ignores its context is abandoned when the timeout fires.
func (d *Dispatcher) callMarker(ctx context.Context, m StatusMarker,
	status Status, fin Finalization) error {

	ctx, cancel := context.WithTimeout(ctx, d.cfg.MarkerTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("%w: %s: %v", ErrMarkerPanic,
					m.Name(), r)
			}
		}()

		if status == StatusReviewed {
			done <- m.MarkAsReviewed(ctx, fin)
		} else {
			done <- m.MarkAsRejected(ctx, fin)
		}
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("marker %s: %w", m.Name(), ctx.Err())
	}
}

func (d *Dispatcher) ack(ctx context.Context, ev StateChangeEvent) {
	if d.cfg.Acker == nil {
		return
	}

	err := d.cfg.Acker.MarkReviewJobDispatched(ctx, ev.Job.ID, time.Now())
	if err != nil {
		dispLog.WarnS(ctx, "Unable to acknowledge dispatch", err,
			"job_id", ev.Job.ID)
	}
}

func (d *Dispatcher) failure(ev StateChangeEvent, marker string,
	attempts int, err error) MarkerFailure {

	return MarkerFailure{
		EventID:   ev.ID,
		JobID:     ev.Job.ID,
		Marker:    marker,
		Type:      ev.Job.ContentType,
		ContentID: ev.Job.ContentID,
		Attempts:  attempts,
		Err:       err,
		At:        time.Now(),
	}
}

// isTransient reports whether retrying err might help. Timeouts and
// storage hiccups are retried; missing content, lifecycle violations and
// panics are not.
func isTransient(err error) bool {
	switch {
	case errors.Is(err, ErrMarkerPanic),
		errors.Is(err, content.ErrContentNotFound),
		errors.Is(err, content.ErrInvalidTransition),
		errors.Is(err, ErrUnsupportedType),
		errors.Is(err, ErrInvalidState),
		errors.Is(err, context.Canceled):

		return false
	}

	return true
}

var _ Publisher = (*Dispatcher)(nil)
