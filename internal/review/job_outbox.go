package review

import "time"

// JobOutboxEvent is a side effect requested by a job transition. The
// service applies them in order.
type JobOutboxEvent interface {
	isJobOutboxEvent()
}

// PersistDecision stores the decision. It must only succeed while the
// stored job is still not_reviewed.
type PersistDecision struct {
	JobID     int64
	Status    Status
	Reason    string
	DecidedAt time.Time
}

func (PersistDecision) isJobOutboxEvent() {}

// PublishStateChange hands the decided job to the dispatcher once the
// decision is durable.
type PublishStateChange struct {
	JobID  int64
	Status Status
}

func (PublishStateChange) isJobOutboxEvent() {}
