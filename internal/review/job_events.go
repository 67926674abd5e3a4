package review

import "time"

// JobEvent is the sealed interface for review job FSM inputs.
type JobEvent interface {
	isJobEvent()
}

// ApproveEvent is a reviewer passing the content.
type ApproveEvent struct {
	At time.Time
}

func (ApproveEvent) isJobEvent() {}

// RejectEvent is a reviewer failing the content.
type RejectEvent struct {
	Reason string
	At     time.Time
}

func (RejectEvent) isJobEvent() {}
