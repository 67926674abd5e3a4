package content

import (
	"time"

	"github.com/google/uuid"
	"github.com/lamp-blog/lamp/internal/baselib/actor"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// PublishStage is the step of the publish flow a PublishEvent announces.
type PublishStage string

const (
	// StageReviewing announces content that was submitted for review.
	StageReviewing PublishStage = "reviewing"

	// StagePublished announces content that became public.
	StagePublished PublishStage = "published"
)

// Event is the sealed set of events content services emit. Events are
// immutable once built; subscribers must not modify them.
type Event interface {
	actor.Message

	// EventID is unique per event.
	EventID() string

	// ContentRef is the content the event is about.
	ContentRef() Ref

	isContentEvent()
}

// PublishEvent announces progress of content through the publish flow.
type PublishEvent struct {
	actor.BaseMessage

	ID    string
	Ref   Ref
	Stage PublishStage
	At    time.Time
}

// NewPublishEvent stamps a new publish event.
func NewPublishEvent(ref Ref, stage PublishStage) PublishEvent {
	return PublishEvent{
		ID:    uuid.NewString(),
		Ref:   ref,
		Stage: stage,
		At:    time.Now(),
	}
}

// MessageType implements actor.Message.
func (PublishEvent) MessageType() string { return "PublishEvent" }

// EventID implements Event.
func (e PublishEvent) EventID() string { return e.ID }

// ContentRef implements Event.
func (e PublishEvent) ContentRef() Ref { return e.Ref }

func (PublishEvent) isContentEvent() {}

// StatusEvent announces a status change. Previous is empty for content
// whose earlier status was not known to the emitter.
type StatusEvent struct {
	actor.BaseMessage

	ID       string
	Ref      Ref
	Previous fn.Option[Status]
	Current  Status
	Reason   string
	At       time.Time
}

// NewStatusEvent stamps a new status event.
func NewStatusEvent(ref Ref, previous fn.Option[Status],
	current Status) StatusEvent {

	return StatusEvent{
		ID:       uuid.NewString(),
		Ref:      ref,
		Previous: previous,
		Current:  current,
		At:       time.Now(),
	}
}

// MessageType implements actor.Message.
func (StatusEvent) MessageType() string { return "StatusEvent" }

// EventID implements Event.
func (e StatusEvent) EventID() string { return e.ID }

// ContentRef implements Event.
func (e StatusEvent) ContentRef() Ref { return e.Ref }

func (StatusEvent) isContentEvent() {}
