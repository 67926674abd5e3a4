package review

import (
	"context"
	"fmt"
	"time"
)

// JobState is the sealed interface for review job states.
type JobState interface {
	// ProcessEvent handles an event and returns the next state with the
	// side effects to apply.
	ProcessEvent(ctx context.Context, event JobEvent,
		env *JobEnvironment) (*JobTransition, error)

	// IsTerminal returns true once the job is decided.
	IsTerminal() bool

	// String returns the stored status name.
	String() string

	isJobState()
}

// JobTransition is the result of processing an event.
type JobTransition struct {
	NextState    JobState
	OutboxEvents []JobOutboxEvent
}

// JobEnvironment identifies the job a state machine runs for.
type JobEnvironment struct {
	JobID int64
}

var (
	_ JobState = (*StateNotReviewed)(nil)
	_ JobState = (*StateReviewed)(nil)
	_ JobState = (*StateRejected)(nil)
)

// StateNotReviewed is a job waiting for a decision.
type StateNotReviewed struct{}

// ProcessEvent handles a decision.
func (s *StateNotReviewed) ProcessEvent(_ context.Context, event JobEvent,
	env *JobEnvironment) (*JobTransition, error) {

	switch e := event.(type) {
	case ApproveEvent:
		return decided(env, &StateReviewed{}, StatusReviewed, "", e.At), nil

	case RejectEvent:
		return decided(
			env, &StateRejected{}, StatusRejected, e.Reason, e.At,
		), nil

	default:
		return nil, fmt.Errorf("unexpected event %T in state %s",
			event, s)
	}
}

func decided(env *JobEnvironment, next JobState, status Status,
	reason string, at time.Time) *JobTransition {

	return &JobTransition{
		NextState: next,
		OutboxEvents: []JobOutboxEvent{
			PersistDecision{
				JobID:     env.JobID,
				Status:    status,
				Reason:    reason,
				DecidedAt: at,
			},
			PublishStateChange{
				JobID:  env.JobID,
				Status: status,
			},
		},
	}
}

// IsTerminal implements JobState.
func (s *StateNotReviewed) IsTerminal() bool { return false }

// String implements JobState.
func (s *StateNotReviewed) String() string { return string(StatusNotReviewed) }

func (s *StateNotReviewed) isJobState() {}

// StateReviewed is an approved job. It accepts no further events.
type StateReviewed struct{}

// ProcessEvent rejects every event.
func (s *StateReviewed) ProcessEvent(_ context.Context, event JobEvent,
	env *JobEnvironment) (*JobTransition, error) {

	return nil, fmt.Errorf("%w: job %d already %s", ErrInvalidState,
		env.JobID, s)
}

// IsTerminal implements JobState.
func (s *StateReviewed) IsTerminal() bool { return true }

// String implements JobState.
func (s *StateReviewed) String() string { return string(StatusReviewed) }

func (s *StateReviewed) isJobState() {}

// StateRejected is a rejected job. It accepts no further events.
type StateRejected struct{}

// ProcessEvent rejects every event.
func (s *StateRejected) ProcessEvent(_ context.Context, event JobEvent,
	env *JobEnvironment) (*JobTransition, error) {

	return nil, fmt.Errorf("%w: job %d already %s", ErrInvalidState,
		env.JobID, s)
}

// IsTerminal implements JobState.
func (s *StateRejected) IsTerminal() bool { return true }

// String implements JobState.
func (s *StateRejected) String() string { return string(StatusRejected) }

func (s *StateRejected) isJobState() {}

// StateFromStatus returns the FSM state for a stored status.
func StateFromStatus(status Status) JobState {
	switch status {
	case StatusReviewed:
		return &StateReviewed{}
	case StatusRejected:
		return &StateRejected{}
	default:
		return &StateNotReviewed{}
	}
}
