package review

import (
	"context"
	"fmt"
)

// JobFSM drives a single review job through its decision.
type JobFSM struct {
	state JobState
	env   *JobEnvironment
}

// NewJobFSM creates an FSM positioned at the job's stored status.
func NewJobFSM(job Job) *JobFSM {
	return &JobFSM{
		state: StateFromStatus(job.Status),
		env:   &JobEnvironment{JobID: job.ID},
	}
}

// ProcessEvent applies event and returns the outbox to execute.
func (f *JobFSM) ProcessEvent(ctx context.Context,
	event JobEvent) ([]JobOutboxEvent, error) {

	transition, err := f.state.ProcessEvent(ctx, event, f.env)
	if err != nil {
		return nil, fmt.Errorf("process event %T: %w", event, err)
	}

	f.state = transition.NextState

	return transition.OutboxEvents, nil
}

// CurrentState returns the state name.
func (f *JobFSM) CurrentState() string {
	return f.state.String()
}

// State returns the current state.
func (f *JobFSM) State() JobState {
	return f.state
}

// IsTerminal reports whether the job is decided.
func (f *JobFSM) IsTerminal() bool {
	return f.state.IsTerminal()
}
