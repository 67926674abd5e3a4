package review

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestJobFSMApprove(t *testing.T) {
	t.Parallel()

	at := time.Unix(1700000000, 0)
	fsm := NewJobFSM(Job{ID: 9, Status: StatusNotReviewed})

	outbox, err := fsm.ProcessEvent(context.Background(), ApproveEvent{At: at})
	require.NoError(t, err)
	require.True(t, fsm.IsTerminal())
	require.Equal(t, "reviewed", fsm.CurrentState())
	require.Equal(t, []JobOutboxEvent{
		PersistDecision{JobID: 9, Status: StatusReviewed, DecidedAt: at},
		PublishStateChange{JobID: 9, Status: StatusReviewed},
	}, outbox)
}

func TestJobFSMReject(t *testing.T) {
	t.Parallel()

	fsm := NewJobFSM(Job{ID: 3, Status: StatusNotReviewed})

	outbox, err := fsm.ProcessEvent(context.Background(), RejectEvent{
		Reason: "spam",
	})
	require.NoError(t, err)
	require.IsType(t, &StateRejected{}, fsm.State())
	require.Len(t, outbox, 2)
	require.Equal(t, "spam", outbox[0].(PersistDecision).Reason)
}

func TestJobFSMTerminalRejectsEvents(t *testing.T) {
	t.Parallel()

	for _, status := range []Status{StatusReviewed, StatusRejected} {
		fsm := NewJobFSM(Job{ID: 1, Status: status})

		_, err := fsm.ProcessEvent(context.Background(), ApproveEvent{})
		require.ErrorIs(t, err, ErrInvalidState)

		_, err = fsm.ProcessEvent(context.Background(), RejectEvent{})
		require.ErrorIs(t, err, ErrInvalidState)

		require.Equal(t, string(status), fsm.CurrentState())
	}
}

// TestJobDecidedAtMostOnce checks that whatever sequence of decisions
// arrives, only the first one produces side effects.
func TestJobDecidedAtMostOnce(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		approvals := rapid.SliceOfN(rapid.Bool(), 1, 10).Draw(t, "events")
		fsm := NewJobFSM(Job{ID: 1, Status: StatusNotReviewed})

		var effects int
		for _, approve := range approvals {
			var ev JobEvent = RejectEvent{Reason: "no"}
			if approve {
				ev = ApproveEvent{}
			}

			outbox, err := fsm.ProcessEvent(context.Background(), ev)
			if err == nil {
				effects += len(outbox)
			}
		}

		if effects != 2 {
			t.Fatalf("expected one decision, saw %d side effects",
				effects)
		}

		want := "rejected"
		if approvals[0] {
			want = "reviewed"
		}
		if fsm.CurrentState() != want {
			t.Fatalf("state %s, want %s", fsm.CurrentState(), want)
		}
	})
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	for _, s := range []Status{StatusNotReviewed, StatusReviewed,
		StatusRejected} {

		got, err := ParseStatus(s.String())
		require.NoError(t, err)
		require.Equal(t, s, got)
	}

	_, err := ParseStatus("approved")
	require.Error(t, err)
	require.False(t, StatusNotReviewed.IsTerminal())
}
