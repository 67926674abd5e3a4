package review

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lamp-blog/lamp/internal/content"
	"github.com/lamp-blog/lamp/internal/store"
	"github.com/stretchr/testify/require"
)

// call is one marker invocation seen by recordingMarker.
type call struct {
	Reviewed bool
	Fin      Finalization
}

// recordingMarker records calls and can be told to fail, panic or block.
type recordingMarker struct {
	name  string
	types []content.Type

	mu     sync.Mutex
	calls  []call
	failN  int
	err    error
	panics bool
	block  chan struct{}

	// missing lists content ids reported absent by ContentExists.
	missing map[string]bool
}

func newRecordingMarker(name string, types ...content.Type) *recordingMarker {
	return &recordingMarker{name: name, types: types}
}

func (m *recordingMarker) Name() string { return m.name }

func (m *recordingMarker) SupportedReviewTypes() []content.Type {
	return m.types
}

func (m *recordingMarker) record(ctx context.Context, reviewed bool,
	f Finalization) error {

	m.mu.Lock()
	m.calls = append(m.calls, call{Reviewed: reviewed, Fin: f})
	block, panics := m.block, m.panics
	var err error
	if m.failN > 0 {
		m.failN--
		err = m.err
	}
	m.mu.Unlock()

	if panics {
		panic("marker exploded")
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return err
}

func (m *recordingMarker) MarkAsReviewed(ctx context.Context,
	f Finalization) error {

	return m.record(ctx, true, f)
}

func (m *recordingMarker) MarkAsRejected(ctx context.Context,
	f Finalization) error {

	return m.record(ctx, false, f)
}

func (m *recordingMarker) ContentExists(_ context.Context,
	ref content.Ref) (bool, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	return !m.missing[ref.ID], nil
}

func (m *recordingMarker) Calls() []call {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]call(nil), m.calls...)
}

// recordingPublisher collects published events without dispatching.
type recordingPublisher struct {
	mu     sync.Mutex
	events []StateChangeEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context,
	ev StateChangeEvent) error {

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)

	return nil
}

func (p *recordingPublisher) Events() []StateChangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]StateChangeEvent(nil), p.events...)
}

// testHarness bundles a service over the mock store with a recording
// publisher.
type testHarness struct {
	svc       *Service
	store     *store.MockStore
	marker    *recordingMarker
	publisher *recordingPublisher
}

func newTestHarness(t *testing.T, policy AutoReviewPolicy) *testHarness {
	t.Helper()

	marker := newRecordingMarker("articles", content.TypeArticle)
	registry, err := NewRegistry(marker)
	require.NoError(t, err)

	st := store.NewMockStore()
	pub := &recordingPublisher{}

	svc, err := NewService(ServiceConfig{
		Store:      st,
		Registry:   registry,
		Publisher:  pub,
		Selector:   NewRoundRobinSelector(7, 8),
		AutoPolicy: policy,
	})
	require.NoError(t, err)

	return &testHarness{
		svc:       svc,
		store:     st,
		marker:    marker,
		publisher: pub,
	}
}

func articleRef(id string) content.Ref {
	return content.Ref{ID: id, Type: content.TypeArticle, AuthorID: 42}
}

func decidedJob(id int64, status Status) Job {
	return Job{
		ID:          id,
		ContentID:   "100",
		ContentType: content.TypeArticle,
		AuthorID:    42,
		Status:      status,
		CreatedAt:   time.Now(),
	}
}
