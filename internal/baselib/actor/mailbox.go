package actor

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"
)

// envelope carries a message together with the promise of an Ask (nil for
// Tell) and the context of the sender.
type envelope[M Message, R any] struct {
	message   M
	promise   Promise[R]
	callerCtx context.Context
}

// mailbox is a bounded FIFO queue of envelopes backed by a channel.
//
// Sends may come from any goroutine. Only the owning actor receives and
// drains. The RWMutex keeps close from racing an in-flight send.
type mailbox[M Message, R any] struct {
	ch       chan envelope[M, R]
	closed   atomic.Bool
	mu       sync.RWMutex
	once     sync.Once
	actorCtx context.Context
}

func newMailbox[M Message, R any](actorCtx context.Context,
	capacity int) *mailbox[M, R] {

	if capacity <= 0 {
		capacity = 1
	}

	return &mailbox[M, R]{
		ch:       make(chan envelope[M, R], capacity),
		actorCtx: actorCtx,
	}
}

// send blocks until env is queued, the sender gives up or the actor stops.
func (m *mailbox[M, R]) send(ctx context.Context, env envelope[M, R]) bool {
	if ctx.Err() != nil || m.actorCtx.Err() != nil {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed.Load() {
		return false
	}

	select {
	case m.ch <- env:
		return true

	case <-ctx.Done():
		log.TraceS(ctx, "Mailbox send abandoned by caller",
			"msg_type", env.message.MessageType())

		return false

	case <-m.actorCtx.Done():
		return false
	}
}

// receive yields envelopes until ctx is done or the mailbox is closed.
func (m *mailbox[M, R]) receive(ctx context.Context) iter.Seq[envelope[M, R]] {
	return func(yield func(envelope[M, R]) bool) {
		for {
			if ctx.Err() != nil {
				return
			}

			select {
			case env, ok := <-m.ch:
				if !ok || !yield(env) {
					return
				}

			case <-ctx.Done():
				return
			}
		}
	}
}

// close rejects further sends. Queued envelopes stay available to drain.
func (m *mailbox[M, R]) close() {
	m.once.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		m.closed.Store(true)
		close(m.ch)
	})
}

// drain yields whatever is left after close.
func (m *mailbox[M, R]) drain() iter.Seq[envelope[M, R]] {
	return func(yield func(envelope[M, R]) bool) {
		if !m.closed.Load() {
			return
		}

		for env := range m.ch {
			if !yield(env) {
				return
			}
		}
	}
}

// depth is the number of queued envelopes.
func (m *mailbox[M, R]) depth() int {
	return len(m.ch)
}
